package domain

import "errors"

var (
	// ErrInsufficientFunds is the expected outcome of a debit larger than the balance.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInvalidAmount is returned for non-positive credit/debit/price amounts.
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrTxConflict signals that a concurrent writer changed the user's ledger document.
	ErrTxConflict = errors.New("ledger transaction conflict")
	// ErrTransientStore is returned once conflict retries are exhausted; callers may retry later.
	ErrTransientStore = errors.New("ledger store temporarily unavailable")

	// ErrRedemptionNotFound indicates an unknown redemption request ID.
	ErrRedemptionNotFound = errors.New("redemption request not found")
	// ErrRedemptionProcessed is returned when a request already left the pending state.
	ErrRedemptionProcessed = errors.New("redemption request already processed")

	// ErrNoQuestionsAvailable means the exposure-filtered pool is empty.
	ErrNoQuestionsAvailable = errors.New("no questions available")
	// ErrQuestionFetchTimeout means the candidate pool could not be loaded in time.
	ErrQuestionFetchTimeout = errors.New("question fetch timed out")
	// ErrCategoryNotFound indicates the question store has no such category.
	ErrCategoryNotFound = errors.New("category not found")

	// ErrSessionNotFound is returned when a play session is unknown or already discarded.
	ErrSessionNotFound = errors.New("play session not found")
	// ErrSessionCompleted is returned when acting on a finished session.
	ErrSessionCompleted = errors.New("play session already completed")
	// ErrSessionBusy is returned when another connection already drives the session.
	ErrSessionBusy = errors.New("play session is attached to another connection")
	// ErrNothingToSettle is returned when a session has no failed ledger step to retry.
	ErrNothingToSettle = errors.New("play session has nothing left to settle")
	// ErrQuestionIndex indicates an index outside of the session.
	ErrQuestionIndex = errors.New("question index out of range")
)
