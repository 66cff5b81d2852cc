package domain

import "time"

// Difficulty buckets questions for the session quotas.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Difficulties lists the known buckets in quota order.
var Difficulties = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}

// Option represents a possible answer for a question.
type Option struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// Question is a quiz candidate as served by the question store.
type Question struct {
	ID         string     `json:"id"`
	Category   string     `json:"category"`
	Difficulty Difficulty `json:"difficulty"`
	Prompt     string     `json:"prompt"`
	Options    []Option   `json:"options"`
}

// IsCorrect reports whether optionID is flagged as a correct answer.
func (q Question) IsCorrect(optionID string) bool {
	for _, opt := range q.Options {
		if opt.ID == optionID {
			return opt.Correct
		}
	}
	return false
}

// EntryKind is the accounting side of a ledger entry.
type EntryKind string

const (
	EntryCredit EntryKind = "credit"
	EntryDebit  EntryKind = "debit"
)

// EntryStatusCompleted marks an entry committed together with its balance change.
const EntryStatusCompleted = "completed"

// LedgerEntry is an immutable record of one signed balance change.
type LedgerEntry struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Amount      int64     `json:"amount"`
	Kind        EntryKind `json:"kind"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

// RedemptionStatus is the lifecycle state of a redemption request.
type RedemptionStatus string

const (
	RedemptionPending  RedemptionStatus = "pending"
	RedemptionApproved RedemptionStatus = "approved"
	RedemptionRejected RedemptionStatus = "rejected"
)

// RedemptionRequest is a user's request to spend balance on a reward.
type RedemptionRequest struct {
	ID          string           `json:"id"`
	UserID      string           `json:"userId"`
	RewardID    string           `json:"rewardId"`
	Price       int64            `json:"price"`
	Status      RedemptionStatus `json:"status"`
	RequestedAt time.Time        `json:"requestedAt"`
	ProcessedAt *time.Time       `json:"processedAt,omitempty"`
	Code        string           `json:"code,omitempty"`
	Notes       string           `json:"notes,omitempty"`
}

// WrongAnswer remembers the attempt counter at the first wrong answer to a question.
type WrongAnswer struct {
	QuestionID string `json:"questionId"`
	Counter    int64  `json:"counter"`
}

// ExposureRecord is the persisted per-user question visibility state.
type ExposureRecord struct {
	Correct        []string      `json:"correct"`
	Wrong          []WrongAnswer `json:"wrong"`
	AttemptCounter int64         `json:"attemptCounter"`
}

// PlayerProgress holds cumulative XP and monotonic solved counters.
type PlayerProgress struct {
	UserID       string `json:"userId"`
	XP           int64  `json:"xp"`
	SolvedEasy   int64  `json:"solvedEasy"`
	SolvedMedium int64  `json:"solvedMedium"`
	SolvedHard   int64  `json:"solvedHard"`
}

// Sanitize clamps corrupt negative values to zero.
func (p *PlayerProgress) Sanitize() {
	if p.XP < 0 {
		p.XP = 0
	}
	if p.SolvedEasy < 0 {
		p.SolvedEasy = 0
	}
	if p.SolvedMedium < 0 {
		p.SolvedMedium = 0
	}
	if p.SolvedHard < 0 {
		p.SolvedHard = 0
	}
}

// AddSolved increments the solved counter for a difficulty. Negative counts are ignored.
func (p *PlayerProgress) AddSolved(d Difficulty, n int64) {
	if n <= 0 {
		return
	}
	switch d {
	case DifficultyEasy:
		p.SolvedEasy += n
	case DifficultyMedium:
		p.SolvedMedium += n
	case DifficultyHard:
		p.SolvedHard += n
	}
}

// DayLayout formats local calendar days in activity logs.
const DayLayout = "2006-01-02"
