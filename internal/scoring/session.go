// Package scoring is the per-session state machine that turns answers into
// points and a completion summary.
package scoring

import (
	"sync"

	"github.com/digitarmedia-techteam/MintX-sub000/internal/domain"
)

const (
	// CorrectPoints is awarded per correct answer.
	CorrectPoints = 2
	// WrongPoints is deducted per wrong answer.
	WrongPoints = 1
	// SessionPenalty is the flat ledger penalty for a session with a negative total.
	SessionPenalty = -1
)

// Outcome is how a question index was resolved.
type Outcome string

const (
	OutcomeCorrect Outcome = "correct"
	OutcomeWrong   Outcome = "wrong"
	OutcomeSkipped Outcome = "skipped"
)

// Delta is the fire-once notification emitted when an answer is scored.
type Delta struct {
	Index   int     `json:"index"`
	Outcome Outcome `json:"outcome"`
	Points  int     `json:"points"`
}

type resolution struct {
	optionID string
	outcome  Outcome
}

// Session holds the questions of one play session and their resolutions.
type Session struct {
	mu        sync.Mutex
	questions []domain.Question
	answers   []*resolution
	score     int
	completed bool
}

func NewSession(questions []domain.Question) *Session {
	qs := make([]domain.Question, len(questions))
	copy(qs, questions)
	return &Session{
		questions: qs,
		answers:   make([]*resolution, len(qs)),
	}
}

// Len returns the number of questions in the session.
func (s *Session) Len() int {
	return len(s.questions)
}

// Question returns the question at index.
func (s *Session) Question(index int) (domain.Question, bool) {
	if index < 0 || index >= len(s.questions) {
		return domain.Question{}, false
	}
	return s.questions[index], true
}

// Score returns the running session score.
func (s *Session) Score() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.score
}

// Answered reports whether index has been resolved.
func (s *Session) Answered(index int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return index >= 0 && index < len(s.answers) && s.answers[index] != nil
}

// Answer returns the option chosen at index, if any.
func (s *Session) Answer(index int) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.answers) || s.answers[index] == nil {
		return "", false
	}
	return s.answers[index].optionID, s.answers[index].outcome != OutcomeSkipped
}

// Completed reports whether Complete has been called.
func (s *Session) Completed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed
}

// SelectAnswer scores the first resolution of index. Later calls for the same
// index, out-of-range indexes and calls after completion return false.
func (s *Session) SelectAnswer(index int, optionID string) (Delta, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.openLocked(index) {
		return Delta{}, false
	}
	delta := Delta{Index: index}
	if s.questions[index].IsCorrect(optionID) {
		delta.Outcome = OutcomeCorrect
		delta.Points = CorrectPoints
	} else {
		delta.Outcome = OutcomeWrong
		delta.Points = -WrongPoints
	}
	s.score += delta.Points
	s.answers[index] = &resolution{optionID: optionID, outcome: delta.Outcome}
	return delta, true
}

// Expire resolves index as skipped because its timer ran out.
func (s *Session) Expire(index int) bool {
	return s.Skip(index)
}

// Skip resolves index without an answer. No points change.
func (s *Session) Skip(index int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.openLocked(index) {
		return false
	}
	s.answers[index] = &resolution{outcome: OutcomeSkipped}
	return true
}

func (s *Session) openLocked(index int) bool {
	return !s.completed && index >= 0 && index < len(s.answers) && s.answers[index] == nil
}

// Complete closes the session and returns its summary. Unresolved indexes
// count as skipped. Calling it again returns the same summary.
func (s *Session) Complete() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = true

	sum := Summary{
		Total:               len(s.questions),
		CorrectByDifficulty: make(map[domain.Difficulty]int, len(domain.Difficulties)),
	}
	for i, a := range s.answers {
		switch {
		case a == nil || a.outcome == OutcomeSkipped:
			sum.Skipped++
		case a.outcome == OutcomeCorrect:
			sum.Correct++
			sum.CorrectByDifficulty[s.questions[i].Difficulty]++
		default:
			sum.Wrong++
		}
	}
	sum.CorrectPoints = sum.Correct * CorrectPoints
	sum.NegativePoints = sum.Wrong * WrongPoints
	sum.TotalPoints = sum.CorrectPoints - sum.NegativePoints
	return sum
}
