package app

import (
	"sync"
	"time"

	"github.com/digitarmedia-techteam/MintX-sub000/internal/domain"
	"github.com/digitarmedia-techteam/MintX-sub000/internal/exposure"
	"github.com/digitarmedia-techteam/MintX-sub000/internal/scoring"
)

// SessionEventType tells subscribers how an index was resolved.
type SessionEventType string

const (
	SessionEventDelta   SessionEventType = "delta"
	SessionEventExpired SessionEventType = "expired"
	SessionEventSkipped SessionEventType = "skipped"
)

// SessionEvent is broadcast once per resolved index.
type SessionEvent struct {
	Type  SessionEventType `json:"type"`
	Index int              `json:"index"`
	Delta *scoring.Delta   `json:"delta,omitempty"`
}

// PlaySession is the explicitly owned context of one quiz run. StartSession
// creates it, Complete or Abandon discard it. A user tap and a timer expiry
// may race for the same index; the scoring guard accepts only the first.
type PlaySession struct {
	ID         string
	UserID     string
	Level      int
	Categories []string
	StartedAt  time.Time

	tracker *exposure.Tracker
	scoring *scoring.Session

	mu          sync.Mutex
	presented   []bool
	finished    bool
	attached    bool
	attachSeq   uint64
	subscribers map[chan SessionEvent]struct{}
	// unsettled holds a result whose ledger step failed transiently.
	unsettled *SessionResult
}

func newPlaySession(id, userID string, level int, categories []string, questions []domain.Question, tracker *exposure.Tracker, now time.Time) *PlaySession {
	return &PlaySession{
		ID:          id,
		UserID:      userID,
		Level:       level,
		Categories:  categories,
		StartedAt:   now,
		tracker:     tracker,
		scoring:     scoring.NewSession(questions),
		presented:   make([]bool, len(questions)),
		subscribers: make(map[chan SessionEvent]struct{}),
	}
}

// Len returns the number of questions scheduled.
func (p *PlaySession) Len() int {
	return p.scoring.Len()
}

// Score returns the running score.
func (p *PlaySession) Score() int {
	return p.scoring.Score()
}

// NextIndex returns the first unresolved index, or false when all are resolved.
func (p *PlaySession) NextIndex() (int, bool) {
	for i := 0; i < p.scoring.Len(); i++ {
		if !p.scoring.Answered(i) {
			return i, true
		}
	}
	return -1, false
}

// Present returns the question at index and counts it as shown exactly once.
func (p *PlaySession) Present(index int) (domain.Question, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.finished {
		return domain.Question{}, domain.ErrSessionCompleted
	}
	q, ok := p.scoring.Question(index)
	if !ok {
		return domain.Question{}, domain.ErrQuestionIndex
	}
	p.presentLocked(index)
	return q, nil
}

func (p *PlaySession) presentLocked(index int) {
	if p.presented[index] {
		return
	}
	p.presented[index] = true
	p.tracker.IncrementCounter()
}

// Answer scores the first answer for index. ok is false for duplicates.
func (p *PlaySession) Answer(index int, optionID string) (scoring.Delta, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkLocked(index); err != nil {
		return scoring.Delta{}, false, err
	}
	p.presentLocked(index)
	delta, ok := p.scoring.SelectAnswer(index, optionID)
	if !ok {
		return scoring.Delta{}, false, nil
	}
	q, _ := p.scoring.Question(index)
	if delta.Outcome == scoring.OutcomeCorrect {
		p.tracker.MarkCorrect(q.ID)
	} else {
		p.tracker.MarkWrong(q.ID)
	}
	p.broadcastLocked(SessionEvent{Type: SessionEventDelta, Index: index, Delta: &delta})
	return delta, true, nil
}

// Expire resolves index because its timer ran out. It never blocks on I/O.
func (p *PlaySession) Expire(index int) (bool, error) {
	return p.skip(index, SessionEventExpired)
}

// Skip resolves index without an answer at the user's request.
func (p *PlaySession) Skip(index int) (bool, error) {
	return p.skip(index, SessionEventSkipped)
}

func (p *PlaySession) skip(index int, typ SessionEventType) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkLocked(index); err != nil {
		return false, err
	}
	p.presentLocked(index)
	if !p.scoring.Skip(index) {
		return false, nil
	}
	p.broadcastLocked(SessionEvent{Type: typ, Index: index})
	return true, nil
}

func (p *PlaySession) checkLocked(index int) error {
	if p.finished {
		return domain.ErrSessionCompleted
	}
	if _, ok := p.scoring.Question(index); !ok {
		return domain.ErrQuestionIndex
	}
	return nil
}

// finish closes the session once; later calls report false.
func (p *PlaySession) finish() (scoring.Summary, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.finished {
		return scoring.Summary{}, false
	}
	p.finished = true
	for ch := range p.subscribers {
		delete(p.subscribers, ch)
		close(ch)
	}
	return p.scoring.Complete(), true
}

// finishIfIdle closes the session only when nobody attached since the Detach
// that returned seq. The check and the close happen under one lock, so a
// concurrent Attach either wins or sees the session finished.
func (p *PlaySession) finishIfIdle(seq uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.finished || p.attached || p.attachSeq != seq {
		return false
	}
	p.finished = true
	for ch := range p.subscribers {
		delete(p.subscribers, ch)
		close(ch)
	}
	return true
}

func (p *PlaySession) holdUnsettled(res SessionResult) {
	p.mu.Lock()
	p.unsettled = &res
	p.mu.Unlock()
}

// takeUnsettled hands the held result to exactly one caller.
func (p *PlaySession) takeUnsettled() (SessionResult, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.unsettled == nil {
		return SessionResult{}, false
	}
	res := *p.unsettled
	p.unsettled = nil
	return res, true
}

// Attach claims the session for one driving connection. It fails with
// domain.ErrSessionBusy while another connection holds it.
func (p *PlaySession) Attach() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.finished {
		return domain.ErrSessionCompleted
	}
	if p.attached {
		return domain.ErrSessionBusy
	}
	p.attached = true
	p.attachSeq++
	return nil
}

// Detach releases the claim taken by Attach and returns its sequence number.
func (p *PlaySession) Detach() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attached = false
	return p.attachSeq
}

// Idle reports whether nobody attached since the Detach that returned seq.
func (p *PlaySession) Idle(seq uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.attached && p.attachSeq == seq
}

// Finished reports whether the session was completed or abandoned.
func (p *PlaySession) Finished() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.finished
}

// Subscribe returns a channel receiving one event per resolved index.
// The caller must invoke the returned cancel function to avoid leaks.
func (p *PlaySession) Subscribe() (<-chan SessionEvent, func()) {
	ch := make(chan SessionEvent, 8)

	p.mu.Lock()
	if p.finished {
		close(ch)
	} else {
		p.subscribers[ch] = struct{}{}
	}
	p.mu.Unlock()

	cancel := func() {
		p.mu.Lock()
		if _, ok := p.subscribers[ch]; ok {
			delete(p.subscribers, ch)
			close(ch)
		}
		p.mu.Unlock()
	}
	return ch, cancel
}

func (p *PlaySession) broadcastLocked(ev SessionEvent) {
	for ch := range p.subscribers {
		select {
		case ch <- ev:
		default:
			// slow subscriber: drop the oldest event rather than block the resolver
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}
