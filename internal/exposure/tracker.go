// Package exposure tracks which quiz questions a user may see next.
//
// A correctly answered question is hidden forever. A wrongly answered question
// is hidden until RetryAfter further questions have been shown to the user.
// The attempt counter is the clock for that window and never decreases.
package exposure

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/digitarmedia-techteam/MintX-sub000/internal/domain"
)

// RetryAfter is the number of presented questions after which a wrong answer
// becomes eligible again.
const RetryAfter = 50

// Store persists one exposure record per user. Last write wins; Tracker.Save
// merges before writing.
type Store interface {
	LoadExposure(ctx context.Context, userID string) (domain.ExposureRecord, error)
	SaveExposure(ctx context.Context, userID string, rec domain.ExposureRecord) error
}

// Tracker is the in-memory, indexed view of a user's exposure record.
type Tracker struct {
	mu      sync.Mutex
	userID  string
	store   Store
	counter int64
	// base is the stored counter this tracker last synced with.
	base    int64
	correct map[string]struct{}
	// wrong maps question ID to the counter recorded at the first wrong answer;
	// order keeps the persisted list stable.
	wrong map[string]int64
	order []string
}

// New builds a tracker from a record, repairing corrupt state.
func New(userID string, rec domain.ExposureRecord) *Tracker {
	t := &Tracker{
		userID:  userID,
		counter: rec.AttemptCounter,
		correct: make(map[string]struct{}, len(rec.Correct)),
		wrong:   make(map[string]int64, len(rec.Wrong)),
	}
	if t.counter < 0 {
		t.counter = 0
	}
	for _, id := range rec.Correct {
		if id == "" {
			continue
		}
		t.correct[id] = struct{}{}
	}
	for _, w := range rec.Wrong {
		if w.QuestionID == "" {
			continue
		}
		if _, ok := t.correct[w.QuestionID]; ok {
			continue
		}
		if _, ok := t.wrong[w.QuestionID]; ok {
			continue
		}
		counter := w.Counter
		if counter < 0 {
			counter = 0
		}
		if counter > t.counter {
			counter = t.counter
		}
		t.wrong[w.QuestionID] = counter
		t.order = append(t.order, w.QuestionID)
	}
	t.base = t.counter
	return t
}

// Load reads the user's record from store and returns a tracker bound to it.
func Load(ctx context.Context, store Store, userID string) (*Tracker, error) {
	rec, err := store.LoadExposure(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load exposure for %s: %w", userID, err)
	}
	t := New(userID, rec)
	t.store = store
	return t, nil
}

// Save merges the tracker into the stored record and writes the result back.
// Another session of the same user may have saved since Load, so the stored
// record is re-read: correct sets are united, a wrong answer keeps its earliest
// counter and the questions shown here are added on top of the newer counter.
// Callers serialize saves per user.
func (t *Tracker) Save(ctx context.Context) error {
	if t.store == nil {
		return nil
	}
	stored, err := t.store.LoadExposure(ctx, t.userID)
	if err != nil {
		return fmt.Errorf("reload exposure for %s: %w", t.userID, err)
	}
	t.Merge(New(t.userID, stored))
	rec := t.Record()
	if err := t.store.SaveExposure(ctx, t.userID, rec); err != nil {
		return fmt.Errorf("save exposure for %s: %w", t.userID, err)
	}
	t.mu.Lock()
	t.base = t.counter
	t.mu.Unlock()
	return nil
}

// Merge folds the state of other into t. Merging the same state twice is a no-op.
func (t *Tracker) Merge(other *Tracker) {
	other.mu.Lock()
	otherCounter := other.counter
	otherCorrect := make([]string, 0, len(other.correct))
	for id := range other.correct {
		otherCorrect = append(otherCorrect, id)
	}
	otherWrong := make([]domain.WrongAnswer, 0, len(other.order))
	for _, id := range other.order {
		otherWrong = append(otherWrong, domain.WrongAnswer{QuestionID: id, Counter: other.wrong[id]})
	}
	other.mu.Unlock()

	t.mu.Lock()
	defer t.mu.Unlock()

	shown := t.counter - t.base
	base := t.base
	if otherCounter > base {
		base = otherCounter
	}
	shift := base - t.base
	if shift > 0 {
		// wrong answers recorded here move along with the counter they were taken from
		for id, c := range t.wrong {
			if c > t.base {
				t.wrong[id] = c + shift
			}
		}
	}
	t.base = base
	t.counter = base + shown

	for _, id := range otherCorrect {
		t.correct[id] = struct{}{}
	}
	for _, w := range otherWrong {
		if _, ok := t.correct[w.QuestionID]; ok {
			continue
		}
		if c, ok := t.wrong[w.QuestionID]; ok {
			if w.Counter < c {
				t.wrong[w.QuestionID] = w.Counter
			}
			continue
		}
		t.wrong[w.QuestionID] = w.Counter
		t.order = append(t.order, w.QuestionID)
	}
	kept := t.order[:0]
	for _, id := range t.order {
		if _, ok := t.correct[id]; ok {
			delete(t.wrong, id)
			continue
		}
		kept = append(kept, id)
	}
	t.order = kept
}

// MarkCorrect hides the question permanently.
func (t *Tracker) MarkCorrect(questionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.correct[questionID] = struct{}{}
	if _, ok := t.wrong[questionID]; !ok {
		return
	}
	delete(t.wrong, questionID)
	for i, id := range t.order {
		if id == questionID {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

// MarkWrong records the first wrong answer for a question not yet tracked.
func (t *Tracker) MarkWrong(questionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.correct[questionID]; ok {
		return
	}
	if _, ok := t.wrong[questionID]; ok {
		return
	}
	t.wrong[questionID] = t.counter
	t.order = append(t.order, questionID)
}

// IncrementCounter advances the attempt counter; call once per question shown.
func (t *Tracker) IncrementCounter() {
	t.mu.Lock()
	t.counter++
	t.mu.Unlock()
}

// AttemptCounter returns the current counter value.
func (t *Tracker) AttemptCounter() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counter
}

// IsAvailable reports whether the question may be scheduled now.
func (t *Tracker) IsAvailable(questionID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.correct[questionID]; ok {
		return false
	}
	if recorded, ok := t.wrong[questionID]; ok {
		return t.counter-recorded >= RetryAfter
	}
	return true
}

// Record returns a persistable copy of the state.
func (t *Tracker) Record() domain.ExposureRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec := domain.ExposureRecord{
		Correct:        make([]string, 0, len(t.correct)),
		Wrong:          make([]domain.WrongAnswer, 0, len(t.order)),
		AttemptCounter: t.counter,
	}
	for id := range t.correct {
		rec.Correct = append(rec.Correct, id)
	}
	sort.Strings(rec.Correct)
	for _, id := range t.order {
		rec.Wrong = append(rec.Wrong, domain.WrongAnswer{QuestionID: id, Counter: t.wrong[id]})
	}
	return rec
}
