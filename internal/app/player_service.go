package app

import (
	"context"
	"fmt"
	"time"

	"github.com/digitarmedia-techteam/MintX-sub000/internal/progression"
	"github.com/digitarmedia-techteam/MintX-sub000/internal/streak"
)

// ProgressView is what the profile screen shows about levels.
type ProgressView struct {
	UserID          string            `json:"userId"`
	XP              int64             `json:"xp"`
	Progression     progression.State `json:"progression"`
	SolvedEasy      int64             `json:"solvedEasy"`
	SolvedMedium    int64             `json:"solvedMedium"`
	SolvedHard      int64             `json:"solvedHard"`
	NextSessionSize int               `json:"nextSessionSize"`
}

// ActivityView is the weekly strip, the streak and the yearly heatmap.
type ActivityView struct {
	UserID string            `json:"userId"`
	Week   [7]bool           `json:"week"`
	Streak int               `json:"streak"`
	Year   []streak.DayLevel `json:"year"`
}

// PlayerService derives read-only views from progress and activity.
type PlayerService struct {
	progress ProgressStore
	activity ActivityStore
	now      func() time.Time
}

func NewPlayerService(progress ProgressStore, activity ActivityStore, now func() time.Time) *PlayerService {
	if now == nil {
		now = time.Now
	}
	return &PlayerService{progress: progress, activity: activity, now: now}
}

func (s *PlayerService) Progress(ctx context.Context, userID string) (ProgressView, error) {
	p, err := s.progress.LoadProgress(ctx, userID)
	if err != nil {
		return ProgressView{}, fmt.Errorf("load progress: %w", err)
	}
	p.Sanitize()
	state := progression.For(p.XP)
	return ProgressView{
		UserID:          userID,
		XP:              p.XP,
		Progression:     state,
		SolvedEasy:      p.SolvedEasy,
		SolvedMedium:    p.SolvedMedium,
		SolvedHard:      p.SolvedHard,
		NextSessionSize: progression.SessionSizeFor(state.Level),
	}, nil
}

func (s *PlayerService) Activity(ctx context.Context, userID string) (ActivityView, error) {
	counts, err := s.activity.DailyCounts(ctx, userID)
	if err != nil {
		return ActivityView{}, fmt.Errorf("load activity: %w", err)
	}
	now := s.now()
	keys := make([]string, 0, len(counts))
	for k, n := range counts {
		if n > 0 {
			keys = append(keys, k)
		}
	}
	days := streak.Days(keys, now.Location())
	return ActivityView{
		UserID: userID,
		Week:   streak.CurrentWeekActivity(days, now),
		Streak: streak.CurrentStreak(days, now),
		Year:   streak.YearActivityLevels(counts, now),
	}, nil
}
