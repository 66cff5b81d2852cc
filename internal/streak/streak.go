// Package streak derives weekly activity, streaks and the yearly heatmap from
// activity timestamps. All comparisons use local calendar days in the
// location of the supplied "now", never rolling 24 hour windows.
package streak

import (
	"time"

	"github.com/digitarmedia-techteam/MintX-sub000/internal/domain"
)

// YearDays is the length of the activity heatmap.
const YearDays = 365

// DayLevel is one cell of the yearly heatmap.
type DayLevel struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
	Level int    `json:"level"`
}

func dayStart(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func dayKey(t time.Time) string {
	return t.Format(domain.DayLayout)
}

func daySet(days []time.Time, loc *time.Location) map[string]struct{} {
	set := make(map[string]struct{}, len(days))
	for _, d := range days {
		set[dayKey(dayStart(d, loc))] = struct{}{}
	}
	return set
}

// CurrentWeekActivity returns Monday..Sunday flags for the week containing now.
func CurrentWeekActivity(days []time.Time, now time.Time) [7]bool {
	loc := now.Location()
	active := daySet(days, loc)
	today := dayStart(now, loc)
	offset := (int(today.Weekday()) + 6) % 7
	monday := today.AddDate(0, 0, -offset)

	var week [7]bool
	for i := range week {
		_, week[i] = active[dayKey(monday.AddDate(0, 0, i))]
	}
	return week
}

// CurrentStreak counts consecutive active days ending today, or ending
// yesterday when today has no activity yet.
func CurrentStreak(days []time.Time, now time.Time) int {
	loc := now.Location()
	active := daySet(days, loc)
	cursor := dayStart(now, loc)

	if _, ok := active[dayKey(cursor)]; !ok {
		cursor = cursor.AddDate(0, 0, -1)
		if _, ok := active[dayKey(cursor)]; !ok {
			return 0
		}
	}

	streak := 0
	for {
		if _, ok := active[dayKey(cursor)]; !ok {
			return streak
		}
		streak++
		cursor = cursor.AddDate(0, 0, -1)
	}
}

// LevelFor maps a daily count onto the heatmap intensity 0..4.
func LevelFor(count int) int {
	switch {
	case count <= 0:
		return 0
	case count <= 2:
		return 1
	case count <= 5:
		return 2
	case count <= 9:
		return 3
	default:
		return 4
	}
}

// YearActivityLevels maps the last 365 days (oldest first, today last) to
// intensity levels. dailyCounts is keyed by domain.DayLayout dates.
func YearActivityLevels(dailyCounts map[string]int, now time.Time) []DayLevel {
	today := dayStart(now, now.Location())
	out := make([]DayLevel, 0, YearDays)
	for i := YearDays - 1; i >= 0; i-- {
		key := dayKey(today.AddDate(0, 0, -i))
		count := dailyCounts[key]
		out = append(out, DayLevel{Date: key, Count: count, Level: LevelFor(count)})
	}
	return out
}

// Days converts activity day keys back into local midnight timestamps.
// Malformed keys are skipped.
func Days(keys []string, loc *time.Location) []time.Time {
	out := make([]time.Time, 0, len(keys))
	for _, k := range keys {
		t, err := time.ParseInLocation(domain.DayLayout, k, loc)
		if err != nil {
			continue
		}
		out = append(out, t)
	}
	return out
}
