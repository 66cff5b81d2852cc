package streak

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Wednesday afternoon.
var now = time.Date(2026, time.October, 14, 15, 30, 0, 0, time.UTC)

func daysAgo(n int) time.Time {
	return now.AddDate(0, 0, -n).Add(-3 * time.Hour)
}

func TestCurrentStreak(t *testing.T) {
	tests := []struct {
		name string
		days []time.Time
		want int
	}{
		{"empty", nil, 0},
		{"today only", []time.Time{daysAgo(0)}, 1},
		{"yesterday only", []time.Time{daysAgo(1)}, 1},
		{"two days ago only", []time.Time{daysAgo(2)}, 0},
		{"three consecutive", []time.Time{daysAgo(0), daysAgo(1), daysAgo(2)}, 3},
		{"gap breaks streak", []time.Time{daysAgo(0), daysAgo(1), daysAgo(3)}, 2},
		{"grace from yesterday", []time.Time{daysAgo(1), daysAgo(2), daysAgo(3)}, 3},
		{"duplicates in one day", []time.Time{daysAgo(0), daysAgo(0), now}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CurrentStreak(tt.days, now))
		})
	}
}

func TestCurrentStreakUsesCalendarDays(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	// 00:10 local on the 15th; activity at 23:50 local on the 13th is "two days ago".
	localNow := time.Date(2026, time.October, 15, 0, 10, 0, 0, loc)
	activity := time.Date(2026, time.October, 13, 23, 50, 0, 0, loc)
	assert.Equal(t, 0, CurrentStreak([]time.Time{activity}, localNow))

	// 23:50 on the 14th is yesterday even though less than an hour passed.
	recent := time.Date(2026, time.October, 14, 23, 50, 0, 0, loc)
	assert.Equal(t, 1, CurrentStreak([]time.Time{recent}, localNow))
}

func TestCurrentWeekActivity(t *testing.T) {
	// Monday the 12th, Wednesday the 14th; previous Sunday must not count.
	days := []time.Time{daysAgo(2), daysAgo(0), daysAgo(3)}
	week := CurrentWeekActivity(days, now)
	assert.Equal(t, [7]bool{true, false, true, false, false, false, false}, week)
}

func TestCurrentWeekActivityOnSunday(t *testing.T) {
	sunday := time.Date(2026, time.October, 18, 9, 0, 0, 0, time.UTC)
	week := CurrentWeekActivity([]time.Time{sunday, sunday.AddDate(0, 0, -6)}, sunday)
	assert.True(t, week[0])
	assert.True(t, week[6])
}

func TestYearActivityLevels(t *testing.T) {
	counts := map[string]int{
		"2026-10-14": 10,
		"2026-10-13": 6,
		"2026-10-12": 3,
		"2026-10-11": 1,
		"2025-10-15": 2,
		"2025-10-14": 50,
	}
	levels := YearActivityLevels(counts, now)
	require.Len(t, levels, YearDays)

	last := levels[len(levels)-1]
	assert.Equal(t, DayLevel{Date: "2026-10-14", Count: 10, Level: 4}, last)
	assert.Equal(t, 3, levels[len(levels)-2].Level)
	assert.Equal(t, 2, levels[len(levels)-3].Level)
	assert.Equal(t, 1, levels[len(levels)-4].Level)
	assert.Equal(t, 0, levels[len(levels)-5].Level)

	assert.Equal(t, "2025-10-15", levels[0].Date)
	assert.Equal(t, 1, levels[0].Level)
}

func TestLevelFor(t *testing.T) {
	for count, want := range map[int]int{0: 0, 1: 1, 2: 1, 3: 2, 5: 2, 6: 3, 9: 3, 10: 4, 100: 4, -1: 0} {
		assert.Equal(t, want, LevelFor(count), "count=%d", count)
	}
}

func TestDaysSkipsMalformedKeys(t *testing.T) {
	days := Days([]string{"2026-10-14", "bogus"}, time.UTC)
	require.Len(t, days, 1)
	assert.Equal(t, 1, CurrentStreak(days, now))
}
