// Package progression maps cumulative XP onto the level staircase.
package progression

const (
	// BasePoints is the XP needed to clear level 1.
	BasePoints = 30
	// StepPoints is added to the requirement for every level after the first.
	StepPoints = 5

	minSessionSize = 10
	maxSessionSize = 35
)

// State is the derived progression view for a given XP total.
type State struct {
	Level                  int   `json:"level"`
	PointsIntoLevel        int64 `json:"pointsIntoLevel"`
	PointsRequiredForLevel int64 `json:"pointsRequiredForLevel"`
	Percent                int   `json:"percent"`
	PointsToNext           int64 `json:"pointsToNext"`
}

// RequiredFor returns the XP needed to clear level.
func RequiredFor(level int) int64 {
	if level < 1 {
		level = 1
	}
	return BasePoints + StepPoints*int64(level-1)
}

// For walks the staircase forward while xp reaches the next threshold.
func For(xp int64) State {
	if xp < 0 {
		xp = 0
	}
	level := 1
	floor := int64(0)
	for {
		required := RequiredFor(level)
		if xp < floor+required {
			into := xp - floor
			return State{
				Level:                  level,
				PointsIntoLevel:        into,
				PointsRequiredForLevel: required,
				Percent:                int(into * 100 / required),
				PointsToNext:           required - into,
			}
		}
		floor += required
		level++
	}
}

// LevelFor is a shorthand for For(xp).Level.
func LevelFor(xp int64) int {
	return For(xp).Level
}

// SessionSizeFor returns how many questions a session at level should hold.
func SessionSizeFor(level int) int {
	if level < 1 {
		level = 1
	}
	size := minSessionSize + 2*(level-1)
	if size > maxSessionSize {
		return maxSessionSize
	}
	return size
}

// ApplyXP adds delta to the cumulative XP, never going below zero.
func ApplyXP(current, delta int64) int64 {
	if current < 0 {
		current = 0
	}
	next := current + delta
	if next < 0 {
		return 0
	}
	return next
}
