package scoring

import "github.com/digitarmedia-techteam/MintX-sub000/internal/domain"

// Summary is the result of a completed session.
type Summary struct {
	Total               int                       `json:"total"`
	Correct             int                       `json:"correct"`
	Wrong               int                       `json:"wrong"`
	Skipped             int                       `json:"skipped"`
	CorrectByDifficulty map[domain.Difficulty]int `json:"correctByDifficulty"`
	CorrectPoints       int                       `json:"correctPoints"`
	NegativePoints      int                       `json:"negativePoints"`
	TotalPoints         int                       `json:"totalPoints"`
}

// Settlement is what a summary does to the player's economy.
type Settlement struct {
	// LedgerDelta never goes below SessionPenalty, however bad the session.
	LedgerDelta int64 `json:"ledgerDelta"`
	// XPDelta is the unclamped total; the XP accumulator clamps at zero.
	XPDelta int64                       `json:"xpDelta"`
	Solved  map[domain.Difficulty]int64 `json:"solved"`
}

// Settle converts a summary into ledger, XP and solved-counter changes.
// The penalty floor is scoped to this one session.
func Settle(sum Summary) Settlement {
	st := Settlement{
		LedgerDelta: int64(sum.TotalPoints),
		XPDelta:     int64(sum.TotalPoints),
		Solved:      make(map[domain.Difficulty]int64, len(sum.CorrectByDifficulty)),
	}
	if sum.TotalPoints < 0 {
		st.LedgerDelta = SessionPenalty
	}
	for d, n := range sum.CorrectByDifficulty {
		if n > 0 {
			st.Solved[d] = int64(n)
		}
	}
	return st
}
