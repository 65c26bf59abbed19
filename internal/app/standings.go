package app

import (
	"sort"

	"timed-quiz-service/internal/domain"
)

// Rank orders participants by score desc, then by completion time asc (participants
// without a submission go last), then by id. Ranks start at 1.
func Rank(participants []domain.Participant) []domain.Standing {
	standings := make([]domain.Standing, 0, len(participants))
	for _, p := range participants {
		st := domain.Standing{Participant: p}
		if d, ok := p.Duration(); ok {
			ms := d.Milliseconds()
			st.DurationMs = &ms
		}
		standings = append(standings, st)
	}

	sort.SliceStable(standings, func(i, j int) bool {
		a, b := standings[i], standings[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		switch {
		case a.DurationMs != nil && b.DurationMs == nil:
			return true
		case a.DurationMs == nil && b.DurationMs != nil:
			return false
		case a.DurationMs != nil && *a.DurationMs != *b.DurationMs:
			return *a.DurationMs < *b.DurationMs
		}
		return a.ID < b.ID
	})

	for i := range standings {
		standings[i].Rank = i + 1
	}
	return standings
}
