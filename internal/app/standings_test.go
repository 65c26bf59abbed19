package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"timed-quiz-service/internal/domain"
)

func TestRank(t *testing.T) {
	base := time.Date(2024, 11, 22, 10, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time {
		ts := base.Add(d)
		return &ts
	}
	participants := []domain.Participant{
		{ID: "b", Score: 2, CreatedAt: base, SubmittedAt: at(3 * time.Minute), Status: domain.StatusCompleted},
		{ID: "a", Score: 2, CreatedAt: base, SubmittedAt: at(3 * time.Minute), Status: domain.StatusCompleted},
		{ID: "c", Score: 3, CreatedAt: base, SubmittedAt: at(9 * time.Minute), Status: domain.StatusTimeout},
		{ID: "d", Score: 2, CreatedAt: base, Status: domain.StatusActive},
		{ID: "e", Score: 2, CreatedAt: base, SubmittedAt: at(time.Minute), Status: domain.StatusCompleted},
	}

	standings := Rank(participants)
	require.Len(t, standings, 5)

	var order []string
	for i, s := range standings {
		order = append(order, s.ID)
		assert.Equal(t, i+1, s.Rank)
	}
	assert.Equal(t, []string{"c", "e", "a", "b", "d"}, order)
	require.NotNil(t, standings[1].DurationMs)
	assert.Equal(t, int64(60000), *standings[1].DurationMs)
	assert.Nil(t, standings[4].DurationMs)
}

func TestRankEmpty(t *testing.T) {
	assert.Empty(t, Rank(nil))
}
