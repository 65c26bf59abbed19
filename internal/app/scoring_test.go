package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"timed-quiz-service/internal/domain"
)

func TestScore(t *testing.T) {
	key := domain.AnswerKey{"1": "Paris", "2": "4", "3": "Blue Whale", "4": ""}

	cases := []struct {
		name    string
		answers map[string]string
		want    int
	}{
		{name: "all correct", answers: map[string]string{"1": "Paris", "2": "4", "3": "Blue Whale"}, want: 3},
		{name: "case and whitespace", answers: map[string]string{"1": "  pArIs\t", "3": "blue whale "}, want: 2},
		{name: "wrong answers", answers: map[string]string{"1": "Rome", "2": "5"}, want: 0},
		{name: "unknown question ignored", answers: map[string]string{"99": "Paris", "2": "4"}, want: 1},
		{name: "empty correct answer never scores", answers: map[string]string{"4": ""}, want: 0},
		{name: "nothing answered", answers: nil, want: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Score(tc.answers, key))
		})
	}
}

func TestScoreBoundedByKeySize(t *testing.T) {
	key := domain.AnswerKey{"1": "a", "2": "b"}
	answers := map[string]string{"1": "a", "2": "b", "3": "c", "4": "d"}
	assert.LessOrEqual(t, Score(answers, key), len(key))
}

func TestNormalizeAnswer(t *testing.T) {
	assert.Equal(t, "paris", NormalizeAnswer("  PARIS \n"))
	assert.Equal(t, "", NormalizeAnswer("   "))
}
