package app

import (
	"strings"

	"timed-quiz-service/internal/domain"
)

// NormalizeAnswer trims surrounding whitespace and lower-cases answer text.
func NormalizeAnswer(answer string) string {
	return strings.ToLower(strings.TrimSpace(answer))
}

// Score counts one point for every question in key whose submitted answer matches the
// correct answer after normalization. Answers for unknown questions are ignored and
// missing answers score zero. Score is pure: same inputs, same result.
func Score(answers map[string]string, key domain.AnswerKey) int {
	score := 0
	for questionID, correct := range key {
		want := NormalizeAnswer(correct)
		if want == "" {
			continue
		}
		got, ok := answers[questionID]
		if !ok {
			continue
		}
		if NormalizeAnswer(got) == want {
			score++
		}
	}
	return score
}
