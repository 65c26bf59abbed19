package memory

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
	"timed-quiz-service/internal/domain"
)

// QuestionFile is the YAML layout of a question bank:
//
//	questions:
//	  - id: "1"
//	    question: What is the capital of France?
//	    options: [Paris, Rome, Madrid]
//	    answer: Paris
type QuestionFile struct {
	Questions []domain.Question `yaml:"questions"`
}

// LoadQuestionFile reads and validates a YAML question bank.
func LoadQuestionFile(path string) ([]domain.Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseQuestionFile(data)
}

func ParseQuestionFile(data []byte) ([]domain.Question, error) {
	var file QuestionFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse question file: %w", err)
	}
	seen := make(map[string]struct{}, len(file.Questions))
	for i, q := range file.Questions {
		if strings.TrimSpace(q.ID) == "" {
			return nil, fmt.Errorf("question %d: %w", i, domain.Invalid("id", "required"))
		}
		if _, dup := seen[q.ID]; dup {
			return nil, fmt.Errorf("question %s: %w", q.ID, domain.Invalid("id", "duplicate"))
		}
		seen[q.ID] = struct{}{}
		if len(q.Options) < 2 {
			return nil, fmt.Errorf("question %s: %w", q.ID, domain.Invalid("options", "need at least two"))
		}
		if !hasOption(q) {
			return nil, fmt.Errorf("question %s: %w", q.ID, domain.Invalid("answer", "must be one of the options"))
		}
	}
	return file.Questions, nil
}

func hasOption(q domain.Question) bool {
	want := strings.ToLower(strings.TrimSpace(q.CorrectAnswer))
	if want == "" {
		return false
	}
	for _, opt := range q.Options {
		if strings.ToLower(strings.TrimSpace(opt)) == want {
			return true
		}
	}
	return false
}
