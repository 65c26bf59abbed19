package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"timed-quiz-service/internal/domain"
)

// QuestionLoader loads the question bank and its answer key from Postgres.
// Options are stored as a JSONB array and decoded here, once.
type QuestionLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionLoader(pool *pgxpool.Pool) *QuestionLoader {
	return &QuestionLoader{pool: pool}
}

func (l *QuestionLoader) LoadQuestions(ctx context.Context) ([]domain.Question, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT q.id, q.question_text, q.options, COALESCE(c.answer, '')
		FROM questions q
		LEFT JOIN correct_answers c ON c.question_id = q.id
		ORDER BY q.position, q.id
	`)
	if err != nil {
		return nil, domain.StorageFault("load questions", err)
	}
	defer rows.Close()

	var questions []domain.Question
	for rows.Next() {
		var (
			q   domain.Question
			raw []byte
		)
		if err := rows.Scan(&q.ID, &q.Text, &raw, &q.CorrectAnswer); err != nil {
			return nil, domain.StorageFault("scan question", err)
		}
		if err := json.Unmarshal(raw, &q.Options); err != nil {
			return nil, fmt.Errorf("unmarshal options of question %s: %w", q.ID, err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StorageFault("iterate questions", err)
	}
	return questions, nil
}
