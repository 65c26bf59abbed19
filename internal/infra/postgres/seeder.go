package postgres

import (
	"context"
	"database/sql"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"timed-quiz-service/internal/domain"
)

// OpenBun opens a bun handle over the pgdriver connector.
func OpenBun(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

type questionRow struct {
	bun.BaseModel `bun:"table:questions"`

	ID       string   `bun:"id,pk"`
	Position int      `bun:"position"`
	Text     string   `bun:"question_text"`
	Options  []string `bun:"options,type:jsonb"`
}

type correctAnswerRow struct {
	bun.BaseModel `bun:"table:correct_answers"`

	QuestionID string `bun:"question_id,pk"`
	Answer     string `bun:"answer"`
}

// Seeder writes a question bank and its answer key.
type Seeder struct {
	db *bun.DB
}

func NewSeeder(db *bun.DB) *Seeder {
	return &Seeder{db: db}
}

// Seed upserts questions in file order. With replace, questions missing from the bank are removed.
func (s *Seeder) Seed(ctx context.Context, questions []domain.Question, replace bool) error {
	if len(questions) == 0 {
		return domain.Invalid("questions", "empty bank")
	}
	rows := make([]questionRow, 0, len(questions))
	answers := make([]correctAnswerRow, 0, len(questions))
	ids := make([]string, 0, len(questions))
	for i, q := range questions {
		rows = append(rows, questionRow{ID: q.ID, Position: i + 1, Text: q.Text, Options: q.Options})
		answers = append(answers, correctAnswerRow{QuestionID: q.ID, Answer: q.CorrectAnswer})
		ids = append(ids, q.ID)
	}

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if replace {
			if _, err := tx.NewDelete().
				Model((*questionRow)(nil)).
				Where("id NOT IN (?)", bun.In(ids)).
				Exec(ctx); err != nil {
				return err
			}
		}
		if _, err := tx.NewInsert().
			Model(&rows).
			On("CONFLICT (id) DO UPDATE").
			Set("position = EXCLUDED.position").
			Set("question_text = EXCLUDED.question_text").
			Set("options = EXCLUDED.options").
			Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewInsert().
			Model(&answers).
			On("CONFLICT (question_id) DO UPDATE").
			Set("answer = EXCLUDED.answer").
			Exec(ctx)
		return err
	})
	return domain.StorageFault("seed questions", err)
}
