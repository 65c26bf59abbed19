package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"timed-quiz-service/internal/domain"
)

const participantColumns = `id, display_name, status, score, COALESCE(answers::text, ''), created_at, submitted_at`

// ParticipantStore keeps participants in Postgres. Transitions are a single
// UPDATE ... WHERE status = 'active', so the row lock decides concurrent requests.
type ParticipantStore struct {
	pool *pgxpool.Pool
}

func NewParticipantStore(pool *pgxpool.Pool) *ParticipantStore {
	return &ParticipantStore{pool: pool}
}

func (s *ParticipantStore) Create(ctx context.Context, p domain.Participant) (domain.Participant, bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO participants (id, display_name, status, score, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`, p.ID, p.DisplayName, string(p.Status), p.Score, p.CreatedAt)
	if err != nil {
		return domain.Participant{}, false, domain.StorageFault("insert participant", err)
	}
	stored, err := s.Get(ctx, p.ID)
	if err != nil {
		return domain.Participant{}, false, err
	}
	return stored, tag.RowsAffected() == 1, nil
}

func (s *ParticipantStore) Get(ctx context.Context, id string) (domain.Participant, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+participantColumns+` FROM participants WHERE id = $1`, id)
	p, err := scanParticipant(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	if err != nil {
		return domain.Participant{}, domain.StorageFault("select participant", err)
	}
	return p, nil
}

func (s *ParticipantStore) Transition(ctx context.Context, id string, t domain.Transition) (domain.Participant, error) {
	var answers *string
	if t.Answers != nil {
		raw, err := json.Marshal(t.Answers)
		if err != nil {
			return domain.Participant{}, fmt.Errorf("marshal answers: %w", err)
		}
		encoded := string(raw)
		answers = &encoded
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE participants
		SET status = $2,
		    submitted_at = $3,
		    score = COALESCE($4::integer, score),
		    answers = COALESCE($5::jsonb, answers)
		WHERE id = $1 AND status = 'active'
		RETURNING `+participantColumns,
		id, string(t.Status), t.At, t.Score, answers)
	p, err := scanParticipant(row)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Participant{}, domain.StorageFault("update participant", err)
	}

	// The guard failed: either the id is unknown or another request won.
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM participants WHERE id = $1)`, id).Scan(&exists); err != nil {
		return domain.Participant{}, domain.StorageFault("check participant", err)
	}
	if !exists {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	return domain.Participant{}, domain.ErrAlreadyFinalized
}

func (s *ParticipantStore) List(ctx context.Context) ([]domain.Participant, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+participantColumns+`
		FROM participants
		ORDER BY submitted_at DESC NULLS LAST, id ASC
	`)
	if err != nil {
		return nil, domain.StorageFault("list participants", err)
	}
	defer rows.Close()

	participants := make([]domain.Participant, 0)
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, domain.StorageFault("scan participant", err)
		}
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StorageFault("iterate participants", err)
	}
	return participants, nil
}

func (s *ParticipantStore) ExpireActive(ctx context.Context, createdBefore, at time.Time) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		UPDATE participants
		SET status = 'timeout', submitted_at = $2, score = 0, answers = '{}'::jsonb
		WHERE status = 'active' AND created_at < $1
		RETURNING id
	`, createdBefore, at)
	if err != nil {
		return nil, domain.StorageFault("expire participants", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, domain.StorageFault("scan expired id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StorageFault("iterate expired ids", err)
	}
	return ids, nil
}

func scanParticipant(row pgx.Row) (domain.Participant, error) {
	var (
		p       domain.Participant
		status  string
		answers string
	)
	if err := row.Scan(&p.ID, &p.DisplayName, &status, &p.Score, &answers, &p.CreatedAt, &p.SubmittedAt); err != nil {
		return domain.Participant{}, err
	}
	p.Status = domain.Status(status)
	if answers != "" {
		if err := json.Unmarshal([]byte(answers), &p.Answers); err != nil {
			return domain.Participant{}, fmt.Errorf("unmarshal answers: %w", err)
		}
	}
	return p, nil
}
