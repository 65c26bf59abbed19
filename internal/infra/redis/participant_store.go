package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"timed-quiz-service/internal/domain"
)

// Each participant is a hash; the scripts below run atomically inside Redis, which
// gives the create-if-absent and the status compare-and-swap without client locks.
var (
	createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1], 'id', ARGV[1], 'name', ARGV[2], 'status', ARGV[3], 'score', ARGV[4], 'created_at', ARGV[5])
redis.call('SADD', KEYS[2], ARGV[1])
return 1
`)

	transitionScript = redis.NewScript(`
local status = redis.call('HGET', KEYS[1], 'status')
if not status then
  return -1
end
if status ~= 'active' then
  return 0
end
redis.call('HSET', KEYS[1], 'status', ARGV[1], 'submitted_at', ARGV[2])
if ARGV[3] ~= '' then
  redis.call('HSET', KEYS[1], 'score', ARGV[3])
end
if ARGV[4] ~= '' then
  redis.call('HSET', KEYS[1], 'answers', ARGV[4])
end
return 1
`)
)

// ParticipantStore keeps participants in Redis hashes indexed by a set.
type ParticipantStore struct {
	client *redis.Client
}

func NewParticipantStore(client *redis.Client) *ParticipantStore {
	return &ParticipantStore{client: client}
}

func (s *ParticipantStore) Create(ctx context.Context, p domain.Participant) (domain.Participant, bool, error) {
	created, err := createScript.Run(ctx, s.client,
		[]string{participantKey(p.ID), participantsIndex},
		p.ID, p.DisplayName, string(p.Status), p.Score, formatTime(p.CreatedAt),
	).Int()
	if err != nil {
		return domain.Participant{}, false, domain.StorageFault("create participant", err)
	}
	stored, err := s.Get(ctx, p.ID)
	if err != nil {
		return domain.Participant{}, false, err
	}
	return stored, created == 1, nil
}

func (s *ParticipantStore) Get(ctx context.Context, id string) (domain.Participant, error) {
	fields, err := s.client.HGetAll(ctx, participantKey(id)).Result()
	if err != nil {
		return domain.Participant{}, domain.StorageFault("get participant", err)
	}
	if len(fields) == 0 {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	return decodeParticipant(fields)
}

func (s *ParticipantStore) Transition(ctx context.Context, id string, t domain.Transition) (domain.Participant, error) {
	if err := s.transition(ctx, id, t); err != nil {
		return domain.Participant{}, err
	}
	return s.Get(ctx, id)
}

func (s *ParticipantStore) transition(ctx context.Context, id string, t domain.Transition) error {
	score := ""
	if t.Score != nil {
		score = strconv.Itoa(*t.Score)
	}
	answers := ""
	if t.Answers != nil {
		raw, err := json.Marshal(t.Answers)
		if err != nil {
			return fmt.Errorf("marshal answers: %w", err)
		}
		answers = string(raw)
	}

	res, err := transitionScript.Run(ctx, s.client,
		[]string{participantKey(id)},
		string(t.Status), formatTime(t.At), score, answers,
	).Int()
	if err != nil {
		return domain.StorageFault("transition participant", err)
	}
	switch res {
	case -1:
		return domain.ErrParticipantNotFound
	case 0:
		return domain.ErrAlreadyFinalized
	}
	return nil
}

func (s *ParticipantStore) List(ctx context.Context) ([]domain.Participant, error) {
	participants, err := s.all(ctx)
	if err != nil {
		return nil, err
	}
	domain.SortBySubmission(participants)
	return participants, nil
}

func (s *ParticipantStore) ExpireActive(ctx context.Context, createdBefore, at time.Time) ([]string, error) {
	participants, err := s.all(ctx)
	if err != nil {
		return nil, err
	}
	zero := 0
	var expired []string
	for _, p := range participants {
		if p.Status != domain.StatusActive || !p.CreatedAt.Before(createdBefore) {
			continue
		}
		err := s.transition(ctx, p.ID, domain.Transition{
			Status:  domain.StatusTimeout,
			At:      at,
			Score:   &zero,
			Answers: map[string]string{},
		})
		if errors.Is(err, domain.ErrAlreadyFinalized) {
			// finalized by a client request since the scan
			continue
		}
		if err != nil {
			return expired, err
		}
		expired = append(expired, p.ID)
	}
	sort.Strings(expired)
	return expired, nil
}

func (s *ParticipantStore) all(ctx context.Context) ([]domain.Participant, error) {
	ids, err := s.client.SMembers(ctx, participantsIndex).Result()
	if err != nil {
		return nil, domain.StorageFault("list participant ids", err)
	}
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, participantKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, domain.StorageFault("load participants", err)
	}

	participants := make([]domain.Participant, 0, len(ids))
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		p, err := decodeParticipant(fields)
		if err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}
	return participants, nil
}

func decodeParticipant(fields map[string]string) (domain.Participant, error) {
	p := domain.Participant{
		ID:          fields["id"],
		DisplayName: fields["name"],
		Status:      domain.Status(fields["status"]),
	}
	if raw := fields["score"]; raw != "" {
		score, err := strconv.Atoi(raw)
		if err != nil {
			return domain.Participant{}, fmt.Errorf("participant %s: bad score %q", p.ID, raw)
		}
		p.Score = score
	}
	createdAt, err := parseTime(fields["created_at"])
	if err != nil {
		return domain.Participant{}, fmt.Errorf("participant %s: created_at: %w", p.ID, err)
	}
	p.CreatedAt = createdAt
	if raw := fields["submitted_at"]; raw != "" {
		at, err := parseTime(raw)
		if err != nil {
			return domain.Participant{}, fmt.Errorf("participant %s: submitted_at: %w", p.ID, err)
		}
		p.SubmittedAt = &at
	}
	if raw := fields["answers"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &p.Answers); err != nil {
			return domain.Participant{}, fmt.Errorf("participant %s: answers: %w", p.ID, err)
		}
	}
	return p, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(raw string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, raw)
}
