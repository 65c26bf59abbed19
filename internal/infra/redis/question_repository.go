package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	"timed-quiz-service/internal/domain"
)

// QuestionLoader fetches the question bank from a backing store (Postgres, YAML file, ...).
type QuestionLoader interface {
	LoadQuestions(ctx context.Context) ([]domain.Question, error)
}

// QuestionRepository caches the question bank in Redis and falls back to a loader on miss.
// The client-facing part and the answer key live under separate keys:
//
//	SET  quiz:questions  [{id, question, options}, ...]
//	HSET quiz:answers    {questionID} {correctAnswer}
type QuestionRepository struct {
	client *redis.Client
	loader QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group
	log    *slog.Logger

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewQuestionRepository(client *redis.Client, loader QuestionLoader, ttl time.Duration) *QuestionRepository {
	return &QuestionRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		log:    slog.Default().With("component", "redis-questions"),
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuestionRepository) Questions(ctx context.Context) ([]domain.Question, error) {
	if questions, ok := r.fromCache(ctx); ok {
		return questions, nil
	}

	result, err, _ := r.sf.Do(questionsKey, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if questions, ok := r.fromCache(ctx); ok {
			return questions, nil
		}

		questions, err := r.loader.LoadQuestions(ctx)
		if err != nil {
			return nil, err
		}
		if err := r.store(ctx, questions); err != nil {
			r.log.Warn("cache question bank", "err", err)
		}
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

// Invalidate drops the cached bank, e.g. after seeding.
func (r *QuestionRepository) Invalidate(ctx context.Context) error {
	return r.client.Del(ctx, questionsKey, answersKey).Err()
}

func (r *QuestionRepository) fromCache(ctx context.Context) ([]domain.Question, bool) {
	var (
		blob    *redis.StringCmd
		answers *redis.MapStringStringCmd
	)
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		blob = pipe.Get(ctx, questionsKey)
		answers = pipe.HGetAll(ctx, answersKey)
		return nil
	})
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.log.Debug("question cache unavailable", "err", err)
		}
		return nil, false
	}

	var public []domain.PublicQuestion
	if err := json.Unmarshal([]byte(blob.Val()), &public); err != nil {
		return nil, false
	}
	key := answers.Val()
	questions := make([]domain.Question, 0, len(public))
	for _, q := range public {
		correct, ok := key[q.ID]
		if !ok {
			// answer hash evicted or partially lost: serving it would score every submit as zero
			r.log.Warn("answer key missing from cache, reloading", "question", q.ID)
			return nil, false
		}
		questions = append(questions, domain.Question{
			ID:            q.ID,
			Text:          q.Text,
			Options:       q.Options,
			CorrectAnswer: correct,
		})
	}
	return questions, true
}

func (r *QuestionRepository) store(ctx context.Context, questions []domain.Question) error {
	public := make([]domain.PublicQuestion, 0, len(questions))
	answers := make(map[string]interface{}, len(questions))
	for _, q := range questions {
		public = append(public, q.Public())
		answers[q.ID] = q.CorrectAnswer
	}
	blob, err := json.Marshal(public)
	if err != nil {
		return err
	}

	ttl := r.ttlWithJitter()
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, answersKey)
		pipe.Set(ctx, questionsKey, blob, ttl)
		if len(answers) > 0 {
			pipe.HSet(ctx, answersKey, answers)
			if ttl > 0 {
				pipe.Expire(ctx, answersKey, ttl)
			}
		}
		return nil
	})
	return err
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
