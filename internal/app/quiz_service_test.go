package app_test

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/domain"
	"timed-quiz-service/internal/infra/memory"
)

var t0 = time.Date(2024, 11, 22, 10, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestService(settings app.Settings) (*app.QuizService, *memory.ParticipantStore, *clock) {
	store := memory.NewParticipantStore()
	questions := memory.NewQuestionRepository(memory.NewStaticQuestionLoader(sampleQuestions()), time.Minute)
	clk := &clock{now: t0}
	return app.NewQuizServiceWithClock(store, questions, settings, clk.Now), store, clk
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{ID: "1", Text: "Capital of France?", Options: []string{"Paris", "Rome", "Madrid"}, CorrectAnswer: "Paris"},
		{ID: "2", Text: "What is 2 + 2?", Options: []string{"3", "4", "5"}, CorrectAnswer: "4"},
	}
}

func TestLoginThenSubmitCompletes(t *testing.T) {
	ctx := context.Background()
	service, _, clk := newTestService(app.Settings{Duration: 10 * time.Minute})

	p, err := service.Login(ctx, "P1", "Alice")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, p.Status)
	assert.Equal(t, t0, p.CreatedAt)
	assert.Nil(t, p.SubmittedAt)

	clk.Advance(90 * time.Second)
	res, err := service.Submit(ctx, "P1", map[string]string{"1": " paris ", "2": "5"}, false)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, res.Status)
	assert.Equal(t, 1, res.Score)
	require.NotNil(t, res.SubmittedAt)
	assert.Equal(t, t0.Add(90*time.Second), *res.SubmittedAt)

	status, exists, err := service.CheckParticipant(ctx, "P1")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, domain.StatusCompleted, status)
}

func TestClientTimeoutSubmit(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestService(app.Settings{})

	_, err := service.Login(ctx, "P2", "Bob")
	require.NoError(t, err)

	res, err := service.Submit(ctx, "P2", map[string]string{"1": "Paris"}, true)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusTimeout, res.Status)
	assert.Equal(t, 1, res.Score, "answers given before the countdown ran out still count")
}

func TestDisqualifyThenSubmitRejected(t *testing.T) {
	ctx := context.Background()
	service, store, _ := newTestService(app.Settings{})

	_, err := service.Login(ctx, "P3", "Carol")
	require.NoError(t, err)
	require.NoError(t, service.Disqualify(ctx, "P3"))

	_, err = service.Submit(ctx, "P3", map[string]string{"1": "Paris", "2": "4"}, false)
	assert.ErrorIs(t, err, domain.ErrAlreadyFinalized)

	p, err := store.Get(ctx, "P3")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDisqualified, p.Status)
	assert.Equal(t, 0, p.Score)
	assert.Empty(t, p.Answers)
	assert.NotNil(t, p.SubmittedAt)
}

func TestLoginAfterFinalizedRejected(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestService(app.Settings{})

	_, err := service.Login(ctx, "P4", "Dan")
	require.NoError(t, err)
	_, err = service.Submit(ctx, "P4", nil, false)
	require.NoError(t, err)

	_, err = service.Login(ctx, "P4", "Dan")
	assert.ErrorIs(t, err, domain.ErrAlreadyFinalized)
}

func TestLoginResumesActiveParticipant(t *testing.T) {
	ctx := context.Background()
	service, _, clk := newTestService(app.Settings{})

	first, err := service.Login(ctx, "P5", "Eve")
	require.NoError(t, err)
	clk.Advance(time.Minute)

	again, err := service.Login(ctx, "P5", "Someone Else")
	require.NoError(t, err)
	assert.Equal(t, first.CreatedAt, again.CreatedAt)
	assert.Equal(t, "Eve", again.DisplayName)
	assert.Equal(t, domain.StatusActive, again.Status)
}

func TestLoginValidation(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestService(app.Settings{})

	cases := []struct {
		name string
		id   string
		user string
	}{
		{name: "empty id", id: "  ", user: "Alice"},
		{name: "empty name", id: "P1", user: ""},
		{name: "long id", id: string(make([]byte, 65)), user: "Alice"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := service.Login(ctx, tc.id, tc.user)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestSubmitIsIdempotent(t *testing.T) {
	ctx := context.Background()
	service, store, clk := newTestService(app.Settings{})

	_, err := service.Login(ctx, "P1", "Alice")
	require.NoError(t, err)
	first, err := service.Submit(ctx, "P1", map[string]string{"1": "Paris", "2": "4"}, false)
	require.NoError(t, err)

	clk.Advance(time.Minute)
	_, err = service.Submit(ctx, "P1", map[string]string{"1": "Rome"}, true)
	assert.ErrorIs(t, err, domain.ErrAlreadyFinalized)

	p, err := store.Get(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, p.Status)
	assert.Equal(t, 2, p.Score)
	assert.Equal(t, *first.SubmittedAt, *p.SubmittedAt)
}

func TestSubmitUnknownParticipant(t *testing.T) {
	service, _, _ := newTestService(app.Settings{})
	_, err := service.Submit(context.Background(), "ghost", nil, false)
	assert.ErrorIs(t, err, domain.ErrParticipantNotFound)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSubmitRejectsEmptyQuestionID(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestService(app.Settings{})
	_, err := service.Login(ctx, "P1", "Alice")
	require.NoError(t, err)

	_, err = service.Submit(ctx, "P1", map[string]string{" ": "Paris"}, false)
	assert.ErrorIs(t, err, domain.ErrValidation)

	status, _, err := service.CheckParticipant(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, status)
}

func TestSubmitRacesDisqualify(t *testing.T) {
	ctx := context.Background()
	for round := 0; round < 50; round++ {
		service, store, _ := newTestService(app.Settings{})
		_, err := service.Login(ctx, "P1", "Alice")
		require.NoError(t, err)

		var (
			wg        sync.WaitGroup
			submitErr error
			dqErr     error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, submitErr = service.Submit(ctx, "P1", map[string]string{"1": "Paris"}, false)
		}()
		go func() {
			defer wg.Done()
			dqErr = service.Disqualify(ctx, "P1")
		}()
		wg.Wait()

		p, err := store.Get(ctx, "P1")
		require.NoError(t, err)
		switch {
		case submitErr == nil:
			assert.ErrorIs(t, dqErr, domain.ErrAlreadyFinalized)
			assert.Equal(t, domain.StatusCompleted, p.Status)
			assert.Equal(t, 1, p.Score)
		case dqErr == nil:
			assert.ErrorIs(t, submitErr, domain.ErrAlreadyFinalized)
			assert.Equal(t, domain.StatusDisqualified, p.Status)
			assert.Equal(t, 0, p.Score)
		default:
			t.Fatalf("round %d: both requests failed: %v / %v", round, submitErr, dqErr)
		}
	}
}

func TestRandomTransitionSequences(t *testing.T) {
	ctx := context.Background()
	rnd := rand.New(rand.NewSource(42))

	for round := 0; round < 200; round++ {
		service, store, clk := newTestService(app.Settings{Duration: time.Minute})
		ids := []string{"A", "B", "C"}
		finalized := map[string]domain.Status{}

		for step := 0; step < 12; step++ {
			id := ids[rnd.Intn(len(ids))]
			clk.Advance(time.Duration(rnd.Intn(40)) * time.Second)

			var (
				want domain.Status
				err  error
			)
			switch rnd.Intn(5) {
			case 0:
				_, err = service.Login(ctx, id, "name-"+id)
			case 1:
				want = domain.StatusCompleted
				_, err = service.Submit(ctx, id, map[string]string{"1": "Paris"}, false)
			case 2:
				want = domain.StatusTimeout
				_, err = service.Submit(ctx, id, nil, true)
			case 3:
				want = domain.StatusDisqualified
				err = service.Disqualify(ctx, id)
			case 4:
				_, err = service.ExpireOverdue(ctx)
			}
			if want != "" && err == nil {
				_, already := finalized[id]
				require.False(t, already, "round %d: %s finalized twice", round, id)
				finalized[id] = want
			}
			if err != nil && !errors.Is(err, domain.ErrAlreadyFinalized) && !errors.Is(err, domain.ErrParticipantNotFound) {
				t.Fatalf("round %d: unexpected error %v", round, err)
			}
		}

		list, err := store.List(ctx)
		require.NoError(t, err)
		for _, p := range list {
			assert.Equal(t, p.Status != domain.StatusActive, p.SubmittedAt != nil, "round %d: %+v", round, p)
			assert.True(t, p.Status.Valid())
			if st, ok := finalized[p.ID]; ok {
				assert.Equal(t, st, p.Status, "round %d: terminal status changed", round)
			}
			if p.SubmittedAt != nil {
				assert.False(t, p.SubmittedAt.Before(p.CreatedAt))
			}
		}
	}
}

func TestGetQuestionsHidesAnswers(t *testing.T) {
	service, _, _ := newTestService(app.Settings{})

	questions, err := service.GetQuestions(context.Background())
	require.NoError(t, err)
	require.Len(t, questions, 2)
	assert.Equal(t, "1", questions[0].ID)
	assert.Equal(t, []string{"Paris", "Rome", "Madrid"}, questions[0].Options)
}

func TestGetQuestionsShufflesOptionsOnly(t *testing.T) {
	service, _, _ := newTestService(app.Settings{ShuffleOptions: true})

	questions, err := service.GetQuestions(context.Background())
	require.NoError(t, err)
	require.Len(t, questions, 2)
	assert.Equal(t, "1", questions[0].ID)
	assert.ElementsMatch(t, []string{"Paris", "Rome", "Madrid"}, questions[0].Options)

	again, err := service.GetQuestions(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"3", "4", "5"}, again[1].Options)
}

func TestExpireOverdue(t *testing.T) {
	ctx := context.Background()
	service, store, clk := newTestService(app.Settings{Duration: 10 * time.Minute, Grace: 30 * time.Second})

	_, err := service.Login(ctx, "early", "Early")
	require.NoError(t, err)
	clk.Advance(5 * time.Minute)
	_, err = service.Login(ctx, "late", "Late")
	require.NoError(t, err)

	clk.Advance(5*time.Minute + 31*time.Second)
	n, err := service.ExpireOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	early, err := store.Get(ctx, "early")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusTimeout, early.Status)
	assert.Equal(t, 0, early.Score)

	late, err := store.Get(ctx, "late")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, late.Status)

	_, err = service.Submit(ctx, "early", map[string]string{"1": "Paris"}, false)
	assert.ErrorIs(t, err, domain.ErrAlreadyFinalized)
}

func TestExpireOverdueDisabledWithoutDuration(t *testing.T) {
	ctx := context.Background()
	service, _, clk := newTestService(app.Settings{})
	_, err := service.Login(ctx, "P1", "Alice")
	require.NoError(t, err)
	clk.Advance(24 * time.Hour)

	n, err := service.ExpireOverdue(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStandingsRankByScoreThenSpeed(t *testing.T) {
	ctx := context.Background()
	service, _, clk := newTestService(app.Settings{})

	for _, id := range []string{"slow", "fast", "idle"} {
		_, err := service.Login(ctx, id, id)
		require.NoError(t, err)
	}
	clk.Advance(time.Minute)
	_, err := service.Submit(ctx, "fast", map[string]string{"1": "Paris", "2": "4"}, false)
	require.NoError(t, err)
	clk.Advance(time.Minute)
	_, err = service.Submit(ctx, "slow", map[string]string{"1": "paris", "2": "4"}, false)
	require.NoError(t, err)

	standings, err := service.Standings(ctx)
	require.NoError(t, err)
	require.Len(t, standings, 3)
	assert.Equal(t, "fast", standings[0].ID)
	assert.Equal(t, 1, standings[0].Rank)
	assert.Equal(t, "slow", standings[1].ID)
	assert.Equal(t, "idle", standings[2].ID)
	assert.Nil(t, standings[2].DurationMs)
	require.NotNil(t, standings[0].DurationMs)
	assert.Equal(t, int64(60000), *standings[0].DurationMs)
}

func TestSweeperExpiresInBackground(t *testing.T) {
	store := memory.NewParticipantStore()
	questions := memory.NewQuestionRepository(memory.NewStaticQuestionLoader(sampleQuestions()), time.Minute)
	service := app.NewQuizServiceWithClock(store, questions, app.Settings{Duration: time.Millisecond}, time.Now)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, err := service.Login(ctx, "P1", "Alice")
	require.NoError(t, err)

	go app.NewSweeper(service, 5*time.Millisecond).Run(ctx)

	assert.Eventually(t, func() bool {
		p, err := store.Get(ctx, "P1")
		return err == nil && p.Status == domain.StatusTimeout
	}, 2*time.Second, 10*time.Millisecond)
}
