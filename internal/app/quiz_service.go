package app

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"strings"
	"time"
	"unicode/utf8"

	"timed-quiz-service/internal/domain"
)

const (
	maxParticipantIDLen = 64
	maxDisplayNameLen   = 128
)

// ParticipantStore persists participant records. Transition must be an atomic
// compare-and-swap guarded by status == active: when the guard fails it returns
// domain.ErrAlreadyFinalized (or domain.ErrParticipantNotFound) and changes nothing.
type ParticipantStore interface {
	// Create inserts p unless its id exists; it returns the stored record and whether it was created.
	Create(ctx context.Context, p domain.Participant) (domain.Participant, bool, error)
	Get(ctx context.Context, id string) (domain.Participant, error)
	Transition(ctx context.Context, id string, t domain.Transition) (domain.Participant, error)
	// List orders by submitted_at desc with active participants last, then id asc.
	List(ctx context.Context) ([]domain.Participant, error)
	// ExpireActive moves every active participant created before the cutoff to timeout
	// with empty answers and returns their ids.
	ExpireActive(ctx context.Context, createdBefore, at time.Time) ([]string, error)
}

// QuestionRepository loads the question bank together with the answer key.
type QuestionRepository interface {
	Questions(ctx context.Context) ([]domain.Question, error)
}

// Settings tune the quiz run.
type Settings struct {
	// Duration is the countdown handed to clients; zero disables server-side expiry.
	Duration time.Duration
	// Grace is added to Duration before the sweeper times out a silent participant.
	Grace          time.Duration
	ShuffleOptions bool
}

// QuizService is the lifecycle controller: the only component that changes a
// participant's status, score, answers or submission time.
type QuizService struct {
	participants ParticipantStore
	questions    QuestionRepository
	settings     Settings
	now          func() time.Time
	shuffle      func(n int, swap func(i, j int))
	log          *slog.Logger
}

func NewQuizService(participants ParticipantStore, questions QuestionRepository, settings Settings) *QuizService {
	return NewQuizServiceWithClock(participants, questions, settings, time.Now)
}

// NewQuizServiceWithClock is test-only for deterministic timestamps.
func NewQuizServiceWithClock(participants ParticipantStore, questions QuestionRepository, settings Settings, now func() time.Time) *QuizService {
	return &QuizService{
		participants: participants,
		questions:    questions,
		settings:     settings,
		now:          now,
		shuffle:      rand.Shuffle,
		log:          slog.Default().With("component", "quiz"),
	}
}

// QuizDuration is the countdown clients should run.
func (s *QuizService) QuizDuration() time.Duration {
	return s.settings.Duration
}

// Login creates an active participant on first sight and resumes an active one unchanged.
// A participant who already finished gets domain.ErrAlreadyFinalized.
func (s *QuizService) Login(ctx context.Context, participantID, displayName string) (domain.Participant, error) {
	participantID = strings.TrimSpace(participantID)
	displayName = strings.TrimSpace(displayName)
	if err := validateParticipantID(participantID); err != nil {
		return domain.Participant{}, err
	}
	if displayName == "" {
		return domain.Participant{}, domain.Invalid("name", "required")
	}
	if utf8.RuneCountInString(displayName) > maxDisplayNameLen {
		return domain.Participant{}, domain.Invalid("name", "too long")
	}

	p, created, err := s.participants.Create(ctx, domain.Participant{
		ID:          participantID,
		DisplayName: displayName,
		Status:      domain.StatusActive,
		Score:       0,
		CreatedAt:   s.now(),
	})
	if err != nil {
		return domain.Participant{}, err
	}
	if created {
		s.log.Info("participant created", "participant", participantID)
		return p, nil
	}
	if p.Status.IsTerminal() {
		s.log.Debug("login rejected", "participant", participantID, "status", p.Status)
		return domain.Participant{}, domain.ErrAlreadyFinalized
	}
	return p, nil
}

// CheckParticipant reports whether the id exists and its current status.
func (s *QuizService) CheckParticipant(ctx context.Context, participantID string) (domain.Status, bool, error) {
	participantID = strings.TrimSpace(participantID)
	if err := validateParticipantID(participantID); err != nil {
		return "", false, err
	}
	p, err := s.participants.Get(ctx, participantID)
	if errors.Is(err, domain.ErrParticipantNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return p.Status, true, nil
}

// GetQuestions returns the question bank without correct answers. Option order is
// shuffled per call when enabled.
func (s *QuizService) GetQuestions(ctx context.Context) ([]domain.PublicQuestion, error) {
	questions, err := s.questions.Questions(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.PublicQuestion, 0, len(questions))
	for _, q := range questions {
		pub := q.Public()
		if s.settings.ShuffleOptions {
			s.shuffle(len(pub.Options), func(i, j int) {
				pub.Options[i], pub.Options[j] = pub.Options[j], pub.Options[i]
			})
		}
		out = append(out, pub)
	}
	return out, nil
}

// Submit scores answers and finalizes the participant as completed, or as timeout when
// the client reports the countdown expired. Only the first transition out of active wins.
func (s *QuizService) Submit(ctx context.Context, participantID string, answers map[string]string, isTimeout bool) (domain.SubmitResult, error) {
	participantID = strings.TrimSpace(participantID)
	if err := validateParticipantID(participantID); err != nil {
		return domain.SubmitResult{}, err
	}
	stored := make(map[string]string, len(answers))
	for questionID, answer := range answers {
		questionID = strings.TrimSpace(questionID)
		if questionID == "" {
			return domain.SubmitResult{}, domain.Invalid("answers", "empty question id")
		}
		stored[questionID] = answer
	}

	questions, err := s.questions.Questions(ctx)
	if err != nil {
		return domain.SubmitResult{}, err
	}
	score := Score(stored, domain.NewAnswerKey(questions))

	status := domain.StatusCompleted
	if isTimeout {
		status = domain.StatusTimeout
	}
	p, err := s.participants.Transition(ctx, participantID, domain.Transition{
		Status:  status,
		At:      s.now(),
		Score:   &score,
		Answers: stored,
	})
	if err != nil {
		s.logRejected(participantID, status, err)
		return domain.SubmitResult{}, err
	}
	s.log.Info("participant finalized", "participant", participantID, "status", p.Status, "score", p.Score)
	return domain.SubmitResult{
		ParticipantID: p.ID,
		Status:        p.Status,
		Score:         p.Score,
		CreatedAt:     p.CreatedAt,
		SubmittedAt:   p.SubmittedAt,
	}, nil
}

// Disqualify finalizes an active participant as disqualified. Answers and score are left as they are.
func (s *QuizService) Disqualify(ctx context.Context, participantID string) error {
	participantID = strings.TrimSpace(participantID)
	if err := validateParticipantID(participantID); err != nil {
		return err
	}
	_, err := s.participants.Transition(ctx, participantID, domain.Transition{
		Status: domain.StatusDisqualified,
		At:     s.now(),
	})
	if err != nil {
		s.logRejected(participantID, domain.StatusDisqualified, err)
		return err
	}
	s.log.Info("participant finalized", "participant", participantID, "status", domain.StatusDisqualified)
	return nil
}

// ListParticipants returns every participant, most recent submissions first.
func (s *QuizService) ListParticipants(ctx context.Context) ([]domain.Participant, error) {
	return s.participants.List(ctx)
}

// Standings ranks participants by score, then by how fast they finished.
func (s *QuizService) Standings(ctx context.Context) ([]domain.Standing, error) {
	participants, err := s.participants.List(ctx)
	if err != nil {
		return nil, err
	}
	return Rank(participants), nil
}

// ExpireOverdue times out participants whose countdown plus grace ran out without any
// transition request, e.g. because the browser was closed.
func (s *QuizService) ExpireOverdue(ctx context.Context) (int, error) {
	if s.settings.Duration <= 0 {
		return 0, nil
	}
	now := s.now()
	cutoff := now.Add(-(s.settings.Duration + s.settings.Grace))
	ids, err := s.participants.ExpireActive(ctx, cutoff, now)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		s.log.Info("participant expired", "participant", id)
	}
	return len(ids), nil
}

func (s *QuizService) logRejected(participantID string, status domain.Status, err error) {
	switch {
	case errors.Is(err, domain.ErrAlreadyFinalized):
		s.log.Debug("transition rejected", "participant", participantID, "requested", status)
	case errors.Is(err, domain.ErrStorage):
		s.log.Error("transition failed", "participant", participantID, "requested", status, "err", err)
	}
}

func validateParticipantID(id string) error {
	if id == "" {
		return domain.Invalid("participantId", "required")
	}
	if utf8.RuneCountInString(id) > maxParticipantIDLen {
		return domain.Invalid("participantId", "too long")
	}
	return nil
}
