package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"timed-quiz-service/internal/domain"
)

// ParticipantStore is an in-memory implementation of app.ParticipantStore.
// Every mutation runs under one mutex, which makes the status guard and the write atomic.
type ParticipantStore struct {
	mu           sync.RWMutex
	participants map[string]*domain.Participant
}

func NewParticipantStore() *ParticipantStore {
	return &ParticipantStore{
		participants: make(map[string]*domain.Participant),
	}
}

func (s *ParticipantStore) Create(_ context.Context, p domain.Participant) (domain.Participant, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.participants[p.ID]; ok {
		return clone(existing), false, nil
	}
	stored := clone(&p)
	s.participants[p.ID] = &stored
	return clone(&stored), true, nil
}

func (s *ParticipantStore) Get(_ context.Context, id string) (domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.participants[id]
	if !ok {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	return clone(p), nil
}

func (s *ParticipantStore) Transition(_ context.Context, id string, t domain.Transition) (domain.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[id]
	if !ok {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	if p.Status != domain.StatusActive {
		return domain.Participant{}, domain.ErrAlreadyFinalized
	}
	apply(p, t)
	return clone(p), nil
}

func (s *ParticipantStore) List(_ context.Context) ([]domain.Participant, error) {
	s.mu.RLock()
	out := make([]domain.Participant, 0, len(s.participants))
	for _, p := range s.participants {
		out = append(out, clone(p))
	}
	s.mu.RUnlock()

	domain.SortBySubmission(out)
	return out, nil
}

func (s *ParticipantStore) ExpireActive(_ context.Context, createdBefore, at time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var expired []string
	for id, p := range s.participants {
		if p.Status != domain.StatusActive || !p.CreatedAt.Before(createdBefore) {
			continue
		}
		zero := 0
		apply(p, domain.Transition{
			Status:  domain.StatusTimeout,
			At:      at,
			Score:   &zero,
			Answers: map[string]string{},
		})
		expired = append(expired, id)
	}
	sort.Strings(expired)
	return expired, nil
}

func apply(p *domain.Participant, t domain.Transition) {
	at := t.At
	p.Status = t.Status
	p.SubmittedAt = &at
	if t.Score != nil {
		p.Score = *t.Score
	}
	if t.Answers != nil {
		p.Answers = copyAnswers(t.Answers)
	}
}

func clone(p *domain.Participant) domain.Participant {
	out := *p
	if p.SubmittedAt != nil {
		at := *p.SubmittedAt
		out.SubmittedAt = &at
	}
	if p.Answers != nil {
		out.Answers = copyAnswers(p.Answers)
	}
	return out
}

func copyAnswers(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
