package client

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"timed-quiz-service/internal/domain"
)

// Trigger names the event that ended a session.
type Trigger string

const (
	TriggerSubmit    Trigger = "submit"
	TriggerTimeout   Trigger = "timeout"
	TriggerFocusLost Trigger = "focus_lost"
)

// Outcome is what the UI shows once the session is over. Err is set when the request
// was rejected or failed after the retry; the session is terminal either way.
type Outcome struct {
	Trigger Trigger
	Status  domain.Status
	Score   int
	Err     error
}

// AlreadyFinished reports whether the server had finalized the participant earlier.
func (o Outcome) AlreadyFinished() bool {
	return errors.Is(o.Err, domain.ErrAlreadyFinalized)
}

// Transitions is the part of the API a Session drives.
type Transitions interface {
	Submit(ctx context.Context, participantID string, answers map[string]string, isTimeout bool) (domain.SubmitResult, error)
	Disqualify(ctx context.Context, participantID string) error
}

// Session is one participant's attempt. Submit, FocusLost and countdown expiry race;
// the first to flip the decided guard sends the only transition request and cancels the
// countdown. Later triggers wait for and return the same Outcome.
type Session struct {
	api           Transitions
	participantID string

	mu      sync.Mutex
	answers map[string]string

	decided atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
	outcome Outcome

	newBackOff func() backoff.BackOff
	log        *slog.Logger
}

func NewSession(api Transitions, participantID string) *Session {
	return &Session{
		api:           api,
		participantID: participantID,
		answers:       make(map[string]string),
		cancel:        func() {},
		done:          make(chan struct{}),
		newBackOff:    defaultBackOff,
		log:           slog.Default().With("component", "session", "participant", participantID),
	}
}

// one retry after a storage fault
func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	return backoff.WithMaxRetries(b, 1)
}

// Start runs the countdown. When it reaches zero the session submits as timeout using
// the answers recorded so far. A non-positive duration runs no countdown.
func (s *Session) Start(ctx context.Context, duration time.Duration) {
	if duration <= 0 {
		return
	}
	countdown, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	if s.decided.Load() {
		cancel()
		return
	}

	timer := time.NewTimer(duration)
	go func() {
		defer timer.Stop()
		select {
		case <-countdown.Done():
		case <-timer.C:
			s.finish(context.WithoutCancel(ctx), TriggerTimeout)
		}
	}()
}

// Answer records an answer. It returns false once the session is decided.
// The check runs under mu so it is ordered against the snapshot taken in finish.
func (s *Session) Answer(questionID, answer string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.decided.Load() {
		return false
	}
	s.answers[questionID] = answer
	return true
}

func (s *Session) Submit(ctx context.Context) Outcome {
	return s.finish(ctx, TriggerSubmit)
}

// FocusLost disqualifies the participant, e.g. on a tab switch.
func (s *Session) FocusLost(ctx context.Context) Outcome {
	return s.finish(ctx, TriggerFocusLost)
}

// Done is closed once the Outcome is known.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Outcome blocks until the session is over.
func (s *Session) Outcome() Outcome {
	<-s.done
	return s.outcome
}

func (s *Session) finish(ctx context.Context, trigger Trigger) Outcome {
	if !s.decided.CompareAndSwap(false, true) {
		return s.Outcome()
	}
	s.mu.Lock()
	s.cancel()
	answers := make(map[string]string, len(s.answers))
	for k, v := range s.answers {
		answers[k] = v
	}
	s.mu.Unlock()

	out := Outcome{Trigger: trigger}
	op := func() error {
		var err error
		switch trigger {
		case TriggerFocusLost:
			err = s.api.Disqualify(ctx, s.participantID)
			if err == nil {
				out.Status = domain.StatusDisqualified
			}
		default:
			var res domain.SubmitResult
			res, err = s.api.Submit(ctx, s.participantID, answers, trigger == TriggerTimeout)
			if err == nil {
				out.Status, out.Score = res.Status, res.Score
			}
		}
		if err != nil && !errors.Is(err, domain.ErrStorage) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		s.log.Warn("transition failed, retrying", "trigger", trigger, "wait", wait, "err", err)
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(s.newBackOff(), ctx), notify); err != nil {
		out.Err = err
		s.log.Info("session ended without transition", "trigger", trigger, "err", err)
	} else {
		s.log.Info("session ended", "trigger", trigger, "status", out.Status, "score", out.Score)
	}

	s.outcome = out
	close(s.done)
	return out
}
