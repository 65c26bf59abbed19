package app

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically expires participants who never sent a transition request.
type Sweeper struct {
	service  *QuizService
	interval time.Duration
	log      *slog.Logger
}

func NewSweeper(service *QuizService, interval time.Duration) *Sweeper {
	return &Sweeper{
		service:  service,
		interval: interval,
		log:      slog.Default().With("component", "sweeper"),
	}
}

// Run blocks until ctx is canceled.
func (s *Sweeper) Run(ctx context.Context) {
	if s.interval <= 0 || s.service.QuizDuration() <= 0 {
		s.log.Info("sweeper disabled")
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.service.ExpireOverdue(ctx)
			if err != nil {
				s.log.Error("expire overdue participants", "err", err)
				continue
			}
			if n > 0 {
				s.log.Info("expired overdue participants", "count", n)
			}
		}
	}
}
