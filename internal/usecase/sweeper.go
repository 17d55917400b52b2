package usecase

import (
	"context"
	"errors"
	"log"
	"time"

	"bountyd/internal/domain"
)

// Sweeper reopens claimed tasks whose submit deadline passed without a
// submission. It is the background counterpart to the deadline guard in
// Submit: stale claims get released even if the claimer never comes back.
type Sweeper struct {
	lifecycle *Lifecycle
	interval  time.Duration
	logger    *log.Logger
	now       func() time.Time
}

func NewSweeper(lifecycle *Lifecycle, interval time.Duration, logger *log.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		lifecycle: lifecycle,
		interval:  interval,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock overrides the time source; tests drive deadlines with it.
func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

// Run blocks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep reopens every expired claimed task once.
func (s *Sweeper) Sweep(ctx context.Context) {
	tasks, err := s.lifecycle.ListByStatus(ctx, domain.StatusClaimed)
	if err != nil {
		s.logger.Printf("sweeper: list claimed tasks: %v", err)
		return
	}

	now := s.now()
	for _, task := range tasks {
		if task.SubmitDeadline.IsZero() || now.Before(task.SubmitDeadline) {
			continue
		}
		if _, err := s.lifecycle.Reopen(ctx, task.ID); err != nil {
			// A racing submit can beat the sweep; that is not an error
			// worth more than a log line.
			if errors.Is(err, domain.ErrInvalidState) {
				continue
			}
			s.logger.Printf("sweeper: reopen task %s: %v", task.ID, err)
			continue
		}
		s.logger.Printf("sweeper: reopened task %s after missed submit deadline", task.ID)
	}
}
