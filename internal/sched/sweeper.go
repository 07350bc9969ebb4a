package sched

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"quiz-assessment-engine/internal/app"
	"quiz-assessment-engine/internal/domain"
)

// Sweeper expires overdue attempts on a cron schedule. The lifecycle service
// stays the single writer: the sweeper only finds candidates and calls
// ExpireAttempt, so a finalize that races the sweep simply wins the
// repository guard.
type Sweeper struct {
	service  *app.AttemptService
	attempts app.AttemptRepository
	cron     *cron.Cron
	now      func() time.Time
}

func NewSweeper(service *app.AttemptService, attempts app.AttemptRepository) *Sweeper {
	return &Sweeper{
		service:  service,
		attempts: attempts,
		cron:     cron.New(),
		now:      time.Now,
	}
}

// Start schedules the sweep, e.g. "@every 30s".
func (s *Sweeper) Start(schedule string) error {
	if _, err := s.cron.AddFunc(schedule, func() {
		s.Run(context.Background())
	}); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// Run executes one sweep. Exposed for tests and for a manual sweep.
func (s *Sweeper) Run(ctx context.Context) {
	overdue, err := s.attempts.FindExpired(ctx, s.now())
	if err != nil {
		log.Printf("sweep: find expired attempts: %v", err)
		return
	}

	expired := 0
	for _, attempt := range overdue {
		if _, err := s.service.ExpireAttempt(ctx, attempt.ID); err != nil {
			// Lost races with finalize are expected, anything else is not.
			if errors.Is(err, domain.ErrAttemptNotActive) {
				continue
			}
			log.Printf("sweep: expire attempt %s: %v", attempt.ID, err)
			continue
		}
		expired++
	}
	if expired > 0 {
		log.Printf("sweep: expired %d overdue attempts", expired)
	}
}
