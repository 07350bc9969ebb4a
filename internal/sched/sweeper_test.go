package sched

import (
	"context"
	"testing"
	"time"

	"quiz-assessment-engine/internal/app"
	"quiz-assessment-engine/internal/domain"
	"quiz-assessment-engine/internal/infra/memory"
)

func TestSweeperExpiresOverdueAttempts(t *testing.T) {
	ctx := context.Background()
	limit := 10
	quiz := domain.Quiz{
		ID:               "quiz-1",
		Title:            "Timed",
		Published:        true,
		TimeLimitMinutes: &limit,
		PassingScore:     50,
		Questions: []domain.Question{
			{ID: "q1", Text: "Pick", Type: domain.TrueFalse, Points: 1, Options: []domain.AnswerOption{
				{ID: "t", Text: "True", Correct: true}, {ID: "f", Text: "False"},
			}},
		},
	}

	quizzes := memory.NewQuizStoreWith(map[string]domain.Quiz{"quiz-1": quiz})
	attempts := memory.NewAttemptStore()

	started := time.Now().Add(-time.Hour)
	service := app.NewAttemptServiceWithClock(quizzes, attempts, memory.NewEventBus(), func() time.Time { return started })

	overdue, err := service.StartAttempt(ctx, "quiz-1", "s1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	sweeper := NewSweeper(service, attempts)
	sweeper.Run(ctx)

	expired, err := attempts.GetAttempt(ctx, overdue.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if expired.Status != domain.AttemptTimedOut {
		t.Fatalf("expected timed_out, got %s", expired.Status)
	}
	if expired.Score == nil {
		t.Fatalf("expected a committed score on expiry")
	}

	// A second sweep finds nothing and changes nothing.
	sweeper.Run(ctx)
	again, _ := attempts.GetAttempt(ctx, overdue.ID)
	if again.Status != domain.AttemptTimedOut {
		t.Fatalf("expected status unchanged, got %s", again.Status)
	}
}
