package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"quiz-assessment-engine/internal/domain"
	"quiz-assessment-engine/internal/infra/memory"
)

func TestQuizCacheCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	loader := &countingLoader{QuizLoader: memory.NewQuizStoreWith(map[string]domain.Quiz{
		"quiz-1": {ID: "quiz-1", Title: "Sample", Published: true, Questions: []domain.Question{
			{ID: "q1", Text: "Pick one", Type: domain.TrueFalse, Points: 1, Options: []domain.AnswerOption{
				{ID: "t", Text: "True", Correct: true},
				{ID: "f", Text: "False"},
			}},
		}},
	})}
	cache := NewQuizCache(client, loader, time.Minute)

	quiz, err := cache.GetQuiz(context.Background(), "quiz-1")
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
	if len(quiz.Questions) != 1 {
		t.Fatalf("expected question content round-tripped, got %+v", quiz)
	}
	if !mr.Exists("quiz:quiz-1") {
		t.Fatalf("expected redis key set")
	}

	// Second call hits the cache.
	if _, err := cache.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get quiz 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}

	cache.Invalidate(context.Background(), "quiz-1")
	if mr.Exists("quiz:quiz-1") {
		t.Fatalf("expected redis key removed")
	}
}

func TestQuizCachePropagatesMiss(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewQuizCache(client, memory.NewQuizStore(), time.Minute)

	if _, err := cache.GetQuiz(context.Background(), "missing"); err != domain.ErrQuizNotFound {
		t.Fatalf("expected ErrQuizNotFound, got %v", err)
	}
}

type countingLoader struct {
	QuizLoader
	calls int
}

func (l *countingLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	l.calls++
	return l.QuizLoader.LoadQuiz(ctx, quizID)
}
