package memory

import (
	"context"
	"sync"

	"quiz-assessment-engine/internal/domain"
)

// QuizStore is an in-memory implementation of app.QuizStore, useful for
// tests and demo mode without Postgres.
type QuizStore struct {
	mu      sync.RWMutex
	quizzes map[string]domain.Quiz
}

func NewQuizStore() *QuizStore {
	return &QuizStore{quizzes: make(map[string]domain.Quiz)}
}

// NewQuizStoreWith seeds the store, for tests and demo fixtures.
func NewQuizStoreWith(quizzes map[string]domain.Quiz) *QuizStore {
	store := NewQuizStore()
	for id, quiz := range quizzes {
		store.quizzes[id] = quiz
	}
	return store
}

func (s *QuizStore) GetQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if quiz, ok := s.quizzes[quizID]; ok {
		return quiz, nil
	}
	return domain.Quiz{}, domain.ErrQuizNotFound
}

// LoadQuiz makes the store usable as a QuizLoader behind a cache.
func (s *QuizStore) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	return s.GetQuiz(ctx, quizID)
}

func (s *QuizStore) SaveQuiz(_ context.Context, quiz domain.Quiz) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quizzes[quiz.ID] = quiz
	return nil
}

func (s *QuizStore) DeleteQuiz(_ context.Context, quizID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quizzes[quizID]; !ok {
		return domain.ErrQuizNotFound
	}
	delete(s.quizzes, quizID)
	return nil
}
