package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"quiz-assessment-engine/internal/domain"
)

type activeKey struct {
	quizID    string
	studentID string
}

// AttemptStore is an in-memory implementation of app.AttemptRepository.
// The active index under the mutex gives the same atomic check-and-create
// semantics the Postgres partial unique index provides.
type AttemptStore struct {
	mu       sync.RWMutex
	attempts map[string]domain.QuizAttempt
	active   map[activeKey]string
}

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{
		attempts: make(map[string]domain.QuizAttempt),
		active:   make(map[activeKey]string),
	}
}

func (s *AttemptStore) GetAttempt(_ context.Context, attemptID string) (domain.QuizAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	attempt, ok := s.attempts[attemptID]
	if !ok {
		return domain.QuizAttempt{}, domain.ErrAttemptNotFound
	}
	return cloneAttempt(attempt), nil
}

func (s *AttemptStore) CreateAttempt(_ context.Context, attempt domain.QuizAttempt) error {
	key := activeKey{attempt.QuizID, attempt.StudentID}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.active[key]; ok {
		return domain.ErrAttemptInProgress
	}
	s.attempts[attempt.ID] = cloneAttempt(attempt)
	if attempt.Status == domain.AttemptInProgress {
		s.active[key] = attempt.ID
	}
	return nil
}

func (s *AttemptStore) UpdateActiveAttempt(_ context.Context, attempt domain.QuizAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.attempts[attempt.ID]
	if !ok {
		return domain.ErrAttemptNotFound
	}
	if stored.Status != domain.AttemptInProgress {
		return domain.ErrAttemptNotActive
	}

	s.attempts[attempt.ID] = cloneAttempt(attempt)
	if attempt.Status != domain.AttemptInProgress {
		delete(s.active, activeKey{attempt.QuizID, attempt.StudentID})
	}
	return nil
}

func (s *AttemptStore) SaveAttempt(_ context.Context, attempt domain.QuizAttempt) error {
	key := activeKey{attempt.QuizID, attempt.StudentID}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[attempt.ID] = cloneAttempt(attempt)
	if attempt.Status == domain.AttemptInProgress {
		s.active[key] = attempt.ID
	} else if s.active[key] == attempt.ID {
		delete(s.active, key)
	}
	return nil
}

func (s *AttemptStore) FindActiveAttempt(_ context.Context, quizID, studentID string) (domain.QuizAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.active[activeKey{quizID, studentID}]
	if !ok {
		return domain.QuizAttempt{}, domain.ErrAttemptNotFound
	}
	return cloneAttempt(s.attempts[id]), nil
}

func (s *AttemptStore) FindScoredAttempts(_ context.Context, quizID string) ([]domain.QuizAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.QuizAttempt
	for _, attempt := range s.attempts {
		if attempt.QuizID == quizID && attempt.Status.Scored() {
			out = append(out, cloneAttempt(attempt))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

func (s *AttemptStore) FindExpired(_ context.Context, now time.Time) ([]domain.QuizAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.QuizAttempt
	for _, attempt := range s.attempts {
		if attempt.Status == domain.AttemptInProgress && attempt.Deadline != nil && now.After(*attempt.Deadline) {
			out = append(out, cloneAttempt(attempt))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

func (s *AttemptStore) CountAttempts(_ context.Context, quizID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, attempt := range s.attempts {
		if attempt.QuizID == quizID {
			n++
		}
	}
	return n, nil
}

// cloneAttempt copies the answers slice so callers never alias stored state.
func cloneAttempt(attempt domain.QuizAttempt) domain.QuizAttempt {
	answers := make([]domain.StudentAnswer, len(attempt.Answers))
	copy(answers, attempt.Answers)
	for i := range answers {
		ids := make([]string, len(answers[i].SelectedOptionIDs))
		copy(ids, answers[i].SelectedOptionIDs)
		answers[i].SelectedOptionIDs = ids
	}
	attempt.Answers = answers
	return attempt
}
