package app

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"quiz-assessment-engine/internal/domain"
	"quiz-assessment-engine/internal/grading"
)

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// QuizStore extends QuizRepository with the authoring writes.
type QuizStore interface {
	QuizRepository
	SaveQuiz(ctx context.Context, quiz domain.Quiz) error
	DeleteQuiz(ctx context.Context, quizID string) error
}

// AttemptRepository abstracts attempt persistence. Implementations must make
// CreateAttempt an atomic check-and-create: when an in-progress attempt
// already exists for the same (quiz, student) pair it fails with
// domain.ErrAttemptInProgress, and two concurrent creates for the same pair
// yield exactly one success. UpdateActiveAttempt applies the whole attempt
// (answers included) only while the stored row is still in progress, so a
// terminal transition and its grades commit together or not at all.
type AttemptRepository interface {
	GetAttempt(ctx context.Context, attemptID string) (domain.QuizAttempt, error)
	CreateAttempt(ctx context.Context, attempt domain.QuizAttempt) error
	UpdateActiveAttempt(ctx context.Context, attempt domain.QuizAttempt) error
	SaveAttempt(ctx context.Context, attempt domain.QuizAttempt) error
	FindActiveAttempt(ctx context.Context, quizID, studentID string) (domain.QuizAttempt, error)
	FindScoredAttempts(ctx context.Context, quizID string) ([]domain.QuizAttempt, error)
	FindExpired(ctx context.Context, now time.Time) ([]domain.QuizAttempt, error)
	CountAttempts(ctx context.Context, quizID string) (int, error)
}

// GradePublisher receives the grade-posted event on every successful
// finalize or expiry.
type GradePublisher interface {
	PublishGradePosted(ctx context.Context, event domain.GradePosted) error
}

// MultiPublisher fans an event out to several publishers. The first error
// is returned after all publishers ran.
func MultiPublisher(publishers ...GradePublisher) GradePublisher {
	return multiPublisher(publishers)
}

type multiPublisher []GradePublisher

func (m multiPublisher) PublishGradePosted(ctx context.Context, event domain.GradePosted) error {
	var first error
	for _, p := range m {
		if err := p.PublishGradePosted(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// AttemptService drives the attempt lifecycle state machine. It holds no
// shared mutable state of its own; everything lives in the repositories.
type AttemptService struct {
	quizzes   QuizRepository
	attempts  AttemptRepository
	publisher GradePublisher
	now       func() time.Time
	newID     func() string
}

func NewAttemptService(quizzes QuizRepository, attempts AttemptRepository, publisher GradePublisher) *AttemptService {
	return NewAttemptServiceWithClock(quizzes, attempts, publisher, time.Now)
}

// NewAttemptServiceWithClock allows deterministic timestamps in tests.
func NewAttemptServiceWithClock(quizzes QuizRepository, attempts AttemptRepository, publisher GradePublisher, now func() time.Time) *AttemptService {
	return &AttemptService{
		quizzes:   quizzes,
		attempts:  attempts,
		publisher: publisher,
		now:       now,
		newID:     uuid.NewString,
	}
}

// StartAttempt creates a new in-progress attempt. The one-active-attempt
// invariant is enforced at the storage boundary, not here: a race between
// two starts resolves inside CreateAttempt.
func (s *AttemptService) StartAttempt(ctx context.Context, quizID, studentID string) (domain.QuizAttempt, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.QuizAttempt{}, err
	}

	now := s.now()
	if !quiz.AvailableAt(now) {
		return domain.QuizAttempt{}, domain.ErrQuizUnavailable
	}

	attempt := domain.QuizAttempt{
		ID:        s.newID(),
		QuizID:    quizID,
		StudentID: studentID,
		StartedAt: now,
		Status:    domain.AttemptInProgress,
		Answers:   []domain.StudentAnswer{},
	}
	if deadline, ok := quiz.DeadlineFrom(now); ok {
		attempt.Deadline = &deadline
	}

	if err := s.attempts.CreateAttempt(ctx, attempt); err != nil {
		return domain.QuizAttempt{}, err
	}
	return attempt, nil
}

// SubmitAnswer upserts the student's answer for one question. Grading is
// deferred to finalize so the student can revise before submitting.
func (s *AttemptService) SubmitAnswer(ctx context.Context, attemptID, questionID string, selectedOptionIDs []string, textAnswer string) (domain.QuizAttempt, error) {
	attempt, err := s.attempts.GetAttempt(ctx, attemptID)
	if err != nil {
		return domain.QuizAttempt{}, err
	}
	if !attempt.Active() {
		return domain.QuizAttempt{}, domain.ErrAttemptNotActive
	}

	quiz, err := s.quizzes.GetQuiz(ctx, attempt.QuizID)
	if err != nil {
		return domain.QuizAttempt{}, err
	}
	if _, ok := quiz.QuestionByID(questionID); !ok {
		return domain.QuizAttempt{}, domain.ErrQuestionNotFound
	}

	if i := attempt.AnswerFor(questionID); i >= 0 {
		attempt.Answers[i].SelectedOptionIDs = selectedOptionIDs
		attempt.Answers[i].TextAnswer = textAnswer
	} else {
		attempt.Answers = append(attempt.Answers, domain.StudentAnswer{
			ID:                s.newID(),
			AttemptID:         attempt.ID,
			QuestionID:        questionID,
			SelectedOptionIDs: selectedOptionIDs,
			TextAnswer:        textAnswer,
		})
	}

	if err := s.attempts.UpdateActiveAttempt(ctx, attempt); err != nil {
		return domain.QuizAttempt{}, err
	}
	return attempt, nil
}

// FinalizeAttempt grades every answer and commits the completed state.
// Calling it on an already-terminal attempt fails with ErrAttemptNotActive
// and changes nothing.
func (s *AttemptService) FinalizeAttempt(ctx context.Context, attemptID string) (domain.QuizAttempt, error) {
	return s.closeAttempt(ctx, attemptID, domain.AttemptCompleted)
}

// ExpireAttempt runs the same scoring as finalize but commits timed_out.
// It is driven by the sweeper once an attempt passes its deadline and is
// idempotent against already-terminal attempts.
func (s *AttemptService) ExpireAttempt(ctx context.Context, attemptID string) (domain.QuizAttempt, error) {
	return s.closeAttempt(ctx, attemptID, domain.AttemptTimedOut)
}

// AbandonAttempt cancels an in-progress attempt without scoring it.
func (s *AttemptService) AbandonAttempt(ctx context.Context, attemptID string) (domain.QuizAttempt, error) {
	attempt, err := s.attempts.GetAttempt(ctx, attemptID)
	if err != nil {
		return domain.QuizAttempt{}, err
	}
	if !attempt.Active() {
		return domain.QuizAttempt{}, domain.ErrAttemptNotActive
	}

	attempt.Status = domain.AttemptAbandoned
	attempt.Passed = false
	if err := s.attempts.UpdateActiveAttempt(ctx, attempt); err != nil {
		return domain.QuizAttempt{}, err
	}
	return attempt, nil
}

// GetAttempt exposes an attempt to the surrounding API layer.
func (s *AttemptService) GetAttempt(ctx context.Context, attemptID string) (domain.QuizAttempt, error) {
	return s.attempts.GetAttempt(ctx, attemptID)
}

// ActiveAttempt looks up the student's in-progress attempt for the quiz, so
// a client can resume after losing its attempt id.
func (s *AttemptService) ActiveAttempt(ctx context.Context, quizID, studentID string) (domain.QuizAttempt, error) {
	return s.attempts.FindActiveAttempt(ctx, quizID, studentID)
}

// GradeEssay records an instructor's score and feedback for an essay answer
// on a scored terminal attempt, then recomputes the attempt totals. The
// score is clamped to [0, points].
func (s *AttemptService) GradeEssay(ctx context.Context, attemptID, questionID string, score float64, feedback string) (domain.QuizAttempt, error) {
	attempt, err := s.attempts.GetAttempt(ctx, attemptID)
	if err != nil {
		return domain.QuizAttempt{}, err
	}
	if !attempt.Status.Scored() {
		return domain.QuizAttempt{}, domain.ErrAttemptNotScored
	}

	quiz, err := s.quizzes.GetQuiz(ctx, attempt.QuizID)
	if err != nil {
		return domain.QuizAttempt{}, err
	}
	question, ok := quiz.QuestionByID(questionID)
	if !ok {
		return domain.QuizAttempt{}, domain.ErrQuestionNotFound
	}
	if question.Type != domain.Essay {
		return domain.QuizAttempt{}, domain.ErrNotEssayQuestion
	}

	i := attempt.AnswerFor(questionID)
	if i < 0 {
		return domain.QuizAttempt{}, domain.ErrAnswerNotFound
	}

	if score < 0 {
		score = 0
	}
	if limit := float64(question.Points); score > limit {
		score = limit
	}
	attempt.Answers[i].Score = score
	attempt.Answers[i].Correct = score == float64(question.Points) && question.Points > 0
	attempt.Answers[i].Graded = true
	attempt.Answers[i].ManuallyGraded = true
	attempt.Answers[i].InstructorFeedback = feedback

	s.applyTotals(&attempt, quiz)
	if err := s.attempts.SaveAttempt(ctx, attempt); err != nil {
		return domain.QuizAttempt{}, err
	}
	return attempt, nil
}

// closeAttempt is the shared finalize/expire path: grade every question of
// the quiz (unanswered questions score zero), compute totals, commit the
// terminal state and publish the grade event.
func (s *AttemptService) closeAttempt(ctx context.Context, attemptID string, status domain.AttemptStatus) (domain.QuizAttempt, error) {
	attempt, err := s.attempts.GetAttempt(ctx, attemptID)
	if err != nil {
		return domain.QuizAttempt{}, err
	}
	if !attempt.Active() {
		return domain.QuizAttempt{}, domain.ErrAttemptNotActive
	}

	quiz, err := s.quizzes.GetQuiz(ctx, attempt.QuizID)
	if err != nil {
		return domain.QuizAttempt{}, err
	}

	for _, question := range quiz.Questions {
		i := attempt.AnswerFor(question.ID)
		if i < 0 {
			attempt.Answers = append(attempt.Answers, domain.StudentAnswer{
				ID:         s.newID(),
				AttemptID:  attempt.ID,
				QuestionID: question.ID,
			})
			i = len(attempt.Answers) - 1
		}
		res := grading.Grade(question, attempt.Answers[i])
		attempt.Answers[i].Score = res.Score
		attempt.Answers[i].Correct = res.Correct
		attempt.Answers[i].ManuallyGraded = res.ManuallyGraded
		attempt.Answers[i].Graded = true
	}

	now := s.now()
	attempt.SubmittedAt = &now
	attempt.Status = status
	s.applyTotals(&attempt, quiz)

	if err := s.attempts.UpdateActiveAttempt(ctx, attempt); err != nil {
		return domain.QuizAttempt{}, err
	}

	// Best effort: a failed publish must not roll back a committed grade.
	if err := s.publisher.PublishGradePosted(ctx, domain.GradePosted{
		AttemptID:       attempt.ID,
		StudentID:       attempt.StudentID,
		QuizID:          attempt.QuizID,
		PercentageScore: *attempt.PercentageScore,
	}); err != nil {
		log.Printf("grade posted publish failed for attempt %s: %v", attempt.ID, err)
	}
	return attempt, nil
}

// applyTotals recomputes raw score, percentage and the pass flag from the
// attempt's graded answers. Percentage is zero when the quiz has no points.
func (s *AttemptService) applyTotals(attempt *domain.QuizAttempt, quiz domain.Quiz) {
	raw := 0.0
	for _, ans := range attempt.Answers {
		raw += ans.Score
	}

	percentage := 0.0
	if total := quiz.TotalPossibleScore(); total > 0 {
		percentage = raw / float64(total) * 100
	}

	attempt.Score = &raw
	attempt.PercentageScore = &percentage
	attempt.Passed = percentage >= quiz.PassingScore
}
