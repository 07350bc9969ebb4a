package app

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"

	"quiz-assessment-engine/internal/domain"
	"quiz-assessment-engine/internal/grading"
)

// AuthoringService validates and persists quiz content. Attempts are an
// independent aggregate: deleting a quiz with recorded attempts is rejected
// because attempt history is an audit record.
type AuthoringService struct {
	quizzes  QuizStore
	attempts AttemptRepository
	validate *validator.Validate
}

func NewAuthoringService(quizzes QuizStore, attempts AttemptRepository) *AuthoringService {
	return &AuthoringService{
		quizzes:  quizzes,
		attempts: attempts,
		validate: validator.New(),
	}
}

// SaveQuiz runs field validation and the structural grading checks, stamps
// parent ids onto questions and options, and persists the quiz.
func (s *AuthoringService) SaveQuiz(ctx context.Context, quiz domain.Quiz) error {
	var problems []string
	if err := s.validate.Struct(quiz); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		for _, fe := range fieldErrs {
			problems = append(problems, fe.Namespace()+": failed "+fe.Tag())
		}
	}
	for _, question := range quiz.Questions {
		problems = append(problems, grading.ValidateQuestion(question)...)
	}
	if len(problems) > 0 {
		return &domain.ValidationError{Problems: problems}
	}

	for qi := range quiz.Questions {
		quiz.Questions[qi].QuizID = quiz.ID
		for oi := range quiz.Questions[qi].Options {
			quiz.Questions[qi].Options[oi].QuestionID = quiz.Questions[qi].ID
		}
	}
	return s.quizzes.SaveQuiz(ctx, quiz)
}

// DeleteQuiz removes quiz content unless any attempt, active or historical,
// references it.
func (s *AuthoringService) DeleteQuiz(ctx context.Context, quizID string) error {
	n, err := s.attempts.CountAttempts(ctx, quizID)
	if err != nil {
		return err
	}
	if n > 0 {
		return domain.ErrQuizHasAttempts
	}
	return s.quizzes.DeleteQuiz(ctx, quizID)
}
