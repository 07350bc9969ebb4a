package domain

import (
	"errors"
	"strings"
)

var (
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrAttemptNotFound indicates an attempt id is unknown.
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrQuestionNotFound is returned when a question id does not belong to
	// the attempt's quiz.
	ErrQuestionNotFound = errors.New("question not found in quiz")
	// ErrAnswerNotFound indicates no answer was recorded for the question.
	ErrAnswerNotFound = errors.New("answer not found")
	// ErrAttemptInProgress is returned when a student already has an active
	// attempt for the quiz.
	ErrAttemptInProgress = errors.New("attempt already in progress")
	// ErrAttemptNotActive is returned when an operation requires an
	// in-progress attempt but the attempt is already terminal.
	ErrAttemptNotActive = errors.New("attempt is not in progress")
	// ErrAttemptNotScored is returned when manual grading targets an attempt
	// that never reached a scored terminal state.
	ErrAttemptNotScored = errors.New("attempt has no committed score")
	// ErrQuizUnavailable is returned when a quiz is unpublished or outside
	// its availability window.
	ErrQuizUnavailable = errors.New("quiz is not available")
	// ErrNotEssayQuestion is returned when an instructor override targets an
	// auto-graded question type.
	ErrNotEssayQuestion = errors.New("question is not manually graded")
	// ErrQuizHasAttempts rejects deleting a quiz whose attempt history must
	// be preserved as an audit record.
	ErrQuizHasAttempts = errors.New("quiz has recorded attempts")
)

// ValidationError reports authoring-time problems with quiz content, such as
// a multiple-answer question whose options make partial credit degenerate.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid quiz: " + strings.Join(e.Problems, "; ")
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
