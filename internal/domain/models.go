package domain

import "time"

// QuestionType selects the grading rule applied to a question.
type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	MultipleAnswer QuestionType = "multiple_answer"
	TrueFalse      QuestionType = "true_false"
	ShortAnswer    QuestionType = "short_answer"
	Essay          QuestionType = "essay"
)

// AttemptStatus is the lifecycle state of a quiz attempt. InProgress is the
// only non-terminal state.
type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptCompleted  AttemptStatus = "completed"
	AttemptTimedOut   AttemptStatus = "timed_out"
	AttemptAbandoned  AttemptStatus = "abandoned"
)

// Terminal reports whether no further transition is possible.
func (s AttemptStatus) Terminal() bool {
	return s != AttemptInProgress
}

// Scored reports whether the status carries a computed score.
// Abandoned attempts are terminal but never scored.
func (s AttemptStatus) Scored() bool {
	return s == AttemptCompleted || s == AttemptTimedOut
}

// AnswerOption is one possible answer authored for a question.
type AnswerOption struct {
	ID         string `json:"id" yaml:"id" validate:"required"`
	QuestionID string `json:"questionId,omitempty" yaml:"questionId,omitempty"`
	Text       string `json:"text" yaml:"text" validate:"required"`
	Correct    bool   `json:"correct" yaml:"correct"`
	Feedback   string `json:"feedback,omitempty" yaml:"feedback,omitempty"`
	OrderIndex int    `json:"orderIndex" yaml:"orderIndex"`
}

// Question is authored quiz content plus its scoring metadata.
// Choice questions carry their options; short-answer questions carry the
// accepted answers as correct-flagged options; essays carry none.
type Question struct {
	ID         string         `json:"id" yaml:"id" validate:"required"`
	QuizID     string         `json:"quizId,omitempty" yaml:"quizId,omitempty"`
	Text       string         `json:"text" yaml:"text" validate:"required"`
	Type       QuestionType   `json:"type" yaml:"type" validate:"required,oneof=multiple_choice multiple_answer true_false short_answer essay"`
	Points     int            `json:"points" yaml:"points" validate:"gte=0"`
	OrderIndex int            `json:"orderIndex" yaml:"orderIndex"`
	Feedback   string         `json:"feedback,omitempty" yaml:"feedback,omitempty"`
	Options    []AnswerOption `json:"options,omitempty" yaml:"options,omitempty" validate:"dive"`
}

// OptionByID returns the option with the given id.
func (q Question) OptionByID(id string) (AnswerOption, bool) {
	for _, opt := range q.Options {
		if opt.ID == id {
			return opt, true
		}
	}
	return AnswerOption{}, false
}

// CorrectOptionCount counts options flagged correct.
func (q Question) CorrectOptionCount() int {
	n := 0
	for _, opt := range q.Options {
		if opt.Correct {
			n++
		}
	}
	return n
}

// Quiz is the aggregate of authored questions and availability settings.
// Nil TimeLimitMinutes means unlimited; nil date bounds mean open-ended.
type Quiz struct {
	ID                 string     `json:"id" yaml:"id" validate:"required"`
	CourseID           string     `json:"courseId,omitempty" yaml:"courseId,omitempty"`
	Title              string     `json:"title" yaml:"title" validate:"required"`
	Description        string     `json:"description,omitempty" yaml:"description,omitempty"`
	TimeLimitMinutes   *int       `json:"timeLimitMinutes,omitempty" yaml:"timeLimitMinutes,omitempty" validate:"omitempty,gt=0"`
	StartDate          *time.Time `json:"startDate,omitempty" yaml:"startDate,omitempty"`
	EndDate            *time.Time `json:"endDate,omitempty" yaml:"endDate,omitempty"`
	PassingScore       float64    `json:"passingScore" yaml:"passingScore" validate:"gte=0,lte=100"`
	RandomizeQuestions bool       `json:"randomizeQuestions" yaml:"randomizeQuestions"`
	Published          bool       `json:"published" yaml:"published"`
	Questions          []Question `json:"questions" yaml:"questions" validate:"dive"`
}

// TotalPossibleScore is the sum of question points, computed on demand.
func (q Quiz) TotalPossibleScore() int {
	total := 0
	for _, question := range q.Questions {
		total += question.Points
	}
	return total
}

// QuestionByID returns the question with the given id.
func (q Quiz) QuestionByID(id string) (Question, bool) {
	for _, question := range q.Questions {
		if question.ID == id {
			return question, true
		}
	}
	return Question{}, false
}

// AvailableAt reports whether an attempt may be started at the given moment:
// the quiz must be published and the moment inside [StartDate, EndDate].
func (q Quiz) AvailableAt(now time.Time) bool {
	if !q.Published {
		return false
	}
	if q.StartDate != nil && now.Before(*q.StartDate) {
		return false
	}
	if q.EndDate != nil && now.After(*q.EndDate) {
		return false
	}
	return true
}

// DeadlineFrom computes the hard deadline for an attempt started at the
// given moment. The second return is false when the quiz has no time limit.
func (q Quiz) DeadlineFrom(startedAt time.Time) (time.Time, bool) {
	if q.TimeLimitMinutes == nil {
		return time.Time{}, false
	}
	return startedAt.Add(time.Duration(*q.TimeLimitMinutes) * time.Minute), true
}

// StudentAnswer is one student's answer to one question of an attempt.
// Exactly one exists per (attempt, question) once recorded.
type StudentAnswer struct {
	ID                 string   `json:"id"`
	AttemptID          string   `json:"attemptId"`
	QuestionID         string   `json:"questionId"`
	SelectedOptionIDs  []string `json:"selectedOptionIds,omitempty"`
	TextAnswer         string   `json:"textAnswer,omitempty"`
	Score              float64  `json:"score"`
	Correct            bool     `json:"correct"`
	Graded             bool     `json:"graded"`
	ManuallyGraded     bool     `json:"manuallyGraded"`
	InstructorFeedback string   `json:"instructorFeedback,omitempty"`
}

// Selected reports whether the option id is part of the answer.
func (a StudentAnswer) Selected(optionID string) bool {
	for _, id := range a.SelectedOptionIDs {
		if id == optionID {
			return true
		}
	}
	return false
}

// QuizAttempt is one student's run through a quiz. Score, PercentageScore
// and SubmittedAt stay nil until the attempt reaches a scored terminal state.
type QuizAttempt struct {
	ID              string          `json:"id"`
	QuizID          string          `json:"quizId"`
	StudentID       string          `json:"studentId"`
	StartedAt       time.Time       `json:"startedAt"`
	Deadline        *time.Time      `json:"deadline,omitempty"`
	SubmittedAt     *time.Time      `json:"submittedAt,omitempty"`
	Score           *float64        `json:"score,omitempty"`
	PercentageScore *float64        `json:"percentageScore,omitempty"`
	Passed          bool            `json:"passed"`
	Status          AttemptStatus   `json:"status"`
	Answers         []StudentAnswer `json:"answers"`
}

// Active reports whether the attempt still accepts answers.
func (a QuizAttempt) Active() bool {
	return a.Status == AttemptInProgress
}

// AnswerFor returns the index of the answer for the question, or -1.
func (a QuizAttempt) AnswerFor(questionID string) int {
	for i := range a.Answers {
		if a.Answers[i].QuestionID == questionID {
			return i
		}
	}
	return -1
}

// GradePosted is emitted once finalize or expiry commits a scored terminal
// attempt. The notification collaborator consumes it; this engine only
// publishes.
type GradePosted struct {
	AttemptID       string  `json:"attemptId"`
	StudentID       string  `json:"studentId"`
	QuizID          string  `json:"quizId"`
	PercentageScore float64 `json:"percentageScore"`
}
