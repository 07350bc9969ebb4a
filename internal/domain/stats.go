package domain

// OptionStats is the per-option slice of question statistics.
type OptionStats struct {
	OptionID            string  `json:"optionId"`
	Text                string  `json:"text"`
	TimesSelected       int     `json:"timesSelected"`
	SelectionPercentage float64 `json:"selectionPercentage"`
}

// QuestionStats summarizes how a question performed across attempts.
type QuestionStats struct {
	QuestionID        string        `json:"questionId"`
	Text              string        `json:"text"`
	TotalAnswers      int           `json:"totalAnswers"`
	CorrectAnswers    int           `json:"correctAnswers"`
	CorrectPercentage float64       `json:"correctPercentage"`
	Options           []OptionStats `json:"options,omitempty"`
}

// ScoreBucket is one histogram bucket of percentage scores. Low is
// inclusive; High is exclusive except for the top bucket.
type ScoreBucket struct {
	Label string  `json:"label"`
	Low   float64 `json:"low"`
	High  float64 `json:"high"`
	Count int     `json:"count"`
}

// QuizStatistics is the read-side summary derived from a quiz's scored
// attempts. It is computed fresh on every call and never cached here.
type QuizStatistics struct {
	QuizID            string          `json:"quizId"`
	CompletedAttempts int             `json:"completedAttempts"`
	AverageScore      float64         `json:"averageScore"`
	PassRate          float64         `json:"passRate"`
	PassedCount       int             `json:"passedCount"`
	FailedCount       int             `json:"failedCount"`
	ScoreDistribution []ScoreBucket   `json:"scoreDistribution"`
	Questions         []QuestionStats `json:"questions"`
}
