package app

import (
	"context"
	"fmt"

	"quiz-assessment-engine/internal/domain"
)

const distributionBuckets = 10

// Analytics derives read-side statistics from a quiz's scored attempts.
// Everything is computed fresh from source data on every call; attempts are
// never mutated here. Timed-out attempts carry a real score and count like
// completed ones; abandoned attempts are excluded everywhere.
type Analytics struct {
	quizzes  QuizRepository
	attempts AttemptRepository
}

func NewAnalytics(quizzes QuizRepository, attempts AttemptRepository) *Analytics {
	return &Analytics{quizzes: quizzes, attempts: attempts}
}

// QuizStatistics aggregates pass rate, average score, per-question and
// per-option statistics and a ten-bucket score distribution.
func (a *Analytics) QuizStatistics(ctx context.Context, quizID string) (domain.QuizStatistics, error) {
	quiz, err := a.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.QuizStatistics{}, err
	}
	attempts, err := a.attempts.FindScoredAttempts(ctx, quizID)
	if err != nil {
		return domain.QuizStatistics{}, err
	}

	stats := domain.QuizStatistics{
		QuizID:            quizID,
		CompletedAttempts: len(attempts),
		ScoreDistribution: emptyDistribution(),
	}

	sum := 0.0
	for _, attempt := range attempts {
		pct := 0.0
		if attempt.PercentageScore != nil {
			pct = *attempt.PercentageScore
		}
		sum += pct
		if attempt.Passed {
			stats.PassedCount++
		} else {
			stats.FailedCount++
		}
		stats.ScoreDistribution[bucketIndex(pct)].Count++
	}
	if len(attempts) > 0 {
		stats.AverageScore = sum / float64(len(attempts))
		stats.PassRate = float64(stats.PassedCount) / float64(len(attempts))
	}

	stats.Questions = questionBreakdown(quiz, attempts)
	return stats, nil
}

func questionBreakdown(quiz domain.Quiz, attempts []domain.QuizAttempt) []domain.QuestionStats {
	breakdown := make([]domain.QuestionStats, 0, len(quiz.Questions))
	for _, question := range quiz.Questions {
		qs := domain.QuestionStats{QuestionID: question.ID, Text: question.Text}
		selections := make(map[string]int, len(question.Options))

		for _, attempt := range attempts {
			i := attempt.AnswerFor(question.ID)
			if i < 0 {
				continue
			}
			answer := attempt.Answers[i]
			qs.TotalAnswers++
			if answer.Correct {
				qs.CorrectAnswers++
			}
			for _, optID := range answer.SelectedOptionIDs {
				selections[optID]++
			}
		}

		if qs.TotalAnswers > 0 {
			qs.CorrectPercentage = float64(qs.CorrectAnswers) / float64(qs.TotalAnswers) * 100
		}
		for _, opt := range question.Options {
			os := domain.OptionStats{OptionID: opt.ID, Text: opt.Text, TimesSelected: selections[opt.ID]}
			if qs.TotalAnswers > 0 {
				os.SelectionPercentage = float64(os.TimesSelected) / float64(qs.TotalAnswers) * 100
			}
			qs.Options = append(qs.Options, os)
		}
		breakdown = append(breakdown, qs)
	}
	return breakdown
}

// bucketIndex maps a percentage score to its histogram bucket. The top
// bucket is closed so 100 lands in 90-100.
func bucketIndex(pct float64) int {
	idx := int(pct / distributionBuckets)
	if idx < 0 {
		idx = 0
	}
	if idx >= distributionBuckets {
		idx = distributionBuckets - 1
	}
	return idx
}

func emptyDistribution() []domain.ScoreBucket {
	buckets := make([]domain.ScoreBucket, distributionBuckets)
	for i := range buckets {
		low := i * distributionBuckets
		high := low + distributionBuckets
		buckets[i] = domain.ScoreBucket{
			Label: fmt.Sprintf("%d-%d", low, high),
			Low:   float64(low),
			High:  float64(high),
		}
	}
	return buckets
}
