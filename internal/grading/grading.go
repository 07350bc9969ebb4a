package grading

import (
	"fmt"
	"strings"

	"quiz-assessment-engine/internal/domain"
)

// Result is the outcome of grading a single answer.
type Result struct {
	Score          float64
	Correct        bool
	ManuallyGraded bool
}

// Grade scores one answer against its question. It is pure: no I/O, no
// mutation of its inputs, deterministic for the same inputs. Scores are
// never negative and never exceed the question's points.
func Grade(q domain.Question, a domain.StudentAnswer) Result {
	switch q.Type {
	case domain.MultipleChoice, domain.TrueFalse:
		return gradeSingleChoice(q, a)
	case domain.MultipleAnswer:
		return gradeMultipleAnswer(q, a)
	case domain.ShortAnswer:
		return gradeShortAnswer(q, a)
	case domain.Essay:
		// Never auto-scored; an instructor override sets the score later.
		return Result{ManuallyGraded: true}
	default:
		return Result{ManuallyGraded: true}
	}
}

// gradeSingleChoice awards full points only when exactly one option is
// selected and that option is correct. Zero or multiple selections score 0.
func gradeSingleChoice(q domain.Question, a domain.StudentAnswer) Result {
	selected := dedupe(a.SelectedOptionIDs)
	if len(selected) != 1 {
		return Result{}
	}
	opt, ok := q.OptionByID(selected[0])
	if !ok || !opt.Correct {
		return Result{}
	}
	return Result{Score: float64(q.Points), Correct: true}
}

// gradeMultipleAnswer applies partial credit: the fraction of correct
// options selected, minus the fraction of incorrect options selected,
// clamped at zero. When every option is correct the penalty denominator
// would be zero, so the penalty term is zero; that configuration is an
// authoring error flagged by ValidateQuestion.
func gradeMultipleAnswer(q domain.Question, a domain.StudentAnswer) Result {
	correctOptions := q.CorrectOptionCount()
	if correctOptions == 0 {
		// Degenerate: nothing can ever be correct.
		return Result{}
	}
	incorrectOptions := len(q.Options) - correctOptions

	correctSelections := 0
	incorrectSelections := 0
	for _, id := range dedupe(a.SelectedOptionIDs) {
		if opt, ok := q.OptionByID(id); ok && opt.Correct {
			correctSelections++
		} else {
			incorrectSelections++
		}
	}

	correctRatio := float64(correctSelections) / float64(correctOptions)
	incorrectPenalty := 0.0
	if incorrectOptions > 0 {
		incorrectPenalty = float64(incorrectSelections) / float64(incorrectOptions)
	}

	partial := correctRatio - incorrectPenalty
	if partial < 0 {
		partial = 0
	}
	if partial > 1 {
		partial = 1
	}

	return Result{
		Score:   partial * float64(q.Points),
		Correct: correctSelections == correctOptions && incorrectSelections == 0,
	}
}

// gradeShortAnswer compares the trimmed, lowercased text against every
// accepted answer (options flagged correct). First match wins full credit.
func gradeShortAnswer(q domain.Question, a domain.StudentAnswer) Result {
	text := normalize(a.TextAnswer)
	if text == "" {
		return Result{}
	}
	for _, opt := range q.Options {
		if opt.Correct && normalize(opt.Text) == text {
			return Result{Score: float64(q.Points), Correct: true}
		}
	}
	return Result{}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func dedupe(ids []string) []string {
	if len(ids) < 2 {
		return ids
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// ValidateQuestion reports configurations that make grading degenerate.
// These are authoring errors: the grading functions above still guard
// against them, but they should be rejected before a quiz is saved.
func ValidateQuestion(q domain.Question) []string {
	var problems []string
	correct := q.CorrectOptionCount()

	switch q.Type {
	case domain.MultipleChoice, domain.TrueFalse:
		if len(q.Options) < 2 {
			problems = append(problems, fmt.Sprintf("question %s: needs at least two options", q.ID))
		}
		if correct != 1 {
			problems = append(problems, fmt.Sprintf("question %s: needs exactly one correct option, has %d", q.ID, correct))
		}
	case domain.MultipleAnswer:
		if correct == 0 {
			problems = append(problems, fmt.Sprintf("question %s: needs at least one correct option", q.ID))
		}
		if len(q.Options) > 0 && correct == len(q.Options) {
			problems = append(problems, fmt.Sprintf("question %s: needs at least one incorrect option", q.ID))
		}
	case domain.ShortAnswer:
		if correct == 0 {
			problems = append(problems, fmt.Sprintf("question %s: needs at least one accepted answer", q.ID))
		}
	case domain.Essay:
		if len(q.Options) > 0 {
			problems = append(problems, fmt.Sprintf("question %s: essay questions carry no options", q.ID))
		}
	default:
		problems = append(problems, fmt.Sprintf("question %s: unknown type %q", q.ID, q.Type))
	}
	return problems
}
