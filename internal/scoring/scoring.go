// Package scoring compares submitted answers against the authoritative
// question list. Score is pure: identical inputs always produce identical
// results, and nothing here mutates attempt state.
package scoring

import (
	"math"
	"strings"

	"quiz-session-service/internal/domain"
)

// Score grades answers index-aligned to questions. A missing or empty answer
// counts as skipped, never wrong. Correctness is case-insensitive,
// whitespace-trimmed string equality with the stored correct answer.
// Timings are pass-through analytics only: entries that are absent, negative,
// or not finite become nil rather than corrupting the row.
func Score(questions []domain.Question, answers []string, timings []*float64) domain.ScoreResult {
	result := domain.ScoreResult{
		TotalQuestions: len(questions),
		Results:        make([]domain.QuestionResult, 0, len(questions)),
	}

	for i, q := range questions {
		answer := ""
		if i < len(answers) {
			answer = strings.TrimSpace(answers[i])
		}
		skipped := answer == ""
		correct := !skipped && strings.EqualFold(answer, strings.TrimSpace(q.CorrectAnswer))

		switch {
		case skipped:
			result.SkippedCount++
		case correct:
			result.CorrectCount++
			result.Score++
		default:
			result.WrongCount++
		}

		result.Results = append(result.Results, domain.QuestionResult{
			Question:       q.Text,
			SelectedAnswer: answer,
			CorrectAnswer:  q.CorrectAnswer,
			IsCorrect:      correct,
			Skipped:        skipped,
			Explanation:    q.Explanation,
			TimeSpent:      sanitizeTiming(timings, i),
		})
	}

	if result.TotalQuestions > 0 {
		result.Percentage = int(math.Round(float64(result.Score) / float64(result.TotalQuestions) * 100))
	}
	return result
}

func sanitizeTiming(timings []*float64, i int) *float64 {
	if i >= len(timings) || timings[i] == nil {
		return nil
	}
	v := *timings[i]
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
