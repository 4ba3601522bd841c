// Package quiz implements quiz authoring, attempts and review.
package quiz

import "github.com/s/learnhub/internal/models"

// Outcome is the graded result of one attempt.
type Outcome struct {
	Score      int
	Passed     bool
	Correct    int
	Total      int
	Transcript models.Answers
}

// Score grades answers against questions. Unanswered questions count as
// wrong; answers to questions outside the quiz are dropped from the
// transcript, the rest are kept exactly as submitted.
func Score(questions []models.Question, answers models.Answers) Outcome {
	out := Outcome{Total: len(questions), Transcript: models.Answers{}}
	for _, q := range questions {
		chosen, ok := answers[q.ID]
		if !ok {
			continue
		}
		out.Transcript[q.ID] = chosen
		if chosen == q.CorrectOption {
			out.Correct++
		}
	}
	if out.Total > 0 {
		out.Score = 100 * out.Correct / out.Total
	}
	out.Passed = out.Score >= models.PassMark
	return out
}
