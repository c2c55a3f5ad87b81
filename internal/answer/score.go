package answer

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/pavelanni/able/internal/model"
)

// Result is the outcome of scoring a session.
type Result struct {
	Score   int    `json:"score"`
	Total   int    `json:"total"`
	Correct []bool `json:"correct"`
}

// normalize trims and case-folds s for comparison.
func normalize(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// Score counts correct answers. Multiple-choice answers are compared by
// option text, so reordering options does not change the score.
func Score(questions []model.Question, answers []Answer) Result {
	res := Result{Total: len(questions), Correct: make([]bool, len(questions))}
	for i, q := range questions {
		var a Answer
		if i < len(answers) {
			a = answers[i]
		}
		if isCorrect(q, a) {
			res.Correct[i] = true
			res.Score++
		}
	}
	return res
}

func isCorrect(q model.Question, a Answer) bool {
	switch q.Kind {
	case model.KindMultipleChoice:
		if len(q.Options) == 0 || !a.Set || a.Option < 0 || a.Option >= len(q.Options) {
			return false
		}
		return normalize(q.Options[a.Option]) == normalize(q.CorrectAnswer)
	case model.KindShortAnswer:
		return normalize(a.Text) == normalize(q.CorrectAnswer)
	}
	return false
}
