package answer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pavelanni/able/internal/model"
)

func TestScoreComparesText(t *testing.T) {
	q := mcq("Largest planet?", "Jupiter", "Mars", "Jupiter", "Venus")
	permuted := mcq("Largest planet?", "Jupiter", "Venus", "Mars", "Jupiter")

	orig := Score([]model.Question{q}, []Answer{{Set: true, Option: 1}})
	perm := Score([]model.Question{permuted}, []Answer{{Set: true, Option: 2}})
	assert.Equal(t, 1, orig.Score)
	assert.Equal(t, orig.Score, perm.Score)
}

func TestScoreNormalizes(t *testing.T) {
	qs := []model.Question{
		mcq("Q", " jupiter ", "JUPITER", "Mars"),
		{Kind: model.KindShortAnswer, Text: "Q", CorrectAnswer: "New Delhi"},
		{Kind: model.KindShortAnswer, Text: "Q", CorrectAnswer: "Straße"},
	}
	r := Score(qs, []Answer{
		{Set: true, Option: 0},
		{Set: true, Text: "  NEW DELHI"},
		{Set: true, Text: "STRASSE"},
	})
	assert.Equal(t, 3, r.Score)
}

func TestScoreEdgeCases(t *testing.T) {
	tests := []struct {
		name string
		q    model.Question
		a    Answer
		want bool
	}{
		{"no options", model.Question{Kind: model.KindMultipleChoice, CorrectAnswer: ""}, Answer{Set: true, Option: 0}, false},
		{"unanswered mcq", mcq("Q", "A", "A", "B"), Answer{}, false},
		{"unanswered short with empty key", model.Question{Kind: model.KindShortAnswer}, Answer{}, true},
		{"unanswered short", model.Question{Kind: model.KindShortAnswer, CorrectAnswer: "x"}, Answer{}, false},
		{"out of range option", mcq("Q", "A", "A"), Answer{Set: true, Option: 4}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Score([]model.Question{tt.q}, []Answer{tt.a})
			assert.Equal(t, tt.want, r.Score == 1)
			assert.Equal(t, 1, r.Total)
		})
	}
}

func TestUnansweredShortAnswersScoreZero(t *testing.T) {
	qs := []model.Question{
		{Kind: model.KindShortAnswer, CorrectAnswer: "alpha"},
		{Kind: model.KindShortAnswer, CorrectAnswer: "beta"},
	}
	r := Score(qs, make([]Answer, len(qs)))
	assert.Equal(t, 0, r.Score)
	assert.Equal(t, 2, r.Total)
}

func TestScoreToleratesShortAnswerSlice(t *testing.T) {
	r := Score([]model.Question{mcq("Q", "A", "A")}, nil)
	assert.Equal(t, 0, r.Score)
}
