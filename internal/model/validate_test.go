package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateAssessment(t *testing.T) {
	mcq := func(correct string, options ...string) Question {
		return Question{Kind: KindMultipleChoice, Text: "Q", Options: options, CorrectAnswer: correct}
	}
	tests := []struct {
		name      string
		questions []Question
		ok        bool
	}{
		{"valid mcq", []Question{mcq("b", "a", "b")}, true},
		{"short answer", []Question{{Kind: KindShortAnswer, Text: "Q", CorrectAnswer: "x"}}, true},
		{"one option", []Question{mcq("a", "a")}, false},
		{"seven options", []Question{mcq("a", "a", "b", "c", "d", "e", "f", "g")}, false},
		{"correct not an option", []Question{mcq("z", "a", "b")}, false},
		{"missing text", []Question{{Kind: KindShortAnswer, CorrectAnswer: "x"}}, false},
		{"unknown kind", []Question{{Kind: "essay", Text: "Q", CorrectAnswer: "x"}}, false},
		{"no questions", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAssessment(&Assessment{Title: "T", Questions: tt.questions})
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalid)
			}
		})
	}
}

func TestValidateScore(t *testing.T) {
	assert.NoError(t, ValidateScore(&Score{UserID: "u1", Name: "Asha", Score: 2, Total: 3}))
	for _, s := range []Score{
		{Name: "Asha", Score: 1, Total: 3},
		{UserID: "u1", Score: 1, Total: 3},
		{UserID: "u1", Name: "Asha", Score: 4, Total: 3},
		{UserID: "u1", Name: "Asha"},
	} {
		assert.ErrorIs(t, ValidateScore(&s), ErrInvalid, "ValidateScore(%+v)", s)
	}
}
