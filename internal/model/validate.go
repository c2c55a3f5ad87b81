package model

import (
	"errors"
	"fmt"
	"slices"

	"github.com/go-playground/validator/v10"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid")

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateAssessment checks field rules and that every multiple-choice
// question lists its correct answer among the options.
func ValidateAssessment(a *Assessment) error {
	if err := validate.Struct(a); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	for i, q := range a.Questions {
		if q.Kind == KindMultipleChoice && !slices.Contains(q.Options, q.CorrectAnswer) {
			return fmt.Errorf("%w: question %d: correct answer %q is not an option", ErrInvalid, i+1, q.CorrectAnswer)
		}
	}
	return nil
}

// ValidateScore checks a submitted score.
func ValidateScore(s *Score) error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}
