package session

import "errors"

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrAssessmentNotFound = errors.New("assessment not found")
	// ErrPreferenceRequired means a motor user has not chosen an input device.
	ErrPreferenceRequired = errors.New("motor preference required")
	ErrSubmitFailed       = errors.New("score submission failed")
	ErrNoQuestions        = errors.New("assessment has no questions")
)
