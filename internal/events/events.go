// Package events publishes domain events about completed assessments.
package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a domain event.
type EventType string

const (
	EventScoreSubmitted EventType = "score.submitted"
	EventAttemptStarted EventType = "attempt.started"
)

// DefaultTopic carries every able event.
const DefaultTopic = "able.scores"

const (
	source  = "able"
	version = "1"
)

// Event is the envelope for all published events.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Version   string    `json:"version"`
	Data      any       `json:"data"`
}

// ScoreSubmitted is published after a score is stored.
type ScoreSubmitted struct {
	ScoreID      int64     `json:"score_id"`
	AttemptID    string    `json:"attempt_id,omitempty"`
	UserID       string    `json:"user_id"`
	AssessmentID int64     `json:"assessment_id"`
	Mode         string    `json:"mode"`
	Supports     []string  `json:"supports,omitempty"`
	Score        int       `json:"score"`
	Total        int       `json:"total"`
	StartedAt    time.Time `json:"started_at"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

// AttemptStarted is published when a session begins answering.
type AttemptStarted struct {
	AttemptID    string    `json:"attempt_id"`
	UserID       string    `json:"user_id"`
	AssessmentID int64     `json:"assessment_id"`
	Mode         string    `json:"mode"`
	StartedAt    time.Time `json:"started_at"`
}

// New wraps data in an envelope with a fresh ID.
func New(t EventType, data any) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      t,
		Timestamp: time.Now().UTC(),
		Source:    source,
		Version:   version,
		Data:      data,
	}
}
