package model

import "time"

// ScoreExport is the top-level JSON structure for score export.
type ScoreExport struct {
	ExportedAt time.Time     `json:"exported_at"`
	Results    []ScoreResult `json:"results"`
}

// ScoreResult is one recorded score joined with its assessment title.
type ScoreResult struct {
	ScoreID         int64     `json:"score_id"`
	UserID          string    `json:"user_id"`
	Name            string    `json:"name"`
	Supports        []Support `json:"supports"`
	AssessmentID    int64     `json:"assessment_id"`
	AssessmentTitle string    `json:"assessment_title"`
	Score           int       `json:"score"`
	Total           int       `json:"total"`
	StartedAt       time.Time `json:"started_at"`
	SubmittedAt     time.Time `json:"submitted_at"`
}
