package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/able/internal/model"
)

// staleAttemptTTL bounds how long an unfinished attempt is kept.
const staleAttemptTTL = 24 * time.Hour

// StartAttempt records the start of a live session and returns its ID.
func (s *Store) StartAttempt(userID string, assessmentID int64, startedAt time.Time) (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO attempts (id, user_id, assessment_id, started_at) VALUES (?, ?, ?, ?)`,
		id, userID, assessmentID, startedAt,
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

// FinishAttempt links an attempt to its recorded score.
func (s *Store) FinishAttempt(id string, scoreID int64) error {
	_, err := s.db.Exec(
		`UPDATE attempts SET finished_at = ?, score_id = ? WHERE id = ?`,
		time.Now(), scoreID, id,
	)
	return err
}

// GetAttempt returns the attempt with the given ID, or nil if not found.
func (s *Store) GetAttempt(id string) (*model.Attempt, error) {
	var a model.Attempt
	var finished sql.NullTime
	var scoreID sql.NullInt64
	err := s.db.QueryRow(
		`SELECT id, user_id, assessment_id, started_at, finished_at, score_id FROM attempts WHERE id = ?`, id,
	).Scan(&a.ID, &a.UserID, &a.AssessmentID, &a.StartedAt, &finished, &scoreID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if finished.Valid {
		a.FinishedAt = &finished.Time
	}
	if scoreID.Valid {
		a.ScoreID = &scoreID.Int64
	}
	return &a, nil
}

// CleanupStaleAttempts removes unfinished attempts older than a day.
func (s *Store) CleanupStaleAttempts() (int64, error) {
	res, err := s.db.Exec(
		`DELETE FROM attempts WHERE finished_at IS NULL AND started_at < ?`,
		time.Now().Add(-staleAttemptTTL),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
