package store

import (
	"log/slog"
	"time"

	"github.com/pavelanni/able/internal/model"
)

// SubmitScore records a finished assessment and returns the score ID.
func (s *Store) SubmitScore(sc model.Score) (int64, error) {
	if sc.SubmittedAt.IsZero() {
		sc.SubmittedAt = time.Now()
	}
	res, err := s.db.Exec(
		`INSERT INTO scores (user_id, name, supports, assessment_id, score, total, started_at, submitted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sc.UserID, sc.Name, encodeList(sc.Supports), sc.AssessmentID, sc.Score, sc.Total,
		sc.StartedAt, sc.SubmittedAt,
	)
	if err != nil {
		slog.Error("failed to submit score", "user", sc.UserID, "error", err)
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	slog.Info("recorded score", "id", id, "user", sc.UserID, "score", sc.Score, "total", sc.Total)
	return id, nil
}

// ListScores returns all recorded scores, newest first.
func (s *Store) ListScores() ([]model.Score, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, name, supports, assessment_id, score, total, started_at, submitted_at
		 FROM scores ORDER BY submitted_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scores []model.Score
	for rows.Next() {
		var sc model.Score
		var supports string
		if err := rows.Scan(&sc.ID, &sc.UserID, &sc.Name, &supports, &sc.AssessmentID,
			&sc.Score, &sc.Total, &sc.StartedAt, &sc.SubmittedAt); err != nil {
			return nil, err
		}
		if sc.Supports, err = decodeList[model.Support](supports); err != nil {
			return nil, err
		}
		scores = append(scores, sc)
	}
	return scores, rows.Err()
}
