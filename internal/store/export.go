package store

import (
	"fmt"

	"github.com/pavelanni/able/internal/model"
)

// ExportScores builds export-ready score results joined with assessment titles.
func (s *Store) ExportScores() ([]model.ScoreResult, error) {
	scores, err := s.ListScores()
	if err != nil {
		return nil, fmt.Errorf("list scores: %w", err)
	}

	titles := make(map[int64]string)
	var results []model.ScoreResult
	for _, sc := range scores {
		title, ok := titles[sc.AssessmentID]
		if !ok && sc.AssessmentID != 0 {
			a, err := s.GetAssessment(sc.AssessmentID)
			if err != nil {
				return nil, fmt.Errorf("get assessment %d: %w", sc.AssessmentID, err)
			}
			if a != nil {
				title = a.Title
			}
			titles[sc.AssessmentID] = title
		}

		results = append(results, model.ScoreResult{
			ScoreID:         sc.ID,
			UserID:          sc.UserID,
			Name:            sc.Name,
			Supports:        sc.Supports,
			AssessmentID:    sc.AssessmentID,
			AssessmentTitle: title,
			Score:           sc.Score,
			Total:           sc.Total,
			StartedAt:       sc.StartedAt,
			SubmittedAt:     sc.SubmittedAt,
		})
	}
	return results, nil
}
