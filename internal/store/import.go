package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pavelanni/able/internal/model"
)

// ErrAlreadyImported is returned when the same assessments file was imported before.
var ErrAlreadyImported = errors.New("assessments file already imported")

// ImportAssessments validates and inserts every assessment in a JSON array.
// A file whose hash matches the last import is skipped with ErrAlreadyImported.
func (s *Store) ImportAssessments(data []byte, createdBy, creatorName string) ([]int64, error) {
	hash := sha256sum(data)
	stored, err := s.GetImportedFileHash()
	if err != nil {
		return nil, fmt.Errorf("check import status: %w", err)
	}
	if stored == hash {
		return nil, ErrAlreadyImported
	}

	var assessments []model.Assessment
	if err := json.Unmarshal(data, &assessments); err != nil {
		return nil, fmt.Errorf("%w: parse assessments: %w", model.ErrInvalid, err)
	}
	for i := range assessments {
		if err := model.ValidateAssessment(&assessments[i]); err != nil {
			return nil, fmt.Errorf("assessment %d: %w", i+1, err)
		}
	}

	var ids []int64
	for _, a := range assessments {
		if a.CreatedBy == "" {
			a.CreatedBy, a.CreatorName = createdBy, creatorName
		}
		id, err := s.CreateAssessment(a)
		if err != nil {
			return ids, fmt.Errorf("insert %q: %w", a.Title, err)
		}
		ids = append(ids, id)
	}

	if err := s.SetImportedFileHash(hash); err != nil {
		slog.Error("failed to record import", "error", err)
	}
	slog.Info("imported assessments", "count", len(ids))
	return ids, nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
