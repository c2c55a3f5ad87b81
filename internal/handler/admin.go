package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/pavelanni/able/internal/model"
	"github.com/pavelanni/able/internal/store"
)

// handleImportAssessments loads a JSON array of assessments posted as the
// request body. Re-posting the last imported file is reported as a conflict.
func (h *Handler) handleImportAssessments(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	var createdBy, creatorName string
	if u := model.UserFromContext(r.Context()); u != nil {
		createdBy, creatorName = u.ID, u.Name
	}
	ids, err := h.store.ImportAssessments(data, createdBy, creatorName)
	switch {
	case errors.Is(err, store.ErrAlreadyImported):
		writeError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, model.ErrInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.serverError(w, "failed to import assessments", err)
		return
	}

	h.logger.Info("imported assessments via API", "count", len(ids))
	writeJSON(w, http.StatusCreated, map[string]any{"ids": ids, "count": len(ids)})
}
