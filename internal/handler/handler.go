// Package handler serves the record-store API and the live session socket.
package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pavelanni/able/internal/events"
	"github.com/pavelanni/able/internal/i18n"
	"github.com/pavelanni/able/internal/model"
	"github.com/pavelanni/able/internal/report"
	"github.com/pavelanni/able/internal/session"
	"github.com/pavelanni/able/internal/speech"
	"github.com/pavelanni/able/internal/store"
)

const maxBodyBytes = 10 << 20

// Config holds the services shared by all requests. Only Store is required.
type Config struct {
	Store       *store.Store
	Hinter      session.Hinter
	Captioner   session.Captioner
	Translator  session.Translator
	Publisher   session.Publisher
	Synthesizer speech.Synthesizer // audio for languages the browser cannot speak
	Logger      *slog.Logger
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	cfg      Config
	store    *store.Store
	logger   *slog.Logger
	validate *validator.Validate
}

// New creates a new Handler.
func New(cfg Config) (*Handler, error) {
	if cfg.Store == nil {
		return nil, errors.New("handler: store is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Handler{
		cfg:      cfg,
		store:    cfg.Store,
		logger:   cfg.Logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}, nil
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/users", h.handleCreateUser)
		r.Get("/users/{id}", h.handleGetUser)
		r.Post("/users/{id}/onboarding", h.handleOnboarding)
		r.Put("/users/{id}/supports", h.handleUpdateSupports)
		r.Put("/users/{id}/motor-preference", h.handleMotorPreference)
		r.Post("/scores", h.handleSubmitScore)
		r.Get("/assessments", h.handleListAssessments)
		r.Get("/assessments/{id}", h.handleGetAssessment)
		r.Post("/simplify", h.handleSimplify)
		r.Get("/live/{assessmentID}", h.handleLive)

		r.Group(func(r chi.Router) {
			r.Use(h.requireEducator)
			r.Get("/scores", h.handleListScores)
			r.Get("/scores/export", h.handleExportScores)
			r.Get("/students", h.handleListStudents)
			r.Post("/assessments", h.handleCreateAssessment)
			r.Post("/assessments/import", h.handleImportAssessments)
		})
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createUserRequest struct {
	ID    string     `json:"id" validate:"required"`
	Name  string     `json:"name" validate:"required"`
	Email string     `json:"email" validate:"omitempty,email"`
	Role  model.Role `json:"role" validate:"omitempty,oneof=student educator"`
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !h.decode(w, r, &req) {
		return
	}
	created, err := h.store.CreateUser(model.User{ID: req.ID, Name: req.Name, Email: req.Email, Role: req.Role})
	if err != nil {
		h.serverError(w, "failed to create user", err)
		return
	}
	u, err := h.store.GetUser(req.ID)
	if err != nil {
		h.serverError(w, "failed to get user", err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, u)
}

func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.store.GetUser(chi.URLParam(r, "id"))
	if err != nil {
		h.serverError(w, "failed to get user", err)
		return
	}
	if u == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

type onboardingRequest struct {
	Supports []model.Support `json:"supports"`
	Language string          `json:"language"`
}

func (h *Handler) handleOnboarding(w http.ResponseWriter, r *http.Request) {
	var req onboardingRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := model.ValidateSupports(req.Supports); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id := chi.URLParam(r, "id")
	err := h.store.CompleteOnboarding(id, req.Supports, model.ParseLanguage(req.Language))
	h.respondUser(w, id, err)
}

type supportsRequest struct {
	Supports []model.Support `json:"supports"`
}

func (h *Handler) handleUpdateSupports(w http.ResponseWriter, r *http.Request) {
	var req supportsRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := model.ValidateSupports(req.Supports); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id := chi.URLParam(r, "id")
	h.respondUser(w, id, h.store.UpdateSupports(id, req.Supports))
}

type motorPreferenceRequest struct {
	Preference model.MotorPreference `json:"preference"`
}

func (h *Handler) handleMotorPreference(w http.ResponseWriter, r *http.Request) {
	var req motorPreferenceRequest
	if !h.decode(w, r, &req) {
		return
	}
	if !req.Preference.Valid() {
		writeError(w, http.StatusBadRequest, "preference must be braille, sip or eye")
		return
	}
	id := chi.URLParam(r, "id")
	h.respondUser(w, id, session.SetMotorPreference(h.store, id, req.Preference))
}

// respondUser writes the user after an update, mapping a missing row to 404.
func (h *Handler) respondUser(w http.ResponseWriter, id string, err error) {
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		h.serverError(w, "failed to update user", err)
		return
	}
	u, err := h.store.GetUser(id)
	if err != nil {
		h.serverError(w, "failed to get user", err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *Handler) handleSubmitScore(w http.ResponseWriter, r *http.Request) {
	var sc model.Score
	if !h.decode(w, r, &sc) {
		return
	}
	if err := model.ValidateScore(&sc); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if sc.SubmittedAt.IsZero() {
		sc.SubmittedAt = time.Now()
	}
	id, err := h.store.SubmitScore(sc)
	if err != nil {
		h.serverError(w, "failed to submit score", err)
		return
	}
	h.publish(r.Context(), events.EventScoreSubmitted, events.ScoreSubmitted{
		ScoreID:      id,
		UserID:       sc.UserID,
		AssessmentID: sc.AssessmentID,
		Supports:     supportNames(sc.Supports),
		Score:        sc.Score,
		Total:        sc.Total,
		StartedAt:    sc.StartedAt,
		SubmittedAt:  sc.SubmittedAt,
	})
	writeJSON(w, http.StatusCreated, map[string]int64{"scoreId": id})
}

func (h *Handler) handleListScores(w http.ResponseWriter, _ *http.Request) {
	scores, err := h.store.ListScores()
	if err != nil {
		h.serverError(w, "failed to list scores", err)
		return
	}
	if scores == nil {
		scores = []model.Score{}
	}
	writeJSON(w, http.StatusOK, scores)
}

func (h *Handler) handleExportScores(w http.ResponseWriter, r *http.Request) {
	format := report.FormatJSON
	if f := r.URL.Query().Get("format"); f != "" {
		var err error
		if format, err = report.ParseFormat(f); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	results, err := h.store.ExportScores()
	if err != nil {
		h.serverError(w, "failed to export scores", err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="scores.%s"`, format))
	if err := report.Write(w, format, results, time.Now()); err != nil {
		h.logger.Error("failed to write export", "format", format, "error", err)
	}
}

func (h *Handler) handleListStudents(w http.ResponseWriter, _ *http.Request) {
	users, err := h.store.ListUsers(model.RoleStudent)
	if err != nil {
		h.serverError(w, "failed to list students", err)
		return
	}
	if users == nil {
		users = []model.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *Handler) handleListAssessments(w http.ResponseWriter, _ *http.Request) {
	list, err := h.store.ListAssessments()
	if err != nil {
		h.serverError(w, "failed to list assessments", err)
		return
	}
	if list == nil {
		list = []model.Assessment{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) handleGetAssessment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid assessment ID")
		return
	}
	a, err := h.store.GetAssessment(id)
	if err != nil {
		h.serverError(w, "failed to get assessment", err)
		return
	}
	if a == nil {
		writeError(w, http.StatusNotFound, "assessment not found")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) handleCreateAssessment(w http.ResponseWriter, r *http.Request) {
	var a model.Assessment
	if !h.decode(w, r, &a) {
		return
	}
	if err := model.ValidateAssessment(&a); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if u := model.UserFromContext(r.Context()); u != nil {
		a.CreatedBy, a.CreatorName = u.ID, u.Name
	}
	id, err := h.store.CreateAssessment(a)
	if err != nil {
		h.serverError(w, "failed to create assessment", err)
		return
	}
	h.logger.Info("created assessment", "id", id, "title", a.Title, "questions", len(a.Questions))
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

type simplifyRequest struct {
	Text     string `json:"text" validate:"required"`
	Language string `json:"language"`
}

func (h *Handler) handleSimplify(w http.ResponseWriter, r *http.Request) {
	var req simplifyRequest
	if !h.decode(w, r, &req) {
		return
	}
	out := i18n.T(r.Context(), "CouldNotSimplify")
	if h.cfg.Hinter != nil {
		s, err := h.cfg.Hinter.Simplify(r.Context(), req.Text, model.ParseLanguage(req.Language))
		if err != nil {
			h.logger.Warn("simplify failed", "error", err)
		} else {
			out = s
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"simplified": out})
}

// decode reads a JSON body into v and validates it. It writes a 400 and
// returns false on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			return true
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func (h *Handler) publish(ctx context.Context, t events.EventType, data any) {
	if h.cfg.Publisher == nil {
		return
	}
	if err := h.cfg.Publisher.Publish(ctx, events.New(t, data)); err != nil {
		h.logger.Warn("failed to publish event", "type", t, "error", err)
	}
}

func (h *Handler) serverError(w http.ResponseWriter, msg string, err error) {
	h.logger.Error(msg, "error", err)
	writeError(w, http.StatusInternalServerError, msg)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func supportNames(s []model.Support) []string {
	out := make([]string, len(s))
	for i, v := range s {
		out[i] = string(v)
	}
	return out
}
