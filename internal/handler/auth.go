package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/able/internal/model"
	"github.com/pavelanni/able/internal/store"
)

const authRealm = `Basic realm="able", charset="UTF-8"`

// requireEducator checks HTTP Basic credentials (email and password) against
// educator accounts and stores the educator in the request context.
func (h *Handler) requireEducator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		email, password, ok := r.BasicAuth()
		if !ok {
			h.unauthorized(w)
			return
		}

		user, err := h.store.GetUserByEmail(email)
		if err != nil {
			h.serverError(w, "failed to get user", err)
			return
		}
		if user == nil || user.PasswordHash == "" {
			h.unauthorized(w)
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
			h.unauthorized(w)
			return
		}
		if user.Role != model.RoleEducator {
			writeError(w, http.StatusForbidden, "educator role required")
			return
		}

		ctx := model.ContextWithUser(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", authRealm)
	writeError(w, http.StatusUnauthorized, "unauthorized")
}

// SeedEducator makes sure an educator account with email exists and accepts
// password, creating it or resetting its password hash.
func SeedEducator(s *store.Store, email, name, password string) error {
	if email == "" || password == "" {
		return fmt.Errorf("educator email and password are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash educator password: %w", err)
	}

	existing, err := s.GetUserByEmail(email)
	if err != nil {
		return fmt.Errorf("look up educator: %w", err)
	}
	if existing != nil {
		if existing.Role != model.RoleEducator {
			return fmt.Errorf("user %s exists and is not an educator", email)
		}
		if err := s.SetPasswordHash(existing.ID, string(hash)); err != nil {
			return fmt.Errorf("update educator password: %w", err)
		}
		slog.Info("updated educator password", "email", email)
		return nil
	}

	if name == "" {
		name = email
	}
	_, err = s.CreateUser(model.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		Role:         model.RoleEducator,
		Onboarded:    true,
		PasswordHash: string(hash),
	})
	if err != nil {
		return fmt.Errorf("create educator: %w", err)
	}
	slog.Info("seeded educator", "email", email)
	return nil
}
