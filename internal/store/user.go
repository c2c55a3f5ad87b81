package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/pavelanni/able/internal/model"
)

const userColumns = `id, name, email, role, supports, motor_preference, language, onboarded, password_hash, created_at`

// CreateUser inserts a user if no user with the same ID exists.
// It reports whether a new row was created.
func (s *Store) CreateUser(u model.User) (bool, error) {
	if u.Role == "" {
		u.Role = model.RoleStudent
	}
	if u.Language == "" {
		u.Language = model.DefaultLanguage
	}
	res, err := s.db.Exec(
		`INSERT INTO users (id, name, email, role, supports, motor_preference, language, onboarded, password_hash, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		u.ID, u.Name, u.Email, u.Role, encodeList(u.Supports), u.MotorPreference,
		u.Language, u.Onboarded, u.PasswordHash, time.Now(),
	)
	if err != nil {
		slog.Error("failed to create user", "id", u.ID, "error", err)
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		slog.Info("created user", "id", u.ID, "role", u.Role)
	}
	return n > 0, nil
}

// GetUser returns a user by ID, or nil if not found.
func (s *Store) GetUser(id string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// GetUserByEmail returns a user by email, or nil if not found.
func (s *Store) GetUserByEmail(email string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// ListUsers returns all users with the given role, ordered by name.
func (s *Store) ListUsers(role model.Role) ([]model.User, error) {
	rows, err := s.db.Query(`SELECT `+userColumns+` FROM users WHERE role = ? ORDER BY name`, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// CompleteOnboarding stores the user's supports and language and marks them onboarded.
func (s *Store) CompleteOnboarding(id string, supports []model.Support, lang model.Language) error {
	return s.updateUser(id,
		`UPDATE users SET supports = ?, language = ?, onboarded = 1 WHERE id = ?`,
		encodeList(supports), lang, id)
}

// UpdateSupports replaces the user's support list.
func (s *Store) UpdateSupports(id string, supports []model.Support) error {
	return s.updateUser(id, `UPDATE users SET supports = ? WHERE id = ?`, encodeList(supports), id)
}

// SetMotorPreference records the input device of a user with motor supports.
func (s *Store) SetMotorPreference(id string, pref model.MotorPreference) error {
	return s.updateUser(id, `UPDATE users SET motor_preference = ? WHERE id = ?`, pref, id)
}

// SetPasswordHash stores a bcrypt hash for an educator account.
func (s *Store) SetPasswordHash(id, hash string) error {
	return s.updateUser(id, `UPDATE users SET password_hash = ? WHERE id = ?`, hash, id)
}

func (s *Store) updateUser(id, query string, args ...any) error {
	res, err := s.db.Exec(query, args...)
	if err != nil {
		slog.Error("failed to update user", "id", id, "error", err)
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("user %s: %w", id, sql.ErrNoRows)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var u model.User
	var supports string
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &supports, &u.MotorPreference,
		&u.Language, &u.Onboarded, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	if u.Supports, err = decodeList[model.Support](supports); err != nil {
		return nil, err
	}
	return &u, nil
}
