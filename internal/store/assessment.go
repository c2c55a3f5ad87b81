package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pavelanni/able/internal/model"
)

// CreateAssessment inserts an assessment together with its questions.
func (s *Store) CreateAssessment(a model.Assessment) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT INTO assessments (title, created_by, creator_name, timer_minutes, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		a.Title, a.CreatedBy, a.CreatorName, a.TimerMinutes, time.Now(),
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for i, q := range a.Questions {
		opts, err := json.Marshal(q.Options)
		if err != nil {
			return 0, fmt.Errorf("encode options: %w", err)
		}
		if q.Options == nil {
			opts = []byte("[]")
		}
		_, err = tx.Exec(
			`INSERT INTO questions (assessment_id, position, kind, text, options, correct_answer, image_url)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, i, q.Kind, q.Text, string(opts), q.CorrectAnswer, q.ImageURL,
		)
		if err != nil {
			return 0, fmt.Errorf("insert question %d: %w", i, err)
		}
	}

	return id, tx.Commit()
}

// GetAssessment returns an assessment with its questions, or nil if not found.
func (s *Store) GetAssessment(id int64) (*model.Assessment, error) {
	var a model.Assessment
	err := s.db.QueryRow(
		`SELECT id, title, created_by, creator_name, timer_minutes, created_at
		 FROM assessments WHERE id = ?`, id,
	).Scan(&a.ID, &a.Title, &a.CreatedBy, &a.CreatorName, &a.TimerMinutes, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	a.Questions, err = s.questionsFor(id)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAssessments returns all assessments without their questions, newest first.
func (s *Store) ListAssessments() ([]model.Assessment, error) {
	rows, err := s.db.Query(
		`SELECT id, title, created_by, creator_name, timer_minutes, created_at
		 FROM assessments ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []model.Assessment
	for rows.Next() {
		var a model.Assessment
		if err := rows.Scan(&a.ID, &a.Title, &a.CreatedBy, &a.CreatorName, &a.TimerMinutes, &a.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

func (s *Store) questionsFor(assessmentID int64) ([]model.Question, error) {
	rows, err := s.db.Query(
		`SELECT position, kind, text, options, correct_answer, image_url
		 FROM questions WHERE assessment_id = ? ORDER BY position`, assessmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var qs []model.Question
	for rows.Next() {
		var q model.Question
		var opts string
		if err := rows.Scan(&q.Position, &q.Kind, &q.Text, &opts, &q.CorrectAnswer, &q.ImageURL); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(opts), &q.Options); err != nil {
			return nil, fmt.Errorf("decode options of question %d: %w", q.Position, err)
		}
		qs = append(qs, q)
	}
	return qs, rows.Err()
}
