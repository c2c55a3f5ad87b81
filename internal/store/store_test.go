package store

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/able/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func insertTestAssessment(t *testing.T, s *Store, title string) int64 {
	t.Helper()
	id, err := s.CreateAssessment(model.Assessment{
		Title:        title,
		CreatedBy:    "edu-1",
		CreatorName:  "Ms. Rao",
		TimerMinutes: 10,
		Questions: []model.Question{
			{Kind: model.KindMultipleChoice, Text: "2 + 2?", Options: []string{"3", "4", "5"}, CorrectAnswer: "4"},
			{Kind: model.KindShortAnswer, Text: "Capital of India?", CorrectAnswer: "New Delhi"},
		},
	})
	require.NoError(t, err)
	return id
}

func TestUserLifecycle(t *testing.T) {
	s := newTestStore(t)

	u, err := s.GetUser("missing")
	require.NoError(t, err)
	assert.Nil(t, u)

	created, err := s.CreateUser(model.User{ID: "stu-1", Name: "Asha", Email: "asha@example.com"})
	require.NoError(t, err)
	assert.True(t, created, "first CreateUser creates a row")
	created, err = s.CreateUser(model.User{ID: "stu-1", Name: "Someone else"})
	require.NoError(t, err)
	assert.False(t, created, "second CreateUser is a no-op")

	u, err = s.GetUser("stu-1")
	require.NoError(t, err)
	assert.Equal(t, "Asha", u.Name)
	assert.Equal(t, model.RoleStudent, u.Role)
	assert.Equal(t, model.LanguageEnglish, u.Language)
	assert.False(t, u.Onboarded)

	supports := []model.Support{model.SupportMotor, model.SupportAutism}
	require.NoError(t, s.CompleteOnboarding("stu-1", supports, model.LanguageKannada))
	require.NoError(t, s.SetMotorPreference("stu-1", model.MotorSip))

	u, err = s.GetUser("stu-1")
	require.NoError(t, err)
	assert.True(t, u.Onboarded)
	assert.Equal(t, supports, u.Supports)
	assert.Equal(t, model.LanguageKannada, u.Language)
	assert.Equal(t, model.MotorSip, u.MotorPreference)

	assert.ErrorIs(t, s.UpdateSupports("nobody", nil), sql.ErrNoRows)
}

func TestListUsersByRole(t *testing.T) {
	s := newTestStore(t)

	for _, u := range []model.User{
		{ID: "s2", Name: "Zoya"},
		{ID: "s1", Name: "Arjun"},
		{ID: "e1", Name: "Ms. Rao", Role: model.RoleEducator, Email: "rao@example.com"},
	} {
		_, err := s.CreateUser(u)
		require.NoError(t, err)
	}

	students, err := s.ListUsers(model.RoleStudent)
	require.NoError(t, err)
	require.Len(t, students, 2)
	assert.Equal(t, "Arjun", students[0].Name, "students ordered by name")

	edu, err := s.GetUserByEmail("rao@example.com")
	require.NoError(t, err)
	require.NotNil(t, edu)
	assert.Equal(t, model.RoleEducator, edu.Role)
}

func TestAssessmentRoundTrip(t *testing.T) {
	s := newTestStore(t)

	got, err := s.GetAssessment(42)
	require.NoError(t, err)
	assert.Nil(t, got)

	id := insertTestAssessment(t, s, "Basics")

	got, err = s.GetAssessment(id)
	require.NoError(t, err)
	assert.Equal(t, "Basics", got.Title)
	assert.Equal(t, 10, got.TimerMinutes)
	require.Len(t, got.Questions, 2)
	assert.Equal(t, "4", got.Questions[0].Options[1])
	assert.Equal(t, model.KindShortAnswer, got.Questions[1].Kind)
	assert.Empty(t, got.Questions[1].Options)

	list, err := s.ListAssessments()
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestScoresAndExport(t *testing.T) {
	s := newTestStore(t)
	aid := insertTestAssessment(t, s, "Basics")

	started := time.Now().Add(-5 * time.Minute)
	scoreID, err := s.SubmitScore(model.Score{
		UserID:       "stu-1",
		Name:         "Asha",
		Supports:     []model.Support{model.SupportVisual},
		AssessmentID: aid,
		Score:        2,
		Total:        3,
		StartedAt:    started,
	})
	require.NoError(t, err)
	assert.NotZero(t, scoreID)

	results, err := s.ExportScores()
	require.NoError(t, err)
	require.Len(t, results, 1)
	r := results[0]
	assert.Equal(t, "Basics", r.AssessmentTitle)
	assert.Equal(t, 2, r.Score)
	assert.Equal(t, 3, r.Total)
	assert.Equal(t, []model.Support{model.SupportVisual}, r.Supports)
}

func TestAttemptLifecycle(t *testing.T) {
	s := newTestStore(t)
	aid := insertTestAssessment(t, s, "Basics")

	id, err := s.StartAttempt("stu-1", aid, time.Now())
	require.NoError(t, err)

	a, err := s.GetAttempt(id)
	require.NoError(t, err)
	assert.Nil(t, a.FinishedAt)
	assert.Nil(t, a.ScoreID)

	scoreID, err := s.SubmitScore(model.Score{UserID: "stu-1", Name: "Asha", Score: 1, Total: 2, StartedAt: a.StartedAt})
	require.NoError(t, err)
	require.NoError(t, s.FinishAttempt(id, scoreID))
	a, err = s.GetAttempt(id)
	require.NoError(t, err)
	assert.NotNil(t, a.FinishedAt)
	require.NotNil(t, a.ScoreID)
	assert.Equal(t, scoreID, *a.ScoreID)

	_, err = s.StartAttempt("stu-2", aid, time.Now().Add(-48*time.Hour))
	require.NoError(t, err)
	n, err := s.CleanupStaleAttempts()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n, "stale attempts removed")
}

func TestMetadata(t *testing.T) {
	s := newTestStore(t)

	h, err := s.GetImportedFileHash()
	require.NoError(t, err)
	assert.Empty(t, h)
	require.NoError(t, s.SetImportedFileHash("abc"))
	require.NoError(t, s.SetImportedFileHash("def"))
	h, err = s.GetImportedFileHash()
	require.NoError(t, err)
	assert.Equal(t, "def", h)
}

func TestImportAssessments(t *testing.T) {
	s := newTestStore(t)
	data := []byte(`[
	  {"title": "Shapes", "timer": 5, "questions": [
	    {"type": "mcq", "question": "Sides of a triangle?", "options": ["2", "3", "4"], "correctAnswer": "3"},
	    {"type": "short", "question": "Name a round shape.", "correctAnswer": "circle"}
	  ]}
	]`)

	ids, err := s.ImportAssessments(data, "edu-1", "Ms. Rao")
	require.NoError(t, err)
	require.Len(t, ids, 1)
	a, err := s.GetAssessment(ids[0])
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, "edu-1", a.CreatedBy)
	assert.Len(t, a.Questions, 2)

	_, err = s.ImportAssessments(data, "edu-1", "Ms. Rao")
	assert.ErrorIs(t, err, ErrAlreadyImported)
}

func TestImportRejectsInvalidAssessment(t *testing.T) {
	s := newTestStore(t)
	data := []byte(`[{"title": "Bad", "questions": [
	  {"type": "mcq", "question": "Pick", "options": ["a", "b"], "correctAnswer": "c"}
	]}]`)
	_, err := s.ImportAssessments(data, "edu-1", "")
	assert.ErrorIs(t, err, model.ErrInvalid)
	list, err := s.ListAssessments()
	require.NoError(t, err)
	assert.Empty(t, list)
}
