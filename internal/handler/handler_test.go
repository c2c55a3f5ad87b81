package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/able/internal/events"
	"github.com/pavelanni/able/internal/i18n"
	"github.com/pavelanni/able/internal/model"
	"github.com/pavelanni/able/internal/report"
	"github.com/pavelanni/able/internal/session"
	"github.com/pavelanni/able/internal/store"
)

const (
	educatorEmail    = "rao@school.test"
	educatorPassword = "s3cret"
)

func TestMain(m *testing.M) {
	if err := i18n.Init("en"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type testServer struct {
	*httptest.Server
	store *store.Store
	pub   *events.MockPublisher
}

func newTestServer(t *testing.T, hinter session.Hinter) *testServer {
	t.Helper()
	st, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, SeedEducator(st, educatorEmail, "Ms. Rao", educatorPassword))

	pub := events.NewMockPublisher()
	h, err := New(Config{
		Store:     st,
		Hinter:    hinter,
		Publisher: pub,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	r := chi.NewRouter()
	r.Use(i18n.Middleware("en"))
	h.Routes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, store: st, pub: pub}
}

type auth struct{ email, password string }

var educator = &auth{educatorEmail, educatorPassword}

func (s *testServer) do(t *testing.T, method, path string, body any, a *auth) (int, []byte) {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	case []byte:
		rd = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, s.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if a != nil {
		req.SetBasicAuth(a.email, a.password)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func planets() model.Assessment {
	return model.Assessment{
		Title: "Planets",
		Questions: []model.Question{
			{Kind: model.KindMultipleChoice, Text: "2 + 2?", Options: []string{"3", "4", "5"}, CorrectAnswer: "4"},
			{Kind: model.KindMultipleChoice, Text: "Largest planet?", Options: []string{"Jupiter", "Mars"}, CorrectAnswer: "Jupiter"},
		},
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)
	code, _ := s.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestUserEndpoints(t *testing.T) {
	s := newTestServer(t, nil)

	code, _ := s.do(t, http.MethodPost, "/api/users", map[string]string{"id": "u1", "name": "Asha"}, nil)
	assert.Equal(t, http.StatusCreated, code)
	code, _ = s.do(t, http.MethodPost, "/api/users", map[string]string{"id": "u1", "name": "Asha"}, nil)
	assert.Equal(t, http.StatusOK, code, "creating an existing user is idempotent")
	code, _ = s.do(t, http.MethodPost, "/api/users", map[string]string{"name": "No ID"}, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = s.do(t, http.MethodPost, "/api/users", "{not json", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body := s.do(t, http.MethodGet, "/api/users/u1", nil, nil)
	require.Equal(t, http.StatusOK, code)
	var u model.User
	require.NoError(t, json.Unmarshal(body, &u))
	assert.Equal(t, "Asha", u.Name)
	assert.False(t, u.Onboarded)

	code, _ = s.do(t, http.MethodGet, "/api/users/ghost", nil, nil)
	assert.Equal(t, http.StatusNotFound, code)

	tests := []struct {
		name     string
		supports []string
		want     int
	}{
		{"too many", []string{"cognitive", "hearing", "autism", "adhd"}, http.StatusBadRequest},
		{"visual with motor", []string{"visual", "motor"}, http.StatusBadRequest},
		{"unknown", []string{"telepathy"}, http.StatusBadRequest},
		{"valid", []string{"motor", "hearing"}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := s.do(t, http.MethodPost, "/api/users/u1/onboarding",
				map[string]any{"supports": tt.supports, "language": "hindi"}, nil)
			assert.Equal(t, tt.want, code)
		})
	}

	_, body = s.do(t, http.MethodGet, "/api/users/u1", nil, nil)
	require.NoError(t, json.Unmarshal(body, &u))
	assert.True(t, u.Onboarded)
	assert.Equal(t, model.LanguageHindi, u.Language)
	assert.Equal(t, []model.Support{model.SupportMotor, model.SupportHearing}, u.Supports)

	code, _ = s.do(t, http.MethodPut, "/api/users/u1/supports", map[string]any{"supports": []string{"visual", "motor"}}, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = s.do(t, http.MethodPut, "/api/users/u1/supports", map[string]any{"supports": []string{"motor"}}, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = s.do(t, http.MethodPut, "/api/users/ghost/supports", map[string]any{"supports": []string{"motor"}}, nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = s.do(t, http.MethodPost, "/api/users/ghost/onboarding", map[string]any{"supports": []string{}}, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestMotorPreference(t *testing.T) {
	s := newTestServer(t, nil)
	_, err := s.store.CreateUser(model.User{ID: "u1", Name: "Ravi", Supports: []model.Support{model.SupportMotor}})
	require.NoError(t, err)

	code, _ := s.do(t, http.MethodPut, "/api/users/u1/motor-preference", map[string]string{"preference": "foot"}, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = s.do(t, http.MethodPut, "/api/users/u1/motor-preference", map[string]string{}, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = s.do(t, http.MethodPut, "/api/users/ghost/motor-preference", map[string]string{"preference": "sip"}, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, body := s.do(t, http.MethodPut, "/api/users/u1/motor-preference", map[string]string{"preference": "eye"}, nil)
	require.Equal(t, http.StatusOK, code)
	var u model.User
	require.NoError(t, json.Unmarshal(body, &u))
	assert.Equal(t, model.MotorEye, u.MotorPreference)
}

func TestScores(t *testing.T) {
	s := newTestServer(t, nil)

	code, _ := s.do(t, http.MethodPost, "/api/scores", map[string]any{"name": "Asha", "score": 1, "total": 2}, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = s.do(t, http.MethodPost, "/api/scores", map[string]any{"userId": "u1", "name": "Asha", "score": 3, "total": 2}, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body := s.do(t, http.MethodPost, "/api/scores", map[string]any{
		"userId": "u1", "name": "Asha", "supports": []string{"hearing"}, "score": 1, "total": 2,
	}, nil)
	require.Equal(t, http.StatusCreated, code)
	var created struct {
		ScoreID int64 `json:"scoreId"`
	}
	require.NoError(t, json.Unmarshal(body, &created))
	assert.NotZero(t, created.ScoreID)

	evs := s.pub.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, events.EventScoreSubmitted, evs[0].Type)

	code, body = s.do(t, http.MethodGet, "/api/scores", nil, educator)
	require.Equal(t, http.StatusOK, code)
	var scores []model.Score
	require.NoError(t, json.Unmarshal(body, &scores))
	require.Len(t, scores, 1)
	assert.Equal(t, "Asha", scores[0].Name)
}

func TestEducatorAuth(t *testing.T) {
	s := newTestServer(t, nil)
	_, err := s.store.CreateUser(model.User{ID: "u1", Name: "Asha", Email: "asha@school.test"})
	require.NoError(t, err)

	tests := []struct {
		name string
		auth *auth
		want int
	}{
		{"no credentials", nil, http.StatusUnauthorized},
		{"wrong password", &auth{educatorEmail, "nope"}, http.StatusUnauthorized},
		{"unknown email", &auth{"who@school.test", educatorPassword}, http.StatusUnauthorized},
		{"student without password", &auth{"asha@school.test", ""}, http.StatusUnauthorized},
		{"educator", educator, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := s.do(t, http.MethodGet, "/api/students", nil, tt.auth)
			assert.Equal(t, tt.want, code)
		})
	}

	_, body := s.do(t, http.MethodGet, "/api/students", nil, educator)
	var students []model.User
	require.NoError(t, json.Unmarshal(body, &students))
	require.Len(t, students, 1)
	assert.Equal(t, "u1", students[0].ID)
}

func TestSeedEducatorResetsPassword(t *testing.T) {
	s := newTestServer(t, nil)
	require.NoError(t, SeedEducator(s.store, educatorEmail, "", "changed"))

	code, _ := s.do(t, http.MethodGet, "/api/students", nil, educator)
	assert.Equal(t, http.StatusUnauthorized, code)
	code, _ = s.do(t, http.MethodGet, "/api/students", nil, &auth{educatorEmail, "changed"})
	assert.Equal(t, http.StatusOK, code)

	_, err := s.store.CreateUser(model.User{ID: "u1", Name: "Asha", Email: "asha@school.test"})
	require.NoError(t, err)
	assert.Error(t, SeedEducator(s.store, "asha@school.test", "", "x"))
	assert.Error(t, SeedEducator(s.store, "", "", "x"))
}

func TestAssessments(t *testing.T) {
	s := newTestServer(t, nil)

	code, _ := s.do(t, http.MethodPost, "/api/assessments", planets(), nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	bad := planets()
	bad.Questions[0].CorrectAnswer = "22"
	code, _ = s.do(t, http.MethodPost, "/api/assessments", bad, educator)
	assert.Equal(t, http.StatusBadRequest, code)

	bad = planets()
	bad.Questions[1].Options = []string{"Jupiter"}
	code, _ = s.do(t, http.MethodPost, "/api/assessments", bad, educator)
	assert.Equal(t, http.StatusBadRequest, code)

	bad = planets()
	bad.Questions[0].Text = ""
	code, _ = s.do(t, http.MethodPost, "/api/assessments", bad, educator)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body := s.do(t, http.MethodPost, "/api/assessments", planets(), educator)
	require.Equal(t, http.StatusCreated, code)
	var created struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(body, &created))

	code, body = s.do(t, http.MethodGet, "/api/assessments", nil, nil)
	require.Equal(t, http.StatusOK, code)
	var list []model.Assessment
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "Ms. Rao", list[0].CreatorName)

	code, body = s.do(t, http.MethodGet, "/api/assessments/"+itoa(created.ID), nil, nil)
	require.Equal(t, http.StatusOK, code)
	var a model.Assessment
	require.NoError(t, json.Unmarshal(body, &a))
	assert.Len(t, a.Questions, 2)

	code, _ = s.do(t, http.MethodGet, "/api/assessments/999", nil, nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = s.do(t, http.MethodGet, "/api/assessments/abc", nil, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestImportAssessments(t *testing.T) {
	s := newTestServer(t, nil)
	data, err := json.Marshal([]model.Assessment{planets(), planets()})
	require.NoError(t, err)

	code, _ := s.do(t, http.MethodPost, "/api/assessments/import", data, nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, body := s.do(t, http.MethodPost, "/api/assessments/import", data, educator)
	require.Equal(t, http.StatusCreated, code)
	assert.Contains(t, string(body), `"count":2`)

	code, _ = s.do(t, http.MethodPost, "/api/assessments/import", data, educator)
	assert.Equal(t, http.StatusConflict, code)

	code, _ = s.do(t, http.MethodPost, "/api/assessments/import", `[{"title": ""}]`, educator)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestExportScores(t *testing.T) {
	s := newTestServer(t, nil)
	_, err := s.store.SubmitScore(model.Score{UserID: "u1", Name: "Asha", Score: 1, Total: 2})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, s.URL+"/api/scores/export?format=xlsx", nil)
	require.NoError(t, err)
	req.SetBasicAuth(educatorEmail, educatorPassword)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, report.FormatXLSX.ContentType(), resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "scores.xlsx")

	code, body := s.do(t, http.MethodGet, "/api/scores/export", nil, educator)
	require.Equal(t, http.StatusOK, code)
	var exp model.ScoreExport
	require.NoError(t, json.Unmarshal(body, &exp))
	assert.Len(t, exp.Results, 1)

	code, _ = s.do(t, http.MethodGet, "/api/scores/export?format=csv", nil, educator)
	assert.Equal(t, http.StatusBadRequest, code)
}

type stubHinter struct{ err error }

func (h stubHinter) Simplify(_ context.Context, text string, lang model.Language) (string, error) {
	if h.err != nil {
		return "", h.err
	}
	return string(lang) + ": " + strings.ToLower(text), nil
}

func TestSimplify(t *testing.T) {
	tests := []struct {
		name   string
		hinter session.Hinter
		query  string
		body   any
		code   int
		want   string
	}{
		{"missing text", stubHinter{}, "", map[string]string{}, http.StatusBadRequest, ""},
		{"simplified", stubHinter{}, "", map[string]string{"text": "Largest PLANET?", "language": "kannada"}, http.StatusOK, "kannada: largest planet?"},
		{"service error", stubHinter{err: errors.New("down")}, "", map[string]string{"text": "Q"}, http.StatusOK, "Could not simplify."},
		{"no service", nil, "", map[string]string{"text": "Q"}, http.StatusOK, "Could not simplify."},
		{"localized fallback", nil, "?lang=hi", map[string]string{"text": "Q"}, http.StatusOK, "प्रश्न सरल नहीं किया जा सका।"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, tt.hinter)
			code, body := s.do(t, http.MethodPost, "/api/simplify"+tt.query, tt.body, nil)
			require.Equal(t, tt.code, code)
			if tt.want == "" {
				return
			}
			var out map[string]string
			require.NoError(t, json.Unmarshal(body, &out))
			assert.Equal(t, tt.want, out["simplified"])
		})
	}
}

func itoa(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
