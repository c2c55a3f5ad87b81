package translate

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/able/internal/model"
)

type fakeTranslator struct {
	calls atomic.Int32
	err   error
	gate  chan struct{}
	fn    func(string) string
}

func (f *fakeTranslator) TranslateBatch(ctx context.Context, sentences []string, _ model.Language) ([]string, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	if f.err != nil {
		return nil, f.err
	}
	out := make([]string, len(sentences))
	for i, s := range sentences {
		out[i] = f.fn(s)
	}
	return out, nil
}

func upper(s string) string { return strings.ToUpper(s) }

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		out  string
		want string
	}{
		{"good", "ಮುಂದಿನ ಪ್ರಶ್ನೆ", "ಮುಂದಿನ ಪ್ರಶ್ನೆ"},
		{"trimmed", "  नमस्ते  ", "नमस्ते"},
		{"too short", "x", "src"},
		{"empty", "", "src"},
		{"too long", strings.Repeat("a", 301), "src"},
		{"punctuation only", ". , ।", "src"},
		{"ellipsis", "हाँ… नहीं", "src"},
		{"comma run", "a,b,c,d,e,f,g", "src"},
		{"period run", "a.b.c.d.e.f.g", "src"},
		{"five commas ok", "a,b,c,d,e,f", "a,b,c,d,e,f"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize("src", tt.out))
		})
	}
}

func TestDefaultLanguageIsIdentity(t *testing.T) {
	f := &fakeTranslator{fn: upper}
	s := NewService(f, nil, quiet())
	in := []string{"one", "two"}
	assert.Equal(t, in, s.Translate(context.Background(), model.LanguageEnglish, in))
	assert.Zero(t, f.calls.Load())
}

func TestTranslateCachesOnce(t *testing.T) {
	f := &fakeTranslator{fn: upper}
	cache := NewMemoryCache()
	s := NewService(f, cache, quiet())
	in := []string{"next", "first option"}

	got := s.Translate(context.Background(), model.LanguageHindi, in)
	assert.Equal(t, []string{"NEXT", "FIRST OPTION"}, got)
	got = s.Translate(context.Background(), model.LanguageHindi, in)
	assert.Equal(t, []string{"NEXT", "FIRST OPTION"}, got)
	assert.Equal(t, int32(1), f.calls.Load())
	assert.Equal(t, 1, cache.Len())

	s.Translate(context.Background(), model.LanguageKannada, in)
	assert.Equal(t, int32(2), f.calls.Load(), "languages are cached separately")
}

func TestTranslateFailureFallsBackUncached(t *testing.T) {
	f := &fakeTranslator{err: errors.New("unavailable")}
	cache := NewMemoryCache()
	s := NewService(f, cache, quiet())
	in := []string{"question"}

	assert.Equal(t, in, s.Translate(context.Background(), model.LanguageHindi, in))
	assert.Zero(t, cache.Len())
}

func TestConcurrentRequestsShareOneFetch(t *testing.T) {
	f := &fakeTranslator{fn: upper, gate: make(chan struct{})}
	s := NewService(f, nil, quiet())
	in := []string{"shared"}

	var wg sync.WaitGroup
	results := make([][]string, 4)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = s.Translate(context.Background(), model.LanguageKannada, in)
		}()
	}
	require.Eventually(t, func() bool { return f.calls.Load() == 1 }, time.Second, time.Millisecond)
	close(f.gate)
	wg.Wait()

	assert.LessOrEqual(t, f.calls.Load(), int32(4))
	for _, r := range results {
		assert.Equal(t, []string{"SHARED"}, r)
	}
}

func TestSanitizedEntriesKeepSource(t *testing.T) {
	f := &fakeTranslator{fn: func(s string) string {
		if s == "bad" {
			return "…"
		}
		return upper(s)
	}}
	s := NewService(f, nil, quiet())
	got := s.Translate(context.Background(), model.LanguageHindi, []string{"good", "bad"})
	assert.Equal(t, []string{"GOOD", "bad"}, got)
}

func TestClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req batchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		out := make([]string, len(req.Sentences))
		for i, s := range req.Sentences {
			out[i] = req.Lang + ":" + s
		}
		json.NewEncoder(w).Encode(batchResponse{Translations: out})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	got, err := c.TranslateBatch(context.Background(), []string{"a", "b"}, model.LanguageHindi)
	require.NoError(t, err)
	assert.Equal(t, []string{"hindi:a", "hindi:b"}, got)

	got, err = c.TranslateBatch(context.Background(), nil, model.LanguageHindi)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestClientServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(batchResponse{Error: "quota"})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).TranslateBatch(context.Background(), []string{"a"}, model.LanguageKannada)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota")
}

func TestKeyDependsOnBoundaries(t *testing.T) {
	assert.NotEqual(t, Key(model.LanguageHindi, []string{"ab", "c"}), Key(model.LanguageHindi, []string{"a", "bc"}))
	assert.NotEqual(t, Key(model.LanguageHindi, []string{"a"}), Key(model.LanguageKannada, []string{"a"}))
}
