package braille

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	writes [][]byte
	onWrite func(n int)
}

func (r *recorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	r.writes = append(r.writes, append([]byte(nil), p...))
	n := len(r.writes)
	r.mu.Unlock()
	if r.onWrite != nil {
		r.onWrite(n)
	}
	return len(p), nil
}

func (r *recorder) all() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]byte(nil), r.writes...)
}

type pauses struct {
	mu sync.Mutex
	d  []time.Duration
}

func (p *pauses) sleep(ctx context.Context, d time.Duration) error {
	p.mu.Lock()
	p.d = append(p.d, d)
	p.mu.Unlock()
	return ctx.Err()
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestDots(t *testing.T) {
	tests := []struct {
		r    rune
		want Cell
		ok   bool
	}{
		{'a', Cell{1}, true},
		{'H', Cell{1, 2, 5}, true},
		{'0', Cell{2, 4, 5}, true},
		{'?', Cell{1, 4, 6}, true},
		{'क', Cell{1, 3}, true},
		{'ನ', Cell{1, 4}, true},
		{' ', Cell{}, true},
		{'€', nil, false},
	}
	for _, tt := range tests {
		got, ok := Dots(tt.r)
		assert.Equal(t, tt.ok, ok, string(tt.r))
		assert.Equal(t, tt.want, got, string(tt.r))
	}
}

func TestDigitsReuseLetters(t *testing.T) {
	for i, r := range "1234567890" {
		d, _ := Dots(r)
		l, _ := Dots(rune('a' + i))
		assert.Equal(t, l, d)
	}
}

func TestEncode(t *testing.T) {
	assert.Equal(t, []Cell{{1}, nil, {1, 2}}, Encode("a€b"))
	assert.Equal(t, []byte{3, 1, 2, 5}, Cell{1, 2, 5}.Command())
}

func TestRenderSequenceAndPacing(t *testing.T) {
	rec := &recorder{}
	p := &pauses{}
	tx := NewTransmitter(rec, p.sleep, quiet())

	require.NoError(t, tx.Render(context.Background(), "Hi", []string{"ok", "no"}))

	want := [][]byte{
		{3, 1, 2, 5}, {2, 2, 4}, {0xFF, 60},
		{1, 1}, {3, 1, 3, 5}, {2, 1, 3}, {0xFF, 60},
		{2, 1, 2}, {4, 1, 3, 4, 5}, {3, 1, 3, 5}, {0xFF, 60},
	}
	assert.Equal(t, want, rec.all())
	assert.Equal(t, []time.Duration{
		CharDelay, CharDelay, BuzzDelay, QuestionDelay,
		LabelDelay, CharDelay, CharDelay, BuzzDelay, OptionDelay,
		LabelDelay, CharDelay, CharDelay, BuzzDelay, OptionDelay,
	}, p.d)
}

func TestUnknownRunePausesWithoutCommand(t *testing.T) {
	rec := &recorder{}
	p := &pauses{}
	tx := NewTransmitter(rec, p.sleep, quiet())

	require.NoError(t, tx.Render(context.Background(), "a€", nil))
	assert.Equal(t, [][]byte{{1, 1}, {0xFF, 60}}, rec.all())
	assert.Equal(t, []time.Duration{CharDelay, BlankDelay, BuzzDelay, QuestionDelay}, p.d)
}

func TestCancelStopsBetweenCommands(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rec := &recorder{onWrite: func(n int) {
		if n == 2 {
			cancel()
		}
	}}
	tx := NewTransmitter(rec, func(context.Context, time.Duration) error { return nil }, quiet())

	err := tx.Render(ctx, "abc def", []string{"x"})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, [][]byte{{1, 1}, {2, 1, 2}}, rec.all(), "whole commands only")
}

func TestShowCancelsPrevious(t *testing.T) {
	rec := &recorder{}
	release := make(chan struct{})
	sleep := func(ctx context.Context, _ time.Duration) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-release:
			return nil
		}
	}
	tx := NewTransmitter(rec, sleep, quiet())

	tx.Show("x", nil)
	tx.Show("ab", nil)
	close(release)
	tx.Wait()

	got := rec.all()
	if len(got) > 0 && bytes.Equal(got[0], []byte{4, 1, 3, 4, 6}) {
		got = got[1:]
	}
	assert.Equal(t, [][]byte{{1, 1}, {2, 1, 2}, {0xFF, 60}}, got)
}

type closingWriter struct {
	recorder
	closed bool
}

func (c *closingWriter) Close() error {
	c.closed = true
	return nil
}

func TestCloseClosesDevice(t *testing.T) {
	w := &closingWriter{}
	tx := NewTransmitter(w, func(context.Context, time.Duration) error { return nil }, quiet())
	require.NoError(t, tx.Close())
	assert.True(t, w.closed)
}

func TestConnectOpenFailure(t *testing.T) {
	_, err := Connect(context.Background(), func(context.Context) (io.WriteCloser, error) {
		return nil, errors.New("no such port")
	}, quiet())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such port")
}
