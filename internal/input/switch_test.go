package input

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineSplitterAcrossReads(t *testing.T) {
	var s LineSplitter

	assert.Empty(t, s.Push([]byte("sip detec")))
	assert.Equal(t, "sip detec", s.Pending())

	lines := s.Push([]byte("ted\npuff detected\n"))
	assert.Equal(t, []string{"sip detected", "puff detected"}, lines)
	assert.Empty(t, s.Pending())

	lines = s.Push([]byte("SIP\r\npu"))
	assert.Equal(t, []string{"SIP"}, lines)
	assert.Equal(t, "pu", s.Pending())
}

func TestClassifyToken(t *testing.T) {
	tests := []struct {
		token string
		kind  Kind
		ok    bool
	}{
		{"sip detected", Advance, true},
		{"  PUFF Detected ", Next, true},
		{"Sip", Advance, true},
		{"ready", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		ev, ok := ClassifyToken(tt.token)
		assert.Equal(t, tt.ok, ok, tt.token)
		assert.Equal(t, tt.kind, ev.Kind, tt.token)
	}
}

func TestSwitchAdapterBuffersAcrossReads(t *testing.T) {
	pr, pw := io.Pipe()
	a := NewSwitch(func(context.Context) (io.ReadCloser, error) { return pr, nil })
	out := make(chan Event, 4)
	require.NoError(t, a.Start(context.Background(), out))

	_, err := pw.Write([]byte("sip detec"))
	require.NoError(t, err)
	_, err = pw.Write([]byte("ted\npuff detected\n"))
	require.NoError(t, err)

	assert.Equal(t, Advance, receive(t, out).Kind)
	assert.Equal(t, Next, receive(t, out).Kind)
	assertNoEvent(t, out)

	a.Stop()
	// The port is released on stop.
	_, err = pw.Write([]byte("sip\n"))
	assert.ErrorIs(t, err, io.ErrClosedPipe)
	a.Stop()
}

func TestSwitchAdapterOpenFailure(t *testing.T) {
	boom := errors.New("no such port")
	a := NewSwitch(func(context.Context) (io.ReadCloser, error) { return nil, boom })
	err := a.Start(context.Background(), make(chan Event))
	require.ErrorIs(t, err, boom)
	a.Stop()
}

func TestSwitchAdapterRejectsDoubleStart(t *testing.T) {
	pr, _ := io.Pipe()
	a := NewSwitch(func(context.Context) (io.ReadCloser, error) { return pr, nil })
	require.NoError(t, a.Start(context.Background(), make(chan Event)))
	defer a.Stop()

	pr2, pw2 := io.Pipe()
	a.open = func(context.Context) (io.ReadCloser, error) { return pr2, nil }
	require.ErrorIs(t, a.Start(context.Background(), make(chan Event)), ErrRunning)
	_, err := pw2.Write([]byte("x"))
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}
