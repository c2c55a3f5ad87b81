package input

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSpeaker struct {
	mu    sync.Mutex
	lines []string
}

func (s *recordingSpeaker) Say(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, text)
}

func (s *recordingSpeaker) said() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

func TestParseIntent(t *testing.T) {
	tests := []struct {
		transcript string
		want       string
		ok         bool
	}{
		{"please go to the next one", "NEXT", true},
		{"select option three please", "SELECT(2)", true},
		{"Submit!", "SUBMIT", true},
		{"I'm done, next", "SUBMIT", true},
		{"let's move on", "NEXT", true},
		{"first option", "SELECT(0)", true},
		{"Option 2.", "SELECT(1)", true},
		{"bravo", "SELECT(1)", true},
		{"see", "SELECT(2)", true},
		{"answer is delta", "SELECT(3)", true},
		{"4th", "SELECT(3)", true},
		{"hello there", "", false},
		{"", "", false},
		{"...", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.transcript, func(t *testing.T) {
			ev, ok := ParseIntent(tt.transcript)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, ev.String())
				assert.Equal(t, NameSpeech, ev.Source)
			}
		})
	}
}

func TestNormalizeTranscript(t *testing.T) {
	assert.Equal(t, "option one please", NormalizeTranscript("  Option-One,   please! "))
}

func TestSpeechAdapterPushToTalk(t *testing.T) {
	in := make(chan SpeechInput)
	speaker := &recordingSpeaker{}
	a := NewSpeech(SpeechConfig{
		Open:    Static[SpeechInput](NewChanFeed[SpeechInput](in)),
		Speaker: speaker,
		OnText:  "Voice answer on.",
		OffText: "Voice answer off.",
	})
	out := make(chan Event, 4)
	require.NoError(t, a.Start(context.Background(), out))
	defer a.Stop()

	// Disarmed: transcripts are ignored.
	in <- SpeechInput{Transcript: "next"}
	assert.False(t, a.Listening())

	in <- SpeechInput{Toggle: true}
	in <- SpeechInput{Transcript: "select option three please"}
	ev := receive(t, out)
	assert.Equal(t, "SELECT(2)", ev.String())

	// One transcript per activation.
	in <- SpeechInput{Transcript: "next"}
	assert.False(t, a.Listening())
	assertNoEvent(t, out)

	assert.Equal(t, []string{"Voice answer on."}, speaker.said())
}

func TestSpeechAdapterToggleOff(t *testing.T) {
	in := make(chan SpeechInput)
	speaker := &recordingSpeaker{}
	a := NewSpeech(SpeechConfig{Open: Static[SpeechInput](NewChanFeed[SpeechInput](in)), Speaker: speaker, OnText: "on", OffText: "off"})
	out := make(chan Event, 1)
	require.NoError(t, a.Start(context.Background(), out))
	defer a.Stop()

	in <- SpeechInput{Toggle: true}
	in <- SpeechInput{Toggle: true}
	in <- SpeechInput{Transcript: "submit"}
	a.Stop()
	assertNoEvent(t, out)
	assert.Equal(t, []string{"on", "off"}, speaker.said())
}

func TestSpeechAdapterOpenFailure(t *testing.T) {
	a := NewSpeech(SpeechConfig{Open: Unavailable[SpeechInput]()})
	err := a.Start(context.Background(), make(chan Event))
	require.ErrorIs(t, err, ErrNoDevice)
	a.Stop()
}

func receive(t *testing.T, out <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-out:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func assertNoEvent(t *testing.T, out <-chan Event) {
	t.Helper()
	select {
	case ev := <-out:
		t.Fatalf("unexpected event %v", ev)
	case <-time.After(20 * time.Millisecond):
	}
}
