package input

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
)

var (
	punctRe   = regexp.MustCompile(`[^\w\s]`)
	spaceRe   = regexp.MustCompile(`\s+`)
	submitRe  = regexp.MustCompile(`\b(submit|finish|done|complete|final|turn in)\b`)
	nextRe    = regexp.MustCompile(`\b(next|go next|continue|skip|move next|proceed|forward|move on)\b`)
	optionRes = []*regexp.Regexp{
		regexp.MustCompile(`\b(1st|first(?:\s+option)?|option\s*1|option\s*one|one|a|ay|alpha)\b`),
		regexp.MustCompile(`\b(2nd|second(?:\s+option)?|option\s*2|option\s*two|two|b|bee|bravo)\b`),
		regexp.MustCompile(`\b(3rd|third(?:\s+option)?|option\s*3|option\s*three|three|3nd|c|see|charlie)\b`),
		regexp.MustCompile(`\b(4th|fourth(?:\s+option)?|option\s*4|option\s*four|four|d|dee|delta)\b`),
	}
)

// NormalizeTranscript lowercases s, replaces punctuation with spaces and
// collapses whitespace.
func NormalizeTranscript(s string) string {
	s = punctRe.ReplaceAllString(s, " ")
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.ToLower(strings.TrimSpace(s))
}

// ParseIntent maps a finalized transcript to an event. Submission keywords
// win over advance keywords, which win over option aliases.
func ParseIntent(transcript string) (Event, bool) {
	t := NormalizeTranscript(transcript)
	if t == "" {
		return Event{}, false
	}
	if submitRe.MatchString(t) {
		return Event{Kind: Submit, Source: NameSpeech}, true
	}
	if nextRe.MatchString(t) {
		return Event{Kind: Next, Source: NameSpeech}, true
	}
	for i, re := range optionRes {
		if re.MatchString(t) {
			return Event{Kind: Select, Index: i, Source: NameSpeech}, true
		}
	}
	return Event{}, false
}

// SpeechInput is one message from a speech recognizer: either a finalized
// transcript or a push-to-talk toggle.
type SpeechInput struct {
	Transcript string `json:"transcript,omitempty"`
	Toggle     bool   `json:"toggle,omitempty"`
}

// SpeechConfig configures a SpeechAdapter.
type SpeechConfig struct {
	Open    Opener[SpeechInput]
	Speaker Speaker // optional
	OnText  string  // spoken when listening is armed
	OffText string  // spoken when listening is disarmed by a toggle
}

// SpeechAdapter is a push-to-talk keyword spotter. A toggle arms it; the next
// finalized transcript is classified and disarms it. Transcripts arriving
// while disarmed are dropped.
type SpeechAdapter struct {
	cfg SpeechConfig
	runner

	mu        sync.Mutex
	listening bool
}

// NewSpeech returns a speech adapter reading from cfg.Open.
func NewSpeech(cfg SpeechConfig) *SpeechAdapter {
	return &SpeechAdapter{cfg: cfg}
}

func (a *SpeechAdapter) Name() Name { return NameSpeech }

// Listening reports whether the adapter is armed.
func (a *SpeechAdapter) Listening() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.listening
}

func (a *SpeechAdapter) Start(ctx context.Context, out chan<- Event) error {
	feed, err := a.cfg.Open(ctx)
	if err != nil {
		return fmt.Errorf("open speech feed: %w", err)
	}
	err = a.run(ctx, out, func(ctx context.Context, emit func(Event)) {
		consume(ctx, feed, func(in SpeechInput) {
			if ev, ok := a.handle(in); ok {
				emit(ev)
			}
		})
	})
	if err != nil {
		feed.Close()
	}
	return err
}

func (a *SpeechAdapter) Stop() {
	a.stop()
	a.mu.Lock()
	a.listening = false
	a.mu.Unlock()
}

// Toggle arms or disarms listening, as a toggle message on the feed would.
func (a *SpeechAdapter) Toggle() {
	a.handle(SpeechInput{Toggle: true})
}

func (a *SpeechAdapter) handle(in SpeechInput) (Event, bool) {
	a.mu.Lock()
	if in.Toggle {
		a.listening = !a.listening
		on := a.listening
		a.mu.Unlock()
		if on {
			a.say(a.cfg.OnText)
		} else {
			a.say(a.cfg.OffText)
		}
		return Event{}, false
	}
	if !a.listening {
		a.mu.Unlock()
		return Event{}, false
	}
	a.listening = false
	a.mu.Unlock()
	return ParseIntent(in.Transcript)
}

func (a *SpeechAdapter) say(text string) {
	if a.cfg.Speaker != nil && text != "" {
		a.cfg.Speaker.Say(text)
	}
}
