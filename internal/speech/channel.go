// Package speech plays spoken feedback. At most one utterance is audible at a
// time: a new request cancels the one in flight.
package speech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pavelanni/able/internal/model"
)

// Engine speaks text locally and blocks until playback ends or ctx is done.
type Engine interface {
	Say(ctx context.Context, text string, lang model.Language) error
}

// Synthesizer turns text into audio through a remote service.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, lang model.Language) ([]byte, error)
}

// Player plays synthesized audio and blocks until playback ends or ctx is done.
type Player interface {
	Play(ctx context.Context, audio []byte) error
}

// Config wires a Channel.
type Config struct {
	DefaultLanguage model.Language
	Local           Engine
	Remote          Synthesizer // optional; nil falls back to Local
	Player          Player      // required when Remote is set
	Logger          *slog.Logger
}

// Channel serializes spoken feedback with newest-wins semantics.
type Channel struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	closed bool
}

// NewChannel returns a channel. Speech in cfg.DefaultLanguage goes to the
// local engine; other languages go through the remote synthesizer.
func NewChannel(cfg Config) *Channel {
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = model.DefaultLanguage
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Channel{cfg: cfg, logger: logger}
}

// Speak cancels any utterance in flight and starts text. It does not block.
func (c *Channel) Speak(text string, lang model.Language) {
	if text == "" {
		return
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.cancel != nil {
		c.cancel()
	}
	prev := c.done
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.cancel, c.done = cancel, done
	c.mu.Unlock()

	go func() {
		defer close(done)
		defer cancel()
		// The cancelled utterance must be silent before this one starts.
		if prev != nil {
			<-prev
		}
		if ctx.Err() != nil {
			return
		}
		if err := c.utter(ctx, text, lang); err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Warn("speech feedback failed", "lang", lang, "error", err)
		}
	}()
}

func (c *Channel) utter(ctx context.Context, text string, lang model.Language) error {
	if lang == "" || lang == c.cfg.DefaultLanguage || c.cfg.Remote == nil {
		return c.cfg.Local.Say(ctx, text, lang)
	}
	audio, err := c.cfg.Remote.Synthesize(ctx, text, lang)
	if err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}
	return c.cfg.Player.Play(ctx, audio)
}

// Stop silences the current utterance without waiting for it to end.
func (c *Channel) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
}

// Wait blocks until the most recent utterance has finished or was cancelled.
func (c *Channel) Wait() {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Close stops speech, waits for playback to end and rejects further requests.
func (c *Channel) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.Stop()
	c.Wait()
}

// Voice binds a channel to one session's language.
type Voice struct {
	ch   *Channel
	lang model.Language
}

// NewVoice returns a voice speaking lang on ch.
func NewVoice(ch *Channel, lang model.Language) *Voice {
	return &Voice{ch: ch, lang: lang}
}

// Say speaks text in the voice's language.
func (v *Voice) Say(text string) {
	v.ch.Speak(text, v.lang)
}

// Stop silences the channel.
func (v *Voice) Stop() {
	v.ch.Stop()
}
