package braille

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Pacing of a transmission. The device needs time to raise each cell and to
// finish a buzz before the next command arrives.
const (
	CharDelay     = 850 * time.Millisecond
	BlankDelay    = 400 * time.Millisecond
	BuzzDelay     = 700 * time.Millisecond
	QuestionDelay = 1000 * time.Millisecond
	LabelDelay    = 600 * time.Millisecond
	OptionDelay   = 800 * time.Millisecond
	SettleDelay   = 2 * time.Second
)

// BuzzOpcode starts a vibration; the following byte is its length in 10ms
// units.
const BuzzOpcode = 0xFF

var wordBuzz = []byte{BuzzOpcode, 60}

const optionLabels = "abcdef"

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Transmitter writes paced braille commands to a device. Show runs one
// transmission at a time: a new one cancels its predecessor between commands.
type Transmitter struct {
	w      io.Writer
	sleep  Sleeper
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewTransmitter returns a transmitter writing to w. A nil sleep uses real time.
func NewTransmitter(w io.Writer, sleep Sleeper, logger *slog.Logger) *Transmitter {
	if sleep == nil {
		sleep = sleepCtx
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Transmitter{w: w, sleep: sleep, logger: logger}
}

// Connect opens the device, waits for it to settle and returns a transmitter.
func Connect(ctx context.Context, open func(context.Context) (io.WriteCloser, error), logger *slog.Logger) (*Transmitter, error) {
	dev, err := open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open braille device: %w", err)
	}
	if err := sleepCtx(ctx, SettleDelay); err != nil {
		dev.Close()
		return nil, err
	}
	return NewTransmitter(dev, nil, logger), nil
}

// Render transmits question and its options, blocking until done or ctx is
// cancelled. ctx is checked before every command.
func (t *Transmitter) Render(ctx context.Context, question string, options []string) error {
	if err := t.text(ctx, question); err != nil {
		return err
	}
	if err := t.sleep(ctx, QuestionDelay); err != nil {
		return err
	}
	for i, opt := range options {
		label, _ := Dots(rune(optionLabels[i%len(optionLabels)]))
		if err := t.send(ctx, label.Command(), LabelDelay); err != nil {
			return err
		}
		if err := t.text(ctx, opt); err != nil {
			return err
		}
		if err := t.sleep(ctx, OptionDelay); err != nil {
			return err
		}
	}
	return nil
}

func (t *Transmitter) text(ctx context.Context, s string) error {
	for _, word := range strings.Fields(s) {
		for _, r := range word {
			c, _ := Dots(r)
			if len(c) == 0 {
				if err := t.sleep(ctx, BlankDelay); err != nil {
					return err
				}
				continue
			}
			if err := t.send(ctx, c.Command(), CharDelay); err != nil {
				return err
			}
		}
		if err := t.send(ctx, wordBuzz, BuzzDelay); err != nil {
			return err
		}
	}
	return nil
}

func (t *Transmitter) send(ctx context.Context, cmd []byte, pause time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := t.w.Write(cmd); err != nil {
		return fmt.Errorf("write braille command: %w", err)
	}
	return t.sleep(ctx, pause)
}

// Show cancels any transmission in flight and starts a new one. It does not block.
func (t *Transmitter) Show(question string, options []string) {
	t.mu.Lock()
	if t.cancel != nil {
		t.cancel()
	}
	prev := t.done
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	t.cancel, t.done = cancel, done
	t.mu.Unlock()

	go func() {
		defer close(done)
		defer cancel()
		if prev != nil {
			<-prev
		}
		err := t.Render(ctx, question, options)
		if err != nil && !errors.Is(err, context.Canceled) {
			t.logger.Warn("braille transmission failed", "error", err)
		}
	}()
}

// Stop cancels the transmission in flight and waits for it to end.
func (t *Transmitter) Stop() {
	t.mu.Lock()
	if t.cancel != nil {
		t.cancel()
	}
	done := t.done
	t.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Wait blocks until the latest transmission has ended.
func (t *Transmitter) Wait() {
	t.mu.Lock()
	done := t.done
	t.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Close stops transmission and closes the device if it is closable.
func (t *Transmitter) Close() error {
	t.Stop()
	if c, ok := t.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
