package input

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// SwitchBaudRate is the line speed of the sip-and-puff controller.
const SwitchBaudRate = 9600

// LineSplitter reassembles newline-terminated tokens from arbitrary reads.
// Unterminated bytes are kept until a later read completes them.
type LineSplitter struct {
	buf []byte
}

// Push appends p and returns every line it completed, without terminators.
func (s *LineSplitter) Push(p []byte) []string {
	s.buf = append(s.buf, p...)
	var lines []string
	for {
		i := bytes.IndexByte(s.buf, '\n')
		if i < 0 {
			break
		}
		lines = append(lines, string(bytes.TrimSuffix(s.buf[:i], []byte("\r"))))
		s.buf = s.buf[i+1:]
	}
	if len(s.buf) == 0 {
		s.buf = nil
	}
	return lines
}

// Pending returns the buffered, unterminated bytes.
func (s *LineSplitter) Pending() string { return string(s.buf) }

// ClassifyToken maps one sip-and-puff token to an event.
func ClassifyToken(token string) (Event, bool) {
	t := strings.ToLower(strings.TrimSpace(token))
	switch {
	case strings.Contains(t, "sip"):
		return Event{Kind: Advance, Source: NameSwitch}, true
	case strings.Contains(t, "puff"):
		return Event{Kind: Next, Source: NameSwitch}, true
	}
	return Event{}, false
}

// PortOpener opens the serial byte stream of a switch.
type PortOpener func(ctx context.Context) (io.ReadCloser, error)

// SwitchAdapter reads sip/puff tokens from a serial stream.
type SwitchAdapter struct {
	open PortOpener
	runner
}

// NewSwitch returns a switch adapter reading from the port open returns.
func NewSwitch(open PortOpener) *SwitchAdapter {
	return &SwitchAdapter{open: open}
}

func (a *SwitchAdapter) Name() Name { return NameSwitch }

func (a *SwitchAdapter) Start(ctx context.Context, out chan<- Event) error {
	port, err := a.open(ctx)
	if err != nil {
		return fmt.Errorf("open switch port: %w", err)
	}
	var once sync.Once
	release := func() { once.Do(func() { port.Close() }) }

	err = a.run(ctx, out, func(ctx context.Context, emit func(Event)) {
		defer release()
		// Closing the port is the only way to interrupt a blocked Read.
		go func() {
			<-ctx.Done()
			release()
		}()

		var lines LineSplitter
		buf := make([]byte, 256)
		for {
			n, err := port.Read(buf)
			for _, line := range lines.Push(buf[:n]) {
				if ev, ok := ClassifyToken(line); ok {
					emit(ev)
				}
			}
			if err != nil {
				if ctx.Err() == nil && !errors.Is(err, io.EOF) {
					slog.Warn("switch read failed", "error", err)
				}
				return
			}
		}
	})
	if err != nil {
		release()
	}
	return err
}

func (a *SwitchAdapter) Stop() { a.stop() }
