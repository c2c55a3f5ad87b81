// Package wsfeed reads JSON input streams from sidecar processes over
// WebSocket, such as a face landmark tracker or a speech recognizer.
package wsfeed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pavelanni/able/internal/input"
)

// Feed decodes each text message of a WebSocket connection into a T.
type Feed[T any] struct {
	conn   *websocket.Conn
	ch     chan T
	done   chan struct{}
	once   sync.Once
	logger *slog.Logger
}

// Dial connects to url and starts reading. The feed's channel closes when the
// connection ends.
func Dial[T any](ctx context.Context, url string, logger *slog.Logger) (*Feed[T], error) {
	if url == "" {
		return nil, input.ErrNoDevice
	}
	if logger == nil {
		logger = slog.Default()
	}
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: status %d: %w", url, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	f := &Feed[T]{
		conn:   conn,
		ch:     make(chan T, 16),
		done:   make(chan struct{}),
		logger: logger,
	}
	go f.read()
	return f, nil
}

func (f *Feed[T]) read() {
	defer close(f.ch)
	for {
		var v T
		if err := f.conn.ReadJSON(&v); err != nil {
			select {
			case <-f.done:
			default:
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					f.logger.Warn("feed read failed", "error", err)
				}
			}
			return
		}
		select {
		case f.ch <- v:
		case <-f.done:
			return
		}
	}
}

func (f *Feed[T]) C() <-chan T { return f.ch }

// Close ends the connection. It is safe to call more than once.
func (f *Feed[T]) Close() error {
	var err error
	f.once.Do(func() {
		close(f.done)
		f.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = f.conn.Close()
	})
	return err
}

// Opener returns an input opener that dials url each time an adapter starts.
func Opener[T any](url string, logger *slog.Logger) input.Opener[T] {
	return func(ctx context.Context) (input.Feed[T], error) {
		f, err := Dial[T](ctx, url, logger)
		if err != nil {
			return nil, err
		}
		return f, nil
	}
}
