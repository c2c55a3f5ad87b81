// Package input turns raw input streams (speech transcripts, face landmarks,
// serial switch tokens, key presses) into discrete answer events.
package input

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Kind identifies a recognized intent.
type Kind int

const (
	// Advance cycles the highlighted option.
	Advance Kind = iota + 1
	// Select records the option at Event.Index.
	Select
	// Next moves to the following question.
	Next
	// Submit finishes the assessment.
	Submit
	// Sign carries a recognized sign-language label in Event.Label.
	Sign
)

func (k Kind) String() string {
	switch k {
	case Advance:
		return "ADVANCE"
	case Select:
		return "SELECT"
	case Next:
		return "NEXT"
	case Submit:
		return "SUBMIT"
	case Sign:
		return "SIGN"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Event is one recognized intent.
type Event struct {
	Kind   Kind
	Index  int    // option index, Select only
	Label  string // recognized sign, Sign only
	Source Name
}

func (e Event) String() string {
	switch e.Kind {
	case Select:
		return fmt.Sprintf("SELECT(%d)", e.Index)
	case Sign:
		return fmt.Sprintf("SIGN(%q)", e.Label)
	}
	return e.Kind.String()
}

// SelectEvent returns a Select event for option i.
func SelectEvent(i int) Event { return Event{Kind: Select, Index: i} }

// Name identifies an adapter.
type Name string

const (
	NameScan   Name = "scan"
	NameSpeech Name = "speech"
	NameGaze   Name = "gaze"
	NameSwitch Name = "switch"
	NameSign   Name = "sign"
)

// Adapter classifies one raw input stream into events.
//
// Start acquires the adapter's device or feed and begins emitting on out.
// Stop releases it; it is safe to call more than once, and no event is sent
// on out after it returns.
type Adapter interface {
	Name() Name
	Start(ctx context.Context, out chan<- Event) error
	Stop()
}

// Speaker voices short feedback phrases in the session language.
type Speaker interface {
	Say(text string)
}

var (
	// ErrNoDevice is returned by openers when the hardware or feed is not configured.
	ErrNoDevice = errors.New("input device unavailable")
	// ErrRunning is returned when Start is called on a running adapter.
	ErrRunning = errors.New("adapter already running")
)

// Feed is a stream of raw input values.
type Feed[T any] interface {
	C() <-chan T
	Close() error
}

// Opener acquires a feed when an adapter starts.
type Opener[T any] func(ctx context.Context) (Feed[T], error)

// ChanFeed adapts a plain channel to a Feed. Close leaves the channel open;
// its owner closes it.
type ChanFeed[T any] struct {
	ch <-chan T
}

// NewChanFeed wraps ch.
func NewChanFeed[T any](ch <-chan T) ChanFeed[T] {
	return ChanFeed[T]{ch: ch}
}

func (f ChanFeed[T]) C() <-chan T { return f.ch }
func (f ChanFeed[T]) Close() error { return nil }

// Static returns an opener that always yields f.
func Static[T any](f Feed[T]) Opener[T] {
	return func(context.Context) (Feed[T], error) { return f, nil }
}

// Unavailable returns an opener that always fails with ErrNoDevice.
func Unavailable[T any]() Opener[T] {
	return func(context.Context) (Feed[T], error) { return nil, ErrNoDevice }
}

// runner owns the goroutine behind an adapter and implements the Start/Stop
// contract shared by all adapters.
type runner struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// run starts loop in its own goroutine. loop must return once ctx is done.
// emit blocks until the event is delivered or ctx is done.
func (r *runner) run(ctx context.Context, out chan<- Event, loop func(ctx context.Context, emit func(Event))) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return ErrRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	r.cancel, r.done = cancel, done

	emit := func(ev Event) {
		select {
		case out <- ev:
		case <-ctx.Done():
		}
	}
	go func() {
		defer close(done)
		defer cancel()
		loop(ctx, emit)
	}()
	return nil
}

func (r *runner) stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// consume runs the shared feed loop: it forwards every value to handle until
// the feed closes or ctx is done, then closes the feed.
func consume[T any](ctx context.Context, feed Feed[T], handle func(T)) {
	defer feed.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-feed.C():
			if !ok {
				return
			}
			handle(v)
		}
	}
}
