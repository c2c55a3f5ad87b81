package input

import (
	"context"
	"fmt"
	"sync"
)

// Key is one of the two scanning switches.
type Key int

const (
	// KeyAdvance moves focus to the next element.
	KeyAdvance Key = iota + 1
	// KeyActivate triggers the focused element.
	KeyActivate
)

// KeyFromRune maps the F and J keys to scanning switches.
func KeyFromRune(r rune) (Key, bool) {
	switch r {
	case 'f', 'F':
		return KeyAdvance, true
	case 'j', 'J':
		return KeyActivate, true
	}
	return 0, false
}

// KeyPress is one scanning key press. Typing is set when input focus sits in
// a plain text field, in which case the key belongs to the field.
type KeyPress struct {
	Key    Key  `json:"key"`
	Typing bool `json:"typing,omitempty"`
}

// ElementKind classifies a focusable element.
type ElementKind int

const (
	ElementStructural ElementKind = iota // title, question text
	ElementOption
	ElementTextField
	ElementButton
)

// Element is one focusable item of the current question.
type Element struct {
	Kind    ElementKind
	ID      string
	Label   string // spoken on focus
	Confirm string // spoken on activation, if set
	Option  int    // ElementOption only
	Action  Kind   // ElementButton: event emitted on activation, zero for none
}

// ScanConfig configures a ScanAdapter.
type ScanConfig struct {
	Open    Opener[KeyPress]
	Speaker Speaker // optional
	// OnActivate is called for activated elements that do not map to an
	// event (text fields, buttons without an Action). It runs on the
	// adapter's goroutine.
	OnActivate func(Element)
}

// ScanAdapter implements two-switch scanning over the elements of the
// current question.
type ScanAdapter struct {
	cfg ScanConfig
	runner

	mu       sync.Mutex
	elements []Element
	cursor   int
}

// NewScan returns a scan adapter reading key presses from cfg.Open.
func NewScan(cfg ScanConfig) *ScanAdapter {
	return &ScanAdapter{cfg: cfg, cursor: -1}
}

func (a *ScanAdapter) Name() Name { return NameScan }

// SetElements replaces the focus list and clears the cursor. Structural
// elements should come first, then the actionable ones.
func (a *ScanAdapter) SetElements(els []Element) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.elements = append([]Element(nil), els...)
	a.cursor = -1
}

// Focused returns the element under the cursor.
func (a *ScanAdapter) Focused() (Element, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cursor < 0 || a.cursor >= len(a.elements) {
		return Element{}, false
	}
	return a.elements[a.cursor], true
}

func (a *ScanAdapter) Start(ctx context.Context, out chan<- Event) error {
	feed, err := a.cfg.Open(ctx)
	if err != nil {
		return fmt.Errorf("open key feed: %w", err)
	}
	err = a.run(ctx, out, func(ctx context.Context, emit func(Event)) {
		consume(ctx, feed, func(kp KeyPress) {
			if ev, ok := a.Press(kp); ok {
				emit(ev)
			}
		})
	})
	if err != nil {
		feed.Close()
	}
	return err
}

func (a *ScanAdapter) Stop() { a.stop() }

// Press applies one key press and returns the event it produces, if any.
func (a *ScanAdapter) Press(kp KeyPress) (Event, bool) {
	if kp.Typing {
		return Event{}, false
	}

	a.mu.Lock()
	if len(a.elements) == 0 {
		a.mu.Unlock()
		return Event{}, false
	}
	var el Element
	switch kp.Key {
	case KeyAdvance:
		a.cursor = (a.cursor + 1) % len(a.elements)
		el = a.elements[a.cursor]
		a.mu.Unlock()
		a.say(el.Label)
		return Event{}, false
	case KeyActivate:
		if a.cursor < 0 {
			a.mu.Unlock()
			return Event{}, false
		}
		el = a.elements[a.cursor]
		a.mu.Unlock()
	default:
		a.mu.Unlock()
		return Event{}, false
	}

	switch el.Kind {
	case ElementStructural:
		a.say(el.Label)
		return Event{}, false
	case ElementOption:
		a.say(el.Confirm)
		return Event{Kind: Select, Index: el.Option, Source: NameScan}, true
	case ElementButton:
		a.say(el.Confirm)
		if el.Action != 0 {
			return Event{Kind: el.Action, Source: NameScan}, true
		}
	case ElementTextField:
		a.say(el.Confirm)
	}
	if a.cfg.OnActivate != nil {
		a.cfg.OnActivate(el)
	}
	return Event{}, false
}

func (a *ScanAdapter) say(text string) {
	if a.cfg.Speaker != nil && text != "" {
		a.cfg.Speaker.Say(text)
	}
}
