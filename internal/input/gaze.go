package input

import (
	"context"
	"fmt"
	"math"
	"time"
)

const (
	// EARThreshold is the eye aspect ratio below which eyes count as closed.
	EARThreshold = 0.20
	// LongClose is how long eyes must stay closed to move to the next question.
	LongClose = 3 * time.Second
	// CloseDebounce delays re-arming a long close after one fired.
	CloseDebounce = 2 * time.Second
)

// Face mesh landmark indices around each eye: corner, two upper lid points,
// opposite corner, two lower lid points.
var (
	leftEye  = [6]int{33, 160, 158, 133, 153, 144}
	rightEye = [6]int{362, 385, 387, 263, 373, 380}
)

const minLandmarks = 388

// Point is a normalized face mesh landmark.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Frame is one video frame's landmark set. Landmarks is empty when no face
// was detected. A zero At means "now".
type Frame struct {
	Landmarks []Point   `json:"landmarks"`
	At        time.Time `json:"at"`
}

func dist(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

func eyeRatio(lm []Point, idx [6]int) (float64, bool) {
	p := func(i int) Point { return lm[idx[i]] }
	width := dist(p(0), p(3))
	if width == 0 {
		return 0, false
	}
	return (dist(p(1), p(5)) + dist(p(2), p(4))) / (2 * width), true
}

// EyeAspectRatio returns the mean aperture ratio of both eyes. It reports
// false when the frame does not carry enough landmarks to measure.
func EyeAspectRatio(lm []Point) (float64, bool) {
	if len(lm) < minLandmarks {
		return 0, false
	}
	l, ok := eyeRatio(lm, leftEye)
	if !ok {
		return 0, false
	}
	r, ok := eyeRatio(lm, rightEye)
	if !ok {
		return 0, false
	}
	return (l + r) / 2, true
}

// BlinkDetector is the OPEN/CLOSED eye state machine. A short closure emits
// Advance on reopening; a closure held for LongClose emits Next once and
// re-arms only after Debounce plus another full LongClose.
type BlinkDetector struct {
	Threshold float64
	LongClose time.Duration
	Debounce  time.Duration
	Now       func() time.Time // used for frames without a timestamp

	closed      bool
	closedSince time.Time
	longFired   bool
}

// NewBlinkDetector returns a detector with the default thresholds.
func NewBlinkDetector() *BlinkDetector {
	return &BlinkDetector{
		Threshold: EARThreshold,
		LongClose: LongClose,
		Debounce:  CloseDebounce,
		Now:       time.Now,
	}
}

// Observe feeds one frame and returns the event it completes, if any.
func (d *BlinkDetector) Observe(f Frame) (Event, bool) {
	ear, ok := EyeAspectRatio(f.Landmarks)
	if !ok {
		return Event{}, false
	}
	now := f.At
	if now.IsZero() {
		now = d.Now()
	}

	if ear < d.Threshold {
		if !d.closed {
			d.closed = true
			d.closedSince = now
			d.longFired = false
			return Event{}, false
		}
		if now.Sub(d.closedSince) >= d.LongClose {
			d.closedSince = now.Add(d.Debounce)
			d.longFired = true
			return Event{Kind: Next, Source: NameGaze}, true
		}
		return Event{}, false
	}

	if !d.closed {
		return Event{}, false
	}
	d.closed = false
	if d.longFired || now.Sub(d.closedSince) >= d.LongClose {
		return Event{}, false
	}
	return Event{Kind: Advance, Source: NameGaze}, true
}

// GazeAdapter classifies a landmark frame stream with a BlinkDetector.
type GazeAdapter struct {
	open     Opener[Frame]
	detector *BlinkDetector
	runner
}

// NewGaze returns a gaze adapter. A nil detector uses the defaults.
func NewGaze(open Opener[Frame], detector *BlinkDetector) *GazeAdapter {
	if detector == nil {
		detector = NewBlinkDetector()
	}
	return &GazeAdapter{open: open, detector: detector}
}

func (a *GazeAdapter) Name() Name { return NameGaze }

func (a *GazeAdapter) Start(ctx context.Context, out chan<- Event) error {
	feed, err := a.open(ctx)
	if err != nil {
		return fmt.Errorf("open landmark feed: %w", err)
	}
	err = a.run(ctx, out, func(ctx context.Context, emit func(Event)) {
		consume(ctx, feed, func(f Frame) {
			if ev, ok := a.detector.Observe(f); ok {
				emit(ev)
			}
		})
	})
	if err != nil {
		feed.Close()
	}
	return err
}

func (a *GazeAdapter) Stop() { a.stop() }
