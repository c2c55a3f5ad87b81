package input

import (
	"context"
	"fmt"
	"strings"
)

// SignWindow is the number of recent predictions a SignSmoother votes over.
const SignWindow = 5

// SignPrediction is one classified hand pose from the sign recognizer.
type SignPrediction struct {
	Label string `json:"label"`
}

// SignSmoother reports the most frequent label among the last Window
// predictions. A tie goes to the label seen most recently.
type SignSmoother struct {
	Window  int
	history []string
}

// NewSignSmoother returns a smoother over SignWindow predictions.
func NewSignSmoother() *SignSmoother {
	return &SignSmoother{Window: SignWindow}
}

// Observe records label and returns the current stable label. Blank labels
// are ignored.
func (s *SignSmoother) Observe(label string) (string, bool) {
	label = strings.TrimSpace(label)
	if label == "" {
		return "", false
	}
	window := s.Window
	if window <= 0 {
		window = SignWindow
	}
	s.history = append(s.history, label)
	if n := len(s.history) - window; n > 0 {
		s.history = append(s.history[:0], s.history[n:]...)
	}

	counts := make(map[string]int, len(s.history))
	best, bestN := "", 0
	for _, l := range s.history {
		counts[l]++
		if counts[l] >= bestN {
			best, bestN = l, counts[l]
		}
	}
	return best, true
}

// Reset forgets all predictions.
func (s *SignSmoother) Reset() { s.history = s.history[:0] }

// SignAdapter forwards recognized sign labels as Sign events. It runs
// alongside the session's main adapter and never moves the cursor.
type SignAdapter struct {
	open Opener[SignPrediction]
	runner
}

// NewSign returns a sign adapter reading predictions from open.
func NewSign(open Opener[SignPrediction]) *SignAdapter {
	return &SignAdapter{open: open}
}

func (a *SignAdapter) Name() Name { return NameSign }

func (a *SignAdapter) Start(ctx context.Context, out chan<- Event) error {
	feed, err := a.open(ctx)
	if err != nil {
		return fmt.Errorf("open sign feed: %w", err)
	}
	err = a.run(ctx, out, func(ctx context.Context, emit func(Event)) {
		consume(ctx, feed, func(p SignPrediction) {
			if label := strings.TrimSpace(p.Label); label != "" {
				emit(Event{Kind: Sign, Label: label, Source: NameSign})
			}
		})
	})
	if err != nil {
		feed.Close()
	}
	return err
}

func (a *SignAdapter) Stop() { a.stop() }
