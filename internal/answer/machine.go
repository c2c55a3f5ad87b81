// Package answer holds the per-session answer state: which option is
// highlighted, which answer is recorded for each question, and the final score.
package answer

import (
	"github.com/pavelanni/able/internal/input"
	"github.com/pavelanni/able/internal/model"
)

// State is the machine's position in the answering flow.
type State int

const (
	Idle State = iota
	AwaitingAnswer
	Answered
	Submitted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingAnswer:
		return "awaiting_answer"
	case Answered:
		return "answered"
	case Submitted:
		return "submitted"
	}
	return "unknown"
}

// Answer is the recorded response to one question.
type Answer struct {
	Set    bool
	Option int    // multiple choice
	Text   string // short answer
}

// Effect says what an input did to the machine.
type Effect int

const (
	Ignored Effect = iota
	Highlighted
	Selected
	TextSet
	Moved
	SubmitRequested
)

// Outcome describes one transition for feedback and projection.
type Outcome struct {
	Effect   Effect
	Question int    // current question index after the transition
	Option   int    // highlighted or selected option
	Text     string // option text or short-answer text
}

// Machine is the single authority over highlight and recorded answers.
// It is not safe for concurrent use; the session loop owns it.
type Machine struct {
	questions       []model.Question
	answers         []Answer
	index           int
	highlight       int
	commitOnAdvance bool
	state           State
	scorer          func([]model.Question, []Answer) Result
	result          *Result
}

// New returns a machine positioned on the first question. With
// commitOnAdvance, cycling the highlight also records it as the answer.
func New(questions []model.Question, commitOnAdvance bool) *Machine {
	m := &Machine{
		questions:       questions,
		answers:         make([]Answer, len(questions)),
		commitOnAdvance: commitOnAdvance,
		scorer:          Score,
	}
	if len(questions) > 0 {
		m.state = AwaitingAnswer
	}
	return m
}

func (m *Machine) State() State { return m.state }
func (m *Machine) Index() int { return m.index }
func (m *Machine) Highlight() int { return m.highlight }
func (m *Machine) Len() int { return len(m.questions) }
func (m *Machine) IsLast() bool { return m.index == len(m.questions)-1 }
func (m *Machine) CommitOnAdvance() bool { return m.commitOnAdvance }

// Current returns the current question.
func (m *Machine) Current() (model.Question, bool) {
	if m.state == Idle {
		return model.Question{}, false
	}
	return m.questions[m.index], true
}

// Answer returns the recorded answer for question i.
func (m *Machine) Answer(i int) Answer {
	if i < 0 || i >= len(m.answers) {
		return Answer{}
	}
	return m.answers[i]
}

// Answers returns a copy of all recorded answers.
func (m *Machine) Answers() []Answer {
	return append([]Answer(nil), m.answers...)
}

// Apply feeds one recognition event.
func (m *Machine) Apply(ev input.Event) Outcome {
	if m.state == Idle || m.state == Submitted {
		return m.ignored()
	}
	switch ev.Kind {
	case input.Select:
		return m.selectOption(ev.Index)
	case input.Advance:
		return m.advance()
	case input.Next:
		if m.IsLast() {
			return Outcome{Effect: SubmitRequested, Question: m.index}
		}
		return m.GoTo(m.index + 1)
	case input.Submit:
		return Outcome{Effect: SubmitRequested, Question: m.index}
	}
	return m.ignored()
}

func (m *Machine) selectOption(i int) Outcome {
	q := m.questions[m.index]
	if q.Kind != model.KindMultipleChoice || i < 0 || i >= len(q.Options) {
		return m.ignored()
	}
	m.highlight = i
	m.answers[m.index] = Answer{Set: true, Option: i}
	m.state = Answered
	return Outcome{Effect: Selected, Question: m.index, Option: i, Text: q.Options[i]}
}

func (m *Machine) advance() Outcome {
	q := m.questions[m.index]
	if q.Kind != model.KindMultipleChoice || len(q.Options) == 0 {
		return m.ignored()
	}
	m.highlight = (m.highlight + 1) % len(q.Options)
	if m.commitOnAdvance {
		return m.selectOption(m.highlight)
	}
	return Outcome{Effect: Highlighted, Question: m.index, Option: m.highlight, Text: q.Options[m.highlight]}
}

// SetText records a short-answer response for the current question.
func (m *Machine) SetText(text string) Outcome {
	if m.state == Idle || m.state == Submitted {
		return m.ignored()
	}
	if m.questions[m.index].Kind != model.KindShortAnswer {
		return m.ignored()
	}
	m.answers[m.index] = Answer{Set: true, Text: text}
	m.state = Answered
	return Outcome{Effect: TextSet, Question: m.index, Text: text}
}

// GoTo moves to question i and resets the highlight.
func (m *Machine) GoTo(i int) Outcome {
	if m.state == Idle || m.state == Submitted || i < 0 || i >= len(m.questions) || i == m.index {
		return m.ignored()
	}
	m.index = i
	m.highlight = 0
	if m.answers[i].Set {
		m.state = Answered
	} else {
		m.state = AwaitingAnswer
	}
	return Outcome{Effect: Moved, Question: i}
}

// Finalize scores the session and freezes it. Only the first call scores;
// later calls return the same result.
func (m *Machine) Finalize() Result {
	if m.result == nil {
		r := m.scorer(m.questions, m.answers)
		m.result = &r
		m.state = Submitted
	}
	return *m.result
}

// Result returns the final result once the machine has been finalized.
func (m *Machine) Result() (Result, bool) {
	if m.result == nil {
		return Result{}, false
	}
	return *m.result, true
}

func (m *Machine) ignored() Outcome {
	return Outcome{Effect: Ignored, Question: m.index}
}
