package session

import (
	"github.com/pavelanni/able/internal/answer"
	"github.com/pavelanni/able/internal/input"
	"github.com/pavelanni/able/internal/model"
)

// QuestionView is a question as the student sees it, without its answer key.
type QuestionView struct {
	Kind     model.QuestionKind `json:"type"`
	Text     string             `json:"question"`
	Options  []string           `json:"options,omitempty"`
	ImageURL string             `json:"image,omitempty"`
}

// AnswerView is the recorded answer of the current question.
type AnswerView struct {
	Option *int   `json:"option,omitempty"`
	Text   string `json:"text,omitempty"`
}

// Snapshot is the projection of a session for a user interface.
type Snapshot struct {
	Status    Status         `json:"status"`
	Profile   Profile        `json:"profile"`
	Adapter   input.Name     `json:"adapter,omitempty"`
	Listening bool           `json:"listening"`
	Language  model.Language `json:"language"`
	Title     string         `json:"title"`
	Index     int            `json:"index"`
	Total     int            `json:"total"`
	State     string         `json:"state"`
	Question  QuestionView   `json:"question"`
	Highlight int            `json:"highlight"`
	Answer    *AnswerView    `json:"answer,omitempty"`
	Answered  []bool         `json:"answered"`
	Remaining *int           `json:"remainingSeconds,omitempty"`
	Hint      string         `json:"hint,omitempty"`
	Caption   string         `json:"caption,omitempty"`
	Result    *answer.Result `json:"result,omitempty"`
	ScoreID   int64          `json:"scoreId,omitempty"`
}

// Snapshot returns the latest projection. It is safe to call from any goroutine.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

func (c *Controller) update() {
	i := c.machine.Index()
	q := c.display[i]
	s := Snapshot{
		Status:    c.status,
		Profile:   c.profile,
		Language:  c.lang,
		Title:     c.assessment.Title,
		Index:     i,
		Total:     len(c.display),
		State:     c.machine.State().String(),
		Question:  QuestionView{Kind: q.Kind, Text: q.Text, Options: q.Options, ImageURL: q.ImageURL},
		Highlight: c.machine.Highlight(),
		Hint:      c.hint,
		Caption:   c.caption,
		ScoreID:   c.scoreID,
	}
	if c.adapter != nil {
		s.Adapter = c.adapter.Name()
	}
	if c.speechIn != nil {
		s.Listening = c.speechIn.Listening()
	}
	if a := c.machine.Answer(i); a.Set {
		v := &AnswerView{Text: a.Text}
		if q.Kind == model.KindMultipleChoice {
			opt := a.Option
			v.Option = &opt
		}
		s.Answer = v
	}
	for _, a := range c.machine.Answers() {
		s.Answered = append(s.Answered, a.Set)
	}
	if c.remaining >= 0 {
		r := c.remaining
		s.Remaining = &r
	}
	if res, ok := c.machine.Result(); ok {
		s.Result = &res
	}

	c.mu.Lock()
	c.snap = s
	c.mu.Unlock()
	if c.cfg.OnUpdate != nil {
		c.cfg.OnUpdate(s)
	}
}
