// Package session runs one assessment attempt: it loads the records, picks
// the input adapter for the student's accommodations, feeds recognized
// events to the answer machine and reports the score.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/pavelanni/able/internal/answer"
	"github.com/pavelanni/able/internal/events"
	"github.com/pavelanni/able/internal/i18n"
	"github.com/pavelanni/able/internal/input"
	"github.com/pavelanni/able/internal/llm"
	"github.com/pavelanni/able/internal/model"
)

// RecordStore is the persistence the controller needs.
type RecordStore interface {
	GetUser(id string) (*model.User, error)
	GetAssessment(id int64) (*model.Assessment, error)
	SubmitScore(sc model.Score) (int64, error)
	SetMotorPreference(id string, pref model.MotorPreference) error
	StartAttempt(userID string, assessmentID int64, startedAt time.Time) (string, error)
	FinishAttempt(id string, scoreID int64) error
}

// Speech speaks feedback; a new request silences the previous one.
type Speech interface {
	Speak(text string, lang model.Language)
	Stop()
}

// Translator renders texts in lang, returning the source on failure.
type Translator interface {
	Translate(ctx context.Context, lang model.Language, texts []string) []string
}

// Hinter simplifies a question into hints.
type Hinter interface {
	Simplify(ctx context.Context, text string, lang model.Language) (string, error)
}

// Captioner describes a question image.
type Captioner interface {
	DescribeImage(ctx context.Context, imageURL, question string, lang model.Language) (llm.Caption, error)
}

// Tactile renders a question on a braille device, replacing whatever it was showing.
type Tactile interface {
	Show(question string, options []string)
	Stop()
}

// Publisher receives domain events.
type Publisher interface {
	Publish(ctx context.Context, event *events.Event) error
}

// Inputs opens the raw streams behind each adapter. A nil opener means the
// device is not attached.
type Inputs struct {
	Keys   input.Opener[input.KeyPress]
	Speech input.Opener[input.SpeechInput]
	Frames input.Opener[input.Frame]
	Switch input.PortOpener
	Signs  input.Opener[input.SignPrediction]
}

// Config wires a controller. Store and Speech are required.
type Config struct {
	Store       RecordStore
	Speech      Speech
	Inputs      Inputs
	Translator  Translator
	Hinter      Hinter
	Captioner   Captioner
	Tactile     Tactile
	Publisher   Publisher
	VisualInput input.Name
	// OnUpdate receives a snapshot after every change. It runs on the
	// session goroutine and must not block.
	OnUpdate func(Snapshot)
	Logger   *slog.Logger
	Now      func() time.Time
	// Tick is the wall-clock length of one countdown second.
	Tick time.Duration
}

// Status is the controller's submission status.
type Status string

const (
	StatusActive       Status = "active"
	StatusSubmitting   Status = "submitting"
	StatusSubmitFailed Status = "submit_failed"
	StatusSubmitted    Status = "submitted"
)

// CommandKind identifies a direct UI command.
type CommandKind string

const (
	CmdSelect      CommandKind = "select"
	CmdText        CommandKind = "text"
	CmdNext        CommandKind = "next"
	CmdSubmit      CommandKind = "submit"
	CmdGoTo        CommandKind = "goto"
	CmdHint        CommandKind = "hint"
	CmdToggleVoice CommandKind = "voice_toggle"
)

// Command is a direct UI action, applied on the session goroutine.
type Command struct {
	Kind  CommandKind
	Index int
	Text  string
}

type hintResult struct {
	gen  int
	text string
}

type captionResult struct {
	gen     int
	caption llm.Caption
}

type submitResult struct {
	scoreID int64
	err     error
}

// Controller owns one session. Load prepares it and Run drives it.
type Controller struct {
	cfg    Config
	logger *slog.Logger

	user       *model.User
	assessment *model.Assessment
	profile    Profile
	lang       model.Language
	printer    *i18n.Printer
	display    []model.Question // translated copy shown and spoken
	machine    *answer.Machine

	adapter  input.Adapter
	signIn   input.Adapter
	signs    *input.SignSmoother
	scan     *input.ScanAdapter
	speechIn *input.SpeechAdapter
	events   chan input.Event
	commands chan Command
	results  chan any
	closed   chan struct{}
	outbox   chan *events.Event
	flushed  chan struct{}

	reqCtx    context.Context
	reqCancel context.CancelFunc
	gen       int
	hint      string
	caption   string
	status    Status
	startedAt time.Time
	attemptID string
	scoreID   int64
	remaining int // seconds, -1 when untimed

	mu   sync.Mutex
	snap Snapshot
}

// Load fetches the user and assessment and prepares a session. A motor user
// without a device preference gets ErrPreferenceRequired.
func Load(ctx context.Context, cfg Config, userID string, assessmentID int64) (*Controller, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Tick <= 0 {
		cfg.Tick = time.Second
	}

	user, err := cfg.Store.GetUser(userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	a, err := cfg.Store.GetAssessment(assessmentID)
	if err != nil {
		return nil, fmt.Errorf("get assessment: %w", err)
	}
	if a == nil {
		return nil, ErrAssessmentNotFound
	}
	if len(a.Questions) == 0 {
		return nil, ErrNoQuestions
	}
	profile, err := ResolveProfile(user, cfg.VisualInput)
	if err != nil {
		return nil, err
	}

	lang := user.Language
	if !lang.Valid() {
		lang = model.DefaultLanguage
	}
	c := &Controller{
		cfg:        cfg,
		logger:     cfg.Logger.With("user", user.ID, "assessment", a.ID, "mode", profile.Mode),
		user:       user,
		assessment: a,
		profile:    profile,
		lang:       lang,
		printer:    i18n.For(lang.Tag()),
		machine:    answer.New(a.Questions, profile.CommitOnAdvance),
		events:     make(chan input.Event, 16),
		commands:   make(chan Command, 16),
		results:    make(chan any, 4),
		closed:     make(chan struct{}),
		signs:      input.NewSignSmoother(),
		flushed:    make(chan struct{}),
		status:     StatusActive,
		remaining:  -1,
	}
	c.display = c.translate(ctx)
	return c, nil
}

// SetMotorPreference validates and stores a motor user's device choice.
func SetMotorPreference(store RecordStore, userID string, pref model.MotorPreference) error {
	if !pref.Valid() {
		return fmt.Errorf("invalid motor preference %q", pref)
	}
	return store.SetMotorPreference(userID, pref)
}

// Profile returns the resolved accommodation profile.
func (c *Controller) Profile() Profile { return c.profile }

// Language returns the session language.
func (c *Controller) Language() model.Language { return c.lang }

// translate renders question and option texts in the session language as one
// batch: all questions first, then every option in order.
func (c *Controller) translate(ctx context.Context) []model.Question {
	qs := make([]model.Question, len(c.assessment.Questions))
	for i, q := range c.assessment.Questions {
		q.Options = append([]string(nil), q.Options...)
		q.CorrectAnswer = ""
		qs[i] = q
	}
	if c.cfg.Translator == nil || c.lang == model.DefaultLanguage {
		return qs
	}

	var flat []string
	for _, q := range qs {
		flat = append(flat, q.Text)
	}
	for _, q := range qs {
		flat = append(flat, q.Options...)
	}
	out := c.cfg.Translator.Translate(ctx, c.lang, flat)
	if len(out) != len(flat) {
		c.logger.Warn("translation returned wrong count, using source text", "want", len(flat), "got", len(out))
		return qs
	}
	k := len(qs)
	for i := range qs {
		qs[i].Text = out[i]
		for j := range qs[i].Options {
			qs[i].Options[j] = out[k]
			k++
		}
	}
	return qs
}

// Post queues a UI command. It returns false once the session has ended.
func (c *Controller) Post(cmd Command) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.commands <- cmd:
		return true
	case <-c.closed:
		return false
	}
}

// Run drives the session until the score is recorded or ctx is done.
func (c *Controller) Run(ctx context.Context) (answer.Result, error) {
	c.reqCtx, c.reqCancel = context.WithCancel(ctx)
	defer c.teardown()
	c.startPublisher()

	c.startedAt = c.cfg.Now()
	if id, err := c.cfg.Store.StartAttempt(c.user.ID, c.assessment.ID, c.startedAt); err != nil {
		c.logger.Warn("failed to record attempt start", "error", err)
	} else {
		c.attemptID = id
		c.publishEvent(events.EventAttemptStarted, events.AttemptStarted{
			AttemptID:    id,
			UserID:       c.user.ID,
			AssessmentID: c.assessment.ID,
			Mode:         string(c.profile.Mode),
			StartedAt:    c.startedAt,
		})
	}

	c.startAdapter(ctx)
	c.startSignInput(ctx)

	var tick <-chan time.Time
	if c.profile.Timed && c.assessment.TimerMinutes > 0 {
		c.remaining = c.assessment.TimerMinutes * 60
		ticker := time.NewTicker(c.cfg.Tick)
		defer ticker.Stop()
		tick = ticker.C
	}

	c.enterQuestion()
	c.update()

	for {
		select {
		case <-ctx.Done():
			return answer.Result{}, ctx.Err()
		case ev := <-c.events:
			c.handleEvent(ev)
		case cmd := <-c.commands:
			c.handleCommand(cmd)
		case r := <-c.results:
			c.handleResult(r)
		case <-tick:
			c.countdown()
		}
		if c.status == StatusSubmitted {
			res, _ := c.machine.Result()
			return res, nil
		}
	}
}

func (c *Controller) teardown() {
	close(c.closed)
	if c.adapter != nil {
		c.adapter.Stop()
	}
	if c.signIn != nil {
		c.signIn.Stop()
	}
	c.reqCancel()
	if c.outbox != nil {
		close(c.outbox)
	}
	if c.cfg.Tactile != nil {
		c.cfg.Tactile.Stop()
	}
	// The submission confirmation is left to finish.
	if c.status != StatusSubmitted {
		c.cfg.Speech.Stop()
	}
}

// startAdapter starts the profile's adapter, falling back to scanning and
// then to direct commands only.
func (c *Controller) startAdapter(ctx context.Context) {
	a := c.newAdapter(c.profile.Adapter)
	err := a.Start(ctx, c.events)
	if err == nil {
		c.adapter = a
		return
	}
	c.speechIn = nil
	if a.Name() == input.NameScan {
		c.scan = nil
		c.logger.Warn("scan adapter failed to start, continuing on direct commands only", "error", err)
		return
	}
	c.logger.Warn("input adapter failed to start, falling back to scanning", "adapter", a.Name(), "error", err)
	scan := c.newAdapter(input.NameScan)
	if err := scan.Start(ctx, c.events); err != nil {
		c.scan = nil
		c.logger.Warn("scan adapter failed to start, continuing on direct commands only", "error", err)
		return
	}
	c.adapter = scan
}

// startSignInput runs the sign recognizer feed next to the main adapter for
// students with hearing support.
func (c *Controller) startSignInput(ctx context.Context) {
	if !c.profile.Sign || c.cfg.Inputs.Signs == nil {
		return
	}
	a := input.NewSign(c.cfg.Inputs.Signs)
	if err := a.Start(ctx, c.events); err != nil {
		c.logger.Warn("sign input failed to start", "error", err)
		return
	}
	c.signIn = a
}

func (c *Controller) newAdapter(name input.Name) input.Adapter {
	in := c.cfg.Inputs
	switch name {
	case input.NameSpeech:
		open := in.Speech
		if open == nil {
			open = input.Unavailable[input.SpeechInput]()
		}
		c.speechIn = input.NewSpeech(input.SpeechConfig{
			Open:    open,
			Speaker: voice{c},
			OnText:  c.printer.T("VoiceOn"),
			OffText: c.printer.T("VoiceOff"),
		})
		return c.speechIn
	case input.NameGaze:
		open := in.Frames
		if open == nil {
			open = input.Unavailable[input.Frame]()
		}
		return input.NewGaze(open, nil)
	case input.NameSwitch:
		open := in.Switch
		if open == nil {
			open = func(context.Context) (io.ReadCloser, error) { return nil, input.ErrNoDevice }
		}
		return input.NewSwitch(open)
	}
	open := in.Keys
	if open == nil {
		open = input.Unavailable[input.KeyPress]()
	}
	c.scan = input.NewScan(input.ScanConfig{
		Open:       open,
		Speaker:    voice{c},
		OnActivate: c.onActivate,
	})
	return c.scan
}

// onActivate runs on the scan adapter's goroutine.
func (c *Controller) onActivate(el input.Element) {
	if el.ID == "hint" {
		c.Post(Command{Kind: CmdHint})
	}
}

func (c *Controller) handleEvent(ev input.Event) {
	if ev.Kind == input.Sign {
		if c.status == StatusActive {
			c.applySign(ev.Label)
		}
		return
	}
	switch c.status {
	case StatusSubmitFailed:
		if ev.Kind == input.Submit || ev.Kind == input.Next {
			c.submit()
		}
		return
	case StatusActive:
		c.apply(c.machine.Apply(ev))
	}
}

func (c *Controller) handleCommand(cmd Command) {
	switch cmd.Kind {
	case CmdSelect:
		c.handleEvent(input.SelectEvent(cmd.Index))
	case CmdNext:
		c.handleEvent(input.Event{Kind: input.Next})
	case CmdSubmit:
		c.handleEvent(input.Event{Kind: input.Submit})
	case CmdText:
		if c.status == StatusActive {
			c.apply(c.machine.SetText(cmd.Text))
		}
	case CmdGoTo:
		if c.status == StatusActive && c.profile.AllowBack {
			c.apply(c.machine.GoTo(cmd.Index))
		}
	case CmdHint:
		if c.status == StatusActive {
			c.requestHint()
		}
	case CmdToggleVoice:
		if c.speechIn != nil {
			c.speechIn.Toggle()
			c.update()
		}
	}
}

// applySign fills a short answer with the smoothed sign label. Signs are
// ignored on multiple-choice questions and for students without hearing
// support.
func (c *Controller) applySign(label string) {
	i := c.machine.Index()
	if !c.profile.Sign || c.display[i].Kind != model.KindShortAnswer {
		return
	}
	stable, ok := c.signs.Observe(label)
	if !ok {
		return
	}
	if a := c.machine.Answer(i); a.Set && a.Text == stable {
		return
	}
	c.apply(c.machine.SetText(stable))
}

// apply turns a machine outcome into feedback.
func (c *Controller) apply(out answer.Outcome) {
	q := c.display[c.machine.Index()]
	switch out.Effect {
	case answer.Ignored:
		return
	case answer.Highlighted:
		c.say(c.printer.Td("OptionFocus", map[string]any{
			"Ordinal": c.printer.Ordinal(out.Option), "Text": q.Options[out.Option],
		}))
	case answer.Selected:
		c.say(c.printer.Td("OptionSelected", map[string]any{
			"Ordinal": c.printer.Ordinal(out.Option), "Text": q.Options[out.Option],
		}))
	case answer.TextSet:
		c.say(c.printer.Td("AnswerRecorded", map[string]any{"Text": out.Text}))
	case answer.Moved:
		c.enterQuestion()
	case answer.SubmitRequested:
		c.submit()
	}
	c.update()
}

// enterQuestion resets per-question state. Replies to requests made for the
// previous question are dropped from here on.
func (c *Controller) enterQuestion() {
	c.gen++
	c.hint, c.caption = "", ""
	c.signs.Reset()
	i := c.machine.Index()
	q := c.display[i]

	if c.scan != nil {
		c.scan.SetElements(c.elements())
	}
	if c.profile.Braille && c.cfg.Tactile != nil {
		c.cfg.Tactile.Show(q.Text, q.Options)
	}
	c.say(c.printer.Td("QuestionPrompt", map[string]any{
		"N": i + 1, "Total": len(c.display), "Text": q.Text,
	}))
	if q.ImageURL != "" && c.profile.Captions {
		c.requestCaption()
	}
}

// elements lists the focusable items of the current question for scanning.
func (c *Controller) elements() []input.Element {
	i := c.machine.Index()
	q := c.display[i]
	els := []input.Element{
		{Kind: input.ElementStructural, ID: "title", Label: c.assessment.Title},
		{Kind: input.ElementStructural, ID: "question", Label: c.printer.Td("QuestionPrompt", map[string]any{
			"N": i + 1, "Total": len(c.display), "Text": q.Text,
		})},
	}
	switch q.Kind {
	case model.KindMultipleChoice:
		for j, opt := range q.Options {
			els = append(els, input.Element{
				Kind:   input.ElementOption,
				ID:     fmt.Sprintf("option-%d", j),
				Label:  c.printer.Td("OptionFocus", map[string]any{"Ordinal": c.printer.Ordinal(j), "Text": opt}),
				Option: j,
			})
		}
	case model.KindShortAnswer:
		els = append(els, input.Element{
			Kind:    input.ElementTextField,
			ID:      "answer",
			Label:   c.printer.T("TextField"),
			Confirm: c.printer.T("EditingTextField"),
		})
	}
	if c.profile.Hints && c.cfg.Hinter != nil {
		label := c.printer.T("HintButton")
		els = append(els, input.Element{
			Kind:    input.ElementButton,
			ID:      "hint",
			Label:   label,
			Confirm: c.printer.Td("Activated", map[string]any{"Name": label}),
		})
	}
	if c.machine.IsLast() {
		els = append(els, input.Element{Kind: input.ElementButton, ID: "finish", Label: c.printer.T("FinishButton"), Action: input.Submit})
	} else {
		els = append(els, input.Element{Kind: input.ElementButton, ID: "next", Label: c.printer.T("NextButton"), Action: input.Next})
	}
	return els
}

func (c *Controller) requestHint() {
	if c.cfg.Hinter == nil {
		return
	}
	gen, text := c.gen, c.display[c.machine.Index()].Text
	go func() {
		out, err := c.cfg.Hinter.Simplify(c.reqCtx, text, c.lang)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				c.logger.Warn("simplify failed", "error", err)
			}
			out = c.printer.T("CouldNotSimplify")
		}
		c.deliver(hintResult{gen: gen, text: out})
	}()
}

func (c *Controller) requestCaption() {
	gen, q := c.gen, c.display[c.machine.Index()]
	if c.cfg.Captioner == nil {
		c.caption = c.printer.T("ImageShown")
		return
	}
	go func() {
		desc, err := c.cfg.Captioner.DescribeImage(c.reqCtx, q.ImageURL, q.Text, c.lang)
		if err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Warn("image caption failed", "error", err)
		}
		if desc.Caption == "" || desc.Caption == llm.FallbackCaption {
			desc.Caption = c.printer.T("ImageShown")
		}
		c.deliver(captionResult{gen: gen, caption: desc})
	}()
}

func (c *Controller) deliver(r any) {
	select {
	case c.results <- r:
	case <-c.reqCtx.Done():
	}
}

func (c *Controller) handleResult(r any) {
	switch r := r.(type) {
	case hintResult:
		if r.gen != c.gen {
			c.logger.Debug("dropping stale hint", "gen", r.gen, "current", c.gen)
			return
		}
		c.hint = r.text
		c.say(r.text)
	case captionResult:
		if r.gen != c.gen {
			c.logger.Debug("dropping stale caption", "gen", r.gen, "current", c.gen)
			return
		}
		c.caption = r.caption.Caption
		if c.profile.Braille {
			c.say(r.caption.Caption)
		}
	case submitResult:
		c.finishSubmit(r)
	}
	c.update()
}

func (c *Controller) countdown() {
	if c.remaining < 0 || c.status != StatusActive {
		return
	}
	c.remaining--
	switch {
	case c.remaining <= 0:
		c.remaining = 0
		c.say(c.printer.T("TimeUp"))
		c.submit()
	case c.remaining == 300 || c.remaining == 60:
		c.say(c.printer.Tp("MinutesLeft", c.remaining/60))
	}
	c.update()
}

// submit scores the session once and sends the score to the store. After a
// failed attempt it resends the frozen score.
func (c *Controller) submit() {
	if c.status == StatusSubmitting || c.status == StatusSubmitted {
		return
	}
	res := c.machine.Finalize()
	c.status = StatusSubmitting
	c.say(c.printer.T("Submitting"))

	sc := model.Score{
		UserID:       c.user.ID,
		Name:         c.user.Name,
		Supports:     c.user.Supports,
		AssessmentID: c.assessment.ID,
		Score:        res.Score,
		Total:        res.Total,
		StartedAt:    c.startedAt,
		SubmittedAt:  c.cfg.Now(),
	}
	go func() {
		id, err := c.cfg.Store.SubmitScore(sc)
		c.deliver(submitResult{scoreID: id, err: err})
	}()
}

func (c *Controller) finishSubmit(r submitResult) {
	if r.err != nil {
		c.status = StatusSubmitFailed
		c.logger.Error("failed to submit score", "error", fmt.Errorf("%w: %w", ErrSubmitFailed, r.err))
		c.say(c.printer.T("SubmitFailed"))
		return
	}
	c.status = StatusSubmitted
	c.scoreID = r.scoreID
	if c.attemptID != "" {
		if err := c.cfg.Store.FinishAttempt(c.attemptID, r.scoreID); err != nil {
			c.logger.Warn("failed to finish attempt", "attempt", c.attemptID, "error", err)
		}
	}
	res, _ := c.machine.Result()
	c.publishEvent(events.EventScoreSubmitted, events.ScoreSubmitted{
		ScoreID:      r.scoreID,
		AttemptID:    c.attemptID,
		UserID:       c.user.ID,
		AssessmentID: c.assessment.ID,
		Mode:         string(c.profile.Mode),
		Supports:     supportNames(c.user.Supports),
		Score:        res.Score,
		Total:        res.Total,
		StartedAt:    c.startedAt,
		SubmittedAt:  c.cfg.Now(),
	})
	c.logger.Info("score submitted", "score", res.Score, "total", res.Total, "score_id", r.scoreID)
	c.say(c.printer.Td("Submitted", map[string]any{"Score": res.Score, "Total": res.Total}))
}

const (
	outboxSize     = 16
	publishTimeout = 5 * time.Second
)

// startPublisher sends queued events in order on their own goroutine.
// Events queued before the session ends are still delivered.
func (c *Controller) startPublisher() {
	if c.cfg.Publisher == nil {
		close(c.flushed)
		return
	}
	c.outbox = make(chan *events.Event, outboxSize)
	base := context.WithoutCancel(c.reqCtx)
	go func(outbox <-chan *events.Event) {
		defer close(c.flushed)
		for ev := range outbox {
			ctx, cancel := context.WithTimeout(base, publishTimeout)
			if err := c.cfg.Publisher.Publish(ctx, ev); err != nil {
				c.logger.Warn("failed to publish event", "type", ev.Type, "error", err)
			}
			cancel()
		}
	}(c.outbox)
}

// Flushed is closed once every event of a finished session has been handed
// to the publisher.
func (c *Controller) Flushed() <-chan struct{} {
	return c.flushed
}

// publishEvent queues an event without waiting for the broker.
func (c *Controller) publishEvent(t events.EventType, data any) {
	if c.outbox == nil {
		return
	}
	select {
	case c.outbox <- events.New(t, data):
	default:
		c.logger.Warn("event queue full, dropping event", "type", t)
	}
}

func supportNames(s []model.Support) []string {
	out := make([]string, len(s))
	for i, v := range s {
		out[i] = string(v)
	}
	return out
}

func (c *Controller) say(text string) {
	c.cfg.Speech.Speak(text, c.lang)
}

// voice lets adapters speak in the session language.
type voice struct{ c *Controller }

func (v voice) Say(text string) { v.c.say(text) }
