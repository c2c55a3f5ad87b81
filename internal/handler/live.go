package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/pavelanni/able/internal/answer"
	"github.com/pavelanni/able/internal/input"
	"github.com/pavelanni/able/internal/model"
	"github.com/pavelanni/able/internal/session"
	"github.com/pavelanni/able/internal/speech"
)

const (
	writeWait     = 10 * time.Second
	maxLiveFrame  = 1 << 20
	liveOutBuffer = 256
	feedBuffer    = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The live page may be served from a different origin than the API.
	CheckOrigin: func(*http.Request) bool { return true },
}

// liveIn is a message from the browser. Raw input (key, transcript,
// voice_toggle, frame, switch, sign) feeds the recognition adapters; the rest are
// direct commands.
type liveIn struct {
	Type       string                `json:"type"`
	Key        string                `json:"key,omitempty"`
	Typing     bool                  `json:"typing,omitempty"`
	Transcript string                `json:"transcript,omitempty"`
	Landmarks  []input.Point         `json:"landmarks,omitempty"`
	Label      string                `json:"label,omitempty"`
	Token      string                `json:"token,omitempty"`
	Index      int                   `json:"index,omitempty"`
	Text       string                `json:"text,omitempty"`
	Preference model.MotorPreference `json:"preference,omitempty"`
}

// liveOut is a message to the browser.
type liveOut struct {
	Type    string            `json:"type"`
	State   *session.Snapshot `json:"state,omitempty"`
	Text    string            `json:"text,omitempty"`
	Lang    string            `json:"lang,omitempty"`
	Audio   []byte            `json:"audio,omitempty"`
	Result  *answer.Result    `json:"result,omitempty"`
	ScoreID int64             `json:"scoreId,omitempty"`
	Error   string            `json:"error,omitempty"`
}

const (
	msgState              = "state"
	msgSpeak              = "speak"
	msgAudio              = "audio"
	msgPreferenceRequired = "preference_required"
	msgNotFound           = "not_found"
	msgSubmitted          = "submitted"
	msgError              = "error"
)

// liveConn owns the socket. All writes go through out so there is a single writer.
type liveConn struct {
	conn   *websocket.Conn
	out    chan liveOut
	logger *slog.Logger
}

// send queues m without blocking; a client that stops reading loses messages.
func (c *liveConn) send(m liveOut) {
	select {
	case c.out <- m:
	default:
		c.logger.Warn("live client is not reading, dropping message", "type", m.Type)
	}
}

func (c *liveConn) write(m liveOut) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(m)
}

// writeLoop writes queued messages until stop is closed, then flushes the
// queue and sends a close frame.
func (c *liveConn) writeLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case m := <-c.out:
			if err := c.write(m); err != nil {
				c.logger.Debug("live write failed", "error", err)
				return
			}
		case <-stop:
			for {
				select {
				case m := <-c.out:
					if err := c.write(m); err != nil {
						return
					}
				default:
					msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
					_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
					return
				}
			}
		}
	}
}

// readLoop decodes client messages until the socket fails, then cancels the session.
func (c *liveConn) readLoop(ctx context.Context, cancel context.CancelFunc, incoming chan<- liveIn) {
	defer cancel()
	defer close(incoming)
	c.conn.SetReadLimit(maxLiveFrame)
	for {
		var m liveIn
		if err := c.conn.ReadJSON(&m); err != nil {
			var syntax *json.SyntaxError
			var typ *json.UnmarshalTypeError
			if errors.As(err, &syntax) || errors.As(err, &typ) {
				c.send(liveOut{Type: msgError, Error: "invalid message: " + err.Error()})
				continue
			}
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("live read ended", "error", err)
			}
			return
		}
		select {
		case incoming <- m:
		case <-ctx.Done():
			return
		}
	}
}

// clientEngine asks the browser to speak with its own synthesizer.
type clientEngine struct{ c *liveConn }

func (e clientEngine) Say(_ context.Context, text string, lang model.Language) error {
	e.c.send(liveOut{Type: msgSpeak, Text: text, Lang: lang.SpeechLocale()})
	return nil
}

// clientPlayer forwards synthesized audio to the browser.
type clientPlayer struct{ c *liveConn }

func (p clientPlayer) Play(_ context.Context, audio []byte) error {
	p.c.send(liveOut{Type: msgAudio, Audio: audio})
	return nil
}

// liveInputs are the raw feeds behind the adapters, filled from socket messages.
type liveInputs struct {
	keys        chan input.KeyPress
	transcripts chan input.SpeechInput
	frames      chan input.Frame
	signs       chan input.SignPrediction
	switchR     *io.PipeReader
	switchW     *io.PipeWriter
	logger      *slog.Logger
}

func newLiveInputs(logger *slog.Logger) *liveInputs {
	r, w := io.Pipe()
	return &liveInputs{
		keys:        make(chan input.KeyPress, feedBuffer),
		transcripts: make(chan input.SpeechInput, feedBuffer),
		frames:      make(chan input.Frame, feedBuffer),
		signs:       make(chan input.SignPrediction, feedBuffer),
		switchR:     r,
		switchW:     w,
		logger:      logger,
	}
}

func (l *liveInputs) inputs() session.Inputs {
	return session.Inputs{
		Keys:   input.Static[input.KeyPress](input.NewChanFeed[input.KeyPress](l.keys)),
		Speech: input.Static[input.SpeechInput](input.NewChanFeed[input.SpeechInput](l.transcripts)),
		Frames: input.Static[input.Frame](input.NewChanFeed[input.Frame](l.frames)),
		Switch: func(context.Context) (io.ReadCloser, error) { return l.switchR, nil },
		Signs:  input.Static[input.SignPrediction](input.NewChanFeed[input.SignPrediction](l.signs)),
	}
}

func (l *liveInputs) close() {
	l.switchW.Close()
}

func offer[T any](ch chan T, v T, logger *slog.Logger) {
	select {
	case ch <- v:
	default:
		logger.Debug("input feed full, dropping", "value", v)
	}
}

// parseKey accepts the switch names and the F/J keys.
func parseKey(s string) (input.Key, bool) {
	switch strings.ToLower(s) {
	case "advance":
		return input.KeyAdvance, true
	case "activate":
		return input.KeyActivate, true
	}
	if r := []rune(s); len(r) == 1 {
		return input.KeyFromRune(r[0])
	}
	return 0, false
}

// dispatch routes one client message to the running session.
func (l *liveInputs) dispatch(ctrl *session.Controller, c *liveConn, m liveIn) {
	switch m.Type {
	case "key":
		k, ok := parseKey(m.Key)
		if !ok {
			c.send(liveOut{Type: msgError, Error: "unknown key " + strconv.Quote(m.Key)})
			return
		}
		offer(l.keys, input.KeyPress{Key: k, Typing: m.Typing}, l.logger)
	case "transcript":
		offer(l.transcripts, input.SpeechInput{Transcript: m.Transcript}, l.logger)
	case "voice_toggle":
		ctrl.Post(session.Command{Kind: session.CmdToggleVoice})
	case "frame":
		offer(l.frames, input.Frame{Landmarks: m.Landmarks}, l.logger)
	case "sign":
		if !ctrl.Profile().Sign {
			return
		}
		offer(l.signs, input.SignPrediction{Label: m.Label}, l.logger)
	case "switch":
		if ctrl.Snapshot().Adapter != input.NameSwitch {
			return
		}
		if _, err := l.switchW.Write([]byte(m.Token + "\n")); err != nil {
			l.logger.Debug("switch feed closed", "error", err)
		}
	case "select":
		ctrl.Post(session.Command{Kind: session.CmdSelect, Index: m.Index})
	case "text":
		ctrl.Post(session.Command{Kind: session.CmdText, Text: m.Text})
	case "next":
		ctrl.Post(session.Command{Kind: session.CmdNext})
	case "submit":
		ctrl.Post(session.Command{Kind: session.CmdSubmit})
	case "goto":
		ctrl.Post(session.Command{Kind: session.CmdGoTo, Index: m.Index})
	case "hint":
		ctrl.Post(session.Command{Kind: session.CmdHint})
	case "motor_preference":
		l.logger.Debug("ignoring motor preference during a running session")
	default:
		c.send(liveOut{Type: msgError, Error: "unknown message type " + strconv.Quote(m.Type)})
	}
}

// handleLive runs one assessment session for a browser over a WebSocket.
// ?input=speech selects voice answering for visually impaired students.
func (h *Handler) handleLive(w http.ResponseWriter, r *http.Request) {
	assessmentID, err := strconv.ParseInt(chi.URLParam(r, "assessmentID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid assessment ID")
		return
	}
	userID := r.URL.Query().Get("user")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user is required")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	logger := h.logger.With("live", uuid.NewString(), "user", userID, "assessment", assessmentID)
	lc := &liveConn{conn: conn, out: make(chan liveOut, liveOutBuffer), logger: logger}
	stop, written := make(chan struct{}), make(chan struct{})
	go lc.writeLoop(stop, written)
	defer func() {
		close(stop)
		<-written
	}()

	incoming := make(chan liveIn, feedBuffer)
	go lc.readLoop(ctx, cancel, incoming)

	feeds := newLiveInputs(logger)
	defer feeds.close()
	voice := speech.NewChannel(speech.Config{
		Local:  clientEngine{lc},
		Remote: h.cfg.Synthesizer,
		Player: clientPlayer{lc},
		Logger: logger,
	})
	defer voice.Close()

	cfg := session.Config{
		Store:       h.store,
		Speech:      voice,
		Inputs:      feeds.inputs(),
		Translator:  h.cfg.Translator,
		Hinter:      h.cfg.Hinter,
		Captioner:   h.cfg.Captioner,
		Publisher:   h.cfg.Publisher,
		VisualInput: input.Name(r.URL.Query().Get("input")),
		OnUpdate: func(s session.Snapshot) {
			lc.send(liveOut{Type: msgState, State: &s})
		},
		Logger: logger,
	}

	ctrl, err := h.loadLive(ctx, cfg, userID, assessmentID, incoming, lc)
	if err != nil {
		return
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-incoming:
				if !ok {
					return
				}
				feeds.dispatch(ctrl, lc, m)
			}
		}
	}()

	res, err := ctrl.Run(ctx)
	if err != nil {
		if ctx.Err() == nil {
			logger.Error("live session failed", "error", err)
			lc.send(liveOut{Type: msgError, Error: err.Error()})
		}
		return
	}
	lc.send(liveOut{Type: msgSubmitted, Result: &res, ScoreID: ctrl.Snapshot().ScoreID})
	logger.Info("live session finished", "score", res.Score, "total", res.Total)
}

// loadLive prepares the session, asking the client for a motor device
// preference first when the student has none.
func (h *Handler) loadLive(ctx context.Context, cfg session.Config, userID string, assessmentID int64, incoming <-chan liveIn, lc *liveConn) (*session.Controller, error) {
	for {
		ctrl, err := session.Load(ctx, cfg, userID, assessmentID)
		switch {
		case err == nil:
			return ctrl, nil
		case errors.Is(err, session.ErrPreferenceRequired):
			lc.send(liveOut{Type: msgPreferenceRequired})
			if err := h.awaitPreference(ctx, userID, incoming, lc); err != nil {
				return nil, err
			}
		case errors.Is(err, session.ErrUserNotFound), errors.Is(err, session.ErrAssessmentNotFound):
			lc.send(liveOut{Type: msgNotFound, Error: err.Error()})
			return nil, err
		default:
			lc.logger.Error("failed to load session", "error", err)
			lc.send(liveOut{Type: msgError, Error: err.Error()})
			return nil, err
		}
	}
}

func (h *Handler) awaitPreference(ctx context.Context, userID string, incoming <-chan liveIn, lc *liveConn) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-incoming:
			if !ok {
				return io.EOF
			}
			if m.Type != "motor_preference" {
				continue
			}
			if err := session.SetMotorPreference(h.store, userID, m.Preference); err != nil {
				lc.send(liveOut{Type: msgError, Error: err.Error()})
				continue
			}
			return nil
		}
	}
}
