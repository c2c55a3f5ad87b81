package main

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"unicode"

	"golang.org/x/term"

	"github.com/pavelanni/able/internal/input"
	"github.com/pavelanni/able/internal/model"
	"github.com/pavelanni/able/internal/session"
)

// terminal reads stdin in raw mode and turns key presses into scanning keys
// and session commands.
type terminal struct {
	fd    int
	state *term.State
	keys  chan input.KeyPress
}

func openTerminal() (*terminal, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, input.ErrNoDevice
	}
	return &terminal{fd: fd, keys: make(chan input.KeyPress, 16)}, nil
}

// Open switches stdin to raw mode.
func (t *terminal) Open() error {
	state, err := term.MakeRaw(t.fd)
	if err != nil {
		return err
	}
	t.state = state
	return nil
}

// Keys is the scanning feed for the session.
func (t *terminal) Keys() input.Opener[input.KeyPress] {
	return input.Static[input.KeyPress](input.NewChanFeed[input.KeyPress](t.keys))
}

// Read dispatches key presses until stdin closes. quit runs on q or Ctrl-C.
func (t *terminal) Read(ctrl control, echo io.Writer, quit func()) {
	k := &keyReader{keys: t.keys, ctrl: ctrl, echo: echo, quit: quit}
	k.run(os.Stdin)
}

// control is the part of the session the keyboard drives.
type control interface {
	Post(session.Command) bool
	Snapshot() session.Snapshot
}

const (
	keyCtrlC     = 3
	keyBackspace = 8
	keyEscape    = 27
	keyDelete    = 127
)

// keyReader maps raw key presses to scanning keys and session commands. In
// text mode it collects a short answer until Enter.
type keyReader struct {
	keys chan<- input.KeyPress
	ctrl control
	echo io.Writer
	quit func()

	typing bool
	line   []rune
}

func (k *keyReader) run(in io.Reader) {
	r := bufio.NewReader(in)
	for {
		c, _, err := r.ReadRune()
		if err != nil || c == keyCtrlC {
			k.quit()
			return
		}
		if k.typing {
			k.edit(c)
			continue
		}
		if !k.command(c) {
			return
		}
	}
}

// command handles a key outside text mode. It returns false on quit.
func (k *keyReader) command(c rune) bool {
	if key, ok := input.KeyFromRune(c); ok {
		select {
		case k.keys <- input.KeyPress{Key: key}:
		default:
		}
		return true
	}
	switch {
	case c == 'q':
		k.quit()
		return false
	case c >= '1' && c <= '9':
		k.ctrl.Post(session.Command{Kind: session.CmdSelect, Index: int(c - '1')})
	case c == 'n' || c == '\r' || c == '\n':
		k.ctrl.Post(session.Command{Kind: session.CmdNext})
	case c == 'b':
		if i := k.ctrl.Snapshot().Index; i > 0 {
			k.ctrl.Post(session.Command{Kind: session.CmdGoTo, Index: i - 1})
		}
	case c == 's':
		k.ctrl.Post(session.Command{Kind: session.CmdSubmit})
	case c == 'h':
		k.ctrl.Post(session.Command{Kind: session.CmdHint})
	case c == 'v':
		k.ctrl.Post(session.Command{Kind: session.CmdToggleVoice})
	case c == 't':
		if k.ctrl.Snapshot().Question.Kind != model.KindShortAnswer {
			return true
		}
		k.typing, k.line = true, k.line[:0]
		fmt.Fprint(k.echo, "Answer: ")
	}
	return true
}

// edit handles a key in text mode.
func (k *keyReader) edit(c rune) {
	switch c {
	case '\r', '\n':
		k.typing = false
		fmt.Fprint(k.echo, "\n")
		k.ctrl.Post(session.Command{Kind: session.CmdText, Text: string(k.line)})
	case keyEscape:
		k.typing = false
		fmt.Fprint(k.echo, "\n")
	case keyBackspace, keyDelete:
		if len(k.line) > 0 {
			k.line = k.line[:len(k.line)-1]
			fmt.Fprint(k.echo, "\b \b")
		}
	default:
		if unicode.IsPrint(c) {
			k.line = append(k.line, c)
			fmt.Fprint(k.echo, string(c))
		}
	}
}

func (t *terminal) Restore() {
	if t.state != nil {
		_ = term.Restore(t.fd, t.state)
	}
}

// crlfWriter translates line feeds for a terminal in raw mode.
type crlfWriter struct{ w io.Writer }

func (c crlfWriter) Write(p []byte) (int, error) {
	if _, err := c.w.Write(bytes.ReplaceAll(p, []byte("\n"), []byte("\r\n"))); err != nil {
		return 0, err
	}
	return len(p), nil
}
