package speech

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"github.com/pavelanni/able/internal/model"
)

// espeakVoices maps languages to espeak-ng voice names.
var espeakVoices = map[model.Language]string{
	model.LanguageEnglish: "en-us",
	model.LanguageHindi:   "hi",
	model.LanguageKannada: "kn",
}

// ExecEngine speaks through a local command-line synthesizer such as espeak-ng.
// Cancelling ctx kills the process, which cuts playback.
type ExecEngine struct {
	Binary string // defaults to espeak-ng
	Rate   int    // words per minute, 0 for the engine default
}

func (e ExecEngine) Say(ctx context.Context, text string, lang model.Language) error {
	bin := e.Binary
	if bin == "" {
		bin = "espeak-ng"
	}
	args := []string{"-v", voiceFor(lang)}
	if e.Rate > 0 {
		args = append(args, "-s", fmt.Sprint(e.Rate))
	}
	args = append(args, "--", text)
	if out, err := exec.CommandContext(ctx, bin, args...).CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s: %w: %s", bin, err, bytes.TrimSpace(out))
	}
	return nil
}

func voiceFor(lang model.Language) string {
	if v, ok := espeakVoices[lang]; ok {
		return v
	}
	return espeakVoices[model.DefaultLanguage]
}

// ExecPlayer pipes audio into a command-line player reading stdin.
type ExecPlayer struct {
	Command []string // defaults to ffplay reading from stdin
}

func (p ExecPlayer) Play(ctx context.Context, audio []byte) error {
	argv := p.Command
	if len(argv) == 0 {
		argv = []string{"ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet", "-"}
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = bytes.NewReader(audio)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s: %w", argv[0], err)
	}
	return nil
}
