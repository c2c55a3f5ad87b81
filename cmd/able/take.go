package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/able/internal/braille"
	appI18n "github.com/pavelanni/able/internal/i18n"
	"github.com/pavelanni/able/internal/input"
	"github.com/pavelanni/able/internal/model"
	"github.com/pavelanni/able/internal/serialdev"
	"github.com/pavelanni/able/internal/session"
	"github.com/pavelanni/able/internal/speech"
	"github.com/pavelanni/able/internal/store"
	"github.com/pavelanni/able/internal/wsfeed"
)

const flushTimeout = 5 * time.Second

func takeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "take",
		Short: "Run an assessment session on this machine's speech and assistive devices",
		Long: `Run an assessment session in the terminal.

Keys: F advances scanning focus, J activates it, 1-9 select an option,
t types a short answer (Enter keeps it, Esc cancels), n or Enter moves on,
b goes back, h asks for a hint, v toggles voice input, s submits, q quits.`,
		RunE: runTake,
	}
	f := cmd.Flags()
	f.StringP("user", "u", "", "User ID taking the assessment")
	f.Int64P("assessment", "A", 0, "Assessment ID")
	f.String("motor-preference", "", "Device for users with motor supports (braille, sip, eye)")
	f.String("visual-input", string(input.NameScan), "Input for visually impaired users (scan, speech)")
	f.String("switch-port", "", "Serial port of the sip-and-puff switch")
	f.String("braille-port", "", "Serial port of the braille display")
	f.Int("baud", serialdev.DefaultBaudRate, "Baud rate of serial devices")
	f.String("gaze-url", "", "WebSocket feed of face landmark frames")
	f.String("speech-url", "", "WebSocket feed of speech recognition transcripts")
	f.String("sign-url", "", "WebSocket feed of sign language recognizer labels")
	f.String("espeak", "espeak-ng", "Local speech synthesizer binary")
	f.Int("speech-rate", 0, "Local speech rate in words per minute (0 for the default)")
	f.String("player", "", "Audio player command reading stdin (defaults to ffplay)")
	f.Bool("list-ports", false, "List serial ports and exit")
	serviceFlags(cmd)
	return cmd
}

func runTake(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	if v.GetBool("list-ports") {
		ports, err := serialdev.Ports()
		if err != nil {
			return fmt.Errorf("list serial ports: %w", err)
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return nil
	}

	userID := v.GetString("user")
	assessmentID := v.GetInt64("assessment")
	if userID == "" || assessmentID <= 0 {
		return errors.New("--user and --assessment are required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := appI18n.Init(v.GetString("lang")); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	svc, err := newServices(ctx, v)
	if err != nil {
		return err
	}
	defer svc.Close()

	logger := slog.Default()
	voice := speech.NewChannel(speech.Config{
		Local:  speech.ExecEngine{Binary: v.GetString("espeak"), Rate: v.GetInt("speech-rate")},
		Remote: svc.synthesizer(),
		Player: speech.ExecPlayer{Command: strings.Fields(v.GetString("player"))},
		Logger: logger,
	})
	defer voice.Close()

	baud := v.GetInt("baud")
	inputs := deviceInputs(v, baud, logger)

	var tactile session.Tactile
	if port := v.GetString("braille-port"); port != "" {
		tx, err := braille.Connect(ctx, serialdev.Writer(port, baud), logger)
		if err != nil {
			slog.Warn("braille display unavailable", "port", port, "error", err)
		} else {
			defer tx.Close()
			tactile = tx
		}
	}

	tty, err := openTerminal()
	if err != nil {
		slog.Warn("no interactive terminal, keyboard scanning disabled", "error", err)
	} else {
		inputs.Keys = tty.Keys()
	}

	updates := make(chan session.Snapshot, 16)
	cfg := session.Config{
		Store:       db,
		Speech:      voice,
		Inputs:      inputs,
		Translator:  svc.translator,
		Hinter:      svc.hinter(),
		Captioner:   svc.captioner(),
		Tactile:     tactile,
		Publisher:   svc.publisher,
		VisualInput: input.Name(v.GetString("visual-input")),
		Logger:      logger,
		OnUpdate: func(s session.Snapshot) {
			select {
			case updates <- s:
			default:
			}
		},
	}

	ctrl, err := session.Load(ctx, cfg, userID, assessmentID)
	if errors.Is(err, session.ErrPreferenceRequired) {
		if err := choosePreference(db, userID, v.GetString("motor-preference")); err != nil {
			return err
		}
		ctrl, err = session.Load(ctx, cfg, userID, assessmentID)
	}
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	var out io.Writer = os.Stdout
	if tty != nil {
		if err := tty.Open(); err != nil {
			return fmt.Errorf("raw terminal: %w", err)
		}
		defer tty.Restore()
		out = crlfWriter{os.Stdout}
		setupLoggingTo(cmd, crlfWriter{os.Stderr})
		go tty.Read(ctrl, out, cancel)
	}
	go printUpdates(out, updates)

	profile := ctrl.Profile()
	fmt.Fprintf(out, "Mode: %s, input: %s\n", profile.Mode, profile.Adapter)

	res, err := ctrl.Run(ctx)
	voice.Wait()
	select {
	case <-ctrl.Flushed():
	case <-time.After(flushTimeout):
		slog.Warn("gave up waiting for session events to publish")
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Score: %d/%d\n", res.Score, res.Total)
	return nil
}

// deviceInputs opens the configured assistive devices. Devices left
// unconfigured report themselves unavailable when the session starts them.
func deviceInputs(v *viper.Viper, baud int, logger *slog.Logger) session.Inputs {
	var in session.Inputs
	if port := v.GetString("switch-port"); port != "" {
		in.Switch = serialdev.Reader(port, baud)
	}
	if url := v.GetString("gaze-url"); url != "" {
		in.Frames = wsfeed.Opener[input.Frame](url, logger)
	}
	if url := v.GetString("speech-url"); url != "" {
		in.Speech = wsfeed.Opener[input.SpeechInput](url, logger)
	}
	if url := v.GetString("sign-url"); url != "" {
		in.Signs = wsfeed.Opener[input.SignPrediction](url, logger)
	}
	return in
}

// choosePreference stores the motor device for userID, asking on stdin when
// pref is empty.
func choosePreference(db *store.Store, userID, pref string) error {
	if pref == "" {
		fmt.Print("Choose your input device (braille, sip, eye): ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return fmt.Errorf("read motor preference: %w", err)
		}
		pref = line
	}
	p := model.MotorPreference(strings.ToLower(strings.TrimSpace(pref)))
	return session.SetMotorPreference(db, userID, p)
}

// printUpdates shows the current question whenever it changes.
func printUpdates(w io.Writer, updates <-chan session.Snapshot) {
	last := -1
	var hint, caption string
	for s := range updates {
		if s.Index != last {
			last = s.Index
			fmt.Fprintf(w, "\nQuestion %d of %d: %s\n", s.Index+1, s.Total, s.Question.Text)
			for i, opt := range s.Question.Options {
				fmt.Fprintf(w, "  %d. %s\n", i+1, opt)
			}
			hint, caption = "", ""
		}
		if s.Hint != "" && s.Hint != hint {
			hint = s.Hint
			fmt.Fprintf(w, "Hint: %s\n", hint)
		}
		if s.Caption != "" && s.Caption != caption {
			caption = s.Caption
			fmt.Fprintf(w, "Image: %s\n", caption)
		}
	}
}
