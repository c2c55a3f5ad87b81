package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/able/internal/handler"
	appI18n "github.com/pavelanni/able/internal/i18n"
	"github.com/pavelanni/able/internal/report"
	"github.com/pavelanni/able/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "able",
		Short: "Accessible assessments for students with disabilities",
	}

	serve := serveCmd()
	root.AddCommand(serve, takeCmd(), exportCmd(), importCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `able --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

// serviceFlags registers the flags of the optional backing services shared
// by serve and take.
func serviceFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("db", "able.db", "SQLite database path")
	f.String("llm-url", "", "OpenAI-compatible API base URL (empty disables hints and captions)")
	f.String("llm-key", "ollama", "API key for LLM")
	f.String("llm-model", "llama3.2", "LLM model name for hints")
	f.String("llm-vision-model", "", "LLM model name for image captions (defaults to --llm-model)")
	f.String("translate-url", "", "Batch translation endpoint (empty disables translation)")
	f.String("redis-url", "", "Redis URL for the shared translation cache (empty keeps it in memory)")
	f.Duration("translation-ttl", 0, "Expiry of cached translations (0 keeps them forever)")
	f.String("tts-url", "", "Remote speech synthesis endpoint for languages without a local voice")
	f.String("tts-key", "", "API key for the speech synthesis endpoint")
	f.StringSlice("kafka-brokers", nil, "Kafka brokers for domain events (empty publishes in-process)")
	f.String("kafka-topic", "", "Topic for domain events")
	f.StringP("lang", "l", "en", "Fallback UI language (en, hi, kn)")
	logFlags(cmd)
}

func logFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and live session server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.StringSliceP("assessments", "q", nil, "Assessment JSON files to import at startup (repeatable)")
	f.String("educator-email", "", "Educator account to create or reset at startup")
	f.String("educator-name", "", "Display name for the educator account")
	f.String("educator-password", "", "Educator password (or set ABLE_EDUCATOR_PASSWORD)")
	serviceFlags(cmd)
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export submitted scores",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "able.db", "SQLite database path")
	f.StringP("format", "f", string(report.FormatJSON), "Output format (json, xlsx)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	logFlags(cmd)
	return cmd
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import FILE...",
		Short: "Import assessments from JSON files",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runImport,
	}
	f := cmd.Flags()
	f.String("db", "able.db", "SQLite database path")
	f.String("created-by", "", "Educator ID recorded on imported assessments")
	f.String("creator-name", "", "Educator name recorded on imported assessments")
	logFlags(cmd)
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	setupLoggingTo(cmd, os.Stderr)
}

func setupLoggingTo(cmd *cobra.Command, w io.Writer) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(w, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(w, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags, a local .env file and the environment
// to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("error reading .env file", "error", err)
	}

	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("ABLE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("able")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/able")
	v.AddConfigPath("/etc/able")
	v.AddConfigPath("/data")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if n, err := db.CleanupStaleAttempts(); err != nil {
		slog.Warn("failed to clean up stale attempts", "error", err)
	} else if n > 0 {
		slog.Info("cleaned up stale attempts", "count", n)
	}

	if email := v.GetString("educator-email"); email != "" {
		if err := handler.SeedEducator(db, email, v.GetString("educator-name"), v.GetString("educator-password")); err != nil {
			return fmt.Errorf("seed educator: %w", err)
		}
	}

	if err := importFiles(db, v.GetStringSlice("assessments"), "", ""); err != nil {
		return fmt.Errorf("import assessments: %w", err)
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	svc, err := newServices(ctx, v)
	if err != nil {
		return err
	}
	defer svc.Close()

	h, err := handler.New(handler.Config{
		Store:       db,
		Hinter:      svc.hinter(),
		Captioner:   svc.captioner(),
		Translator:  svc.translator,
		Publisher:   svc.publisher,
		Synthesizer: svc.synthesizer(),
		Logger:      slog.Default(),
	})
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)

	addr := v.GetString("addr")
	srv := &http.Server{Addr: addr, Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("starting server",
		"addr", addr,
		"lang", lang,
		"llm_url", v.GetString("llm-url"),
		"translate_url", v.GetString("translate-url"),
		"kafka_brokers", v.GetStringSlice("kafka-brokers"),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// importFiles imports each assessments file, skipping files whose contents
// were already imported.
func importFiles(db *store.Store, paths []string, createdBy, creatorName string) error {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		ids, err := db.ImportAssessments(data, createdBy, creatorName)
		if errors.Is(err, store.ErrAlreadyImported) {
			slog.Info("assessments file unchanged, skipping import", "path", path)
			continue
		}
		if err != nil {
			return fmt.Errorf("import %s: %w", path, err)
		}
		slog.Info("imported assessments", "path", path, "count", len(ids))
	}
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	return importFiles(db, args, v.GetString("created-by"), v.GetString("creator-name"))
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	format, err := report.ParseFormat(v.GetString("format"))
	if err != nil {
		return err
	}

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	results, err := db.ExportScores()
	if err != nil {
		return fmt.Errorf("export scores: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if err := report.Write(w, format, results, time.Now()); err != nil {
		return fmt.Errorf("write %s: %w", format, err)
	}

	if outPath != "" && outPath != "-" {
		slog.Info("exported scores", "path", outPath, "format", format, "results", len(results))
	}
	return nil
}
