// Package server wires configuration, persistence and the task engine into
// a running process.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gofrs/flock"

	"noldermd/internal/api"
	"noldermd/internal/config"
	"noldermd/internal/engine"
	"noldermd/internal/kv"
	"noldermd/internal/notes"
	"noldermd/internal/ranks"
	"noldermd/internal/schedule"
	"noldermd/internal/tasks"
)

const stateDBName = "state.db"

// App is an engine over one notes directory together with the resources
// it holds open. Close releases them.
type App struct {
	Engine *engine.Engine
	Logger *slog.Logger

	db   *kv.SQLite
	lock *flock.Flock
}

// Open locks the notes directory, opens the state database and builds the
// engine. The index is empty until Load is called on the engine.
func Open(cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	notesDir, err := filepath.Abs(cfg.NotesDir)
	if err != nil {
		return nil, fmt.Errorf("resolve notes dir: %w", err)
	}
	if err := os.MkdirAll(notesDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure notes dir: %w", err)
	}

	lock, err := notes.Lock(cfg.StateDir)
	if err != nil {
		return nil, err
	}
	db, err := kv.OpenSQLite(filepath.Join(cfg.StateDir, stateDBName))
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}

	index := tasks.NewIndex(tasks.WithExtensions(cfg.NoteExtensions), tasks.WithLogger(logger))
	done := schedule.NewDoneStore(db)
	eng := engine.New(engine.Options{
		Notes:     notes.NewStore(notesDir, cfg.NoteExtensions),
		Index:     index,
		Ranks:     ranks.NewStore(db, logger),
		Done:      done,
		Resolver:  schedule.NewResolver(index, done, cfg.TimeBlockHeading, logger),
		DailyNote: cfg.DailyNotePath,
		Logger:    logger,
	})
	return &App{Engine: eng, Logger: logger, db: db, lock: lock}, nil
}

func (a *App) Close() error {
	return errors.Join(a.db.Close(), a.lock.Unlock())
}

// NewHandler mounts the API under /api/v1 behind the request middleware.
func NewHandler(app *App, cfg config.Config) http.Handler {
	settings := api.Settings{
		NotesDir:         cfg.NotesDir,
		DailyFolder:      cfg.DailyFolder,
		TimeBlockHeading: cfg.TimeBlockHeading,
		NoteExtensions:   cfg.NoteExtensions,
	}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Mount("/api/v1", api.NewRouter(app.Engine, settings, app.Logger))
	return r
}

// NewLogger builds the process logger. The boolean is false when level
// was not recognised and info was used instead.
func NewLogger(level string, w io.Writer) (*slog.Logger, bool) {
	parsed, ok := parseLogLevel(level)
	levelVar := new(slog.LevelVar)
	levelVar.Set(parsed)
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: levelVar})), ok
}

func Run(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, ok := NewLogger(cfg.LogLevel, os.Stdout)
	slog.SetDefault(logger)
	if !ok && cfg.LogLevel != "" {
		logger.Warn("unknown log level, defaulting to info", "level", cfg.LogLevel)
	}

	app, err := Open(cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	if _, err := app.Engine.Load(context.Background()); err != nil {
		return fmt.Errorf("load notes: %w", err)
	}
	logger.Info("server starting", "notesDir", cfg.NotesDir, "stateDir", cfg.StateDir, "port", cfg.Port)

	addr := fmt.Sprintf(":%d", cfg.Port)
	return listenAndServe(addr, NewHandler(app, cfg))
}

var listenAndServe = http.ListenAndServe

func parseLogLevel(value string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug, true
	case "", "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}
