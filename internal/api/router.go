package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"noldermd/internal/engine"
)

func NewRouter(eng *engine.Engine, settings Settings, logger *slog.Logger) chi.Router {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{engine: eng, settings: settings, logger: logger}

	r := chi.NewRouter()
	r.Get("/health", s.handleHealth)
	r.Get("/tree", s.handleTree)
	r.Get("/notes", s.handleGetNote)
	r.Put("/notes", s.handleSaveNote)
	r.Delete("/notes", s.handleDeleteNote)
	r.Post("/events", s.handleEvent)
	r.Post("/focus", s.handleSetFocus)
	r.Delete("/focus", s.handleClearFocus)

	r.Get("/tasks", s.handleTasksList)
	r.Post("/tasks/toggle", s.handleTaskToggle)
	r.Post("/tasks/toggle-batch", s.handleTaskToggleBatch)
	r.Post("/tasks/reschedule", s.handleTaskReschedule)
	r.Get("/tasks/*", s.handleTasksGet)
	r.Get("/files/tasks", s.handleFileTasks)

	r.Get("/ranks", s.handleRanksGet)
	r.Delete("/ranks", s.handleRanksReset)
	r.Post("/ranks/move", s.handleRanksMove)

	r.Get("/schedule", s.handleSchedule)
	r.Post("/schedule/done", s.handleScheduleDone)

	r.Get("/settings", s.handleSettingsGet)

	return r
}
