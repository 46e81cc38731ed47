package api

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"noldermd/internal/notes"
	"noldermd/internal/tasks"
)

type TaskListResponse struct {
	Tasks []*tasks.Task `json:"tasks"`
}

type TogglePayload struct {
	ID string `json:"id"`
}

type ToggleBatchPayload struct {
	IDs []string `json:"ids"`
}

type ReschedulePayload struct {
	ID   string `json:"id"`
	Date string `json:"date"`
}

// handleTasksList returns the root tasks of every note with their
// subtasks nested. With flat=true every task is listed once, in file then
// line order, without children; status narrows that list.
func (s *Server) handleTasksList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if query.Get("flat") != "true" {
		writeJSON(w, http.StatusOK, TaskListResponse{Tasks: s.engine.Index().Roots()})
		return
	}

	status := tasks.Status(strings.TrimSpace(query.Get("status")))
	all := s.engine.Index().Tasks()
	list := make([]*tasks.Task, 0, len(all))
	for _, task := range all {
		if status != "" && task.Status != status {
			continue
		}
		flat := *task
		flat.Children = nil
		list = append(list, &flat)
	}
	writeJSON(w, http.StatusOK, TaskListResponse{Tasks: list})
}

// handleTasksGet looks a task up by id. Ids embed the note path, so the
// route is a wildcard and the id may be path-escaped.
func (s *Server) handleTasksGet(w http.ResponseWriter, r *http.Request) {
	id, err := url.PathUnescape(chi.URLParam(r, "*"))
	if err != nil || strings.TrimSpace(id) == "" {
		writeError(w, http.StatusBadRequest, "task id is required")
		return
	}

	task, err := s.engine.Lookup(id)
	if err != nil {
		s.writeEngineError(w, err, "unable to load task")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// handleFileTasks returns the roots of one note in display order.
func (s *Server) handleFileTasks(w http.ResponseWriter, r *http.Request) {
	pathParam := r.URL.Query().Get("path")
	if strings.TrimSpace(pathParam) == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	roots, err := s.engine.OrderedRoots(r.Context(), notes.CleanPath(pathParam))
	if err != nil {
		s.writeEngineError(w, err, "unable to load tasks")
		return
	}
	writeJSON(w, http.StatusOK, TaskListResponse{Tasks: roots})
}

func (s *Server) handleTaskToggle(w http.ResponseWriter, r *http.Request) {
	payload, err := decodeJSON[TogglePayload](r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(payload.ID) == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	task, err := s.engine.Toggle(r.Context(), payload.ID)
	if err != nil {
		s.writeEngineError(w, err, "unable to toggle task")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleTaskToggleBatch(w http.ResponseWriter, r *http.Request) {
	payload, err := decodeJSON[ToggleBatchPayload](r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(payload.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "ids are required")
		return
	}

	if err := s.engine.ToggleMany(r.Context(), payload.IDs); err != nil {
		s.writeEngineError(w, err, "unable to toggle tasks")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"toggled": len(payload.IDs)})
}

func (s *Server) handleTaskReschedule(w http.ResponseWriter, r *http.Request) {
	payload, err := decodeJSON[ReschedulePayload](r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(payload.ID) == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	task, err := s.engine.Reschedule(r.Context(), payload.ID, strings.TrimSpace(payload.Date))
	if err != nil {
		s.writeEngineError(w, err, "unable to reschedule task")
		return
	}
	writeJSON(w, http.StatusOK, task)
}
