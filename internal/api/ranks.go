package api

import (
	"net/http"
	"strings"

	"noldermd/internal/notes"
)

type RanksResponse struct {
	Path  string             `json:"path"`
	Ranks map[string]float64 `json:"ranks"`
}

type MovePayload struct {
	ID    string `json:"id"`
	Index int    `json:"index"`
}

func (s *Server) handleRanksGet(w http.ResponseWriter, r *http.Request) {
	pathParam := r.URL.Query().Get("path")
	if strings.TrimSpace(pathParam) == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	rel := notes.CleanPath(pathParam)
	values, err := s.engine.Ranks(r.Context(), rel)
	if err != nil {
		s.writeEngineError(w, err, "unable to load ranks")
		return
	}
	writeJSON(w, http.StatusOK, RanksResponse{Path: rel, Ranks: values})
}

func (s *Server) handleRanksReset(w http.ResponseWriter, r *http.Request) {
	pathParam := r.URL.Query().Get("path")
	if strings.TrimSpace(pathParam) == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	if err := s.engine.ResetRanks(r.Context(), notes.CleanPath(pathParam)); err != nil {
		s.writeEngineError(w, err, "unable to reset ranks")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRanksMove drops a root task at a new position and returns the
// note's roots in their new order.
func (s *Server) handleRanksMove(w http.ResponseWriter, r *http.Request) {
	payload, err := decodeJSON[MovePayload](r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(payload.ID) == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	ordered, err := s.engine.MoveTask(r.Context(), payload.ID, payload.Index)
	if err != nil {
		s.writeEngineError(w, err, "unable to move task")
		return
	}
	writeJSON(w, http.StatusOK, TaskListResponse{Tasks: ordered})
}
