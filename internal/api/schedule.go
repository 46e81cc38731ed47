package api

import (
	"net/http"
	"strings"
	"time"

	"noldermd/internal/schedule"
	"noldermd/internal/tasks"
)

var timeNow = time.Now

type ScheduleResponse struct {
	Date      string              `json:"date"`
	Instances []schedule.Instance `json:"instances"`
}

type DonePayload struct {
	Date string `json:"date"`
	ID   string `json:"id"`
	Done bool   `json:"done"`
}

// handleSchedule resolves the daily note of date, today by default.
func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date == "" {
		date = timeNow().Format(tasks.DateLayout)
	}

	instances, err := s.engine.Schedule(r.Context(), date)
	if err != nil {
		s.writeEngineError(w, err, "unable to resolve schedule")
		return
	}
	writeJSON(w, http.StatusOK, ScheduleResponse{Date: date, Instances: instances})
}

func (s *Server) handleScheduleDone(w http.ResponseWriter, r *http.Request) {
	payload, err := decodeJSON[DonePayload](r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(payload.ID) == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	if payload.Date == "" {
		payload.Date = timeNow().Format(tasks.DateLayout)
	}

	if err := s.engine.SetDone(r.Context(), payload.Date, payload.ID, payload.Done); err != nil {
		s.writeEngineError(w, err, "unable to update schedule")
		return
	}
	writeJSON(w, http.StatusOK, payload)
}
