package api

import (
	"net/http"
)

// Settings is the read-only view of the configuration the engine runs
// with.
type Settings struct {
	NotesDir         string   `json:"notesDir"`
	DailyFolder      string   `json:"dailyFolder"`
	TimeBlockHeading string   `json:"timeBlockHeading"`
	NoteExtensions   []string `json:"noteExtensions"`
}

type SettingsResponse struct {
	Settings Settings `json:"settings"`
	Focus    string   `json:"focus,omitempty"`
}

func (s *Server) handleSettingsGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, SettingsResponse{
		Settings: s.settings,
		Focus:    s.engine.Mutator().Focus(),
	})
}
