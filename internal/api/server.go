package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"noldermd/internal/engine"
	"noldermd/internal/notes"
	"noldermd/internal/ranks"
	"noldermd/internal/tasks"
)

type Server struct {
	engine   *engine.Engine
	settings Settings
	logger   *slog.Logger
}

type TreeNode struct {
	Name     string     `json:"name"`
	Path     string     `json:"path"`
	Type     string     `json:"type"`
	Children []TreeNode `json:"children,omitempty"`
}

type NoteResponse struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

type NotePayload struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	paths, err := s.engine.Notes(r.Context())
	if err != nil {
		s.logger.Error("list notes", "err", err)
		writeError(w, http.StatusInternalServerError, "unable to build tree")
		return
	}
	root := TreeNode{Name: "Notes", Path: "", Type: "folder"}
	for _, rel := range paths {
		insertPath(&root, strings.Split(rel, "/"), "")
	}
	sortTree(&root)
	writeJSON(w, http.StatusOK, root)
}

func (s *Server) handleGetNote(w http.ResponseWriter, r *http.Request) {
	pathParam := r.URL.Query().Get("path")
	if strings.TrimSpace(pathParam) == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	rel := notes.CleanPath(pathParam)
	content, err := s.engine.ReadNote(r.Context(), rel)
	if err != nil {
		s.writeEngineError(w, err, "unable to read note")
		return
	}
	writeJSON(w, http.StatusOK, NoteResponse{Path: rel, Content: content})
}

// handleSaveNote persists the editor's content. The saved note is
// re-indexed before the response is written.
func (s *Server) handleSaveNote(w http.ResponseWriter, r *http.Request) {
	payload, err := decodeJSON[NotePayload](r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(payload.Path) == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	rel := notes.CleanPath(payload.Path)
	if err := s.engine.SaveNote(r.Context(), rel, payload.Content); err != nil {
		s.writeEngineError(w, err, "unable to save note")
		return
	}
	roots, _ := s.engine.Index().File(rel)
	writeJSON(w, http.StatusOK, map[string]any{
		"path":  rel,
		"tasks": len(tasks.Flatten(roots)),
	})
}

func (s *Server) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	pathParam := r.URL.Query().Get("path")
	if strings.TrimSpace(pathParam) == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	if err := s.engine.DeleteNote(r.Context(), notes.CleanPath(pathParam)); err != nil {
		s.writeEngineError(w, err, "unable to delete note")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	event, err := decodeJSON[engine.Event](r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !event.Kind.Valid() {
		writeError(w, http.StatusBadRequest, "kind must be created, modified or deleted")
		return
	}
	if strings.TrimSpace(event.Path) == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	event.Path = notes.CleanPath(event.Path)
	if err := s.engine.HandleChange(r.Context(), event); err != nil {
		s.writeEngineError(w, err, "unable to apply change")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetFocus(w http.ResponseWriter, r *http.Request) {
	payload, err := decodeJSON[NotePayload](r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(payload.Path) == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}
	s.engine.Mutator().SetFocus(notes.CleanPath(payload.Path), payload.Content)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearFocus(w http.ResponseWriter, r *http.Request) {
	s.engine.Mutator().ClearFocus()
	w.WriteHeader(http.StatusNoContent)
}

// writeEngineError maps domain errors onto HTTP statuses. Anything
// unrecognised is logged and reported as fallback.
func (s *Server) writeEngineError(w http.ResponseWriter, err error, fallback string) {
	var rangeErr tasks.LineRangeError
	switch {
	case errors.Is(err, notes.ErrNotFound), errors.Is(err, engine.ErrTaskNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, notes.ErrIsFolder),
		errors.Is(err, notes.ErrNotANote),
		errors.Is(err, notes.ErrEscapes),
		errors.Is(err, notes.ErrAbsolute),
		errors.Is(err, tasks.ErrNotATask),
		errors.Is(err, tasks.ErrInvalidDate),
		errors.Is(err, ranks.ErrUnknownTask),
		errors.As(err, &rangeErr):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error(fallback, "err", err)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

func insertPath(node *TreeNode, parts []string, prefix string) {
	name := parts[0]
	rel := name
	if prefix != "" {
		rel = prefix + "/" + name
	}
	if len(parts) == 1 {
		node.Children = append(node.Children, TreeNode{Name: name, Path: rel, Type: "file"})
		return
	}
	for i := range node.Children {
		child := &node.Children[i]
		if child.Type == "folder" && child.Name == name {
			insertPath(child, parts[1:], rel)
			return
		}
	}
	node.Children = append(node.Children, TreeNode{Name: name, Path: rel, Type: "folder"})
	insertPath(&node.Children[len(node.Children)-1], parts[1:], rel)
}

func sortTree(node *TreeNode) {
	nodes := node.Children
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Type == nodes[j].Type {
			return strings.ToLower(nodes[i].Name) < strings.ToLower(nodes[j].Name)
		}
		return nodes[i].Type == "folder"
	})
	for i := range nodes {
		sortTree(&nodes[i])
	}
}

func decodeJSON[T any](reader io.Reader) (T, error) {
	var payload T
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&payload); err != nil {
		return payload, err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return payload, errors.New("unexpected extra data in request body")
	}
	return payload, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
