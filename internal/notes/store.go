// Package notes reads and writes note files under a single notes directory.
package notes

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/natefinch/atomic"
)

var (
	ErrNotFound = errors.New("note not found")
	ErrIsFolder = errors.New("path is a folder")
	ErrNotANote = errors.New("not a note file")
	ErrEscapes  = errors.New("path escapes notes directory")
	ErrAbsolute = errors.New("absolute paths are not allowed")
)

// Store is the file-backed note collection. Paths handed to and returned
// by Store are slash-separated and relative to the notes directory.
type Store struct {
	root       string
	extensions []string
}

func NewStore(root string, extensions []string) *Store {
	return &Store{root: root, extensions: extensions}
}

func (s *Store) Root() string {
	return s.root
}

// IsNote reports whether name has a note extension.
func (s *Store) IsNote(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, candidate := range s.extensions {
		if ext == candidate {
			return true
		}
	}
	return false
}

// Read returns the content of the note at rel.
func (s *Store) Read(ctx context.Context, rel string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	absPath, _, err := s.notePath(rel)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%s: %w", rel, ErrNotFound)
		}
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s: %w", rel, ErrIsFolder)
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Write replaces the note at rel. Readers see either the old or the new
// content, never a partial file.
func (s *Store) Write(ctx context.Context, rel, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	absPath, _, err := s.notePath(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return fmt.Errorf("create parent folders: %w", err)
	}
	_, statErr := os.Stat(absPath)
	if err := atomic.WriteFile(absPath, strings.NewReader(content)); err != nil {
		return fmt.Errorf("write %s: %w", rel, err)
	}
	if os.IsNotExist(statErr) {
		if err := os.Chmod(absPath, 0o644); err != nil {
			return fmt.Errorf("chmod %s: %w", rel, err)
		}
	}
	return nil
}

// Remove deletes the note at rel.
func (s *Store) Remove(ctx context.Context, rel string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	absPath, _, err := s.notePath(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(absPath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s: %w", rel, ErrNotFound)
		}
		return err
	}
	return nil
}

// List returns every note path under the notes directory, sorted. Dot
// directories (including the state directory) and "._" files are skipped.
func (s *Store) List(ctx context.Context) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != s.root && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, "._") || !s.IsNote(name) {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// Resolve maps a user supplied relative path onto the notes directory.
func (s *Store) Resolve(input string) (string, string, error) {
	clean, err := cleanRelPath(input)
	if err != nil {
		return "", "", err
	}

	absPath := filepath.Join(s.root, clean)
	relCheck, err := filepath.Rel(s.root, absPath)
	if err != nil {
		return "", "", err
	}
	if relCheck == ".." || strings.HasPrefix(relCheck, ".."+string(os.PathSeparator)) {
		return "", "", ErrEscapes
	}

	return absPath, filepath.ToSlash(clean), nil
}

func (s *Store) notePath(rel string) (string, string, error) {
	absPath, clean, err := s.Resolve(rel)
	if err != nil {
		return "", "", err
	}
	if clean == "" || !s.IsNote(clean) {
		return "", "", fmt.Errorf("%s: %w", rel, ErrNotANote)
	}
	return absPath, clean, nil
}

// CleanPath normalises a client supplied path to the slash form the index
// keys on. Rejection of absolute or escaping paths is left to Store.
func CleanPath(input string) string {
	return path.Clean(strings.TrimSpace(strings.ReplaceAll(input, "\\", "/")))
}

func cleanRelPath(input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", nil
	}
	clean := filepath.Clean(filepath.FromSlash(trimmed))
	if clean == "." {
		return "", nil
	}
	if filepath.IsAbs(clean) {
		return "", ErrAbsolute
	}
	if clean == ".." || strings.HasPrefix(clean, ".."+string(os.PathSeparator)) {
		return "", ErrEscapes
	}

	return clean, nil
}
