package tasks

import (
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

var DefaultExtensions = []string{".md", ".markdown", ".txt"}

// File is a note path with its full content, as handed to IndexFiles.
type File struct {
	Path    string
	Content string
}

// Index holds the parsed task forest of every indexed note. Each write
// replaces a file's forest and rebuilds the flattened views before
// returning, so readers never observe a file map and task list that
// disagree.
type Index struct {
	mu         sync.RWMutex
	extensions []string
	logger     *slog.Logger

	files map[string][]*Task
	roots []*Task
	all   []*Task
	byID  map[string]*Task
}

type IndexOption func(*Index)

func WithExtensions(exts []string) IndexOption {
	return func(x *Index) {
		if len(exts) > 0 {
			x.extensions = exts
		}
	}
}

func WithLogger(logger *slog.Logger) IndexOption {
	return func(x *Index) {
		if logger != nil {
			x.logger = logger
		}
	}
}

func NewIndex(opts ...IndexOption) *Index {
	x := &Index{
		extensions: DefaultExtensions,
		logger:     slog.Default(),
		files:      make(map[string][]*Task),
		roots:      []*Task{},
		all:        []*Task{},
		byID:       make(map[string]*Task),
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// IsNote reports whether path has one of the index's note extensions.
func (x *Index) IsNote(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, candidate := range x.extensions {
		if ext == candidate {
			return true
		}
	}
	return false
}

// IndexFile re-parses path and replaces its entry. It returns the new roots.
func (x *Index) IndexFile(path, content string) []*Task {
	roots := Parse(path, content)

	x.mu.Lock()
	defer x.mu.Unlock()
	x.files[path] = roots
	x.rebuild()
	return roots
}

// IndexFiles bulk-loads files, skipping anything that is not a note, and
// returns the number of tasks found per indexed file. Files already indexed
// and absent from files are kept.
func (x *Index) IndexFiles(files []File) map[string]int {
	return x.indexFiles(files, false)
}

// ReplaceFiles is IndexFiles for a full reload: afterwards the index holds
// exactly the notes in files.
func (x *Index) ReplaceFiles(files []File) map[string]int {
	return x.indexFiles(files, true)
}

func (x *Index) indexFiles(files []File, replace bool) map[string]int {
	parsed := make(map[string][]*Task, len(files))
	counts := make(map[string]int, len(files))
	for _, f := range files {
		if !x.IsNote(f.Path) {
			x.logger.Debug("skipping non-note file", "path", f.Path)
			continue
		}
		roots := Parse(f.Path, f.Content)
		parsed[f.Path] = roots
		counts[f.Path] = len(Flatten(roots))
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if replace {
		x.files = make(map[string][]*Task, len(parsed))
	}
	for path, roots := range parsed {
		x.files[path] = roots
	}
	x.rebuild()

	total := 0
	for path, n := range counts {
		total += n
		x.logger.Debug("indexed note", "path", path, "tasks", n)
	}
	x.logger.Info("task index loaded", "files", len(counts), "tasks", total)
	return counts
}

// RemoveFile drops path from the index. It reports whether it was present.
func (x *Index) RemoveFile(path string) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	if _, ok := x.files[path]; !ok {
		return false
	}
	delete(x.files, path)
	x.rebuild()
	return true
}

// rebuild recomputes the flattened views. Files are concatenated in path
// order so results are stable between runs. Callers hold x.mu.
func (x *Index) rebuild() {
	paths := make([]string, 0, len(x.files))
	for path := range x.files {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	roots := make([]*Task, 0, len(x.roots))
	for _, path := range paths {
		roots = append(roots, x.files[path]...)
	}
	all := Flatten(roots)
	byID := make(map[string]*Task, len(all))
	for _, task := range all {
		byID[task.ID] = task
	}
	x.roots, x.all, x.byID = roots, all, byID
}

// Lookup finds a task at any depth by id.
func (x *Index) Lookup(id string) (*Task, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	task, ok := x.byID[id]
	return task, ok
}

// Roots returns the root tasks of every file.
func (x *Index) Roots() []*Task {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.roots
}

// Tasks returns every indexed task, descendants included, in file then
// line order.
func (x *Index) Tasks() []*Task {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.all
}

// File returns the roots indexed for path.
func (x *Index) File(path string) ([]*Task, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	roots, ok := x.files[path]
	return roots, ok
}

func (x *Index) Files() []string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	paths := make([]string, 0, len(x.files))
	for path := range x.files {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}
