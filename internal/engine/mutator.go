package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"noldermd/internal/tasks"
)

// ContentStore is the persistence side the mutator reads from and saves to.
type ContentStore interface {
	Read(ctx context.Context, path string) (string, error)
	Write(ctx context.Context, path, content string) error
}

// Reindexer refreshes derived task state after a note changed.
type Reindexer interface {
	Reindex(ctx context.Context, path, content string) ([]*tasks.Task, error)
}

// Ref addresses a task by file and 0-based line.
type Ref struct {
	File string `json:"file"`
	Line int    `json:"line"`
}

// Mutator edits task lines in any note, whether or not it is the note
// currently open in the editor. Each edit saves the whole note, then
// re-indexes it. Edits to the same note are serialised; edits to
// different notes run independently.
type Mutator struct {
	store  ContentStore
	index  Reindexer
	logger *slog.Logger

	focusMu      sync.Mutex
	focusPath    string
	focusContent string

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

func NewMutator(store ContentStore, index Reindexer, logger *slog.Logger) *Mutator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mutator{
		store:  store,
		index:  index,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}
}

// SetFocus records the note open in the editor and its current content.
// Edits to that note start from this content instead of re-reading it.
func (m *Mutator) SetFocus(path, content string) {
	m.focusMu.Lock()
	defer m.focusMu.Unlock()
	m.focusPath, m.focusContent = path, content
}

func (m *Mutator) ClearFocus() {
	m.SetFocus("", "")
}

// Focus returns the focused note path, or "" when nothing is focused.
func (m *Mutator) Focus() string {
	m.focusMu.Lock()
	defer m.focusMu.Unlock()
	return m.focusPath
}

// refreshFocus replaces the cached content when path is focused.
func (m *Mutator) refreshFocus(path, content string) {
	m.focusMu.Lock()
	defer m.focusMu.Unlock()
	if path != "" && m.focusPath == path {
		m.focusContent = content
	}
}

func (m *Mutator) content(ctx context.Context, path string) (string, error) {
	m.focusMu.Lock()
	if path != "" && m.focusPath == path {
		content := m.focusContent
		m.focusMu.Unlock()
		return content, nil
	}
	m.focusMu.Unlock()
	return m.store.Read(ctx, path)
}

// Toggle flips the completion state of the task on line of path.
func (m *Mutator) Toggle(ctx context.Context, path string, line int) error {
	return m.apply(ctx, path, func(content string) (string, error) {
		return tasks.ToggleAt(content, line)
	})
}

// Reschedule replaces the date of the task on line of path. An empty date
// clears it.
func (m *Mutator) Reschedule(ctx context.Context, path string, line int, date string) error {
	return m.apply(ctx, path, func(content string) (string, error) {
		return tasks.RescheduleAt(content, line, date)
	})
}

// ToggleMany toggles every referenced task, saving and re-indexing each
// note once. Lines within a note are edited bottom-up. A failure in one
// note does not stop the others; all failures are returned together.
func (m *Mutator) ToggleMany(ctx context.Context, refs []Ref) error {
	byFile := make(map[string][]int)
	files := make([]string, 0)
	seen := make(map[Ref]bool, len(refs))
	for _, ref := range refs {
		if seen[ref] {
			continue
		}
		seen[ref] = true
		if _, ok := byFile[ref.File]; !ok {
			files = append(files, ref.File)
		}
		byFile[ref.File] = append(byFile[ref.File], ref.Line)
	}

	var errs []error
	for _, file := range files {
		lines := byFile[file]
		sort.Sort(sort.Reverse(sort.IntSlice(lines)))
		err := m.apply(ctx, file, func(content string) (string, error) {
			var err error
			for _, line := range lines {
				if content, err = tasks.ToggleAt(content, line); err != nil {
					return "", fmt.Errorf("line %d: %w", line, err)
				}
			}
			return content, nil
		})
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Save writes content to path and re-indexes it.
func (m *Mutator) Save(ctx context.Context, path, content string) error {
	lock := m.lockFor(path)
	lock.Lock()
	defer lock.Unlock()
	return m.persist(ctx, path, content)
}

func (m *Mutator) apply(ctx context.Context, path string, edit func(string) (string, error)) error {
	lock := m.lockFor(path)
	lock.Lock()
	defer lock.Unlock()

	content, err := m.content(ctx, path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	updated, err := edit(content)
	if err != nil {
		return fmt.Errorf("edit %s: %w", path, err)
	}
	return m.persist(ctx, path, updated)
}

// persist saves content and then re-indexes it. Callers hold the path lock.
func (m *Mutator) persist(ctx context.Context, path, content string) error {
	if err := m.store.Write(ctx, path, content); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	m.refreshFocus(path, content)
	if _, err := m.index.Reindex(ctx, path, content); err != nil {
		return fmt.Errorf("reindex %s: %w", path, err)
	}
	m.logger.Debug("note updated", "path", path)
	return nil
}

func (m *Mutator) lockFor(path string) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	lock, ok := m.locks[path]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[path] = lock
	}
	return lock
}
