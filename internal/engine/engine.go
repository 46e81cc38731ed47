// Package engine hosts the task services for one notes directory and keeps
// the derived state (index, ranks) in step with note changes.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"noldermd/internal/kv"
	"noldermd/internal/notes"
	"noldermd/internal/ranks"
	"noldermd/internal/schedule"
	"noldermd/internal/tasks"
)

var ErrTaskNotFound = errors.New("task not found")

// EventKind is the kind of change reported for a note.
type EventKind string

const (
	EventCreated  EventKind = "created"
	EventModified EventKind = "modified"
	EventDeleted  EventKind = "deleted"
)

// Event is a change notification from whatever watches the notes.
type Event struct {
	Kind EventKind `json:"kind"`
	Path string    `json:"path"`
}

func (k EventKind) Valid() bool {
	switch k {
	case EventCreated, EventModified, EventDeleted:
		return true
	}
	return false
}

// NoteStore is the note persistence the engine runs on.
type NoteStore interface {
	ContentStore
	Remove(ctx context.Context, path string) error
	List(ctx context.Context) ([]string, error)
}

// Options wires an Engine. Nil Index, Ranks and Done fall back to
// in-memory instances.
type Options struct {
	Notes    NoteStore
	Index    *tasks.Index
	Ranks    *ranks.Store
	Done     *schedule.DoneStore
	Resolver *schedule.Resolver
	// DailyNote maps a YYYY-MM-DD date to the path of its daily note.
	DailyNote func(date string) string
	Logger    *slog.Logger
}

type Engine struct {
	notes     NoteStore
	index     *tasks.Index
	ranks     *ranks.Store
	done      *schedule.DoneStore
	resolver  *schedule.Resolver
	dailyNote func(string) string
	mutator   *Mutator
	logger    *slog.Logger
}

func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		notes:     opts.Notes,
		index:     opts.Index,
		ranks:     opts.Ranks,
		done:      opts.Done,
		resolver:  opts.Resolver,
		dailyNote: opts.DailyNote,
		logger:    logger,
	}
	if e.index == nil {
		e.index = tasks.NewIndex(tasks.WithLogger(logger))
	}
	if e.ranks == nil || e.done == nil {
		mem := kv.NewMemory()
		if e.ranks == nil {
			e.ranks = ranks.NewStore(mem, logger)
		}
		if e.done == nil {
			e.done = schedule.NewDoneStore(mem)
		}
	}
	if e.resolver == nil {
		e.resolver = schedule.NewResolver(e.index, e.done, "", logger)
	}
	if e.dailyNote == nil {
		e.dailyNote = func(date string) string { return date + ".md" }
	}
	e.mutator = NewMutator(opts.Notes, e, logger)
	return e
}

func (e *Engine) Index() *tasks.Index {
	return e.index
}

func (e *Engine) Mutator() *Mutator {
	return e.mutator
}

// Load indexes every note in the store, replacing what the index held. Ranks
// of notes and tasks that disappeared while the process was not running
// are dropped.
func (e *Engine) Load(ctx context.Context) (map[string]int, error) {
	paths, err := e.notes.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	files := make([]tasks.File, 0, len(paths))
	for _, path := range paths {
		content, err := e.notes.Read(ctx, path)
		if err != nil {
			e.logger.Warn("skipping unreadable note", "path", path, "err", err)
			continue
		}
		files = append(files, tasks.File{Path: path, Content: content})
	}
	counts := e.index.ReplaceFiles(files)

	ranked, err := e.ranks.Files(ctx)
	if err != nil {
		return counts, err
	}
	for _, path := range ranked {
		if _, ok := counts[path]; ok {
			continue
		}
		e.logger.Debug("dropping ranks of missing note", "path", path)
		if err := e.ranks.Reset(ctx, path); err != nil {
			return counts, fmt.Errorf("reset ranks for %s: %w", path, err)
		}
	}
	for _, path := range e.index.Files() {
		if err := e.pruneRanks(ctx, path); err != nil {
			return counts, err
		}
	}
	return counts, nil
}

// Reindex replaces the tasks of path with those parsed from content.
func (e *Engine) Reindex(ctx context.Context, path, content string) ([]*tasks.Task, error) {
	parsed := e.index.IndexFile(path, content)
	if err := e.pruneRanks(ctx, path); err != nil {
		return parsed, err
	}
	return parsed, nil
}

// Remove drops path from the index and forgets its ranks.
func (e *Engine) Remove(ctx context.Context, path string) error {
	e.index.RemoveFile(path)
	if e.mutator.Focus() == path {
		e.mutator.ClearFocus()
	}
	if err := e.ranks.Reset(ctx, path); err != nil {
		return fmt.Errorf("reset ranks for %s: %w", path, err)
	}
	return nil
}

// HandleChange brings the index up to date after a note was created,
// modified or deleted outside the engine. Non-note paths are ignored. It
// waits for any edit of the same note in progress.
func (e *Engine) HandleChange(ctx context.Context, ev Event) error {
	if !ev.Kind.Valid() {
		return fmt.Errorf("unknown event kind %q", ev.Kind)
	}
	if !e.index.IsNote(ev.Path) {
		e.logger.Debug("ignoring change to non-note", "path", ev.Path)
		return nil
	}
	lock := e.mutator.lockFor(ev.Path)
	lock.Lock()
	defer lock.Unlock()

	if ev.Kind == EventDeleted {
		return e.Remove(ctx, ev.Path)
	}

	content, err := e.notes.Read(ctx, ev.Path)
	if errors.Is(err, notes.ErrNotFound) {
		return e.Remove(ctx, ev.Path)
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", ev.Path, err)
	}
	if e.mutator.Focus() == ev.Path {
		e.mutator.refreshFocus(ev.Path, content)
	}
	_, err = e.Reindex(ctx, ev.Path, content)
	return err
}

// Notes lists every note path in the store.
func (e *Engine) Notes(ctx context.Context) ([]string, error) {
	return e.notes.List(ctx)
}

// ReadNote returns the stored content of path.
func (e *Engine) ReadNote(ctx context.Context, path string) (string, error) {
	return e.notes.Read(ctx, path)
}

// SaveNote persists content for path and re-indexes it.
func (e *Engine) SaveNote(ctx context.Context, path, content string) error {
	return e.mutator.Save(ctx, path, content)
}

// DeleteNote removes path from the store and from the derived state.
func (e *Engine) DeleteNote(ctx context.Context, path string) error {
	lock := e.mutator.lockFor(path)
	lock.Lock()
	defer lock.Unlock()

	if err := e.notes.Remove(ctx, path); err != nil {
		return err
	}
	return e.Remove(ctx, path)
}

func (e *Engine) Lookup(id string) (*tasks.Task, error) {
	task, ok := e.index.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrTaskNotFound)
	}
	return task, nil
}

// Toggle flips the task with the given id.
func (e *Engine) Toggle(ctx context.Context, id string) (*tasks.Task, error) {
	task, err := e.Lookup(id)
	if err != nil {
		return nil, err
	}
	if err := e.mutator.Toggle(ctx, task.File, task.Line); err != nil {
		return nil, err
	}
	return e.Lookup(id)
}

// Reschedule sets the date of the task with the given id.
func (e *Engine) Reschedule(ctx context.Context, id, date string) (*tasks.Task, error) {
	task, err := e.Lookup(id)
	if err != nil {
		return nil, err
	}
	if err := e.mutator.Reschedule(ctx, task.File, task.Line, date); err != nil {
		return nil, err
	}
	return e.Lookup(id)
}

// ToggleMany toggles every task id. Unknown ids are reported together with
// any edit failures; the known ones are still toggled.
func (e *Engine) ToggleMany(ctx context.Context, ids []string) error {
	refs := make([]Ref, 0, len(ids))
	var errs []error
	for _, id := range ids {
		task, err := e.Lookup(id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		refs = append(refs, Ref{File: task.File, Line: task.Line})
	}
	if err := e.mutator.ToggleMany(ctx, refs); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// OrderedRoots returns the root tasks of path in display order.
func (e *Engine) OrderedRoots(ctx context.Context, path string) ([]*tasks.Task, error) {
	roots, ok := e.index.File(path)
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, notes.ErrNotFound)
	}
	values, err := e.ranks.Ranks(ctx, path)
	if err != nil {
		return nil, err
	}
	return ranks.Order(roots, values), nil
}

// MoveTask moves the root task id to newIndex within its note's order.
func (e *Engine) MoveTask(ctx context.Context, id string, newIndex int) ([]*tasks.Task, error) {
	task, err := e.Lookup(id)
	if err != nil {
		return nil, err
	}
	roots, _ := e.index.File(task.File)
	values, err := e.ranks.Move(ctx, task.File, roots, id, newIndex)
	if err != nil {
		return nil, err
	}
	return ranks.Order(roots, values), nil
}

// Ranks returns the manual ranks recorded for path, keyed by task id.
func (e *Engine) Ranks(ctx context.Context, path string) (map[string]float64, error) {
	return e.ranks.Ranks(ctx, path)
}

func (e *Engine) ResetRanks(ctx context.Context, path string) error {
	return e.ranks.Reset(ctx, path)
}

// Schedule resolves the daily note of date. A missing daily note is an
// empty schedule.
func (e *Engine) Schedule(ctx context.Context, date string) ([]schedule.Instance, error) {
	if err := validDate(date); err != nil {
		return nil, err
	}
	path := e.dailyNote(date)
	content, err := e.mutator.content(ctx, path)
	if errors.Is(err, notes.ErrNotFound) {
		content = ""
	} else if err != nil {
		return nil, fmt.Errorf("read daily note %s: %w", path, err)
	}
	return e.resolver.Resolve(ctx, path, content, date)
}

// SetDone marks or clears the done-for-today flag of a task. The note the
// task lives in is not touched.
func (e *Engine) SetDone(ctx context.Context, date, id string, done bool) error {
	if err := validDate(date); err != nil {
		return err
	}
	if _, err := e.Lookup(id); err != nil && done {
		return err
	}
	return e.done.Mark(ctx, date, id, done)
}

func (e *Engine) pruneRanks(ctx context.Context, path string) error {
	roots, _ := e.index.File(path)
	if err := e.ranks.Prune(ctx, path, roots); err != nil {
		return fmt.Errorf("prune ranks for %s: %w", path, err)
	}
	return nil
}

func validDate(date string) error {
	if _, err := time.Parse(tasks.DateLayout, date); err != nil {
		return fmt.Errorf("%q: %w", date, tasks.ErrInvalidDate)
	}
	return nil
}
