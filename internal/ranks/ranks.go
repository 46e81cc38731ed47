// Package ranks keeps manual ordering numbers for the root tasks of each
// note, independent of where the tasks sit in the file.
package ranks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"noldermd/internal/kv"
	"noldermd/internal/tasks"
)

const (
	// Step is the spacing between neighbours after a full re-rank and the
	// offset used when moving a task to either end.
	Step = 1000.0
	// MinGap is the smallest allowed distance between adjacent ranks.
	MinGap = 0.001

	keyPrefix = "ranks:"
)

var ErrUnknownTask = errors.New("task is not a root task of this file")

type entry struct {
	Rank float64 `json:"rank"`
	Hash string  `json:"hash,omitempty"`
}

// Store caches each file's ranks in memory and writes every change through
// to a kv.Store.
type Store struct {
	mu     sync.Mutex
	kv     kv.Store
	logger *slog.Logger
	files  map[string]map[string]entry
}

func NewStore(store kv.Store, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		kv:     store,
		logger: logger,
		files:  make(map[string]map[string]entry),
	}
}

// Position returns the rank for a task inserted at newIndex among ordered,
// the ascending ranks of the other tasks.
func Position(newIndex int, ordered []float64) float64 {
	switch {
	case len(ordered) == 0:
		return -Step
	case newIndex <= 0:
		return ordered[0] - Step
	case newIndex >= len(ordered):
		return ordered[len(ordered)-1] + Step
	default:
		return (ordered[newIndex-1] + ordered[newIndex]) / 2
	}
}

// Crowded reports whether two adjacent ranks are closer than MinGap.
func Crowded(ordered []float64) bool {
	for i := 1; i < len(ordered); i++ {
		if ordered[i]-ordered[i-1] < MinGap {
			return true
		}
	}
	return false
}

// Spread returns n ranks spaced Step apart, starting at Step.
func Spread(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i+1) * Step
	}
	return out
}

// Order returns copies of roots with Rank filled in, ranked tasks first in
// rank order and the rest after them in line order.
func Order(roots []*tasks.Task, ranks map[string]float64) []*tasks.Task {
	ordered := make([]*tasks.Task, 0, len(roots))
	for _, root := range roots {
		copied := *root
		copied.Rank = nil
		if rank, ok := ranks[root.ID]; ok {
			copied.Rank = &rank
		}
		ordered = append(ordered, &copied)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i].Rank, ordered[j].Rank
		switch {
		case a != nil && b != nil:
			return *a < *b
		case a != nil:
			return true
		case b != nil:
			return false
		}
		return ordered[i].Line < ordered[j].Line
	})
	return ordered
}

// Ranks returns a copy of the ranks recorded for file.
func (s *Store) Ranks(ctx context.Context, file string) (map[string]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.load(ctx, file)
	if err != nil {
		return nil, err
	}
	return rankValues(entries), nil
}

// Move places the root task id at newIndex within file's current order and
// returns the file's resulting ranks. The first move in a file ranks every
// root in its current order. When the new rank lands within MinGap of a
// neighbour the whole file is re-ranked in multiples of Step.
func (s *Store) Move(ctx context.Context, file string, roots []*tasks.Task, id string, newIndex int) (map[string]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.load(ctx, file)
	if err != nil {
		return nil, err
	}

	current := Order(roots, rankValues(entries))
	var moved *tasks.Task
	others := make([]*tasks.Task, 0, len(current))
	for _, task := range current {
		if task.ID == id {
			moved = task
			continue
		}
		others = append(others, task)
	}
	if moved == nil {
		return nil, fmt.Errorf("%s in %s: %w", id, file, ErrUnknownTask)
	}

	values := make([]float64, len(others))
	for i, task := range others {
		if task.Rank == nil {
			values = Spread(len(others))
			break
		}
		values[i] = *task.Rank
	}

	if newIndex < 0 {
		newIndex = 0
	}
	if newIndex > len(others) {
		newIndex = len(others)
	}
	rank := Position(newIndex, values)

	order := make([]*tasks.Task, 0, len(current))
	order = append(order, others[:newIndex]...)
	order = append(order, moved)
	order = append(order, others[newIndex:]...)
	ranks := make([]float64, 0, len(current))
	ranks = append(ranks, values[:newIndex]...)
	ranks = append(ranks, rank)
	ranks = append(ranks, values[newIndex:]...)

	if Crowded(ranks) {
		s.logger.Info("re-ranking crowded file", "file", file, "tasks", len(order))
		ranks = Spread(len(order))
	}

	next := make(map[string]entry, len(order))
	for i, task := range order {
		next[task.ID] = entry{Rank: ranks[i], Hash: task.Hash}
	}
	if err := s.save(ctx, file, next); err != nil {
		return nil, err
	}
	return rankValues(next), nil
}

// Prune drops ranks whose task no longer exists in roots. A rank whose id
// now points at different text follows its task to the new id when a root
// with the same content hash exists; otherwise it stays with the id.
func (s *Store) Prune(ctx context.Context, file string, roots []*tasks.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.load(ctx, file)
	if err != nil || len(entries) == 0 {
		return err
	}

	next := make(map[string]entry, len(entries))
	used := make(map[string]bool, len(entries))
	for _, root := range roots {
		if e, ok := entries[root.ID]; ok && (e.Hash == "" || e.Hash == root.Hash) {
			next[root.ID] = e
			used[root.ID] = true
		}
	}

	ids := make([]string, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, root := range roots {
		if _, ok := next[root.ID]; ok {
			continue
		}
		for _, id := range ids {
			e := entries[id]
			if used[id] || e.Hash == "" || e.Hash != root.Hash {
				continue
			}
			next[root.ID] = entry{Rank: e.Rank, Hash: root.Hash}
			used[id] = true
			break
		}
	}
	// A root edited in place keeps its own rank unless hash-follow gave
	// that rank to the task it originally belonged to.
	for _, root := range roots {
		if _, ok := next[root.ID]; ok {
			continue
		}
		if e, ok := entries[root.ID]; ok && !used[root.ID] {
			next[root.ID] = entry{Rank: e.Rank, Hash: root.Hash}
			used[root.ID] = true
		}
	}

	if sameEntries(entries, next) {
		return nil
	}
	s.logger.Debug("pruned ranks", "file", file, "before", len(entries), "after", len(next))
	return s.save(ctx, file, next)
}

// Files lists the files that have ranks recorded.
func (s *Store) Files(ctx context.Context) ([]string, error) {
	keys, err := s.kv.Keys(ctx, keyPrefix)
	if err != nil {
		return nil, fmt.Errorf("list ranked files: %w", err)
	}
	files := make([]string, len(keys))
	for i, key := range keys {
		files[i] = strings.TrimPrefix(key, keyPrefix)
	}
	return files, nil
}

// Reset clears every rank for file; its tasks fall back to line order.
func (s *Store) Reset(ctx context.Context, file string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.Delete(ctx, keyPrefix+file); err != nil {
		return err
	}
	delete(s.files, file)
	return nil
}

// load returns file's cached entries, reading them on first use. Callers
// hold s.mu.
func (s *Store) load(ctx context.Context, file string) (map[string]entry, error) {
	if entries, ok := s.files[file]; ok {
		return entries, nil
	}
	entries := make(map[string]entry)
	if _, err := kv.GetJSON(ctx, s.kv, keyPrefix+file, &entries); err != nil {
		return nil, fmt.Errorf("load ranks for %s: %w", file, err)
	}
	s.files[file] = entries
	return entries, nil
}

func (s *Store) save(ctx context.Context, file string, entries map[string]entry) error {
	var err error
	if len(entries) == 0 {
		err = s.kv.Delete(ctx, keyPrefix+file)
	} else {
		err = kv.SetJSON(ctx, s.kv, keyPrefix+file, entries)
	}
	if err != nil {
		return fmt.Errorf("save ranks for %s: %w", file, err)
	}
	s.files[file] = entries
	return nil
}

func rankValues(entries map[string]entry) map[string]float64 {
	out := make(map[string]float64, len(entries))
	for id, e := range entries {
		out[id] = e.Rank
	}
	return out
}

func sameEntries(a, b map[string]entry) bool {
	if len(a) != len(b) {
		return false
	}
	for id, e := range a {
		if other, ok := b[id]; !ok || other != e {
			return false
		}
	}
	return true
}
