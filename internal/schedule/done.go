package schedule

import (
	"context"
	"sort"
	"sync"

	"noldermd/internal/kv"
)

const donePrefix = "done:"

// DoneStore records which tasks were marked done for a given day. It never
// touches the notes the tasks live in.
type DoneStore struct {
	mu sync.Mutex
	kv kv.Store
}

func NewDoneStore(store kv.Store) *DoneStore {
	return &DoneStore{kv: store}
}

// Done returns the set of task ids marked done on date.
func (d *DoneStore) Done(ctx context.Context, date string) (map[string]bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids, err := d.load(ctx, date)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

// Mark sets or clears the done-for-today flag of id on date.
func (d *DoneStore) Mark(ctx context.Context, date, id string, done bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids, err := d.load(ctx, date)
	if err != nil {
		return err
	}

	next := make([]string, 0, len(ids)+1)
	for _, existing := range ids {
		if existing != id {
			next = append(next, existing)
		}
	}
	if done {
		next = append(next, id)
	}
	sort.Strings(next)

	if len(next) == 0 {
		return d.kv.Delete(ctx, donePrefix+date)
	}
	return kv.SetJSON(ctx, d.kv, donePrefix+date, next)
}

func (d *DoneStore) load(ctx context.Context, date string) ([]string, error) {
	var ids []string
	if _, err := kv.GetJSON(ctx, d.kv, donePrefix+date, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}
