package ranks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"noldermd/internal/kv"
	"noldermd/internal/tasks"
)

const threeTasks = "- [ ] a\n- [ ] b\n- [ ] c"

func newStore() (*Store, *kv.Memory) {
	mem := kv.NewMemory()
	return NewStore(mem, nil), mem
}

func texts(list []*tasks.Task) []string {
	out := make([]string, 0, len(list))
	for _, task := range list {
		out = append(out, task.Text)
	}
	return out
}

func TestPosition(t *testing.T) {
	assert.Equal(t, -Step, Position(0, nil))
	assert.Equal(t, 0.0, Position(0, []float64{1000, 2000}))
	assert.Equal(t, 1500.0, Position(1, []float64{1000, 2000}))
	assert.Equal(t, 3000.0, Position(2, []float64{1000, 2000}))
	assert.Equal(t, 3000.0, Position(7, []float64{1000, 2000}))
}

func TestCrowdedAndSpread(t *testing.T) {
	assert.True(t, Crowded([]float64{1000.0005, 1000.001}))
	assert.False(t, Crowded([]float64{1000, 1000.002}))
	assert.Equal(t, []float64{1000, 2000}, Spread(2))
}

func TestOrder_RankedFirstThenLineOrder(t *testing.T) {
	roots := tasks.Parse("f.md", "- [ ] a\n- [ ] b\n- [ ] c\n- [ ] d")
	ordered := Order(roots, map[string]float64{"f.md-2": -5, "f.md-0": 10})
	assert.Equal(t, []string{"c", "a", "b", "d"}, texts(ordered))
	require.NotNil(t, ordered[0].Rank)
	assert.Equal(t, -5.0, *ordered[0].Rank)
	assert.Nil(t, ordered[2].Rank)
	assert.Nil(t, roots[2].Rank, "source tasks are not modified")
}

func TestMove_FirstMoveRanksEveryRoot(t *testing.T) {
	s, _ := newStore()
	ctx := context.Background()
	roots := tasks.Parse("f.md", threeTasks)

	got, err := s.Move(ctx, "f.md", roots, "f.md-2", 0)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"f.md-0": 1000, "f.md-1": 2000, "f.md-2": 0}, got)
	assert.Equal(t, []string{"c", "a", "b"}, texts(Order(roots, got)))
}

func TestMove_Midpoint(t *testing.T) {
	s, _ := newStore()
	ctx := context.Background()
	roots := tasks.Parse("f.md", threeTasks)

	_, err := s.Move(ctx, "f.md", roots, "f.md-2", 0)
	require.NoError(t, err)
	got, err := s.Move(ctx, "f.md", roots, "f.md-1", 1)
	require.NoError(t, err)
	assert.Equal(t, 500.0, got["f.md-1"])
	assert.Equal(t, []string{"c", "b", "a"}, texts(Order(roots, got)))
}

func TestMove_StrictlyBetweenNeighbours(t *testing.T) {
	s, _ := newStore()
	ctx := context.Background()
	roots := tasks.Parse("f.md", "- [ ] a\n- [ ] b\n- [ ] c\n- [ ] d")

	for i := 0; i < 40; i++ {
		id := roots[i%len(roots)].ID
		target := (i * 7) % len(roots)
		got, err := s.Move(ctx, "f.md", roots, id, target)
		require.NoError(t, err)

		ordered := Order(roots, got)
		pos := -1
		for j, task := range ordered {
			if task.ID == id {
				pos = j
			}
		}
		require.Equal(t, target, pos)
		if pos > 0 {
			assert.Greater(t, *ordered[pos].Rank, *ordered[pos-1].Rank)
		}
		if pos < len(ordered)-1 {
			assert.Less(t, *ordered[pos].Rank, *ordered[pos+1].Rank)
		}
	}
}

func TestMove_CrowdedRanksAreSpread(t *testing.T) {
	s, mem := newStore()
	ctx := context.Background()
	require.NoError(t, kv.SetJSON(ctx, mem, "ranks:f.md", map[string]entry{
		"f.md-0": {Rank: 1000},
		"f.md-1": {Rank: 1000.0005},
		"f.md-2": {Rank: 2000},
	}))
	roots := tasks.Parse("f.md", threeTasks)

	got, err := s.Move(ctx, "f.md", roots, "f.md-2", 1)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"f.md-0": 1000, "f.md-2": 2000, "f.md-1": 3000}, got)
	assert.Equal(t, []string{"a", "c", "b"}, texts(Order(roots, got)))
}

func TestMove_RepeatedBisectionStaysSpaced(t *testing.T) {
	s, _ := newStore()
	ctx := context.Background()
	roots := tasks.Parse("f.md", threeTasks)

	var got map[string]float64
	var err error
	for i := 0; i < 60; i++ {
		id := "f.md-1"
		if i%2 == 1 {
			id = "f.md-2"
		}
		got, err = s.Move(ctx, "f.md", roots, id, 1)
		require.NoError(t, err)
	}
	ordered := Order(roots, got)
	for i := 1; i < len(ordered); i++ {
		assert.GreaterOrEqual(t, *ordered[i].Rank-*ordered[i-1].Rank, MinGap)
	}
}

func TestMove_UnknownTask(t *testing.T) {
	s, _ := newStore()
	roots := tasks.Parse("f.md", "- [ ] a\n  - [ ] child")
	_, err := s.Move(context.Background(), "f.md", roots, "f.md-1", 0)
	assert.ErrorIs(t, err, ErrUnknownTask)
}

func TestPrune_DropsOrphans(t *testing.T) {
	s, _ := newStore()
	ctx := context.Background()
	roots := tasks.Parse("f.md", threeTasks)
	_, err := s.Move(ctx, "f.md", roots, "f.md-2", 0)
	require.NoError(t, err)

	edited := tasks.Parse("f.md", "- [ ] a\n- [ ] b")
	require.NoError(t, s.Prune(ctx, "f.md", edited))

	got, err := s.Ranks(ctx, "f.md")
	require.NoError(t, err)
	assert.NotContains(t, got, "f.md-2")
	assert.Len(t, got, 2)
}

func TestPrune_FollowsShiftedTasks(t *testing.T) {
	s, _ := newStore()
	ctx := context.Background()
	roots := tasks.Parse("f.md", threeTasks)
	before, err := s.Move(ctx, "f.md", roots, "f.md-2", 0)
	require.NoError(t, err)

	edited := tasks.Parse("f.md", "- [ ] b\n- [ ] c")
	require.NoError(t, s.Prune(ctx, "f.md", edited))

	got, err := s.Ranks(ctx, "f.md")
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{
		"f.md-0": before["f.md-1"],
		"f.md-1": before["f.md-2"],
	}, got)
	assert.Equal(t, []string{"c", "b"}, texts(Order(edited, got)))
}

func TestPrune_KeepsRankOnInPlaceEdit(t *testing.T) {
	s, _ := newStore()
	ctx := context.Background()
	roots := tasks.Parse("f.md", threeTasks)
	before, err := s.Move(ctx, "f.md", roots, "f.md-2", 0)
	require.NoError(t, err)

	edited := tasks.Parse("f.md", "- [ ] a\n- [ ] b\n- [ ] c renamed")
	require.NoError(t, s.Prune(ctx, "f.md", edited))

	got, err := s.Ranks(ctx, "f.md")
	require.NoError(t, err)
	assert.Equal(t, before, got)
	assert.Equal(t, []string{"c renamed", "a", "b"}, texts(Order(edited, got)))

	// The stored hash now tracks the new text, so a later shift follows it.
	shifted := tasks.Parse("f.md", "- [ ] c renamed\n- [ ] a\n- [ ] b")
	require.NoError(t, s.Prune(ctx, "f.md", shifted))
	got, err = s.Ranks(ctx, "f.md")
	require.NoError(t, err)
	assert.Equal(t, before["f.md-2"], got["f.md-0"])
	assert.Equal(t, []string{"c renamed", "a", "b"}, texts(Order(shifted, got)))
}

func TestFiles(t *testing.T) {
	s, mem := newStore()
	ctx := context.Background()
	require.NoError(t, mem.Set(ctx, "done:2025-03-01", `["x"]`))
	_, err := s.Move(ctx, "b.md", tasks.Parse("b.md", threeTasks), "b.md-1", 0)
	require.NoError(t, err)
	_, err = s.Move(ctx, "a/x.md", tasks.Parse("a/x.md", threeTasks), "a/x.md-1", 0)
	require.NoError(t, err)

	files, err := s.Files(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a/x.md", "b.md"}, files)
}

func TestReset(t *testing.T) {
	s, mem := newStore()
	ctx := context.Background()
	roots := tasks.Parse("f.md", threeTasks)
	_, err := s.Move(ctx, "f.md", roots, "f.md-2", 0)
	require.NoError(t, err)

	require.NoError(t, s.Reset(ctx, "f.md"))
	got, err := s.Ranks(ctx, "f.md")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, []string{"a", "b", "c"}, texts(Order(roots, got)))

	_, ok, err := mem.Get(ctx, "ranks:f.md")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRanksPersistAcrossStores(t *testing.T) {
	mem := kv.NewMemory()
	ctx := context.Background()
	roots := tasks.Parse("f.md", threeTasks)
	_, err := NewStore(mem, nil).Move(ctx, "f.md", roots, "f.md-0", 3)
	require.NoError(t, err)

	got, err := NewStore(mem, nil).Ranks(ctx, "f.md")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "a"}, texts(Order(roots, got)))
}
