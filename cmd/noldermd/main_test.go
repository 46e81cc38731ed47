package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeNote(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// run executes the root command against dir. Flag values persist on the
// package level commands between runs, so every flag used by a test is
// reset first.
func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	for _, cmd := range append([]*cobra.Command{rootCmd}, rootCmd.Commands()...) {
		resetFlags(cmd)
	}
	configFile = ""

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--notes-dir", dir, "--log-level", "error"}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func resetFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	})
}

func TestIndexAndTasksCommands(t *testing.T) {
	dir := t.TempDir()
	writeNote(t, dir, "work.md", "- [ ] Write report #work >2025-03-01\n  - [x] Outline\n- [!] Call bank\n")
	writeNote(t, dir, "home.md", "- [ ] Buy milk\n")

	out, err := run(t, dir, "index")
	require.NoError(t, err)
	assert.Contains(t, out, "1  home.md")
	assert.Contains(t, out, "3  work.md")
	assert.Contains(t, out, "4  total")

	out, err = run(t, dir, "tasks", "--file", "work.md")
	require.NoError(t, err)
	assert.Equal(t,
		"[ ] Write report >2025-03-01 #work  (work.md-0)\n  [x] Outline  (work.md-1)\n[!] Call bank  (work.md-2)\n",
		out)

	for _, file := range []string{"./work.md", " work.md", "sub/../work.md"} {
		again, err := run(t, dir, "tasks", "--file", file)
		require.NoError(t, err, file)
		assert.Equal(t, out, again, file)
	}

	out, err = run(t, dir, "tasks", "--status", "completed")
	require.NoError(t, err)
	assert.Equal(t, "[x] Outline  (work.md-1)\n", out)
}

func TestToggleAndRescheduleCommands(t *testing.T) {
	dir := t.TempDir()
	writeNote(t, dir, "home.md", "- [ ] Buy milk\n- [ ] Fix sink\n")

	out, err := run(t, dir, "toggle", "home.md-0", "home.md-1")
	require.NoError(t, err)
	assert.Equal(t, "home.md-0  completed\nhome.md-1  completed\n", out)

	_, err = run(t, dir, "reschedule", "home.md-1", "2025-04-01")
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(dir, "home.md"))
	require.NoError(t, err)
	assert.Equal(t, "- [x] Buy milk\n- [x] Fix sink >2025-04-01\n", string(data))

	_, err = run(t, dir, "toggle", "home.md-9")
	assert.Error(t, err)
}

func TestScheduleCommand(t *testing.T) {
	dir := t.TempDir()
	original := timeNow
	timeNow = func() time.Time { return time.Date(2025, 3, 1, 7, 0, 0, 0, time.Local) }
	t.Cleanup(func() { timeNow = original })

	writeNote(t, dir, "work.md", "- [ ] Write report\n- [ ] Review budget\n")
	out, err := run(t, dir, "schedule")
	require.NoError(t, err)
	assert.Equal(t, "nothing scheduled for 2025-03-01\n", out)

	writeNote(t, dir, "Daily/2025-03-01.md", "## Time Blocks\n- 14:00-15:00 [[review budget]]\n- 09:00-10:00 [[Write report]]\n")
	out, err = run(t, dir, "schedule", "--done", "work.md-1")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "  09:00-10:00  [ ] Write report  (work.md-0)", lines[0])
	assert.Equal(t, "✓ 14:00-15:00  [ ] Review budget  (work.md-1)", lines[1])

	// The mark persists in the state database between runs.
	out, err = run(t, dir, "schedule", "2025-03-01")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ 14:00-15:00")
}

func TestConfigCommand(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, dir, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "notes_dir: "+dir)
	assert.Contains(t, out, "daily_folder: Daily")
}
