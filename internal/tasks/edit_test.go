package tasks

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToggleLine(t *testing.T) {
	cases := []struct{ in, want string }{
		{"- [x] Done", "- [ ] Done"},
		{"- [X] Done", "- [ ] Done"},
		{"- [ ] Todo", "- [x] Todo"},
		{"  * [ ] legacy", "  * [x] legacy"},
		{"- [!] urgent", "- [!] urgent"},
		{"- [-] dropped", "- [-] dropped"},
		{"- [>] later", "- [>] later"},
		{"- [ ] with >2025-01-01", "- [x] with >2025-01-01"},
	}
	for _, tc := range cases {
		got, err := ToggleLine(tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
}

func TestToggleLine_Reversible(t *testing.T) {
	for _, line := range []string{"- [ ] a #p1", "\t- [x] b", "- [ ] crlf\r", "- [!] a", "- [-] a", "- [>] a"} {
		once, err := ToggleLine(line)
		require.NoError(t, err)
		twice, err := ToggleLine(once)
		require.NoError(t, err)
		assert.Equal(t, line, twice)
	}
}

func TestToggleLine_NotATask(t *testing.T) {
	_, err := ToggleLine("just text")
	assert.ErrorIs(t, err, ErrNotATask)
}

func TestRescheduleLine(t *testing.T) {
	got, err := RescheduleLine("- [ ] Call >2025-01-01 mom", "2025-02-03")
	require.NoError(t, err)
	assert.Equal(t, "- [ ] Call mom >2025-02-03", got)

	got, err = RescheduleLine("- [ ] Call mom >2025-01-01", "")
	require.NoError(t, err)
	assert.Equal(t, "- [ ] Call mom", got)

	got, err = RescheduleLine("- [ ] Undated  ", "2025-02-03")
	require.NoError(t, err)
	assert.Equal(t, "- [ ] Undated >2025-02-03", got)

	_, err = RescheduleLine("- [ ] x", "02/03/2025")
	assert.Error(t, err)
}

func TestToggleAt(t *testing.T) {
	content := "# List\n- [ ] one\n- [x] two\n"
	updated, err := ToggleAt(content, 2)
	require.NoError(t, err)
	assert.Equal(t, "# List\n- [ ] one\n- [ ] two\n", updated)

	_, err = ToggleAt(content, 0)
	assert.ErrorIs(t, err, ErrNotATask)

	_, err = ToggleAt(content, 10)
	var rangeErr LineRangeError
	require.True(t, errors.As(err, &rangeErr))
	assert.Equal(t, 10, rangeErr.Line)
}

func TestRescheduleAt_KeepsLineCount(t *testing.T) {
	content := "- [ ] a\n- [ ] b >2024-12-31\n- [ ] c"
	updated, err := RescheduleAt(content, 1, "2025-01-15")
	require.NoError(t, err)
	assert.Equal(t, "- [ ] a\n- [ ] b >2025-01-15\n- [ ] c", updated)
	assert.Len(t, SplitLines(updated), 3)
}
