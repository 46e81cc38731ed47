package tasks

import (
	"errors"
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

// Status is the state encoded by a checkbox marker.
type Status string

const (
	StatusOpen      Status = "open"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusScheduled Status = "scheduled"
	StatusImportant Status = "important"
)

var (
	ErrNotATask    = errors.New("line is not a task")
	ErrInvalidDate = errors.New("invalid date, want YYYY-MM-DD")
)

type LineRangeError struct {
	Line  int
	Lines int
}

func (e LineRangeError) Error() string {
	return fmt.Sprintf("line %d out of range (file has %d lines)", e.Line, e.Lines)
}

// Task is one checkbox item parsed from a note. Tasks belong to the parse
// that produced them and are treated as read-only; edits go through the
// note text and a fresh parse.
type Task struct {
	ID       string   `json:"id"`
	File     string   `json:"file"`
	Line     int      `json:"line"`
	Depth    int      `json:"depth"`
	Text     string   `json:"text"`
	Raw      string   `json:"raw"`
	Status   Status   `json:"status"`
	Priority int      `json:"priority,omitempty"`
	Date     string   `json:"date,omitempty"`
	Tags     []string `json:"tags"`
	Mentions []string `json:"mentions"`
	Details  string   `json:"details,omitempty"`
	Rank     *float64 `json:"rank,omitempty"`
	Legacy   bool     `json:"legacy,omitempty"`
	Hash     string   `json:"hash"`
	Children []*Task  `json:"children"`
}

func TaskID(file string, line int) string {
	return fmt.Sprintf("%s-%d", file, line)
}

func (t *Task) Completed() bool { return t.Status == StatusCompleted }

func (t *Task) Due() (time.Time, bool) {
	if t.Date == "" {
		return time.Time{}, false
	}
	due, err := time.Parse(DateLayout, t.Date)
	if err != nil {
		return time.Time{}, false
	}
	return due, true
}
