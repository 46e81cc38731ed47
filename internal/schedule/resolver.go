// Package schedule resolves the time-block section of a daily note into
// scheduled instances of tasks defined anywhere in the notes.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"noldermd/internal/tasks"
)

const DefaultHeading = "## Time Blocks"

var (
	headingLine = regexp.MustCompile(`^#{1,6}\s`)
	blockLine   = regexp.MustCompile(`^\s*[-+*]\s+(\d{1,2}:\d{2})\s*-\s*(\d{1,2}:\d{2})\s+\[\[([^\]]+)\]\]`)
)

// MatchKind records how a reference was matched to a task.
type MatchKind string

const (
	MatchExact MatchKind = "exact"
	MatchFuzzy MatchKind = "fuzzy"
)

type TimeSlot struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Line  int    `json:"line"`
}

// Instance is one canonical task as scheduled by a daily note.
type Instance struct {
	Task      *tasks.Task `json:"task"`
	Source    string      `json:"source"`
	Date      string      `json:"date"`
	Slots     []TimeSlot  `json:"slots"`
	Match     MatchKind   `json:"match"`
	DoneToday bool        `json:"doneToday"`
}

// Reference is a time-block line naming a task.
type Reference struct {
	Line  int
	Start string
	End   string
	Name  string
}

// TaskSource supplies the tasks references are resolved against.
type TaskSource interface {
	Tasks() []*tasks.Task
}

type Resolver struct {
	source  TaskSource
	done    *DoneStore
	heading string
	logger  *slog.Logger
}

func NewResolver(source TaskSource, done *DoneStore, heading string, logger *slog.Logger) *Resolver {
	if heading == "" {
		heading = DefaultHeading
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{source: source, done: done, heading: heading, logger: logger}
}

// Resolve returns one instance per task referenced in the time-block
// section of content, ordered by each instance's earliest start time.
// References that match no task are logged and skipped.
func (r *Resolver) Resolve(ctx context.Context, path, content, date string) ([]Instance, error) {
	if _, err := time.Parse(tasks.DateLayout, date); err != nil {
		return nil, fmt.Errorf("%q: %w", date, tasks.ErrInvalidDate)
	}

	doneToday := map[string]bool{}
	if r.done != nil {
		var err error
		if doneToday, err = r.done.Done(ctx, date); err != nil {
			return nil, err
		}
	}

	candidates := r.source.Tasks()
	byTask := make(map[string]*Instance)
	order := make([]string, 0)
	for _, ref := range ScanSection(content, r.heading) {
		task, kind := Match(ref.Name, candidates)
		if task == nil {
			r.logger.Warn("unresolved schedule reference", "file", path, "line", ref.Line, "reference", ref.Name)
			continue
		}
		inst, ok := byTask[task.ID]
		if !ok {
			inst = &Instance{
				Task:      task,
				Source:    path,
				Date:      date,
				Match:     kind,
				DoneToday: doneToday[task.ID],
			}
			byTask[task.ID] = inst
			order = append(order, task.ID)
		}
		inst.Slots = addSlot(inst.Slots, TimeSlot{Start: ref.Start, End: ref.End, Line: ref.Line})
	}

	instances := make([]Instance, 0, len(order))
	for _, id := range order {
		inst := byTask[id]
		sort.SliceStable(inst.Slots, func(i, j int) bool {
			return minutes(inst.Slots[i].Start) < minutes(inst.Slots[j].Start)
		})
		instances = append(instances, *inst)
	}
	sort.SliceStable(instances, func(i, j int) bool {
		return minutes(instances[i].Slots[0].Start) < minutes(instances[j].Slots[0].Start)
	})
	return instances, nil
}

// ScanSection returns the task references between heading and the next
// heading line.
func ScanSection(content, heading string) []Reference {
	refs := make([]Reference, 0)
	inSection := false
	for i, line := range tasks.SplitLines(content) {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == heading {
			inSection = true
			continue
		}
		if !inSection {
			continue
		}
		if headingLine.MatchString(line) {
			break
		}
		match := blockLine.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		start, okStart := clock(match[1])
		end, okEnd := clock(match[2])
		if !okStart || !okEnd {
			continue
		}
		refs = append(refs, Reference{Line: i, Start: start, End: end, Name: strings.TrimSpace(match[3])})
	}
	return refs
}

// Match finds the task a reference names. Exact matches on the cleaned,
// case-folded text are tried over every candidate before falling back to
// substring containment in either direction.
func Match(name string, candidates []*tasks.Task) (*tasks.Task, MatchKind) {
	want := normalize(name)
	if want == "" {
		return nil, ""
	}
	for _, task := range candidates {
		if normalize(task.Text) == want {
			return task, MatchExact
		}
	}
	for _, task := range candidates {
		have := normalize(task.Text)
		if have == "" {
			continue
		}
		if strings.Contains(have, want) || strings.Contains(want, have) {
			return task, MatchFuzzy
		}
	}
	return nil, ""
}

func normalize(text string) string {
	return strings.ToLower(tasks.CleanText(text))
}

func addSlot(slots []TimeSlot, slot TimeSlot) []TimeSlot {
	for _, existing := range slots {
		if existing.Start == slot.Start && existing.End == slot.End {
			return slots
		}
	}
	return append(slots, slot)
}

// clock validates H:MM or HH:MM and returns it zero-padded.
func clock(value string) (string, bool) {
	hh, mm, ok := strings.Cut(value, ":")
	if !ok {
		return "", false
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 24 {
		return "", false
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 || (h == 24 && m != 0) {
		return "", false
	}
	return fmt.Sprintf("%02d:%02d", h, m), true
}

func minutes(value string) int {
	hh, mm, _ := strings.Cut(value, ":")
	h, _ := strconv.Atoi(hh)
	m, _ := strconv.Atoi(mm)
	return h*60 + m
}
