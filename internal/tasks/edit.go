package tasks

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var checkboxPrefix = regexp.MustCompile(`^([ \t]*[-*][ \t]+\[)(.?)(\])`)

// ToggleLine flips a task line between its open and completed forms.
// Cancelled, scheduled and important markers are not part of that pair
// and are returned unchanged. Toggling twice restores the line, except that
// an empty [] comes back as [ ].
func ToggleLine(line string) (string, error) {
	body, cr := splitCR(line)
	if !IsTaskLine(body) {
		return "", ErrNotATask
	}
	loc := checkboxPrefix.FindStringSubmatchIndex(body)
	var marker string
	switch status, _ := statusFor(body[loc[4]:loc[5]]); status {
	case StatusOpen:
		marker = "x"
	case StatusCompleted:
		marker = " "
	default:
		return line, nil
	}
	return body[:loc[4]] + marker + body[loc[5]:] + cr, nil
}

// RescheduleLine drops every >YYYY-MM-DD token from a task line and
// appends date, or nothing when date is empty.
func RescheduleLine(line, date string) (string, error) {
	body, cr := splitCR(line)
	if !IsTaskLine(body) {
		return "", ErrNotATask
	}
	if date != "" {
		if _, err := time.Parse(DateLayout, date); err != nil {
			return "", fmt.Errorf("%q: %w", date, ErrInvalidDate)
		}
	}

	matches := taskDate.FindAllStringIndex(body, -1)
	for i := len(matches) - 1; i >= 0; i-- {
		body = body[:matches[i][0]] + body[matches[i][1]:]
	}
	body = strings.TrimRight(body, " \t")
	if date != "" {
		body += " >" + date
	}
	return body + cr, nil
}

// ToggleAt toggles the task on 0-based line lineNo of content.
func ToggleAt(content string, lineNo int) (string, error) {
	return editAt(content, lineNo, ToggleLine)
}

// RescheduleAt sets the date of the task on line lineNo of content.
func RescheduleAt(content string, lineNo int, date string) (string, error) {
	return editAt(content, lineNo, func(line string) (string, error) {
		return RescheduleLine(line, date)
	})
}

func editAt(content string, lineNo int, edit func(string) (string, error)) (string, error) {
	lines := SplitLines(content)
	if lineNo < 0 || lineNo >= len(lines) {
		return "", LineRangeError{Line: lineNo, Lines: len(lines)}
	}
	updated, err := edit(lines[lineNo])
	if err != nil {
		return "", err
	}
	lines[lineNo] = updated
	return strings.Join(lines, "\n"), nil
}

func splitCR(line string) (string, string) {
	if strings.HasSuffix(line, "\r") {
		return line[:len(line)-1], "\r"
	}
	return line, ""
}
