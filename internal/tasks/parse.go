package tasks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	taskLine     = regexp.MustCompile(`^([ \t]*)([-*])[ \t]+\[(.?)\](?:[ \t]+(.*))?$`)
	taskDate     = regexp.MustCompile(`(^|\s)>(\d{4}-\d{2}-\d{2})\b`)
	taskMention  = regexp.MustCompile(`(^|\s)@([\w][\w-]*)`)
	taskTag      = regexp.MustCompile(`(^|\s)#([\w][\w/-]*)`)
	taskPriority = regexp.MustCompile(`^[pP]([1-4])$`)
	extraSpace   = regexp.MustCompile(`\s{2,}`)
)

const legacyBullet = "*"

// Parse scans content and returns the task forest for file.
func Parse(file, content string) []*Task {
	return BuildTree(ParseContent(file, content))
}

// ParseContent returns every task in content in line order, without
// hierarchy.
func ParseContent(file, content string) []*Task {
	lines := SplitLines(content)
	parsed := make([]*Task, 0)
	for i, line := range lines {
		if task, ok := ParseLine(line, i, file, lines); ok {
			parsed = append(parsed, task)
		}
	}
	return parsed
}

// ParseLine parses one line (0-based lineNo) of file. lines is the whole
// file and is only used to collect the task's details block; it may be nil.
func ParseLine(line string, lineNo int, file string, lines []string) (*Task, bool) {
	raw := strings.TrimSuffix(line, "\r")
	match := taskLine.FindStringSubmatch(raw)
	if match == nil {
		return nil, false
	}
	status, ok := statusFor(match[3])
	if !ok {
		return nil, false
	}

	legacy := match[2] == legacyBullet
	if legacy {
		slog.Debug("legacy checkbox syntax", "file", file, "line", lineNo)
	}

	depth := indentDepth(match[1])
	text, date := extractDate(match[4])
	mentions := collectTokens(taskMention, text)
	text = taskMention.ReplaceAllString(text, "$1")
	tags := collectTokens(taskTag, text)
	text = taskTag.ReplaceAllString(text, "$1")
	text = strings.TrimSpace(extraSpace.ReplaceAllString(text, " "))

	task := &Task{
		ID:       TaskID(file, lineNo),
		File:     file,
		Line:     lineNo,
		Depth:    depth,
		Text:     text,
		Raw:      raw,
		Status:   status,
		Priority: priorityFrom(tags),
		Date:     date,
		Tags:     tags,
		Mentions: mentions,
		Legacy:   legacy,
		Hash:     hashTask(depth, text),
		Children: []*Task{},
	}
	if lines != nil {
		task.Details = extractDetails(lines, lineNo, depth)
	}
	return task, true
}

// IsTaskLine reports whether line carries a recognised checkbox marker.
func IsTaskLine(line string) bool {
	match := taskLine.FindStringSubmatch(strings.TrimSuffix(line, "\r"))
	if match == nil {
		return false
	}
	_, ok := statusFor(match[3])
	return ok
}

// CleanText strips every date, mention and tag token from text and
// collapses the remaining whitespace.
func CleanText(text string) string {
	text = taskDate.ReplaceAllString(text, "$1")
	text = taskMention.ReplaceAllString(text, "$1")
	text = taskTag.ReplaceAllString(text, "$1")
	return strings.TrimSpace(extraSpace.ReplaceAllString(text, " "))
}

func SplitLines(content string) []string {
	return strings.Split(content, "\n")
}

func statusFor(marker string) (Status, bool) {
	switch marker {
	case "", " ":
		return StatusOpen, true
	case "x", "X":
		return StatusCompleted, true
	case "-":
		return StatusCancelled, true
	case ">":
		return StatusScheduled, true
	case "!":
		return StatusImportant, true
	}
	return "", false
}

// indentWidth counts leading whitespace columns with tabs as two spaces.
func indentWidth(line string) int {
	width := 0
	for _, r := range line {
		switch r {
		case ' ':
			width++
		case '\t':
			width += 2
		default:
			return width
		}
	}
	return width
}

func indentDepth(prefix string) int {
	return indentWidth(prefix) / 2
}

// extractDate removes the first valid >YYYY-MM-DD token.
func extractDate(text string) (string, string) {
	for _, loc := range taskDate.FindAllStringSubmatchIndex(text, -1) {
		value := text[loc[4]:loc[5]]
		if _, err := time.Parse(DateLayout, value); err != nil {
			continue
		}
		return text[:loc[0]] + text[loc[2]:loc[3]] + text[loc[1]:], value
	}
	return text, ""
}

func collectTokens(pattern *regexp.Regexp, text string) []string {
	matches := pattern.FindAllStringSubmatch(text, -1)
	tokens := make([]string, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for _, match := range matches {
		token := match[2]
		if _, exists := seen[token]; exists {
			continue
		}
		seen[token] = struct{}{}
		tokens = append(tokens, token)
	}
	return tokens
}

func priorityFrom(tags []string) int {
	for _, tag := range tags {
		if match := taskPriority.FindStringSubmatch(tag); match != nil {
			value, _ := strconv.Atoi(match[1])
			return value
		}
	}
	return 0
}

// extractDetails collects the indented non-task lines under a task.
func extractDetails(lines []string, lineNo, depth int) string {
	block := make([]string, 0)
	for i := lineNo + 1; i < len(lines); i++ {
		line := strings.TrimSuffix(lines[i], "\r")
		if strings.TrimSpace(line) == "" {
			block = append(block, "")
			continue
		}
		if IsTaskLine(line) || indentWidth(line)/2 <= depth {
			break
		}
		block = append(block, stripIndent(line, (depth+1)*2))
	}
	for len(block) > 0 && block[len(block)-1] == "" {
		block = block[:len(block)-1]
	}
	return strings.Join(block, "\n")
}

// stripIndent removes up to width columns of leading whitespace.
func stripIndent(line string, width int) string {
	removed := 0
	for i, r := range line {
		if removed >= width {
			return line[i:]
		}
		switch r {
		case ' ':
			removed++
		case '\t':
			if removed+2 > width {
				return strings.Repeat(" ", removed+2-width) + line[i+1:]
			}
			removed += 2
		default:
			return line[i:]
		}
	}
	return ""
}

func hashTask(depth int, text string) string {
	sum := sha256.Sum256([]byte(strconv.Itoa(depth) + ":" + text))
	return hex.EncodeToString(sum[:8])
}
