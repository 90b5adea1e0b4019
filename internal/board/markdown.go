package board

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Section titles as written in the document.
const (
	secProjectInfo = "Project Info"
	secCurrent     = "Current State"
	secQueue       = "Task Queue"
	secPending     = "Pending"
	secOngoing     = "Ongoing"
	secCompleted   = "Completed"
	secFindings    = "Key Findings"
	secDecisions   = "Decisions"
	secHistory     = "Collaboration History"
)

const boardTitle = "Project Status Board"

const footer = "_This file is maintained by stig. Keep the section layout when editing._"

const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// Free-text fields (task text, finding content, decisions, rationale,
// results) are stored Go-quoted so parens, quotes, delimiter tokens and
// newlines survive the line grammar byte for byte.
func quoteField(s string) string {
	return strconv.Quote(s)
}

func unquoteField(s string) string {
	out, err := strconv.Unquote(s)
	if err != nil {
		return s
	}
	return out
}

// Serialize renders the state as the canonical Markdown document.
func Serialize(s *State) []byte {
	var b strings.Builder
	b.WriteString("# " + boardTitle + "\n\n")

	b.WriteString("## " + secProjectInfo + "\n")
	fmt.Fprintf(&b, "- **Name:** %s\n", s.Project.Name)
	fmt.Fprintf(&b, "- **Root:** %s\n", s.Project.Root)
	fmt.Fprintf(&b, "- **Created:** %s\n", formatTime(s.Project.CreatedAt))
	fmt.Fprintf(&b, "- **Session:** %s\n", s.Project.SessionID)
	fmt.Fprintf(&b, "- **Phase:** %s\n\n", s.Project.Phase)

	b.WriteString("## " + secCurrent + "\n")
	cli := s.CurrentCLI
	if cli == "" {
		cli = "none"
	}
	fmt.Fprintf(&b, "- **Current CLI:** %s\n", cli)
	fmt.Fprintf(&b, "- **Last Activity:** %s\n\n", formatTime(s.LastActivity))

	b.WriteString("## " + secQueue + "\n\n")
	for _, sub := range []struct {
		title  string
		status TaskStatus
	}{
		{secPending, StatusPending},
		{secOngoing, StatusOngoing},
		{secCompleted, StatusCompleted},
	} {
		b.WriteString("### " + sub.title + "\n")
		for _, t := range s.TasksByStatus(sub.status) {
			b.WriteString(taskLine(t))
		}
		b.WriteString("\n")
	}

	b.WriteString("## " + secFindings + "\n")
	for _, f := range s.Findings {
		line := fmt.Sprintf("- [%s] **%s** %s: %s", formatTime(f.Timestamp), f.CLI, quoteField(f.Category), quoteField(f.Content))
		if len(f.Metadata) > 0 {
			if raw, err := json.Marshal(f.Metadata); err == nil {
				line += " meta=" + string(raw)
			}
		}
		b.WriteString(line + "\n")
	}
	b.WriteString("\n")

	b.WriteString("## " + secDecisions + "\n")
	for _, d := range s.Decisions {
		line := fmt.Sprintf("- [%s] **%s** %s", formatTime(d.Timestamp), d.CLI, quoteField(d.Decision))
		if d.Rationale != "" {
			line += " because " + quoteField(d.Rationale)
		}
		b.WriteString(line + "\n")
	}
	b.WriteString("\n")

	b.WriteString("## " + secHistory + "\n")
	for _, h := range s.History {
		line := fmt.Sprintf("- [%s] **%s** %s %s", formatTime(h.Timestamp), h.CLI, h.Type, quoteField(h.Content))
		if h.Result != "" {
			line += " => " + quoteField(h.Result)
		}
		b.WriteString(line + "\n")
	}

	b.WriteString("\n---\n" + footer + "\n")
	return []byte(b.String())
}

func taskLine(t Task) string {
	attrs := []string{"priority: " + t.Priority}
	if t.CLI != "" {
		attrs = append(attrs, "cli: "+t.CLI)
	}
	attrs = append(attrs, "created: "+formatTime(t.CreatedAt))
	if t.CompletedAt != nil {
		attrs = append(attrs, "completed: "+formatTime(*t.CompletedAt))
	}
	line := fmt.Sprintf("- [%s] %s (%s)", t.ID, quoteField(t.Task), strings.Join(attrs, ", "))
	if t.Result != "" {
		line += " => " + quoteField(t.Result)
	}
	return line + "\n"
}

// qs matches one Go-quoted string, escaped quotes included.
const qs = `"(?:[^"\\]|\\.)*"`

// Line grammar for each section.
var (
	kvRe         = regexp.MustCompile(`^\*\*(.+?):\*\*\s*(.*)$`)
	taskRe       = regexp.MustCompile(`^\[([^\]]+)\]\s+(` + qs + `)\s+\(([^()]*)\)(?:\s+=>\s+(` + qs + `))?$`)
	taskLegacyRe = regexp.MustCompile(`^\[([^\]]+)\]\s+(.*)\s+\(([^()]*)\)$`)
	findingRe    = regexp.MustCompile(`^\[([^\]]+)\]\s+\*\*([^*]+)\*\*\s+(` + qs + `):\s+(` + qs + `)(?:\s+meta=(\{.*\}))?$`)
	decisionRe   = regexp.MustCompile(`^\[([^\]]+)\]\s+\*\*([^*]+)\*\*\s+(` + qs + `)(?:\s+because\s+(` + qs + `))?$`)
	historyRe    = regexp.MustCompile(`^\[([^\]]+)\]\s+\*\*([^*]+)\*\*\s+(task|finding|decision)\s+(` + qs + `)(?:\s+=>\s+(` + qs + `))?$`)
)

var md = goldmark.New()

// Parse reads a board document back into structured state. Unknown
// sections and malformed lines are skipped, not fatal: the board must
// survive human edits.
func Parse(src []byte) (*State, error) {
	doc := md.Parser().Parse(text.NewReader(src))

	s := &State{}
	section := ""
	sub := ""

	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		switch n := node.(type) {
		case *ast.Heading:
			title := strings.TrimSpace(nodeText(n, src))
			switch n.Level {
			case 2:
				section = title
				sub = ""
			case 3:
				sub = title
			}
		case *ast.List:
			for item := n.FirstChild(); item != nil; item = item.NextSibling() {
				line := strings.TrimSpace(rawItemText(item, src))
				if line == "" {
					continue
				}
				parseLine(s, section, sub, line)
			}
		}
	}
	return s, nil
}

func parseLine(s *State, section, sub, line string) {
	switch section {
	case secProjectInfo:
		if m := kvRe.FindStringSubmatch(line); m != nil {
			applyProjectField(&s.Project, m[1], m[2])
		}
	case secCurrent:
		if m := kvRe.FindStringSubmatch(line); m != nil {
			switch m[1] {
			case "Current CLI":
				if m[2] != "none" {
					s.CurrentCLI = m[2]
				}
			case "Last Activity":
				s.LastActivity = parseTime(m[2])
			}
		}
	case secQueue:
		if t, ok := parseTask(sub, line); ok {
			s.Tasks = append(s.Tasks, t)
		}
	case secFindings:
		if m := findingRe.FindStringSubmatch(line); m != nil {
			s.Findings = append(s.Findings, Finding{
				Timestamp: parseTime(m[1]),
				CLI:       m[2],
				Category:  unquoteField(m[3]),
				Content:   unquoteField(m[4]),
				Metadata:  parseMetadata(m[5]),
			})
		}
	case secDecisions:
		if m := decisionRe.FindStringSubmatch(line); m != nil {
			d := Decision{Timestamp: parseTime(m[1]), CLI: m[2], Decision: unquoteField(m[3])}
			if m[4] != "" {
				d.Rationale = unquoteField(m[4])
			}
			s.Decisions = append(s.Decisions, d)
		}
	case secHistory:
		if m := historyRe.FindStringSubmatch(line); m != nil {
			h := HistoryEntry{
				Timestamp: parseTime(m[1]),
				CLI:       m[2],
				Type:      HistoryType(m[3]),
				Content:   unquoteField(m[4]),
			}
			if m[5] != "" {
				h.Result = unquoteField(m[5])
			}
			s.History = append(s.History, h)
		}
	}
}

func applyProjectField(p *ProjectInfo, key, value string) {
	switch key {
	case "Name":
		p.Name = value
	case "Root":
		p.Root = value
	case "Created":
		p.CreatedAt = parseTime(value)
	case "Session":
		p.SessionID = value
	case "Phase":
		p.Phase = value
	}
}

// parseTask reads the quoted grammar first, then falls back to bare
// task text so hand-written entries still load.
func parseTask(sub, line string) (Task, bool) {
	var t Task
	if m := taskRe.FindStringSubmatch(line); m != nil {
		t = Task{ID: m[1], Task: unquoteField(m[2])}
		if m[4] != "" {
			t.Result = unquoteField(m[4])
		}
		applyTaskAttrs(&t, m[3])
	} else if m := taskLegacyRe.FindStringSubmatch(line); m != nil {
		t = Task{ID: m[1], Task: m[2]}
		applyTaskAttrs(&t, m[3])
	} else {
		return Task{}, false
	}

	switch sub {
	case secOngoing:
		t.Status = StatusOngoing
	case secCompleted:
		t.Status = StatusCompleted
	default:
		t.Status = StatusPending
	}
	return t, true
}

func applyTaskAttrs(t *Task, raw string) {
	for _, attr := range strings.Split(raw, ", ") {
		key, value, ok := strings.Cut(attr, ": ")
		if !ok {
			continue
		}
		switch key {
		case "priority":
			t.Priority = value
		case "cli":
			t.CLI = value
		case "created":
			t.CreatedAt = parseTime(value)
		case "completed":
			at := parseTime(value)
			t.CompletedAt = &at
		case "result":
			t.Result = value
		}
	}
}

func parseMetadata(raw string) map[string]string {
	if raw == "" {
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil
	}
	return m
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// nodeText collects the inline text of a heading.
func nodeText(n ast.Node, src []byte) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			b.Write(t.Segment.Value(src))
		}
	}
	return b.String()
}

// rawItemText recovers the raw source of a list item, markers included,
// so the line grammar sees exactly what the serialiser wrote.
func rawItemText(item ast.Node, src []byte) string {
	var b strings.Builder
	for c := item.FirstChild(); c != nil; c = c.NextSibling() {
		lines := c.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			b.Write(seg.Value(src))
		}
	}
	return b.String()
}
