package supervisor

import (
	"regexp"
	"sync"
	"time"
)

// interactionRe recognises the prompts AI CLIs print when they fall back
// to interactive mode: REPL arrows, yes/no confirmations, pagers, and
// their common CJK equivalents.
var interactionRe = regexp.MustCompile(`(?i)(` +
	`>>\s*>` + `|` +
	`❯` + `|` +
	`\(y/n\)` + `|` +
	`\[y/n\]` + `|` +
	`\(yes/no\)` + `|` +
	`continue\?` + `|` +
	`proceed\?` + `|` +
	`are you sure` + `|` +
	`do you want to` + `|` +
	`press any key` + `|` +
	`press enter` + `|` +
	`trust the files in this folder` + `|` +
	`是否继续` + `|` +
	`确认继续` + `|` +
	`続行しますか` +
	`)`)

const (
	// scanWindow bounds how much output tail is kept for matching.
	scanWindow = 512
	// tailSlack is how close to the end of output a match must sit to
	// count as a waiting prompt rather than quoted text scrolling past.
	tailSlack = 48
	// settleDelay is how long output must stay quiet after a match
	// before the prompt is considered real. Streaming responses often
	// contain prompt-like tokens mid-flight.
	settleDelay = 200 * time.Millisecond
)

// promptScanner watches a child's stdout for a waiting interactive
// prompt. A match only fires after the stream goes quiet: each new chunk
// cancels the pending timer and re-evaluates the tail.
type promptScanner struct {
	mu     sync.Mutex
	window []byte
	timer  *time.Timer
	fired  bool

	// detected is closed exactly once, on confirmation.
	detected chan struct{}
}

func newPromptScanner() *promptScanner {
	return &promptScanner{detected: make(chan struct{})}
}

// feed appends a chunk of child stdout and re-arms detection.
func (s *promptScanner) feed(chunk []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fired {
		return
	}

	s.window = append(s.window, chunk...)
	if len(s.window) > scanWindow {
		s.window = s.window[len(s.window)-scanWindow:]
	}

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.tailMatchesLocked() {
		s.timer = time.AfterFunc(settleDelay, s.fire)
	}
}

// stop cancels any pending confirmation, e.g. when the child exits.
func (s *promptScanner) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *promptScanner) fire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fired {
		return
	}
	s.fired = true
	close(s.detected)
}

// tailMatchesLocked reports whether a prompt token sits at (or near) the
// end of the buffered output. Caller holds s.mu.
func (s *promptScanner) tailMatchesLocked() bool {
	locs := interactionRe.FindAllIndex(s.window, -1)
	if len(locs) == 0 {
		return false
	}
	last := locs[len(locs)-1]
	return last[1] >= len(s.window)-tailSlack
}
