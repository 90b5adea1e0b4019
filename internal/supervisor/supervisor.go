// Package supervisor runs child CLIs non-interactively and classifies
// how they finished. Children are opaque: input goes in through argv
// only (stdin is closed), output is captured from both streams, and a
// prompt scanner watches stdout for the child falling back to
// interactive mode.
package supervisor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/stigmergy/stig/internal/logging"
)

// ErrorKind classifies a failed run for the recovery coordinator.
type ErrorKind string

const (
	KindNone         ErrorKind = ""
	KindInteractive  ErrorKind = "interactive-prompt"
	KindTimeout      ErrorKind = "timeout"
	KindCanceled     ErrorKind = "canceled"
	KindNotInstalled ErrorKind = "not-installed"
	KindExit         ErrorKind = "exit"
	KindSpawn        ErrorKind = "spawn"
)

// gracePeriod is how long a child gets between the graceful and the
// forceful termination signal.
const gracePeriod = 5 * time.Second

// Options shapes a single supervised run.
type Options struct {
	// CLI names the tool for log lines only.
	CLI string
	// Timeout bounds the run; zero means unbounded.
	Timeout time.Duration
	// Dir is the child's working directory; empty means inherit.
	Dir string
	// Stdout and Stderr, when set, receive live mirrors of the child's
	// streams in arrival order.
	Stdout io.Writer
	Stderr io.Writer
	// Env entries appended after the inherited environment.
	Env []string
}

// Outcome is the classified result of one supervised run.
type Outcome struct {
	Success             bool
	NeedsRecovery       bool
	InteractionDetected bool
	ExitCode            int
	Stdout              string
	Stderr              string
	Error               string
	Kind                ErrorKind
	Duration            time.Duration
}

// Run spawns binary with argv through the system shell and supervises it
// to completion. It never returns a Go error: every way the child can
// finish is an Outcome.
func Run(ctx context.Context, binary string, argv []string, opts Options) *Outcome {
	start := time.Now()
	line := ShellLine(binary, argv)
	logging.Debugf("[supervisor] %s: %s", opts.CLI, line)

	sh := shellPath()
	cmd := exec.Command(sh[0], append(sh[1:], line)...)
	setProcGroup(cmd)
	cmd.Dir = opts.Dir
	cmd.Stdin = nil
	cmd.Env = append(os.Environ(), "FORCE_COLOR=0")
	cmd.Env = append(cmd.Env, opts.Env...)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return spawnFailure(opts.CLI, err, start)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return spawnFailure(opts.CLI, err, start)
	}

	if err := cmd.Start(); err != nil {
		return spawnFailure(opts.CLI, err, start)
	}

	scanner := newPromptScanner()
	var outBuf, errBuf bytes.Buffer
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		streamChunks(stdoutPipe, &outBuf, opts.Stdout, scanner.feed)
	}()
	go func() {
		defer wg.Done()
		streamChunks(stderrPipe, &errBuf, opts.Stderr, nil)
	}()

	// Readers must drain before Wait closes the pipes.
	waitCh := make(chan error, 1)
	go func() {
		wg.Wait()
		waitCh <- cmd.Wait()
	}()

	var timerCh <-chan time.Time
	if opts.Timeout > 0 {
		timer := time.NewTimer(opts.Timeout)
		defer timer.Stop()
		timerCh = timer.C
	}

	kind := KindNone
	var waitErr error
	select {
	case waitErr = <-waitCh:
	case <-scanner.detected:
		kind = KindInteractive
		waitErr = shutdown(cmd, waitCh)
	case <-timerCh:
		kind = KindTimeout
		waitErr = shutdown(cmd, waitCh)
	case <-ctx.Done():
		kind = KindCanceled
		waitErr = shutdown(cmd, waitCh)
	}
	scanner.stop()

	// The child can exit and leave a confirmed prompt in the same
	// instant; detection takes precedence over the exit status.
	if kind == KindNone {
		select {
		case <-scanner.detected:
			kind = KindInteractive
		default:
		}
	}

	return classify(kind, waitErr, opts, &outBuf, &errBuf, start)
}

// streamChunks copies r into buf (and mirror, when set) chunk by chunk,
// handing each chunk to scan before the next read.
func streamChunks(r io.Reader, buf *bytes.Buffer, mirror io.Writer, scan func([]byte)) {
	chunk := make([]byte, 4096)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			if mirror != nil {
				mirror.Write(chunk[:n])
			}
			if scan != nil {
				scan(chunk[:n])
			}
		}
		if err != nil {
			return
		}
	}
}

// shutdown signals the child tree to exit, escalating after the grace
// period, and returns the child's wait result.
func shutdown(cmd *exec.Cmd, waitCh <-chan error) error {
	terminate(cmd)
	select {
	case err := <-waitCh:
		return err
	case <-time.After(gracePeriod):
		kill(cmd)
		return <-waitCh
	}
}

func spawnFailure(cli string, err error, start time.Time) *Outcome {
	logging.Debugf("[supervisor] %s: spawn failed: %v", cli, err)
	return &Outcome{
		NeedsRecovery: true,
		ExitCode:      -1,
		Error:         err.Error(),
		Kind:          KindSpawn,
		Duration:      time.Since(start),
	}
}

func classify(kind ErrorKind, waitErr error, opts Options, outBuf, errBuf *bytes.Buffer, start time.Time) *Outcome {
	o := &Outcome{
		Stdout:   outBuf.String(),
		Stderr:   errBuf.String(),
		Kind:     kind,
		Duration: time.Since(start),
	}
	o.ExitCode = exitCode(waitErr)

	switch kind {
	case KindInteractive:
		o.NeedsRecovery = true
		o.InteractionDetected = true
		o.Error = "Interactive prompt detected"
		return o
	case KindTimeout:
		o.NeedsRecovery = true
		o.Error = fmt.Sprintf("timed out after %s", opts.Timeout)
		return o
	case KindCanceled:
		// Same shape as a timeout: the run is over and unrecovered.
		o.NeedsRecovery = true
		o.Error = "canceled"
		return o
	}

	if waitErr == nil {
		o.Success = true
		return o
	}

	o.NeedsRecovery = true
	// A shell-wrapped missing binary surfaces as exit 127 with a
	// "not found" diagnostic.
	if o.ExitCode == 127 && strings.Contains(o.Stderr+o.Stdout, "not found") {
		o.Kind = KindNotInstalled
		o.Error = fmt.Sprintf("%s is not installed", opts.CLI)
		return o
	}

	o.Kind = KindExit
	if msg := strings.TrimSpace(o.Stderr); msg != "" {
		o.Error = lastLine(msg)
	} else {
		o.Error = fmt.Sprintf("Exit code %d", o.ExitCode)
	}
	return o
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exit *exec.ExitError
	if errors.As(err, &exit) {
		return exit.ExitCode()
	}
	return -1
}

// lastLine keeps error strings to one line for board and log entries.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
