// Package recovery drives the retry ladder around supervised runs:
// resume-and-retry against the same CLI, then a single hop to the
// descriptor's fallback CLI.
package recovery

import (
	"context"
	"strconv"
	"time"

	"github.com/stigmergy/stig/internal/logging"
	"github.com/stigmergy/stig/internal/registry"
	"github.com/stigmergy/stig/internal/supervisor"
)

// resumeCap bounds the fire-and-forget resume command.
const resumeCap = 10 * time.Second

// Policy controls how far the ladder extends.
type Policy struct {
	MaxRetries     int
	EnableResume   bool
	EnableFallback bool
}

// DefaultPolicy matches the shipped orchestration behaviour.
func DefaultPolicy() Policy {
	return Policy{MaxRetries: 2, EnableResume: true, EnableFallback: true}
}

// Attempt is one supervised run within a recovery session.
type Attempt struct {
	CLI     string
	Stage   string // "initial", "resumed-N", "fallback"
	Outcome *supervisor.Outcome
}

// Result is the final word of a recovery session.
type Result struct {
	// CLI that produced the final outcome; differs from the requested
	// one after a fallback hop.
	CLI      string
	Outcome  *supervisor.Outcome
	Attempts []Attempt
	FellBack bool
}

// Runner executes one supervised run of desc with the given argv.
type Runner func(ctx context.Context, desc *registry.Descriptor, argv []string) *supervisor.Outcome

// Synthesizer produces argv for the fallback CLI; the coordinator never
// reuses the failing CLI's argv across a fallback hop.
type Synthesizer func(ctx context.Context, desc *registry.Descriptor) ([]string, error)

// Resumer triggers the CLI's own session-resume command. Best effort:
// the return is ignored.
type Resumer func(ctx context.Context, desc *registry.Descriptor)

// Coordinator walks the recovery state machine. The run, synthesize and
// resume hooks are injected so orchestration decides what a "run" means.
type Coordinator struct {
	reg        *registry.Registry
	run        Runner
	synthesize Synthesizer
	resume     Resumer
}

// New builds a coordinator. A nil resume hook gets the default
// supervised resume-command execution.
func New(reg *registry.Registry, run Runner, synthesize Synthesizer, resume Resumer) *Coordinator {
	c := &Coordinator{reg: reg, run: run, synthesize: synthesize, resume: resume}
	if c.resume == nil {
		c.resume = defaultResume
	}
	return c
}

// ExecuteWithRecovery runs desc's argv, resumes and retries on failure
// up to policy.MaxRetries, then tries the fallback CLI once. The total
// number of supervised runs never exceeds MaxRetries+2.
func (c *Coordinator) ExecuteWithRecovery(ctx context.Context, desc *registry.Descriptor, argv []string, policy Policy) *Result {
	res := &Result{CLI: desc.Name}

	o := c.run(ctx, desc, argv)
	res.Attempts = append(res.Attempts, Attempt{CLI: desc.Name, Stage: "initial", Outcome: o})
	res.Outcome = o
	if o.Success {
		return res
	}

	if policy.EnableResume && o.NeedsRecovery {
		for n := 1; n <= policy.MaxRetries; n++ {
			if ctx.Err() != nil {
				return res
			}
			logging.Debugf("[recovery] %s: resume attempt %d/%d", desc.Name, n, policy.MaxRetries)
			c.resume(ctx, desc)

			o = c.run(ctx, desc, argv)
			res.Attempts = append(res.Attempts, Attempt{
				CLI:     desc.Name,
				Stage:   "resumed-" + strconv.Itoa(n),
				Outcome: o,
			})
			res.Outcome = o
			if o.Success {
				return res
			}
			if !o.NeedsRecovery {
				return res
			}
		}
	}

	if !policy.EnableFallback || desc.Fallback == "" {
		return res
	}
	fb, ok := c.reg.Get(desc.Fallback)
	if !ok || !fb.Installed() {
		logging.Debugf("[recovery] %s: fallback %q unavailable", desc.Name, desc.Fallback)
		return res
	}

	fbArgv, err := c.synthesize(ctx, fb)
	if err != nil {
		logging.Warnf("[recovery] %s: fallback synthesis failed: %v", fb.Name, err)
		return res
	}

	logging.Infof("[recovery] %s failed, falling back to %s", desc.Name, fb.Name)
	// The fallback leg runs flat: no resume, no second-order fallback.
	inner := c.ExecuteWithRecovery(ctx, fb, fbArgv, Policy{})
	res.FellBack = true
	res.CLI = inner.CLI
	res.Outcome = inner.Outcome
	for _, a := range inner.Attempts {
		a.Stage = "fallback"
		res.Attempts = append(res.Attempts, a)
	}
	return res
}

// defaultResume runs the descriptor's resume command under the resume
// cap. Its outcome only matters for the CLI's own session store.
func defaultResume(ctx context.Context, desc *registry.Descriptor) {
	if len(desc.ResumeCommand) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, resumeCap)
	defer cancel()
	o := supervisor.Run(ctx, desc.ResumeCommand[0], desc.ResumeCommand[1:], supervisor.Options{
		CLI:     desc.Name,
		Timeout: resumeCap,
	})
	logging.Debugf("[recovery] %s: resume command exit %d", desc.Name, o.ExitCode)
}
