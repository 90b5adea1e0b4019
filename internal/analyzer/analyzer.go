package analyzer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stigmergy/stig/internal/logging"
	"github.com/stigmergy/stig/internal/registry"
)

// ErrUnknownCLI is returned for names absent from the registry.
var ErrUnknownCLI = errors.New("unknown CLI")

const (
	defaultTTL    = 24 * time.Hour
	helpTimeout   = 5 * time.Second
	perCLIBudget  = 60 * time.Second
	overallBudget = 120 * time.Second
)

// Options controls a single analysis.
type Options struct {
	// Enhanced attaches the skill/agent capability block to the result.
	// The returned pattern is always a fresh value; the cached pattern
	// is never mutated.
	Enhanced bool
	// ForceRefresh skips the cache and re-probes the CLI.
	ForceRefresh bool
}

// Analyzer probes installed CLIs and maintains the pattern cache.
type Analyzer struct {
	reg   *registry.Registry
	store *Store
	ttl   time.Duration
	now   func() time.Time

	// runProbe is swappable in tests
	runProbe func(ctx context.Context, binary string, args []string) (string, error)
}

// New creates an analyzer over the given registry and pattern store.
func New(reg *registry.Registry, store *Store) *Analyzer {
	return &Analyzer{
		reg:      reg,
		store:    store,
		ttl:      defaultTTL,
		now:      time.Now,
		runProbe: runHelpProbe,
	}
}

// SetTTL overrides the cache freshness window.
func (a *Analyzer) SetTTL(ttl time.Duration) { a.ttl = ttl }

// Analyze returns the pattern for the named CLI, probing it if the cache
// is absent, stale, or recorded for a different version. Probe failures
// yield a degraded pattern rather than an error: orchestration proceeds
// on descriptor defaults.
func (a *Analyzer) Analyze(ctx context.Context, name string, opts Options) (*Pattern, error) {
	desc, ok := a.reg.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCLI, name)
	}

	version, verr := desc.Version(ctx)
	if verr != nil {
		logging.Debugf("analyzer: %s version probe failed: %v", name, verr)
	}

	if !opts.ForceRefresh {
		if cached, ok := a.store.Get(name); ok && cached.Success {
			fresh := a.now().Sub(cached.Timestamp) < a.ttl
			sameVersion := verr != nil || cached.Version == version
			if fresh && sameVersion {
				return a.withEnhanced(cached, desc, opts), nil
			}
		}
	}

	helpText, probeArgv := a.probeHelp(ctx, desc)
	if helpText == "" {
		errMsg := fmt.Sprintf("%s: no help probe produced output", name)
		if verr != nil {
			// Tool not installed is the common case; keep it quiet
			errMsg = fmt.Sprintf("%s: not installed or not responding", name)
		}
		if err := a.store.RecordFailure(name, errMsg, probeArgv); err != nil {
			logging.Debugf("analyzer: record failure: %v", err)
		}
		degraded := &Pattern{
			CLI:       name,
			Version:   version,
			Family:    DetectFamily(name, ""),
			Success:   false,
			Error:     errMsg,
			Timestamp: a.now().UTC(),
		}
		if f, ok := a.store.LastFailure(name); ok {
			degraded.LastFailure = f
		}
		return a.withEnhanced(degraded, desc, opts), nil
	}

	family := DetectFamily(name, helpText)
	options, subs, examples, promptFlag, nonInteractiveFlag := extractPatterns(family, helpText)

	p := &Pattern{
		CLI:                name,
		Version:            version,
		Family:             family,
		Options:            options,
		Subcommands:        subs,
		PromptFlag:         promptFlag,
		NonInteractiveFlag: nonInteractiveFlag,
		Examples:           examples,
		InteractionMode:    classifyInteraction(nonInteractiveFlag, helpText),
		Timestamp:          a.now().UTC(),
		Success:            true,
	}
	if err := a.store.Put(p); err != nil {
		logging.Debugf("analyzer: persist pattern for %s: %v", name, err)
	}
	return a.withEnhanced(p, desc, opts), nil
}

// AnalyzeAll analyses the named CLIs concurrently. Each CLI gets its own
// budget; an over-budget or failed analysis is reported as a degraded
// pattern and never blocks the others. The whole pass is bounded.
func (a *Analyzer) AnalyzeAll(ctx context.Context, names []string, opts Options) map[string]*Pattern {
	ctx, cancel := context.WithTimeout(ctx, overallBudget)
	defer cancel()

	var mu sync.Mutex
	results := make(map[string]*Pattern, len(names))

	g, ctx := errgroup.WithContext(ctx)
	for _, name := range names {
		name := name
		g.Go(func() error {
			cliCtx, cliCancel := context.WithTimeout(ctx, perCLIBudget)
			defer cliCancel()

			p, err := a.Analyze(cliCtx, name, opts)
			if err != nil {
				p = &Pattern{
					CLI:       name,
					Success:   false,
					Error:     err.Error(),
					Timestamp: a.now().UTC(),
				}
			}
			mu.Lock()
			results[name] = p
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return results
}

// withEnhanced attaches the capability block when requested. Always
// returns a value distinct from the cache.
func (a *Analyzer) withEnhanced(p *Pattern, desc *registry.Descriptor, opts Options) *Pattern {
	out := p.Clone()
	if opts.Enhanced {
		out.Capabilities = &SkillCapabilities{
			NaturalLanguage: desc.Skills.NaturalLanguage,
			RequiresPrefix:  desc.Skills.RequiresPrefix,
			Keywords:        append([]string(nil), desc.Skills.Keywords...),
		}
	}
	return out
}

// probeHelp tries each help probe in order and returns the first
// non-empty output, along with the argv of the last attempt.
func (a *Analyzer) probeHelp(ctx context.Context, desc *registry.Descriptor) (string, []string) {
	var lastArgv []string
	for _, probe := range desc.HelpProbes {
		lastArgv = append([]string{desc.Binary}, probe...)
		out, err := a.runProbe(ctx, desc.Binary, probe)
		if err != nil && out == "" {
			logging.Debugf("analyzer: probe %v: %v", lastArgv, err)
			continue
		}
		if strings.TrimSpace(out) != "" {
			return out, lastArgv
		}
	}
	return "", lastArgv
}

// runHelpProbe spawns the binary with a short timeout. Output on either
// stream counts: several CLIs print help to stderr.
func runHelpProbe(ctx context.Context, binary string, args []string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, helpTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Env = append(cmd.Environ(), "FORCE_COLOR=0")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()

	out := stdout.String()
	if strings.TrimSpace(out) == "" {
		out = stderr.String()
	}
	return out, err
}
