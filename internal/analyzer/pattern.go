// Package analyzer derives invocation knowledge from a CLI's help output.
//
// Descriptors (package registry) say how a CLI should be called; patterns
// say how the installed build actually behaves. Patterns are derived
// data: computed lazily from help probes, cached per (cli, version), and
// recomputed when the version changes or the cache entry goes stale.
package analyzer

import (
	"regexp"
	"strings"
	"time"
)

// Family tags the vendor lineage of a CLI's help format.
type Family string

const (
	FamilyAnthropic Family = "anthropic"
	FamilyGoogle    Family = "google"
	FamilyOpenAI    Family = "openai"
	FamilyAlibaba   Family = "alibaba"
	FamilyGitHub    Family = "github"
	FamilyGeneric   Family = "generic"
)

// InteractionMode classifies how a CLI expects to be driven.
type InteractionMode string

const (
	ModeInteractive    InteractionMode = "interactive"
	ModeNonInteractive InteractionMode = "non-interactive"
	ModeStdinSupport   InteractionMode = "stdin-support"
	ModeBatch          InteractionMode = "batch-mode"
)

// Subcommand is one entry from a CLI's command listing.
type Subcommand struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Failure records the last failed analysis attempt for a CLI.
type Failure struct {
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
	Attempts  int       `json:"attempts"`
	Argv      []string  `json:"argv,omitempty"`
}

// SkillCapabilities is the enhanced capability block attached on request.
type SkillCapabilities struct {
	NaturalLanguage bool     `json:"naturalLanguage"`
	RequiresPrefix  bool     `json:"requiresPrefix"`
	Keywords        []string `json:"keywords,omitempty"`
}

// Pattern is the cached, derived knowledge about one CLI.
type Pattern struct {
	CLI                string             `json:"cli"`
	Version            string             `json:"version"`
	Family             Family             `json:"family"`
	Options            []string           `json:"options"`
	Subcommands        []Subcommand       `json:"subcommands"`
	PromptFlag         string             `json:"promptFlag,omitempty"`
	NonInteractiveFlag string             `json:"nonInteractiveFlag,omitempty"`
	Examples           []string           `json:"examples"`
	InteractionMode    InteractionMode    `json:"interactionMode"`
	Timestamp          time.Time          `json:"timestamp"`
	Success            bool               `json:"success"`
	Error              string             `json:"error,omitempty"`
	LastFailure        *Failure           `json:"lastFailure,omitempty"`
	Capabilities       *SkillCapabilities `json:"capabilities,omitempty"`
}

// Clone returns a deep copy. Cached patterns are never handed out
// directly so callers cannot mutate the cache.
func (p *Pattern) Clone() *Pattern {
	out := *p
	out.Options = append([]string(nil), p.Options...)
	out.Subcommands = append([]Subcommand(nil), p.Subcommands...)
	out.Examples = append([]string(nil), p.Examples...)
	if p.LastFailure != nil {
		f := *p.LastFailure
		f.Argv = append([]string(nil), p.LastFailure.Argv...)
		out.LastFailure = &f
	}
	if p.Capabilities != nil {
		c := *p.Capabilities
		c.Keywords = append([]string(nil), p.Capabilities.Keywords...)
		out.Capabilities = &c
	}
	return &out
}

// familyRules holds the extraction expressions for one help-text dialect.
type familyRules struct {
	option     *regexp.Regexp
	subcommand *regexp.Regexp
	example    *regexp.Regexp
}

// Extraction expressions per family. Anthropic-style CLIs (claude) print
// commander-style "  -p, --print  desc" lines; google-style (gemini,
// qwen, iflow) print yargs-style "  --yolo   desc  [boolean]" lines;
// openai-style (codex) prints clap-style options with subcommand tables.
var extractionRules = map[Family]familyRules{
	FamilyAnthropic: {
		option:     regexp.MustCompile(`(?m)^\s{2,}(?:-\w,\s+)?(--?[a-zA-Z][\w-]*)`),
		subcommand: regexp.MustCompile(`(?m)^\s{2,}([a-z][\w-]+)\s{2,}(\S.*)$`),
		example:    regexp.MustCompile(`(?m)^\s*\$\s+(claude\b.*)$`),
	},
	FamilyGoogle: {
		option:     regexp.MustCompile(`(?m)^\s{2,}(?:-\w,\s+)?(--?[a-zA-Z][\w-]*)`),
		subcommand: regexp.MustCompile(`(?m)^\s{2,}\S+\s+([a-z][\w-]+)\s{2,}(\S.*?)(?:\s+\[\w+\])?$`),
		example:    regexp.MustCompile(`(?m)^\s{2,}((?:gemini|qwen|iflow)\b\s+\S.*)$`),
	},
	FamilyOpenAI: {
		option:     regexp.MustCompile(`(?m)^\s{2,}(?:-\w,\s+)?(--?[a-zA-Z][\w-]*)`),
		subcommand: regexp.MustCompile(`(?m)^\s{2,}([a-z][\w-]+)\s{2,}(\S.*)$`),
		example:    regexp.MustCompile(`(?m)^\s*\$?\s*(codex\b\s+\S.*)$`),
	},
	FamilyAlibaba: {
		option:     regexp.MustCompile(`(?m)^\s{2,}(?:-\w,\s+)?(--?[a-zA-Z][\w-]*)`),
		subcommand: regexp.MustCompile(`(?m)^\s{2,}([a-z][\w-]+)\s{2,}(\S.*)$`),
		example:    regexp.MustCompile(`(?m)^\s{2,}((?:qwen|qodercli)\b\s+\S.*)$`),
	},
	FamilyGitHub: {
		option:     regexp.MustCompile(`(?m)^\s{2,}(?:-\w,\s+)?(--?[a-zA-Z][\w-]*)`),
		subcommand: regexp.MustCompile(`(?m)^\s{2,}([a-z][\w-]+):\s+(\S.*)$`),
		example:    regexp.MustCompile(`(?m)^\s*\$\s+((?:gh\s+)?copilot\b.*)$`),
	},
	FamilyGeneric: {
		option:     regexp.MustCompile(`(?m)^\s+(?:-\w,\s+)?(--?[a-zA-Z][\w-]*)`),
		subcommand: regexp.MustCompile(`(?m)^\s{2,}([a-z][\w-]+)\s{2,}(\S.*)$`),
		example:    regexp.MustCompile(`(?mi)^\s*(?:\$\s+)?(?:example:?\s+)?(\S+\s+--?\S.*)$`),
	},
}

// Name-based family hints, checked before help-text scanning.
var familyByName = map[string]Family{
	"claude":    FamilyAnthropic,
	"gemini":    FamilyGoogle,
	"qwen":      FamilyAlibaba,
	"iflow":     FamilyAlibaba,
	"qodercli":  FamilyAlibaba,
	"codebuddy": FamilyGeneric,
	"codex":     FamilyOpenAI,
	"copilot":   FamilyGitHub,
	"kode":      FamilyAnthropic,
}

// Help-text substrings that identify a family when the name is unknown.
var familyMarkers = []struct {
	marker string
	family Family
}{
	{"anthropic", FamilyAnthropic},
	{"claude", FamilyAnthropic},
	{"google", FamilyGoogle},
	{"gemini", FamilyGoogle},
	{"openai", FamilyOpenAI},
	{"codex", FamilyOpenAI},
	{"alibaba", FamilyAlibaba},
	{"qwen", FamilyAlibaba},
	{"github", FamilyGitHub},
	{"copilot", FamilyGitHub},
}

// DetectFamily picks a family first by name heuristics, then by
// substring scan of the help text, defaulting to generic.
func DetectFamily(name, helpText string) Family {
	if f, ok := familyByName[strings.ToLower(name)]; ok {
		return f
	}
	lower := strings.ToLower(helpText)
	for _, m := range familyMarkers {
		if strings.Contains(lower, m.marker) {
			return m.family
		}
	}
	return FamilyGeneric
}

var (
	promptFlagRe  = regexp.MustCompile(`prompt|input|query|question`)
	nonInteractRe = regexp.MustCompile(`non-interactive|batch|no-input|stdin|print|pipe|exit`)
)

// extractPatterns pulls options, subcommands and examples out of help
// text using the family's expressions, then applies the prompt-flag and
// non-interactive-flag heuristics.
func extractPatterns(family Family, helpText string) (opts []string, subs []Subcommand, examples []string, promptFlag, nonInteractiveFlag string) {
	rules, ok := extractionRules[family]
	if !ok {
		rules = extractionRules[FamilyGeneric]
	}

	seen := make(map[string]bool)
	for _, m := range rules.option.FindAllStringSubmatch(helpText, -1) {
		flag := m[1]
		if seen[flag] {
			continue
		}
		seen[flag] = true
		opts = append(opts, flag)
	}

	for _, m := range rules.subcommand.FindAllStringSubmatch(helpText, -1) {
		name := m[1]
		// Option lines also match loose subcommand expressions
		if strings.HasPrefix(name, "-") || seen["--"+name] {
			continue
		}
		subs = append(subs, Subcommand{Name: name, Description: strings.TrimSpace(m[2])})
	}

	for _, m := range rules.example.FindAllStringSubmatch(helpText, -1) {
		examples = append(examples, strings.TrimSpace(m[1]))
	}

	for _, flag := range opts {
		bare := strings.TrimLeft(flag, "-")
		if promptFlag == "" && promptFlagRe.MatchString(bare) {
			promptFlag = flag
		}
		if nonInteractiveFlag == "" && nonInteractRe.MatchString(bare) {
			nonInteractiveFlag = flag
		}
	}
	return
}

// classifyInteraction decides the interaction mode from the discovered
// non-interactive flag and the help text.
func classifyInteraction(nonInteractiveFlag, helpText string) InteractionMode {
	if nonInteractiveFlag != "" {
		return ModeNonInteractive
	}
	lower := strings.ToLower(helpText)
	if strings.Contains(lower, "stdin") || strings.Contains(lower, "pipe") {
		return ModeStdinSupport
	}
	if strings.Contains(lower, "batch") || strings.Contains(lower, "script") {
		return ModeBatch
	}
	return ModeInteractive
}
