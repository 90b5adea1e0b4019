// Package synth turns (descriptor, pattern, task) into a non-interactive
// argument vector. Synthesis is pure: the same inputs always produce the
// same argv, and nothing in the output can re-enable interactive
// confirmation.
package synth

import (
	"strings"

	"github.com/stigmergy/stig/internal/analyzer"
	"github.com/stigmergy/stig/internal/registry"
)

// Mode records how the prompt was shaped before composition.
type Mode string

const (
	ModeDirect           Mode = "direct"
	ModeWithContext      Mode = "with-context"
	ModeWithSkillRewrite Mode = "with-skill-rewrite"
)

// Context carries the optional board summary to prepend to the task.
type Context struct {
	IncludeContext bool
	ContextHeader  string
}

// skillPhrases is the static phrase-to-identifier mapping. Phrases are
// matched case-insensitively, more specific entries first, and at most
// one rewrite is applied per prompt.
var skillPhrases = []struct {
	phrase string
	ident  string
}{
	{"review the code", "code-review"},
	{"do a code review", "code-review"},
	{"code review", "code-review"},
	{"write unit tests", "unit-tests"},
	{"generate unit tests", "unit-tests"},
	{"add test coverage", "unit-tests"},
	{"write documentation", "write-docs"},
	{"document the code", "write-docs"},
	{"write a commit message", "commit-message"},
	{"explain the code", "explain-code"},
	{"fix the failing tests", "fix-tests"},
}

// Synthesize composes the argument vector for running the CLI
// non-interactively. The binary itself is not included; the supervisor
// prepends it. The returned mode reports whether the prompt was passed
// through, prefixed with board context, or rewritten for skill support.
func Synthesize(desc *registry.Descriptor, pattern *analyzer.Pattern, userPrompt string, ctx Context) ([]string, Mode) {
	prompt := userPrompt
	mode := ModeDirect

	if rewritten, ok := rewriteSkills(desc, prompt); ok {
		prompt = rewritten
		mode = ModeWithSkillRewrite
	}

	if ctx.IncludeContext && ctx.ContextHeader != "" {
		prompt = ctx.ContextHeader + "\n\n" + prompt
		if mode == ModeDirect {
			mode = ModeWithContext
		}
	}

	switch desc.Template {
	case registry.TemplateSkipPermissions:
		argv := []string{promptFlag(desc, pattern), prompt, "--dangerously-skip-permissions"}
		if len(desc.AllowedTools) > 0 {
			argv = append(argv, "--allowed-tools", strings.Join(desc.AllowedTools, ","))
		}
		return argv, mode

	case registry.TemplatePromptFlag:
		argv := []string{promptFlag(desc, pattern), prompt}
		return append(argv, desc.AutoApproveFlags...), mode

	default: // positional
		argv := []string{prompt}
		return append(argv, desc.AutoApproveFlags...), mode
	}
}

// promptFlag prefers the descriptor's documented flag, then the probed
// one, then the conventional -p.
func promptFlag(desc *registry.Descriptor, pattern *analyzer.Pattern) string {
	if desc.PromptFlag != "" {
		return desc.PromptFlag
	}
	if pattern != nil && pattern.PromptFlag != "" {
		return pattern.PromptFlag
	}
	return "-p"
}

// rewriteSkills maps a recognised skill phrase to the CLI's identifier.
// CLIs with no skill support get the prompt untouched.
func rewriteSkills(desc *registry.Descriptor, prompt string) (string, bool) {
	caps := desc.Skills
	if !caps.NaturalLanguage && !caps.RequiresPrefix {
		return prompt, false
	}

	lower := strings.ToLower(prompt)
	for _, sp := range skillPhrases {
		idx := strings.Index(lower, sp.phrase)
		if idx < 0 {
			continue
		}
		ident := sp.ident
		if caps.RequiresPrefix {
			ident = "skill: " + ident
		}
		return prompt[:idx] + ident + prompt[idx+len(sp.phrase):], true
	}
	return prompt, false
}
