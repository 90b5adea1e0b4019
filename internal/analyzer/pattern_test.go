package analyzer

import (
	"testing"
)

const claudeHelp = `Usage: claude [options] [command] [prompt]

Claude Code - starts an interactive session by default, use -p/--print for
non-interactive output

Options:
  -p, --print                     Print response and exit (useful for pipes)
  -c, --continue                  Continue the most recent conversation
  --dangerously-skip-permissions  Bypass all permission checks
  --allowed-tools <tools...>      Comma-separated list of tool names
  -h, --help                      Display help for command

Commands:
  config     Manage configuration
  mcp        Configure and manage MCP servers

Examples:
  $ claude -p "summarize this file"
`

const geminiHelp = `gemini [options]

Gemini CLI - Launch an interactive CLI, use -p/--prompt for non-interactive
mode

Options:
  -p, --prompt   Prompt. Appended to input on stdin (if any)  [string]
  -y, --yolo     Automatically accept all actions             [boolean]
  -h, --help     Show help                                    [boolean]
`

const plainHelp = `sometool - do things

  --input FILE    read the task from FILE
  --batch         run without a terminal
  --verbose       chatty output
`

func TestDetectFamily(t *testing.T) {
	tests := []struct {
		name string
		cli  string
		help string
		want Family
	}{
		{"claude by name", "claude", "", FamilyAnthropic},
		{"kode maps to anthropic", "kode", "", FamilyAnthropic},
		{"gemini by name", "gemini", "", FamilyGoogle},
		{"qwen by name", "qwen", "", FamilyAlibaba},
		{"iflow by name", "iflow", "", FamilyAlibaba},
		{"codex by name", "codex", "", FamilyOpenAI},
		{"copilot by name", "copilot", "", FamilyGitHub},
		{"codebuddy is generic", "codebuddy", "", FamilyGeneric},
		{"unknown with anthropic marker", "mystery", "powered by Anthropic", FamilyAnthropic},
		{"unknown with gemini marker", "mystery", "the Gemini model", FamilyGoogle},
		{"unknown no markers", "mystery", "does stuff", FamilyGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectFamily(tt.cli, tt.help); got != tt.want {
				t.Errorf("DetectFamily(%q) = %q, want %q", tt.cli, got, tt.want)
			}
		})
	}
}

func TestExtractPatternsClaude(t *testing.T) {
	opts, subs, examples, _, nonInteractive := extractPatterns(FamilyAnthropic, claudeHelp)

	wantOpts := map[string]bool{
		"--print": true, "--continue": true,
		"--dangerously-skip-permissions": true, "--allowed-tools": true,
	}
	found := make(map[string]bool)
	for _, o := range opts {
		found[o] = true
	}
	for o := range wantOpts {
		if !found[o] {
			t.Errorf("option %q not extracted from %v", o, opts)
		}
	}

	if nonInteractive != "--print" {
		t.Errorf("nonInteractiveFlag = %q, want --print", nonInteractive)
	}

	var haveConfig bool
	for _, s := range subs {
		if s.Name == "config" {
			haveConfig = true
		}
	}
	if !haveConfig {
		t.Errorf("subcommand config not extracted from %v", subs)
	}

	if len(examples) == 0 {
		t.Errorf("no examples extracted")
	}
}

func TestExtractPatternsPromptFlag(t *testing.T) {
	_, _, _, promptFlag, _ := extractPatterns(FamilyGoogle, geminiHelp)
	if promptFlag != "--prompt" {
		t.Errorf("promptFlag = %q, want --prompt", promptFlag)
	}
}

func TestExtractPatternsGeneric(t *testing.T) {
	opts, _, _, promptFlag, nonInteractive := extractPatterns(FamilyGeneric, plainHelp)
	if len(opts) != 3 {
		t.Errorf("opts = %v, want 3 flags", opts)
	}
	if promptFlag != "--input" {
		t.Errorf("promptFlag = %q, want --input", promptFlag)
	}
	if nonInteractive != "--batch" {
		t.Errorf("nonInteractiveFlag = %q, want --batch", nonInteractive)
	}
}

func TestClassifyInteraction(t *testing.T) {
	tests := []struct {
		name string
		flag string
		help string
		want InteractionMode
	}{
		{"flag wins", "--print", "anything", ModeNonInteractive},
		{"stdin support", "", "reads the prompt from stdin", ModeStdinSupport},
		{"batch mode", "", "suitable for batch processing", ModeBatch},
		{"default interactive", "", "a friendly REPL", ModeInteractive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyInteraction(tt.flag, tt.help); got != tt.want {
				t.Errorf("classifyInteraction(%q) = %q, want %q", tt.flag, got, tt.want)
			}
		})
	}
}

func TestPatternCloneIsDeep(t *testing.T) {
	p := &Pattern{
		CLI:     "qwen",
		Options: []string{"-y"},
		Capabilities: &SkillCapabilities{
			Keywords: []string{"skill"},
		},
	}
	c := p.Clone()
	c.Options[0] = "mutated"
	c.Capabilities.Keywords[0] = "mutated"

	if p.Options[0] != "-y" {
		t.Error("Clone shares Options backing array")
	}
	if p.Capabilities.Keywords[0] != "skill" {
		t.Error("Clone shares Capabilities keywords")
	}
}
