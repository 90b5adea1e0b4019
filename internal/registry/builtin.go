package registry

// Builtin returns the shipping registry.
//
// The invocation data mirrors what each CLI documents for non-interactive
// use: claude's -p with --dangerously-skip-permissions, codex's exec
// subcommand with --full-auto, gemini's positional prompt with --yolo,
// and the -y family for the qwen-derived CLIs. Fallback pairs are
// deliberately non-symmetric (qwen<->iflow); the recovery coordinator
// never follows a fallback's own fallback, so no loop can form.
func Builtin() *Registry {
	return New([]*Descriptor{
		{
			Name:         "claude",
			Binary:       "claude",
			InstallHint:  "npm install -g @anthropic-ai/claude-code",
			VersionProbe: []string{"--version"},
			HelpProbes:   [][]string{{"--help"}, {"-h"}, {"help"}},
			Template:     TemplateSkipPermissions,
			PromptFlag:   "-p",
			AllowedTools: []string{"Bash", "Edit", "Read", "Write", "RunCommand", "ComputerTools"},
			Fallback:     "qwen",
			ResumeCommand: []string{
				"claude", "--continue", "--print", "Continue the previous task from where it stopped.",
			},
			Skills: SkillCaps{
				NaturalLanguage: true,
				Keywords:        []string{"skill", "agent", "subagent"},
			},
		},
		{
			Name:             "gemini",
			Binary:           "gemini",
			InstallHint:      "npm install -g @google/gemini-cli",
			VersionProbe:     []string{"--version"},
			HelpProbes:       [][]string{{"--help"}, {"-h"}},
			Template:         TemplatePositional,
			AutoApproveFlags: []string{"--yolo"},
			Fallback:         "qwen",
			ResumeCommand:    []string{"gemini", "--resume", "latest", "--yolo"},
			Skills: SkillCaps{
				NaturalLanguage: true,
				Keywords:        []string{"extension"},
			},
		},
		{
			Name:             "qwen",
			Binary:           "qwen",
			InstallHint:      "npm install -g @qwen-code/qwen-code",
			VersionProbe:     []string{"--version"},
			HelpProbes:       [][]string{{"--help"}, {"-h"}},
			Template:         TemplatePositional,
			AutoApproveFlags: []string{"-y"},
			Fallback:         "iflow",
			ResumeCommand:    []string{"qwen", "--resume", "-y"},
			Skills: SkillCaps{
				RequiresPrefix: true,
				Keywords:       []string{"skill"},
			},
		},
		{
			Name:             "iflow",
			Binary:           "iflow",
			InstallHint:      "npm install -g @iflow-ai/iflow-cli",
			VersionProbe:     []string{"--version"},
			HelpProbes:       [][]string{{"--help"}, {"-h"}},
			Template:         TemplatePositional,
			AutoApproveFlags: []string{"--yolo"},
			Fallback:         "qwen",
			ResumeCommand:    []string{"iflow", "--resume", "--yolo"},
			Skills: SkillCaps{
				RequiresPrefix: true,
				Keywords:       []string{"skill"},
			},
		},
		{
			Name:             "qodercli",
			Binary:           "qodercli",
			InstallHint:      "npm install -g @qoder/qoder-cli",
			VersionProbe:     []string{"--version"},
			HelpProbes:       [][]string{{"--help"}, {"-h"}, {"help"}},
			Template:         TemplatePromptFlag,
			PromptFlag:       "-p",
			AutoApproveFlags: []string{"-y"},
			Fallback:         "qwen",
			ResumeCommand:    []string{"qodercli", "--continue", "-y"},
		},
		{
			Name:             "codebuddy",
			Binary:           "codebuddy",
			InstallHint:      "npm install -g @tencent-ai/codebuddy-code",
			VersionProbe:     []string{"--version"},
			HelpProbes:       [][]string{{"--help"}, {"-h"}},
			Template:         TemplatePromptFlag,
			PromptFlag:       "-p",
			AutoApproveFlags: []string{"--yes"},
			Fallback:         "qwen",
			ResumeCommand:    []string{"codebuddy", "--continue", "--yes"},
		},
		{
			Name:             "codex",
			Binary:           "codex",
			InstallHint:      "npm install -g @openai/codex",
			VersionProbe:     []string{"--version"},
			HelpProbes:       [][]string{{"--help"}, {"exec", "--help"}, {"-h"}},
			Template:         TemplatePositional,
			AutoApproveFlags: []string{"--full-auto"},
			Fallback:         "claude",
			ResumeCommand:    []string{"codex", "exec", "resume", "--last", "--full-auto"},
		},
		{
			Name:             "copilot",
			Binary:           "copilot",
			InstallHint:      "npm install -g @github/copilot",
			VersionProbe:     []string{"--version"},
			HelpProbes:       [][]string{{"--help"}, {"-h"}},
			Template:         TemplatePromptFlag,
			PromptFlag:       "-p",
			AutoApproveFlags: []string{"--allow-all-tools"},
			Fallback:         "codex",
			ResumeCommand:    []string{"copilot", "--continue", "--allow-all-tools"},
			Skills: SkillCaps{
				NaturalLanguage: true,
				Keywords:        []string{"agent"},
			},
		},
		{
			Name:             "kode",
			Binary:           "kode",
			InstallHint:      "npm install -g @shareai-lab/kode",
			VersionProbe:     []string{"--version"},
			HelpProbes:       [][]string{{"--help"}, {"-h"}},
			Template:         TemplatePositional,
			AutoApproveFlags: []string{"-y"},
			Fallback:         "claude",
			ResumeCommand:    []string{"kode", "--resume", "-y"},
		},
	})
}
