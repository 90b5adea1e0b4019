// Package registry holds the static table of known AI CLIs.
//
// Descriptors are configuration data: how to invoke a CLI, how to probe
// its version and help output, which flags disable interactive
// confirmation, and which sibling CLI to fall back to. Derived knowledge
// about a CLI (its observed help patterns) lives in the analyzer, never
// here.
package registry

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Template describes how a CLI accepts its prompt.
type Template string

const (
	// TemplatePositional passes the prompt as the first positional argument
	TemplatePositional Template = "positional"
	// TemplatePromptFlag passes the prompt behind a flag such as -p
	TemplatePromptFlag Template = "prompt-flag"
	// TemplateSkipPermissions is the prompt-flag form plus the
	// skip-permissions and allowed-tools flags (Claude style)
	TemplateSkipPermissions Template = "skip-permissions"
)

// versionProbeTimeout caps how long a version probe may run.
const versionProbeTimeout = 3 * time.Second

// SkillCaps describes whether a CLI understands skill/agent references
// embedded in natural-language prompts.
type SkillCaps struct {
	// NaturalLanguage is true when the CLI resolves skill phrases on its own
	NaturalLanguage bool `yaml:"natural_language"`
	// RequiresPrefix is true when skill identifiers need a "skill:" prefix
	RequiresPrefix bool `yaml:"requires_prefix"`
	// Keywords are phrases the CLI documents as skill/agent triggers
	Keywords []string `yaml:"keywords"`
}

// Descriptor is the immutable configuration for one registered CLI.
type Descriptor struct {
	// Name is the short identifier ("claude", "qwen", ...)
	Name string `yaml:"name"`
	// Binary is the executable to invoke
	Binary string `yaml:"binary"`
	// InstallHint tells the user how to install the CLI
	InstallHint string `yaml:"install_hint"`
	// VersionProbe is the argv producing a single-line version string
	VersionProbe []string `yaml:"version_probe"`
	// HelpProbes are tried in order until one yields help text
	HelpProbes [][]string `yaml:"help_probes"`
	// Template selects how the prompt is passed
	Template Template `yaml:"invocation_template"`
	// PromptFlag carries the prompt for flag-based templates
	PromptFlag string `yaml:"prompt_flag"`
	// AutoApproveFlags disable interactive confirmation
	AutoApproveFlags []string `yaml:"auto_approve_flags"`
	// AllowedTools is the tool list for the skip-permissions template
	AllowedTools []string `yaml:"allowed_tools"`
	// Fallback names the sibling CLI to try on persistent failure
	Fallback string `yaml:"fallback"`
	// ResumeCommand is the full argv that restores session context
	ResumeCommand []string `yaml:"resume_command"`
	// Skills describes skill/agent capabilities
	Skills SkillCaps `yaml:"skills"`
}

// Installed reports whether the CLI binary is available in PATH.
func (d *Descriptor) Installed() bool {
	_, err := exec.LookPath(d.Binary)
	return err == nil
}

// Version runs the version probe and returns its trimmed single-line output.
func (d *Descriptor) Version(ctx context.Context) (string, error) {
	if len(d.VersionProbe) == 0 {
		return "", fmt.Errorf("%s: no version probe configured", d.Name)
	}
	ctx, cancel := context.WithTimeout(ctx, versionProbeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, d.Binary, d.VersionProbe...)
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("%s version probe: %w", d.Name, err)
	}
	line := strings.TrimSpace(string(out))
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	return line, nil
}

// Registry is the read-mostly table of descriptors.
type Registry struct {
	descriptors map[string]*Descriptor
	order       []string
}

// New builds a registry from the given descriptors, preserving order.
func New(descriptors []*Descriptor) *Registry {
	r := &Registry{descriptors: make(map[string]*Descriptor, len(descriptors))}
	for _, d := range descriptors {
		if _, dup := r.descriptors[d.Name]; dup {
			continue
		}
		r.descriptors[d.Name] = d
		r.order = append(r.order, d.Name)
	}
	return r
}

// List returns all descriptors in registration order.
func (r *Registry) List() []*Descriptor {
	out := make([]*Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.descriptors[name])
	}
	return out
}

// Get returns the descriptor for name.
func (r *Registry) Get(name string) (*Descriptor, bool) {
	d, ok := r.descriptors[name]
	return d, ok
}

// FallbackOf returns the descriptor of name's fallback partner.
func (r *Registry) FallbackOf(name string) (*Descriptor, bool) {
	d, ok := r.descriptors[name]
	if !ok || d.Fallback == "" {
		return nil, false
	}
	fb, ok := r.descriptors[d.Fallback]
	return fb, ok
}

// Names returns the registered CLI names in order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// override is the user-editable subset of a descriptor.
// Only enumerated fields may be overridden; everything else is fixed.
type override struct {
	Binary           string   `yaml:"binary"`
	Template         Template `yaml:"invocation_template"`
	AutoApproveFlags []string `yaml:"auto_approve_flags"`
	Fallback         *string  `yaml:"fallback"`
}

type overrideFile struct {
	CLIs map[string]override `yaml:"clis"`
}

// ApplyOverrides merges the per-user registry override file into the
// registry. A missing file is not an error. Unknown CLI names are
// rejected so typos surface immediately.
func (r *Registry) ApplyOverrides(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var f overrideFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	for name, ov := range f.CLIs {
		d, ok := r.descriptors[name]
		if !ok {
			return fmt.Errorf("registry override for unknown CLI %q", name)
		}
		if ov.Binary != "" {
			d.Binary = ov.Binary
		}
		if ov.Template != "" {
			switch ov.Template {
			case TemplatePositional, TemplatePromptFlag, TemplateSkipPermissions:
				d.Template = ov.Template
			default:
				return fmt.Errorf("registry override for %q: unknown template %q", name, ov.Template)
			}
		}
		if ov.AutoApproveFlags != nil {
			d.AutoApproveFlags = ov.AutoApproveFlags
		}
		if ov.Fallback != nil {
			d.Fallback = *ov.Fallback
		}
	}
	return nil
}
