package completion

import (
	"cmp"
	"fmt"
	"strings"
)

// Mode selects how far the assistant may go.
type Mode string

const (
	// ModeOperational allows full scripts and operational commands.
	ModeOperational Mode = "OPERATIONAL"
	// ModeConsultation restricts answers to explanations.
	ModeConsultation Mode = "CONSULTATION"
)

// ModeFor maps the subscription state to a mode.
func ModeFor(premium bool) Mode {
	if premium {
		return ModeOperational
	}
	return ModeConsultation
}

// Environment describes the user's machine so commands can be adapted to it.
type Environment struct {
	Distro     string `json:"distro,omitempty"`
	Shell      string `json:"shell,omitempty"`
	Root       string `json:"root,omitempty"`
	PkgManager string `json:"pkg_manager,omitempty"`
}

// SystemPrompt renders the instructions sent ahead of the user's query.
func SystemPrompt(mode Mode, env Environment) string {
	var b strings.Builder
	b.WriteString("You are KaliRoot, an expert cybersecurity assistant.\n\n")
	b.WriteString("USER ENVIRONMENT:\n")
	fmt.Fprintf(&b, "- System: %s\n", cmp.Or(env.Distro, "Linux"))
	fmt.Fprintf(&b, "- Shell: %s\n", cmp.Or(env.Shell, "bash"))
	fmt.Fprintf(&b, "- Root: %s\n", cmp.Or(env.Root, "No"))
	fmt.Fprintf(&b, "- Package manager: %s\n\n", cmp.Or(env.PkgManager, "apt"))
	fmt.Fprintf(&b, "MODE: %s\n", mode)
	if mode == ModeOperational {
		b.WriteString("You may produce complete scripts and operational commands.\n")
	} else {
		b.WriteString("Only give theoretical explanations. Complete scripts require Premium.\n")
	}
	b.WriteString("\nRULES:\n")
	b.WriteString("1. Answer in technical Spanish\n")
	b.WriteString("2. Use Markdown for code\n")
	b.WriteString("3. Refuse illegal requests (malware, DDoS, fraud)\n")
	b.WriteString("4. Adapt commands to the user's environment\n")
	return b.String()
}
