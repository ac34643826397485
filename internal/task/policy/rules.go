package policy

import (
	"slices"
	"strings"
)

var (
	// DefaultDeniedVerbs are destructive, network, privilege, version-control and container-admin commands.
	DefaultDeniedVerbs = []string{
		"rm", "curl", "wget", "mv", "cp", "sudo", "apt", "yum", "dnf",
		"del", "rmdir", "format", "git", "ssh", "scp", "netcat", "nc", "docker", "kubectl",
	}

	// DefaultMetacharacters cover sequencing, piping, substitution and redirection.
	DefaultMetacharacters = []string{";", "&&", "||", "|", "`", "$(", "<", ">"}

	// DefaultAllowedVerbs is the allow-list; a command must start with one of these.
	DefaultAllowedVerbs = []string{"echo"}
)

// Default returns the reference policy: deny-list, then metacharacters, then allow-list.
func Default() *Policy {
	return New(
		DeniedVerbs{Verbs: DefaultDeniedVerbs},
		Metacharacters{Tokens: DefaultMetacharacters},
		AllowedVerbs{Verbs: DefaultAllowedVerbs},
	)
}

// DeniedVerbs rejects commands that start with one of Verbs followed by a space.
type DeniedVerbs struct {
	Verbs []string
}

func (r DeniedVerbs) Name() string { return "denied-verb" }

func (r DeniedVerbs) Check(normalized string) bool {
	return !slices.ContainsFunc(r.Verbs, func(verb string) bool {
		return strings.HasPrefix(normalized, strings.ToLower(verb)+" ")
	})
}

// Metacharacters rejects commands containing any of Tokens anywhere.
type Metacharacters struct {
	Tokens []string
}

func (r Metacharacters) Name() string { return "metacharacter" }

func (r Metacharacters) Check(normalized string) bool {
	return !slices.ContainsFunc(r.Tokens, func(token string) bool {
		return token != "" && strings.Contains(normalized, token)
	})
}

// AllowedVerbs accepts only commands that start with one of Verbs followed by a space.
type AllowedVerbs struct {
	Verbs []string
}

func (r AllowedVerbs) Name() string { return "allowed-verb" }

func (r AllowedVerbs) Check(normalized string) bool {
	return slices.ContainsFunc(r.Verbs, func(verb string) bool {
		return strings.HasPrefix(normalized, strings.ToLower(verb)+" ")
	})
}
