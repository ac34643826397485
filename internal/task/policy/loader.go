package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the on-disk shape of a policy.
//
//	allowedVerbs: [echo, date]
//	deniedVerbs: [rm, curl]
//	metacharacters: [";", "|"]
//
// An omitted list keeps its default, so the deny layers cannot be dropped by leaving them out.
type File struct {
	AllowedVerbs   []string `yaml:"allowedVerbs"`
	DeniedVerbs    []string `yaml:"deniedVerbs"`
	Metacharacters []string `yaml:"metacharacters"`
}

// Load reads a policy file. An empty path yields Default().
func Load(path string) (*Policy, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	return Parse(data)
}

// Parse builds a policy from YAML.
func Parse(data []byte) (*Policy, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse policy file: %w", err)
	}

	if len(f.AllowedVerbs) == 0 {
		f.AllowedVerbs = DefaultAllowedVerbs
	}
	if len(f.DeniedVerbs) == 0 {
		f.DeniedVerbs = DefaultDeniedVerbs
	}
	if len(f.Metacharacters) == 0 {
		f.Metacharacters = DefaultMetacharacters
	}

	return New(
		DeniedVerbs{Verbs: f.DeniedVerbs},
		Metacharacters{Tokens: f.Metacharacters},
		AllowedVerbs{Verbs: f.AllowedVerbs},
	), nil
}
