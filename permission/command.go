package permission

import (
	"fmt"
	"slices"
	"strings"

	"github.com/xraph/bastion/role"
)

// CommandID is a fully qualified administrative command, "namespace.name".
type CommandID string

// ParseCommandID validates s and returns it as a CommandID.
func ParseCommandID(s string) (CommandID, error) {
	ns, name, ok := strings.Cut(s, ".")
	if !ok {
		return "", fmt.Errorf("command %q: missing namespace", s)
	}
	if !role.Namespace(ns).Valid() {
		return "", fmt.Errorf("command %q: unknown namespace %q", s, ns)
	}
	if !validName(name) {
		return "", fmt.Errorf("command %q: invalid name %q", s, name)
	}
	return CommandID(s), nil
}

// MustParseCommandID is ParseCommandID that panics on error.
func MustParseCommandID(s string) CommandID {
	c, err := ParseCommandID(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Namespace returns the namespace segment.
func (c CommandID) Namespace() role.Namespace {
	ns, _, _ := strings.Cut(string(c), ".")
	return role.Namespace(ns)
}

// Name returns the command name without its namespace.
func (c CommandID) Name() string {
	_, name, _ := strings.Cut(string(c), ".")
	return name
}

func (c CommandID) String() string { return string(c) }

// ParseCommandIDs parses and de-duplicates a list of commands, sorted.
func ParseCommandIDs(raw []string) ([]CommandID, error) {
	out := make([]CommandID, 0, len(raw))
	for _, r := range raw {
		c, err := ParseCommandID(r)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

// CommandStrings converts commands to plain strings.
func CommandStrings(cs []CommandID) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = string(c)
	}
	return out
}

func validName(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '_' {
			return false
		}
	}
	return true
}
