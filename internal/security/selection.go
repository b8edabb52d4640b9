package security

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// OverrideEnvVar names the environment variable that overrides the
	// configured group.
	OverrideEnvVar = "PQCOAP_GROUPS"

	// DefaultClassicalGroup is the compiled default of classical builds.
	DefaultClassicalGroup = "P256"
	// DefaultPQCGroup is the compiled default of post-quantum builds.
	DefaultPQCGroup = "P384_ML_KEM_768"
)

// ErrUnknownGroup is returned when a group name is not registered.
var ErrUnknownGroup = errors.New("unknown key exchange group")

// Source records where a group selection came from.
type Source int

const (
	SourceDefault Source = iota
	SourceConfig
	SourceOverride
)

func (s Source) String() string {
	switch s {
	case SourceOverride:
		return "environment override"
	case SourceConfig:
		return "configuration"
	default:
		return "compiled default"
	}
}

// Selection is a resolved key-exchange group.
type Selection struct {
	Group  Group
	Source Source
}

// Variant selects the compiled default group.
type Variant string

const (
	VariantClassical Variant = "classical"
	VariantPQC       Variant = "pqc"
)

// DefaultGroup returns the compiled default for a build variant.
func (v Variant) DefaultGroup() string {
	if v == VariantClassical {
		return DefaultClassicalGroup
	}
	return DefaultPQCGroup
}

// Select resolves the group with precedence override, then configured, then
// the compiled default. Only the first non-empty name is considered. The
// override may hold a colon separated list, of which the first entry wins.
func Select(override, configured, compiledDefault string) (Selection, error) {
	candidates := []struct {
		name   string
		source Source
	}{
		{firstListEntry(override), SourceOverride},
		{strings.TrimSpace(configured), SourceConfig},
		{strings.TrimSpace(compiledDefault), SourceDefault},
	}
	for _, c := range candidates {
		if c.name == "" {
			continue
		}
		g, ok := Lookup(c.name)
		if !ok {
			return Selection{}, fmt.Errorf("%w %q from %s", ErrUnknownGroup, c.name, c.source)
		}
		return Selection{Group: g, Source: c.source}, nil
	}
	return Selection{}, nil
}

func firstListEntry(list string) string {
	for _, part := range strings.Split(list, ":") {
		if part = strings.TrimSpace(part); part != "" {
			return part
		}
	}
	return ""
}
