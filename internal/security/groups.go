// Package security holds the key-exchange group registry, group selection
// and the (D)TLS configuration builders used for secured CoAP sessions.
package security

import (
	"crypto/tls"
	"sort"
	"strings"

	"github.com/pion/dtls/v3/pkg/crypto/elliptic"
)

// Kind classifies a key-exchange group.
type Kind int

const (
	KindClassical Kind = iota
	KindPostQuantum
	KindHybrid
)

func (k Kind) String() string {
	switch k {
	case KindClassical:
		return "classical"
	case KindPostQuantum:
		return "post-quantum"
	case KindHybrid:
		return "hybrid"
	default:
		return "unknown"
	}
}

// Group is a named TLS key-exchange group.
type Group struct {
	Name    string
	Aliases []string
	Kind    Kind
	// Level is the NIST security category.
	Level int
	// Classical names the classical component of a hybrid group, or the
	// group itself for classical groups.
	Classical string
	// TLSCurve is the crypto/tls identifier, zero when crypto/tls cannot
	// negotiate the group.
	TLSCurve tls.CurveID
	// DTLSCurve is the pion/dtls identifier, zero when pion cannot negotiate
	// the group.
	DTLSCurve elliptic.Curve
}

// SupportsTLS reports whether crypto/tls can negotiate the group.
func (g Group) SupportsTLS() bool {
	return g.TLSCurve != 0
}

// SupportsDTLS reports whether pion/dtls can negotiate the group.
func (g Group) SupportsDTLS() bool {
	return g.DTLSCurve != 0
}

// IsZero reports whether g is the empty group, meaning backend defaults.
func (g Group) IsZero() bool {
	return g.Name == ""
}

var registry = []Group{
	{Name: "P256", Kind: KindClassical, Level: 1, Classical: "P256", TLSCurve: tls.CurveP256, DTLSCurve: elliptic.P256},
	{Name: "P384", Kind: KindClassical, Level: 3, Classical: "P384", TLSCurve: tls.CurveP384, DTLSCurve: elliptic.P384},
	{Name: "P521", Kind: KindClassical, Level: 5, Classical: "P521", TLSCurve: tls.CurveP521},
	{Name: "X25519", Kind: KindClassical, Level: 1, Classical: "X25519", TLSCurve: tls.X25519, DTLSCurve: elliptic.X25519},

	{Name: "ML_KEM_512", Aliases: []string{"KYBER_LEVEL1"}, Kind: KindPostQuantum, Level: 1},
	{Name: "ML_KEM_768", Aliases: []string{"KYBER_LEVEL3"}, Kind: KindPostQuantum, Level: 3},
	{Name: "ML_KEM_1024", Aliases: []string{"KYBER_LEVEL5"}, Kind: KindPostQuantum, Level: 5},

	{Name: "P256_ML_KEM_512", Aliases: []string{"P256_KYBER_LEVEL1"}, Kind: KindHybrid, Level: 1, Classical: "P256"},
	{Name: "P384_ML_KEM_768", Aliases: []string{"P384_KYBER_LEVEL3"}, Kind: KindHybrid, Level: 3, Classical: "P384"},
	{Name: "P521_ML_KEM_1024", Aliases: []string{"P521_KYBER_LEVEL5"}, Kind: KindHybrid, Level: 5, Classical: "P521"},
	{Name: "X25519_ML_KEM_768", Aliases: []string{"X25519MLKEM768"}, Kind: KindHybrid, Level: 3, Classical: "X25519", TLSCurve: tls.X25519MLKEM768},
}

func normalize(name string) string {
	name = strings.ToUpper(strings.TrimSpace(name))
	return strings.ReplaceAll(name, "-", "_")
}

// Lookup finds a group by name or alias, ignoring case and treating '-' as
// '_'.
func Lookup(name string) (Group, bool) {
	key := normalize(name)
	if key == "" {
		return Group{}, false
	}
	for _, g := range registry {
		if g.Name == key {
			return g, true
		}
		for _, alias := range g.Aliases {
			if alias == key {
				return g, true
			}
		}
	}
	return Group{}, false
}

// Groups returns every registered group ordered by kind then level.
func Groups() []Group {
	out := make([]Group, len(registry))
	copy(out, registry)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Level < out[j].Level
	})
	return out
}

// ClassicalComponent returns the classical group a hybrid falls back to.
// Pure post-quantum groups have none.
func (g Group) ClassicalComponent() (Group, bool) {
	if g.Classical == "" {
		return Group{}, false
	}
	return Lookup(g.Classical)
}
