package security

import (
	"crypto/tls"
	"errors"
	"testing"

	"github.com/pion/dtls/v3/pkg/crypto/elliptic"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantName string
		wantKind Kind
		wantOK   bool
	}{
		{"classical", "P256", "P256", KindClassical, true},
		{"lowercase", "x25519", "X25519", KindClassical, true},
		{"pure pq", "ML_KEM_768", "ML_KEM_768", KindPostQuantum, true},
		{"legacy kyber alias", "KYBER_LEVEL1", "ML_KEM_512", KindPostQuantum, true},
		{"hybrid legacy alias", "P384_KYBER_LEVEL3", "P384_ML_KEM_768", KindHybrid, true},
		{"dashes", "p521-ml-kem-1024", "P521_ML_KEM_1024", KindHybrid, true},
		{"tls name", "X25519MLKEM768", "X25519_ML_KEM_768", KindHybrid, true},
		{"unknown", "BRAINPOOL", "", 0, false},
		{"empty", "  ", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, ok := Lookup(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("Lookup(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if g.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", g.Name, tt.wantName)
			}
			if g.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", g.Kind, tt.wantKind)
			}
		})
	}
}

func TestGroupsOrdered(t *testing.T) {
	groups := Groups()
	if len(groups) != len(registry) {
		t.Fatalf("Groups() returned %d groups, want %d", len(groups), len(registry))
	}
	for i := 1; i < len(groups); i++ {
		prev, cur := groups[i-1], groups[i]
		if prev.Kind > cur.Kind || (prev.Kind == cur.Kind && prev.Level > cur.Level) {
			t.Errorf("Groups() not ordered at %d: %s before %s", i, prev.Name, cur.Name)
		}
	}
}

func TestClassicalComponent(t *testing.T) {
	hybrid, _ := Lookup("P384_ML_KEM_768")
	c, ok := hybrid.ClassicalComponent()
	if !ok || c.Name != "P384" {
		t.Errorf("ClassicalComponent() = %q, %v, want P384, true", c.Name, ok)
	}

	pure, _ := Lookup("ML_KEM_1024")
	if _, ok := pure.ClassicalComponent(); ok {
		t.Error("pure post-quantum group should have no classical component")
	}
}

func TestSelect(t *testing.T) {
	tests := []struct {
		name       string
		override   string
		configured string
		def        string
		wantGroup  string
		wantSource Source
		wantErr    error
	}{
		{"default only", "", "", DefaultPQCGroup, "P384_ML_KEM_768", SourceDefault, nil},
		{"config beats default", "", "P256", DefaultPQCGroup, "P256", SourceConfig, nil},
		{"override beats config", "X25519", "P256", DefaultPQCGroup, "X25519", SourceOverride, nil},
		{"override list first entry", ":P521:P256", "", DefaultClassicalGroup, "P521", SourceOverride, nil},
		{"unknown override", "NOPE", "P256", DefaultPQCGroup, "", 0, ErrUnknownGroup},
		{"nothing", "", "", "", "", SourceDefault, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel, err := Select(tt.override, tt.configured, tt.def)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Select() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Select() unexpected error: %v", err)
			}
			if sel.Group.Name != tt.wantGroup {
				t.Errorf("Group = %q, want %q", sel.Group.Name, tt.wantGroup)
			}
			if sel.Source != tt.wantSource {
				t.Errorf("Source = %v, want %v", sel.Source, tt.wantSource)
			}
		})
	}
}

func TestVariantDefaultGroup(t *testing.T) {
	if got := VariantClassical.DefaultGroup(); got != DefaultClassicalGroup {
		t.Errorf("classical default = %q, want %q", got, DefaultClassicalGroup)
	}
	if got := VariantPQC.DefaultGroup(); got != DefaultPQCGroup {
		t.Errorf("pqc default = %q, want %q", got, DefaultPQCGroup)
	}
}

func mustSelection(t *testing.T, name string) Selection {
	t.Helper()
	g, ok := Lookup(name)
	if !ok {
		t.Fatalf("group %q not registered", name)
	}
	return Selection{Group: g, Source: SourceConfig}
}

func TestTLSConfig(t *testing.T) {
	t.Run("hybrid supported", func(t *testing.T) {
		c := Config{Selection: mustSelection(t, "X25519_ML_KEM_768")}
		cfg, share, err := c.TLSConfig("127.0.0.1")
		if err != nil {
			t.Fatalf("TLSConfig() error: %v", err)
		}
		if share.FellBack {
			t.Error("FellBack = true, want false")
		}
		if len(cfg.CurvePreferences) != 1 || cfg.CurvePreferences[0] != tls.X25519MLKEM768 {
			t.Errorf("CurvePreferences = %v, want [X25519MLKEM768]", cfg.CurvePreferences)
		}
		if cfg.MinVersion != tls.VersionTLS13 {
			t.Errorf("MinVersion = %x, want TLS 1.3", cfg.MinVersion)
		}
		if !cfg.InsecureSkipVerify {
			t.Error("InsecureSkipVerify should be set when VerifyPeer is false")
		}
	})

	t.Run("hybrid falls back to classical component", func(t *testing.T) {
		c := Config{Selection: mustSelection(t, "P384_ML_KEM_768"), Fallback: true, VerifyPeer: true}
		cfg, share, err := c.TLSConfig("device.local")
		if err != nil {
			t.Fatalf("TLSConfig() error: %v", err)
		}
		if !share.FellBack || share.Applied.Name != "P384" {
			t.Errorf("share = %+v, want fallback to P384", share)
		}
		if cfg.CurvePreferences[0] != tls.CurveP384 {
			t.Errorf("CurvePreferences = %v, want [P384]", cfg.CurvePreferences)
		}
		if cfg.InsecureSkipVerify {
			t.Error("InsecureSkipVerify should be clear when VerifyPeer is true")
		}
	})

	t.Run("pure pq falls back to defaults", func(t *testing.T) {
		c := Config{Selection: mustSelection(t, "ML_KEM_512"), Fallback: true}
		cfg, share, err := c.TLSConfig("")
		if err != nil {
			t.Fatalf("TLSConfig() error: %v", err)
		}
		if share.AppliedName() != "default" || cfg.CurvePreferences != nil {
			t.Errorf("expected backend defaults, got %s %v", share.AppliedName(), cfg.CurvePreferences)
		}
	})

	t.Run("no fallback", func(t *testing.T) {
		c := Config{Selection: mustSelection(t, "P384_ML_KEM_768")}
		if _, _, err := c.TLSConfig(""); !errors.Is(err, ErrUnsupportedGroup) {
			t.Errorf("TLSConfig() error = %v, want ErrUnsupportedGroup", err)
		}
	})
}

func TestDTLSConfig(t *testing.T) {
	t.Run("classical curve", func(t *testing.T) {
		c := Config{Selection: mustSelection(t, "X25519")}
		cfg, share, err := c.DTLSConfig("127.0.0.1", nil)
		if err != nil {
			t.Fatalf("DTLSConfig() error: %v", err)
		}
		if share.Applied.Name != "X25519" {
			t.Errorf("Applied = %q, want X25519", share.Applied.Name)
		}
		if len(cfg.EllipticCurves) != 1 || cfg.EllipticCurves[0] != elliptic.X25519 {
			t.Errorf("EllipticCurves = %v, want [X25519]", cfg.EllipticCurves)
		}
	})

	t.Run("p521 hybrid has no dtls curve", func(t *testing.T) {
		c := Config{Selection: mustSelection(t, "P521_KYBER_LEVEL5"), Fallback: true}
		cfg, share, err := c.DTLSConfig("", nil)
		if err != nil {
			t.Fatalf("DTLSConfig() error: %v", err)
		}
		if !share.FellBack || !share.Applied.IsZero() {
			t.Errorf("share = %+v, want fallback to backend defaults", share)
		}
		if cfg.EllipticCurves != nil {
			t.Errorf("EllipticCurves = %v, want nil", cfg.EllipticCurves)
		}
	})

	t.Run("psk", func(t *testing.T) {
		c := Config{
			Selection:   mustSelection(t, "P256"),
			PSKIdentity: "device-1",
			PSK:         []byte("secret"),
		}
		cfg, _, err := c.DTLSConfig("", nil)
		if err != nil {
			t.Fatalf("DTLSConfig() error: %v", err)
		}
		if cfg.PSK == nil {
			t.Fatal("PSK callback not set")
		}
		key, err := cfg.PSK([]byte("hint"))
		if err != nil || string(key) != "secret" {
			t.Errorf("PSK() = %q, %v, want secret", key, err)
		}
		if string(cfg.PSKIdentityHint) != "device-1" {
			t.Errorf("PSKIdentityHint = %q, want device-1", cfg.PSKIdentityHint)
		}
	})
}

func TestLoadPKI_IncompletePair(t *testing.T) {
	var c Config
	if err := c.LoadPKI(PKIFiles{CertFile: "client.pem"}); !errors.Is(err, ErrIncompleteCertificate) {
		t.Errorf("LoadPKI() error = %v, want ErrIncompleteCertificate", err)
	}
}
