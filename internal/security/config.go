package security

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"

	piondtls "github.com/pion/dtls/v3"
	"github.com/pion/dtls/v3/pkg/crypto/elliptic"
	"github.com/pion/logging"
)

var (
	// ErrUnsupportedGroup is returned when the backend cannot apply the
	// selected group and fallback is disabled or impossible.
	ErrUnsupportedGroup = errors.New("key exchange group not supported by backend")
	// ErrIncompleteCertificate is returned when only one of certificate and
	// key is given.
	ErrIncompleteCertificate = errors.New("client certificate and key must be given together")
)

// Config is the security configuration of one session. It is read-only once
// built.
type Config struct {
	Selection Selection
	// VerifyPeer enables server certificate verification.
	VerifyPeer bool
	// Fallback allows the classical component of the selected group to be
	// used when the backend cannot apply the group itself.
	Fallback     bool
	RootCAs      *x509.CertPool
	Certificates []tls.Certificate
	PSKIdentity  string
	PSK          []byte
}

// PKIFiles locates PEM material on disk.
type PKIFiles struct {
	CAFile   string
	CertFile string
	KeyFile  string
}

// LoadPKI reads the CA bundle and client key pair into c.
func (c *Config) LoadPKI(files PKIFiles) error {
	if files.CAFile != "" {
		pem, err := os.ReadFile(files.CAFile)
		if err != nil {
			return fmt.Errorf("failed to read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return fmt.Errorf("no certificates found in %s", files.CAFile)
		}
		c.RootCAs = pool
	}

	if (files.CertFile == "") != (files.KeyFile == "") {
		return ErrIncompleteCertificate
	}
	if files.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(files.CertFile, files.KeyFile)
		if err != nil {
			return fmt.Errorf("failed to load client certificate: %w", err)
		}
		c.Certificates = []tls.Certificate{cert}
	}
	return nil
}

// KeyShare reports the group requested and the group applied to a
// handshake. An applied zero Group means the backend's own defaults.
type KeyShare struct {
	Requested Group
	Applied   Group
	FellBack  bool
}

// AppliedName returns the applied group name or "default".
func (k KeyShare) AppliedName() string {
	if k.Applied.IsZero() {
		return "default"
	}
	return k.Applied.Name
}

func (c Config) negotiate(supported func(Group) bool) (KeyShare, error) {
	requested := c.Selection.Group
	share := KeyShare{Requested: requested}
	if requested.IsZero() {
		return share, nil
	}
	if supported(requested) {
		share.Applied = requested
		return share, nil
	}
	if !c.Fallback {
		return share, fmt.Errorf("%w: %s", ErrUnsupportedGroup, requested.Name)
	}
	share.FellBack = true
	if classical, ok := requested.ClassicalComponent(); ok && supported(classical) {
		share.Applied = classical
	}
	return share, nil
}

// TLSConfig builds the client configuration for CoAP over TLS.
func (c Config) TLSConfig(serverName string) (*tls.Config, KeyShare, error) {
	share, err := c.negotiate(Group.SupportsTLS)
	if err != nil {
		return nil, share, err
	}

	cfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		ServerName:         serverName,
		InsecureSkipVerify: !c.VerifyPeer, //nolint:gosec // controlled by --verify-peer
		RootCAs:            c.RootCAs,
		Certificates:       c.Certificates,
		NextProtos:         []string{"coap"},
	}
	if !share.Applied.IsZero() {
		cfg.CurvePreferences = []tls.CurveID{share.Applied.TLSCurve}
		if share.Applied.Kind != KindClassical {
			cfg.MinVersion = tls.VersionTLS13
		}
	}
	return cfg, share, nil
}

// DTLSConfig builds the client configuration for CoAP over DTLS. PSK takes
// precedence over certificates when both are set.
func (c Config) DTLSConfig(serverName string, lf logging.LoggerFactory) (*piondtls.Config, KeyShare, error) {
	share, err := c.negotiate(Group.SupportsDTLS)
	if err != nil {
		return nil, share, err
	}

	cfg := &piondtls.Config{
		ServerName:           serverName,
		InsecureSkipVerify:   !c.VerifyPeer,
		RootCAs:              c.RootCAs,
		Certificates:         c.Certificates,
		ExtendedMasterSecret: piondtls.RequestExtendedMasterSecret,
		LoggerFactory:        lf,
	}
	if len(c.PSK) > 0 {
		psk := append([]byte(nil), c.PSK...)
		cfg.PSK = func([]byte) ([]byte, error) {
			return psk, nil
		}
		cfg.PSKIdentityHint = []byte(c.PSKIdentity)
		cfg.CipherSuites = []piondtls.CipherSuiteID{piondtls.TLS_PSK_WITH_AES_128_CCM_8}
		cfg.Certificates = nil
	}
	if !share.Applied.IsZero() {
		cfg.EllipticCurves = []elliptic.Curve{share.Applied.DTLSCurve}
	}
	return cfg, share, nil
}
