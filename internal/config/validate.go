package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/multierr"

	"github.com/muurk/pqcoap/internal/logging"
	"github.com/muurk/pqcoap/internal/security"
	"github.com/muurk/pqcoap/internal/target"
)

// ErrInvalid marks every validation problem.
var ErrInvalid = errors.New("invalid configuration")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Validate checks the whole configuration and returns every problem found,
// combined with multierr. Use multierr.Errors to list them.
func (c *Config) Validate() error {
	var err error

	switch c.Network.Mode {
	case ModeHost:
	case ModeWiFi:
		if credErr := c.Credentials().Validate(); credErr != nil {
			err = multierr.Append(err, fmt.Errorf("network: %w", credErr))
		}
	default:
		err = multierr.Append(err, invalid("network.mode must be %q or %q, got %q", ModeHost, ModeWiFi, c.Network.Mode))
	}
	if c.Network.Attempts < 1 {
		err = multierr.Append(err, invalid("network.attempts must be at least 1, got %d", c.Network.Attempts))
	}
	if c.Network.RetryDelay < 0 {
		err = multierr.Append(err, invalid("network.retry_delay must not be negative"))
	}
	if c.Network.ReadyTimeout <= 0 {
		err = multierr.Append(err, invalid("network.ready_timeout must be positive"))
	}
	if c.Network.SettleDelay < 0 {
		err = multierr.Append(err, invalid("network.settle_delay must not be negative"))
	}

	switch security.Variant(c.Security.Variant) {
	case security.VariantClassical, security.VariantPQC:
	default:
		err = multierr.Append(err, invalid("security.variant must be %q or %q, got %q",
			security.VariantClassical, security.VariantPQC, c.Security.Variant))
	}
	if c.Security.Group != "" {
		if _, ok := security.Lookup(c.Security.Group); !ok {
			err = multierr.Append(err, invalid("security.group: unknown key exchange group %q", c.Security.Group))
		}
	}
	if (c.Security.CertFile == "") != (c.Security.KeyFile == "") {
		err = multierr.Append(err, fmt.Errorf("security: %w", security.ErrIncompleteCertificate))
	}
	if (c.Security.PSKIdentity == "") != (c.Security.PSK == "") {
		err = multierr.Append(err, invalid("security.psk_identity and security.psk must be given together"))
	}
	if c.Security.PSK != "" {
		if _, decErr := hex.DecodeString(c.Security.PSK); decErr != nil {
			err = multierr.Append(err, invalid("security.psk must be hex encoded: %v", decErr))
		}
	}

	if c.Exchange.PollSlice <= 0 {
		err = multierr.Append(err, invalid("exchange.poll_slice must be positive"))
	}
	if c.Exchange.DefaultLeisure < 0 {
		err = multierr.Append(err, invalid("exchange.default_leisure must not be negative"))
	}
	if c.Exchange.DefaultLeisure+c.Exchange.LeisureSlack <= 0 {
		err = multierr.Append(err, invalid("exchange wait budget must be positive"))
	}

	if c.Log.Level != "" && !logging.ValidLevel(c.Log.Level) {
		err = multierr.Append(err, invalid("log.level must be debug, info, warn or error, got %q", c.Log.Level))
	}

	names := make([]string, 0, len(c.Targets))
	for name := range c.Targets {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		t := c.Targets[name]
		if strings.ContainsAny(name, ":/") {
			err = multierr.Append(err, invalid("targets.%s: name must not contain ':' or '/'", name))
		}
		if _, parseErr := target.Parse(t.URI); parseErr != nil {
			err = multierr.Append(err, fmt.Errorf("targets.%s: %w", name, parseErr))
		}
		if t.Group != "" {
			if _, ok := security.Lookup(t.Group); !ok {
				err = multierr.Append(err, invalid("targets.%s.group: unknown key exchange group %q", name, t.Group))
			}
		}
	}

	return err
}

// PSKBytes decodes security.psk.
func (c *Config) PSKBytes() ([]byte, error) {
	if c.Security.PSK == "" {
		return nil, nil
	}
	return hex.DecodeString(c.Security.PSK)
}

// FormatValidationErrors formats a validation error into a user-friendly message.
func FormatValidationErrors(err error) string {
	errs := multierr.Errors(err)
	if len(errs) == 0 {
		return "No validation errors"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Configuration validation failed with %d error(s):\n", len(errs)))
	for i, e := range errs {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, e.Error()))
	}
	return sb.String()
}
