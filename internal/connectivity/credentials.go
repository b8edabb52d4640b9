package connectivity

import (
	"errors"
	"fmt"
)

const (
	// SecurityWPA2 requires an 8 to 63 character passphrase.
	SecurityWPA2 = "WPA2"
	// SecurityOpen requires an empty passphrase.
	SecurityOpen = "OPEN"

	maxSSIDLength       = 32
	minPassphraseLength = 8
	maxPassphraseLength = 63
)

// ErrMissingCredentials is returned when Wi-Fi credentials are not
// configured.
var ErrMissingCredentials = errors.New("wifi credentials not configured")

// Credentials identify the Wi-Fi network to associate with.
type Credentials struct {
	SSID     string
	Password string
	// Security is WPA2 or OPEN. Empty means WPA2.
	Security string
}

// SecurityType returns the effective security type.
func (c Credentials) SecurityType() string {
	if c.Security == "" {
		return SecurityWPA2
	}
	return c.Security
}

// Validate checks the credentials before any connection attempt.
func (c Credentials) Validate() error {
	if c.SSID == "" {
		return fmt.Errorf("%w: SSID is empty", ErrMissingCredentials)
	}
	if len(c.SSID) > maxSSIDLength {
		return fmt.Errorf("WiFi SSID too long (max %d chars): %d chars", maxSSIDLength, len(c.SSID))
	}

	switch c.SecurityType() {
	case SecurityWPA2:
		if c.Password == "" {
			return fmt.Errorf("%w: password required for WPA2 security", ErrMissingCredentials)
		}
		if len(c.Password) < minPassphraseLength {
			return fmt.Errorf("WPA2 password too short (min %d chars): %d chars", minPassphraseLength, len(c.Password))
		}
		if len(c.Password) > maxPassphraseLength {
			return fmt.Errorf("WPA2 password too long (max %d chars): %d chars", maxPassphraseLength, len(c.Password))
		}
	case SecurityOpen:
		if c.Password != "" {
			return errors.New("WiFi password should be empty for open networks")
		}
	default:
		return fmt.Errorf("WiFi security type must be 'WPA2' or 'OPEN', got '%s'", c.Security)
	}
	return nil
}
