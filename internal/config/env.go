package config

import (
	"os"

	"github.com/muurk/pqcoap/internal/logging"
)

// Environment overrides applied by ApplyEnv, along with
// logging.LogLevelEnvVar. The key-exchange override
// (security.OverrideEnvVar) is resolved by the security package.
const (
	WiFiSSIDEnvVar     = "PQCOAP_WIFI_SSID"
	WiFiPasswordEnvVar = "PQCOAP_WIFI_PASSWORD"
)

// ApplyEnv overlays environment variables onto c. lookup is os.LookupEnv
// when nil.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if v, ok := lookup(WiFiSSIDEnvVar); ok && v != "" {
		c.Network.SSID = v
	}
	if v, ok := lookup(WiFiPasswordEnvVar); ok && v != "" {
		c.Network.Password = v
	}
	if v, ok := lookup(logging.LogLevelEnvVar); ok && v != "" {
		c.Log.Level = v
	}
}
