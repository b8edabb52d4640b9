package config

import (
	"time"

	"github.com/muurk/pqcoap/internal/connectivity"
	"github.com/muurk/pqcoap/internal/exchange"
	"github.com/muurk/pqcoap/internal/logging"
	"github.com/muurk/pqcoap/internal/security"
	"github.com/muurk/pqcoap/internal/transport"
)

// CurrentVersion is the only configuration file version understood.
const CurrentVersion = 1

// Network modes.
const (
	ModeHost = "host"
	ModeWiFi = "wifi"
)

// Config represents the entire configuration file.
type Config struct {
	Version  int               `yaml:"version" toml:"version"`
	Network  NetworkConfig     `yaml:"network" toml:"network"`
	Security SecurityConfig    `yaml:"security" toml:"security"`
	Exchange ExchangeConfig    `yaml:"exchange" toml:"exchange"`
	Log      LogConfig         `yaml:"log" toml:"log"`
	Metrics  MetricsConfig     `yaml:"metrics,omitempty" toml:"metrics"`
	Targets  map[string]Target `yaml:"targets,omitempty" toml:"targets"`
}

// NetworkConfig controls how the link is brought up before an exchange.
type NetworkConfig struct {
	Mode         string        `yaml:"mode" toml:"mode"`                             // host or wifi
	Interface    string        `yaml:"interface,omitempty" toml:"interface"`         // Network interface to use
	SSID         string        `yaml:"ssid,omitempty" toml:"ssid"`                   // Wi-Fi network name
	Password     string        `yaml:"password,omitempty" toml:"password"`           // Wi-Fi passphrase
	WiFiSecurity string        `yaml:"wifi_security,omitempty" toml:"wifi_security"` // WPA2 or OPEN
	Attempts     int           `yaml:"attempts" toml:"attempts"`                     // Connect attempts
	RetryDelay   time.Duration `yaml:"retry_delay" toml:"retry_delay"`               // Pause between failed attempts
	ReadyTimeout time.Duration `yaml:"ready_timeout" toml:"ready_timeout"`           // Per-attempt readiness bound
	SettleDelay  time.Duration `yaml:"settle_delay" toml:"settle_delay"`             // Pause after the link is up
}

// SecurityConfig configures secured sessions.
type SecurityConfig struct {
	Variant     string `yaml:"variant" toml:"variant"`                     // classical or pqc
	Group       string `yaml:"group,omitempty" toml:"group"`               // Key-exchange group
	VerifyPeer  bool   `yaml:"verify_peer" toml:"verify_peer"`             // Verify the server certificate
	Fallback    bool   `yaml:"fallback" toml:"fallback"`                   // Allow the classical component on mismatch
	CAFile      string `yaml:"ca_file,omitempty" toml:"ca_file"`           // PEM CA bundle
	CertFile    string `yaml:"cert_file,omitempty" toml:"cert_file"`       // PEM client certificate
	KeyFile     string `yaml:"key_file,omitempty" toml:"key_file"`         // PEM client key
	PSKIdentity string `yaml:"psk_identity,omitempty" toml:"psk_identity"` // DTLS PSK identity
	PSK         string `yaml:"psk,omitempty" toml:"psk"`                   // DTLS PSK, hex encoded
}

// ExchangeConfig tunes the exchange driver.
type ExchangeConfig struct {
	PollSlice      time.Duration `yaml:"poll_slice" toml:"poll_slice"`
	// DefaultLeisure is the session default leisure.
	DefaultLeisure time.Duration `yaml:"default_leisure" toml:"default_leisure"`
	LeisureSlack   time.Duration `yaml:"leisure_slack" toml:"leisure_slack"`
	Multicast      bool          `yaml:"multicast" toml:"multicast"`
	Blockwise      bool          `yaml:"blockwise" toml:"blockwise"`
}

// LogConfig configures logging. Level empty means silent.
type LogConfig struct {
	Level      string `yaml:"level,omitempty" toml:"level"`
	File       string `yaml:"file,omitempty" toml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty" toml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups,omitempty" toml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days,omitempty" toml:"max_age_days"`
	Compress   bool   `yaml:"compress,omitempty" toml:"compress"`
}

// MetricsConfig configures metrics export.
type MetricsConfig struct {
	Textfile string `yaml:"textfile,omitempty" toml:"textfile"` // node-exporter textfile path
}

// Target is a named CoAP resource.
type Target struct {
	URI   string `yaml:"uri" toml:"uri"`
	Group string `yaml:"group,omitempty" toml:"group"` // Overrides security.group for this target
}

// Default returns a Config with every default filled in.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		Network: NetworkConfig{
			Mode:         ModeHost,
			WiFiSecurity: connectivity.SecurityWPA2,
			Attempts:     connectivity.DefaultAttempts,
			RetryDelay:   connectivity.DefaultRetryDelay,
			ReadyTimeout: connectivity.DefaultReadyTimeout,
			SettleDelay:  connectivity.DefaultSettleDelay,
		},
		Security: SecurityConfig{
			Variant:  string(security.VariantPQC),
			Fallback: true,
		},
		Exchange: ExchangeConfig{
			PollSlice:      exchange.DefaultPollSlice,
			DefaultLeisure: transport.DefaultLeisure,
			LeisureSlack:   exchange.DefaultLeisureSlack,
			Blockwise:      true,
		},
		Targets: make(map[string]Target),
	}
}

// Policy returns the connectivity retry policy.
func (c *Config) Policy() connectivity.Policy {
	return connectivity.Policy{
		Attempts:     c.Network.Attempts,
		RetryDelay:   c.Network.RetryDelay,
		ReadyTimeout: c.Network.ReadyTimeout,
		SettleDelay:  c.Network.SettleDelay,
	}
}

// Credentials returns the Wi-Fi credentials.
func (c *Config) Credentials() connectivity.Credentials {
	return connectivity.Credentials{
		SSID:     c.Network.SSID,
		Password: c.Network.Password,
		Security: c.Network.WiFiSecurity,
	}
}

// PKIFiles returns the PEM file locations.
func (c *Config) PKIFiles() security.PKIFiles {
	return security.PKIFiles{
		CAFile:   c.Security.CAFile,
		CertFile: c.Security.CertFile,
		KeyFile:  c.Security.KeyFile,
	}
}

// LoggingOptions returns the options for logging.Initialize.
func (c *Config) LoggingOptions() logging.Options {
	return logging.Options{
		Level: c.Log.Level,
		File: logging.FileOptions{
			Path:       c.Log.File,
			MaxSizeMB:  c.Log.MaxSizeMB,
			MaxBackups: c.Log.MaxBackups,
			MaxAgeDays: c.Log.MaxAgeDays,
			Compress:   c.Log.Compress,
		},
	}
}
