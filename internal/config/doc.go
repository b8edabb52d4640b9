// Package config provides the pqcoap configuration file.
//
// The file is YAML by default; a path ending in .toml is read and written as
// TOML. Keys absent from the file keep the values of Default(). The
// configuration follows OS-specific conventions for storage location.
//
// # Configuration File Location
//
// The configuration file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/pqcoap/config.yaml or $HOME/.config/pqcoap/config.yaml
//   - macOS: $HOME/.config/pqcoap/config.yaml
//   - Windows: %LOCALAPPDATA%\pqcoap\config.yaml
//
// PQCOAP_CONFIG or the --config flag replaces that location.
//
// # Precedence
//
// Compiled defaults, then the file, then environment variables
// (PQCOAP_WIFI_SSID, PQCOAP_WIFI_PASSWORD), then command-line flags. The
// key-exchange override PQCOAP_GROUPS is resolved by the security package
// and wins over security.group.
//
// # Usage Example
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cfg.ApplyEnv(nil)
//	if err := cfg.Validate(); err != nil {
//	    fmt.Print(config.FormatValidationErrors(err))
//	    os.Exit(1)
//	}
//
// # Thread Safety
//
// File operations are protected by a mutex and saves are atomic.
package config
