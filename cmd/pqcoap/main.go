// Pqcoap is a CoAP client for constrained networks with optional (D)TLS and
// post-quantum key exchange.
//
// It performs exactly one request/response exchange per invocation: bring
// the network up, resolve the numeric target address, establish a session,
// send a GET and wait a bounded time for the response.
//
// Usage:
//
//	pqcoap get <uri|target-name> [flags]
//
// See 'pqcoap --help' for available commands.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/pqcoap/internal/config"
	"github.com/muurk/pqcoap/internal/logging"
	"github.com/muurk/pqcoap/internal/version"
)

// exitError carries a process exit code for a failure that has already
// been reported.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func main() {
	err := rootCmd.Execute()
	logging.Sync()

	var ee *exitError
	if errors.As(err, &ee) {
		os.Exit(ee.code)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Global flags
var (
	configPath string
	logLevel   string
)

// cfg is loaded before every command runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "pqcoap",
	Short: "CoAP client with post-quantum (D)TLS key exchange",
	Long: `A CoAP client for constrained networks.

Each invocation performs one GET exchange over coap://, coap+tcp://,
coaps:// (DTLS) or coaps+tcp:// (TLS). Secured sessions negotiate a
classical, post-quantum or hybrid key-exchange group selected by
--group, PQCOAP_GROUPS, the config file or the compiled default.

Targets must use numeric IPv4 or IPv6 addresses.`,
	Version:           version.Version,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/pqcoap/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); silent when empty")

	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the config file, applies environment overrides and
// initializes logging.
func loadConfig(cmd *cobra.Command, args []string) error {
	c, err := config.Load(configPath)
	if err != nil {
		return err
	}
	c.ApplyEnv(nil)
	if logLevel != "" {
		if !logging.ValidLevel(logLevel) {
			return fmt.Errorf("invalid --log-level %q", logLevel)
		}
		c.Log.Level = logLevel
	}
	cfg = c

	if err := logging.Initialize(cfg.LoggingOptions()); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logging.Debug("Configuration loaded",
		zap.String("path", configPath),
		zap.String("network_mode", cfg.Network.Mode),
		zap.String("variant", cfg.Security.Variant),
	)
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("pqcoap %s\n", version.Full())
		fmt.Printf("  %s\n", version.Platform())
		for _, dep := range version.Dependencies() {
			fmt.Printf("  %s %s\n", dep.Path, dep.Version)
		}
	},
}
