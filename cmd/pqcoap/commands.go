package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/pqcoap/internal/config"
	"github.com/muurk/pqcoap/internal/discovery"
	"github.com/muurk/pqcoap/internal/logging"
	"github.com/muurk/pqcoap/internal/security"
	"github.com/muurk/pqcoap/internal/ui"
)

// Subcommand flags
var (
	scanTimeout time.Duration
	forceInit   bool
)

func init() {
	discoverCmd.Flags().DurationVar(&scanTimeout, "timeout", discovery.DefaultScanTimeout, "How long to browse")
	configInitCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing config file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configPathCmd)

	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(groupsCmd)
	rootCmd.AddCommand(configCmd)
}

// discoverCmd browses for CoAP services
var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Discover CoAP services via mDNS",
	Long: `Browse the local network for CoAP services using mDNS/DNS-SD.

Each service is printed with a numeric target URI that can be passed to
'pqcoap get'. The TXT key "path" selects the resource; otherwise the URI
points at /.well-known/core.`,
	Example: `  # Browse for 5 seconds (default)
  pqcoap discover

  # Longer browse for slow networks
  pqcoap discover --timeout 15s`,
	Args: cobra.NoArgs,
	RunE: runDiscover,
}

func runDiscover(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	printer := ui.NewPrinter(os.Stdout)
	printer.PrintHeader("CoAP Service Discovery", "pqcoap discover", []ui.Detail{
		{Key: "Timeout", Value: scanTimeout.String()},
		{Key: "Service types", Value: strings.Join(discovery.ServiceTypeNames(), ", ")},
	})

	scanner := discovery.NewScanner()
	scanner.Timeout = scanTimeout
	scanner.Logger = logging.GetLogger().Named("discovery")

	services, err := scanner.Scan(ctx)
	if err != nil {
		return fmt.Errorf("discovery failed: %w", err)
	}
	logging.Debug("Discovery finished", zap.Int("services", len(services)))

	if len(services) == 0 {
		printer.Print(ui.Report{
			Type:  ui.ResultWarning,
			Title: "No services found",
			Troubleshooting: []string{
				"Multicast DNS may be blocked between network segments",
				"Try increasing --timeout for slower networks",
			},
		})
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d service(s):\n\n", len(services))
	for i, svc := range services {
		fmt.Fprintf(&b, "%d. %s\n", i+1, svc.Instance)
		fmt.Fprintf(&b, "   Host:  %s\n", svc.Hostname)
		fmt.Fprintf(&b, "   URI:   %s\n", svc.URI())
		if len(svc.Text) > 0 {
			fmt.Fprintf(&b, "   TXT:   %v\n", svc.Text)
		}
		b.WriteString("\n")
	}
	b.WriteString("Use 'pqcoap get <uri>' to query a service")

	return ui.RenderOnce(os.Stdout, b.String())
}

// groupsCmd lists the key-exchange groups
var groupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "List key-exchange groups and the active selection",
	Long: `List every key-exchange group known to this build, with the transports
able to negotiate it, and show which group a secured session would request.

The selection order is --group on 'get', the PQCOAP_GROUPS environment
variable (first colon-separated entry), security.group in the config file,
then the compiled default for security.variant.`,
	Args: cobra.NoArgs,
	RunE: runGroups,
}

func runGroups(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	fmt.Printf("%-24s %-10s %-6s %-4s %-5s %s\n", "GROUP", "KIND", "LEVEL", "TLS", "DTLS", "ALIASES")
	for _, g := range security.Groups() {
		fmt.Printf("%-24s %-10s %-6d %-4s %-5s %s\n",
			g.Name, g.Kind, g.Level, yesNo(g.SupportsTLS()), yesNo(g.SupportsDTLS()), strings.Join(g.Aliases, ", "))
	}

	sel, err := security.Select(os.Getenv(security.OverrideEnvVar), cfg.Security.Group,
		security.Variant(cfg.Security.Variant).DefaultGroup())
	if err != nil {
		return err
	}
	fmt.Printf("\nSelected: %s (%s)\n", sel.Group.Name, sel.Source)
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// configCmd groups config file subcommands
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Write a configuration file with every default filled in and one example
target. The format follows the file extension: .toml writes TOML, anything
else writes YAML.`,
	Example: `  pqcoap config init
  pqcoap config init --config ./pqcoap.toml --force`,
	Args:              cobra.NoArgs,
	PersistentPreRunE: skipConfig,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		path, err := targetConfigPath()
		if err != nil {
			return err
		}
		if _, err := os.Stat(path); err == nil && !forceInit {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}

		if err := config.CreateDefaultConfig(path); err != nil {
			return err
		}
		ui.NewPrinter(os.Stdout).Print(ui.Report{
			Type:  ui.ResultSuccess,
			Title: "Configuration written",
			Details: []ui.Detail{
				{Key: "Path", Value: path},
				{Key: "Next", Value: "pqcoap config validate"},
			},
		})
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Validate the configuration file after environment overrides are applied
and report every problem found.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		if err := cfg.Validate(); err != nil {
			fmt.Fprint(os.Stderr, config.FormatValidationErrors(err))
			return &exitError{code: 1}
		}
		ui.NewPrinter(os.Stdout).Print(ui.Report{
			Type:  ui.ResultSuccess,
			Title: "Configuration is valid",
			Details: []ui.Detail{
				{Key: "Network", Value: cfg.Network.Mode},
				{Key: "Variant", Value: cfg.Security.Variant},
				{Key: "Targets", Value: fmt.Sprint(len(cfg.Targets))},
			},
		})
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:               "path",
	Short:             "Print the configuration file location",
	Args:              cobra.NoArgs,
	PersistentPreRunE: skipConfig,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := targetConfigPath()
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	},
}

// skipConfig replaces loadConfig for commands that must work without a
// readable config file.
func skipConfig(cmd *cobra.Command, args []string) error {
	return nil
}

// targetConfigPath returns --config, or the default location.
func targetConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.GetConfigPath()
}
