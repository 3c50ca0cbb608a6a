package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/mailbox-usage/internal/adapters/driven/config/file"
	"github.com/custodia-labs/mailbox-usage/internal/connectors/microsoft"
	"github.com/custodia-labs/mailbox-usage/internal/core/ports/driving"
	"github.com/custodia-labs/mailbox-usage/internal/logger"
)

var (
	// Version is set by goreleaser ldflags.
	version = "dev"

	// Verbose enables debug logging.
	verbose bool

	// configPath is the TOML configuration file.
	configPath string

	// newStack builds the service stack from configuration.
	newStack StackBuilder
)

// ProfileSource looks up the signed-in user's profile.
type ProfileSource interface {
	GetUserInfo(ctx context.Context, accessToken string) (*microsoft.UserInfo, error)
}

// Stack holds the services commands run against.
type Stack struct {
	Usage    driving.UsageService
	Broker   driving.TokenBroker
	Profiles ProfileSource
}

// StackBuilder creates a Stack from loaded configuration.
type StackBuilder func(ctx context.Context, cfg *file.Config) (*Stack, error)

// Services holds configuration for CLI commands.
type Services struct {
	NewStack StackBuilder
}

// SetServices injects service implementations for CLI commands.
func SetServices(s *Services) {
	if s == nil {
		return
	}
	newStack = s.NewStack
}

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "mailbox-usage",
	Short: "Per-folder storage usage for Microsoft 365 mailboxes",
	Long: `mailbox-usage reports how much storage each folder of an Exchange Online
mailbox uses, including everything nested below it.

It runs as an HTTP backend for a browser front-end, exchanging the user's token
on-behalf-of for a Microsoft Graph token, or as a one-shot report in the terminal.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string for the CLI.
func SetVersion(v string) {
	version = v
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose debug output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", file.DefaultPath, "path to the TOML configuration file")

	// Use PersistentPreRunE to set verbose mode before any command executes
	rootCmd.PersistentPreRunE = func(_ *cobra.Command, _ []string) error {
		logger.SetVerbose(verbose)
		return nil
	}
}

var errServicesNotConfigured = errors.New("services not configured")

// loadStack loads and validates configuration, then builds the stack.
// A --config path given explicitly must exist.
func loadStack(cmd *cobra.Command) (*file.Config, *Stack, error) {
	if newStack == nil {
		return nil, nil, errServicesNotConfigured
	}

	cfg, err := file.Load(configPath, cmd.Flags().Changed("config"))
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	if logger.IsVerbose() {
		logger.Debug("%s", cfg)
	}

	stack, err := newStack(cmd.Context(), cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, stack, nil
}
