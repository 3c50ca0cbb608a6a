package cli

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/mailbox-usage/internal/adapters/driving/httpapi"
	"github.com/custodia-labs/mailbox-usage/internal/connectors/microsoft"
	"github.com/custodia-labs/mailbox-usage/internal/core/domain"
	"github.com/custodia-labs/mailbox-usage/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the HTTP API until interrupted.

Routes:
  GET|POST /api/mailfolders   mailbox usage for the bearer token's user
  GET      /healthz           liveness probe

Configuration comes from --config and the environment, e.g. BACKEND_CLIENT_ID,
BACKEND_CLIENT_SECRET or KEY_VAULT_URL, AZURE_TENANT_ID and ALLOWED_ORIGINS.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, stack, err := loadStack(cmd)
	if err != nil {
		if errors.Is(err, domain.ErrConfiguration) {
			cmd.PrintErrln("Hint:", microsoft.SetupHint())
		}
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handler := httpapi.NewHandler(stack.Usage, cfg.AllowedOrigins)
	server := httpapi.NewServer(cfg.ListenAddr, handler.Routes())

	logger.Info("serve: client %s, audience policy %s", cfg.ClientID, cfg.AudiencePolicy)
	return server.Run(ctx)
}
