package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"github.com/custodia-labs/mailbox-usage/internal/adapters/driven/config/file"
	"github.com/custodia-labs/mailbox-usage/internal/adapters/driven/secrets"
	"github.com/custodia-labs/mailbox-usage/internal/adapters/driving/cli"
	"github.com/custodia-labs/mailbox-usage/internal/connectors/microsoft"
	"github.com/custodia-labs/mailbox-usage/internal/core/services"
	"github.com/custodia-labs/mailbox-usage/internal/logger"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	cli.SetVersion(version)
	cli.SetServices(&cli.Services{NewStack: buildStack})

	if err := cli.Execute(); err != nil {
		return 1
	}
	return 0
}

// buildStack wires the Graph connector, the secret source and the core services.
func buildStack(ctx context.Context, cfg *file.Config) (*cli.Stack, error) {
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout.Duration}

	// Graph folder listings share one pager and its connection pool
	pager := microsoft.NewPager(httpClient)
	source := microsoft.NewMailFolderSource(pager, cfg.GraphBaseURL, cfg.PageSize)

	secretSource, err := secrets.New(ctx, cfg.SecretSource)
	if err != nil {
		log.Printf("failed to create secret source: %v", err)
		return nil, err
	}

	broker := services.NewCredentialBroker(
		services.BrokerConfig{
			ClientID:        cfg.ClientID,
			ClientSecret:    cfg.ClientSecret,
			SecretName:      cfg.SecretSource.Name,
			DefaultTenantID: cfg.DefaultTenantID,
			Scopes:          []string{cfg.GraphScope},
			AudiencePolicy:  services.AudiencePolicy(cfg.AudiencePolicy),
		},
		microsoft.NewClaimsInspector(),
		microsoft.NewConfidentialClientFactory(cfg.AuthorityHost, httpClient),
		secretSource,
	)

	aggregator := services.NewAggregator(source, cfg.Concurrency)
	logger.Info("graph: %s, concurrency %d, page size %d",
		cfg.GraphBaseURL, aggregator.Concurrency(), source.PageSize())

	return &cli.Stack{
		Usage:    services.NewUsageService(broker, source, aggregator),
		Broker:   broker,
		Profiles: source,
	}, nil
}
