package services

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/mailbox-usage/internal/core/domain"
	"github.com/custodia-labs/mailbox-usage/internal/core/ports/driven"
	"github.com/custodia-labs/mailbox-usage/internal/core/ports/driving"
	"github.com/custodia-labs/mailbox-usage/internal/logger"
)

// Ensure UsageService implements the interface.
var _ driving.UsageService = (*UsageService)(nil)

// UsageService drives the broker, folder listing, aggregation and flattening.
type UsageService struct {
	broker     driving.TokenBroker
	folders    driven.FolderSource
	aggregator *Aggregator
}

// NewUsageService creates a UsageService. The aggregator's limiter is shared
// by every request the service handles.
func NewUsageService(broker driving.TokenBroker, folders driven.FolderSource, aggregator *Aggregator) *UsageService {
	return &UsageService{
		broker:     broker,
		folders:    folders,
		aggregator: aggregator,
	}
}

// Compute returns the mailbox usage of the user owning inboundToken.
// Top-level folders are aggregated one after another; each one's subtree is
// walked concurrently under the shared limiter.
func (s *UsageService) Compute(
	ctx context.Context, inboundToken string, observe domain.StageObserver,
) (*domain.MailboxUsage, error) {
	if observe == nil {
		observe = func(domain.RequestState) {}
	}
	start := time.Now()

	token, err := s.broker.AcquireDownstreamToken(ctx, inboundToken)
	if err != nil {
		return nil, err
	}
	observe(domain.StateTokenExchanged)

	roots, err := s.folders.ListRootFolders(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("list root folders: %w", err)
	}
	observe(domain.StateFoldersListed)
	logger.Debug("usage: %d top-level folders", len(roots))

	nodes := make([]*domain.FolderNode, 0, len(roots))
	for _, root := range roots {
		node, err := s.aggregator.Aggregate(ctx, root, token)
		if err != nil {
			return nil, fmt.Errorf("aggregate folder %s: %w", root.ID, err)
		}
		nodes = append(nodes, node)
	}
	observe(domain.StateAggregated)

	usage := &domain.MailboxUsage{
		TotalBytes: TotalBytes(nodes),
		Folders:    FlattenAll(nodes),
		Roots:      nodes,
	}
	observe(domain.StateFlattened)

	logger.Info("usage: computed %d folders, %d bytes in %s",
		len(usage.Folders), usage.TotalBytes, time.Since(start).Round(time.Millisecond))

	return usage, nil
}
