package services

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/custodia-labs/mailbox-usage/internal/core/domain"
	"github.com/custodia-labs/mailbox-usage/internal/core/ports/driven"
	"github.com/custodia-labs/mailbox-usage/internal/logger"
)

// DefaultConcurrency is the default number of concurrent child-listing calls.
const DefaultConcurrency = 4

// Aggregator computes cumulative folder sizes by walking the folder tree.
//
// A single semaphore bounds the child-listing calls in flight across the whole
// recursion, and across every request sharing the Aggregator. A permit is held
// only for the duration of one listing call, never while waiting on a subtree,
// so arbitrarily deep trees cannot exhaust the permits and deadlock.
type Aggregator struct {
	source      driven.FolderSource
	sem         *semaphore.Weighted
	concurrency int
}

// NewAggregator creates an Aggregator. Values below 1 select DefaultConcurrency.
func NewAggregator(source driven.FolderSource, concurrency int) *Aggregator {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	return &Aggregator{
		source:      source,
		sem:         semaphore.NewWeighted(int64(concurrency)),
		concurrency: concurrency,
	}
}

// Concurrency returns the limiter size.
func (a *Aggregator) Concurrency() int {
	return a.concurrency
}

// Aggregate returns folder's subtree annotated with own and cumulative bytes.
// The first failure anywhere in the subtree aborts the whole aggregation.
func (a *Aggregator) Aggregate(ctx context.Context, folder domain.Folder, token string) (*domain.FolderNode, error) {
	children, err := a.listChildren(ctx, token, folder.ID)
	if err != nil {
		return nil, err
	}

	node := &domain.FolderNode{
		ID:              folder.ID,
		DisplayName:     folder.DisplayName,
		OwnBytes:        folder.SizeInBytes,
		TotalItemCount:  folder.TotalItemCount,
		UnreadItemCount: folder.UnreadItemCount,
	}

	if len(children) > 0 {
		// Indexed writes keep siblings in listing order.
		results := make([]*domain.FolderNode, len(children))
		g, gctx := errgroup.WithContext(ctx)
		for i, child := range children {
			g.Go(func() error {
				sub, err := a.Aggregate(gctx, child, token)
				if err != nil {
					return err
				}
				results[i] = sub
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		node.Children = results
	}

	node.CumulativeBytes = node.OwnBytes
	for _, child := range node.Children {
		node.CumulativeBytes += child.CumulativeBytes
	}

	logger.Debug("aggregate: folder %s (%s) own=%d cumulative=%d children=%d",
		node.ID, node.DisplayName, node.OwnBytes, node.CumulativeBytes, len(node.Children))

	return node, nil
}

// listChildren performs one child-listing call under a limiter permit.
func (a *Aggregator) listChildren(ctx context.Context, token, folderID string) ([]domain.Folder, error) {
	if err := a.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer a.sem.Release(1)

	children, err := a.source.ListChildFolders(ctx, token, folderID)
	if err != nil {
		logger.Debug("aggregate: listing children of folder %s failed: %v", folderID, err)
		return nil, fmt.Errorf("list child folders of %s: %w", folderID, err)
	}
	return children, nil
}
