package services

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mailbox-usage/internal/core/domain"
)

type mockBroker struct {
	token string
	err   error
	calls int
}

func (b *mockBroker) AcquireDownstreamToken(_ context.Context, _ string) (string, error) {
	b.calls++
	if b.err != nil {
		return "", b.err
	}
	return b.token, nil
}

func inboxMailbox() *mockFolderSource {
	source := newMockFolderSource()
	source.roots = []domain.Folder{
		{ID: "inbox", DisplayName: "Inbox", SizeInBytes: 100, TotalItemCount: 3},
		{ID: "sent", DisplayName: "Sent Items", SizeInBytes: 20, TotalItemCount: 1},
	}
	source.addChildren("inbox", domain.Folder{ID: "archive", DisplayName: "Archive", SizeInBytes: 50})
	source.addChildren("archive", domain.Folder{ID: "y2023", DisplayName: "2023", SizeInBytes: 5})
	return source
}

func TestUsageService_Compute(t *testing.T) {
	source := inboxMailbox()
	broker := &mockBroker{token: "graph-token"}
	svc := NewUsageService(broker, source, NewAggregator(source, 2))

	var states []domain.RequestState
	usage, err := svc.Compute(context.Background(), "inbound", func(s domain.RequestState) {
		states = append(states, s)
	})

	require.NoError(t, err)
	assert.Equal(t, []domain.RequestState{
		domain.StateTokenExchanged,
		domain.StateFoldersListed,
		domain.StateAggregated,
		domain.StateFlattened,
	}, states)

	assert.Equal(t, int64(175), usage.TotalBytes)
	require.Len(t, usage.Roots, 2)
	assert.Equal(t, int64(155), usage.Roots[0].CumulativeBytes)

	paths := make([]string, len(usage.Folders))
	for i, f := range usage.Folders {
		paths[i] = f.FolderPath
	}
	assert.Equal(t, []string{"Inbox", "Inbox/Archive", "Inbox/Archive/2023", "Sent Items"}, paths)

	var ownSum int64
	for _, f := range usage.Folders {
		ownSum += f.OwnBytes
	}
	assert.Equal(t, ownSum, usage.TotalBytes)

	_, used := source.tokens.Load("graph-token")
	assert.True(t, used, "downstream token is used for Graph calls")
}

func TestUsageService_Compute_NilObserver(t *testing.T) {
	source := inboxMailbox()
	svc := NewUsageService(&mockBroker{token: "t"}, source, NewAggregator(source, 1))

	usage, err := svc.Compute(context.Background(), "inbound", nil)

	require.NoError(t, err)
	assert.Len(t, usage.Folders, 4)
}

func TestUsageService_Compute_EmptyMailbox(t *testing.T) {
	source := newMockFolderSource()
	svc := NewUsageService(&mockBroker{token: "t"}, source, NewAggregator(source, 1))

	usage, err := svc.Compute(context.Background(), "inbound", nil)

	require.NoError(t, err)
	assert.Equal(t, int64(0), usage.TotalBytes)
	assert.Empty(t, usage.Folders)
}

func TestUsageService_Compute_BrokerFailure(t *testing.T) {
	source := inboxMailbox()
	authErr := &domain.AuthenticationError{Reason: "OBO exchange failed"}
	svc := NewUsageService(&mockBroker{err: authErr}, source, NewAggregator(source, 1))

	var states []domain.RequestState
	usage, err := svc.Compute(context.Background(), "inbound", func(s domain.RequestState) {
		states = append(states, s)
	})

	assert.Nil(t, usage)
	assert.Same(t, authErr, err)
	assert.Empty(t, states)
	assert.Equal(t, int32(0), source.calls.Load(), "no Graph calls after a failed exchange")
}

func TestUsageService_Compute_RootListingFailure(t *testing.T) {
	source := inboxMailbox()
	source.rootErr = &domain.UpstreamError{Status: http.StatusServiceUnavailable, Body: "busy"}
	svc := NewUsageService(&mockBroker{token: "t"}, source, NewAggregator(source, 1))

	usage, err := svc.Compute(context.Background(), "inbound", nil)

	assert.Nil(t, usage)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list root folders")
	assert.Equal(t, http.StatusServiceUnavailable, domain.StatusOf(err))
}

func TestUsageService_Compute_AggregationFailure(t *testing.T) {
	source := inboxMailbox()
	source.failOn["y2023"] = &domain.UpstreamError{Status: http.StatusNotFound, Body: "gone"}
	svc := NewUsageService(&mockBroker{token: "t"}, source, NewAggregator(source, 2))

	var states []domain.RequestState
	usage, err := svc.Compute(context.Background(), "inbound", func(s domain.RequestState) {
		states = append(states, s)
	})

	assert.Nil(t, usage)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "aggregate folder inbox")
	assert.Equal(t, http.StatusNotFound, domain.StatusOf(err))
	assert.Equal(t, []domain.RequestState{domain.StateTokenExchanged, domain.StateFoldersListed}, states)

	var upErr *domain.UpstreamError
	assert.True(t, errors.As(err, &upErr))
}
