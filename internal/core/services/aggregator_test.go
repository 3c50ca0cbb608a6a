package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mailbox-usage/internal/core/domain"
)

// mockFolderSource serves an in-memory folder tree and records how many
// listing calls are in flight at once.
type mockFolderSource struct {
	roots    []domain.Folder
	children map[string][]domain.Folder
	delay    time.Duration
	delays   map[string]time.Duration
	failOn   map[string]error
	rootErr  error

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	calls       atomic.Int32
	tokens      sync.Map
}

func newMockFolderSource() *mockFolderSource {
	return &mockFolderSource{
		children: make(map[string][]domain.Folder),
		delays:   make(map[string]time.Duration),
		failOn:   make(map[string]error),
	}
}

func (m *mockFolderSource) addChildren(parentID string, folders ...domain.Folder) {
	m.children[parentID] = append(m.children[parentID], folders...)
}

func (m *mockFolderSource) ListRootFolders(_ context.Context, token string) ([]domain.Folder, error) {
	m.tokens.Store(token, true)
	if m.rootErr != nil {
		return nil, m.rootErr
	}
	return m.roots, nil
}

func (m *mockFolderSource) ListChildFolders(ctx context.Context, token, folderID string) ([]domain.Folder, error) {
	m.tokens.Store(token, true)
	m.calls.Add(1)

	current := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		peak := m.maxInFlight.Load()
		if current <= peak || m.maxInFlight.CompareAndSwap(peak, current) {
			break
		}
	}

	delay := m.delay
	if d, ok := m.delays[folderID]; ok {
		delay = d
	}
	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	if err, ok := m.failOn[folderID]; ok {
		return nil, err
	}
	return m.children[folderID], nil
}

func folder(id string, size int64) domain.Folder {
	return domain.Folder{ID: id, DisplayName: id, SizeInBytes: size, TotalItemCount: size / 10}
}

// buildTree adds a tree of the given width and depth below parentID and
// returns the sum of the sizes it added.
func buildTree(m *mockFolderSource, parentID string, width, depth int) int64 {
	if depth == 0 {
		return 0
	}
	var sum int64
	for i := 0; i < width; i++ {
		id := fmt.Sprintf("%s.%d", parentID, i)
		size := int64(len(id)*7 + i)
		m.addChildren(parentID, folder(id, size))
		sum += size + buildTree(m, id, width, depth-1)
	}
	return sum
}

func assertCumulativeInvariant(t *testing.T, node *domain.FolderNode) {
	t.Helper()
	sum := node.OwnBytes
	for _, child := range node.Children {
		assertCumulativeInvariant(t, child)
		sum += child.CumulativeBytes
	}
	assert.Equal(t, sum, node.CumulativeBytes, "cumulative bytes of %s", node.ID)
}

func sumOwnBytes(node *domain.FolderNode) int64 {
	sum := node.OwnBytes
	for _, child := range node.Children {
		sum += sumOwnBytes(child)
	}
	return sum
}

func TestNewAggregator_DefaultConcurrency(t *testing.T) {
	tests := []struct {
		name        string
		concurrency int
		expected    int
	}{
		{name: "zero uses default", concurrency: 0, expected: DefaultConcurrency},
		{name: "negative uses default", concurrency: -3, expected: DefaultConcurrency},
		{name: "explicit value", concurrency: 9, expected: 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := NewAggregator(newMockFolderSource(), tt.concurrency)
			assert.Equal(t, tt.expected, agg.Concurrency())
		})
	}
}

func TestAggregator_InboxArchive(t *testing.T) {
	source := newMockFolderSource()
	source.addChildren("inbox", domain.Folder{ID: "archive", DisplayName: "Archive", SizeInBytes: 50})

	agg := NewAggregator(source, 4)
	node, err := agg.Aggregate(context.Background(),
		domain.Folder{ID: "inbox", DisplayName: "Inbox", SizeInBytes: 100}, "graph-token")

	require.NoError(t, err)
	assert.Equal(t, int64(100), node.OwnBytes)
	assert.Equal(t, int64(150), node.CumulativeBytes)
	require.Len(t, node.Children, 1)
	assert.Equal(t, "Archive", node.Children[0].DisplayName)
	assert.Equal(t, int64(50), node.Children[0].CumulativeBytes)
	assert.Empty(t, node.Children[0].Children)

	_, usedToken := source.tokens.Load("graph-token")
	assert.True(t, usedToken)
}

func TestAggregator_Leaf(t *testing.T) {
	agg := NewAggregator(newMockFolderSource(), 2)

	node, err := agg.Aggregate(context.Background(), folder("leaf", 42), "tok")

	require.NoError(t, err)
	assert.Equal(t, int64(42), node.CumulativeBytes)
	assert.Nil(t, node.Children)
}

func TestAggregator_CumulativeInvariant(t *testing.T) {
	tests := []struct {
		name  string
		width int
		depth int
	}{
		{name: "wide and shallow", width: 12, depth: 2},
		{name: "narrow and deep", width: 2, depth: 6},
		{name: "balanced", width: 4, depth: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := newMockFolderSource()
			descendants := buildTree(source, "root", tt.width, tt.depth)

			agg := NewAggregator(source, 3)
			node, err := agg.Aggregate(context.Background(), folder("root", 1000), "tok")

			require.NoError(t, err)
			assertCumulativeInvariant(t, node)
			assert.Equal(t, 1000+descendants, node.CumulativeBytes)
			assert.Equal(t, sumOwnBytes(node), node.CumulativeBytes)
		})
	}
}

func TestAggregator_ConcurrencyBound(t *testing.T) {
	for _, limit := range []int{1, 3, 5} {
		t.Run(fmt.Sprintf("limit %d", limit), func(t *testing.T) {
			source := newMockFolderSource()
			source.delay = 3 * time.Millisecond
			buildTree(source, "root", 20, 2)

			agg := NewAggregator(source, limit)
			node, err := agg.Aggregate(context.Background(), folder("root", 1), "tok")

			require.NoError(t, err)
			assert.Equal(t, 421, node.NodeCount())
			assert.Equal(t, int32(421), source.calls.Load())
			assert.LessOrEqual(t, source.maxInFlight.Load(), int32(limit))
			assert.Equal(t, int32(limit), source.maxInFlight.Load(), "wide tree should saturate the limiter")
		})
	}
}

func TestAggregator_SharedLimiterAcrossCalls(t *testing.T) {
	source := newMockFolderSource()
	source.delay = 5 * time.Millisecond
	buildTree(source, "a", 10, 2)
	buildTree(source, "b", 10, 2)

	agg := NewAggregator(source, 2)

	var wg sync.WaitGroup
	for _, id := range []string{"a", "b"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := agg.Aggregate(context.Background(), folder(id, 1), "tok")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, source.maxInFlight.Load(), int32(2))
}

func TestAggregator_DeepChainWithSinglePermit(t *testing.T) {
	source := newMockFolderSource()
	buildTree(source, "root", 1, 50)

	agg := NewAggregator(source, 1)

	done := make(chan struct{})
	var node *domain.FolderNode
	var err error
	go func() {
		defer close(done)
		node, err = agg.Aggregate(context.Background(), folder("root", 1), "tok")
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("aggregation deadlocked")
	}

	require.NoError(t, err)
	assert.Equal(t, 51, node.NodeCount())
	assertCumulativeInvariant(t, node)
}

func TestAggregator_PreservesSiblingOrder(t *testing.T) {
	source := newMockFolderSource()
	for i := 0; i < 6; i++ {
		id := fmt.Sprintf("child-%d", i)
		source.addChildren("root", folder(id, int64(i)))
		// Earlier siblings finish last.
		source.delays[id] = time.Duration(6-i) * 3 * time.Millisecond
	}

	agg := NewAggregator(source, 6)
	node, err := agg.Aggregate(context.Background(), folder("root", 0), "tok")

	require.NoError(t, err)
	require.Len(t, node.Children, 6)
	for i, child := range node.Children {
		assert.Equal(t, fmt.Sprintf("child-%d", i), child.ID)
	}
}

func TestAggregator_DescendantFailureAborts(t *testing.T) {
	source := newMockFolderSource()
	buildTree(source, "root", 3, 3)
	upstream := &domain.UpstreamError{Status: http.StatusForbidden, Body: "denied"}
	source.failOn["root.1.2"] = upstream

	agg := NewAggregator(source, 2)
	node, err := agg.Aggregate(context.Background(), folder("root", 1), "tok")

	require.Error(t, err)
	assert.Nil(t, node, "partial trees are never returned")
	assert.Contains(t, err.Error(), "root.1.2")

	var upErr *domain.UpstreamError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, http.StatusForbidden, upErr.Status)
	assert.Equal(t, http.StatusForbidden, domain.StatusOf(err))
}
