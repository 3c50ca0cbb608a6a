package services

import (
	"github.com/custodia-labs/mailbox-usage/internal/core/domain"
)

// Flatten converts an aggregated tree into table rows in depth-first pre-order.
// The root's path is its display name when parentPath is empty, otherwise
// parentPath and the display name joined by domain.FolderPathSeparator.
// Flatten does not modify the tree.
func Flatten(node *domain.FolderNode, parentPath string) []domain.FlatFolderEntry {
	if node == nil {
		return nil
	}
	return appendFlattened(make([]domain.FlatFolderEntry, 0, node.NodeCount()), node, parentPath)
}

// FlattenAll flattens each root in order and concatenates the results.
func FlattenAll(roots []*domain.FolderNode) []domain.FlatFolderEntry {
	total := 0
	for _, root := range roots {
		total += root.NodeCount()
	}

	entries := make([]domain.FlatFolderEntry, 0, total)
	for _, root := range roots {
		if root != nil {
			entries = appendFlattened(entries, root, "")
		}
	}
	return entries
}

// TotalBytes sums the cumulative bytes of the top-level folders.
func TotalBytes(roots []*domain.FolderNode) int64 {
	var total int64
	for _, root := range roots {
		if root != nil {
			total += root.CumulativeBytes
		}
	}
	return total
}

func appendFlattened(entries []domain.FlatFolderEntry, node *domain.FolderNode, parentPath string) []domain.FlatFolderEntry {
	path := node.DisplayName
	if parentPath != "" {
		path = parentPath + domain.FolderPathSeparator + node.DisplayName
	}

	entries = append(entries, domain.FlatFolderEntry{
		ID:              node.ID,
		DisplayName:     node.DisplayName,
		FolderPath:      path,
		OwnBytes:        node.OwnBytes,
		CumulativeBytes: node.CumulativeBytes,
		TotalItemCount:  node.TotalItemCount,
		UnreadItemCount: node.UnreadItemCount,
	})

	for _, child := range node.Children {
		entries = appendFlattened(entries, child, path)
	}
	return entries
}
