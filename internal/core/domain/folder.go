package domain

// FolderPathSeparator joins ancestor display names in a FolderPath.
const FolderPathSeparator = "/"

// Folder is a mail folder as listed by the remote mail API, before aggregation.
type Folder struct {
	ID              string
	DisplayName     string
	SizeInBytes     int64
	TotalItemCount  int64
	UnreadItemCount int64
}

// FolderNode is an aggregated folder with its cumulative size.
// Children are owned exclusively by their parent and keep the listing order.
type FolderNode struct {
	ID              string
	DisplayName     string
	OwnBytes        int64
	CumulativeBytes int64
	TotalItemCount  int64
	UnreadItemCount int64
	Children        []*FolderNode
}

// NodeCount returns the number of nodes in the subtree rooted at n.
func (n *FolderNode) NodeCount() int {
	if n == nil {
		return 0
	}
	count := 1
	for _, child := range n.Children {
		count += child.NodeCount()
	}
	return count
}

// FlatFolderEntry is one row of the flattened folder table.
type FlatFolderEntry struct {
	ID              string
	DisplayName     string
	FolderPath      string
	OwnBytes        int64
	CumulativeBytes int64
	TotalItemCount  int64
	UnreadItemCount int64
}

// MailboxUsage is the result of a full mailbox size computation.
type MailboxUsage struct {
	// TotalBytes is the sum of the top-level folders' cumulative bytes.
	TotalBytes int64
	// Folders lists every folder in pre-order, roots in listing order.
	Folders []FlatFolderEntry
	// Roots holds the aggregated top-level trees.
	Roots []*FolderNode
}
