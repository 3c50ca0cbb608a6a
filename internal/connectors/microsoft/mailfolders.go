package microsoft

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/custodia-labs/mailbox-usage/internal/core/domain"
	"github.com/custodia-labs/mailbox-usage/internal/core/ports/driven"
)

// Page size limits for mail-folder listings.
const (
	DefaultPageSize = 50
	MaxPageSize     = 1000
)

// Ensure MailFolderSource implements the interface.
var _ driven.FolderSource = (*MailFolderSource)(nil)

// MailFolder is a mail folder as returned by Graph.
type MailFolder struct {
	ID              string `json:"id"`
	DisplayName     string `json:"displayName"`
	SizeInBytes     int64  `json:"sizeInBytes"`
	TotalItemCount  int64  `json:"totalItemCount"`
	UnreadItemCount int64  `json:"unreadItemCount"`
}

// ToDomain converts the wire folder. Negative counts are treated as zero.
func (f MailFolder) ToDomain() domain.Folder {
	return domain.Folder{
		ID:              f.ID,
		DisplayName:     f.DisplayName,
		SizeInBytes:     max(f.SizeInBytes, 0),
		TotalItemCount:  max(f.TotalItemCount, 0),
		UnreadItemCount: max(f.UnreadItemCount, 0),
	}
}

// MailFolderSource lists the signed-in user's mail folders.
type MailFolderSource struct {
	pager    *Pager
	baseURL  string
	pageSize int
}

// NewMailFolderSource creates a MailFolderSource against baseURL
// (normally DefaultBaseURL). pageSize is clamped to [1, MaxPageSize];
// zero or less uses DefaultPageSize.
func NewMailFolderSource(pager *Pager, baseURL string, pageSize int) *MailFolderSource {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &MailFolderSource{
		pager:    pager,
		baseURL:  strings.TrimRight(baseURL, "/"),
		pageSize: min(pageSize, MaxPageSize),
	}
}

// PageSize returns the effective $top value.
func (s *MailFolderSource) PageSize() int {
	return s.pageSize
}

// ListRootFolders returns the mailbox's top-level folders.
func (s *MailFolderSource) ListRootFolders(ctx context.Context, token string) ([]domain.Folder, error) {
	return s.list(ctx, token, fmt.Sprintf("%s/me/mailFolders?$top=%d", s.baseURL, s.pageSize))
}

// ListChildFolders returns the direct children of folderID.
func (s *MailFolderSource) ListChildFolders(ctx context.Context, token, folderID string) ([]domain.Folder, error) {
	return s.list(ctx, token, fmt.Sprintf("%s/me/mailFolders/%s/childFolders?$top=%d",
		s.baseURL, url.PathEscape(folderID), s.pageSize))
}

func (s *MailFolderSource) list(ctx context.Context, token, initialURL string) ([]domain.Folder, error) {
	wire, err := FetchAll[MailFolder](ctx, s.pager, initialURL, token)
	if err != nil {
		return nil, err
	}

	folders := make([]domain.Folder, len(wire))
	for i, f := range wire {
		folders[i] = f.ToDomain()
	}
	return folders, nil
}
