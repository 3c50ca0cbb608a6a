// Package driven defines the ports the core services call out through.
package driven

import (
	"context"

	"github.com/custodia-labs/mailbox-usage/internal/core/domain"
)

// FolderSource lists mail folders from the remote mail API.
// Implementations materialise every page before returning.
type FolderSource interface {
	// ListRootFolders returns the mailbox's top-level folders.
	ListRootFolders(ctx context.Context, token string) ([]domain.Folder, error)

	// ListChildFolders returns the direct children of a folder.
	ListChildFolders(ctx context.Context, token, folderID string) ([]domain.Folder, error)
}

// SecretSource is a key-value secret store.
type SecretSource interface {
	// GetSecret returns the current value of the named secret.
	// Returns domain.ErrSecretNotFound if the name has no value.
	GetSecret(ctx context.Context, name string) (string, error)
}

// TenantClient performs on-behalf-of token exchanges against one tenant.
// Implementations must be safe for concurrent use.
type TenantClient interface {
	// AcquireTokenOnBehalfOf exchanges a user assertion for a token with the
	// given scopes.
	AcquireTokenOnBehalfOf(ctx context.Context, assertion string, scopes []string) (string, error)
}

// TenantClientFactory builds a TenantClient for a tenant.
type TenantClientFactory interface {
	NewTenantClient(tenantID, clientID, clientSecret string) (TenantClient, error)
}

// TokenInspector reads untrusted claims from an inbound token.
type TokenInspector interface {
	// Inspect returns the token's claims, or nil if it cannot be decoded.
	// It never verifies signatures.
	Inspect(token string) *domain.TokenClaims
}
