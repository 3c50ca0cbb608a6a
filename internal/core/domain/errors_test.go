package domain

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errNotFoundKind = errors.New("microsoft: not found")

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{
			name:     "authentication error defaults to 401",
			err:      &AuthenticationError{Reason: "missing token"},
			expected: http.StatusUnauthorized,
		},
		{
			name:     "authentication error keeps exchange status",
			err:      &AuthenticationError{Reason: "obo failed", Status: http.StatusBadRequest},
			expected: http.StatusBadRequest,
		},
		{
			name:     "upstream error propagates remote status",
			err:      &UpstreamError{Status: http.StatusNotFound, Body: "nope"},
			expected: http.StatusNotFound,
		},
		{
			name:     "wrapped upstream error",
			err:      fmt.Errorf("aggregate folder abc: %w", &UpstreamError{Status: http.StatusForbidden}),
			expected: http.StatusForbidden,
		},
		{
			name:     "configuration error is a server error",
			err:      &ConfigurationError{Setting: "client_id", Reason: "not configured"},
			expected: http.StatusInternalServerError,
		},
		{
			name:     "plain error",
			err:      errors.New("boom"),
			expected: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, StatusOf(tt.err))
		})
	}
}

func TestAuthenticationError_Is(t *testing.T) {
	cause := errors.New("consent required")
	err := &AuthenticationError{Reason: "OBO exchange failed", TenantID: "t1", Err: cause}

	assert.ErrorIs(t, err, ErrAuthentication)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "OBO exchange failed: consent required", err.Error())
}

func TestUpstreamError(t *testing.T) {
	err := &UpstreamError{Status: http.StatusNotFound, Body: `{"error":"x"}`, Kind: errNotFoundKind}

	assert.Equal(t, `Graph error 404: {"error":"x"}`, err.Error())
	assert.ErrorIs(t, err, errNotFoundKind)
}

func TestConfigurationError(t *testing.T) {
	err := &ConfigurationError{Setting: "KEY_VAULT_URL", Reason: "not configured"}

	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Equal(t, "KEY_VAULT_URL: not configured", err.Error())
	assert.Equal(t, "no tenant", (&ConfigurationError{Reason: "no tenant"}).Error())
}

func TestTokenClaims_HasAudience(t *testing.T) {
	claims := &TokenClaims{Audience: []string{"api://client", "other"}}

	assert.True(t, claims.HasAudience("api://client", "client"))
	assert.False(t, claims.HasAudience("nope"))

	var nilClaims *TokenClaims
	assert.False(t, nilClaims.HasAudience("api://client"))
}

func TestFolderNode_NodeCount(t *testing.T) {
	tree := &FolderNode{
		ID: "root",
		Children: []*FolderNode{
			{ID: "a", Children: []*FolderNode{{ID: "a1"}}},
			{ID: "b"},
		},
	}

	assert.Equal(t, 4, tree.NodeCount())

	var empty *FolderNode
	assert.Equal(t, 0, empty.NodeCount())
}
