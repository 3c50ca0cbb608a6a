package secrets

import (
	"context"
	"fmt"

	"github.com/custodia-labs/mailbox-usage/internal/core/domain"
	"github.com/custodia-labs/mailbox-usage/internal/core/ports/driven"
)

// Ensure Static implements the interface.
var _ driven.SecretSource = (*Static)(nil)

// Static serves secrets from a fixed map.
type Static struct {
	values map[string]string
}

// NewStatic creates a Static source. The map is copied.
func NewStatic(values map[string]string) *Static {
	copied := make(map[string]string, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return &Static{values: copied}
}

// GetSecret returns the named value.
func (s *Static) GetSecret(_ context.Context, name string) (string, error) {
	v, ok := s.values[name]
	if !ok || v == "" {
		return "", fmt.Errorf("%w: %s", domain.ErrSecretNotFound, name)
	}
	return v, nil
}
