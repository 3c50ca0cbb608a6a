package driving

import (
	"context"

	"github.com/custodia-labs/mailbox-usage/internal/core/domain"
)

// UsageService computes mailbox storage usage for a signed-in user.
type UsageService interface {
	// Compute exchanges the inbound token, walks the whole folder tree and
	// returns the flattened usage. Any failure aborts the whole computation.
	// observe may be nil; otherwise it is called on every state reached.
	Compute(ctx context.Context, inboundToken string, observe domain.StageObserver) (*domain.MailboxUsage, error)
}

// TokenBroker exchanges an inbound delegated token for a downstream token.
type TokenBroker interface {
	// AcquireDownstreamToken returns a token scoped to the mail API.
	// Failures are *domain.AuthenticationError or *domain.ConfigurationError.
	AcquireDownstreamToken(ctx context.Context, inboundToken string) (string, error)
}
