package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/custodia-labs/mailbox-usage/internal/core/domain"
	"github.com/custodia-labs/mailbox-usage/internal/core/ports/driven"
	"github.com/custodia-labs/mailbox-usage/internal/core/ports/driving"
	"github.com/custodia-labs/mailbox-usage/internal/logger"
)

// Ensure CredentialBroker implements the interface.
var _ driving.TokenBroker = (*CredentialBroker)(nil)

// AudiencePolicy decides what happens when the inbound token's audience is not
// this backend.
type AudiencePolicy string

const (
	// AudiencePolicyWarn logs the mismatch and lets the exchange decide.
	AudiencePolicyWarn AudiencePolicy = "warn"
	// AudiencePolicyReject fails the request before any exchange is attempted.
	AudiencePolicyReject AudiencePolicy = "reject"
)

// DefaultSecretName is the secret source key of the backend client secret.
const DefaultSecretName = "backend-client-secret"

// BrokerConfig configures a CredentialBroker.
type BrokerConfig struct {
	// ClientID is the backend application's client id.
	ClientID string
	// ClientSecret, when set, is used instead of the secret source.
	ClientSecret string
	// SecretName is the key looked up in the secret source.
	SecretName string
	// DefaultTenantID is used when the inbound token carries no tenant.
	DefaultTenantID string
	// Scopes are requested from the exchange.
	Scopes []string
	// AudiencePolicy defaults to AudiencePolicyWarn.
	AudiencePolicy AudiencePolicy
}

// CredentialBroker exchanges inbound delegated tokens for downstream tokens,
// one tenant at a time.
//
// Tenant clients and the client secret are cached for the life of the
// process. Tenant clients are inserted first-writer-wins; the secret is
// fetched at most once, concurrent first callers share that fetch.
type CredentialBroker struct {
	cfg       BrokerConfig
	inspector driven.TokenInspector
	factory   driven.TenantClientFactory
	secrets   driven.SecretSource

	clients sync.Map // tenant id -> driven.TenantClient

	secretMu    sync.RWMutex
	secret      string
	secretFetch singleflight.Group
}

// NewCredentialBroker creates a broker. secrets may be nil when
// cfg.ClientSecret is set.
func NewCredentialBroker(
	cfg BrokerConfig,
	inspector driven.TokenInspector,
	factory driven.TenantClientFactory,
	secrets driven.SecretSource,
) *CredentialBroker {
	if cfg.SecretName == "" {
		cfg.SecretName = DefaultSecretName
	}
	if cfg.AudiencePolicy == "" {
		cfg.AudiencePolicy = AudiencePolicyWarn
	}
	return &CredentialBroker{
		cfg:       cfg,
		inspector: inspector,
		factory:   factory,
		secrets:   secrets,
	}
}

// AcquireDownstreamToken exchanges inboundToken on behalf of its user.
func (b *CredentialBroker) AcquireDownstreamToken(ctx context.Context, inboundToken string) (string, error) {
	if inboundToken == "" {
		return "", &domain.AuthenticationError{Reason: "missing inbound token"}
	}

	claims := b.inspector.Inspect(inboundToken)
	if claims == nil {
		return "", &domain.AuthenticationError{Reason: "inbound token could not be decoded"}
	}

	if err := b.checkAudience(claims); err != nil {
		return "", err
	}

	tenantID := claims.TenantID
	if tenantID == "" {
		tenantID = b.cfg.DefaultTenantID
	}
	if tenantID == "" {
		return "", &domain.AuthenticationError{
			Reason: "no tenant available (tid missing and no default tenant configured)",
		}
	}

	client, err := b.clientFor(ctx, tenantID)
	if err != nil {
		return "", err
	}

	token, err := client.AcquireTokenOnBehalfOf(ctx, inboundToken, b.cfg.Scopes)
	if err != nil {
		authErr := &domain.AuthenticationError{Reason: "OBO exchange failed", TenantID: tenantID, Err: err}
		var sc domain.StatusCoder
		if errors.As(err, &sc) {
			authErr.Status = sc.StatusCode()
		}
		logger.Warn("broker: on-behalf-of exchange failed for tenant %s (oid=%s, appid=%s): %v",
			tenantID, claims.ObjectID, claims.AppID, err)
		return "", authErr
	}
	if token == "" {
		return "", &domain.AuthenticationError{
			Reason:   "OBO failed - no access token returned",
			TenantID: tenantID,
		}
	}

	logger.Debug("broker: acquired downstream token for tenant %s", tenantID)
	return token, nil
}

// CachedTenants returns the number of tenant clients created so far.
func (b *CredentialBroker) CachedTenants() int {
	n := 0
	b.clients.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// checkAudience compares the untrusted audience with this backend's ids.
// Enforcement belongs to the exchange; rejecting here only fails earlier.
func (b *CredentialBroker) checkAudience(claims *domain.TokenClaims) error {
	expected := "api://" + b.cfg.ClientID
	if claims.HasAudience(expected, b.cfg.ClientID) {
		return nil
	}

	if b.cfg.AudiencePolicy == AudiencePolicyReject {
		return &domain.AuthenticationError{
			Reason:   fmt.Sprintf("token audience %v does not match %s", claims.Audience, expected),
			TenantID: claims.TenantID,
		}
	}

	logger.Warn("broker: token audience mismatch (aud=%v, expected=%s, appid=%s), deferring to exchange",
		claims.Audience, expected, claims.AppID)
	return nil
}

// clientFor returns the cached client for tenantID, creating it on first use.
func (b *CredentialBroker) clientFor(ctx context.Context, tenantID string) (driven.TenantClient, error) {
	if cached, ok := b.clients.Load(tenantID); ok {
		return cached.(driven.TenantClient), nil
	}

	secret, err := b.clientSecret(ctx)
	if err != nil {
		return nil, err
	}

	client, err := b.factory.NewTenantClient(tenantID, b.cfg.ClientID, secret)
	if err != nil {
		return nil, &domain.AuthenticationError{
			Reason:   "create credential client",
			TenantID: tenantID,
			Err:      err,
		}
	}

	actual, loaded := b.clients.LoadOrStore(tenantID, client)
	if !loaded {
		logger.Info("broker: created credential client for tenant %s (%d cached)", tenantID, b.CachedTenants())
	}
	return actual.(driven.TenantClient), nil
}

// clientSecret returns the configured secret, or the cached secret source value.
func (b *CredentialBroker) clientSecret(ctx context.Context) (string, error) {
	if b.cfg.ClientSecret != "" {
		return b.cfg.ClientSecret, nil
	}

	if secret := b.cachedSecret(); secret != "" {
		return secret, nil
	}

	if b.secrets == nil {
		return "", &domain.ConfigurationError{
			Setting: "secret_source",
			Reason:  "no client secret configured and no secret source available",
		}
	}

	v, err, _ := b.secretFetch.Do(b.cfg.SecretName, func() (any, error) {
		if secret := b.cachedSecret(); secret != "" {
			return secret, nil
		}

		secret, err := b.secrets.GetSecret(ctx, b.cfg.SecretName)
		if err != nil {
			return "", err
		}
		if secret == "" {
			return "", domain.ErrSecretNotFound
		}

		b.secretMu.Lock()
		b.secret = secret
		b.secretMu.Unlock()

		logger.Info("broker: loaded client secret %q from secret source", b.cfg.SecretName)
		return secret, nil
	})
	if err != nil {
		logger.Error("broker: retrieving client secret %q failed: %v", b.cfg.SecretName, err)
		switch {
		case errors.Is(err, domain.ErrConfiguration):
			return "", err
		case errors.Is(err, domain.ErrSecretNotFound):
			return "", &domain.ConfigurationError{
				Setting: b.cfg.SecretName,
				Reason:  "secret not found in secret source",
			}
		default:
			return "", &domain.AuthenticationError{Reason: "retrieve client secret", Err: err}
		}
	}

	return v.(string), nil
}

func (b *CredentialBroker) cachedSecret() string {
	b.secretMu.RLock()
	defer b.secretMu.RUnlock()
	return b.secret
}
