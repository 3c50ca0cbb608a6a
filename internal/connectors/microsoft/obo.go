package microsoft

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/AzureAD/microsoft-authentication-library-for-go/apps/confidential"
	msalerrors "github.com/AzureAD/microsoft-authentication-library-for-go/apps/errors"

	"github.com/custodia-labs/mailbox-usage/internal/core/ports/driven"
	"github.com/custodia-labs/mailbox-usage/internal/logger"
)

// DefaultAuthorityHost is the public-cloud Microsoft identity platform.
const DefaultAuthorityHost = "https://login.microsoftonline.com"

// Ensure ConfidentialClientFactory implements the interface.
var _ driven.TenantClientFactory = (*ConfidentialClientFactory)(nil)

// ExchangeError is an on-behalf-of failure reported by the identity platform.
type ExchangeError struct {
	TenantID string
	Status   int
	Err      error
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("on-behalf-of exchange for tenant %s: %v", e.TenantID, e.Err)
}

// StatusCode returns the token endpoint's HTTP status, or 0 if none was received.
func (e *ExchangeError) StatusCode() int {
	return e.Status
}

func (e *ExchangeError) Unwrap() error {
	return e.Err
}

// ConfidentialClientFactory builds MSAL confidential clients, one per tenant.
type ConfidentialClientFactory struct {
	authorityHost string
	httpClient    *http.Client
}

// NewConfidentialClientFactory creates a factory issuing clients against
// authorityHost (DefaultAuthorityHost when empty). A nil httpClient lets MSAL
// use its own.
func NewConfidentialClientFactory(authorityHost string, httpClient *http.Client) *ConfidentialClientFactory {
	if authorityHost == "" {
		authorityHost = DefaultAuthorityHost
	}
	return &ConfidentialClientFactory{
		authorityHost: strings.TrimRight(authorityHost, "/"),
		httpClient:    httpClient,
	}
}

// Authority returns the tenant-specific authority URL.
func (f *ConfidentialClientFactory) Authority(tenantID string) string {
	return f.authorityHost + "/" + url.PathEscape(tenantID)
}

// NewTenantClient creates a confidential client bound to tenantID.
func (f *ConfidentialClientFactory) NewTenantClient(tenantID, clientID, clientSecret string) (driven.TenantClient, error) {
	cred, err := confidential.NewCredFromSecret(clientSecret)
	if err != nil {
		return nil, fmt.Errorf("create credential: %w", err)
	}

	var opts []confidential.Option
	if f.httpClient != nil {
		opts = append(opts, confidential.WithHTTPClient(f.httpClient))
	}

	client, err := confidential.New(f.Authority(tenantID), clientID, cred, opts...)
	if err != nil {
		return nil, fmt.Errorf("create confidential client: %w", err)
	}

	logger.Debug("obo: confidential client ready for tenant %s", tenantID)
	return &tenantClient{tenantID: tenantID, client: client}, nil
}

// tenantClient wraps one MSAL client. MSAL caches exchanged tokens per
// assertion, so repeated calls for the same user are served locally.
type tenantClient struct {
	tenantID string
	client   confidential.Client
}

func (c *tenantClient) AcquireTokenOnBehalfOf(ctx context.Context, assertion string, scopes []string) (string, error) {
	result, err := c.client.AcquireTokenOnBehalfOf(ctx, assertion, scopes)
	if err != nil {
		return "", &ExchangeError{TenantID: c.tenantID, Status: exchangeStatus(err), Err: err}
	}
	return result.AccessToken, nil
}

// exchangeStatus extracts the HTTP status MSAL received, if any.
func exchangeStatus(err error) int {
	var callErr msalerrors.CallErr
	if errors.As(err, &callErr) && callErr.Resp != nil {
		return callErr.Resp.StatusCode
	}
	return 0
}

// SetupHint returns guidance for registering the backend app.
func SetupHint() string {
	return "Register the backend API at portal.azure.com > App registrations, " +
		"expose an API scope, grant Mail.Read (delegated) and create a client secret"
}
