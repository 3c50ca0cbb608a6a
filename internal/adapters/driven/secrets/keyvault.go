package secrets

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"

	"github.com/custodia-labs/mailbox-usage/internal/core/domain"
	"github.com/custodia-labs/mailbox-usage/internal/core/ports/driven"
	"github.com/custodia-labs/mailbox-usage/internal/logger"
)

// Ensure KeyVault implements the interface.
var _ driven.SecretSource = (*KeyVault)(nil)

// secretGetter is the part of *azsecrets.Client used here.
type secretGetter interface {
	GetSecret(ctx context.Context, name, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error)
}

// KeyVault reads the latest version of secrets from Azure Key Vault.
type KeyVault struct {
	vaultURL string
	client   secretGetter
}

// NewKeyVault creates a KeyVault source for vaultURL, authenticating with the
// default Azure credential chain (environment, workload identity, managed
// identity, Azure CLI).
func NewKeyVault(vaultURL string) (*KeyVault, error) {
	if vaultURL == "" {
		return nil, &domain.ConfigurationError{Setting: "secret_source.key_vault_url", Reason: "is required"}
	}

	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("create azure credential: %w", err)
	}

	client, err := azsecrets.NewClient(vaultURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("create key vault client: %w", err)
	}

	return newKeyVault(vaultURL, client), nil
}

func newKeyVault(vaultURL string, client secretGetter) *KeyVault {
	return &KeyVault{vaultURL: vaultURL, client: client}
}

// GetSecret returns the current value of the named secret.
func (k *KeyVault) GetSecret(ctx context.Context, name string) (string, error) {
	logger.Debug("secrets: reading %s from %s", name, k.vaultURL)

	resp, err := k.client.GetSecret(ctx, name, "", nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound {
			return "", fmt.Errorf("%w: %s", domain.ErrSecretNotFound, name)
		}
		return "", fmt.Errorf("key vault get secret %s: %w", name, err)
	}

	if resp.Value == nil || *resp.Value == "" {
		return "", fmt.Errorf("%w: %s has no value", domain.ErrSecretNotFound, name)
	}
	return *resp.Value, nil
}
