package microsoft

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	msalerrors "github.com/AzureAD/microsoft-authentication-library-for-go/apps/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mailbox-usage/internal/core/domain"
)

func TestConfidentialClientFactory_Authority(t *testing.T) {
	tests := []struct {
		name     string
		host     string
		tenant   string
		expected string
	}{
		{
			name:     "default host",
			host:     "",
			tenant:   "contoso.onmicrosoft.com",
			expected: "https://login.microsoftonline.com/contoso.onmicrosoft.com",
		},
		{
			name:     "sovereign cloud with trailing slash",
			host:     "https://login.microsoftonline.us/",
			tenant:   "11111111-2222-3333-4444-555555555555",
			expected: "https://login.microsoftonline.us/11111111-2222-3333-4444-555555555555",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			factory := NewConfidentialClientFactory(tt.host, nil)
			assert.Equal(t, tt.expected, factory.Authority(tt.tenant))
		})
	}
}

func TestConfidentialClientFactory_NewTenantClient(t *testing.T) {
	factory := NewConfidentialClientFactory("", http.DefaultClient)

	client, err := factory.NewTenantClient("tenant-a", "00000000-0000-0000-0000-000000000001", "secret")

	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestConfidentialClientFactory_EmptySecret(t *testing.T) {
	factory := NewConfidentialClientFactory("", nil)

	client, err := factory.NewTenantClient("tenant-a", "client", "")

	assert.Nil(t, client)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create credential")
}

func TestExchangeStatus(t *testing.T) {
	callErr := msalerrors.CallErr{
		Resp: &http.Response{StatusCode: http.StatusBadRequest},
		Err:  errors.New("AADSTS50013: assertion audience does not match"),
	}

	assert.Equal(t, http.StatusBadRequest, exchangeStatus(callErr))
	assert.Equal(t, http.StatusBadRequest, exchangeStatus(fmt.Errorf("wrapped: %w", callErr)))
	assert.Equal(t, 0, exchangeStatus(msalerrors.CallErr{Err: errors.New("dial tcp: refused")}))
	assert.Equal(t, 0, exchangeStatus(context.DeadlineExceeded))
}

func TestExchangeError_StatusCode(t *testing.T) {
	err := &ExchangeError{TenantID: "tenant-a", Status: http.StatusBadRequest, Err: errors.New("invalid_grant")}

	assert.Equal(t, http.StatusBadRequest, domain.StatusOf(err))
	assert.Contains(t, err.Error(), "tenant-a")
	assert.Contains(t, err.Error(), "invalid_grant")
}
