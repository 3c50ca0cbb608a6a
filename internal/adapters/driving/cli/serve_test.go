package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/mailbox-usage/internal/core/domain"
)

func TestServeCmd_InvalidConfigPrintsHint(t *testing.T) {
	withStack(t, &Stack{Usage: &fakeUsage{}})

	out, err := execute(t, "serve", "--config", writeTestConfig(t, `concurrency = 2`))

	assert.ErrorIs(t, err, domain.ErrConfiguration)
	assert.Contains(t, out, "App registrations")
}

func TestServeCmd_MissingExplicitConfig(t *testing.T) {
	withStack(t, &Stack{Usage: &fakeUsage{}})

	_, err := execute(t, "serve", "--config", "/nonexistent/mailbox-usage.toml")

	assert.Error(t, err)
}

func TestServeCmd_RejectsArgs(t *testing.T) {
	_, err := execute(t, "serve", "extra")
	assert.Error(t, err)
}

func TestServeCmd_ServicesNotConfigured(t *testing.T) {
	old := newStack
	newStack = nil
	t.Cleanup(func() { newStack = old })

	_, err := execute(t, "serve", "--config", writeTestConfig(t, validConfig))

	assert.ErrorIs(t, err, errServicesNotConfigured)
}
