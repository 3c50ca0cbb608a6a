package secrets

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/custodia-labs/mailbox-usage/internal/core/domain"
	"github.com/custodia-labs/mailbox-usage/internal/core/ports/driven"
)

// Source kinds.
const (
	KindNone      = "none"
	KindStatic    = "static"
	KindDirectory = "directory"
	KindKeyVault  = "keyvault"
	KindS3        = "s3"
)

// Config selects and configures a secret source.
type Config struct {
	Kind string `toml:"kind"`
	// Name is the secret holding the backend client secret.
	Name        string            `toml:"name"`
	Values      map[string]string `toml:"values"`
	Directory   string            `toml:"directory"`
	KeyVaultURL string            `toml:"key_vault_url"`
	S3          S3Config          `toml:"s3"`
}

// Builder creates a secret source from configuration.
type Builder func(ctx context.Context, cfg Config) (driven.SecretSource, error)

// Factory creates secret sources by kind.
type Factory struct {
	mu       sync.RWMutex
	builders map[string]Builder
}

// NewFactory creates a factory with the built-in kinds registered.
func NewFactory() *Factory {
	f := &Factory{builders: make(map[string]Builder)}
	f.registerDefaultBuilders()
	return f
}

func (f *Factory) registerDefaultBuilders() {
	f.Register(KindNone, func(context.Context, Config) (driven.SecretSource, error) {
		return nil, nil
	})

	f.Register(KindStatic, func(_ context.Context, cfg Config) (driven.SecretSource, error) {
		return NewStatic(cfg.Values), nil
	})

	f.Register(KindDirectory, func(_ context.Context, cfg Config) (driven.SecretSource, error) {
		if cfg.Directory == "" {
			return nil, &domain.ConfigurationError{Setting: "secret_source.directory", Reason: "is required"}
		}
		return NewDirectory(cfg.Directory), nil
	})

	f.Register(KindKeyVault, func(_ context.Context, cfg Config) (driven.SecretSource, error) {
		return NewKeyVault(cfg.KeyVaultURL)
	})

	f.Register(KindS3, func(ctx context.Context, cfg Config) (driven.SecretSource, error) {
		return NewS3(ctx, cfg.S3)
	})
}

// Register adds a builder for the given kind.
func (f *Factory) Register(kind string, builder Builder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builders[kind] = builder
}

// Kinds returns the registered kinds in sorted order.
func (f *Factory) Kinds() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	kinds := make([]string, 0, len(f.builders))
	for k := range f.builders {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

// Create builds the source for cfg.Kind. An empty kind means none, which
// yields a nil source.
func (f *Factory) Create(ctx context.Context, cfg Config) (driven.SecretSource, error) {
	kind := cfg.Kind
	if kind == "" {
		kind = KindNone
	}

	f.mu.RLock()
	builder, ok := f.builders[kind]
	f.mu.RUnlock()
	if !ok {
		return nil, &domain.ConfigurationError{
			Setting: "secret_source.kind",
			Reason:  fmt.Sprintf("unsupported kind %q (want one of %v)", kind, f.Kinds()),
		}
	}

	source, err := builder(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create %s secret source: %w", kind, err)
	}
	return source, nil
}

// New builds a secret source with the default factory.
func New(ctx context.Context, cfg Config) (driven.SecretSource, error) {
	return NewFactory().Create(ctx, cfg)
}
