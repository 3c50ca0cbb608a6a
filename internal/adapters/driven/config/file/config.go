// Package file loads service configuration from a TOML file and the
// environment. Environment variables override file values.
package file

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/mailbox-usage/internal/adapters/driven/secrets"
	"github.com/custodia-labs/mailbox-usage/internal/connectors/microsoft"
	"github.com/custodia-labs/mailbox-usage/internal/core/domain"
	"github.com/custodia-labs/mailbox-usage/internal/core/services"
)

// DefaultPath is read when no --config flag is given.
const DefaultPath = "/etc/mailbox-usage/config.toml"

// Default values.
const (
	DefaultListenAddr  = ":8080"
	DefaultHTTPTimeout = 60 * time.Second
)

// Duration is a time.Duration written as a Go duration string ("60s").
type Duration struct {
	time.Duration
}

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText formats the duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config is the service configuration.
type Config struct {
	ListenAddr      string         `toml:"listen_addr"`
	DefaultTenantID string         `toml:"default_tenant_id"`
	ClientID        string         `toml:"client_id"`
	ClientSecret    string         `toml:"client_secret"`
	AuthorityHost   string         `toml:"authority_host"`
	GraphBaseURL    string         `toml:"graph_base_url"`
	GraphScope      string         `toml:"graph_scope"`
	Concurrency     int            `toml:"concurrency"`
	PageSize        int            `toml:"page_size"`
	AudiencePolicy  string         `toml:"audience_policy"`
	AllowedOrigins  []string       `toml:"allowed_origins"`
	HTTPTimeout     Duration       `toml:"http_timeout"`
	SecretSource    secrets.Config `toml:"secret_source"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		ListenAddr:     DefaultListenAddr,
		AuthorityHost:  microsoft.DefaultAuthorityHost,
		GraphBaseURL:   microsoft.DefaultBaseURL,
		GraphScope:     microsoft.DefaultGraphScope,
		Concurrency:    services.DefaultConcurrency,
		PageSize:       microsoft.DefaultPageSize,
		AudiencePolicy: string(services.AudiencePolicyWarn),
		HTTPTimeout:    Duration{DefaultHTTPTimeout},
		SecretSource: secrets.Config{
			Name: services.DefaultSecretName,
		},
	}
}

// Load reads path over the defaults and applies environment overrides.
// A missing file is only an error when required is set.
func Load(path string, required bool) (*Config, error) {
	cfg := Default()

	buf, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist) && !required:
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		dec := toml.NewDecoder(bytes.NewReader(buf)).DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.setDefaults()
	return cfg, nil
}

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	strs := map[string]*string{
		"LISTEN_ADDR":           &c.ListenAddr,
		"AZURE_TENANT_ID":       &c.DefaultTenantID,
		"BACKEND_CLIENT_ID":     &c.ClientID,
		"BACKEND_CLIENT_SECRET": &c.ClientSecret,
		"AUTHORITY_HOST":        &c.AuthorityHost,
		"GRAPH_BASE_URL":        &c.GraphBaseURL,
		"GRAPH_SCOPE":           &c.GraphScope,
		"AUDIENCE_POLICY":       &c.AudiencePolicy,
		"SECRET_SOURCE":         &c.SecretSource.Kind,
		"KEY_VAULT_SECRET_NAME": &c.SecretSource.Name,
		"KEY_VAULT_URL":         &c.SecretSource.KeyVaultURL,
		"CREDENTIALS_DIRECTORY": &c.SecretSource.Directory,
		"SECRET_S3_BUCKET":      &c.SecretSource.S3.Bucket,
		"SECRET_S3_REGION":      &c.SecretSource.S3.Region,
		"SECRET_S3_ENDPOINT":    &c.SecretSource.S3.Endpoint,
		"SECRET_S3_PREFIX":      &c.SecretSource.S3.Prefix,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"CONCURRENCY": &c.Concurrency,
		"PAGE_SIZE":   &c.PageSize,
	}
	for key, dst := range ints {
		v, ok := lookup(key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return &domain.ConfigurationError{Setting: key, Reason: fmt.Sprintf("not an integer: %q", v)}
		}
		*dst = n
	}

	if v, ok := lookup("HTTP_TIMEOUT"); ok && v != "" {
		if err := c.HTTPTimeout.UnmarshalText([]byte(v)); err != nil {
			return &domain.ConfigurationError{Setting: "HTTP_TIMEOUT", Reason: err.Error()}
		}
	}

	if v, ok := lookup("ALLOWED_ORIGINS"); ok && v != "" {
		c.AllowedOrigins = splitList(v)
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.SecretSource.Kind == "" {
		if c.SecretSource.KeyVaultURL != "" {
			c.SecretSource.Kind = secrets.KindKeyVault
		} else {
			c.SecretSource.Kind = secrets.KindNone
		}
	}
	if c.SecretSource.Name == "" {
		c.SecretSource.Name = services.DefaultSecretName
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	switch {
	case c.ClientID == "":
		return &domain.ConfigurationError{Setting: "client_id", Reason: "is required (BACKEND_CLIENT_ID)"}
	case c.Concurrency < 1:
		return &domain.ConfigurationError{Setting: "concurrency", Reason: "must be at least 1"}
	case c.PageSize < 0:
		return &domain.ConfigurationError{Setting: "page_size", Reason: "must not be negative"}
	case c.HTTPTimeout.Duration <= 0:
		return &domain.ConfigurationError{Setting: "http_timeout", Reason: "must be positive"}
	}

	switch services.AudiencePolicy(c.AudiencePolicy) {
	case services.AudiencePolicyWarn, services.AudiencePolicyReject:
	default:
		return &domain.ConfigurationError{
			Setting: "audience_policy",
			Reason:  fmt.Sprintf("unknown policy %q (want warn or reject)", c.AudiencePolicy),
		}
	}

	if c.ClientSecret == "" && c.SecretSource.Kind == secrets.KindNone {
		return &domain.ConfigurationError{
			Setting: "client_secret",
			Reason:  "no client secret and no secret source configured",
		}
	}
	return nil
}

// String prints the configuration with secrets masked.
func (c *Config) String() string {
	const unset = "UNSET"
	const hidden = "***"
	var sb strings.Builder

	printKv := func(k string, v any) {
		fmt.Fprintf(&sb, "%-30v%-50v\n", k+":", v)
	}
	masked := func(v string) string {
		if v == "" {
			return unset
		}
		return hidden
	}
	orUnset := func(v string) string {
		if v == "" {
			return unset
		}
		return v
	}

	sb.WriteString("Configuration:\n")
	printKv("Listen Address", c.ListenAddr)
	printKv("Client ID", orUnset(c.ClientID))
	printKv("Client Secret", masked(c.ClientSecret))
	printKv("Default Tenant", orUnset(c.DefaultTenantID))
	printKv("Authority Host", c.AuthorityHost)
	printKv("Graph Base URL", c.GraphBaseURL)
	printKv("Graph Scope", c.GraphScope)
	printKv("Concurrency", c.Concurrency)
	printKv("Page Size", c.PageSize)
	printKv("Audience Policy", c.AudiencePolicy)
	printKv("Allowed Origins", strings.Join(c.AllowedOrigins, ", "))
	printKv("HTTP Timeout", c.HTTPTimeout.Duration)
	printKv("Secret Source", c.SecretSource.Kind)
	printKv("Secret Name", c.SecretSource.Name)

	switch c.SecretSource.Kind {
	case secrets.KindKeyVault:
		printKv("Key Vault URL", orUnset(c.SecretSource.KeyVaultURL))
	case secrets.KindDirectory:
		printKv("Credentials Directory", orUnset(c.SecretSource.Directory))
	case secrets.KindStatic:
		printKv("Static Secrets", len(c.SecretSource.Values))
	case secrets.KindS3:
		s3 := c.SecretSource.S3
		printKv("S3 Bucket", orUnset(s3.Bucket))
		printKv("S3 Region", orUnset(s3.Region))
		printKv("S3 Endpoint", orUnset(s3.Endpoint))
		printKv("S3 Prefix", s3.Prefix)
		printKv("S3 Access Key", masked(s3.AccessKeyID))
		printKv("S3 Secret Key", masked(s3.SecretAccessKey))
	}

	return sb.String()
}
