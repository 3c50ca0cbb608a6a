// Package secrets provides SecretSource implementations: a static map, a
// credentials directory, Azure Key Vault and S3-compatible object storage.
// New selects one from configuration.
package secrets
