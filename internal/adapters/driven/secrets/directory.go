package secrets

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/mailbox-usage/internal/core/domain"
	"github.com/custodia-labs/mailbox-usage/internal/core/ports/driven"
)

// Ensure Directory implements the interface.
var _ driven.SecretSource = (*Directory)(nil)

// Directory reads each secret from a file of the same name, as laid out by
// systemd LoadCredential= or a Kubernetes secret volume.
type Directory struct {
	dir string
}

// NewDirectory creates a Directory source rooted at dir.
func NewDirectory(dir string) *Directory {
	return &Directory{dir: dir}
}

// GetSecret returns the file's content without its trailing newline.
func (d *Directory) GetSecret(_ context.Context, name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("%w: invalid secret name %q", domain.ErrSecretNotFound, name)
	}

	data, err := os.ReadFile(filepath.Join(d.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", domain.ErrSecretNotFound, name)
	}
	if err != nil {
		return "", fmt.Errorf("read secret %s: %w", name, err)
	}

	value := strings.TrimSuffix(strings.TrimSuffix(string(data), "\n"), "\r")
	if value == "" {
		return "", fmt.Errorf("%w: %s is empty", domain.ErrSecretNotFound, name)
	}
	return value, nil
}
