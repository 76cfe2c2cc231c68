package ports

import (
	"context"
)

// Secret represents a retrieved secret with metadata
type Secret struct {
	Value     string            // The secret value (e.g., database password)
	Version   string            // Secret version identifier
	Metadata  map[string]string // Additional secret metadata
	CreatedAt string            // When this version was created
}

// SecretManagerAdapter reads secrets from a secret management service.
// Path format depends on the implementation:
//   - Local: file path relative to the base directory
//   - AWS: secret name or ARN, e.g. "school-ledger/db/password"
//   - Vault: path under the KV mount, e.g. "school-ledger/db"
//   - GCP: secret name within the project, latest version
type SecretManagerAdapter interface {
	// GetSecret retrieves a secret by its path/name
	GetSecret(ctx context.Context, path string) (*Secret, error)
}
