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

// SecretManagerAdapter defines the port for reading secrets from a secret management service.
// The ledger only reads credentials at startup; rotation is handled by the secret store.
// Supported backends: local filesystem, AWS Secrets Manager, HashiCorp Vault.
type SecretManagerAdapter interface {
	// GetSecret retrieves a secret by its path/name
	// Path format depends on implementation:
	//   - Local: relative file path under the base directory
	//   - AWS: "marketplace-ledger/db/password" or a full ARN
	//   - Vault: "marketplace-ledger/db" under the configured KV mount
	GetSecret(ctx context.Context, path string) (*Secret, error)

	// GetSecretVersion retrieves a specific version of a secret
	GetSecretVersion(ctx context.Context, path string, version string) (*Secret, error)
}
