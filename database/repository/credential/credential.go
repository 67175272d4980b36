package credentialRepo

import (
	"context"

	"agendo/models"
)

// CredentialRepository persists OAuth credentials, one per instance.
type CredentialRepository interface {
	Get(ctx context.Context, instanceID string) (*models.Credential, error)
	Upsert(ctx context.Context, cred *models.Credential) error
	Delete(ctx context.Context, instanceID string) error
}
