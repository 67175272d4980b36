package instanceRepo

import (
	"context"
	"time"

	"agendo/models"
)

// InstanceRepository defines persistence for messaging-channel instances.
type InstanceRepository interface {
	GetByID(ctx context.Context, id string) (*models.Instance, error)
	GetByName(ctx context.Context, name string) (*models.Instance, error)
	List(ctx context.Context) ([]models.Instance, error)
	Upsert(ctx context.Context, inst *models.Instance) error
	UpdateStatus(ctx context.Context, id, status string, at time.Time) error
	SetQRCode(ctx context.Context, id, qr string) error
	UpdateAgentConfig(ctx context.Context, id string, cfg models.AgentConfig) error
}
