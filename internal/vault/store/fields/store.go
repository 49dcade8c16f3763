package fields

import (
	"context"

	"vaultcore/internal/vault/models"
	id "vaultcore/pkg/domain"
)

// Store persists the payload for each lifetime. Payloads are immutable:
// replacement data gets a new lifetime, never an update here.
type Store interface {
	CreateBatch(ctx context.Context, values []*models.Value) error
	GetByLifetimes(ctx context.Context, lifetimeIDs []id.LifetimeID) (map[id.LifetimeID]*models.Value, error)
}
