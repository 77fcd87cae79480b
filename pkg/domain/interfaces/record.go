package interfaces

import (
	"context"

	"github.com/pennybridge/mnemon/pkg/domain/model"
	"github.com/pennybridge/mnemon/pkg/domain/types"
)

// RecordRepository defines the interface for MemoryRecord persistence.
// Only the merge engine creates, mutates, or deletes records; the read path
// never writes through this interface.
type RecordRepository interface {
	// Create persists a new record
	Create(ctx context.Context, record *model.MemoryRecord) (*model.MemoryRecord, error)

	// Get retrieves a record by ID
	Get(ctx context.Context, namespace types.Namespace, id model.RecordID) (*model.MemoryRecord, error)

	// GetByKey retrieves the record holding a deterministic key, if any.
	// Returns ErrNotFound when no live record holds the key.
	GetByKey(ctx context.Context, namespace types.Namespace, key string) (*model.MemoryRecord, error)

	// Update replaces the stored record state in place
	Update(ctx context.Context, record *model.MemoryRecord) (*model.MemoryRecord, error)

	// Delete removes a record permanently
	Delete(ctx context.Context, namespace types.Namespace, id model.RecordID) error

	// List retrieves all records in a namespace, newest first
	List(ctx context.Context, namespace types.Namespace) ([]*model.MemoryRecord, error)

	// FindByEmbedding performs similarity search over the namespace, optionally
	// restricted to one category (empty category means all). Results are ordered
	// by descending cosine similarity. Approximate nearest-neighbor semantics
	// are acceptable, but identical queries against an unchanged index must be
	// stable and reproducible.
	FindByEmbedding(ctx context.Context, namespace types.Namespace, category types.Category, embedding []float32, limit int) ([]*model.Neighbor, error)
}
