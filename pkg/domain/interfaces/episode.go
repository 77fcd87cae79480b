package interfaces

import (
	"context"
	"time"

	"github.com/pennybridge/mnemon/pkg/domain/model"
	"github.com/pennybridge/mnemon/pkg/domain/types"
)

// EpisodeRepository defines the interface for EpisodicRecord persistence
type EpisodeRepository interface {
	// Create persists a new episode
	Create(ctx context.Context, episode *model.EpisodicRecord) (*model.EpisodicRecord, error)

	// Get retrieves an episode by ID
	Get(ctx context.Context, namespace types.Namespace, id model.EpisodeID) (*model.EpisodicRecord, error)

	// Update replaces the stored episode state (merge path: summary,
	// embedding, merge count, updated_at)
	Update(ctx context.Context, episode *model.EpisodicRecord) (*model.EpisodicRecord, error)

	// ListRecent retrieves the most recently created episodes, newest first
	ListRecent(ctx context.Context, namespace types.Namespace, limit int) ([]*model.EpisodicRecord, error)

	// ListByDate retrieves episodes stamped with the given local date
	ListByDate(ctx context.Context, namespace types.Namespace, dateISO string) ([]*model.EpisodicRecord, error)

	// ListByWeek retrieves episodes stamped with the given ISO week
	ListByWeek(ctx context.Context, namespace types.Namespace, year, isoWeek int) ([]*model.EpisodicRecord, error)

	// CountCreatedSince counts episodes created at or after the given instant,
	// used by the daily-quota guard
	CountCreatedSince(ctx context.Context, namespace types.Namespace, since time.Time) (int, error)

	// LastCreatedAt returns the creation time of the namespace's newest
	// episode, or the zero time when none exist
	LastCreatedAt(ctx context.Context, namespace types.Namespace) (time.Time, error)
}
