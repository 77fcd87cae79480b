package chromem

import (
	"context"
	"time"

	"github.com/pennybridge/mnemon/pkg/domain/interfaces"
	"github.com/pennybridge/mnemon/pkg/domain/model"
	"github.com/pennybridge/mnemon/pkg/domain/types"
)

// episodeRepository delegates to the in-process store; episodes are never
// vector-searched through chromem, so only the snapshot needs maintaining.
type episodeRepository struct {
	store *Chromem
}

var _ interfaces.EpisodeRepository = &episodeRepository{}

func (r *episodeRepository) base() interfaces.EpisodeRepository {
	return r.store.base.Episode()
}

func (r *episodeRepository) Create(ctx context.Context, episode *model.EpisodicRecord) (*model.EpisodicRecord, error) {
	created, err := r.base().Create(ctx, episode)
	if err != nil {
		return nil, err
	}

	r.store.trackNamespace(created.Namespace)
	if err := r.store.persist(ctx); err != nil {
		return nil, err
	}

	return created, nil
}

func (r *episodeRepository) Get(ctx context.Context, namespace types.Namespace, id model.EpisodeID) (*model.EpisodicRecord, error) {
	return r.base().Get(ctx, namespace, id)
}

func (r *episodeRepository) Update(ctx context.Context, episode *model.EpisodicRecord) (*model.EpisodicRecord, error) {
	updated, err := r.base().Update(ctx, episode)
	if err != nil {
		return nil, err
	}

	r.store.trackNamespace(updated.Namespace)
	if err := r.store.persist(ctx); err != nil {
		return nil, err
	}

	return updated, nil
}

func (r *episodeRepository) ListRecent(ctx context.Context, namespace types.Namespace, limit int) ([]*model.EpisodicRecord, error) {
	return r.base().ListRecent(ctx, namespace, limit)
}

func (r *episodeRepository) ListByDate(ctx context.Context, namespace types.Namespace, dateISO string) ([]*model.EpisodicRecord, error) {
	return r.base().ListByDate(ctx, namespace, dateISO)
}

func (r *episodeRepository) ListByWeek(ctx context.Context, namespace types.Namespace, year, isoWeek int) ([]*model.EpisodicRecord, error) {
	return r.base().ListByWeek(ctx, namespace, year, isoWeek)
}

func (r *episodeRepository) CountCreatedSince(ctx context.Context, namespace types.Namespace, since time.Time) (int, error) {
	return r.base().CountCreatedSince(ctx, namespace, since)
}

func (r *episodeRepository) LastCreatedAt(ctx context.Context, namespace types.Namespace) (time.Time, error) {
	return r.base().LastCreatedAt(ctx, namespace)
}
