package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pennybridge/mnemon/pkg/domain/model"
	"github.com/pennybridge/mnemon/pkg/domain/types"
)

type episodeRepository struct {
	mu       sync.RWMutex
	episodes map[types.Namespace]map[model.EpisodeID]*model.EpisodicRecord
}

func newEpisodeRepository() *episodeRepository {
	return &episodeRepository{
		episodes: make(map[types.Namespace]map[model.EpisodeID]*model.EpisodicRecord),
	}
}

// copyEpisode creates a deep copy of an episodic record
func copyEpisode(e *model.EpisodicRecord) *model.EpisodicRecord {
	copied := *e
	if e.Embedding != nil {
		copied.Embedding = make([]float32, len(e.Embedding))
		copy(copied.Embedding, e.Embedding)
	}
	return &copied
}

func (r *episodeRepository) Create(ctx context.Context, episode *model.EpisodicRecord) (*model.EpisodicRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	created := copyEpisode(episode)
	if created.ID == "" {
		created.ID = model.NewEpisodeID()
	}
	if created.CreatedAt.IsZero() {
		created.CreatedAt = now
	}
	created.UpdatedAt = now

	ns := r.episodes[created.Namespace]
	if ns == nil {
		ns = make(map[model.EpisodeID]*model.EpisodicRecord)
		r.episodes[created.Namespace] = ns
	}
	ns[created.ID] = created

	return copyEpisode(created), nil
}

// restore swaps in the given episodes verbatim, without stamping timestamps.
func (r *episodeRepository) restore(episodes []*model.EpisodicRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.episodes = make(map[types.Namespace]map[model.EpisodeID]*model.EpisodicRecord)
	for _, episode := range episodes {
		ns := r.episodes[episode.Namespace]
		if ns == nil {
			ns = make(map[model.EpisodeID]*model.EpisodicRecord)
			r.episodes[episode.Namespace] = ns
		}
		ns[episode.ID] = copyEpisode(episode)
	}
}

func (r *episodeRepository) Get(ctx context.Context, namespace types.Namespace, id model.EpisodeID) (*model.EpisodicRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	episode, exists := r.episodes[namespace][id]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "episode not found", goerr.V("id", id))
	}

	return copyEpisode(episode), nil
}

func (r *episodeRepository) Update(ctx context.Context, episode *model.EpisodicRecord) (*model.EpisodicRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.episodes[episode.Namespace][episode.ID]; !exists {
		return nil, goerr.Wrap(ErrNotFound, "episode not found", goerr.V("id", episode.ID))
	}

	updated := copyEpisode(episode)
	updated.UpdatedAt = time.Now().UTC()
	r.episodes[episode.Namespace][episode.ID] = updated

	return copyEpisode(updated), nil
}

func (r *episodeRepository) ListRecent(ctx context.Context, namespace types.Namespace, limit int) ([]*model.EpisodicRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*model.EpisodicRecord, 0, len(r.episodes[namespace]))
	for _, episode := range r.episodes[namespace] {
		result = append(result, copyEpisode(episode))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

func (r *episodeRepository) ListByDate(ctx context.Context, namespace types.Namespace, dateISO string) ([]*model.EpisodicRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*model.EpisodicRecord
	for _, episode := range r.episodes[namespace] {
		if episode.DateISO == dateISO {
			result = append(result, copyEpisode(episode))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}

func (r *episodeRepository) ListByWeek(ctx context.Context, namespace types.Namespace, year, isoWeek int) ([]*model.EpisodicRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*model.EpisodicRecord
	for _, episode := range r.episodes[namespace] {
		if episode.Year == year && episode.ISOWeek == isoWeek {
			result = append(result, copyEpisode(episode))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}

func (r *episodeRepository) CountCreatedSince(ctx context.Context, namespace types.Namespace, since time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, episode := range r.episodes[namespace] {
		if !episode.CreatedAt.Before(since) {
			count++
		}
	}

	return count, nil
}

func (r *episodeRepository) LastCreatedAt(ctx context.Context, namespace types.Namespace) (time.Time, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var last time.Time
	for _, episode := range r.episodes[namespace] {
		if episode.CreatedAt.After(last) {
			last = episode.CreatedAt
		}
	}

	return last, nil
}
