package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/pennybridge/mnemon/pkg/domain/model"
	"github.com/pennybridge/mnemon/pkg/domain/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// episodeDoc is the Firestore document representation of model.EpisodicRecord
type episodeDoc struct {
	ID         model.EpisodeID    `firestore:"ID"`
	Namespace  string             `firestore:"Namespace"`
	Summary    string             `firestore:"Summary"`
	Embedding  firestore.Vector32 `firestore:"Embedding,omitempty"`
	DateISO    string             `firestore:"DateISO"`
	ISOWeek    int                `firestore:"ISOWeek"`
	Year       int                `firestore:"Year"`
	MergeCount int                `firestore:"MergeCount"`
	CreatedAt  time.Time          `firestore:"CreatedAt"`
	UpdatedAt  time.Time          `firestore:"UpdatedAt"`
}

func toEpisodeDoc(e *model.EpisodicRecord) *episodeDoc {
	doc := &episodeDoc{
		ID:         e.ID,
		Namespace:  e.Namespace.String(),
		Summary:    e.Summary,
		DateISO:    e.DateISO,
		ISOWeek:    e.ISOWeek,
		Year:       e.Year,
		MergeCount: e.MergeCount,
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  e.UpdatedAt,
	}
	if len(e.Embedding) > 0 {
		doc.Embedding = firestore.Vector32(e.Embedding)
	}
	return doc
}

func fromEpisodeDoc(d *episodeDoc) *model.EpisodicRecord {
	e := &model.EpisodicRecord{
		ID:         d.ID,
		Namespace:  types.Namespace(d.Namespace),
		Summary:    d.Summary,
		DateISO:    d.DateISO,
		ISOWeek:    d.ISOWeek,
		Year:       d.Year,
		MergeCount: d.MergeCount,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
	if len(d.Embedding) > 0 {
		e.Embedding = []float32(d.Embedding)
	}
	return e
}

type episodeRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newEpisodeRepository(client *firestore.Client) *episodeRepository {
	return &episodeRepository{client: client}
}

// episodesCollection returns the subcollection path:
// owners/{ownerID}/memories/{kind}/episodes
func (r *episodeRepository) episodesCollection(ns types.Namespace) *firestore.CollectionRef {
	return r.client.Collection(r.collectionPrefix+"owners").Doc(ns.Owner()).
		Collection("memories").Doc(ns.Kind()).
		Collection("episodes")
}

func (r *episodeRepository) Create(ctx context.Context, episode *model.EpisodicRecord) (*model.EpisodicRecord, error) {
	created := *episode
	if created.ID == "" {
		created.ID = model.NewEpisodeID()
	}
	now := time.Now().UTC()
	if created.CreatedAt.IsZero() {
		created.CreatedAt = now
	}
	created.UpdatedAt = now

	docRef := r.episodesCollection(created.Namespace).Doc(string(created.ID))
	if _, err := docRef.Set(ctx, toEpisodeDoc(&created)); err != nil {
		return nil, goerr.Wrap(err, "failed to create episode", goerr.V("namespace", created.Namespace))
	}

	return &created, nil
}

func (r *episodeRepository) Get(ctx context.Context, namespace types.Namespace, id model.EpisodeID) (*model.EpisodicRecord, error) {
	doc, err := r.episodesCollection(namespace).Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "episode not found", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get episode", goerr.V("id", id))
	}

	var d episodeDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal episode", goerr.V("id", id))
	}

	return fromEpisodeDoc(&d), nil
}

func (r *episodeRepository) Update(ctx context.Context, episode *model.EpisodicRecord) (*model.EpisodicRecord, error) {
	docRef := r.episodesCollection(episode.Namespace).Doc(string(episode.ID))

	if _, err := docRef.Get(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "episode not found", goerr.V("id", episode.ID))
		}
		return nil, goerr.Wrap(err, "failed to get episode", goerr.V("id", episode.ID))
	}

	updated := *episode
	updated.UpdatedAt = time.Now().UTC()
	if _, err := docRef.Set(ctx, toEpisodeDoc(&updated)); err != nil {
		return nil, goerr.Wrap(err, "failed to update episode", goerr.V("id", episode.ID))
	}

	return &updated, nil
}

func (r *episodeRepository) ListRecent(ctx context.Context, namespace types.Namespace, limit int) ([]*model.EpisodicRecord, error) {
	query := r.episodesCollection(namespace).OrderBy("CreatedAt", firestore.Desc)
	if limit > 0 {
		query = query.Limit(limit)
	}
	return r.collect(ctx, query)
}

func (r *episodeRepository) ListByDate(ctx context.Context, namespace types.Namespace, dateISO string) ([]*model.EpisodicRecord, error) {
	query := r.episodesCollection(namespace).
		Where("DateISO", "==", dateISO).
		OrderBy("CreatedAt", firestore.Desc)
	return r.collect(ctx, query)
}

func (r *episodeRepository) ListByWeek(ctx context.Context, namespace types.Namespace, year, isoWeek int) ([]*model.EpisodicRecord, error) {
	query := r.episodesCollection(namespace).
		Where("Year", "==", year).
		Where("ISOWeek", "==", isoWeek).
		OrderBy("CreatedAt", firestore.Desc)
	return r.collect(ctx, query)
}

func (r *episodeRepository) CountCreatedSince(ctx context.Context, namespace types.Namespace, since time.Time) (int, error) {
	iter := r.episodesCollection(namespace).
		Where("CreatedAt", ">=", since).
		Documents(ctx)
	defer iter.Stop()

	count := 0
	for {
		_, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return 0, goerr.Wrap(err, "failed to count episodes")
		}
		count++
	}

	return count, nil
}

func (r *episodeRepository) LastCreatedAt(ctx context.Context, namespace types.Namespace) (time.Time, error) {
	iter := r.episodesCollection(namespace).
		OrderBy("CreatedAt", firestore.Desc).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err == iterator.Done {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, goerr.Wrap(err, "failed to query last episode")
	}

	var d episodeDoc
	if err := doc.DataTo(&d); err != nil {
		return time.Time{}, goerr.Wrap(err, "failed to unmarshal episode")
	}

	return d.CreatedAt, nil
}

func (r *episodeRepository) collect(ctx context.Context, query firestore.Query) ([]*model.EpisodicRecord, error) {
	iter := query.Documents(ctx)
	defer iter.Stop()

	episodes := make([]*model.EpisodicRecord, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate episodes")
		}

		var d episodeDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal episode")
		}

		episodes = append(episodes, fromEpisodeDoc(&d))
	}

	return episodes, nil
}
