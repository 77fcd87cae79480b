package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/pennybridge/mnemon/pkg/domain/interfaces"
)

// ErrNotFound is returned when a record or episode does not exist
var ErrNotFound = goerr.New("not found")

// Firestore is the production Repository implementation. Vector similarity
// search uses Firestore FindNearest over the Embedding field; the required
// vector and composite indexes are provisioned by `mnemon migrate`.
type Firestore struct {
	client  *firestore.Client
	record  *recordRepository
	episode *episodeRepository
}

var _ interfaces.Repository = &Firestore{}

type Option func(*Firestore)

// WithCollectionPrefix scopes all collections for test isolation
func WithCollectionPrefix(prefix string) Option {
	return func(f *Firestore) {
		f.record.collectionPrefix = prefix
		f.episode.collectionPrefix = prefix
	}
}

func New(ctx context.Context, projectID string, opts ...Option) (*Firestore, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client", goerr.V("projectID", projectID))
	}

	f := &Firestore{
		client:  client,
		record:  newRecordRepository(client),
		episode: newEpisodeRepository(client),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

func (f *Firestore) Record() interfaces.RecordRepository {
	return f.record
}

func (f *Firestore) Episode() interfaces.EpisodeRepository {
	return f.episode
}

func (f *Firestore) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}
