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

// recordDoc is the Firestore document representation of model.MemoryRecord.
// Embedding is stored as firestore.Vector32 for FindNearest vector search.
type recordDoc struct {
	ID               model.RecordID     `firestore:"ID"`
	Namespace        string             `firestore:"Namespace"`
	Category         string             `firestore:"Category"`
	Summary          string             `firestore:"Summary"`
	Embedding        firestore.Vector32 `firestore:"Embedding,omitempty"`
	Importance       float64            `firestore:"Importance"`
	Pinned           bool               `firestore:"Pinned"`
	DeterministicKey string             `firestore:"DeterministicKey,omitempty"`
	CreatedAt        time.Time          `firestore:"CreatedAt"`
	UpdatedAt        time.Time          `firestore:"UpdatedAt"`
	LastAccessed     time.Time          `firestore:"LastAccessed"`
	LastVerifiedAt   time.Time          `firestore:"LastVerifiedAt"`
}

func toRecordDoc(r *model.MemoryRecord) *recordDoc {
	doc := &recordDoc{
		ID:               r.ID,
		Namespace:        r.Namespace.String(),
		Category:         r.Category.String(),
		Summary:          r.Summary,
		Importance:       r.Importance,
		Pinned:           r.Pinned,
		DeterministicKey: r.DeterministicKey,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
		LastAccessed:     r.LastAccessed,
		LastVerifiedAt:   r.LastVerifiedAt,
	}
	if len(r.Embedding) > 0 {
		doc.Embedding = firestore.Vector32(r.Embedding)
	}
	return doc
}

func fromRecordDoc(d *recordDoc) *model.MemoryRecord {
	r := &model.MemoryRecord{
		ID:               d.ID,
		Namespace:        types.Namespace(d.Namespace),
		Category:         types.Category(d.Category),
		Summary:          d.Summary,
		Importance:       d.Importance,
		Pinned:           d.Pinned,
		DeterministicKey: d.DeterministicKey,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
		LastAccessed:     d.LastAccessed,
		LastVerifiedAt:   d.LastVerifiedAt,
	}
	if len(d.Embedding) > 0 {
		r.Embedding = []float32(d.Embedding)
	}
	return r
}

type recordRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newRecordRepository(client *firestore.Client) *recordRepository {
	return &recordRepository{client: client}
}

// recordsCollection returns the subcollection path:
// owners/{ownerID}/memories/{kind}/records
func (r *recordRepository) recordsCollection(ns types.Namespace) *firestore.CollectionRef {
	return r.client.Collection(r.collectionPrefix+"owners").Doc(ns.Owner()).
		Collection("memories").Doc(ns.Kind()).
		Collection("records")
}

func (r *recordRepository) Create(ctx context.Context, record *model.MemoryRecord) (*model.MemoryRecord, error) {
	created := *record
	if created.ID == "" {
		created.ID = model.NewRecordID()
	}
	now := time.Now().UTC()
	if created.CreatedAt.IsZero() {
		created.CreatedAt = now
	}
	created.UpdatedAt = now
	if created.LastAccessed.IsZero() {
		created.LastAccessed = now
	}
	if created.LastVerifiedAt.IsZero() {
		created.LastVerifiedAt = now
	}

	docRef := r.recordsCollection(created.Namespace).Doc(string(created.ID))
	if _, err := docRef.Set(ctx, toRecordDoc(&created)); err != nil {
		return nil, goerr.Wrap(err, "failed to create record", goerr.V("namespace", created.Namespace))
	}

	return &created, nil
}

func (r *recordRepository) Get(ctx context.Context, namespace types.Namespace, id model.RecordID) (*model.MemoryRecord, error) {
	doc, err := r.recordsCollection(namespace).Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "record not found", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get record", goerr.V("id", id))
	}

	var d recordDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal record", goerr.V("id", id))
	}

	return fromRecordDoc(&d), nil
}

func (r *recordRepository) GetByKey(ctx context.Context, namespace types.Namespace, key string) (*model.MemoryRecord, error) {
	if key == "" {
		return nil, goerr.New("deterministic key is required")
	}

	iter := r.recordsCollection(namespace).
		Where("DeterministicKey", "==", key).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err == iterator.Done {
		return nil, goerr.Wrap(ErrNotFound, "no record for key", goerr.V("key", key))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query record by key", goerr.V("key", key))
	}

	var d recordDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal record", goerr.V("key", key))
	}

	return fromRecordDoc(&d), nil
}

func (r *recordRepository) Update(ctx context.Context, record *model.MemoryRecord) (*model.MemoryRecord, error) {
	docRef := r.recordsCollection(record.Namespace).Doc(string(record.ID))

	if _, err := docRef.Get(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "record not found", goerr.V("id", record.ID))
		}
		return nil, goerr.Wrap(err, "failed to get record", goerr.V("id", record.ID))
	}

	updated := *record
	updated.UpdatedAt = time.Now().UTC()
	if _, err := docRef.Set(ctx, toRecordDoc(&updated)); err != nil {
		return nil, goerr.Wrap(err, "failed to update record", goerr.V("id", record.ID))
	}

	return &updated, nil
}

func (r *recordRepository) Delete(ctx context.Context, namespace types.Namespace, id model.RecordID) error {
	docRef := r.recordsCollection(namespace).Doc(string(id))

	if _, err := docRef.Get(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(ErrNotFound, "record not found", goerr.V("id", id))
		}
		return goerr.Wrap(err, "failed to get record", goerr.V("id", id))
	}

	if _, err := docRef.Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete record", goerr.V("id", id))
	}

	return nil
}

func (r *recordRepository) List(ctx context.Context, namespace types.Namespace) ([]*model.MemoryRecord, error) {
	iter := r.recordsCollection(namespace).
		OrderBy("CreatedAt", firestore.Desc).
		Documents(ctx)
	defer iter.Stop()

	records := make([]*model.MemoryRecord, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate records")
		}

		var d recordDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal record")
		}

		records = append(records, fromRecordDoc(&d))
	}

	return records, nil
}

func (r *recordRepository) FindByEmbedding(ctx context.Context, namespace types.Namespace, category types.Category, embedding []float32, limit int) ([]*model.Neighbor, error) {
	query := r.recordsCollection(namespace).Query
	if category != "" {
		query = query.Where("Category", "==", category.String())
	}

	vq := query.FindNearest("Embedding", firestore.Vector32(embedding), limit, firestore.DistanceMeasureCosine, nil)

	iter := vq.Documents(ctx)
	defer iter.Stop()

	neighbors := make([]*model.Neighbor, 0, limit)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate record vector search results")
		}

		var d recordDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal record from vector search")
		}

		record := fromRecordDoc(&d)
		neighbors = append(neighbors, &model.Neighbor{
			Record:     record,
			Similarity: model.ClampSimilarity(model.CosineSimilarity(embedding, record.Embedding)),
		})
	}

	return neighbors, nil
}
