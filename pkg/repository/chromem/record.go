package chromem

import (
	"context"
	"sort"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pennybridge/mnemon/pkg/domain/interfaces"
	"github.com/pennybridge/mnemon/pkg/domain/model"
	"github.com/pennybridge/mnemon/pkg/domain/types"
	chromemgo "github.com/philippgille/chromem-go"
)

type recordRepository struct {
	store *Chromem
}

var _ interfaces.RecordRepository = &recordRepository{}

func (r *recordRepository) base() interfaces.RecordRepository {
	return r.store.base.Record()
}

func (r *recordRepository) index(ctx context.Context, record *model.MemoryRecord) error {
	col, err := r.store.collection(record.Namespace)
	if err != nil {
		return err
	}

	doc := chromemgo.Document{
		ID:        string(record.ID),
		Content:   record.Summary,
		Embedding: record.Embedding,
		Metadata: map[string]string{
			"category": record.Category.String(),
		},
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		return goerr.Wrap(err, "failed to index record",
			goerr.V("namespace", record.Namespace),
			goerr.V("id", record.ID),
		)
	}

	return nil
}

func (r *recordRepository) Create(ctx context.Context, record *model.MemoryRecord) (*model.MemoryRecord, error) {
	created, err := r.base().Create(ctx, record)
	if err != nil {
		return nil, err
	}

	if err := r.index(ctx, created); err != nil {
		return nil, err
	}
	if err := r.store.persist(ctx); err != nil {
		return nil, err
	}

	return created, nil
}

func (r *recordRepository) Get(ctx context.Context, namespace types.Namespace, id model.RecordID) (*model.MemoryRecord, error) {
	return r.base().Get(ctx, namespace, id)
}

func (r *recordRepository) GetByKey(ctx context.Context, namespace types.Namespace, key string) (*model.MemoryRecord, error) {
	return r.base().GetByKey(ctx, namespace, key)
}

func (r *recordRepository) Update(ctx context.Context, record *model.MemoryRecord) (*model.MemoryRecord, error) {
	updated, err := r.base().Update(ctx, record)
	if err != nil {
		return nil, err
	}

	// AddDocument upserts by ID, so the stale vector is replaced.
	if err := r.index(ctx, updated); err != nil {
		return nil, err
	}
	if err := r.store.persist(ctx); err != nil {
		return nil, err
	}

	return updated, nil
}

func (r *recordRepository) Delete(ctx context.Context, namespace types.Namespace, id model.RecordID) error {
	if err := r.base().Delete(ctx, namespace, id); err != nil {
		return err
	}

	col, err := r.store.collection(namespace)
	if err != nil {
		return err
	}
	if err := col.Delete(ctx, nil, nil, string(id)); err != nil {
		return goerr.Wrap(err, "failed to remove record from index",
			goerr.V("namespace", namespace),
			goerr.V("id", id),
		)
	}

	return r.store.persist(ctx)
}

func (r *recordRepository) List(ctx context.Context, namespace types.Namespace) ([]*model.MemoryRecord, error) {
	return r.base().List(ctx, namespace)
}

func (r *recordRepository) FindByEmbedding(ctx context.Context, namespace types.Namespace, category types.Category, embedding []float32, limit int) ([]*model.Neighbor, error) {
	col, err := r.store.collection(namespace)
	if err != nil {
		return nil, err
	}

	// chromem rejects queries asking for more results than the collection holds.
	n := limit
	if count := col.Count(); n > count {
		n = count
	}
	if n <= 0 {
		return nil, nil
	}

	var where map[string]string
	if category != "" {
		where = map[string]string{"category": category.String()}
	}

	results, err := col.QueryEmbedding(ctx, embedding, n, where, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query embedding index",
			goerr.V("namespace", namespace),
			goerr.V("category", category),
		)
	}

	neighbors := make([]*model.Neighbor, 0, len(results))
	for _, res := range results {
		record, err := r.base().Get(ctx, namespace, model.RecordID(res.ID))
		if err != nil {
			return nil, goerr.Wrap(err, "index and store disagree on record",
				goerr.V("namespace", namespace),
				goerr.V("id", res.ID),
			)
		}
		neighbors = append(neighbors, &model.Neighbor{
			Record:     record,
			Similarity: model.ClampSimilarity(float64(res.Similarity)),
		})
	}

	sort.SliceStable(neighbors, func(i, j int) bool {
		if neighbors[i].Similarity != neighbors[j].Similarity {
			return neighbors[i].Similarity > neighbors[j].Similarity
		}
		return neighbors[i].Record.UpdatedAt.After(neighbors[j].Record.UpdatedAt)
	})

	return neighbors, nil
}
