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

type recordRepository struct {
	mu      sync.RWMutex
	records map[types.Namespace]map[model.RecordID]*model.MemoryRecord
}

func newRecordRepository() *recordRepository {
	return &recordRepository{
		records: make(map[types.Namespace]map[model.RecordID]*model.MemoryRecord),
	}
}

// copyRecord creates a deep copy of a memory record
func copyRecord(r *model.MemoryRecord) *model.MemoryRecord {
	copied := *r
	if r.Embedding != nil {
		copied.Embedding = make([]float32, len(r.Embedding))
		copy(copied.Embedding, r.Embedding)
	}
	return &copied
}

func (r *recordRepository) Create(ctx context.Context, record *model.MemoryRecord) (*model.MemoryRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	created := copyRecord(record)
	if created.ID == "" {
		created.ID = model.NewRecordID()
	}
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

	ns := r.records[created.Namespace]
	if ns == nil {
		ns = make(map[model.RecordID]*model.MemoryRecord)
		r.records[created.Namespace] = ns
	}
	ns[created.ID] = created

	return copyRecord(created), nil
}

// restore swaps in the given records verbatim, without stamping timestamps.
func (r *recordRepository) restore(records []*model.MemoryRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = make(map[types.Namespace]map[model.RecordID]*model.MemoryRecord)
	for _, record := range records {
		ns := r.records[record.Namespace]
		if ns == nil {
			ns = make(map[model.RecordID]*model.MemoryRecord)
			r.records[record.Namespace] = ns
		}
		ns[record.ID] = copyRecord(record)
	}
}

func (r *recordRepository) Get(ctx context.Context, namespace types.Namespace, id model.RecordID) (*model.MemoryRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, exists := r.records[namespace][id]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "record not found", goerr.V("id", id))
	}

	return copyRecord(record), nil
}

func (r *recordRepository) GetByKey(ctx context.Context, namespace types.Namespace, key string) (*model.MemoryRecord, error) {
	if key == "" {
		return nil, goerr.New("deterministic key is required")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, record := range r.records[namespace] {
		if record.DeterministicKey == key {
			return copyRecord(record), nil
		}
	}

	return nil, goerr.Wrap(ErrNotFound, "no record for key", goerr.V("key", key))
}

func (r *recordRepository) Update(ctx context.Context, record *model.MemoryRecord) (*model.MemoryRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[record.Namespace][record.ID]; !exists {
		return nil, goerr.Wrap(ErrNotFound, "record not found", goerr.V("id", record.ID))
	}

	updated := copyRecord(record)
	updated.UpdatedAt = time.Now().UTC()
	r.records[record.Namespace][record.ID] = updated

	return copyRecord(updated), nil
}

func (r *recordRepository) Delete(ctx context.Context, namespace types.Namespace, id model.RecordID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[namespace][id]; !exists {
		return goerr.Wrap(ErrNotFound, "record not found", goerr.V("id", id))
	}

	delete(r.records[namespace], id)
	return nil
}

func (r *recordRepository) List(ctx context.Context, namespace types.Namespace) ([]*model.MemoryRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*model.MemoryRecord, 0, len(r.records[namespace]))
	for _, record := range r.records[namespace] {
		result = append(result, copyRecord(record))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}

func (r *recordRepository) FindByEmbedding(ctx context.Context, namespace types.Namespace, category types.Category, embedding []float32, limit int) ([]*model.Neighbor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	neighbors := make([]*model.Neighbor, 0, limit)
	for _, record := range r.records[namespace] {
		if category != "" && record.Category != category {
			continue
		}
		if len(record.Embedding) == 0 {
			continue
		}
		sim := model.ClampSimilarity(model.CosineSimilarity(embedding, record.Embedding))
		neighbors = append(neighbors, &model.Neighbor{
			Record:     copyRecord(record),
			Similarity: sim,
		})
	}

	// Descending similarity; ties broken by most recent update for
	// reproducible ordering.
	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].Similarity != neighbors[j].Similarity {
			return neighbors[i].Similarity > neighbors[j].Similarity
		}
		return neighbors[i].Record.UpdatedAt.After(neighbors[j].Record.UpdatedAt)
	})

	if len(neighbors) > limit {
		neighbors = neighbors[:limit]
	}

	return neighbors, nil
}
