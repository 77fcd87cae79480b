package repository_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/gt"
	"github.com/pennybridge/mnemon/pkg/domain/interfaces"
	"github.com/pennybridge/mnemon/pkg/domain/model"
	"github.com/pennybridge/mnemon/pkg/domain/types"
	"github.com/pennybridge/mnemon/pkg/repository/chromem"
	"github.com/pennybridge/mnemon/pkg/repository/firestore"
	"github.com/pennybridge/mnemon/pkg/repository/memory"
	"github.com/pennybridge/mnemon/pkg/repository/postgres"
)

func testNamespace(t *testing.T) types.Namespace {
	t.Helper()
	owner := "owner-" + uuid.New().String()
	ns := types.NewNamespace(owner, "semantic")
	gt.NoError(t, ns.Validate()).Required()
	return ns
}

func isNotFound(err error) bool {
	return errors.Is(err, memory.ErrNotFound) ||
		errors.Is(err, firestore.ErrNotFound) ||
		errors.Is(err, postgres.ErrNotFound)
}

func embeddingAt(weights map[int]float32) []float32 {
	emb := make([]float32, model.EmbeddingDimension)
	for i, w := range weights {
		emb[i] = w
	}
	return emb
}

func runRecordRepositoryTest(t *testing.T, newRepo func(t *testing.T) interfaces.Repository) {
	t.Helper()

	t.Run("Create assigns ID and timestamps", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		ns := testNamespace(t)

		record := &model.MemoryRecord{
			Namespace:  ns,
			Category:   types.CategoryFinance,
			Summary:    "Pays rid-sharing subscription on the 3rd of each month",
			Embedding:  embeddingAt(map[int]float32{0: 1}),
			Importance: 0.6,
		}

		created, err := repo.Record().Create(ctx, record)
		gt.NoError(t, err).Required()

		gt.String(t, string(created.ID)).NotEqual("")
		gt.Value(t, created.Namespace).Equal(ns)
		gt.Value(t, created.Category).Equal(types.CategoryFinance)
		gt.Bool(t, created.CreatedAt.IsZero()).False()
		gt.Bool(t, created.UpdatedAt.IsZero()).False()
	})

	t.Run("Get retrieves existing record", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		ns := testNamespace(t)

		created, err := repo.Record().Create(ctx, &model.MemoryRecord{
			Namespace:  ns,
			Category:   types.CategoryGoals,
			Summary:    "Saving for a house deposit, target 40k by 2027",
			Embedding:  embeddingAt(map[int]float32{1: 1}),
			Importance: 0.9,
			Pinned:     true,
		})
		gt.NoError(t, err).Required()

		retrieved, err := repo.Record().Get(ctx, ns, created.ID)
		gt.NoError(t, err).Required()

		gt.Value(t, retrieved.ID).Equal(created.ID)
		gt.Value(t, retrieved.Summary).Equal("Saving for a house deposit, target 40k by 2027")
		gt.Value(t, retrieved.Importance).Equal(0.9)
		gt.Bool(t, retrieved.Pinned).True()
		gt.Array(t, retrieved.Embedding).Length(model.EmbeddingDimension)
	})

	t.Run("Get returns ErrNotFound for missing record", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		ns := testNamespace(t)

		_, err := repo.Record().Get(ctx, ns, model.NewRecordID())
		gt.Value(t, err).NotNil()
		gt.Bool(t, isNotFound(err)).True()
	})

	t.Run("GetByKey finds the record holding a deterministic key", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		ns := testNamespace(t)

		created, err := repo.Record().Create(ctx, &model.MemoryRecord{
			Namespace:        ns,
			Category:         types.CategoryPersonal,
			Summary:          "Birthday is April 12",
			Embedding:        embeddingAt(map[int]float32{2: 1}),
			Importance:       0.8,
			DeterministicKey: "user:birthday",
		})
		gt.NoError(t, err).Required()

		found, err := repo.Record().GetByKey(ctx, ns, "user:birthday")
		gt.NoError(t, err).Required()
		gt.Value(t, found.ID).Equal(created.ID)

		_, err = repo.Record().GetByKey(ctx, ns, "user:timezone")
		gt.Value(t, err).NotNil()
		gt.Bool(t, isNotFound(err)).True()
	})

	t.Run("Update replaces stored state and bumps UpdatedAt", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		ns := testNamespace(t)

		created, err := repo.Record().Create(ctx, &model.MemoryRecord{
			Namespace:  ns,
			Category:   types.CategoryPersonal,
			Summary:    "Lives in Lisbon",
			Embedding:  embeddingAt(map[int]float32{3: 1}),
			Importance: 0.7,
		})
		gt.NoError(t, err).Required()

		time.Sleep(10 * time.Millisecond)

		created.Summary = "Lives in Lisbon, moved from Porto in 2024"
		created.Importance = 0.75
		updated, err := repo.Record().Update(ctx, created)
		gt.NoError(t, err).Required()
		gt.Bool(t, updated.UpdatedAt.After(created.CreatedAt)).True()

		retrieved, err := repo.Record().Get(ctx, ns, created.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, retrieved.Summary).Equal("Lives in Lisbon, moved from Porto in 2024")
		gt.Value(t, retrieved.Importance).Equal(0.75)
	})

	t.Run("Update returns ErrNotFound for missing record", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		ns := testNamespace(t)

		_, err := repo.Record().Update(ctx, &model.MemoryRecord{
			ID:        model.NewRecordID(),
			Namespace: ns,
			Category:  types.CategoryOther,
			Summary:   "Ghost record",
		})
		gt.Value(t, err).NotNil()
		gt.Bool(t, isNotFound(err)).True()
	})

	t.Run("Delete removes the record", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		ns := testNamespace(t)

		created, err := repo.Record().Create(ctx, &model.MemoryRecord{
			Namespace:  ns,
			Category:   types.CategoryOther,
			Summary:    "Temporary note",
			Embedding:  embeddingAt(map[int]float32{4: 1}),
			Importance: 0.4,
		})
		gt.NoError(t, err).Required()

		gt.NoError(t, repo.Record().Delete(ctx, ns, created.ID)).Required()

		_, err = repo.Record().Get(ctx, ns, created.ID)
		gt.Value(t, err).NotNil()
		gt.Bool(t, isNotFound(err)).True()

		err = repo.Record().Delete(ctx, ns, created.ID)
		gt.Value(t, err).NotNil()
		gt.Bool(t, isNotFound(err)).True()
	})

	t.Run("List returns namespace records newest first", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		ns := testNamespace(t)
		other := testNamespace(t)

		first, err := repo.Record().Create(ctx, &model.MemoryRecord{
			Namespace:  ns,
			Category:   types.CategoryPersonal,
			Summary:    "First fact",
			Embedding:  embeddingAt(map[int]float32{0: 1}),
			Importance: 0.5,
		})
		gt.NoError(t, err).Required()

		time.Sleep(10 * time.Millisecond)

		second, err := repo.Record().Create(ctx, &model.MemoryRecord{
			Namespace:  ns,
			Category:   types.CategoryPersonal,
			Summary:    "Second fact",
			Embedding:  embeddingAt(map[int]float32{1: 1}),
			Importance: 0.5,
		})
		gt.NoError(t, err).Required()

		_, err = repo.Record().Create(ctx, &model.MemoryRecord{
			Namespace:  other,
			Category:   types.CategoryPersonal,
			Summary:    "Other namespace fact",
			Embedding:  embeddingAt(map[int]float32{2: 1}),
			Importance: 0.5,
		})
		gt.NoError(t, err).Required()

		records, err := repo.Record().List(ctx, ns)
		gt.NoError(t, err).Required()
		gt.Array(t, records).Length(2)
		gt.Value(t, records[0].ID).Equal(second.ID)
		gt.Value(t, records[1].ID).Equal(first.ID)
	})

	t.Run("FindByEmbedding orders by similarity", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		ns := testNamespace(t)

		_, err := repo.Record().Create(ctx, &model.MemoryRecord{
			Namespace:  ns,
			Category:   types.CategoryFinance,
			Summary:    "Close match",
			Embedding:  embeddingAt(map[int]float32{0: 0.9, 1: 0.1}),
			Importance: 0.5,
		})
		gt.NoError(t, err).Required()

		_, err = repo.Record().Create(ctx, &model.MemoryRecord{
			Namespace:  ns,
			Category:   types.CategoryFinance,
			Summary:    "Distant match",
			Embedding:  embeddingAt(map[int]float32{1: 0.9, 2: 0.1}),
			Importance: 0.5,
		})
		gt.NoError(t, err).Required()

		_, err = repo.Record().Create(ctx, &model.MemoryRecord{
			Namespace:  ns,
			Category:   types.CategoryFinance,
			Summary:    "Exact match",
			Embedding:  embeddingAt(map[int]float32{0: 1}),
			Importance: 0.5,
		})
		gt.NoError(t, err).Required()

		neighbors, err := repo.Record().FindByEmbedding(ctx, ns, types.CategoryFinance,
			embeddingAt(map[int]float32{0: 1}), 2)
		gt.NoError(t, err).Required()

		gt.Array(t, neighbors).Length(2)
		gt.Value(t, neighbors[0].Record.Summary).Equal("Exact match")
		gt.Value(t, neighbors[1].Record.Summary).Equal("Close match")
		gt.Bool(t, neighbors[0].Similarity >= neighbors[1].Similarity).True()
		gt.Bool(t, neighbors[0].Similarity > 0.99).True()
	})

	t.Run("FindByEmbedding filters by category", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		ns := testNamespace(t)

		_, err := repo.Record().Create(ctx, &model.MemoryRecord{
			Namespace:  ns,
			Category:   types.CategoryFinance,
			Summary:    "Finance fact",
			Embedding:  embeddingAt(map[int]float32{0: 1}),
			Importance: 0.5,
		})
		gt.NoError(t, err).Required()

		_, err = repo.Record().Create(ctx, &model.MemoryRecord{
			Namespace:  ns,
			Category:   types.CategoryGoals,
			Summary:    "Goals fact",
			Embedding:  embeddingAt(map[int]float32{0: 1}),
			Importance: 0.5,
		})
		gt.NoError(t, err).Required()

		neighbors, err := repo.Record().FindByEmbedding(ctx, ns, types.CategoryGoals,
			embeddingAt(map[int]float32{0: 1}), 5)
		gt.NoError(t, err).Required()
		gt.Array(t, neighbors).Length(1)
		gt.Value(t, neighbors[0].Record.Summary).Equal("Goals fact")
	})

	t.Run("FindByEmbedding respects limit", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		ns := testNamespace(t)

		for i := 0; i < 5; i++ {
			_, err := repo.Record().Create(ctx, &model.MemoryRecord{
				Namespace:  ns,
				Category:   types.CategoryOther,
				Summary:    fmt.Sprintf("Fact %d", i),
				Embedding:  embeddingAt(map[int]float32{0: 0.5, 1: float32(i) * 0.1}),
				Importance: 0.5,
			})
			gt.NoError(t, err).Required()
		}

		neighbors, err := repo.Record().FindByEmbedding(ctx, ns, types.CategoryOther,
			embeddingAt(map[int]float32{0: 1}), 3)
		gt.NoError(t, err).Required()
		gt.Array(t, neighbors).Length(3)
	})

	t.Run("FindByEmbedding returns empty for empty namespace", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		ns := testNamespace(t)

		neighbors, err := repo.Record().FindByEmbedding(ctx, ns, types.CategoryFinance,
			embeddingAt(map[int]float32{0: 1}), 5)
		gt.NoError(t, err).Required()
		gt.Array(t, neighbors).Length(0)
	})

	t.Run("Deleted record no longer appears in search", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		ns := testNamespace(t)

		created, err := repo.Record().Create(ctx, &model.MemoryRecord{
			Namespace:  ns,
			Category:   types.CategoryPersonal,
			Summary:    "Soon to be replaced",
			Embedding:  embeddingAt(map[int]float32{0: 1}),
			Importance: 0.5,
		})
		gt.NoError(t, err).Required()

		replacement, err := repo.Record().Create(ctx, &model.MemoryRecord{
			Namespace:  ns,
			Category:   types.CategoryPersonal,
			Summary:    "Replacement",
			Embedding:  embeddingAt(map[int]float32{0: 1, 1: 0.01}),
			Importance: 0.5,
		})
		gt.NoError(t, err).Required()

		gt.NoError(t, repo.Record().Delete(ctx, ns, created.ID)).Required()

		neighbors, err := repo.Record().FindByEmbedding(ctx, ns, types.CategoryPersonal,
			embeddingAt(map[int]float32{0: 1}), 5)
		gt.NoError(t, err).Required()
		gt.Array(t, neighbors).Length(1)
		gt.Value(t, neighbors[0].Record.ID).Equal(replacement.ID)
	})
}

func newMemoryRepository(t *testing.T) interfaces.Repository {
	t.Helper()
	repo := memory.New()
	t.Cleanup(func() {
		gt.NoError(t, repo.Close())
	})
	return repo
}

func newChromemRepository(t *testing.T) interfaces.Repository {
	t.Helper()
	repo, err := chromem.New()
	gt.NoError(t, err).Required()
	t.Cleanup(func() {
		gt.NoError(t, repo.Close())
	})
	return repo
}

func newFirestoreRepository(t *testing.T) interfaces.Repository {
	t.Helper()

	projectID := os.Getenv("TEST_FIRESTORE_PROJECT_ID")
	if projectID == "" {
		t.Skip("TEST_FIRESTORE_PROJECT_ID not set")
	}

	ctx := context.Background()
	repo, err := firestore.New(ctx, projectID,
		firestore.WithCollectionPrefix("test-"+uuid.New().String()[:8]))
	gt.NoError(t, err).Required()
	t.Cleanup(func() {
		gt.NoError(t, repo.Close())
	})
	return repo
}

func newPostgresRepository(t *testing.T) interfaces.Repository {
	t.Helper()

	databaseURL := os.Getenv("TEST_POSTGRES_URL")
	if databaseURL == "" {
		t.Skip("TEST_POSTGRES_URL not set")
	}

	ctx := context.Background()
	repo, err := postgres.New(ctx, databaseURL)
	gt.NoError(t, err).Required()
	gt.NoError(t, repo.Migrate(ctx)).Required()
	t.Cleanup(func() {
		gt.NoError(t, repo.Close())
	})
	return repo
}

func TestMemoryRecordRepository(t *testing.T) {
	runRecordRepositoryTest(t, newMemoryRepository)
}

func TestChromemRecordRepository(t *testing.T) {
	runRecordRepositoryTest(t, newChromemRepository)
}

func TestFirestoreRecordRepository(t *testing.T) {
	runRecordRepositoryTest(t, newFirestoreRepository)
}

func TestPostgresRecordRepository(t *testing.T) {
	runRecordRepositoryTest(t, newPostgresRepository)
}
