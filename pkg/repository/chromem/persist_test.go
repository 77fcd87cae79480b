package chromem_test

import (
	"context"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/pennybridge/mnemon/pkg/domain/model"
	"github.com/pennybridge/mnemon/pkg/domain/types"
	"github.com/pennybridge/mnemon/pkg/repository/chromem"
)

func axisVec() []float32 {
	vec := make([]float32, model.EmbeddingDimension)
	vec[0] = 1
	return vec
}

func TestPersistentStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	ns := types.NewNamespace("owner-9", "semantic")

	repo, err := chromem.NewPersistent(ctx, dir)
	gt.NoError(t, err).Required()

	created, err := repo.Record().Create(ctx, &model.MemoryRecord{
		Namespace:  ns,
		Category:   types.CategoryPersonal,
		Summary:    "User's dog Luna is 3 years old",
		Embedding:  axisVec(),
		Importance: 0.6,
	})
	gt.NoError(t, err).Required()

	now := time.Now().UTC()
	episode := &model.EpisodicRecord{
		Namespace: ns,
		Summary:   "Opened a travel savings account",
		Embedding: axisVec(),
	}
	episode.StampDate(now, time.UTC)
	seeded, err := repo.Episode().Create(ctx, episode)
	gt.NoError(t, err).Required()
	gt.NoError(t, repo.Close())

	reopened, err := chromem.NewPersistent(ctx, dir)
	gt.NoError(t, err).Required()

	got, err := reopened.Record().Get(ctx, ns, created.ID)
	gt.NoError(t, err).Required()
	gt.Value(t, got.Summary).Equal("User's dog Luna is 3 years old")
	gt.Bool(t, got.UpdatedAt.Equal(created.UpdatedAt)).True()

	neighbors, err := reopened.Record().FindByEmbedding(ctx, ns, "", axisVec(), 5)
	gt.NoError(t, err).Required()
	gt.Array(t, neighbors).Length(1)
	gt.Value(t, neighbors[0].Record.ID).Equal(created.ID)

	episodes, err := reopened.Episode().ListByDate(ctx, ns, seeded.DateISO)
	gt.NoError(t, err).Required()
	gt.Array(t, episodes).Length(1)
	gt.Value(t, episodes[0].ID).Equal(seeded.ID)
}

func TestPersistentStoreDropsDeletedRecords(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	ns := types.NewNamespace("owner-9", "semantic")

	repo, err := chromem.NewPersistent(ctx, dir)
	gt.NoError(t, err).Required()

	created, err := repo.Record().Create(ctx, &model.MemoryRecord{
		Namespace:  ns,
		Category:   types.CategoryPersonal,
		Summary:    "User banks with Pennybridge Credit Union",
		Embedding:  axisVec(),
		Importance: 0.5,
	})
	gt.NoError(t, err).Required()
	gt.NoError(t, repo.Record().Delete(ctx, ns, created.ID))
	gt.NoError(t, repo.Close())

	reopened, err := chromem.NewPersistent(ctx, dir)
	gt.NoError(t, err).Required()

	neighbors, err := reopened.Record().FindByEmbedding(ctx, ns, "", axisVec(), 5)
	gt.NoError(t, err).Required()
	gt.Array(t, neighbors).Length(0)
}
