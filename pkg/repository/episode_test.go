package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/pennybridge/mnemon/pkg/domain/interfaces"
	"github.com/pennybridge/mnemon/pkg/domain/model"
)

func runEpisodeRepositoryTest(t *testing.T, newRepo func(t *testing.T) interfaces.Repository) {
	t.Helper()

	t.Run("Create assigns ID and timestamps", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		ns := testNamespace(t)

		episode := &model.EpisodicRecord{
			Namespace: ns,
			Summary:   "Reviewed the monthly budget and trimmed two subscriptions",
			Embedding: embeddingAt(map[int]float32{0: 1}),
		}
		episode.StampDate(time.Date(2026, 3, 10, 18, 30, 0, 0, time.UTC), time.UTC)

		created, err := repo.Episode().Create(ctx, episode)
		gt.NoError(t, err).Required()

		gt.String(t, string(created.ID)).NotEqual("")
		gt.Value(t, created.DateISO).Equal("2026-03-10")
		gt.Value(t, created.ISOWeek).Equal(11)
		gt.Value(t, created.Year).Equal(2026)
		gt.Bool(t, created.CreatedAt.IsZero()).False()
	})

	t.Run("Get retrieves existing episode", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		ns := testNamespace(t)

		episode := &model.EpisodicRecord{
			Namespace: ns,
			Summary:   "Set up a savings transfer rule",
			Embedding: embeddingAt(map[int]float32{1: 1}),
		}
		episode.StampDate(time.Now(), time.UTC)

		created, err := repo.Episode().Create(ctx, episode)
		gt.NoError(t, err).Required()

		retrieved, err := repo.Episode().Get(ctx, ns, created.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, retrieved.Summary).Equal("Set up a savings transfer rule")
		gt.Array(t, retrieved.Embedding).Length(model.EmbeddingDimension)
	})

	t.Run("Get returns ErrNotFound for missing episode", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		ns := testNamespace(t)

		_, err := repo.Episode().Get(ctx, ns, model.NewEpisodeID())
		gt.Value(t, err).NotNil()
		gt.Bool(t, isNotFound(err)).True()
	})

	t.Run("Update rewrites summary and merge count", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		ns := testNamespace(t)

		episode := &model.EpisodicRecord{
			Namespace: ns,
			Summary:   "Asked about mortgage rates",
			Embedding: embeddingAt(map[int]float32{2: 1}),
		}
		episode.StampDate(time.Now(), time.UTC)

		created, err := repo.Episode().Create(ctx, episode)
		gt.NoError(t, err).Required()

		created.Summary = "Asked about mortgage rates, then compared two fixed-rate offers"
		created.MergeCount = 1
		_, err = repo.Episode().Update(ctx, created)
		gt.NoError(t, err).Required()

		retrieved, err := repo.Episode().Get(ctx, ns, created.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, retrieved.MergeCount).Equal(1)
		gt.Value(t, retrieved.Summary).Equal("Asked about mortgage rates, then compared two fixed-rate offers")
	})

	t.Run("ListRecent returns newest first up to limit", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		ns := testNamespace(t)

		var last *model.EpisodicRecord
		for i := 0; i < 3; i++ {
			episode := &model.EpisodicRecord{
				Namespace: ns,
				Summary:   "Episode " + string(rune('A'+i)),
				Embedding: embeddingAt(map[int]float32{i: 1}),
			}
			episode.StampDate(time.Now(), time.UTC)

			created, err := repo.Episode().Create(ctx, episode)
			gt.NoError(t, err).Required()
			last = created

			time.Sleep(10 * time.Millisecond)
		}

		episodes, err := repo.Episode().ListRecent(ctx, ns, 2)
		gt.NoError(t, err).Required()
		gt.Array(t, episodes).Length(2)
		gt.Value(t, episodes[0].ID).Equal(last.ID)
	})

	t.Run("ListByDate and ListByWeek filter on stamps", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		ns := testNamespace(t)

		monday := &model.EpisodicRecord{
			Namespace: ns,
			Summary:   "Monday check-in",
			Embedding: embeddingAt(map[int]float32{0: 1}),
		}
		monday.StampDate(time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC), time.UTC)
		_, err := repo.Episode().Create(ctx, monday)
		gt.NoError(t, err).Required()

		nextWeek := &model.EpisodicRecord{
			Namespace: ns,
			Summary:   "Next week check-in",
			Embedding: embeddingAt(map[int]float32{1: 1}),
		}
		nextWeek.StampDate(time.Date(2026, 3, 16, 9, 0, 0, 0, time.UTC), time.UTC)
		_, err = repo.Episode().Create(ctx, nextWeek)
		gt.NoError(t, err).Required()

		byDate, err := repo.Episode().ListByDate(ctx, ns, "2026-03-09")
		gt.NoError(t, err).Required()
		gt.Array(t, byDate).Length(1)
		gt.Value(t, byDate[0].Summary).Equal("Monday check-in")

		byWeek, err := repo.Episode().ListByWeek(ctx, ns, 2026, 12)
		gt.NoError(t, err).Required()
		gt.Array(t, byWeek).Length(1)
		gt.Value(t, byWeek[0].Summary).Equal("Next week check-in")
	})

	t.Run("CountCreatedSince honors the cutoff", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		ns := testNamespace(t)

		cutoff := time.Now().Add(-time.Minute)

		episode := &model.EpisodicRecord{
			Namespace: ns,
			Summary:   "Fresh episode",
			Embedding: embeddingAt(map[int]float32{0: 1}),
		}
		episode.StampDate(time.Now(), time.UTC)
		_, err := repo.Episode().Create(ctx, episode)
		gt.NoError(t, err).Required()

		count, err := repo.Episode().CountCreatedSince(ctx, ns, cutoff)
		gt.NoError(t, err).Required()
		gt.Value(t, count).Equal(1)

		count, err = repo.Episode().CountCreatedSince(ctx, ns, time.Now().Add(time.Minute))
		gt.NoError(t, err).Required()
		gt.Value(t, count).Equal(0)
	})

	t.Run("LastCreatedAt returns zero time for empty namespace", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		ns := testNamespace(t)

		last, err := repo.Episode().LastCreatedAt(ctx, ns)
		gt.NoError(t, err).Required()
		gt.Bool(t, last.IsZero()).True()

		episode := &model.EpisodicRecord{
			Namespace: ns,
			Summary:   "Only episode",
			Embedding: embeddingAt(map[int]float32{0: 1}),
		}
		episode.StampDate(time.Now(), time.UTC)
		created, err := repo.Episode().Create(ctx, episode)
		gt.NoError(t, err).Required()

		last, err = repo.Episode().LastCreatedAt(ctx, ns)
		gt.NoError(t, err).Required()
		gt.Bool(t, last.Sub(created.CreatedAt).Abs() < time.Second).True()
	})
}

func TestMemoryEpisodeRepository(t *testing.T) {
	runEpisodeRepositoryTest(t, newMemoryRepository)
}

func TestChromemEpisodeRepository(t *testing.T) {
	runEpisodeRepositoryTest(t, newChromemRepository)
}

func TestFirestoreEpisodeRepository(t *testing.T) {
	runEpisodeRepositoryTest(t, newFirestoreRepository)
}

func TestPostgresEpisodeRepository(t *testing.T) {
	runEpisodeRepositoryTest(t, newPostgresRepository)
}
