package usecase

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pennybridge/mnemon/pkg/domain/model"
	"github.com/pennybridge/mnemon/pkg/domain/types"
	"github.com/pennybridge/mnemon/pkg/utils/errutil"
	"golang.org/x/sync/errgroup"
)

// RetrievalUseCase is the read path: it assembles the ranked context bundle
// for the current turn. It never writes; retrieval failures produce an empty
// bundle, not a turn failure.
type RetrievalUseCase struct {
	deps *deps
}

// TimeFilter is a resolved time phrase from the current turn. Either DateISO
// is set, or Year and ISOWeek are. An unresolvable phrase means no filter
// and pure recency bias.
type TimeFilter struct {
	DateISO string
	Year    int
	ISOWeek int
}

// ContextBundle is the retrieval output handed to the conversation pipeline.
type ContextBundle struct {
	Bullets  []string
	TimeLine string
}

type rankedItem struct {
	text      string
	score     float64
	updatedAt time.Time
}

// RetrieveContext fetches the semantic and episodic pools concurrently,
// reranks them with the hybrid score, and renders the bullet list plus the
// local-time line. Recall intent widens the episodic pool and raises the
// recency weight.
func (u *RetrievalUseCase) RetrieveContext(ctx context.Context, ns types.Namespace, queryText string, recallIntent bool, filter *TimeFilter) (*ContextBundle, error) {
	pol := u.deps.policy.Retrieval
	now := u.deps.now()
	loc := u.deps.tz.Resolve(ctx, ns)

	bundle := &ContextBundle{
		TimeLine: timeLine(now, loc),
	}

	queryEmb, err := u.deps.embedder.Embed(ctx, queryText)
	if err != nil {
		errutil.Handle(ctx, goerr.Wrap(ErrEmbeddingFailure, "query embed failed", goerr.V("cause", err)),
			"retrieval degraded to empty context")
		return bundle, nil
	}

	episodicPool := pol.EpisodicPool
	recencyWeight := pol.WeightRecency
	if recallIntent {
		episodicPool = pol.RecallEpisodicPool
		recencyWeight = pol.RecallWeightRec
	}

	var neighbors []*model.Neighbor
	var episodes []*model.EpisodicRecord

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var searchErr error
		neighbors, searchErr = u.deps.repo.Record().FindByEmbedding(egCtx, ns, "", queryEmb, pol.ContextTopK)
		if searchErr != nil {
			return goerr.Wrap(ErrVectorIndex, "semantic pool fetch failed", goerr.V("cause", searchErr))
		}
		return nil
	})
	eg.Go(func() error {
		var fetchErr error
		episodes, fetchErr = u.fetchEpisodes(egCtx, ns, filter, episodicPool)
		if fetchErr != nil {
			return goerr.Wrap(ErrVectorIndex, "episodic pool fetch failed", goerr.V("cause", fetchErr))
		}
		return nil
	})
	if err := eg.Wait(); err != nil {
		errutil.Handle(ctx, err, "retrieval degraded to empty context")
		return bundle, nil
	}

	items := make([]rankedItem, 0, len(neighbors)+len(episodes))
	for _, n := range neighbors {
		items = append(items, rankedItem{
			text:      n.Record.Summary,
			updatedAt: n.Record.UpdatedAt,
			score: pol.WeightSimilarity*n.Similarity +
				pol.WeightImportance*n.Record.Importance +
				recencyWeight*recencyDecay(now, n.Record.UpdatedAt, pol.RecencyHalfLife) +
				pol.WeightPinned*pinnedBonus(n.Record.Pinned),
		})
	}
	for _, e := range episodes {
		sim := model.ClampSimilarity(model.CosineSimilarity(queryEmb, e.Embedding))
		items = append(items, rankedItem{
			text:      fmt.Sprintf("[%s] %s", e.DateISO, e.Summary),
			updatedAt: e.UpdatedAt,
			score: pol.WeightSimilarity*sim +
				recencyWeight*recencyDecay(now, e.UpdatedAt, pol.RecencyHalfLife),
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].score != items[j].score {
			return items[i].score > items[j].score
		}
		return items[i].updatedAt.After(items[j].updatedAt)
	})

	limit := pol.ContextTopN
	if len(items) < limit {
		limit = len(items)
	}
	for _, item := range items[:limit] {
		bundle.Bullets = append(bundle.Bullets, "- "+item.text)
	}

	return bundle, nil
}

func (u *RetrievalUseCase) fetchEpisodes(ctx context.Context, ns types.Namespace, filter *TimeFilter, pool int) ([]*model.EpisodicRecord, error) {
	if pool <= 0 {
		return nil, nil
	}

	switch {
	case filter != nil && filter.DateISO != "":
		return u.deps.repo.Episode().ListByDate(ctx, ns, filter.DateISO)
	case filter != nil && filter.ISOWeek != 0:
		return u.deps.repo.Episode().ListByWeek(ctx, ns, filter.Year, filter.ISOWeek)
	default:
		return u.deps.repo.Episode().ListRecent(ctx, ns, pool)
	}
}

// recencyDecay is exp(-ageDays/halfLife), 1.0 for brand-new entries.
func recencyDecay(now, updatedAt time.Time, halfLifeDays float64) float64 {
	if updatedAt.IsZero() || !updatedAt.Before(now) {
		return 1.0
	}
	ageDays := now.Sub(updatedAt).Hours() / 24
	return math.Exp(-ageDays / halfLifeDays)
}

func pinnedBonus(pinned bool) float64 {
	if pinned {
		return 1.0
	}
	return 0
}

// timeLine renders the contextual current-time line in the namespace's local
// timezone.
func timeLine(now time.Time, loc *time.Location) string {
	local := now.In(loc)
	zone := loc.String()
	if zone == "UTC" || zone == "" {
		return fmt.Sprintf("Current time: %s (UTC)", local.Format("Monday, 2006-01-02 15:04"))
	}
	return fmt.Sprintf("Current time: %s (%s)", local.Format("Monday, 2006-01-02 15:04"), zone)
}
