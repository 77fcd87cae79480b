package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pennybridge/mnemon/pkg/domain/model"
	"github.com/pennybridge/mnemon/pkg/domain/types"
	"github.com/pennybridge/mnemon/pkg/utils/async"
	"github.com/pennybridge/mnemon/pkg/utils/errutil"
	"github.com/pennybridge/mnemon/pkg/utils/logging"
)

// EpisodicUseCase runs the post-turn capture policy: cooldown, daily quota,
// and novelty-or-merge. It may run deferred; per-namespace state is
// mutex-guarded so the next turn's cooldown check never double-counts.
type EpisodicUseCase struct {
	deps *deps

	mu    sync.Mutex
	state map[types.Namespace]*episodicState
}

type episodicState struct {
	turnsSinceWrite int
	lastWrite       time.Time
}

// EpisodicResult is the outcome of one capture pass.
type EpisodicResult struct {
	Action    types.EpisodicAction
	EpisodeID model.EpisodeID
}

func newEpisodicUseCase(d *deps) *EpisodicUseCase {
	return &EpisodicUseCase{
		deps:  d,
		state: make(map[types.Namespace]*episodicState),
	}
}

func (u *EpisodicUseCase) nsState(ns types.Namespace) *episodicState {
	st, ok := u.state[ns]
	if !ok {
		st = &episodicState{}
		u.state[ns] = st
	}
	return st
}

// CaptureDeferred runs Capture in the background so the finished turn does
// not wait on the capture verdict. The outcome surfaces only in logs.
func (u *EpisodicUseCase) CaptureDeferred(ctx context.Context, ns types.Namespace, turns []model.Turn) {
	window := make([]model.Turn, len(turns))
	copy(window, turns)

	async.Dispatch(ctx, func(ctx context.Context) error {
		_, err := u.Capture(ctx, ns, window)
		return err
	})
}

// Capture evaluates one finished turn against the capture policy. Runs under
// a single mutex per use case so state updates and cooldown checks are
// atomic with respect to the next turn.
func (u *EpisodicUseCase) Capture(ctx context.Context, ns types.Namespace, turns []model.Turn) (*EpisodicResult, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	now := u.deps.now()
	loc := u.deps.tz.Resolve(ctx, ns)
	pol := u.deps.policy.Episodic

	st := u.nsState(ns)
	st.turnsSinceWrite++

	lastWrite := st.lastWrite
	repoLast, err := u.deps.repo.Episode().LastCreatedAt(ctx, ns)
	if err != nil {
		errutil.Handle(ctx, goerr.Wrap(ErrVectorIndex, "last episode lookup failed", goerr.V("cause", err)),
			"episodic capture degraded to skip")
		return u.skip(ctx, ns, "cooldown lookup failure"), nil
	}
	if repoLast.After(lastWrite) {
		lastWrite = repoLast
	}

	// guard 1: cooldown, turns AND wall clock. Vacuous until the namespace
	// has its first episodic write.
	if !lastWrite.IsZero() {
		if st.turnsSinceWrite < pol.CooldownTurns {
			return u.skip(ctx, ns, "within turn cooldown"), nil
		}
		if now.Sub(lastWrite) < time.Duration(pol.CooldownMinutes)*time.Minute {
			return u.skip(ctx, ns, "within wall-clock cooldown"), nil
		}
	}

	// guard 2: daily quota in the namespace's local day
	localNow := now.In(loc)
	startOfDay := time.Date(localNow.Year(), localNow.Month(), localNow.Day(), 0, 0, 0, 0, loc)
	count, err := u.deps.repo.Episode().CountCreatedSince(ctx, ns, startOfDay)
	if err != nil {
		errutil.Handle(ctx, goerr.Wrap(ErrVectorIndex, "quota count failed", goerr.V("cause", err)),
			"episodic capture degraded to skip")
		return u.skip(ctx, ns, "quota lookup failure"), nil
	}
	if count >= pol.MaxPerDay {
		return u.skip(ctx, ns, "daily quota exhausted"), nil
	}

	// summarize the trailing conversational window
	window := turns
	if len(window) > pol.SummaryTurns {
		window = window[len(window)-pol.SummaryTurns:]
	}
	summary, err := u.deps.summarize.SummarizeTurns(ctx, window)
	if err != nil {
		return u.skip(ctx, ns, "nothing to summarize"), nil
	}

	emb, err := u.deps.embedder.Embed(ctx, summary)
	if err != nil {
		errutil.Handle(ctx, goerr.Wrap(ErrEmbeddingFailure, "episode embed failed", goerr.V("cause", err)),
			"episodic capture degraded to skip")
		return u.skip(ctx, ns, "embedding failure"), nil
	}

	// guard 3: novelty, or the merge path
	recent, err := u.deps.repo.Episode().ListRecent(ctx, ns, pol.RecentPool)
	if err != nil {
		errutil.Handle(ctx, goerr.Wrap(ErrVectorIndex, "recent episode fetch failed", goerr.V("cause", err)),
			"episodic capture degraded to skip")
		return u.skip(ctx, ns, "recent fetch failure"), nil
	}

	mergeWindow := time.Duration(pol.MergeWindowHours) * time.Hour
	maxSim := 0.0
	var mergeTarget *model.EpisodicRecord
	mergeSim := 0.0
	for _, e := range recent {
		sim := model.ClampSimilarity(model.CosineSimilarity(emb, e.Embedding))
		if sim > maxSim {
			maxSim = sim
		}
		if sim >= pol.MergeThreshold && now.Sub(e.UpdatedAt) <= mergeWindow && sim > mergeSim {
			mergeTarget = e
			mergeSim = sim
		}
	}

	if mergeTarget != nil {
		return u.mergeEpisode(ctx, ns, st, mergeTarget, summary, mergeSim, now)
	}
	if maxSim >= pol.NoveltyMin {
		return u.skip(ctx, ns, "not novel against recent episodes"), nil
	}

	return u.createEpisode(ctx, ns, st, summary, emb, maxSim, now, loc)
}

// mergeEpisode extends a themed episode within the merge window instead of
// creating a new one.
func (u *EpisodicUseCase) mergeEpisode(ctx context.Context, ns types.Namespace, st *episodicState, target *model.EpisodicRecord, summary string, sim float64, now time.Time) (*EpisodicResult, error) {
	merged := *target
	merged.Summary = u.deps.summarize.MergeSummaries(ctx, target.Summary, summary)
	merged.MergeCount++
	merged.UpdatedAt = now

	if emb, err := u.deps.embedder.Embed(ctx, merged.Summary); err == nil {
		merged.Embedding = emb
	}

	saved, err := u.deps.repo.Episode().Update(ctx, &merged)
	if err != nil {
		errutil.Handle(ctx, goerr.Wrap(ErrVectorIndex, "episode merge failed", goerr.V("cause", err)),
			"episodic capture degraded to skip")
		return u.skip(ctx, ns, "merge failure"), nil
	}

	st.turnsSinceWrite = 0
	st.lastWrite = now

	u.emit(ctx, model.DecisionEvent{
		Namespace:  ns,
		Action:     types.EpisodicMerge.String(),
		RecordID:   string(saved.ID),
		Similarity: sim,
		Reason:     "themed match within merge window",
		DecidedAt:  now,
	})

	return &EpisodicResult{Action: types.EpisodicMerge, EpisodeID: saved.ID}, nil
}

func (u *EpisodicUseCase) createEpisode(ctx context.Context, ns types.Namespace, st *episodicState, summary string, emb []float32, maxSim float64, now time.Time, loc *time.Location) (*EpisodicResult, error) {
	episode := &model.EpisodicRecord{
		ID:        model.NewEpisodeID(),
		Namespace: ns,
		Summary:   summary,
		Embedding: emb,
		CreatedAt: now,
		UpdatedAt: now,
	}
	episode.StampDate(now, loc)

	created, err := u.deps.repo.Episode().Create(ctx, episode)
	if err != nil {
		errutil.Handle(ctx, goerr.Wrap(ErrVectorIndex, "episode create failed", goerr.V("cause", err)),
			"episodic capture degraded to skip")
		return u.skip(ctx, ns, "create failure"), nil
	}

	st.turnsSinceWrite = 0
	st.lastWrite = now

	u.emit(ctx, model.DecisionEvent{
		Namespace:  ns,
		Action:     types.EpisodicCreate.String(),
		RecordID:   string(created.ID),
		Similarity: maxSim,
		Reason:     "novel episode",
		DecidedAt:  now,
	})

	return &EpisodicResult{Action: types.EpisodicCreate, EpisodeID: created.ID}, nil
}

func (u *EpisodicUseCase) skip(ctx context.Context, ns types.Namespace, reason string) *EpisodicResult {
	u.emit(ctx, model.DecisionEvent{
		Namespace: ns,
		Action:    types.EpisodicSkip.String(),
		Reason:    reason,
		DecidedAt: u.deps.now(),
	})
	return &EpisodicResult{Action: types.EpisodicSkip}
}

func (u *EpisodicUseCase) emit(ctx context.Context, event model.DecisionEvent) {
	logging.From(ctx).Info("episodic decision", "event", event)
}
