package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pennybridge/mnemon/pkg/domain/model"
	"github.com/pennybridge/mnemon/pkg/domain/types"
	"github.com/pennybridge/mnemon/pkg/repository/firestore"
	"github.com/pennybridge/mnemon/pkg/repository/memory"
	"github.com/pennybridge/mnemon/pkg/repository/postgres"
	"github.com/pennybridge/mnemon/pkg/service/candidate"
	"github.com/pennybridge/mnemon/pkg/service/gate"
	"github.com/pennybridge/mnemon/pkg/utils/async"
	"github.com/pennybridge/mnemon/pkg/utils/errutil"
	"github.com/pennybridge/mnemon/pkg/utils/logging"
)

// SemanticUseCase runs the per-turn write decision: gate, neighbor search,
// same-fact checks, and the create/update/recreate/skip verdict. Any failure
// along the way degrades to skip; the conversational turn never sees a
// memory error.
type SemanticUseCase struct {
	deps *deps
}

// SemanticResult is the outcome of one decide-and-apply pass.
type SemanticResult struct {
	Action   types.DecisionAction
	RecordID model.RecordID
}

func isNotFound(err error) bool {
	return errors.Is(err, memory.ErrNotFound) ||
		errors.Is(err, firestore.ErrNotFound) ||
		errors.Is(err, postgres.ErrNotFound)
}

// DecideAndApply evaluates the recent turns and applies the resulting write,
// if any. The search+decide+write section runs under the namespace lock so
// concurrent turns for one namespace cannot both conclude "no match" and
// create duplicates.
func (u *SemanticUseCase) DecideAndApply(ctx context.Context, ns types.Namespace, turns []model.Turn) (*SemanticResult, error) {
	var verdict *gate.Result
	err := withRetry(ctx, func() error {
		var gateErr error
		verdict, gateErr = u.deps.gate.Evaluate(ctx, turns)
		return gateErr
	})
	if err != nil {
		errutil.Handle(ctx, goerr.Wrap(ErrClassifierUnavailable, "gate failed", goerr.V("cause", err)),
			"memory gate degraded to skip")
		return u.skip(ctx, ns, "", 0, "gate failure"), nil
	}
	if !verdict.Proceed {
		return u.skip(ctx, ns, "", 0, verdict.Reason), nil
	}

	cand, err := u.deps.builder.Build(ctx, ns, verdict.Category, verdict.Summary,
		verdict.Importance, verdict.DeterministicKey)
	if err != nil {
		errutil.Handle(ctx, goerr.Wrap(ErrEmbeddingFailure, "candidate build failed", goerr.V("cause", err)),
			"memory candidate degraded to skip")
		return u.skip(ctx, ns, verdict.Category, 0, "embedding failure"), nil
	}

	unlock := u.deps.locks.Lock(ns)
	defer unlock()

	return u.decide(ctx, cand)
}

// decide runs the decision ladder for a built candidate. Caller holds the
// namespace lock.
func (u *SemanticUseCase) decide(ctx context.Context, cand *model.Candidate) (*SemanticResult, error) {
	// 1. deterministic key supersedes similarity search
	if cand.DeterministicKey != "" {
		existing, err := u.deps.repo.Record().GetByKey(ctx, cand.Namespace, cand.DeterministicKey)
		if err == nil {
			return u.merge(ctx, cand, existing, 1.0, "deterministic key match")
		}
		if !isNotFound(err) {
			errutil.Handle(ctx, goerr.Wrap(ErrVectorIndex, "key lookup failed", goerr.V("cause", err)),
				"memory decision degraded to skip")
			return u.skip(ctx, cand.Namespace, cand.Category, 0, "key lookup failure"), nil
		}
	}

	// 2. neighbor search, transient failures retried
	var neighbors []*model.Neighbor
	err := withRetry(ctx, func() error {
		var searchErr error
		neighbors, searchErr = u.deps.repo.Record().FindByEmbedding(ctx,
			cand.Namespace, cand.Category, cand.Embedding, u.deps.policy.Similarity.CheckTopK)
		return searchErr
	})
	if err != nil {
		errutil.Handle(ctx, goerr.Wrap(ErrVectorIndex, "neighbor search failed", goerr.V("cause", err)),
			"memory decision degraded to skip")
		return u.skip(ctx, cand.Namespace, cand.Category, 0, "neighbor search failure"), nil
	}

	best := 0.0
	if len(neighbors) > 0 {
		best = neighbors[0].Similarity
	}

	// 3. certain match without a pairwise call
	if len(neighbors) > 0 && best >= u.deps.policy.Similarity.AutoUpdate {
		return u.merge(ctx, cand, neighbors[0].Record, best, "above auto-update threshold")
	}

	// 4. pairwise classification over the check band, first positive wins
	if best >= u.deps.policy.Similarity.CheckLow {
		for _, n := range neighbors {
			if n.Similarity < u.deps.policy.Similarity.CheckLow {
				break
			}
			var same bool
			err := withRetry(ctx, func() error {
				var checkErr error
				same, checkErr = u.deps.samefact.IsSameFact(ctx, cand.Category, cand.Summary, n.Record.Summary)
				return checkErr
			})
			if err != nil {
				errutil.Handle(ctx, goerr.Wrap(ErrSameFactClassifier, "pairwise check failed", goerr.V("cause", err)),
					"memory decision degraded to skip")
				return u.skip(ctx, cand.Namespace, cand.Category, n.Similarity, "same-fact classifier failure"), nil
			}
			if same {
				return u.merge(ctx, cand, n.Record, n.Similarity, "pairwise match")
			}
		}
	}

	// 5. guarded low-band fallback
	if matched, res, err := u.fallback(ctx, cand, neighbors); matched || err != nil {
		return res, err
	}

	// 6. no match anywhere: create only above the importance floor
	if cand.Importance < u.deps.policy.Similarity.MinImportance {
		return u.skip(ctx, cand.Namespace, cand.Category, best, "below importance floor"), nil
	}

	return u.create(ctx, cand, best)
}

// fallback is the policy-gated pass over the band below check_low. All
// guards must hold per neighbor: fallback category allowlist, lexical token
// overlap, and a bounded recency window.
func (u *SemanticUseCase) fallback(ctx context.Context, cand *model.Candidate, neighbors []*model.Neighbor) (bool, *SemanticResult, error) {
	pol := u.deps.policy.Similarity
	if !pol.FallbackEnabled || !pol.FallbackAllows(cand.Category) {
		return false, nil, nil
	}

	recencyCutoff := u.deps.now().Add(-time.Duration(pol.FallbackRecency) * time.Hour)

	checked := 0
	for _, n := range neighbors {
		if checked >= pol.FallbackTopK {
			break
		}
		if n.Similarity >= pol.CheckLow || n.Similarity < pol.FallbackLow {
			continue
		}
		if n.Record.Category != cand.Category {
			continue
		}
		if candidate.Overlap(cand.Summary, n.Record.Summary) < pol.FallbackOverlap {
			continue
		}
		if n.Record.UpdatedAt.Before(recencyCutoff) {
			continue
		}

		checked++
		var same bool
		err := withRetry(ctx, func() error {
			var checkErr error
			same, checkErr = u.deps.samefact.IsSameFact(ctx, cand.Category, cand.Summary, n.Record.Summary)
			return checkErr
		})
		if err != nil {
			errutil.Handle(ctx, goerr.Wrap(ErrSameFactClassifier, "fallback check failed", goerr.V("cause", err)),
				"memory decision degraded to skip")
			return true, u.skip(ctx, cand.Namespace, cand.Category, n.Similarity, "same-fact classifier failure"), nil
		}
		if same {
			res, err := u.merge(ctx, cand, n.Record, n.Similarity, "fallback match")
			return true, res, err
		}
	}

	return false, nil, nil
}

func (u *SemanticUseCase) create(ctx context.Context, cand *model.Candidate, bestSim float64) (*SemanticResult, error) {
	record := cand.ToRecord(u.deps.now())
	if err := record.Validate(); err != nil {
		errutil.Handle(ctx, err, "candidate produced invalid record")
		return u.skip(ctx, cand.Namespace, cand.Category, bestSim, "invalid record"), nil
	}

	created, err := u.deps.repo.Record().Create(ctx, record)
	if err != nil {
		errutil.Handle(ctx, goerr.Wrap(ErrVectorIndex, "record create failed", goerr.V("cause", err)),
			"memory decision degraded to skip")
		return u.skip(ctx, cand.Namespace, cand.Category, bestSim, "create failure"), nil
	}

	u.emit(ctx, model.DecisionEvent{
		Namespace:  cand.Namespace,
		Action:     types.DecisionCreate.String(),
		RecordID:   string(created.ID),
		Category:   created.Category,
		Similarity: bestSim,
		Reason:     "no matching record",
		DecidedAt:  u.deps.now(),
	})
	u.syncProfile(ctx, created)

	return &SemanticResult{Action: types.DecisionCreate, RecordID: created.ID}, nil
}

func (u *SemanticUseCase) skip(ctx context.Context, ns types.Namespace, category types.Category, sim float64, reason string) *SemanticResult {
	u.emit(ctx, model.DecisionEvent{
		Namespace:  ns,
		Action:     types.DecisionSkip.String(),
		Category:   category,
		Similarity: sim,
		Reason:     reason,
		DecidedAt:  u.deps.now(),
	})
	return &SemanticResult{Action: types.DecisionSkip}
}

func (u *SemanticUseCase) emit(ctx context.Context, event model.DecisionEvent) {
	logging.From(ctx).Info("memory decision", "event", event)
}

// syncProfile dispatches the best-effort profile delta in the background.
func (u *SemanticUseCase) syncProfile(ctx context.Context, record *model.MemoryRecord) {
	if u.deps.profile == nil {
		return
	}

	rec := *record
	async.Dispatch(ctx, func(ctx context.Context) error {
		if err := u.deps.profile.SyncRecord(ctx, &rec); err != nil {
			return goerr.Wrap(ErrProfileSync, "profile delta rejected", goerr.V("cause", err))
		}
		return nil
	})
}
