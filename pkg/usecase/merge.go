package usecase

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pennybridge/mnemon/pkg/domain/model"
	"github.com/pennybridge/mnemon/pkg/domain/model/policy"
	"github.com/pennybridge/mnemon/pkg/domain/types"
	"github.com/pennybridge/mnemon/pkg/utils/errutil"
)

// merge applies the configured write strategy to a matched record. Only this
// engine creates, mutates, or deletes records.
func (u *SemanticUseCase) merge(ctx context.Context, cand *model.Candidate, existing *model.MemoryRecord, sim float64, reason string) (*SemanticResult, error) {
	switch u.deps.policy.Similarity.Strategy {
	case policy.MergeUpdate:
		return u.applyUpdate(ctx, cand, existing, sim, reason)
	default:
		return u.applyRecreate(ctx, cand, existing, sim, reason)
	}
}

func mergedKey(cand *model.Candidate, existing *model.MemoryRecord) string {
	if existing.DeterministicKey != "" {
		return existing.DeterministicKey
	}
	return cand.DeterministicKey
}

func mergedImportance(cand *model.Candidate, existing *model.MemoryRecord) float64 {
	if existing.Importance > cand.Importance {
		return existing.Importance
	}
	return cand.Importance
}

// applyUpdate mutates the matched record in place. The newer statement wins
// the summary; the embedding is regenerated whenever the text changed.
func (u *SemanticUseCase) applyUpdate(ctx context.Context, cand *model.Candidate, existing *model.MemoryRecord, sim float64, reason string) (*SemanticResult, error) {
	now := u.deps.now()

	updated := *existing
	if cand.Summary != existing.Summary {
		updated.Summary = cand.Summary
		updated.Embedding = cand.Embedding
	}
	updated.Importance = mergedImportance(cand, existing)
	updated.DeterministicKey = mergedKey(cand, existing)
	updated.UpdatedAt = now
	updated.LastAccessed = now
	updated.LastVerifiedAt = now

	saved, err := u.deps.repo.Record().Update(ctx, &updated)
	if err != nil {
		errutil.Handle(ctx, goerr.Wrap(ErrVectorIndex, "record update failed", goerr.V("cause", err)),
			"memory decision degraded to skip")
		return u.skip(ctx, cand.Namespace, cand.Category, sim, "update failure"), nil
	}

	u.emit(ctx, model.DecisionEvent{
		Namespace:  cand.Namespace,
		Action:     types.DecisionUpdate.String(),
		RecordID:   string(saved.ID),
		Category:   saved.Category,
		Similarity: sim,
		Reason:     reason,
		DecidedAt:  now,
	})
	u.syncProfile(ctx, saved)

	return &SemanticResult{Action: types.DecisionUpdate, RecordID: saved.ID}, nil
}

// applyRecreate composes an enriched replacement and writes it before the
// old record is deleted. Strictly two-phase: a crash between the phases
// leaves both records live, never zero.
func (u *SemanticUseCase) applyRecreate(ctx context.Context, cand *model.Candidate, existing *model.MemoryRecord, sim float64, reason string) (*SemanticResult, error) {
	now := u.deps.now()

	enriched := u.deps.summarize.MergeSummaries(ctx, existing.Summary, cand.Summary)
	embedding := cand.Embedding
	if enriched != cand.Summary {
		vec, err := u.deps.embedder.Embed(ctx, enriched)
		if err != nil {
			errutil.Handle(ctx, goerr.Wrap(ErrEmbeddingFailure, "enriched summary embed failed", goerr.V("cause", err)),
				"memory decision degraded to skip")
			return u.skip(ctx, cand.Namespace, cand.Category, sim, "embedding failure"), nil
		}
		embedding = vec
	}

	replacement := &model.MemoryRecord{
		ID:               model.NewRecordID(),
		Namespace:        cand.Namespace,
		Category:         cand.Category,
		Summary:          enriched,
		Embedding:        embedding,
		Importance:       mergedImportance(cand, existing),
		Pinned:           existing.Pinned,
		DeterministicKey: mergedKey(cand, existing),
		CreatedAt:        existing.CreatedAt,
		UpdatedAt:        now,
		LastAccessed:     now,
		LastVerifiedAt:   now,
	}

	created, err := u.deps.repo.Record().Create(ctx, replacement)
	if err != nil {
		errutil.Handle(ctx, goerr.Wrap(ErrVectorIndex, "replacement create failed", goerr.V("cause", err)),
			"memory decision degraded to skip")
		return u.skip(ctx, cand.Namespace, cand.Category, sim, "recreate failure"), nil
	}

	// phase two: the old record goes only after the new one is durable
	if err := u.deps.repo.Record().Delete(ctx, existing.Namespace, existing.ID); err != nil {
		// both records stay live; the next dedup pass will collapse them
		errutil.Handle(ctx, goerr.Wrap(ErrVectorIndex, "superseded record delete failed",
			goerr.V("cause", err), goerr.V("supersededID", existing.ID)),
			"recreate left superseded record in place")
	}

	u.emit(ctx, model.DecisionEvent{
		Namespace:  cand.Namespace,
		Action:     types.DecisionRecreate.String(),
		RecordID:   string(created.ID),
		Category:   created.Category,
		Similarity: sim,
		Reason:     reason,
		DecidedAt:  now,
	})
	u.syncProfile(ctx, created)

	return &SemanticResult{Action: types.DecisionRecreate, RecordID: created.ID}, nil
}
