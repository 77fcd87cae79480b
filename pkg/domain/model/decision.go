package model

import (
	"log/slog"
	"time"

	"github.com/pennybridge/mnemon/pkg/domain/types"
)

// DecisionEvent is the structured record of one semantic or episodic write
// decision, emitted for observability. It is logged, never persisted here.
type DecisionEvent struct {
	Namespace  types.Namespace
	Action     string // DecisionAction or EpisodicAction
	RecordID   string
	Category   types.Category
	Similarity float64 // best neighbor similarity, 0 when no neighbors
	Reason     string
	DecidedAt  time.Time
}

// LogValue renders the event as structured slog fields.
func (e DecisionEvent) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("namespace", e.Namespace.String()),
		slog.String("action", e.Action),
		slog.String("record_id", e.RecordID),
		slog.String("category", e.Category.String()),
		slog.Float64("similarity", e.Similarity),
		slog.String("reason", e.Reason),
		slog.Time("decided_at", e.DecidedAt),
	)
}

// ProfileDelta is a structured field change proposed to the external profile
// store after a semantic write. Best-effort and eventually consistent.
type ProfileDelta struct {
	Namespace  types.Namespace
	RecordID   RecordID
	Field      string // e.g. "goals", "locale", "tone"
	Value      string
	ProposedAt time.Time
}
