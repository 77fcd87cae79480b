package interfaces

import (
	"context"
	"time"

	"github.com/pennybridge/mnemon/pkg/domain/model"
	"github.com/pennybridge/mnemon/pkg/domain/types"
)

// ProfileStore is the external, eventually consistent store of structured
// user-attribute deltas. Writes are best-effort: callers log failures and
// never let them block a memory write.
type ProfileStore interface {
	// Propose submits field deltas for the namespace owner
	Propose(ctx context.Context, deltas []model.ProfileDelta) error
}

// TimezoneResolver maps a namespace to its owner's local timezone.
// Implementations fall back to UTC when the timezone is unknown.
type TimezoneResolver interface {
	Resolve(ctx context.Context, namespace types.Namespace) *time.Location
}
