package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/pennybridge/mnemon/pkg/domain/types"
)

// EpisodeID is a UUID-based identifier for EpisodicRecord
type EpisodeID string

// NewEpisodeID generates a new UUID v4 EpisodeID
func NewEpisodeID() EpisodeID {
	return EpisodeID(uuid.New().String())
}

// EpisodicRecord is a dated record of a notable conversational outcome.
// Creation rate is bounded by the capture policy (cooldown and daily quota);
// a themed match inside the merge window extends an existing record instead
// of creating a new one.
type EpisodicRecord struct {
	ID         EpisodeID
	Namespace  types.Namespace
	Summary    string // 1-2 sentence outcome summary
	Embedding  []float32
	DateISO    string // "2006-01-02" in the namespace's local timezone
	ISOWeek    int
	Year       int
	MergeCount int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Validate checks the invariants an episode must hold before any write.
func (e *EpisodicRecord) Validate() error {
	if err := e.Namespace.Validate(); err != nil {
		return goerr.Wrap(err, "invalid episode namespace")
	}
	if e.Summary == "" {
		return goerr.New("episode summary is required")
	}
	if _, err := time.Parse("2006-01-02", e.DateISO); err != nil {
		return goerr.Wrap(err, "invalid episode date", goerr.V("date", e.DateISO))
	}
	if e.ISOWeek < 1 || e.ISOWeek > 53 {
		return goerr.New("invalid ISO week", goerr.V("isoWeek", e.ISOWeek))
	}
	return nil
}

// StampDate fills DateISO/ISOWeek/Year from t interpreted in loc.
func (e *EpisodicRecord) StampDate(t time.Time, loc *time.Location) {
	local := t.In(loc)
	e.DateISO = local.Format("2006-01-02")
	e.Year, e.ISOWeek = local.ISOWeek()
}
