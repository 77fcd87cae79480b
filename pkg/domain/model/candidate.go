package model

import (
	"time"

	"github.com/pennybridge/mnemon/pkg/domain/types"
)

// Candidate is an in-flight draft of a MemoryRecord before the write decision
// is made. Candidates are never persisted as-is.
type Candidate struct {
	Namespace        types.Namespace
	Category         types.Category
	Summary          string // normalized text
	Importance       float64
	DeterministicKey string // optional, set when the content matches a known entity/attribute shape
	Embedding        []float32
}

// ToRecord materializes the candidate as a new MemoryRecord. Timestamps are
// set to now; the caller persists the result through the merge engine only.
func (c *Candidate) ToRecord(now time.Time) *MemoryRecord {
	return &MemoryRecord{
		ID:               NewRecordID(),
		Namespace:        c.Namespace,
		Category:         c.Category.Normalize(),
		Summary:          c.Summary,
		Embedding:        c.Embedding,
		Importance:       c.Importance,
		DeterministicKey: c.DeterministicKey,
		CreatedAt:        now,
		UpdatedAt:        now,
		LastAccessed:     now,
		LastVerifiedAt:   now,
	}
}

// Turn is one transcript entry handed to the memory subsystem by the
// conversation pipeline.
type Turn struct {
	Source types.TurnSource
	Text   string
}
