package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/pennybridge/mnemon/pkg/domain/types"
)

// EmbeddingDimension is the dimension of the embedding vector
// Gemini text-embedding-004 uses 768 dimensions
const EmbeddingDimension = 768

// MaxSummaryRunes bounds the normalized summary length of a semantic record.
const MaxSummaryRunes = 500

// RecordID is a UUID-based identifier for MemoryRecord
type RecordID string

// NewRecordID generates a new UUID v4 RecordID
func NewRecordID() RecordID {
	return RecordID(uuid.New().String())
}

// MemoryRecord is a durable semantic memory: a fact or preference about the
// namespace owner. Within one namespace and category no two live records
// should represent the same underlying fact; the dedup pipeline enforces
// this procedurally. A non-empty DeterministicKey is a hard uniqueness
// constraint that takes precedence over similarity search.
type MemoryRecord struct {
	ID               RecordID
	Namespace        types.Namespace
	Category         types.Category
	Summary          string
	Embedding        []float32
	Importance       float64 // 0..1
	Pinned           bool
	DeterministicKey string // stable "<entity>:<attribute>" key, optional
	CreatedAt        time.Time
	UpdatedAt        time.Time
	LastAccessed     time.Time
	LastVerifiedAt   time.Time
}

// Validate checks the invariants a record must hold before any write.
func (r *MemoryRecord) Validate() error {
	if err := r.Namespace.Validate(); err != nil {
		return goerr.Wrap(err, "invalid record namespace")
	}
	if !r.Category.IsValid() {
		return goerr.New("invalid record category", goerr.V("category", r.Category))
	}
	if r.Summary == "" {
		return goerr.New("record summary is required")
	}
	if n := len([]rune(r.Summary)); n > MaxSummaryRunes {
		return goerr.New("record summary exceeds length bound",
			goerr.V("runes", n), goerr.V("max", MaxSummaryRunes))
	}
	if r.Importance < 0 || r.Importance > 1 {
		return goerr.New("record importance must be in [0,1]", goerr.V("importance", r.Importance))
	}
	return nil
}

// Neighbor is a similarity-search result: an existing record with its cosine
// similarity to the query embedding, in [0,1].
type Neighbor struct {
	Record     *MemoryRecord
	Similarity float64
}
