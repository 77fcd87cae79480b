package profile

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pennybridge/mnemon/pkg/domain/interfaces"
	"github.com/pennybridge/mnemon/pkg/domain/model"
	"github.com/pennybridge/mnemon/pkg/domain/types"
)

// Service derives structured profile deltas from semantic memory writes and
// proposes them to the external profile store. Best effort: callers run it in
// the background and only log failures.
type Service struct {
	store interfaces.ProfileStore
}

func New(store interfaces.ProfileStore) (*Service, error) {
	if store == nil {
		return nil, goerr.New("profile store is required")
	}
	return &Service{store: store}, nil
}

// fieldFor maps a record category to the profile field its summaries feed
func fieldFor(category types.Category) string {
	switch category {
	case types.CategoryGoals:
		return "goals"
	case types.CategoryFinance:
		return "finance_notes"
	case types.CategoryPersonal:
		return "personal_facts"
	default:
		return "notes"
	}
}

// SyncRecord proposes the delta a record write implies.
func (s *Service) SyncRecord(ctx context.Context, record *model.MemoryRecord) error {
	delta := model.ProfileDelta{
		Namespace:  record.Namespace,
		RecordID:   record.ID,
		Field:      fieldFor(record.Category),
		Value:      record.Summary,
		ProposedAt: time.Now(),
	}

	if err := s.store.Propose(ctx, []model.ProfileDelta{delta}); err != nil {
		return goerr.Wrap(err, "failed to propose profile delta",
			goerr.V("namespace", record.Namespace),
			goerr.V("recordID", record.ID),
			goerr.V("field", delta.Field),
		)
	}

	return nil
}

// MemoryStore is the in-process ProfileStore, used in tests and single-node
// development.
type MemoryStore struct {
	mu     sync.Mutex
	deltas []model.ProfileDelta
}

var _ interfaces.ProfileStore = &MemoryStore{}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Propose(ctx context.Context, deltas []model.ProfileDelta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deltas = append(m.deltas, deltas...)
	return nil
}

// Deltas returns a copy of everything proposed so far.
func (m *MemoryStore) Deltas() []model.ProfileDelta {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.ProfileDelta, len(m.deltas))
	copy(out, m.deltas)
	return out
}
