package memory

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/pennybridge/mnemon/pkg/domain/interfaces"
	"github.com/pennybridge/mnemon/pkg/domain/model"
)

// ErrNotFound is returned when a record or episode does not exist
var ErrNotFound = goerr.New("not found")

// Memory is the in-process Repository implementation, used for tests and
// single-node development. Similarity search is brute-force cosine.
type Memory struct {
	record  *recordRepository
	episode *episodeRepository
}

var _ interfaces.Repository = &Memory{}

func New() *Memory {
	return &Memory{
		record:  newRecordRepository(),
		episode: newEpisodeRepository(),
	}
}

func (m *Memory) Record() interfaces.RecordRepository {
	return m.record
}

func (m *Memory) Episode() interfaces.EpisodeRepository {
	return m.episode
}

func (m *Memory) Close() error {
	return nil
}

// Restore replaces the store contents with the given records and episodes,
// keeping IDs and timestamps exactly as provided. Snapshot-backed
// repositories use it to reload their state on open.
func (m *Memory) Restore(records []*model.MemoryRecord, episodes []*model.EpisodicRecord) {
	m.record.restore(records)
	m.episode.restore(episodes)
}
