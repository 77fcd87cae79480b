package chromem

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pennybridge/mnemon/pkg/domain/model"
	"github.com/pennybridge/mnemon/pkg/domain/types"
)

const snapshotFile = "store.json"

// snapshot is the on-disk form of the record store. The chromem-go files in
// the same directory only hold vectors; everything else lives here.
type snapshot struct {
	Records  []*model.MemoryRecord   `json:"records"`
	Episodes []*model.EpisodicRecord `json:"episodes"`
}

func (c *Chromem) snapshotPath() string {
	return filepath.Join(c.dir, snapshotFile)
}

// load restores the record store from the snapshot of an earlier run, then
// reindexes every record so the vector index and the store agree even when
// only one of the two survived.
func (c *Chromem) load(ctx context.Context) error {
	raw, err := os.ReadFile(c.snapshotPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return goerr.Wrap(err, "failed to read store snapshot", goerr.V("path", c.snapshotPath()))
	}

	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return goerr.Wrap(err, "failed to decode store snapshot", goerr.V("path", c.snapshotPath()))
	}

	c.base.Restore(snap.Records, snap.Episodes)

	r := &recordRepository{store: c}
	for _, record := range snap.Records {
		if err := r.index(ctx, record); err != nil {
			return err
		}
	}
	for _, episode := range snap.Episodes {
		c.trackNamespace(episode.Namespace)
	}

	return nil
}

// persist writes the current store contents next to the chromem files. A
// no-op for in-memory stores. The write goes through a temp file and rename
// so a crash mid-write leaves the previous snapshot intact.
func (c *Chromem) persist(ctx context.Context) error {
	if c.dir == "" {
		return nil
	}

	c.mu.Lock()
	namespaces := make([]types.Namespace, 0, len(c.namespaces))
	for ns := range c.namespaces {
		namespaces = append(namespaces, ns)
	}
	c.mu.Unlock()

	sort.Slice(namespaces, func(i, j int) bool {
		return namespaces[i] < namespaces[j]
	})

	var snap snapshot
	for _, ns := range namespaces {
		records, err := c.base.Record().List(ctx, ns)
		if err != nil {
			return goerr.Wrap(err, "failed to list records for snapshot", goerr.V("namespace", ns))
		}
		snap.Records = append(snap.Records, records...)

		episodes, err := c.base.Episode().ListRecent(ctx, ns, 0)
		if err != nil {
			return goerr.Wrap(err, "failed to list episodes for snapshot", goerr.V("namespace", ns))
		}
		snap.Episodes = append(snap.Episodes, episodes...)
	}

	raw, err := json.Marshal(&snap)
	if err != nil {
		return goerr.Wrap(err, "failed to encode store snapshot")
	}

	tmp := c.snapshotPath() + ".tmp"
	if err := os.WriteFile(tmp, raw, 0600); err != nil {
		return goerr.Wrap(err, "failed to write store snapshot", goerr.V("path", tmp))
	}
	if err := os.Rename(tmp, c.snapshotPath()); err != nil {
		return goerr.Wrap(err, "failed to commit store snapshot", goerr.V("path", c.snapshotPath()))
	}

	return nil
}
