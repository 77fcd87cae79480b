package chromem

import (
	"context"
	"strings"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pennybridge/mnemon/pkg/domain/interfaces"
	"github.com/pennybridge/mnemon/pkg/domain/types"
	"github.com/pennybridge/mnemon/pkg/repository/memory"
	chromemgo "github.com/philippgille/chromem-go"
)

// Chromem is the embedded single-node Repository implementation. Record
// state lives in the in-process store; a chromem-go collection per
// namespace serves approximate nearest-neighbor search so FindByEmbedding
// does not scan every record. chromem-go results for identical queries
// against an unchanged collection are stable, which the decision ladder
// relies on in tests.
//
// In persistent mode the in-process store is snapshotted to a JSON file in
// the same directory after every mutation and restored on open, so records
// and episodes survive restarts together with the vector index.
type Chromem struct {
	base *memory.Memory
	db   *chromemgo.DB
	dir  string

	mu          sync.Mutex
	collections map[types.Namespace]*chromemgo.Collection
	namespaces  map[types.Namespace]struct{}
}

var _ interfaces.Repository = &Chromem{}

type Option func(*Chromem)

func New(opts ...Option) (*Chromem, error) {
	c := &Chromem{
		base:        memory.New(),
		db:          chromemgo.NewDB(),
		collections: make(map[types.Namespace]*chromemgo.Collection),
		namespaces:  make(map[types.Namespace]struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// NewPersistent stores the vector index and a snapshot of the record store
// under dir so both survive restarts.
func NewPersistent(ctx context.Context, dir string) (*Chromem, error) {
	db, err := chromemgo.NewPersistentDB(dir, false)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open persistent chromem db", goerr.V("dir", dir))
	}

	c := &Chromem{
		base:        memory.New(),
		db:          db,
		dir:         dir,
		collections: make(map[types.Namespace]*chromemgo.Collection),
		namespaces:  make(map[types.Namespace]struct{}),
	}

	if err := c.load(ctx); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Chromem) Record() interfaces.RecordRepository {
	return &recordRepository{store: c}
}

func (c *Chromem) Episode() interfaces.EpisodeRepository {
	return &episodeRepository{store: c}
}

func (c *Chromem) Close() error {
	return c.base.Close()
}

// collection returns the chromem collection for a namespace, creating it on
// first use. Namespace separators are not valid in collection names.
func (c *Chromem) collection(ns types.Namespace) (*chromemgo.Collection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.namespaces[ns] = struct{}{}

	if col, ok := c.collections[ns]; ok {
		return col, nil
	}

	name := "ns_" + strings.ReplaceAll(ns.String(), "/", "_")
	col, err := c.db.GetOrCreateCollection(name, nil, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create chromem collection", goerr.V("namespace", ns))
	}

	c.collections[ns] = col
	return col, nil
}

func (c *Chromem) trackNamespace(ns types.Namespace) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.namespaces[ns] = struct{}{}
}
