package timezone

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pennybridge/mnemon/pkg/domain/interfaces"
	"github.com/pennybridge/mnemon/pkg/domain/types"
)

// Resolver maps a namespace owner to their local time zone. Unknown owners
// resolve to UTC.
type Resolver struct {
	mu    sync.RWMutex
	zones map[string]*time.Location
}

var _ interfaces.TimezoneResolver = &Resolver{}

func New() *Resolver {
	return &Resolver{
		zones: make(map[string]*time.Location),
	}
}

// Set registers an owner's time zone by IANA name.
func (r *Resolver) Set(ownerID, zone string) error {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return goerr.Wrap(err, "unknown time zone", goerr.V("zone", zone))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.zones[ownerID] = loc
	return nil
}

func (r *Resolver) Resolve(ctx context.Context, ns types.Namespace) *time.Location {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if loc, ok := r.zones[ns.Owner()]; ok {
		return loc
	}
	return time.UTC
}
