package usecase

import (
	"sync"

	"github.com/pennybridge/mnemon/pkg/domain/types"
)

// nsLocks serializes writers per namespace. The whole search+decide+write
// critical section of the semantic hot path runs under the namespace lock, so
// a second concurrent writer observes the first writer's committed record
// instead of racing it into a duplicate.
type nsLocks struct {
	mu    sync.Mutex
	locks map[types.Namespace]*sync.Mutex
}

func newNSLocks() *nsLocks {
	return &nsLocks{
		locks: make(map[types.Namespace]*sync.Mutex),
	}
}

func (l *nsLocks) get(ns types.Namespace) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.locks[ns]
	if !ok {
		m = &sync.Mutex{}
		l.locks[ns] = m
	}
	return m
}

// Lock acquires the namespace lock and returns its unlock function.
func (l *nsLocks) Lock(ns types.Namespace) func() {
	m := l.get(ns)
	m.Lock()
	return m.Unlock
}
