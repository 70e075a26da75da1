package ingest

import (
	"context"
	"sync"
)

// Locker serializes polls per connector. TryLock never waits: a false
// acquired means another sync holds the connector.
type Locker interface {
	TryLock(ctx context.Context, connectorID string) (release func(), acquired bool, err error)
}

// LocalLocker is an in-process Locker for single-node runs and tests.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]struct{})}
}

func (l *LocalLocker) TryLock(_ context.Context, connectorID string) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[connectorID]; busy {
		return nil, false, nil
	}
	l.held[connectorID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, connectorID)
			l.mu.Unlock()
		})
	}, true, nil
}
