package repositories

import (
	"context"
	"sync"
	"time"

	"github.com/rmhse/rmhse_backend/services"
)

var _ services.Locker = (*LocalLocker)(nil)

// LocalLocker serializes callers inside one process. It is used when Redis is not
// reachable; the ttl is ignored because the holder always releases.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]chan struct{})}
}

func (l *LocalLocker) Lock(ctx context.Context, key string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[key]
	if !ok {
		slot = make(chan struct{}, 1)
		l.slots[key] = slot
	}
	l.mu.Unlock()

	select {
	case slot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() { once.Do(func() { <-slot }) }, nil
}
