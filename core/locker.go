package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

const defaultEventLockTTL = 30 * time.Second

type LockHandle interface {
	Unlock(ctx context.Context) error
}

// EventLocker serializes provisioning, issuance and settlement for a single
// event. Two concurrent sequences on the same event could both pass an
// idempotency read-check before either writes, leaving orphaned ledger state.
type EventLocker interface {
	Acquire(ctx context.Context, eventID string, ttl time.Duration) (LockHandle, error)
}

type MemoryEventLocker struct {
	mu    sync.Mutex
	locks map[string]time.Time
	nowFn func() time.Time
}

func NewMemoryEventLocker() *MemoryEventLocker {
	return &MemoryEventLocker{
		locks: make(map[string]time.Time),
		nowFn: func() time.Time { return time.Now().UTC() },
	}
}

func (l *MemoryEventLocker) Acquire(_ context.Context, eventID string, ttl time.Duration) (LockHandle, error) {
	if l == nil {
		return nil, fmt.Errorf("core: event locker is not configured")
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return nil, fmt.Errorf("core: event id is required for lock acquisition")
	}
	if ttl <= 0 {
		ttl = defaultEventLockTTL
	}

	now := l.nowFn()
	l.mu.Lock()
	defer l.mu.Unlock()

	if until, ok := l.locks[eventID]; ok && now.Before(until) {
		return nil, fmt.Errorf("%w: event %q", ErrEventLockHeld, eventID)
	}
	l.locks[eventID] = now.Add(ttl)
	return &memoryLockHandle{locker: l, eventID: eventID}, nil
}

type memoryLockHandle struct {
	locker  *MemoryEventLocker
	eventID string
	once    sync.Once
}

func (h *memoryLockHandle) Unlock(_ context.Context) error {
	if h == nil || h.locker == nil {
		return nil
	}
	h.once.Do(func() {
		h.locker.mu.Lock()
		delete(h.locker.locks, h.eventID)
		h.locker.mu.Unlock()
	})
	return nil
}
