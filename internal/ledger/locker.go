package ledger

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// accountLocker grants at most one holder per account id at a time.
// Each id owns a one-slot channel; holders are reference counted so idle slots
// are dropped. Multi-id acquisitions take slots in sorted order, which rules out
// lock-order deadlocks between postings that share accounts.
type accountLocker struct {
	mu    sync.Mutex
	slots map[uuid.UUID]*lockSlot
}

type lockSlot struct {
	ch   chan struct{}
	refs int
}

func newAccountLocker() *accountLocker {
	return &accountLocker{slots: make(map[uuid.UUID]*lockSlot)}
}

// acquire blocks until every id is held or ctx is done. On success the
// returned release function must be called exactly once.
func (l *accountLocker) acquire(ctx context.Context, ids []uuid.UUID) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ids = sortedUnique(ids)
	held := make([]uuid.UUID, 0, len(ids))

	for _, id := range ids {
		slot := l.ref(id)
		select {
		case slot.ch <- struct{}{}:
			held = append(held, id)
		case <-ctx.Done():
			l.unref(id)
			l.releaseAll(held)
			return nil, ctx.Err()
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.releaseAll(held) })
	}, nil
}

func (l *accountLocker) releaseAll(held []uuid.UUID) {
	for i := len(held) - 1; i >= 0; i-- {
		l.mu.Lock()
		slot := l.slots[held[i]]
		l.mu.Unlock()
		<-slot.ch
		l.unref(held[i])
	}
}

func (l *accountLocker) ref(id uuid.UUID) *lockSlot {
	l.mu.Lock()
	defer l.mu.Unlock()

	slot, ok := l.slots[id]
	if !ok {
		slot = &lockSlot{ch: make(chan struct{}, 1)}
		l.slots[id] = slot
	}
	slot.refs++
	return slot
}

func (l *accountLocker) unref(id uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	slot, ok := l.slots[id]
	if !ok {
		return
	}
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, id)
	}
}

// inFlight returns the number of ids with a holder or waiter
func (l *accountLocker) inFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
