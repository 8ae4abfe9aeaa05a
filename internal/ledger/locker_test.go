package ledger

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountLocker_SerializesSameAccount(t *testing.T) {
	l := newAccountLocker()
	id := uuid.New()

	var (
		inside  atomic.Int32
		maxSeen atomic.Int32
		wg      sync.WaitGroup
	)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.acquire(context.Background(), []uuid.UUID{id})
			if !assert.NoError(t, err) {
				return
			}

			n := inside.Add(1)
			for {
				cur := maxSeen.Load()
				if n <= cur || maxSeen.CompareAndSwap(cur, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen.Load())
	assert.Equal(t, 0, l.inFlight())
}

func TestAccountLocker_DisjointSetsDoNotBlock(t *testing.T) {
	l := newAccountLocker()
	a, b := uuid.New(), uuid.New()

	releaseA, err := l.acquire(context.Background(), []uuid.UUID{a})
	require.NoError(t, err)
	defer releaseA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	releaseB, err := l.acquire(ctx, []uuid.UUID{b})
	require.NoError(t, err)
	releaseB()
}

func TestAccountLocker_TimesOutAndReleasesPartialHold(t *testing.T) {
	l := newAccountLocker()
	a, b := uuid.New(), uuid.New()

	// hold whichever of the two sorts last so the waiter takes the first one before blocking
	ordered := sortedUnique([]uuid.UUID{a, b})
	releaseLast, err := l.acquire(context.Background(), []uuid.UUID{ordered[1]})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.acquire(ctx, []uuid.UUID{a, b})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// the first id must be free again
	ctx2, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	releaseFirst, err := l.acquire(ctx2, []uuid.UUID{ordered[0]})
	require.NoError(t, err)

	releaseFirst()
	releaseLast()
	assert.Equal(t, 0, l.inFlight())
}

func TestAccountLocker_OverlappingSetsDoNotDeadlock(t *testing.T) {
	l := newAccountLocker()
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// alternate the request order; acquisition order is sorted regardless
			set := []uuid.UUID{ids[i%3], ids[(i+1)%3]}
			if i%2 == 0 {
				set[0], set[1] = set[1], set[0]
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			release, err := l.acquire(ctx, set)
			if assert.NoError(t, err) {
				release()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 0, l.inFlight())
}

func TestAccountLocker_ReleaseIsIdempotent(t *testing.T) {
	l := newAccountLocker()
	id := uuid.New()

	release, err := l.acquire(context.Background(), []uuid.UUID{id})
	require.NoError(t, err)
	release()
	release()

	assert.Equal(t, 0, l.inFlight())
}
