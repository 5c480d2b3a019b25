package psbuffer

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// ctxMutex is a binary mutex whose blocking Lock observes a context, used for
// read_mutex and write_mutex (the two "claim head" mutexes, §5). Built on
// semaphore.Weighted(1) rather than sync.Mutex so that Cancel's broadcast
// token (state.cancelCtx) unblocks every waiter directly instead of requiring
// the source's unsafe cross-goroutine force-unlock (sync.Mutex has no
// not-the-owner Unlock, nor any cancellable Lock).
type ctxMutex struct {
	w *semaphore.Weighted
}

func newCtxMutex() *ctxMutex {
	return &ctxMutex{w: semaphore.NewWeighted(1)}
}

// lock blocks until acquired or ctx is cancelled, in which case it returns
// ErrIntr without holding the lock.
func (m *ctxMutex) lock(ctx context.Context) error {
	if err := m.w.Acquire(ctx, 1); err != nil {
		return ErrIntr
	}
	return nil
}

// tryLock reports whether the lock was acquired without blocking.
func (m *ctxMutex) tryLock() bool {
	return m.w.TryAcquire(1)
}

// unlock releases the lock. Must only be called by the current holder.
func (m *ctxMutex) unlock() {
	m.w.Release(1)
}
