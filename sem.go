package psbuffer

import (
	"context"
	"errors"
	"math"
	"sync/atomic"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/semaphore"
)

// maxSemWaitTries bounds the optimistic non-blocking probe a blocking wait
// performs before parking on the real semaphore. The source's sem_wait retry
// loop existed to tolerate POSIX signal-induced spurious wakeups (EINTR);
// golang.org/x/sync/semaphore's Acquire cannot fail spuriously, so this bound
// instead governs how many quick TryAcquire probes are worth attempting
// before committing to a park, matching the source's constant (>= 6).
const maxSemWaitTries = 6

// errNoToken is returned by the optimistic probe loop when no token was
// available yet; it never escapes countingSem.
var errNoToken = errors.New("psbuffer: no token available")

// countingSem is a counting semaphore used for written_packets and
// read_packets (see state.go). It wraps golang.org/x/sync/semaphore.Weighted
// (held at weight 1 per token) with an atomic running count so state_text and
// drain can take an observational, best-effort reading of the current value
// the way the source's sem_getvalue does (see GLOSSARY / Open Questions).
type countingSem struct {
	w *semaphore.Weighted
	n atomic.Int64
}

func newCountingSem() *countingSem {
	return &countingSem{w: semaphore.NewWeighted(math.MaxInt64)}
}

// post makes one token available (a packet became visible or was released).
func (s *countingSem) post() {
	s.w.Release(1)
	s.n.Add(1)
}

// tryWait attempts to consume a token without blocking.
func (s *countingSem) tryWait() bool {
	if s.w.TryAcquire(1) {
		s.n.Add(-1)
		return true
	}
	return false
}

// wait blocks until a token is available or ctx is cancelled. It first
// spends a short, bounded number of non-blocking probes (see
// maxSemWaitTries) before parking, since tokens posted by a concurrent
// committer or closer often arrive within microseconds. Returns ErrIntr if
// ctx is cancelled before a token becomes available.
func (s *countingSem) wait(ctx context.Context) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		if s.tryWait() {
			return struct{}{}, nil
		}
		return struct{}{}, errNoToken
	}, backoff.WithMaxTries(maxSemWaitTries), backoff.WithBackOff(backoff.NewConstantBackOff(0)))
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ErrIntr
	}

	if err := s.w.Acquire(ctx, 1); err != nil {
		return ErrIntr
	}
	s.n.Add(-1)
	return nil
}

// value returns a best-effort snapshot of the semaphore's token count. Not
// synchronized with buffer position indices; see state_text in stats.go.
func (s *countingSem) value() int64 {
	return s.n.Load()
}
