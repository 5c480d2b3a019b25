package psbuffer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// state is the buffer's shared state record (§3 "State record"). It is the
// process-wide resource threaded through every operation; there are no
// package-level statics. When the arena is shared-memory-backed, only the
// arena bytes themselves cross the process boundary — the mutexes and
// semaphores below remain in-process (see DESIGN.md on PSHARED).
type state struct {
	size uint64

	// read-side position indices, owned by readMu / readCloseMu.
	readPos  uint64
	readNext uint64

	// write-side position indices, owned by writeMu / writeCloseMu.
	writePos   uint64
	writeNext  uint64
	readFirst  uint64 // owned by the writer side (reclaimed during Reserve)
	freeBytes  int64  // signed; owned by the writer side

	flags atomic.Uint32

	// readMu / writeMu guard the claim-head step of Open and are the two
	// cancellable suspension points (§5); writeMu additionally stays held
	// across Reserve for the whole open-write/Setsize window. The two
	// close-side mutexes only ever block briefly against a sibling closer and
	// are not cancellation-aware (§4.4: commit-side operations run to
	// completion once started).
	readMu       *ctxMutex
	writeMu      *ctxMutex
	readCloseMu  sync.Mutex
	writeCloseMu sync.Mutex

	readPackets    *countingSem // released packets, a writer resource
	writtenPackets *countingSem // committed packets, a reader resource

	createTime time.Time
	stats      *Stats // nil unless FlagStats is set

	// cancelCtx is cancelled exactly once, by Buffer.Cancel, and is the
	// broadcast token every blocking wait observes (§4.4, §9).
	cancelCtx context.Context
	cancel    context.CancelFunc
}

func newState(attrs Attributes) *state {
	ctx, cancel := context.WithCancel(context.Background())
	s := &state{
		size:           attrs.Size,
		freeBytes:      int64(attrs.Size) - headerSize,
		readMu:         newCtxMutex(),
		writeMu:        newCtxMutex(),
		readPackets:    newCountingSem(),
		writtenPackets: newCountingSem(),
		createTime:     time.Now(),
		cancelCtx:      ctx,
		cancel:         cancel,
	}
	s.flags.Store(attrs.Flags | flagReady)
	if attrs.Flags&FlagStats != 0 {
		s.stats = &Stats{}
	}
	return s
}

func (s *state) cancelled() bool {
	return s.flags.Load()&flagCancelled != 0
}

// checkReady mirrors ps_buffer_check: a buffer that isn't ready is a contract
// violation, one that's cancelled surfaces ErrIntr.
func (s *state) checkReady() error {
	f := s.flags.Load()
	if f&flagReady == 0 {
		return ErrInvalid
	}
	if f&flagCancelled != 0 {
		return ErrIntr
	}
	return nil
}
