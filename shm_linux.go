//go:build linux

package psbuffer

import (
	"fmt"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// shmArena is a POSIX shared-memory-backed arena (WithPShared), mmap'd
// MAP_SHARED|MAP_ANONYMOUS. This gives concurrent process-local goroutines a
// region that would survive a fork, which is as much of the source's
// shared-memory contract as a non-forking Go process can exercise: the
// mutexes and semaphores serializing access to it remain in-process (see
// DESIGN.md). Attaching to an existing segment by id is not supported; every
// call creates a fresh region and reports its own id.
type shmArena struct {
	buf []byte
	id  int
}

var nextShmID atomic.Int64

func newSharedArena(attrs Attributes) (arena, error) {
	if attrs.ShmID != ShmCreate {
		return nil, fmt.Errorf("%w: attaching to an existing shared segment by id", ErrNotSupported)
	}
	buf, err := unix.Mmap(-1, 0, int(attrs.Size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("%w: mmap: %v", ErrNoMem, err)
	}
	id := nextShmID.Add(1)
	return &shmArena{buf: buf, id: int(id)}, nil
}

func (a *shmArena) bytes() []byte { return a.buf }
func (a *shmArena) shmID() int    { return a.id }
func (a *shmArena) close() error  { return unix.Munmap(a.buf) }
