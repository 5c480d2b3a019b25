package psbuffer

import (
	"context"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

// Buffer is a bounded, lock-coordinated ring of variable-length packets
// shared by any number of producers and consumers (§1 OVERVIEW). It is the
// Go analogue of ps_buffer_t: a fixed-size arena plus the state record that
// coordinates access to it.
type Buffer struct {
	state  *state
	arena  arena
	logger *zap.Logger
}

// New allocates and readies a Buffer per attrs (ps_buffer_init). The arena is
// zeroed on return, so every header starts in the unwritten state.
func New(attrs Attributes) (*Buffer, error) {
	if attrs.Size < 2*headerSize {
		return nil, ErrInvalid
	}
	ar, err := newArena(attrs)
	if err != nil {
		return nil, err
	}
	b := &Buffer{
		state:  newState(attrs),
		arena:  ar,
		logger: attrs.Logger,
	}
	if b.logger == nil {
		b.logger = zap.NewNop()
	}
	return b, nil
}

// Destroy releases resources backing the arena (a no-op for a heap-backed
// buffer, an unmap for a shared-memory one). It does not wait for open
// packet handles to finish; callers must ensure none remain, exactly as the
// source leaves as the caller's responsibility.
func (b *Buffer) Destroy() error {
	return b.arena.close()
}

// GetShmID reports the shared-memory segment identifier backing the arena,
// or ShmCreate if the buffer is not shared-memory-backed.
func (b *Buffer) GetShmID() (int, error) {
	if err := b.state.checkReady(); err != nil {
		return 0, err
	}
	return b.arena.shmID(), nil
}

// Cancel marks the buffer permanently cancelled: every blocked or future
// suspension point (open, reserve) observes state.cancelCtx and returns
// ErrIntr. It also posts each of the two counting semaphores once. Unlike
// the source, which force-unlocks the two claim-head mutexes from the
// cancelling goroutine, Cancel releases no mutex itself — whichever
// goroutine currently holds a mutex releases it upon observing cancellation
// (see DESIGN.md). Idempotent.
func (b *Buffer) Cancel() error {
	st := b.state
	for {
		old := st.flags.Load()
		if old&flagCancelled != 0 {
			return nil
		}
		if st.flags.CompareAndSwap(old, old|flagCancelled) {
			break
		}
	}
	st.cancel()
	b.postRead()
	b.postWritten()
	b.logger.Info("buffer cancelled")
	return nil
}

// Drain discards every committed, unread packet without handing it to a
// reader, returning the number of packets it freed (ps_buffer_drain). It
// does not itself observe cancellation: it is a maintenance operation meant
// to unblock a shutdown, not a suspension point.
func (b *Buffer) Drain() (int, error) {
	st := b.state
	if err := st.readMu.lock(context.Background()); err != nil {
		return 0, err
	}
	defer st.readMu.unlock()
	st.readCloseMu.Lock()
	defer st.readCloseMu.Unlock()

	freed := 0
	for st.writtenPackets.tryWait() {
		pos := st.readNext
		header := b.headerAt(pos)
		headerSetFlags(header, headerRead)
		sz := headerPayloadSize(header)
		st.readNext = advance(pos, st.size, sz)
		if st.readPos == pos {
			b.postRead()
			st.readPos = st.readNext
			freed++
		}
	}
	return freed, nil
}

// Stats returns a snapshot of the optional counters block, or ErrNotSupported
// if the buffer was built without WithStats.
func (b *Buffer) Stats() (StatsSnapshot, error) {
	if b.state.stats == nil {
		return StatsSnapshot{}, ErrNotSupported
	}
	return b.state.stats.snapshot(), nil
}

// StateText writes a human-readable dump of the buffer's position indices
// and pending-packet counts to w (ps_buffer_state_text). The pending-packet
// walks read the semaphores' best-effort counts (see countingSem.value) and
// so, like the source's sem_getvalue-based version, are an observational
// snapshot rather than a consistent one under concurrent traffic.
func (b *Buffer) StateText(w io.Writer) error {
	st := b.state
	if _, err := fmt.Fprintf(w,
		"size: %s, read_pos: %d, write_pos: %d\n"+
			"read_next: %d, write_next: %d, read_first: %d\n"+
			"free_bytes: %d\n",
		humanize.Bytes(st.size), st.readPos, st.writePos,
		st.readNext, st.writeNext, st.readFirst, st.freeBytes,
	); err != nil {
		return err
	}

	unread, unreadBytes := b.walkPending(st.writtenPackets.value(), st.readNext)
	if _, err := fmt.Fprintf(w, "unread packets: %d, num_bytes: %s\n", unread, humanize.Bytes(unreadBytes)); err != nil {
		return err
	}

	pending, pendingBytes := b.walkPending(st.readPackets.value(), st.readFirst)
	_, err := fmt.Fprintf(w, "pending free packets: %d, num_bytes: %s\n", pending, humanize.Bytes(pendingBytes))
	return err
}

func (b *Buffer) walkPending(count int64, pos uint64) (int64, uint64) {
	var bytes uint64
	for i := int64(0); i < count; i++ {
		header := b.headerAt(pos)
		sz := headerPayloadSize(header)
		bytes += sz
		pos = advance(pos, b.state.size, sz)
	}
	return count, bytes
}

func (b *Buffer) headerAt(pos uint64) []byte {
	return b.arena.bytes()[pos : pos+headerSize]
}

func (b *Buffer) arenaBytes() []byte {
	return b.arena.bytes()
}

// arenaRead copies len(dst) bytes starting at the absolute arena offset offs,
// wrapping at the end of the arena.
func (b *Buffer) arenaRead(offs uint64, dst []byte) {
	buf := b.arena.bytes()
	n := uint64(len(dst))
	size := b.state.size
	if offs+n > size {
		first := size - offs
		copy(dst[:first], buf[offs:])
		copy(dst[first:], buf[:n-first])
		return
	}
	copy(dst, buf[offs:offs+n])
}

// arenaWrite copies src into the arena starting at the absolute offset offs,
// wrapping at the end of the arena.
func (b *Buffer) arenaWrite(offs uint64, src []byte) {
	buf := b.arena.bytes()
	n := uint64(len(src))
	size := b.state.size
	if offs+n > size {
		first := size - offs
		copy(buf[offs:], src[:first])
		copy(buf[:n-first], src[first:])
		return
	}
	copy(buf[offs:offs+n], src)
}

// reclaimOne frees the packet at read_first back into free_bytes (the body
// of Reserve's reclaim step, §4.2). Callers must hold state.writeMu; the
// packet at read_first is guaranteed READ because reclaimOne is only called
// after successfully consuming a read_packets token, which is only posted
// once a reader has set that bit (Packet.closeRead).
func (b *Buffer) reclaimOne() {
	st := b.state
	header := b.headerAt(st.readFirst)
	if headerFlags(header)&headerRead == 0 {
		b.logger.Error("free_bytes accounting violated: reclaimed a packet never marked read")
		panic("psbuffer: free_bytes accounting violated")
	}
	sz := headerPayloadSize(header)
	next, pad := advanceWithPad(st.readFirst, st.size, sz)
	st.freeBytes += int64(headerSize) + int64(sz) + int64(pad)
	st.readFirst = next
}
