package psbuffer

// fakeDMA is a handle-owned staging buffer used when a requested DMA span
// crosses the arena wrap and the caller demanded a single contiguous region
// (§4.2 DMA, §9 "Fake-DMA staging list"). Entries are recycled within a
// single open/close cycle of the owning packet and freed with it.
type fakeDMA struct {
	mem  []byte // backing storage, len >= size
	size int    // in-use size for the current request
	pos  int    // offset into the owning packet's payload
	free bool
}

// fakeDMAList is the packet handle's singly-linked (here: slice-backed) list
// of staging entries.
type fakeDMAList struct {
	entries []*fakeDMA
}

// alloc returns a free entry of at least size bytes, recycling one already on
// the list when possible (mirrors ps_packet_fakedma_alloc).
func (l *fakeDMAList) alloc(size int) *fakeDMA {
	var found *fakeDMA
	for _, e := range l.entries {
		if e.free {
			found = e
			break
		}
	}
	if found == nil {
		found = &fakeDMA{free: true}
		l.entries = append(l.entries, found)
	}
	if len(found.mem) < size {
		found.mem = make([]byte, size)
	}
	found.free = false
	found.size = size
	return found
}

// release marks an entry as reusable without releasing its backing storage.
func (l *fakeDMAList) release(e *fakeDMA) {
	e.free = true
}

// cut trims or frees staging entries that now lie outside [0, size) after a
// write packet's size has been frozen by Setsize (ps_packet_fakedma_cut).
func (l *fakeDMAList) cut(size int) {
	for _, e := range l.entries {
		if e.free {
			continue
		}
		if e.pos > size {
			l.release(e)
		} else if e.pos+e.size > size {
			e.size = size - e.pos
		}
	}
}

// commitAll copies every still-pending (non-free) entry back into the
// packet's payload via Seek+Write, in the order the entries were allocated
// (ps_packet_fakedma_commitall). Called once, from Packet.Close on the write
// side, before the header is marked WRITTEN.
func (l *fakeDMAList) commitAll(p *Packet) error {
	for _, e := range l.entries {
		if e.free {
			continue
		}
		if err := p.Seek(uint64(e.pos)); err != nil {
			return err
		}
		if _, err := p.Write(e.mem[:e.size]); err != nil {
			return err
		}
		l.release(e)
	}
	return nil
}

// freeAll marks every pending entry free without committing it (used on
// Packet.Close for the read side, and on Cancel).
func (l *fakeDMAList) freeAll() {
	for _, e := range l.entries {
		l.release(e)
	}
}
