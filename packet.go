package psbuffer

import "time"

// Direction selects which side of the ring a Packet handle operates on.
type Direction int

const (
	// DirRead opens a packet for reading the oldest committed, unread payload.
	DirRead Direction = iota + 1
	// DirWrite opens a packet for writing a new payload.
	DirWrite
)

// Packet is a per-operation handle into a Buffer: a cursor, the claimed
// header offset, and (for writers) the byte count currently accounted
// against free_bytes (§3 "Packet handle"). A Packet is not safe for
// concurrent use by multiple goroutines; open one per producer or consumer.
type Packet struct {
	buf       *Buffer
	dir       Direction
	try       bool
	sizeSet   bool
	isOpen    bool
	bufferPos uint64 // this packet's header offset in the arena
	pos       uint64 // cursor into the payload
	reserved  uint64 // bytes currently charged against free_bytes (writer only)
	dma       fakeDMAList
}

// NewPacket allocates a handle bound to buf. The handle may be reused across
// many Open/Close or Open/Cancel cycles.
func NewPacket(buf *Buffer) *Packet {
	return &Packet{buf: buf}
}

// Open claims the buffer's current read or write head, per dir. With try, a
// claim that would block (the head mutex contended, or no committed/released
// packet yet available) returns ErrBusy instead of waiting.
func (p *Packet) Open(dir Direction, try bool) error {
	if p.isOpen {
		return ErrInvalid
	}
	if err := p.buf.state.checkReady(); err != nil {
		return err
	}
	switch dir {
	case DirRead:
		return p.openRead(try)
	case DirWrite:
		return p.openWrite(try)
	default:
		return ErrInvalid
	}
}

func (p *Packet) openRead(try bool) error {
	st := p.buf.state
	if try {
		if !st.readMu.tryLock() {
			return ErrBusy
		}
	} else if err := st.readMu.lock(st.cancelCtx); err != nil {
		return err
	}
	if st.cancelled() {
		st.readMu.unlock()
		return ErrIntr
	}

	waitStart := time.Now()
	if try {
		if !st.writtenPackets.tryWait() {
			st.readMu.unlock()
			return ErrBusy
		}
	} else if err := st.writtenPackets.wait(st.cancelCtx); err != nil {
		st.readMu.unlock()
		return err
	}
	if st.cancelled() {
		st.readMu.unlock()
		return ErrIntr
	}
	st.stats.recordReadWait(time.Since(waitStart))

	p.dir = DirRead
	p.try = false
	p.sizeSet = true
	p.isOpen = true
	p.pos = 0
	p.reserved = 0
	p.bufferPos = st.readNext

	size := headerPayloadSize(p.buf.headerAt(p.bufferPos))
	st.readNext = advance(p.bufferPos, st.size, size)

	st.readMu.unlock()
	return nil
}

func (p *Packet) openWrite(try bool) error {
	st := p.buf.state
	if try {
		if !st.writeMu.tryLock() {
			return ErrBusy
		}
	} else if err := st.writeMu.lock(st.cancelCtx); err != nil {
		return err
	}
	if st.cancelled() {
		st.writeMu.unlock()
		return ErrIntr
	}

	p.dir = DirWrite
	p.try = try
	p.sizeSet = false
	p.isOpen = true
	p.pos = 0
	p.reserved = 0
	p.bufferPos = st.writeNext

	putHeader(p.buf.headerAt(p.bufferPos), 0, 0)
	return nil
}

// SetSize freezes the payload size of a write packet still growing on
// demand. It may be called at most once, and only while WRITE and not yet
// frozen.
func (p *Packet) SetSize(size uint64) error {
	if !p.isOpen || p.dir != DirWrite || p.sizeSet {
		return ErrInvalid
	}
	st := p.buf.state
	if size+2*headerSize > st.size {
		return ErrNoBufs
	}
	if err := p.reserve(size); err != nil {
		return err
	}

	writeNext, res := advanceWithPad(st.writeNext, st.size, size)

	p.try = false
	if err := p.reserve(headerSize + size + res); err != nil {
		return err
	}

	st.freeBytes += int64(p.reserved) - int64(size+headerSize+res)
	headerSetPayloadSize(p.buf.headerAt(p.bufferPos), size)
	p.sizeSet = true
	st.writeNext = writeNext
	putHeader(p.buf.headerAt(st.writeNext), 0, 0)

	st.writeMu.unlock()
	p.dma.cut(int(size))
	return nil
}

// GetSize reports the payload size: the frozen size for a write packet past
// Setsize, or the committed size for a read packet.
func (p *Packet) GetSize() (uint64, error) {
	if !p.isOpen {
		return 0, ErrInvalid
	}
	return headerPayloadSize(p.buf.headerAt(p.bufferPos)), nil
}

// Tell reports the current cursor position into the payload.
func (p *Packet) Tell() (uint64, error) {
	if !p.isOpen {
		return 0, ErrInvalid
	}
	return p.pos, nil
}

// Seek repositions the cursor. On a still-growing write packet this may
// extend the payload and triggers Reserve accounting exactly as Write does.
func (p *Packet) Seek(pos uint64) error {
	if !p.isOpen {
		return ErrInvalid
	}
	header := p.buf.headerAt(p.bufferPos)
	if p.sizeSet || p.dir == DirRead {
		if pos > headerPayloadSize(header) {
			return ErrInvalid
		}
	}
	if !p.sizeSet && p.dir == DirWrite {
		if pos+headerSize > p.buf.state.size {
			return ErrInvalid
		}
		if err := p.reserve(pos); err != nil {
			return err
		}
	}
	p.pos = pos
	if !p.sizeSet && p.dir == DirWrite && p.pos > headerPayloadSize(header) {
		headerSetPayloadSize(header, p.pos)
	}
	return nil
}

// Read copies len(dst) bytes from the payload at the current cursor and
// advances it. Reading past the packet's size fails ErrInvalid.
func (p *Packet) Read(dst []byte) (int, error) {
	if !p.isOpen || p.dir != DirRead {
		return 0, ErrInvalid
	}
	header := p.buf.headerAt(p.bufferPos)
	n := uint64(len(dst))
	if p.pos+n > headerPayloadSize(header) {
		return 0, ErrInvalid
	}
	p.buf.arenaRead(p.payloadOffset(), dst)
	p.pos += n
	return len(dst), nil
}

// Write copies src into the payload at the current cursor and advances it.
// On a still-growing write packet this reserves additional capacity as
// needed; on a size-frozen one, writing past the size fails ErrInvalid.
func (p *Packet) Write(src []byte) (int, error) {
	if !p.isOpen || p.dir != DirWrite {
		return 0, ErrInvalid
	}
	header := p.buf.headerAt(p.bufferPos)
	n := uint64(len(src))
	if p.sizeSet {
		if p.pos+n > headerPayloadSize(header) {
			return 0, ErrInvalid
		}
	} else {
		if p.pos+n+2*headerSize > p.buf.state.size {
			return 0, ErrNoBufs
		}
		if err := p.reserve(p.pos + n); err != nil {
			return 0, err
		}
	}
	p.buf.arenaWrite(p.payloadOffset(), src)
	p.pos += n
	if p.pos > headerPayloadSize(header) {
		headerSetPayloadSize(header, p.pos)
	}
	return len(src), nil
}

// DMA exposes size bytes at the current cursor directly out of the arena
// when the span is contiguous, advancing the cursor as Read/Write would. If
// the span crosses the arena wrap, it fails ErrAgain unless acceptFake is
// set, in which case a recycled fake-DMA staging buffer is used instead: on
// a read it is pre-filled from the arena, on a write it is committed back
// (seek+write) when the packet closes.
func (p *Packet) DMA(size int, acceptFake bool) ([]byte, error) {
	if !p.isOpen {
		return nil, ErrInvalid
	}
	header := p.buf.headerAt(p.bufferPos)
	n := uint64(size)
	growing := !p.sizeSet && p.dir == DirWrite
	if p.sizeSet || p.dir == DirRead {
		if p.pos+n > headerPayloadSize(header) {
			return nil, ErrInvalid
		}
	} else if p.pos+n+2*headerSize > p.buf.state.size {
		return nil, ErrNoBufs
	}

	offs := p.payloadOffset()
	if offs+n <= p.buf.state.size {
		if growing {
			if err := p.reserve(p.pos + n); err != nil {
				return nil, err
			}
		}
		mem := p.buf.arenaBytes()[offs : offs+n]
		p.pos += n
		if growing && p.pos > headerPayloadSize(header) {
			headerSetPayloadSize(header, p.pos)
		}
		return mem, nil
	}

	if !acceptFake {
		return nil, ErrAgain
	}
	if growing {
		if err := p.reserve(p.pos + n); err != nil {
			return nil, err
		}
	}
	fd := p.dma.alloc(size)
	fd.size = size
	fd.pos = int(p.pos)
	if p.dir == DirRead {
		p.buf.arenaRead(offs, fd.mem[:size])
	}
	p.pos += n
	if growing && p.pos > headerPayloadSize(header) {
		headerSetPayloadSize(header, p.pos)
	}
	return fd.mem[:size], nil
}

// Close commits the packet: on a write packet, freezing the size on demand
// and publishing it in commit order; on a read packet, marking it consumed
// and advancing the reclaim frontier in commit order. After Close the handle
// is no longer open.
func (p *Packet) Close() error {
	if !p.isOpen {
		return ErrInvalid
	}
	p.try = false // too late to cancel
	var err error
	if p.dir == DirRead {
		err = p.closeRead()
	} else {
		err = p.closeWrite()
	}
	if err == nil {
		p.isOpen = false
	}
	return err
}

func (p *Packet) closeRead() error {
	st := p.buf.state
	st.readCloseMu.Lock()

	header := p.buf.headerAt(p.bufferPos)
	st.stats.recordRead(headerPayloadSize(header))
	headerSetFlags(header, headerRead)

	if st.readPos == p.bufferPos {
		pos := p.bufferPos
		for {
			pos = advance(pos, st.size, headerPayloadSize(header))
			p.buf.postRead()
			header = p.buf.headerAt(pos)
			if headerFlags(header)&headerRead == 0 {
				break
			}
		}
		st.readPos = pos
	}

	st.readCloseMu.Unlock()
	p.dma.freeAll()
	return nil
}

func (p *Packet) closeWrite() error {
	if !p.sizeSet {
		header := p.buf.headerAt(p.bufferPos)
		if err := p.SetSize(headerPayloadSize(header)); err != nil {
			return err
		}
	}
	if err := p.dma.commitAll(p); err != nil {
		return err
	}

	st := p.buf.state
	st.writeCloseMu.Lock()

	header := p.buf.headerAt(p.bufferPos)
	st.stats.recordWrite(headerPayloadSize(header))
	headerSetFlags(header, headerWritten)

	if st.writePos == p.bufferPos {
		pos := p.bufferPos
		for {
			pos = advance(pos, st.size, headerPayloadSize(header))
			p.buf.postWritten()
			header = p.buf.headerAt(pos)
			if headerFlags(header)&headerWritten == 0 {
				break
			}
		}
		st.writePos = pos
	}

	st.writeCloseMu.Unlock()
	return nil
}

// Cancel abandons a write packet before its size has been frozen, refunding
// any capacity it had reserved. It is the only way to close a packet without
// publishing it.
func (p *Packet) Cancel() error {
	if !p.isOpen || p.dir != DirWrite || p.sizeSet {
		return ErrInvalid
	}
	st := p.buf.state
	st.freeBytes += int64(p.reserved)
	putHeader(p.buf.headerAt(p.bufferPos), 0, 0)
	st.writeMu.unlock()
	p.dma.freeAll()
	p.isOpen = false
	return nil
}

// reserve ensures free_bytes covers length bytes for this (write-side,
// still-growing) packet, reclaiming released packets at read_first as
// needed. length is the packet's total required size, not a delta (§4.2
// Reserve). Must only be called while state.writeMu is held by this handle.
func (p *Packet) reserve(length uint64) error {
	st := p.buf.state
	if length <= p.reserved {
		return nil
	}
	delta := int64(length) - int64(p.reserved)
	st.freeBytes -= delta
	for st.freeBytes < 0 {
		if p.try {
			if !st.readPackets.tryWait() {
				st.freeBytes += delta
				return ErrBusy
			}
		} else {
			waitStart := time.Now()
			err := st.readPackets.wait(st.cancelCtx)
			st.stats.recordWriteWait(time.Since(waitStart))
			if err != nil {
				st.freeBytes += delta
				st.writeMu.unlock()
				p.isOpen = false
				return err
			}
		}
		for {
			p.buf.reclaimOne()
			if st.cancelled() {
				st.writeMu.unlock()
				p.isOpen = false
				return ErrIntr
			}
			if !st.readPackets.tryWait() {
				break
			}
		}
	}
	p.reserved = length
	return nil
}

// payloadOffset is this packet's current cursor translated to an absolute
// arena offset.
func (p *Packet) payloadOffset() uint64 {
	return (p.bufferPos + headerSize + p.pos) % p.buf.state.size
}
