package psbuffer

import (
	"context"
	"errors"
	"io"

	"github.com/lano1106/glcs-packetstream/internal/wire"
)

// Ingest pumps framed messages off r (see internal/wire) into the buffer, one
// ring buffer packet per message, until r is exhausted or ctx is cancelled.
// It is the bridge between the arena's in-process producer/consumer contract
// and an out-of-process byte-stream conduit: a socket, pipe, or anything else
// that isn't backed by shared memory.
func (b *Buffer) Ingest(ctx context.Context, r io.Reader, opts ...wire.Option) error {
	fr := wire.NewReader(r, opts...)
	scratch := make([]byte, b.state.size)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		n, err := fr.Read(scratch)
		if n > 0 {
			if werr := b.writeFramed(scratch[:n]); werr != nil {
				return werr
			}
		}
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if errors.Is(err, wire.ErrWouldBlock) || errors.Is(err, wire.ErrMore) {
			continue
		}
		return err
	}
}

// Egress pumps committed packets out of the buffer onto w, one ring buffer
// packet per framed message, until ctx is cancelled or the buffer is
// cancelled (ErrIntr).
func (b *Buffer) Egress(ctx context.Context, w io.Writer, opts ...wire.Option) error {
	fw := wire.NewWriter(w, opts...)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		payload, err := b.readFramed()
		if err != nil {
			return err
		}
		if _, err := fw.Write(payload); err != nil {
			return err
		}
	}
}

func (b *Buffer) writeFramed(payload []byte) error {
	p := NewPacket(b)
	if err := p.Open(DirWrite, false); err != nil {
		return err
	}
	if err := p.SetSize(uint64(len(payload))); err != nil {
		return err
	}
	if _, err := p.Write(payload); err != nil {
		return err
	}
	return p.Close()
}

func (b *Buffer) readFramed() ([]byte, error) {
	p := NewPacket(b)
	if err := p.Open(DirRead, false); err != nil {
		return nil, err
	}
	size, err := p.GetSize()
	if err != nil {
		return nil, err
	}
	payload := make([]byte, size)
	if _, err := p.Read(payload); err != nil {
		return nil, err
	}
	if err := p.Close(); err != nil {
		return nil, err
	}
	return payload, nil
}
