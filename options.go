package psbuffer

import (
	"os"

	"go.uber.org/zap"
)

// Flag bits recognized by Attributes. READY and CANCELLED are internal; no
// option sets them.
const (
	FlagStats     uint32 = 1 << iota // enable counters in Stats/StateText
	FlagPShared                      // back the arena with a shared-memory segment
	flagReady                        // internal: buffer has completed New
	flagCancelled                    // internal: buffer has been cancelled
)

// ShmCreate requests a new shared-memory segment rather than attaching to an
// existing one (see Attributes.ShmID).
const ShmCreate = -1

// Attributes configures a Buffer, the Go analogue of "buffer attributes" in
// the abstract API (size, flags, shmid, shmmode). Built via NewAttributes
// with functional options, the same pattern the ingress/egress framing layer
// (internal/wire) uses for its own Options.
type Attributes struct {
	Size    uint64
	Flags   uint32
	ShmID   int
	ShmMode os.FileMode
	Logger  *zap.Logger
}

var defaultAttributes = Attributes{
	Size:    64 * 1024,
	Flags:   0,
	ShmID:   ShmCreate,
	ShmMode: 0o600,
	Logger:  zap.NewNop(),
}

// Option mutates an Attributes value during NewAttributes.
type Option func(*Attributes)

// NewAttributes builds an Attributes value from defaults plus the given
// options, in construction order.
func NewAttributes(opts ...Option) Attributes {
	a := defaultAttributes
	for _, fn := range opts {
		fn(&a)
	}
	return a
}

// WithSize sets the arena size in bytes. Must be at least 2*headerSize; this
// is enforced by New, not by the option itself (mirrors the source's
// attribute setters, which validate lazily).
func WithSize(size uint64) Option {
	return func(a *Attributes) { a.Size = size }
}

// WithStats enables the optional counters block (write_packets, read_bytes,
// wait-time accumulators, ...).
func WithStats() Option {
	return func(a *Attributes) { a.Flags |= FlagStats }
}

// WithPShared requests a shared-memory-backed arena. id must be ShmCreate,
// which allocates a new segment; any other id makes New fail with
// ErrNotSupported, as attaching to an existing segment is not supported (see
// shm_linux.go). mode is stored in Attributes.ShmMode; the anonymous mapping
// shm_linux.go creates does not use it.
func WithPShared(id int, mode os.FileMode) Option {
	return func(a *Attributes) {
		a.Flags |= FlagPShared
		a.ShmID = id
		a.ShmMode = mode
	}
}

// WithLogger injects a structured logger used for the two narrated events a
// buffer ever logs on its own: a fatal accounting violation immediately
// before it panics, and Cancel. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Attributes) {
		if logger != nil {
			a.Logger = logger
		}
	}
}
