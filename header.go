package psbuffer

import (
	"github.com/lano1106/glcs-packetstream/internal/bo"
)

// headerSize is the fixed, in-arena size of a packet header: a uint32 flags
// word followed by a uint64 payload length. It never straddles the arena
// wrap (see advance in position.go).
const headerSize = 4 + 8

// Packet header flag bits, stored in the low bits of the header's flags word.
const (
	headerWritten uint32 = 1 << iota
	headerRead
)

// headerByteOrder is the native byte order used to pack header fields
// in-place inside the arena. Headers are never read by a different process
// architecture than the one that wrote them, so native order (rather than a
// fixed wire order) avoids needless byteswaps on the hot path.
var headerByteOrder = bo.Native()

// putHeader writes a fresh header (flags and size) at buf[0:headerSize].
func putHeader(buf []byte, flags uint32, size uint64) {
	headerByteOrder.PutUint32(buf[0:4], flags)
	headerByteOrder.PutUint64(buf[4:headerSize], size)
}

// headerFlags reads the flags word of the header at buf[0:headerSize].
func headerFlags(buf []byte) uint32 {
	return headerByteOrder.Uint32(buf[0:4])
}

// headerSetFlags ORs bits into the header's flags word in place.
func headerSetFlags(buf []byte, bits uint32) {
	headerByteOrder.PutUint32(buf[0:4], headerFlags(buf)|bits)
}

// headerPayloadSize reads the payload length of the header at buf[0:headerSize].
func headerPayloadSize(buf []byte) uint64 {
	return headerByteOrder.Uint64(buf[4:headerSize])
}

// headerSetPayloadSize overwrites the payload length of the header at buf[0:headerSize].
func headerSetPayloadSize(buf []byte, size uint64) {
	headerByteOrder.PutUint64(buf[4:headerSize], size)
}
