// Package psbuffer implements a bounded, shareable ring buffer of
// variable-length packets coordinated for concurrent producers and
// consumers.
//
// A Buffer owns a fixed-size byte arena and a state record tracking five
// position indices, a signed free-byte counter, four mutexes, and two
// counting semaphores. Producers and consumers interact with it exclusively
// through Packet handles: Open claims the current read or write head
// (optionally non-blocking via the try parameter), Write/Read/Seek/DMA move
// payload bytes in or out, and Close commits the packet in FIFO order even
// when multiple packets finish writing out of the order they were opened in.
//
// Cancel is a one-shot, level-triggered broadcast: once called, every
// blocked or future suspension point returns ErrIntr and the buffer is no
// longer usable except for Destroy.
package psbuffer
