package psbuffer

import "errors"

// Error taxonomy for buffer and packet operations. All operations report
// status by returning one of these sentinels (or nil); there is no panic
// flow for ordinary contract violations.
var (
	// ErrInvalid reports a bad argument or an operation attempted from the
	// wrong packet/buffer state.
	ErrInvalid = errors.New("psbuffer: invalid argument or state")

	// ErrBusy reports that a TRY operation would have blocked.
	ErrBusy = errors.New("psbuffer: operation would block")

	// ErrNoBufs reports that a requested packet size exceeds the arena's
	// capacity regardless of current occupancy.
	ErrNoBufs = errors.New("psbuffer: requested size exceeds buffer capacity")

	// ErrAgain reports that a DMA request would cross the arena wrap and the
	// caller did not accept a fake-DMA staging copy.
	ErrAgain = errors.New("psbuffer: request would wrap, retry with fake DMA accepted")

	// ErrIntr reports that the buffer has been cancelled. Once returned, the
	// caller must abandon the buffer except for Destroy.
	ErrIntr = errors.New("psbuffer: buffer cancelled")

	// ErrNoMem reports an allocation failure.
	ErrNoMem = errors.New("psbuffer: allocation failed")

	// ErrNotSupported reports that the requested feature is disabled for this
	// build or platform.
	ErrNotSupported = errors.New("psbuffer: feature not supported")
)
