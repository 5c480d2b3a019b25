//go:build !linux

package psbuffer

// newSharedArena is unavailable outside linux; WithPShared reports
// ErrNotSupported rather than silently degrading to a heap arena.
func newSharedArena(attrs Attributes) (arena, error) {
	return nil, ErrNotSupported
}
