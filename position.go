package psbuffer

// advance computes the next header offset after a packet of payloadSize
// bytes at pos, inside an arena of arenaSize bytes. This is the single
// authoritative wrap rule: every position index transition in the buffer
// (read_next, write_next, read_first, the close-side walks) goes through it.
//
// The byte span between the end of a committed packet and the returned
// offset may include unused padding at the arena's end, which callers fold
// into free_bytes accounting separately.
func advance(pos, arenaSize, payloadSize uint64) uint64 {
	q, _ := advanceWithPad(pos, arenaSize, payloadSize)
	return q
}

// advanceWithPad is advance plus the padding bytes, if any, that the wrap
// consumed at the end of the arena. Callers that are freeing a packet back
// onto the buffer (Reserve's reclaim, the close-side forward walks) must fold
// that padding into free_bytes; callers merely computing where the next
// header will land (Setsize's dry-run walk already does this itself) use
// advance.
func advanceWithPad(pos, arenaSize, payloadSize uint64) (next, pad uint64) {
	q := (pos + headerSize + payloadSize) % arenaSize
	if q+headerSize > arenaSize {
		return 0, arenaSize - q
	}
	return q, 0
}
