package psbuffer

import "go.uber.org/zap"

// postRead and postWritten wrap the two semaphore releases a commit performs
// (Packet.closeRead / Packet.closeWrite) with the source's "abort on sem_post
// failure" contract (§9): golang.org/x/sync/semaphore.Weighted.Release panics
// rather than failing silently if the accounting it guards has been
// corrupted, so these narrate the event before letting the panic propagate.
func (b *Buffer) postRead() {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("sem_post failed committing a read", zap.Any("panic", r))
			panic(r)
		}
	}()
	b.state.readPackets.post()
}

func (b *Buffer) postWritten() {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("sem_post failed committing a write", zap.Any("panic", r))
			panic(r)
		}
	}()
	b.state.writtenPackets.post()
}
