package psbuffer

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
)

// Stats accumulates the optional counters enabled by WithStats
// (ps_stats_s in the source). All fields are updated with atomics since
// producers and consumers touch them from different goroutines without
// holding a shared lock.
type Stats struct {
	writtenPackets atomic.Uint64
	writtenBytes   atomic.Uint64
	readPackets    atomic.Uint64
	readBytes      atomic.Uint64
	writeWaitNsec  atomic.Int64
	readWaitNsec   atomic.Int64
}

func (s *Stats) recordWrite(n uint64) {
	if s == nil {
		return
	}
	s.writtenPackets.Add(1)
	s.writtenBytes.Add(n)
}

func (s *Stats) recordRead(n uint64) {
	if s == nil {
		return
	}
	s.readPackets.Add(1)
	s.readBytes.Add(n)
}

func (s *Stats) recordWriteWait(d time.Duration) {
	if s == nil || d <= 0 {
		return
	}
	s.writeWaitNsec.Add(d.Nanoseconds())
}

func (s *Stats) recordReadWait(d time.Duration) {
	if s == nil || d <= 0 {
		return
	}
	s.readWaitNsec.Add(d.Nanoseconds())
}

func (s *Stats) snapshot() StatsSnapshot {
	return StatsSnapshot{
		WrittenPackets: s.writtenPackets.Load(),
		WrittenBytes:   s.writtenBytes.Load(),
		ReadPackets:    s.readPackets.Load(),
		ReadBytes:      s.readBytes.Load(),
		WriteWait:      time.Duration(s.writeWaitNsec.Load()),
		ReadWait:       time.Duration(s.readWaitNsec.Load()),
	}
}

// StatsSnapshot is a point-in-time copy of a buffer's counters, returned by
// Buffer.Stats. It is safe to read and format after the buffer has moved on.
type StatsSnapshot struct {
	WrittenPackets uint64
	WrittenBytes   uint64
	ReadPackets    uint64
	ReadBytes      uint64
	WriteWait      time.Duration
	ReadWait       time.Duration
}

// Text renders the snapshot the way ps_stats_text formats the source's
// counters block, but with humanized byte counts and comma-grouped packet
// counts instead of raw integers.
func (s StatsSnapshot) Text() string {
	return fmt.Sprintf(
		"written: %s packets, %s\nread:    %s packets, %s\nwrite wait: %s\nread wait:  %s\n",
		humanize.Comma(int64(s.WrittenPackets)), humanize.Bytes(s.WrittenBytes),
		humanize.Comma(int64(s.ReadPackets)), humanize.Bytes(s.ReadBytes),
		s.WriteWait, s.ReadWait,
	)
}
