package psbuffer

import (
	"strings"
	"testing"
	"time"
)

func TestStatsSnapshot(t *testing.T) {
	var s Stats
	s.recordWrite(100)
	s.recordWrite(50)
	s.recordRead(100)
	s.recordWriteWait(5 * time.Millisecond)
	s.recordReadWait(2 * time.Millisecond)

	snap := s.snapshot()
	if snap.WrittenPackets != 2 || snap.WrittenBytes != 150 {
		t.Fatalf("unexpected write counters: %+v", snap)
	}
	if snap.ReadPackets != 1 || snap.ReadBytes != 100 {
		t.Fatalf("unexpected read counters: %+v", snap)
	}
	if snap.WriteWait != 5*time.Millisecond {
		t.Fatalf("WriteWait = %v, want 5ms", snap.WriteWait)
	}
	if snap.ReadWait != 2*time.Millisecond {
		t.Fatalf("ReadWait = %v, want 2ms", snap.ReadWait)
	}
}

func TestStatsNilReceiverIsNoop(t *testing.T) {
	var s *Stats
	s.recordWrite(10)
	s.recordRead(10)
	s.recordWriteWait(time.Second)
	s.recordReadWait(time.Second)
	// must not panic; nothing else to assert since a nil *Stats has no state.
}

func TestStatsSnapshotText(t *testing.T) {
	snap := StatsSnapshot{WrittenPackets: 3, WrittenBytes: 2048, ReadPackets: 1, ReadBytes: 1024}
	text := snap.Text()
	for _, want := range []string{"written:", "read:", "write wait:", "read wait:"} {
		if !strings.Contains(text, want) {
			t.Errorf("Text() missing %q, got %q", want, text)
		}
	}
}
