package psbuffer

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewRejectsUndersizedArena(t *testing.T) {
	if _, err := New(NewAttributes(WithSize(4))); err != ErrInvalid {
		t.Fatalf("New(undersized) = %v, want ErrInvalid", err)
	}
}

func TestNewHeapBackedGetShmID(t *testing.T) {
	b := newTestBuffer(t, 4096)
	id, err := b.GetShmID()
	if err != nil {
		t.Fatalf("GetShmID: %v", err)
	}
	if id != ShmCreate {
		t.Fatalf("GetShmID = %d, want ShmCreate", id)
	}
}

func TestStatsNotSupportedByDefault(t *testing.T) {
	b := newTestBuffer(t, 4096)
	if _, err := b.Stats(); err != ErrNotSupported {
		t.Fatalf("Stats() without WithStats = %v, want ErrNotSupported", err)
	}
}

func TestStatsEnabledTracksTraffic(t *testing.T) {
	b, err := New(NewAttributes(WithSize(4096), WithStats()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	w := NewPacket(b)
	w.Open(DirWrite, false)
	w.SetSize(5)
	w.Write([]byte("hello"))
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r := NewPacket(b)
	r.Open(DirRead, false)
	got := make([]byte, 5)
	r.Read(got)
	if err := r.Close(); err != nil {
		t.Fatalf("Close(read): %v", err)
	}

	snap, err := b.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if snap.WrittenPackets != 1 || snap.WrittenBytes != 5 {
		t.Fatalf("write counters = %+v", snap)
	}
	if snap.ReadPackets != 1 || snap.ReadBytes != 5 {
		t.Fatalf("read counters = %+v", snap)
	}
}

func TestDrainDiscardsUncommittedReads(t *testing.T) {
	b := newTestBuffer(t, 4096)
	for _, payload := range []string{"one", "two"} {
		w := NewPacket(b)
		w.Open(DirWrite, false)
		w.SetSize(uint64(len(payload)))
		w.Write([]byte(payload))
		if err := w.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}

	freed, err := b.Drain()
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if freed != 2 {
		t.Fatalf("Drain freed %d packets, want 2", freed)
	}

	p := NewPacket(b)
	if err := p.Open(DirRead, true); err != ErrBusy {
		t.Fatalf("Open(read, try) after Drain = %v, want ErrBusy", err)
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	b := newTestBuffer(t, 4096)
	if err := b.Cancel(); err != nil {
		t.Fatalf("Cancel #1: %v", err)
	}
	if err := b.Cancel(); err != nil {
		t.Fatalf("Cancel #2: %v", err)
	}
}

func TestCancelUnblocksBlockedOpen(t *testing.T) {
	b := newTestBuffer(t, 4096)
	done := make(chan error, 1)
	go func() {
		p := NewPacket(b)
		done <- p.Open(DirRead, false)
	}()

	// ErrIntr is returned whether Cancel lands before Open's own cancelled
	// check or while Open is already parked waiting for a packet.
	b.Cancel()

	if err := <-done; err != ErrIntr {
		t.Fatalf("blocked Open after Cancel = %v, want ErrIntr", err)
	}
}

func TestStateTextReportsPositions(t *testing.T) {
	b := newTestBuffer(t, 4096)
	w := NewPacket(b)
	w.Open(DirWrite, false)
	w.SetSize(4)
	w.Write([]byte("abcd"))
	w.Close()

	var buf bytes.Buffer
	if err := b.StateText(&buf); err != nil {
		t.Fatalf("StateText: %v", err)
	}
	text := buf.String()
	for _, want := range []string{"size:", "read_pos:", "write_pos:", "unread packets:", "pending free packets:"} {
		if !strings.Contains(text, want) {
			t.Errorf("StateText() missing %q, got %q", want, text)
		}
	}
}
