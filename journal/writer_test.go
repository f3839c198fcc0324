package journal

import (
	"path/filepath"
	"testing"

	"github.com/quorumhft/matchcore/matching"
)

func TestWriteAndReadAllRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.jrnl")

	w, err := Create(path, 7)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	events := []Event{
		{Kind: EventAdd, Timestamp: 100, OrderID: 1, Price: 99, Quantity: 5, Side: matching.Buy, Type: matching.Limit},
		{Kind: EventAdd, Timestamp: 101, OrderID: 2, Price: 100, Quantity: 3, Side: matching.Sell, Type: matching.Limit},
		{Kind: EventFill, Timestamp: 102, Price: 100, Quantity: 3, BuyOrderID: 1, SellOrderID: 2},
		{Kind: EventCancel, Timestamp: 103, OrderID: 1, LeavesQty: 2, OriginalQty: 5},
	}
	for i, ev := range events {
		if err := w.WriteEvent(ev, uint64(i+1)); err != nil {
			t.Fatalf("write event %d: %v", i, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer r.Close()

	if r.Header.InstrumentID != 7 {
		t.Fatalf("expected instrument id 7, got %d", r.Header.InstrumentID)
	}
	if r.Footer.EventCount != uint64(len(events)) {
		t.Fatalf("expected event count %d, got %d", len(events), r.Footer.EventCount)
	}
	if r.Footer.FirstSequence != 1 || r.Footer.LastSequence != uint64(len(events)) {
		t.Fatalf("unexpected sequence range: %+v", r.Footer)
	}
	if err := r.Verify(); err != nil {
		t.Fatalf("checksum verify failed: %v", err)
	}

	var got []Event
	if err := r.ReadAll(func(ev Event) error {
		got = append(got, ev)
		return nil
	}); err != nil {
		t.Fatalf("read all: %v", err)
	}
	if len(got) != len(events) {
		t.Fatalf("expected %d events, got %d", len(events), len(got))
	}
	for i := range events {
		if got[i] != events[i] {
			t.Fatalf("event %d mismatch: got %+v want %+v", i, got[i], events[i])
		}
	}
}

func TestCreateFailsIfFileExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.jrnl")
	w, err := Create(path, 1)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	w.Close()

	if _, err := Create(path, 1); err == nil {
		t.Fatalf("expected error creating over an existing journal")
	}
}

func TestBuildIndexLeavesCursorUnmoved(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.jrnl")
	w, _ := Create(path, 1)
	w.WriteEvent(Event{Kind: EventAdd, Timestamp: 1, OrderID: 1, Price: 1, Quantity: 1}, 1)
	w.WriteEvent(Event{Kind: EventAdd, Timestamp: 2, OrderID: 2, Price: 1, Quantity: 1}, 2)
	w.Close()

	r, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer r.Close()

	index, err := r.BuildIndex()
	if err != nil {
		t.Fatalf("build index: %v", err)
	}
	if len(index) != 2 {
		t.Fatalf("expected 2 descriptors, got %d", len(index))
	}

	ev, ok, err := r.TryReadEvent()
	if err != nil || !ok {
		t.Fatalf("expected first event readable after index build, ok=%v err=%v", ok, err)
	}
	if ev.OrderID != 1 {
		t.Fatalf("expected cursor reset to first event, got order id %d", ev.OrderID)
	}
}

func TestCompressedRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.jrnl")
	w, err := Create(path, 1, WithCompression())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	ev := Event{Kind: EventAdd, Timestamp: 1, OrderID: 9, Price: 500, Quantity: 10, Side: matching.Buy, Type: matching.Limit, Flags: matching.Hidden}
	if err := w.WriteEvent(ev, 1); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer r.Close()

	var got []Event
	if err := r.ReadAll(func(e Event) error { got = append(got, e); return nil }); err != nil {
		t.Fatalf("read all: %v", err)
	}
	if len(got) != 1 || got[0] != ev {
		t.Fatalf("compressed round trip mismatch: got %+v want %+v", got, ev)
	}
}
