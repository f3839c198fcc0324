package session

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/quorumhft/matchcore/matching"
	"github.com/quorumhft/matchcore/telemetry"
)

func TestOpenSubmitCancelClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "instrument.journal")
	log := zaptest.NewLogger(t)

	sess, err := Open(1, path, 42, true, nil, log, telemetry.NoopRecorder{}, false)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	order := matching.Order{ID: 1, Side: matching.Buy, Type: matching.Limit, Price: 100, OriginalQuantity: 10}
	if _, reason, err := sess.Submit(order, 1); err != nil || reason != matching.RejectNone {
		t.Fatalf("Submit: reason=%v err=%v", reason, err)
	}

	if _, ok, err := sess.Cancel(1, 2); err != nil || !ok {
		t.Fatalf("Cancel: ok=%v err=%v", ok, err)
	}

	if err := sess.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestOpenRejectsDuplicateOrderID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "instrument.journal")
	sess, err := Open(2, path, 1, false, nil, zaptest.NewLogger(t), telemetry.NoopRecorder{}, false)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer sess.Close()

	order := matching.Order{ID: 7, Side: matching.Sell, Type: matching.Limit, Price: 10, OriginalQuantity: 1}
	if _, reason, err := sess.Submit(order, 1); err != nil || reason != matching.RejectNone {
		t.Fatalf("first submit: reason=%v err=%v", reason, err)
	}
	if _, reason, err := sess.Submit(order, 2); err != nil || reason != matching.RejectDuplicateOrderID {
		t.Fatalf("duplicate submit: reason=%v err=%v", reason, err)
	}
}

// TestSameSeedSameWorkloadProducesIdenticalJournalsAndDraws covers I8:
// two sessions opened with the same session_seed and driven through the
// same input sequence must write byte-identical journals and make the
// same PRNG draws, since nothing in either path consults wall-clock time
// or unordered iteration.
func TestSameSeedSameWorkloadProducesIdenticalJournalsAndDraws(t *testing.T) {
	drive := func(dir string) ([]byte, []uint64) {
		path := filepath.Join(dir, "instrument.journal")
		sess, err := Open(3, path, 777, true, nil, zaptest.NewLogger(t), telemetry.NoopRecorder{}, false)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}

		orders := []matching.Order{
			{ID: 1, Side: matching.Buy, Type: matching.Limit, Price: 99, OriginalQuantity: 5},
			{ID: 2, Side: matching.Buy, Type: matching.Limit, Price: 99, OriginalQuantity: 5},
			{ID: 3, Side: matching.Buy, Type: matching.Limit, Price: 99, OriginalQuantity: 5},
		}
		for i, o := range orders {
			if _, reason, err := sess.Submit(o, uint64(i+1)); err != nil || reason != matching.RejectNone {
				t.Fatalf("submit %d: reason=%v err=%v", o.ID, reason, err)
			}
		}
		if _, ok, err := sess.Cancel(2, 4); err != nil || !ok {
			t.Fatalf("cancel: ok=%v err=%v", ok, err)
		}
		if _, reason, err := sess.Submit(matching.Order{ID: 4, Side: matching.Sell, Type: matching.Market, OriginalQuantity: 6}, 5); err != nil || reason != matching.RejectNone {
			t.Fatalf("market submit: reason=%v err=%v", reason, err)
		}

		draws := make([]uint64, 4)
		for i := range draws {
			draws[i] = sess.RNG().Uint64()
		}

		if err := sess.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
		bytes, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("reading journal: %v", err)
		}
		return bytes, draws
	}

	bytesA, drawsA := drive(t.TempDir())
	bytesB, drawsB := drive(t.TempDir())

	if len(bytesA) == 0 {
		t.Fatal("journal A is empty")
	}
	if string(bytesA) != string(bytesB) {
		t.Fatalf("journals differ: %d bytes vs %d bytes", len(bytesA), len(bytesB))
	}
	for i := range drawsA {
		if drawsA[i] != drawsB[i] {
			t.Fatalf("PRNG draw %d differs: %d vs %d", i, drawsA[i], drawsB[i])
		}
	}
}
