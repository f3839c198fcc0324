// Package replay implements the replay session of §4.7 (C8): reconstructing
// an instrument's book state and fill history from its journal alone, with
// no access to the original client traffic that produced it. Replay drives
// a matching.Engine constructed with a nil EventSink, so it never writes to
// a journal (§4.7: "replay never writes to a journal; it is pure
// consumption") and never re-runs price-time matching — it reapplies the
// recorded mutations directly through Engine's Replay* methods, which is
// the only construction guaranteed to reproduce a session's fill sequence
// bit-for-bit (I7): the journal does not retain enough information to
// resubmit a fully-marketable order that never rested (see
// matching.Engine's replay-support doc and DESIGN.md).
package replay

import (
	"context"
	"fmt"

	"github.com/quorumhft/matchcore/journal"
	"github.com/quorumhft/matchcore/matching"
)

// ProgressFunc is invoked every progressInterval events processed (§4.7: "a
// progress callback is invoked every 1,000,000 events").
type ProgressFunc func(eventsProcessed int)

const progressInterval = 1_000_000

// Session replays one instrument's journal against a fresh in-memory
// Engine. It is not safe for concurrent use.
type Session struct {
	reader *journal.Reader
	engine *matching.Engine

	onProgress ProgressFunc
	processed  int
}

// Open opens path's journal and constructs a fresh Engine for replay,
// wiring listener to observe the replayed fills/additions/cancellations/BBO
// changes (listener may be nil). The Engine returned by Engine is driven
// purely by replay; its sink is always nil.
func Open(path string, listener matching.Listener) (*Session, error) {
	r, err := journal.Open(path)
	if err != nil {
		return nil, err
	}
	engine := matching.NewEngine(r.Header.InstrumentID, nil, listener)
	return &Session{reader: r, engine: engine}, nil
}

// Close releases the underlying journal file handle.
func (s *Session) Close() error {
	return s.reader.Close()
}

// Engine exposes the replay-driven engine for post-replay inspection
// (BestBidAsk, Depth, Snapshot, ...).
func (s *Session) Engine() *matching.Engine { return s.engine }

// SetProgressFunc installs a callback fired every 1,000,000 events.
func (s *Session) SetProgressFunc(fn ProgressFunc) { s.onProgress = fn }

// EventsProcessed returns the count of events replayed so far.
func (s *Session) EventsProcessed() int { return s.processed }

// ReplayAll replays every remaining event in the journal and returns the
// count processed (§6.2/§4.7: replay_all(listener) -> events_processed).
// ctx is polled between events; a canceled context stops replay cleanly
// with ctx.Err(), per §5's cancellation-token contract for long-running
// administrative operations.
func (s *Session) ReplayAll(ctx context.Context) (int, error) {
	count := 0
	for {
		select {
		case <-ctx.Done():
			return count, ctx.Err()
		default:
		}
		ev, ok, err := s.reader.TryReadEvent()
		if err != nil {
			return count, err
		}
		if !ok {
			return count, nil
		}
		if err := s.apply(ev); err != nil {
			return count, err
		}
		count++
		s.bumpProgress()
	}
}

// ReplayUntil replays events up to and including the last one whose
// recorded timestamp is <= timestamp (§4.7: replay_until(timestamp)).
func (s *Session) ReplayUntil(ctx context.Context, timestamp uint64) (int, error) {
	count := 0
	for {
		select {
		case <-ctx.Done():
			return count, ctx.Err()
		default:
		}
		ev, ok, err := s.reader.TryReadEvent()
		if err != nil {
			return count, err
		}
		if !ok || ev.Timestamp > timestamp {
			return count, nil
		}
		if err := s.apply(ev); err != nil {
			return count, err
		}
		count++
		s.bumpProgress()
	}
}

// Step replays a single event and reports whether one was available (§4.7:
// step() -> bool).
func (s *Session) Step() (bool, error) {
	ev, ok, err := s.reader.TryReadEvent()
	if err != nil || !ok {
		return false, err
	}
	if err := s.apply(ev); err != nil {
		return false, err
	}
	s.bumpProgress()
	return true, nil
}

func (s *Session) bumpProgress() {
	s.processed++
	if s.onProgress != nil && s.processed%progressInterval == 0 {
		s.onProgress(s.processed)
	}
}

// apply reapplies one decoded journal event to the replay engine's book.
func (s *Session) apply(ev journal.Event) error {
	switch ev.Kind {
	case journal.EventAdd:
		order := matching.Order{
			ID:               ev.OrderID,
			InstrumentID:     s.engine.Book().InstrumentID(),
			Side:             ev.Side,
			Type:             ev.Type,
			Price:            ev.Price,
			OriginalQuantity: uint64(ev.Quantity),
			LeavesQuantity:   uint64(ev.Quantity),
			Flags:            ev.Flags,
			Status:           matching.Active,
			ArrivalTimestamp: ev.Timestamp,
		}
		s.engine.ReplayAdd(order)

	case journal.EventFill:
		s.engine.ReplayFill(ev.BuyOrderID, ev.SellOrderID, uint64(ev.Quantity), ev.Price, ev.Timestamp)

	case journal.EventCancel:
		if _, ok := s.engine.ReplayCancel(ev.OrderID); !ok {
			return fmt.Errorf("replay: cancel for unknown order %d at ts=%d", ev.OrderID, ev.Timestamp)
		}

	case journal.EventAmend:
		if _, ok := s.engine.ReplayAmend(ev.OrderID, uint64(ev.NewQty)); !ok {
			return fmt.Errorf("replay: amend for unknown order %d at ts=%d", ev.OrderID, ev.Timestamp)
		}

	case journal.EventBBOChange:
		bbo := matching.BBO{
			BidPrice: ev.BidPrice, BidQuantity: uint64(ev.BidSize), BidOK: ev.BidSize > 0,
			AskPrice: ev.AskPrice, AskQuantity: uint64(ev.AskSize), AskOK: ev.AskSize > 0,
		}
		s.engine.ReplayBBOChange(bbo)

	case journal.EventReject:
		s.engine.ReplayReject(ev.OrderID, ev.Price, uint64(ev.Quantity), ev.Reason)
	}
	return nil
}
