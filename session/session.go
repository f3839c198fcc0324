// Package session is the top-level facade wiring one instrument's matching
// actor together: a journal.Writer/Adapter pair, a matching.Engine, a zap
// logger, a uuid session identifier, and a telemetry.Recorder. Per §7 the
// book mutation happens before the journal write, and that ordering lives
// inside matching.Engine itself (see DESIGN.md); Session's job is
// composition and observability, not ordering.
package session

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quorumhft/matchcore/journal"
	"github.com/quorumhft/matchcore/matching"
	"github.com/quorumhft/matchcore/prng"
	"github.com/quorumhft/matchcore/telemetry"
)

// Session is safe for concurrent use: a single mutex serializes calls into
// the underlying Engine, even though §5 describes one instrument's actor as
// single-threaded by construction — the mutex only guards callers that
// share a Session across an admin goroutine (metrics scrape, snapshot
// request) and the actor's own goroutine.
type Session struct {
	mu sync.Mutex

	id     uuid.UUID
	engine *matching.Engine
	writer *journal.Writer
	rng    *prng.Source

	log       *zap.Logger
	telemetry telemetry.Recorder
}

// recorderListener adapts matching.Listener calls into telemetry records,
// composed with whatever external listener the caller supplied.
type recorderListener struct {
	matching.Listener
	instrumentID uint64
	rec          telemetry.Recorder
}

func (r recorderListener) OnTrade(f matching.Fill) {
	r.rec.FillRecorded(r.instrumentID, f.Quantity)
	r.Listener.OnTrade(f)
}

func (r recorderListener) OnOrderRejected(o matching.Order, reason matching.RejectReason) {
	r.rec.RejectRecorded(r.instrumentID, reason.String())
	r.Listener.OnOrderRejected(o, reason)
}

// Open creates a new journaled session for instrumentID: a journal at
// journalPath, an Engine wired to journal through it, and sessionSeed
// seeding the session's deterministic PRNG (§5: "the PRNG is owned by the
// session; all non-deterministic draws go through it").
func Open(instrumentID uint64, journalPath string, sessionSeed uint64, strictJournal bool, listener matching.Listener, log *zap.Logger, rec telemetry.Recorder, compress bool) (*Session, error) {
	var opts []journal.WriterOption
	if compress {
		opts = append(opts, journal.WithCompression())
	}
	w, err := journal.Create(journalPath, instrumentID, opts...)
	if err != nil {
		return nil, fmt.Errorf("session: opening journal: %w", err)
	}
	adapter := journal.NewAdapter(w)

	if listener == nil {
		listener = matching.NoopListener{}
	}
	if rec == nil {
		rec = telemetry.NoopRecorder{}
	}
	wrapped := recorderListener{Listener: listener, instrumentID: instrumentID, rec: rec}

	engine := matching.NewEngine(instrumentID, adapter, wrapped)
	engine.StrictJournal = strictJournal

	id := uuid.New()
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("session_id", id.String()), zap.Uint64("instrument_id", instrumentID))
	log.Info("session opened", zap.Uint64("session_seed", sessionSeed), zap.String("journal_path", journalPath))

	return &Session{
		id:        id,
		engine:    engine,
		writer:    w,
		rng:       prng.New(sessionSeed),
		log:       log,
		telemetry: rec,
	}, nil
}

// ID returns the session's UUID.
func (s *Session) ID() uuid.UUID { return s.id }

// Engine exposes the underlying matching engine for read-only queries
// (BestBidAsk, Depth, QueuePosition, Snapshot).
func (s *Session) Engine() *matching.Engine { return s.engine }

// RNG returns the session's owned PRNG source (§5), for quant package
// callers that need seeded latency/slippage draws scoped to this session.
func (s *Session) RNG() *prng.Source { return s.rng }

// Submit drives Engine.Submit under the session lock and records journal
// bytes written via telemetry.
func (s *Session) Submit(order matching.Order, ts uint64) ([]matching.Fill, matching.RejectReason, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.writer.BytesWritten()
	fills, reason, err := s.engine.Submit(order, ts)
	s.telemetry.JournalBytesWritten(s.engine.Book().InstrumentID(), s.writer.BytesWritten()-before)
	if err != nil {
		s.log.Error("submit journal error", zap.Uint64("order_id", order.ID), zap.Error(err))
	}
	return fills, reason, err
}

// Cancel drives Engine.Cancel under the session lock.
func (s *Session) Cancel(orderID uint64, ts uint64) (matching.Order, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.writer.BytesWritten()
	order, ok, err := s.engine.Cancel(orderID, ts)
	s.telemetry.JournalBytesWritten(s.engine.Book().InstrumentID(), s.writer.BytesWritten()-before)
	return order, ok, err
}

// Amend drives Engine.Amend under the session lock.
func (s *Session) Amend(orderID uint64, newQuantity uint64, ts uint64) (matching.AmendOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.writer.BytesWritten()
	outcome, err := s.engine.Amend(orderID, newQuantity, ts)
	s.telemetry.JournalBytesWritten(s.engine.Book().InstrumentID(), s.writer.BytesWritten()-before)
	return outcome, err
}

// Close flushes and closes the journal. Safe to call once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log.Info("session closed", zap.Uint64("final_sequence", s.engine.Book().Sequence()))
	return s.writer.Close()
}
