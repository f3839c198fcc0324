package matching

import "fmt"

// EventSink receives the audit trail for a book's mutations, in the order
// the book committed them. journal.Adapter implements this; matching itself
// never imports the journal package (it would be a cycle — the journal's
// event payloads describe matching types) so the dependency points the
// other way, keeping the journal writer the exclusive owner of the file
// handle (§3.2).
//
// Every method returns an error only for IoError-class failures (§7); the
// book has already mutated by the time any of these are called — the book
// mutation happens before the journal write within process_order (§7).
type EventSink interface {
	Add(order Order, seq uint64, ts uint64) error
	Cancel(order Order, seq uint64, ts uint64) error
	Amend(oldOrder, newOrder Order, seq uint64, ts uint64) error
	Fill(fill Fill) error
	Reject(order Order, reason RejectReason, seq uint64, ts uint64) error
	BBOChange(bbo BBO, seq uint64, ts uint64) error
}

// Engine is the matching actor for one instrument (C6): it owns a Book,
// drives the price-time-priority algorithm, and — unless StrictJournal
// halts it — keeps going even if the journal write for an event failed.
// Engine is not safe for concurrent use; one Engine serves one instrument
// inside one single-threaded actor (§5).
type Engine struct {
	book     *Book
	listener Listener
	sink     EventSink

	// StrictJournal selects the §7 IoError policy: when true, a journal
	// write failure halts the actor (Halted becomes true and every
	// subsequent call fails fast); when false, the actor degrades to
	// in-memory-only and keeps matching.
	StrictJournal bool

	Halted   bool
	HaltErr  error
}

// NewEngine creates an Engine for instrumentID. sink may be nil (pure
// in-memory, no audit trail — the mode replay.Session drives its engines
// in, since replay never writes to a journal, §4.7). listener may be nil.
func NewEngine(instrumentID uint64, sink EventSink, listener Listener) *Engine {
	if listener == nil {
		listener = NoopListener{}
	}
	return &Engine{
		book:     NewBook(instrumentID),
		listener: listener,
		sink:     sink,
	}
}

// Book exposes the underlying order book for read-only queries
// (BestBidAsk, Depth, QueuePosition, Snapshot, ...).
func (e *Engine) Book() *Book { return e.book }

// journal calls fn (one of the EventSink methods, already bound) and, on
// error, applies the §7 IoError policy.
func (e *Engine) journal(fn func() error) error {
	if e.sink == nil || fn == nil {
		return nil
	}
	if err := fn(); err != nil {
		if e.StrictJournal {
			e.Halted = true
			e.HaltErr = fmt.Errorf("matching: journal write failed, actor halted: %w", err)
			return e.HaltErr
		}
		return err
	}
	return nil
}

// Submit is the single public entry point for a new order (§4.5.1,
// §6.2: submit). It returns the fills produced, the reject reason (RejectNone
// on acceptance), and a non-nil error only when journaling the event failed.
func (e *Engine) Submit(order Order, ts uint64) ([]Fill, RejectReason, error) {
	if e.Halted {
		return nil, RejectNone, e.HaltErr
	}

	if reason := e.validate(order); reason != RejectNone {
		return e.reject(order, reason, ts)
	}

	order.ArrivalTimestamp = ts
	order.Status = Active
	order.LeavesQuantity = order.OriginalQuantity

	if order.Type == Limit && order.Flags.Has(PostOnly) && e.wouldCross(order) {
		return e.reject(order, RejectPostOnlyWouldTake, ts)
	}
	if order.TimeInForce == FOK && !e.canFillCompletely(order) {
		return e.reject(order, RejectFOKUnfillable, ts)
	}

	oldBBO := e.book.BestBidAsk()

	fills := e.crossAndFill(&order, ts)
	var jerr error
	for _, f := range fills {
		if err := e.journal(func() error { return e.sink.Fill(f) }); err != nil {
			jerr = err
		}
		e.listener.OnTrade(f)
	}

	if order.LeavesQuantity > 0 {
		switch {
		case order.Type == Market:
			// Market remainder is always discarded; never rests (§4.5.1 item 2).
			order.Status = statusAfterFills(order)
		case order.TimeInForce == IOC, order.TimeInForce == FOK:
			// Any leftover after an IOC/FOK attempt is discarded, not rested.
			order.Status = statusAfterFills(order)
		default:
			order.Status = statusAfterFills(order)
			node := e.book.insert(order)
			seq := e.book.hot.nextSequence()
			if err := e.journal(func() error {
				return e.sink.Add(node.Order, seq, ts)
			}); err != nil {
				jerr = err
			}
			e.listener.OnOrderAdded(node.Order)
		}
	} else if len(fills) > 0 {
		order.Status = Filled
	}

	e.emitBBOChange(oldBBO, ts)
	return fills, RejectNone, jerr
}

// statusAfterFills derives Active/PartiallyFilled/Filled from an order's
// remaining leaves quantity relative to its original size (§4.5.3).
func statusAfterFills(o Order) Status {
	switch {
	case o.LeavesQuantity == 0:
		return Filled
	case o.LeavesQuantity < o.OriginalQuantity:
		return PartiallyFilled
	default:
		return Active
	}
}

// reject rejects order with reason, journals a Reject event, and notifies
// the listener (§4.5.1 item 1 and item 3).
func (e *Engine) reject(order Order, reason RejectReason, ts uint64) ([]Fill, RejectReason, error) {
	order.Status = Rejected
	err := e.journal(func() error {
		return e.sink.Reject(order, reason, e.book.hot.nextSequence(), ts)
	})
	e.listener.OnOrderRejected(order, reason)
	return nil, reason, err
}

// validate runs the §4.5.1 item 1 checks. It does not check PostOnly/FOK
// crossing viability — those require book state and are checked separately
// once basic validation passes.
func (e *Engine) validate(order Order) RejectReason {
	if order.ID == 0 {
		return RejectBadOrderID
	}
	if order.OriginalQuantity == 0 {
		return RejectBadQuantity
	}
	if order.Type == Limit && order.Price == 0 {
		return RejectBadPrice
	}
	if _, exists := e.book.orders[order.ID]; exists {
		return RejectDuplicateOrderID
	}
	return RejectNone
}

// wouldCross reports whether order would take liquidity if matched right
// now (used for the PostOnly check).
func (e *Engine) wouldCross(order Order) bool {
	opp := e.book.ladder(order.Side.Opposite()).First()
	if opp == nil {
		return false
	}
	if order.Side == Buy {
		return order.Price >= opp.Price
	}
	return order.Price <= opp.Price
}

// canFillCompletely simulates (without mutating the book) whether the
// opposite side currently holds enough quantity to fill order in full,
// respecting its limit price if it has one (§4.5.1's FOK requirement).
func (e *Engine) canFillCompletely(order Order) bool {
	need := order.LeavesQuantity
	ladder := e.book.ladder(order.Side.Opposite())
	for lvl := ladder.First(); lvl != nil && need > 0; lvl = lvl.Next() {
		if order.Type == Limit {
			crosses := order.Price >= lvl.Price
			if order.Side == Sell {
				crosses = order.Price <= lvl.Price
			}
			if !crosses {
				break
			}
		}
		avail := lvl.TotalQuantity
		if avail >= need {
			return true
		}
		need -= avail
	}
	return need == 0
}

// crossAndFill matches incoming against the opposite ladder in price-time
// priority order (§4.5.1 items 2-5), mutating the book and returning every
// fill produced. incoming.LeavesQuantity is updated in place.
func (e *Engine) crossAndFill(incoming *Order, ts uint64) []Fill {
	var fills []Fill
	opp := incoming.Side.Opposite()
	ladder := e.book.ladder(opp)

	for incoming.LeavesQuantity > 0 {
		lvl := ladder.First()
		if lvl == nil {
			break
		}
		if incoming.Type == Limit {
			crosses := incoming.Price >= lvl.Price
			if incoming.Side == Sell {
				crosses = incoming.Price <= lvl.Price
			}
			if !crosses {
				break
			}
		}

		for incoming.LeavesQuantity > 0 && !lvl.Orders.Empty() {
			front := lvl.Orders.Front()
			qty := incoming.LeavesQuantity
			if front.LeavesQuantity < qty {
				qty = front.LeavesQuantity
			}

			seq := e.book.hot.nextSequence()
			fill := Fill{
				FillID:           seq,
				Sequence:         seq,
				AggressorOrderID: incoming.ID,
				PassiveOrderID:   front.ID,
				InstrumentID:     e.book.instrumentID,
				Price:            lvl.Price,
				Quantity:         qty,
				Side:             incoming.Side,
				IsHidden:         front.Flags.Has(Hidden),
				Liquidity:        Taker,
				Timestamp:        ts,
			}
			fills = append(fills, fill)

			incoming.LeavesQuantity -= qty
			e.applyPassiveFill(lvl, front, qty)

			if lvl.Orders.Empty() {
				break
			}
		}
	}
	return fills
}

// applyPassiveFill reduces the resting node's leaves by qty, updates level
// aggregates, transitions its status, and removes it from the book once it
// is fully filled (§4.5.1 item 5).
func (e *Engine) applyPassiveFill(lvl *LevelNode, node *OrderNode, qty uint64) {
	visBefore := node.VisibleQuantity()
	node.LeavesQuantity -= qty
	visAfter := node.VisibleQuantity()
	e.book.reduceAggregates(lvl, qty, visBefore, visAfter)
	lvl.bump()

	if node.LeavesQuantity == 0 {
		node.Status = Filled
		e.book.deleteNode(node)
		return
	}
	node.Status = PartiallyFilled
}

// emitBBOChange compares the book's current top of book against before and
// journals/notifies a BboChange if it moved (§4.5.1 item 6).
func (e *Engine) emitBBOChange(oldBBO BBO, ts uint64) {
	newBBO := e.book.BestBidAsk()
	if oldBBO.Equal(newBBO) {
		return
	}
	_ = e.journal(func() error {
		return e.sink.BBOChange(newBBO, e.book.hot.nextSequence(), ts)
	})
	e.listener.OnBBOChanged(newBBO)
}

// Cancel removes order_id from the book (§4.5.2, §6.2: cancel()). Unknown
// ids fail silently: (Order{}, false), no event written.
func (e *Engine) Cancel(orderID uint64, ts uint64) (Order, bool, error) {
	if e.Halted {
		return Order{}, false, e.HaltErr
	}
	node, ok := e.book.orders[orderID]
	if !ok {
		return Order{}, false, nil
	}

	oldBBO := e.book.BestBidAsk()

	canceled := node.Order
	canceled.Status = Canceled
	e.book.deleteNode(node)

	err := e.journal(func() error {
		return e.sink.Cancel(canceled, e.book.hot.nextSequence(), ts)
	})
	e.listener.OnOrderCanceled(canceled)
	e.emitBBOChange(oldBBO, ts)
	return canceled, true, err
}

// Amend applies the §4.5.2 amend contract and returns the resulting
// AmendOutcome (§6.2: amend()).
func (e *Engine) Amend(orderID uint64, newQuantity uint64, ts uint64) (AmendOutcome, error) {
	if e.Halted {
		return AmendOutcome{}, e.HaltErr
	}
	node, ok := e.book.orders[orderID]
	if !ok {
		return AmendOutcome{Kind: AmendNotFound}, nil
	}

	if newQuantity == 0 {
		canceled, _, err := e.Cancel(orderID, ts)
		return AmendOutcome{Kind: AmendCanceled, Order: canceled}, err
	}

	oldOrder := node.Order
	if newQuantity <= oldOrder.OriginalQuantity && newQuantity <= oldOrder.LeavesQuantity {
		// Size-down: update in place, preserve queue position.
		oldBBO := e.book.BestBidAsk()

		lvl := node.Level
		visBefore := node.VisibleQuantity()
		node.LeavesQuantity = newQuantity
		visAfter := node.VisibleQuantity()
		e.book.reduceAggregates(lvl, oldOrder.LeavesQuantity-newQuantity, visBefore, visAfter)
		lvl.bump()
		node.Status = statusAfterFills(node.Order)

		err := e.journal(func() error {
			return e.sink.Amend(oldOrder, node.Order, e.book.hot.nextSequence(), ts)
		})
		e.listener.OnOrderAmended(node.Order)
		e.emitBBOChange(oldBBO, ts)
		return AmendOutcome{Kind: AmendUpdated, Order: node.Order}, err
	}

	// Size-up: cancel then fresh-submit at the back of the queue (§4.5.2 —
	// this matches industry practice prohibiting queue-jumping via resize).
	oldBBO := e.book.BestBidAsk()

	canceledOrder := oldOrder
	canceledOrder.Status = Canceled
	e.book.deleteNode(node)
	cancelErr := e.journal(func() error {
		return e.sink.Cancel(canceledOrder, e.book.hot.nextSequence(), ts)
	})
	e.listener.OnOrderCanceled(canceledOrder)

	fresh := oldOrder
	fresh.OriginalQuantity = newQuantity
	fresh.LeavesQuantity = newQuantity
	fresh.Status = Active
	fresh.ArrivalTimestamp = ts
	newNode := e.book.insert(fresh)
	addErr := e.journal(func() error {
		return e.sink.Add(newNode.Order, e.book.hot.nextSequence(), ts)
	})
	e.listener.OnOrderAdded(newNode.Order)
	e.emitBBOChange(oldBBO, ts)

	err := cancelErr
	if err == nil {
		err = addErr
	}
	return AmendOutcome{Kind: AmendResubmitted, Order: newNode.Order}, err
}

// RestoreOrder re-inserts order into the book exactly as given, without
// validation, matching, or journaling — used by a caller rebuilding engine
// state from an external source of truth (e.g. a listener-maintained
// mirror), distinct from journal replay below.
func (e *Engine) RestoreOrder(order Order) {
	e.book.insert(order)
}

// Replay support.
//
// The journal records what happened — resting orders via Add, matches via
// Fill, removals via Cancel, in-place reductions via Amend — rather than the
// raw commands a client submitted. A fully-marketable order that never
// rests emits no Add event, so its side/type/flags are not recoverable from
// the journal alone. replay.Session therefore cannot resubmit such an order
// through Submit; instead it drives the methods below directly against a
// fresh Engine's book, one call per recorded event, in file order. Each
// advances the sequence counter exactly once, mirroring the single
// nextSequence() call the live path made for that event, and none of them
// journal (replay never writes to a journal, §4.7).

// ReplayAdd inserts order into the book exactly as it was journaled and
// notifies the listener, exactly as Submit does for the resting remainder
// of an order.
func (e *Engine) ReplayAdd(order Order) uint64 {
	e.book.insert(order)
	seq := e.book.hot.nextSequence()
	e.listener.OnOrderAdded(order)
	return seq
}

// ReplayFill applies a recorded trade of quantity at price between
// buyOrderID and sellOrderID. Exactly one of the two ids names a currently
// resting order (the passive side, found in file order since a submission's
// Fill events always precede its own possible Add); the other was the
// aggressor, which never rested and needs no further book mutation. The
// fill already happened live, so the listener is notified unconditionally;
// the returned bool only reports whether a passive order was found to
// mutate (false indicates a malformed journal).
func (e *Engine) ReplayFill(buyOrderID, sellOrderID, quantity, price, ts uint64) (Fill, bool) {
	seq := e.book.hot.nextSequence()

	passiveID, aggressorID, passiveSide := buyOrderID, sellOrderID, Buy
	node, ok := e.book.orders[passiveID]
	if !ok {
		passiveID, aggressorID, passiveSide = sellOrderID, buyOrderID, Sell
		node, ok = e.book.orders[passiveID]
	}
	fill := Fill{
		FillID:           seq,
		Sequence:         seq,
		AggressorOrderID: aggressorID,
		PassiveOrderID:   passiveID,
		InstrumentID:     e.book.instrumentID,
		Price:            price,
		Quantity:         quantity,
		Side:             passiveSide.Opposite(),
		Liquidity:        Taker,
		Timestamp:        ts,
	}
	if !ok {
		e.listener.OnTrade(fill)
		return fill, false
	}
	fill.IsHidden = node.Flags.Has(Hidden)
	e.applyPassiveFill(node.Level, node, quantity)
	e.listener.OnTrade(fill)
	return fill, true
}

// ReplayCancel removes orderID from the book, as a recorded Cancel event
// did, and notifies the listener. It reports false if the order is not
// currently resting.
func (e *Engine) ReplayCancel(orderID uint64) (Order, bool) {
	e.book.hot.nextSequence()
	node, ok := e.book.orders[orderID]
	if !ok {
		return Order{}, false
	}
	canceled := node.Order
	canceled.Status = Canceled
	e.book.deleteNode(node)
	e.listener.OnOrderCanceled(canceled)
	return canceled, true
}

// ReplayAmend applies a recorded in-place size reduction and notifies the
// listener. Journaled Amend events are always size-downs: a size-up is
// recorded as Cancel followed by Add (see Engine.Amend), so there is no
// resubmission case to handle here.
func (e *Engine) ReplayAmend(orderID uint64, newQuantity uint64) (Order, bool) {
	e.book.hot.nextSequence()
	node, ok := e.book.orders[orderID]
	if !ok {
		return Order{}, false
	}
	lvl := node.Level
	oldLeaves := node.LeavesQuantity
	visBefore := node.VisibleQuantity()
	node.LeavesQuantity = newQuantity
	visAfter := node.VisibleQuantity()
	e.book.reduceAggregates(lvl, oldLeaves-newQuantity, visBefore, visAfter)
	lvl.bump()
	node.Status = statusAfterFills(node.Order)
	e.listener.OnOrderAmended(node.Order)
	return node.Order, true
}

// ReplayBBOChange advances the sequence counter for a recorded BboChange
// event and notifies the listener with the recorded top of book, keeping
// the sequence stream and the listener's observed BBO history aligned with
// the live run's.
func (e *Engine) ReplayBBOChange(bbo BBO) uint64 {
	seq := e.book.hot.nextSequence()
	e.listener.OnBBOChanged(bbo)
	return seq
}

// ReplayReject advances the sequence counter for a recorded Reject event and
// notifies the listener. The rejected order's side/type/flags are not
// recoverable from the journal (a rejected order was never added, so no Add
// event exists for it) — the listener receives a partial Order carrying
// only the fields the journal retained.
func (e *Engine) ReplayReject(orderID, price, quantity uint64, reason RejectReason) uint64 {
	seq := e.book.hot.nextSequence()
	order := Order{ID: orderID, Price: price, OriginalQuantity: quantity, Status: Rejected}
	e.listener.OnOrderRejected(order, reason)
	return seq
}
