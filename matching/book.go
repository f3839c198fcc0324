package matching

// Book is the order book for a single instrument: two price-ordered
// ladders, the order_id index, and the cached BBO pointers (§3.1, §4.5).
// Book is the sole mutator of its ladders and index; external observers
// only ever see immutable values (Level, BBO, OrderBookSnapshot) copied out
// of it. Book is not safe for concurrent use — it is owned by exactly one
// matching actor (§5).
type Book struct {
	instrumentID uint64

	bids *avlTree // descending: highest price first
	asks *avlTree // ascending: lowest price first

	hot hotState

	orders map[uint64]*OrderNode
	pool   nodePool
}

// NewBook creates an empty order book for instrumentID.
func NewBook(instrumentID uint64) *Book {
	return &Book{
		instrumentID: instrumentID,
		bids:         newAVLTree(func(a, b uint64) bool { return a > b }),
		asks:         newAVLTree(func(a, b uint64) bool { return a < b }),
		orders:       make(map[uint64]*OrderNode),
	}
}

// InstrumentID returns the instrument this book matches orders for.
func (b *Book) InstrumentID() uint64 { return b.instrumentID }

// Sequence returns the book's current sequence number (the last one
// assigned, 0 if none yet).
func (b *Book) Sequence() uint64 { return b.hot.sequence }

// ladder returns the AVL tree for side.
func (b *Book) ladder(side Side) *avlTree {
	if side == Buy {
		return b.bids
	}
	return b.asks
}

// levelSideOf maps an order side to the LevelSide its resting orders sit on.
func levelSideOf(side Side) LevelSide {
	if side == Buy {
		return BidSide
	}
	return AskSide
}

// BestBid returns the best (highest) bid level, or nil if the bid side is
// empty.
func (b *Book) BestBid() *LevelNode { return b.hot.bestBid }

// BestAsk returns the best (lowest) ask level, or nil if the ask side is
// empty.
func (b *Book) BestAsk() *LevelNode { return b.hot.bestAsk }

// BestBidAsk returns the current top of book (§6.2: best_bid_ask()).
func (b *Book) BestBidAsk() BBO {
	var bbo BBO
	if bb := b.hot.bestBid; bb != nil {
		bbo.BidOK = true
		bbo.BidPrice = bb.Price
		bbo.BidQuantity = bb.VisibleQuantity
	}
	if ba := b.hot.bestAsk; ba != nil {
		bbo.AskOK = true
		bbo.AskPrice = ba.Price
		bbo.AskQuantity = ba.VisibleQuantity
	}
	return bbo
}

// Order returns the resting order for orderID, or (Order{}, false).
func (b *Book) Order(orderID uint64) (Order, bool) {
	n, ok := b.orders[orderID]
	if !ok {
		return Order{}, false
	}
	return n.Order, true
}

// Depth returns up to n price levels on side, best first (§6.2: depth).
func (b *Book) Depth(side Side, n int) []Level {
	ladder := b.ladder(side)
	out := make([]Level, 0, n)
	for lvl := ladder.First(); lvl != nil && len(out) < n; lvl = lvl.Next() {
		out = append(out, lvl.Level)
	}
	return out
}

// QueuePosition returns the order's live 1-based rank in its level's FIFO
// queue (§4.6), recomputed by walking backward from the node to the head.
func (b *Book) QueuePosition(orderID uint64) (uint32, bool) {
	n, ok := b.orders[orderID]
	if !ok || n.Level == nil {
		return 0, false
	}
	pos, _ := n.Level.Orders.PositionOf(n)
	return pos, true
}

// QuantityAhead returns the summed leaves quantity of orders strictly ahead
// of orderID in its level's queue (§4.6).
func (b *Book) QuantityAhead(orderID uint64) (uint64, bool) {
	n, ok := b.orders[orderID]
	if !ok || n.Level == nil {
		return 0, false
	}
	_, qty := n.Level.Orders.PositionOf(n)
	return qty, true
}

// findOrCreateLevel returns the level at price on side, creating it lazily
// if this is the first resting order at that price (§4.4).
func (b *Book) findOrCreateLevel(side Side, price uint64) *LevelNode {
	ladder := b.ladder(side)
	if lvl := ladder.Find(price); lvl != nil {
		return lvl
	}
	lvl := newLevelNode(levelSideOf(side), price)
	ladder.Insert(lvl)
	b.refreshBest(side)
	return lvl
}

// refreshBest re-reads the cached best pointer for side from the ladder.
func (b *Book) refreshBest(side Side) {
	if side == Buy {
		b.hot.bestBid = b.bids.First()
	} else {
		b.hot.bestAsk = b.asks.First()
	}
}

// insert creates (if needed) order's level, appends it to the tail of the
// level's queue, assigns QueuePosition, and updates level aggregates and
// the order index. The node becomes the book's sole owner of the order.
func (b *Book) insert(order Order) *OrderNode {
	node := b.pool.acquire()
	node.Order = order

	lvl := b.findOrCreateLevel(order.Side, order.Price)
	node.QueuePosition = uint32(lvl.Orders.Len() + 1)
	lvl.Orders.PushBack(node)
	node.Level = lvl

	b.addAggregates(lvl, &node.Order)
	lvl.bump()
	b.refreshBest(order.Side)

	b.orders[order.ID] = node
	return node
}

// addAggregates folds order's quantity into level's running totals. The
// VisibleOrders/HiddenOrders classification uses countsAsVisible (the
// order's static Hidden/DisplayQuantity fields), not VisibleQuantity, so it
// stays correct even after later calls made with leaves already at zero.
func (b *Book) addAggregates(lvl *LevelNode, order *Order) {
	lvl.TotalQuantity += order.LeavesQuantity
	lvl.VisibleQuantity += order.VisibleQuantity()
	if order.countsAsVisible() {
		lvl.VisibleOrders++
	} else {
		lvl.HiddenOrders++
	}
}

// removeAggregates undoes addAggregates for a node leaving the book for
// good (deleteNode). It debits whatever quantity the order still carries
// (zero for a node that drained to zero via reduceAggregates first, the
// full remainder for a live cancel) and decrements the order-count tally
// using the same static classification addAggregates used, so a
// fully-filled order (leaves == 0, VisibleQuantity == 0 regardless of
// history) still decrements the counter it was originally added to.
func (b *Book) removeAggregates(lvl *LevelNode, order *Order) {
	lvl.TotalQuantity -= order.LeavesQuantity
	lvl.VisibleQuantity -= order.VisibleQuantity()
	if order.countsAsVisible() {
		lvl.VisibleOrders--
	} else {
		lvl.HiddenOrders--
	}
}

// reduceAggregates adjusts level totals for a partial execution or amend
// size-down of qty, given the order's visible/hidden split before and
// after the change.
func (b *Book) reduceAggregates(lvl *LevelNode, qty, visibleBefore, visibleAfter uint64) {
	lvl.TotalQuantity -= qty
	lvl.VisibleQuantity -= visibleBefore - visibleAfter
}

// deleteNode removes node from the book entirely: unlinks it from its
// level's queue, updates aggregates, deletes the (now possibly empty)
// level, removes it from the order index, and returns it to the pool.
func (b *Book) deleteNode(node *OrderNode) {
	lvl := node.Level
	b.removeAggregates(lvl, &node.Order)
	lvl.Orders.Remove(node)
	lvl.bump()

	if lvl.Orders.Empty() {
		b.ladder(node.Side).Remove(lvl)
		b.refreshBest(node.Side)
	}

	delete(b.orders, node.ID)
	node.Level = nil
	b.pool.release(node)
}

// Snapshot returns an immutable, self-contained point-in-time view of the
// book (§6.2: snapshot()).
func (b *Book) Snapshot() OrderBookSnapshot {
	return OrderBookSnapshot{
		InstrumentID: b.instrumentID,
		Sequence:     b.hot.sequence,
		BBO:          b.BestBidAsk(),
		Bids:         b.Depth(Buy, b.bids.Size()),
		Asks:         b.Depth(Sell, b.asks.Size()),
		OrderCount:   len(b.orders),
	}
}
