package matching

import "fmt"

// Order is the fixed-layout record described in §3.1. Once accepted into
// the book, only LeavesQuantity, Status, and QueuePosition may change;
// Price, Side, Type, and OriginalQuantity are immutable for the order's
// lifetime.
type Order struct {
	ID               uint64
	InstrumentID     uint64
	Side             Side
	Type             Type
	Price            uint64
	OriginalQuantity uint64
	LeavesQuantity   uint64
	TimeInForce      TimeInForce
	Flags            Flags
	Status           Status
	// QueuePosition is the level's order count plus one at insertion (1 =
	// front of its level's queue) and is assigned once; it is not renumbered
	// when earlier nodes are removed (§4.4). Live position is recomputed on
	// demand by walking the queue.
	QueuePosition    uint32
	ArrivalTimestamp uint64
	// DisplayQuantity caps the visible portion of an order carrying the
	// Hidden flag, turning it into an iceberg. Zero (with Hidden set) means
	// fully hidden; ignored when Hidden is not set.
	DisplayQuantity uint64
}

// VisibleQuantity is the portion of LeavesQuantity that contributes to L2
// aggregates and visible order counts (§4.5.1 item 7).
func (o *Order) VisibleQuantity() uint64 {
	if !o.Flags.Has(Hidden) {
		return o.LeavesQuantity
	}
	if o.DisplayQuantity == 0 {
		return 0
	}
	if o.DisplayQuantity < o.LeavesQuantity {
		return o.DisplayQuantity
	}
	return o.LeavesQuantity
}

// HiddenQuantity is the complement of VisibleQuantity within LeavesQuantity.
func (o *Order) HiddenQuantity() uint64 {
	return o.LeavesQuantity - o.VisibleQuantity()
}

// countsAsVisible classifies the order for the VisibleOrders/HiddenOrders
// level tallies. Unlike VisibleQuantity, this is derived from the order's
// static Hidden/DisplayQuantity fields alone, not its current leaves — so it
// stays stable as leaves drains to zero on a final fill, where
// VisibleQuantity would otherwise report 0 for every order regardless of
// how it was classified at insert time.
func (o *Order) countsAsVisible() bool {
	return !o.Flags.Has(Hidden) || o.DisplayQuantity > 0
}

// IsHidden reports whether the order is fully invisible in L2 snapshots.
func (o *Order) IsHidden() bool {
	return o.Flags.Has(Hidden) && o.DisplayQuantity == 0
}

// IsIceberg reports whether the order shows a capped slice of its size.
func (o *Order) IsIceberg() bool {
	return o.Flags.Has(Hidden) && o.DisplayQuantity > 0
}

func (o *Order) String() string {
	return fmt.Sprintf(
		"Order(id=%d sym=%d %s %s px=%d leaves=%d/%d tif=%s flags=%s status=%s qpos=%d)",
		o.ID, o.InstrumentID, o.Side, o.Type, o.Price, o.LeavesQuantity,
		o.OriginalQuantity, o.TimeInForce, o.Flags, o.Status, o.QueuePosition,
	)
}

// OrderNode links an Order into its price level's FIFO queue. Level is a
// non-owning back-pointer (a lookup, not ownership — the level owns the
// node; see §9 design notes); Next/Prev are the intrusive doubly-linked-list
// pointers used by OrderList.
type OrderNode struct {
	Order
	Next  *OrderNode
	Prev  *OrderNode
	Level *LevelNode
}

// reset clears pool-reusable state before a node is returned to the pool.
func (n *OrderNode) reset() {
	n.Order = Order{}
	n.Next = nil
	n.Prev = nil
	n.Level = nil
}
