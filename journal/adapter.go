package journal

import "github.com/quorumhft/matchcore/matching"

// Adapter implements matching.EventSink by translating matching's
// in-memory types into journal.Event records and handing them to a Writer.
// It is the seam the task's expanded ambient-stack design calls for: the
// matching package never imports journal (that would cycle back through
// matching.Order/Fill), so Engine depends only on the EventSink interface
// and Adapter supplies the concrete wiring at the composition root.
type Adapter struct {
	w *Writer
}

// NewAdapter wraps w as a matching.EventSink.
func NewAdapter(w *Writer) *Adapter { return &Adapter{w: w} }

func (a *Adapter) Add(order matching.Order, seq uint64, ts uint64) error {
	return a.w.WriteEvent(Event{
		Kind:      EventAdd,
		Timestamp: ts,
		OrderID:   order.ID,
		Price:     order.Price,
		Quantity:  uint32(order.LeavesQuantity),
		Side:      order.Side,
		Type:      order.Type,
		Flags:     order.Flags,
	}, seq)
}

func (a *Adapter) Cancel(order matching.Order, seq uint64, ts uint64) error {
	return a.w.WriteEvent(Event{
		Kind:        EventCancel,
		Timestamp:   ts,
		OrderID:     order.ID,
		LeavesQty:   uint32(order.LeavesQuantity),
		OriginalQty: uint32(order.OriginalQuantity),
	}, seq)
}

func (a *Adapter) Amend(oldOrder, newOrder matching.Order, seq uint64, ts uint64) error {
	return a.w.WriteEvent(Event{
		Kind:      EventAmend,
		Timestamp: ts,
		OrderID:   newOrder.ID,
		NewQty:    uint32(newOrder.LeavesQuantity),
		OldQty:    uint32(oldOrder.LeavesQuantity),
		NewPrice:  newOrder.Price,
		OldPrice:  oldOrder.Price,
	}, seq)
}

func (a *Adapter) Fill(fill matching.Fill) error {
	buyID, sellID := fill.PassiveOrderID, fill.AggressorOrderID
	if fill.Side == matching.Buy {
		buyID, sellID = fill.AggressorOrderID, fill.PassiveOrderID
	}
	return a.w.WriteEvent(Event{
		Kind:        EventFill,
		Timestamp:   fill.Timestamp,
		Price:       fill.Price,
		Quantity:    uint32(fill.Quantity),
		BuyOrderID:  buyID,
		SellOrderID: sellID,
	}, fill.Sequence)
}

func (a *Adapter) Reject(order matching.Order, reason matching.RejectReason, seq uint64, ts uint64) error {
	return a.w.WriteEvent(Event{
		Kind:      EventReject,
		Timestamp: ts,
		OrderID:   order.ID,
		Reason:    reason,
		Quantity:  uint32(order.OriginalQuantity),
		Price:     order.Price,
	}, seq)
}

func (a *Adapter) BBOChange(bbo matching.BBO, seq uint64, ts uint64) error {
	ev := Event{Kind: EventBBOChange, Timestamp: ts}
	if bbo.BidOK {
		ev.BidPrice = bbo.BidPrice
		ev.BidSize = uint32(bbo.BidQuantity)
	}
	if bbo.AskOK {
		ev.AskPrice = bbo.AskPrice
		ev.AskSize = uint32(bbo.AskQuantity)
	}
	return a.w.WriteEvent(ev, seq)
}
