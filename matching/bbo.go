package matching

import "fmt"

// BBO is the best-bid-and-offer snapshot returned by Book.BestBidAsk.
// BidOK/AskOK report whether that side has any resting liquidity at all —
// a BBO with an empty ask side (e.g. right after the book opens) still
// carries a valid, zeroed AskPrice/AskQuantity with AskOK == false.
type BBO struct {
	BidPrice    uint64
	BidQuantity uint64
	BidOK       bool
	AskPrice    uint64
	AskQuantity uint64
	AskOK       bool
}

func (b BBO) String() string {
	bid, ask := "-", "-"
	if b.BidOK {
		bid = fmt.Sprintf("%d x %d", b.BidPrice, b.BidQuantity)
	}
	if b.AskOK {
		ask = fmt.Sprintf("%d x %d", b.AskPrice, b.AskQuantity)
	}
	return fmt.Sprintf("BBO(bid=%s ask=%s)", bid, ask)
}

// Equal reports whether two BBOs carry the same top of book, used by the
// engine to decide whether a BboChange event must be emitted (§4.5.1
// item 6).
func (b BBO) Equal(o BBO) bool {
	return b.BidOK == o.BidOK && b.AskOK == o.AskOK &&
		(!b.BidOK || (b.BidPrice == o.BidPrice && b.BidQuantity == o.BidQuantity)) &&
		(!b.AskOK || (b.AskPrice == o.AskPrice && b.AskQuantity == o.AskQuantity))
}
