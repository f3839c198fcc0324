package matching

// OrderBookSnapshot is the immutable, self-contained view returned by
// Book.Snapshot (§6.2). It carries enough information for an external
// observer (UI, strategy warm-start) to reconstruct the L2 view without
// holding a reference into the live book.
type OrderBookSnapshot struct {
	InstrumentID uint64
	Sequence     uint64
	BBO          BBO
	Bids         []Level
	Asks         []Level
	OrderCount   int
}
