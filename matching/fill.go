package matching

import "fmt"

// Fill is produced whenever matching crosses an incoming order against a
// resting one (§3.1). Fills are never mutated after creation and are
// returned to the caller by value; the engine retains no reference.
type Fill struct {
	FillID           uint64
	AggressorOrderID uint64
	PassiveOrderID   uint64
	InstrumentID     uint64
	Price            uint64
	Quantity         uint64
	Side             Side // side of the aggressor
	IsHidden         bool
	Liquidity        Liquidity
	Timestamp        uint64
	Sequence         uint64
}

func (f Fill) String() string {
	return fmt.Sprintf(
		"Fill(id=%d seq=%d aggressor=%d passive=%d px=%d qty=%d %s %s hidden=%v)",
		f.FillID, f.Sequence, f.AggressorOrderID, f.PassiveOrderID, f.Price,
		f.Quantity, f.Side, f.Liquidity, f.IsHidden,
	)
}
