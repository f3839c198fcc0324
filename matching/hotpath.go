package matching

// cacheLineSize is the padding unit used to keep the book's hottest fields
// (the sequence counter and the BBO cache) off the same cache line as its
// cold metadata (the order index, the node pool), per §9's cache-padding
// design note. There is no portable CPU cache-line query in the standard
// library, so 64 bytes — correct for every mainstream x86_64/arm64 target —
// is hardcoded, the same constant package ring's disruptor-style ring
// buffer uses.
const cacheLineSize = 64

// hotState groups the fields mutated on every single process_order call and
// pads the group to a full cache line so the book fields declared after it
// (order index, pool) never false-share with traffic touching the hot ones.
// The fields declared before it (instrument id, ladder pointers) are not
// separated from it.
type hotState struct {
	sequence uint64
	bestBid  *LevelNode
	bestAsk  *LevelNode
	_        [cacheLineSize - 24]byte
}

// nextSequence returns the next strictly-monotone sequence number,
// incrementing the counter (§3.1 invariant d).
func (h *hotState) nextSequence() uint64 {
	h.sequence++
	return h.sequence
}
