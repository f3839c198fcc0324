// Package journal implements an append-only binary event log (§4.2-§4.3,
// §6.1): a fixed 64-byte header, a stream of variable-but-known-size event
// records, and a 32-byte footer carrying the sequence range and a rolling
// checksum. It is the sole owner of the file handle it opens — one Writer
// per journal file (§5) — and the sole audit trail the matching engine
// produces; there is deliberately no separate on-disk snapshot format (see
// DESIGN.md) — a book snapshot is an in-memory matching.OrderBookSnapshot
// value instead.
package journal

import (
	"encoding/binary"
	"fmt"

	"github.com/quorumhft/matchcore/matching"
)

// EventKind identifies the kind of event a record carries. It is encoded in
// the low 5 bits of the record's flags byte (§4.2), leaving the upper 3 for
// Compressed / HasChecksum / a reserved bit.
type EventKind uint8

const (
	EventAdd EventKind = iota
	EventCancel
	EventAmend
	EventFill
	EventBBOChange
	EventReject
)

func (k EventKind) String() string {
	switch k {
	case EventAdd:
		return "Add"
	case EventCancel:
		return "Cancel"
	case EventAmend:
		return "Amend"
	case EventFill:
		return "Fill"
	case EventBBOChange:
		return "BboChange"
	case EventReject:
		return "Reject"
	default:
		return "Unknown"
	}
}

// Record flag bits, packed into the same byte as the event kind (bits 0-4).
const (
	kindMask       = 0x1F
	flagCompressed = 1 << 5
	flagHasCheck   = 1 << 6
	flagReserved   = 1 << 7
)

// Event is the decoded form of one journal record. It is a flat struct
// covering every event kind's fields rather than a tagged union with
// per-kind payload types, so Encode/Decode touch no heap: the caller
// supplies (or receives) a value, never a pointer into allocated payload
// storage (§4.2 guarantee ii).
type Event struct {
	Kind      EventKind
	Timestamp uint64 // microseconds since the session epoch

	// Add
	OrderID  uint64
	Price    uint64
	Quantity uint32
	Side     matching.Side
	Type     matching.Type
	Flags    matching.Flags

	// Cancel
	LeavesQty    uint32
	OriginalQty  uint32

	// Amend
	NewQty   uint32
	OldQty   uint32
	NewPrice uint64
	OldPrice uint64

	// Fill/Trade
	BuyOrderID  uint64
	SellOrderID uint64

	// BboChange
	BidPrice uint64
	BidSize  uint32
	AskPrice uint64
	AskSize  uint32

	// Reject
	Reason matching.RejectReason
}

// EventSize returns the exact wire size (header-inclusive: the 1-byte flags
// field plus the 8-byte timestamp plus the kind's payload) of an event of
// kind (§4.2). See DESIGN.md for a note on the Add size, which this
// implementation derives from the payload field list in §6.1 rather than
// the possibly-transcribed total in §4.2's summary table.
func EventSize(kind EventKind) int {
	switch kind {
	case EventAdd:
		return 9 + 8 + 8 + 4 + 2
	case EventCancel:
		return 9 + 8 + 4 + 4
	case EventAmend:
		return 9 + 8 + 4 + 4 + 8 + 8
	case EventFill:
		return 9 + 8 + 4 + 8 + 8
	case EventBBOChange:
		return 9 + 8 + 4 + 8 + 4
	case EventReject:
		return 9 + 8 + 1 + 4 + 8
	default:
		return 0
	}
}

// MaxEventSize is the largest possible record size; the Writer flushes its
// buffer once remaining space falls below this (§4.3).
const MaxEventSize = 41 // Amend, the largest kind

// packSideTypeFlags packs an Add event's side/type/flags into the 2-byte
// field §6.1 reserves for them.
func packSideTypeFlags(side matching.Side, typ matching.Type, flags matching.Flags) uint16 {
	var v uint16
	if side == matching.Sell {
		v |= 1 << 0
	}
	if typ == matching.Market {
		v |= 1 << 1
	}
	v |= uint16(flags&0x07) << 2
	return v
}

func unpackSideTypeFlags(v uint16) (matching.Side, matching.Type, matching.Flags) {
	side := matching.Buy
	if v&(1<<0) != 0 {
		side = matching.Sell
	}
	typ := matching.Limit
	if v&(1<<1) != 0 {
		typ = matching.Market
	}
	flags := matching.Flags((v >> 2) & 0x07)
	return side, typ, flags
}

// EncodeEvent writes ev into buf (which must be at least EventSize(ev.Kind)
// bytes) and returns the number of bytes written (§4.2:
// serialize_event(buf, event) -> bytes_written).
func EncodeEvent(buf []byte, ev Event) (int, error) {
	size := EventSize(ev.Kind)
	if size == 0 {
		return 0, fmt.Errorf("journal: unknown event kind %d", ev.Kind)
	}
	if len(buf) < size {
		return 0, fmt.Errorf("journal: buffer too small for %s event (need %d, have %d)", ev.Kind, size, len(buf))
	}

	buf[0] = byte(ev.Kind) & kindMask
	binary.LittleEndian.PutUint64(buf[1:9], ev.Timestamp)
	encodePayload(buf[9:size], ev)
	return size, nil
}

// DecodeEvent reads one event from the front of buf and returns it along
// with the number of bytes consumed (§4.2: deserialize_event(buf) -> (event,
// bytes_read)).
func DecodeEvent(buf []byte) (Event, int, error) {
	if len(buf) < 9 {
		return Event{}, 0, fmt.Errorf("journal: buffer too small for record header")
	}
	kind := EventKind(buf[0] & kindMask)
	size := EventSize(kind)
	if size == 0 {
		return Event{}, 0, fmt.Errorf("journal: unknown event kind %d", kind)
	}
	if len(buf) < size {
		return Event{}, 0, fmt.Errorf("journal: truncated %s record (need %d, have %d)", kind, size, len(buf))
	}

	ev := decodePayload(kind, binary.LittleEndian.Uint64(buf[1:9]), buf[9:size])
	return ev, size, nil
}

// decodePayload parses a kind's payload bytes into an Event. Split out of
// DecodeEvent so the Writer/Reader's Compressed path — which recovers the
// same payload bytes via zstd first — can share the field-layout logic
// without duplicating it.
func decodePayload(kind EventKind, timestamp uint64, payload []byte) Event {
	ev := Event{Kind: kind, Timestamp: timestamp}
	switch kind {
	case EventAdd:
		ev.OrderID = binary.LittleEndian.Uint64(payload[0:8])
		ev.Price = binary.LittleEndian.Uint64(payload[8:16])
		ev.Quantity = binary.LittleEndian.Uint32(payload[16:20])
		ev.Side, ev.Type, ev.Flags = unpackSideTypeFlags(binary.LittleEndian.Uint16(payload[20:22]))
	case EventCancel:
		ev.OrderID = binary.LittleEndian.Uint64(payload[0:8])
		ev.LeavesQty = binary.LittleEndian.Uint32(payload[8:12])
		ev.OriginalQty = binary.LittleEndian.Uint32(payload[12:16])
	case EventAmend:
		ev.OrderID = binary.LittleEndian.Uint64(payload[0:8])
		ev.NewQty = binary.LittleEndian.Uint32(payload[8:12])
		ev.OldQty = binary.LittleEndian.Uint32(payload[12:16])
		ev.NewPrice = binary.LittleEndian.Uint64(payload[16:24])
		ev.OldPrice = binary.LittleEndian.Uint64(payload[24:32])
	case EventFill:
		ev.Price = binary.LittleEndian.Uint64(payload[0:8])
		ev.Quantity = binary.LittleEndian.Uint32(payload[8:12])
		ev.BuyOrderID = binary.LittleEndian.Uint64(payload[12:20])
		ev.SellOrderID = binary.LittleEndian.Uint64(payload[20:28])
	case EventBBOChange:
		ev.BidPrice = binary.LittleEndian.Uint64(payload[0:8])
		ev.BidSize = binary.LittleEndian.Uint32(payload[8:12])
		ev.AskPrice = binary.LittleEndian.Uint64(payload[12:20])
		ev.AskSize = binary.LittleEndian.Uint32(payload[20:24])
	case EventReject:
		ev.OrderID = binary.LittleEndian.Uint64(payload[0:8])
		ev.Reason = matching.RejectReason(payload[8])
		ev.Quantity = binary.LittleEndian.Uint32(payload[9:13])
		ev.Price = binary.LittleEndian.Uint64(payload[13:21])
	}
	return ev
}

// encodePayload is the inverse of decodePayload: it writes ev's kind-specific
// fields into payload (which must be exactly EventSize(ev.Kind)-9 bytes).
// EncodeEvent uses it directly for the uncompressed path; the Writer's
// Compressed path encodes into a scratch buffer with it before handing the
// bytes to zstd.
func encodePayload(payload []byte, ev Event) {
	switch ev.Kind {
	case EventAdd:
		binary.LittleEndian.PutUint64(payload[0:8], ev.OrderID)
		binary.LittleEndian.PutUint64(payload[8:16], ev.Price)
		binary.LittleEndian.PutUint32(payload[16:20], ev.Quantity)
		binary.LittleEndian.PutUint16(payload[20:22], packSideTypeFlags(ev.Side, ev.Type, ev.Flags))
	case EventCancel:
		binary.LittleEndian.PutUint64(payload[0:8], ev.OrderID)
		binary.LittleEndian.PutUint32(payload[8:12], ev.LeavesQty)
		binary.LittleEndian.PutUint32(payload[12:16], ev.OriginalQty)
	case EventAmend:
		binary.LittleEndian.PutUint64(payload[0:8], ev.OrderID)
		binary.LittleEndian.PutUint32(payload[8:12], ev.NewQty)
		binary.LittleEndian.PutUint32(payload[12:16], ev.OldQty)
		binary.LittleEndian.PutUint64(payload[16:24], ev.NewPrice)
		binary.LittleEndian.PutUint64(payload[24:32], ev.OldPrice)
	case EventFill:
		binary.LittleEndian.PutUint64(payload[0:8], ev.Price)
		binary.LittleEndian.PutUint32(payload[8:12], ev.Quantity)
		binary.LittleEndian.PutUint64(payload[12:20], ev.BuyOrderID)
		binary.LittleEndian.PutUint64(payload[20:28], ev.SellOrderID)
	case EventBBOChange:
		binary.LittleEndian.PutUint64(payload[0:8], ev.BidPrice)
		binary.LittleEndian.PutUint32(payload[8:12], ev.BidSize)
		binary.LittleEndian.PutUint64(payload[12:20], ev.AskPrice)
		binary.LittleEndian.PutUint32(payload[20:24], ev.AskSize)
	case EventReject:
		binary.LittleEndian.PutUint64(payload[0:8], ev.OrderID)
		payload[8] = byte(ev.Reason)
		binary.LittleEndian.PutUint32(payload[9:13], ev.Quantity)
		binary.LittleEndian.PutUint64(payload[13:21], ev.Price)
	}
}
