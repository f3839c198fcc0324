package journal

import (
	"encoding/binary"
	"fmt"
	"hash"
)

// Magic identifies a matchcore journal file (§6.1).
const Magic uint32 = 0x4F424F4B

// Version is the current journal format version this package writes and
// reads. Readers reject any other version with ErrUnsupportedVersion.
const Version uint16 = 2

const (
	headerSize = 64
	footerSize = 32
)

// Header is the fixed 64-byte preamble of a journal file (§6.1).
type Header struct {
	Magic          uint32
	Version        uint16
	Flags          uint16
	InstrumentID   uint64
	StartTimestamp uint64
	EndTimestamp   uint64
	EventCount     uint64
	FileSize       uint64
}

func (h Header) encode() [headerSize]byte {
	var buf [headerSize]byte
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint16(buf[4:6], h.Version)
	binary.LittleEndian.PutUint16(buf[6:8], h.Flags)
	binary.LittleEndian.PutUint64(buf[8:16], h.InstrumentID)
	binary.LittleEndian.PutUint64(buf[16:24], h.StartTimestamp)
	binary.LittleEndian.PutUint64(buf[24:32], h.EndTimestamp)
	binary.LittleEndian.PutUint64(buf[32:40], h.EventCount)
	binary.LittleEndian.PutUint64(buf[40:48], h.FileSize)
	// bytes 48:64 are the reserved, zeroed region.
	return buf
}

func decodeHeader(buf []byte) (Header, error) {
	if len(buf) < headerSize {
		return Header{}, fmt.Errorf("journal: short header (%d bytes)", len(buf))
	}
	h := Header{
		Magic:          binary.LittleEndian.Uint32(buf[0:4]),
		Version:        binary.LittleEndian.Uint16(buf[4:6]),
		Flags:          binary.LittleEndian.Uint16(buf[6:8]),
		InstrumentID:   binary.LittleEndian.Uint64(buf[8:16]),
		StartTimestamp: binary.LittleEndian.Uint64(buf[16:24]),
		EndTimestamp:   binary.LittleEndian.Uint64(buf[24:32]),
		EventCount:     binary.LittleEndian.Uint64(buf[32:40]),
		FileSize:       binary.LittleEndian.Uint64(buf[40:48]),
	}
	if h.Magic != Magic {
		return Header{}, ErrInvalidFormat
	}
	if h.Version != Version {
		return Header{}, ErrUnsupportedVersion
	}
	return h, nil
}

// Footer is the fixed 32-byte trailer of a journal file (§6.1).
type Footer struct {
	EventCount     uint64
	FirstSequence  uint64
	LastSequence   uint64
	Checksum       uint64
}

func (f Footer) encode() [footerSize]byte {
	var buf [footerSize]byte
	binary.LittleEndian.PutUint64(buf[0:8], f.EventCount)
	binary.LittleEndian.PutUint64(buf[8:16], f.FirstSequence)
	binary.LittleEndian.PutUint64(buf[16:24], f.LastSequence)
	binary.LittleEndian.PutUint64(buf[24:32], f.Checksum)
	return buf
}

func decodeFooter(buf []byte) (Footer, error) {
	if len(buf) < footerSize {
		return Footer{}, fmt.Errorf("journal: short footer (%d bytes)", len(buf))
	}
	return Footer{
		EventCount:    binary.LittleEndian.Uint64(buf[0:8]),
		FirstSequence: binary.LittleEndian.Uint64(buf[8:16]),
		LastSequence:  binary.LittleEndian.Uint64(buf[16:24]),
		Checksum:      binary.LittleEndian.Uint64(buf[24:32]),
	}, nil
}

// footerChecksum computes an Adler-32-shape rolling checksum over the
// footer's own prefix bytes (event count, first/last sequence — §4.3's
// Integrity note), using hash/adler32's rolling sum-of-sums construction
// directly (see DESIGN.md for why the standard library over a third-party
// hash here).
func footerChecksum(h hash.Hash32, eventCount, firstSeq, lastSeq uint64) uint32 {
	h.Reset()
	var buf [24]byte
	binary.LittleEndian.PutUint64(buf[0:8], eventCount)
	binary.LittleEndian.PutUint64(buf[8:16], firstSeq)
	binary.LittleEndian.PutUint64(buf[16:24], lastSeq)
	_, _ = h.Write(buf[:])
	return h.Sum32()
}
