package journal

import (
	"bufio"
	"encoding/binary"
	"hash/adler32"
	"os"

	"github.com/klauspost/compress/zstd"
)

// writerBufSize is the write-buffer size: a 64 KiB buffered region, flushed
// per §4.3's rule (remaining space below MaxEventSize) rather than on a
// timer, since the matching actor that drives it already controls its own
// pacing — there is no background flush goroutine here, matching §5's "no
// operation on the book suspends."
const writerBufSize = 64 * 1024

// Writer is the sole owner of one journal file's handle and buffered
// region (§3.2, §5). It is not safe for concurrent use.
type Writer struct {
	file   *os.File
	buf    *bufio.Writer
	header Header
	closed bool

	eventCount uint64
	firstSeq   uint64
	lastSeq    uint64
	startTS    uint64
	endTS      uint64
	bytesOut   int // total bytes handed to buf.Write, for telemetry

	// Compress, when set, zstd-compresses every record's payload bytes
	// before writing (the journal's Compressed event-flag bit, §4.2); see
	// DESIGN.md for why this is per-record rather than whole-file
	// compression.
	compress bool
	enc      *zstd.Encoder

	scratch [MaxEventSize]byte
}

// WriterOption configures Create.
type WriterOption func(*Writer)

// WithCompression enables per-record zstd compression of event payloads.
func WithCompression() WriterOption {
	return func(w *Writer) { w.compress = true }
}

// Create opens path for exclusive creation and writes the 64-byte header
// (§4.3: create(path, instrument_id)). It fails if the file already exists,
// matching the "fails with Io(reason) if the file cannot be created
// exclusively" contract.
func Create(path string, instrumentID uint64, opts ...WriterOption) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}

	w := &Writer{
		file: f,
		buf:  bufio.NewWriterSize(f, writerBufSize),
		header: Header{
			Magic:        Magic,
			Version:      Version,
			InstrumentID: instrumentID,
		},
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.compress {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		w.enc = enc
		w.header.Flags |= flagCompressed
	}

	hdr := w.header.encode()
	if _, err := w.buf.Write(hdr[:]); err != nil {
		_ = f.Close()
		return nil, err
	}
	return w, nil
}

// WriteEvent appends ev, stamped with sequence seq, to the journal (§4.3:
// write_event(event)). It flushes the buffer first if remaining space would
// fall below MaxEventSize.
func (w *Writer) WriteEvent(ev Event, seq uint64) error {
	if w.closed {
		return ErrClosed
	}
	if w.buf.Available() < MaxEventSize {
		if err := w.buf.Flush(); err != nil {
			return err
		}
	}

	record := w.scratch[:]
	var n int
	var err error
	if w.compress {
		n, err = w.writeCompressed(record, ev)
	} else {
		n, err = EncodeEvent(record, ev)
	}
	if err != nil {
		return err
	}
	if _, err := w.buf.Write(record[:n]); err != nil {
		return err
	}
	w.bytesOut += n

	if w.eventCount == 0 {
		w.firstSeq = seq
		w.startTS = ev.Timestamp
	}
	w.eventCount++
	w.lastSeq = seq
	w.endTS = ev.Timestamp
	return nil
}

// writeCompressed lays out a record as flags(with Compressed set) |
// timestamp(8) | compressed_len(2) | compressed_payload, using the
// uncompressed EventSize(ev.Kind)'s payload bytes as zstd's input. This
// layout departs from the fixed per-kind size in the uncompressed path, so
// the Reader checks the Compressed bit before deciding how many bytes to
// consume.
func (w *Writer) writeCompressed(buf []byte, ev Event) (int, error) {
	plainSize := EventSize(ev.Kind)
	var plain [MaxEventSize]byte
	encodePayload(plain[:plainSize-9], ev)

	compressed := w.enc.EncodeAll(plain[:plainSize-9], nil)
	if len(compressed) > len(buf)-11 {
		// Compression did not help (or grew the payload past our scratch
		// capacity); fall back to the plain record rather than fail.
		return EncodeEvent(buf, ev)
	}

	buf[0] = byte(ev.Kind)&kindMask | flagCompressed
	binary.LittleEndian.PutUint64(buf[1:9], ev.Timestamp)
	binary.LittleEndian.PutUint16(buf[9:11], uint16(len(compressed)))
	n := copy(buf[11:], compressed)
	return 11 + n, nil
}

// BytesWritten returns the cumulative count of record bytes handed to the
// writer's buffer so far (header/footer excluded), for telemetry.
func (w *Writer) BytesWritten() int { return w.bytesOut }

// Flush forces the buffered region out to the OS (§4.3: flush()).
func (w *Writer) Flush() error {
	if w.closed {
		return ErrClosed
	}
	return w.buf.Flush()
}

// Close flushes any remaining buffer, writes the footer, and releases the
// handle (§4.3: close()). It is idempotent.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	defer w.file.Close()

	if err := w.buf.Flush(); err != nil {
		return err
	}

	checksum := footerChecksum(adler32.New(), w.eventCount, w.firstSeq, w.lastSeq)
	footer := Footer{
		EventCount:    w.eventCount,
		FirstSequence: w.firstSeq,
		LastSequence:  w.lastSeq,
		Checksum:      uint64(checksum),
	}
	ftr := footer.encode()
	if _, err := w.file.Write(ftr[:]); err != nil {
		return err
	}

	// Patch the header's event_count/start/end/file_size fields now that
	// they are known. Matches industry practice of a "sealed" header
	// written last via a seek-back, since the true values are only known at
	// close time.
	info, err := w.file.Stat()
	if err != nil {
		return err
	}
	w.header.EventCount = w.eventCount
	w.header.StartTimestamp = w.startTS
	w.header.EndTimestamp = w.endTS
	w.header.FileSize = uint64(info.Size())
	hdr := w.header.encode()
	if _, err := w.file.WriteAt(hdr[:], 0); err != nil {
		return err
	}
	return w.file.Sync()
}
