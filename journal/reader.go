package journal

import (
	"bufio"
	"encoding/binary"
	"hash/adler32"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
)

// EventDescriptor locates one event within the file without decoding its
// payload (§4.3: build_index()).
type EventDescriptor struct {
	Position  int64
	Size      int
	Kind      EventKind
	Timestamp uint64
}

// Callbacks groups the per-kind handlers ReadWithCallbacks dispatches to
// (§4.3: read_with_callbacks({on_add, on_cancel, ...})). Any field may be
// nil; OnAny, if set, is called for every event in addition to its
// kind-specific callback.
type Callbacks struct {
	OnAdd    func(Event)
	OnCancel func(Event)
	OnAmend  func(Event)
	OnTrade  func(Event)
	OnBBO    func(Event)
	OnReject func(Event)
	OnAny    func(Event)
}

func (c Callbacks) dispatch(ev Event) {
	switch ev.Kind {
	case EventAdd:
		if c.OnAdd != nil {
			c.OnAdd(ev)
		}
	case EventCancel:
		if c.OnCancel != nil {
			c.OnCancel(ev)
		}
	case EventAmend:
		if c.OnAmend != nil {
			c.OnAmend(ev)
		}
	case EventFill:
		if c.OnTrade != nil {
			c.OnTrade(ev)
		}
	case EventBBOChange:
		if c.OnBBO != nil {
			c.OnBBO(ev)
		}
	case EventReject:
		if c.OnReject != nil {
			c.OnReject(ev)
		}
	}
	if c.OnAny != nil {
		c.OnAny(ev)
	}
}

// Reader sequentially consumes a journal file. It never mutates the file
// (§4.3).
type Reader struct {
	file   *os.File
	Header Header
	Footer Footer

	dataEnd int64 // file_size - footer_size
	dec     *zstd.Decoder
}

// Open validates the header's magic and version, reads the footer (its
// checksum is checked only by Verify), and positions the reader at the
// start of the event stream (§4.3: open(path)).
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	var hdrBuf [headerSize]byte
	if _, err := io.ReadFull(f, hdrBuf[:]); err != nil {
		_ = f.Close()
		return nil, ErrInvalidFormat
	}
	header, err := decodeHeader(hdrBuf[:])
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	dataEnd := info.Size() - footerSize
	if dataEnd < headerSize {
		_ = f.Close()
		return nil, ErrInvalidFormat
	}

	var ftrBuf [footerSize]byte
	if _, err := f.ReadAt(ftrBuf[:], dataEnd); err != nil {
		_ = f.Close()
		return nil, ErrInvalidFormat
	}
	footer, err := decodeFooter(ftrBuf[:])
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	r := &Reader{file: f, Header: header, Footer: footer, dataEnd: dataEnd}
	if header.Flags&flagCompressed != 0 {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		r.dec = dec
	}
	if _, err := f.Seek(headerSize, io.SeekStart); err != nil {
		_ = f.Close()
		return nil, err
	}
	return r, nil
}

// Verify recomputes the footer checksum and reports ErrIntegrity on
// mismatch (§4.3's Integrity note). Callers may ignore the error and keep
// reading in degraded mode; Reader itself never refuses a file over this.
func (r *Reader) Verify() error {
	got := footerChecksum(adler32.New(), r.Footer.EventCount, r.Footer.FirstSequence, r.Footer.LastSequence)
	if uint64(got) != r.Footer.Checksum {
		return ErrIntegrity
	}
	return nil
}

// Close releases the file handle.
func (r *Reader) Close() error {
	return r.file.Close()
}

// ReadAll decodes every event in order and invokes fn for each, stopping at
// the first error fn returns (§4.3: read_all(callback)).
func (r *Reader) ReadAll(fn func(Event) error) error {
	if _, err := r.file.Seek(headerSize, io.SeekStart); err != nil {
		return err
	}
	br := bufio.NewReader(io.LimitReader(r.file, r.dataEnd-headerSize))
	for {
		ev, err := r.readOne(br)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
}

// ReadWithCallbacks is ReadAll dispatched through a Callbacks set (§4.3:
// read_with_callbacks).
func (r *Reader) ReadWithCallbacks(cb Callbacks) error {
	return r.ReadAll(func(ev Event) error {
		cb.dispatch(ev)
		return nil
	})
}

// TryReadEvent reads the next event from the reader's current position, or
// returns (Event{}, false, nil) at end of stream (§4.3:
// try_read_event() -> Option<Event>). It is a single-record read, not a
// full sequential scan, so it is not interchangeable with ReadAll's
// buffered reader — it reads directly from the file.
func (r *Reader) TryReadEvent() (Event, bool, error) {
	pos, err := r.file.Seek(0, io.SeekCurrent)
	if err != nil {
		return Event{}, false, err
	}
	if pos >= r.dataEnd {
		return Event{}, false, nil
	}
	ev, _, err := r.readOne(r.file)
	if err == io.EOF {
		return Event{}, false, nil
	}
	if err != nil {
		return Event{}, false, err
	}
	return ev, true, nil
}

// readOne reads and decodes one record from src, returning its wire size.
func (r *Reader) readOne(src io.Reader) (Event, int, error) {
	var head [9]byte
	if _, err := io.ReadFull(src, head[:]); err != nil {
		return Event{}, 0, err
	}
	kind := EventKind(head[0] & kindMask)
	timestamp := binary.LittleEndian.Uint64(head[1:9])

	if head[0]&flagCompressed != 0 {
		var lenBuf [2]byte
		if _, err := io.ReadFull(src, lenBuf[:]); err != nil {
			return Event{}, 0, io.ErrUnexpectedEOF
		}
		compressedLen := int(binary.LittleEndian.Uint16(lenBuf[:]))
		compressed := make([]byte, compressedLen)
		if _, err := io.ReadFull(src, compressed); err != nil {
			return Event{}, 0, io.ErrUnexpectedEOF
		}
		plain, err := r.dec.DecodeAll(compressed, nil)
		if err != nil {
			return Event{}, 0, err
		}
		return decodePayload(kind, timestamp, plain), 11 + compressedLen, nil
	}

	size := EventSize(kind)
	if size == 0 {
		return Event{}, 0, ErrInvalidFormat
	}
	payload := make([]byte, size-9)
	if _, err := io.ReadFull(src, payload); err != nil {
		return Event{}, 0, io.ErrUnexpectedEOF
	}
	return decodePayload(kind, timestamp, payload), size, nil
}

// BuildIndex scans the whole event stream and returns one EventDescriptor
// per event, leaving the cursor at the position it started from (§4.3:
// build_index() -> [descriptor]).
func (r *Reader) BuildIndex() ([]EventDescriptor, error) {
	start, err := r.file.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}
	defer r.file.Seek(start, io.SeekStart)

	if _, err := r.file.Seek(headerSize, io.SeekStart); err != nil {
		return nil, err
	}

	var index []EventDescriptor
	pos := int64(headerSize)
	for pos < r.dataEnd {
		ev, size, err := r.readOne(r.file)
		if err == io.EOF {
			break
		}
		if err != nil {
			return index, err
		}
		index = append(index, EventDescriptor{Position: pos, Size: size, Kind: ev.Kind, Timestamp: ev.Timestamp})
		pos += int64(size)
	}
	return index, nil
}

// Seek repositions the reader's cursor at byte offset position within the
// file (§4.3: seek(position)), typically one returned by BuildIndex.
func (r *Reader) Seek(position int64) error {
	_, err := r.file.Seek(position, io.SeekStart)
	return err
}
