package journal

import "errors"

// Format/version errors (§7: FormatError — fatal for the reader).
var (
	ErrInvalidFormat      = errors.New("journal: invalid magic")
	ErrUnsupportedVersion = errors.New("journal: unsupported version")
)

// ErrIntegrity is returned by Reader.Verify when the footer checksum does
// not match the recomputed value (§7: IntegrityError). Per §4.3, this is
// reported but does not by itself refuse the file; callers that want strict
// behavior check it explicitly, while ReadAll/ReadWithCallbacks continue in
// degraded mode regardless.
var ErrIntegrity = errors.New("journal: footer checksum mismatch")

// ErrClosed is returned by Writer methods called after Close.
var ErrClosed = errors.New("journal: writer is closed")
