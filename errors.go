package charon

import "github.com/agilira/go-errors"

// Error codes for conditions raised directly by the charon package (as
// opposed to internal/stage and internal/ring, which carry their own).
const (
	ErrCodeClosed         errors.ErrorCode = "CHARON_CLOSED"
	ErrCodeWriterRequired errors.ErrorCode = "CHARON_WRITER_REQUIRED"
	ErrCodePermanentWrite errors.ErrorCode = "CHARON_PERMANENT_WRITE_FAILURE"
	ErrCodeNilProducer    errors.ErrorCode = "CHARON_NIL_PRODUCER"
)

// ErrClosed is returned by Write once the Logger has been closed.
var ErrClosed = errors.New(ErrCodeClosed, "logger is closed")

// ErrWriterRequired is returned by Open when Config.Writer is nil.
var ErrWriterRequired = errors.New(ErrCodeWriterRequired, "charon: Config.Writer is required")

// ErrNilProducer is returned by the facade helpers when called with a nil
// *Producer, which would otherwise panic deep inside the ring allocator.
var ErrNilProducer = errors.New(ErrCodeNilProducer, "charon: producer handle is nil")
