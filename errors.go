package xclaim

import (
	"errors"
	"fmt"
)

var (
	// ErrBlobNotFound is returned by blob transports when an object is
	// absent. The payload store maps it to a tolerated empty result when
	// IgnorePayloadNotFound is set.
	ErrBlobNotFound = errors.New("xclaim: blob not found")

	// ErrPayloadStoreRequired is raised when a message must be offloaded but
	// no payload store was configured and the client is not receive-only.
	ErrPayloadStoreRequired = errors.New("xclaim: payload store is required to offload messages above the size threshold")

	// ErrNoQueueConfigured is returned by the builder when no queue
	// transport was supplied.
	ErrNoQueueConfigured = errors.New("xclaim: no queue transport configured")

	// ErrNoResolutionPath is raised on receive when a pointer message cannot
	// be resolved: no capability URI and no payload store available.
	ErrNoResolutionPath = errors.New("xclaim: cannot resolve blob payload: neither capability URI nor store credentials available")

	// ErrInvalidBatchSize is returned when max messages is outside 1..32.
	ErrInvalidBatchSize = errors.New("xclaim: max messages must be between 1 and 32")
)

// ErrUnknownQueueTransport reports a queue backend name with no registered factory.
type ErrUnknownQueueTransport struct{ name string }

func (e ErrUnknownQueueTransport) Error() string {
	return fmt.Sprintf("xclaim: unknown queue transport: %s", e.name)
}

// ErrUnknownBlobTransport reports a blob backend name with no registered factory.
type ErrUnknownBlobTransport struct{ name string }

func (e ErrUnknownBlobTransport) Error() string {
	return fmt.Sprintf("xclaim: unknown blob transport: %s", e.name)
}

// CodecError wraps a failure to decode or decompress payload data.
type CodecError struct {
	Err error
}

func (e *CodecError) Error() string { return fmt.Sprintf("xclaim: codec: %v", e.Err) }
func (e *CodecError) Unwrap() error { return e.Err }

// ConfigError reports invalid configuration. Always fatal, never retried.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("xclaim: config: %s %s", e.Field, e.Reason)
}

// TransientError marks a transport failure as retryable (network,
// throttling). The retrier treats every error as retryable regardless; the
// marker exists so callers with stronger idempotency requirements can
// distinguish the two classes.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("xclaim: transient: %v", e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err carries a TransientError marker.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// RetryExhaustedError wraps the last cause after the retry budget is spent.
type RetryExhaustedError struct {
	Attempts int
	Err      error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("xclaim: operation failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Err }
