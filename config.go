package xclaim

import "time"

// Default tuning values. The 64 KiB threshold matches the ceiling of common
// storage queue services.
const (
	DefaultMessageSizeThreshold = 65536
	DefaultRetryMaxAttempts     = 3
	DefaultRetryBackoff         = 1 * time.Second
	DefaultRetryMultiplier      = 2.0
	DefaultRetryMaxBackoff      = 30 * time.Second
	DefaultDedupCacheSize       = 10_000
	DefaultMaxDequeueCount      = 5
	DefaultSASValidity          = 7 * 24 * time.Hour
	DefaultDLQSuffix            = "-dlq"
)

// Config is the persisted configuration of a Client. It is read-only after
// construction; runtime strategies (criteria, resolver, replacer) are bound
// separately through the builder and may be hot-swapped on the client.
type Config struct {
	// MessageSizeThreshold is the offload boundary in bytes. Bodies strictly
	// greater than the threshold are offloaded; a body exactly at the
	// threshold stays on the queue.
	MessageSizeThreshold int
	// AlwaysThroughBlob forces offloading regardless of size.
	AlwaysThroughBlob bool
	// CleanupBlobOnDelete deletes the backing blob when a blob-backed
	// message is deleted. Best-effort.
	CleanupBlobOnDelete bool
	// BlobKeyPrefix is applied by the default blob name resolver.
	BlobKeyPrefix string

	// Retry tuning for queue and blob calls.
	RetryMaxAttempts       int
	RetryBackoff           time.Duration
	RetryBackoffMultiplier float64
	RetryMaxBackoff        time.Duration

	// IgnorePayloadNotFound tolerates a missing blob on receive: the message
	// is returned with an empty body instead of failing.
	IgnorePayloadNotFound bool
	// ReceiveOnlyMode runs without store credentials; blob resolution uses
	// capability URIs exclusively.
	ReceiveOnlyMode bool

	// BlobAccessTier is a storage tier hint on upload (hot/cool/archive).
	BlobAccessTier string
	// BlobTTLDays stamps expiry metadata on uploads; 0 disables.
	BlobTTLDays int

	// SASEnabled issues a capability URI for each offloaded payload and
	// carries it in the message metadata.
	SASEnabled  bool
	SASValidity time.Duration

	// TracingEnabled attaches the logging observer to client events.
	TracingEnabled bool

	// CompressionEnabled gzip-compresses payloads before storing and
	// decompresses on resolve.
	CompressionEnabled bool

	// Deduplication drops repeated bodies within a bounded LRU window.
	DeduplicationEnabled   bool
	DeduplicationCacheSize int

	// Dead-lettering routes poison messages to a secondary queue once their
	// dequeue count reaches the threshold.
	DeadLetterEnabled         bool
	DeadLetterQueueName       string
	DeadLetterMaxDequeueCount int
}

// Defaults returns a Config with production-safe defaults.
func Defaults() Config {
	return Config{
		MessageSizeThreshold:      DefaultMessageSizeThreshold,
		CleanupBlobOnDelete:       true,
		RetryMaxAttempts:          DefaultRetryMaxAttempts,
		RetryBackoff:              DefaultRetryBackoff,
		RetryBackoffMultiplier:    DefaultRetryMultiplier,
		RetryMaxBackoff:           DefaultRetryMaxBackoff,
		SASValidity:               DefaultSASValidity,
		TracingEnabled:            true,
		DeduplicationCacheSize:    DefaultDedupCacheSize,
		DeadLetterMaxDequeueCount: DefaultMaxDequeueCount,
	}
}

// Validate checks the Config for usable values.
func (c Config) Validate() error {
	if c.MessageSizeThreshold < 0 {
		return &ConfigError{Field: "MessageSizeThreshold", Reason: "must be >= 0"}
	}
	if c.RetryMaxAttempts < 1 {
		return &ConfigError{Field: "RetryMaxAttempts", Reason: "must be >= 1"}
	}
	if c.RetryBackoffMultiplier < 1.0 {
		return &ConfigError{Field: "RetryBackoffMultiplier", Reason: "must be >= 1.0"}
	}
	if c.RetryBackoff < 0 || c.RetryMaxBackoff < 0 {
		return &ConfigError{Field: "RetryBackoff", Reason: "must be >= 0"}
	}
	if c.DeduplicationEnabled && c.DeduplicationCacheSize < 1 {
		return &ConfigError{Field: "DeduplicationCacheSize", Reason: "must be >= 1"}
	}
	if c.DeadLetterEnabled && c.DeadLetterMaxDequeueCount < 1 {
		return &ConfigError{Field: "DeadLetterMaxDequeueCount", Reason: "must be >= 1"}
	}
	if c.BlobTTLDays < 0 {
		return &ConfigError{Field: "BlobTTLDays", Reason: "must be >= 0"}
	}
	if c.SASEnabled && c.SASValidity <= 0 {
		return &ConfigError{Field: "SASValidity", Reason: "must be > 0"}
	}
	return nil
}
