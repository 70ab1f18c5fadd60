package xclaim

import (
	"context"
	"time"
)

// QueueTransport is the Strategy interface for the primary queue backend.
// Implementations wrap a real queue service (Redis, SQS, in-memory, ...)
// behind the small surface the claim-check client needs.
type QueueTransport interface {
	// Create ensures the queue exists. Idempotent.
	Create(ctx context.Context) error
	// Name returns the queue name.
	Name() string
	// Enqueue places a body on the queue, optionally invisible for delay.
	// Returns the transport-assigned message id.
	Enqueue(ctx context.Context, body string, delay time.Duration) (string, error)
	// Dequeue fetches up to max messages, hiding them for visibility.
	// A non-positive visibility lets the transport apply its default.
	Dequeue(ctx context.Context, max int, visibility time.Duration) ([]QueuedMessage, error)
	// Peek returns up to max raw bodies without consuming anything.
	Peek(ctx context.Context, max int) ([]string, error)
	// Delete removes a message; the receipt must match the latest dequeue.
	Delete(ctx context.Context, id, receipt string) error
	// ApproximateCount reports the approximate backlog depth.
	ApproximateCount(ctx context.Context) (int, error)
}

// BlobTransport is the Strategy interface for the payload store backend.
type BlobTransport interface {
	// EnsureContainer creates the container/bucket if absent. Idempotent.
	EnsureContainer(ctx context.Context) error
	// Container returns the container/bucket name.
	Container() string
	// Put uploads data under name with optional metadata and access tier.
	Put(ctx context.Context, name string, data []byte, metadata map[string]string, tier string) error
	// Get downloads an object. Returns ErrBlobNotFound when absent.
	Get(ctx context.Context, name string) ([]byte, error)
	// Delete removes an object. Returns ErrBlobNotFound when absent.
	Delete(ctx context.Context, name string) error
	// List returns the names of all objects in the container.
	List(ctx context.Context) ([]string, error)
	// Metadata returns the metadata of an object.
	Metadata(ctx context.Context, name string) (map[string]string, error)
	// SignedURL issues a time-bounded, read-only capability URI for name.
	SignedURL(ctx context.Context, name string, validFor time.Duration) (string, error)
}

// URIFetcher downloads a payload using only a capability URI, no account
// credentials. Receive-only consumers resolve blobs through this path.
type URIFetcher interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// OffloadCriteria decides whether a message body must be moved to the blob
// store before enqueueing.
type OffloadCriteria interface {
	ShouldOffload(body string, metadata map[string]string) bool
}

// OffloadCriteriaFunc adapts a plain function to OffloadCriteria.
type OffloadCriteriaFunc func(body string, metadata map[string]string) bool

func (f OffloadCriteriaFunc) ShouldOffload(body string, metadata map[string]string) bool {
	return f(body, metadata)
}

// BlobNameResolver produces the blob name for an offloaded payload.
type BlobNameResolver interface {
	Resolve(messageID string) string
}

// BlobNameResolverFunc adapts a plain function to BlobNameResolver.
type BlobNameResolverFunc func(messageID string) string

func (f BlobNameResolverFunc) Resolve(messageID string) string { return f(messageID) }

// BodyReplacer produces the queue body that stands in for an offloaded
// payload. The default serializes the pointer as JSON.
type BodyReplacer interface {
	Replace(originalBody string, pointer BlobPointer) string
}

// BodyReplacerFunc adapts a plain function to BodyReplacer.
type BodyReplacerFunc func(originalBody string, pointer BlobPointer) string

func (f BodyReplacerFunc) Replace(originalBody string, pointer BlobPointer) string {
	return f(originalBody, pointer)
}

// Observer receives client lifecycle events. Implementations should be
// non-blocking.
type Observer interface {
	OnEvent(e TraceEvent)
}

// API represents the complete xclaim client surface for extensibility.
type API interface {
	SendMessage(ctx context.Context, body string, metadata map[string]string, delay time.Duration) (string, error)
	SendMessages(ctx context.Context, bodies []string) ([]string, error)
	ReceiveMessages(ctx context.Context, max int, visibility time.Duration) ([]*ReceivedMessage, error)
	DeleteMessage(ctx context.Context, msg *ReceivedMessage) error
	DeletePayload(ctx context.Context, msg *ReceivedMessage) error
	DeletePayloadBatch(ctx context.Context, msgs []*ReceivedMessage) int
	PeekMessages(ctx context.Context, max int) ([]string, error)
	ApproximateMessageCount(ctx context.Context) (int, error)
	AddObserver(obs Observer)
	RemoveObserver(obs Observer)
}

var _ API = (*Client)(nil)
