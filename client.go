package xclaim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
)

// Client is the claim-check orchestrator. It composes the queue transport,
// payload store, retrier, deduplication filter and dead-letter queue to send
// and receive messages of any size through a size-limited queue: oversized
// bodies are offloaded to the blob store and replaced by a pointer, then
// transparently re-hydrated on receive.
//
// A Client is safe for concurrent use. It owns its retrier and dedup filter;
// the payload store and dead-letter queue are shared collaborators whose
// lifetime is managed by whoever built them.
type Client struct {
	queue   QueueTransport
	store   *PayloadStore // nil in receive-only deployments without credentials
	cfg     Config
	retrier *Retrier
	dedup   *DedupFilter     // nil unless deduplication is enabled
	dlq     *DeadLetterQueue // nil unless dead-lettering is enabled
	fetcher URIFetcher
	logger  *xlog.Logger
	clock   xclock.Clock

	// Strategies are hot-swappable; everything else is read-only after Build.
	strategyMu sync.RWMutex
	criteria   OffloadCriteria
	resolver   BlobNameResolver
	replacer   BodyReplacer

	observersMu sync.RWMutex
	observers   []Observer
}

// SendMessage sends body to the queue, offloading it to the blob store when
// the offload criteria demand it. metadata may be nil. A positive delay
// keeps the message invisible after enqueue.
//
// Returns the assigned message id, or "" when deduplication is enabled and
// the body is a known duplicate.
func (c *Client) SendMessage(ctx context.Context, body string, metadata map[string]string, delay time.Duration) (string, error) {
	if c.dedup != nil && c.dedup.IsDuplicate(body) {
		c.logger.Info().Msg("xclaim: duplicate message skipped")
		return "", nil
	}

	c.notify(TraceEvent{Type: SendStart, Queue: c.queue.Name(), Size: len(body)})
	start := c.clock.Now()

	id, err := c.sendOnce(ctx, body, metadata, delay)

	c.notify(TraceEvent{
		Type:      SendDone,
		Queue:     c.queue.Name(),
		MessageID: id,
		Size:      len(body),
		Duration:  c.clock.Since(start),
		Err:       err,
	})
	return id, err
}

func (c *Client) sendOnce(ctx context.Context, body string, metadata map[string]string, delay time.Duration) (string, error) {
	// Never mutate the caller's map; markers are internal.
	meta := make(map[string]string, len(metadata)+4)
	for k, v := range metadata {
		meta[k] = v
	}

	criteria, resolver, replacer := c.strategies()

	finalBody := body
	var pointer *BlobPointer

	if criteria.ShouldOffload(body, meta) {
		if c.store == nil {
			return "", ErrPayloadStoreRequired
		}

		blobName := resolver.Resolve("")

		payloadToStore := body
		if c.cfg.CompressionEnabled {
			compressed, err := CompressToText(body)
			if err != nil {
				// Degrade to the uncompressed payload rather than failing the send.
				c.logger.Warn().Err(err).Msg("xclaim: compression failed, storing uncompressed payload")
			} else {
				payloadToStore = compressed
				meta[markerCompressed] = "true"
				c.logger.Debug().Int("from", len(body)).Int("to", len(compressed)).Msg("xclaim: payload compressed")
			}
		}

		p, err := RetryValue(ctx, c.retrier, func() (BlobPointer, error) {
			return c.store.Store(ctx, blobName, payloadToStore)
		})
		if err != nil {
			return "", err
		}
		pointer = &p
		c.notify(TraceEvent{Type: Offload, Queue: c.queue.Name(), BlobName: blobName, Size: len(payloadToStore)})

		if c.cfg.SASEnabled {
			uri, err := c.store.GenerateCapabilityURI(ctx, p, c.cfg.SASValidity)
			if err != nil {
				return "", c.rollback(ctx, p, err)
			}
			meta[markerCapabilityURI] = uri
		}

		finalBody = replacer.Replace(body, p)
		meta[markerBlobPointer] = "true"
		meta[markerOriginalSize] = fmt.Sprintf("%d", len(body))
	}

	wire, err := encodeEnvelope(finalBody, meta)
	if err != nil {
		if pointer != nil {
			return "", c.rollback(ctx, *pointer, err)
		}
		return "", fmt.Errorf("xclaim: encode envelope: %w", err)
	}

	id, err := RetryValue(ctx, c.retrier, func() (string, error) {
		return c.queue.Enqueue(ctx, wire, delay)
	})
	if err != nil {
		if pointer != nil {
			return "", c.rollback(ctx, *pointer, err)
		}
		return "", err
	}

	c.logger.Debug().Str("message_id", id).Bool("offloaded", pointer != nil).Msg("xclaim: message sent")
	return id, nil
}

// rollback deletes the orphaned blob after a failed send and re-raises the
// original error. A failed rollback is logged only; the orphan is left for
// TTL-based reaping.
func (c *Client) rollback(ctx context.Context, pointer BlobPointer, cause error) error {
	c.logger.Warn().Str("blob", pointer.BlobName).Err(cause).Msg("xclaim: send failed after blob upload, rolling back orphaned blob")
	if err := c.store.Delete(ctx, pointer); err != nil {
		c.logger.Error().Str("blob", pointer.BlobName).Err(err).Msg("xclaim: rollback failed, manual cleanup required")
		c.notify(TraceEvent{Type: Rollback, Queue: c.queue.Name(), BlobName: pointer.BlobName, Err: err})
	} else {
		c.notify(TraceEvent{Type: Rollback, Queue: c.queue.Name(), BlobName: pointer.BlobName})
	}
	return cause
}

// SendMessages sends bodies sequentially, collecting assigned ids in order
// ("" marks a deduplicated skip). There is no atomicity across the batch;
// the first failure aborts and returns the ids collected so far.
func (c *Client) SendMessages(ctx context.Context, bodies []string) ([]string, error) {
	ids := make([]string, 0, len(bodies))
	for _, body := range bodies {
		id, err := c.SendMessage(ctx, body, nil, 0)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ReceiveMessages fetches up to max messages (1..32), dead-letters poison
// messages, resolves offloaded payloads and strips internal markers. A
// failure resolving one message is logged and the message omitted; it never
// aborts the batch.
func (c *Client) ReceiveMessages(ctx context.Context, max int, visibility time.Duration) ([]*ReceivedMessage, error) {
	if max < 1 || max > 32 {
		return nil, ErrInvalidBatchSize
	}

	raw, err := c.queue.Dequeue(ctx, max, visibility)
	if err != nil {
		return nil, fmt.Errorf("xclaim: dequeue: %w", err)
	}

	result := make([]*ReceivedMessage, 0, len(raw))
	for i := range raw {
		qm := raw[i]

		if c.dlq != nil && c.dlq.ShouldDeadLetter(qm.DequeueCount) {
			c.deadLetter(ctx, qm)
			continue
		}

		msg, err := c.resolveMessage(ctx, qm)
		if err != nil {
			c.logger.Error().Str("message_id", qm.ID).Err(err).Msg("xclaim: failed to process received message")
			c.notify(TraceEvent{Type: Error, Queue: c.queue.Name(), MessageID: qm.ID, Err: err})
			continue
		}
		result = append(result, msg)
	}

	c.notify(TraceEvent{Type: ReceiveDone, Queue: c.queue.Name(), Size: len(result)})
	return result, nil
}

// deadLetter moves a poison message to the dead-letter queue and deletes it
// from the primary queue once safely stored there.
func (c *Client) deadLetter(ctx context.Context, qm QueuedMessage) {
	reason := fmt.Sprintf("Max dequeue count exceeded (%d)", qm.DequeueCount)
	c.logger.Warn().Str("message_id", qm.ID).Int("dequeue_count", int(qm.DequeueCount)).Msg("xclaim: moving poison message to dead-letter queue")

	if _, err := c.dlq.SendToDeadLetter(ctx, qm.Body, reason); err != nil {
		// Leave the message on the primary queue; it will come around again.
		c.logger.Error().Str("message_id", qm.ID).Err(err).Msg("xclaim: dead-letter enqueue failed")
		return
	}
	if err := c.queue.Delete(ctx, qm.ID, qm.Receipt); err != nil {
		c.logger.Warn().Str("message_id", qm.ID).Err(err).Msg("xclaim: failed to delete dead-lettered message from primary queue")
	}
	c.notify(TraceEvent{Type: DeadLetter, Queue: c.queue.Name(), MessageID: qm.ID})
}

// resolveMessage parses the envelope and re-hydrates offloaded payloads.
func (c *Client) resolveMessage(ctx context.Context, qm QueuedMessage) (*ReceivedMessage, error) {
	env := decodeEnvelope(qm.Body)
	body := env.Body
	meta := env.Metadata

	fromBlob := false
	var pointer *BlobPointer

	if meta[markerBlobPointer] == "true" {
		fromBlob = true

		p, err := PointerFromJSON(body)
		if err != nil {
			return nil, err
		}
		pointer = &p

		payload, err := c.resolvePayload(ctx, p, meta)
		if err != nil {
			if c.cfg.IgnorePayloadNotFound {
				c.logger.Warn().Str("blob", p.BlobName).Err(err).Msg("xclaim: payload resolution failed, tolerated by configuration")
				payload = ""
			} else {
				return nil, err
			}
		}

		if payload != "" && meta[markerCompressed] == "true" {
			payload, err = DecompressFromText(payload)
			if err != nil {
				return nil, err
			}
		}
		body = payload
		c.notify(TraceEvent{Type: Resolve, Queue: c.queue.Name(), MessageID: qm.ID, BlobName: p.BlobName, Size: len(body)})

		delete(meta, markerBlobPointer)
		delete(meta, markerOriginalSize)
		delete(meta, markerCompressed)
		delete(meta, markerCapabilityURI)
	}

	return &ReceivedMessage{
		ID:              qm.ID,
		Body:            body,
		Metadata:        meta,
		PayloadFromBlob: fromBlob,
		Pointer:         pointer,
		DequeueCount:    qm.DequeueCount,
		Receipt:         qm.Receipt,
	}, nil
}

// resolvePayload downloads an offloaded payload. Credentialed retrieval
// through the store is the normal path; the capability URI carried in the
// message metadata is the fallback for receive-only or storeless consumers.
func (c *Client) resolvePayload(ctx context.Context, pointer BlobPointer, meta map[string]string) (string, error) {
	uri := meta[markerCapabilityURI]

	if uri != "" && (c.cfg.ReceiveOnlyMode || c.store == nil) {
		return RetryValue(ctx, c.retrier, func() (string, error) {
			return c.fetchViaURI(ctx, uri)
		})
	}
	if c.store != nil {
		return RetryValue(ctx, c.retrier, func() (string, error) {
			return c.store.Retrieve(ctx, pointer)
		})
	}
	return "", ErrNoResolutionPath
}

func (c *Client) fetchViaURI(ctx context.Context, uri string) (string, error) {
	data, err := c.fetcher.Fetch(ctx, uri)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DeleteMessage removes a consumed message from the queue. When configured,
// the backing blob is deleted best-effort afterwards; a blob cleanup failure
// never blocks the message-consumed outcome.
func (c *Client) DeleteMessage(ctx context.Context, msg *ReceivedMessage) error {
	if err := c.queue.Delete(ctx, msg.ID, msg.Receipt); err != nil {
		return fmt.Errorf("xclaim: delete message %q: %w", msg.ID, err)
	}

	if c.cfg.CleanupBlobOnDelete && msg.PayloadFromBlob && msg.Pointer != nil {
		if err := c.DeletePayload(ctx, msg); err != nil {
			c.logger.Warn().Str("blob", msg.Pointer.BlobName).Err(err).Msg("xclaim: blob cleanup failed, leaving object for TTL-based reaping")
		}
	}

	c.notify(TraceEvent{Type: DeleteDone, Queue: c.queue.Name(), MessageID: msg.ID})
	return nil
}

// DeletePayload deletes the blob behind a blob-backed message. A message
// with no blob payload is a no-op. The returned error is advisory; blob
// cleanup is best-effort by design.
func (c *Client) DeletePayload(ctx context.Context, msg *ReceivedMessage) error {
	if msg == nil || !msg.PayloadFromBlob || msg.Pointer == nil {
		return nil
	}
	if c.store == nil {
		c.logger.Warn().Msg("xclaim: cannot delete blob payload: payload store not available")
		return nil
	}
	pointer := *msg.Pointer
	return c.retrier.Do(ctx, func() error {
		return c.store.Delete(ctx, pointer)
	})
}

// DeletePayloadBatch deletes the blobs behind blob-backed messages and
// returns the number deleted. Failures are logged and skipped.
func (c *Client) DeletePayloadBatch(ctx context.Context, msgs []*ReceivedMessage) int {
	deleted := 0
	for _, msg := range msgs {
		if msg == nil || !msg.PayloadFromBlob || msg.Pointer == nil {
			continue
		}
		if err := c.DeletePayload(ctx, msg); err != nil {
			c.logger.Warn().Str("message_id", msg.ID).Err(err).Msg("xclaim: failed to delete blob payload")
			continue
		}
		deleted++
	}
	return deleted
}

// PeekMessages returns up to max raw bodies (1..32) without consuming or
// resolving them. Offloaded messages show their pointer envelope; this is an
// inspection view, not a delivery.
func (c *Client) PeekMessages(ctx context.Context, max int) ([]string, error) {
	if max < 1 || max > 32 {
		return nil, ErrInvalidBatchSize
	}
	bodies, err := c.queue.Peek(ctx, max)
	if err != nil {
		return nil, fmt.Errorf("xclaim: peek: %w", err)
	}
	return bodies, nil
}

// ApproximateMessageCount reports the approximate primary queue depth.
func (c *Client) ApproximateMessageCount(ctx context.Context) (int, error) {
	return c.queue.ApproximateCount(ctx)
}

// DeadLetter returns the dead-letter queue wrapper, or nil when disabled.
func (c *Client) DeadLetter() *DeadLetterQueue { return c.dlq }

// Dedup returns the deduplication filter, or nil when disabled.
func (c *Client) Dedup() *DedupFilter { return c.dedup }

// Store returns the payload store, or nil in store-less deployments.
func (c *Client) Store() *PayloadStore { return c.store }

// SetOffloadCriteria hot-swaps the offload decision strategy.
func (c *Client) SetOffloadCriteria(criteria OffloadCriteria) {
	if criteria == nil {
		return
	}
	c.strategyMu.Lock()
	c.criteria = criteria
	c.strategyMu.Unlock()
}

// SetBlobNameResolver hot-swaps the blob naming strategy.
func (c *Client) SetBlobNameResolver(resolver BlobNameResolver) {
	if resolver == nil {
		return
	}
	c.strategyMu.Lock()
	c.resolver = resolver
	c.strategyMu.Unlock()
}

// SetBodyReplacer hot-swaps the body replacement strategy.
func (c *Client) SetBodyReplacer(replacer BodyReplacer) {
	if replacer == nil {
		return
	}
	c.strategyMu.Lock()
	c.replacer = replacer
	c.strategyMu.Unlock()
}

func (c *Client) strategies() (OffloadCriteria, BlobNameResolver, BodyReplacer) {
	c.strategyMu.RLock()
	defer c.strategyMu.RUnlock()
	return c.criteria, c.resolver, c.replacer
}

// AddObserver registers an observer (thread-safe).
func (c *Client) AddObserver(obs Observer) {
	if obs == nil {
		return
	}
	c.observersMu.Lock()
	c.observers = append(c.observers, obs)
	c.observersMu.Unlock()
}

// RemoveObserver removes an observer.
func (c *Client) RemoveObserver(obs Observer) {
	if obs == nil {
		return
	}
	c.observersMu.Lock()
	defer c.observersMu.Unlock()
	for i, o := range c.observers {
		if o == obs {
			c.observers = append(c.observers[:i], c.observers[i+1:]...)
			break
		}
	}
}

func (c *Client) notify(e TraceEvent) {
	c.observersMu.RLock()
	obs := make([]Observer, len(c.observers))
	copy(obs, c.observers)
	c.observersMu.RUnlock()
	for _, o := range obs {
		o.OnEvent(e)
	}
}
