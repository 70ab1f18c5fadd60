package xclaim

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
)

// DeadLetterEnvelope is the wire format of a dead-lettered message.
type DeadLetterEnvelope struct {
	OriginalBody     string `json:"originalBody"`
	DeadLetterReason string `json:"deadLetterReason"`
	DeadLetteredAt   string `json:"deadLetteredAt"`
}

// DeadLetterQueue routes poison messages to a secondary queue. A message is
// poison once its dequeue count reaches the configured maximum.
type DeadLetterQueue struct {
	queue           QueueTransport
	maxDequeueCount int
	logger          *xlog.Logger
	clock           xclock.Clock
}

// NewDeadLetterQueue wraps a secondary queue transport. The queue is ensured
// at construction (idempotent create).
func NewDeadLetterQueue(ctx context.Context, queue QueueTransport, maxDequeueCount int, logger *xlog.Logger, clock xclock.Clock) (*DeadLetterQueue, error) {
	if queue == nil {
		return nil, &ConfigError{Field: "DeadLetterQueue", Reason: "must not be nil"}
	}
	if maxDequeueCount < 1 {
		maxDequeueCount = DefaultMaxDequeueCount
	}
	if logger == nil {
		logger = xlog.Default()
	}
	if clock == nil {
		clock = xclock.Default()
	}
	if err := queue.Create(ctx); err != nil {
		return nil, fmt.Errorf("xclaim: ensure dead-letter queue %q: %w", queue.Name(), err)
	}
	return &DeadLetterQueue{
		queue:           queue,
		maxDequeueCount: maxDequeueCount,
		logger:          logger,
		clock:           clock,
	}, nil
}

// ShouldDeadLetter reports whether a message with the given dequeue count is
// past the poison threshold.
func (d *DeadLetterQueue) ShouldDeadLetter(dequeueCount int64) bool {
	return dequeueCount >= int64(d.maxDequeueCount)
}

// SendToDeadLetter wraps body and reason in the dead-letter envelope and
// enqueues it. Returns the dead-letter message id.
func (d *DeadLetterQueue) SendToDeadLetter(ctx context.Context, body, reason string) (string, error) {
	envelope, err := json.Marshal(DeadLetterEnvelope{
		OriginalBody:     body,
		DeadLetterReason: reason,
		DeadLetteredAt:   d.clock.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return "", fmt.Errorf("xclaim: marshal dead-letter envelope: %w", err)
	}
	id, err := d.queue.Enqueue(ctx, string(envelope), 0)
	if err != nil {
		return "", fmt.Errorf("xclaim: enqueue dead-letter message: %w", err)
	}
	d.logger.Info().
		Str("queue", d.queue.Name()).
		Str("dlq_message_id", id).
		Str("reason", reason).
		Msg("xclaim: message dead-lettered")
	return id, nil
}

// ApproximateDepth reports the dead-letter backlog. Returns -1 on failure
// instead of an error; this is an observability call and must not break the
// caller.
func (d *DeadLetterQueue) ApproximateDepth(ctx context.Context) int {
	n, err := d.queue.ApproximateCount(ctx)
	if err != nil {
		d.logger.Warn().Err(err).Msg("xclaim: dead-letter depth unavailable")
		return -1
	}
	return n
}

// MaxDequeueCount returns the poison threshold.
func (d *DeadLetterQueue) MaxDequeueCount() int { return d.maxDequeueCount }

// Queue exposes the underlying transport, mainly for inspection in tests
// and tooling.
func (d *DeadLetterQueue) Queue() QueueTransport { return d.queue }
