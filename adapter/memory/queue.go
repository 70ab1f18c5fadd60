package memory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/trickstertwo/xclaim"
	"github.com/trickstertwo/xclock"
)

// Queue is an in-memory queue transport with visibility timeouts, dequeue
// counting and rotating receipts. It mirrors the semantics of hosted queues
// closely enough to exercise the full claim-check lifecycle in tests and
// examples without any external service.
type Queue struct {
	name  string
	clock xclock.Clock

	mu   sync.Mutex
	seq  int64
	msgs []*queuedEntry
}

type queuedEntry struct {
	id         string
	body       string
	visibleAt  time.Time
	deliveries int64
	receipt    string
}

// NewQueue constructs an in-memory queue.
func NewQueue(name string) *Queue {
	return &Queue{name: name, clock: xclock.Default()}
}

// WithClock overrides the clock (used by tests to control visibility).
func (q *Queue) WithClock(c xclock.Clock) *Queue {
	if c != nil {
		q.clock = c
	}
	return q
}

func (q *Queue) Create(_ context.Context) error { return nil }

func (q *Queue) Name() string { return q.name }

func (q *Queue) Enqueue(_ context.Context, body string, delay time.Duration) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seq++
	e := &queuedEntry{
		id:        fmt.Sprintf("%s-%d", q.name, q.seq),
		body:      body,
		visibleAt: q.clock.Now().Add(delay),
	}
	q.msgs = append(q.msgs, e)
	return e.id, nil
}

func (q *Queue) Dequeue(_ context.Context, max int, visibility time.Duration) ([]xclaim.QueuedMessage, error) {
	if visibility <= 0 {
		visibility = 30 * time.Second
	}
	now := q.clock.Now()

	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]xclaim.QueuedMessage, 0, max)
	for _, e := range q.msgs {
		if len(out) == max {
			break
		}
		if e.visibleAt.After(now) {
			continue
		}
		e.deliveries++
		e.visibleAt = now.Add(visibility)
		e.receipt = newReceipt()
		out = append(out, xclaim.QueuedMessage{
			ID:           e.id,
			Body:         e.body,
			DequeueCount: e.deliveries,
			Receipt:      e.receipt,
		})
	}
	return out, nil
}

func (q *Queue) Peek(_ context.Context, max int) ([]string, error) {
	now := q.clock.Now()

	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]string, 0, max)
	for _, e := range q.msgs {
		if len(out) == max {
			break
		}
		if e.visibleAt.After(now) {
			continue
		}
		out = append(out, e.body)
	}
	return out, nil
}

func (q *Queue) Delete(_ context.Context, id, receipt string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, e := range q.msgs {
		if e.id != id {
			continue
		}
		if e.receipt == "" || e.receipt != receipt {
			return fmt.Errorf("memory: stale receipt for message %q", id)
		}
		q.msgs = append(q.msgs[:i], q.msgs[i+1:]...)
		return nil
	}
	return fmt.Errorf("memory: message %q not found", id)
}

func (q *Queue) ApproximateCount(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.msgs), nil
}

func newReceipt() string {
	var b [12]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
