package xclaim_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trickstertwo/xclaim"
	"github.com/trickstertwo/xclaim/adapter/memory"
)

// fastConfig returns test tuning: a tiny offload threshold and millisecond
// retries so failure paths finish quickly.
func fastConfig() xclaim.Config {
	cfg := xclaim.Defaults()
	cfg.MessageSizeThreshold = 100
	cfg.RetryMaxAttempts = 2
	cfg.RetryBackoff = time.Millisecond
	cfg.RetryMaxBackoff = 2 * time.Millisecond
	cfg.TracingEnabled = false
	return cfg
}

func newTestClient(t *testing.T, cfg xclaim.Config) (*xclaim.Client, *memory.Queue, *memory.Blob) {
	t.Helper()
	queue := memory.NewQueue("orders")
	blob := memory.NewBlob("order-payloads")

	client, err := xclaim.New(func(cb *xclaim.ClientBuilder) {
		cb.WithQueueInstance(queue).
			WithBlobInstance(blob).
			WithConfig(cfg)
		if cfg.DeadLetterEnabled {
			cb.WithDeadLetterQueueInstance(memory.NewQueue("orders-dlq"))
		}
	})
	require.NoError(t, err)
	return client, queue, blob
}

func TestClient_SmallMessageRoundTrip(t *testing.T) {
	ctx := context.Background()
	client, _, blob := newTestClient(t, fastConfig())

	id, err := client.SendMessage(ctx, "small body", map[string]string{"source": "test"}, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	// Nothing should be offloaded.
	names, err := blob.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)

	msgs, err := client.ReceiveMessages(ctx, 10, 30*time.Second)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	m := msgs[0]
	assert.Equal(t, "small body", m.Body)
	assert.Equal(t, "test", m.Metadata["source"])
	assert.False(t, m.PayloadFromBlob)
	assert.Nil(t, m.Pointer)

	require.NoError(t, client.DeleteMessage(ctx, m))
	depth, err := client.ApproximateMessageCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, depth)
}

func TestClient_LargeMessageOffloadRoundTrip(t *testing.T) {
	ctx := context.Background()
	client, _, blob := newTestClient(t, fastConfig())

	large := strings.Repeat("a", 101)
	id, err := client.SendMessage(ctx, large, map[string]string{"source": "test"}, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	names, err := blob.List(ctx)
	require.NoError(t, err)
	require.Len(t, names, 1)

	msgs, err := client.ReceiveMessages(ctx, 10, 30*time.Second)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	m := msgs[0]
	assert.Equal(t, large, m.Body)
	assert.True(t, m.PayloadFromBlob)
	require.NotNil(t, m.Pointer)
	assert.Equal(t, names[0], m.Pointer.BlobName)

	// Internal markers never reach the caller; user metadata survives.
	assert.Equal(t, map[string]string{"source": "test"}, m.Metadata)

	// Delete consumes the message and cleans the blob.
	require.NoError(t, client.DeleteMessage(ctx, m))
	names, err = blob.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestClient_ThresholdBoundaryStaysInline(t *testing.T) {
	ctx := context.Background()
	client, _, blob := newTestClient(t, fastConfig())

	_, err := client.SendMessage(ctx, strings.Repeat("a", 100), nil, 0)
	require.NoError(t, err)

	names, err := blob.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestClient_CompressionRoundTrip(t *testing.T) {
	ctx := context.Background()
	cfg := fastConfig()
	cfg.CompressionEnabled = true
	client, _, blob := newTestClient(t, cfg)

	large := strings.Repeat("compress me please ", 1_000)
	_, err := client.SendMessage(ctx, large, nil, 0)
	require.NoError(t, err)

	// The stored object is the compressed form.
	names, err := blob.List(ctx)
	require.NoError(t, err)
	require.Len(t, names, 1)
	stored, err := blob.Get(ctx, names[0])
	require.NoError(t, err)
	assert.Less(t, len(stored), len(large))

	msgs, err := client.ReceiveMessages(ctx, 1, 30*time.Second)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, large, msgs[0].Body)
}

func TestClient_Deduplication(t *testing.T) {
	ctx := context.Background()
	cfg := fastConfig()
	cfg.DeduplicationEnabled = true
	cfg.DeduplicationCacheSize = 100
	client, _, _ := newTestClient(t, cfg)

	first, err := client.SendMessage(ctx, "Hello", nil, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, first)

	second, err := client.SendMessage(ctx, "Hello", nil, 0)
	require.NoError(t, err)
	assert.Empty(t, second)

	assert.Equal(t, 1, client.Dedup().Size())

	depth, err := client.ApproximateMessageCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, depth)
}

// failingQueue fails every enqueue to exercise blob rollback.
type failingQueue struct {
	*memory.Queue
}

func (q *failingQueue) Enqueue(context.Context, string, time.Duration) (string, error) {
	return "", errors.New("queue unavailable")
}

func TestClient_RollbackOnEnqueueFailure(t *testing.T) {
	ctx := context.Background()
	blob := memory.NewBlob("order-payloads")

	cfg := fastConfig()
	cfg.RetryMaxAttempts = 1
	client, err := xclaim.New(func(cb *xclaim.ClientBuilder) {
		cb.WithQueueInstance(&failingQueue{Queue: memory.NewQueue("orders")}).
			WithBlobInstance(blob).
			WithConfig(cfg)
	})
	require.NoError(t, err)

	_, err = client.SendMessage(ctx, strings.Repeat("a", 200), nil, 0)
	require.Error(t, err)

	// No orphaned blob survives the failed send.
	names, err := blob.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestClient_OffloadWithoutStoreFails(t *testing.T) {
	ctx := context.Background()
	client, err := xclaim.New(func(cb *xclaim.ClientBuilder) {
		cb.WithQueueInstance(memory.NewQueue("orders")).
			WithConfig(fastConfig())
	})
	require.NoError(t, err)

	// Small messages still work without a store.
	_, err = client.SendMessage(ctx, "small", nil, 0)
	require.NoError(t, err)

	_, err = client.SendMessage(ctx, strings.Repeat("a", 200), nil, 0)
	assert.ErrorIs(t, err, xclaim.ErrPayloadStoreRequired)
}

func TestClient_DeadLetterRouting(t *testing.T) {
	ctx := context.Background()
	cfg := fastConfig()
	cfg.DeadLetterEnabled = true
	cfg.DeadLetterMaxDequeueCount = 2
	client, _, _ := newTestClient(t, cfg)

	_, err := client.SendMessage(ctx, "poison", nil, 0)
	require.NoError(t, err)

	// First delivery is normal.
	msgs, err := client.ReceiveMessages(ctx, 1, time.Nanosecond)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.EqualValues(t, 1, msgs[0].DequeueCount)

	// Second delivery crosses the threshold: routed to the DLQ, not returned.
	msgs, err = client.ReceiveMessages(ctx, 1, time.Nanosecond)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	assert.Equal(t, 1, client.DeadLetter().ApproximateDepth(ctx))
	depth, err := client.ApproximateMessageCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, depth)
}

func TestClient_IgnorePayloadNotFound(t *testing.T) {
	ctx := context.Background()
	cfg := fastConfig()
	cfg.IgnorePayloadNotFound = true
	client, _, blob := newTestClient(t, cfg)

	_, err := client.SendMessage(ctx, strings.Repeat("a", 200), nil, 0)
	require.NoError(t, err)

	// Simulate an out-of-band blob loss.
	names, err := blob.List(ctx)
	require.NoError(t, err)
	require.Len(t, names, 1)
	require.NoError(t, blob.Delete(ctx, names[0]))

	msgs, err := client.ReceiveMessages(ctx, 1, 30*time.Second)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "", msgs[0].Body)
	assert.True(t, msgs[0].PayloadFromBlob)
}

func TestClient_MissingPayloadOmitsMessage(t *testing.T) {
	ctx := context.Background()
	client, _, blob := newTestClient(t, fastConfig())

	_, err := client.SendMessage(ctx, strings.Repeat("a", 200), nil, 0)
	require.NoError(t, err)
	_, err = client.SendMessage(ctx, "healthy", nil, 0)
	require.NoError(t, err)

	names, err := blob.List(ctx)
	require.NoError(t, err)
	require.Len(t, names, 1)
	require.NoError(t, blob.Delete(ctx, names[0]))

	// The broken message is omitted; the healthy one still arrives.
	msgs, err := client.ReceiveMessages(ctx, 10, 30*time.Second)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "healthy", msgs[0].Body)
}

func TestClient_PeekShowsUnresolvedPointer(t *testing.T) {
	ctx := context.Background()
	client, _, _ := newTestClient(t, fastConfig())

	_, err := client.SendMessage(ctx, strings.Repeat("a", 200), nil, 0)
	require.NoError(t, err)

	bodies, err := client.PeekMessages(ctx, 1)
	require.NoError(t, err)
	require.Len(t, bodies, 1)
	assert.Contains(t, bodies[0], "containerName")
	assert.NotContains(t, bodies[0], strings.Repeat("a", 200))
}

func TestClient_BatchSizeValidation(t *testing.T) {
	ctx := context.Background()
	client, _, _ := newTestClient(t, fastConfig())

	_, err := client.ReceiveMessages(ctx, 0, time.Second)
	assert.ErrorIs(t, err, xclaim.ErrInvalidBatchSize)
	_, err = client.ReceiveMessages(ctx, 33, time.Second)
	assert.ErrorIs(t, err, xclaim.ErrInvalidBatchSize)
	_, err = client.PeekMessages(ctx, 0)
	assert.ErrorIs(t, err, xclaim.ErrInvalidBatchSize)
	_, err = client.PeekMessages(ctx, 33)
	assert.ErrorIs(t, err, xclaim.ErrInvalidBatchSize)
}

func TestClient_SendMessagesBatch(t *testing.T) {
	ctx := context.Background()
	client, _, _ := newTestClient(t, fastConfig())

	ids, err := client.SendMessages(ctx, []string{"one", "two", strings.Repeat("a", 150)})
	require.NoError(t, err)
	require.Len(t, ids, 3)
	for _, id := range ids {
		assert.NotEmpty(t, id)
	}

	msgs, err := client.ReceiveMessages(ctx, 10, 30*time.Second)
	require.NoError(t, err)
	assert.Len(t, msgs, 3)
}

func TestClient_DeletePayloadBatch(t *testing.T) {
	ctx := context.Background()
	cfg := fastConfig()
	cfg.CleanupBlobOnDelete = false
	client, _, blob := newTestClient(t, cfg)

	_, err := client.SendMessage(ctx, strings.Repeat("a", 150), nil, 0)
	require.NoError(t, err)
	_, err = client.SendMessage(ctx, strings.Repeat("b", 150), nil, 0)
	require.NoError(t, err)
	_, err = client.SendMessage(ctx, "inline", nil, 0)
	require.NoError(t, err)

	msgs, err := client.ReceiveMessages(ctx, 10, 30*time.Second)
	require.NoError(t, err)
	require.Len(t, msgs, 3)

	// Only the two blob-backed messages count.
	deleted := client.DeletePayloadBatch(ctx, msgs)
	assert.Equal(t, 2, deleted)

	names, err := blob.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestClient_CapabilityURIReceiveOnly(t *testing.T) {
	ctx := context.Background()
	queue := memory.NewQueue("orders")
	blob := memory.NewBlob("order-payloads")

	sendCfg := fastConfig()
	sendCfg.SASEnabled = true
	sendCfg.SASValidity = time.Hour
	sender, err := xclaim.New(func(cb *xclaim.ClientBuilder) {
		cb.WithQueueInstance(queue).
			WithBlobInstance(blob).
			WithConfig(sendCfg)
	})
	require.NoError(t, err)

	// The consumer has no blob credentials at all; resolution rides the
	// capability URI carried in the message metadata.
	recvCfg := fastConfig()
	recvCfg.ReceiveOnlyMode = true
	consumer, err := xclaim.New(func(cb *xclaim.ClientBuilder) {
		cb.WithQueueInstance(queue).
			WithConfig(recvCfg).
			WithFetcher(blob)
	})
	require.NoError(t, err)

	large := strings.Repeat("a", 200)
	_, err = sender.SendMessage(ctx, large, nil, 0)
	require.NoError(t, err)

	msgs, err := consumer.ReceiveMessages(ctx, 1, 30*time.Second)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, large, msgs[0].Body)
	assert.True(t, msgs[0].PayloadFromBlob)
}

func TestClient_DelayedMessageInvisible(t *testing.T) {
	ctx := context.Background()
	client, _, _ := newTestClient(t, fastConfig())

	_, err := client.SendMessage(ctx, "later", nil, time.Hour)
	require.NoError(t, err)

	msgs, err := client.ReceiveMessages(ctx, 1, time.Second)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

// recordingObserver collects event types; a pointer type so it can be
// removed again (observer removal is by identity).
type recordingObserver struct {
	events []xclaim.EventType
}

func (o *recordingObserver) OnEvent(e xclaim.TraceEvent) {
	o.events = append(o.events, e.Type)
}

func TestClient_ObserverNotifications(t *testing.T) {
	ctx := context.Background()
	client, _, _ := newTestClient(t, fastConfig())

	obs := &recordingObserver{}
	client.AddObserver(obs)

	_, err := client.SendMessage(ctx, strings.Repeat("a", 200), nil, 0)
	require.NoError(t, err)

	assert.Contains(t, obs.events, xclaim.SendStart)
	assert.Contains(t, obs.events, xclaim.Offload)
	assert.Contains(t, obs.events, xclaim.SendDone)

	client.RemoveObserver(obs)
	seen := len(obs.events)
	_, err = client.SendMessage(ctx, "small", nil, 0)
	require.NoError(t, err)
	assert.Len(t, obs.events, seen)
}

func TestClient_HotSwapStrategies(t *testing.T) {
	ctx := context.Background()
	client, _, blob := newTestClient(t, fastConfig())

	client.SetOffloadCriteria(xclaim.OffloadCriteriaFunc(func(string, map[string]string) bool {
		return true
	}))
	client.SetBlobNameResolver(xclaim.BlobNameResolverFunc(func(string) string {
		return "fixed-name"
	}))

	_, err := client.SendMessage(ctx, "tiny", nil, 0)
	require.NoError(t, err)

	names, err := blob.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"fixed-name"}, names)
}
