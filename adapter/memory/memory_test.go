package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trickstertwo/xclaim"
)

func TestQueue_EnqueueDequeueDelete(t *testing.T) {
	ctx := context.Background()
	q := NewQueue("test")

	id, err := q.Enqueue(ctx, "body-1", 0)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	msgs, err := q.Dequeue(ctx, 10, 30*time.Second)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, id, msgs[0].ID)
	assert.Equal(t, "body-1", msgs[0].Body)
	assert.EqualValues(t, 1, msgs[0].DequeueCount)
	assert.NotEmpty(t, msgs[0].Receipt)

	require.NoError(t, q.Delete(ctx, msgs[0].ID, msgs[0].Receipt))

	n, err := q.ApproximateCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestQueue_VisibilityTimeout(t *testing.T) {
	ctx := context.Background()
	q := NewQueue("test")

	_, err := q.Enqueue(ctx, "body", 0)
	require.NoError(t, err)

	msgs, err := q.Dequeue(ctx, 1, time.Nanosecond)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	// The visibility window has elapsed; the message comes back with a
	// bumped dequeue count and a fresh receipt.
	again, err := q.Dequeue(ctx, 1, 30*time.Second)
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.EqualValues(t, 2, again[0].DequeueCount)
	assert.NotEqual(t, msgs[0].Receipt, again[0].Receipt)

	// While invisible, further dequeues see nothing.
	none, err := q.Dequeue(ctx, 1, time.Second)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestQueue_StaleReceiptRejected(t *testing.T) {
	ctx := context.Background()
	q := NewQueue("test")

	_, err := q.Enqueue(ctx, "body", 0)
	require.NoError(t, err)

	msgs, err := q.Dequeue(ctx, 1, time.Nanosecond)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	_, err = q.Dequeue(ctx, 1, 30*time.Second)
	require.NoError(t, err)

	err = q.Delete(ctx, msgs[0].ID, msgs[0].Receipt)
	assert.Error(t, err)
}

func TestQueue_DelayedEnqueue(t *testing.T) {
	ctx := context.Background()
	q := NewQueue("test")

	_, err := q.Enqueue(ctx, "later", time.Hour)
	require.NoError(t, err)

	msgs, err := q.Dequeue(ctx, 1, time.Second)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	bodies, err := q.Peek(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, bodies)

	n, err := q.ApproximateCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestQueue_PeekDoesNotConsume(t *testing.T) {
	ctx := context.Background()
	q := NewQueue("test")

	_, err := q.Enqueue(ctx, "body", 0)
	require.NoError(t, err)

	bodies, err := q.Peek(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"body"}, bodies)

	msgs, err := q.Dequeue(ctx, 1, time.Second)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.EqualValues(t, 1, msgs[0].DequeueCount)
}

func TestBlob_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	b := NewBlob("test-container")

	require.NoError(t, b.Put(ctx, "obj", []byte("data"), map[string]string{"k": "v"}, "hot"))

	data, err := b.Get(ctx, "obj")
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), data)

	meta, err := b.Metadata(ctx, "obj")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"k": "v"}, meta)

	names, err := b.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"obj"}, names)

	require.NoError(t, b.Delete(ctx, "obj"))
	assert.ErrorIs(t, b.Delete(ctx, "obj"), xclaim.ErrBlobNotFound)

	_, err = b.Get(ctx, "obj")
	assert.ErrorIs(t, err, xclaim.ErrBlobNotFound)
}

func TestBlob_SignedURLFetch(t *testing.T) {
	ctx := context.Background()
	b := NewBlob("test-container")

	require.NoError(t, b.Put(ctx, "obj", []byte("payload"), nil, ""))

	uri, err := b.SignedURL(ctx, "obj", time.Hour)
	require.NoError(t, err)
	assert.Contains(t, uri, "mem://test-container/obj")

	data, err := b.Fetch(ctx, uri)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)
}

func TestBlob_SignedURLExpiry(t *testing.T) {
	ctx := context.Background()
	b := NewBlob("test-container")

	require.NoError(t, b.Put(ctx, "obj", []byte("payload"), nil, ""))

	uri, err := b.SignedURL(ctx, "obj", -time.Second)
	require.NoError(t, err)

	_, err = b.Fetch(ctx, uri)
	assert.ErrorContains(t, err, "expired")
}

func TestBlob_SignedURLMissingObject(t *testing.T) {
	_, err := NewBlob("test-container").SignedURL(context.Background(), "absent", time.Hour)
	assert.ErrorIs(t, err, xclaim.ErrBlobNotFound)
}

func TestRegistry_Factories(t *testing.T) {
	q, err := xclaim.NewQueueTransport(TransportName, map[string]any{"queue": "reg-q"})
	require.NoError(t, err)
	assert.Equal(t, "reg-q", q.Name())

	b, err := xclaim.NewBlobTransport(TransportName, map[string]any{"container": "reg-c"})
	require.NoError(t, err)
	assert.Equal(t, "reg-c", b.Container())
}
