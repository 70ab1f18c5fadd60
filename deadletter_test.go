package xclaim_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trickstertwo/xclaim"
	"github.com/trickstertwo/xclaim/adapter/memory"
)

func TestDeadLetterQueue_ShouldDeadLetter(t *testing.T) {
	dlq, err := xclaim.NewDeadLetterQueue(context.Background(), memory.NewQueue("q-dlq"), 3, nil, nil)
	require.NoError(t, err)

	assert.False(t, dlq.ShouldDeadLetter(1))
	assert.False(t, dlq.ShouldDeadLetter(2))
	assert.True(t, dlq.ShouldDeadLetter(3))
	assert.True(t, dlq.ShouldDeadLetter(4))
}

func TestDeadLetterQueue_SendToDeadLetter(t *testing.T) {
	ctx := context.Background()
	queue := memory.NewQueue("q-dlq")
	dlq, err := xclaim.NewDeadLetterQueue(ctx, queue, 3, nil, nil)
	require.NoError(t, err)

	id, err := dlq.SendToDeadLetter(ctx, "poison body", "Max dequeue count exceeded (3)")
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, 1, dlq.ApproximateDepth(ctx))

	bodies, err := queue.Peek(ctx, 1)
	require.NoError(t, err)
	require.Len(t, bodies, 1)

	var env xclaim.DeadLetterEnvelope
	require.NoError(t, json.Unmarshal([]byte(bodies[0]), &env))
	assert.Equal(t, "poison body", env.OriginalBody)
	assert.Equal(t, "Max dequeue count exceeded (3)", env.DeadLetterReason)

	at, err := time.Parse(time.RFC3339, env.DeadLetteredAt)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC(), at, time.Minute)
}

func TestDeadLetterQueue_DefaultsBelowOne(t *testing.T) {
	dlq, err := xclaim.NewDeadLetterQueue(context.Background(), memory.NewQueue("q-dlq"), 0, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, xclaim.DefaultMaxDequeueCount, dlq.MaxDequeueCount())
}
