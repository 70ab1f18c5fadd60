package xclaim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelope_RoundTrip(t *testing.T) {
	wire, err := encodeEnvelope("hello", map[string]string{"k": "v"})
	require.NoError(t, err)

	env := decodeEnvelope(wire)
	assert.Equal(t, "hello", env.Body)
	assert.Equal(t, map[string]string{"k": "v"}, env.Metadata)
}

func TestEnvelope_NilMetadata(t *testing.T) {
	wire, err := encodeEnvelope("hello", nil)
	require.NoError(t, err)

	env := decodeEnvelope(wire)
	assert.Equal(t, "hello", env.Body)
	assert.NotNil(t, env.Metadata)
	assert.Empty(t, env.Metadata)
}

func TestDecodeEnvelope_GracefulDegradation(t *testing.T) {
	// Plain text from a producer that predates the envelope.
	env := decodeEnvelope("just a raw body")
	assert.Equal(t, "just a raw body", env.Body)
	assert.Empty(t, env.Metadata)

	// Valid JSON that is not an envelope.
	env = decodeEnvelope(`{"foo": "bar"}`)
	assert.Equal(t, `{"foo": "bar"}`, env.Body)

	// JSON scalar.
	env = decodeEnvelope(`"quoted"`)
	assert.Equal(t, `"quoted"`, env.Body)
}
