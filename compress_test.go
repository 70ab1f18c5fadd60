package xclaim

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompress_RoundTrip(t *testing.T) {
	original := "The quick brown fox jumps over the lazy dog. é世界"

	encoded, err := CompressToText(original)
	require.NoError(t, err)
	assert.NotEqual(t, original, encoded)

	decoded, err := DecompressFromText(encoded)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestCompress_EmptyPayload(t *testing.T) {
	encoded, err := CompressToText("")
	require.NoError(t, err)

	decoded, err := DecompressFromText(encoded)
	require.NoError(t, err)
	assert.Equal(t, "", decoded)
}

func TestCompress_RepetitivePayloadShrinks(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 10_000; i++ {
		sb.WriteString("this line repeats and compresses well\n")
	}
	original := sb.String()

	encoded, err := CompressToText(original)
	require.NoError(t, err)
	// Even with base64 overhead the ratio should be dramatic.
	assert.Less(t, len(encoded), len(original)/10)

	decoded, err := DecompressFromText(encoded)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestDecompress_MalformedInput(t *testing.T) {
	_, err := DecompressFromText("not base64 at all!!!")
	require.Error(t, err)
	var codecErr *CodecError
	assert.ErrorAs(t, err, &codecErr)

	// Valid base64, invalid gzip.
	_, err = DecompressFromText("aGVsbG8gd29ybGQ=")
	require.Error(t, err)
	assert.ErrorAs(t, err, &codecErr)
}
