package xclaim

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSizeThresholdCriteria_StrictlyGreater(t *testing.T) {
	c := SizeThresholdCriteria{Threshold: 100}

	assert.False(t, c.ShouldOffload(strings.Repeat("a", 100), nil))
	assert.True(t, c.ShouldOffload(strings.Repeat("a", 101), nil))
	assert.False(t, c.ShouldOffload("", nil))
}

func TestSizeThresholdCriteria_AlwaysThroughBlob(t *testing.T) {
	c := SizeThresholdCriteria{Threshold: 100, AlwaysThroughBlob: true}

	assert.True(t, c.ShouldOffload("x", nil))
	assert.True(t, c.ShouldOffload("", nil))
}

func TestPrefixedRandomNameResolver(t *testing.T) {
	r := PrefixedRandomNameResolver{Prefix: "payloads/"}

	a := r.Resolve("")
	b := r.Resolve("")
	assert.True(t, strings.HasPrefix(a, "payloads/"))
	assert.NotEqual(t, a, b)
	assert.Len(t, a, len("payloads/")+32)
}

func TestPointerBodyReplacer(t *testing.T) {
	body := PointerBodyReplacer{}.Replace("original", BlobPointer{
		ContainerName: "c",
		BlobName:      "b",
	})

	p, err := PointerFromJSON(body)
	require.NoError(t, err)
	assert.Equal(t, "c", p.ContainerName)
	assert.Equal(t, "b", p.BlobName)
}
