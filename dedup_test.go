package xclaim

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupFilter_FirstAndRepeat(t *testing.T) {
	f := NewDedupFilter(100)

	assert.False(t, f.IsDuplicate("Hello"))
	assert.True(t, f.IsDuplicate("Hello"))
	assert.False(t, f.IsDuplicate("World"))
	assert.Equal(t, 2, f.Size())
}

func TestDedupFilter_LRUEviction(t *testing.T) {
	f := NewDedupFilter(3)

	for i := 0; i < 3; i++ {
		assert.False(t, f.IsDuplicate(fmt.Sprintf("msg-%d", i)))
	}
	// Touch msg-0 so msg-1 becomes the eviction candidate.
	assert.True(t, f.IsDuplicate("msg-0"))

	// Inserting a fourth entry evicts msg-1.
	assert.False(t, f.IsDuplicate("msg-3"))
	assert.Equal(t, 3, f.Size())

	assert.True(t, f.IsDuplicate("msg-0"))
	assert.False(t, f.IsDuplicate("msg-1"))
}

func TestDedupFilter_MarkSeen(t *testing.T) {
	f := NewDedupFilter(10)

	f.MarkSeen("payload")
	assert.True(t, f.IsDuplicate("payload"))
	assert.Equal(t, 1, f.Size())
}

func TestDedupFilter_Clear(t *testing.T) {
	f := NewDedupFilter(10)

	f.MarkSeen("a")
	f.MarkSeen("b")
	assert.Equal(t, 2, f.Size())

	f.Clear()
	assert.Equal(t, 0, f.Size())
	assert.False(t, f.IsDuplicate("a"))
}
