package xclaim

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// DedupFilter is a bounded, order-aware membership cache keyed by the
// SHA-256 hash of message content. Eviction is strict LRU: checking or
// inserting an entry refreshes its recency, and a previously seen item may
// be reported as new again once evicted. Single-process only; no
// cross-process coordination.
type DedupFilter struct {
	mu       sync.Mutex
	capacity int
	order    *list.List               // front = most recently touched
	entries  map[string]*list.Element // hash -> element holding the hash
}

// NewDedupFilter builds a filter bounded to capacity entries.
func NewDedupFilter(capacity int) *DedupFilter {
	if capacity < 1 {
		capacity = DefaultDedupCacheSize
	}
	return &DedupFilter{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element, capacity),
	}
}

// IsDuplicate hashes content, inserts the hash if absent, and reports
// whether it was already present. The check-and-insert is atomic.
func (f *DedupFilter) IsDuplicate(content string) bool {
	hash := contentHash(content)

	f.mu.Lock()
	defer f.mu.Unlock()

	if el, ok := f.entries[hash]; ok {
		f.order.MoveToFront(el)
		return true
	}
	f.insertLocked(hash)
	return false
}

// MarkSeen inserts content unconditionally without reporting membership.
func (f *DedupFilter) MarkSeen(content string) {
	hash := contentHash(content)

	f.mu.Lock()
	defer f.mu.Unlock()

	if el, ok := f.entries[hash]; ok {
		f.order.MoveToFront(el)
		return
	}
	f.insertLocked(hash)
}

// Clear empties the cache.
func (f *DedupFilter) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.order.Init()
	f.entries = make(map[string]*list.Element, f.capacity)
}

// Size reports the current entry count.
func (f *DedupFilter) Size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

func (f *DedupFilter) insertLocked(hash string) {
	f.entries[hash] = f.order.PushFront(hash)
	if len(f.entries) > f.capacity {
		oldest := f.order.Back()
		if oldest != nil {
			f.order.Remove(oldest)
			delete(f.entries, oldest.Value.(string))
		}
	}
}

func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
