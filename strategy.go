package xclaim

import (
	"crypto/rand"
	"encoding/hex"
)

// SizeThresholdCriteria is the default OffloadCriteria: offload when the
// body's byte length is strictly greater than the threshold, or always when
// forced. A body exactly at the threshold is not offloaded.
type SizeThresholdCriteria struct {
	Threshold         int
	AlwaysThroughBlob bool
}

func (c SizeThresholdCriteria) ShouldOffload(body string, _ map[string]string) bool {
	if c.AlwaysThroughBlob {
		return true
	}
	return len(body) > c.Threshold
}

// PrefixedRandomNameResolver is the default BlobNameResolver: a configured
// prefix followed by a random 128-bit hex name. The message id is ignored;
// names must be unique before the queue assigns an id.
type PrefixedRandomNameResolver struct {
	Prefix string
}

func (r PrefixedRandomNameResolver) Resolve(_ string) string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand never fails on supported platforms
		panic("xclaim: crypto/rand unavailable: " + err.Error())
	}
	return r.Prefix + hex.EncodeToString(b[:])
}

// PointerBodyReplacer is the default BodyReplacer: the queue body becomes
// the JSON-serialized pointer.
type PointerBodyReplacer struct{}

func (PointerBodyReplacer) Replace(_ string, pointer BlobPointer) string {
	s, err := pointer.ToJSON()
	if err != nil {
		// a two-string struct cannot fail to marshal
		panic("xclaim: marshal pointer: " + err.Error())
	}
	return s
}
