package xclaim

import (
	"encoding/json"
	"fmt"
	"time"
)

// Internal metadata keys carried inside the wire envelope. They are set on
// offload and stripped before a message is handed back to the caller.
const (
	markerBlobPointer   = "xclaim.blob-pointer"
	markerOriginalSize  = "xclaim.original-size"
	markerCompressed    = "xclaim.compressed"
	markerCapabilityURI = "xclaim.capability-uri"
)

// BlobPointer is the claim-check reference placed on the queue in lieu of an
// oversized payload. Immutable value; equality and serialization are by value.
type BlobPointer struct {
	ContainerName string `json:"containerName"`
	BlobName      string `json:"blobName"`
}

// ToJSON serializes the pointer for the queue body.
func (p BlobPointer) ToJSON() (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("xclaim: marshal blob pointer: %w", err)
	}
	return string(b), nil
}

// PointerFromJSON parses a serialized pointer from a queue body.
func PointerFromJSON(s string) (BlobPointer, error) {
	var p BlobPointer
	if err := json.Unmarshal([]byte(s), &p); err != nil {
		return BlobPointer{}, fmt.Errorf("xclaim: unmarshal blob pointer: %w", err)
	}
	return p, nil
}

// Equal reports value equality.
func (p BlobPointer) Equal(o BlobPointer) bool {
	return p.ContainerName == o.ContainerName && p.BlobName == o.BlobName
}

func (p BlobPointer) String() string {
	return fmt.Sprintf("BlobPointer{container=%s, blob=%s}", p.ContainerName, p.BlobName)
}

// QueuedMessage is the raw transport view of a dequeued message, before any
// envelope parsing or blob resolution.
type QueuedMessage struct {
	ID           string
	Body         string
	DequeueCount int64
	Receipt      string
}

// ReceivedMessage is the reconstituted message returned by ReceiveMessages.
// Pointer is non-nil iff PayloadFromBlob. Receipt must be presented together
// with ID to delete the message.
type ReceivedMessage struct {
	ID              string
	Body            string
	Metadata        map[string]string
	PayloadFromBlob bool
	Pointer         *BlobPointer
	DequeueCount    int64
	Receipt         string
}

func (m *ReceivedMessage) String() string {
	return fmt.Sprintf("ReceivedMessage{id=%s, bodyLen=%d, fromBlob=%t, dequeueCount=%d}",
		m.ID, len(m.Body), m.PayloadFromBlob, m.DequeueCount)
}

// EventType enumerates client lifecycle events for the Observer pattern.
type EventType string

const (
	SendStart   EventType = "send_start"
	SendDone    EventType = "send_done"
	Offload     EventType = "offload"
	Rollback    EventType = "rollback"
	ReceiveDone EventType = "receive_done"
	Resolve     EventType = "resolve"
	DeadLetter  EventType = "dead_letter"
	DeleteDone  EventType = "delete_done"
	Error       EventType = "error"
)

// TraceEvent carries telemetry for observers.
type TraceEvent struct {
	Type      EventType
	Queue     string
	MessageID string
	BlobName  string
	Size      int
	Duration  time.Duration
	Err       error
}
