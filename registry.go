package xclaim

import (
	"errors"
	"sync"
)

// QueueTransportFactory constructs queue transports from a config blob.
type QueueTransportFactory func(cfg map[string]any) (QueueTransport, error)

// BlobTransportFactory constructs blob transports from a config blob.
type BlobTransportFactory func(cfg map[string]any) (BlobTransport, error)

var (
	queueRegistryMu sync.RWMutex
	queueRegistry   = map[string]QueueTransportFactory{}

	blobRegistryMu sync.RWMutex
	blobRegistry   = map[string]BlobTransportFactory{}
)

// RegisterQueueTransport registers a queue backend adapter.
func RegisterQueueTransport(name string, factory QueueTransportFactory) error {
	if name == "" {
		return errors.New("xclaim: queue transport name must not be empty")
	}
	if factory == nil {
		return errors.New("xclaim: queue transport factory must not be nil")
	}
	queueRegistryMu.Lock()
	queueRegistry[name] = factory
	queueRegistryMu.Unlock()
	return nil
}

// NewQueueTransport constructs a queue transport by name with config.
func NewQueueTransport(name string, cfg map[string]any) (QueueTransport, error) {
	queueRegistryMu.RLock()
	f, ok := queueRegistry[name]
	queueRegistryMu.RUnlock()
	if !ok {
		return nil, ErrUnknownQueueTransport{name: name}
	}
	return f(cfg)
}

// RegisterBlobTransport registers a blob backend adapter.
func RegisterBlobTransport(name string, factory BlobTransportFactory) error {
	if name == "" {
		return errors.New("xclaim: blob transport name must not be empty")
	}
	if factory == nil {
		return errors.New("xclaim: blob transport factory must not be nil")
	}
	blobRegistryMu.Lock()
	blobRegistry[name] = factory
	blobRegistryMu.Unlock()
	return nil
}

// NewBlobTransport constructs a blob transport by name with config.
func NewBlobTransport(name string, cfg map[string]any) (BlobTransport, error) {
	blobRegistryMu.RLock()
	f, ok := blobRegistry[name]
	blobRegistryMu.RUnlock()
	if !ok {
		return nil, ErrUnknownBlobTransport{name: name}
	}
	return f(cfg)
}
