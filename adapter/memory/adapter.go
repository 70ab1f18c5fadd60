package memory

import (
	"fmt"

	"github.com/trickstertwo/xclaim"
)

// Adapter: in-memory transports (Strategy + Adapter patterns)

const TransportName = "memory"

func init() {
	if err := xclaim.RegisterQueueTransport(TransportName, func(cfg map[string]any) (xclaim.QueueTransport, error) {
		c := ConfigFromMap(cfg)
		if err := c.Validate(); err != nil {
			return nil, err
		}
		return NewQueue(c.Queue), nil
	}); err != nil {
		panic(fmt.Errorf("xclaim: failed to register queue transport %q: %w", TransportName, err))
	}
	if err := xclaim.RegisterBlobTransport(TransportName, func(cfg map[string]any) (xclaim.BlobTransport, error) {
		c := ConfigFromMap(cfg)
		if err := c.Validate(); err != nil {
			return nil, err
		}
		return NewBlob(c.Container), nil
	}); err != nil {
		panic(fmt.Errorf("xclaim: failed to register blob transport %q: %w", TransportName, err))
	}
}

// Use builds a Client on the in-memory transports, mirroring the adapter
// Use convention elsewhere in the trickstertwo modules. It panics on
// construction failure; in-memory setup has no recoverable failure mode.
func Use(cfg Config, init func(cb *xclaim.ClientBuilder)) *xclaim.Client {
	client, err := xclaim.New(func(cb *xclaim.ClientBuilder) {
		cb.WithQueue(TransportName, cfg.toMap()).
			WithBlob(TransportName, cfg.toMap())
		if init != nil {
			init(cb)
		}
	})
	if err != nil {
		panic(fmt.Errorf("memory.Use: %w", err))
	}
	return client
}
