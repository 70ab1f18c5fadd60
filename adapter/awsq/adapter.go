package awsq

import (
	"fmt"

	"github.com/trickstertwo/xclaim"
)

// Adapter: SQS queue + S3 blob transports (Strategy + Adapter patterns)

const TransportName = "aws"

func init() {
	if err := xclaim.RegisterQueueTransport(TransportName, func(cfg map[string]any) (xclaim.QueueTransport, error) {
		return NewQueue(ConfigFromMap(cfg))
	}); err != nil {
		panic(fmt.Errorf("xclaim: failed to register queue transport %q: %w", TransportName, err))
	}
	if err := xclaim.RegisterBlobTransport(TransportName, func(cfg map[string]any) (xclaim.BlobTransport, error) {
		return NewBlob(ConfigFromMap(cfg))
	}); err != nil {
		panic(fmt.Errorf("xclaim: failed to register blob transport %q: %w", TransportName, err))
	}
}

// Use builds a Client on SQS and S3. It panics on construction failure,
// mirroring the adapter Use convention elsewhere in the trickstertwo
// modules.
func Use(cfg Config, init func(cb *xclaim.ClientBuilder)) *xclaim.Client {
	client, err := xclaim.New(func(cb *xclaim.ClientBuilder) {
		cb.WithQueue(TransportName, cfg.toMap()).
			WithBlob(TransportName, cfg.toMap())
		if init != nil {
			init(cb)
		}
	})
	if err != nil {
		panic(fmt.Errorf("awsq.Use: %w", err))
	}
	return client
}
