package xclaim

import (
	"context"
	"fmt"

	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
)

// ClientBuilder constructs Client instances (Builder pattern). Transports
// can be supplied as ready instances or by registered adapter name; named
// configs use the "queue" key for the queue name so the builder can derive
// the dead-letter queue from the same backend.
type ClientBuilder struct {
	queueName string
	queueCfg  map[string]any
	queueInst QueueTransport

	blobName string
	blobCfg  map[string]any
	blobInst BlobTransport

	dlqInst QueueTransport

	cfg      Config
	cfgSet   bool
	logger   *xlog.Logger
	clock    xclock.Clock
	fetcher  URIFetcher
	criteria OffloadCriteria
	resolver BlobNameResolver
	replacer BodyReplacer

	observers []Observer
}

// NewClientBuilder returns a builder seeded with Defaults().
func NewClientBuilder() *ClientBuilder {
	return &ClientBuilder{cfg: Defaults()}
}

func (cb *ClientBuilder) WithQueue(name string, cfg map[string]any) *ClientBuilder {
	cb.queueName = name
	cb.queueCfg = cfg
	return cb
}

// WithQueueInstance accepts a ready QueueTransport (e.g. from an adapter).
func (cb *ClientBuilder) WithQueueInstance(q QueueTransport) *ClientBuilder {
	cb.queueInst = q
	return cb
}

func (cb *ClientBuilder) WithBlob(name string, cfg map[string]any) *ClientBuilder {
	cb.blobName = name
	cb.blobCfg = cfg
	return cb
}

// WithBlobInstance accepts a ready BlobTransport.
func (cb *ClientBuilder) WithBlobInstance(b BlobTransport) *ClientBuilder {
	cb.blobInst = b
	return cb
}

// WithDeadLetterQueueInstance accepts a ready transport for the dead-letter
// queue. Required when the primary queue was supplied as an instance and
// dead-lettering is enabled.
func (cb *ClientBuilder) WithDeadLetterQueueInstance(q QueueTransport) *ClientBuilder {
	cb.dlqInst = q
	return cb
}

func (cb *ClientBuilder) WithConfig(cfg Config) *ClientBuilder {
	cb.cfg = cfg
	cb.cfgSet = true
	return cb
}

func (cb *ClientBuilder) WithLogger(l *xlog.Logger) *ClientBuilder {
	cb.logger = l
	return cb
}

func (cb *ClientBuilder) WithClock(c xclock.Clock) *ClientBuilder {
	cb.clock = c
	return cb
}

// WithFetcher overrides the capability-URI download path.
func (cb *ClientBuilder) WithFetcher(f URIFetcher) *ClientBuilder {
	cb.fetcher = f
	return cb
}

func (cb *ClientBuilder) WithOffloadCriteria(c OffloadCriteria) *ClientBuilder {
	cb.criteria = c
	return cb
}

func (cb *ClientBuilder) WithBlobNameResolver(r BlobNameResolver) *ClientBuilder {
	cb.resolver = r
	return cb
}

func (cb *ClientBuilder) WithBodyReplacer(r BodyReplacer) *ClientBuilder {
	cb.replacer = r
	return cb
}

func (cb *ClientBuilder) WithObserver(obs ...Observer) *ClientBuilder {
	for _, o := range obs {
		if o != nil {
			cb.observers = append(cb.observers, o)
		}
	}
	return cb
}

// Build assembles the client, ensuring the primary queue, blob container and
// dead-letter queue exist (idempotent creates).
func (cb *ClientBuilder) Build() (*Client, error) {
	if err := cb.cfg.Validate(); err != nil {
		return nil, err
	}

	logger := cb.logger
	if logger == nil {
		logger = xlog.Default()
	}
	clock := cb.clock
	if clock == nil {
		clock = xclock.Default()
	}

	ctx := context.Background()

	var queue QueueTransport
	var err error
	switch {
	case cb.queueInst != nil:
		queue = cb.queueInst
	case cb.queueName != "":
		queue, err = NewQueueTransport(cb.queueName, cb.queueCfg)
		if err != nil {
			return nil, err
		}
	default:
		return nil, ErrNoQueueConfigured
	}
	if err := queue.Create(ctx); err != nil {
		return nil, fmt.Errorf("xclaim: ensure queue %q: %w", queue.Name(), err)
	}

	var store *PayloadStore
	var blob BlobTransport
	switch {
	case cb.blobInst != nil:
		blob = cb.blobInst
	case cb.blobName != "":
		blob, err = NewBlobTransport(cb.blobName, cb.blobCfg)
		if err != nil {
			return nil, err
		}
	}
	if blob != nil {
		store, err = NewPayloadStore(ctx, blob, cb.cfg, logger, clock)
		if err != nil {
			return nil, err
		}
	}

	fetcher := cb.fetcher
	if fetcher == nil {
		// In-process backends double as fetchers for their own URI schemes.
		if f, ok := blob.(URIFetcher); ok && blob != nil {
			fetcher = f
		} else {
			fetcher = NewHTTPFetcher()
		}
	}
	if store != nil {
		store.SetFetcher(fetcher)
	}

	retrier, err := NewRetrier(cb.cfg.RetryMaxAttempts, cb.cfg.RetryBackoff, cb.cfg.RetryBackoffMultiplier, cb.cfg.RetryMaxBackoff, logger)
	if err != nil {
		return nil, err
	}

	var dedup *DedupFilter
	if cb.cfg.DeduplicationEnabled {
		dedup = NewDedupFilter(cb.cfg.DeduplicationCacheSize)
		logger.Info().Int("cache_size", cb.cfg.DeduplicationCacheSize).Msg("xclaim: message deduplication enabled")
	}

	var dlq *DeadLetterQueue
	if cb.cfg.DeadLetterEnabled {
		dlqName := cb.cfg.DeadLetterQueueName
		if dlqName == "" {
			dlqName = queue.Name() + DefaultDLQSuffix
		}
		var dlqTransport QueueTransport
		switch {
		case cb.dlqInst != nil:
			dlqTransport = cb.dlqInst
		case cb.queueName != "":
			dlqCfg := make(map[string]any, len(cb.queueCfg)+1)
			for k, v := range cb.queueCfg {
				dlqCfg[k] = v
			}
			dlqCfg["queue"] = dlqName
			dlqTransport, err = NewQueueTransport(cb.queueName, dlqCfg)
			if err != nil {
				return nil, err
			}
		default:
			return nil, &ConfigError{Field: "DeadLetterQueue", Reason: "requires WithDeadLetterQueueInstance when the primary queue is an instance"}
		}
		dlq, err = NewDeadLetterQueue(ctx, dlqTransport, cb.cfg.DeadLetterMaxDequeueCount, logger, clock)
		if err != nil {
			return nil, err
		}
	}

	criteria := cb.criteria
	if criteria == nil {
		criteria = SizeThresholdCriteria{
			Threshold:         cb.cfg.MessageSizeThreshold,
			AlwaysThroughBlob: cb.cfg.AlwaysThroughBlob,
		}
	}
	resolver := cb.resolver
	if resolver == nil {
		resolver = PrefixedRandomNameResolver{Prefix: cb.cfg.BlobKeyPrefix}
	}
	replacer := cb.replacer
	if replacer == nil {
		replacer = PointerBodyReplacer{}
	}

	c := &Client{
		queue:    queue,
		store:    store,
		cfg:      cb.cfg,
		retrier:  retrier,
		dedup:    dedup,
		dlq:      dlq,
		fetcher:  fetcher,
		criteria: criteria,
		resolver: resolver,
		replacer: replacer,
		logger:   logger,
		clock:    clock,
	}

	if cb.cfg.TracingEnabled {
		c.AddObserver(LoggingObserver{Logger: logger})
	}
	for _, o := range cb.observers {
		c.AddObserver(o)
	}

	logger.Info().Str("queue", queue.Name()).Msg("xclaim: client initialized")
	return c, nil
}

// New constructs a Client via the builder and returns it for convenience.
func New(init func(cb *ClientBuilder)) (*Client, error) {
	cb := NewClientBuilder()
	if init != nil {
		init(cb)
	}
	return cb.Build()
}
