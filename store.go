package xclaim

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
)

// metaExpiresAt carries the RFC 3339 expiry stamp written when a TTL is
// configured; CleanupExpired reaps objects past it.
const metaExpiresAt = "expiresAt"

// PayloadStore is the blob-store facade: it stores, retrieves and deletes
// offloaded payloads by pointer, stamps TTL/tier metadata on upload, and
// issues capability URIs for credential-less consumers.
type PayloadStore struct {
	transport BlobTransport
	fetcher   URIFetcher

	ttlDays         int
	tier            string
	tolerateMissing bool

	logger *xlog.Logger
	clock  xclock.Clock
}

// NewPayloadStore wraps a blob transport. The container is ensured at
// construction (create-if-absent, idempotent) and is not re-validated per
// call.
func NewPayloadStore(ctx context.Context, transport BlobTransport, cfg Config, logger *xlog.Logger, clock xclock.Clock) (*PayloadStore, error) {
	if transport == nil {
		return nil, &ConfigError{Field: "BlobTransport", Reason: "must not be nil"}
	}
	if logger == nil {
		logger = xlog.Default()
	}
	if clock == nil {
		clock = xclock.Default()
	}
	if err := transport.EnsureContainer(ctx); err != nil {
		return nil, fmt.Errorf("xclaim: ensure container %q: %w", transport.Container(), err)
	}
	return &PayloadStore{
		transport:       transport,
		fetcher:         NewHTTPFetcher(),
		ttlDays:         cfg.BlobTTLDays,
		tier:            cfg.BlobAccessTier,
		tolerateMissing: cfg.IgnorePayloadNotFound,
		logger:          logger,
		clock:           clock,
	}, nil
}

// SetFetcher replaces the capability-URI download path. Backends with
// private URI schemes (memory, redis) install themselves here.
func (s *PayloadStore) SetFetcher(f URIFetcher) {
	if f != nil {
		s.fetcher = f
	}
}

// Container returns the container name payloads are stored under.
func (s *PayloadStore) Container() string { return s.transport.Container() }

// Store uploads payload under name, stamping expiry metadata when a TTL is
// configured and passing the access tier hint.
func (s *PayloadStore) Store(ctx context.Context, name, payload string) (BlobPointer, error) {
	metadata := map[string]string{}
	if s.ttlDays > 0 {
		expiresAt := s.clock.Now().UTC().Add(time.Duration(s.ttlDays) * 24 * time.Hour)
		metadata[metaExpiresAt] = expiresAt.Format(time.RFC3339)
	}
	if err := s.transport.Put(ctx, name, []byte(payload), metadata, s.tier); err != nil {
		return BlobPointer{}, fmt.Errorf("xclaim: store payload %q: %w", name, err)
	}
	s.logger.Debug().Str("blob", name).Int("bytes", len(payload)).Msg("xclaim: payload stored")
	return BlobPointer{ContainerName: s.transport.Container(), BlobName: name}, nil
}

// Retrieve downloads the payload behind pointer. A missing object yields an
// empty payload when the store tolerates missing payloads, otherwise
// ErrBlobNotFound.
func (s *PayloadStore) Retrieve(ctx context.Context, pointer BlobPointer) (string, error) {
	data, err := s.transport.Get(ctx, pointer.BlobName)
	if err != nil {
		if errors.Is(err, ErrBlobNotFound) && s.tolerateMissing {
			s.logger.Warn().Str("blob", pointer.BlobName).Msg("xclaim: blob missing, tolerated by configuration")
			return "", nil
		}
		return "", fmt.Errorf("xclaim: retrieve payload %q: %w", pointer.BlobName, err)
	}
	return string(data), nil
}

// Delete removes the payload behind pointer. An already-absent object is
// treated as success; any other transport error is surfaced.
func (s *PayloadStore) Delete(ctx context.Context, pointer BlobPointer) error {
	if err := s.transport.Delete(ctx, pointer.BlobName); err != nil {
		if errors.Is(err, ErrBlobNotFound) {
			s.logger.Debug().Str("blob", pointer.BlobName).Msg("xclaim: blob already absent")
			return nil
		}
		return fmt.Errorf("xclaim: delete payload %q: %w", pointer.BlobName, err)
	}
	return nil
}

// CleanupExpired scans the container and deletes every object whose expiry
// stamp is in the past. Per-object failures are logged and skipped; only a
// container-level listing failure is returned. Returns the number deleted.
func (s *PayloadStore) CleanupExpired(ctx context.Context) (int, error) {
	names, err := s.transport.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("xclaim: list container %q: %w", s.transport.Container(), err)
	}

	now := s.clock.Now().UTC()
	deleted := 0
	for _, name := range names {
		metadata, err := s.transport.Metadata(ctx, name)
		if err != nil {
			s.logger.Warn().Str("blob", name).Err(err).Msg("xclaim: cleanup: metadata fetch failed")
			continue
		}
		stamp, ok := metadataLookup(metadata, metaExpiresAt)
		if !ok {
			continue
		}
		expiresAt, err := time.Parse(time.RFC3339, stamp)
		if err != nil {
			s.logger.Warn().Str("blob", name).Str("expires_at", stamp).Msg("xclaim: cleanup: unparseable expiry stamp")
			continue
		}
		if !now.After(expiresAt) {
			continue
		}
		if err := s.transport.Delete(ctx, name); err != nil && !errors.Is(err, ErrBlobNotFound) {
			s.logger.Warn().Str("blob", name).Err(err).Msg("xclaim: cleanup: delete failed")
			continue
		}
		deleted++
	}
	s.logger.Info().Int("deleted", deleted).Msg("xclaim: expired blob cleanup complete")
	return deleted, nil
}

// metadataLookup finds key in metadata ignoring case. Object stores do not
// preserve metadata key case on the wire (S3 returns lowercased keys), so
// the expiry stamp may come back cased differently than it was written.
func metadataLookup(metadata map[string]string, key string) (string, bool) {
	if v, ok := metadata[key]; ok {
		return v, true
	}
	for k, v := range metadata {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}

// GenerateCapabilityURI issues a time-bounded, read-only URI for pointer.
func (s *PayloadStore) GenerateCapabilityURI(ctx context.Context, pointer BlobPointer, validFor time.Duration) (string, error) {
	uri, err := s.transport.SignedURL(ctx, pointer.BlobName, validFor)
	if err != nil {
		return "", fmt.Errorf("xclaim: sign %q: %w", pointer.BlobName, err)
	}
	return uri, nil
}

// RetrieveViaURI downloads a payload using only a capability URI.
func (s *PayloadStore) RetrieveViaURI(ctx context.Context, uri string) (string, error) {
	data, err := s.fetcher.Fetch(ctx, uri)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
