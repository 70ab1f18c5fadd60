package redisq

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/trickstertwo/xclaim"
	"github.com/trickstertwo/xclock"
)

const metaTierField = "__tier"

// Blob is a Redis-backed blob transport. Each object is a plain value plus a
// metadata HASH; the container keeps a SET index for listing. Capability
// URIs use the redis+blob:// scheme and carry an HMAC-SHA256 signature over
// container, name and expiry, so they can be handed to consumers that share
// the signing secret but hold no Redis credentials of their own.
type Blob struct {
	container string
	client    *redis.Client
	clock     xclock.Clock
	secret    []byte

	keyIndex  string
	objPrefix string
}

// NewBlob dials Redis and returns a blob transport for cfg.Container.
func NewBlob(cfg Config) (*Blob, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Container == "" {
		return nil, fmt.Errorf("config: container required")
	}
	client, err := cfg.newClient()
	if err != nil {
		return nil, err
	}
	base := cfg.KeyPrefix + ":b:" + cfg.Container
	return &Blob{
		container: cfg.Container,
		client:    client,
		clock:     xclock.Default(),
		secret:    cfg.signingSecret(),
		keyIndex:  base + ":index",
		objPrefix: base + ":obj:",
	}, nil
}

// WithClock overrides the clock (used by tests to control URI expiry).
func (b *Blob) WithClock(c xclock.Clock) *Blob {
	if c != nil {
		b.clock = c
	}
	return b
}

// EnsureContainer is a no-op; Redis keys materialize on first write.
func (b *Blob) EnsureContainer(_ context.Context) error { return nil }

func (b *Blob) Container() string { return b.container }

func (b *Blob) dataKey(name string) string { return b.objPrefix + name }
func (b *Blob) metaKey(name string) string { return b.objPrefix + name + ":meta" }

func (b *Blob) Put(ctx context.Context, name string, data []byte, metadata map[string]string, tier string) error {
	pipe := b.client.TxPipeline()
	pipe.Set(ctx, b.dataKey(name), data, 0)
	pipe.Del(ctx, b.metaKey(name))
	fields := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		fields[k] = v
	}
	if tier != "" {
		fields[metaTierField] = tier
	}
	if len(fields) > 0 {
		pipe.HSet(ctx, b.metaKey(name), fields)
	}
	pipe.SAdd(ctx, b.keyIndex, name)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redisq: put blob %q: %w", name, err)
	}
	return nil
}

func (b *Blob) Get(ctx context.Context, name string) ([]byte, error) {
	data, err := b.client.Get(ctx, b.dataKey(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, xclaim.ErrBlobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redisq: get blob %q: %w", name, err)
	}
	return data, nil
}

func (b *Blob) Delete(ctx context.Context, name string) error {
	removed, err := b.client.Del(ctx, b.dataKey(name)).Result()
	if err != nil {
		return fmt.Errorf("redisq: delete blob %q: %w", name, err)
	}
	if removed == 0 {
		return xclaim.ErrBlobNotFound
	}
	pipe := b.client.TxPipeline()
	pipe.Del(ctx, b.metaKey(name))
	pipe.SRem(ctx, b.keyIndex, name)
	_, _ = pipe.Exec(ctx)
	return nil
}

func (b *Blob) List(ctx context.Context) ([]string, error) {
	names, err := b.client.SMembers(ctx, b.keyIndex).Result()
	if err != nil {
		return nil, fmt.Errorf("redisq: list blobs: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

func (b *Blob) Metadata(ctx context.Context, name string) (map[string]string, error) {
	exists, err := b.client.Exists(ctx, b.dataKey(name)).Result()
	if err != nil {
		return nil, fmt.Errorf("redisq: stat blob %q: %w", name, err)
	}
	if exists == 0 {
		return nil, xclaim.ErrBlobNotFound
	}
	meta, err := b.client.HGetAll(ctx, b.metaKey(name)).Result()
	if err != nil {
		return nil, fmt.Errorf("redisq: blob metadata %q: %w", name, err)
	}
	delete(meta, metaTierField)
	return meta, nil
}

// SignedURL issues a redis+blob:// capability URI valid for validFor.
func (b *Blob) SignedURL(ctx context.Context, name string, validFor time.Duration) (string, error) {
	exists, err := b.client.Exists(ctx, b.dataKey(name)).Result()
	if err != nil {
		return "", fmt.Errorf("redisq: stat blob %q: %w", name, err)
	}
	if exists == 0 {
		return "", xclaim.ErrBlobNotFound
	}
	expires := b.clock.Now().Add(validFor).Unix()
	sig := b.sign(name, expires)
	return fmt.Sprintf("redis+blob://%s/%s?expires=%d&sig=%s",
		b.container, url.PathEscape(name), expires, sig), nil
}

// Fetch resolves a redis+blob:// URI issued by SignedURL, verifying the
// signature and expiry before returning the payload. Blob therefore
// satisfies xclaim.URIFetcher.
func (b *Blob) Fetch(ctx context.Context, uri string) ([]byte, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("redisq: parse capability uri: %w", err)
	}
	if u.Scheme != "redis+blob" {
		return nil, fmt.Errorf("redisq: unsupported uri scheme %q", u.Scheme)
	}
	if u.Host != b.container {
		return nil, fmt.Errorf("redisq: uri container %q does not match %q", u.Host, b.container)
	}
	name, err := url.PathUnescape(strings.TrimPrefix(u.Path, "/"))
	if err != nil {
		return nil, fmt.Errorf("redisq: decode blob name: %w", err)
	}
	expires, err := strconv.ParseInt(u.Query().Get("expires"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("redisq: capability uri missing expiry")
	}
	if !hmac.Equal([]byte(b.sign(name, expires)), []byte(u.Query().Get("sig"))) {
		return nil, fmt.Errorf("redisq: capability uri signature mismatch")
	}
	if b.clock.Now().Unix() > expires {
		return nil, fmt.Errorf("redisq: capability uri expired")
	}
	return b.Get(ctx, name)
}

func (b *Blob) sign(name string, expires int64) string {
	mac := hmac.New(sha256.New, b.secret)
	fmt.Fprintf(mac, "%s\n%s\n%d", b.container, name, expires)
	return hex.EncodeToString(mac.Sum(nil))
}

// Close releases the Redis connection.
func (b *Blob) Close() error { return b.client.Close() }
