package memory

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/trickstertwo/xclaim"
	"github.com/trickstertwo/xclock"
)

// Blob is an in-memory blob transport. Signed URLs use the mem:// scheme and
// are honoured by the same instance through the Fetch method, so receive-only
// flows can be exercised end to end in-process.
type Blob struct {
	container string
	clock     xclock.Clock

	mu      sync.RWMutex
	objects map[string]*blobObject
}

type blobObject struct {
	data []byte
	meta map[string]string
	tier string
}

// NewBlob constructs an in-memory blob store.
func NewBlob(container string) *Blob {
	return &Blob{
		container: container,
		clock:     xclock.Default(),
		objects:   map[string]*blobObject{},
	}
}

// WithClock overrides the clock (used by tests to control URL expiry).
func (b *Blob) WithClock(c xclock.Clock) *Blob {
	if c != nil {
		b.clock = c
	}
	return b
}

func (b *Blob) EnsureContainer(_ context.Context) error { return nil }

func (b *Blob) Container() string { return b.container }

func (b *Blob) Put(_ context.Context, name string, data []byte, metadata map[string]string, tier string) error {
	meta := make(map[string]string, len(metadata))
	for k, v := range metadata {
		meta[k] = v
	}
	cp := make([]byte, len(data))
	copy(cp, data)

	b.mu.Lock()
	b.objects[name] = &blobObject{data: cp, meta: meta, tier: tier}
	b.mu.Unlock()
	return nil
}

func (b *Blob) Get(_ context.Context, name string) ([]byte, error) {
	b.mu.RLock()
	obj, ok := b.objects[name]
	b.mu.RUnlock()
	if !ok {
		return nil, xclaim.ErrBlobNotFound
	}
	cp := make([]byte, len(obj.data))
	copy(cp, obj.data)
	return cp, nil
}

func (b *Blob) Delete(_ context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.objects[name]; !ok {
		return xclaim.ErrBlobNotFound
	}
	delete(b.objects, name)
	return nil
}

func (b *Blob) List(_ context.Context) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.objects))
	for name := range b.objects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (b *Blob) Metadata(_ context.Context, name string) (map[string]string, error) {
	b.mu.RLock()
	obj, ok := b.objects[name]
	b.mu.RUnlock()
	if !ok {
		return nil, xclaim.ErrBlobNotFound
	}
	meta := make(map[string]string, len(obj.meta))
	for k, v := range obj.meta {
		meta[k] = v
	}
	return meta, nil
}

// SignedURL returns a mem:// URI with an embedded expiry. There is no
// cryptographic signature; the URI is only resolvable by this process.
func (b *Blob) SignedURL(_ context.Context, name string, validFor time.Duration) (string, error) {
	b.mu.RLock()
	_, ok := b.objects[name]
	b.mu.RUnlock()
	if !ok {
		return "", xclaim.ErrBlobNotFound
	}
	expires := b.clock.Now().Add(validFor).UnixNano()
	return fmt.Sprintf("mem://%s/%s?expires=%d", b.container, url.PathEscape(name), expires), nil
}

// Fetch resolves a mem:// URI issued by SignedURL, enforcing its expiry.
// Blob therefore satisfies xclaim.URIFetcher for in-process capability URIs.
func (b *Blob) Fetch(ctx context.Context, uri string) ([]byte, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("memory: parse capability uri: %w", err)
	}
	if u.Scheme != "mem" {
		return nil, fmt.Errorf("memory: unsupported uri scheme %q", u.Scheme)
	}
	if u.Host != b.container {
		return nil, fmt.Errorf("memory: uri container %q does not match %q", u.Host, b.container)
	}
	name, err := url.PathUnescape(strings.TrimPrefix(u.Path, "/"))
	if err != nil {
		return nil, fmt.Errorf("memory: decode blob name: %w", err)
	}
	expires, err := strconv.ParseInt(u.Query().Get("expires"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("memory: capability uri missing expiry")
	}
	if b.clock.Now().UnixNano() > expires {
		return nil, fmt.Errorf("memory: capability uri expired")
	}
	return b.Get(ctx, name)
}
