package xclaim_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trickstertwo/xclaim"
	"github.com/trickstertwo/xclaim/adapter/memory"
)

func newTestStore(t *testing.T, cfg xclaim.Config) (*xclaim.PayloadStore, *memory.Blob) {
	t.Helper()
	blob := memory.NewBlob("test-payloads")
	store, err := xclaim.NewPayloadStore(context.Background(), blob, cfg, nil, nil)
	require.NoError(t, err)
	return store, blob
}

func TestPayloadStore_StoreAndRetrieve(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, xclaim.Defaults())

	pointer, err := store.Store(ctx, "blob-1", "the payload")
	require.NoError(t, err)
	assert.Equal(t, "test-payloads", pointer.ContainerName)
	assert.Equal(t, "blob-1", pointer.BlobName)

	payload, err := store.Retrieve(ctx, pointer)
	require.NoError(t, err)
	assert.Equal(t, "the payload", payload)
}

func TestPayloadStore_RetrieveMissing(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, xclaim.Defaults())

	_, err := store.Retrieve(ctx, xclaim.BlobPointer{ContainerName: "test-payloads", BlobName: "absent"})
	require.Error(t, err)
	assert.ErrorIs(t, err, xclaim.ErrBlobNotFound)
}

func TestPayloadStore_RetrieveMissingTolerated(t *testing.T) {
	ctx := context.Background()
	cfg := xclaim.Defaults()
	cfg.IgnorePayloadNotFound = true
	store, _ := newTestStore(t, cfg)

	payload, err := store.Retrieve(ctx, xclaim.BlobPointer{ContainerName: "test-payloads", BlobName: "absent"})
	require.NoError(t, err)
	assert.Equal(t, "", payload)
}

func TestPayloadStore_DeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, xclaim.Defaults())

	pointer, err := store.Store(ctx, "blob-1", "data")
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, pointer))
	require.NoError(t, store.Delete(ctx, pointer))
}

func TestPayloadStore_TTLMetadataStamped(t *testing.T) {
	ctx := context.Background()
	cfg := xclaim.Defaults()
	cfg.BlobTTLDays = 7
	store, blob := newTestStore(t, cfg)

	_, err := store.Store(ctx, "blob-ttl", "data")
	require.NoError(t, err)

	meta, err := blob.Metadata(ctx, "blob-ttl")
	require.NoError(t, err)
	stamp, ok := meta["expiresAt"]
	require.True(t, ok)

	expiresAt, err := time.Parse(time.RFC3339, stamp)
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now().UTC().Add(6*24*time.Hour)))
}

func TestPayloadStore_CleanupExpired(t *testing.T) {
	ctx := context.Background()
	store, blob := newTestStore(t, xclaim.Defaults())

	past := time.Now().UTC().Add(-time.Hour).Format(time.RFC3339)
	future := time.Now().UTC().Add(time.Hour).Format(time.RFC3339)

	require.NoError(t, blob.Put(ctx, "expired", []byte("x"), map[string]string{"expiresAt": past}, ""))
	require.NoError(t, blob.Put(ctx, "fresh", []byte("y"), map[string]string{"expiresAt": future}, ""))
	require.NoError(t, blob.Put(ctx, "no-ttl", []byte("z"), nil, ""))

	deleted, err := store.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	names, err := blob.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"fresh", "no-ttl"}, names)
}

// lowercasingBlob folds metadata keys to lowercase the way S3 does on the
// wire.
type lowercasingBlob struct {
	*memory.Blob
}

func (b *lowercasingBlob) Metadata(ctx context.Context, name string) (map[string]string, error) {
	meta, err := b.Blob.Metadata(ctx, name)
	if err != nil {
		return nil, err
	}
	folded := make(map[string]string, len(meta))
	for k, v := range meta {
		folded[strings.ToLower(k)] = v
	}
	return folded, nil
}

func TestPayloadStore_CleanupExpiredWithFoldedMetadataKeys(t *testing.T) {
	ctx := context.Background()
	blob := &lowercasingBlob{Blob: memory.NewBlob("test-payloads")}
	store, err := xclaim.NewPayloadStore(ctx, blob, xclaim.Defaults(), nil, nil)
	require.NoError(t, err)

	past := time.Now().UTC().Add(-time.Hour).Format(time.RFC3339)
	require.NoError(t, blob.Put(ctx, "expired", []byte("x"), map[string]string{"expiresAt": past}, ""))

	deleted, err := store.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	names, err := blob.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestPayloadStore_CapabilityURI(t *testing.T) {
	ctx := context.Background()
	store, blob := newTestStore(t, xclaim.Defaults())
	store.SetFetcher(blob)

	pointer, err := store.Store(ctx, "blob-uri", "fetched via capability")
	require.NoError(t, err)

	uri, err := store.GenerateCapabilityURI(ctx, pointer, time.Hour)
	require.NoError(t, err)
	assert.Contains(t, uri, "mem://test-payloads/")

	payload, err := store.RetrieveViaURI(ctx, uri)
	require.NoError(t, err)
	assert.Equal(t, "fetched via capability", payload)
}
