package xclaim

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPFetcher resolves capability URIs over plain HTTP(S). This covers
// presigned/SAS-style URLs issued by real blob services; in-process
// backends supply their own URIFetcher for their private URI schemes.
type HTTPFetcher struct {
	Client *http.Client
}

var _ URIFetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher returns a fetcher with a bounded default timeout.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{Client: &http.Client{Timeout: 30 * time.Second}}
}

// Fetch downloads the object behind uri without any account credentials.
func (f *HTTPFetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("xclaim: capability uri request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &TransientError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrBlobNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("xclaim: capability uri fetch: unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
