package rollout

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultMaxImageSize bounds a single download.
const DefaultMaxImageSize = 64 << 20

// HTTPFetcher downloads firmware images over HTTP.
type HTTPFetcher struct {
	Client  *http.Client
	MaxSize int64 // Largest accepted body in bytes; DefaultMaxImageSize when zero
}

// NewHTTPFetcher returns a fetcher using client, or a client with the given
// timeout when client is nil.
func NewHTTPFetcher(client *http.Client, timeout time.Duration) *HTTPFetcher {
	if client == nil {
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPFetcher{Client: client}
}

// Fetch downloads url into memory.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected download status for %s: %s", url, resp.Status)
	}
	limit := f.MaxSize
	if limit <= 0 {
		limit = DefaultMaxImageSize
	}
	if resp.ContentLength > limit {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit %d", ErrImageTooLarge, url, resp.ContentLength, limit)
	}
	var buf bytes.Buffer
	if resp.ContentLength > 0 {
		buf.Grow(int(resp.ContentLength))
	}
	if _, err := io.Copy(&buf, io.LimitReader(resp.Body, limit+1)); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", url, err)
	}
	if int64(buf.Len()) > limit {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrImageTooLarge, url, limit)
	}
	return buf.Bytes(), nil
}
