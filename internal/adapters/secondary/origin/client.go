package origin

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"plant-classifier-pipeline/internal/core/domain"
	ports "plant-classifier-pipeline/internal/core/ports/output"
)

const (
	defaultTimeout  = 5 * time.Second
	defaultMaxBytes = 32 << 20
)

type Client struct {
	httpClient *http.Client
	maxBytes   int64
}

// NewClient creates a fetcher whose requests give up after timeout. Nothing
// is retried here; a failed source is picked up by the next sync run.
func NewClient(timeout time.Duration, maxBytes int64) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxBytes: maxBytes,
	}
}

var _ ports.SourceFetcher = (*Client)(nil)

func (c *Client) Fetch(ctx context.Context, url string) (*ports.FetchedSource, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", domain.ErrTransientFetch, err)
	}

	log.WithField("url", url).Debug("fetching source")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTransientFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s returned %s", domain.ErrTransientFetch, url, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", domain.ErrTransientFetch, err)
	}
	if int64(len(body)) > c.maxBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", domain.ErrTransientFetch, url, c.maxBytes)
	}

	return &ports.FetchedSource{
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}
