package servingapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	ports "plant-classifier-pipeline/internal/core/ports/output"
)

const defaultTimeout = 5 * time.Second

// Client posts reload requests to serving processes.
type Client struct {
	httpClient *http.Client
}

func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{httpClient: &http.Client{Timeout: timeout}}
}

var _ ports.ReloadClient = (*Client)(nil)

func (c *Client) Reload(ctx context.Context, target ports.ReloadTarget) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.URL, nil)
	if err != nil {
		return fmt.Errorf("create reload request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("reload request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("reload returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return nil
}

// StaticTargets is a TargetDiscovery over a fixed list of reload URLs.
type StaticTargets []string

var _ ports.TargetDiscovery = StaticTargets(nil)

func (s StaticTargets) Targets(context.Context) ([]ports.ReloadTarget, error) {
	out := make([]ports.ReloadTarget, 0, len(s))
	for _, u := range s {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, ports.ReloadTarget{Name: u, URL: u})
		}
	}
	return out, nil
}
