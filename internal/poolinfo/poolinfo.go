// Package poolinfo fetches pool metadata from an external HTTP API so the
// server can relay it to clients unchanged.
package poolinfo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DefaultTimeout = 10 * time.Second
	maxBodyBytes   = 4 << 20
)

// Response is the upstream reply as received.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Stats describes the last upstream reply. LastStatus is zero until the
// first Fetch completes.
type Stats struct {
	LastStatus  int    `json:"lastStatus"`
	LastUpdated string `json:"lastUpdated,omitempty"`
}

// Client calls a fixed pool-info URL.
type Client struct {
	url    string
	client *http.Client

	mutex       sync.RWMutex
	lastUpdated time.Time
	lastStatus  int
}

func NewClient(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		url: url,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Fetch performs one GET against the pool-info URL. Non-2xx replies are not
// errors: they are returned for the caller to relay. Only transport and read
// failures produce an error.
func (c *Client) Fetch(ctx context.Context) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build pool info request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pool info: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read pool info: %w", err)
	}

	c.mutex.Lock()
	c.lastUpdated = time.Now()
	c.lastStatus = resp.StatusCode
	c.mutex.Unlock()

	if resp.StatusCode != http.StatusOK {
		logrus.WithField("status", resp.StatusCode).Warn("⚠️ Pool info API returned non-OK status")
	}

	return &Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// GetStats reports when the upstream last answered and with what status.
func (c *Client) GetStats() Stats {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	stats := Stats{LastStatus: c.lastStatus}
	if !c.lastUpdated.IsZero() {
		stats.LastUpdated = c.lastUpdated.Format(time.RFC3339)
	}
	return stats
}
