// Package geoip implements coarse location lookup over an ip-api.com
// compatible HTTP endpoint. Accuracy is city-level at best, which is good
// enough to anchor "nearby" searches.
package geoip

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rajjagirdar007/platemateuh/app/config"
	"github.com/samber/do"
)

// ip-based fixes are city-level; report a pessimistic radius.
const assumedAccuracyMeters = 5000

type Position struct {
	Latitude  float64
	Longitude float64
	Accuracy  float64
	Timestamp time.Time
}

type Client struct {
	url    string
	client *http.Client
}

func NewClient(di *do.Injector) (*Client, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return &Client{
		url: cfg.Location.GeoIPURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}, nil
}

// RequestOnce resolves the caller's position from its public IP.
func (c *Client) RequestOnce(ctx context.Context) (Position, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return Position{}, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Position{}, fmt.Errorf("geoip request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return Position{}, fmt.Errorf("geoip lookup failed (status %d): %s", resp.StatusCode, body)
	}

	var result struct {
		Status  string  `json:"status"`
		Message string  `json:"message"`
		Lat     float64 `json:"lat"`
		Lon     float64 `json:"lon"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Position{}, fmt.Errorf("decoding geoip response: %w", err)
	}

	if result.Status != "" && result.Status != "success" {
		return Position{}, fmt.Errorf("geoip lookup failed: %s", result.Message)
	}

	return Position{
		Latitude:  result.Lat,
		Longitude: result.Lon,
		Accuracy:  assumedAccuracyMeters,
		Timestamp: time.Now(),
	}, nil
}

// StartUpdates polls for position changes until ctx is cancelled, invoking
// fn for every successful lookup.
func (c *Client) StartUpdates(ctx context.Context, interval time.Duration, fn func(Position)) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				pos, err := c.RequestOnce(ctx)
				if err != nil {
					continue
				}

				fn(pos)
			}
		}
	}()
}
