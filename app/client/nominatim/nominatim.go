// Package nominatim implements reverse geocoding against a Nominatim
// compatible endpoint.
package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rajjagirdar007/platemateuh/app/config"
	"github.com/samber/do"
)

type Place struct {
	SubLocality string
	Locality    string
}

type Client struct {
	url    string
	client *http.Client
}

func NewClient(di *do.Injector) (*Client, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return &Client{
		url: cfg.Location.GeocodeURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}, nil
}

func (c *Client) Resolve(ctx context.Context, lat, lon float64) (Place, error) {
	query := url.Values{}
	query.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	query.Set("lon", strconv.FormatFloat(lon, 'f', 6, 64))
	query.Set("format", "jsonv2")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"?"+query.Encode(), nil)
	if err != nil {
		return Place{}, fmt.Errorf("creating request: %w", err)
	}

	// Nominatim's usage policy rejects requests without an identifying agent.
	req.Header.Set("User-Agent", "platemate/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return Place{}, fmt.Errorf("reverse geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return Place{}, fmt.Errorf("reverse geocode failed (status %d): %s", resp.StatusCode, body)
	}

	var result struct {
		Address struct {
			Suburb       string `json:"suburb"`
			Neighborhood string `json:"neighbourhood"`
			City         string `json:"city"`
			Town         string `json:"town"`
			Village      string `json:"village"`
		} `json:"address"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Place{}, fmt.Errorf("decoding reverse geocode response: %w", err)
	}

	place := Place{
		SubLocality: result.Address.Suburb,
		Locality:    result.Address.City,
	}
	if place.SubLocality == "" {
		place.SubLocality = result.Address.Neighborhood
	}
	if place.Locality == "" {
		place.Locality = result.Address.Town
	}
	if place.Locality == "" {
		place.Locality = result.Address.Village
	}

	return place, nil
}
