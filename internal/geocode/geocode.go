// Package geocode resolves coordinates to street addresses through the
// Nominatim reverse endpoint.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// DefaultBaseURL is the public OSM Nominatim instance.
const DefaultBaseURL = "https://nominatim.openstreetmap.org"

// DefaultTimeout bounds one reverse lookup. A timeout degrades to no
// address, it is never fatal to the task.
const DefaultTimeout = 8 * time.Second

const userAgent = "groundsight/1.0 (+https://github.com/tgagor/groundsight)"

// Client queries a Nominatim-compatible reverse geocoder.
type Client struct {
	BaseURL string
	http    *http.Client
}

// NewClient returns a client against the given base URL (empty means the
// public OSM instance).
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL: baseURL,
		http:    &http.Client{Timeout: DefaultTimeout},
	}
}

// Reverse resolves (lat, lon) to a display address. Any failure (transport,
// timeout, non-2xx, malformed body) returns an error the caller treats as
// no address.
func (c *Client) Reverse(ctx context.Context, lat, lon float64) (string, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("format", "jsonv2")
	q.Set("addressdetails", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.BaseURL+"/reverse?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("reverse geocode request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("reverse geocode returned status %d", resp.StatusCode)
	}

	var body struct {
		DisplayName string `json:"display_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if body.DisplayName == "" {
		return "", fmt.Errorf("no display_name in response")
	}
	return body.DisplayName, nil
}
