// Package geocode resolves coordinates to a human-readable address on a
// best-effort basis. Failures degrade to the raw coordinate string; a report
// is never blocked on geocoding.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/civiceye/civiceye-backend/pkg/utils"
)

// AddressDenied is the sentinel stored when the reporter granted no
// location permission.
const AddressDenied = "Location permission denied"

const defaultBaseURL = "https://nominatim.openstreetmap.org"

// Client talks to a Nominatim-compatible reverse-geocoding endpoint.
type Client struct {
	baseURL string
	client  *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// NewFromEnv builds a client from GEOCODE_BASE_URL, defaulting to the public
// Nominatim instance.
func NewFromEnv() *Client {
	base := os.Getenv("GEOCODE_BASE_URL")
	if base == "" {
		base = defaultBaseURL
	}
	return New(base)
}

// ReverseGeocode resolves lat/lng to a display address.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	url := fmt.Sprintf("%s/reverse?format=jsonv2&lat=%f&lon=%f", c.baseURL, lat, lng)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	// Nominatim's usage policy requires an identifying agent.
	req.Header.Set("User-Agent", "civiceye-backend/1.0")

	res, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		return "", fmt.Errorf("reverse geocode error: %s", res.Status)
	}

	var out struct {
		DisplayName string `json:"display_name"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.DisplayName == "" {
		return "", fmt.Errorf("empty display_name in response")
	}
	return out.DisplayName, nil
}

// FallbackAddress is the address used when reverse geocoding fails: the raw
// coordinates, formatted the way the original UI shows them.
func FallbackAddress(lat, lng float64) string {
	return utils.FormatCoords(lat, lng)
}
