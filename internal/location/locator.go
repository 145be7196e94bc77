package location

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Locator determines the current position. The context deadline is the timeout hint.
type Locator interface {
	Locate(ctx context.Context) (Coordinates, error)
}

// StaticLocator always reports the configured coordinates.
type StaticLocator struct {
	Coordinates Coordinates
}

// Locate implements Locator.
func (l StaticLocator) Locate(ctx context.Context) (Coordinates, error) {
	if err := ctx.Err(); err != nil {
		return Coordinates{}, err
	}
	return l.Coordinates, nil
}

// IPLocator estimates the position from the public IP address using an
// ip-api.com compatible JSON endpoint.
type IPLocator struct {
	url    string
	client *http.Client
}

// NewIPLocator creates an IP-based locator. A nil client uses a default one.
func NewIPLocator(url string, client *http.Client) *IPLocator {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &IPLocator{url: url, client: client}
}

type ipResponse struct {
	Status  string  `json:"status"`
	Message string  `json:"message"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// Locate implements Locator.
func (l *IPLocator) Locate(ctx context.Context) (Coordinates, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return Coordinates{}, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return Coordinates{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Coordinates{}, fmt.Errorf("ip locate: unexpected status %d", resp.StatusCode)
	}

	var body ipResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&body); err != nil {
		return Coordinates{}, fmt.Errorf("ip locate: decode: %w", err)
	}
	if body.Status != "success" {
		msg := body.Message
		if msg == "" {
			msg = "lookup failed"
		}
		return Coordinates{}, errors.New("ip locate: " + msg)
	}
	return Coordinates{Latitude: body.Lat, Longitude: body.Lon}, nil
}
