// Package geocode implements reverse geocoding against an OpenStreetMap Nominatim endpoint.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the public Nominatim instance.
	DefaultBaseURL = "https://nominatim.openstreetmap.org"

	// maxBodyBytes caps the decoded response size.
	maxBodyBytes = 1 << 20
)

// Place is a reverse-geocoded address. Empty fields were not present in the response.
type Place struct {
	DisplayName string
	City        string
	State       string
	Country     string
}

// Nominatim is a reverse-geocoding client.
// The public instance allows at most one request per second per client.
type Nominatim struct {
	baseURL   string
	userAgent string
	client    *http.Client
	limiter   *rate.Limiter
	breaker   *gobreaker.CircuitBreaker
}

// Option configures a Nominatim client.
type Option func(*Nominatim)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(n *Nominatim) { n.client = c }
}

// WithLimiter overrides the request rate limiter.
func WithLimiter(l *rate.Limiter) Option {
	return func(n *Nominatim) { n.limiter = l }
}

// NewNominatim creates a client for baseURL.
func NewNominatim(baseURL, userAgent string, opts ...Option) *Nominatim {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	n := &Nominatim{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		client:    &http.Client{Timeout: 15 * time.Second},
		limiter:   rate.NewLimiter(rate.Every(time.Second), 1),
	}
	n.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "nominatim",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 3
		},
	})
	for _, opt := range opts {
		opt(n)
	}
	return n
}

type reverseResponse struct {
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
	Address     struct {
		City    string `json:"city"`
		Town    string `json:"town"`
		Village string `json:"village"`
		State   string `json:"state"`
		Country string `json:"country"`
	} `json:"address"`
}

// Reverse resolves coordinates to a place.
func (n *Nominatim) Reverse(ctx context.Context, lat, lon float64) (Place, error) {
	if err := n.limiter.Wait(ctx); err != nil {
		return Place{}, err
	}
	res, err := n.breaker.Execute(func() (interface{}, error) {
		return n.reverse(ctx, lat, lon)
	})
	if err != nil {
		return Place{}, err
	}
	return res.(Place), nil
}

func (n *Nominatim) reverse(ctx context.Context, lat, lon float64) (Place, error) {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("zoom", "18")
	q.Set("addressdetails", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"/reverse?"+q.Encode(), nil)
	if err != nil {
		return Place{}, err
	}
	req.Header.Set("Accept", "application/json")
	if n.userAgent != "" {
		req.Header.Set("User-Agent", n.userAgent)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return Place{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Place{}, fmt.Errorf("reverse geocode: unexpected status %d", resp.StatusCode)
	}

	var body reverseResponse
	dec := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		return Place{}, fmt.Errorf("reverse geocode: decode: %w", err)
	}
	if body.Error != "" {
		return Place{}, errors.New("reverse geocode: " + body.Error)
	}

	return Place{
		DisplayName: body.DisplayName,
		City:        firstNonEmpty(body.Address.City, body.Address.Town, body.Address.Village),
		State:       body.Address.State,
		Country:     body.Address.Country,
	}, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
