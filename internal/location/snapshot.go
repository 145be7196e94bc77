// Package location caches the last known position and resolves fresh ones.
package location

import (
	"fmt"
	"strings"
	"time"
)

// Unknown marks an address component that could not be resolved.
const Unknown = "Unknown"

// Coordinates is a raw position.
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// Label renders coordinates the way they are shown when no place name is known.
func (c Coordinates) Label() string {
	return fmt.Sprintf("Lat: %.6f, Lon: %.6f", c.Latitude, c.Longitude)
}

// Snapshot is one resolved location. Timestamp is when the lookup started.
type Snapshot struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	PlaceName string    `json:"placeName"`
	City      string    `json:"city"`
	State     string    `json:"state"`
	Country   string    `json:"country"`
	Timestamp time.Time `json:"timestamp"`
}

// Coordinates returns the raw position of the snapshot.
func (s Snapshot) Coordinates() Coordinates {
	return Coordinates{Latitude: s.Latitude, Longitude: s.Longitude}
}

// Fallback builds a coordinates-only snapshot.
func Fallback(c Coordinates, at time.Time) Snapshot {
	return Snapshot{
		Latitude:  c.Latitude,
		Longitude: c.Longitude,
		PlaceName: c.Label(),
		City:      Unknown,
		State:     Unknown,
		Country:   Unknown,
		Timestamp: at,
	}
}

// Display returns a short human-readable label.
func (s Snapshot) Display() string {
	var parts []string
	for _, p := range []string{s.City, s.Country} {
		if p != "" && p != Unknown {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		if s.PlaceName != "" {
			return s.PlaceName
		}
		return s.Coordinates().Label()
	}
	return strings.Join(parts, ", ")
}
