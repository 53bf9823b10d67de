package utils

import (
	"fmt"

	"github.com/segmentio/ksuid"
)

// NewComplaintID generates a collision-resistant, time-sortable complaint id.
func NewComplaintID() string {
	return ksuid.New().String()
}

// NewUpdateID generates an id for a complaint audit event.
func NewUpdateID() string {
	return ksuid.New().String()
}

// FormatCoords renders raw coordinates the way the UI shows them when no
// reverse-geocoded address is available.
func FormatCoords(lat, lng float64) string {
	return fmt.Sprintf("%.4f, %.4f", lat, lng)
}
