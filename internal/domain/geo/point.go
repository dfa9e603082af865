package geo

import (
	"errors"
	"math"
	"strings"
)

// Point is a WGS84 position with an optional human address and accuracy radius in meters.
type Point struct {
	Lat      float64  `json:"latitude"`
	Lng      float64  `json:"longitude"`
	Address  string   `json:"address,omitempty"`
	Accuracy *float64 `json:"accuracy,omitempty"`
}

var (
	ErrInvalidLatitude  = errors.New("latitude must be between -90 and 90")
	ErrInvalidLongitude = errors.New("longitude must be between -180 and 180")
	ErrInvalidAccuracy  = errors.New("accuracy cannot be negative")
)

// NewPoint validates and returns a point.
func NewPoint(lat, lng float64, address string) (Point, error) {
	p := Point{Lat: lat, Lng: lng, Address: strings.TrimSpace(address)}
	if err := p.Validate(); err != nil {
		return Point{}, err
	}
	return p, nil
}

// Validate checks coordinate ranges. NaN and infinities are rejected.
func (p Point) Validate() error {
	if math.IsNaN(p.Lat) || p.Lat < -90 || p.Lat > 90 {
		return ErrInvalidLatitude
	}
	if math.IsNaN(p.Lng) || p.Lng < -180 || p.Lng > 180 {
		return ErrInvalidLongitude
	}
	if p.Accuracy != nil && (math.IsNaN(*p.Accuracy) || *p.Accuracy < 0) {
		return ErrInvalidAccuracy
	}
	return nil
}
