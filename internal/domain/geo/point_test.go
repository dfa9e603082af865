package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	neg := -1.0
	tests := []struct {
		name string
		p    Point
		err  error
	}{
		{"ok", Point{Lat: 41.31, Lng: 69.24}, nil},
		{"edges", Point{Lat: -90, Lng: 180}, nil},
		{"lat high", Point{Lat: 90.1}, ErrInvalidLatitude},
		{"lat nan", Point{Lat: math.NaN()}, ErrInvalidLatitude},
		{"lng low", Point{Lng: -180.5}, ErrInvalidLongitude},
		{"negative accuracy", Point{Accuracy: &neg}, ErrInvalidAccuracy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if tt.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.err)
		})
	}

	p, err := NewPoint(1, 2, "  depot ")
	require.NoError(t, err)
	assert.Equal(t, "depot", p.Address)
}
