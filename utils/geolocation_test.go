package utils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateDistance(t *testing.T) {
	// Bengaluru city center to the airport, roughly 28km great-circle.
	d := CalculateDistance(12.9716, 77.5946, 13.1986, 77.7066)
	assert.InDelta(t, 28000, d, 2000)

	// Zero distance for identical points.
	assert.Zero(t, CalculateDistance(12.9716, 77.5946, 12.9716, 77.5946))

	// Symmetry.
	forward := CalculateDistance(12.9716, 77.5946, 28.6139, 77.2090)
	backward := CalculateDistance(28.6139, 77.2090, 12.9716, 77.5946)
	assert.InDelta(t, forward, backward, 1e-6)
}

func TestCalculateBoundingBoxContains(t *testing.T) {
	box := CalculateBoundingBox(12.9716, 77.5946, 10000)

	assert.True(t, box.Contains(12.9716, 77.5946), "center is inside")
	assert.True(t, box.Contains(13.0000, 77.5946), "point ~3km north is inside")
	assert.False(t, box.Contains(13.5000, 78.5000), "point ~115km away is outside")
}

func TestBoundingBoxIsPrefilterNotExact(t *testing.T) {
	// The box over-approximates the circle: its corners lie beyond the
	// radius but must still be contained.
	box := CalculateBoundingBox(12.9716, 77.5946, 10000)
	corner := box.NorthEast
	assert.True(t, box.Contains(corner.Latitude, corner.Longitude))
	assert.Greater(t, CalculateDistance(12.9716, 77.5946, corner.Latitude, corner.Longitude), 10000.0)
}

func TestIsValidCoordinate(t *testing.T) {
	assert.True(t, IsValidCoordinate(0, 0))
	assert.True(t, IsValidCoordinate(-90, -180))
	assert.True(t, IsValidCoordinate(90, 180))

	assert.False(t, IsValidCoordinate(90.1, 0))
	assert.False(t, IsValidCoordinate(0, 180.1))
	assert.False(t, IsValidCoordinate(math.NaN(), 0))
	assert.False(t, IsValidCoordinate(0, math.Inf(1)))
}
