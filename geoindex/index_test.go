package geoindex

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertAndGet(t *testing.T) {
	ix := New()

	ix.Upsert("a", 12.9716, 77.5946, "available")
	entry, ok := ix.Get("a")
	require.True(t, ok)
	assert.Equal(t, "available", entry.Status)
	assert.InDelta(t, 12.9716, entry.Latitude, 1e-9)

	// Upsert replaces in place.
	ix.Upsert("a", 13.0000, 77.6000, "onDuty")
	entry, _ = ix.Get("a")
	assert.Equal(t, "onDuty", entry.Status)
	assert.InDelta(t, 13.0000, entry.Latitude, 1e-9)
	assert.Equal(t, 1, ix.Len())
}

func TestRemoveAbsentIsNoOp(t *testing.T) {
	ix := New()
	ix.Remove("ghost")

	ix.Upsert("a", 12.9716, 77.5946, "available")
	ix.Remove("a")
	_, ok := ix.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, ix.Len())
}

func TestNearbyOrdersByDistance(t *testing.T) {
	ix := New()

	// Bengaluru city center and points progressively further away.
	ix.Upsert("far", 13.0500, 77.5946, "available")  // ~8.7km north
	ix.Upsert("near", 12.9750, 77.5946, "available") // ~380m north
	ix.Upsert("mid", 13.0000, 77.5946, "available")  // ~3.2km north

	matches := ix.Nearby(12.9716, 77.5946, 10000, "available")
	require.Len(t, matches, 3)
	assert.Equal(t, "near", matches[0].ID)
	assert.Equal(t, "mid", matches[1].ID)
	assert.Equal(t, "far", matches[2].ID)
	assert.Less(t, matches[0].DistanceMeters, matches[1].DistanceMeters)
}

func TestNearbyRadiusAndStatusFilter(t *testing.T) {
	ix := New()

	ix.Upsert("inside", 12.9750, 77.5946, "available")
	ix.Upsert("outside", 13.5000, 78.5000, "available") // ~115km away
	ix.Upsert("busy", 12.9760, 77.5946, "onDuty")

	matches := ix.Nearby(12.9716, 77.5946, 10000, "available")
	require.Len(t, matches, 1)
	assert.Equal(t, "inside", matches[0].ID)

	// Empty filter matches every status inside the radius.
	matches = ix.Nearby(12.9716, 77.5946, 10000, "")
	assert.Len(t, matches, 2)
}

func TestNearbyTieBreaksOnRecency(t *testing.T) {
	ix := New()

	// Identical coordinates: the later upsert wins the tie.
	ix.Upsert("older", 12.9750, 77.5946, "available")
	ix.Upsert("newer", 12.9750, 77.5946, "available")

	matches := ix.Nearby(12.9716, 77.5946, 10000, "available")
	require.Len(t, matches, 2)
	assert.Equal(t, "newer", matches[0].ID)
	assert.Equal(t, "older", matches[1].ID)
}

func TestRebuildReplacesContents(t *testing.T) {
	ix := New()

	ix.Upsert("stale", 12.9716, 77.5946, "available")

	ix.Rebuild([]Entry{
		{ID: "a", Latitude: 12.9716, Longitude: 77.5946, Status: "pending"},
		{ID: "b", Latitude: 12.9750, Longitude: 77.5946, Status: "pending"},
	})

	assert.Equal(t, 2, ix.Len())
	_, ok := ix.Get("stale")
	assert.False(t, ok)
	_, ok = ix.Get("a")
	assert.True(t, ok)
}

func TestConcurrentAccess(t *testing.T) {
	ix := New()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("unit-%d", i%4)
			for j := 0; j < 200; j++ {
				ix.Upsert(id, 12.9716+float64(j)*1e-5, 77.5946, "available")
				ix.Nearby(12.9716, 77.5946, 10000, "available")
				ix.Get(id)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 4, ix.Len())
}
