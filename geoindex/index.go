// Package geoindex keeps an in-memory projection of entity positions for
// proximity queries. It is never authoritative: the entity store wins on
// conflict, and the index is rebuilt from the store on startup.
package geoindex

import (
	"sort"
	"sync"
	"time"

	"lifeline/utils"
)

type Entry struct {
	ID        string
	Latitude  float64
	Longitude float64
	Status    string
	UpdatedAt time.Time
}

type Match struct {
	ID             string
	Status         string
	DistanceMeters float64
}

type indexed struct {
	Entry
	seq uint64
}

// Index is safe for concurrent use. Readers take a snapshot under RLock, so
// a concurrent upsert never produces a torn entry.
type Index struct {
	mu      sync.RWMutex
	entries map[string]indexed
	seq     uint64
}

func New() *Index {
	return &Index{
		entries: make(map[string]indexed),
	}
}

// Upsert replaces or inserts an entry. Callers validate coordinates before
// reaching the index.
func (ix *Index) Upsert(id string, latitude, longitude float64, status string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.seq++
	ix.entries[id] = indexed{
		Entry: Entry{
			ID:        id,
			Latitude:  latitude,
			Longitude: longitude,
			Status:    status,
			UpdatedAt: time.Now(),
		},
		seq: ix.seq,
	}
}

// Remove drops an entry. Removing an absent id is a no-op.
func (ix *Index) Remove(id string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	delete(ix.entries, id)
}

func (ix *Index) Get(id string) (Entry, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	e, ok := ix.entries[id]
	return e.Entry, ok
}

func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	return len(ix.entries)
}

// Nearby returns entries within radiusMeters of the given point, matching
// statusFilter if non-empty, ordered ascending by haversine distance. Ties
// are broken by update recency, most recently updated first, to prefer
// fresher location data.
func (ix *Index) Nearby(latitude, longitude, radiusMeters float64, statusFilter string) []Match {
	box := utils.CalculateBoundingBox(latitude, longitude, radiusMeters)

	ix.mu.RLock()
	candidates := make([]indexed, 0, len(ix.entries))
	for _, e := range ix.entries {
		if statusFilter != "" && e.Status != statusFilter {
			continue
		}
		if !box.Contains(e.Latitude, e.Longitude) {
			continue
		}
		candidates = append(candidates, e)
	}
	ix.mu.RUnlock()

	type scored struct {
		indexed
		distance float64
	}

	results := make([]scored, 0, len(candidates))
	for _, e := range candidates {
		d := utils.CalculateDistance(latitude, longitude, e.Latitude, e.Longitude)
		if d > radiusMeters {
			continue
		}
		results = append(results, scored{indexed: e, distance: d})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].distance != results[j].distance {
			return results[i].distance < results[j].distance
		}
		return results[i].seq > results[j].seq
	})

	matches := make([]Match, len(results))
	for i, r := range results {
		matches[i] = Match{
			ID:             r.ID,
			Status:         r.Status,
			DistanceMeters: r.distance,
		}
	}
	return matches
}

// Rebuild replaces the whole index with the given entries, used on startup
// to resync with the entity store.
func (ix *Index) Rebuild(entries []Entry) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.entries = make(map[string]indexed, len(entries))
	for _, e := range entries {
		ix.seq++
		if e.UpdatedAt.IsZero() {
			e.UpdatedAt = time.Now()
		}
		ix.entries[e.ID] = indexed{Entry: e, seq: ix.seq}
	}
}
