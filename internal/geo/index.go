package geo

import (
	"sync"
	"time"
)

// Location is the last known position of a nurse. Entries live only in
// process memory and are overwritten on every update.
type Location struct {
	NurseID   string    `json:"nurse_id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Available bool      `json:"available"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Match is a location paired with its distance from a query center.
type Match struct {
	Location       Location `json:"location"`
	DistanceMeters float64  `json:"distance_meters"`
}

// Index holds last-write-wins nurse positions. Updates are independent
// upserts; readers take a snapshot, so a location change mid-scan does not
// affect an in-flight query.
type Index struct {
	mu      sync.RWMutex
	entries map[string]Location
	now     func() time.Time
}

func NewIndex() *Index {
	return &Index{
		entries: make(map[string]Location),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (i *Index) Update(nurseID string, lat, lon float64, available bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.entries[nurseID] = Location{
		NurseID:   nurseID,
		Latitude:  lat,
		Longitude: lon,
		Available: available,
		UpdatedAt: i.now(),
	}
}

func (i *Index) Lookup(nurseID string) (Location, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	entry, ok := i.entries[nurseID]
	return entry, ok
}

func (i *Index) Remove(nurseID string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.entries, nurseID)
}

// AllAvailable returns a snapshot of every available entry, unordered.
func (i *Index) AllAvailable() []Location {
	i.mu.RLock()
	defer i.mu.RUnlock()
	var out []Location
	for _, entry := range i.entries {
		if entry.Available {
			out = append(out, entry)
		}
	}
	return out
}

// Nearby returns the available entries within radiusMeters of the center,
// each with its computed distance.
func (i *Index) Nearby(centerLat, centerLon, radiusMeters float64) []Match {
	var out []Match
	for _, entry := range i.AllAvailable() {
		distance := DistanceMeters(entry.Latitude, entry.Longitude, centerLat, centerLon)
		if distance <= radiusMeters {
			out = append(out, Match{Location: entry, DistanceMeters: distance})
		}
	}
	return out
}

// EvictStale drops entries not updated within the window and returns the
// number removed.
func (i *Index) EvictStale(window time.Duration) int {
	if window <= 0 {
		return 0
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	cutoff := i.now().Add(-window)
	removed := 0
	for nurseID, entry := range i.entries {
		if entry.UpdatedAt.Before(cutoff) {
			delete(i.entries, nurseID)
			removed++
		}
	}
	return removed
}
