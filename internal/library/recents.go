package library

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/samber/lo"
)

// recentsLimit bounds the recently-played log.
const recentsLimit = 100

// PlayedEntry is one row of the recently-played log.
type PlayedEntry struct {
	TrackID  string    `json:"track_id"`
	PlayedAt time.Time `json:"played_at"`
}

// Recents is a bounded, persisted log of library tracks that started
// playing. Catalog previews are intentionally not recorded; the engine
// only calls RecordPlayed for library items.
type Recents struct {
	mu      sync.Mutex
	entries []PlayedEntry
	path    string
}

// LoadRecents reads the log from disk, or starts empty on first run.
func LoadRecents(path string) (*Recents, error) {
	r := &Recents{path: path}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read recents: %w", err)
	}
	if err := json.Unmarshal(data, &r.entries); err != nil {
		return nil, fmt.Errorf("unmarshal recents: %w", err)
	}
	return r, nil
}

// RecordPlayed prepends the track and persists the trimmed log.
// Re-playing a track moves it to the front instead of duplicating it.
func (r *Recents) RecordPlayed(trackID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = lo.Reject(r.entries, func(e PlayedEntry, _ int) bool {
		return e.TrackID == trackID
	})
	r.entries = append([]PlayedEntry{{TrackID: trackID, PlayedAt: time.Now()}}, r.entries...)
	if len(r.entries) > recentsLimit {
		r.entries = r.entries[:recentsLimit]
	}
	r.persist()
}

// TrackIDs returns the logged track IDs, most recent first.
func (r *Recents) TrackIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo.Map(r.entries, func(e PlayedEntry, _ int) string { return e.TrackID })
}

// Len returns the number of logged entries.
func (r *Recents) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Recents) persist() {
	if r.path == "" {
		return
	}
	data, err := json.MarshalIndent(r.entries, "", "  ")
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		return
	}
	_ = os.WriteFile(r.path, data, 0644)
}
