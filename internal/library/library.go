// Package library holds the scanned on-device music collection and the
// recently-played log.
package library

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/fonoslabs/tremolo/api"
	playerrors "github.com/fonoslabs/tremolo/pkg/errors"
)

// Library is the music collection with secondary indices for browsing.
type Library struct {
	Tracks      map[string]*api.Track `json:"tracks"`
	ScanPaths   []string              `json:"scan_paths"`
	LastScanned time.Time             `json:"last_scanned"`
	TotalTracks int                   `json:"total_tracks"`

	artistIndex map[string][]string
	albumIndex  map[string][]string
	genreIndex  map[string][]string

	mu      sync.RWMutex
	scanner *Scanner
	log     *logrus.Entry
}

// NewLibrary creates an empty library.
func NewLibrary() *Library {
	return &Library{
		Tracks:      make(map[string]*api.Track),
		artistIndex: make(map[string][]string),
		albumIndex:  make(map[string][]string),
		genreIndex:  make(map[string][]string),
		scanner:     NewScanner(4),
		log:         logrus.WithField("component", "library"),
	}
}

// AddTrack adds a track and updates the indices.
func (l *Library) AddTrack(track *api.Track) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.Tracks[track.ID] = track
	l.TotalTracks = len(l.Tracks)

	if track.Artist != "" {
		l.artistIndex[track.Artist] = append(l.artistIndex[track.Artist], track.ID)
	}
	if track.Album != "" {
		l.albumIndex[track.Album] = append(l.albumIndex[track.Album], track.ID)
	}
	if track.Genre != "" {
		l.genreIndex[track.Genre] = append(l.genreIndex[track.Genre], track.ID)
	}
}

// GetTrack returns a track by ID.
func (l *Library) GetTrack(id string) (*api.Track, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	track, exists := l.Tracks[id]
	if !exists {
		return nil, playerrors.ErrTrackNotFound
	}
	return track, nil
}

// GetAllTracks returns every track sorted by artist, album, track number.
func (l *Library) GetAllTracks() []*api.Track {
	l.mu.RLock()
	defer l.mu.RUnlock()

	tracks := lo.Values(l.Tracks)
	sort.Slice(tracks, func(i, j int) bool {
		if tracks[i].Artist != tracks[j].Artist {
			return tracks[i].Artist < tracks[j].Artist
		}
		if tracks[i].Album != tracks[j].Album {
			return tracks[i].Album < tracks[j].Album
		}
		return tracks[i].TrackNum < tracks[j].TrackNum
	})
	return tracks
}

// GetTracksByArtist returns all tracks by an artist.
func (l *Library) GetTracksByArtist(artist string) []*api.Track {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.tracksByIDs(l.artistIndex[artist])
}

// GetTracksByAlbum returns all tracks on an album.
func (l *Library) GetTracksByAlbum(album string) []*api.Track {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.tracksByIDs(l.albumIndex[album])
}

func (l *Library) tracksByIDs(ids []string) []*api.Track {
	if len(ids) == 0 {
		return nil
	}
	return lo.FilterMap(ids, func(id string, _ int) (*api.Track, bool) {
		track, ok := l.Tracks[id]
		return track, ok
	})
}

// GetArtists returns all unique artists, sorted.
func (l *Library) GetArtists() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	artists := lo.Keys(l.artistIndex)
	sort.Strings(artists)
	return artists
}

// GetAlbums returns all unique albums, sorted.
func (l *Library) GetAlbums() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	albums := lo.Keys(l.albumIndex)
	sort.Strings(albums)
	return albums
}

// Search matches the query against title, artist and album. Title
// matches sort first.
func (l *Library) Search(query string) []*api.Track {
	l.mu.RLock()
	defer l.mu.RUnlock()

	query = strings.ToLower(query)
	results := lo.Filter(lo.Values(l.Tracks), func(t *api.Track, _ int) bool {
		return strings.Contains(strings.ToLower(t.Title), query) ||
			strings.Contains(strings.ToLower(t.Artist), query) ||
			strings.Contains(strings.ToLower(t.Album), query)
	})

	sort.SliceStable(results, func(i, j int) bool {
		iTitle := strings.Contains(strings.ToLower(results[i].Title), query)
		jTitle := strings.Contains(strings.ToLower(results[j].Title), query)
		return iTitle && !jTitle
	})
	return results
}

// RemoveTrack removes a track and its index entries.
func (l *Library) RemoveTrack(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	track, exists := l.Tracks[id]
	if !exists {
		return playerrors.ErrTrackNotFound
	}

	l.removeFromIndex(l.artistIndex, track.Artist, id)
	l.removeFromIndex(l.albumIndex, track.Album, id)
	l.removeFromIndex(l.genreIndex, track.Genre, id)

	delete(l.Tracks, id)
	l.TotalTracks = len(l.Tracks)
	return nil
}

func (l *Library) removeFromIndex(index map[string][]string, key, trackID string) {
	if key == "" {
		return
	}
	index[key] = lo.Without(index[key], trackID)
	if len(index[key]) == 0 {
		delete(index, key)
	}
}

// Scan walks the given paths and adds every supported file.
func (l *Library) Scan(ctx context.Context, paths []string) error {
	l.ScanPaths = paths
	tracks, errs := l.scanner.Scan(ctx, paths)

	go func() {
		for err := range errs {
			l.log.WithError(err).Warn("scan error")
		}
	}()

	added := 0
	for track := range tracks {
		l.AddTrack(track)
		added++
	}

	l.mu.Lock()
	l.LastScanned = time.Now()
	l.mu.Unlock()

	l.log.WithFields(logrus.Fields{"paths": len(paths), "tracks": added}).Info("library scan complete")
	return nil
}

// Clear removes all tracks.
func (l *Library) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.Tracks = make(map[string]*api.Track)
	l.artistIndex = make(map[string][]string)
	l.albumIndex = make(map[string][]string)
	l.genreIndex = make(map[string][]string)
	l.TotalTracks = 0
}

// Save persists the library to a JSON file.
func (l *Library) Save(path string) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal library: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write library file: %w", err)
	}
	return nil
}

// LoadLibrary loads a library from disk, or returns an empty one on
// first run.
func LoadLibrary(path string) (*Library, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return NewLibrary(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read library file: %w", err)
	}

	var lib Library
	if err := json.Unmarshal(data, &lib); err != nil {
		return nil, fmt.Errorf("unmarshal library: %w", err)
	}

	lib.scanner = NewScanner(4)
	lib.log = logrus.WithField("component", "library")
	lib.rebuildIndices()
	return &lib, nil
}

func (l *Library) rebuildIndices() {
	l.artistIndex = make(map[string][]string)
	l.albumIndex = make(map[string][]string)
	l.genreIndex = make(map[string][]string)

	for _, track := range l.Tracks {
		if track.Artist != "" {
			l.artistIndex[track.Artist] = append(l.artistIndex[track.Artist], track.ID)
		}
		if track.Album != "" {
			l.albumIndex[track.Album] = append(l.albumIndex[track.Album], track.ID)
		}
		if track.Genre != "" {
			l.genreIndex[track.Genre] = append(l.genreIndex[track.Genre], track.ID)
		}
	}
	l.TotalTracks = len(l.Tracks)
}

// AddFile adds a single audio file from any location.
func (l *Library) AddFile(filePath string) (*api.Track, error) {
	track, err := l.scanner.ScanFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}
	l.AddTrack(track)
	return track, nil
}
