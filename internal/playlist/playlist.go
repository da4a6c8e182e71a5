// Package playlist manages user playlists, the browsing queue and the
// controller that advances playback between tracks.
package playlist

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/fonoslabs/tremolo/api"
	playerrors "github.com/fonoslabs/tremolo/pkg/errors"
)

// Manager handles playlist CRUD with one JSON file per playlist.
type Manager struct {
	playlists map[string]*api.Playlist
	basePath  string
	mu        sync.RWMutex
}

func NewManager(basePath string) *Manager {
	return &Manager{
		playlists: make(map[string]*api.Playlist),
		basePath:  basePath,
	}
}

// Create creates and persists a new playlist.
func (m *Manager) Create(name, description string) (*api.Playlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := generatePlaylistID(name)
	now := time.Now()

	playlist := &api.Playlist{
		ID:          id,
		Name:        name,
		Description: description,
		Tracks:      []api.Track{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	m.playlists[id] = playlist

	if err := m.savePlaylist(playlist); err != nil {
		delete(m.playlists, id)
		return nil, err
	}
	return playlist, nil
}

// GetByID returns a playlist by ID.
func (m *Manager) GetByID(id string) (*api.Playlist, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	playlist, exists := m.playlists[id]
	if !exists {
		return nil, playerrors.ErrPlaylistNotFound
	}
	return playlist, nil
}

// GetAll returns all playlists.
func (m *Manager) GetAll() []*api.Playlist {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return lo.Values(m.playlists)
}

// Update renames a playlist.
func (m *Manager) Update(id, name, description string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	playlist, exists := m.playlists[id]
	if !exists {
		return playerrors.ErrPlaylistNotFound
	}

	playlist.Name = name
	playlist.Description = description
	playlist.UpdatedAt = time.Now()

	return m.savePlaylist(playlist)
}

// Delete removes a playlist and its file.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.playlists[id]; !exists {
		return playerrors.ErrPlaylistNotFound
	}

	path := filepath.Join(m.basePath, id+".json")
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete playlist file: %w", err)
	}

	delete(m.playlists, id)
	return nil
}

// AddTrack appends a track to a playlist.
func (m *Manager) AddTrack(playlistID string, track *api.Track) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	playlist, exists := m.playlists[playlistID]
	if !exists {
		return playerrors.ErrPlaylistNotFound
	}

	playlist.Tracks = append(playlist.Tracks, *track)
	playlist.UpdatedAt = time.Now()

	return m.savePlaylist(playlist)
}

// RemoveTrack removes a track from a playlist.
func (m *Manager) RemoveTrack(playlistID, trackID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	playlist, exists := m.playlists[playlistID]
	if !exists {
		return playerrors.ErrPlaylistNotFound
	}

	before := len(playlist.Tracks)
	playlist.Tracks = lo.Reject(playlist.Tracks, func(t api.Track, _ int) bool {
		return t.ID == trackID
	})
	if len(playlist.Tracks) == before {
		return playerrors.ErrTrackNotFound
	}

	playlist.UpdatedAt = time.Now()
	return m.savePlaylist(playlist)
}

func (m *Manager) savePlaylist(playlist *api.Playlist) error {
	if err := os.MkdirAll(m.basePath, 0755); err != nil {
		return fmt.Errorf("create playlist directory: %w", err)
	}

	data, err := json.MarshalIndent(playlist, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal playlist: %w", err)
	}

	path := filepath.Join(m.basePath, playlist.ID+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write playlist file: %w", err)
	}
	return nil
}

// LoadAll loads every playlist file from the base directory. Unreadable
// or invalid files are skipped.
func (m *Manager) LoadAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.MkdirAll(m.basePath, 0755); err != nil {
		return fmt.Errorf("create playlist directory: %w", err)
	}

	entries, err := os.ReadDir(m.basePath)
	if err != nil {
		return fmt.Errorf("read playlist directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(m.basePath, entry.Name()))
		if err != nil {
			continue
		}

		var playlist api.Playlist
		if err := json.Unmarshal(data, &playlist); err != nil {
			continue
		}

		m.playlists[playlist.ID] = &playlist
	}
	return nil
}

func generatePlaylistID(name string) string {
	return fmt.Sprintf("playlist-%d", time.Now().UnixNano())
}
