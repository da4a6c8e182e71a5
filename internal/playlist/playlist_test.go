package playlist

import (
	"testing"

	"github.com/fonoslabs/tremolo/api"
	playerrors "github.com/fonoslabs/tremolo/pkg/errors"
)

func TestManager_CreateAndLoad(t *testing.T) {
	dir := t.TempDir()

	m := NewManager(dir)
	created, err := m.Create("Favorites", "desk tracks")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := m.AddTrack(created.ID, &api.Track{ID: "t1", Title: "So What"}); err != nil {
		t.Fatalf("AddTrack: %v", err)
	}

	// A fresh manager sees the persisted playlist.
	m2 := NewManager(dir)
	if err := m2.LoadAll(); err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	loaded, err := m2.GetByID(created.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if loaded.Name != "Favorites" || len(loaded.Tracks) != 1 {
		t.Errorf("loaded = %+v", loaded)
	}
}

func TestManager_RemoveTrack(t *testing.T) {
	m := NewManager(t.TempDir())
	p, _ := m.Create("mix", "")
	m.AddTrack(p.ID, &api.Track{ID: "t1"})
	m.AddTrack(p.ID, &api.Track{ID: "t2"})

	if err := m.RemoveTrack(p.ID, "t1"); err != nil {
		t.Fatalf("RemoveTrack: %v", err)
	}
	got, _ := m.GetByID(p.ID)
	if len(got.Tracks) != 1 || got.Tracks[0].ID != "t2" {
		t.Errorf("tracks = %+v", got.Tracks)
	}

	if err := m.RemoveTrack(p.ID, "t1"); err != playerrors.ErrTrackNotFound {
		t.Errorf("err = %v, want ErrTrackNotFound", err)
	}
	if err := m.RemoveTrack("nope", "t2"); err != playerrors.ErrPlaylistNotFound {
		t.Errorf("err = %v, want ErrPlaylistNotFound", err)
	}
}

func TestManager_Delete(t *testing.T) {
	m := NewManager(t.TempDir())
	p, _ := m.Create("gone", "")

	if err := m.Delete(p.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := m.GetByID(p.ID); err != playerrors.ErrPlaylistNotFound {
		t.Errorf("err = %v, want ErrPlaylistNotFound", err)
	}
	if err := m.Delete(p.ID); err != playerrors.ErrPlaylistNotFound {
		t.Errorf("double delete err = %v", err)
	}
}
