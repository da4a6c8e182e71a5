package nowplaying

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fonoslabs/tremolo/api"
)

func TestSurface_PublishAndSnapshot(t *testing.T) {
	s := NewSurface(t.TempDir())

	s.Publish(api.NowPlayingInfo{Title: "Blue in Green", Artist: "Miles Davis", Rate: 1})

	info, _, ok := s.Snapshot()
	if !ok {
		t.Fatal("expected info after Publish")
	}
	if info.Title != "Blue in Green" || info.Rate != 1 {
		t.Errorf("unexpected info %+v", info)
	}

	s.Clear()
	if _, _, ok := s.Snapshot(); ok {
		t.Error("expected empty surface after Clear")
	}
}

func TestSurface_ArtworkFetchedAndCached(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte("png-bytes"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	s := NewSurface(dir)
	s.Publish(api.NowPlayingInfo{Title: "x", ArtworkURL: srv.URL + "/art.png"})

	waitFor(t, func() bool {
		_, art, _ := s.Snapshot()
		return string(art) == "png-bytes"
	})
	if hits != 1 {
		t.Errorf("artwork fetched %d times, want 1", hits)
	}

	// Second surface instance hits the disk cache, not the network.
	s2 := NewSurface(dir)
	s2.Publish(api.NowPlayingInfo{Title: "y", ArtworkURL: srv.URL + "/art.png"})
	_, art, _ := s2.Snapshot()
	if string(art) != "png-bytes" {
		t.Errorf("cached artwork = %q", art)
	}
	if hits != 1 {
		t.Errorf("cache miss caused %d fetches, want 1", hits)
	}
}

func TestSurface_StaleArtworkDropped(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
		w.Write([]byte("old-art"))
	}))
	defer srv.Close()

	s := NewSurface("")
	s.Publish(api.NowPlayingInfo{Title: "first", ArtworkURL: srv.URL + "/a.png"})
	// The next item replaces the first before its artwork arrives.
	s.Publish(api.NowPlayingInfo{Title: "second"})
	close(block)

	time.Sleep(50 * time.Millisecond)
	_, art, _ := s.Snapshot()
	if art != nil {
		t.Errorf("stale artwork patched in: %q", art)
	}
}

func TestSurface_FetchFailureOmitsArtwork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	s := NewSurface("")
	s.Publish(api.NowPlayingInfo{Title: "x", ArtworkURL: srv.URL + "/missing.png"})

	time.Sleep(50 * time.Millisecond)
	info, art, ok := s.Snapshot()
	if !ok || info.Title != "x" {
		t.Fatal("metadata must survive artwork failure")
	}
	if art != nil {
		t.Error("artwork should be omitted on fetch failure")
	}
}

func TestSurface_CommandsDropWhenFull(t *testing.T) {
	s := NewSurface("")
	for i := 0; i < 20; i++ {
		s.SendCommand(api.RemoteNext) // must never block
	}
	if len(s.Commands()) != 8 {
		t.Errorf("buffered commands = %d, want 8", len(s.Commands()))
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
