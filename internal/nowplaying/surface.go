// Package nowplaying publishes playback metadata to the system
// now-playing surface and feeds hardware transport commands back to the
// engine.
package nowplaying

import (
	"crypto/md5"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fonoslabs/tremolo/api"
)

// Surface holds the metadata currently shown on the lock-screen/control
// surface. Artwork is resolved best-effort: a cached image is used
// immediately, a remote one is fetched asynchronously and patched in
// place once it arrives, never delaying playback.
type Surface struct {
	mu       sync.RWMutex
	info     api.NowPlayingInfo
	artwork  []byte
	hasInfo  bool
	fetchSeq uint64

	cacheDir string
	client   *http.Client
	log      *logrus.Entry

	commands chan api.RemoteCommand
}

func NewSurface(cacheDir string) *Surface {
	return &Surface{
		cacheDir: cacheDir,
		client:   &http.Client{Timeout: 10 * time.Second},
		log:      logrus.WithField("component", "nowplaying"),
		commands: make(chan api.RemoteCommand, 8),
	}
}

// Publish replaces the displayed metadata. A change of artwork URL
// triggers (re)resolution; everything else is synchronous.
func (s *Surface) Publish(info api.NowPlayingInfo) {
	s.mu.Lock()
	artChanged := !s.hasInfo || info.ArtworkURL != s.info.ArtworkURL
	s.info = info
	s.hasInfo = true
	if artChanged {
		s.artwork = nil
		s.fetchSeq++
	}
	seq := s.fetchSeq
	s.mu.Unlock()

	if artChanged && info.ArtworkURL != "" {
		s.resolveArtwork(info.ArtworkURL, seq)
	}
}

// Clear empties the surface.
func (s *Surface) Clear() {
	s.mu.Lock()
	s.info = api.NowPlayingInfo{}
	s.artwork = nil
	s.hasInfo = false
	s.fetchSeq++
	s.mu.Unlock()
}

// Snapshot returns the displayed metadata and artwork, if any.
func (s *Surface) Snapshot() (api.NowPlayingInfo, []byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info, s.artwork, s.hasInfo
}

// Commands is the stream of hardware/lock-screen transport commands.
func (s *Surface) Commands() <-chan api.RemoteCommand {
	return s.commands
}

// SendCommand injects a transport command, as the platform remote-control
// layer would. Full channels drop the command rather than block.
func (s *Surface) SendCommand(cmd api.RemoteCommand) {
	select {
	case s.commands <- cmd:
	default:
	}
}

// resolveArtwork prefers the disk cache; misses are fetched in the
// background and patched in under the same sequence number so a stale
// fetch never overwrites the artwork of a newer item.
func (s *Surface) resolveArtwork(url string, seq uint64) {
	if data, err := os.ReadFile(s.cachePath(url)); err == nil {
		s.patchArtwork(data, seq)
		return
	}

	go func() {
		data, err := s.fetch(url)
		if err != nil {
			s.log.WithError(err).Debug("artwork fetch failed, omitting artwork")
			return
		}
		s.saveCache(url, data)
		s.patchArtwork(data, seq)
	}()
}

func (s *Surface) patchArtwork(data []byte, seq uint64) {
	s.mu.Lock()
	if s.fetchSeq == seq {
		s.artwork = data
	}
	s.mu.Unlock()
}

func (s *Surface) fetch(url string) ([]byte, error) {
	resp, err := s.client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetch artwork: status %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

func (s *Surface) cachePath(url string) string {
	return filepath.Join(s.cacheDir, fmt.Sprintf("%x", md5.Sum([]byte(url))))
}

func (s *Surface) saveCache(url string, data []byte) {
	if s.cacheDir == "" {
		return
	}
	if err := os.MkdirAll(s.cacheDir, 0755); err != nil {
		return
	}
	_ = os.WriteFile(s.cachePath(url), data, 0644)
}
