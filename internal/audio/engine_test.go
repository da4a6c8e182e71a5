package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fonoslabs/tremolo/api"
	playerrors "github.com/fonoslabs/tremolo/pkg/errors"
	"github.com/fonoslabs/tremolo/pkg/events"
)

// writeWAV writes a silent 16-bit stereo PCM file the direct path can
// really decode.
func writeWAV(t *testing.T, frames int) string {
	t.Helper()
	const rate = 44100
	dataLen := frames * 4

	buf := &bytes.Buffer{}
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(buf, binary.LittleEndian, uint16(2))
	binary.Write(buf, binary.LittleEndian, uint32(rate))
	binary.Write(buf, binary.LittleEndian, uint32(rate*4))
	binary.Write(buf, binary.LittleEndian, uint16(4))
	binary.Write(buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(dataLen))
	buf.Write(make([]byte, dataLen))

	path := filepath.Join(t.TempDir(), "test.wav")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func wavBytes(frames int) []byte {
	const rate = 44100
	dataLen := frames * 4
	buf := &bytes.Buffer{}
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1))
	binary.Write(buf, binary.LittleEndian, uint16(2))
	binary.Write(buf, binary.LittleEndian, uint32(rate))
	binary.Write(buf, binary.LittleEndian, uint32(rate*4))
	binary.Write(buf, binary.LittleEndian, uint16(4))
	binary.Write(buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(dataLen))
	buf.Write(make([]byte, dataLen))
	return buf.Bytes()
}

type fakeSurface struct {
	mu        sync.Mutex
	published []api.NowPlayingInfo
	cleared   int
}

func (s *fakeSurface) Publish(info api.NowPlayingInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.published = append(s.published, info)
}

func (s *fakeSurface) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleared++
}

func (s *fakeSurface) last() (api.NowPlayingInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.published) == 0 {
		return api.NowPlayingInfo{}, false
	}
	return s.published[len(s.published)-1], true
}

func (s *fakeSurface) clearCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cleared
}

type fakeRecents struct {
	mu  sync.Mutex
	ids []string
}

func (r *fakeRecents) RecordPlayed(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, id)
}

func (r *fakeRecents) recorded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ids...)
}

type enginePlatform struct {
	mu          sync.Mutex
	configured  []api.Quality
	activations int
}

func (p *enginePlatform) Configure(q api.Quality) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.configured = append(p.configured, q)
	return nil
}

func (p *enginePlatform) EnsureActive() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.activations++
	return nil
}

func (p *enginePlatform) Deactivate() error { return nil }

type fakeResolver struct {
	fallbacks map[string]string // primary URL -> fallback URL
	resolved  map[string]string // track ID -> stream URL
}

func (r *fakeResolver) LocalFileURL(it *api.PlayableItem) (string, bool) {
	return it.LocalPath, it.LocalPath != ""
}

func (r *fakeResolver) RemoteURL(it *api.PlayableItem) (*url.URL, bool) {
	if it.StreamURL == "" {
		return nil, false
	}
	u, err := url.Parse(it.StreamURL)
	return u, err == nil
}

func (r *fakeResolver) ResolveStreamURL(ctx context.Context, id string) (*url.URL, error) {
	raw, ok := r.resolved[id]
	if !ok {
		return nil, fmt.Errorf("unknown track %s", id)
	}
	return url.Parse(raw)
}

func (r *fakeResolver) FallbackURL(u *url.URL) (*url.URL, bool) {
	raw, ok := r.fallbacks[u.String()]
	if !ok {
		return nil, false
	}
	fu, err := url.Parse(raw)
	return fu, err == nil
}

// eventLog collects everything published on the bus.
type eventLog struct {
	mu     sync.Mutex
	events []api.AudioEvent
}

func (l *eventLog) watch(bus *events.EventBus) {
	ch := bus.SubscribeAll()
	go func() {
		for ev := range ch {
			l.mu.Lock()
			l.events = append(l.events, ev)
			l.mu.Unlock()
		}
	}()
}

func (l *eventLog) has(t api.EventType) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, ev := range l.events {
		if ev.Type == t {
			return true
		}
	}
	return false
}

type engineHarness struct {
	e       *Engine
	bus     *events.EventBus
	surface *fakeSurface
	recents *fakeRecents
	plat    *enginePlatform
	log     *eventLog

	mu         sync.Mutex
	drain      bool
	transports []*fakeTransport
}

func newEngineHarness(t *testing.T, resolver SourceResolver) *engineHarness {
	t.Helper()
	h := &engineHarness{
		bus:     events.NewEventBus(),
		surface: &fakeSurface{},
		recents: &fakeRecents{},
		plat:    &enginePlatform{},
		log:     &eventLog{},
	}
	h.log.watch(h.bus)

	h.e = NewEngine(Options{
		Platform: h.plat,
		Resolver: resolver,
		Recents:  h.recents,
		Surface:  h.surface,
		Bus:      h.bus,
		Volume:   0.8,
	})
	h.e.newTransport = func() transport {
		h.mu.Lock()
		defer h.mu.Unlock()
		ft := &fakeTransport{drain: h.drain}
		h.transports = append(h.transports, ft)
		return ft
	}
	h.e.newSink = func(rate, ch int) (pcmSink, error) {
		return &fakeSink{running: true}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	h.e.Start(ctx)
	return h
}

func (h *engineHarness) flush(t *testing.T) {
	t.Helper()
	done := make(chan struct{})
	h.e.do(func() { close(done) })
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("run loop stalled")
	}
}

func (h *engineHarness) transport(i int) *fakeTransport {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.transports[i]
}

func libraryItem(path string) api.PlayableItem {
	return api.PlayableItem{Source: api.SourceLibrary, ID: "lib-1", Title: "Test Track", Artist: "Tester", LocalPath: path}
}

func TestEngine_PlayLocalBecomesPlayingAsync(t *testing.T) {
	h := newEngineHarness(t, nil)
	path := writeWAV(t, 44100) // 1s

	h.e.Play(libraryItem(path))

	waitFor(t, h.e.Playing)
	st := h.e.GetState()
	if st.Duration != time.Second {
		t.Errorf("Duration = %v, want 1s", st.Duration)
	}
	if st.CurrentItem == nil || st.CurrentItem.ID != "lib-1" {
		t.Errorf("CurrentItem = %+v", st.CurrentItem)
	}
	if !h.log.has(api.EventTrackStarted) {
		t.Error("EventTrackStarted not emitted")
	}
	if got := h.recents.recorded(); len(got) != 1 || got[0] != "lib-1" {
		t.Errorf("recents = %v", got)
	}
	if info, ok := h.surface.last(); !ok || info.Rate != 1.0 || info.Title != "Test Track" {
		t.Errorf("surface = %+v ok=%v", info, ok)
	}
}

func TestEngine_PlaySupersedesActiveBackend(t *testing.T) {
	h := newEngineHarness(t, nil)
	pathA := writeWAV(t, 44100)
	pathB := writeWAV(t, 22050)

	h.e.Play(libraryItem(pathA))
	waitFor(t, h.e.Playing)

	itemB := libraryItem(pathB)
	itemB.ID = "lib-2"
	h.e.Play(itemB)

	waitFor(t, func() bool {
		st := h.e.GetState()
		return st.Status == api.StatusPlaying && st.CurrentItem != nil && st.CurrentItem.ID == "lib-2"
	})

	if h.transport(0).clearCount() == 0 {
		t.Error("first transport was not torn down")
	}

	var liveBackends int
	done := make(chan struct{})
	h.e.do(func() {
		if h.e.direct != nil {
			liveBackends++
		}
		if h.e.precision != nil {
			liveBackends++
		}
		close(done)
	})
	<-done
	if liveBackends != 1 {
		t.Errorf("live backends = %d, want exactly 1", liveBackends)
	}
}

func TestEngine_TrackFinishedResetsTime(t *testing.T) {
	h := newEngineHarness(t, nil)
	h.drain = true // transport consumes the stream so end-of-media fires
	path := writeWAV(t, 4410)

	h.e.Play(libraryItem(path))

	waitFor(t, func() bool {
		st := h.e.GetState()
		return st.Status == api.StatusStopped && h.log.has(api.EventTrackFinished)
	})

	st := h.e.GetState()
	if st.Position != 0 {
		t.Errorf("Position = %v, want 0 after finish", st.Position)
	}
	if st.CurrentItem == nil {
		t.Error("finished track should remain displayed")
	}
	if info, ok := h.surface.last(); !ok || info.Rate != 0 {
		t.Errorf("surface rate = %v after finish, want 0", info.Rate)
	}
}

func TestEngine_PauseResumeIdempotent(t *testing.T) {
	h := newEngineHarness(t, nil)
	path := writeWAV(t, 44100)

	// Pause with nothing playing is a no-op.
	h.e.Pause()
	h.flush(t)
	if st := h.e.GetState(); st.Status != api.StatusStopped {
		t.Fatalf("pause while stopped moved status to %v", st.Status)
	}

	h.e.Play(libraryItem(path))
	waitFor(t, h.e.Playing)

	h.e.Pause()
	h.e.Pause()
	h.flush(t)
	if st := h.e.GetState(); st.Status != api.StatusPaused {
		t.Fatalf("Status = %v, want paused", st.Status)
	}

	h.e.Resume()
	h.e.Resume()
	h.flush(t)
	if st := h.e.GetState(); st.Status != api.StatusPlaying {
		t.Fatalf("Status = %v, want playing", st.Status)
	}
	if h.plat.activations < 2 {
		t.Error("resume should reactivate the platform session")
	}
}

func TestEngine_TogglePlayPause(t *testing.T) {
	h := newEngineHarness(t, nil)
	path := writeWAV(t, 44100)

	// Toggling a stopped engine does nothing.
	h.e.TogglePlayPause()
	h.flush(t)
	if st := h.e.GetState(); st.Status != api.StatusStopped {
		t.Fatalf("Status = %v", st.Status)
	}

	h.e.Play(libraryItem(path))
	waitFor(t, h.e.Playing)

	h.e.TogglePlayPause()
	h.flush(t)
	if st := h.e.GetState(); st.Status != api.StatusPaused {
		t.Fatalf("Status = %v, want paused", st.Status)
	}

	h.e.TogglePlayPause()
	h.flush(t)
	if st := h.e.GetState(); st.Status != api.StatusPlaying {
		t.Fatalf("Status = %v, want playing", st.Status)
	}
}

func TestEngine_VolumeClamped(t *testing.T) {
	h := newEngineHarness(t, nil)

	tests := []struct {
		in   float64
		want float64
	}{
		{0.3, 0.3},
		{1.5, 1},
		{-2, 0},
		{math.NaN(), 0},
	}
	for _, tt := range tests {
		h.e.SetVolume(tt.in)
		h.flush(t)
		if got := h.e.GetState().Volume; got != tt.want {
			t.Errorf("SetVolume(%v) -> %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestEngine_NoPlayableSource(t *testing.T) {
	h := newEngineHarness(t, nil)

	h.e.Play(api.PlayableItem{Source: api.SourceLibrary, ID: "ghost"})
	h.flush(t)

	if err := h.e.LastError(); err != playerrors.ErrNoPlayableSource {
		t.Errorf("LastError = %v, want ErrNoPlayableSource", err)
	}
	st := h.e.GetState()
	if st.Status != api.StatusStopped || st.CurrentItem != nil {
		t.Errorf("state = %+v, want stopped with no item", st)
	}
	if !h.log.has(api.EventError) {
		t.Error("EventError not emitted")
	}
}

func TestEngine_CatalogItemsNotRecorded(t *testing.T) {
	h := newEngineHarness(t, nil)
	path := writeWAV(t, 44100)

	item := api.PlayableItem{Source: api.SourceCatalog, ID: "cat-1", Title: "Preview", LocalPath: path}
	h.e.Play(item)
	waitFor(t, h.e.Playing)

	if got := h.recents.recorded(); len(got) != 0 {
		t.Errorf("transient catalog playback recorded: %v", got)
	}
}

func TestEngine_StreamFallbackRetry(t *testing.T) {
	var mu sync.Mutex
	var hits []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits = append(hits, r.URL.Path)
		mu.Unlock()
		if r.URL.Path == "/bad.wav" {
			http.Error(w, "tls terminated", http.StatusInternalServerError)
			return
		}
		w.Write(wavBytes(4410))
	}))
	defer srv.Close()

	resolver := &fakeResolver{
		fallbacks: map[string]string{srv.URL + "/bad.wav": srv.URL + "/good.wav"},
	}
	h := newEngineHarness(t, resolver)

	item := api.PlayableItem{Source: api.SourceLibrary, ID: "s-1", Title: "Streamed", StreamURL: srv.URL + "/bad.wav"}
	h.e.Play(item)

	waitFor(t, h.e.Playing)

	mu.Lock()
	defer mu.Unlock()
	if len(hits) != 2 || hits[0] != "/bad.wav" || hits[1] != "/good.wav" {
		t.Errorf("hits = %v, want primary then one fallback", hits)
	}
}

func TestEngine_CatalogResolvesLazily(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(wavBytes(4410))
	}))
	defer srv.Close()

	resolver := &fakeResolver{
		resolved: map[string]string{"cat-7": srv.URL + "/t.wav"},
	}
	h := newEngineHarness(t, resolver)

	h.e.Play(api.PlayableItem{Source: api.SourceCatalog, ID: "cat-7", Title: "Lazy"})

	// Metadata shows immediately, before the URL resolves.
	waitFor(t, func() bool {
		st := h.e.GetState()
		return st.CurrentItem != nil && st.CurrentItem.ID == "cat-7"
	})
	waitFor(t, h.e.Playing)
}

func TestEngine_CatalogResolveFailure(t *testing.T) {
	resolver := &fakeResolver{resolved: map[string]string{}}
	h := newEngineHarness(t, resolver)

	h.e.Play(api.PlayableItem{Source: api.SourceCatalog, ID: "missing"})

	waitFor(t, func() bool { return h.e.LastError() != nil })
	if st := h.e.GetState(); st.Status != api.StatusStopped {
		t.Errorf("Status = %v, want stopped after resolve failure", st.Status)
	}
	if !h.log.has(api.EventError) {
		t.Error("EventError not emitted")
	}
}

func TestEngine_SeekDirectKeepsPauseState(t *testing.T) {
	h := newEngineHarness(t, nil)
	path := writeWAV(t, 88200) // 2s

	h.e.Play(libraryItem(path))
	waitFor(t, h.e.Playing)

	h.e.Seek(500 * time.Millisecond)
	h.flush(t)
	st := h.e.GetState()
	if st.Position != 500*time.Millisecond {
		t.Errorf("Position = %v, want 500ms", st.Position)
	}
	if st.Status != api.StatusPlaying {
		t.Errorf("Status = %v, seek must not pause", st.Status)
	}

	h.e.Pause()
	h.flush(t)
	h.e.Seek(time.Second)
	h.flush(t)
	if st := h.e.GetState(); st.Status != api.StatusPaused {
		t.Errorf("Status = %v, seek must not resume a paused session", st.Status)
	}
}

func TestEngine_StopClearsEverything(t *testing.T) {
	h := newEngineHarness(t, nil)
	path := writeWAV(t, 44100)

	h.e.Play(libraryItem(path))
	waitFor(t, h.e.Playing)

	h.e.Stop()
	h.flush(t)

	st := h.e.GetState()
	if st.Status != api.StatusStopped || st.CurrentItem != nil || st.Position != 0 || st.Duration != 0 {
		t.Errorf("state after stop = %+v", st)
	}
	if h.surface.clearCount() == 0 {
		t.Error("now-playing surface not cleared")
	}
	if h.transport(0).clearCount() == 0 {
		t.Error("transport not cleared")
	}
}

func TestEngine_PrecisionFallsBackToDirect(t *testing.T) {
	h := newEngineHarness(t, nil)

	// A .flac path routes to the precision backend, whose decode fails on
	// the garbage payload; playback falls back to direct, which also
	// cannot decode it, surfacing a terminal error.
	path := filepath.Join(t.TempDir(), "broken.flac")
	if err := os.WriteFile(path, []byte("not a flac"), 0644); err != nil {
		t.Fatal(err)
	}

	h.e.Play(libraryItem(path))

	waitFor(t, func() bool { return h.e.LastError() != nil })
	if !h.log.has(api.EventError) {
		t.Error("EventError not emitted")
	}
	if h.e.GetState().Status == api.StatusPlaying {
		t.Error("cannot be playing undecodable media")
	}
}

func TestEngine_SetQualityAffectsNextSession(t *testing.T) {
	h := newEngineHarness(t, nil)
	path := writeWAV(t, 4410)

	h.e.SetQuality(api.QualityLossless)
	h.flush(t)
	if got := h.e.GetState().Quality; got != api.QualityLossless {
		t.Fatalf("Quality = %v", got)
	}

	h.e.Play(libraryItem(path))
	waitFor(t, h.e.Playing)

	h.plat.mu.Lock()
	defer h.plat.mu.Unlock()
	if len(h.plat.configured) == 0 || h.plat.configured[len(h.plat.configured)-1] != api.QualityLossless {
		t.Errorf("platform configured with %v", h.plat.configured)
	}
}

func TestEngine_RemoteCommands(t *testing.T) {
	h := newEngineHarness(t, nil)
	path := writeWAV(t, 44100)

	commands := make(chan api.RemoteCommand)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.e.AttachRemote(ctx, commands)

	h.e.Play(libraryItem(path))
	waitFor(t, h.e.Playing)

	commands <- api.RemotePause
	waitFor(t, func() bool { return h.e.GetState().Status == api.StatusPaused })

	commands <- api.RemotePlay
	waitFor(t, h.e.Playing)

	commands <- api.RemoteToggle
	waitFor(t, func() bool { return h.e.GetState().Status == api.StatusPaused })

	commands <- api.RemoteNext
	waitFor(t, func() bool { return h.log.has(api.EventRemoteNext) })
}
