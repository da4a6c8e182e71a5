package audio

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fonoslabs/tremolo/api"
	"github.com/fonoslabs/tremolo/pkg/events"
)

// PlatformSession abstracts the device audio session: category and
// preferred-format configuration plus activation.
type PlatformSession interface {
	Configure(q api.Quality) error
	EnsureActive() error
	Deactivate() error
}

// SourceResolver turns an item into something playable: a local file if
// the backing file exists, the item's own stream URL, or a lazily
// resolved catalog URL.
type SourceResolver interface {
	LocalFileURL(item *api.PlayableItem) (string, bool)
	RemoteURL(item *api.PlayableItem) (*url.URL, bool)
	ResolveStreamURL(ctx context.Context, trackID string) (*url.URL, error)
	FallbackURL(u *url.URL) (*url.URL, bool)
}

// NowPlayingSurface receives metadata for the system now-playing display.
type NowPlayingSurface interface {
	Publish(info api.NowPlayingInfo)
	Clear()
}

// RecentRecorder records a library track as recently played.
type RecentRecorder interface {
	RecordPlayed(trackID string)
}

// Engine is the playback state machine. It is the single writer of the
// published playback state: all commands and all asynchronous completions
// are marshaled onto one run-loop goroutine before they may mutate it.
// Exactly one Engine should exist per audio output; it is constructed
// explicitly and passed by reference to its consumers.
type Engine struct {
	mu      sync.RWMutex
	state   api.PlaybackState
	lastErr error

	sess        *playSession
	backendKind BackendKind
	direct      *DirectBackend
	precision   *PrecisionBackend

	platform PlatformSession
	resolver SourceResolver
	recents  RecentRecorder
	surface  NowPlayingSurface
	bus      *events.EventBus

	tasks  chan func()
	runCtx context.Context
	log    *logrus.Entry

	// factories, replaced in tests
	newTransport func() transport
	newSink      sinkFactory
}

// Options wires the engine's collaborators. Any of them may be nil except
// in a full player build.
type Options struct {
	Platform PlatformSession
	Resolver SourceResolver
	Recents  RecentRecorder
	Surface  NowPlayingSurface
	Bus      *events.EventBus
	Quality  api.Quality
	Volume   float64
}

// NewEngine creates a stopped engine. Call Start to begin processing.
func NewEngine(opts Options) *Engine {
	vol := opts.Volume
	if vol <= 0 {
		vol = 0.5
	}
	e := &Engine{
		sess:     &playSession{},
		platform: opts.Platform,
		resolver: opts.Resolver,
		recents:  opts.Recents,
		surface:  opts.Surface,
		bus:      opts.Bus,
		tasks:    make(chan func(), 128),
		log:      logrus.WithField("component", "engine"),
		state: api.PlaybackState{
			Status:  api.StatusStopped,
			Quality: opts.Quality,
			Volume:  vol,
		},
	}
	e.newTransport = func() transport { return speakerTransport{} }
	e.newSink = newOtoSink
	return e
}

// Start begins the engine run loop.
func (e *Engine) Start(ctx context.Context) {
	e.runCtx = ctx
	go e.run(ctx)
}

func (e *Engine) run(ctx context.Context) {
	// The direct transport has no render clock of its own; poll it the
	// way the precision clock polls its counter, just coarser.
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.teardown()
			return
		case fn := <-e.tasks:
			fn()
		case <-ticker.C:
			e.tickPosition()
		}
	}
}

// do marshals fn onto the run loop.
func (e *Engine) do(fn func()) {
	if e.runCtx != nil {
		select {
		case e.tasks <- fn:
		case <-e.runCtx.Done():
		}
		return
	}
	e.tasks <- fn
}

// GetState returns a copy of the published playback state.
func (e *Engine) GetState() *api.PlaybackState {
	e.mu.RLock()
	defer e.mu.RUnlock()

	state := e.state
	if e.state.CurrentItem != nil {
		item := *e.state.CurrentItem
		state.CurrentItem = &item
	}
	return &state
}

// Playing reports whether audio is actively rendering. Part of the
// interruption monitor's controller surface.
func (e *Engine) Playing() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.Status == api.StatusPlaying
}

// LastError returns the most recent terminal playback error.
func (e *Engine) LastError() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastErr
}

func (e *Engine) emit(t api.EventType, payload interface{}) {
	if e.bus != nil {
		e.bus.Publish(api.AudioEvent{Type: t, Payload: payload})
	}
}

// publishState pushes the current snapshot to the bus and the system
// now-playing surface. Run-loop only.
func (e *Engine) publishState() {
	st := e.GetState()
	e.emit(api.EventStateChange, st)
	e.syncNowPlaying(st)
}

func (e *Engine) syncNowPlaying(st *api.PlaybackState) {
	if e.surface == nil {
		return
	}
	if st == nil {
		st = e.GetState()
	}
	if st.CurrentItem == nil {
		e.surface.Clear()
		return
	}
	rate := 0.0
	if st.Status == api.StatusPlaying {
		rate = 1.0
	}
	e.surface.Publish(api.NowPlayingInfo{
		Title:      st.CurrentItem.Title,
		Artist:     st.CurrentItem.Artist,
		Album:      st.CurrentItem.Album,
		ArtworkURL: st.CurrentItem.ArtworkURL,
		Elapsed:    st.Position,
		Duration:   st.Duration,
		Rate:       rate,
	})
}

// setPosition updates elapsed time. Run-loop only.
func (e *Engine) setPosition(pos time.Duration) {
	e.mu.Lock()
	e.state.Position = pos
	e.mu.Unlock()
	e.emit(api.EventPositionUpdate, pos)
	e.syncNowPlaying(nil)
}

func (e *Engine) tickPosition() {
	if e.backendKind != BackendDirect || e.direct == nil {
		return
	}
	e.mu.RLock()
	playing := e.state.Status == api.StatusPlaying
	e.mu.RUnlock()
	if playing {
		e.setPosition(e.direct.Position())
	}
}

// teardown releases whichever backend is live and retires the session
// generation, cancelling every in-flight callback and load. Run-loop only.
func (e *Engine) teardown() {
	if e.direct != nil {
		e.direct.Close()
		e.direct = nil
	}
	if e.precision != nil {
		e.precision.Close()
		e.precision = nil
	}
	e.backendKind = BackendNone
	e.sess.endSeek()
	e.sess.bump()
}

// localPath, remoteURL and fallbackURL consult the resolver when wired
// and fall back to the item's own fields otherwise.
func (e *Engine) localPath(it *api.PlayableItem) (string, bool) {
	if e.resolver != nil {
		return e.resolver.LocalFileURL(it)
	}
	return it.LocalPath, it.LocalPath != ""
}

func (e *Engine) remoteURL(it *api.PlayableItem) (*url.URL, bool) {
	if e.resolver != nil {
		return e.resolver.RemoteURL(it)
	}
	if it.StreamURL == "" {
		return nil, false
	}
	u, err := url.Parse(it.StreamURL)
	return u, err == nil
}

func (e *Engine) fallbackURL(u *url.URL) (*url.URL, bool) {
	if e.resolver == nil {
		return nil, false
	}
	return e.resolver.FallbackURL(u)
}
