package audio

import (
	"context"
	"net/url"
	"time"

	"github.com/fonoslabs/tremolo/api"
	playerrors "github.com/fonoslabs/tremolo/pkg/errors"
)

// Play starts playback of an item, unconditionally stopping whatever was
// playing first. Replaying the current item restarts it from zero; there
// is deliberately no same-track coalescing, remote "play" while already
// playing relies on the restart.
func (e *Engine) Play(item api.PlayableItem) {
	e.do(func() { e.playItem(item) })
}

// playItem runs the stop-then-start sequence synchronously on the run
// loop; readiness of the new backend may arrive later via callbacks.
func (e *Engine) playItem(item api.PlayableItem) {
	e.teardown()
	gen := e.sess.current()

	if e.platform != nil {
		e.mu.RLock()
		quality := e.state.Quality
		e.mu.RUnlock()
		if err := e.platform.Configure(quality); err != nil {
			e.log.WithError(err).Warn("session configuration failed, continuing degraded")
		}
		if err := e.platform.EnsureActive(); err != nil {
			e.log.WithError(err).Warn("session activation failed, continuing degraded")
		}
	}

	it := item // engine-owned copy for this attempt

	if path, ok := e.localPath(&it); ok {
		it.LocalPath = path
		e.setCurrent(&it)
		e.startLocal(&it)
		return
	}
	it.LocalPath = ""

	if u, ok := e.remoteURL(&it); ok {
		e.setCurrent(&it)
		e.startStream(&it, u)
		return
	}

	if it.Source == api.SourceCatalog && e.resolver != nil && it.ID != "" {
		// Show the item from its known metadata right away; the real
		// backend is swapped in once the URL resolves.
		e.setCurrent(&it)
		e.resolveAndPlay(&it, gen)
		return
	}

	e.mu.Lock()
	e.lastErr = playerrors.ErrNoPlayableSource
	e.state.CurrentItem = nil
	e.state.Status = api.StatusStopped
	e.state.Position = 0
	e.state.Duration = 0
	e.mu.Unlock()
	e.emit(api.EventError, playerrors.ErrNoPlayableSource)
	e.publishState()
}

// setCurrent installs the item as the loading session. Loading is folded
// into the playing entry transition; there is no separate observable
// loading state.
func (e *Engine) setCurrent(it *api.PlayableItem) {
	e.mu.Lock()
	item := *it
	e.state.CurrentItem = &item
	e.state.Position = 0
	e.state.Duration = 0
	e.state.Status = api.StatusStopped
	e.mu.Unlock()
	e.publishState()
}

func (e *Engine) startLocal(it *api.PlayableItem) {
	if SelectBackend(it) == BackendPrecision {
		err := e.startPrecision(it)
		if err == nil {
			return
		}
		e.log.WithError(err).Warn("precision start failed, falling back to direct")
	}
	e.startDirect(it, LoadRequest{Path: it.LocalPath})
}

func (e *Engine) startStream(it *api.PlayableItem, u *url.URL) {
	req := LoadRequest{URL: u}
	if fb, ok := e.fallbackURL(u); ok {
		req.Fallback = fb
	}
	e.startDirect(it, req)
}

// startPrecision loads and starts the precision path. Any failure leaves
// no backend installed so the caller can fall back to direct.
func (e *Engine) startPrecision(it *api.PlayableItem) error {
	p := newPrecisionBackend(e.do, e.sess, e.platform, e.newSink)
	if err := p.Load(it.LocalPath); err != nil {
		return err
	}
	if err := p.Start(); err != nil {
		p.Close()
		return err
	}

	e.precision = p
	e.backendKind = BackendPrecision

	e.mu.RLock()
	vol := e.state.Volume
	e.mu.RUnlock()
	p.SetVolume(vol)

	p.onFinished = func() {
		if e.precision != p {
			return
		}
		e.handleFinished()
	}
	p.onPosition = func(pos time.Duration) {
		e.do(func() {
			if e.precision != p {
				return
			}
			e.setPosition(pos)
		})
	}

	// Duration comes straight from the decoded file, before playback.
	e.mu.Lock()
	e.state.Duration = p.Duration()
	e.state.Position = 0
	e.state.Status = api.StatusPlaying
	e.mu.Unlock()

	p.ScheduleFromStart()

	e.recordPlayed(it)
	e.emit(api.EventTrackStarted, e.GetState().CurrentItem)
	e.publishState()
	return nil
}

// startDirect installs a direct backend and kicks off its async load.
// Completion callbacks are dropped once the backend is superseded:
// tearing down the transport is the cancellation mechanism here.
func (e *Engine) startDirect(it *api.PlayableItem, req LoadRequest) {
	b := newDirectBackend(e.do, e.newTransport())
	e.direct = b
	e.backendKind = BackendDirect

	e.mu.RLock()
	vol := e.state.Volume
	e.mu.RUnlock()
	b.SetVolume(vol)

	item := *it
	req.OnReady = func(d time.Duration) {
		if e.direct != b {
			return
		}
		e.mu.Lock()
		e.state.Duration = d
		e.state.Status = api.StatusPlaying
		e.mu.Unlock()
		e.recordPlayed(&item)
		e.emit(api.EventTrackStarted, e.GetState().CurrentItem)
		e.publishState()
	}
	req.OnFailure = func(err error) {
		if e.direct != b {
			return
		}
		e.mu.Lock()
		e.lastErr = err
		e.state.Status = api.StatusStopped
		e.mu.Unlock()
		e.emit(api.EventError, err)
		e.publishState()
	}
	req.OnFinished = func() {
		if e.direct != b {
			return
		}
		e.handleFinished()
	}

	b.Load(req)
}

// resolveAndPlay asks the catalog for a stream URL off-loop, then swaps
// the real backend in, unless the session was superseded meanwhile.
func (e *Engine) resolveAndPlay(it *api.PlayableItem, gen uint64) {
	ctx := e.runCtx
	if ctx == nil {
		ctx = context.Background()
	}
	item := *it
	go func() {
		u, err := e.resolver.ResolveStreamURL(ctx, item.ID)
		e.do(func() {
			if e.sess.current() != gen {
				return
			}
			if err != nil {
				e.mu.Lock()
				e.lastErr = err
				e.state.Status = api.StatusStopped
				e.mu.Unlock()
				e.emit(api.EventError, err)
				e.publishState()
				return
			}
			item.StreamURL = u.String()
			e.mu.Lock()
			if e.state.CurrentItem != nil {
				e.state.CurrentItem.StreamURL = item.StreamURL
			}
			e.mu.Unlock()
			e.startStream(&item, u)
		})
	}()
}

// handleFinished processes natural end-of-track. It is gated by
// generation/backend identity, not by the playing flag: a finish that
// arrives under the live generation always resets time and emits.
func (e *Engine) handleFinished() {
	e.mu.Lock()
	e.state.Status = api.StatusStopped
	e.state.Position = 0
	item := e.state.CurrentItem
	e.mu.Unlock()
	e.emit(api.EventTrackFinished, item)
	e.publishState()
}

func (e *Engine) recordPlayed(it *api.PlayableItem) {
	// Transient catalog items never touch the recently-played log.
	if e.recents != nil && it.Source == api.SourceLibrary {
		e.recents.RecordPlayed(it.ID)
	}
}

// Stop tears down the active backend and resets all published fields.
func (e *Engine) Stop() {
	e.do(func() {
		e.teardown()
		e.mu.Lock()
		e.state.CurrentItem = nil
		e.state.Status = api.StatusStopped
		e.state.Position = 0
		e.state.Duration = 0
		e.mu.Unlock()
		e.publishState()
	})
}

// Pause pauses the active backend. Idempotent.
func (e *Engine) Pause() {
	e.do(e.pauseNow)
}

func (e *Engine) pauseNow() {
	e.mu.RLock()
	playing := e.state.Status == api.StatusPlaying
	e.mu.RUnlock()
	if !playing {
		return
	}
	switch e.backendKind {
	case BackendDirect:
		e.direct.Pause()
	case BackendPrecision:
		e.precision.Pause()
	default:
		return
	}
	e.mu.Lock()
	e.state.Status = api.StatusPaused
	e.mu.Unlock()
	e.publishState()
}

// Resume resumes a paused backend, reactivating the platform session
// first if it went inactive. Idempotent.
func (e *Engine) Resume() {
	e.do(e.resumeNow)
}

func (e *Engine) resumeNow() {
	e.mu.RLock()
	paused := e.state.Status == api.StatusPaused
	e.mu.RUnlock()
	if !paused {
		return
	}
	if e.platform != nil {
		if err := e.platform.EnsureActive(); err != nil {
			e.log.WithError(err).Warn("session activation failed on resume")
		}
	}
	switch e.backendKind {
	case BackendDirect:
		e.direct.Resume()
	case BackendPrecision:
		if err := e.precision.Resume(); err != nil {
			e.mu.Lock()
			e.lastErr = err
			e.mu.Unlock()
			e.emit(api.EventError, err)
			return
		}
	default:
		return
	}
	e.mu.Lock()
	e.state.Status = api.StatusPlaying
	e.mu.Unlock()
	e.publishState()
}

// TogglePlayPause flips between playing and paused; a stopped engine is
// left alone.
func (e *Engine) TogglePlayPause() {
	e.do(func() {
		e.mu.RLock()
		status := e.state.Status
		e.mu.RUnlock()
		switch status {
		case api.StatusPlaying:
			e.pauseNow()
		case api.StatusPaused:
			e.resumeNow()
		}
	})
}

// Seek moves playback to an absolute position. Every seek retires the
// session generation.
func (e *Engine) Seek(to time.Duration) {
	e.do(func() {
		switch e.backendKind {
		case BackendDirect:
			e.sess.bump()
			if err := e.direct.Seek(to); err != nil {
				e.log.WithError(err).Warn("seek failed")
				return
			}
			e.mu.Lock()
			e.state.Position = to
			e.mu.Unlock()
			e.publishState()
		case BackendPrecision:
			clamped := e.precision.Seek(to.Seconds())
			e.mu.Lock()
			e.state.Position = time.Duration(clamped * float64(time.Second))
			e.state.Status = api.StatusPlaying
			e.mu.Unlock()
			e.publishState()
		}
	})
}

// SetVolume clamps v to [0,1] and applies it to the active backend.
func (e *Engine) SetVolume(v float64) {
	e.do(func() {
		if !(v >= 0) {
			v = 0
		}
		if v > 1 {
			v = 1
		}
		switch e.backendKind {
		case BackendDirect:
			e.direct.SetVolume(v)
		case BackendPrecision:
			e.precision.SetVolume(v)
		}
		e.mu.Lock()
		e.state.Volume = v
		e.mu.Unlock()
		e.publishState()
	})
}

// SetQuality records the preferred quality profile. It only affects the
// session configuration of future playback; nothing in flight is
// resampled.
func (e *Engine) SetQuality(q api.Quality) {
	e.do(func() {
		e.mu.Lock()
		e.state.Quality = q
		e.mu.Unlock()
		e.publishState()
	})
}

// AttachRemote consumes hardware/lock-screen transport commands.
func (e *Engine) AttachRemote(ctx context.Context, commands <-chan api.RemoteCommand) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case cmd, ok := <-commands:
				if !ok {
					return
				}
				e.handleRemote(cmd)
			}
		}
	}()
}

func (e *Engine) handleRemote(cmd api.RemoteCommand) {
	switch cmd {
	case api.RemotePlay:
		st := e.GetState()
		switch {
		case st.Status == api.StatusPaused:
			e.Resume()
		case st.CurrentItem != nil:
			// Restart from zero; see Play.
			e.Play(*st.CurrentItem)
		}
	case api.RemotePause:
		e.Pause()
	case api.RemoteToggle:
		e.TogglePlayPause()
	case api.RemoteNext:
		e.emit(api.EventRemoteNext, nil)
	case api.RemotePrevious:
		e.emit(api.EventRemotePrevious, nil)
	}
}
