package audio

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"
	"github.com/sirupsen/logrus"
)

// LoadRequest describes one direct-backend load attempt. The fallback URL
// travels with the request itself rather than being tagged onto the media
// object out of band; it is consumed by at most one retry.
type LoadRequest struct {
	// Path is a local file; it takes priority over URL when set.
	Path string
	// URL is a remote stream.
	URL *url.URL
	// Fallback, if set, is tried exactly once when the primary source
	// fails to load (typically an https URL rewritten to http for a host
	// with broken TLS).
	Fallback *url.URL

	// Callbacks are invoked on the engine's run loop. OnReady carries the
	// media duration, known as soon as the load succeeds.
	OnReady    func(duration time.Duration)
	OnFailure  func(err error)
	OnFinished func()
}

// DirectBackend plays a local-or-remote media URL through the standard
// transport. Load failure is reported asynchronously through the request's
// callbacks, never as a synchronous error.
type DirectBackend struct {
	run   func(func())
	trans transport
	log   *logrus.Entry

	// test seams; default to the real source opener and beep decoders
	open   func(req *LoadRequest) (io.ReadCloser, string, error)
	decode func(r io.ReadCloser, name string) (beep.StreamSeekCloser, beep.Format, error)

	// mutated only on the engine run loop
	streamer beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl
	vol      *effects.Volume
	volume   float64
	playing  bool
	// detached marks that observers were removed ahead of teardown; any
	// late status or end callback becomes a no-op.
	detached bool
	lastErr  error
}

func newDirectBackend(run func(func()), trans transport) *DirectBackend {
	b := &DirectBackend{
		run:    run,
		trans:  trans,
		volume: 1,
		log:    logrus.WithField("component", "direct"),
	}
	b.open = b.openSource
	b.decode = DecodeAudio
	return b
}

// Load begins the asynchronous load-and-start sequence. It returns
// immediately; readiness, failure and end-of-media arrive via callbacks.
func (b *DirectBackend) Load(req LoadRequest) {
	go b.load(req, false)
}

func (b *DirectBackend) load(req LoadRequest, isRetry bool) {
	rc, name, err := b.open(&req)
	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
	)
	if err == nil {
		streamer, format, err = b.decode(rc, name)
		if err != nil {
			rc.Close()
		}
	}
	if err != nil {
		if req.Fallback != nil && !isRetry {
			b.log.WithError(err).Warnf("load failed, retrying with fallback %s", req.Fallback)
			retry := req
			retry.Path = ""
			retry.URL = req.Fallback
			retry.Fallback = nil
			b.load(retry, true)
			return
		}
		b.run(func() {
			if b.detached {
				return
			}
			b.lastErr = err
			if req.OnFailure != nil {
				req.OnFailure(err)
			}
		})
		return
	}

	b.run(func() {
		if b.detached {
			streamer.Close()
			return
		}
		if err := b.start(streamer, format, req.OnFinished); err != nil {
			streamer.Close()
			b.lastErr = err
			if req.OnFailure != nil {
				req.OnFailure(err)
			}
			return
		}
		if req.OnReady != nil {
			req.OnReady(format.SampleRate.D(streamer.Len()))
		}
	})
}

// start wires the decoded streamer into the transport and begins playback.
func (b *DirectBackend) start(streamer beep.StreamSeekCloser, format beep.Format, onFinished func()) error {
	if err := b.trans.Init(format.SampleRate, format.SampleRate.N(time.Second/10)); err != nil {
		return fmt.Errorf("init transport: %w", err)
	}

	b.streamer = streamer
	b.format = format
	b.ctrl = &beep.Ctrl{Streamer: streamer}
	b.vol = &effects.Volume{
		Streamer: b.ctrl,
		Base:     2,
		Volume:   b.volume*2 - 1,
		Silent:   b.volume == 0,
	}
	b.playing = true

	// The end-of-media callback fires on the transport goroutine; marshal
	// it back and drop it if the observers were already removed.
	b.trans.Play(beep.Seq(b.vol, beep.Callback(func() {
		b.run(func() {
			if b.detached {
				return
			}
			b.playing = false
			if onFinished != nil {
				onFinished()
			}
		})
	})))
	return nil
}

// openSource opens the request's local file or remote URL for decoding.
func (b *DirectBackend) openSource(req *LoadRequest) (io.ReadCloser, string, error) {
	if req.Path != "" {
		f, err := os.Open(req.Path)
		if err != nil {
			return nil, "", fmt.Errorf("open %s: %w", req.Path, err)
		}
		return f, req.Path, nil
	}
	if req.URL == nil {
		return nil, "", fmt.Errorf("load request has no source")
	}
	resp, err := http.Get(req.URL.String())
	if err != nil {
		return nil, "", fmt.Errorf("fetch %s: %w", req.URL, err)
	}
	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return nil, "", fmt.Errorf("fetch %s: status %s", req.URL, resp.Status)
	}
	return resp.Body, path.Base(req.URL.Path), nil
}

// Pause pauses the transport. Safe to call repeatedly.
func (b *DirectBackend) Pause() {
	if b.ctrl == nil {
		return
	}
	b.trans.Lock()
	b.ctrl.Paused = true
	b.trans.Unlock()
	b.playing = false
}

// Resume unpauses the transport. The caller guarantees the platform audio
// session is active before resuming.
func (b *DirectBackend) Resume() {
	if b.ctrl == nil {
		return
	}
	b.trans.Lock()
	b.ctrl.Paused = false
	b.trans.Unlock()
	b.playing = true
}

// Seek moves the transport to an exact position, preserving the
// playing/paused state across the seek.
func (b *DirectBackend) Seek(to time.Duration) error {
	if b.streamer == nil {
		return fmt.Errorf("no media loaded")
	}
	if to < 0 {
		to = 0
	}
	b.trans.Lock()
	wasPaused := b.ctrl.Paused
	err := b.streamer.Seek(b.format.SampleRate.N(to))
	b.ctrl.Paused = wasPaused
	b.trans.Unlock()
	return err
}

// Position returns the elapsed time of the current media.
func (b *DirectBackend) Position() time.Duration {
	if b.streamer == nil {
		return 0
	}
	b.trans.Lock()
	n := b.streamer.Position()
	b.trans.Unlock()
	return b.format.SampleRate.D(n)
}

// SetVolume applies an already-clamped [0,1] volume to the transport.
func (b *DirectBackend) SetVolume(v float64) {
	b.volume = v
	if b.vol == nil {
		return
	}
	b.trans.Lock()
	b.vol.Volume = v*2 - 1
	b.vol.Silent = v == 0
	b.trans.Unlock()
}

// Playing reports whether the transport is started and not paused.
func (b *DirectBackend) Playing() bool {
	return b.playing
}

// LastError returns the terminal load error, if any.
func (b *DirectBackend) LastError() error {
	return b.lastErr
}

// Close removes the status and end observers, then releases the transport
// and the decoded stream. Observer removal must come first: a callback
// firing into a discarded transport is a dangling-callback hazard.
func (b *DirectBackend) Close() {
	b.detached = true
	b.trans.Clear()
	if b.streamer != nil {
		b.streamer.Close()
		b.streamer = nil
	}
	b.ctrl = nil
	b.vol = nil
	b.playing = false
}
