package audio

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/mewkiz/flac"
	"github.com/sirupsen/logrus"

	playerrors "github.com/fonoslabs/tremolo/pkg/errors"
)

const (
	// renderClockPeriod is how often elapsed time is recomputed from the
	// render counter.
	renderClockPeriod = 100 * time.Millisecond
	// renderChunkFrames is the number of frames handed to the sink per
	// write.
	renderChunkFrames = 2048
)

// PrecisionBackend plays a local high-resolution file by decoding it fully
// and rendering raw PCM at the file's native sample rate. The standard
// transport path does not give explicit sample-rate control, which is the
// whole reason this backend exists.
//
// The decoded buffer, the sink and the segment writer are owned
// exclusively by one backend instance; the engine guarantees at most one
// instance is live.
type PrecisionBackend struct {
	run      func(func())
	sess     *playSession
	platform PlatformSession
	newSink  sinkFactory
	log      *logrus.Entry

	// decoded-file handle, immutable after Load
	pcm         []int16 // interleaved
	sampleRate  int
	channels    int
	totalFrames int64

	mu         sync.Mutex
	sink       pcmSink
	baseOffset float64 // seconds; transport position of the live segment's first frame
	rendered   int64   // frames written since the live segment was scheduled
	playing    bool
	paused     bool
	clockOn    bool
	closed     bool
	volume     float64
	cancel     chan struct{}
	writerWG   sync.WaitGroup

	// set by the engine before scheduling; invoked on the engine run loop
	onFinished func()
	onPosition func(time.Duration)
}

func newPrecisionBackend(run func(func()), sess *playSession, platform PlatformSession, newSink sinkFactory) *PrecisionBackend {
	return &PrecisionBackend{
		run:      run,
		sess:     sess,
		platform: platform,
		newSink:  newSink,
		volume:   1,
		log:      logrus.WithField("component", "precision"),
	}
}

// Load opens and fully decodes the file. The native format and total frame
// count come from the STREAMINFO block, so the duration is known before
// playback begins.
func (p *PrecisionBackend) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	stream, err := flac.New(f)
	if err != nil {
		return fmt.Errorf("parse flac %s: %w", path, err)
	}

	info := stream.Info
	p.sampleRate = int(info.SampleRate)
	p.channels = int(info.NChannels)
	p.totalFrames = int64(info.NSamples)

	shift := int(info.BitsPerSample) - 16
	pcm := make([]int16, 0, p.totalFrames*int64(p.channels))
	for {
		fr, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("decode flac %s: %w", path, err)
		}
		n := len(fr.Subframes[0].Samples)
		for i := 0; i < n; i++ {
			for ch := 0; ch < p.channels; ch++ {
				s := fr.Subframes[ch].Samples[i]
				if shift > 0 {
					s >>= shift
				} else if shift < 0 {
					s <<= -shift
				}
				pcm = append(pcm, int16(s))
			}
		}
	}
	p.pcm = pcm
	if p.totalFrames == 0 {
		p.totalFrames = int64(len(pcm) / p.channels)
	}
	return nil
}

// Duration is the total length of the decoded file.
func (p *PrecisionBackend) Duration() time.Duration {
	if p.sampleRate == 0 {
		return 0
	}
	return time.Duration(float64(p.totalFrames) / float64(p.sampleRate) * float64(time.Second))
}

// Start builds the render sink at the file's native format. Connecting at
// a default format instead would silently corrupt or halt audio. Reports
// not-running after a nominally successful start as a start failure so the
// caller can fall back to the direct backend.
func (p *PrecisionBackend) Start() error {
	s, err := p.newSink(p.sampleRate, p.channels)
	if err != nil {
		return fmt.Errorf("%w: %v", playerrors.ErrBackendStart, err)
	}
	if !s.Running() {
		s.Close()
		return fmt.Errorf("%w: sink reports not running after start", playerrors.ErrBackendStart)
	}
	p.mu.Lock()
	p.sink = s
	p.mu.Unlock()
	return nil
}

// ScheduleFromStart schedules the whole file from frame zero, tagging the
// completion with the session's generation at schedule time, and starts
// the render clock.
func (p *PrecisionBackend) ScheduleFromStart() {
	p.mu.Lock()
	p.baseOffset = 0
	p.mu.Unlock()
	p.schedule(0, p.sess.current())
	p.startClock()
}

// Seek clamps the target, replaces the live segment with one starting at
// the target frame, and resumes the transport. The seeking guard covers
// the stop-and-reschedule window only; the replacement segment is tagged
// with a freshly bumped generation so its own future completion survives.
// Returns the clamped target.
func (p *PrecisionBackend) Seek(to float64) float64 {
	if to < 0 {
		to = 0
	}
	if max := p.Duration().Seconds(); to > max {
		to = max
	}
	frame := int64(to * float64(p.sampleRate))

	p.sess.beginSeek()
	p.stopNode() // stops the segment writer, not the sink
	p.mu.Lock()
	p.baseOffset = to
	p.paused = false
	p.mu.Unlock()
	gen := p.sess.bump()
	p.schedule(frame, gen)
	p.sess.endSeek()
	p.startClock()
	return to
}

// schedule replaces the live segment writer with one rendering
// [fromFrame, end-of-file). The completion only fires if gen is still the
// live generation and the seeking guard is down when it runs.
func (p *PrecisionBackend) schedule(fromFrame int64, gen uint64) {
	p.stopNode()

	cancel := make(chan struct{})
	p.mu.Lock()
	p.cancel = cancel
	p.rendered = 0
	p.playing = true
	sink := p.sink
	p.mu.Unlock()

	p.writerWG.Add(1)
	go p.render(fromFrame, cancel, sink, gen)
}

func (p *PrecisionBackend) render(fromFrame int64, cancel chan struct{}, sink pcmSink, gen uint64) {
	defer p.writerWG.Done()

	idx := fromFrame
	buf := make([]byte, 0, renderChunkFrames*p.channels*2)
	for idx < p.totalFrames {
		select {
		case <-cancel:
			return
		default:
		}

		p.mu.Lock()
		paused := p.paused
		vol := p.volume
		p.mu.Unlock()
		if paused {
			time.Sleep(10 * time.Millisecond)
			continue
		}

		end := idx + renderChunkFrames
		if end > p.totalFrames {
			end = p.totalFrames
		}
		buf = buf[:0]
		for _, s := range p.pcm[idx*int64(p.channels) : end*int64(p.channels)] {
			v := int16(float64(s) * vol)
			buf = append(buf, byte(v), byte(uint16(v)>>8))
		}
		if _, err := sink.Write(buf); err != nil {
			p.log.WithError(err).Warn("render sink write failed")
			return
		}

		p.mu.Lock()
		p.rendered += end - idx
		p.mu.Unlock()
		idx = end
	}

	// Natural end of the scheduled segment.
	p.run(func() {
		p.mu.Lock()
		closed := p.closed
		p.mu.Unlock()
		if closed || !p.sess.live(gen) {
			return
		}
		p.mu.Lock()
		p.playing = false
		p.mu.Unlock()
		if p.onFinished != nil {
			p.onFinished()
		}
	})
}

// startClock begins the polling clock that derives elapsed time from the
// render counter. The poll stops itself once playback is no longer active.
func (p *PrecisionBackend) startClock() {
	p.mu.Lock()
	if p.clockOn {
		p.mu.Unlock()
		return
	}
	p.clockOn = true
	p.mu.Unlock()

	go func() {
		ticker := time.NewTicker(renderClockPeriod)
		defer ticker.Stop()
		for range ticker.C {
			p.mu.Lock()
			if p.closed || !p.playing {
				p.clockOn = false
				p.mu.Unlock()
				return
			}
			pos := p.baseOffset + float64(p.rendered)/float64(p.sampleRate)
			cb := p.onPosition
			p.mu.Unlock()
			if cb != nil {
				cb(time.Duration(pos * float64(time.Second)))
			}
		}
	}()
}

// Position is the current transport position.
func (p *PrecisionBackend) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	pos := p.baseOffset + float64(p.rendered)/float64(p.sampleRate)
	return time.Duration(pos * float64(time.Second))
}

// Pause halts the render node; the sink stays up.
func (p *PrecisionBackend) Pause() {
	p.mu.Lock()
	p.paused = true
	p.mu.Unlock()
}

// Resume unpauses the node. The sink may have stopped silently even while
// looking healthy (e.g. after session deactivation); if so it is
// re-prepared and started, retrying once after reactivating the platform
// session.
func (p *PrecisionBackend) Resume() error {
	p.mu.Lock()
	p.paused = false
	sink := p.sink
	p.mu.Unlock()

	if sink != nil && sink.Running() {
		return nil
	}
	if err := p.restartSink(); err != nil {
		if p.platform != nil {
			if aerr := p.platform.EnsureActive(); aerr != nil {
				p.log.WithError(aerr).Warn("session reactivation failed")
			}
		}
		if err := p.restartSink(); err != nil {
			return fmt.Errorf("%w: %v", playerrors.ErrBackendStart, err)
		}
	}
	return nil
}

func (p *PrecisionBackend) restartSink() error {
	p.mu.Lock()
	sink := p.sink
	p.mu.Unlock()
	if sink == nil {
		s, err := p.newSink(p.sampleRate, p.channels)
		if err != nil {
			return err
		}
		p.mu.Lock()
		p.sink = s
		p.mu.Unlock()
		return nil
	}
	return sink.Start()
}

// SetVolume applies an already-clamped [0,1] gain to the mixer output.
func (p *PrecisionBackend) SetVolume(v float64) {
	p.mu.Lock()
	p.volume = v
	p.mu.Unlock()
}

// Playing reports whether a segment is scheduled and not paused.
func (p *PrecisionBackend) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing && !p.paused
}

// stopNode cancels the live segment writer and waits for it to exit. The
// sink keeps running.
func (p *PrecisionBackend) stopNode() {
	p.mu.Lock()
	c := p.cancel
	p.cancel = nil
	p.mu.Unlock()
	if c != nil {
		close(c)
	}
	p.writerWG.Wait()
}

// Close tears the backend down completely: node stopped, sink released,
// decoded-file handle dropped, offset reset, guard cleared, generation
// bumped so any still-pending completion is invalidated.
func (p *PrecisionBackend) Close() {
	p.mu.Lock()
	p.closed = true
	p.playing = false
	p.mu.Unlock()

	p.stopNode()

	p.mu.Lock()
	if p.sink != nil {
		p.sink.Close()
		p.sink = nil
	}
	p.pcm = nil
	p.baseOffset = 0
	p.rendered = 0
	p.mu.Unlock()

	p.sess.endSeek()
	p.sess.bump()
}
