package audio

import (
	"sync"
	"testing"
	"time"

	"github.com/faiface/beep"
)

// loopRunner stands in for the engine run loop in backend-level tests:
// callbacks are queued and executed only when the test drains them, which
// makes the completion-gating windows observable.
type loopRunner struct {
	tasks chan func()
}

func newLoopRunner() *loopRunner {
	return &loopRunner{tasks: make(chan func(), 64)}
}

func (r *loopRunner) run(fn func()) { r.tasks <- fn }

// drainOne waits for and executes a single queued callback.
func (r *loopRunner) drainOne(t *testing.T) {
	t.Helper()
	select {
	case fn := <-r.tasks:
		fn()
	case <-time.After(2 * time.Second):
		t.Fatal("no callback arrived")
	}
}

// drainPending executes whatever is queued right now.
func (r *loopRunner) drainPending() {
	for {
		select {
		case fn := <-r.tasks:
			fn()
		default:
			return
		}
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

// fakeTransport records what the direct backend does with the media
// output. With drain set it consumes played streamers synchronously so
// the end-of-media callback fires.
type fakeTransport struct {
	mu         sync.Mutex
	inited     bool
	sampleRate beep.SampleRate
	bufferSize int
	played     []beep.Streamer
	cleared    int
	drain      bool
}

func (f *fakeTransport) Init(sr beep.SampleRate, buf int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inited = true
	f.sampleRate = sr
	f.bufferSize = buf
	return nil
}

func (f *fakeTransport) Play(streams ...beep.Streamer) {
	f.mu.Lock()
	f.played = append(f.played, streams...)
	drain := f.drain
	f.mu.Unlock()

	if !drain {
		return
	}
	buf := make([][2]float64, 512)
	for _, s := range streams {
		for {
			if _, ok := s.Stream(buf); !ok {
				break
			}
		}
	}
}

func (f *fakeTransport) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared++
}

func (f *fakeTransport) Lock()   {}
func (f *fakeTransport) Unlock() {}

func (f *fakeTransport) clearCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cleared
}

// stubStreamer is a seekable silent stream of a fixed length.
type stubStreamer struct {
	length  int
	pos     int
	closed  bool
	seekErr error
}

func (s *stubStreamer) Stream(samples [][2]float64) (int, bool) {
	if s.pos >= s.length {
		return 0, false
	}
	n := len(samples)
	if rest := s.length - s.pos; n > rest {
		n = rest
	}
	s.pos += n
	return n, true
}

func (s *stubStreamer) Err() error       { return nil }
func (s *stubStreamer) Len() int         { return s.length }
func (s *stubStreamer) Position() int    { return s.pos }
func (s *stubStreamer) Seek(p int) error { s.pos = p; return s.seekErr }
func (s *stubStreamer) Close() error     { s.closed = true; return nil }

// fakeSink collects rendered PCM in memory.
type fakeSink struct {
	mu       sync.Mutex
	writes   [][]byte
	running  bool
	closed   bool
	starts   int
	startErr func() error
}

func (s *fakeSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, append([]byte(nil), p...))
	return len(p), nil
}

func (s *fakeSink) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *fakeSink) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.starts++
	if s.startErr != nil {
		if err := s.startErr(); err != nil {
			return err
		}
	}
	s.running = true
	return nil
}

func (s *fakeSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.closed = true
	return nil
}

func (s *fakeSink) totalBytes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, w := range s.writes {
		n += len(w)
	}
	return n
}

func (s *fakeSink) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.writes)
}

func (s *fakeSink) writeAt(i int) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes[i]
}
