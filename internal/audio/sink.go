package audio

import (
	"fmt"
	"sync"

	"github.com/hajimehoshi/oto"
)

// pcmSink is the render output of the precision backend: interleaved
// 16-bit little-endian PCM goes in, audio comes out. The oto-backed sink
// is the production implementation; tests inject a fake.
type pcmSink interface {
	Write(p []byte) (int, error)
	// Running reports whether the sink is still rendering. A sink can
	// stop silently (e.g. after the platform session is deactivated), in
	// which case Start must be called before writing again.
	Running() bool
	Start() error
	Close() error
}

// sinkFactory builds a sink for the given native format.
type sinkFactory func(sampleRate, channels int) (pcmSink, error)

const otoBufferBytes = 8192

// otoSink renders PCM through an oto player.
type otoSink struct {
	mu      sync.Mutex
	ctx     *oto.Context
	player  *oto.Player
	running bool
}

func newOtoSink(sampleRate, channels int) (pcmSink, error) {
	ctx, err := oto.NewContext(sampleRate, channels, 2, otoBufferBytes)
	if err != nil {
		return nil, fmt.Errorf("open audio context: %w", err)
	}
	return &otoSink{ctx: ctx, player: ctx.NewPlayer(), running: true}, nil
}

func (s *otoSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	player := s.player
	s.mu.Unlock()
	if player == nil {
		return 0, fmt.Errorf("sink not started")
	}
	n, err := player.Write(p)
	if err != nil {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}
	return n, err
}

func (s *otoSink) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running && s.player != nil
}

// Start re-prepares the player after a silent stop.
func (s *otoSink) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.player != nil && s.running {
		return nil
	}
	if s.player != nil {
		s.player.Close()
	}
	s.player = s.ctx.NewPlayer()
	s.running = true
	return nil
}

func (s *otoSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	if s.player != nil {
		s.player.Close()
		s.player = nil
	}
	return s.ctx.Close()
}
