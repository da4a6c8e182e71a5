package audio

import (
	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
)

// transport abstracts the OS media output used by the direct backend.
// The speaker-backed implementation is the production one; tests inject a
// fake so no audio device is touched.
type transport interface {
	Init(sampleRate beep.SampleRate, bufferSize int) error
	Play(s ...beep.Streamer)
	Clear()
	Lock()
	Unlock()
}

// speakerTransport drives the process-wide beep speaker.
type speakerTransport struct{}

func (speakerTransport) Init(sampleRate beep.SampleRate, bufferSize int) error {
	return speaker.Init(sampleRate, bufferSize)
}

func (speakerTransport) Play(s ...beep.Streamer) {
	speaker.Play(s...)
}

func (speakerTransport) Clear() {
	speaker.Clear()
}

func (speakerTransport) Lock() {
	speaker.Lock()
}

func (speakerTransport) Unlock() {
	speaker.Unlock()
}
