// Package session owns the platform audio session: category and
// preferred-format configuration, activation, and reaction to
// interruption and route-change events.
package session

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/fonoslabs/tremolo/api"
)

// Platform is the device audio-session layer. The null implementation is
// the stand-in for headless builds; device builds and tests supply their
// own.
type Platform interface {
	SetCategory(category string) error
	SetPreferredFormat(sampleRate, bitDepth int) error
	SetActive(active bool) error
}

const CategoryPlayback = "playback"

type nullPlatform struct{}

func (nullPlatform) SetCategory(string) error        { return nil }
func (nullPlatform) SetPreferredFormat(int, int) error { return nil }
func (nullPlatform) SetActive(bool) error            { return nil }

// NewNullPlatform returns a no-op platform layer.
func NewNullPlatform() Platform {
	return nullPlatform{}
}

// Session wraps a Platform with the player's configuration policy:
// preferred hardware parameters follow the quality profile, and a failed
// configuration degrades to the standard profile instead of failing
// playback.
type Session struct {
	mu      sync.Mutex
	dev     Platform
	active  bool
	quality api.Quality
	log     *logrus.Entry
}

func New(dev Platform) *Session {
	if dev == nil {
		dev = nullPlatform{}
	}
	return &Session{
		dev: dev,
		log: logrus.WithField("component", "session"),
	}
}

// Configure applies the playback category and the quality profile's
// preferred sample rate and bit depth. Failures are logged and degraded,
// never fatal: playback proceeds with whatever the device gives us.
func (s *Session) Configure(q api.Quality) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.dev.SetCategory(CategoryPlayback); err != nil {
		s.log.WithError(err).Warn("set category failed, keeping current category")
	}
	if err := s.dev.SetPreferredFormat(q.SampleRate(), q.BitDepth()); err != nil {
		s.log.WithError(err).Warnf("preferred format %s rejected, falling back to standard", q)
		if q != api.QualityStandard {
			if err := s.dev.SetPreferredFormat(api.QualityStandard.SampleRate(), api.QualityStandard.BitDepth()); err != nil {
				s.log.WithError(err).Warn("standard format rejected too")
			}
		}
		s.quality = api.QualityStandard
		return nil
	}
	s.quality = q
	return nil
}

// EnsureActive activates the session if it is not already active.
func (s *Session) EnsureActive() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		return nil
	}
	if err := s.dev.SetActive(true); err != nil {
		return err
	}
	s.active = true
	return nil
}

// Deactivate releases the session.
func (s *Session) Deactivate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return nil
	}
	if err := s.dev.SetActive(false); err != nil {
		return err
	}
	s.active = false
	return nil
}

// Active reports whether the session is currently active.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Quality reports the profile the session actually accepted.
func (s *Session) Quality() api.Quality {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quality
}
