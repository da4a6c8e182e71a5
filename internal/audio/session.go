package audio

import "sync/atomic"

// playSession identifies the current playback attempt. The generation is
// bumped on every play, stop and seek; any async completion that captured
// an older generation is a guaranteed no-op. The seeking guard is a
// second, shorter-lived defense: it suppresses the completion of a
// segment that is being replaced during a seek's stop-and-reschedule
// window, where the generation alone cannot yet tell old from new.
type playSession struct {
	gen     atomic.Uint64
	seeking atomic.Bool
}

// bump retires all callbacks scheduled under earlier generations and
// returns the new live generation.
func (s *playSession) bump() uint64 {
	return s.gen.Add(1)
}

// current returns the live generation.
func (s *playSession) current() uint64 {
	return s.gen.Load()
}

// live reports whether a completion captured under g may still mutate
// playback state.
func (s *playSession) live(g uint64) bool {
	return !s.seeking.Load() && s.gen.Load() == g
}

// beginSeek raises the guard for the duration of a stop-and-reschedule.
func (s *playSession) beginSeek() {
	s.seeking.Store(true)
}

// endSeek lowers the guard; called synchronously after the replacement
// segment has been issued.
func (s *playSession) endSeek() {
	s.seeking.Store(false)
}
