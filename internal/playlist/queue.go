package playlist

import (
	"errors"
	"math/rand"
	"sync"

	"github.com/fonoslabs/tremolo/api"
)

// Queue is the browsing playback queue. Transient catalog items never
// enter it; it only ever holds library tracks.
type Queue struct {
	tracks     []*api.Track
	index      int
	repeatMode api.RepeatMode
	shuffle    bool
	original   []*api.Track // order before shuffle
	mu         sync.RWMutex
}

func NewQueue() *Queue {
	return &Queue{
		tracks:     make([]*api.Track, 0),
		repeatMode: api.RepeatNone,
	}
}

// Add appends tracks to the queue.
func (q *Queue) Add(tracks ...*api.Track) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tracks = append(q.tracks, tracks...)
}

// Set replaces the queue contents and resets the position.
func (q *Queue) Set(tracks []*api.Track) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.tracks = make([]*api.Track, len(tracks))
	copy(q.tracks, tracks)
	q.original = nil
	q.index = 0
}

// Clear empties the queue.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.tracks = make([]*api.Track, 0)
	q.original = nil
	q.index = 0
}

// Current returns the track at the playback position.
func (q *Queue) Current() *api.Track {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if len(q.tracks) == 0 || q.index < 0 || q.index >= len(q.tracks) {
		return nil
	}
	return q.tracks[q.index]
}

// Next advances and returns the new current track, or nil at the end of
// a non-repeating queue.
func (q *Queue) Next() *api.Track {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tracks) == 0 {
		return nil
	}

	switch q.repeatMode {
	case api.RepeatOne:
		return q.tracks[q.index]
	case api.RepeatAll:
		q.index = (q.index + 1) % len(q.tracks)
	default:
		if q.index < len(q.tracks)-1 {
			q.index++
		} else {
			return nil
		}
	}
	return q.tracks[q.index]
}

// Previous steps back and returns the new current track.
func (q *Queue) Previous() *api.Track {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tracks) == 0 {
		return nil
	}

	switch q.repeatMode {
	case api.RepeatOne:
		return q.tracks[q.index]
	case api.RepeatAll:
		q.index--
		if q.index < 0 {
			q.index = len(q.tracks) - 1
		}
	default:
		if q.index > 0 {
			q.index--
		}
	}
	return q.tracks[q.index]
}

// JumpTo moves the position to index.
func (q *Queue) JumpTo(index int) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if index < 0 || index >= len(q.tracks) {
		return errors.New("index out of bounds")
	}
	q.index = index
	return nil
}

// Remove deletes the track at index, keeping the position stable.
func (q *Queue) Remove(index int) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if index < 0 || index >= len(q.tracks) {
		return errors.New("index out of bounds")
	}

	q.tracks = append(q.tracks[:index], q.tracks[index+1:]...)

	if q.index > index {
		q.index--
	} else if q.index >= len(q.tracks) && len(q.tracks) > 0 {
		q.index = len(q.tracks) - 1
	}
	return nil
}

// Shuffle randomizes the order, keeping the current track first.
func (q *Queue) Shuffle() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tracks) <= 1 {
		return
	}

	if q.original == nil {
		q.original = make([]*api.Track, len(q.tracks))
		copy(q.original, q.tracks)
	}

	currentTrack := q.tracks[q.index]

	n := len(q.tracks)
	for i := n - 1; i > 0; i-- {
		j := rand.Intn(i + 1)
		q.tracks[i], q.tracks[j] = q.tracks[j], q.tracks[i]
	}

	for i, track := range q.tracks {
		if track.ID == currentTrack.ID {
			q.tracks[0], q.tracks[i] = q.tracks[i], q.tracks[0]
			break
		}
	}
	q.index = 0
	q.shuffle = true
}

// Unshuffle restores the pre-shuffle order, keeping the current track.
func (q *Queue) Unshuffle() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.original == nil {
		return
	}

	currentTrack := q.tracks[q.index]
	q.tracks = q.original
	q.original = nil
	q.shuffle = false

	for i, track := range q.tracks {
		if track.ID == currentTrack.ID {
			q.index = i
			break
		}
	}
}

func (q *Queue) SetRepeatMode(mode api.RepeatMode) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.repeatMode = mode
}

func (q *Queue) GetRepeatMode() api.RepeatMode {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.repeatMode
}

func (q *Queue) IsShuffled() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.shuffle
}

// GetAll returns a copy of the queue contents.
func (q *Queue) GetAll() []*api.Track {
	q.mu.RLock()
	defer q.mu.RUnlock()

	result := make([]*api.Track, len(q.tracks))
	copy(result, q.tracks)
	return result
}

func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.tracks)
}

func (q *Queue) Index() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.index
}

func (q *Queue) HasNext() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.repeatMode == api.RepeatAll || q.repeatMode == api.RepeatOne {
		return len(q.tracks) > 0
	}
	return q.index < len(q.tracks)-1
}

func (q *Queue) HasPrevious() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.repeatMode == api.RepeatAll || q.repeatMode == api.RepeatOne {
		return len(q.tracks) > 0
	}
	return q.index > 0
}
