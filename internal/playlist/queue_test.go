package playlist

import (
	"testing"

	"github.com/fonoslabs/tremolo/api"
)

func queueTracks(ids ...string) []*api.Track {
	tracks := make([]*api.Track, len(ids))
	for i, id := range ids {
		tracks[i] = &api.Track{ID: id, Title: "Track " + id}
	}
	return tracks
}

func TestQueue_NextRepeatModes(t *testing.T) {
	tests := []struct {
		name   string
		mode   api.RepeatMode
		steps  int
		wantID string
		isNil  bool
	}{
		{"no repeat advances", api.RepeatNone, 1, "b", false},
		{"no repeat ends", api.RepeatNone, 3, "", true},
		{"repeat all wraps", api.RepeatAll, 3, "a", false},
		{"repeat one stays", api.RepeatOne, 2, "a", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewQueue()
			q.Set(queueTracks("a", "b", "c"))
			q.SetRepeatMode(tt.mode)

			var got *api.Track
			for i := 0; i < tt.steps; i++ {
				got = q.Next()
			}
			if tt.isNil {
				if got != nil {
					t.Errorf("Next = %v, want nil", got.ID)
				}
				return
			}
			if got == nil || got.ID != tt.wantID {
				t.Errorf("Next = %v, want %s", got, tt.wantID)
			}
		})
	}
}

func TestQueue_PreviousWraps(t *testing.T) {
	q := NewQueue()
	q.Set(queueTracks("a", "b", "c"))

	if got := q.Previous(); got.ID != "a" {
		t.Errorf("Previous at start without repeat = %s, want a", got.ID)
	}

	q.SetRepeatMode(api.RepeatAll)
	if got := q.Previous(); got.ID != "c" {
		t.Errorf("Previous with repeat-all = %s, want wrap to c", got.ID)
	}
}

func TestQueue_RemoveKeepsPosition(t *testing.T) {
	q := NewQueue()
	q.Set(queueTracks("a", "b", "c"))
	q.Next() // on b

	if err := q.Remove(0); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if q.Current().ID != "b" {
		t.Errorf("Current = %s, want b", q.Current().ID)
	}

	if err := q.Remove(5); err == nil {
		t.Error("expected out of bounds error")
	}
}

func TestQueue_ShuffleKeepsCurrentFirst(t *testing.T) {
	q := NewQueue()
	q.Set(queueTracks("a", "b", "c", "d", "e"))
	q.Next() // on b

	q.Shuffle()
	if !q.IsShuffled() {
		t.Fatal("IsShuffled = false")
	}
	if q.Current().ID != "b" || q.Index() != 0 {
		t.Errorf("current after shuffle = %s at %d, want b at 0", q.Current().ID, q.Index())
	}

	q.Unshuffle()
	if q.IsShuffled() {
		t.Error("IsShuffled after Unshuffle")
	}
	if q.Current().ID != "b" {
		t.Errorf("current after unshuffle = %s, want b", q.Current().ID)
	}
	got := q.GetAll()
	for i, want := range []string{"a", "b", "c", "d", "e"} {
		if got[i].ID != want {
			t.Fatalf("order restored = %v", got)
		}
	}
}

func TestQueue_HasNextHasPrevious(t *testing.T) {
	q := NewQueue()
	if q.HasNext() || q.HasPrevious() {
		t.Error("empty queue should have no neighbors")
	}

	q.Set(queueTracks("a", "b"))
	if !q.HasNext() || q.HasPrevious() {
		t.Errorf("at start: HasNext=%v HasPrevious=%v", q.HasNext(), q.HasPrevious())
	}

	q.Next()
	if q.HasNext() || !q.HasPrevious() {
		t.Errorf("at end: HasNext=%v HasPrevious=%v", q.HasNext(), q.HasPrevious())
	}

	q.SetRepeatMode(api.RepeatAll)
	if !q.HasNext() || !q.HasPrevious() {
		t.Error("repeat-all always has neighbors")
	}
}
