package api

import "time"

type Track struct {
	ID         string        `json:"id"`
	Title      string        `json:"title"`
	Artist     string        `json:"artist"`
	Album      string        `json:"album"`
	Duration   time.Duration `json:"duration"`
	FilePath   string        `json:"file_path"`
	StreamURL  string        `json:"stream_url"`
	ArtworkURL string        `json:"artwork_url"`
	Genre      string        `json:"genre"`
	Year       int           `json:"year"`
	TrackNum   int           `json:"track_number"`
	CoverArt   []byte        `json:"-"`
	CreatedAt  time.Time     `json:"created_at"`
}

type Playlist struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Tracks      []Track   `json:"tracks"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ItemSource discriminates the two kinds of playable things: tracks that
// belong to the persistent library, and transient catalog results played
// without being added to it.
type ItemSource int

const (
	SourceLibrary ItemSource = iota
	SourceCatalog
)

func (s ItemSource) String() string {
	switch s {
	case SourceLibrary:
		return "library"
	case SourceCatalog:
		return "catalog"
	default:
		return "unknown"
	}
}

// PlayableItem is the unit handed to the playback engine. Exactly one is
// live per playback attempt and it is not mutated after being handed over.
// LocalPath takes priority over StreamURL when both are set.
type PlayableItem struct {
	Source     ItemSource
	ID         string
	Title      string
	Artist     string
	Album      string
	ArtworkURL string
	LocalPath  string
	StreamURL  string
}

// FromTrack builds a library-sourced playable item from a stored track.
func FromTrack(t *Track) PlayableItem {
	return PlayableItem{
		Source:     SourceLibrary,
		ID:         t.ID,
		Title:      t.Title,
		Artist:     t.Artist,
		Album:      t.Album,
		ArtworkURL: t.ArtworkURL,
		LocalPath:  t.FilePath,
		StreamURL:  t.StreamURL,
	}
}

// FromCatalogTrack builds a transient item from a catalog search result.
// Transient items never touch the recently-played log or the browsing queue.
func FromCatalogTrack(t *Track) PlayableItem {
	item := FromTrack(t)
	item.Source = SourceCatalog
	return item
}

// Quality selects the preferred hardware parameters for the audio session.
// It never causes transcoding of an in-flight stream.
type Quality int

const (
	QualityStandard Quality = iota
	QualityHigh
	QualityLossless
)

// SampleRate returns the preferred session sample rate in Hz.
func (q Quality) SampleRate() int {
	switch q {
	case QualityHigh:
		return 48000
	case QualityLossless:
		return 96000
	default:
		return 44100
	}
}

// BitDepth returns the preferred session bit depth.
func (q Quality) BitDepth() int {
	if q == QualityLossless {
		return 24
	}
	return 16
}

func (q Quality) String() string {
	switch q {
	case QualityHigh:
		return "high"
	case QualityLossless:
		return "lossless"
	default:
		return "standard"
	}
}

type PlaybackStatus int

const (
	StatusStopped PlaybackStatus = iota
	StatusPlaying
	StatusPaused
)

type RepeatMode int

const (
	RepeatNone RepeatMode = iota
	RepeatOne
	RepeatAll
)

// PlaybackState is the snapshot of the engine observed by the UI and the
// remote-control surface.
type PlaybackState struct {
	Status      PlaybackStatus
	CurrentItem *PlayableItem
	Position    time.Duration
	Duration    time.Duration
	Quality     Quality
	Volume      float64
}

// Playing reports whether audio is actively being rendered.
func (s *PlaybackState) Playing() bool {
	return s.Status == StatusPlaying
}

type EventType int

const (
	EventTrackStarted EventType = iota
	EventTrackFinished
	EventPositionUpdate
	EventStateChange
	EventError
	EventRemoteNext
	EventRemotePrevious
)

type AudioEvent struct {
	Type    EventType
	Payload interface{}
}

// NowPlayingInfo is the metadata published to the system now-playing
// surface (lock screen / control center equivalent) on state changes.
type NowPlayingInfo struct {
	Title      string
	Artist     string
	Album      string
	ArtworkURL string
	Elapsed    time.Duration
	Duration   time.Duration
	Rate       float64
}

// RemoteCommand is a hardware or lock-screen transport command delivered
// through the now-playing surface.
type RemoteCommand int

const (
	RemotePlay RemoteCommand = iota
	RemotePause
	RemoteToggle
	RemoteNext
	RemotePrevious
)
