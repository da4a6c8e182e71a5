package audio

import (
	"path/filepath"
	"strings"

	"github.com/fonoslabs/tremolo/api"
)

// BackendKind identifies which playback backend owns the audio output.
type BackendKind int

const (
	BackendNone BackendKind = iota
	BackendDirect
	BackendPrecision
)

func (k BackendKind) String() string {
	switch k {
	case BackendDirect:
		return "direct"
	case BackendPrecision:
		return "precision"
	default:
		return "none"
	}
}

// losslessExtensions are local container formats routed through the
// precision decode path for explicit sample-rate control.
var losslessExtensions = map[string]bool{
	".flac": true,
}

// SelectBackend decides which backend plays an item. Precision is chosen
// only for local files in a lossless container; everything else (remote
// streams, lossy local files) goes through the direct transport. Pure
// decision, no side effects.
func SelectBackend(item *api.PlayableItem) BackendKind {
	if item.LocalPath == "" {
		return BackendDirect
	}
	ext := strings.ToLower(filepath.Ext(item.LocalPath))
	if losslessExtensions[ext] {
		return BackendPrecision
	}
	return BackendDirect
}
