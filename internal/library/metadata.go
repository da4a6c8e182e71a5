package library

import (
	"crypto/md5"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dhowden/tag"

	"github.com/fonoslabs/tremolo/api"
)

// MetadataReader extracts tags from audio files.
type MetadataReader struct{}

func NewMetadataReader() *MetadataReader {
	return &MetadataReader{}
}

// Read extracts metadata from an audio file and returns a Track. Files
// without tags still produce a track named after the file.
func (r *MetadataReader) Read(filePath string) (*api.Track, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	id := generateTrackID(filePath)

	metadata, err := tag.ReadFrom(file)
	if err != nil {
		return &api.Track{
			ID:        id,
			Title:     filepath.Base(filePath),
			FilePath:  filePath,
			CreatedAt: time.Now(),
		}, nil
	}

	track := &api.Track{
		ID:        id,
		Title:     getOrDefault(metadata.Title(), filepath.Base(filePath)),
		Artist:    getOrDefault(metadata.Artist(), "Unknown Artist"),
		Album:     getOrDefault(metadata.Album(), "Unknown Album"),
		Genre:     getOrDefault(metadata.Genre(), ""),
		Year:      metadata.Year(),
		FilePath:  filePath,
		CreatedAt: time.Now(),
	}

	trackNum, _ := metadata.Track()
	track.TrackNum = trackNum

	return track, nil
}

// ReadCoverArt extracts embedded cover art, if any.
func (r *MetadataReader) ReadCoverArt(filePath string) ([]byte, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	metadata, err := tag.ReadFrom(file)
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}

	if picture := metadata.Picture(); picture != nil {
		return picture.Data, nil
	}
	return nil, nil
}

// generateTrackID derives a stable ID from the file path.
func generateTrackID(filePath string) string {
	hash := md5.Sum([]byte(filePath))
	return fmt.Sprintf("track-%x", hash[:8])
}

func getOrDefault(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}
