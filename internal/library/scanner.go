package library

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"

	"github.com/samber/lo"

	"github.com/fonoslabs/tremolo/api"
	playerrors "github.com/fonoslabs/tremolo/pkg/errors"
)

// Scanner walks directories concurrently with a worker pool.
type Scanner struct {
	workers    int
	formats    []string
	metaReader *MetadataReader
}

func NewScanner(workers int) *Scanner {
	if workers <= 0 {
		workers = 4
	}
	return &Scanner{
		workers:    workers,
		formats:    []string{".mp3", ".wav", ".flac"},
		metaReader: NewMetadataReader(),
	}
}

// SupportedFormats returns the scannable audio extensions.
func (s *Scanner) SupportedFormats() []string {
	return s.formats
}

func (s *Scanner) isSupported(filePath string) bool {
	ext := strings.ToLower(filepath.Ext(filePath))
	return lo.Contains(s.formats, ext)
}

// Scan walks the paths and returns channels of tracks and scan errors.
// Both channels close when the walk and all workers finish.
func (s *Scanner) Scan(ctx context.Context, paths []string) (<-chan *api.Track, <-chan error) {
	tracks := make(chan *api.Track, 100)
	errs := make(chan error, 10)
	files := make(chan string, 100)

	var wg sync.WaitGroup

	go func() {
		defer close(files)
		for _, path := range paths {
			select {
			case <-ctx.Done():
				return
			default:
			}

			err := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
				if err != nil {
					select {
					case errs <- &playerrors.ScanError{Path: p, Err: err}:
					default:
					}
					return nil
				}

				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}

				if !d.IsDir() && s.isSupported(p) {
					select {
					case files <- p:
					case <-ctx.Done():
						return ctx.Err()
					}
				}
				return nil
			})

			if err != nil && err != context.Canceled {
				select {
				case errs <- &playerrors.ScanError{Path: path, Err: err}:
				default:
				}
			}
		}
	}()

	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for filePath := range files {
				select {
				case <-ctx.Done():
					return
				default:
				}

				track, err := s.metaReader.Read(filePath)
				if err != nil {
					select {
					case errs <- &playerrors.ScanError{Path: filePath, Err: err}:
					default:
					}
					continue
				}

				select {
				case tracks <- track:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(tracks)
		close(errs)
	}()

	return tracks, errs
}

// ScanFile reads a single file's metadata.
func (s *Scanner) ScanFile(filePath string) (*api.Track, error) {
	if !s.isSupported(filePath) {
		return nil, playerrors.ErrInvalidFormat
	}
	return s.metaReader.Read(filePath)
}
