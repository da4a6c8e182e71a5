// Package resolver decides where an item's audio actually comes from:
// a file on disk, the item's own stream URL, or a URL fetched from the
// catalog on demand.
package resolver

import (
	"context"
	"net/url"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fonoslabs/tremolo/api"
	"github.com/fonoslabs/tremolo/pkg/errors"
)

// CatalogService is the slice of the catalog client the resolver needs.
type CatalogService interface {
	DownloadURL(ctx context.Context, trackID string) (string, error)
}

const resolveAttempts = 3

// Resolver implements the engine's source resolution. Local files win
// over stream URLs; catalog lookups are retried with a short backoff
// because the catalog occasionally serves transient 5xx responses.
type Resolver struct {
	catalog    CatalogService
	unreliable map[string]struct{}
	backoff    time.Duration
	log        *logrus.Entry
}

func New(catalog CatalogService, unreliableHosts []string) *Resolver {
	hosts := make(map[string]struct{}, len(unreliableHosts))
	for _, h := range unreliableHosts {
		hosts[h] = struct{}{}
	}
	return &Resolver{
		catalog:    catalog,
		unreliable: hosts,
		backoff:    500 * time.Millisecond,
		log:        logrus.WithField("component", "resolver"),
	}
}

// LocalFileURL reports the item's local path if the file is present on
// disk. A dangling path (file deleted since the library scan) is treated
// as absent so playback falls through to streaming.
func (r *Resolver) LocalFileURL(item *api.PlayableItem) (string, bool) {
	if item.LocalPath == "" {
		return "", false
	}
	if _, err := os.Stat(item.LocalPath); err != nil {
		r.log.WithField("path", item.LocalPath).Debug("local file missing, falling back to stream")
		return "", false
	}
	return item.LocalPath, true
}

// RemoteURL parses the item's embedded stream URL, if it has one.
func (r *Resolver) RemoteURL(item *api.PlayableItem) (*url.URL, bool) {
	if item.StreamURL == "" {
		return nil, false
	}
	u, err := url.Parse(item.StreamURL)
	if err != nil || u.Host == "" {
		r.log.WithField("url", item.StreamURL).Warn("unparseable stream url")
		return nil, false
	}
	return u, true
}

// ResolveStreamURL asks the catalog for a playable URL, retrying
// transient failures before giving up.
func (r *Resolver) ResolveStreamURL(ctx context.Context, trackID string) (*url.URL, error) {
	if r.catalog == nil {
		return nil, &errors.ResolveError{TrackID: trackID, Attempts: 0, Err: errors.ErrResolveExhausted}
	}

	var lastErr error
	for attempt := 1; attempt <= resolveAttempts; attempt++ {
		raw, err := r.catalog.DownloadURL(ctx, trackID)
		if err == nil {
			u, perr := url.Parse(raw)
			if perr == nil && u.Host != "" {
				return u, nil
			}
			err = perr
			if err == nil {
				err = errors.ErrResolveExhausted
			}
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, &errors.ResolveError{TrackID: trackID, Attempts: attempt, Err: ctx.Err()}
		}
		if attempt < resolveAttempts {
			r.log.WithError(err).WithField("attempt", attempt).Debug("resolve failed, retrying")
			select {
			case <-ctx.Done():
				return nil, &errors.ResolveError{TrackID: trackID, Attempts: attempt, Err: ctx.Err()}
			case <-time.After(r.backoff * time.Duration(attempt)):
			}
		}
	}
	return nil, &errors.ResolveError{TrackID: trackID, Attempts: resolveAttempts, Err: lastErr}
}

// FallbackURL derives the one-shot http retry URL for hosts configured
// as having broken TLS. Anything else has no fallback.
func (r *Resolver) FallbackURL(u *url.URL) (*url.URL, bool) {
	if u == nil || u.Scheme != "https" {
		return nil, false
	}
	if _, ok := r.unreliable[u.Hostname()]; !ok {
		return nil, false
	}
	alt := *u
	alt.Scheme = "http"
	return &alt, true
}
