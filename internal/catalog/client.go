// Package catalog talks to the streaming catalog HTTP API.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/fonoslabs/tremolo/api"
)

// Client is a thin JSON client for the catalog service. All methods take
// a context so callers can bound lookups made on the playback path.
type Client struct {
	baseURL string
	http    *http.Client
	log     *logrus.Entry
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
		log:     logrus.WithField("component", "catalog"),
	}
}

type searchResponse struct {
	Results []catalogTrack `json:"results"`
}

type catalogTrack struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Album      string `json:"album"`
	DurationMS int64  `json:"duration_ms"`
	ArtworkURL string `json:"artwork_url"`
	StreamURL  string `json:"stream_url"`
}

type downloadResponse struct {
	URL string `json:"url"`
}

// Search queries the catalog and maps results into library track values.
func (c *Client) Search(ctx context.Context, query string) ([]*api.Track, error) {
	endpoint := fmt.Sprintf("%s/search?q=%s", c.baseURL, url.QueryEscape(query))

	var resp searchResponse
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("catalog search %q: %w", query, err)
	}

	c.log.WithFields(logrus.Fields{"query": query, "results": len(resp.Results)}).Debug("catalog search")

	return lo.Map(resp.Results, func(t catalogTrack, _ int) *api.Track {
		return &api.Track{
			ID:         t.ID,
			Title:      t.Title,
			Artist:     t.Artist,
			Album:      t.Album,
			Duration:   time.Duration(t.DurationMS) * time.Millisecond,
			ArtworkURL: t.ArtworkURL,
			StreamURL:  t.StreamURL,
		}
	}), nil
}

// DownloadURL fetches a short-lived playable URL for a catalog track.
func (c *Client) DownloadURL(ctx context.Context, trackID string) (string, error) {
	endpoint := fmt.Sprintf("%s/tracks/%s/download", c.baseURL, url.PathEscape(trackID))

	var resp downloadResponse
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return "", fmt.Errorf("catalog download url for %s: %w", trackID, err)
	}
	if resp.URL == "" {
		return "", fmt.Errorf("catalog returned empty download url for %s", trackID)
	}
	return resp.URL, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
