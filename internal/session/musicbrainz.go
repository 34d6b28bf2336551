package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultMusicBrainzURL       = "https://musicbrainz.org/ws/2"
	DefaultMusicBrainzUserAgent = "LiveSetlist/0.1 ( https://github.com/himanishpuri/LiveSetlist )"
)

// MusicBrainzStrategy resolves composers through recording → work → artist
// relations. Requests are serialised and spaced by MinInterval to stay within
// the service's rate limit.
type MusicBrainzStrategy struct {
	BaseURL     string
	UserAgent   string
	MinInterval time.Duration
	HTTPClient  *http.Client

	sem  *semaphore.Weighted
	mu   sync.Mutex
	last time.Time
}

func NewMusicBrainzStrategy(userAgent string) *MusicBrainzStrategy {
	if userAgent == "" {
		userAgent = DefaultMusicBrainzUserAgent
	}
	return &MusicBrainzStrategy{
		BaseURL:     DefaultMusicBrainzURL,
		UserAgent:   userAgent,
		MinInterval: time.Second,
		HTTPClient:  &http.Client{Timeout: 10 * time.Second},
		sem:         semaphore.NewWeighted(1),
	}
}

func (m *MusicBrainzStrategy) Name() string { return "musicbrainz" }

type mbRelation struct {
	Type   string `json:"type"`
	Work   *struct {
		ID string `json:"id"`
	} `json:"work"`
	Artist *struct {
		Name string `json:"name"`
	} `json:"artist"`
}

func (m *MusicBrainzStrategy) Resolve(ctx context.Context, q Query) (Resolution, error) {
	recordingID, err := m.findRecording(ctx, q)
	if err != nil {
		return Resolution{}, err
	}
	if recordingID == "" {
		return Resolution{}, nil
	}

	var rec struct {
		Relations []mbRelation `json:"relations"`
	}
	found, err := m.get(ctx, "/recording/"+url.PathEscape(recordingID), url.Values{"inc": {"work-rels"}}, &rec)
	if err != nil {
		return Resolution{}, err
	}
	if !found {
		return Resolution{}, nil
	}

	workID := ""
	for _, rel := range rec.Relations {
		if rel.Work != nil && rel.Work.ID != "" {
			workID = rel.Work.ID
			break
		}
	}
	if workID == "" {
		workID, err = m.searchWork(ctx, q.Title)
		if err != nil {
			return Resolution{}, err
		}
	}
	if workID == "" {
		return Resolution{Found: true}, nil
	}

	composer, err := m.workComposers(ctx, workID)
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{Found: true, Composer: composer}, nil
}

func (m *MusicBrainzStrategy) findRecording(ctx context.Context, q Query) (string, error) {
	var res struct {
		Recordings []struct {
			ID string `json:"id"`
		} `json:"recordings"`
	}
	if q.ISRC != "" {
		found, err := m.get(ctx, "/isrc/"+url.PathEscape(q.ISRC), nil, &res)
		if err != nil {
			return "", err
		}
		if found && len(res.Recordings) > 0 {
			return res.Recordings[0].ID, nil
		}
	}

	query := fmt.Sprintf("recording:%q AND artist:%q", q.Title, q.Artist)
	found, err := m.get(ctx, "/recording", url.Values{"query": {query}, "limit": {"3"}}, &res)
	if err != nil || !found || len(res.Recordings) == 0 {
		return "", err
	}
	return res.Recordings[0].ID, nil
}

func (m *MusicBrainzStrategy) searchWork(ctx context.Context, title string) (string, error) {
	var res struct {
		Works []struct {
			ID string `json:"id"`
		} `json:"works"`
	}
	found, err := m.get(ctx, "/work", url.Values{"query": {fmt.Sprintf("work:%q", title)}, "limit": {"1"}}, &res)
	if err != nil || !found || len(res.Works) == 0 {
		return "", err
	}
	return res.Works[0].ID, nil
}

func (m *MusicBrainzStrategy) workComposers(ctx context.Context, workID string) (string, error) {
	var work struct {
		Relations []mbRelation `json:"relations"`
	}
	found, err := m.get(ctx, "/work/"+url.PathEscape(workID), url.Values{"inc": {"artist-rels"}}, &work)
	if err != nil || !found {
		return "", err
	}
	var names []string
	for _, rel := range work.Relations {
		if rel.Artist == nil {
			continue
		}
		if rel.Type == "composer" || rel.Type == "writer" {
			names = append(names, rel.Artist.Name)
		}
	}
	return joinNames(names), nil
}

// get decodes a JSON resource. A 404 is reported as found=false; other 4xx
// answers (except 429) are permanent failures.
func (m *MusicBrainzStrategy) get(ctx context.Context, path string, params url.Values, out any) (bool, error) {
	if err := m.sem.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer m.sem.Release(1)
	if err := m.pace(ctx); err != nil {
		return false, err
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("fmt", "json")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.BaseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return false, backoff.Permanent(fmt.Errorf("musicbrainz request: %w", err))
	}
	req.Header.Set("User-Agent", m.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := m.HTTPClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("musicbrainz %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return false, fmt.Errorf("musicbrainz %s: status %d", path, resp.StatusCode)
	case resp.StatusCode >= 400:
		return false, backoff.Permanent(fmt.Errorf("musicbrainz %s: status %d", path, resp.StatusCode))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("decoding musicbrainz %s: %w", path, err)
	}
	return true, nil
}

func (m *MusicBrainzStrategy) pace(ctx context.Context) error {
	m.mu.Lock()
	wait := m.MinInterval - time.Since(m.last)
	m.mu.Unlock()
	if wait > 0 {
		t := time.NewTimer(wait)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	m.mu.Lock()
	m.last = time.Now()
	m.mu.Unlock()
	return nil
}
