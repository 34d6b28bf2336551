package recognition

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/himanishpuri/LiveSetlist/pkg/models"
)

const (
	DefaultScribeURL         = "https://api.elevenlabs.io/v1/speech-to-text"
	DefaultScribeModel       = "scribe_v1"
	DefaultTranscriptTimeout = 10 * time.Second
)

// Transcriber turns a WAV sample into free text.
type Transcriber interface {
	Transcribe(ctx context.Context, wav []byte) (string, error)
}

type ScribeConfig struct {
	APIKey     string
	URL        string
	Model      string
	Language   string // fixed language_code hint; overrides SetLanguage
	Timeout    time.Duration
	HTTPClient *http.Client
}

type ScribeClient struct {
	cfg    ScribeConfig
	client *http.Client

	mu       sync.RWMutex
	detected string
}

func NewScribeClient(cfg ScribeConfig) *ScribeClient {
	if cfg.URL == "" {
		cfg.URL = DefaultScribeURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultScribeModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTranscriptTimeout
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &ScribeClient{cfg: cfg, client: client}
}

// SetLanguage sets the hint sent when no Language is configured. An empty
// code lets the service detect the language itself.
func (c *ScribeClient) SetLanguage(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.detected = code
}

func (c *ScribeClient) language() string {
	if c.cfg.Language != "" {
		return c.cfg.Language
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.detected
}

func (c *ScribeClient) Transcribe(ctx context.Context, wav []byte) (string, error) {
	if c.cfg.APIKey == "" {
		return "", errors.New("scribe: missing api key")
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(wav); err != nil {
		return "", err
	}
	_ = w.WriteField("model_id", c.cfg.Model)
	_ = w.WriteField("tag_audio_events", "false")
	if lang := c.language(); lang != "" {
		_ = w.WriteField("language_code", lang)
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, &buf)
	if err != nil {
		return "", fmt.Errorf("building transcript request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("xi-api-key", c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcript request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading transcript response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("transcript request: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", nil
	}
	return strings.TrimSpace(out.Text), nil
}

// TranscriptMatcher pairs a transcriber with a lyric corpus so a window can
// be recognised from what is sung rather than how it sounds.
type TranscriptMatcher struct {
	Transcriber Transcriber
	Corpus      *LyricsCorpus
}

// Match returns ErrNoMatch when the transcript does not identify a song of
// the target artist.
func (m *TranscriptMatcher) Match(ctx context.Context, wav []byte, artist string) (*models.Candidate, error) {
	if m == nil || m.Transcriber == nil || m.Corpus == nil {
		return nil, ErrNoMatch
	}
	text, err := m.Transcriber.Transcribe(ctx, wav)
	if err != nil {
		return nil, err
	}
	c := m.Corpus.Match(text, artist)
	if c == nil {
		return nil, ErrNoMatch
	}
	return c, nil
}
