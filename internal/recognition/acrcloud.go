// Package recognition turns audio windows into ranked song candidates: the
// fingerprinting and transcript collaborators, the arbitrator that filters
// and boosts their output, and the rule that picks between the two signals.
package recognition

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/himanishpuri/LiveSetlist/pkg/models"
)

const (
	identifyPath     = "/v1/identify"
	dataTypeAudio    = "audio"
	signatureVersion = "1"

	codeSuccess  = 0
	codeNoResult = 1001

	DefaultFingerprintTimeout = 11 * time.Second
)

var (
	ErrNoMatch       = errors.New("no match")
	ErrNotConfigured = errors.New("acrcloud: missing host, access key or access secret")
)

// Result is the parsed outcome of one identification call.
type Result struct {
	Status     models.CandidateStatus
	Code       int
	Message    string
	Candidates []models.Candidate
}

// Fingerprinter identifies a WAV sample. A non-nil error means the call
// itself failed (network, timeout, HTTP status); "no match" and malformed
// bodies are reported through Result.Status.
type Fingerprinter interface {
	Identify(ctx context.Context, wav []byte) (Result, error)
}

type ACRCloudConfig struct {
	Host         string
	AccessKey    string
	AccessSecret string
	Timeout      time.Duration
	Scheme       string // defaults to https
	HTTPClient   *http.Client
}

// ACRCloudClient signs and posts samples to an identify endpoint. It never
// retries: a slow or failed call should surface quickly so the next cycle
// can fall back to degraded audio.
type ACRCloudClient struct {
	cfg    ACRCloudConfig
	client *http.Client
	now    func() time.Time
}

func NewACRCloudClient(cfg ACRCloudConfig) *ACRCloudClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultFingerprintTimeout
	}
	if cfg.Scheme == "" {
		cfg.Scheme = "https"
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &ACRCloudClient{cfg: cfg, client: client, now: time.Now}
}

// Sign computes the base64 HMAC-SHA1 request signature.
func Sign(secret, accessKey, timestamp string) string {
	toSign := strings.Join([]string{
		http.MethodPost, identifyPath, accessKey, dataTypeAudio, signatureVersion, timestamp,
	}, "\n")
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write([]byte(toSign))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Validate reports ErrNotConfigured unless host and credentials are set.
func (cfg ACRCloudConfig) Validate() error {
	if cfg.Host == "" || cfg.AccessKey == "" || cfg.AccessSecret == "" {
		return ErrNotConfigured
	}
	return nil
}

// Identify posts one sample. An unconfigured client answers with an error
// status but no call error, so it is never mistaken for a network failure;
// callers are expected to Validate the config up front.
func (c *ACRCloudClient) Identify(ctx context.Context, wav []byte) (Result, error) {
	if err := c.cfg.Validate(); err != nil {
		return Result{Status: models.StatusError, Message: err.Error()}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	body, contentType, err := c.form(wav)
	if err != nil {
		return Result{Status: models.StatusError}, err
	}

	url := fmt.Sprintf("%s://%s%s", c.cfg.Scheme, c.cfg.Host, identifyPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return Result{Status: models.StatusError}, fmt.Errorf("building identify request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(req)
	if err != nil {
		return Result{Status: models.StatusError}, fmt.Errorf("identify request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{Status: models.StatusError, Code: resp.StatusCode},
			fmt.Errorf("identify request: unexpected status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{Status: models.StatusError}, fmt.Errorf("reading identify response: %w", err)
	}
	return ParseIdentifyResponse(raw), nil
}

func (c *ACRCloudClient) form(wav []byte) (*bytes.Buffer, string, error) {
	timestamp := strconv.FormatInt(c.now().Unix(), 10)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("sample", "sample.wav")
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(wav); err != nil {
		return nil, "", err
	}

	fields := [][2]string{
		{"access_key", c.cfg.AccessKey},
		{"sample_bytes", strconv.Itoa(len(wav))},
		{"timestamp", timestamp},
		{"signature", Sign(c.cfg.AccessSecret, c.cfg.AccessKey, timestamp)},
		{"data_type", dataTypeAudio},
		{"signature_version", signatureVersion},
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

type identifyResponse struct {
	Status struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	} `json:"status"`
	Metadata struct {
		Music   []json.RawMessage `json:"music"`
		Humming []json.RawMessage `json:"humming"`
	} `json:"metadata"`
}

type trackEntry struct {
	Title   string `json:"title"`
	Artists []struct {
		Name string `json:"name"`
	} `json:"artists"`
	Album struct {
		Name string `json:"name"`
	} `json:"album"`
	DurationMs  int     `json:"duration_ms"`
	Score       float64 `json:"score"`
	ExternalIDs struct {
		ISRC string `json:"isrc"`
		UPC  string `json:"upc"`
	} `json:"external_ids"`
	ExternalMetadata map[string]any `json:"external_metadata"`
}

// ParseIdentifyResponse maps a response body to a Result. Anything that
// does not parse is a "not found", never an error.
func ParseIdentifyResponse(body []byte) Result {
	var resp identifyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Result{Status: models.StatusNotFound, Message: "malformed response"}
	}

	res := Result{Code: resp.Status.Code, Message: resp.Status.Msg}
	switch resp.Status.Code {
	case codeSuccess:
	case codeNoResult:
		res.Status = models.StatusNotFound
		return res
	default:
		res.Status = models.StatusError
		return res
	}

	res.Candidates = append(res.Candidates, parseSection(resp.Metadata.Music, models.TypeOriginal)...)
	res.Candidates = append(res.Candidates, parseSection(resp.Metadata.Humming, models.TypeCover)...)
	if len(res.Candidates) == 0 {
		res.Status = models.StatusNotFound
		return res
	}
	res.Status = models.StatusSuccess
	return res
}

func parseSection(entries []json.RawMessage, typ models.CandidateType) []models.Candidate {
	out := make([]models.Candidate, 0, len(entries))
	for _, rawEntry := range entries {
		var t trackEntry
		if err := json.Unmarshal(rawEntry, &t); err != nil || t.Title == "" {
			continue
		}
		var raw map[string]any
		_ = json.Unmarshal(rawEntry, &raw)

		c := models.Candidate{
			Status:     models.StatusSuccess,
			Title:      t.Title,
			Album:      t.Album.Name,
			Score:      scaleScore(t.Score),
			Type:       typ,
			DurationMs: t.DurationMs,
			ISRC:       t.ExternalIDs.ISRC,
			UPC:        t.ExternalIDs.UPC,
			Raw:        raw,
			Source:     "fingerprint",
		}
		if len(t.Artists) > 0 {
			c.Artist = t.Artists[0].Name
		}
		if c.UPC == "" {
			if upc, ok := t.ExternalMetadata["upc"].(string); ok {
				c.UPC = upc
			}
		}
		out = append(out, c)
	}
	return out
}

// scaleScore maps 0..1 confidences onto the 0..100 scale used everywhere else.
func scaleScore(s float64) float64 {
	if s <= 1.0 {
		return s * 100
	}
	return s
}
