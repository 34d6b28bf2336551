// Package config loads runtime settings from the environment, optionally
// seeded from a dotenv file.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Recognition RecognitionConfig
	Transcript  TranscriptConfig
	Catalog     CatalogConfig
	Storage     StorageConfig
	Timing      TimingConfig
	Scoring     ScoringConfig
	Log         LogConfig
}

type RecognitionConfig struct {
	Host         string
	AccessKey    string
	AccessSecret string
	Timeout      time.Duration
}

type TranscriptConfig struct {
	APIKey    string
	Language  string
	LyricsDir string
	LyricsURL string // lyrics.ovh base URL; empty disables fetching
	Timeout   time.Duration
}

type CatalogConfig struct {
	SetlistFMKey        string
	SpotifyClientID     string
	SpotifyClientSecret string
	MusicBrainzAgent    string
}

type StorageConfig struct {
	Backend  string // sqlite, badger, mongo, memory
	Path     string
	MongoURI string
	MongoDB  string
}

type TimingConfig struct {
	WindowDuration   time.Duration
	Interval         time.Duration
	DegradedInterval time.Duration
	StartupGrace     time.Duration
	Workers          int
	DedupWindow      int
}

type ScoringConfig struct {
	MusicThreshold   float64
	HummingThreshold float64
	WhitelistBoost   float64
	ArtistBoost      float64
	PredictionBoost  float64
	MergeBonus       float64
}

type LogConfig struct {
	Level string
	File  string
}

// Load reads envFile (".env" when empty) if present and then the process
// environment. A missing dotenv file is not an error.
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, err
		}
	}

	return &Config{
		Recognition: RecognitionConfig{
			Host:         getEnv("ACR_HOST", ""),
			AccessKey:    getEnv("ACR_ACCESS_KEY", ""),
			AccessSecret: getEnv("ACR_ACCESS_SECRET", ""),
			Timeout:      getEnvAsDuration("ACR_TIMEOUT", 11*time.Second),
		},
		Transcript: TranscriptConfig{
			APIKey:    getEnv("ELEVENLABS_API_KEY", ""),
			Language:  getEnv("TRANSCRIPT_LANGUAGE", ""),
			LyricsDir: getEnv("LYRICS_DIR", "lyrics_cache"),
			LyricsURL: getEnv("LYRICS_URL", "https://api.lyrics.ovh"),
			Timeout:   getEnvAsDuration("TRANSCRIPT_TIMEOUT", 10*time.Second),
		},
		Catalog: CatalogConfig{
			SetlistFMKey:        getEnv("SETLIST_FM_KEY", ""),
			SpotifyClientID:     getEnv("SPOTIFY_CLIENT_ID", ""),
			SpotifyClientSecret: getEnv("SPOTIFY_CLIENT_SECRET", ""),
			MusicBrainzAgent:    getEnv("MUSICBRAINZ_USER_AGENT", "LiveSetlist/1.0 ( livesetlist@example.com )"),
		},
		Storage: StorageConfig{
			Backend:  getEnv("LIVESETLIST_DB_BACKEND", "sqlite"),
			Path:     getEnv("LIVESETLIST_DB_PATH", DefaultDBPath()),
			MongoURI: getEnv("LIVESETLIST_MONGO_URI", "mongodb://localhost:27017"),
			MongoDB:  getEnv("LIVESETLIST_MONGO_DB", "livesetlist"),
		},
		Timing: TimingConfig{
			WindowDuration:   getEnvAsSeconds("WINDOW_SECONDS", 20*time.Second),
			Interval:         getEnvAsSeconds("INTERVAL_SECONDS", 6*time.Second),
			DegradedInterval: getEnvAsSeconds("DEGRADED_INTERVAL_SECONDS", 10*time.Second),
			StartupGrace:     getEnvAsSeconds("STARTUP_GRACE_SECONDS", 5*time.Second),
			Workers:          getEnvAsInt("WORKERS", 3),
			DedupWindow:      getEnvAsInt("DEDUP_WINDOW", 15),
		},
		Scoring: ScoringConfig{
			MusicThreshold:   getEnvAsFloat("MUSIC_THRESHOLD", 72),
			HummingThreshold: getEnvAsFloat("HUMMING_THRESHOLD", 70),
			WhitelistBoost:   getEnvAsFloat("WHITELIST_BOOST", 65),
			ArtistBoost:      getEnvAsFloat("ARTIST_BOOST", 45),
			PredictionBoost:  getEnvAsFloat("PREDICTION_BOOST", 80),
			MergeBonus:       getEnvAsFloat("MERGE_BONUS", 5),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "INFO"),
			File:  getEnv("LOG_FILE", ""),
		},
	}, nil
}

// DefaultDBPath returns the default database location under the user's
// home directory, or the working directory when no home is available.
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "livesetlist.sqlite3"
	}
	return filepath.Join(home, ".livesetlist", "livesetlist.sqlite3")
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go duration strings ("11s", "1m").
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsSeconds accepts a plain (possibly fractional) number of seconds.
func getEnvAsSeconds(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil && value > 0 {
		return time.Duration(value * float64(time.Second))
	}
	return fallback
}
