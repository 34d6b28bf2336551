package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 20*time.Second, cfg.Timing.WindowDuration)
	assert.Equal(t, 6*time.Second, cfg.Timing.Interval)
	assert.Equal(t, 10*time.Second, cfg.Timing.DegradedInterval)
	assert.Equal(t, 3, cfg.Timing.Workers)
	assert.Equal(t, 15, cfg.Timing.DedupWindow)
	assert.Equal(t, 72.0, cfg.Scoring.MusicThreshold)
	assert.Equal(t, 11*time.Second, cfg.Recognition.Timeout)
	assert.Equal(t, "https://api.lyrics.ovh", cfg.Transcript.LyricsURL)
}

func TestLoadFromDotenv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	content := "LIVESETLIST_TEST_KEY=abc\nINTERVAL_SECONDS=7.5\nWORKERS=not-a-number\nACR_TIMEOUT=12s\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	for _, k := range []string{"LIVESETLIST_TEST_KEY", "INTERVAL_SECONDS", "WORKERS", "ACR_TIMEOUT"} {
		key := k
		t.Cleanup(func() { os.Unsetenv(key) })
	}

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "abc", os.Getenv("LIVESETLIST_TEST_KEY"))
	assert.Equal(t, 7500*time.Millisecond, cfg.Timing.Interval)
	assert.Equal(t, 3, cfg.Timing.Workers)
	assert.Equal(t, 12*time.Second, cfg.Recognition.Timeout)
}

func TestEnvironmentWins(t *testing.T) {
	t.Setenv("LIVESETLIST_DB_BACKEND", "badger")
	cfg, err := Load(filepath.Join(t.TempDir(), "none.env"))
	require.NoError(t, err)
	assert.Equal(t, "badger", cfg.Storage.Backend)
}
