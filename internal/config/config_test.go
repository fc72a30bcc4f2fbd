package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()

	assert.InDelta(t, 0.7, cfg.Scoring.FuzzyWeight, 1e-9)
	assert.InDelta(t, 0.3, cfg.Scoring.EmbedWeight, 1e-9)
	assert.Equal(t, 50, cfg.Search.DefaultCount)
	assert.Equal(t, 200, cfg.Search.MaxCount)
	assert.Equal(t, 5*time.Second, cfg.Search.SourceTimeout.Std())
	assert.Contains(t, cfg.Search.Stoplist, "the")
	assert.Contains(t, cfg.Search.Stoplist, "you")
	require.NoError(t, cfg.Validate())
}

func TestLoadProjectConfig(t *testing.T) {
	tmpDir := t.TempDir()
	content := `
scoring:
  fuzzy_weight: 0.6
  embed_weight: 0.4
search:
  default_count: 25
  source_timeout: 2s
sources:
  remote:
    endpoint: https://search.example.com
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ".skysift.yaml"), []byte(content), 0o644))

	cfg, err := Load(tmpDir)
	require.NoError(t, err)

	assert.InDelta(t, 0.6, cfg.Scoring.FuzzyWeight, 1e-9)
	assert.InDelta(t, 0.4, cfg.Scoring.EmbedWeight, 1e-9)
	assert.Equal(t, 25, cfg.Search.DefaultCount)
	assert.Equal(t, 2*time.Second, cfg.Search.SourceTimeout.Std())
	assert.Equal(t, "https://search.example.com", cfg.Sources.Remote.Endpoint)
	// Unset fields keep defaults
	assert.Equal(t, 200, cfg.Search.MaxCount)
}

func TestLoadMissingProjectConfig(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Search.DefaultCount)
}

func TestLoadInvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ".skysift.yaml"), []byte("search: [not a map"), 0o644))

	_, err := Load(tmpDir)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SKYSIFT_FUZZY_WEIGHT", "0.9")
	t.Setenv("SKYSIFT_DEFAULT_COUNT", "10")
	t.Setenv("SKYSIFT_SOURCE_TIMEOUT", "500ms")
	t.Setenv("SKYSIFT_REMOTE_ENDPOINT", "https://env.example.com")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.InDelta(t, 0.9, cfg.Scoring.FuzzyWeight, 1e-9)
	assert.Equal(t, 10, cfg.Search.DefaultCount)
	assert.Equal(t, 500*time.Millisecond, cfg.Search.SourceTimeout.Std())
	assert.Equal(t, "https://env.example.com", cfg.Sources.Remote.Endpoint)
}

func TestEnvOverrideIgnoresGarbage(t *testing.T) {
	t.Setenv("SKYSIFT_DEFAULT_COUNT", "banana")
	t.Setenv("SKYSIFT_FUZZY_WEIGHT", "-3")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.Search.DefaultCount)
	assert.InDelta(t, 0.7, cfg.Scoring.FuzzyWeight, 1e-9)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "negative fuzzy weight",
			mutate:  func(c *Config) { c.Scoring.FuzzyWeight = -0.1 },
			wantErr: "fuzzy_weight",
		},
		{
			name:    "zero default count",
			mutate:  func(c *Config) { c.Search.DefaultCount = 0 },
			wantErr: "default_count",
		},
		{
			name:    "max below default",
			mutate:  func(c *Config) { c.Search.MaxCount = 10 },
			wantErr: "max_count",
		},
		{
			name:    "zero source timeout",
			mutate:  func(c *Config) { c.Search.SourceTimeout = 0 },
			wantErr: "source_timeout",
		},
		{
			name:    "uppercase stoplist entry",
			mutate:  func(c *Config) { c.Search.Stoplist = []string{"The"} },
			wantErr: "stoplist",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "loud" },
			wantErr: "logging.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")

	cfg := NewConfig()
	cfg.Scoring.FuzzyWeight = 0.55
	require.NoError(t, cfg.WriteYAML(path))

	loaded := NewConfig()
	require.NoError(t, loaded.loadYAML(path))
	assert.InDelta(t, 0.55, loaded.Scoring.FuzzyWeight, 1e-9)
}
