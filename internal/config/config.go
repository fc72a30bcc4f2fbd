// Package config loads and validates skysift configuration.
//
// Configuration is applied in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User config (~/.config/skysift/config.yaml)
//  3. Project config (.skysift.yaml in the working directory)
//  4. Environment variables (SKYSIFT_*)
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete skysift configuration.
type Config struct {
	Version   int             `yaml:"version" json:"version"`
	Artifacts ArtifactsConfig `yaml:"artifacts" json:"artifacts"`
	Scoring   ScoringConfig   `yaml:"scoring" json:"scoring"`
	Search    SearchConfig    `yaml:"search" json:"search"`
	Sources   SourcesConfig   `yaml:"sources" json:"sources"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
}

// ArtifactsConfig locates the model artifacts loaded at startup.
type ArtifactsConfig struct {
	// VocabPath is the path to the vocabulary artifact (SVOC binary).
	VocabPath string `yaml:"vocab_path" json:"vocab_path"`
	// RulesPath is the path to the normalization rule table (TSV).
	RulesPath string `yaml:"rules_path" json:"rules_path"`
	// EmbeddingPath is the path to the quantized embedding table.
	EmbeddingPath string `yaml:"embedding_path" json:"embedding_path"`
}

// ScoringConfig holds the composite ranking weights.
// Defaults preserve the qualitative orderings documented in DESIGN.md:
// quoted literals dominate pattern matches, which dominate generic fuzzy.
type ScoringConfig struct {
	// FuzzyWeight scales the fuzzy match score (0.0-1.0).
	FuzzyWeight float64 `yaml:"fuzzy_weight" json:"fuzzy_weight"`
	// EmbedWeight scales the embedding similarity (0.0-1.0).
	EmbedWeight float64 `yaml:"embed_weight" json:"embed_weight"`
	// PatternBonus is added when a special pattern matches structurally.
	PatternBonus float64 `yaml:"pattern_bonus" json:"pattern_bonus"`
}

// SearchConfig configures query planning and result shaping.
type SearchConfig struct {
	// DefaultCount is the result count when the caller does not specify one.
	DefaultCount int `yaml:"default_count" json:"default_count"`
	// MaxCount caps the result count regardless of what the caller asks for.
	MaxCount int `yaml:"max_count" json:"max_count"`
	// Stoplist words are excluded from per-word sub-queries.
	// Entries must be lowercase.
	Stoplist []string `yaml:"stoplist" json:"stoplist"`
	// SourceTimeout bounds each (source, sub-query) call.
	SourceTimeout Duration `yaml:"source_timeout" json:"source_timeout"`
	// OverallTimeout bounds the whole search.
	OverallTimeout Duration `yaml:"overall_timeout" json:"overall_timeout"`
	// EmbedCacheSize is the LRU capacity for candidate embeddings.
	EmbedCacheSize int `yaml:"embed_cache_size" json:"embed_cache_size"`
	// RankWorkers is the worker pool size for concurrent candidate scoring.
	// 0 means one worker per CPU.
	RankWorkers int `yaml:"rank_workers" json:"rank_workers"`
}

// SourcesConfig configures the search source collaborators.
type SourcesConfig struct {
	Local   LocalSourceConfig   `yaml:"local" json:"local"`
	Remote  RemoteSourceConfig  `yaml:"remote" json:"remote"`
	Profile ProfileSourceConfig `yaml:"profile" json:"profile"`
}

// LocalSourceConfig configures the SQLite-backed local post store.
type LocalSourceConfig struct {
	// DBPath is the SQLite database path. Empty disables the local source.
	DBPath string `yaml:"db_path" json:"db_path"`
}

// RemoteSourceConfig configures the authenticated remote search API client.
type RemoteSourceConfig struct {
	// Endpoint is the remote search API base URL.
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	// RatePerSec limits outgoing request rate. 0 disables limiting.
	RatePerSec float64 `yaml:"rate_per_sec" json:"rate_per_sec"`
	// Burst is the rate limiter burst size.
	Burst int `yaml:"burst" json:"burst"`
}

// ProfileSourceConfig configures the public profile directory client.
type ProfileSourceConfig struct {
	// Endpoint is the profile directory base URL.
	Endpoint string `yaml:"endpoint" json:"endpoint"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `yaml:"level" json:"level"`
	// FilePath overrides the default log file location.
	FilePath string `yaml:"file_path" json:"file_path"`
}

// defaultStoplist is the built-in English stoplist for per-word sub-queries.
var defaultStoplist = []string{
	"a", "an", "and", "are", "as", "at", "be", "by", "for", "from",
	"has", "he", "in", "is", "it", "its", "of", "on", "or", "that",
	"the", "to", "was", "will", "with", "i", "you",
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Artifacts: ArtifactsConfig{
			VocabPath:     defaultArtifactPath("vocab.svoc"),
			RulesPath:     defaultArtifactPath("normalize.tsv"),
			EmbeddingPath: defaultArtifactPath("embeddings.semb"),
		},
		Scoring: ScoringConfig{
			FuzzyWeight:  0.7,
			EmbedWeight:  0.3,
			PatternBonus: 5.0,
		},
		Search: SearchConfig{
			DefaultCount:   50,
			MaxCount:       200,
			Stoplist:       append([]string(nil), defaultStoplist...),
			SourceTimeout:  Duration(5 * time.Second),
			OverallTimeout: Duration(15 * time.Second),
			EmbedCacheSize: 4096,
			RankWorkers:    0,
		},
		Sources: SourcesConfig{
			Local: LocalSourceConfig{
				DBPath: defaultDataPath("posts.db"),
			},
			Remote: RemoteSourceConfig{
				Endpoint:   "",
				RatePerSec: 10,
				Burst:      20,
			},
			Profile: ProfileSourceConfig{
				Endpoint: "",
			},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// defaultArtifactPath returns the default location for a model artifact.
func defaultArtifactPath(name string) string {
	return filepath.Join(dataDir(), "model", name)
}

// defaultDataPath returns the default location for a data file.
func defaultDataPath(name string) string {
	return filepath.Join(dataDir(), name)
}

// dataDir returns ~/.skysift, falling back to the temp directory.
func dataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".skysift")
	}
	return filepath.Join(home, ".skysift")
}

// GetUserConfigPath returns the path to the user configuration file.
// It follows the XDG Base Directory specification.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "skysift", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "skysift", "config.yaml")
	}
	return filepath.Join(home, ".config", "skysift", "config.yaml")
}

// Load loads configuration starting from the given directory.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userPath := GetUserConfigPath(); fileExists(userPath) {
		if err := cfg.loadYAML(userPath); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	if err := cfg.loadFromDir(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromDir attempts to load .skysift.yaml or .skysift.yml from dir.
func (c *Config) loadFromDir(dir string) error {
	yamlPath := filepath.Join(dir, ".skysift.yaml")
	if fileExists(yamlPath) {
		return c.loadYAML(yamlPath)
	}

	ymlPath := filepath.Join(dir, ".skysift.yml")
	if fileExists(ymlPath) {
		return c.loadYAML(ymlPath)
	}

	// No config file is fine, use defaults
	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Artifacts.VocabPath != "" {
		c.Artifacts.VocabPath = other.Artifacts.VocabPath
	}
	if other.Artifacts.RulesPath != "" {
		c.Artifacts.RulesPath = other.Artifacts.RulesPath
	}
	if other.Artifacts.EmbeddingPath != "" {
		c.Artifacts.EmbeddingPath = other.Artifacts.EmbeddingPath
	}

	// 0 is not a practical weight, so only merge non-zero values
	if other.Scoring.FuzzyWeight != 0 {
		c.Scoring.FuzzyWeight = other.Scoring.FuzzyWeight
	}
	if other.Scoring.EmbedWeight != 0 {
		c.Scoring.EmbedWeight = other.Scoring.EmbedWeight
	}
	if other.Scoring.PatternBonus != 0 {
		c.Scoring.PatternBonus = other.Scoring.PatternBonus
	}

	if other.Search.DefaultCount != 0 {
		c.Search.DefaultCount = other.Search.DefaultCount
	}
	if other.Search.MaxCount != 0 {
		c.Search.MaxCount = other.Search.MaxCount
	}
	if len(other.Search.Stoplist) > 0 {
		c.Search.Stoplist = other.Search.Stoplist
	}
	if other.Search.SourceTimeout != 0 {
		c.Search.SourceTimeout = other.Search.SourceTimeout
	}
	if other.Search.OverallTimeout != 0 {
		c.Search.OverallTimeout = other.Search.OverallTimeout
	}
	if other.Search.EmbedCacheSize != 0 {
		c.Search.EmbedCacheSize = other.Search.EmbedCacheSize
	}
	if other.Search.RankWorkers != 0 {
		c.Search.RankWorkers = other.Search.RankWorkers
	}

	if other.Sources.Local.DBPath != "" {
		c.Sources.Local.DBPath = other.Sources.Local.DBPath
	}
	if other.Sources.Remote.Endpoint != "" {
		c.Sources.Remote.Endpoint = other.Sources.Remote.Endpoint
	}
	if other.Sources.Remote.RatePerSec != 0 {
		c.Sources.Remote.RatePerSec = other.Sources.Remote.RatePerSec
	}
	if other.Sources.Remote.Burst != 0 {
		c.Sources.Remote.Burst = other.Sources.Remote.Burst
	}
	if other.Sources.Profile.Endpoint != "" {
		c.Sources.Profile.Endpoint = other.Sources.Profile.Endpoint
	}

	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Logging.FilePath != "" {
		c.Logging.FilePath = other.Logging.FilePath
	}
}

// applyEnvOverrides applies SKYSIFT_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SKYSIFT_FUZZY_WEIGHT"); v != "" {
		if w, err := strconv.ParseFloat(v, 64); err == nil && w >= 0 {
			c.Scoring.FuzzyWeight = w
		}
	}
	if v := os.Getenv("SKYSIFT_EMBED_WEIGHT"); v != "" {
		if w, err := strconv.ParseFloat(v, 64); err == nil && w >= 0 {
			c.Scoring.EmbedWeight = w
		}
	}
	if v := os.Getenv("SKYSIFT_PATTERN_BONUS"); v != "" {
		if w, err := strconv.ParseFloat(v, 64); err == nil && w >= 0 {
			c.Scoring.PatternBonus = w
		}
	}
	if v := os.Getenv("SKYSIFT_DEFAULT_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.DefaultCount = n
		}
	}
	if v := os.Getenv("SKYSIFT_SOURCE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.Search.SourceTimeout = Duration(d)
		}
	}
	if v := os.Getenv("SKYSIFT_OVERALL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.Search.OverallTimeout = Duration(d)
		}
	}
	if v := os.Getenv("SKYSIFT_VOCAB_PATH"); v != "" {
		c.Artifacts.VocabPath = v
	}
	if v := os.Getenv("SKYSIFT_RULES_PATH"); v != "" {
		c.Artifacts.RulesPath = v
	}
	if v := os.Getenv("SKYSIFT_EMBEDDING_PATH"); v != "" {
		c.Artifacts.EmbeddingPath = v
	}
	if v := os.Getenv("SKYSIFT_DB_PATH"); v != "" {
		c.Sources.Local.DBPath = v
	}
	if v := os.Getenv("SKYSIFT_REMOTE_ENDPOINT"); v != "" {
		c.Sources.Remote.Endpoint = v
	}
	if v := os.Getenv("SKYSIFT_PROFILE_ENDPOINT"); v != "" {
		c.Sources.Profile.Endpoint = v
	}
	if v := os.Getenv("SKYSIFT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Scoring.FuzzyWeight < 0 || math.IsNaN(c.Scoring.FuzzyWeight) || math.IsInf(c.Scoring.FuzzyWeight, 0) {
		return fmt.Errorf("fuzzy_weight must be finite and non-negative, got %f", c.Scoring.FuzzyWeight)
	}
	if c.Scoring.EmbedWeight < 0 || math.IsNaN(c.Scoring.EmbedWeight) || math.IsInf(c.Scoring.EmbedWeight, 0) {
		return fmt.Errorf("embed_weight must be finite and non-negative, got %f", c.Scoring.EmbedWeight)
	}
	if c.Scoring.PatternBonus < 0 || math.IsNaN(c.Scoring.PatternBonus) || math.IsInf(c.Scoring.PatternBonus, 0) {
		return fmt.Errorf("pattern_bonus must be finite and non-negative, got %f", c.Scoring.PatternBonus)
	}

	if c.Search.DefaultCount < 1 {
		return fmt.Errorf("default_count must be at least 1, got %d", c.Search.DefaultCount)
	}
	if c.Search.MaxCount < c.Search.DefaultCount {
		return fmt.Errorf("max_count must be >= default_count, got %d < %d", c.Search.MaxCount, c.Search.DefaultCount)
	}
	if c.Search.SourceTimeout <= 0 {
		return fmt.Errorf("source_timeout must be positive, got %s", c.Search.SourceTimeout)
	}
	if c.Search.OverallTimeout <= 0 {
		return fmt.Errorf("overall_timeout must be positive, got %s", c.Search.OverallTimeout)
	}
	for _, w := range c.Search.Stoplist {
		if w != strings.ToLower(w) {
			return fmt.Errorf("stoplist entries must be lowercase, got %q", w)
		}
	}

	if c.Sources.Remote.RatePerSec < 0 {
		return fmt.Errorf("rate_per_sec must be non-negative, got %f", c.Sources.Remote.RatePerSec)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
