package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Storage    StorageConfig    `koanf:"storage"`
	Output     OutputConfig     `koanf:"output"`
	Perplexity PerplexityConfig `koanf:"perplexity"`
	Gemini     GeminiConfig     `koanf:"gemini"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
}

type StorageConfig struct {
	SQLite SQLiteConfig `koanf:"sqlite"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

type OutputConfig struct {
	Dir string `koanf:"dir"`
}

type PerplexityConfig struct {
	APIKey              string `koanf:"api_key"`
	BaseURL             string `koanf:"base_url"`
	Model               string `koanf:"model"`
	PollInterval        string `koanf:"poll_interval"`
	Deadline            string `koanf:"deadline"`
	MaxTransientRetries int    `koanf:"max_transient_retries"`
}

type GeminiConfig struct {
	APIKey            string `koanf:"api_key"`
	BaseURL           string `koanf:"base_url"`
	Agent             string `koanf:"agent"`
	ThinkingSummaries string `koanf:"thinking_summaries"`
	Deadline          string `koanf:"deadline"`
	MaxReconnects     int    `koanf:"max_reconnects"`
	ReconnectBackoff  string `koanf:"reconnect_backoff"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

func Load() (*Config, error) {
	return LoadFile("config.yaml")
}

// LoadFile loads configuration from the given YAML file, layering
// RESEARCH_-prefixed environment variables on top. A missing file is fine;
// env vars alone can carry the whole config.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	// Environment variables override file config, e.g.
	// RESEARCH_PERPLEXITY__API_KEY -> perplexity.api_key
	if err := k.Load(env.Provider("RESEARCH_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "RESEARCH_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	// Default values
	if !k.Exists("server.port") {
		k.Set("server.port", 8080)
	}
	if !k.Exists("storage.sqlite.path") {
		k.Set("storage.sqlite.path", "research.db")
	}
	if !k.Exists("output.dir") {
		k.Set("output.dir", "research_output")
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	// Substitute environment variables in API keys
	cfg.Perplexity.APIKey = substituteEnvVars(cfg.Perplexity.APIKey)
	cfg.Gemini.APIKey = substituteEnvVars(cfg.Gemini.APIKey)

	return &cfg, nil
}

// Duration parses a duration string, falling back to def when the value is
// empty or malformed.
func Duration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// ParseDuration parses a duration string, requiring a valid positive value
// when set.
func ParseDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration %q must be positive", s)
	}
	return d, nil
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
