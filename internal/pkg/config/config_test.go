package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFile_Defaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Storage.SQLite.Path != "research.db" {
		t.Errorf("Storage.SQLite.Path = %q", cfg.Storage.SQLite.Path)
	}
	if cfg.Output.Dir != "research_output" {
		t.Errorf("Output.Dir = %q", cfg.Output.Dir)
	}
}

func TestLoadFile_FromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9090
perplexity:
  api_key: pk-test
  model: sonar-deep-research
  poll_interval: 15s
gemini:
  api_key: gk-test
  max_reconnects: 7
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Perplexity.APIKey != "pk-test" {
		t.Errorf("Perplexity.APIKey = %q", cfg.Perplexity.APIKey)
	}
	if cfg.Perplexity.PollInterval != "15s" {
		t.Errorf("Perplexity.PollInterval = %q", cfg.Perplexity.PollInterval)
	}
	if cfg.Gemini.MaxReconnects != 7 {
		t.Errorf("Gemini.MaxReconnects = %d, want 7", cfg.Gemini.MaxReconnects)
	}
}

func TestLoadFile_EnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("RESEARCH_SERVER__PORT", "9191")
	t.Setenv("RESEARCH_GEMINI__AGENT", "deep-research-custom")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if cfg.Server.Port != 9191 {
		t.Errorf("Server.Port = %d, want env override 9191", cfg.Server.Port)
	}
	if cfg.Gemini.Agent != "deep-research-custom" {
		t.Errorf("Gemini.Agent = %q", cfg.Gemini.Agent)
	}
}

func TestLoadFile_EnvVarSubstitution(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "perplexity:\n  api_key: ${TEST_PPLX_KEY}\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("TEST_PPLX_KEY", "pk-secret")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.Perplexity.APIKey != "pk-secret" {
		t.Errorf("Perplexity.APIKey = %q, want substituted value", cfg.Perplexity.APIKey)
	}
}

func TestDuration(t *testing.T) {
	if d := Duration("", 10*time.Second); d != 10*time.Second {
		t.Errorf("empty = %v", d)
	}
	if d := Duration("30s", time.Second); d != 30*time.Second {
		t.Errorf("30s = %v", d)
	}
	if d := Duration("garbage", 5*time.Second); d != 5*time.Second {
		t.Errorf("garbage = %v", d)
	}
	if d := Duration("-1s", 5*time.Second); d != 5*time.Second {
		t.Errorf("negative = %v", d)
	}
}

func TestParseDuration(t *testing.T) {
	if _, err := ParseDuration("bogus"); err == nil {
		t.Error("bogus duration must error")
	}
	if _, err := ParseDuration("-2s"); err == nil {
		t.Error("negative duration must error")
	}
	d, err := ParseDuration("1m")
	if err != nil || d != time.Minute {
		t.Errorf("ParseDuration(1m) = %v, %v", d, err)
	}
}
