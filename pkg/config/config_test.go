package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Pipeline.ScoringMode != "bm25" {
		t.Errorf("ScoringMode = %q, want bm25", cfg.Pipeline.ScoringMode)
	}
	if cfg.Collaborators.EmbeddingDim != 768 {
		t.Errorf("EmbeddingDim = %d, want 768", cfg.Collaborators.EmbeddingDim)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9999
pipeline:
  scoringMode: intersection
  topK: 7
redis:
  cacheTTL: 30s
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Pipeline.ScoringMode != "intersection" || cfg.Pipeline.TopK != 7 {
		t.Errorf("Pipeline = %+v", cfg.Pipeline)
	}
	if cfg.Redis.CacheTTL != 30*time.Second {
		t.Errorf("CacheTTL = %v, want 30s", cfg.Redis.CacheTTL)
	}
	// Untouched sections keep their defaults.
	if cfg.Pipeline.PrefilterK != 100 {
		t.Errorf("PrefilterK = %d, want default 100", cfg.Pipeline.PrefilterK)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FN_SERVER_PORT", "7070")
	t.Setenv("FN_SCORING_MODE", "intersection")
	t.Setenv("FN_LEMMATIZER_URL", "http://lemma.internal:9002")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.Pipeline.ScoringMode != "intersection" {
		t.Errorf("ScoringMode = %q", cfg.Pipeline.ScoringMode)
	}
	if cfg.Collaborators.Lemmatizer.BaseURL != "http://lemma.internal:9002" {
		t.Errorf("Lemmatizer.BaseURL = %q", cfg.Collaborators.Lemmatizer.BaseURL)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown scoring mode", func(c *Config) { c.Pipeline.ScoringMode = "tfidf" }},
		{"zero prefilter k", func(c *Config) { c.Pipeline.PrefilterK = 0 }},
		{"zero top k", func(c *Config) { c.Pipeline.TopK = 0 }},
		{"zero highlight n", func(c *Config) { c.Pipeline.HighlightTopN = 0 }},
		{"zero shards", func(c *Config) { c.Pipeline.BuildShards = 0 }},
		{"zero embedding dim", func(c *Config) { c.Collaborators.EmbeddingDim = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate accepted an invalid config")
			}
		})
	}
}
