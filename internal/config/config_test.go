package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_NoFile(t *testing.T) {
	t.Parallel()

	log := slog.Default()
	path, err := Load("/nonexistent/path/config.yaml", log)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "" {
		t.Errorf("expected empty path, got %q", path)
	}
}

func TestLoad_ValidFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
model:
  provider: gemini
  max_tokens: 8192
  temperature: 0.3
  gemini:
    model: gemini-2.0-flash
embedding:
  provider: gemini
  model: text-embedding-004
store:
  backend: qdrant
  collection: compliance-docs
qdrant:
  host: qdrant.internal
  port: 6334
clustering:
  k: 10
retrieval:
  top_n: 5
  relevance_threshold: 0.3
logging:
  level: debug
  format: text
`)

	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	// Clear env vars that the YAML should set.
	envKeys := []string{
		"MODEL_PROVIDER", "MODEL_MAX_TOKENS", "MODEL_TEMPERATURE",
		"GEMINI_MODEL",
		"EMBEDDING_PROVIDER", "EMBEDDING_MODEL",
		"STORE_BACKEND", "RAGCHAT_COLLECTION",
		"QDRANT_HOST", "QDRANT_PORT",
		"CLUSTER_K", "RETRIEVAL_TOP_N", "RELEVANCE_THRESHOLD",
		"LOG_LEVEL", "LOG_FORMAT",
	}
	for _, k := range envKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	log := slog.Default()
	loaded, err := Load(cfgPath, log)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != cfgPath {
		t.Errorf("loaded path: got %q, want %q", loaded, cfgPath)
	}

	checks := map[string]string{
		"MODEL_PROVIDER":      "gemini",
		"MODEL_MAX_TOKENS":    "8192",
		"GEMINI_MODEL":        "gemini-2.0-flash",
		"EMBEDDING_PROVIDER":  "gemini",
		"EMBEDDING_MODEL":     "text-embedding-004",
		"STORE_BACKEND":       "qdrant",
		"RAGCHAT_COLLECTION":  "compliance-docs",
		"QDRANT_HOST":         "qdrant.internal",
		"QDRANT_PORT":         "6334",
		"CLUSTER_K":           "10",
		"RETRIEVAL_TOP_N":     "5",
		"RELEVANCE_THRESHOLD": "0.3",
		"LOG_LEVEL":           "debug",
		"LOG_FORMAT":          "text",
	}
	for k, want := range checks {
		got := os.Getenv(k)
		if got != want {
			t.Errorf("%s: got %q, want %q", k, got, want)
		}
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
model:
  provider: ollama
`)
	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	// Set env var BEFORE loading — it should NOT be overwritten.
	t.Setenv("MODEL_PROVIDER", "gemini")

	log := slog.Default()
	_, err := Load(cfgPath, log)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := os.Getenv("MODEL_PROVIDER"); got != "gemini" {
		t.Errorf("MODEL_PROVIDER: expected env override %q, got %q", "gemini", got)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(cfgPath, []byte("{{invalid yaml"), 0o644); err != nil {
		t.Fatal(err)
	}

	log := slog.Default()
	_, err := Load(cfgPath, log)
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestRetrievalSettings_Defaults(t *testing.T) {
	t.Setenv("RETRIEVAL_TOP_N", "")
	os.Unsetenv("RETRIEVAL_TOP_N")
	t.Setenv("RELEVANCE_THRESHOLD", "")
	os.Unsetenv("RELEVANCE_THRESHOLD")

	topN, threshold, err := RetrievalSettings()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if topN != DefaultTopN {
		t.Errorf("topN = %d, want %d", topN, DefaultTopN)
	}
	if threshold != DefaultRelevanceThreshold {
		t.Errorf("threshold = %g, want %g", threshold, DefaultRelevanceThreshold)
	}
}

func TestRetrievalSettings_RejectsOutOfRange(t *testing.T) {
	t.Setenv("RETRIEVAL_TOP_N", "5")

	t.Setenv("RELEVANCE_THRESHOLD", "1.5")
	if _, _, err := RetrievalSettings(); err == nil {
		t.Error("threshold above 1 accepted")
	}

	t.Setenv("RELEVANCE_THRESHOLD", "-0.1")
	if _, _, err := RetrievalSettings(); err == nil {
		t.Error("negative threshold accepted")
	}

	t.Setenv("RELEVANCE_THRESHOLD", "0.3")
	t.Setenv("RETRIEVAL_TOP_N", "0")
	if _, _, err := RetrievalSettings(); err == nil {
		t.Error("top_n of 0 accepted")
	}
}

func TestClusterK_RejectsNonPositive(t *testing.T) {
	t.Setenv("CLUSTER_K", "0")
	if _, err := ClusterK(); err == nil {
		t.Error("k of 0 accepted")
	}

	t.Setenv("CLUSTER_K", "7")
	k, err := ClusterK()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if k != 7 {
		t.Errorf("k = %d, want 7", k)
	}
}

func TestFloat32Str(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   float32
		want string
	}{
		{0.0, ""},
		{0.2, "0.2"},
		{0.3, "0.3"},
		{1.0, "1"},
	}
	for _, tt := range tests {
		if got := float32Str(tt.in); got != tt.want {
			t.Errorf("float32Str(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
