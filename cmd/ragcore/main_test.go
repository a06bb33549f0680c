package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ragcore/internal/domain"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func useConfig(t *testing.T, path string) {
	t.Helper()
	cfgFile = path
	t.Cleanup(func() { cfgFile = "" })
}

func TestLoadConfigAppliesEnvOverrides(t *testing.T) {
	useConfig(t, writeFile(t, t.TempDir(), "config.yaml", "retrieval:\n  top_k: 4\n  score_threshold: 0.5\n"))
	t.Setenv("RAG_TOP_K", "6")
	t.Setenv("RAG_SEARCH_STRATEGY", "lexical")
	t.Setenv("RAG_DOCUMENT", "knowledge.md")

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Retrieval.TopK != 6 || cfg.Retrieval.SearchStrategy != "lexical" || cfg.Document.Path != "knowledge.md" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.Retrieval.ScoreThreshold != 0.5 {
		t.Fatalf("file value lost: %+v", cfg.Retrieval)
	}
}

func TestLoadConfigRejectsInvalidOverride(t *testing.T) {
	useConfig(t, writeFile(t, t.TempDir(), "config.yaml", "retrieval:\n  top_k: 4\n"))
	t.Setenv("RAG_SCORE_THRESHOLD", "1.5")
	if _, err := loadConfig(); !errors.Is(err, domain.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestLoadConfigRejectsZeroTopK(t *testing.T) {
	useConfig(t, writeFile(t, t.TempDir(), "config.yaml", "retrieval:\n  top_k: 4\n"))
	t.Setenv("RAG_TOP_K", "0")
	_, err := loadConfig()
	if !errors.Is(err, domain.ErrInvalidConfig) || !strings.Contains(err.Error(), "top_k") {
		t.Fatalf("expected top_k ErrInvalidConfig, got %v", err)
	}
}

func TestQueryCommand(t *testing.T) {
	dir := t.TempDir()
	doc := writeFile(t, dir, "knowledge.md", "# Overview\nFuturuma is a tech fest.\n\n# Venue\nKathmandu hosts the finals.\n")
	cfg := writeFile(t, dir, "config.yaml", "document:\n  path: "+doc+"\nretrieval:\n  search_strategy: lexical\nlog:\n  level: error\n")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"--config", cfg, "query", "where", "is", "Kathmandu"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
		cfgFile = ""
	})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "strategy: lexical") {
		t.Fatalf("missing strategy line: %q", got)
	}
	if !strings.Contains(got, "[Venue] Kathmandu hosts the finals.") {
		t.Fatalf("missing context: %q", got)
	}
	if !strings.Contains(got, "Information retrieved from:\n  1. Venue (relevance: 100%)") {
		t.Fatalf("missing sources: %q", got)
	}
}
