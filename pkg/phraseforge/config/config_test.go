package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/wordparty/phraseforge/pkg/phraseforge/internalerr"
)

const validYAML = `
scoring:
  accept_threshold: 70
  reject_threshold: 40
  profiles:
    curated_extraction:
      distinctiveness: 25
      describability: 25
      legacy_heuristic: 10
      category_boost: 5
      cultural_validation: 5
      structural_notability: 10
    ai_generated:
      distinctiveness: 25
      describability: 25
      legacy_heuristic: 10
      category_boost: 5
      cultural_validation: 15
    manual:
      distinctiveness: 25
      describability: 25
      legacy_heuristic: 10
      category_boost: 5
      cultural_validation: 15
  weak_head_nouns: [strategy, concept, vibe]
categories:
  - name: Movies
    target: 500
    boost: 2
    high_value: true
    rarity_seeds: [silent films, film noir]
  - name: Food
    target: 300
providers:
  primary:
    name: openai
    base_url: https://api.example.com/v1/chat/completions
    model: phrase-gen-1
    requests_per_minute: 30
    requests_per_day: 2000
    timeout_seconds: 30
  secondary:
    name: backup
    base_url: https://backup.example.com/v1/chat/completions
    model: phrase-gen-mini
    requests_per_minute: 20
    requests_per_day: 1000
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadValid(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Scoring.AcceptThreshold != 70 {
		t.Errorf("accept threshold = %f, want 70", cfg.Scoring.AcceptThreshold)
	}
	if cfg.Scoring.Profiles.AIGenerated.CulturalValidation != 15 {
		t.Errorf("ai cultural weight = %f, want 15", cfg.Scoring.Profiles.AIGenerated.CulturalValidation)
	}
	if cfg.Scoring.Profiles.CuratedExtraction.CulturalValidation != 5 {
		t.Errorf("curated cultural weight = %f, want 5", cfg.Scoring.Profiles.CuratedExtraction.CulturalValidation)
	}

	cat, ok := cfg.CategoryByName("Movies")
	if !ok || cat.Target != 500 || !cat.HighValue {
		t.Errorf("Movies category not loaded correctly: %+v", cat)
	}
}

func TestLoadMissingThresholds(t *testing.T) {
	yaml := `
scoring:
  profiles:
    curated_extraction: {distinctiveness: 25, describability: 25}
    ai_generated: {distinctiveness: 25, describability: 25}
    manual: {distinctiveness: 25, describability: 25}
categories:
  - {name: Movies, target: 100}
`
	_, err := Load(writeConfig(t, yaml))
	if !errors.Is(err, internalerr.ErrInvalidConfig) {
		t.Errorf("missing thresholds should fail fast with ErrInvalidConfig, got %v", err)
	}
}

func TestLoadInvertedThresholds(t *testing.T) {
	yaml := `
scoring:
  accept_threshold: 40
  reject_threshold: 70
  profiles:
    curated_extraction: {distinctiveness: 25, describability: 25}
    ai_generated: {distinctiveness: 25, describability: 25}
    manual: {distinctiveness: 25, describability: 25}
categories:
  - {name: Movies, target: 100}
`
	_, err := Load(writeConfig(t, yaml))
	if !errors.Is(err, internalerr.ErrInvalidConfig) {
		t.Errorf("inverted thresholds should fail, got %v", err)
	}
}

func TestLoadMissingProfileWeights(t *testing.T) {
	yaml := `
scoring:
  accept_threshold: 70
  reject_threshold: 40
  profiles:
    curated_extraction: {distinctiveness: 25, describability: 25}
    ai_generated: {distinctiveness: 25}
    manual: {distinctiveness: 25, describability: 25}
categories:
  - {name: Movies, target: 100}
`
	_, err := Load(writeConfig(t, yaml))
	if !errors.Is(err, internalerr.ErrInvalidConfig) {
		t.Errorf("incomplete profile should fail, got %v", err)
	}
}

func TestLoadDuplicateCategory(t *testing.T) {
	yaml := `
scoring:
  accept_threshold: 70
  reject_threshold: 40
  profiles:
    curated_extraction: {distinctiveness: 25, describability: 25}
    ai_generated: {distinctiveness: 25, describability: 25}
    manual: {distinctiveness: 25, describability: 25}
categories:
  - {name: Movies, target: 100}
  - {name: Movies, target: 200}
`
	_, err := Load(writeConfig(t, yaml))
	if !errors.Is(err, internalerr.ErrInvalidConfig) {
		t.Errorf("duplicate category should fail, got %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("missing file should error")
	}
}
