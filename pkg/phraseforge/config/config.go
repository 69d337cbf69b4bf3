package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wordparty/phraseforge/pkg/phraseforge/internalerr"
)

// Config is the full pipeline configuration loaded from YAML.
type Config struct {
	Scoring    Scoring    `yaml:"scoring"`
	Categories []Category `yaml:"categories"`
	Providers  Providers  `yaml:"providers"`
	Lookups    Lookups    `yaml:"lookups"`
	Dedup      Dedup      `yaml:"dedup"`
	Runner     Runner     `yaml:"runner"`
}

// Scoring holds thresholds and the per-source weight profiles. These
// are tuned empirically by sampling accepted/rejected output, so they
// always come from configuration, never code.
type Scoring struct {
	AcceptThreshold float64 `yaml:"accept_threshold"`
	RejectThreshold float64 `yaml:"reject_threshold"`

	Profiles struct {
		CuratedExtraction ProfileWeights `yaml:"curated_extraction"`
		AIGenerated       ProfileWeights `yaml:"ai_generated"`
		Manual            ProfileWeights `yaml:"manual"`
	} `yaml:"profiles"`

	// WeakHeadNouns lists abstract head words ("strategy", "concept")
	// that trigger the describability penalty.
	WeakHeadNouns []string `yaml:"weak_head_nouns"`

	// AllowDegradedDecisions lets accept/reject stand even when a
	// lookup processor was unavailable. Default routes such phrases to
	// review.
	AllowDegradedDecisions bool `yaml:"allow_degraded_decisions"`
}

// ProfileWeights defines each component's maximum possible contribution
// under one weight profile.
type ProfileWeights struct {
	Distinctiveness      float64 `yaml:"distinctiveness"`
	Describability       float64 `yaml:"describability"`
	LegacyHeuristic      float64 `yaml:"legacy_heuristic"`
	CategoryBoost        float64 `yaml:"category_boost"`
	CulturalValidation   float64 `yaml:"cultural_validation"`
	StructuralNotability float64 `yaml:"structural_notability"`
}

// Category describes one gameplay category and its quota.
type Category struct {
	Name        string   `yaml:"name"`
	Target      int      `yaml:"target"`
	Boost       float64  `yaml:"boost"`
	HighValue   bool     `yaml:"high_value"`
	RaritySeeds []string `yaml:"rarity_seeds"`
}

// Providers configures the primary and secondary generators.
type Providers struct {
	Primary   Provider `yaml:"primary"`
	Secondary Provider `yaml:"secondary"`
}

// Provider is one external generator endpoint and its limits.
type Provider struct {
	Name              string `yaml:"name"`
	BaseURL           string `yaml:"base_url"`
	APIKeyEnv         string `yaml:"api_key_env"`
	Model             string `yaml:"model"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
	RequestsPerDay    int    `yaml:"requests_per_day"`
	TimeoutSeconds    int    `yaml:"timeout_seconds"`
}

// Lookups configures the three lookup processors. Each entry may name a
// live service URL, a snapshot path, or both; live is probed first and
// snapshot is the fallback.
type Lookups struct {
	Entities     Lookup `yaml:"entities"`
	Cooccurrence Lookup `yaml:"cooccurrence"`
	Concreteness Lookup `yaml:"concreteness"`
	Prominence   Lookup `yaml:"prominence"`
	// DictionaryPath points at the multi-word idiom list
	// (canonical|variant|...|category lines).
	DictionaryPath string `yaml:"dictionary_path"`
}

// Lookup is one processor's data-access configuration.
type Lookup struct {
	LiveURL      string `yaml:"live_url"`
	SnapshotPath string `yaml:"snapshot_path"`
}

// Dedup configures the duplicate pre-emption layer.
type Dedup struct {
	FalsePositiveRate float64 `yaml:"false_positive_rate"`
	MaxAvoidList      int     `yaml:"max_avoid_list"`
	SaturationRatio   float64 `yaml:"saturation_ratio"`
}

// Runner configures batch orchestration.
type Runner struct {
	Concurrency int `yaml:"concurrency"`
	BatchSize   int `yaml:"batch_size"`
	MaxBatches  int `yaml:"max_batches"`
}

// Load reads and validates a configuration file. Missing thresholds or
// weight profiles fail here rather than silently defaulting, since
// every scoring value is an empirically tuned quantity.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that all tunable scoring values are present and
// coherent.
func (c *Config) Validate() error {
	s := c.Scoring
	if s.AcceptThreshold <= 0 || s.RejectThreshold <= 0 {
		return fmt.Errorf("%w: accept and reject thresholds are required", internalerr.ErrInvalidConfig)
	}
	if s.RejectThreshold >= s.AcceptThreshold {
		return fmt.Errorf("%w: reject threshold %.1f must be below accept threshold %.1f",
			internalerr.ErrInvalidConfig, s.RejectThreshold, s.AcceptThreshold)
	}

	for _, p := range []struct {
		name    string
		weights ProfileWeights
	}{
		{"curated_extraction", s.Profiles.CuratedExtraction},
		{"ai_generated", s.Profiles.AIGenerated},
		{"manual", s.Profiles.Manual},
	} {
		if p.weights.Distinctiveness <= 0 || p.weights.Describability <= 0 {
			return fmt.Errorf("%w: profile %s is missing component weights", internalerr.ErrInvalidConfig, p.name)
		}
	}

	if len(c.Categories) == 0 {
		return fmt.Errorf("%w: at least one category is required", internalerr.ErrInvalidConfig)
	}
	seen := make(map[string]struct{}, len(c.Categories))
	for _, cat := range c.Categories {
		if cat.Name == "" {
			return fmt.Errorf("%w: category with empty name", internalerr.ErrInvalidConfig)
		}
		if _, dup := seen[cat.Name]; dup {
			return fmt.Errorf("%w: duplicate category %q", internalerr.ErrInvalidConfig, cat.Name)
		}
		seen[cat.Name] = struct{}{}
		if cat.Target <= 0 {
			return fmt.Errorf("%w: category %q needs a positive target", internalerr.ErrInvalidConfig, cat.Name)
		}
	}

	return nil
}

// CategoryByName returns the named category's configuration.
func (c *Config) CategoryByName(name string) (Category, bool) {
	for _, cat := range c.Categories {
		if cat.Name == name {
			return cat, true
		}
	}
	return Category{}, false
}
