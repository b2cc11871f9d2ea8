package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// Thresholds tunes one consensus policy: how many votes must exist before
// any transition fires, the absolute weighted score that resolves the
// subject, and the band below which a quorate subject counts as disputed.
type Thresholds struct {
	Quorum        int     `yaml:"quorum"`
	HighThreshold float64 `yaml:"high_threshold"`
	LowThreshold  float64 `yaml:"low_threshold"`
}

// Consensus carries the per-votable-kind thresholds.
type Consensus struct {
	Fact          Thresholds `yaml:"fact"`
	Veto          Thresholds `yaml:"veto"`
	CategoryMerge Thresholds `yaml:"category_merge"`
}

// Moderator mirrors the roster tunables. Loaded once, read-only while the
// engine runs.
type Moderator struct {
	MinTrustScore     int `yaml:"min_trust_score"`
	MinAccountAgeDays int `yaml:"min_account_age_days"`
	MaxModerators     int `yaml:"max_moderators"`
	InactivityDays    int `yaml:"inactivity_days"`
}

// Notify tunes the notification dispatcher's rate limiter.
type Notify struct {
	EventsPerSecond float64 `yaml:"events_per_second"`
	Burst           int     `yaml:"burst"`
}

type Config struct {
	Consensus Consensus `yaml:"consensus"`
	Moderator Moderator `yaml:"moderator"`
	Notify    Notify    `yaml:"notify"`
}

// Default returns the engine's built-in tunables. Every value can be
// overridden from the YAML file passed to Load.
func Default() *Config {
	return &Config{
		Consensus: Consensus{
			Fact:          Thresholds{Quorum: 5, HighThreshold: 30, LowThreshold: 10},
			Veto:          Thresholds{Quorum: 3, HighThreshold: 20, LowThreshold: 8},
			CategoryMerge: Thresholds{Quorum: 3, HighThreshold: 15, LowThreshold: 5},
		},
		Moderator: Moderator{
			MinTrustScore:     100,
			MinAccountAgeDays: 30,
			MaxModerators:     10,
			InactivityDays:    30,
		},
		Notify: Notify{
			EventsPerSecond: 50,
			Burst:           100,
		},
	}
}

// Load reads the YAML file at path over the defaults. An empty path
// returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
