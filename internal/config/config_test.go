package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/VeriFact/VF-Backend/internal/config"
)

func TestDefaults(t *testing.T) {
	cfg := config.Default()

	if cfg.Consensus.Fact.Quorum != 5 || cfg.Consensus.Fact.HighThreshold != 30 || cfg.Consensus.Fact.LowThreshold != 10 {
		t.Errorf("fact thresholds = %+v, want 5/30/10", cfg.Consensus.Fact)
	}
	if cfg.Moderator.MinTrustScore != 100 || cfg.Moderator.MaxModerators != 10 {
		t.Errorf("moderator tunables = %+v, want min trust 100 and 10 seats", cfg.Moderator)
	}
	if cfg.Notify.EventsPerSecond != 50 || cfg.Notify.Burst != 100 {
		t.Errorf("notify tunables = %+v, want 50/s burst 100", cfg.Notify)
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if *cfg != *config.Default() {
		t.Errorf("cfg = %+v, want defaults", cfg)
	}
}

func TestLoadOverridesPartially(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
consensus:
  fact:
    quorum: 7
    high_threshold: 42
moderator:
  max_moderators: 25
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Consensus.Fact.Quorum != 7 || cfg.Consensus.Fact.HighThreshold != 42 {
		t.Errorf("fact thresholds = %+v, want overridden 7/42", cfg.Consensus.Fact)
	}
	if cfg.Moderator.MaxModerators != 25 {
		t.Errorf("max moderators = %d, want 25", cfg.Moderator.MaxModerators)
	}
	// Untouched keys keep their defaults.
	if cfg.Consensus.Veto.Quorum != 3 {
		t.Errorf("veto quorum = %d, want default 3", cfg.Consensus.Veto.Quorum)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load succeeded on a missing file")
	}
}
