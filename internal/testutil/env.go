package testutil

import (
	"testing"
	"time"

	"github.com/VeriFact/VF-Backend/internal/catalog"
	"github.com/VeriFact/VF-Backend/internal/config"
	"github.com/VeriFact/VF-Backend/internal/consensus"
	"github.com/VeriFact/VF-Backend/internal/debate"
	"github.com/VeriFact/VF-Backend/internal/fact"
	"github.com/VeriFact/VF-Backend/internal/logger"
	"github.com/VeriFact/VF-Backend/internal/moderation"
	"github.com/VeriFact/VF-Backend/internal/trust"
	"github.com/VeriFact/VF-Backend/internal/veto"
	"gorm.io/gorm"
)

// Env wires the whole engine against a throwaway database, with recorded
// notifications and a controllable clock.
type Env struct {
	DB      *gorm.DB
	Cfg     *config.Config
	Clock   *FakeClock
	Events  *Recorder
	Trust   *trust.Service
	Cons    *consensus.Service
	Queue   *moderation.QueueService
	Roster  *moderation.RosterService
	Facts   *fact.Service
	Vetoes  *veto.Service
	Debates *debate.Service
	Catalog *catalog.Service
}

// TestConfig returns production defaults shrunk to sizes a handful of
// seeded voters can reach.
func TestConfig() *config.Config {
	cfg := config.Default()
	cfg.Consensus.Fact = config.Thresholds{Quorum: 3, HighThreshold: 5, LowThreshold: 2}
	cfg.Consensus.Veto = config.Thresholds{Quorum: 2, HighThreshold: 4, LowThreshold: 1.5}
	cfg.Consensus.CategoryMerge = config.Thresholds{Quorum: 2, HighThreshold: 4, LowThreshold: 1}
	cfg.Moderator.MaxModerators = 3
	return cfg
}

// NewEnv builds an Env on TestConfig.
func NewEnv(t *testing.T) *Env {
	t.Helper()
	return NewEnvWith(t, TestConfig())
}

// NewEnvWith builds an Env on the given config.
func NewEnvWith(t *testing.T, cfg *config.Config) *Env {
	t.Helper()

	gdb := DB(t)
	log := logger.NewNop()
	clock := NewFakeClock(time.Now())
	events := &Recorder{}

	trustSvc := trust.NewService(gdb, log)
	cons := consensus.NewService(gdb, log, trustSvc)
	queue := moderation.NewQueueService(gdb, log, trustSvc, events)
	roster := moderation.NewRosterService(gdb, log, events, cfg.Moderator, clock)
	facts := fact.NewService(gdb, log, cons, trustSvc, queue, events, cfg.Consensus.Fact)
	vetoes := veto.NewService(gdb, log, cons, trustSvc, events, cfg.Consensus.Veto)
	debates := debate.NewService(gdb, log, cons, trustSvc, facts, events, clock)
	cat := catalog.NewService(gdb, log, cons, trustSvc, events, cfg.Consensus.CategoryMerge)

	return &Env{
		DB:      gdb,
		Cfg:     cfg,
		Clock:   clock,
		Events:  events,
		Trust:   trustSvc,
		Cons:    cons,
		Queue:   queue,
		Roster:  roster,
		Facts:   facts,
		Vetoes:  vetoes,
		Debates: debates,
		Catalog: cat,
	}
}
