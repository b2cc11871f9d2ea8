package testutil

import (
	"fmt"
	"testing"

	"github.com/VeriFact/VF-Backend/internal/catalog"
	"github.com/VeriFact/VF-Backend/internal/consensus"
	"github.com/VeriFact/VF-Backend/internal/debate"
	"github.com/VeriFact/VF-Backend/internal/fact"
	"github.com/VeriFact/VF-Backend/internal/moderation"
	"github.com/VeriFact/VF-Backend/internal/notify"
	"github.com/VeriFact/VF-Backend/internal/trust"
	"github.com/VeriFact/VF-Backend/internal/veto"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DB opens a fresh in-memory database with the full schema migrated. Each
// call gets its own namespace so parallel tests never share state. The
// single-connection pool keeps the shared-cache memory database alive for
// the whole test.
func DB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("unwrap test database: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := gdb.AutoMigrate(
		&trust.User{},
		&trust.History{},
		&consensus.Votable{},
		&consensus.Vote{},
		&fact.Fact{},
		&veto.Veto{},
		&moderation.QueueItem{},
		&moderation.Action{},
		&moderation.RosterEntry{},
		&debate.Debate{},
		&debate.Message{},
		&catalog.Category{},
		&catalog.MergeRequest{},
		&notify.Notification{},
	); err != nil {
		t.Fatalf("migrate test schema: %v", err)
	}
	return gdb
}
