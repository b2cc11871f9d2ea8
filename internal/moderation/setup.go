package moderation

import (
	"log"

	"github.com/VeriFact/VF-Backend/internal/db"
)

func Init() {
	if err := db.DB.AutoMigrate(&QueueItem{}, &Action{}, &RosterEntry{}); err != nil {
		log.Fatal("Failed to auto-migrate moderation tables: ", err)
	}
}
