package notify

import (
	"log"

	"github.com/VeriFact/VF-Backend/internal/db"
)

func Init() {
	if err := db.DB.AutoMigrate(&Notification{}); err != nil {
		log.Fatal("Failed to auto-migrate notification tables: ", err)
	}
}
