package debate

import (
	"log"

	"github.com/VeriFact/VF-Backend/internal/db"
)

func Init() {
	if err := db.DB.AutoMigrate(&Debate{}, &Message{}); err != nil {
		log.Fatal("Failed to auto-migrate debate tables: ", err)
	}
}
