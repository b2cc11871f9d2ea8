package fact

import (
	"log"

	"github.com/VeriFact/VF-Backend/internal/db"
)

func Init() {
	if err := db.DB.AutoMigrate(&Fact{}); err != nil {
		log.Fatal("Failed to auto-migrate fact tables: ", err)
	}
}
