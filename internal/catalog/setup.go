package catalog

import (
	"log"

	"github.com/VeriFact/VF-Backend/internal/db"
)

func Init() {
	if err := db.DB.AutoMigrate(&Category{}, &MergeRequest{}); err != nil {
		log.Fatal("Failed to auto-migrate catalog tables: ", err)
	}
}
