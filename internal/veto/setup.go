package veto

import (
	"log"

	"github.com/VeriFact/VF-Backend/internal/db"
)

func Init() {
	if err := db.DB.AutoMigrate(&Veto{}); err != nil {
		log.Fatal("Failed to auto-migrate veto tables: ", err)
	}
}
