package consensus

import (
	"log"

	"github.com/VeriFact/VF-Backend/internal/db"
)

func Init() {
	if err := db.DB.AutoMigrate(&Votable{}, &Vote{}); err != nil {
		log.Fatal("Failed to auto-migrate consensus tables: ", err)
	}
}
