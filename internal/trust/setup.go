package trust

import (
	"log"

	"github.com/VeriFact/VF-Backend/internal/db"
)

func Init() {
	if err := db.DB.AutoMigrate(&User{}, &History{}); err != nil {
		log.Fatal("Failed to auto-migrate trust tables: ", err)
	}
}
