package database

import (
	"github.com/sandeepkv93/alumni-portal-client/internal/domain"

	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&domain.StoredRecord{})
}
