package db

import (
	"fmt"

	"github.com/router-for-me/passwordpolicy/models"
	"gorm.io/gorm"
)

// Migrate creates or updates the password-policy tables.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	if errMigrate := conn.AutoMigrate(
		&models.HasherConfig{},
		&models.PasswordHistory{},
		&models.Setting{},
	); errMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errMigrate)
	}
	return nil
}
