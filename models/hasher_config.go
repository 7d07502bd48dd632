package models

import (
	"time"
)

// HasherConfig pins the hash configuration used to digest one user's
// historical passwords. A user accumulates one row per distinct
// (algorithm, iterations) pair ever configured for them; the salt is
// generated once at creation and never changes, so digests produced
// under an old configuration stay comparable after upgrades.
type HasherConfig struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID     string `gorm:"type:varchar(255);not null;uniqueIndex:idx_hasher_configs_identity,priority:1"` // Stable user identifier.
	Algorithm  string `gorm:"type:varchar(64);not null;uniqueIndex:idx_hasher_configs_identity,priority:2"`  // Hash algorithm identifier.
	Iterations int    `gorm:"not null;uniqueIndex:idx_hasher_configs_identity,priority:3"`                   // Work factor.

	Salt string `gorm:"type:text;not null"` // Hex-encoded random salt, fixed at creation.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
