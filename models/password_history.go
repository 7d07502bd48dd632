package models

import (
	"time"
)

// PasswordHistory stores one historical password digest. Rows are unique
// per (hasher_config_id, digest): re-recording an already known password
// is a no-op and keeps the original row's recency rank. The autoincrement
// ID is the insertion sequence number; ordering newest-first is
// (created_at DESC, id DESC) so rows created within the same clock tick
// still have a deterministic relative order.
type PasswordHistory struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key and insertion sequence.

	HasherConfigID uint64        `gorm:"not null;index;uniqueIndex:idx_password_histories_digest,priority:1"` // Owning hasher config ID.
	HasherConfig   *HasherConfig `gorm:"foreignKey:HasherConfigID;constraint:OnDelete:RESTRICT"`              // Owning hasher config.

	Digest string `gorm:"type:text;not null;uniqueIndex:idx_password_histories_digest,priority:2"` // Encoded password digest.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Creation timestamp, ordering key.
}
