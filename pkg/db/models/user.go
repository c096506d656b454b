package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/crumbhaus/bakehouse-backend/pkg/enums"
)

// User is a storefront account. PointsBalance is a cache derived from the
// points_entries log and is mutated only through the loyalty ledger.
type User struct {
	ID            uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	Email         string         `gorm:"column:email;not null;uniqueIndex"`
	Name          string         `gorm:"column:name;not null"`
	Phone         *string        `gorm:"column:phone"`
	PasswordHash  string         `gorm:"column:password_hash;not null"`
	Role          enums.UserRole `gorm:"column:role;type:text;not null;default:'customer'"`
	PointsBalance int            `gorm:"column:points_balance;not null;default:0"`
	CreatedAt     time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
