package models

import (
	"time"

	"github.com/google/uuid"
)

// DeliveryZone carries the flat shipping cost charged for deliveries into it.
type DeliveryZone struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name          string    `gorm:"column:name;not null"`
	ShippingCents int       `gorm:"column:shipping_cents;not null"`
	Active        bool      `gorm:"column:active;not null;default:true"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
}
