package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is a catalog entry. Stock of -1 means unlimited. BoxSize above zero
// marks the product as a build-a-box bundle of that many cookies.
type Product struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name       string    `gorm:"column:name;not null"`
	PriceCents int       `gorm:"column:price_cents;not null"`
	Stock      int       `gorm:"column:stock;not null;default:0"`
	BoxSize    int       `gorm:"column:box_size;not null;default:0"`
	Active     bool      `gorm:"column:active;not null;default:true"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// HasUnlimitedStock reports whether quantity checks are bypassed for this product.
func (p Product) HasUnlimitedStock() bool {
	return p.Stock == -1
}
