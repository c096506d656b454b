package models

import (
	"github.com/google/uuid"
)

// BoxSelection is one cookie choice inside a custom box line item.
type BoxSelection struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	LineItemID uuid.UUID `gorm:"column:line_item_id;type:uuid;not null;index"`
	ProductID  uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	Name       string    `gorm:"column:name;not null"`
	Qty        int       `gorm:"column:qty;not null"`
}
