package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/crumbhaus/bakehouse-backend/pkg/enums"
)

// OrderLineItem snapshots a single order line. Name and unit price are
// copied from the product at checkout so later catalog edits never change
// historical orders.
type OrderLineItem struct {
	ID             uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID          `gorm:"column:order_id;type:uuid;not null;index"`
	Kind           enums.LineItemKind `gorm:"column:kind;type:text;not null"`
	ProductID      *uuid.UUID         `gorm:"column:product_id;type:uuid"`
	RewardID       *uuid.UUID         `gorm:"column:reward_id;type:uuid"`
	Name           string             `gorm:"column:name;not null"`
	UnitPriceCents int                `gorm:"column:unit_price_cents;not null"`
	Qty            int                `gorm:"column:qty;not null"`
	TotalCents     int                `gorm:"column:total_cents;not null"`
	BoxItems       []BoxSelection     `gorm:"foreignKey:LineItemID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time          `gorm:"column:created_at;autoCreateTime"`
}
