package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/crumbhaus/bakehouse-backend/pkg/enums"
)

// Reward is a catalog entry redeemable with points. Which optional fields
// apply depends on Kind: plain products reference a ProductID with their own
// Stock, percentage coupons carry Percent, customizable boxes carry BoxSize.
type Reward struct {
	ID         uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Name       string           `gorm:"column:name;not null"`
	Kind       enums.RewardKind `gorm:"column:kind;type:text;not null"`
	PointsCost int              `gorm:"column:points_cost;not null"`
	ProductID  *uuid.UUID       `gorm:"column:product_id;type:uuid"`
	Stock      int              `gorm:"column:stock;not null;default:-1"`
	Percent    int              `gorm:"column:percent;not null;default:0"`
	BoxSize    int              `gorm:"column:box_size;not null;default:0"`
	Active     bool             `gorm:"column:active;not null;default:true"`
	CreatedAt  time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// HasUnlimitedStock reports whether the reward skips stock tracking.
func (r *Reward) HasUnlimitedStock() bool {
	return r.Stock == -1
}
