package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/crumbhaus/bakehouse-backend/pkg/enums"
)

// Coupon is a discount voucher. Percent is only set for percentage coupons,
// AmountCents only for fixed-amount ones. UsageLimit of 0 means unlimited.
type Coupon struct {
	ID               uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Code             string           `gorm:"column:code;not null;uniqueIndex"`
	Kind             enums.CouponKind `gorm:"column:kind;type:text;not null"`
	Percent          int              `gorm:"column:percent;not null;default:0"`
	AmountCents      int              `gorm:"column:amount_cents;not null;default:0"`
	MinSubtotalCents int              `gorm:"column:min_subtotal_cents;not null;default:0"`
	UsageLimit       int              `gorm:"column:usage_limit;not null;default:0"`
	UsageCount       int              `gorm:"column:usage_count;not null;default:0"`
	ExpiresAt        *time.Time       `gorm:"column:expires_at"`
	Active           bool             `gorm:"column:active;not null;default:true"`
	CreatedAt        time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
