package models

import (
	"time"

	"github.com/google/uuid"
)

// CouponUsage records a user consuming a coupon. The unique index is what
// enforces single use per customer, concurrent attempts included.
type CouponUsage struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	CouponID  uuid.UUID `gorm:"column:coupon_id;type:uuid;not null;uniqueIndex:idx_coupon_usages_coupon_user"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_coupon_usages_coupon_user"`
	OrderID   uuid.UUID `gorm:"column:order_id;type:uuid;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
