package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/crumbhaus/bakehouse-backend/pkg/enums"
)

// RewardRedemption tracks a user cashing in a reward. Points are debited
// when the redemption is created; CouponID is set for percentage-coupon
// rewards, OrderID once the redemption is attached to a checkout.
type RewardRedemption struct {
	ID          uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	UserID      uuid.UUID              `gorm:"column:user_id;type:uuid;not null;index"`
	RewardID    uuid.UUID              `gorm:"column:reward_id;type:uuid;not null"`
	Status      enums.RedemptionStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	PointsSpent int                    `gorm:"column:points_spent;not null"`
	CouponID    *uuid.UUID             `gorm:"column:coupon_id;type:uuid"`
	OrderID     *uuid.UUID             `gorm:"column:order_id;type:uuid"`
	CreatedAt   time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
