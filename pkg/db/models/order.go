package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/crumbhaus/bakehouse-backend/pkg/enums"
)

// Order is a settled checkout. Every money field is snapshotted at creation
// time and never re-derived from the catalog.
type Order struct {
	ID                  uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	UserID              uuid.UUID            `gorm:"column:user_id;type:uuid;not null;index"`
	Status              enums.OrderStatus    `gorm:"column:status;type:text;not null;default:'preparing'"`
	PaymentMethod       enums.PaymentMethod  `gorm:"column:payment_method;type:text;not null"`
	DeliveryMethod      enums.DeliveryMethod `gorm:"column:delivery_method;type:text;not null"`
	DeliveryZoneID      *uuid.UUID           `gorm:"column:delivery_zone_id;type:uuid"`
	SubtotalCents       int                  `gorm:"column:subtotal_cents;not null"`
	CouponDiscountCents int                  `gorm:"column:coupon_discount_cents;not null;default:0"`
	PointsDiscountCents int                  `gorm:"column:points_discount_cents;not null;default:0"`
	ShippingCents       int                  `gorm:"column:shipping_cents;not null;default:0"`
	SurchargeCents      int                  `gorm:"column:surcharge_cents;not null;default:0"`
	TotalCents          int                  `gorm:"column:total_cents;not null"`
	TransferConfirmed   bool                 `gorm:"column:transfer_confirmed;not null;default:false"`
	PointsEarned        int                  `gorm:"column:points_earned;not null;default:0"`
	PointsSpent         int                  `gorm:"column:points_spent;not null;default:0"`
	CouponID            *uuid.UUID           `gorm:"column:coupon_id;type:uuid"`
	CouponCode          *string              `gorm:"column:coupon_code"`
	RedemptionID        *uuid.UUID           `gorm:"column:redemption_id;type:uuid"`
	GatewayRedirectURL  *string              `gorm:"column:gateway_redirect_url"`
	Items               []OrderLineItem      `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	FollowupFlaggedAt   *time.Time           `gorm:"column:followup_flagged_at"`
	DeliveredAt         *time.Time           `gorm:"column:delivered_at"`
	CancelledAt         *time.Time           `gorm:"column:cancelled_at"`
	CreatedAt           time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
