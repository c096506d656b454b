package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/crumbhaus/bakehouse-backend/pkg/enums"
)

// PointsEntry is an append-only loyalty ledger row. PreviousBalance and
// NewBalance snapshot the user's cached balance around the mutation so the
// history is auditable without replaying it.
//
// The unique (order_id, type) index makes order-linked credits idempotent:
// a second delivered-credit for the same order hits the index instead of
// double paying.
type PointsEntry struct {
	ID              uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	UserID          uuid.UUID            `gorm:"column:user_id;type:uuid;not null;index"`
	Type            enums.PointsEntryType `gorm:"column:type;type:text;not null;uniqueIndex:idx_points_entries_order_type"`
	Points          int                  `gorm:"column:points;not null"`
	PreviousBalance int                  `gorm:"column:previous_balance;not null"`
	NewBalance      int                  `gorm:"column:new_balance;not null"`
	OrderID         *uuid.UUID           `gorm:"column:order_id;type:uuid;uniqueIndex:idx_points_entries_order_type"`
	RedemptionID    *uuid.UUID           `gorm:"column:redemption_id;type:uuid"`
	Note            string               `gorm:"column:note"`
	CreatedAt       time.Time            `gorm:"column:created_at;autoCreateTime"`
}
