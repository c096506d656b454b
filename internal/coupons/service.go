package coupons

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/crumbhaus/bakehouse-backend/pkg/db"
	"github.com/crumbhaus/bakehouse-backend/pkg/db/models"
	"github.com/crumbhaus/bakehouse-backend/pkg/enums"
)

// Validation is the outcome of a successful coupon check.
type Validation struct {
	CouponID      uuid.UUID
	Code          string
	Kind          enums.CouponKind
	Percent       int
	DiscountCents int
	FreeShipping  bool
}

// Service validates and consumes coupons.
type Service interface {
	Validate(ctx context.Context, code string, userID uuid.UUID, subtotalCents int) (*Validation, error)
	Consume(ctx context.Context, tx *gorm.DB, couponID, userID, orderID uuid.UUID) error
	MintPercentage(ctx context.Context, tx *gorm.DB, name string, percent int) (*models.Coupon, error)
	WithTx(tx *gorm.DB) Service
}

type service struct {
	repo Repository
	now  func() time.Time
}

// NewService wires a coupon service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("coupon repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	if tx == nil {
		return s
	}
	return &service{repo: s.repo.WithTx(tx), now: s.now}
}

// Validate runs every check in order and short-circuits on the first
// failure. It has no side effects; Consume records usage after the order
// is durably created.
func (s *service) Validate(ctx context.Context, code string, userID uuid.UUID, subtotalCents int) (*Validation, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("user id is required")
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, &CouponError{Code: code, Reason: ReasonNotFound}
	}

	coupon, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &CouponError{Code: code, Reason: ReasonNotFound}
		}
		return nil, err
	}
	if !coupon.Active {
		return nil, &CouponError{Code: code, Reason: ReasonNotFound}
	}
	if coupon.ExpiresAt != nil && s.now().After(*coupon.ExpiresAt) {
		return nil, &CouponError{Code: code, Reason: ReasonExpired}
	}
	if coupon.UsageLimit > 0 && coupon.UsageCount >= coupon.UsageLimit {
		return nil, &CouponError{Code: code, Reason: ReasonUsageCap}
	}

	used, err := s.repo.HasUsage(ctx, coupon.ID, userID)
	if err != nil {
		return nil, err
	}
	if used {
		return nil, &CouponError{Code: code, Reason: ReasonAlreadyUsed}
	}

	if subtotalCents < coupon.MinSubtotalCents {
		return nil, &CouponError{Code: code, Reason: ReasonBelowMinimum}
	}

	return &Validation{
		CouponID:      coupon.ID,
		Code:          coupon.Code,
		Kind:          coupon.Kind,
		Percent:       coupon.Percent,
		DiscountCents: discountFor(coupon, subtotalCents),
		FreeShipping:  coupon.Kind == enums.CouponKindFreeShipping,
	}, nil
}

// Consume burns a use: counter increment plus usage-log row, inside the
// caller's order transaction. A duplicate usage row (concurrent checkout
// with the same coupon) surfaces as an already-used error.
func (s *service) Consume(ctx context.Context, tx *gorm.DB, couponID, userID, orderID uuid.UUID) error {
	repo := s.repo.WithTx(tx)

	coupon, err := repo.GetByID(ctx, couponID)
	if err != nil {
		return err
	}

	bumped, err := repo.IncrementUsage(ctx, couponID)
	if err != nil {
		return err
	}
	if !bumped {
		return &CouponError{Code: coupon.Code, Reason: ReasonUsageCap}
	}

	usage := &models.CouponUsage{
		CouponID: couponID,
		UserID:   userID,
		OrderID:  orderID,
	}
	if err := repo.CreateUsage(ctx, usage); err != nil {
		if db.IsUniqueViolation(err, "idx_coupon_usages_coupon_user") {
			return &CouponError{Code: coupon.Code, Reason: ReasonAlreadyUsed}
		}
		return err
	}
	return nil
}

// MintPercentage creates a single-use percentage coupon valid for 30 days,
// used when a percentage-coupon reward is redeemed.
func (s *service) MintPercentage(ctx context.Context, tx *gorm.DB, name string, percent int) (*models.Coupon, error) {
	if percent <= 0 || percent > 100 {
		return nil, fmt.Errorf("invalid coupon percent %d", percent)
	}

	expiry := s.now().AddDate(0, 0, 30)
	coupon := &models.Coupon{
		Code:       mintCode(name),
		Kind:       enums.CouponKindPercentage,
		Percent:    percent,
		UsageLimit: 1,
		ExpiresAt:  &expiry,
		Active:     true,
	}
	if err := s.repo.WithTx(tx).Create(ctx, coupon); err != nil {
		return nil, err
	}
	return coupon, nil
}

// discountFor previews the subtotal discount the pricing engine will
// apply, with the same half-away-from-zero rounding, so the dry-run
// endpoint reports the amount a checkout would actually take off.
func discountFor(coupon *models.Coupon, subtotalCents int) int {
	switch coupon.Kind {
	case enums.CouponKindPercentage:
		value := decimal.NewFromInt(int64(subtotalCents)).
			Mul(decimal.NewFromInt(int64(coupon.Percent))).
			Div(decimal.NewFromInt(100)).
			Round(0)
		return int(value.IntPart())
	case enums.CouponKindFixedAmount:
		if coupon.AmountCents > subtotalCents {
			return subtotalCents
		}
		return coupon.AmountCents
	default:
		// Free-shipping coupons discount nothing off the subtotal.
		return 0
	}
}

func mintCode(name string) string {
	prefix := strings.ToUpper(strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return -1
		}
	}, name))
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	if prefix == "" {
		prefix = "REWARD"
	}
	suffix := strings.ToUpper(uuid.NewString()[:8])
	return prefix + "-" + suffix
}
