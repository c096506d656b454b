package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/crumbhaus/bakehouse-backend/pkg/enums"
)

// Line is one cart position as seen by the engine. Reward lines come in
// with a zero unit price.
type Line struct {
	UnitPriceCents int
	Qty            int
}

// CouponTerms is the discount side of an already-validated coupon.
type CouponTerms struct {
	Kind         enums.CouponKind
	Percent      int
	AmountCents  int
	FreeShipping bool
}

// Input is everything a quote depends on. The engine does no I/O; callers
// resolve the zone cost and validate the coupon before asking for a quote.
type Input struct {
	Lines              []Line
	Coupon             *CouponTerms
	DeliveryMethod     enums.DeliveryMethod
	PaymentMethod      enums.PaymentMethod
	ZoneShippingCents  int
	IsPointsRedemption bool
}

// Quote is the priced breakdown persisted onto the order.
type Quote struct {
	SubtotalCents       int
	CouponDiscountCents int
	ShippingCents       int
	SurchargeCents      int
	TotalCents          int
	PointsEarned        int
}

// SurchargePercent is the gateway fee passed through to the customer on
// card payments.
const SurchargePercent = 10

// ComputeQuote prices a cart deterministically. Identical inputs always
// produce identical quotes.
func ComputeQuote(in Input) Quote {
	var quote Quote

	if !in.IsPointsRedemption {
		for _, line := range in.Lines {
			quote.SubtotalCents += line.UnitPriceCents * line.Qty
		}
	}

	if in.Coupon != nil {
		quote.CouponDiscountCents = couponDiscount(*in.Coupon, quote.SubtotalCents)
	}

	if in.DeliveryMethod == enums.DeliveryMethodDelivery {
		freeShipping := in.Coupon != nil && in.Coupon.FreeShipping
		if !freeShipping {
			quote.ShippingCents = in.ZoneShippingCents
		}
	}

	if in.PaymentMethod == enums.PaymentMethodCardGateway {
		base := quote.SubtotalCents - quote.CouponDiscountCents + quote.ShippingCents
		quote.SurchargeCents = roundPercent(base, SurchargePercent)
	}

	quote.TotalCents = quote.SubtotalCents - quote.CouponDiscountCents + quote.ShippingCents + quote.SurchargeCents
	if quote.TotalCents < 0 {
		quote.TotalCents = 0
	}

	// Points never accrue on the gateway fee or on points-funded orders.
	if !in.IsPointsRedemption {
		quote.PointsEarned = quote.TotalCents - quote.SurchargeCents
		if quote.PointsEarned < 0 {
			quote.PointsEarned = 0
		}
	}

	return quote
}

func couponDiscount(coupon CouponTerms, subtotalCents int) int {
	switch coupon.Kind {
	case enums.CouponKindPercentage:
		return roundPercent(subtotalCents, coupon.Percent)
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

// roundPercent computes pct% of the amount, rounding half away from zero.
func roundPercent(amountCents, pct int) int {
	value := decimal.NewFromInt(int64(amountCents)).
		Mul(decimal.NewFromInt(int64(pct))).
		Div(decimal.NewFromInt(100)).
		Round(0)
	return int(value.IntPart())
}
