package coupons

import "fmt"

// Reason identifies which validation check a coupon failed.
type Reason string

const (
	ReasonNotFound     Reason = "not_found"
	ReasonExpired      Reason = "expired"
	ReasonUsageCap     Reason = "usage_cap_reached"
	ReasonAlreadyUsed  Reason = "already_used"
	ReasonBelowMinimum Reason = "below_minimum"
)

// CouponError reports a failed validation with enough detail for the
// caller to show a precise message.
type CouponError struct {
	Code   string
	Reason Reason
}

func (e *CouponError) Error() string {
	switch e.Reason {
	case ReasonNotFound:
		return fmt.Sprintf("coupon %q not found or inactive", e.Code)
	case ReasonExpired:
		return fmt.Sprintf("coupon %q has expired", e.Code)
	case ReasonUsageCap:
		return fmt.Sprintf("coupon %q has reached its usage limit", e.Code)
	case ReasonAlreadyUsed:
		return fmt.Sprintf("coupon %q was already used by this customer", e.Code)
	case ReasonBelowMinimum:
		return fmt.Sprintf("order does not meet the minimum for coupon %q", e.Code)
	default:
		return fmt.Sprintf("coupon %q is not valid", e.Code)
	}
}
