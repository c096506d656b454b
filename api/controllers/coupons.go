package controllers

import (
	"net/http"

	"github.com/crumbhaus/bakehouse-backend/api/responses"
	"github.com/crumbhaus/bakehouse-backend/api/validators"
	couponsvc "github.com/crumbhaus/bakehouse-backend/internal/coupons"
	"github.com/crumbhaus/bakehouse-backend/pkg/logger"
)

type validateCouponRequest struct {
	Code          string `json:"code" validate:"required,max=64"`
	SubtotalCents int    `json:"subtotal_cents" validate:"required,gt=0"`
}

type validateCouponResponse struct {
	Code          string `json:"code"`
	Kind          string `json:"kind"`
	Percent       int    `json:"percent,omitempty"`
	DiscountCents int    `json:"discount_cents"`
	FreeShipping  bool   `json:"free_shipping"`
}

// ValidateCoupon is a read-only dry run so the cart can show the discount
// before checkout. Nothing is consumed here.
func ValidateCoupon(svc couponsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload validateCouponRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		validation, err := svc.Validate(r.Context(), payload.Code, userID, payload.SubtotalCents)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, validateCouponResponse{
			Code:          validation.Code,
			Kind:          validation.Kind.String(),
			Percent:       validation.Percent,
			DiscountCents: validation.DiscountCents,
			FreeShipping:  validation.FreeShipping,
		})
	}
}
