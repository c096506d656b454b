package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/crumbhaus/bakehouse-backend/api/responses"
	"github.com/crumbhaus/bakehouse-backend/api/validators"
	checkoutsvc "github.com/crumbhaus/bakehouse-backend/internal/checkout"
	"github.com/crumbhaus/bakehouse-backend/pkg/enums"
	"github.com/crumbhaus/bakehouse-backend/pkg/logger"
)

type checkoutRequest struct {
	Lines          []checkoutLine `json:"lines" validate:"omitempty,dive"`
	CouponCode     string         `json:"coupon_code,omitempty" validate:"omitempty,max=64"`
	RedemptionID   *uuid.UUID     `json:"redemption_id,omitempty"`
	RewardBoxPicks []boxPick      `json:"reward_box_picks,omitempty" validate:"omitempty,dive"`
	DeliveryMethod string         `json:"delivery_method" validate:"required,oneof=pickup delivery"`
	PaymentMethod  string         `json:"payment_method" validate:"required,oneof=cash bank_transfer card_gateway points"`
	DeliveryZoneID *uuid.UUID     `json:"delivery_zone_id,omitempty"`
}

type checkoutLine struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Qty       int       `json:"qty" validate:"required,min=1"`
	BoxPicks  []boxPick `json:"box_picks,omitempty" validate:"omitempty,dive"`
}

type boxPick struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Qty       int       `json:"qty" validate:"required,min=1"`
}

type checkoutResponse struct {
	Order       orderResponse `json:"order"`
	RedirectURL string        `json:"redirect_url,omitempty"`
}

// Checkout turns the submitted cart into a priced order.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := checkoutsvc.Input{
			CouponCode:     payload.CouponCode,
			RedemptionID:   payload.RedemptionID,
			DeliveryMethod: enums.DeliveryMethod(payload.DeliveryMethod),
			PaymentMethod:  enums.PaymentMethod(payload.PaymentMethod),
			DeliveryZoneID: payload.DeliveryZoneID,
		}
		for _, line := range payload.Lines {
			input.Lines = append(input.Lines, checkoutsvc.CartLine{
				ProductID: line.ProductID,
				Qty:       line.Qty,
				BoxPicks:  toBoxPicks(line.BoxPicks),
			})
		}
		input.RewardBoxPicks = toBoxPicks(payload.RewardBoxPicks)

		result, err := svc.Execute(r.Context(), userID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, checkoutResponse{
			Order:       newOrderResponse(result.Order),
			RedirectURL: result.RedirectURL,
		})
	}
}

func toBoxPicks(picks []boxPick) []checkoutsvc.BoxPick {
	out := make([]checkoutsvc.BoxPick, 0, len(picks))
	for _, pick := range picks {
		out = append(out, checkoutsvc.BoxPick{ProductID: pick.ProductID, Qty: pick.Qty})
	}
	return out
}
