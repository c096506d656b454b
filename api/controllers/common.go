package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/crumbhaus/bakehouse-backend/api/middleware"
	"github.com/crumbhaus/bakehouse-backend/internal/orders"
	"github.com/crumbhaus/bakehouse-backend/pkg/db/models"
	"github.com/crumbhaus/bakehouse-backend/pkg/enums"
	pkgerrors "github.com/crumbhaus/bakehouse-backend/pkg/errors"
)

func actorFromRequest(r *http.Request) (orders.Actor, error) {
	userID, err := userIDFromRequest(r)
	if err != nil {
		return orders.Actor{}, err
	}
	role, err := enums.ParseUserRole(middleware.RoleFromContext(r.Context()))
	if err != nil {
		return orders.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	return orders.Actor{UserID: userID, Role: role}, nil
}

func userIDFromRequest(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	userID, err := uuid.Parse(raw)
	if err != nil || userID == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	return userID, nil
}

func pathUUID(r *http.Request, key string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, key))
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid identifier in path").
			WithDetails(map[string]any{"param": key})
	}
	return id, nil
}

type orderResponse struct {
	OrderID             uuid.UUID          `json:"order_id"`
	Status              string             `json:"status"`
	PaymentMethod       string             `json:"payment_method"`
	DeliveryMethod      string             `json:"delivery_method"`
	SubtotalCents       int                `json:"subtotal_cents"`
	CouponDiscountCents int                `json:"coupon_discount_cents"`
	ShippingCents       int                `json:"shipping_cents"`
	SurchargeCents      int                `json:"surcharge_cents"`
	TotalCents          int                `json:"total_cents"`
	PointsEarned        int                `json:"points_earned"`
	PointsSpent         int                `json:"points_spent"`
	CouponCode          *string            `json:"coupon_code,omitempty"`
	TransferConfirmed   bool               `json:"transfer_confirmed"`
	GatewayRedirectURL  *string            `json:"gateway_redirect_url,omitempty"`
	Items               []lineItemResponse `json:"items,omitempty"`
	CreatedAt           time.Time          `json:"created_at"`
}

type lineItemResponse struct {
	Kind           string                 `json:"kind"`
	ProductID      *uuid.UUID             `json:"product_id,omitempty"`
	RewardID       *uuid.UUID             `json:"reward_id,omitempty"`
	Name           string                 `json:"name"`
	UnitPriceCents int                    `json:"unit_price_cents"`
	Qty            int                    `json:"qty"`
	TotalCents     int                    `json:"total_cents"`
	BoxItems       []boxSelectionResponse `json:"box_items,omitempty"`
}

type boxSelectionResponse struct {
	ProductID uuid.UUID `json:"product_id"`
	Name      string    `json:"name"`
	Qty       int       `json:"qty"`
}

func newOrderResponse(order *models.Order) orderResponse {
	if order == nil {
		return orderResponse{}
	}
	items := make([]lineItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		boxItems := make([]boxSelectionResponse, 0, len(item.BoxItems))
		for _, pick := range item.BoxItems {
			boxItems = append(boxItems, boxSelectionResponse{
				ProductID: pick.ProductID,
				Name:      pick.Name,
				Qty:       pick.Qty,
			})
		}
		items = append(items, lineItemResponse{
			Kind:           string(item.Kind),
			ProductID:      item.ProductID,
			RewardID:       item.RewardID,
			Name:           item.Name,
			UnitPriceCents: item.UnitPriceCents,
			Qty:            item.Qty,
			TotalCents:     item.TotalCents,
			BoxItems:       boxItems,
		})
	}
	return orderResponse{
		OrderID:             order.ID,
		Status:              string(order.Status),
		PaymentMethod:       string(order.PaymentMethod),
		DeliveryMethod:      string(order.DeliveryMethod),
		SubtotalCents:       order.SubtotalCents,
		CouponDiscountCents: order.CouponDiscountCents,
		ShippingCents:       order.ShippingCents,
		SurchargeCents:      order.SurchargeCents,
		TotalCents:          order.TotalCents,
		PointsEarned:        order.PointsEarned,
		PointsSpent:         order.PointsSpent,
		CouponCode:          order.CouponCode,
		TransferConfirmed:   order.TransferConfirmed,
		GatewayRedirectURL:  order.GatewayRedirectURL,
		Items:               items,
		CreatedAt:           order.CreatedAt,
	}
}
