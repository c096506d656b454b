package controllers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/crumbhaus/bakehouse-backend/api/responses"
	ordersvc "github.com/crumbhaus/bakehouse-backend/internal/orders"
	pkgerrors "github.com/crumbhaus/bakehouse-backend/pkg/errors"
	"github.com/crumbhaus/bakehouse-backend/pkg/logger"
	"github.com/crumbhaus/bakehouse-backend/pkg/payments"
)

const gatewaySignatureHeader = "X-Gateway-Signature"

const maxWebhookBody = 64 << 10

type webhookAck struct {
	Received bool `json:"received"`
}

// PaymentWebhook ingests gateway callbacks. A "paid" event promotes the
// order out of pending_payment; a "rejected" event is logged and the order
// is left for the sweep to follow up on.
func PaymentWebhook(svc ordersvc.Service, gateway payments.Gateway, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadable webhook body"))
			return
		}

		if !gateway.VerifySignature(body, r.Header.Get(gatewaySignatureHeader)) {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid webhook signature"))
			return
		}

		var event payments.WebhookEvent
		if err := json.Unmarshal(body, &event); err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed webhook payload"))
			return
		}

		orderID, err := uuid.Parse(event.OrderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "webhook order id is not a uuid").
					WithDetails(map[string]any{"order_id": event.OrderID}))
			return
		}

		ctx := logg.WithFields(logg.WithOrderID(r.Context(), orderID.String()), map[string]any{
			"intent_id": event.IntentID,
			"status":    event.Status,
		})

		switch event.Status {
		case payments.WebhookStatusPaid:
			if _, err := svc.ConfirmGatewayPayment(r.Context(), orderID); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			logg.Info(ctx, "gateway payment confirmed")
		case payments.WebhookStatusRejected:
			logg.Warn(ctx, "gateway payment rejected")
		default:
			logg.Warn(ctx, "unknown gateway webhook status")
		}

		responses.WriteSuccess(w, webhookAck{Received: true})
	}
}
