package responses

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/crumbhaus/bakehouse-backend/internal/coupons"
	"github.com/crumbhaus/bakehouse-backend/internal/inventory"
	"github.com/crumbhaus/bakehouse-backend/internal/loyalty"
	"github.com/crumbhaus/bakehouse-backend/internal/orders"
	"github.com/crumbhaus/bakehouse-backend/internal/rewards"
	"github.com/crumbhaus/bakehouse-backend/internal/users"
	pkgerrors "github.com/crumbhaus/bakehouse-backend/pkg/errors"
	"github.com/crumbhaus/bakehouse-backend/pkg/logger"
	"github.com/crumbhaus/bakehouse-backend/pkg/payments"
	"github.com/crumbhaus/bakehouse-backend/pkg/types"
)

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, types.SuccessEnvelope{Data: data})
}

func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}

	typed := translate(err)
	meta := pkgerrors.MetadataFor(typed.Code())

	msg := meta.PublicMessage
	switch typed.Code() {
	case pkgerrors.CodeValidation,
		pkgerrors.CodeForbidden,
		pkgerrors.CodeUnauthorized,
		pkgerrors.CodeNotFound,
		pkgerrors.CodeConflict,
		pkgerrors.CodeStateConflict,
		pkgerrors.CodeIdempotency:
		if m := typed.Message(); m != "" {
			msg = m
		}
	}

	payload := types.ErrorEnvelope{
		Error: types.APIError{
			Code:    string(typed.Code()),
			Message: msg,
		},
	}
	if meta.DetailsAllowed {
		if details := typed.Details(); details != nil {
			payload.Error.Details = details
		}
	}

	if logg != nil {
		ctx = logg.WithFields(ctx, map[string]any{
			"error_code":  string(typed.Code()),
			"error_chain": pkgerrors.Chain(err),
		})
		if meta.HTTPStatus >= http.StatusInternalServerError {
			logg.Error(ctx, "request failed", err)
		} else {
			logg.Warn(logg.WithField(ctx, "error", err.Error()), "request rejected")
		}
	}

	writeJSON(w, meta.HTTPStatus, payload)
}

// translate maps domain errors onto coded API errors. Validation-style
// rejections carry structured details so clients can show a precise
// message.
func translate(err error) *pkgerrors.Error {
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}

	var couponErr *coupons.CouponError
	if errors.As(err, &couponErr) {
		return pkgerrors.New(pkgerrors.CodeValidation, couponErr.Error()).
			WithDetails(map[string]any{
				"coupon": couponErr.Code,
				"reason": string(couponErr.Reason),
			})
	}

	var stockErr *inventory.StockError
	if errors.As(err, &stockErr) {
		return pkgerrors.New(pkgerrors.CodeConflict, stockErr.Error()).
			WithDetails(map[string]any{
				"product_id": stockErr.ProductID,
				"product":    stockErr.Name,
				"requested":  stockErr.Requested,
				"available":  stockErr.Available,
			})
	}

	var boxErr *inventory.BoxSizeError
	if errors.As(err, &boxErr) {
		return pkgerrors.New(pkgerrors.CodeValidation, boxErr.Error()).
			WithDetails(map[string]any{
				"expected": boxErr.Expected,
				"got":      boxErr.Got,
			})
	}

	var pointsErr *loyalty.InsufficientPointsError
	if errors.As(err, &pointsErr) {
		return pkgerrors.New(pkgerrors.CodeConflict, pointsErr.Error()).
			WithDetails(map[string]any{
				"required":  pointsErr.Required,
				"available": pointsErr.Available,
			})
	}

	var transitionErr *orders.IllegalTransitionError
	if errors.As(err, &transitionErr) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, transitionErr.Error()).
			WithDetails(map[string]any{
				"from": string(transitionErr.From),
				"to":   string(transitionErr.To),
			})
	}

	var gatewayErr *payments.Error
	if errors.As(err, &gatewayErr) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payment gateway unavailable")
	}

	switch {
	case errors.Is(err, orders.ErrNotFound):
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	case errors.Is(err, rewards.ErrNotFound):
		return pkgerrors.New(pkgerrors.CodeNotFound, "reward not found")
	case errors.Is(err, users.ErrNotFound):
		return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}

	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf(`{"level":"error","msg":"failed to encode response","err":"%v"}`, err)
	}
}
