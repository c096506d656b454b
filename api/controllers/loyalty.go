package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/crumbhaus/bakehouse-backend/api/responses"
	"github.com/crumbhaus/bakehouse-backend/api/validators"
	loyaltysvc "github.com/crumbhaus/bakehouse-backend/internal/loyalty"
	"github.com/crumbhaus/bakehouse-backend/pkg/db/models"
	"github.com/crumbhaus/bakehouse-backend/pkg/logger"
	"github.com/crumbhaus/bakehouse-backend/pkg/pagination"
)

type balanceResponse struct {
	Balance int `json:"balance"`
}

type pointsEntryResponse struct {
	ID              uuid.UUID  `json:"id"`
	Type            string     `json:"type"`
	Points          int        `json:"points"`
	PreviousBalance int        `json:"previous_balance"`
	NewBalance      int        `json:"new_balance"`
	OrderID         *uuid.UUID `json:"order_id,omitempty"`
	RedemptionID    *uuid.UUID `json:"redemption_id,omitempty"`
	Note            string     `json:"note,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

type historyResponse struct {
	Entries    []pointsEntryResponse `json:"entries"`
	NextCursor string                `json:"next_cursor,omitempty"`
}

type adjustRequest struct {
	UserID uuid.UUID `json:"user_id" validate:"required"`
	Points int       `json:"points" validate:"required"`
	Note   string    `json:"note" validate:"required,max=255"`
}

type adjustResponse struct {
	UserID     uuid.UUID `json:"user_id"`
	NewBalance int       `json:"new_balance"`
}

func newPointsEntryResponse(entry *models.PointsEntry) pointsEntryResponse {
	return pointsEntryResponse{
		ID:              entry.ID,
		Type:            entry.Type.String(),
		Points:          entry.Points,
		PreviousBalance: entry.PreviousBalance,
		NewBalance:      entry.NewBalance,
		OrderID:         entry.OrderID,
		RedemptionID:    entry.RedemptionID,
		Note:            entry.Note,
		CreatedAt:       entry.CreatedAt,
	}
}

func LoyaltyBalance(svc loyaltysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		balance, err := svc.Balance(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, balanceResponse{Balance: balance})
	}
}

func LoyaltyHistory(svc loyaltysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.History(r.Context(), userID, pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := historyResponse{NextCursor: page.NextCursor}
		for i := range page.Entries {
			out.Entries = append(out.Entries, newPointsEntryResponse(&page.Entries[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

// AdjustLoyalty lets staff hand out or claw back points with an audit note.
func AdjustLoyalty(svc loyaltysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload adjustRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		balance, err := svc.Adjust(r.Context(), payload.UserID, payload.Points, payload.Note)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, adjustResponse{UserID: payload.UserID, NewBalance: balance})
	}
}
