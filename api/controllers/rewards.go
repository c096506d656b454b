package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/crumbhaus/bakehouse-backend/api/responses"
	rewardsvc "github.com/crumbhaus/bakehouse-backend/internal/rewards"
	"github.com/crumbhaus/bakehouse-backend/pkg/db/models"
	"github.com/crumbhaus/bakehouse-backend/pkg/logger"
	"github.com/crumbhaus/bakehouse-backend/pkg/metrics"
)

type rewardResponse struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Kind       string    `json:"kind"`
	PointsCost int       `json:"points_cost"`
	Percent    int       `json:"percent,omitempty"`
	BoxSize    int       `json:"box_size,omitempty"`
	InStock    bool      `json:"in_stock"`
}

type redemptionResponse struct {
	ID          uuid.UUID  `json:"id"`
	RewardID    uuid.UUID  `json:"reward_id"`
	Status      string     `json:"status"`
	PointsSpent int        `json:"points_spent"`
	OrderID     *uuid.UUID `json:"order_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type redeemResponse struct {
	Redemption redemptionResponse `json:"redemption"`
	CouponCode string             `json:"coupon_code,omitempty"`
	NewBalance int                `json:"new_balance"`
}

func newRewardResponse(reward *models.Reward) rewardResponse {
	return rewardResponse{
		ID:         reward.ID,
		Name:       reward.Name,
		Kind:       reward.Kind.String(),
		PointsCost: reward.PointsCost,
		Percent:    reward.Percent,
		BoxSize:    reward.BoxSize,
		InStock:    reward.HasUnlimitedStock() || reward.Stock > 0,
	}
}

func newRedemptionResponse(redemption *models.RewardRedemption) redemptionResponse {
	return redemptionResponse{
		ID:          redemption.ID,
		RewardID:    redemption.RewardID,
		Status:      redemption.Status.String(),
		PointsSpent: redemption.PointsSpent,
		OrderID:     redemption.OrderID,
		CreatedAt:   redemption.CreatedAt,
	}
}

func ListRewards(svc rewardsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rewards, err := svc.ListCatalog(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]rewardResponse, 0, len(rewards))
		for i := range rewards {
			out = append(out, newRewardResponse(&rewards[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

// RedeemReward debits points and creates the redemption in one shot.
func RedeemReward(svc rewardsvc.Service, m *metrics.OrderMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rewardID, err := pathUUID(r, "rewardID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Redeem(r.Context(), userID, rewardID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		reward, rewardErr := svc.GetReward(r.Context(), nil, result.Redemption.RewardID)
		if rewardErr == nil {
			m.IncRedemption(reward.Kind.String())
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, redeemResponse{
			Redemption: newRedemptionResponse(result.Redemption),
			CouponCode: result.CouponCode,
			NewBalance: result.NewBalance,
		})
	}
}

type cancelRedemptionResponse struct {
	Redemption redemptionResponse `json:"redemption"`
	NewBalance int                `json:"new_balance"`
}

// CancelRedemption returns a pending redemption's points and stock. Once a
// checkout has consumed the redemption this responds 422.
func CancelRedemption(svc rewardsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		redemptionID, err := pathUUID(r, "redemptionID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		newBalance, err := svc.CancelPending(r.Context(), userID, redemptionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		redemption, err := svc.GetRedemption(r.Context(), redemptionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, cancelRedemptionResponse{
			Redemption: newRedemptionResponse(redemption),
			NewBalance: newBalance,
		})
	}
}

func ListRedemptions(svc rewardsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		redemptions, err := svc.ListRedemptions(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]redemptionResponse, 0, len(redemptions))
		for i := range redemptions {
			out = append(out, newRedemptionResponse(&redemptions[i]))
		}
		responses.WriteSuccess(w, out)
	}
}
