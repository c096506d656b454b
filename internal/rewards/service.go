package rewards

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/crumbhaus/bakehouse-backend/internal/coupons"
	"github.com/crumbhaus/bakehouse-backend/internal/inventory"
	"github.com/crumbhaus/bakehouse-backend/internal/loyalty"
	"github.com/crumbhaus/bakehouse-backend/pkg/db"
	"github.com/crumbhaus/bakehouse-backend/pkg/db/models"
	"github.com/crumbhaus/bakehouse-backend/pkg/enums"
	pkgerrors "github.com/crumbhaus/bakehouse-backend/pkg/errors"
)

// RedeemResult reports what the user received. CouponCode is set only for
// percentage-coupon rewards; the other kinds hand back a redemption to
// attach to a checkout.
type RedeemResult struct {
	Redemption *models.RewardRedemption
	CouponCode string
	NewBalance int
}

// Service turns points into rewards. The debit and the redemption record
// are written in one transaction; one without the other never persists.
type Service interface {
	Redeem(ctx context.Context, userID, rewardID uuid.UUID) (*RedeemResult, error)
	ListCatalog(ctx context.Context) ([]models.Reward, error)
	GetReward(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Reward, error)
	GetRedemption(ctx context.Context, id uuid.UUID) (*models.RewardRedemption, error)
	ListRedemptions(ctx context.Context, userID uuid.UUID) ([]models.RewardRedemption, error)
	CancelPending(ctx context.Context, userID, redemptionID uuid.UUID) (int, error)
	MarkProcessing(ctx context.Context, tx *gorm.DB, redemptionID, orderID uuid.UUID) error
	MarkDelivered(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
	CancelForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
}

type service struct {
	client  *db.Client
	repo    Repository
	loyalty loyalty.Service
	coupons coupons.Service
}

// NewService wires the redemption processor with its collaborators.
func NewService(client *db.Client, repo Repository, loyaltySvc loyalty.Service, couponSvc coupons.Service) (Service, error) {
	if client == nil {
		return nil, fmt.Errorf("rewards db client required")
	}
	if repo == nil {
		return nil, fmt.Errorf("rewards repository required")
	}
	if loyaltySvc == nil {
		return nil, fmt.Errorf("rewards loyalty service required")
	}
	if couponSvc == nil {
		return nil, fmt.Errorf("rewards coupon service required")
	}
	return &service{client: client, repo: repo, loyalty: loyaltySvc, coupons: couponSvc}, nil
}

func (s *service) Redeem(ctx context.Context, userID, rewardID uuid.UUID) (*RedeemResult, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("user id is required")
	}

	var result RedeemResult
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		reward, err := repo.GetReward(ctx, rewardID)
		if err != nil {
			return err
		}
		if !reward.Active {
			return ErrNotFound
		}

		if reward.Kind == enums.RewardKindPlainProduct && !reward.HasUnlimitedStock() {
			taken, err := repo.DecrementRewardStock(ctx, rewardID)
			if err != nil {
				return err
			}
			if !taken {
				return &inventory.StockError{
					ProductID: rewardID,
					Name:      reward.Name,
					Requested: 1,
					Available: 0,
				}
			}
		}

		redemption := &models.RewardRedemption{
			ID:          uuid.New(),
			UserID:      userID,
			RewardID:    reward.ID,
			Status:      enums.RedemptionStatusPending,
			PointsSpent: reward.PointsCost,
		}

		// A coupon hand-off has no further fulfillment step.
		if reward.Kind == enums.RewardKindPercentageCoupon {
			coupon, err := s.coupons.MintPercentage(ctx, tx, reward.Name, reward.Percent)
			if err != nil {
				return err
			}
			redemption.CouponID = &coupon.ID
			redemption.Status = enums.RedemptionStatusDelivered
			result.CouponCode = coupon.Code
		}

		newBalance, err := s.loyalty.Debit(ctx, tx, userID, reward.PointsCost, &redemption.ID)
		if err != nil {
			return err
		}
		result.NewBalance = newBalance

		if err := repo.CreateRedemption(ctx, redemption); err != nil {
			return err
		}
		result.Redemption = redemption
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *service) ListCatalog(ctx context.Context) ([]models.Reward, error) {
	return s.repo.ListActiveRewards(ctx)
}

func (s *service) GetReward(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Reward, error) {
	return s.repo.WithTx(tx).GetReward(ctx, id)
}

func (s *service) GetRedemption(ctx context.Context, id uuid.UUID) (*models.RewardRedemption, error) {
	return s.repo.GetRedemption(ctx, id)
}

func (s *service) ListRedemptions(ctx context.Context, userID uuid.UUID) ([]models.RewardRedemption, error) {
	return s.repo.ListRedemptionsByUser(ctx, userID)
}

// CancelPending reverses a redemption the user decided not to spend: the
// points come back, held stock is returned, and the redemption is closed
// as cancelled. Only the owner can cancel, and only while the redemption
// is still pending; anything already attached to an order is out of reach.
// Returns the balance after the refund.
func (s *service) CancelPending(ctx context.Context, userID, redemptionID uuid.UUID) (int, error) {
	if userID == uuid.Nil {
		return 0, fmt.Errorf("user id is required")
	}

	var newBalance int
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		redemption, err := repo.GetRedemption(ctx, redemptionID)
		if err != nil {
			return err
		}
		// Do not reveal other users' redemptions.
		if redemption.UserID != userID {
			return ErrNotFound
		}
		if redemption.Status != enums.RedemptionStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "redemption is no longer pending")
		}

		reward, err := repo.GetReward(ctx, redemption.RewardID)
		if err != nil {
			return err
		}
		if reward.Kind == enums.RewardKindPlainProduct && !reward.HasUnlimitedStock() {
			if err := repo.IncrementRewardStock(ctx, redemption.RewardID); err != nil {
				return err
			}
		}

		balance, err := s.loyalty.Refund(ctx, tx, userID, redemption.PointsSpent, &redemption.ID)
		if err != nil {
			return err
		}
		newBalance = balance

		return repo.UpdateRedemptionStatus(ctx, redemptionID, enums.RedemptionStatusCancelled, nil)
	})
	if err != nil {
		return 0, err
	}
	return newBalance, nil
}

// MarkProcessing attaches a pending redemption to the order consuming it.
func (s *service) MarkProcessing(ctx context.Context, tx *gorm.DB, redemptionID, orderID uuid.UUID) error {
	repo := s.repo.WithTx(tx)

	redemption, err := repo.GetRedemption(ctx, redemptionID)
	if err != nil {
		return err
	}
	if redemption.Status != enums.RedemptionStatusPending {
		return fmt.Errorf("redemption %s is %s, not pending", redemptionID, redemption.Status)
	}
	return repo.UpdateRedemptionStatus(ctx, redemptionID, enums.RedemptionStatusProcessing, &orderID)
}

// MarkDelivered closes the redemption attached to a delivered order, if any.
func (s *service) MarkDelivered(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	repo := s.repo.WithTx(tx)

	redemption, err := repo.GetRedemptionByOrder(ctx, orderID)
	if err != nil {
		if err == ErrNotFound {
			return nil
		}
		return err
	}
	return repo.UpdateRedemptionStatus(ctx, redemption.ID, enums.RedemptionStatusDelivered, nil)
}

// CancelForOrder flags the redemption on a cancelled order. The points stay
// spent; staff use a loyalty adjustment when a refund is warranted.
func (s *service) CancelForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	repo := s.repo.WithTx(tx)

	redemption, err := repo.GetRedemptionByOrder(ctx, orderID)
	if err != nil {
		if err == ErrNotFound {
			return nil
		}
		return err
	}
	return repo.UpdateRedemptionStatus(ctx, redemption.ID, enums.RedemptionStatusCancelled, nil)
}
