package rewards

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/crumbhaus/bakehouse-backend/pkg/db/models"
	"github.com/crumbhaus/bakehouse-backend/pkg/enums"
)

// ErrNotFound is returned when a reward or redemption lookup misses.
var ErrNotFound = errors.New("reward not found")

// Repository manages persistence for rewards and their redemptions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetReward(ctx context.Context, id uuid.UUID) (*models.Reward, error)
	ListActiveRewards(ctx context.Context) ([]models.Reward, error)
	DecrementRewardStock(ctx context.Context, rewardID uuid.UUID) (bool, error)
	IncrementRewardStock(ctx context.Context, rewardID uuid.UUID) error
	CreateRedemption(ctx context.Context, redemption *models.RewardRedemption) error
	GetRedemption(ctx context.Context, id uuid.UUID) (*models.RewardRedemption, error)
	ListRedemptionsByUser(ctx context.Context, userID uuid.UUID) ([]models.RewardRedemption, error)
	UpdateRedemptionStatus(ctx context.Context, id uuid.UUID, status enums.RedemptionStatus, orderID *uuid.UUID) error
	GetRedemptionByOrder(ctx context.Context, orderID uuid.UUID) (*models.RewardRedemption, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a rewards repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) GetReward(ctx context.Context, id uuid.UUID) (*models.Reward, error) {
	var reward models.Reward
	if err := r.db.WithContext(ctx).First(&reward, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &reward, nil
}

func (r *repository) ListActiveRewards(ctx context.Context) ([]models.Reward, error) {
	var rewards []models.Reward
	if err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("points_cost ASC").
		Find(&rewards).Error; err != nil {
		return nil, err
	}
	return rewards, nil
}

func (r *repository) DecrementRewardStock(ctx context.Context, rewardID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Reward{}).
		Where("id = ? AND (stock = -1 OR stock >= 1)", rewardID).
		UpdateColumn("stock", gorm.Expr("CASE WHEN stock = -1 THEN stock ELSE stock - 1 END"))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// IncrementRewardStock returns one unit taken by a cancelled redemption.
// Unlimited-stock rewards (-1) are left untouched.
func (r *repository) IncrementRewardStock(ctx context.Context, rewardID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Reward{}).
		Where("id = ? AND stock != -1", rewardID).
		UpdateColumn("stock", gorm.Expr("stock + 1")).Error
}

func (r *repository) CreateRedemption(ctx context.Context, redemption *models.RewardRedemption) error {
	return r.db.WithContext(ctx).Create(redemption).Error
}

func (r *repository) GetRedemption(ctx context.Context, id uuid.UUID) (*models.RewardRedemption, error) {
	var redemption models.RewardRedemption
	if err := r.db.WithContext(ctx).First(&redemption, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &redemption, nil
}

func (r *repository) ListRedemptionsByUser(ctx context.Context, userID uuid.UUID) ([]models.RewardRedemption, error) {
	var redemptions []models.RewardRedemption
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&redemptions).Error; err != nil {
		return nil, err
	}
	return redemptions, nil
}

func (r *repository) UpdateRedemptionStatus(ctx context.Context, id uuid.UUID, status enums.RedemptionStatus, orderID *uuid.UUID) error {
	updates := map[string]any{"status": status}
	if orderID != nil {
		updates["order_id"] = *orderID
	}
	return r.db.WithContext(ctx).
		Model(&models.RewardRedemption{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) GetRedemptionByOrder(ctx context.Context, orderID uuid.UUID) (*models.RewardRedemption, error) {
	var redemption models.RewardRedemption
	if err := r.db.WithContext(ctx).First(&redemption, "order_id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &redemption, nil
}
