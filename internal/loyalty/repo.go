package loyalty

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/crumbhaus/bakehouse-backend/pkg/db/models"
	"github.com/crumbhaus/bakehouse-backend/pkg/enums"
	"github.com/crumbhaus/bakehouse-backend/pkg/pagination"
)

// ErrUserNotFound is returned when a balance lookup misses.
var ErrUserNotFound = errors.New("user not found")

// Repository owns the points balance column and its history ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetBalance(ctx context.Context, userID uuid.UUID) (int, error)
	DebitBalance(ctx context.Context, userID uuid.UUID, points int) (bool, error)
	CreditBalance(ctx context.Context, userID uuid.UUID, points int) error
	CreateEntry(ctx context.Context, entry *models.PointsEntry) error
	HasOrderEntry(ctx context.Context, orderID uuid.UUID, entryType enums.PointsEntryType) (bool, error)
	ListEntries(ctx context.Context, userID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.PointsEntry, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a loyalty repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) GetBalance(ctx context.Context, userID uuid.UUID) (int, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Select("id", "points_balance").
		First(&user, "id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrUserNotFound
		}
		return 0, err
	}
	return user.PointsBalance, nil
}

// DebitBalance takes points only while the balance covers them. The guard
// in the WHERE clause is what keeps concurrent redemptions from driving the
// balance negative.
func (r *repository) DebitBalance(ctx context.Context, userID uuid.UUID, points int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND points_balance >= ?", userID, points).
		UpdateColumn("points_balance", gorm.Expr("points_balance - ?", points))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) CreditBalance(ctx context.Context, userID uuid.UUID, points int) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		UpdateColumn("points_balance", gorm.Expr("points_balance + ?", points)).Error
}

func (r *repository) CreateEntry(ctx context.Context, entry *models.PointsEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) HasOrderEntry(ctx context.Context, orderID uuid.UUID, entryType enums.PointsEntryType) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.PointsEntry{}).
		Where("order_id = ? AND type = ?", orderID, entryType).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) ListEntries(ctx context.Context, userID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.PointsEntry, error) {
	query := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit)
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var entries []models.PointsEntry
	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
