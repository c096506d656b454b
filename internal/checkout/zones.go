package checkout

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/crumbhaus/bakehouse-backend/pkg/db/models"
)

// ZoneRepository resolves the shipping cost for a delivery zone.
type ZoneRepository interface {
	WithTx(tx *gorm.DB) ZoneRepository
	GetActive(ctx context.Context, id uuid.UUID) (*models.DeliveryZone, error)
}

// ErrZoneNotFound is returned when the zone is unknown or disabled.
var ErrZoneNotFound = errors.New("delivery zone not found")

type zoneRepository struct {
	db *gorm.DB
}

func NewZoneRepository(db *gorm.DB) ZoneRepository {
	return &zoneRepository{db: db}
}

func (r *zoneRepository) WithTx(tx *gorm.DB) ZoneRepository {
	if tx == nil {
		return r
	}
	return &zoneRepository{db: tx}
}

func (r *zoneRepository) GetActive(ctx context.Context, id uuid.UUID) (*models.DeliveryZone, error) {
	var zone models.DeliveryZone
	err := r.db.WithContext(ctx).First(&zone, "id = ? AND active = ?", id, true).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrZoneNotFound
	}
	if err != nil {
		return nil, err
	}
	return &zone, nil
}
