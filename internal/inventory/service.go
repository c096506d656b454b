package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/crumbhaus/bakehouse-backend/pkg/db/models"
)

// Reservation is one stock take against a product line.
type Reservation struct {
	ProductID uuid.UUID
	Name      string
	Qty       int
	Unlimited bool
}

// BoxChoice is one cookie picked into a custom box.
type BoxChoice struct {
	ProductID uuid.UUID
	Qty       int
}

// Service guards stock admission. Reserve runs inside the checkout
// transaction so the conditional decrement is the authoritative check; the
// box validation is the fast user-facing rejection that happens first.
type Service interface {
	Reserve(ctx context.Context, tx *gorm.DB, reservations []Reservation) error
	Release(ctx context.Context, tx *gorm.DB, reservations []Reservation) error
	ValidateBox(boxSize int, choices []BoxChoice, stocks map[uuid.UUID]models.Product) error
}

type service struct {
	repo Repository
}

// NewService wires the stock guard with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Reserve(ctx context.Context, tx *gorm.DB, reservations []Reservation) error {
	repo := s.repo.WithTx(tx)
	for _, res := range reservations {
		if res.Qty <= 0 {
			return fmt.Errorf("invalid quantity %d for product %s", res.Qty, res.ProductID)
		}
		if res.Unlimited {
			continue
		}
		taken, err := repo.DecrementStock(ctx, res.ProductID, res.Qty)
		if err != nil {
			return err
		}
		if !taken {
			product, loadErr := repo.GetProduct(ctx, res.ProductID)
			available := 0
			name := res.Name
			if loadErr == nil {
				available = product.Stock
				name = product.Name
			}
			return &StockError{
				ProductID: res.ProductID,
				Name:      name,
				Requested: res.Qty,
				Available: available,
			}
		}
	}
	return nil
}

// Release returns stock taken by a cancelled order. Unlimited lines were
// never decremented so they are skipped.
func (s *service) Release(ctx context.Context, tx *gorm.DB, reservations []Reservation) error {
	repo := s.repo.WithTx(tx)
	for _, res := range reservations {
		if res.Unlimited || res.Qty <= 0 {
			continue
		}
		if err := repo.IncrementStock(ctx, res.ProductID, res.Qty); err != nil {
			return err
		}
	}
	return nil
}

// ValidateBox checks a custom box against the configured size and each
// cookie's available stock. Availability accounts for cookies already
// chosen earlier in the same box.
func (s *service) ValidateBox(boxSize int, choices []BoxChoice, stocks map[uuid.UUID]models.Product) error {
	if boxSize <= 0 {
		return fmt.Errorf("box size must be positive")
	}

	total := 0
	chosen := make(map[uuid.UUID]int, len(choices))
	for _, choice := range choices {
		if choice.Qty <= 0 {
			return fmt.Errorf("invalid quantity %d in box", choice.Qty)
		}
		product, ok := stocks[choice.ProductID]
		if !ok {
			return fmt.Errorf("unknown product %s in box", choice.ProductID)
		}
		if !product.HasUnlimitedStock() {
			available := product.Stock - chosen[choice.ProductID]
			if choice.Qty > available {
				return &StockError{
					ProductID: choice.ProductID,
					Name:      product.Name,
					Requested: choice.Qty,
					Available: available,
				}
			}
		}
		chosen[choice.ProductID] += choice.Qty
		total += choice.Qty
	}

	if total != boxSize {
		return &BoxSizeError{Expected: boxSize, Got: total}
	}
	return nil
}
