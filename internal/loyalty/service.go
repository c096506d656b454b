package loyalty

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/crumbhaus/bakehouse-backend/pkg/db"
	"github.com/crumbhaus/bakehouse-backend/pkg/db/models"
	"github.com/crumbhaus/bakehouse-backend/pkg/enums"
	"github.com/crumbhaus/bakehouse-backend/pkg/pagination"
)

// HistoryPage is one page of ledger entries with the cursor for the next.
type HistoryPage struct {
	Entries    []models.PointsEntry
	NextCursor string
}

// Service is the only writer of the points balance. Earn credits land
// exclusively on delivery and exactly once per order; debits happen
// synchronously when a redemption is created.
type Service interface {
	Debit(ctx context.Context, tx *gorm.DB, userID uuid.UUID, points int, redemptionID *uuid.UUID) (int, error)
	Refund(ctx context.Context, tx *gorm.DB, userID uuid.UUID, points int, redemptionID *uuid.UUID) (int, error)
	CreditOnDelivery(ctx context.Context, tx *gorm.DB, userID, orderID uuid.UUID, points int) error
	Adjust(ctx context.Context, userID uuid.UUID, points int, note string) (int, error)
	Balance(ctx context.Context, userID uuid.UUID) (int, error)
	History(ctx context.Context, userID uuid.UUID, params pagination.Params) (*HistoryPage, error)
}

type service struct {
	client *db.Client
	repo   Repository
}

// NewService wires the loyalty ledger with its repository and a DB client
// for operations that open their own transaction.
func NewService(client *db.Client, repo Repository) (Service, error) {
	if client == nil {
		return nil, fmt.Errorf("loyalty db client required")
	}
	if repo == nil {
		return nil, fmt.Errorf("loyalty repository required")
	}
	return &service{client: client, repo: repo}, nil
}

// Debit removes points inside the caller's transaction and logs a redeem
// entry. Rejects when the balance does not cover the requested points.
func (s *service) Debit(ctx context.Context, tx *gorm.DB, userID uuid.UUID, points int, redemptionID *uuid.UUID) (int, error) {
	if points <= 0 {
		return 0, fmt.Errorf("debit points must be positive")
	}
	repo := s.repo.WithTx(tx)

	taken, err := repo.DebitBalance(ctx, userID, points)
	if err != nil {
		return 0, err
	}
	if !taken {
		balance, balErr := repo.GetBalance(ctx, userID)
		if balErr != nil {
			return 0, balErr
		}
		return 0, &InsufficientPointsError{Required: points, Available: balance}
	}

	newBalance, err := repo.GetBalance(ctx, userID)
	if err != nil {
		return 0, err
	}

	entry := &models.PointsEntry{
		UserID:          userID,
		Type:            enums.PointsEntryTypeRedeem,
		Points:          -points,
		PreviousBalance: newBalance + points,
		NewBalance:      newBalance,
		RedemptionID:    redemptionID,
	}
	if err := repo.CreateEntry(ctx, entry); err != nil {
		return 0, err
	}
	return newBalance, nil
}

// Refund returns the points taken by a redemption that was cancelled
// before any order consumed it. It runs inside the caller's transaction
// so the credit and the status flip commit together.
func (s *service) Refund(ctx context.Context, tx *gorm.DB, userID uuid.UUID, points int, redemptionID *uuid.UUID) (int, error) {
	if points <= 0 {
		return 0, fmt.Errorf("refund points must be positive")
	}
	repo := s.repo.WithTx(tx)

	if err := repo.CreditBalance(ctx, userID, points); err != nil {
		return 0, err
	}
	newBalance, err := repo.GetBalance(ctx, userID)
	if err != nil {
		return 0, err
	}

	entry := &models.PointsEntry{
		UserID:          userID,
		Type:            enums.PointsEntryTypeAdjust,
		Points:          points,
		PreviousBalance: newBalance - points,
		NewBalance:      newBalance,
		RedemptionID:    redemptionID,
		Note:            "redemption cancelled",
	}
	if err := repo.CreateEntry(ctx, entry); err != nil {
		return 0, err
	}
	return newBalance, nil
}

// CreditOnDelivery grants the order's earned points at most once. Repeated
// delivery webhooks or admin clicks hit either the pre-check or the unique
// (order, type) index and turn into a no-op.
func (s *service) CreditOnDelivery(ctx context.Context, tx *gorm.DB, userID, orderID uuid.UUID, points int) error {
	if points < 0 {
		return fmt.Errorf("credit points must not be negative")
	}
	if orderID == uuid.Nil {
		return fmt.Errorf("order id is required")
	}
	if points == 0 {
		return nil
	}
	repo := s.repo.WithTx(tx)

	credited, err := repo.HasOrderEntry(ctx, orderID, enums.PointsEntryTypeEarn)
	if err != nil {
		return err
	}
	if credited {
		return nil
	}

	if err := repo.CreditBalance(ctx, userID, points); err != nil {
		return err
	}
	newBalance, err := repo.GetBalance(ctx, userID)
	if err != nil {
		return err
	}

	entry := &models.PointsEntry{
		UserID:          userID,
		Type:            enums.PointsEntryTypeEarn,
		Points:          points,
		PreviousBalance: newBalance - points,
		NewBalance:      newBalance,
		OrderID:         &orderID,
	}
	if err := repo.CreateEntry(ctx, entry); err != nil {
		if db.IsUniqueViolation(err, "idx_points_entries_order_type") {
			// Lost the race against another credit for the same order.
			return nil
		}
		return err
	}
	return nil
}

// Adjust applies a staff correction, positive or negative. Negative
// adjustments use the same guarded debit as redemptions so the balance
// never goes below zero.
func (s *service) Adjust(ctx context.Context, userID uuid.UUID, points int, note string) (int, error) {
	if points == 0 {
		return 0, fmt.Errorf("adjustment must not be zero")
	}

	var newBalance int
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if points < 0 {
			taken, err := repo.DebitBalance(ctx, userID, -points)
			if err != nil {
				return err
			}
			if !taken {
				balance, balErr := repo.GetBalance(ctx, userID)
				if balErr != nil {
					return balErr
				}
				return &InsufficientPointsError{Required: -points, Available: balance}
			}
		} else {
			if err := repo.CreditBalance(ctx, userID, points); err != nil {
				return err
			}
		}

		balance, err := repo.GetBalance(ctx, userID)
		if err != nil {
			return err
		}
		newBalance = balance

		entry := &models.PointsEntry{
			UserID:          userID,
			Type:            enums.PointsEntryTypeAdjust,
			Points:          points,
			PreviousBalance: balance - points,
			NewBalance:      balance,
			Note:            note,
		}
		return repo.CreateEntry(ctx, entry)
	})
	if err != nil {
		return 0, err
	}
	return newBalance, nil
}

func (s *service) Balance(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.GetBalance(ctx, userID)
}

// History returns the ledger newest-first with cursor pagination.
func (s *service) History(ctx context.Context, userID uuid.UUID, params pagination.Params) (*HistoryPage, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}

	limit := pagination.NormalizeLimit(params.Limit)
	entries, err := s.repo.ListEntries(ctx, userID, pagination.LimitWithBuffer(params.Limit), cursor)
	if err != nil {
		return nil, err
	}

	page := &HistoryPage{Entries: entries}
	if len(entries) > limit {
		page.Entries = entries[:limit]
		last := page.Entries[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	return page, nil
}
