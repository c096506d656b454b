package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/crumbhaus/bakehouse-backend/internal/inventory"
	"github.com/crumbhaus/bakehouse-backend/internal/loyalty"
	"github.com/crumbhaus/bakehouse-backend/internal/notifications"
	"github.com/crumbhaus/bakehouse-backend/internal/rewards"
	"github.com/crumbhaus/bakehouse-backend/pkg/db"
	"github.com/crumbhaus/bakehouse-backend/pkg/db/models"
	"github.com/crumbhaus/bakehouse-backend/pkg/enums"
	pkgerrors "github.com/crumbhaus/bakehouse-backend/pkg/errors"
	"github.com/crumbhaus/bakehouse-backend/pkg/logger"
	"github.com/crumbhaus/bakehouse-backend/pkg/metrics"
	"github.com/crumbhaus/bakehouse-backend/pkg/pagination"
)

// Actor identifies who is asking for a transition. Customers may only
// cancel their own orders; staff drive the full lifecycle.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

// Page is one page of a user's orders.
type Page struct {
	Orders     []models.Order
	NextCursor string
}

// Service drives the order lifecycle after checkout.
type Service interface {
	Get(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, userID uuid.UUID, params pagination.Params) (*Page, error)
	Transition(ctx context.Context, actor Actor, orderID uuid.UUID, target enums.OrderStatus) (*models.Order, error)
	ConfirmTransfer(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ConfirmGatewayPayment(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

// Config wires the order service dependencies.
type Config struct {
	Client     *db.Client
	Repo       Repository
	Loyalty    loyalty.Service
	Rewards    rewards.Service
	Inventory  inventory.Service
	Dispatcher notifications.Dispatcher
	Metrics    *metrics.OrderMetrics
	Logger     *logger.Logger
}

type service struct {
	client     *db.Client
	repo       Repository
	loyalty    loyalty.Service
	rewards    rewards.Service
	inventory  inventory.Service
	dispatcher notifications.Dispatcher
	metrics    *metrics.OrderMetrics
	logger     *logger.Logger
	now        func() time.Time
}

// NewService validates the configuration and returns an order service.
func NewService(cfg Config) (Service, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("orders db client required")
	}
	if cfg.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if cfg.Loyalty == nil {
		return nil, fmt.Errorf("orders loyalty service required")
	}
	if cfg.Rewards == nil {
		return nil, fmt.Errorf("orders rewards service required")
	}
	if cfg.Inventory == nil {
		return nil, fmt.Errorf("orders inventory service required")
	}
	if cfg.Dispatcher == nil {
		cfg.Dispatcher = notifications.NopDispatcher{}
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("orders logger required")
	}
	return &service{
		client:     cfg.Client,
		repo:       cfg.Repo,
		loyalty:    cfg.Loyalty,
		rewards:    cfg.Rewards,
		inventory:  cfg.Inventory,
		dispatcher: cfg.Dispatcher,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
		now:        time.Now,
	}, nil
}

func (s *service) Get(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if actor.Role != enums.UserRoleStaff && order.UserID != actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another customer")
	}
	return order, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID, params pagination.Params) (*Page, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	orders, err := s.repo.ListByUser(ctx, userID, pagination.LimitWithBuffer(params.Limit), cursor)
	if err != nil {
		return nil, err
	}

	page := &Page{Orders: orders}
	if len(orders) > limit {
		page.Orders = orders[:limit]
		last := page.Orders[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	return page, nil
}

// Transition moves an order to the requested status, applying the delivery
// credit or the cancellation cleanup inside the same transaction.
func (s *service) Transition(ctx context.Context, actor Actor, orderID uuid.UUID, target enums.OrderStatus) (*models.Order, error) {
	if !target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown status %q", target))
	}

	var updated *models.Order
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.GetByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}

		if actor.Role != enums.UserRoleStaff {
			if order.UserID != actor.UserID {
				return pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another customer")
			}
			if target != enums.OrderStatusCancelled {
				return pkgerrors.New(pkgerrors.CodeForbidden, "customers may only cancel their orders")
			}
		}

		if err := checkTransition(order, target); err != nil {
			return err
		}

		stamp := s.now()
		if err := repo.UpdateStatus(ctx, order.ID, target, &stamp); err != nil {
			return err
		}

		switch target {
		case enums.OrderStatusDelivered:
			if err := s.loyalty.CreditOnDelivery(ctx, tx, order.UserID, order.ID, order.PointsEarned); err != nil {
				return err
			}
			if err := s.rewards.MarkDelivered(ctx, tx, order.ID); err != nil {
				return err
			}
		case enums.OrderStatusCancelled:
			if err := s.inventory.Release(ctx, tx, releaseReservations(order)); err != nil {
				return err
			}
			if err := s.rewards.CancelForOrder(ctx, tx, order.ID); err != nil {
				return err
			}
		}

		order.Status = target
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncTransition(updated.Status.String())
	s.notify(ctx, notifications.EventOrderStatusMoved, updated)
	return updated, nil
}

// ConfirmTransfer flips the bank-transfer gate. It does not move status;
// staff still transition the order explicitly afterwards.
func (s *service) ConfirmTransfer(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var updated *models.Order
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.GetByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.PaymentMethod != enums.PaymentMethodBankTransfer {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not paid by bank transfer")
		}
		if order.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is in a terminal state")
		}
		if err := repo.SetTransferConfirmed(ctx, order.ID); err != nil {
			return err
		}
		order.TransferConfirmed = true
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ConfirmGatewayPayment is the webhook-driven move out of pending_payment.
// A repeat delivery of the same confirmation is a no-op.
func (s *service) ConfirmGatewayPayment(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var updated *models.Order
	var already bool
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.GetByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.PaymentMethod != enums.PaymentMethodCardGateway {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not paid through the gateway")
		}
		if order.Status != enums.OrderStatusPendingPayment {
			already = true
			updated = order
			return nil
		}
		if err := repo.UpdateStatus(ctx, order.ID, enums.OrderStatusPreparing, nil); err != nil {
			return err
		}
		order.Status = enums.OrderStatusPreparing
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !already {
		s.metrics.IncTransition(updated.Status.String())
		s.notify(ctx, notifications.EventOrderStatusMoved, updated)
	}
	return updated, nil
}

// releaseReservations rebuilds the stock takes recorded on the order's
// lines. Reward lines never held catalog stock.
func releaseReservations(order *models.Order) []inventory.Reservation {
	var reservations []inventory.Reservation
	for _, item := range order.Items {
		switch item.Kind {
		case enums.LineItemKindProduct:
			if item.ProductID != nil {
				reservations = append(reservations, inventory.Reservation{
					ProductID: *item.ProductID,
					Name:      item.Name,
					Qty:       item.Qty,
				})
			}
		case enums.LineItemKindCustomBox:
			for _, box := range item.BoxItems {
				reservations = append(reservations, inventory.Reservation{
					ProductID: box.ProductID,
					Name:      box.Name,
					Qty:       box.Qty,
				})
			}
		}
	}
	return reservations
}

func (s *service) notify(ctx context.Context, kind string, order *models.Order) {
	event := notifications.Event{
		Kind:       kind,
		OrderID:    order.ID,
		UserID:     order.UserID,
		Status:     order.Status,
		TotalCents: order.TotalCents,
		OccurredAt: s.now(),
	}
	go s.dispatcher.Dispatch(context.WithoutCancel(ctx), event)
}
