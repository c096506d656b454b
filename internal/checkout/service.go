package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/crumbhaus/bakehouse-backend/internal/coupons"
	"github.com/crumbhaus/bakehouse-backend/internal/inventory"
	"github.com/crumbhaus/bakehouse-backend/internal/notifications"
	"github.com/crumbhaus/bakehouse-backend/internal/orders"
	"github.com/crumbhaus/bakehouse-backend/internal/pricing"
	"github.com/crumbhaus/bakehouse-backend/internal/products"
	"github.com/crumbhaus/bakehouse-backend/internal/rewards"
	"github.com/crumbhaus/bakehouse-backend/pkg/db"
	"github.com/crumbhaus/bakehouse-backend/pkg/db/models"
	"github.com/crumbhaus/bakehouse-backend/pkg/enums"
	pkgerrors "github.com/crumbhaus/bakehouse-backend/pkg/errors"
	"github.com/crumbhaus/bakehouse-backend/pkg/logger"
	"github.com/crumbhaus/bakehouse-backend/pkg/metrics"
	"github.com/crumbhaus/bakehouse-backend/pkg/payments"
)

// BoxPick is one cookie choice for a build-a-box line.
type BoxPick struct {
	ProductID uuid.UUID
	Qty       int
}

// CartLine references a catalog product. Products with a box size carry
// the customer's cookie picks.
type CartLine struct {
	ProductID uuid.UUID
	Qty       int
	BoxPicks  []BoxPick
}

// Input is one checkout request. A pending reward redemption may be
// attached; box-kind rewards additionally carry the cookie picks.
type Input struct {
	Lines          []CartLine
	CouponCode     string
	RedemptionID   *uuid.UUID
	RewardBoxPicks []BoxPick
	DeliveryMethod enums.DeliveryMethod
	PaymentMethod  enums.PaymentMethod
	DeliveryZoneID *uuid.UUID
}

// Result carries the created order plus the gateway redirect for card
// payments.
type Result struct {
	Order       *models.Order
	RedirectURL string
}

// Service is the checkout orchestrator: one transaction per request, no
// partial writes on any validation failure.
type Service interface {
	Execute(ctx context.Context, userID uuid.UUID, input Input) (*Result, error)
}

// Config wires the orchestrator's collaborators.
type Config struct {
	Client     *db.Client
	Orders     orders.Repository
	Products   products.Repository
	Zones      ZoneRepository
	Inventory  inventory.Service
	Coupons    coupons.Service
	Rewards    rewards.Service
	Gateway    payments.Gateway
	Dispatcher notifications.Dispatcher
	Metrics    *metrics.OrderMetrics
	Logger     *logger.Logger
}

type service struct {
	client     *db.Client
	orders     orders.Repository
	products   products.Repository
	zones      ZoneRepository
	inventory  inventory.Service
	coupons    coupons.Service
	rewards    rewards.Service
	gateway    payments.Gateway
	dispatcher notifications.Dispatcher
	metrics    *metrics.OrderMetrics
	logger     *logger.Logger
}

func NewService(cfg Config) (Service, error) {
	switch {
	case cfg.Client == nil:
		return nil, errors.New("checkout: db client is required")
	case cfg.Orders == nil:
		return nil, errors.New("checkout: orders repository is required")
	case cfg.Products == nil:
		return nil, errors.New("checkout: products repository is required")
	case cfg.Zones == nil:
		return nil, errors.New("checkout: zone repository is required")
	case cfg.Inventory == nil:
		return nil, errors.New("checkout: inventory service is required")
	case cfg.Coupons == nil:
		return nil, errors.New("checkout: coupon service is required")
	case cfg.Rewards == nil:
		return nil, errors.New("checkout: rewards service is required")
	case cfg.Logger == nil:
		return nil, errors.New("checkout: logger is required")
	}
	if cfg.Dispatcher == nil {
		cfg.Dispatcher = notifications.NopDispatcher{}
	}
	return &service{
		client:     cfg.Client,
		orders:     cfg.Orders,
		products:   cfg.Products,
		zones:      cfg.Zones,
		inventory:  cfg.Inventory,
		coupons:    cfg.Coupons,
		rewards:    cfg.Rewards,
		gateway:    cfg.Gateway,
		dispatcher: cfg.Dispatcher,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
	}, nil
}

func (s *service) Execute(ctx context.Context, userID uuid.UUID, input Input) (*Result, error) {
	order, err := s.execute(ctx, userID, input)
	if err != nil {
		s.metrics.IncCheckout(input.PaymentMethod.String(), "rejected")
		return nil, err
	}
	s.metrics.IncCheckout(input.PaymentMethod.String(), "accepted")

	result := &Result{Order: order}

	s.notify(ctx, notifications.Event{
		Kind:       notifications.EventOrderCreated,
		OrderID:    order.ID,
		UserID:     order.UserID,
		Status:     order.Status,
		TotalCents: order.TotalCents,
		OccurredAt: time.Now().UTC(),
	})

	// Gateway failures leave the order in pending_payment for manual
	// follow-up; the order itself is already committed.
	if order.PaymentMethod == enums.PaymentMethodCardGateway && s.gateway != nil {
		intent, err := s.gateway.CreateIntent(ctx, payments.IntentRequest{
			OrderID:     order.ID.String(),
			AmountCents: order.TotalCents,
			Currency:    "usd",
			Description: "bakehouse order " + order.ID.String(),
		})
		if err != nil {
			logCtx := s.logger.WithOrderID(ctx, order.ID.String())
			s.logger.Warn(s.logger.WithField(logCtx, "error", err.Error()), "payment intent creation failed")
			return result, nil
		}
		if err := s.orders.SetGatewayRedirect(ctx, order.ID, intent.RedirectURL); err != nil {
			s.logger.Error(s.logger.WithOrderID(ctx, order.ID.String()), "storing gateway redirect failed", err)
		}
		order.GatewayRedirectURL = &intent.RedirectURL
		result.RedirectURL = intent.RedirectURL
	}

	return result, nil
}

func (s *service) execute(ctx context.Context, userID uuid.UUID, input Input) (*models.Order, error) {
	if err := s.validateInput(userID, input); err != nil {
		return nil, err
	}

	var created *models.Order
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		productRepo := s.products.WithTx(tx)

		redemption, reward, err := s.resolveRedemption(ctx, tx, userID, input)
		if err != nil {
			return err
		}

		catalog, err := productRepo.GetByIDs(ctx, collectProductIDs(input))
		if err != nil {
			return err
		}

		items, reservations, err := s.buildLines(input, reward, catalog)
		if err != nil {
			return err
		}

		// The conditional decrement inside the transaction is the
		// authoritative admission check.
		if err := s.inventory.Reserve(ctx, tx, reservations); err != nil {
			return err
		}

		subtotal := 0
		if input.PaymentMethod != enums.PaymentMethodPoints {
			for _, item := range items {
				subtotal += item.TotalCents
			}
		}

		var validation *coupons.Validation
		if input.CouponCode != "" {
			validation, err = s.coupons.WithTx(tx).Validate(ctx, input.CouponCode, userID, subtotal)
			if err != nil {
				return err
			}
		}

		shippingCents := 0
		if input.DeliveryMethod == enums.DeliveryMethodDelivery {
			zone, err := s.zones.WithTx(tx).GetActive(ctx, *input.DeliveryZoneID)
			if err != nil {
				if errors.Is(err, ErrZoneNotFound) {
					return pkgerrors.New(pkgerrors.CodeValidation, "delivery zone not found")
				}
				return err
			}
			shippingCents = zone.ShippingCents
		}

		quote := pricing.ComputeQuote(pricing.Input{
			Lines:              pricingLines(items),
			Coupon:             couponTerms(validation),
			DeliveryMethod:     input.DeliveryMethod,
			PaymentMethod:      input.PaymentMethod,
			ZoneShippingCents:  shippingCents,
			IsPointsRedemption: input.PaymentMethod == enums.PaymentMethodPoints,
		})

		order := &models.Order{
			ID:                  uuid.New(),
			UserID:              userID,
			Status:              orders.InitialStatus(input.PaymentMethod),
			PaymentMethod:       input.PaymentMethod,
			DeliveryMethod:      input.DeliveryMethod,
			DeliveryZoneID:      input.DeliveryZoneID,
			SubtotalCents:       quote.SubtotalCents,
			CouponDiscountCents: quote.CouponDiscountCents,
			ShippingCents:       quote.ShippingCents,
			SurchargeCents:      quote.SurchargeCents,
			TotalCents:          quote.TotalCents,
			PointsEarned:        quote.PointsEarned,
			Items:               items,
		}
		if redemption != nil {
			order.RedemptionID = &redemption.ID
			order.PointsSpent = redemption.PointsSpent
		}
		if validation != nil {
			order.CouponID = &validation.CouponID
			order.CouponCode = &validation.Code
		}

		if err := s.orders.WithTx(tx).Create(ctx, order); err != nil {
			return err
		}

		if redemption != nil {
			if err := s.rewards.MarkProcessing(ctx, tx, redemption.ID, order.ID); err != nil {
				return err
			}
		}

		// The coupon use is burned only now that the order is durable
		// within the same transaction.
		if validation != nil {
			if err := s.coupons.Consume(ctx, tx, validation.CouponID, userID, order.ID); err != nil {
				return err
			}
		}

		created = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *service) validateInput(userID uuid.UUID, input Input) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if !input.PaymentMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown payment method")
	}
	if !input.DeliveryMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown delivery method")
	}
	if input.DeliveryMethod == enums.DeliveryMethodDelivery && input.DeliveryZoneID == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "delivery orders require a delivery zone")
	}

	if input.PaymentMethod == enums.PaymentMethodPoints {
		if input.RedemptionID == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "points orders require a reward redemption")
		}
		if len(input.Lines) > 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "points orders cannot carry paid items")
		}
		if input.CouponCode != "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "coupons cannot be combined with a points order")
		}
		return nil
	}

	if len(input.Lines) == 0 && input.RedemptionID == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	for _, line := range input.Lines {
		if line.Qty <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "line quantity must be positive")
		}
	}
	return nil
}

// resolveRedemption loads and checks the attached redemption, if any.
func (s *service) resolveRedemption(ctx context.Context, tx *gorm.DB, userID uuid.UUID, input Input) (*models.RewardRedemption, *models.Reward, error) {
	if input.RedemptionID == nil {
		return nil, nil, nil
	}

	redemption, err := s.rewards.GetRedemption(ctx, *input.RedemptionID)
	if err != nil {
		if errors.Is(err, rewards.ErrNotFound) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "reward redemption not found")
		}
		return nil, nil, err
	}
	if redemption.UserID != userID {
		return nil, nil, pkgerrors.New(pkgerrors.CodeForbidden, "reward redemption belongs to another account")
	}
	if redemption.Status != enums.RedemptionStatusPending {
		return nil, nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("reward redemption is %s and cannot be attached", redemption.Status))
	}

	reward, err := s.rewards.GetReward(ctx, tx, redemption.RewardID)
	if err != nil {
		return nil, nil, err
	}
	if reward.Kind == enums.RewardKindCustomizableBox && len(input.RewardBoxPicks) == 0 {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "box rewards require cookie picks")
	}
	return redemption, reward, nil
}

// buildLines snapshots order line items and derives the stock reservations
// backing them. Reward stock was already taken at redemption time, so only
// catalog products and box picks reserve here.
func (s *service) buildLines(input Input, reward *models.Reward, catalog map[uuid.UUID]models.Product) ([]models.OrderLineItem, []inventory.Reservation, error) {
	var (
		items        []models.OrderLineItem
		reservations []inventory.Reservation
	)

	for _, line := range input.Lines {
		product, ok := catalog[line.ProductID]
		if !ok || !product.Active {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "product is not available")
		}

		if product.BoxSize > 0 {
			picks, boxReservations, err := s.admitBox(product.BoxSize, line.BoxPicks, catalog, line.Qty)
			if err != nil {
				return nil, nil, err
			}
			items = append(items, models.OrderLineItem{
				ID:             uuid.New(),
				Kind:           enums.LineItemKindCustomBox,
				ProductID:      &product.ID,
				Name:           product.Name,
				UnitPriceCents: product.PriceCents,
				Qty:            line.Qty,
				TotalCents:     product.PriceCents * line.Qty,
				BoxItems:       picks,
			})
			reservations = append(reservations, boxReservations...)
			continue
		}

		items = append(items, models.OrderLineItem{
			ID:             uuid.New(),
			Kind:           enums.LineItemKindProduct,
			ProductID:      &product.ID,
			Name:           product.Name,
			UnitPriceCents: product.PriceCents,
			Qty:            line.Qty,
			TotalCents:     product.PriceCents * line.Qty,
		})
		reservations = append(reservations, inventory.Reservation{
			ProductID: product.ID,
			Name:      product.Name,
			Qty:       line.Qty,
			Unlimited: product.HasUnlimitedStock(),
		})
	}

	if reward != nil {
		item := models.OrderLineItem{
			ID:             uuid.New(),
			Kind:           enums.LineItemKindReward,
			RewardID:       &reward.ID,
			Name:           reward.Name,
			UnitPriceCents: 0,
			Qty:            1,
			TotalCents:     0,
		}
		if reward.Kind == enums.RewardKindCustomizableBox {
			picks, boxReservations, err := s.admitBox(reward.BoxSize, input.RewardBoxPicks, catalog, 1)
			if err != nil {
				return nil, nil, err
			}
			item.BoxItems = picks
			reservations = append(reservations, boxReservations...)
		}
		items = append(items, item)
	}

	return items, reservations, nil
}

// admitBox validates the picks against the box size and turns them into
// snapshotted selections plus their stock reservations.
func (s *service) admitBox(boxSize int, picks []BoxPick, catalog map[uuid.UUID]models.Product, boxQty int) ([]models.BoxSelection, []inventory.Reservation, error) {
	choices := make([]inventory.BoxChoice, 0, len(picks))
	for _, pick := range picks {
		choices = append(choices, inventory.BoxChoice{ProductID: pick.ProductID, Qty: pick.Qty})
	}
	if err := s.inventory.ValidateBox(boxSize, choices, catalog); err != nil {
		return nil, nil, err
	}

	selections := make([]models.BoxSelection, 0, len(picks))
	reservations := make([]inventory.Reservation, 0, len(picks))
	for _, pick := range picks {
		product := catalog[pick.ProductID]
		selections = append(selections, models.BoxSelection{
			ID:        uuid.New(),
			ProductID: product.ID,
			Name:      product.Name,
			Qty:       pick.Qty,
		})
		reservations = append(reservations, inventory.Reservation{
			ProductID: product.ID,
			Name:      product.Name,
			Qty:       pick.Qty * boxQty,
			Unlimited: product.HasUnlimitedStock(),
		})
	}
	return selections, reservations, nil
}

func (s *service) notify(ctx context.Context, event notifications.Event) {
	go s.dispatcher.Dispatch(context.WithoutCancel(ctx), event)
}

func collectProductIDs(input Input) []uuid.UUID {
	var ids []uuid.UUID
	for _, line := range input.Lines {
		ids = append(ids, line.ProductID)
		for _, pick := range line.BoxPicks {
			ids = append(ids, pick.ProductID)
		}
	}
	for _, pick := range input.RewardBoxPicks {
		ids = append(ids, pick.ProductID)
	}
	return ids
}

func pricingLines(items []models.OrderLineItem) []pricing.Line {
	lines := make([]pricing.Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, pricing.Line{UnitPriceCents: item.UnitPriceCents, Qty: item.Qty})
	}
	return lines
}

func couponTerms(validation *coupons.Validation) *pricing.CouponTerms {
	if validation == nil {
		return nil
	}
	return &pricing.CouponTerms{
		Kind:         validation.Kind,
		Percent:      validation.Percent,
		AmountCents:  validation.DiscountCents,
		FreeShipping: validation.FreeShipping,
	}
}
