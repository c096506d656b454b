package orders

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/crumbhaus/bakehouse-backend/internal/coupons"
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
)

func TestInitialStatus(t *testing.T) {
	t.Parallel()

	if got := InitialStatus(enums.PaymentMethodCardGateway); got != enums.OrderStatusPendingPayment {
		t.Fatalf("card gateway initial = %s, want pending_payment", got)
	}
	for _, method := range []enums.PaymentMethod{
		enums.PaymentMethodCash,
		enums.PaymentMethodBankTransfer,
		enums.PaymentMethodPoints,
	} {
		if got := InitialStatus(method); got != enums.OrderStatusPreparing {
			t.Fatalf("%s initial = %s, want preparing", method, got)
		}
	}
}

func TestTransitionPickupLifecycle(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	user := h.seedUser(t, 0)
	order := h.seedOrder(t, user.ID, func(o *models.Order) {
		o.DeliveryMethod = enums.DeliveryMethodPickup
		o.PointsEarned = 900
	})

	staff := Actor{UserID: uuid.New(), Role: enums.UserRoleStaff}

	moved, err := h.svc.Transition(ctx, staff, order.ID, enums.OrderStatusReadyForPickup)
	if err != nil {
		t.Fatalf("to ready_for_pickup: %v", err)
	}
	if moved.Status != enums.OrderStatusReadyForPickup {
		t.Fatalf("status = %s", moved.Status)
	}

	moved, err = h.svc.Transition(ctx, staff, order.ID, enums.OrderStatusDelivered)
	if err != nil {
		t.Fatalf("to delivered: %v", err)
	}
	if moved.Status != enums.OrderStatusDelivered {
		t.Fatalf("status = %s", moved.Status)
	}

	// Delivery credited the earned points.
	var reloaded models.User
	if err := h.db.First(&reloaded, "id = ?", user.ID).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if reloaded.PointsBalance != 900 {
		t.Fatalf("balance = %d, want 900", reloaded.PointsBalance)
	}

	// Terminal states accept nothing further.
	_, err = h.svc.Transition(ctx, staff, order.ID, enums.OrderStatusCancelled)
	var illegal *IllegalTransitionError
	if !errors.As(err, &illegal) {
		t.Fatalf("expected IllegalTransitionError, got %v", err)
	}
}

func TestTransitionRejectsWrongLeg(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	user := h.seedUser(t, 0)
	staff := Actor{UserID: uuid.New(), Role: enums.UserRoleStaff}

	pickup := h.seedOrder(t, user.ID, func(o *models.Order) {
		o.DeliveryMethod = enums.DeliveryMethodPickup
	})

	// A pickup order never goes out for delivery.
	_, err := h.svc.Transition(ctx, staff, pickup.ID, enums.OrderStatusOutForDelivery)
	var illegal *IllegalTransitionError
	if !errors.As(err, &illegal) {
		t.Fatalf("expected IllegalTransitionError, got %v", err)
	}

	// Nor does preparing jump straight to delivered.
	_, err = h.svc.Transition(ctx, staff, pickup.ID, enums.OrderStatusDelivered)
	if !errors.As(err, &illegal) {
		t.Fatalf("expected IllegalTransitionError, got %v", err)
	}
}

func TestTransitionPendingPaymentOnlyCancels(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	user := h.seedUser(t, 0)
	staff := Actor{UserID: uuid.New(), Role: enums.UserRoleStaff}

	order := h.seedOrder(t, user.ID, func(o *models.Order) {
		o.PaymentMethod = enums.PaymentMethodCardGateway
		o.Status = enums.OrderStatusPendingPayment
	})

	_, err := h.svc.Transition(ctx, staff, order.ID, enums.OrderStatusPreparing)
	var illegal *IllegalTransitionError
	if !errors.As(err, &illegal) {
		t.Fatalf("expected IllegalTransitionError, got %v", err)
	}

	if _, err := h.svc.Transition(ctx, staff, order.ID, enums.OrderStatusCancelled); err != nil {
		t.Fatalf("cancel pending order: %v", err)
	}
}

func TestBankTransferDeliveryGate(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	user := h.seedUser(t, 0)
	staff := Actor{UserID: uuid.New(), Role: enums.UserRoleStaff}

	order := h.seedOrder(t, user.ID, func(o *models.Order) {
		o.PaymentMethod = enums.PaymentMethodBankTransfer
		o.DeliveryMethod = enums.DeliveryMethodDelivery
	})

	if _, err := h.svc.Transition(ctx, staff, order.ID, enums.OrderStatusOutForDelivery); err != nil {
		t.Fatalf("to out_for_delivery: %v", err)
	}

	_, err := h.svc.Transition(ctx, staff, order.ID, enums.OrderStatusDelivered)
	var illegal *IllegalTransitionError
	if !errors.As(err, &illegal) {
		t.Fatalf("expected gate rejection, got %v", err)
	}

	if _, err := h.svc.ConfirmTransfer(ctx, order.ID); err != nil {
		t.Fatalf("confirm transfer: %v", err)
	}
	if _, err := h.svc.Transition(ctx, staff, order.ID, enums.OrderStatusDelivered); err != nil {
		t.Fatalf("to delivered after confirmation: %v", err)
	}
}

func TestConfirmTransferRejectsOtherMethods(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	user := h.seedUser(t, 0)
	order := h.seedOrder(t, user.ID, func(o *models.Order) {
		o.PaymentMethod = enums.PaymentMethodCash
	})

	_, err := h.svc.ConfirmTransfer(context.Background(), order.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestCancelReleasesStock(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	user := h.seedUser(t, 0)
	staff := Actor{UserID: uuid.New(), Role: enums.UserRoleStaff}

	product := h.seedProduct(t, "Chocolate Chip", 3)
	boxCookie := h.seedProduct(t, "Oatmeal", 6)

	order := h.seedOrder(t, user.ID, func(o *models.Order) {
		o.Items = []models.OrderLineItem{
			{
				Kind:           enums.LineItemKindProduct,
				ProductID:      &product.ID,
				Name:           product.Name,
				UnitPriceCents: 500,
				Qty:            2,
				TotalCents:     1000,
			},
			{
				Kind:           enums.LineItemKindCustomBox,
				Name:           "Box of Six",
				UnitPriceCents: 2400,
				Qty:            1,
				TotalCents:     2400,
				BoxItems: []models.BoxSelection{
					{ProductID: boxCookie.ID, Name: boxCookie.Name, Qty: 6},
				},
			},
		}
	})

	if _, err := h.svc.Transition(ctx, staff, order.ID, enums.OrderStatusCancelled); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	if got := h.reloadStock(t, product.ID); got != 5 {
		t.Fatalf("product stock = %d, want 5 after release", got)
	}
	if got := h.reloadStock(t, boxCookie.ID); got != 12 {
		t.Fatalf("box cookie stock = %d, want 12 after release", got)
	}
}

func TestCustomerPermissions(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	owner := h.seedUser(t, 0)
	stranger := h.seedUser(t, 0)
	order := h.seedOrder(t, owner.ID, nil)

	ownerActor := Actor{UserID: owner.ID, Role: enums.UserRoleCustomer}
	strangerActor := Actor{UserID: stranger.ID, Role: enums.UserRoleCustomer}

	// Customers cannot drive fulfillment.
	_, err := h.svc.Transition(ctx, ownerActor, order.ID, enums.OrderStatusReadyForPickup)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}

	// Customers cannot touch other customers' orders.
	_, err = h.svc.Transition(ctx, strangerActor, order.ID, enums.OrderStatusCancelled)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := h.svc.Get(ctx, strangerActor, order.ID); err == nil {
		t.Fatal("expected forbidden get")
	}

	// The owner can cancel.
	if _, err := h.svc.Transition(ctx, ownerActor, order.ID, enums.OrderStatusCancelled); err != nil {
		t.Fatalf("owner cancel: %v", err)
	}
}

func TestConfirmGatewayPayment(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	user := h.seedUser(t, 0)
	order := h.seedOrder(t, user.ID, func(o *models.Order) {
		o.PaymentMethod = enums.PaymentMethodCardGateway
		o.Status = enums.OrderStatusPendingPayment
	})

	moved, err := h.svc.ConfirmGatewayPayment(ctx, order.ID)
	if err != nil {
		t.Fatalf("confirm payment: %v", err)
	}
	if moved.Status != enums.OrderStatusPreparing {
		t.Fatalf("status = %s, want preparing", moved.Status)
	}

	// Webhook retries are harmless.
	again, err := h.svc.ConfirmGatewayPayment(ctx, order.ID)
	if err != nil {
		t.Fatalf("repeat confirm: %v", err)
	}
	if again.Status != enums.OrderStatusPreparing {
		t.Fatalf("status after repeat = %s", again.Status)
	}

	// Non-gateway orders reject the hook.
	cash := h.seedOrder(t, user.ID, nil)
	_, err = h.svc.ConfirmGatewayPayment(ctx, cash.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

type harness struct {
	db  *gorm.DB
	svc Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := gdb.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.Order{},
		&models.OrderLineItem{},
		&models.BoxSelection{},
		&models.Coupon{},
		&models.CouponUsage{},
		&models.Reward{},
		&models.RewardRedemption{},
		&models.PointsEntry{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	client := db.NewFromGorm(gdb)
	loyaltySvc, err := loyalty.NewService(client, loyalty.NewRepository(gdb))
	if err != nil {
		t.Fatalf("loyalty service: %v", err)
	}
	couponSvc, err := coupons.NewService(coupons.NewRepository(gdb))
	if err != nil {
		t.Fatalf("coupon service: %v", err)
	}
	rewardSvc, err := rewards.NewService(client, rewards.NewRepository(gdb), loyaltySvc, couponSvc)
	if err != nil {
		t.Fatalf("rewards service: %v", err)
	}
	inventorySvc, err := inventory.NewService(inventory.NewRepository(gdb))
	if err != nil {
		t.Fatalf("inventory service: %v", err)
	}

	svc, err := NewService(Config{
		Client:     client,
		Repo:       NewRepository(gdb),
		Loyalty:    loyaltySvc,
		Rewards:    rewardSvc,
		Inventory:  inventorySvc,
		Dispatcher: notifications.NopDispatcher{},
		Metrics:    metrics.NewOrderMetrics(nil),
		Logger:     logger.New(logger.Options{ServiceName: "orders-test"}),
	})
	if err != nil {
		t.Fatalf("orders service: %v", err)
	}
	return &harness{db: gdb, svc: svc}
}

func (h *harness) seedUser(t *testing.T, balance int) *models.User {
	t.Helper()
	user := &models.User{
		ID:            uuid.New(),
		Email:         uuid.NewString() + "@example.com",
		Name:          "Test Customer",
		PasswordHash:  "x",
		Role:          enums.UserRoleCustomer,
		PointsBalance: balance,
	}
	if err := h.db.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func (h *harness) seedProduct(t *testing.T, name string, stock int) *models.Product {
	t.Helper()
	product := &models.Product{ID: uuid.New(), Name: name, PriceCents: 500, Stock: stock, Active: true}
	if err := h.db.Create(product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}

func (h *harness) seedOrder(t *testing.T, userID uuid.UUID, mutate func(*models.Order)) *models.Order {
	t.Helper()
	order := &models.Order{
		ID:             uuid.New(),
		UserID:         userID,
		Status:         enums.OrderStatusPreparing,
		PaymentMethod:  enums.PaymentMethodCash,
		DeliveryMethod: enums.DeliveryMethodPickup,
		SubtotalCents:  1000,
		TotalCents:     1000,
		PointsEarned:   1000,
	}
	if mutate != nil {
		mutate(order)
	}
	if err := h.db.Create(order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return order
}

func (h *harness) reloadStock(t *testing.T, id uuid.UUID) int {
	t.Helper()
	var product models.Product
	if err := h.db.First(&product, "id = ?", id).Error; err != nil {
		t.Fatalf("reload product: %v", err)
	}
	return product.Stock
}
