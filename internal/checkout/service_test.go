package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/crumbhaus/bakehouse-backend/internal/coupons"
	"github.com/crumbhaus/bakehouse-backend/internal/inventory"
	"github.com/crumbhaus/bakehouse-backend/internal/loyalty"
	"github.com/crumbhaus/bakehouse-backend/internal/notifications"
	"github.com/crumbhaus/bakehouse-backend/internal/orders"
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

type fakeGateway struct {
	fail    bool
	lastReq payments.IntentRequest
}

func (f *fakeGateway) CreateIntent(_ context.Context, req payments.IntentRequest) (*payments.Intent, error) {
	f.lastReq = req
	if f.fail {
		return nil, &payments.Error{StatusCode: 503, Message: "gateway unavailable", Transient: true}
	}
	return &payments.Intent{ID: "int_1", RedirectURL: "https://pay.example/" + req.OrderID, Status: "requires_action"}, nil
}

func (f *fakeGateway) VerifySignature([]byte, string) bool { return true }

type checkoutHarness struct {
	db      *gorm.DB
	svc     Service
	rewards rewards.Service
	gateway *fakeGateway
}

func newCheckoutHarness(t *testing.T) *checkoutHarness {
	t.Helper()

	dsn := "file:checkout_" + uuid.NewString() + "?mode=memory&cache=shared"
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := gdb.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.DeliveryZone{},
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
		t.Fatalf("loyalty: %v", err)
	}
	couponSvc, err := coupons.NewService(coupons.NewRepository(gdb))
	if err != nil {
		t.Fatalf("coupons: %v", err)
	}
	rewardSvc, err := rewards.NewService(client, rewards.NewRepository(gdb), loyaltySvc, couponSvc)
	if err != nil {
		t.Fatalf("rewards: %v", err)
	}
	inventorySvc, err := inventory.NewService(inventory.NewRepository(gdb))
	if err != nil {
		t.Fatalf("inventory: %v", err)
	}

	gateway := &fakeGateway{}
	svc, err := NewService(Config{
		Client:     client,
		Orders:     orders.NewRepository(gdb),
		Products:   products.NewRepository(gdb),
		Zones:      NewZoneRepository(gdb),
		Inventory:  inventorySvc,
		Coupons:    couponSvc,
		Rewards:    rewardSvc,
		Gateway:    gateway,
		Dispatcher: notifications.NopDispatcher{},
		Metrics:    metrics.NewOrderMetrics(nil),
		Logger:     logger.New(logger.Options{ServiceName: "checkout-test"}),
	})
	if err != nil {
		t.Fatalf("checkout service: %v", err)
	}
	return &checkoutHarness{db: gdb, svc: svc, rewards: rewardSvc, gateway: gateway}
}

func (h *checkoutHarness) seedUser(t *testing.T, balance int) *models.User {
	t.Helper()
	user := &models.User{
		ID:            uuid.New(),
		Email:         uuid.NewString() + "@example.com",
		Name:          "Checkout Customer",
		PasswordHash:  "x",
		Role:          enums.UserRoleCustomer,
		PointsBalance: balance,
	}
	if err := h.db.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func (h *checkoutHarness) seedProduct(t *testing.T, name string, priceCents, stock, boxSize int) *models.Product {
	t.Helper()
	product := &models.Product{
		ID:         uuid.New(),
		Name:       name,
		PriceCents: priceCents,
		Stock:      stock,
		BoxSize:    boxSize,
		Active:     true,
	}
	if err := h.db.Create(product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}

func (h *checkoutHarness) seedCoupon(t *testing.T, code string, percent int) *models.Coupon {
	t.Helper()
	coupon := &models.Coupon{
		ID:      uuid.New(),
		Code:    code,
		Kind:    enums.CouponKindPercentage,
		Percent: percent,
		Active:  true,
	}
	if err := h.db.Create(coupon).Error; err != nil {
		t.Fatalf("seed coupon: %v", err)
	}
	return coupon
}

func (h *checkoutHarness) seedZone(t *testing.T, shippingCents int) *models.DeliveryZone {
	t.Helper()
	zone := &models.DeliveryZone{ID: uuid.New(), Name: "Downtown", ShippingCents: shippingCents, Active: true}
	if err := h.db.Create(zone).Error; err != nil {
		t.Fatalf("seed zone: %v", err)
	}
	return zone
}

func TestExecuteCashPickupWithCoupon(t *testing.T) {
	t.Parallel()

	h := newCheckoutHarness(t)
	ctx := context.Background()
	user := h.seedUser(t, 0)
	product := h.seedProduct(t, "Chocolate Chip", 250, 10, 0)
	h.seedCoupon(t, "WELCOME10", 10)

	result, err := h.svc.Execute(ctx, user.ID, Input{
		Lines:          []CartLine{{ProductID: product.ID, Qty: 4}},
		CouponCode:     "WELCOME10",
		DeliveryMethod: enums.DeliveryMethodPickup,
		PaymentMethod:  enums.PaymentMethodCash,
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	order := result.Order
	if order.SubtotalCents != 1000 || order.CouponDiscountCents != 100 {
		t.Fatalf("subtotal/discount = %d/%d, want 1000/100", order.SubtotalCents, order.CouponDiscountCents)
	}
	if order.ShippingCents != 0 || order.SurchargeCents != 0 {
		t.Fatalf("shipping/surcharge = %d/%d, want 0/0", order.ShippingCents, order.SurchargeCents)
	}
	if order.TotalCents != 900 || order.PointsEarned != 900 {
		t.Fatalf("total/points = %d/%d, want 900/900", order.TotalCents, order.PointsEarned)
	}
	if order.Status != enums.OrderStatusPreparing {
		t.Fatalf("status = %s, want preparing", order.Status)
	}

	// Stock was taken and the coupon use burned inside the transaction.
	var reloaded models.Product
	if err := h.db.First(&reloaded, "id = ?", product.ID).Error; err != nil {
		t.Fatalf("reload product: %v", err)
	}
	if reloaded.Stock != 6 {
		t.Fatalf("stock = %d, want 6", reloaded.Stock)
	}
	var usages int64
	if err := h.db.Model(&models.CouponUsage{}).Where("user_id = ?", user.ID).Count(&usages).Error; err != nil {
		t.Fatalf("count usages: %v", err)
	}
	if usages != 1 {
		t.Fatalf("usage rows = %d, want 1", usages)
	}
}

func TestExecuteCardDeliverySurcharge(t *testing.T) {
	t.Parallel()

	h := newCheckoutHarness(t)
	ctx := context.Background()
	user := h.seedUser(t, 0)
	product := h.seedProduct(t, "Party Tray", 2000, 5, 0)
	zone := h.seedZone(t, 150)

	result, err := h.svc.Execute(ctx, user.ID, Input{
		Lines:          []CartLine{{ProductID: product.ID, Qty: 1}},
		DeliveryMethod: enums.DeliveryMethodDelivery,
		PaymentMethod:  enums.PaymentMethodCardGateway,
		DeliveryZoneID: &zone.ID,
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	order := result.Order
	if order.SurchargeCents != 215 {
		t.Fatalf("surcharge = %d, want 215", order.SurchargeCents)
	}
	if order.TotalCents != 2365 || order.PointsEarned != 2150 {
		t.Fatalf("total/points = %d/%d, want 2365/2150", order.TotalCents, order.PointsEarned)
	}
	if order.Status != enums.OrderStatusPendingPayment {
		t.Fatalf("status = %s, want pending_payment", order.Status)
	}
	if result.RedirectURL == "" {
		t.Fatal("expected gateway redirect url")
	}
	if h.gateway.lastReq.AmountCents != 2365 {
		t.Fatalf("intent amount = %d, want 2365", h.gateway.lastReq.AmountCents)
	}
}

func TestExecuteGatewayFailureLeavesOrderPending(t *testing.T) {
	t.Parallel()

	h := newCheckoutHarness(t)
	h.gateway.fail = true
	ctx := context.Background()
	user := h.seedUser(t, 0)
	product := h.seedProduct(t, "Brownie", 400, 5, 0)

	result, err := h.svc.Execute(ctx, user.ID, Input{
		Lines:          []CartLine{{ProductID: product.ID, Qty: 1}},
		DeliveryMethod: enums.DeliveryMethodPickup,
		PaymentMethod:  enums.PaymentMethodCardGateway,
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Order.Status != enums.OrderStatusPendingPayment {
		t.Fatalf("status = %s, want pending_payment", result.Order.Status)
	}
	if result.RedirectURL != "" {
		t.Fatal("expected no redirect url on gateway failure")
	}
}

func TestExecuteRejectsOversell(t *testing.T) {
	t.Parallel()

	h := newCheckoutHarness(t)
	ctx := context.Background()
	user := h.seedUser(t, 0)
	product := h.seedProduct(t, "Limited Drop", 800, 1, 0)
	h.seedCoupon(t, "SAVE5", 5)

	_, err := h.svc.Execute(ctx, user.ID, Input{
		Lines:          []CartLine{{ProductID: product.ID, Qty: 2}},
		CouponCode:     "SAVE5",
		DeliveryMethod: enums.DeliveryMethodPickup,
		PaymentMethod:  enums.PaymentMethodCash,
	})
	var stockErr *inventory.StockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected StockError, got %v", err)
	}

	// The rejection left no partial writes behind.
	var orderCount, usageCount int64
	h.db.Model(&models.Order{}).Count(&orderCount)
	h.db.Model(&models.CouponUsage{}).Count(&usageCount)
	if orderCount != 0 || usageCount != 0 {
		t.Fatalf("orders/usages = %d/%d, want 0/0", orderCount, usageCount)
	}
	var reloaded models.Product
	if err := h.db.First(&reloaded, "id = ?", product.ID).Error; err != nil {
		t.Fatalf("reload product: %v", err)
	}
	if reloaded.Stock != 1 {
		t.Fatalf("stock = %d, want untouched 1", reloaded.Stock)
	}
}

func TestExecuteCustomBox(t *testing.T) {
	t.Parallel()

	h := newCheckoutHarness(t)
	ctx := context.Background()
	user := h.seedUser(t, 0)
	box := h.seedProduct(t, "Box of Six", 2400, -1, 6)
	chocolate := h.seedProduct(t, "Chocolate Chip", 0, 10, 0)
	oatmeal := h.seedProduct(t, "Oatmeal", 0, 10, 0)

	result, err := h.svc.Execute(ctx, user.ID, Input{
		Lines: []CartLine{{
			ProductID: box.ID,
			Qty:       1,
			BoxPicks: []BoxPick{
				{ProductID: chocolate.ID, Qty: 4},
				{ProductID: oatmeal.ID, Qty: 2},
			},
		}},
		DeliveryMethod: enums.DeliveryMethodPickup,
		PaymentMethod:  enums.PaymentMethodCash,
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Order.SubtotalCents != 2400 {
		t.Fatalf("subtotal = %d, want 2400", result.Order.SubtotalCents)
	}

	var selections int64
	h.db.Model(&models.BoxSelection{}).Count(&selections)
	if selections != 2 {
		t.Fatalf("box selections = %d, want 2", selections)
	}
	var reloaded models.Product
	if err := h.db.First(&reloaded, "id = ?", chocolate.ID).Error; err != nil {
		t.Fatalf("reload pick: %v", err)
	}
	if reloaded.Stock != 6 {
		t.Fatalf("pick stock = %d, want 6", reloaded.Stock)
	}

	// Wrong cookie count is rejected outright.
	_, err = h.svc.Execute(ctx, user.ID, Input{
		Lines: []CartLine{{
			ProductID: box.ID,
			Qty:       1,
			BoxPicks:  []BoxPick{{ProductID: chocolate.ID, Qty: 5}},
		}},
		DeliveryMethod: enums.DeliveryMethodPickup,
		PaymentMethod:  enums.PaymentMethodCash,
	})
	var sizeErr *inventory.BoxSizeError
	if !errors.As(err, &sizeErr) {
		t.Fatalf("expected BoxSizeError, got %v", err)
	}
}

func TestExecutePointsOrder(t *testing.T) {
	t.Parallel()

	h := newCheckoutHarness(t)
	ctx := context.Background()
	user := h.seedUser(t, 5000)
	cookie := h.seedProduct(t, "Reward Cookie", 500, 10, 0)

	reward := &models.Reward{
		ID:         uuid.New(),
		Name:       "Free Cookie",
		Kind:       enums.RewardKindPlainProduct,
		PointsCost: 2000,
		ProductID:  &cookie.ID,
		Stock:      -1,
		Active:     true,
	}
	if err := h.db.Create(reward).Error; err != nil {
		t.Fatalf("seed reward: %v", err)
	}

	redeemed, err := h.rewards.Redeem(ctx, user.ID, reward.ID)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}

	result, err := h.svc.Execute(ctx, user.ID, Input{
		RedemptionID:   &redeemed.Redemption.ID,
		DeliveryMethod: enums.DeliveryMethodPickup,
		PaymentMethod:  enums.PaymentMethodPoints,
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	order := result.Order
	if order.SubtotalCents != 0 || order.TotalCents != 0 || order.PointsEarned != 0 {
		t.Fatalf("subtotal/total/earned = %d/%d/%d, want all 0", order.SubtotalCents, order.TotalCents, order.PointsEarned)
	}
	if order.PointsSpent != 2000 {
		t.Fatalf("points spent = %d, want 2000", order.PointsSpent)
	}
	if order.RedemptionID == nil || *order.RedemptionID != redeemed.Redemption.ID {
		t.Fatal("redemption not linked to the order")
	}

	var redemption models.RewardRedemption
	if err := h.db.First(&redemption, "id = ?", redeemed.Redemption.ID).Error; err != nil {
		t.Fatalf("reload redemption: %v", err)
	}
	if redemption.Status != enums.RedemptionStatusProcessing {
		t.Fatalf("redemption status = %s, want processing", redemption.Status)
	}
	if redemption.OrderID == nil || *redemption.OrderID != order.ID {
		t.Fatal("redemption missing order link")
	}

	// A redemption attaches to exactly one order.
	_, err = h.svc.Execute(ctx, user.ID, Input{
		RedemptionID:   &redeemed.Redemption.ID,
		DeliveryMethod: enums.DeliveryMethodPickup,
		PaymentMethod:  enums.PaymentMethodPoints,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestExecuteRejectsCouponOnPointsOrder(t *testing.T) {
	t.Parallel()

	h := newCheckoutHarness(t)
	ctx := context.Background()
	user := h.seedUser(t, 5000)
	redemptionID := uuid.New()

	_, err := h.svc.Execute(ctx, user.ID, Input{
		RedemptionID:   &redemptionID,
		CouponCode:     "WELCOME10",
		DeliveryMethod: enums.DeliveryMethodPickup,
		PaymentMethod:  enums.PaymentMethodPoints,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestExecuteRejectsExpiredCouponWithoutWrites(t *testing.T) {
	t.Parallel()

	h := newCheckoutHarness(t)
	ctx := context.Background()
	user := h.seedUser(t, 0)
	product := h.seedProduct(t, "Snickerdoodle", 300, 5, 0)

	expired := time.Now().Add(-24 * time.Hour)
	coupon := &models.Coupon{
		ID:        uuid.New(),
		Code:      "OLDNEWS",
		Kind:      enums.CouponKindPercentage,
		Percent:   15,
		ExpiresAt: &expired,
		Active:    true,
	}
	if err := h.db.Create(coupon).Error; err != nil {
		t.Fatalf("seed coupon: %v", err)
	}

	_, err := h.svc.Execute(ctx, user.ID, Input{
		Lines:          []CartLine{{ProductID: product.ID, Qty: 1}},
		CouponCode:     "OLDNEWS",
		DeliveryMethod: enums.DeliveryMethodPickup,
		PaymentMethod:  enums.PaymentMethodCash,
	})
	var couponErr *coupons.CouponError
	if !errors.As(err, &couponErr) || couponErr.Reason != coupons.ReasonExpired {
		t.Fatalf("expected expired CouponError, got %v", err)
	}

	// The reserved stock rolled back with the transaction.
	var reloaded models.Product
	if err := h.db.First(&reloaded, "id = ?", product.ID).Error; err != nil {
		t.Fatalf("reload product: %v", err)
	}
	if reloaded.Stock != 5 {
		t.Fatalf("stock = %d, want 5", reloaded.Stock)
	}
}
