package rewards

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
	"github.com/crumbhaus/bakehouse-backend/pkg/db"
	"github.com/crumbhaus/bakehouse-backend/pkg/db/models"
	"github.com/crumbhaus/bakehouse-backend/pkg/enums"
	pkgerrors "github.com/crumbhaus/bakehouse-backend/pkg/errors"
)

func TestRedeemPlainProduct(t *testing.T) {
	t.Parallel()

	gdb := newTestDB(t)
	svc := newTestService(t, gdb)
	ctx := context.Background()

	user := seedUser(t, gdb, 1000)
	reward := seedReward(t, gdb, models.Reward{
		Name:       "Free Brownie",
		Kind:       enums.RewardKindPlainProduct,
		PointsCost: 400,
		Stock:      2,
	})

	result, err := svc.Redeem(ctx, user.ID, reward.ID)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if result.NewBalance != 600 {
		t.Fatalf("balance = %d, want 600", result.NewBalance)
	}
	if result.Redemption.Status != enums.RedemptionStatusPending {
		t.Fatalf("status = %s, want pending", result.Redemption.Status)
	}
	if result.CouponCode != "" {
		t.Fatalf("unexpected coupon code %q", result.CouponCode)
	}

	var reloaded models.Reward
	if err := gdb.First(&reloaded, "id = ?", reward.ID).Error; err != nil {
		t.Fatalf("reload reward: %v", err)
	}
	if reloaded.Stock != 1 {
		t.Fatalf("reward stock = %d, want 1", reloaded.Stock)
	}
}

func TestRedeemPercentageCoupon(t *testing.T) {
	t.Parallel()

	gdb := newTestDB(t)
	svc := newTestService(t, gdb)
	ctx := context.Background()

	user := seedUser(t, gdb, 500)
	reward := seedReward(t, gdb, models.Reward{
		Name:       "Sweet Deal",
		Kind:       enums.RewardKindPercentageCoupon,
		PointsCost: 300,
		Percent:    20,
		Stock:      -1,
	})

	result, err := svc.Redeem(ctx, user.ID, reward.ID)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if result.CouponCode == "" {
		t.Fatal("expected a minted coupon code")
	}
	if result.Redemption.Status != enums.RedemptionStatusDelivered {
		t.Fatalf("status = %s, want delivered for coupon hand-off", result.Redemption.Status)
	}
	if result.Redemption.CouponID == nil {
		t.Fatal("expected coupon id on redemption")
	}

	var coupon models.Coupon
	if err := gdb.First(&coupon, "id = ?", *result.Redemption.CouponID).Error; err != nil {
		t.Fatalf("load minted coupon: %v", err)
	}
	if coupon.Percent != 20 || coupon.UsageLimit != 1 || coupon.ExpiresAt == nil {
		t.Fatalf("unexpected minted coupon: %+v", coupon)
	}
}

func TestRedeemInsufficientPointsLeavesNoTrace(t *testing.T) {
	t.Parallel()

	gdb := newTestDB(t)
	svc := newTestService(t, gdb)
	ctx := context.Background()

	user := seedUser(t, gdb, 100)
	reward := seedReward(t, gdb, models.Reward{
		Name:       "Free Brownie",
		Kind:       enums.RewardKindPlainProduct,
		PointsCost: 400,
		Stock:      2,
	})

	_, err := svc.Redeem(ctx, user.ID, reward.ID)
	var insufficient *loyalty.InsufficientPointsError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientPointsError, got %v", err)
	}

	// The whole transaction rolled back: no redemption, stock restored.
	var redemptions int64
	if err := gdb.Model(&models.RewardRedemption{}).Count(&redemptions).Error; err != nil {
		t.Fatalf("count redemptions: %v", err)
	}
	if redemptions != 0 {
		t.Fatalf("redemptions = %d, want 0", redemptions)
	}
	var reloaded models.Reward
	if err := gdb.First(&reloaded, "id = ?", reward.ID).Error; err != nil {
		t.Fatalf("reload reward: %v", err)
	}
	if reloaded.Stock != 2 {
		t.Fatalf("reward stock = %d, want 2 after rollback", reloaded.Stock)
	}
}

func TestRedeemOutOfStockReward(t *testing.T) {
	t.Parallel()

	gdb := newTestDB(t)
	svc := newTestService(t, gdb)
	ctx := context.Background()

	user := seedUser(t, gdb, 1000)
	reward := seedReward(t, gdb, models.Reward{
		Name:       "Limited Tin",
		Kind:       enums.RewardKindPlainProduct,
		PointsCost: 200,
		Stock:      0,
	})

	_, err := svc.Redeem(ctx, user.ID, reward.ID)
	var stockErr *inventory.StockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected StockError, got %v", err)
	}
}

func TestMarkProcessingRequiresPending(t *testing.T) {
	t.Parallel()

	gdb := newTestDB(t)
	svc := newTestService(t, gdb)
	ctx := context.Background()

	user := seedUser(t, gdb, 500)
	reward := seedReward(t, gdb, models.Reward{
		Name:       "Box of Twelve",
		Kind:       enums.RewardKindCustomizableBox,
		PointsCost: 450,
		BoxSize:    12,
		Stock:      -1,
	})

	result, err := svc.Redeem(ctx, user.ID, reward.ID)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}

	orderID := uuid.New()
	if err := svc.MarkProcessing(ctx, gdb, result.Redemption.ID, orderID); err != nil {
		t.Fatalf("mark processing: %v", err)
	}

	// A redemption cannot be attached to a second order.
	if err := svc.MarkProcessing(ctx, gdb, result.Redemption.ID, uuid.New()); err == nil {
		t.Fatal("expected error re-attaching redemption")
	}

	redemption, err := svc.GetRedemption(ctx, result.Redemption.ID)
	if err != nil {
		t.Fatalf("get redemption: %v", err)
	}
	if redemption.Status != enums.RedemptionStatusProcessing {
		t.Fatalf("status = %s, want processing", redemption.Status)
	}
	if redemption.OrderID == nil || *redemption.OrderID != orderID {
		t.Fatalf("order id = %v, want %s", redemption.OrderID, orderID)
	}
}

func TestMarkDeliveredAndCancel(t *testing.T) {
	t.Parallel()

	gdb := newTestDB(t)
	svc := newTestService(t, gdb)
	ctx := context.Background()

	user := seedUser(t, gdb, 500)
	reward := seedReward(t, gdb, models.Reward{
		Name:       "Free Brownie",
		Kind:       enums.RewardKindPlainProduct,
		PointsCost: 100,
		Stock:      -1,
	})

	result, err := svc.Redeem(ctx, user.ID, reward.ID)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	orderID := uuid.New()
	if err := svc.MarkProcessing(ctx, gdb, result.Redemption.ID, orderID); err != nil {
		t.Fatalf("mark processing: %v", err)
	}

	if err := svc.MarkDelivered(ctx, gdb, orderID); err != nil {
		t.Fatalf("mark delivered: %v", err)
	}
	redemption, _ := svc.GetRedemption(ctx, result.Redemption.ID)
	if redemption.Status != enums.RedemptionStatusDelivered {
		t.Fatalf("status = %s, want delivered", redemption.Status)
	}

	// Orders without redemptions are a no-op for both hooks.
	if err := svc.MarkDelivered(ctx, gdb, uuid.New()); err != nil {
		t.Fatalf("mark delivered for plain order: %v", err)
	}
	if err := svc.CancelForOrder(ctx, gdb, uuid.New()); err != nil {
		t.Fatalf("cancel for plain order: %v", err)
	}
}

func TestCancelPendingRefundsPointsAndStock(t *testing.T) {
	t.Parallel()

	gdb := newTestDB(t)
	svc := newTestService(t, gdb)
	ctx := context.Background()

	user := seedUser(t, gdb, 1000)
	reward := seedReward(t, gdb, models.Reward{
		Name:       "Free Brownie",
		Kind:       enums.RewardKindPlainProduct,
		PointsCost: 400,
		Stock:      2,
	})

	result, err := svc.Redeem(ctx, user.ID, reward.ID)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if result.NewBalance != 600 {
		t.Fatalf("balance after redeem = %d, want 600", result.NewBalance)
	}

	newBalance, err := svc.CancelPending(ctx, user.ID, result.Redemption.ID)
	if err != nil {
		t.Fatalf("cancel pending: %v", err)
	}
	if newBalance != 1000 {
		t.Fatalf("balance after cancel = %d, want 1000", newBalance)
	}

	redemption, err := svc.GetRedemption(ctx, result.Redemption.ID)
	if err != nil {
		t.Fatalf("get redemption: %v", err)
	}
	if redemption.Status != enums.RedemptionStatusCancelled {
		t.Fatalf("status = %s, want cancelled", redemption.Status)
	}

	var reloaded models.Reward
	if err := gdb.First(&reloaded, "id = ?", reward.ID).Error; err != nil {
		t.Fatalf("reload reward: %v", err)
	}
	if reloaded.Stock != 2 {
		t.Fatalf("reward stock = %d, want 2 after cancel", reloaded.Stock)
	}

	// The refund is on the ledger, tied to the redemption.
	var entries []models.PointsEntry
	if err := gdb.Where("redemption_id = ?", result.Redemption.ID).
		Order("created_at ASC").Find(&entries).Error; err != nil {
		t.Fatalf("load entries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("ledger entries = %d, want debit plus refund", len(entries))
	}
	if entries[0].Points != -400 || entries[1].Points != 400 {
		t.Fatalf("ledger points = %d, %d, want -400, 400", entries[0].Points, entries[1].Points)
	}
}

func TestCancelPendingRejectsConsumedRedemption(t *testing.T) {
	t.Parallel()

	gdb := newTestDB(t)
	svc := newTestService(t, gdb)
	ctx := context.Background()

	user := seedUser(t, gdb, 1000)
	reward := seedReward(t, gdb, models.Reward{
		Name:       "Box of Six",
		Kind:       enums.RewardKindCustomizableBox,
		PointsCost: 450,
		BoxSize:    6,
		Stock:      -1,
	})

	result, err := svc.Redeem(ctx, user.ID, reward.ID)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if err := svc.MarkProcessing(ctx, gdb, result.Redemption.ID, uuid.New()); err != nil {
		t.Fatalf("mark processing: %v", err)
	}

	_, err = svc.CancelPending(ctx, user.ID, result.Redemption.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}

	// The points stay spent once an order holds the redemption.
	var reloaded models.User
	if err := gdb.First(&reloaded, "id = ?", user.ID).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if reloaded.PointsBalance != 550 {
		t.Fatalf("balance = %d, want 550", reloaded.PointsBalance)
	}
}

func TestCancelPendingHidesForeignRedemptions(t *testing.T) {
	t.Parallel()

	gdb := newTestDB(t)
	svc := newTestService(t, gdb)
	ctx := context.Background()

	owner := seedUser(t, gdb, 1000)
	other := seedUser(t, gdb, 1000)
	reward := seedReward(t, gdb, models.Reward{
		Name:       "Free Brownie",
		Kind:       enums.RewardKindPlainProduct,
		PointsCost: 100,
		Stock:      -1,
	})

	result, err := svc.Redeem(ctx, owner.ID, reward.ID)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}

	if _, err := svc.CancelPending(ctx, other.ID, result.Redemption.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for foreign redemption, got %v", err)
	}
}

func seedUser(t *testing.T, gdb *gorm.DB, balance int) *models.User {
	t.Helper()
	user := &models.User{
		ID:            uuid.New(),
		Email:         uuid.NewString() + "@example.com",
		Name:          "Test Customer",
		PasswordHash:  "x",
		Role:          enums.UserRoleCustomer,
		PointsBalance: balance,
	}
	if err := gdb.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func seedReward(t *testing.T, gdb *gorm.DB, reward models.Reward) *models.Reward {
	t.Helper()
	reward.ID = uuid.New()
	reward.Active = true
	if err := gdb.Create(&reward).Error; err != nil {
		t.Fatalf("seed reward: %v", err)
	}
	return &reward
}

func newTestService(t *testing.T, gdb *gorm.DB) Service {
	t.Helper()
	client := db.NewFromGorm(gdb)
	loyaltySvc, err := loyalty.NewService(client, loyalty.NewRepository(gdb))
	if err != nil {
		t.Fatalf("loyalty service: %v", err)
	}
	couponSvc, err := coupons.NewService(coupons.NewRepository(gdb))
	if err != nil {
		t.Fatalf("coupon service: %v", err)
	}
	svc, err := NewService(client, NewRepository(gdb), loyaltySvc, couponSvc)
	if err != nil {
		t.Fatalf("rewards service: %v", err)
	}
	return svc
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:rewards_" + uuid.NewString() + "?mode=memory&cache=shared"
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := gdb.AutoMigrate(
		&models.User{},
		&models.Reward{},
		&models.RewardRedemption{},
		&models.Coupon{},
		&models.CouponUsage{},
		&models.PointsEntry{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}
