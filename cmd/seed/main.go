package main

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"github.com/crumbhaus/bakehouse-backend/pkg/config"
	"github.com/crumbhaus/bakehouse-backend/pkg/db"
	"github.com/crumbhaus/bakehouse-backend/pkg/db/models"
	"github.com/crumbhaus/bakehouse-backend/pkg/enums"
	"github.com/crumbhaus/bakehouse-backend/pkg/logger"
	"github.com/crumbhaus/bakehouse-backend/pkg/migrate"
	"github.com/crumbhaus/bakehouse-backend/pkg/security"
)

// Seeds a development database with a small catalog, a couple of delivery
// zones, starter coupons and rewards, and one staff account. Idempotent:
// existing rows (matched by their natural key) are left alone.
func main() {
	logg := logger.New(logger.Options{ServiceName: "seed"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	if cfg.App.IsProd() {
		logg.Error(context.Background(), "refusing to seed a prod database", nil)
		os.Exit(1)
	}

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	ctx := context.Background()
	conn := dbClient.DB()

	if err := seedProducts(ctx, conn); err != nil {
		logg.Error(ctx, "failed to seed products", err)
		os.Exit(1)
	}
	if err := seedZones(ctx, conn); err != nil {
		logg.Error(ctx, "failed to seed delivery zones", err)
		os.Exit(1)
	}
	if err := seedCoupons(ctx, conn); err != nil {
		logg.Error(ctx, "failed to seed coupons", err)
		os.Exit(1)
	}
	if err := seedRewards(ctx, conn); err != nil {
		logg.Error(ctx, "failed to seed rewards", err)
		os.Exit(1)
	}
	if err := seedStaffUser(ctx, conn, cfg.Password); err != nil {
		logg.Error(ctx, "failed to seed staff user", err)
		os.Exit(1)
	}

	logg.Info(ctx, "seed complete")
}

func seedProducts(ctx context.Context, conn *gorm.DB) error {
	products := []models.Product{
		{Name: "Chocolate Chip Cookie", PriceCents: 350, Stock: 120},
		{Name: "Double Fudge Brownie Cookie", PriceCents: 400, Stock: 80},
		{Name: "Oatmeal Raisin Cookie", PriceCents: 325, Stock: 60},
		{Name: "Snickerdoodle", PriceCents: 325, Stock: 90},
		{Name: "Seasonal Special", PriceCents: 450, Stock: -1},
		{Name: "Half-Dozen Box", PriceCents: 1800, Stock: -1, BoxSize: 6},
		{Name: "Dozen Box", PriceCents: 3400, Stock: -1, BoxSize: 12},
	}
	for i := range products {
		products[i].Active = true
		if err := conn.WithContext(ctx).
			Where("name = ?", products[i].Name).
			FirstOrCreate(&products[i]).Error; err != nil {
			return err
		}
	}
	return nil
}

func seedZones(ctx context.Context, conn *gorm.DB) error {
	zones := []models.DeliveryZone{
		{Name: "Downtown", ShippingCents: 300},
		{Name: "Suburbs", ShippingCents: 500},
	}
	for i := range zones {
		zones[i].Active = true
		if err := conn.WithContext(ctx).
			Where("name = ?", zones[i].Name).
			FirstOrCreate(&zones[i]).Error; err != nil {
			return err
		}
	}
	return nil
}

func seedCoupons(ctx context.Context, conn *gorm.DB) error {
	expires := time.Now().AddDate(0, 3, 0)
	coupons := []models.Coupon{
		{Code: "WELCOME10", Kind: enums.CouponKindPercentage, Percent: 10, UsageLimit: 0},
		{Code: "FIVEOFF", Kind: enums.CouponKindFixedAmount, AmountCents: 500, MinSubtotalCents: 2000, UsageLimit: 200, ExpiresAt: &expires},
		{Code: "FREESHIP", Kind: enums.CouponKindFreeShipping, MinSubtotalCents: 1500, UsageLimit: 0},
	}
	for i := range coupons {
		coupons[i].Active = true
		if err := conn.WithContext(ctx).
			Where("code = ?", coupons[i].Code).
			FirstOrCreate(&coupons[i]).Error; err != nil {
			return err
		}
	}
	return nil
}

func seedRewards(ctx context.Context, conn *gorm.DB) error {
	var freebie models.Product
	if err := conn.WithContext(ctx).
		Where("name = ?", "Chocolate Chip Cookie").
		First(&freebie).Error; err != nil {
		return err
	}

	rewards := []models.Reward{
		{Name: "Free Chocolate Chip Cookie", Kind: enums.RewardKindPlainProduct, PointsCost: 500, ProductID: &freebie.ID, Stock: -1},
		{Name: "15% Off Coupon", Kind: enums.RewardKindPercentageCoupon, PointsCost: 1000, Percent: 15, Stock: -1},
		{Name: "Pick-Your-Own Half Dozen", Kind: enums.RewardKindCustomizableBox, PointsCost: 3000, BoxSize: 6, Stock: 25},
	}
	for i := range rewards {
		rewards[i].Active = true
		if err := conn.WithContext(ctx).
			Where("name = ?", rewards[i].Name).
			FirstOrCreate(&rewards[i]).Error; err != nil {
			return err
		}
	}
	return nil
}

func seedStaffUser(ctx context.Context, conn *gorm.DB, pwCfg config.PasswordConfig) error {
	password := os.Getenv("BAKEHOUSE_SEED_STAFF_PASSWORD")
	if password == "" {
		password = "bakehouse-dev-only"
	}
	hash, err := security.HashPassword(password, pwCfg)
	if err != nil {
		return err
	}

	staff := models.User{
		Email:        "staff@bakehouse.local",
		Name:         "Counter Staff",
		PasswordHash: hash,
		Role:         enums.UserRoleStaff,
	}
	return conn.WithContext(ctx).
		Where("email = ?", staff.Email).
		FirstOrCreate(&staff).Error
}
