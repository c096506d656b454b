package sweep

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/crumbhaus/bakehouse-backend/internal/notifications"
	"github.com/crumbhaus/bakehouse-backend/internal/orders"
	"github.com/crumbhaus/bakehouse-backend/pkg/db/models"
	"github.com/crumbhaus/bakehouse-backend/pkg/enums"
	"github.com/crumbhaus/bakehouse-backend/pkg/logger"
	"github.com/crumbhaus/bakehouse-backend/pkg/metrics"
)

type recordingDispatcher struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (d *recordingDispatcher) Dispatch(_ context.Context, event notifications.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.events)
}

func newSweepDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:sweep_" + uuid.NewString() + "?mode=memory&cache=shared"
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := gdb.AutoMigrate(&models.User{}, &models.Order{}, &models.OrderLineItem{}, &models.BoxSelection{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

func seedOrderAt(t *testing.T, gdb *gorm.DB, status enums.OrderStatus, createdAt time.Time) *models.Order {
	t.Helper()

	user := &models.User{ID: uuid.New(), Email: uuid.NewString() + "@example.com", Name: "U", PasswordHash: "x", Role: enums.UserRoleCustomer}
	if err := gdb.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	order := &models.Order{
		ID:             uuid.New(),
		UserID:         user.ID,
		Status:         status,
		PaymentMethod:  enums.PaymentMethodCardGateway,
		DeliveryMethod: enums.DeliveryMethodPickup,
		TotalCents:     1000,
	}
	if err := gdb.Create(order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	// autoCreateTime stamps now; push it back explicitly.
	if err := gdb.Model(order).UpdateColumn("created_at", createdAt).Error; err != nil {
		t.Fatalf("backdate order: %v", err)
	}
	return order
}

func TestRunFlagsStaleOrdersOnce(t *testing.T) {
	t.Parallel()

	gdb := newSweepDB(t)
	dispatcher := &recordingDispatcher{}
	job, err := NewJob(Config{
		Orders:     orders.NewRepository(gdb),
		Dispatcher: dispatcher,
		Metrics:    metrics.NewJobMetrics(nil),
		Logger:     logger.New(logger.Options{ServiceName: "sweep-test"}),
		Age:        24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}

	stale := seedOrderAt(t, gdb, enums.OrderStatusPendingPayment, time.Now().Add(-48*time.Hour))
	seedOrderAt(t, gdb, enums.OrderStatusPendingPayment, time.Now().Add(-1*time.Hour))
	seedOrderAt(t, gdb, enums.OrderStatusPreparing, time.Now().Add(-48*time.Hour))

	flagged, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if flagged != 1 {
		t.Fatalf("flagged = %d, want 1", flagged)
	}
	if dispatcher.count() != 1 {
		t.Fatalf("events = %d, want 1", dispatcher.count())
	}
	if dispatcher.events[0].Kind != EventPaymentFollowup || dispatcher.events[0].OrderID != stale.ID {
		t.Fatalf("unexpected event %+v", dispatcher.events[0])
	}

	// The order stays in pending_payment; the sweep never cancels it.
	var reloaded models.Order
	if err := gdb.First(&reloaded, "id = ?", stale.ID).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if reloaded.Status != enums.OrderStatusPendingPayment {
		t.Fatalf("status = %s, want pending_payment", reloaded.Status)
	}
	if reloaded.FollowupFlaggedAt == nil {
		t.Fatal("expected followup flag timestamp")
	}

	// A second pass finds nothing new.
	flagged, err = job.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if flagged != 0 {
		t.Fatalf("second pass flagged = %d, want 0", flagged)
	}
	if dispatcher.count() != 1 {
		t.Fatalf("events after second pass = %d, want 1", dispatcher.count())
	}
}

func TestRunEmptySweep(t *testing.T) {
	t.Parallel()

	gdb := newSweepDB(t)
	job, err := NewJob(Config{
		Orders: orders.NewRepository(gdb),
		Logger: logger.New(logger.Options{ServiceName: "sweep-test"}),
		Age:    time.Hour,
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}

	flagged, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if flagged != 0 {
		t.Fatalf("flagged = %d, want 0", flagged)
	}
}
