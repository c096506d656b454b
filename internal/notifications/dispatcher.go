package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/crumbhaus/bakehouse-backend/pkg/config"
	"github.com/crumbhaus/bakehouse-backend/pkg/enums"
	"github.com/crumbhaus/bakehouse-backend/pkg/logger"
)

// Event is what gets relayed after an order is created or moves status.
type Event struct {
	Kind       string            `json:"kind"`
	OrderID    uuid.UUID         `json:"order_id"`
	UserID     uuid.UUID         `json:"user_id"`
	Status     enums.OrderStatus `json:"status"`
	TotalCents int               `json:"total_cents"`
	OccurredAt time.Time         `json:"occurred_at"`
}

const (
	EventOrderCreated     = "order.created"
	EventOrderStatusMoved = "order.status_moved"
)

// Dispatcher relays order events to the outside world. Calls are
// fire-and-forget: a delivery failure never rolls back the order that
// triggered it.
type Dispatcher interface {
	Dispatch(ctx context.Context, event Event)
}

// WebhookDispatcher posts events to a configured relay endpoint.
type WebhookDispatcher struct {
	url    string
	client *http.Client
	logger *logger.Logger
}

// NewWebhookDispatcher builds a dispatcher for the configured relay. An
// empty URL yields a no-op dispatcher.
func NewWebhookDispatcher(cfg config.NotifyConfig, logg *logger.Logger) Dispatcher {
	if cfg.WebhookURL == "" {
		return NopDispatcher{}
	}
	return &WebhookDispatcher{
		url:    cfg.WebhookURL,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logg,
	}
}

func (d *WebhookDispatcher) Dispatch(ctx context.Context, event Event) {
	body, err := json.Marshal(event)
	if err != nil {
		d.logger.Error(ctx, "encoding notification event", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		d.logger.Error(ctx, "building notification request", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		d.logger.Error(ctx, "delivering notification", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		d.logger.Warn(ctx, "notification relay rejected event")
	}
}

// NopDispatcher drops every event. Used when no relay is configured and in
// tests.
type NopDispatcher struct{}

func (NopDispatcher) Dispatch(context.Context, Event) {}
