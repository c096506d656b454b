package payments

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sethvargo/go-retry"

	"github.com/crumbhaus/bakehouse-backend/pkg/config"
	"github.com/crumbhaus/bakehouse-backend/pkg/logger"
)

// Error describes a gateway failure. Transient errors are worth retrying;
// everything else (declines, bad requests) is final.
type Error struct {
	StatusCode int
	Message    string
	Transient  bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("gateway: %s (status %d)", e.Message, e.StatusCode)
}

// Intent is the gateway's payment intent for a card checkout. The customer
// finishes payment at RedirectURL; the gateway reports the outcome on our
// webhook.
type Intent struct {
	ID          string `json:"id"`
	RedirectURL string `json:"redirect_url"`
	Status      string `json:"status"`
}

// IntentRequest carries everything the gateway needs to open an intent.
type IntentRequest struct {
	OrderID     string `json:"order_id"`
	AmountCents int    `json:"amount_cents"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
}

// WebhookEvent is the payload the gateway posts to our callback endpoint.
type WebhookEvent struct {
	IntentID string `json:"intent_id"`
	OrderID  string `json:"order_id"`
	Status   string `json:"status"`
}

// Webhook statuses the gateway reports.
const (
	WebhookStatusPaid     = "paid"
	WebhookStatusRejected = "rejected"
)

// Gateway is the surface checkout and webhook code depend on.
type Gateway interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	VerifySignature(payload []byte, signature string) bool
}

type httpDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client talks to the external card gateway over HTTP with retry on
// transient failures.
type Client struct {
	http       httpDoer
	baseURL    string
	apiKey     string
	webhookKey string
	maxRetries uint64
	cfg        config.GatewayConfig
	logger     *logger.Logger
}

// NewClient validates the gateway config and returns a ready client.
func NewClient(cfg config.GatewayConfig, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("gateway base url is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("gateway api key is required")
	}
	if logg == nil {
		return nil, errors.New("gateway logger is required")
	}
	return &Client{
		http:       &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		webhookKey: cfg.WebhookKey,
		maxRetries: cfg.MaxRetries,
		cfg:        cfg,
		logger:     logg,
	}, nil
}

// CreateIntent opens a payment intent, retrying transient gateway failures
// with exponential backoff.
func (c *Client) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding intent request: %w", err)
	}

	var intent *Intent
	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(c.cfg.RetryBase))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		result, attemptErr := c.postIntent(ctx, body)
		if attemptErr != nil {
			var gwErr *Error
			if errors.As(attemptErr, &gwErr) && gwErr.Transient {
				return retry.RetryableError(attemptErr)
			}
			return attemptErr
		}
		intent = result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return intent, nil
}

func (c *Client) postIntent(ctx context.Context, body []byte) (*Intent, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/intents", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building intent request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &Error{Message: err.Error(), Transient: true}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &Error{Message: err.Error(), Transient: true}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var intent Intent
		if err := json.Unmarshal(raw, &intent); err != nil {
			return nil, &Error{StatusCode: resp.StatusCode, Message: "malformed intent response"}
		}
		return &intent, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, &Error{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw)), Transient: true}
	default:
		return nil, &Error{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}
}

// VerifySignature checks the HMAC-SHA256 signature the gateway attaches to
// webhook deliveries.
func (c *Client) VerifySignature(payload []byte, signature string) bool {
	if c.webhookKey == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(c.webhookKey))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(signature))) == 1
}
