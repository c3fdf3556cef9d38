// Package bacen notifies the central regulator about completed transfers.
// Notification is at-least-once: callers persist BACEN_PENDING state and
// re-attempt when this client reports the service unavailable or
// rate limited.
package bacen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gmelo/transferapi/internal/apperrors"
	"github.com/gmelo/transferapi/internal/logger"
	"github.com/gmelo/transferapi/internal/models"
	"github.com/gmelo/transferapi/internal/resilience"
)

const defaultRequestTimeout = 5 * time.Second

type notificationRequest struct {
	TransferID      uuid.UUID       `json:"transferId"`
	SourceAccountID uuid.UUID       `json:"sourceAccountId"`
	TargetAccountID uuid.UUID       `json:"targetAccountId"`
	Amount          decimal.Decimal `json:"amount"`
	TransactionDate time.Time       `json:"transactionDate"`
}

type notificationResponse struct {
	NotificationID string `json:"notificationId"`
	Status         string `json:"status"`
}

type Client struct {
	BaseURL string

	http   *http.Client
	exec   *resilience.Executor
	logger logger.Logger
}

// NewClient builds the regulator client. On top of the registry policy it
// carries a local rate limiter honoring BACEN's published quota; a local
// denial and a remote 429 route the same way (rate-limited, no retry).
func NewClient(baseURL string, ratePerSecond float64, l logger.Logger) *Client {
	cfg := resilience.DefaultConfig("bacen")
	cfg.RatePerSecond = ratePerSecond
	cfg.RateBurst = int(ratePerSecond)
	cfg.Retryable = func(err error) bool {
		return apperrors.IsKind(err, apperrors.KindIntegration)
	}
	// A quota rejection is the regulator working as designed, not an outage
	cfg.IgnoreFailure = func(err error) bool {
		return apperrors.IsKind(err, apperrors.KindRateLimited)
	}

	return &Client{
		BaseURL: baseURL,
		http:    &http.Client{Timeout: defaultRequestTimeout},
		exec:    resilience.NewExecutor(cfg),
		logger:  l,
	}
}

// NotifyTransfer reports a committed transfer and returns the regulator's
// notification id. Errors are classified: RateLimited (429 or local cap,
// never retried here), Unavailable (retried, then surfaced), or a terminal
// notification error.
func (c *Client) NotifyTransfer(ctx context.Context, transfer models.Transfer) (string, error) {
	var notificationID string

	err := c.exec.Do(ctx, func(ctx context.Context) error {
		var err error
		notificationID, err = c.postNotification(ctx, transfer)
		return err
	})

	switch {
	case err == nil:
		return notificationID, nil
	case errors.Is(err, resilience.ErrRateLimited):
		c.logger.Warn("BACEN notification locally rate limited", "transfer_id", transfer.ID)
		return "", apperrors.BacenRateLimited()
	case errors.Is(err, resilience.ErrCircuitOpen),
		errors.Is(err, resilience.ErrBulkheadFull):
		return "", apperrors.BacenUnavailable(err)
	default:
		return "", err
	}
}

func (c *Client) postNotification(ctx context.Context, transfer models.Transfer) (string, error) {
	payload, err := json.Marshal(notificationRequest{
		TransferID:      transfer.ID,
		SourceAccountID: transfer.SourceAccountID,
		TargetAccountID: transfer.TargetAccountID,
		Amount:          transfer.Amount.Decimal(),
		TransactionDate: transfer.CreatedAt,
	})
	if err != nil {
		return "", apperrors.BacenError(err)
	}

	url := c.BaseURL + "/api/v1/notifications"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", apperrors.BacenError(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", apperrors.BacenUnavailable(err)
	}
	defer resp.Body.Close() // nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusOK, resp.StatusCode == http.StatusCreated:
		var body notificationResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return "", apperrors.BacenError(err)
		}
		if body.NotificationID == "" {
			return "", apperrors.BacenError(errors.New("empty notification id in BACEN response"))
		}

		c.logger.Debug("BACEN notified", "transfer_id", transfer.ID, "notification_id", body.NotificationID)
		return body.NotificationID, nil

	case resp.StatusCode == http.StatusTooManyRequests:
		c.logger.Warn("BACEN rate limit hit", "transfer_id", transfer.ID)
		return "", apperrors.BacenRateLimited()

	case resp.StatusCode >= 500:
		c.logger.Warn("BACEN service error", "status_code", resp.StatusCode, "transfer_id", transfer.ID)
		return "", apperrors.BacenUnavailable(fmt.Errorf("BACEN returned status %d", resp.StatusCode))

	default:
		return "", apperrors.BacenError(fmt.Errorf("unexpected status %d from BACEN", resp.StatusCode))
	}
}
