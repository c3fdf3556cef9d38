package bacenretry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gmelo/transferapi/internal/apperrors"
	"github.com/gmelo/transferapi/internal/logger"
	"github.com/gmelo/transferapi/internal/models"
)

type Consumer struct {
	countWorkers    int
	rateLimitedWait time.Duration

	// When BACEN rate limits us every worker backs off until this moment
	waitUntil atomic.Int64

	bacen     bacenClient
	transfers transferStore
	logger    logger.Logger
}

func (c *Consumer) Consume(ctx context.Context, in <-chan models.Transfer) <-chan struct{} {
	idleStopped := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < c.countWorkers; i++ {
		wg.Add(1)
		go func() {
			c.worker(ctx, in)
			wg.Done()
		}()
	}

	go func() {
		defer close(idleStopped)
		wg.Wait()
		c.logger.Debug("BACEN retry consumer stopped")
	}()

	return idleStopped
}

func (c *Consumer) worker(ctx context.Context, in <-chan models.Transfer) {
	for {
		waitUntil := time.Unix(c.waitUntil.Load(), 0)
		if waitUntil.After(time.Now()) {
			select {
			case <-ctx.Done():
				continue
			case <-time.After(time.Until(waitUntil)):
				continue
			}
		}

		select {
		case <-ctx.Done():
			return

		case transfer, ok := <-in:
			if !ok {
				c.logger.Debug("BACEN retry worker stopped, input channel closed")
				return
			}

			c.notify(ctx, transfer)
		}
	}
}

// notify re-attempts one pending transfer. Rate limiting pauses the whole
// pool; an unavailable regulator just bumps the retry counter so the
// transfer is picked up on a later poll; anything else is terminal.
func (c *Consumer) notify(ctx context.Context, transfer models.Transfer) {
	notificationID, err := c.bacen.NotifyTransfer(ctx, transfer)

	switch {
	case err == nil:
		if merr := transfer.MarkBacenNotified(notificationID); merr != nil {
			c.logger.Error("Pending transfer in unexpected state", "transfer_id", transfer.ID, "error", merr)
			return
		}
		if _, serr := c.transfers.Save(ctx, transfer); serr != nil {
			c.logger.Error("Failed to persist notified transfer", "transfer_id", transfer.ID, "error", serr)
			return
		}
		c.logger.Info("Pending transfer confirmed by BACEN",
			"transfer_id", transfer.ID,
			"notification_id", notificationID,
		)

	case apperrors.IsKind(err, apperrors.KindRateLimited):
		c.logger.Info("BACEN rate limit hit, pausing re-notification", "wait", c.rateLimitedWait)
		c.waitUntil.Store(time.Now().Add(c.rateLimitedWait).Unix())

	case apperrors.CodeOf(err) == apperrors.CodeBacenUnavailable:
		c.logger.Warn("BACEN still unavailable", "transfer_id", transfer.ID, "retry_count", transfer.BacenRetryCount)
		transfer.IncrementBacenRetry()
		if _, serr := c.transfers.Save(ctx, transfer); serr != nil {
			c.logger.Error("Failed to persist retry count", "transfer_id", transfer.ID, "error", serr)
		}

	default:
		c.logger.Error("BACEN rejected pending transfer", "transfer_id", transfer.ID, "error", err)
		if ferr := transfer.Fail(err.Error()); ferr != nil {
			c.logger.Error("Pending transfer in unexpected state", "transfer_id", transfer.ID, "error", ferr)
			return
		}
		if _, serr := c.transfers.Save(ctx, transfer); serr != nil {
			c.logger.Error("Failed to persist failed transfer", "transfer_id", transfer.ID, "error", serr)
		}
	}
}
