package bacenretry

import (
	"context"
	"time"

	"github.com/gmelo/transferapi/internal/logger"
	"github.com/gmelo/transferapi/internal/models"
)

type Producer struct {
	interval   time.Duration
	batchSize  int
	maxRetries int
	transfers  transferStore
	logger     logger.Logger
}

func (p *Producer) Produce(ctx context.Context, out chan<- models.Transfer) <-chan struct{} {
	idleStopped := make(chan struct{})
	p.logger.Debug("Starting BACEN retry producer", "interval", p.interval, "batch_size", p.batchSize)

	go func() {
		defer close(idleStopped)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				p.logger.Debug("BACEN retry producer stopped by context")
				return

			case <-ticker.C:
				transfers, err := p.transfers.ListBacenPending(ctx, p.maxRetries, p.batchSize)
				if err != nil {
					p.logger.Error("Failed to list pending transfers", "error", err)
					continue
				}

				for _, transfer := range transfers {
					select {
					case <-ctx.Done():
						p.logger.Debug("BACEN retry producer stopped while sending")
						return
					case out <- transfer:
						p.logger.Debug("Pending transfer queued for re-notification", "transfer_id", transfer.ID)
					}
				}
			}
		}
	}()

	return idleStopped
}
