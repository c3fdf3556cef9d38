// Package bacenretry re-drives BACEN notification for transfers whose funds
// already moved but whose regulator confirmation is still pending. A producer
// polls for BACEN_PENDING transfers, a pool of workers re-attempts them.
package bacenretry

import (
	"context"
	"time"

	"github.com/gmelo/transferapi/internal/logger"
	"github.com/gmelo/transferapi/internal/models"
)

const (
	defaultCountWorkers    = 4
	defaultPollInterval    = 30 * time.Second
	defaultBatchSize       = 50
	defaultMaxRetries      = 10 // After this many attempts the transfer needs manual handling
	defaultRateLimitedWait = 60 * time.Second
)

type bacenClient interface {
	NotifyTransfer(ctx context.Context, transfer models.Transfer) (string, error)
}

type transferStore interface {
	ListBacenPending(ctx context.Context, maxRetry int, limit int) ([]models.Transfer, error)
	Save(ctx context.Context, transfer models.Transfer) (models.Transfer, error)
}

type Processor struct {
	consumer *Consumer
	producer *Producer
}

func New(bacen bacenClient, transfers transferStore, l logger.Logger) *Processor {
	return &Processor{
		consumer: &Consumer{
			countWorkers:    defaultCountWorkers,
			rateLimitedWait: defaultRateLimitedWait,
			bacen:           bacen,
			transfers:       transfers,
			logger:          l,
		},
		producer: &Producer{
			interval:   defaultPollInterval,
			batchSize:  defaultBatchSize,
			maxRetries: defaultMaxRetries,
			transfers:  transfers,
			logger:     l,
		},
	}
}

// Process runs producer and workers until ctx is canceled. The returned
// channel closes when both have drained.
func (p *Processor) Process(ctx context.Context) <-chan struct{} {
	idleStopped := make(chan struct{})

	transferChan := make(chan models.Transfer)

	producerStopped := p.producer.Produce(ctx, transferChan)
	consumerStopped := p.consumer.Consume(ctx, transferChan)

	go func() {
		defer close(idleStopped)
		defer close(transferChan)
		<-producerStopped
		<-consumerStopped
		p.consumer.logger.Debug("BACEN retry processor stopped")
	}()

	return idleStopped
}
