package app

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/bipinss1983/banksystem/internal/store"
	"github.com/bipinss1983/banksystem/pkg/rabbitmq"
)

const (
	defaultBatchSize       = 50
	defaultPollInterval    = 1200 * time.Millisecond
	defaultStaleProcessing = 2 * time.Minute
	maxRetryDelaySeconds   = 300
)

// PublisherFactory opens a broker connection on demand.
type PublisherFactory func() (rabbitmq.Publisher, error)

// OutboxDispatcher publishes queued notifications after their posting commits.
type OutboxDispatcher struct {
	repo                store.OutboxRepository
	dial                PublisherFactory
	batchSize           int
	pollInterval        time.Duration
	staleProcessingTime time.Duration
	producer            rabbitmq.Publisher
}

func NewOutboxDispatcher(repo store.OutboxRepository, dial PublisherFactory, batchSize int, pollInterval time.Duration) *OutboxDispatcher {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &OutboxDispatcher{
		repo:                repo,
		dial:                dial,
		batchSize:           batchSize,
		pollInterval:        pollInterval,
		staleProcessingTime: defaultStaleProcessing,
	}
}

// Run polls the outbox until ctx is cancelled.
func (d *OutboxDispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()
	defer d.closeProducer()

	log.Printf("level=info component=outbox msg=\"dispatcher started\" batch_size=%d poll_interval=%s", d.batchSize, d.pollInterval)
	for {
		select {
		case <-ctx.Done():
			log.Println("level=info component=outbox msg=\"dispatcher stopped\"")
			return
		case <-ticker.C:
			if _, err := d.FlushOnce(ctx); err != nil {
				log.Printf("level=error component=outbox msg=\"outbox flush failed\" err=%v", err)
			}
		}
	}
}

// FlushOnce claims one batch and publishes it, returning how many were published.
func (d *OutboxDispatcher) FlushOnce(ctx context.Context) (int, error) {
	staleAfterSeconds := int(d.staleProcessingTime.Seconds())
	messages, err := d.repo.ClaimOutboxMessages(ctx, d.batchSize, staleAfterSeconds)
	if err != nil {
		return 0, err
	}

	published := 0
	var dialErr error
	for _, message := range messages {
		err := dialErr
		if err == nil {
			if d.producer == nil {
				producer, dErr := d.dial()
				if dErr != nil {
					// The broker is down; reschedule the rest of the batch without redialling.
					dialErr, err = dErr, dErr
				} else {
					d.producer = producer
				}
			}
			if err == nil {
				err = d.publishMessage(ctx, message)
			}
		}
		if err != nil {
			retryAfter := retryDelaySeconds(message.Attempts)
			log.Printf("level=warn component=outbox msg=\"publish failed; will retry\" id=%d attempts=%d retry_after_seconds=%d err=%v", message.ID, message.Attempts, retryAfter, err)
			if markErr := d.repo.MarkOutboxFailed(ctx, message.ID, retryAfter, err.Error()); markErr != nil {
				log.Printf("level=error component=outbox msg=\"failed to reschedule message\" id=%d err=%v", message.ID, markErr)
			}
			continue
		}
		if err := d.repo.MarkOutboxPublished(ctx, message.ID); err != nil {
			log.Printf("level=error component=outbox msg=\"failed to mark message published\" id=%d err=%v", message.ID, err)
			continue
		}
		published++
	}
	return published, nil
}

func (d *OutboxDispatcher) publishMessage(ctx context.Context, message store.OutboxMessage) error {
	var payload json.RawMessage = message.Payload
	if err := d.producer.Publish(ctx, message.Exchange, message.RoutingKey, payload); err != nil {
		d.closeProducer()
		return err
	}
	return nil
}

func (d *OutboxDispatcher) closeProducer() {
	if d.producer != nil {
		d.producer.Close()
		d.producer = nil
	}
}

// retryDelaySeconds doubles per attempt and is capped at five minutes.
func retryDelaySeconds(attempt int) int {
	if attempt < 1 {
		return 1
	}
	delay := 1 << min(attempt, 9)
	if delay > maxRetryDelaySeconds {
		return maxRetryDelaySeconds
	}
	return delay
}
