package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	application "shopgate/contexts/catalog-sync/replica-synchronizer/application"
	"shopgate/contexts/catalog-sync/replica-synchronizer/ports"
)

const (
	DefaultDomainEventChannel = "domain.events"
	orderCreatedEventType     = "order.created"
	orderConfirmationTemplate = "order_confirmation"
)

// OrderCreatedConsumer turns "order.created" domain events into outbound
// email jobs. It sits beside the replication path and shares only the bus.
type OrderCreatedConsumer struct {
	Subscriber  ports.ChangeSubscriber
	Jobs        ports.EmailJobPublisher
	IDGenerator ports.IDGenerator
	Clock       ports.Clock
	Channel     string
	Logger      *slog.Logger
}

func (c OrderCreatedConsumer) Start(ctx context.Context) error {
	channel := c.Channel
	if channel == "" {
		channel = DefaultDomainEventChannel
	}
	return c.Subscriber.Subscribe(ctx, channel, c.Handle)
}

func (c OrderCreatedConsumer) Handle(ctx context.Context, raw []byte) error {
	logger := application.ResolveLogger(c.Logger)

	var event ports.DomainEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		logger.WarnContext(ctx, "domain event discarded",
			"event", "order_created_decode_failed",
			"module", "catalog-sync/replica-synchronizer",
			"layer", "worker",
			"error", err.Error(),
		)
		return nil
	}
	if event.Type != orderCreatedEventType {
		return nil
	}

	var payload ports.OrderCreated
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		logger.WarnContext(ctx, "order created payload discarded",
			"event", "order_created_payload_invalid",
			"module", "catalog-sync/replica-synchronizer",
			"layer", "worker",
			"error", err.Error(),
		)
		return nil
	}

	if missing := missingOrderFields(payload); len(missing) > 0 {
		logger.WarnContext(ctx, "order created event skipped",
			"event", "order_created_missing_fields",
			"module", "catalog-sync/replica-synchronizer",
			"layer", "worker",
			"order_id", payload.OrderID,
			"missing", missing,
		)
		return nil
	}

	job, err := c.buildJob(ctx, payload)
	if err != nil {
		return err
	}
	if err := c.Jobs.PublishEmailJob(ctx, job); err != nil {
		return fmt.Errorf("publish email job for order %s: %w", payload.OrderNumber, err)
	}

	logger.InfoContext(ctx, "order confirmation job queued",
		"event", "order_created_job_queued",
		"module", "catalog-sync/replica-synchronizer",
		"layer", "worker",
		"job_id", job.JobID,
		"order_number", job.OrderNumber,
	)
	return nil
}

func (c OrderCreatedConsumer) buildJob(ctx context.Context, payload ports.OrderCreated) (ports.EmailJob, error) {
	jobID, err := c.IDGenerator.NewID(ctx)
	if err != nil {
		return ports.EmailJob{}, fmt.Errorf("generate email job id: %w", err)
	}

	now := time.Now().UTC()
	if c.Clock != nil {
		now = c.Clock.Now().UTC()
	}

	items := make([]ports.EmailJobItem, 0, len(payload.Items))
	for _, item := range payload.Items {
		unitPrice, _ := item.UnitPrice.Float64()
		items = append(items, ports.EmailJobItem{
			Name:      item.ProductName,
			Quantity:  item.Quantity,
			UnitPrice: unitPrice,
		})
	}
	total, _ := payload.Total.Float64()

	return ports.EmailJob{
		JobID:        jobID,
		Template:     orderConfirmationTemplate,
		To:           strings.TrimSpace(payload.CustomerEmail),
		CustomerName: payload.CustomerName,
		OrderNumber:  strings.TrimSpace(payload.OrderNumber),
		Items:        items,
		Total:        total,
		Currency:     payload.Currency,
		CreatedAt:    now,
	}, nil
}

func missingOrderFields(payload ports.OrderCreated) []string {
	var missing []string
	if strings.TrimSpace(payload.CustomerEmail) == "" {
		missing = append(missing, "customer_email")
	}
	if strings.TrimSpace(payload.OrderNumber) == "" {
		missing = append(missing, "order_number")
	}
	return missing
}
