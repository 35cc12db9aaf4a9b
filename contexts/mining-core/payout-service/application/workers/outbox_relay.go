package workers

import (
	"context"
	"log/slog"

	"solmine/contexts/mining-core/payout-service/ports"
)

// OutboxRelay drains pending distribution events onto the message bus.
type OutboxRelay struct {
	Outbox    ports.OutboxRepository
	Publisher ports.Publisher
	Clock     ports.Clock
	Topic     string
	BatchSize int
	Logger    *slog.Logger
}

func (r OutboxRelay) RunOnce(ctx context.Context) error {
	limit := r.BatchSize
	if limit <= 0 {
		limit = 100
	}
	pending, err := r.Outbox.ListPendingOutbox(ctx, limit)
	if err != nil {
		return err
	}
	for _, envelope := range pending {
		if err := r.Publisher.Publish(ctx, r.Topic, envelope); err != nil {
			// Leave the row pending; the next cycle retries it.
			if r.Logger != nil {
				r.Logger.Warn("outbox publish failed",
					"event", "outbox_publish_failed",
					"module", "mining-core/payout-service",
					"layer", "worker",
					"event_id", envelope.EventID,
					"error", err.Error(),
				)
			}
			continue
		}
		if err := r.Outbox.MarkOutboxPublished(ctx, envelope.EventID, r.Clock.Now()); err != nil {
			return err
		}
	}
	return nil
}
