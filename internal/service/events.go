// Package service implements the Kestrel use cases on top of the scoring
// pipeline, the store, the cache and the event bus.
package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// TransactionScoredEvent is published on domain.TopicTransactionScored.
type TransactionScoredEvent struct {
	Transaction *domain.Transaction `json:"transaction"`
	Score       *domain.FraudScore  `json:"score"`
	AlertID     string              `json:"alertId,omitempty"`
}

// publisher sends JSON events. A nil bus disables publishing. Events are
// sent after the state they describe is committed, so failures are logged
// and never returned.
type publisher struct {
	bus    domain.EventBus
	logger *slog.Logger
}

func (p publisher) publish(ctx context.Context, topic string, v any) {
	if p.bus == nil {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		p.logger.Warn("failed to encode event", "topic", topic, "error", err)
		return
	}
	if err := p.bus.Publish(ctx, topic, payload); err != nil {
		p.logger.Warn("failed to publish event", "topic", topic, "error", err)
	}
}

func loggerOrDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

// clampLimit applies def when limit is unset and caps it at maxLimit.
func clampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	return min(limit, maxLimit)
}

const maxLimit = 1000
