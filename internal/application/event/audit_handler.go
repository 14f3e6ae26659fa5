package event

import (
	"context"

	"github.com/erp/manufacturing/internal/domain/manufacturing"
	"github.com/erp/manufacturing/internal/domain/shared"
	"go.uber.org/zap"
)

// AuditLogHandler records every formula and process lifecycle event to the
// structured log, forming an append-only audit trail of state changes.
// Wrap it with an idempotent handler when subscribing so redelivered
// events do not produce duplicate audit lines.
type AuditLogHandler struct {
	logger *zap.Logger
}

// NewAuditLogHandler creates an audit log handler.
func NewAuditLogHandler(logger *zap.Logger) *AuditLogHandler {
	return &AuditLogHandler{logger: logger}
}

// EventTypes lists the lifecycle events the audit trail covers.
func (h *AuditLogHandler) EventTypes() []string {
	return []string{
		manufacturing.EventTypeFormulaCreated,
		manufacturing.EventTypeFormulaStatusChanged,
		manufacturing.EventTypeProcessCreated,
		manufacturing.EventTypeProcessStarted,
		manufacturing.EventTypeProcessCompleted,
		manufacturing.EventTypeProcessCancelled,
		manufacturing.EventTypeProcessRestarted,
	}
}

// Handle writes one audit line per event.
func (h *AuditLogHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	h.logger.Info("audit",
		zap.String("event_id", event.EventID().String()),
		zap.String("event_type", event.EventType()),
		zap.String("aggregate_type", event.AggregateType()),
		zap.String("aggregate_id", event.AggregateID().String()),
		zap.String("tenant_id", event.TenantID().String()),
		zap.Time("occurred_at", event.OccurredAt()),
	)
	return nil
}

var _ shared.EventHandler = (*AuditLogHandler)(nil)
