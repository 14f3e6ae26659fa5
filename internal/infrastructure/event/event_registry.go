package event

import (
	"github.com/erp/manufacturing/internal/domain/manufacturing"
)

// RegisterAllEvents registers all domain event types with the serializer
// This is required for the OutboxProcessor to deserialize events from the outbox table
func RegisterAllEvents(serializer *EventSerializer) {
	// Formula events
	serializer.Register(manufacturing.EventTypeFormulaCreated, &manufacturing.FormulaCreatedEvent{})
	serializer.Register(manufacturing.EventTypeFormulaStatusChanged, &manufacturing.FormulaStatusChangedEvent{})

	// Production process lifecycle events
	serializer.Register(manufacturing.EventTypeProcessCreated, &manufacturing.ProcessCreatedEvent{})
	serializer.Register(manufacturing.EventTypeProcessStarted, &manufacturing.ProcessStartedEvent{})
	serializer.Register(manufacturing.EventTypeProcessCompleted, &manufacturing.ProcessCompletedEvent{})
	serializer.Register(manufacturing.EventTypeProcessCancelled, &manufacturing.ProcessCancelledEvent{})
	serializer.Register(manufacturing.EventTypeProcessRestarted, &manufacturing.ProcessRestartedEvent{})
}
