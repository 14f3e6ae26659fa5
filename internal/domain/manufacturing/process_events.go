package manufacturing

import (
	"github.com/erp/manufacturing/internal/domain/shared"
	"github.com/shopspring/decimal"
)

const (
	AggregateTypeProcess = "ManufacturingProcess"

	EventTypeProcessCreated   = "manufacturing.process.created"
	EventTypeProcessStarted   = "manufacturing.process.started"
	EventTypeProcessCompleted = "manufacturing.process.completed"
	EventTypeProcessCancelled = "manufacturing.process.cancelled"
	EventTypeProcessRestarted = "manufacturing.process.restarted"
)

// ProcessCreatedEvent is published when a manufacturing process is created
type ProcessCreatedEvent struct {
	shared.BaseDomainEvent
	ProcessNumber    string          `json:"process_number"`
	ProductID        string          `json:"product_id"`
	ProducedQuantity decimal.Decimal `json:"produced_quantity"`
}

// NewProcessCreatedEvent creates a new ProcessCreatedEvent
func NewProcessCreatedEvent(p *ManufacturingProcess) *ProcessCreatedEvent {
	return &ProcessCreatedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeProcessCreated, AggregateTypeProcess, p.ID, p.TenantID),
		ProcessNumber:    p.ProcessNumber,
		ProductID:        p.ProductID.String(),
		ProducedQuantity: p.ProducedQuantity,
	}
}

// ProcessStartedEvent is published when a process enters execution and its
// raw-material plan has been debited from stock
type ProcessStartedEvent struct {
	shared.BaseDomainEvent
	ProcessNumber string `json:"process_number"`
	LineCount     int    `json:"line_count"`
}

// NewProcessStartedEvent creates a new ProcessStartedEvent
func NewProcessStartedEvent(p *ManufacturingProcess) *ProcessStartedEvent {
	return &ProcessStartedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProcessStarted, AggregateTypeProcess, p.ID, p.TenantID),
		ProcessNumber:   p.ProcessNumber,
		LineCount:       len(p.Lines),
	}
}

// ProcessCompletedEvent is published when a process completes and the finished
// product has been credited to stock
type ProcessCompletedEvent struct {
	shared.BaseDomainEvent
	ProcessNumber  string          `json:"process_number"`
	CreditQuantity decimal.Decimal `json:"credit_quantity"`
	TotalCost      decimal.Decimal `json:"total_cost"`
	CostPerUnit    decimal.Decimal `json:"cost_per_unit"`
}

// NewProcessCompletedEvent creates a new ProcessCompletedEvent
func NewProcessCompletedEvent(p *ManufacturingProcess) *ProcessCompletedEvent {
	return &ProcessCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProcessCompleted, AggregateTypeProcess, p.ID, p.TenantID),
		ProcessNumber:   p.ProcessNumber,
		CreditQuantity:  p.CreditQuantity(),
		TotalCost:       p.TotalCost,
		CostPerUnit:     p.CostPerUnit,
	}
}

// ProcessCancelledEvent is published when a process is cancelled. StockReversed
// indicates whether a stock reversal accompanied the cancellation.
type ProcessCancelledEvent struct {
	shared.BaseDomainEvent
	ProcessNumber string `json:"process_number"`
	Reason        string `json:"reason"`
	StockReversed bool   `json:"stock_reversed"`
}

// NewProcessCancelledEvent creates a new ProcessCancelledEvent
func NewProcessCancelledEvent(p *ManufacturingProcess, stockReversed bool) *ProcessCancelledEvent {
	return &ProcessCancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProcessCancelled, AggregateTypeProcess, p.ID, p.TenantID),
		ProcessNumber:   p.ProcessNumber,
		Reason:          p.CancelReason,
		StockReversed:   stockReversed,
	}
}

// ProcessRestartedEvent is published when a cancelled process returns to draft
type ProcessRestartedEvent struct {
	shared.BaseDomainEvent
	ProcessNumber string `json:"process_number"`
}

// NewProcessRestartedEvent creates a new ProcessRestartedEvent
func NewProcessRestartedEvent(p *ManufacturingProcess) *ProcessRestartedEvent {
	return &ProcessRestartedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProcessRestarted, AggregateTypeProcess, p.ID, p.TenantID),
		ProcessNumber:   p.ProcessNumber,
	}
}
