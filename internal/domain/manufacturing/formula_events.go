package manufacturing

import (
	"github.com/erp/manufacturing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Aggregate type constant
const AggregateTypeFormula = "ManufacturingFormula"

// Event type constants
const (
	EventTypeFormulaCreated       = "manufacturing.formula.created"
	EventTypeFormulaStatusChanged = "manufacturing.formula.status_changed"
)

// FormulaCreatedEvent is raised when a new formula is created
type FormulaCreatedEvent struct {
	shared.BaseDomainEvent
	FormulaID     uuid.UUID `json:"formula_id"`
	FormulaNumber string    `json:"formula_number"`
	ProductID     uuid.UUID `json:"product_id"`
}

// NewFormulaCreatedEvent creates a new FormulaCreatedEvent
func NewFormulaCreatedEvent(formula *ManufacturingFormula) *FormulaCreatedEvent {
	return &FormulaCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeFormulaCreated, AggregateTypeFormula, formula.ID, formula.TenantID),
		FormulaID:       formula.ID,
		FormulaNumber:   formula.FormulaNumber,
		ProductID:       formula.ProductID,
	}
}

// EventType returns the event type name
func (e *FormulaCreatedEvent) EventType() string {
	return EventTypeFormulaCreated
}

// FormulaStatusChangedEvent is raised when a formula transitions status
type FormulaStatusChangedEvent struct {
	shared.BaseDomainEvent
	FormulaID     uuid.UUID        `json:"formula_id"`
	FormulaNumber string           `json:"formula_number"`
	FromStatus    FormulaStatus    `json:"from_status"`
	ToStatus      FormulaStatus    `json:"to_status"`
	Efficiency    *decimal.Decimal `json:"efficiency,omitempty"`
}

// NewFormulaStatusChangedEvent creates a new FormulaStatusChangedEvent
func NewFormulaStatusChangedEvent(formula *ManufacturingFormula, from, to FormulaStatus) *FormulaStatusChangedEvent {
	return &FormulaStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeFormulaStatusChanged, AggregateTypeFormula, formula.ID, formula.TenantID),
		FormulaID:       formula.ID,
		FormulaNumber:   formula.FormulaNumber,
		FromStatus:      from,
		ToStatus:        to,
		Efficiency:      formula.Efficiency(),
	}
}

// EventType returns the event type name
func (e *FormulaStatusChangedEvent) EventType() string {
	return EventTypeFormulaStatusChanged
}
