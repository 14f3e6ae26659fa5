package manufacturing

import (
	"time"

	"github.com/erp/manufacturing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RawMaterialLine is one input requirement within a manufacturing process.
// Lines are owned by their process and have no independent lifecycle.
type RawMaterialLine struct {
	ID                     uuid.UUID        `gorm:"type:uuid;primary_key"`
	ProcessID              uuid.UUID        `gorm:"type:uuid;not null;index"`
	ItemID                 uuid.UUID        `gorm:"type:uuid;not null"`
	UnitID                 uuid.UUID        `gorm:"type:uuid;not null"`
	WarehouseID            uuid.UUID        `gorm:"type:uuid;not null"`
	ConsumedQuantity       decimal.Decimal  `gorm:"type:decimal(18,4);not null"`           // Planned consumption
	ActualConsumedQuantity *decimal.Decimal `gorm:"type:decimal(18,4)"`                    // Recorded at consumption, nil until then
	WasteQuantity          decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0"` // max(0, actual - planned)
	AvailableQuantity      decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0"` // Snapshot from availability check
	ShortageQuantity       decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0"` // Snapshot from availability check
	UnitCost               decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0"`
	IsCritical             bool             `gorm:"not null;default:false"`
	CreatedAt              time.Time        `gorm:"not null"`
	UpdatedAt              time.Time        `gorm:"not null"`
}

// TableName returns the table name for GORM
func (RawMaterialLine) TableName() string {
	return "manufacturing_process_lines"
}

// NewRawMaterialLine creates a new raw-material line for a process
func NewRawMaterialLine(processID, itemID, unitID, warehouseID uuid.UUID, consumedQuantity, unitCost decimal.Decimal, isCritical bool) (*RawMaterialLine, error) {
	if itemID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ITEM", "Raw-material item ID cannot be empty")
	}
	if unitID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_UNIT", "Raw-material unit ID cannot be empty")
	}
	if warehouseID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_WAREHOUSE", "Raw-material warehouse ID cannot be empty")
	}
	if consumedQuantity.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Consumed quantity must be positive")
	}
	if unitCost.IsNegative() {
		return nil, shared.NewDomainError("INVALID_COST", "Unit cost cannot be negative")
	}

	now := time.Now()
	return &RawMaterialLine{
		ID:                uuid.New(),
		ProcessID:         processID,
		ItemID:            itemID,
		UnitID:            unitID,
		WarehouseID:       warehouseID,
		ConsumedQuantity:  consumedQuantity,
		WasteQuantity:     decimal.Zero,
		AvailableQuantity: decimal.Zero,
		ShortageQuantity:  decimal.Zero,
		UnitCost:          unitCost,
		IsCritical:        isCritical,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// UpdatePlannedQuantity updates the planned consumption
func (l *RawMaterialLine) UpdatePlannedQuantity(quantity decimal.Decimal) error {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("INVALID_QUANTITY", "Consumed quantity must be positive")
	}
	l.ConsumedQuantity = quantity
	l.UpdatedAt = time.Now()
	return nil
}

// UpdateUnitCost updates the per-unit cost
func (l *RawMaterialLine) UpdateUnitCost(cost decimal.Decimal) error {
	if cost.IsNegative() {
		return shared.NewDomainError("INVALID_COST", "Unit cost cannot be negative")
	}
	l.UnitCost = cost
	l.UpdatedAt = time.Now()
	return nil
}

// RecordActual records the actual consumed quantity and recomputes waste.
// Zero is a valid recording and means the line consumed nothing.
func (l *RawMaterialLine) RecordActual(actual decimal.Decimal) error {
	if actual.IsNegative() {
		return shared.NewDomainError("INVALID_QUANTITY", "Actual consumed quantity cannot be negative")
	}
	l.ActualConsumedQuantity = &actual
	l.WasteQuantity = decimal.Max(decimal.Zero, actual.Sub(l.ConsumedQuantity))
	l.UpdatedAt = time.Now()
	return nil
}

// ClearActuals resets recorded actuals and availability snapshots (process restart)
func (l *RawMaterialLine) ClearActuals() {
	l.ActualConsumedQuantity = nil
	l.WasteQuantity = decimal.Zero
	l.AvailableQuantity = decimal.Zero
	l.ShortageQuantity = decimal.Zero
	l.UpdatedAt = time.Now()
}

// ApplyAvailability records an availability snapshot on the line
func (l *RawMaterialLine) ApplyAvailability(available decimal.Decimal) {
	l.AvailableQuantity = available
	l.ShortageQuantity = decimal.Max(decimal.Zero, l.ConsumedQuantity.Sub(available))
	l.UpdatedAt = time.Now()
}

// HasShortage returns true if the last availability snapshot showed a shortage
func (l *RawMaterialLine) HasShortage() bool {
	return l.ShortageQuantity.GreaterThan(decimal.Zero)
}

// IsAvailable returns true if the last availability snapshot fully covered the line
func (l *RawMaterialLine) IsAvailable() bool {
	return !l.HasShortage()
}

// EffectiveQuantity returns the actual consumed quantity once recorded, else the plan
func (l *RawMaterialLine) EffectiveQuantity() decimal.Decimal {
	if l.ActualConsumedQuantity != nil {
		return *l.ActualConsumedQuantity
	}
	return l.ConsumedQuantity
}

// TotalCost returns effective quantity times unit cost
func (l *RawMaterialLine) TotalCost() decimal.Decimal {
	return l.EffectiveQuantity().Mul(l.UnitCost)
}
