package manufacturing

import (
	"fmt"
	"time"

	"github.com/erp/manufacturing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FormulaStatus represents the lifecycle status of a manufacturing formula
type FormulaStatus string

const (
	FormulaStatusDraft    FormulaStatus = "DRAFT"
	FormulaStatusActive   FormulaStatus = "ACTIVE"
	FormulaStatusInactive FormulaStatus = "INACTIVE"
	FormulaStatusArchived FormulaStatus = "ARCHIVED"
)

// IsValid checks if the status is a valid FormulaStatus
func (s FormulaStatus) IsValid() bool {
	switch s {
	case FormulaStatusDraft, FormulaStatusActive, FormulaStatusInactive, FormulaStatusArchived:
		return true
	}
	return false
}

// String returns the string representation of FormulaStatus
func (s FormulaStatus) String() string {
	return string(s)
}

// CanTransitionTo checks if the status can transition to the target status.
// Archived is terminal; every other transition follows the explicit table.
func (s FormulaStatus) CanTransitionTo(target FormulaStatus) bool {
	switch s {
	case FormulaStatusDraft:
		return target == FormulaStatusActive || target == FormulaStatusInactive || target == FormulaStatusArchived
	case FormulaStatusActive:
		return target == FormulaStatusInactive || target == FormulaStatusArchived
	case FormulaStatusInactive:
		return target == FormulaStatusActive || target == FormulaStatusArchived
	case FormulaStatusArchived:
		return false
	}
	return false
}

// PriceTier selects which purchase price tier is used for raw-material cost lookups
type PriceTier string

const (
	PriceTierFirst  PriceTier = "FIRST"
	PriceTierSecond PriceTier = "SECOND"
	PriceTierThird  PriceTier = "THIRD"
)

// IsValid checks if the tier is a valid PriceTier
func (p PriceTier) IsValid() bool {
	switch p {
	case PriceTierFirst, PriceTierSecond, PriceTierThird:
		return true
	}
	return false
}

// EfficiencyBounds is the accepted band for produced/consumed ratio.
// The defaults are a heuristic guard against data-entry mistakes, not a
// physical law, and can be overridden from configuration.
type EfficiencyBounds struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

// DefaultEfficiencyBounds returns the default [0.1, 10] band
func DefaultEfficiencyBounds() EfficiencyBounds {
	return EfficiencyBounds{
		Min: decimal.NewFromFloat(0.1),
		Max: decimal.NewFromInt(10),
	}
}

// Contains reports whether the given ratio lies inside the band
func (b EfficiencyBounds) Contains(ratio decimal.Decimal) bool {
	return ratio.GreaterThanOrEqual(b.Min) && ratio.LessThanOrEqual(b.Max)
}

// ManufacturingFormula is the aggregate root for a reusable bill-of-materials
// recipe: a quantity of raw material turned into a quantity of a finished item,
// plus its cost components and effective window.
type ManufacturingFormula struct {
	shared.TenantAggregateRoot
	FormulaNumber    string           `gorm:"type:varchar(50);not null;uniqueIndex:idx_formula_tenant_number,priority:2"`
	Name             string           `gorm:"type:varchar(200)"`
	Description      string           `gorm:"type:text"`
	ProductID        uuid.UUID        `gorm:"type:uuid;not null;index"`
	UnitID           uuid.UUID        `gorm:"type:uuid;not null"`
	ConsumedQuantity *decimal.Decimal `gorm:"type:decimal(18,4)"`
	ProducedQuantity *decimal.Decimal `gorm:"type:decimal(18,4)"`
	LaborCost        decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0"`
	OperatingCost    decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0"`
	WasteCost        decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0"`
	PriceTier        PriceTier        `gorm:"type:varchar(10);not null;default:'FIRST'"`
	EffectiveFrom    *time.Time       `gorm:"index"`
	EffectiveTo      *time.Time
	Status           FormulaStatus `gorm:"type:varchar(20);not null;default:'DRAFT'"`
}

// TableName returns the table name for GORM
func (ManufacturingFormula) TableName() string {
	return "manufacturing_formulas"
}

// NewManufacturingFormula creates a new formula in draft status
func NewManufacturingFormula(tenantID uuid.UUID, formulaNumber string, productID, unitID uuid.UUID) (*ManufacturingFormula, error) {
	if formulaNumber == "" {
		return nil, shared.NewDomainError("INVALID_FORMULA_NUMBER", "Formula number cannot be empty")
	}
	if len(formulaNumber) > 50 {
		return nil, shared.NewDomainError("INVALID_FORMULA_NUMBER", "Formula number cannot exceed 50 characters")
	}
	if productID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PRODUCT", "Finished product ID cannot be empty")
	}
	if unitID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_UNIT", "Output unit ID cannot be empty")
	}

	formula := &ManufacturingFormula{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		FormulaNumber:       formulaNumber,
		ProductID:           productID,
		UnitID:              unitID,
		LaborCost:           decimal.Zero,
		OperatingCost:       decimal.Zero,
		WasteCost:           decimal.Zero,
		PriceTier:           PriceTierFirst,
		Status:              FormulaStatusDraft,
	}

	formula.AddDomainEvent(NewFormulaCreatedEvent(formula))

	return formula, nil
}

// SetQuantities sets the consumed/produced quantity pair. Both must be given
// together or both nil; when both are positive the efficiency ratio must lie
// inside the given band.
func (f *ManufacturingFormula) SetQuantities(consumed, produced *decimal.Decimal, bounds EfficiencyBounds) error {
	if !f.CanModify() {
		return shared.NewDomainError("FORMULA_ARCHIVED", "Archived formulas cannot be modified")
	}
	if (consumed == nil) != (produced == nil) {
		return shared.NewDomainError("INVALID_QUANTITY_PAIR", "Consumed and produced quantities must be set together")
	}
	if consumed != nil {
		if consumed.LessThanOrEqual(decimal.Zero) {
			return shared.NewDomainError("INVALID_QUANTITY", "Consumed quantity must be positive")
		}
		if produced.LessThanOrEqual(decimal.Zero) {
			return shared.NewDomainError("INVALID_QUANTITY", "Produced quantity must be positive")
		}
		ratio := produced.Div(*consumed)
		if !bounds.Contains(ratio) {
			return shared.NewDomainError("UNREALISTIC_EFFICIENCY",
				fmt.Sprintf("Efficiency ratio %s is outside the accepted band [%s, %s]",
					ratio.String(), bounds.Min.String(), bounds.Max.String()))
		}
	}

	f.ConsumedQuantity = consumed
	f.ProducedQuantity = produced
	f.Touch()
	f.IncrementVersion()

	return nil
}

// SetCosts sets the labor, operating and waste cost components
func (f *ManufacturingFormula) SetCosts(labor, operating, waste decimal.Decimal) error {
	if !f.CanModify() {
		return shared.NewDomainError("FORMULA_ARCHIVED", "Archived formulas cannot be modified")
	}
	if labor.IsNegative() {
		return shared.NewDomainError("INVALID_COST", "Labor cost cannot be negative")
	}
	if operating.IsNegative() {
		return shared.NewDomainError("INVALID_COST", "Operating cost cannot be negative")
	}
	if waste.IsNegative() {
		return shared.NewDomainError("INVALID_COST", "Waste cost cannot be negative")
	}

	f.LaborCost = labor
	f.OperatingCost = operating
	f.WasteCost = waste
	f.Touch()
	f.IncrementVersion()

	return nil
}

// SetPriceTier selects the purchase price tier used for cost lookups
func (f *ManufacturingFormula) SetPriceTier(tier PriceTier) error {
	if !f.CanModify() {
		return shared.NewDomainError("FORMULA_ARCHIVED", "Archived formulas cannot be modified")
	}
	if !tier.IsValid() {
		return shared.NewDomainError("INVALID_PRICE_TIER", fmt.Sprintf("Unknown price tier %q", string(tier)))
	}
	f.PriceTier = tier
	f.Touch()
	f.IncrementVersion()
	return nil
}

// SetEffectiveWindow sets the effective date window. Either bound may be nil
// for an open-ended window; when both are given, from must precede to.
func (f *ManufacturingFormula) SetEffectiveWindow(from, to *time.Time) error {
	if !f.CanModify() {
		return shared.NewDomainError("FORMULA_ARCHIVED", "Archived formulas cannot be modified")
	}
	if from != nil && to != nil && !to.After(*from) {
		return shared.NewDomainError("INVALID_EFFECTIVE_WINDOW", "Effective-to must be after effective-from")
	}
	f.EffectiveFrom = from
	f.EffectiveTo = to
	f.Touch()
	f.IncrementVersion()
	return nil
}

// SetName sets the human-readable name and description
func (f *ManufacturingFormula) SetName(name, description string) error {
	if !f.CanModify() {
		return shared.NewDomainError("FORMULA_ARCHIVED", "Archived formulas cannot be modified")
	}
	f.Name = name
	f.Description = description
	f.Touch()
	f.IncrementVersion()
	return nil
}

// ChangeStatus transitions the formula along the status table.
// Any transition not in the table is rejected in full.
func (f *ManufacturingFormula) ChangeStatus(target FormulaStatus) error {
	if !target.IsValid() {
		return shared.NewDomainError("INVALID_STATUS", fmt.Sprintf("Unknown formula status %q", string(target)))
	}
	if !f.Status.CanTransitionTo(target) {
		return shared.NewDomainError("INVALID_STATUS_TRANSITION",
			fmt.Sprintf("Cannot transition formula from %s to %s", f.Status, target))
	}

	from := f.Status
	f.Status = target
	f.Touch()
	f.IncrementVersion()

	f.AddDomainEvent(NewFormulaStatusChangedEvent(f, from, target))

	return nil
}

// Archive transitions the formula to its terminal archived status
func (f *ManufacturingFormula) Archive() error {
	return f.ChangeStatus(FormulaStatusArchived)
}

// Efficiency returns the produced/consumed ratio, or nil when quantities are absent
func (f *ManufacturingFormula) Efficiency() *decimal.Decimal {
	if f.ConsumedQuantity == nil || f.ProducedQuantity == nil || f.ConsumedQuantity.IsZero() {
		return nil
	}
	ratio := f.ProducedQuantity.Div(*f.ConsumedQuantity)
	return &ratio
}

// IsEffectiveAt reports whether the formula's effective window covers the given time
func (f *ManufacturingFormula) IsEffectiveAt(at time.Time) bool {
	if f.EffectiveFrom != nil && at.Before(*f.EffectiveFrom) {
		return false
	}
	if f.EffectiveTo != nil && at.After(*f.EffectiveTo) {
		return false
	}
	return true
}

// IsArchived returns true if the formula is in its terminal status
func (f *ManufacturingFormula) IsArchived() bool {
	return f.Status == FormulaStatusArchived
}

// IsActive returns true if the formula is active
func (f *ManufacturingFormula) IsActive() bool {
	return f.Status == FormulaStatusActive
}

// CanModify returns true if field changes are allowed (archived formulas are frozen)
func (f *ManufacturingFormula) CanModify() bool {
	return f.Status != FormulaStatusArchived
}
