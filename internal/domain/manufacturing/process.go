package manufacturing

import (
	"fmt"
	"time"

	"github.com/erp/manufacturing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProcessStatus represents the lifecycle status of a manufacturing process
type ProcessStatus string

const (
	ProcessStatusDraft      ProcessStatus = "DRAFT"
	ProcessStatusInProgress ProcessStatus = "IN_PROGRESS"
	ProcessStatusCompleted  ProcessStatus = "COMPLETED"
	ProcessStatusCancelled  ProcessStatus = "CANCELLED"
)

// IsValid checks if the status is a valid ProcessStatus
func (s ProcessStatus) IsValid() bool {
	switch s {
	case ProcessStatusDraft, ProcessStatusInProgress, ProcessStatusCompleted, ProcessStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of ProcessStatus
func (s ProcessStatus) String() string {
	return string(s)
}

// CanTransitionTo checks if the status can transition to the target status.
// Completed is terminal; cancelled may be restarted back to draft.
func (s ProcessStatus) CanTransitionTo(target ProcessStatus) bool {
	switch s {
	case ProcessStatusDraft:
		return target == ProcessStatusInProgress || target == ProcessStatusCancelled
	case ProcessStatusInProgress:
		return target == ProcessStatusCompleted || target == ProcessStatusCancelled
	case ProcessStatusCompleted:
		return false
	case ProcessStatusCancelled:
		return target == ProcessStatusDraft
	}
	return false
}

// ActualConsumption carries a revised actual quantity for one line at completion
type ActualConsumption struct {
	ItemID   uuid.UUID       `json:"item_id"`
	Quantity decimal.Decimal `json:"quantity"`
}

// StockMovement describes one (item, warehouse, quantity) ledger movement
type StockMovement struct {
	ItemID      uuid.UUID
	WarehouseID uuid.UUID
	Quantity    decimal.Decimal
}

// ManufacturingProcess is the aggregate root for one concrete production run:
// raw materials are consumed from the raw-materials warehouse and the finished
// item is produced into the finished-goods warehouse.
type ManufacturingProcess struct {
	shared.TenantAggregateRoot
	ProcessNumber        string            `gorm:"type:varchar(50);not null;uniqueIndex:idx_process_tenant_number,priority:2"`
	FormulaID            *uuid.UUID        `gorm:"type:uuid;index"` // Non-owning reference
	ProductID            uuid.UUID         `gorm:"type:uuid;not null;index"`
	UnitID               uuid.UUID         `gorm:"type:uuid;not null"`
	RawWarehouseID       uuid.UUID         `gorm:"type:uuid;not null"`
	FinishedWarehouseID  uuid.UUID         `gorm:"type:uuid;not null"`
	ProducedQuantity     decimal.Decimal   `gorm:"type:decimal(18,4);not null"` // Target output
	ActualQuantity       *decimal.Decimal  `gorm:"type:decimal(18,4)"`          // Recorded at completion
	Status               ProcessStatus     `gorm:"type:varchar(20);not null;default:'DRAFT'"`
	ProcessDate          time.Time         `gorm:"not null;index"`
	StartDate            time.Time         `gorm:"not null"`
	EndDate              *time.Time        ``
	LaborCost            decimal.Decimal   `gorm:"type:decimal(18,4);not null;default:0"`
	OverheadCost         decimal.Decimal   `gorm:"type:decimal(18,4);not null;default:0"`
	TotalRawMaterialCost decimal.Decimal   `gorm:"type:decimal(18,4);not null;default:0"`
	TotalCost            decimal.Decimal   `gorm:"type:decimal(18,4);not null;default:0"` // Total manufacturing cost
	CostPerUnit          decimal.Decimal   `gorm:"type:decimal(18,4);not null;default:0"`
	CompletionPercentage decimal.Decimal   `gorm:"type:decimal(5,2);not null;default:0"`
	Lines                []RawMaterialLine `gorm:"foreignKey:ProcessID;references:ID"`
	StartedAt            *time.Time        ``
	CompletedAt          *time.Time        ``
	CancelledAt          *time.Time        ``
	CancelReason         string            `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (ManufacturingProcess) TableName() string {
	return "manufacturing_processes"
}

// NewManufacturingProcess creates a new process in draft status
func NewManufacturingProcess(tenantID uuid.UUID, processNumber string, productID, unitID, rawWarehouseID, finishedWarehouseID uuid.UUID, producedQuantity decimal.Decimal, processDate, startDate time.Time) (*ManufacturingProcess, error) {
	if processNumber == "" {
		return nil, shared.NewDomainError("INVALID_PROCESS_NUMBER", "Process number cannot be empty")
	}
	if len(processNumber) > 50 {
		return nil, shared.NewDomainError("INVALID_PROCESS_NUMBER", "Process number cannot exceed 50 characters")
	}
	if productID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PRODUCT", "Finished product ID cannot be empty")
	}
	if unitID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_UNIT", "Output unit ID cannot be empty")
	}
	if rawWarehouseID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_WAREHOUSE", "Raw-materials warehouse ID cannot be empty")
	}
	if finishedWarehouseID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_WAREHOUSE", "Finished-goods warehouse ID cannot be empty")
	}
	if rawWarehouseID == finishedWarehouseID {
		return nil, shared.NewDomainError("WAREHOUSE_COLLISION", "Raw-materials and finished-goods warehouses must differ")
	}
	if producedQuantity.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Produced quantity must be positive")
	}
	if startDate.Before(processDate) {
		return nil, shared.NewDomainError("DATE_ORDER_VIOLATION", "Start date cannot precede process date")
	}

	process := &ManufacturingProcess{
		TenantAggregateRoot:  shared.NewTenantAggregateRoot(tenantID),
		ProcessNumber:        processNumber,
		ProductID:            productID,
		UnitID:               unitID,
		RawWarehouseID:       rawWarehouseID,
		FinishedWarehouseID:  finishedWarehouseID,
		ProducedQuantity:     producedQuantity,
		Status:               ProcessStatusDraft,
		ProcessDate:          processDate,
		StartDate:            startDate,
		LaborCost:            decimal.Zero,
		OverheadCost:         decimal.Zero,
		TotalRawMaterialCost: decimal.Zero,
		TotalCost:            decimal.Zero,
		CostPerUnit:          decimal.Zero,
		CompletionPercentage: decimal.Zero,
		Lines:                make([]RawMaterialLine, 0),
	}

	process.AddDomainEvent(NewProcessCreatedEvent(process))

	return process, nil
}

// SetFormula records the non-owning formula reference
func (p *ManufacturingProcess) SetFormula(formulaID uuid.UUID) error {
	if !p.IsDraft() {
		return shared.NewDomainError("INVALID_STATE", "Cannot change formula on a non-draft process")
	}
	if formulaID == uuid.Nil {
		return shared.NewDomainError("INVALID_FORMULA", "Formula ID cannot be empty")
	}
	p.FormulaID = &formulaID
	p.Touch()
	p.IncrementVersion()
	return nil
}

// SetDates sets the process/start/end dates enforcing their ordering:
// process_date <= start_date <= end_date.
func (p *ManufacturingProcess) SetDates(processDate, startDate time.Time, endDate *time.Time) error {
	if !p.IsDraft() {
		return shared.NewDomainError("INVALID_STATE", "Cannot change dates on a non-draft process")
	}
	if startDate.Before(processDate) {
		return shared.NewDomainError("DATE_ORDER_VIOLATION", "Start date cannot precede process date")
	}
	if endDate != nil && endDate.Before(startDate) {
		return shared.NewDomainError("DATE_ORDER_VIOLATION", "End date cannot precede start date")
	}

	p.ProcessDate = processDate
	p.StartDate = startDate
	p.EndDate = endDate
	p.Touch()
	p.IncrementVersion()
	return nil
}

// SetCosts sets the direct labor and overhead cost inputs
func (p *ManufacturingProcess) SetCosts(labor, overhead decimal.Decimal) error {
	if labor.IsNegative() {
		return shared.NewDomainError("INVALID_COST", "Labor cost cannot be negative")
	}
	if overhead.IsNegative() {
		return shared.NewDomainError("INVALID_COST", "Overhead cost cannot be negative")
	}
	if p.IsCompleted() {
		return shared.NewDomainError("INVALID_STATE", "Costs are frozen on a completed process")
	}

	p.LaborCost = labor
	p.OverheadCost = overhead
	p.Touch()
	p.IncrementVersion()
	return nil
}

// AddLine adds a raw-material line. A nil warehouse defaults the line to the
// process's raw-materials warehouse. Item identifiers must be unique across
// the line set.
func (p *ManufacturingProcess) AddLine(itemID, unitID uuid.UUID, warehouseID *uuid.UUID, consumedQuantity, unitCost decimal.Decimal, isCritical bool) (*RawMaterialLine, error) {
	if !p.IsDraft() {
		return nil, shared.NewDomainError("INVALID_STATE", "Cannot add lines to a non-draft process")
	}

	for _, line := range p.Lines {
		if line.ItemID == itemID {
			return nil, shared.NewDomainError("DUPLICATE_RAW_MATERIAL",
				fmt.Sprintf("Item %s is already referenced by another line", itemID))
		}
	}

	lineWarehouse := p.RawWarehouseID
	if warehouseID != nil && *warehouseID != uuid.Nil {
		lineWarehouse = *warehouseID
	}

	line, err := NewRawMaterialLine(p.ID, itemID, unitID, lineWarehouse, consumedQuantity, unitCost, isCritical)
	if err != nil {
		return nil, err
	}

	p.Lines = append(p.Lines, *line)
	p.Touch()
	p.IncrementVersion()

	return line, nil
}

// RemoveLine removes a raw-material line from a draft process
func (p *ManufacturingProcess) RemoveLine(lineID uuid.UUID) error {
	if !p.IsDraft() {
		return shared.NewDomainError("INVALID_STATE", "Cannot remove lines from a non-draft process")
	}

	for idx, line := range p.Lines {
		if line.ID == lineID {
			p.Lines = append(p.Lines[:idx], p.Lines[idx+1:]...)
			p.Touch()
			p.IncrementVersion()
			return nil
		}
	}

	return shared.NewDomainError("LINE_NOT_FOUND", "Raw-material line not found")
}

// UpdateLinePlan updates the planned quantity and unit cost of a draft line
func (p *ManufacturingProcess) UpdateLinePlan(lineID uuid.UUID, quantity, unitCost decimal.Decimal) error {
	if !p.IsDraft() {
		return shared.NewDomainError("INVALID_STATE", "Cannot update lines on a non-draft process")
	}

	for idx := range p.Lines {
		if p.Lines[idx].ID == lineID {
			if err := p.Lines[idx].UpdatePlannedQuantity(quantity); err != nil {
				return err
			}
			if err := p.Lines[idx].UpdateUnitCost(unitCost); err != nil {
				return err
			}
			p.Touch()
			p.IncrementVersion()
			return nil
		}
	}

	return shared.NewDomainError("LINE_NOT_FOUND", "Raw-material line not found")
}

// ApplyAvailability records per-line availability snapshots from the checker
func (p *ManufacturingProcess) ApplyAvailability(reports []AvailabilityReport) {
	byLine := make(map[uuid.UUID]AvailabilityReport, len(reports))
	for _, r := range reports {
		byLine[r.LineID] = r
	}
	for idx := range p.Lines {
		if r, ok := byLine[p.Lines[idx].ID]; ok {
			p.Lines[idx].ApplyAvailability(r.AvailableQuantity)
		}
	}
}

// CriticalShortages returns the critical lines whose last availability
// snapshot showed a shortage. Non-critical shortages are warnings only and do
// not appear here.
func (p *ManufacturingProcess) CriticalShortages() []RawMaterialLine {
	short := make([]RawMaterialLine, 0)
	for _, line := range p.Lines {
		if line.IsCritical && line.HasShortage() {
			short = append(short, line)
		}
	}
	return short
}

// ShortageWarnings returns the non-critical lines with a recorded shortage
func (p *ManufacturingProcess) ShortageWarnings() []RawMaterialLine {
	short := make([]RawMaterialLine, 0)
	for _, line := range p.Lines {
		if !line.IsCritical && line.HasShortage() {
			short = append(short, line)
		}
	}
	return short
}

// DebitPlan returns the stock movements to debit when the process starts:
// each line's planned quantity from its source warehouse.
func (p *ManufacturingProcess) DebitPlan() []StockMovement {
	movements := make([]StockMovement, 0, len(p.Lines))
	for _, line := range p.Lines {
		movements = append(movements, StockMovement{
			ItemID:      line.ItemID,
			WarehouseID: line.WarehouseID,
			Quantity:    line.ConsumedQuantity,
		})
	}
	return movements
}

// CreditQuantity returns the quantity credited to the finished-goods warehouse
// at completion: the recorded actual output when present, else the target.
func (p *ManufacturingProcess) CreditQuantity() decimal.Decimal {
	if p.ActualQuantity != nil && p.ActualQuantity.GreaterThan(decimal.Zero) {
		return *p.ActualQuantity
	}
	return p.ProducedQuantity
}

// Start transitions the process from draft to in_progress. Availability must
// have been applied beforehand; a critical shortage blocks the transition and
// leaves the process in draft. Actual consumption is initialized to the plan.
// The caller is responsible for debiting the plan from the stock ledger in the
// same atomic unit as persisting this transition.
func (p *ManufacturingProcess) Start() error {
	if !p.Status.CanTransitionTo(ProcessStatusInProgress) {
		return shared.NewDomainError("INVALID_STATUS_TRANSITION",
			fmt.Sprintf("Cannot start process in %s status", p.Status))
	}
	if len(p.Lines) == 0 {
		return shared.NewDomainError("NO_LINES", "Cannot start a process without raw-material lines")
	}
	if critical := p.CriticalShortages(); len(critical) > 0 {
		return shared.NewDomainError("INSUFFICIENT_CRITICAL_STOCK",
			fmt.Sprintf("%d critical raw-material line(s) have insufficient stock", len(critical)))
	}

	now := time.Now()
	for idx := range p.Lines {
		planned := p.Lines[idx].ConsumedQuantity
		p.Lines[idx].ActualConsumedQuantity = &planned
		p.Lines[idx].WasteQuantity = decimal.Zero
		p.Lines[idx].UpdatedAt = now
	}

	p.Status = ProcessStatusInProgress
	p.StartedAt = &now
	p.Touch()
	p.IncrementVersion()

	p.AddDomainEvent(NewProcessStartedEvent(p))

	return nil
}

// Complete transitions the process from in_progress to completed. Revised
// actuals may be supplied per item; waste is recomputed, the produced quantity
// is credited by the caller, and cost fields are computed and frozen.
func (p *ManufacturingProcess) Complete(actuals []ActualConsumption, actualQuantity *decimal.Decimal) error {
	if !p.Status.CanTransitionTo(ProcessStatusCompleted) {
		return shared.NewDomainError("INVALID_STATUS_TRANSITION",
			fmt.Sprintf("Cannot complete process in %s status", p.Status))
	}
	if actualQuantity != nil && actualQuantity.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("INVALID_QUANTITY", "Actual produced quantity must be positive")
	}

	for _, a := range actuals {
		found := false
		for idx := range p.Lines {
			if p.Lines[idx].ItemID == a.ItemID {
				if err := p.Lines[idx].RecordActual(a.Quantity); err != nil {
					return err
				}
				found = true
				break
			}
		}
		if !found {
			return shared.NewDomainError("LINE_NOT_FOUND",
				fmt.Sprintf("Item %s not found in process lines", a.ItemID))
		}
	}

	p.ActualQuantity = actualQuantity

	summary := AggregateCosts(p.Lines, p.LaborCost, p.OverheadCost, p.CreditQuantity())
	p.TotalRawMaterialCost = summary.TotalRawMaterialCost
	p.TotalCost = summary.TotalManufacturingCost
	p.CostPerUnit = summary.CostPerUnit

	now := time.Now()
	if p.EndDate == nil {
		p.EndDate = &now
	}
	p.Status = ProcessStatusCompleted
	p.CompletedAt = &now
	p.CompletionPercentage = decimal.NewFromInt(100)
	p.Touch()
	p.IncrementVersion()

	p.AddDomainEvent(NewProcessCompletedEvent(p))

	return nil
}

// Cancel transitions the process to cancelled from any non-terminal state.
// From in_progress the caller must reverse every previously-debited quantity
// before persisting, or material would be silently lost. The completion
// percentage is frozen at its last value.
func (p *ManufacturingProcess) Cancel(reason string) error {
	if !p.Status.CanTransitionTo(ProcessStatusCancelled) {
		return shared.NewDomainError("INVALID_STATUS_TRANSITION",
			fmt.Sprintf("Cannot cancel process in %s status", p.Status))
	}
	if reason == "" {
		return shared.NewDomainError("INVALID_REASON", "Cancel reason is required")
	}

	wasStarted := p.Status == ProcessStatusInProgress
	now := time.Now()
	p.Status = ProcessStatusCancelled
	p.CancelledAt = &now
	p.CancelReason = reason
	p.Touch()
	p.IncrementVersion()

	p.AddDomainEvent(NewProcessCancelledEvent(p, wasStarted))

	return nil
}

// Restart transitions a cancelled process back to draft, clearing recorded
// actuals and availability snapshots. No stock moves on this transition.
func (p *ManufacturingProcess) Restart() error {
	if !p.Status.CanTransitionTo(ProcessStatusDraft) {
		return shared.NewDomainError("INVALID_STATUS_TRANSITION",
			fmt.Sprintf("Cannot restart process in %s status", p.Status))
	}

	for idx := range p.Lines {
		p.Lines[idx].ClearActuals()
	}

	p.Status = ProcessStatusDraft
	p.StartedAt = nil
	p.CancelledAt = nil
	p.CancelReason = ""
	p.ActualQuantity = nil
	p.CompletionPercentage = decimal.Zero
	p.TotalRawMaterialCost = decimal.Zero
	p.TotalCost = decimal.Zero
	p.CostPerUnit = decimal.Zero
	p.Touch()
	p.IncrementVersion()

	p.AddDomainEvent(NewProcessRestartedEvent(p))

	return nil
}

// UpdateProgress records an explicit completion percentage while in progress
func (p *ManufacturingProcess) UpdateProgress(percentage decimal.Decimal) error {
	if p.Status != ProcessStatusInProgress {
		return shared.NewDomainError("INVALID_STATE", "Progress can only be updated on an in-progress process")
	}
	if percentage.IsNegative() || percentage.GreaterThan(decimal.NewFromInt(100)) {
		return shared.NewDomainError("INVALID_PROGRESS", "Completion percentage must be within [0, 100]")
	}
	p.CompletionPercentage = percentage
	p.Touch()
	p.IncrementVersion()
	return nil
}

// Progress returns the derived completion percentage at the given time:
// 0 for draft, 100 for completed, the frozen value for cancelled, and for an
// in-progress process the elapsed share of StartDate..EndDate when both are
// known, else the last explicitly recorded value.
func (p *ManufacturingProcess) Progress(now time.Time) decimal.Decimal {
	switch p.Status {
	case ProcessStatusDraft:
		return decimal.Zero
	case ProcessStatusCompleted:
		return decimal.NewFromInt(100)
	case ProcessStatusCancelled:
		return p.CompletionPercentage
	}

	if p.EndDate != nil {
		total := p.EndDate.Sub(p.StartDate)
		if total > 0 {
			elapsed := now.Sub(p.StartDate)
			if elapsed <= 0 {
				return decimal.Zero
			}
			if elapsed >= total {
				return decimal.NewFromInt(100)
			}
			ratio := decimal.NewFromFloat(elapsed.Seconds()).Div(decimal.NewFromFloat(total.Seconds()))
			return ratio.Mul(decimal.NewFromInt(100)).Round(2)
		}
	}
	return p.CompletionPercentage
}

// GetLineByItem returns a line by its item ID
func (p *ManufacturingProcess) GetLineByItem(itemID uuid.UUID) *RawMaterialLine {
	for idx := range p.Lines {
		if p.Lines[idx].ItemID == itemID {
			return &p.Lines[idx]
		}
	}
	return nil
}

// LineCount returns the number of raw-material lines
func (p *ManufacturingProcess) LineCount() int {
	return len(p.Lines)
}

// IsDraft returns true if the process is in draft status
func (p *ManufacturingProcess) IsDraft() bool {
	return p.Status == ProcessStatusDraft
}

// IsInProgress returns true if the process is executing
func (p *ManufacturingProcess) IsInProgress() bool {
	return p.Status == ProcessStatusInProgress
}

// IsCompleted returns true if the process is completed
func (p *ManufacturingProcess) IsCompleted() bool {
	return p.Status == ProcessStatusCompleted
}

// IsCancelled returns true if the process is cancelled
func (p *ManufacturingProcess) IsCancelled() bool {
	return p.Status == ProcessStatusCancelled
}

// IsTerminal returns true if no further transition is possible
func (p *ManufacturingProcess) IsTerminal() bool {
	return p.IsCompleted()
}
