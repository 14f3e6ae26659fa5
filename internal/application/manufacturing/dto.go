package manufacturing

import (
	"time"

	"github.com/erp/manufacturing/internal/domain/manufacturing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateFormulaRequest represents a request to create a manufacturing formula
type CreateFormulaRequest struct {
	FormulaNumber    string           `json:"formula_number" binding:"required,max=50"`
	Name             string           `json:"name" binding:"max=200"`
	Description      string           `json:"description"`
	ProductID        uuid.UUID        `json:"product_id" binding:"required"`
	UnitID           uuid.UUID        `json:"unit_id" binding:"required"`
	ConsumedQuantity *decimal.Decimal `json:"consumed_quantity"`
	ProducedQuantity *decimal.Decimal `json:"produced_quantity"`
	LaborCost        *decimal.Decimal `json:"labor_cost"`
	OperatingCost    *decimal.Decimal `json:"operating_cost"`
	WasteCost        *decimal.Decimal `json:"waste_cost"`
	PriceTier        string           `json:"price_tier" binding:"omitempty,oneof=FIRST SECOND THIRD"`
	EffectiveFrom    *time.Time       `json:"effective_from"`
	EffectiveTo      *time.Time       `json:"effective_to"`
}

// UpdateFormulaRequest represents a request to update a draft or active formula
type UpdateFormulaRequest struct {
	Name             *string          `json:"name" binding:"omitempty,max=200"`
	Description      *string          `json:"description"`
	ConsumedQuantity *decimal.Decimal `json:"consumed_quantity"`
	ProducedQuantity *decimal.Decimal `json:"produced_quantity"`
	LaborCost        *decimal.Decimal `json:"labor_cost"`
	OperatingCost    *decimal.Decimal `json:"operating_cost"`
	WasteCost        *decimal.Decimal `json:"waste_cost"`
	PriceTier        *string          `json:"price_tier" binding:"omitempty,oneof=FIRST SECOND THIRD"`
	EffectiveFrom    *time.Time       `json:"effective_from"`
	EffectiveTo      *time.Time       `json:"effective_to"`
}

// ChangeFormulaStatusRequest represents a formula status transition request
type ChangeFormulaStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=DRAFT ACTIVE INACTIVE ARCHIVED"`
}

// FormulaResponse represents a manufacturing formula in API responses
type FormulaResponse struct {
	ID               uuid.UUID        `json:"id"`
	TenantID         uuid.UUID        `json:"tenant_id"`
	FormulaNumber    string           `json:"formula_number"`
	Name             string           `json:"name"`
	Description      string           `json:"description"`
	ProductID        uuid.UUID        `json:"product_id"`
	UnitID           uuid.UUID        `json:"unit_id"`
	ConsumedQuantity *decimal.Decimal `json:"consumed_quantity"`
	ProducedQuantity *decimal.Decimal `json:"produced_quantity"`
	Efficiency       *decimal.Decimal `json:"efficiency"`
	LaborCost        decimal.Decimal  `json:"labor_cost"`
	OperatingCost    decimal.Decimal  `json:"operating_cost"`
	WasteCost        decimal.Decimal  `json:"waste_cost"`
	PriceTier        string           `json:"price_tier"`
	EffectiveFrom    *time.Time       `json:"effective_from"`
	EffectiveTo      *time.Time       `json:"effective_to"`
	Status           string           `json:"status"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
	Version          int              `json:"version"`
}

// FormulaListFilter represents filter options for formula lists
type FormulaListFilter struct {
	Search      string     `form:"search"`
	Status      *string    `form:"status" binding:"omitempty,oneof=DRAFT ACTIVE INACTIVE ARCHIVED"`
	ProductID   *uuid.UUID `form:"product_id"`
	PriceTier   *string    `form:"price_tier" binding:"omitempty,oneof=FIRST SECOND THIRD"`
	EffectiveAt *time.Time `form:"effective_at"`
	Page        int        `form:"page" binding:"min=0"`
	PageSize    int        `form:"page_size" binding:"min=0,max=100"`
	OrderBy     string     `form:"order_by"`
	OrderDir    string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// ToFormulaResponse converts a domain formula to its response form
func ToFormulaResponse(f *manufacturing.ManufacturingFormula) FormulaResponse {
	return FormulaResponse{
		ID:               f.ID,
		TenantID:         f.TenantID,
		FormulaNumber:    f.FormulaNumber,
		Name:             f.Name,
		Description:      f.Description,
		ProductID:        f.ProductID,
		UnitID:           f.UnitID,
		ConsumedQuantity: f.ConsumedQuantity,
		ProducedQuantity: f.ProducedQuantity,
		Efficiency:       f.Efficiency(),
		LaborCost:        f.LaborCost,
		OperatingCost:    f.OperatingCost,
		WasteCost:        f.WasteCost,
		PriceTier:        string(f.PriceTier),
		EffectiveFrom:    f.EffectiveFrom,
		EffectiveTo:      f.EffectiveTo,
		Status:           f.Status.String(),
		CreatedAt:        f.CreatedAt,
		UpdatedAt:        f.UpdatedAt,
		Version:          f.GetVersion(),
	}
}

// RawMaterialLineRequest represents one raw-material line in a process request
type RawMaterialLineRequest struct {
	ItemID           uuid.UUID       `json:"item_id" binding:"required"`
	UnitID           uuid.UUID       `json:"unit_id" binding:"required"`
	WarehouseID      *uuid.UUID      `json:"warehouse_id"`
	ConsumedQuantity decimal.Decimal `json:"consumed_quantity" binding:"required"`
	UnitCost         decimal.Decimal `json:"unit_cost"`
	IsCritical       bool            `json:"is_critical"`
}

// CreateProcessRequest represents a request to create a manufacturing process
type CreateProcessRequest struct {
	ProcessNumber       string                   `json:"process_number" binding:"required,max=50"`
	FormulaID           *uuid.UUID               `json:"formula_id"`
	ProductID           uuid.UUID                `json:"product_id" binding:"required"`
	UnitID              uuid.UUID                `json:"unit_id" binding:"required"`
	RawWarehouseID      uuid.UUID                `json:"raw_warehouse_id" binding:"required"`
	FinishedWarehouseID uuid.UUID                `json:"finished_warehouse_id" binding:"required"`
	ProducedQuantity    decimal.Decimal          `json:"produced_quantity" binding:"required"`
	ProcessDate         time.Time                `json:"process_date" binding:"required"`
	StartDate           time.Time                `json:"start_date" binding:"required"`
	EndDate             *time.Time               `json:"end_date"`
	LaborCost           *decimal.Decimal         `json:"labor_cost"`
	OverheadCost        *decimal.Decimal         `json:"overhead_cost"`
	RawMaterials        []RawMaterialLineRequest `json:"raw_materials" binding:"dive"`
}

// UpdateProcessRequest represents a request to update a draft process
type UpdateProcessRequest struct {
	ProcessDate  *time.Time               `json:"process_date"`
	StartDate    *time.Time               `json:"start_date"`
	EndDate      *time.Time               `json:"end_date"`
	LaborCost    *decimal.Decimal         `json:"labor_cost"`
	OverheadCost *decimal.Decimal         `json:"overhead_cost"`
	RawMaterials []RawMaterialLineRequest `json:"raw_materials" binding:"omitempty,dive"`
}

// ActualConsumptionRequest represents one revised actual at completion
type ActualConsumptionRequest struct {
	ItemID   uuid.UUID       `json:"item_id" binding:"required"`
	Quantity decimal.Decimal `json:"quantity" binding:"required"`
}

// CompleteProcessRequest represents a request to complete a process
type CompleteProcessRequest struct {
	ActualQuantity *decimal.Decimal           `json:"actual_quantity"`
	Actuals        []ActualConsumptionRequest `json:"actuals" binding:"omitempty,dive"`
}

// CancelProcessRequest represents a request to cancel a process
type CancelProcessRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// UpdateProgressRequest represents an explicit completion percentage update
type UpdateProgressRequest struct {
	CompletionPercentage decimal.Decimal `json:"completion_percentage" binding:"required"`
}

// RawMaterialLineResponse represents one raw-material line in API responses
type RawMaterialLineResponse struct {
	ID                     uuid.UUID       `json:"id"`
	ItemID                 uuid.UUID       `json:"item_id"`
	UnitID                 uuid.UUID       `json:"unit_id"`
	WarehouseID            uuid.UUID       `json:"warehouse_id"`
	ConsumedQuantity       decimal.Decimal  `json:"consumed_quantity"`
	ActualConsumedQuantity *decimal.Decimal `json:"actual_consumed_quantity,omitempty"`
	WasteQuantity          decimal.Decimal  `json:"waste_quantity"`
	AvailableQuantity      decimal.Decimal  `json:"available_quantity"`
	ShortageQuantity       decimal.Decimal  `json:"shortage_quantity"`
	UnitCost               decimal.Decimal  `json:"unit_cost"`
	TotalCost              decimal.Decimal  `json:"total_cost"`
	IsCritical             bool             `json:"is_critical"`
}

// ProcessResponse represents a manufacturing process in API responses
type ProcessResponse struct {
	ID                   uuid.UUID                 `json:"id"`
	TenantID             uuid.UUID                 `json:"tenant_id"`
	ProcessNumber        string                    `json:"process_number"`
	FormulaID            *uuid.UUID                `json:"formula_id"`
	ProductID            uuid.UUID                 `json:"product_id"`
	UnitID               uuid.UUID                 `json:"unit_id"`
	RawWarehouseID       uuid.UUID                 `json:"raw_warehouse_id"`
	FinishedWarehouseID  uuid.UUID                 `json:"finished_warehouse_id"`
	ProducedQuantity     decimal.Decimal           `json:"produced_quantity"`
	ActualQuantity       *decimal.Decimal          `json:"actual_quantity"`
	Status               string                    `json:"status"`
	ProcessDate          time.Time                 `json:"process_date"`
	StartDate            time.Time                 `json:"start_date"`
	EndDate              *time.Time                `json:"end_date"`
	LaborCost            decimal.Decimal           `json:"labor_cost"`
	OverheadCost         decimal.Decimal           `json:"overhead_cost"`
	TotalRawMaterialCost decimal.Decimal           `json:"total_raw_material_cost"`
	TotalCost            decimal.Decimal           `json:"total_cost"`
	CostPerUnit          decimal.Decimal           `json:"cost_per_unit"`
	CompletionPercentage decimal.Decimal           `json:"completion_percentage"`
	RawMaterials         []RawMaterialLineResponse `json:"raw_materials"`
	StartedAt            *time.Time                `json:"started_at"`
	CompletedAt          *time.Time                `json:"completed_at"`
	CancelledAt          *time.Time                `json:"cancelled_at"`
	CancelReason         string                    `json:"cancel_reason,omitempty"`
	CreatedAt            time.Time                 `json:"created_at"`
	UpdatedAt            time.Time                 `json:"updated_at"`
	Version              int                       `json:"version"`
}

// ProcessListFilter represents filter options for process lists
type ProcessListFilter struct {
	Search    string     `form:"search"`
	Status    *string    `form:"status" binding:"omitempty,oneof=DRAFT IN_PROGRESS COMPLETED CANCELLED"`
	ProductID *uuid.UUID `form:"product_id"`
	FormulaID *uuid.UUID `form:"formula_id"`
	DateFrom  *time.Time `form:"date_from"`
	DateTo    *time.Time `form:"date_to"`
	Page      int        `form:"page" binding:"min=0"`
	PageSize  int        `form:"page_size" binding:"min=0,max=100"`
	OrderBy   string     `form:"order_by"`
	OrderDir  string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// AvailabilityLineResponse represents one line of an availability check response
type AvailabilityLineResponse struct {
	LineID            uuid.UUID       `json:"line_id"`
	ItemID            uuid.UUID       `json:"item_id"`
	WarehouseID       uuid.UUID       `json:"warehouse_id"`
	RequiredQuantity  decimal.Decimal `json:"required_quantity"`
	AvailableQuantity decimal.Decimal `json:"available_quantity"`
	ShortageQuantity  decimal.Decimal `json:"shortage_quantity"`
	IsCritical        bool            `json:"is_critical"`
	IsAvailable       bool            `json:"is_available"`
}

// AvailabilityResponse represents the result of a process availability check
type AvailabilityResponse struct {
	ProcessID        uuid.UUID                  `json:"process_id"`
	CanStart         bool                       `json:"can_start"`
	CriticalShortage bool                       `json:"critical_shortage"`
	Lines            []AvailabilityLineResponse `json:"lines"`
}

// CostSummaryResponse represents the cost rollup of a process
type CostSummaryResponse struct {
	ProcessID              uuid.UUID       `json:"process_id"`
	TotalRawMaterialCost   decimal.Decimal `json:"total_raw_material_cost"`
	LaborCost              decimal.Decimal `json:"labor_cost"`
	OverheadCost           decimal.Decimal `json:"overhead_cost"`
	TotalManufacturingCost decimal.Decimal `json:"total_manufacturing_cost"`
	CostPerUnit            decimal.Decimal `json:"cost_per_unit"`
}

// ToRawMaterialLineResponse converts a domain line to its response form
func ToRawMaterialLineResponse(l *manufacturing.RawMaterialLine) RawMaterialLineResponse {
	return RawMaterialLineResponse{
		ID:                     l.ID,
		ItemID:                 l.ItemID,
		UnitID:                 l.UnitID,
		WarehouseID:            l.WarehouseID,
		ConsumedQuantity:       l.ConsumedQuantity,
		ActualConsumedQuantity: l.ActualConsumedQuantity,
		WasteQuantity:          l.WasteQuantity,
		AvailableQuantity:      l.AvailableQuantity,
		ShortageQuantity:       l.ShortageQuantity,
		UnitCost:               l.UnitCost,
		TotalCost:              l.TotalCost(),
		IsCritical:             l.IsCritical,
	}
}

// ToProcessResponse converts a domain process to its response form
func ToProcessResponse(p *manufacturing.ManufacturingProcess) ProcessResponse {
	lines := make([]RawMaterialLineResponse, 0, len(p.Lines))
	for idx := range p.Lines {
		lines = append(lines, ToRawMaterialLineResponse(&p.Lines[idx]))
	}

	return ProcessResponse{
		ID:                   p.ID,
		TenantID:             p.TenantID,
		ProcessNumber:        p.ProcessNumber,
		FormulaID:            p.FormulaID,
		ProductID:            p.ProductID,
		UnitID:               p.UnitID,
		RawWarehouseID:       p.RawWarehouseID,
		FinishedWarehouseID:  p.FinishedWarehouseID,
		ProducedQuantity:     p.ProducedQuantity,
		ActualQuantity:       p.ActualQuantity,
		Status:               p.Status.String(),
		ProcessDate:          p.ProcessDate,
		StartDate:            p.StartDate,
		EndDate:              p.EndDate,
		LaborCost:            p.LaborCost,
		OverheadCost:         p.OverheadCost,
		TotalRawMaterialCost: p.TotalRawMaterialCost,
		TotalCost:            p.TotalCost,
		CostPerUnit:          p.CostPerUnit,
		CompletionPercentage: p.CompletionPercentage,
		RawMaterials:         lines,
		StartedAt:            p.StartedAt,
		CompletedAt:          p.CompletedAt,
		CancelledAt:          p.CancelledAt,
		CancelReason:         p.CancelReason,
		CreatedAt:            p.CreatedAt,
		UpdatedAt:            p.UpdatedAt,
		Version:              p.GetVersion(),
	}
}

// ToAvailabilityResponse converts availability reports to a response
func ToAvailabilityResponse(processID uuid.UUID, reports []manufacturing.AvailabilityReport) AvailabilityResponse {
	lines := make([]AvailabilityLineResponse, 0, len(reports))
	critical := false
	for _, r := range reports {
		if r.HasShortage() && r.IsCritical {
			critical = true
		}
		lines = append(lines, AvailabilityLineResponse{
			LineID:            r.LineID,
			ItemID:            r.ItemID,
			WarehouseID:       r.WarehouseID,
			RequiredQuantity:  r.RequiredQuantity,
			AvailableQuantity: r.AvailableQuantity,
			ShortageQuantity:  r.ShortageQuantity,
			IsCritical:        r.IsCritical,
			IsAvailable:       !r.HasShortage(),
		})
	}

	return AvailabilityResponse{
		ProcessID:        processID,
		CanStart:         !critical,
		CriticalShortage: critical,
		Lines:            lines,
	}
}
