package manufacturing

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/manufacturing/internal/domain/manufacturing"
	"github.com/erp/manufacturing/internal/domain/manufacturing/acl"
	"github.com/erp/manufacturing/internal/domain/shared"
	"github.com/erp/manufacturing/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// FormulaService handles manufacturing formula operations
type FormulaService struct {
	formulaRepo      manufacturing.FormulaRepository
	itemCatalog      acl.ItemCatalog
	unitCatalog      acl.UnitCatalog
	efficiencyBounds manufacturing.EfficiencyBounds
	eventPublisher   shared.EventPublisher
	logger           *zap.Logger
}

// NewFormulaService creates a new FormulaService with the default efficiency band
func NewFormulaService(
	formulaRepo manufacturing.FormulaRepository,
	itemCatalog acl.ItemCatalog,
	unitCatalog acl.UnitCatalog,
) *FormulaService {
	return &FormulaService{
		formulaRepo:      formulaRepo,
		itemCatalog:      itemCatalog,
		unitCatalog:      unitCatalog,
		efficiencyBounds: manufacturing.DefaultEfficiencyBounds(),
		logger:           zap.NewNop(),
	}
}

// SetEfficiencyBounds overrides the accepted efficiency band
func (s *FormulaService) SetEfficiencyBounds(bounds manufacturing.EfficiencyBounds) {
	s.efficiencyBounds = bounds
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *FormulaService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetLogger sets the logger used for non-fatal failures
func (s *FormulaService) SetLogger(logger *zap.Logger) {
	s.logger = logger
}

// CreateFormula creates a new manufacturing formula in draft status
func (s *FormulaService) CreateFormula(ctx context.Context, tenantID, userID uuid.UUID, req CreateFormulaRequest) (*FormulaResponse, error) {
	exists, err := s.formulaRepo.ExistsByNumber(ctx, tenantID, req.FormulaNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to check formula number: %w", err)
	}
	if exists {
		return nil, shared.NewDomainError("DUPLICATE_FORMULA_NUMBER",
			fmt.Sprintf("Formula number %s already exists", req.FormulaNumber))
	}

	if err := s.validateItemRef(ctx, tenantID, req.ProductID); err != nil {
		return nil, err
	}
	if err := s.validateUnitRef(ctx, tenantID, req.UnitID); err != nil {
		return nil, err
	}

	formula, err := manufacturing.NewManufacturingFormula(tenantID, req.FormulaNumber, req.ProductID, req.UnitID)
	if err != nil {
		return nil, err
	}
	formula.CreatedBy = &userID

	if req.Name != "" || req.Description != "" {
		if err := formula.SetName(req.Name, req.Description); err != nil {
			return nil, err
		}
	}
	if err := formula.SetQuantities(req.ConsumedQuantity, req.ProducedQuantity, s.efficiencyBounds); err != nil {
		return nil, err
	}
	if err := formula.SetCosts(orZero(req.LaborCost), orZero(req.OperatingCost), orZero(req.WasteCost)); err != nil {
		return nil, err
	}
	if req.PriceTier != "" {
		if err := formula.SetPriceTier(manufacturing.PriceTier(req.PriceTier)); err != nil {
			return nil, err
		}
	}
	if err := formula.SetEffectiveWindow(req.EffectiveFrom, req.EffectiveTo); err != nil {
		return nil, err
	}

	if err := s.formulaRepo.Save(ctx, formula); err != nil {
		return nil, fmt.Errorf("failed to save formula: %w", err)
	}

	s.publishEvents(ctx, formula)

	resp := ToFormulaResponse(formula)
	return &resp, nil
}

// UpdateFormula applies partial updates to a non-archived formula
func (s *FormulaService) UpdateFormula(ctx context.Context, tenantID, userID, formulaID uuid.UUID, req UpdateFormulaRequest) (*FormulaResponse, error) {
	formula, err := s.formulaRepo.FindByIDForTenant(ctx, tenantID, formulaID)
	if err != nil {
		return nil, err
	}

	expectedVersion := formula.GetVersion()

	if req.Name != nil || req.Description != nil {
		name := formula.Name
		description := formula.Description
		if req.Name != nil {
			name = *req.Name
		}
		if req.Description != nil {
			description = *req.Description
		}
		if err := formula.SetName(name, description); err != nil {
			return nil, err
		}
	}

	if req.ConsumedQuantity != nil || req.ProducedQuantity != nil {
		consumed := formula.ConsumedQuantity
		produced := formula.ProducedQuantity
		if req.ConsumedQuantity != nil {
			consumed = req.ConsumedQuantity
		}
		if req.ProducedQuantity != nil {
			produced = req.ProducedQuantity
		}
		if err := formula.SetQuantities(consumed, produced, s.efficiencyBounds); err != nil {
			return nil, err
		}
	}

	if req.LaborCost != nil || req.OperatingCost != nil || req.WasteCost != nil {
		labor := formula.LaborCost
		operating := formula.OperatingCost
		waste := formula.WasteCost
		if req.LaborCost != nil {
			labor = *req.LaborCost
		}
		if req.OperatingCost != nil {
			operating = *req.OperatingCost
		}
		if req.WasteCost != nil {
			waste = *req.WasteCost
		}
		if err := formula.SetCosts(labor, operating, waste); err != nil {
			return nil, err
		}
	}

	if req.PriceTier != nil {
		if err := formula.SetPriceTier(manufacturing.PriceTier(*req.PriceTier)); err != nil {
			return nil, err
		}
	}

	if req.EffectiveFrom != nil || req.EffectiveTo != nil {
		from := formula.EffectiveFrom
		to := formula.EffectiveTo
		if req.EffectiveFrom != nil {
			from = req.EffectiveFrom
		}
		if req.EffectiveTo != nil {
			to = req.EffectiveTo
		}
		if err := formula.SetEffectiveWindow(from, to); err != nil {
			return nil, err
		}
	}

	formula.SetUpdatedBy(userID)

	if err := s.formulaRepo.SaveWithLock(ctx, formula, expectedVersion); err != nil {
		return nil, err
	}

	resp := ToFormulaResponse(formula)
	return &resp, nil
}

// ChangeFormulaStatus transitions a formula along the status table
func (s *FormulaService) ChangeFormulaStatus(ctx context.Context, tenantID, userID, formulaID uuid.UUID, req ChangeFormulaStatusRequest) (*FormulaResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "manufacturing_formula", "change_status")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrFormulaID, formulaID.String(),
		telemetry.SpanAttrFormulaStatus, req.Status,
	)

	formula, err := s.formulaRepo.FindByIDForTenant(ctx, tenantID, formulaID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	expectedVersion := formula.GetVersion()

	if err := formula.ChangeStatus(manufacturing.FormulaStatus(req.Status)); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	formula.SetUpdatedBy(userID)

	if err := s.formulaRepo.SaveWithLock(ctx, formula, expectedVersion); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publishEvents(ctx, formula)

	resp := ToFormulaResponse(formula)
	return &resp, nil
}

// GetFormula returns a single formula by ID
func (s *FormulaService) GetFormula(ctx context.Context, tenantID, formulaID uuid.UUID) (*FormulaResponse, error) {
	formula, err := s.formulaRepo.FindByIDForTenant(ctx, tenantID, formulaID)
	if err != nil {
		return nil, err
	}

	resp := ToFormulaResponse(formula)
	return &resp, nil
}

// ListFormulas returns a paginated formula list
func (s *FormulaService) ListFormulas(ctx context.Context, tenantID uuid.UUID, filter FormulaListFilter) (*shared.Paginated[FormulaResponse], error) {
	domainFilter := manufacturing.FormulaFilter{
		Filter: shared.Filter{
			Page:     filter.Page,
			PageSize: filter.PageSize,
			OrderBy:  filter.OrderBy,
			OrderDir: filter.OrderDir,
		},
		ProductID:   filter.ProductID,
		EffectiveAt: filter.EffectiveAt,
		Search:      filter.Search,
	}
	if filter.Status != nil {
		status := manufacturing.FormulaStatus(*filter.Status)
		domainFilter.Status = &status
	}
	if filter.PriceTier != nil {
		tier := manufacturing.PriceTier(*filter.PriceTier)
		domainFilter.PriceTier = &tier
	}

	page, err := s.formulaRepo.FindAllForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, fmt.Errorf("failed to list formulas: %w", err)
	}

	items := make([]FormulaResponse, 0, len(page.Items))
	for idx := range page.Items {
		items = append(items, ToFormulaResponse(&page.Items[idx]))
	}

	result := shared.NewPaginated(items, page.Total, page.Page, page.PageSize)
	return &result, nil
}

// FindActiveFormula returns the active formulas for a product effective at the given time
func (s *FormulaService) FindActiveFormula(ctx context.Context, tenantID, productID uuid.UUID, at time.Time) ([]FormulaResponse, error) {
	formulas, err := s.formulaRepo.FindActiveByProduct(ctx, tenantID, productID, at)
	if err != nil {
		return nil, fmt.Errorf("failed to find active formulas: %w", err)
	}

	items := make([]FormulaResponse, 0, len(formulas))
	for idx := range formulas {
		items = append(items, ToFormulaResponse(&formulas[idx]))
	}
	return items, nil
}

// DeleteFormula soft-deletes a formula. The row survives as a tombstone so
// historical processes keep a resolvable reference.
func (s *FormulaService) DeleteFormula(ctx context.Context, tenantID, userID, formulaID uuid.UUID) error {
	formula, err := s.formulaRepo.FindByIDForTenant(ctx, tenantID, formulaID)
	if err != nil {
		return err
	}
	if formula.IsActive() {
		return shared.NewDomainError("FORMULA_ACTIVE", "Active formulas cannot be deleted; deactivate or archive first")
	}

	return s.formulaRepo.SoftDelete(ctx, tenantID, formulaID, userID)
}

func (s *FormulaService) validateItemRef(ctx context.Context, tenantID, itemID uuid.UUID) error {
	if s.itemCatalog == nil {
		return nil
	}
	exists, err := s.itemCatalog.ItemExists(ctx, tenantID, itemID)
	if err != nil {
		return fmt.Errorf("failed to resolve item %s: %w", itemID, err)
	}
	if !exists {
		return shared.NewDomainError("ITEM_NOT_FOUND", fmt.Sprintf("Item %s does not exist", itemID))
	}
	return nil
}

func (s *FormulaService) validateUnitRef(ctx context.Context, tenantID, unitID uuid.UUID) error {
	if s.unitCatalog == nil {
		return nil
	}
	exists, err := s.unitCatalog.UnitExists(ctx, tenantID, unitID)
	if err != nil {
		return fmt.Errorf("failed to resolve unit %s: %w", unitID, err)
	}
	if !exists {
		return shared.NewDomainError("UNIT_NOT_FOUND", fmt.Sprintf("Unit %s does not exist", unitID))
	}
	return nil
}

func (s *FormulaService) publishEvents(ctx context.Context, formula *manufacturing.ManufacturingFormula) {
	if s.eventPublisher == nil {
		return
	}
	if err := s.eventPublisher.Publish(ctx, formula.GetDomainEvents()...); err != nil {
		s.logger.Warn("Failed to publish formula events",
			zap.String("formula_id", formula.ID.String()),
			zap.Error(err))
	}
	formula.ClearDomainEvents()
}

func orZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}
