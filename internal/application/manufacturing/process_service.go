package manufacturing

import (
	"context"
	"fmt"

	"github.com/erp/manufacturing/internal/domain/manufacturing"
	"github.com/erp/manufacturing/internal/domain/manufacturing/acl"
	"github.com/erp/manufacturing/internal/domain/shared"
	"github.com/erp/manufacturing/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProcessService handles manufacturing process operations. Stock-moving
// transitions (start, complete, cancel of a started process) run inside a
// transaction scope so the status change and the ledger movements land
// atomically.
type ProcessService struct {
	processRepo    manufacturing.ProcessRepository
	formulaRepo    manufacturing.FormulaRepository
	stockLedger    manufacturing.StockLedger
	txScope        TransactionScope
	itemCatalog    acl.ItemCatalog
	warehouses     acl.WarehouseRegistry
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// NewProcessService creates a new ProcessService
func NewProcessService(
	processRepo manufacturing.ProcessRepository,
	formulaRepo manufacturing.FormulaRepository,
	stockLedger manufacturing.StockLedger,
	txScope TransactionScope,
) *ProcessService {
	return &ProcessService{
		processRepo: processRepo,
		formulaRepo: formulaRepo,
		stockLedger: stockLedger,
		txScope:     txScope,
		logger:      zap.NewNop(),
	}
}

// SetReferenceCatalogs sets the optional item and warehouse resolvers
func (s *ProcessService) SetReferenceCatalogs(items acl.ItemCatalog, warehouses acl.WarehouseRegistry) {
	s.itemCatalog = items
	s.warehouses = warehouses
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *ProcessService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetLogger sets the logger used for non-fatal failures
func (s *ProcessService) SetLogger(logger *zap.Logger) {
	s.logger = logger
}

// CreateProcess creates a new manufacturing process in draft status together
// with its raw-material lines
func (s *ProcessService) CreateProcess(ctx context.Context, tenantID, userID uuid.UUID, req CreateProcessRequest) (*ProcessResponse, error) {
	exists, err := s.processRepo.ExistsByNumber(ctx, tenantID, req.ProcessNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to check process number: %w", err)
	}
	if exists {
		return nil, shared.NewDomainError("DUPLICATE_PROCESS_NUMBER",
			fmt.Sprintf("Process number %s already exists", req.ProcessNumber))
	}

	if err := s.validateWarehouseRef(ctx, tenantID, req.RawWarehouseID); err != nil {
		return nil, err
	}
	if err := s.validateWarehouseRef(ctx, tenantID, req.FinishedWarehouseID); err != nil {
		return nil, err
	}

	process, err := manufacturing.NewManufacturingProcess(
		tenantID, req.ProcessNumber, req.ProductID, req.UnitID,
		req.RawWarehouseID, req.FinishedWarehouseID,
		req.ProducedQuantity, req.ProcessDate, req.StartDate,
	)
	if err != nil {
		return nil, err
	}
	process.CreatedBy = &userID

	if req.EndDate != nil {
		if err := process.SetDates(req.ProcessDate, req.StartDate, req.EndDate); err != nil {
			return nil, err
		}
	}

	if req.FormulaID != nil {
		if err := s.attachFormula(ctx, tenantID, process, *req.FormulaID); err != nil {
			return nil, err
		}
	}

	if req.LaborCost != nil || req.OverheadCost != nil {
		if err := process.SetCosts(orZero(req.LaborCost), orZero(req.OverheadCost)); err != nil {
			return nil, err
		}
	}

	for _, lineReq := range req.RawMaterials {
		if err := s.validateItemRef(ctx, tenantID, lineReq.ItemID); err != nil {
			return nil, err
		}
		if _, err := process.AddLine(lineReq.ItemID, lineReq.UnitID, lineReq.WarehouseID,
			lineReq.ConsumedQuantity, lineReq.UnitCost, lineReq.IsCritical); err != nil {
			return nil, err
		}
	}

	if err := s.processRepo.Save(ctx, process); err != nil {
		return nil, fmt.Errorf("failed to save process: %w", err)
	}

	s.publishEvents(ctx, process)

	resp := ToProcessResponse(process)
	return &resp, nil
}

// UpdateProcess applies partial updates to a draft process. When raw materials
// are supplied they replace the existing line set.
func (s *ProcessService) UpdateProcess(ctx context.Context, tenantID, userID, processID uuid.UUID, req UpdateProcessRequest) (*ProcessResponse, error) {
	process, err := s.processRepo.FindByIDForTenant(ctx, tenantID, processID)
	if err != nil {
		return nil, err
	}
	if !process.IsDraft() {
		return nil, shared.NewDomainError("INVALID_STATE", "Only draft processes can be updated")
	}

	expectedVersion := process.GetVersion()

	if req.ProcessDate != nil || req.StartDate != nil || req.EndDate != nil {
		processDate := process.ProcessDate
		startDate := process.StartDate
		endDate := process.EndDate
		if req.ProcessDate != nil {
			processDate = *req.ProcessDate
		}
		if req.StartDate != nil {
			startDate = *req.StartDate
		}
		if req.EndDate != nil {
			endDate = req.EndDate
		}
		if err := process.SetDates(processDate, startDate, endDate); err != nil {
			return nil, err
		}
	}

	if req.LaborCost != nil || req.OverheadCost != nil {
		labor := process.LaborCost
		overhead := process.OverheadCost
		if req.LaborCost != nil {
			labor = *req.LaborCost
		}
		if req.OverheadCost != nil {
			overhead = *req.OverheadCost
		}
		if err := process.SetCosts(labor, overhead); err != nil {
			return nil, err
		}
	}

	if req.RawMaterials != nil {
		for _, line := range append([]manufacturing.RawMaterialLine(nil), process.Lines...) {
			if err := process.RemoveLine(line.ID); err != nil {
				return nil, err
			}
		}
		for _, lineReq := range req.RawMaterials {
			if err := s.validateItemRef(ctx, tenantID, lineReq.ItemID); err != nil {
				return nil, err
			}
			if _, err := process.AddLine(lineReq.ItemID, lineReq.UnitID, lineReq.WarehouseID,
				lineReq.ConsumedQuantity, lineReq.UnitCost, lineReq.IsCritical); err != nil {
				return nil, err
			}
		}
	}

	process.SetUpdatedBy(userID)

	if err := s.processRepo.SaveWithLock(ctx, process, expectedVersion); err != nil {
		return nil, err
	}

	resp := ToProcessResponse(process)
	return &resp, nil
}

// CheckAvailability reads current stock for every line and returns the
// per-line report. The check is advisory and writes nothing: StartProcess
// re-checks and records snapshots under the same transaction that debits
// stock, so a stale report can never block or corrupt a start.
func (s *ProcessService) CheckAvailability(ctx context.Context, tenantID, processID uuid.UUID) (*AvailabilityResponse, error) {
	process, err := s.processRepo.FindByIDForTenant(ctx, tenantID, processID)
	if err != nil {
		return nil, err
	}

	checker := manufacturing.NewAvailabilityChecker(s.stockLedger)
	reports, err := checker.Check(ctx, tenantID, process)
	if err != nil {
		return nil, fmt.Errorf("failed to check availability: %w", err)
	}

	resp := ToAvailabilityResponse(process.ID, reports)
	return &resp, nil
}

// StartProcess transitions a draft process to in_progress and debits every
// raw-material line from stock in one transaction. Availability is re-checked
// inside the transaction; any shortage on a critical line, or any debit that
// would drive a level negative, rolls the whole start back.
func (s *ProcessService) StartProcess(ctx context.Context, tenantID, userID, processID uuid.UUID) (*ProcessResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "manufacturing_process", "start")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrProcessID, processID.String())

	var response ProcessResponse

	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		process, err := repos.ProcessRepo().FindByIDForTenant(ctx, tenantID, processID)
		if err != nil {
			return err
		}

		expectedVersion := process.GetVersion()

		checker := manufacturing.NewAvailabilityChecker(repos.StockLedger())
		reports, err := checker.Check(ctx, tenantID, process)
		if err != nil {
			return fmt.Errorf("failed to check availability: %w", err)
		}
		process.ApplyAvailability(reports)

		if err := process.Start(); err != nil {
			return err
		}
		process.SetUpdatedBy(userID)

		plan := process.DebitPlan()
		if err := repos.StockLedger().Debit(ctx, tenantID, plan); err != nil {
			return err
		}
		telemetry.AddEvent(span, "stock_debited", "lines", len(plan))

		// Collect domain events before save
		events := process.GetDomainEvents()
		process.ClearDomainEvents()

		// Save with optimistic locking and events atomically (transactional outbox pattern)
		if err := repos.ProcessRepo().SaveWithLockAndEvents(ctx, process, expectedVersion, events); err != nil {
			return err
		}

		response = ToProcessResponse(process)
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrProcessNumber, response.ProcessNumber)
	return &response, nil
}

// CompleteProcess transitions an in_progress process to completed, credits the
// produced quantity to the finished-goods warehouse and freezes the cost
// rollup, all in one transaction.
func (s *ProcessService) CompleteProcess(ctx context.Context, tenantID, userID, processID uuid.UUID, req CompleteProcessRequest) (*ProcessResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "manufacturing_process", "complete",
		telemetry.WithAttribute(telemetry.SpanAttrProcessID, processID.String()))
	defer span.End()

	var response ProcessResponse

	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		process, err := repos.ProcessRepo().FindByIDForTenant(ctx, tenantID, processID)
		if err != nil {
			return err
		}

		expectedVersion := process.GetVersion()

		actuals := make([]manufacturing.ActualConsumption, 0, len(req.Actuals))
		for _, a := range req.Actuals {
			actuals = append(actuals, manufacturing.ActualConsumption{
				ItemID:   a.ItemID,
				Quantity: a.Quantity,
			})
		}

		if err := process.Complete(actuals, req.ActualQuantity); err != nil {
			return err
		}
		process.SetUpdatedBy(userID)

		credit := []manufacturing.StockMovement{{
			ItemID:      process.ProductID,
			WarehouseID: process.FinishedWarehouseID,
			Quantity:    process.CreditQuantity(),
		}}
		if err := repos.StockLedger().Credit(ctx, tenantID, credit); err != nil {
			return err
		}
		telemetry.AddEvent(span, "stock_credited", telemetry.SpanAttrQuantity, process.CreditQuantity().String())

		events := process.GetDomainEvents()
		process.ClearDomainEvents()

		if err := repos.ProcessRepo().SaveWithLockAndEvents(ctx, process, expectedVersion, events); err != nil {
			return err
		}

		response = ToProcessResponse(process)
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	return &response, nil
}

// CancelProcess cancels a draft or in_progress process. Cancelling a started
// process credits every previously-debited line quantity back to its source
// warehouse in the same transaction as the status change.
func (s *ProcessService) CancelProcess(ctx context.Context, tenantID, userID, processID uuid.UUID, req CancelProcessRequest) (*ProcessResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "manufacturing_process", "cancel")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrProcessID, processID.String())

	var response ProcessResponse

	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		process, err := repos.ProcessRepo().FindByIDForTenant(ctx, tenantID, processID)
		if err != nil {
			return err
		}

		expectedVersion := process.GetVersion()
		needsReversal := process.IsInProgress()
		reversal := process.DebitPlan()

		if err := process.Cancel(req.Reason); err != nil {
			return err
		}
		process.SetUpdatedBy(userID)

		if needsReversal {
			if err := repos.StockLedger().Credit(ctx, tenantID, reversal); err != nil {
				return err
			}
		}

		events := process.GetDomainEvents()
		process.ClearDomainEvents()

		if err := repos.ProcessRepo().SaveWithLockAndEvents(ctx, process, expectedVersion, events); err != nil {
			return err
		}

		response = ToProcessResponse(process)
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	return &response, nil
}

// RestartProcess moves a cancelled process back to draft. No stock moves; the
// cancellation already reversed any debits.
func (s *ProcessService) RestartProcess(ctx context.Context, tenantID, userID, processID uuid.UUID) (*ProcessResponse, error) {
	process, err := s.processRepo.FindByIDForTenant(ctx, tenantID, processID)
	if err != nil {
		return nil, err
	}

	expectedVersion := process.GetVersion()

	if err := process.Restart(); err != nil {
		return nil, err
	}
	process.SetUpdatedBy(userID)

	if err := s.processRepo.SaveWithLock(ctx, process, expectedVersion); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, process)

	resp := ToProcessResponse(process)
	return &resp, nil
}

// UpdateProgress records an explicit completion percentage on a started process
func (s *ProcessService) UpdateProgress(ctx context.Context, tenantID, userID, processID uuid.UUID, req UpdateProgressRequest) (*ProcessResponse, error) {
	process, err := s.processRepo.FindByIDForTenant(ctx, tenantID, processID)
	if err != nil {
		return nil, err
	}

	expectedVersion := process.GetVersion()

	if err := process.UpdateProgress(req.CompletionPercentage); err != nil {
		return nil, err
	}
	process.SetUpdatedBy(userID)

	if err := s.processRepo.SaveWithLock(ctx, process, expectedVersion); err != nil {
		return nil, err
	}

	resp := ToProcessResponse(process)
	return &resp, nil
}

// GetProcess returns a single process by ID
func (s *ProcessService) GetProcess(ctx context.Context, tenantID, processID uuid.UUID) (*ProcessResponse, error) {
	process, err := s.processRepo.FindByIDForTenant(ctx, tenantID, processID)
	if err != nil {
		return nil, err
	}

	resp := ToProcessResponse(process)
	return &resp, nil
}

// GetProcessCosts returns the live cost rollup of a process. For a completed
// process this equals the frozen figures on the aggregate.
func (s *ProcessService) GetProcessCosts(ctx context.Context, tenantID, processID uuid.UUID) (*CostSummaryResponse, error) {
	process, err := s.processRepo.FindByIDForTenant(ctx, tenantID, processID)
	if err != nil {
		return nil, err
	}

	summary := manufacturing.AggregateCosts(process.Lines, process.LaborCost, process.OverheadCost, process.CreditQuantity())

	return &CostSummaryResponse{
		ProcessID:              process.ID,
		TotalRawMaterialCost:   summary.TotalRawMaterialCost,
		LaborCost:              summary.LaborCost,
		OverheadCost:           summary.OverheadCost,
		TotalManufacturingCost: summary.TotalManufacturingCost,
		CostPerUnit:            summary.CostPerUnit,
	}, nil
}

// ListProcesses returns a paginated process list
func (s *ProcessService) ListProcesses(ctx context.Context, tenantID uuid.UUID, filter ProcessListFilter) (*shared.Paginated[ProcessResponse], error) {
	domainFilter := manufacturing.ProcessFilter{
		Filter: shared.Filter{
			Page:     filter.Page,
			PageSize: filter.PageSize,
			OrderBy:  filter.OrderBy,
			OrderDir: filter.OrderDir,
		},
		ProductID: filter.ProductID,
		FormulaID: filter.FormulaID,
		DateFrom:  filter.DateFrom,
		DateTo:    filter.DateTo,
		Search:    filter.Search,
	}
	if filter.Status != nil {
		status := manufacturing.ProcessStatus(*filter.Status)
		domainFilter.Status = &status
	}

	page, err := s.processRepo.FindAllForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}

	items := make([]ProcessResponse, 0, len(page.Items))
	for idx := range page.Items {
		items = append(items, ToProcessResponse(&page.Items[idx]))
	}

	result := shared.NewPaginated(items, page.Total, page.Page, page.PageSize)
	return &result, nil
}

// DeleteProcess soft-deletes a draft or cancelled process
func (s *ProcessService) DeleteProcess(ctx context.Context, tenantID, userID, processID uuid.UUID) error {
	process, err := s.processRepo.FindByIDForTenant(ctx, tenantID, processID)
	if err != nil {
		return err
	}
	if !process.IsDraft() && !process.IsCancelled() {
		return shared.NewDomainError("INVALID_STATE", "Only draft or cancelled processes can be deleted")
	}

	return s.processRepo.SoftDelete(ctx, tenantID, processID, userID)
}

// attachFormula validates the formula reference and copies its cost defaults
// onto a fresh process when none were supplied
func (s *ProcessService) attachFormula(ctx context.Context, tenantID uuid.UUID, process *manufacturing.ManufacturingProcess, formulaID uuid.UUID) error {
	formula, err := s.formulaRepo.FindByIDForTenant(ctx, tenantID, formulaID)
	if err != nil {
		return err
	}
	if !formula.IsActive() {
		return shared.NewDomainError("FORMULA_NOT_ACTIVE",
			fmt.Sprintf("Formula %s is %s; only active formulas can drive a process", formula.FormulaNumber, formula.Status))
	}
	if !formula.IsEffectiveAt(process.ProcessDate) {
		return shared.NewDomainError("FORMULA_NOT_EFFECTIVE",
			fmt.Sprintf("Formula %s is not effective on the process date", formula.FormulaNumber))
	}

	if err := process.SetFormula(formulaID); err != nil {
		return err
	}
	if process.LaborCost.IsZero() && process.OverheadCost.IsZero() {
		if err := process.SetCosts(formula.LaborCost, formula.OperatingCost.Add(formula.WasteCost)); err != nil {
			return err
		}
	}
	return nil
}

func (s *ProcessService) validateItemRef(ctx context.Context, tenantID, itemID uuid.UUID) error {
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

func (s *ProcessService) validateWarehouseRef(ctx context.Context, tenantID, warehouseID uuid.UUID) error {
	if s.warehouses == nil {
		return nil
	}
	exists, err := s.warehouses.WarehouseExists(ctx, tenantID, warehouseID)
	if err != nil {
		return fmt.Errorf("failed to resolve warehouse %s: %w", warehouseID, err)
	}
	if !exists {
		return shared.NewDomainError("WAREHOUSE_NOT_FOUND", fmt.Sprintf("Warehouse %s does not exist", warehouseID))
	}
	return nil
}

func (s *ProcessService) publishEvents(ctx context.Context, process *manufacturing.ManufacturingProcess) {
	if s.eventPublisher == nil {
		return
	}
	if err := s.eventPublisher.Publish(ctx, process.GetDomainEvents()...); err != nil {
		s.logger.Warn("Failed to publish process events",
			zap.String("process_id", process.ID.String()),
			zap.Error(err))
	}
	process.ClearDomainEvents()
}
