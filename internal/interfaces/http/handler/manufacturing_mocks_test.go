package handler

import (
	"context"
	"sync"
	"time"

	"github.com/erp/manufacturing/internal/domain/manufacturing"
	"github.com/erp/manufacturing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// In-memory fakes backing the manufacturing handler tests. Handlers run
// against real application services wired to these.

type fakeFormulaRepo struct {
	mu       sync.Mutex
	formulas map[uuid.UUID]*manufacturing.ManufacturingFormula
}

func newFakeFormulaRepo() *fakeFormulaRepo {
	return &fakeFormulaRepo{formulas: make(map[uuid.UUID]*manufacturing.ManufacturingFormula)}
}

func (r *fakeFormulaRepo) Save(_ context.Context, formula *manufacturing.ManufacturingFormula) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *formula
	r.formulas[formula.ID] = &copied
	return nil
}

func (r *fakeFormulaRepo) SaveWithLock(ctx context.Context, formula *manufacturing.ManufacturingFormula, expectedVersion int) error {
	r.mu.Lock()
	existing, ok := r.formulas[formula.ID]
	r.mu.Unlock()
	if ok && existing.GetVersion() != expectedVersion {
		return shared.ErrConcurrencyConflict
	}
	return r.Save(ctx, formula)
}

func (r *fakeFormulaRepo) FindByIDForTenant(_ context.Context, tenantID, id uuid.UUID) (*manufacturing.ManufacturingFormula, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	formula, ok := r.formulas[id]
	if !ok || formula.TenantID != tenantID || formula.IsDeleted() {
		return nil, shared.ErrNotFound
	}
	copied := *formula
	return &copied, nil
}

func (r *fakeFormulaRepo) FindByNumberForTenant(_ context.Context, tenantID uuid.UUID, formulaNumber string) (*manufacturing.ManufacturingFormula, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.formulas {
		if f.TenantID == tenantID && f.FormulaNumber == formulaNumber && !f.IsDeleted() {
			copied := *f
			return &copied, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeFormulaRepo) FindAllForTenant(_ context.Context, tenantID uuid.UUID, filter manufacturing.FormulaFilter) (*shared.Paginated[manufacturing.ManufacturingFormula], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]manufacturing.ManufacturingFormula, 0)
	for _, f := range r.formulas {
		if f.TenantID != tenantID || f.IsDeleted() {
			continue
		}
		if filter.Status != nil && f.Status != *filter.Status {
			continue
		}
		items = append(items, *f)
	}
	page := shared.NewPaginated(items, int64(len(items)), 1, 20)
	return &page, nil
}

func (r *fakeFormulaRepo) FindActiveByProduct(_ context.Context, tenantID, productID uuid.UUID, at time.Time) ([]manufacturing.ManufacturingFormula, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]manufacturing.ManufacturingFormula, 0)
	for _, f := range r.formulas {
		if f.TenantID == tenantID && f.ProductID == productID && f.IsActive() && f.IsEffectiveAt(at) && !f.IsDeleted() {
			items = append(items, *f)
		}
	}
	return items, nil
}

func (r *fakeFormulaRepo) CountByStatusForTenant(_ context.Context, tenantID uuid.UUID) (map[manufacturing.FormulaStatus]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[manufacturing.FormulaStatus]int64)
	for _, f := range r.formulas {
		if f.TenantID == tenantID && !f.IsDeleted() {
			counts[f.Status]++
		}
	}
	return counts, nil
}

func (r *fakeFormulaRepo) SoftDelete(_ context.Context, tenantID, id, deletedBy uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	formula, ok := r.formulas[id]
	if !ok || formula.TenantID != tenantID {
		return shared.ErrNotFound
	}
	formula.MarkDeleted(deletedBy)
	return nil
}

func (r *fakeFormulaRepo) ExistsByNumber(_ context.Context, tenantID uuid.UUID, formulaNumber string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.formulas {
		if f.TenantID == tenantID && f.FormulaNumber == formulaNumber && !f.IsDeleted() {
			return true, nil
		}
	}
	return false, nil
}

type fakeProcessRepo struct {
	mu        sync.Mutex
	processes map[uuid.UUID]*manufacturing.ManufacturingProcess
}

func newFakeProcessRepo() *fakeProcessRepo {
	return &fakeProcessRepo{processes: make(map[uuid.UUID]*manufacturing.ManufacturingProcess)}
}

func (r *fakeProcessRepo) Save(_ context.Context, process *manufacturing.ManufacturingProcess) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *process
	copied.Lines = append([]manufacturing.RawMaterialLine(nil), process.Lines...)
	r.processes[process.ID] = &copied
	return nil
}

func (r *fakeProcessRepo) SaveWithLock(ctx context.Context, process *manufacturing.ManufacturingProcess, expectedVersion int) error {
	r.mu.Lock()
	existing, ok := r.processes[process.ID]
	r.mu.Unlock()
	if ok && existing.GetVersion() != expectedVersion {
		return shared.ErrConcurrencyConflict
	}
	return r.Save(ctx, process)
}

func (r *fakeProcessRepo) SaveWithLockAndEvents(ctx context.Context, process *manufacturing.ManufacturingProcess, expectedVersion int, _ []shared.DomainEvent) error {
	return r.SaveWithLock(ctx, process, expectedVersion)
}

func (r *fakeProcessRepo) FindByIDForTenant(_ context.Context, tenantID, id uuid.UUID) (*manufacturing.ManufacturingProcess, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	process, ok := r.processes[id]
	if !ok || process.TenantID != tenantID || process.IsDeleted() {
		return nil, shared.ErrNotFound
	}
	copied := *process
	copied.Lines = append([]manufacturing.RawMaterialLine(nil), process.Lines...)
	return &copied, nil
}

func (r *fakeProcessRepo) FindByNumberForTenant(_ context.Context, tenantID uuid.UUID, processNumber string) (*manufacturing.ManufacturingProcess, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.processes {
		if p.TenantID == tenantID && p.ProcessNumber == processNumber && !p.IsDeleted() {
			copied := *p
			copied.Lines = append([]manufacturing.RawMaterialLine(nil), p.Lines...)
			return &copied, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeProcessRepo) FindAllForTenant(_ context.Context, tenantID uuid.UUID, filter manufacturing.ProcessFilter) (*shared.Paginated[manufacturing.ManufacturingProcess], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]manufacturing.ManufacturingProcess, 0)
	for _, p := range r.processes {
		if p.TenantID != tenantID || p.IsDeleted() {
			continue
		}
		if filter.Status != nil && p.Status != *filter.Status {
			continue
		}
		items = append(items, *p)
	}
	page := shared.NewPaginated(items, int64(len(items)), 1, 20)
	return &page, nil
}

func (r *fakeProcessRepo) FindByFormula(_ context.Context, tenantID, formulaID uuid.UUID) ([]manufacturing.ManufacturingProcess, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]manufacturing.ManufacturingProcess, 0)
	for _, p := range r.processes {
		if p.TenantID == tenantID && p.FormulaID != nil && *p.FormulaID == formulaID && !p.IsDeleted() {
			items = append(items, *p)
		}
	}
	return items, nil
}

func (r *fakeProcessRepo) CountByStatusForTenant(_ context.Context, tenantID uuid.UUID) (map[manufacturing.ProcessStatus]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[manufacturing.ProcessStatus]int64)
	for _, p := range r.processes {
		if p.TenantID == tenantID && !p.IsDeleted() {
			counts[p.Status]++
		}
	}
	return counts, nil
}

func (r *fakeProcessRepo) SoftDelete(_ context.Context, tenantID, id, deletedBy uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	process, ok := r.processes[id]
	if !ok || process.TenantID != tenantID {
		return shared.ErrNotFound
	}
	process.MarkDeleted(deletedBy)
	return nil
}

func (r *fakeProcessRepo) ExistsByNumber(_ context.Context, tenantID uuid.UUID, processNumber string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.processes {
		if p.TenantID == tenantID && p.ProcessNumber == processNumber && !p.IsDeleted() {
			return true, nil
		}
	}
	return false, nil
}

type fakeStockKey struct {
	itemID      uuid.UUID
	warehouseID uuid.UUID
}

type fakeStockLedger struct {
	mu     sync.Mutex
	levels map[fakeStockKey]decimal.Decimal
}

func newFakeStockLedger() *fakeStockLedger {
	return &fakeStockLedger{levels: make(map[fakeStockKey]decimal.Decimal)}
}

func (l *fakeStockLedger) set(itemID, warehouseID uuid.UUID, qty decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.levels[fakeStockKey{itemID, warehouseID}] = qty
}

func (l *fakeStockLedger) Read(_ context.Context, _ uuid.UUID, itemID, warehouseID uuid.UUID) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.levels[fakeStockKey{itemID, warehouseID}], nil
}

func (l *fakeStockLedger) Debit(_ context.Context, _ uuid.UUID, movements []manufacturing.StockMovement) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range movements {
		if l.levels[fakeStockKey{m.ItemID, m.WarehouseID}].LessThan(m.Quantity) {
			return shared.ErrInsufficientStock
		}
	}
	for _, m := range movements {
		key := fakeStockKey{m.ItemID, m.WarehouseID}
		l.levels[key] = l.levels[key].Sub(m.Quantity)
	}
	return nil
}

func (l *fakeStockLedger) Credit(_ context.Context, _ uuid.UUID, movements []manufacturing.StockMovement) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range movements {
		key := fakeStockKey{m.ItemID, m.WarehouseID}
		l.levels[key] = l.levels[key].Add(m.Quantity)
	}
	return nil
}

var (
	_ manufacturing.FormulaRepository = (*fakeFormulaRepo)(nil)
	_ manufacturing.ProcessRepository = (*fakeProcessRepo)(nil)
	_ manufacturing.StockLedger       = (*fakeStockLedger)(nil)
)
