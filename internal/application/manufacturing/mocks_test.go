package manufacturing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/erp/manufacturing/internal/domain/manufacturing"
	"github.com/erp/manufacturing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assertDomainCode asserts that err is a DomainError carrying the given code
func assertDomainCode(t *testing.T, err error, code string) {
	t.Helper()
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, code, domainErr.Code)
}

// MockEventPublisher is a mock implementation of shared.EventPublisher
type MockEventPublisher struct {
	mu      sync.Mutex
	events  []shared.DomainEvent
	failErr error
}

func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{events: make([]shared.DomainEvent, 0)}
}

// FailWith makes every subsequent Publish return the given error
func (m *MockEventPublisher) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failErr = err
}

func (m *MockEventPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	m.events = append(m.events, events...)
	return nil
}

func (m *MockEventPublisher) GetEventsByType(eventType string) []shared.DomainEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]shared.DomainEvent, 0)
	for _, e := range m.events {
		if e.EventType() == eventType {
			result = append(result, e)
		}
	}
	return result
}

// memFormulaRepo is an in-memory FormulaRepository
type memFormulaRepo struct {
	mu       sync.Mutex
	formulas map[uuid.UUID]*manufacturing.ManufacturingFormula
}

func newMemFormulaRepo() *memFormulaRepo {
	return &memFormulaRepo{formulas: make(map[uuid.UUID]*manufacturing.ManufacturingFormula)}
}

func (r *memFormulaRepo) Save(_ context.Context, formula *manufacturing.ManufacturingFormula) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *formula
	r.formulas[formula.ID] = &copied
	return nil
}

func (r *memFormulaRepo) SaveWithLock(ctx context.Context, formula *manufacturing.ManufacturingFormula, expectedVersion int) error {
	r.mu.Lock()
	existing, ok := r.formulas[formula.ID]
	r.mu.Unlock()
	if ok && existing.GetVersion() != expectedVersion {
		return shared.ErrConcurrencyConflict
	}
	return r.Save(ctx, formula)
}

func (r *memFormulaRepo) FindByIDForTenant(_ context.Context, tenantID, id uuid.UUID) (*manufacturing.ManufacturingFormula, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	formula, ok := r.formulas[id]
	if !ok || formula.TenantID != tenantID || formula.IsDeleted() {
		return nil, shared.ErrNotFound
	}
	copied := *formula
	return &copied, nil
}

func (r *memFormulaRepo) FindByNumberForTenant(_ context.Context, tenantID uuid.UUID, formulaNumber string) (*manufacturing.ManufacturingFormula, error) {
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

func (r *memFormulaRepo) FindAllForTenant(_ context.Context, tenantID uuid.UUID, filter manufacturing.FormulaFilter) (*shared.Paginated[manufacturing.ManufacturingFormula], error) {
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

func (r *memFormulaRepo) FindActiveByProduct(_ context.Context, tenantID, productID uuid.UUID, at time.Time) ([]manufacturing.ManufacturingFormula, error) {
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

func (r *memFormulaRepo) CountByStatusForTenant(_ context.Context, tenantID uuid.UUID) (map[manufacturing.FormulaStatus]int64, error) {
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

func (r *memFormulaRepo) SoftDelete(_ context.Context, tenantID, id, deletedBy uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	formula, ok := r.formulas[id]
	if !ok || formula.TenantID != tenantID {
		return shared.ErrNotFound
	}
	formula.MarkDeleted(deletedBy)
	return nil
}

func (r *memFormulaRepo) ExistsByNumber(_ context.Context, tenantID uuid.UUID, formulaNumber string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.formulas {
		if f.TenantID == tenantID && f.FormulaNumber == formulaNumber && !f.IsDeleted() {
			return true, nil
		}
	}
	return false, nil
}

// memProcessRepo is an in-memory ProcessRepository. Events passed to
// SaveWithLockAndEvents are captured the way an outbox would persist them.
type memProcessRepo struct {
	mu          sync.Mutex
	processes   map[uuid.UUID]*manufacturing.ManufacturingProcess
	savedEvents []shared.DomainEvent
	saveCount   int
}

func newMemProcessRepo() *memProcessRepo {
	return &memProcessRepo{processes: make(map[uuid.UUID]*manufacturing.ManufacturingProcess)}
}

func (r *memProcessRepo) Save(_ context.Context, process *manufacturing.ManufacturingProcess) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saveCount++
	copied := *process
	copied.Lines = append([]manufacturing.RawMaterialLine(nil), process.Lines...)
	r.processes[process.ID] = &copied
	return nil
}

func (r *memProcessRepo) SaveWithLock(ctx context.Context, process *manufacturing.ManufacturingProcess, expectedVersion int) error {
	r.mu.Lock()
	existing, ok := r.processes[process.ID]
	r.mu.Unlock()
	if ok && existing.GetVersion() != expectedVersion {
		return shared.ErrConcurrencyConflict
	}
	return r.Save(ctx, process)
}

func (r *memProcessRepo) SaveWithLockAndEvents(ctx context.Context, process *manufacturing.ManufacturingProcess, expectedVersion int, events []shared.DomainEvent) error {
	if err := r.SaveWithLock(ctx, process, expectedVersion); err != nil {
		return err
	}
	r.mu.Lock()
	r.savedEvents = append(r.savedEvents, events...)
	r.mu.Unlock()
	return nil
}

// eventsOfType returns captured outbox events matching the given type
func (r *memProcessRepo) eventsOfType(eventType string) []shared.DomainEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []shared.DomainEvent
	for _, e := range r.savedEvents {
		if e.EventType() == eventType {
			matched = append(matched, e)
		}
	}
	return matched
}

func (r *memProcessRepo) FindByIDForTenant(_ context.Context, tenantID, id uuid.UUID) (*manufacturing.ManufacturingProcess, error) {
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

func (r *memProcessRepo) FindByNumberForTenant(_ context.Context, tenantID uuid.UUID, processNumber string) (*manufacturing.ManufacturingProcess, error) {
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

func (r *memProcessRepo) FindAllForTenant(_ context.Context, tenantID uuid.UUID, filter manufacturing.ProcessFilter) (*shared.Paginated[manufacturing.ManufacturingProcess], error) {
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

func (r *memProcessRepo) FindByFormula(_ context.Context, tenantID, formulaID uuid.UUID) ([]manufacturing.ManufacturingProcess, error) {
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

func (r *memProcessRepo) CountByStatusForTenant(_ context.Context, tenantID uuid.UUID) (map[manufacturing.ProcessStatus]int64, error) {
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

func (r *memProcessRepo) SoftDelete(_ context.Context, tenantID, id, deletedBy uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	process, ok := r.processes[id]
	if !ok || process.TenantID != tenantID {
		return shared.ErrNotFound
	}
	process.MarkDeleted(deletedBy)
	return nil
}

func (r *memProcessRepo) ExistsByNumber(_ context.Context, tenantID uuid.UUID, processNumber string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.processes {
		if p.TenantID == tenantID && p.ProcessNumber == processNumber && !p.IsDeleted() {
			return true, nil
		}
	}
	return false, nil
}

type stockKey struct {
	itemID      uuid.UUID
	warehouseID uuid.UUID
}

// memStockLedger is an in-memory StockLedger with all-or-nothing batches
type memStockLedger struct {
	mu     sync.Mutex
	levels map[stockKey]decimal.Decimal
}

func newMemStockLedger() *memStockLedger {
	return &memStockLedger{levels: make(map[stockKey]decimal.Decimal)}
}

func (l *memStockLedger) set(itemID, warehouseID uuid.UUID, qty decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.levels[stockKey{itemID, warehouseID}] = qty
}

func (l *memStockLedger) get(itemID, warehouseID uuid.UUID) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.levels[stockKey{itemID, warehouseID}]
}

func (l *memStockLedger) Read(_ context.Context, _ uuid.UUID, itemID, warehouseID uuid.UUID) (decimal.Decimal, error) {
	return l.get(itemID, warehouseID), nil
}

func (l *memStockLedger) Debit(_ context.Context, _ uuid.UUID, movements []manufacturing.StockMovement) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range movements {
		if l.levels[stockKey{m.ItemID, m.WarehouseID}].LessThan(m.Quantity) {
			return shared.ErrInsufficientStock
		}
	}
	for _, m := range movements {
		key := stockKey{m.ItemID, m.WarehouseID}
		l.levels[key] = l.levels[key].Sub(m.Quantity)
	}
	return nil
}

func (l *memStockLedger) Credit(_ context.Context, _ uuid.UUID, movements []manufacturing.StockMovement) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range movements {
		key := stockKey{m.ItemID, m.WarehouseID}
		l.levels[key] = l.levels[key].Add(m.Quantity)
	}
	return nil
}
