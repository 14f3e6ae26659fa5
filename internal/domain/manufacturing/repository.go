package manufacturing

import (
	"context"
	"time"

	"github.com/erp/manufacturing/internal/domain/shared"
	"github.com/google/uuid"
)

// FormulaFilter narrows formula list queries
type FormulaFilter struct {
	shared.Filter
	Status      *FormulaStatus
	ProductID   *uuid.UUID
	PriceTier   *PriceTier
	EffectiveAt *time.Time
	Search      string
}

// FormulaRepository is the persistence port for manufacturing formulas
type FormulaRepository interface {
	Save(ctx context.Context, formula *ManufacturingFormula) error
	SaveWithLock(ctx context.Context, formula *ManufacturingFormula, expectedVersion int) error
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*ManufacturingFormula, error)
	FindByNumberForTenant(ctx context.Context, tenantID uuid.UUID, formulaNumber string) (*ManufacturingFormula, error)
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter FormulaFilter) (*shared.Paginated[ManufacturingFormula], error)
	FindActiveByProduct(ctx context.Context, tenantID, productID uuid.UUID, at time.Time) ([]ManufacturingFormula, error)
	CountByStatusForTenant(ctx context.Context, tenantID uuid.UUID) (map[FormulaStatus]int64, error)
	SoftDelete(ctx context.Context, tenantID, id, deletedBy uuid.UUID) error
	ExistsByNumber(ctx context.Context, tenantID uuid.UUID, formulaNumber string) (bool, error)
}

// ProcessFilter narrows process list queries
type ProcessFilter struct {
	shared.Filter
	Status    *ProcessStatus
	ProductID *uuid.UUID
	FormulaID *uuid.UUID
	DateFrom  *time.Time
	DateTo    *time.Time
	Search    string
}

// ProcessRepository is the persistence port for manufacturing processes.
// Save and SaveWithLock persist the aggregate together with its lines.
type ProcessRepository interface {
	Save(ctx context.Context, process *ManufacturingProcess) error
	SaveWithLock(ctx context.Context, process *ManufacturingProcess, expectedVersion int) error
	// SaveWithLockAndEvents saves with optimistic locking and persists domain events atomically
	// in the same transaction (transactional outbox pattern)
	SaveWithLockAndEvents(ctx context.Context, process *ManufacturingProcess, expectedVersion int, events []shared.DomainEvent) error
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*ManufacturingProcess, error)
	FindByNumberForTenant(ctx context.Context, tenantID uuid.UUID, processNumber string) (*ManufacturingProcess, error)
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter ProcessFilter) (*shared.Paginated[ManufacturingProcess], error)
	FindByFormula(ctx context.Context, tenantID, formulaID uuid.UUID) ([]ManufacturingProcess, error)
	CountByStatusForTenant(ctx context.Context, tenantID uuid.UUID) (map[ProcessStatus]int64, error)
	SoftDelete(ctx context.Context, tenantID, id, deletedBy uuid.UUID) error
	ExistsByNumber(ctx context.Context, tenantID uuid.UUID, processNumber string) (bool, error)
}
