package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/manufacturing/internal/domain/manufacturing"
	"github.com/erp/manufacturing/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormProcessRepository implements manufacturing.ProcessRepository using GORM
type GormProcessRepository struct {
	db          *gorm.DB
	outboxSaver shared.OutboxEventSaver // optional, for transactional outbox pattern
}

// NewGormProcessRepository creates a new GormProcessRepository
func NewGormProcessRepository(db *gorm.DB) *GormProcessRepository {
	return &GormProcessRepository{db: db}
}

// SetOutboxEventSaver sets the outbox event saver for transactional event publishing
func (r *GormProcessRepository) SetOutboxEventSaver(saver shared.OutboxEventSaver) {
	r.outboxSaver = saver
}

// Save persists a process together with its raw-material lines
func (r *GormProcessRepository) Save(ctx context.Context, process *manufacturing.ManufacturingProcess) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Lines").Save(process).Error; err != nil {
			return err
		}
		return r.saveLines(tx, process)
	})
}

// SaveWithLock saves with optimistic locking against the expected version
func (r *GormProcessRepository) SaveWithLock(ctx context.Context, process *manufacturing.ManufacturingProcess, expectedVersion int) error {
	return r.SaveWithLockAndEvents(ctx, process, expectedVersion, nil)
}

// SaveWithLockAndEvents saves with optimistic locking and persists domain events
// to the outbox within the same transaction. When no outbox saver is configured
// the events parameter is ignored and the caller publishes directly.
func (r *GormProcessRepository) SaveWithLockAndEvents(ctx context.Context, process *manufacturing.ManufacturingProcess, expectedVersion int, events []shared.DomainEvent) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(process).
			Where("id = ? AND version = ?", process.ID, expectedVersion).
			Updates(map[string]interface{}{
				"formula_id":              process.FormulaID,
				"produced_quantity":       process.ProducedQuantity,
				"actual_quantity":         process.ActualQuantity,
				"status":                  process.Status,
				"process_date":            process.ProcessDate,
				"start_date":              process.StartDate,
				"end_date":                process.EndDate,
				"labor_cost":              process.LaborCost,
				"overhead_cost":           process.OverheadCost,
				"total_raw_material_cost": process.TotalRawMaterialCost,
				"total_cost":              process.TotalCost,
				"cost_per_unit":           process.CostPerUnit,
				"completion_percentage":   process.CompletionPercentage,
				"started_at":              process.StartedAt,
				"completed_at":            process.CompletedAt,
				"cancelled_at":            process.CancelledAt,
				"cancel_reason":           process.CancelReason,
				"updated_by":              process.UpdatedBy,
				"version":                 process.GetVersion(),
				"updated_at":              process.UpdatedAt,
			})

		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrConcurrencyConflict
		}
		if err := r.saveLines(tx, process); err != nil {
			return err
		}
		if r.outboxSaver != nil && len(events) > 0 {
			if err := r.outboxSaver.SaveEvents(ctx, tx, events...); err != nil {
				return fmt.Errorf("failed to save events to outbox: %w", err)
			}
		}
		return nil
	})
}

// saveLines replaces the persisted line set with the aggregate's current lines
func (r *GormProcessRepository) saveLines(tx *gorm.DB, process *manufacturing.ManufacturingProcess) error {
	currentLineIDs := make([]uuid.UUID, len(process.Lines))
	for i, line := range process.Lines {
		currentLineIDs[i] = line.ID
	}

	if len(currentLineIDs) > 0 {
		if err := tx.Where("process_id = ? AND id NOT IN ?", process.ID, currentLineIDs).
			Delete(&manufacturing.RawMaterialLine{}).Error; err != nil {
			return err
		}
	} else {
		if err := tx.Where("process_id = ?", process.ID).
			Delete(&manufacturing.RawMaterialLine{}).Error; err != nil {
			return err
		}
	}

	for i := range process.Lines {
		process.Lines[i].ProcessID = process.ID
		if err := tx.Save(&process.Lines[i]).Error; err != nil {
			return err
		}
	}
	return nil
}

// FindByIDForTenant finds a process by ID within a tenant
func (r *GormProcessRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*manufacturing.ManufacturingProcess, error) {
	var process manufacturing.ManufacturingProcess
	if err := r.db.WithContext(ctx).
		Preload("Lines").
		Where("tenant_id = ? AND id = ? AND deleted_at IS NULL", tenantID, id).
		First(&process).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &process, nil
}

// FindByNumberForTenant finds a process by its number within a tenant
func (r *GormProcessRepository) FindByNumberForTenant(ctx context.Context, tenantID uuid.UUID, processNumber string) (*manufacturing.ManufacturingProcess, error) {
	var process manufacturing.ManufacturingProcess
	if err := r.db.WithContext(ctx).
		Preload("Lines").
		Where("tenant_id = ? AND process_number = ? AND deleted_at IS NULL", tenantID, processNumber).
		First(&process).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &process, nil
}

// FindAllForTenant returns a filtered, paginated process page
func (r *GormProcessRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter manufacturing.ProcessFilter) (*shared.Paginated[manufacturing.ManufacturingProcess], error) {
	filter.Normalize()

	query := r.db.WithContext(ctx).
		Model(&manufacturing.ManufacturingProcess{}).
		Where("tenant_id = ? AND deleted_at IS NULL", tenantID)
	query = r.applyProcessFilter(query, filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	orderBy := ValidateSortField(filter.OrderBy, ProcessSortFields, "created_at")
	orderDir := ValidateSortOrder(filter.OrderDir)
	offset := (filter.Page - 1) * filter.PageSize

	var processes []manufacturing.ManufacturingProcess
	if err := query.
		Preload("Lines").
		Order(orderBy + " " + orderDir).
		Offset(offset).
		Limit(filter.PageSize).
		Find(&processes).Error; err != nil {
		return nil, err
	}

	page := shared.NewPaginated(processes, total, filter.Page, filter.PageSize)
	return &page, nil
}

// FindByFormula finds processes attached to a formula
func (r *GormProcessRepository) FindByFormula(ctx context.Context, tenantID, formulaID uuid.UUID) ([]manufacturing.ManufacturingProcess, error) {
	var processes []manufacturing.ManufacturingProcess
	if err := r.db.WithContext(ctx).
		Preload("Lines").
		Where("tenant_id = ? AND formula_id = ? AND deleted_at IS NULL", tenantID, formulaID).
		Order("process_date DESC").
		Find(&processes).Error; err != nil {
		return nil, err
	}
	return processes, nil
}

// CountByStatusForTenant returns process counts grouped by status
func (r *GormProcessRepository) CountByStatusForTenant(ctx context.Context, tenantID uuid.UUID) (map[manufacturing.ProcessStatus]int64, error) {
	var rows []struct {
		Status manufacturing.ProcessStatus
		Count  int64
	}
	if err := r.db.WithContext(ctx).
		Model(&manufacturing.ManufacturingProcess{}).
		Select("status, COUNT(*) as count").
		Where("tenant_id = ? AND deleted_at IS NULL", tenantID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[manufacturing.ProcessStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// SoftDelete sets the tombstone columns on a process
func (r *GormProcessRepository) SoftDelete(ctx context.Context, tenantID, id, deletedBy uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Model(&manufacturing.ManufacturingProcess{}).
		Where("tenant_id = ? AND id = ? AND deleted_at IS NULL", tenantID, id).
		Updates(map[string]interface{}{
			"deleted_at": time.Now(),
			"deleted_by": deletedBy,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ExistsByNumber reports whether a live process with the number exists
func (r *GormProcessRepository) ExistsByNumber(ctx context.Context, tenantID uuid.UUID, processNumber string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&manufacturing.ManufacturingProcess{}).
		Where("tenant_id = ? AND process_number = ? AND deleted_at IS NULL", tenantID, processNumber).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// applyProcessFilter applies the domain filter's predicates to the query
func (r *GormProcessRepository) applyProcessFilter(query *gorm.DB, filter manufacturing.ProcessFilter) *gorm.DB {
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.ProductID != nil {
		query = query.Where("product_id = ?", *filter.ProductID)
	}
	if filter.FormulaID != nil {
		query = query.Where("formula_id = ?", *filter.FormulaID)
	}
	if filter.DateFrom != nil {
		query = query.Where("process_date >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		query = query.Where("process_date <= ?", *filter.DateTo)
	}
	if filter.Search != "" {
		query = query.Where("process_number ILIKE ?", "%"+filter.Search+"%")
	}
	return query
}

// Ensure GormProcessRepository implements ProcessRepository
var _ manufacturing.ProcessRepository = (*GormProcessRepository)(nil)
