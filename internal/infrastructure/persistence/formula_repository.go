package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/manufacturing/internal/domain/manufacturing"
	"github.com/erp/manufacturing/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormFormulaRepository implements manufacturing.FormulaRepository using GORM
type GormFormulaRepository struct {
	db *gorm.DB
}

// NewGormFormulaRepository creates a new GormFormulaRepository
func NewGormFormulaRepository(db *gorm.DB) *GormFormulaRepository {
	return &GormFormulaRepository{db: db}
}

// Save persists a formula (insert or full update)
func (r *GormFormulaRepository) Save(ctx context.Context, formula *manufacturing.ManufacturingFormula) error {
	return r.db.WithContext(ctx).Save(formula).Error
}

// SaveWithLock saves with optimistic locking against the expected version
func (r *GormFormulaRepository) SaveWithLock(ctx context.Context, formula *manufacturing.ManufacturingFormula, expectedVersion int) error {
	result := r.db.WithContext(ctx).
		Model(formula).
		Where("id = ? AND version = ?", formula.ID, expectedVersion).
		Updates(map[string]interface{}{
			"name":              formula.Name,
			"description":       formula.Description,
			"consumed_quantity": formula.ConsumedQuantity,
			"produced_quantity": formula.ProducedQuantity,
			"labor_cost":        formula.LaborCost,
			"operating_cost":    formula.OperatingCost,
			"waste_cost":        formula.WasteCost,
			"price_tier":        formula.PriceTier,
			"effective_from":    formula.EffectiveFrom,
			"effective_to":      formula.EffectiveTo,
			"status":            formula.Status,
			"updated_by":        formula.UpdatedBy,
			"version":           formula.GetVersion(),
			"updated_at":        formula.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// FindByIDForTenant finds a formula by ID within a tenant
func (r *GormFormulaRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*manufacturing.ManufacturingFormula, error) {
	var formula manufacturing.ManufacturingFormula
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ? AND deleted_at IS NULL", tenantID, id).
		First(&formula).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &formula, nil
}

// FindByNumberForTenant finds a formula by its number within a tenant
func (r *GormFormulaRepository) FindByNumberForTenant(ctx context.Context, tenantID uuid.UUID, formulaNumber string) (*manufacturing.ManufacturingFormula, error) {
	var formula manufacturing.ManufacturingFormula
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND formula_number = ? AND deleted_at IS NULL", tenantID, formulaNumber).
		First(&formula).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &formula, nil
}

// FindAllForTenant returns a filtered, paginated formula page
func (r *GormFormulaRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter manufacturing.FormulaFilter) (*shared.Paginated[manufacturing.ManufacturingFormula], error) {
	filter.Normalize()

	query := r.db.WithContext(ctx).
		Model(&manufacturing.ManufacturingFormula{}).
		Where("tenant_id = ? AND deleted_at IS NULL", tenantID)
	query = r.applyFormulaFilter(query, filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	orderBy := ValidateSortField(filter.OrderBy, FormulaSortFields, "created_at")
	orderDir := ValidateSortOrder(filter.OrderDir)
	offset := (filter.Page - 1) * filter.PageSize

	var formulas []manufacturing.ManufacturingFormula
	if err := query.
		Order(orderBy + " " + orderDir).
		Offset(offset).
		Limit(filter.PageSize).
		Find(&formulas).Error; err != nil {
		return nil, err
	}

	page := shared.NewPaginated(formulas, total, filter.Page, filter.PageSize)
	return &page, nil
}

// FindActiveByProduct returns the active formulas for a product whose
// effective window covers the given time
func (r *GormFormulaRepository) FindActiveByProduct(ctx context.Context, tenantID, productID uuid.UUID, at time.Time) ([]manufacturing.ManufacturingFormula, error) {
	var formulas []manufacturing.ManufacturingFormula
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND product_id = ? AND status = ? AND deleted_at IS NULL", tenantID, productID, manufacturing.FormulaStatusActive).
		Where("(effective_from IS NULL OR effective_from <= ?)", at).
		Where("(effective_to IS NULL OR effective_to >= ?)", at).
		Order("effective_from DESC NULLS LAST").
		Find(&formulas).Error; err != nil {
		return nil, err
	}
	return formulas, nil
}

// CountByStatusForTenant returns formula counts grouped by status
func (r *GormFormulaRepository) CountByStatusForTenant(ctx context.Context, tenantID uuid.UUID) (map[manufacturing.FormulaStatus]int64, error) {
	var rows []struct {
		Status manufacturing.FormulaStatus
		Count  int64
	}
	if err := r.db.WithContext(ctx).
		Model(&manufacturing.ManufacturingFormula{}).
		Select("status, COUNT(*) as count").
		Where("tenant_id = ? AND deleted_at IS NULL", tenantID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[manufacturing.FormulaStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// SoftDelete sets the tombstone columns on a formula
func (r *GormFormulaRepository) SoftDelete(ctx context.Context, tenantID, id, deletedBy uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Model(&manufacturing.ManufacturingFormula{}).
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

// ExistsByNumber reports whether a live formula with the number exists
func (r *GormFormulaRepository) ExistsByNumber(ctx context.Context, tenantID uuid.UUID, formulaNumber string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&manufacturing.ManufacturingFormula{}).
		Where("tenant_id = ? AND formula_number = ? AND deleted_at IS NULL", tenantID, formulaNumber).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// applyFormulaFilter applies the domain filter's predicates to the query
func (r *GormFormulaRepository) applyFormulaFilter(query *gorm.DB, filter manufacturing.FormulaFilter) *gorm.DB {
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.ProductID != nil {
		query = query.Where("product_id = ?", *filter.ProductID)
	}
	if filter.PriceTier != nil {
		query = query.Where("price_tier = ?", *filter.PriceTier)
	}
	if filter.EffectiveAt != nil {
		query = query.
			Where("(effective_from IS NULL OR effective_from <= ?)", *filter.EffectiveAt).
			Where("(effective_to IS NULL OR effective_to >= ?)", *filter.EffectiveAt)
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		query = query.Where("formula_number ILIKE ? OR name ILIKE ?", pattern, pattern)
	}
	return query
}

// Ensure GormFormulaRepository implements FormulaRepository
var _ manufacturing.FormulaRepository = (*GormFormulaRepository)(nil)
