package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/manufacturing/internal/domain/manufacturing"
	"github.com/erp/manufacturing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStockLedger implements manufacturing.StockLedger on the stock_levels
// table. Debits use a guarded UPDATE so a level can never go negative, and
// every batch runs in a single transaction.
type GormStockLedger struct {
	db *gorm.DB
}

// NewGormStockLedger creates a new GormStockLedger
func NewGormStockLedger(db *gorm.DB) *GormStockLedger {
	return &GormStockLedger{db: db}
}

// Read returns the on-hand quantity for an item in a warehouse.
// A missing row reads as zero.
func (r *GormStockLedger) Read(ctx context.Context, tenantID, itemID, warehouseID uuid.UUID) (decimal.Decimal, error) {
	var level manufacturing.StockLevel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND item_id = ? AND warehouse_id = ?", tenantID, itemID, warehouseID).
		First(&level).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	return level.Quantity, nil
}

// Debit removes the movements' quantities, all in one transaction. Any
// movement that a level cannot cover fails the whole batch with
// ErrInsufficientStock.
func (r *GormStockLedger) Debit(ctx context.Context, tenantID uuid.UUID, movements []manufacturing.StockMovement) error {
	if len(movements) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, movement := range movements {
			if movement.Quantity.LessThanOrEqual(decimal.Zero) {
				return shared.NewDomainError("INVALID_QUANTITY", "Debit quantity must be positive")
			}
			result := tx.Model(&manufacturing.StockLevel{}).
				Where("tenant_id = ? AND item_id = ? AND warehouse_id = ? AND quantity >= ?",
					tenantID, movement.ItemID, movement.WarehouseID, movement.Quantity).
				Updates(map[string]interface{}{
					"quantity":   gorm.Expr("quantity - ?", movement.Quantity),
					"version":    gorm.Expr("version + 1"),
					"updated_at": time.Now(),
				})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return shared.ErrInsufficientStock
			}
		}
		return nil
	})
}

// Credit adds the movements' quantities, creating levels that do not exist
// yet. The whole batch runs in one transaction.
func (r *GormStockLedger) Credit(ctx context.Context, tenantID uuid.UUID, movements []manufacturing.StockMovement) error {
	if len(movements) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, movement := range movements {
			if movement.Quantity.LessThanOrEqual(decimal.Zero) {
				return shared.NewDomainError("INVALID_QUANTITY", "Credit quantity must be positive")
			}
			now := time.Now()
			level := manufacturing.StockLevel{
				TenantID:    tenantID,
				ItemID:      movement.ItemID,
				WarehouseID: movement.WarehouseID,
				Quantity:    movement.Quantity,
				Version:     1,
			}
			level.ID = uuid.New()
			level.CreatedAt = now
			level.UpdatedAt = now

			if err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "tenant_id"}, {Name: "item_id"}, {Name: "warehouse_id"}},
				DoUpdates: clause.Assignments(map[string]interface{}{
					"quantity":   gorm.Expr("stock_levels.quantity + ?", movement.Quantity),
					"version":    gorm.Expr("stock_levels.version + 1"),
					"updated_at": now,
				}),
			}).Create(&level).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Ensure GormStockLedger implements StockLedger
var _ manufacturing.StockLedger = (*GormStockLedger)(nil)
