package manufacturing

import (
	"context"

	"github.com/erp/manufacturing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockLevel is the on-hand quantity of one item in one warehouse. Debits and
// credits are serialized per (item, warehouse) through the Version column.
type StockLevel struct {
	shared.BaseEntity
	TenantID    uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_stock_tenant_item_wh,priority:1"`
	ItemID      uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_stock_tenant_item_wh,priority:2"`
	WarehouseID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_stock_tenant_item_wh,priority:3"`
	Quantity    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Version     int             `gorm:"not null;default:1"`
}

// TableName returns the table name for GORM
func (StockLevel) TableName() string {
	return "stock_levels"
}

// CanDebit reports whether the level covers the requested quantity
func (s *StockLevel) CanDebit(quantity decimal.Decimal) bool {
	return s.Quantity.GreaterThanOrEqual(quantity)
}

// Debit removes quantity from the level, failing rather than going negative
func (s *StockLevel) Debit(quantity decimal.Decimal) error {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("INVALID_QUANTITY", "Debit quantity must be positive")
	}
	if !s.CanDebit(quantity) {
		return shared.ErrInsufficientStock
	}
	s.Quantity = s.Quantity.Sub(quantity)
	return nil
}

// Credit adds quantity to the level
func (s *StockLevel) Credit(quantity decimal.Decimal) error {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("INVALID_QUANTITY", "Credit quantity must be positive")
	}
	s.Quantity = s.Quantity.Add(quantity)
	return nil
}

// StockLedger is the stock gateway the manufacturing domain depends on.
// Debit and Credit apply a batch of movements atomically: either every
// movement lands or none does. Debit fails the whole batch with
// ErrInsufficientStock when any movement would drive a level negative.
type StockLedger interface {
	Read(ctx context.Context, tenantID, itemID, warehouseID uuid.UUID) (decimal.Decimal, error)
	Debit(ctx context.Context, tenantID uuid.UUID, movements []StockMovement) error
	Credit(ctx context.Context, tenantID uuid.UUID, movements []StockMovement) error
}
