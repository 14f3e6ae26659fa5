package persistence

import (
	"context"
	"errors"

	"github.com/erp/manufacturing/internal/domain/manufacturing/acl"
	"github.com/erp/manufacturing/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// itemRow is the persistence projection of a catalog item reference
type itemRow struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID uuid.UUID `gorm:"type:uuid;not null"`
	SKU      string    `gorm:"size:50;not null"`
	Name     string    `gorm:"size:200;not null"`
	UnitID   uuid.UUID `gorm:"type:uuid;not null"`
	IsActive bool      `gorm:"not null;default:true"`
}

func (itemRow) TableName() string {
	return "catalog_items"
}

// warehouseRow is the persistence projection of a warehouse reference
type warehouseRow struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID uuid.UUID `gorm:"type:uuid;not null"`
	Code     string    `gorm:"size:50;not null"`
	Name     string    `gorm:"size:200;not null"`
	IsActive bool      `gorm:"not null;default:true"`
}

func (warehouseRow) TableName() string {
	return "warehouses"
}

// unitRow is the persistence projection of a unit of measure
type unitRow struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey"`
	Code   string    `gorm:"size:50;not null"`
	Name   string    `gorm:"size:100;not null"`
	Symbol string    `gorm:"size:20"`
}

func (unitRow) TableName() string {
	return "units"
}

// GormReferenceCatalog resolves item, warehouse and unit references owned by
// other bounded contexts through their locally synchronized projections.
// It implements acl.ItemCatalog, acl.WarehouseRegistry and acl.UnitCatalog.
type GormReferenceCatalog struct {
	db *gorm.DB
}

// NewGormReferenceCatalog creates a new GormReferenceCatalog
func NewGormReferenceCatalog(db *gorm.DB) *GormReferenceCatalog {
	return &GormReferenceCatalog{db: db}
}

// GetItem resolves an item reference by ID
func (c *GormReferenceCatalog) GetItem(ctx context.Context, tenantID, itemID uuid.UUID) (*acl.ItemRef, error) {
	var row itemRow
	err := c.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, itemID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}

	return &acl.ItemRef{
		ID:       row.ID,
		SKU:      row.SKU,
		Name:     row.Name,
		UnitID:   row.UnitID,
		IsActive: row.IsActive,
	}, nil
}

// ItemExists checks whether an active item reference exists
func (c *GormReferenceCatalog) ItemExists(ctx context.Context, tenantID, itemID uuid.UUID) (bool, error) {
	var count int64
	err := c.db.WithContext(ctx).
		Model(&itemRow{}).
		Where("tenant_id = ? AND id = ? AND is_active = ?", tenantID, itemID, true).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetWarehouse resolves a warehouse reference by ID
func (c *GormReferenceCatalog) GetWarehouse(ctx context.Context, tenantID, warehouseID uuid.UUID) (*acl.WarehouseRef, error) {
	var row warehouseRow
	err := c.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, warehouseID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}

	return &acl.WarehouseRef{
		ID:       row.ID,
		Code:     row.Code,
		Name:     row.Name,
		IsActive: row.IsActive,
	}, nil
}

// WarehouseExists checks whether an active warehouse reference exists
func (c *GormReferenceCatalog) WarehouseExists(ctx context.Context, tenantID, warehouseID uuid.UUID) (bool, error) {
	var count int64
	err := c.db.WithContext(ctx).
		Model(&warehouseRow{}).
		Where("tenant_id = ? AND id = ? AND is_active = ?", tenantID, warehouseID, true).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetUnit resolves a unit-of-measure reference by ID
func (c *GormReferenceCatalog) GetUnit(ctx context.Context, _ uuid.UUID, unitID uuid.UUID) (*acl.UnitRef, error) {
	var row unitRow
	err := c.db.WithContext(ctx).
		Where("id = ?", unitID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}

	return &acl.UnitRef{
		ID:     row.ID,
		Code:   row.Code,
		Name:   row.Name,
		Symbol: row.Symbol,
	}, nil
}

// UnitExists checks whether a unit-of-measure reference exists
func (c *GormReferenceCatalog) UnitExists(ctx context.Context, _ uuid.UUID, unitID uuid.UUID) (bool, error) {
	var count int64
	err := c.db.WithContext(ctx).
		Model(&unitRow{}).
		Where("id = ?", unitID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

var (
	_ acl.ItemCatalog       = (*GormReferenceCatalog)(nil)
	_ acl.WarehouseRegistry = (*GormReferenceCatalog)(nil)
	_ acl.UnitCatalog       = (*GormReferenceCatalog)(nil)
)
