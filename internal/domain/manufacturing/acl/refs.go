// Package acl holds the read-only gateways through which manufacturing
// resolves identifiers owned by other bounded contexts. Items, warehouses and
// units live elsewhere; manufacturing only validates that a referenced ID
// exists and reads a few display attributes.
package acl

import (
	"context"

	"github.com/google/uuid"
)

// ItemRef is a read-only projection of a catalog item
type ItemRef struct {
	ID       uuid.UUID `json:"id"`
	SKU      string    `json:"sku"`
	Name     string    `json:"name"`
	UnitID   uuid.UUID `json:"unit_id"`
	IsActive bool      `json:"is_active"`
}

// WarehouseRef is a read-only projection of a warehouse
type WarehouseRef struct {
	ID       uuid.UUID `json:"id"`
	Code     string    `json:"code"`
	Name     string    `json:"name"`
	IsActive bool      `json:"is_active"`
}

// UnitRef is a read-only projection of a unit of measure
type UnitRef struct {
	ID     uuid.UUID `json:"id"`
	Code   string    `json:"code"`
	Name   string    `json:"name"`
	Symbol string    `json:"symbol"`
}

// ItemCatalog resolves item references
type ItemCatalog interface {
	GetItem(ctx context.Context, tenantID, itemID uuid.UUID) (*ItemRef, error)
	ItemExists(ctx context.Context, tenantID, itemID uuid.UUID) (bool, error)
}

// WarehouseRegistry resolves warehouse references
type WarehouseRegistry interface {
	GetWarehouse(ctx context.Context, tenantID, warehouseID uuid.UUID) (*WarehouseRef, error)
	WarehouseExists(ctx context.Context, tenantID, warehouseID uuid.UUID) (bool, error)
}

// UnitCatalog resolves unit-of-measure references
type UnitCatalog interface {
	GetUnit(ctx context.Context, tenantID, unitID uuid.UUID) (*UnitRef, error)
	UnitExists(ctx context.Context, tenantID, unitID uuid.UUID) (bool, error)
}
