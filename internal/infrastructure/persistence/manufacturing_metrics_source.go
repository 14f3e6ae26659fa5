package persistence

import (
	"context"

	"github.com/erp/manufacturing/internal/domain/manufacturing"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ManufacturingMetricsSource answers the queries the telemetry layer needs for
// periodic gauge collection. It reads directly from the process table so the
// collector does not hold aggregate roots in memory.
type ManufacturingMetricsSource struct {
	db *gorm.DB
}

// NewManufacturingMetricsSource creates a new ManufacturingMetricsSource
func NewManufacturingMetricsSource(db *gorm.DB) *ManufacturingMetricsSource {
	return &ManufacturingMetricsSource{db: db}
}

// GetInProgressCount returns the number of in-progress processes for a tenant
func (s *ManufacturingMetricsSource) GetInProgressCount(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&manufacturing.ManufacturingProcess{}).
		Where("tenant_id = ? AND status = ? AND deleted_at IS NULL", tenantID, manufacturing.ProcessStatusInProgress).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// GetActiveTenantIDs returns the tenants that currently have in-progress processes
func (s *ManufacturingMetricsSource) GetActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error) {
	var tenantIDs []uuid.UUID
	err := s.db.WithContext(ctx).
		Model(&manufacturing.ManufacturingProcess{}).
		Where("status = ? AND deleted_at IS NULL", manufacturing.ProcessStatusInProgress).
		Distinct("tenant_id").
		Pluck("tenant_id", &tenantIDs).Error
	if err != nil {
		return nil, err
	}
	return tenantIDs, nil
}
