// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// ManufacturingMetrics tracks formula activity, process transitions, and
// raw-material stock movement.
type ManufacturingMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Counter metrics (monotonically increasing)
	formulaCreatedTotal    *Counter
	processTransitionTotal *Counter
	stockMovementTotal     *Counter
	shortageBlockedTotal   *Counter

	// Gauge metrics (point-in-time values)
	processInProgressCount *Gauge

	// Periodic collector
	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	processProvider ProcessMetricsProvider
}

// ProcessMetricsProvider provides process data for periodic metrics collection.
// This interface allows the telemetry layer to query process state without
// depending on the manufacturing domain directly.
type ProcessMetricsProvider interface {
	// GetInProgressCount returns the number of in-progress processes for a tenant
	GetInProgressCount(ctx context.Context, tenantID uuid.UUID) (int64, error)
}

// ManufacturingMetricsConfig holds configuration for manufacturing metrics.
type ManufacturingMetricsConfig struct {
	Meter           metric.Meter
	Logger          *zap.Logger
	CollectInterval time.Duration // Default: 5 minutes
	ProcessProvider ProcessMetricsProvider
}

// NewManufacturingMetrics creates a new ManufacturingMetrics instance.
func NewManufacturingMetrics(cfg ManufacturingMetricsConfig) (*ManufacturingMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	mm := &ManufacturingMetrics{
		meter:           cfg.Meter,
		logger:          logger,
		stopChan:        make(chan struct{}),
		processProvider: cfg.ProcessProvider,
	}

	var err error

	mm.formulaCreatedTotal, err = NewCounter(
		cfg.Meter,
		"mfg_formula_created_total",
		"Total number of manufacturing formulas created",
		"{formulas}",
	)
	if err != nil {
		return nil, err
	}

	mm.processTransitionTotal, err = NewCounter(
		cfg.Meter,
		"mfg_process_transition_total",
		"Total number of manufacturing process state transitions",
		"{transitions}",
	)
	if err != nil {
		return nil, err
	}

	mm.stockMovementTotal, err = NewCounter(
		cfg.Meter,
		"mfg_stock_movement_total",
		"Total number of raw-material stock movements applied",
		"{movements}",
	)
	if err != nil {
		return nil, err
	}

	mm.shortageBlockedTotal, err = NewCounter(
		cfg.Meter,
		"mfg_shortage_blocked_total",
		"Total number of process starts blocked by critical shortages",
		"{starts}",
	)
	if err != nil {
		return nil, err
	}

	mm.processInProgressCount, err = NewGauge(
		cfg.Meter,
		"mfg_process_in_progress_count",
		"Number of processes currently in progress",
		"{processes}",
	)
	if err != nil {
		return nil, err
	}

	return mm, nil
}

// =============================================================================
// Formula Metrics
// =============================================================================

// RecordFormulaCreated records a formula creation.
func (mm *ManufacturingMetrics) RecordFormulaCreated(ctx context.Context, tenantID uuid.UUID) {
	mm.formulaCreatedTotal.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
	)
}

// =============================================================================
// Process Transition Metrics
// =============================================================================

// ProcessTransition labels a process state transition for metrics.
type ProcessTransition string

const (
	TransitionStarted   ProcessTransition = "started"
	TransitionCompleted ProcessTransition = "completed"
	TransitionCancelled ProcessTransition = "cancelled"
	TransitionRestarted ProcessTransition = "restarted"
)

// RecordProcessTransition records a process state transition.
// This should be called from the application layer after the transition commits.
func (mm *ManufacturingMetrics) RecordProcessTransition(ctx context.Context, tenantID uuid.UUID, transition ProcessTransition) {
	mm.processTransitionTotal.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrTransition.String(string(transition)),
	)
}

// RecordShortageBlocked records a process start rejected for critical shortages.
func (mm *ManufacturingMetrics) RecordShortageBlocked(ctx context.Context, tenantID uuid.UUID) {
	mm.shortageBlockedTotal.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
	)
}

// =============================================================================
// Stock Movement Metrics
// =============================================================================

// MovementType labels the direction of a stock movement.
type MovementType string

const (
	MovementDebit  MovementType = "debit"
	MovementCredit MovementType = "credit"
)

// RecordStockMovements records a batch of applied stock movements.
func (mm *ManufacturingMetrics) RecordStockMovements(ctx context.Context, tenantID uuid.UUID, movementType MovementType, count int64) {
	mm.stockMovementTotal.Add(ctx, count,
		AttrTenantID.String(tenantID.String()),
		AttrMovementType.String(string(movementType)),
	)
}

// =============================================================================
// Periodic Collection
// =============================================================================

// TenantProvider provides tenant IDs for periodic metrics collection.
type TenantProvider interface {
	GetActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error)
}

// StartPeriodicCollection starts periodic collection of gauge metrics.
// This is non-blocking - use Stop() to stop collection.
func (mm *ManufacturingMetrics) StartPeriodicCollection(ctx context.Context, tenantProvider TenantProvider, interval time.Duration) {
	mm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}

		go mm.runPeriodicCollection(ctx, tenantProvider, interval)
	})
}

// runPeriodicCollection runs the periodic collection loop.
func (mm *ManufacturingMetrics) runPeriodicCollection(ctx context.Context, tenantProvider TenantProvider, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Collect immediately on start
	mm.collectProcessMetrics(ctx, tenantProvider)

	for {
		select {
		case <-mm.stopChan:
			mm.logger.Info("Stopping periodic manufacturing metrics collection")
			return
		case <-ctx.Done():
			mm.logger.Info("Context cancelled, stopping periodic manufacturing metrics collection")
			return
		case <-ticker.C:
			mm.collectProcessMetrics(ctx, tenantProvider)
		}
	}
}

// collectProcessMetrics collects process gauge metrics for all tenants.
func (mm *ManufacturingMetrics) collectProcessMetrics(ctx context.Context, tenantProvider TenantProvider) {
	if mm.processProvider == nil {
		mm.logger.Debug("No process provider configured, skipping process metrics collection")
		return
	}

	tenantIDs, err := tenantProvider.GetActiveTenantIDs(ctx)
	if err != nil {
		mm.logger.Error("Failed to get tenant IDs for metrics collection", zap.Error(err))
		return
	}

	for _, tenantID := range tenantIDs {
		count, err := mm.processProvider.GetInProgressCount(ctx, tenantID)
		if err != nil {
			mm.logger.Warn("Failed to get in-progress process count for tenant",
				zap.String("tenant_id", tenantID.String()),
				zap.Error(err),
			)
			continue
		}
		mm.processInProgressCount.Record(ctx, count,
			AttrTenantID.String(tenantID.String()),
		)
	}
}

// Stop stops the periodic collection.
func (mm *ManufacturingMetrics) Stop() {
	mm.stopOnce.Do(func() {
		close(mm.stopChan)
	})
}

// =============================================================================
// Error Types
// =============================================================================

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewManufacturingMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
