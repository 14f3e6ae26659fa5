package manufacturing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helpers for ManufacturingProcess
func createTestProcess(t *testing.T) *ManufacturingProcess {
	tenantID := uuid.New()
	processDate := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	startDate := time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC)
	process, err := NewManufacturingProcess(tenantID, "MP-2026-001", uuid.New(), uuid.New(), uuid.New(), uuid.New(), dec(500), processDate, startDate)
	require.NoError(t, err)
	return process
}

func addTestLine(t *testing.T, p *ManufacturingProcess, qty, unitCost float64, critical bool) *RawMaterialLine {
	line, err := p.AddLine(uuid.New(), uuid.New(), nil, dec(qty), dec(unitCost), critical)
	require.NoError(t, err)
	return line
}

// applyFullAvailability marks every line as fully covered by stock
func applyFullAvailability(p *ManufacturingProcess) {
	reports := make([]AvailabilityReport, 0, len(p.Lines))
	for _, line := range p.Lines {
		reports = append(reports, AvailabilityReport{
			LineID:            line.ID,
			ItemID:            line.ItemID,
			WarehouseID:       line.WarehouseID,
			RequiredQuantity:  line.ConsumedQuantity,
			AvailableQuantity: line.ConsumedQuantity.Mul(decimal.NewFromInt(2)),
		})
	}
	p.ApplyAvailability(reports)
}

func startTestProcess(t *testing.T, p *ManufacturingProcess) {
	applyFullAvailability(p)
	require.NoError(t, p.Start())
}

// ============================================
// ProcessStatus Tests
// ============================================

func TestProcessStatus_IsValid(t *testing.T) {
	tests := []struct {
		status  ProcessStatus
		isValid bool
	}{
		{ProcessStatusDraft, true},
		{ProcessStatusInProgress, true},
		{ProcessStatusCompleted, true},
		{ProcessStatusCancelled, true},
		{ProcessStatus("INVALID"), false},
		{ProcessStatus(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.isValid, tt.status.IsValid())
		})
	}
}

func TestProcessStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from     ProcessStatus
		to       ProcessStatus
		canTrans bool
	}{
		// From DRAFT
		{ProcessStatusDraft, ProcessStatusInProgress, true},
		{ProcessStatusDraft, ProcessStatusCancelled, true},
		{ProcessStatusDraft, ProcessStatusCompleted, false},
		{ProcessStatusDraft, ProcessStatusDraft, false},
		// From IN_PROGRESS
		{ProcessStatusInProgress, ProcessStatusCompleted, true},
		{ProcessStatusInProgress, ProcessStatusCancelled, true},
		{ProcessStatusInProgress, ProcessStatusDraft, false},
		// From COMPLETED (terminal)
		{ProcessStatusCompleted, ProcessStatusDraft, false},
		{ProcessStatusCompleted, ProcessStatusInProgress, false},
		{ProcessStatusCompleted, ProcessStatusCancelled, false},
		// From CANCELLED (restartable)
		{ProcessStatusCancelled, ProcessStatusDraft, true},
		{ProcessStatusCancelled, ProcessStatusInProgress, false},
		{ProcessStatusCancelled, ProcessStatusCompleted, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.canTrans, tt.from.CanTransitionTo(tt.to))
		})
	}
}

// ============================================
// Process Creation Tests
// ============================================

func TestNewManufacturingProcess_Success(t *testing.T) {
	process := createTestProcess(t)

	assert.Equal(t, "MP-2026-001", process.ProcessNumber)
	assert.Equal(t, ProcessStatusDraft, process.Status)
	assert.True(t, process.ProducedQuantity.Equal(dec(500)))
	assert.True(t, process.CompletionPercentage.IsZero())
	assert.Empty(t, process.Lines)
	assert.Len(t, process.GetDomainEvents(), 1)
}

func TestNewManufacturingProcess_Validation(t *testing.T) {
	tenantID := uuid.New()
	warehouse := uuid.New()
	processDate := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	startDate := processDate.AddDate(0, 0, 1)

	tests := []struct {
		name     string
		run      func() error
		wantCode string
	}{
		{"empty number", func() error {
			_, err := NewManufacturingProcess(tenantID, "", uuid.New(), uuid.New(), uuid.New(), uuid.New(), dec(1), processDate, startDate)
			return err
		}, "INVALID_PROCESS_NUMBER"},
		{"same warehouses", func() error {
			_, err := NewManufacturingProcess(tenantID, "MP-001", uuid.New(), uuid.New(), warehouse, warehouse, dec(1), processDate, startDate)
			return err
		}, "WAREHOUSE_COLLISION"},
		{"zero quantity", func() error {
			_, err := NewManufacturingProcess(tenantID, "MP-001", uuid.New(), uuid.New(), uuid.New(), uuid.New(), decimal.Zero, processDate, startDate)
			return err
		}, "INVALID_QUANTITY"},
		{"start before process date", func() error {
			_, err := NewManufacturingProcess(tenantID, "MP-001", uuid.New(), uuid.New(), uuid.New(), uuid.New(), dec(1), startDate, processDate)
			return err
		}, "DATE_ORDER_VIOLATION"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			require.Error(t, err)
			assertDomainCode(t, err, tt.wantCode)
		})
	}
}

func TestProcess_SetDates(t *testing.T) {
	process := createTestProcess(t)
	processDate := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	startDate := processDate.AddDate(0, 0, 2)
	endDate := startDate.AddDate(0, 0, 5)

	require.NoError(t, process.SetDates(processDate, startDate, &endDate))

	badEnd := startDate.AddDate(0, 0, -1)
	err := process.SetDates(processDate, startDate, &badEnd)
	require.Error(t, err)
	assertDomainCode(t, err, "DATE_ORDER_VIOLATION")
}

// ============================================
// Line Management Tests
// ============================================

func TestProcess_AddLine(t *testing.T) {
	process := createTestProcess(t)

	line := addTestLine(t, process, 200, 1.5, true)

	assert.Equal(t, 1, process.LineCount())
	assert.Equal(t, process.RawWarehouseID, line.WarehouseID, "nil warehouse defaults to raw warehouse")
	assert.True(t, line.ConsumedQuantity.Equal(dec(200)))
	assert.True(t, line.IsCritical)
}

func TestProcess_AddLine_ExplicitWarehouse(t *testing.T) {
	process := createTestProcess(t)
	other := uuid.New()

	line, err := process.AddLine(uuid.New(), uuid.New(), &other, dec(10), dec(1), false)

	require.NoError(t, err)
	assert.Equal(t, other, line.WarehouseID)
}

func TestProcess_AddLine_DuplicateItem(t *testing.T) {
	process := createTestProcess(t)
	itemID := uuid.New()

	_, err := process.AddLine(itemID, uuid.New(), nil, dec(10), dec(1), false)
	require.NoError(t, err)

	_, err = process.AddLine(itemID, uuid.New(), nil, dec(20), dec(1), false)
	require.Error(t, err)
	assertDomainCode(t, err, "DUPLICATE_RAW_MATERIAL")
	assert.Equal(t, 1, process.LineCount())
}

func TestProcess_RemoveLine(t *testing.T) {
	process := createTestProcess(t)
	line := addTestLine(t, process, 10, 1, false)

	require.NoError(t, process.RemoveLine(line.ID))
	assert.Equal(t, 0, process.LineCount())

	err := process.RemoveLine(uuid.New())
	require.Error(t, err)
	assertDomainCode(t, err, "LINE_NOT_FOUND")
}

func TestProcess_LineChangesRejectedAfterStart(t *testing.T) {
	process := createTestProcess(t)
	line := addTestLine(t, process, 10, 1, false)
	startTestProcess(t, process)

	_, err := process.AddLine(uuid.New(), uuid.New(), nil, dec(5), dec(1), false)
	assert.Error(t, err)
	assert.Error(t, process.RemoveLine(line.ID))
	assert.Error(t, process.UpdateLinePlan(line.ID, dec(20), dec(2)))
}

// ============================================
// Availability and Shortage Tests
// ============================================

func TestProcess_ApplyAvailability_Shortage(t *testing.T) {
	process := createTestProcess(t)
	line := addTestLine(t, process, 100, 1, true)

	process.ApplyAvailability([]AvailabilityReport{{
		LineID:            line.ID,
		ItemID:            line.ItemID,
		WarehouseID:       line.WarehouseID,
		RequiredQuantity:  dec(100),
		AvailableQuantity: dec(60),
	}})

	got := process.GetLineByItem(line.ItemID)
	require.NotNil(t, got)
	assert.True(t, got.HasShortage())
	assert.True(t, got.ShortageQuantity.Equal(dec(40)))
	assert.Len(t, process.CriticalShortages(), 1)
}

func TestProcess_ShortageWarnings_NonCritical(t *testing.T) {
	process := createTestProcess(t)
	line := addTestLine(t, process, 100, 1, false)

	process.ApplyAvailability([]AvailabilityReport{{
		LineID:            line.ID,
		AvailableQuantity: dec(30),
	}})

	assert.Empty(t, process.CriticalShortages())
	assert.Len(t, process.ShortageWarnings(), 1)
}

// ============================================
// Start Tests
// ============================================

func TestProcess_Start_Success(t *testing.T) {
	process := createTestProcess(t)
	addTestLine(t, process, 200, 1.5, true)
	addTestLine(t, process, 50, 4, false)

	startTestProcess(t, process)

	assert.Equal(t, ProcessStatusInProgress, process.Status)
	require.NotNil(t, process.StartedAt)
	for _, line := range process.Lines {
		require.NotNil(t, line.ActualConsumedQuantity)
		assert.True(t, line.ActualConsumedQuantity.Equal(line.ConsumedQuantity), "actuals initialized to plan")
		assert.True(t, line.WasteQuantity.IsZero())
	}
}

func TestProcess_Start_NoLines(t *testing.T) {
	process := createTestProcess(t)

	err := process.Start()

	require.Error(t, err)
	assertDomainCode(t, err, "NO_LINES")
	assert.Equal(t, ProcessStatusDraft, process.Status)
}

func TestProcess_Start_CriticalShortageBlocks(t *testing.T) {
	process := createTestProcess(t)
	critical := addTestLine(t, process, 100, 1, true)

	process.ApplyAvailability([]AvailabilityReport{{
		LineID:            critical.ID,
		AvailableQuantity: dec(10),
	}})

	err := process.Start()

	require.Error(t, err)
	assertDomainCode(t, err, "INSUFFICIENT_CRITICAL_STOCK")
	assert.Equal(t, ProcessStatusDraft, process.Status)
	assert.Nil(t, process.StartedAt)
}

func TestProcess_Start_NonCriticalShortageProceeds(t *testing.T) {
	process := createTestProcess(t)
	optional := addTestLine(t, process, 100, 1, false)

	process.ApplyAvailability([]AvailabilityReport{{
		LineID:            optional.ID,
		AvailableQuantity: dec(10),
	}})

	require.NoError(t, process.Start())
	assert.Equal(t, ProcessStatusInProgress, process.Status)
}

func TestProcess_DebitPlan(t *testing.T) {
	process := createTestProcess(t)
	a := addTestLine(t, process, 200, 1, false)
	b := addTestLine(t, process, 50, 1, false)

	plan := process.DebitPlan()

	require.Len(t, plan, 2)
	assert.Equal(t, a.ItemID, plan[0].ItemID)
	assert.True(t, plan[0].Quantity.Equal(dec(200)))
	assert.Equal(t, b.ItemID, plan[1].ItemID)
	assert.True(t, plan[1].Quantity.Equal(dec(50)))
}

// ============================================
// Complete Tests
// ============================================

func TestProcess_Complete_WithRevisedActuals(t *testing.T) {
	process := createTestProcess(t)
	line := addTestLine(t, process, 200, 1.5, false)
	require.NoError(t, process.SetCosts(dec(120), dec(80)))
	startTestProcess(t, process)

	actualOut := dec(480)
	err := process.Complete([]ActualConsumption{
		{ItemID: line.ItemID, Quantity: dec(210)},
	}, &actualOut)

	require.NoError(t, err)
	assert.Equal(t, ProcessStatusCompleted, process.Status)
	require.NotNil(t, process.CompletedAt)
	require.NotNil(t, process.EndDate)
	assert.True(t, process.CompletionPercentage.Equal(dec(100)))

	got := process.GetLineByItem(line.ItemID)
	require.NotNil(t, got.ActualConsumedQuantity)
	assert.True(t, got.ActualConsumedQuantity.Equal(dec(210)))
	assert.True(t, got.WasteQuantity.Equal(dec(10)), "waste = actual - plan")

	// raw 210 * 1.5 = 315; total = 315 + 120 + 80 = 515; per unit on actual output 480
	assert.True(t, process.TotalRawMaterialCost.Equal(dec(315)))
	assert.True(t, process.TotalCost.Equal(dec(515)))
	assert.True(t, process.CostPerUnit.Equal(dec(515).Div(dec(480)).Round(4)))
}

func TestProcess_Complete_ZeroActual(t *testing.T) {
	process := createTestProcess(t)
	line := addTestLine(t, process, 10, 12, false)
	startTestProcess(t, process)

	err := process.Complete([]ActualConsumption{
		{ItemID: line.ItemID, Quantity: dec(0)},
	}, nil)

	require.NoError(t, err)

	// A revised actual of zero means the line consumed nothing and costs nothing
	got := process.GetLineByItem(line.ItemID)
	require.NotNil(t, got.ActualConsumedQuantity)
	assert.True(t, got.ActualConsumedQuantity.IsZero())
	assert.True(t, got.TotalCost().IsZero())
	assert.True(t, got.WasteQuantity.IsZero())
	assert.True(t, process.TotalRawMaterialCost.Equal(dec(0)))
}

func TestProcess_Complete_DefaultsToPlan(t *testing.T) {
	process := createTestProcess(t)
	addTestLine(t, process, 100, 2, false)
	startTestProcess(t, process)

	require.NoError(t, process.Complete(nil, nil))

	// No revised actuals: effective consumption stays at plan, output at target
	assert.True(t, process.TotalRawMaterialCost.Equal(dec(200)))
	assert.True(t, process.CreditQuantity().Equal(dec(500)))
	assert.True(t, process.CostPerUnit.Equal(dec(200).Div(dec(500)).Round(4)))
}

func TestProcess_Complete_UnknownItem(t *testing.T) {
	process := createTestProcess(t)
	addTestLine(t, process, 100, 2, false)
	startTestProcess(t, process)

	err := process.Complete([]ActualConsumption{{ItemID: uuid.New(), Quantity: dec(5)}}, nil)

	require.Error(t, err)
	assertDomainCode(t, err, "LINE_NOT_FOUND")
}

func TestProcess_Complete_FromDraft(t *testing.T) {
	process := createTestProcess(t)
	addTestLine(t, process, 100, 2, false)

	err := process.Complete(nil, nil)

	require.Error(t, err)
	assertDomainCode(t, err, "INVALID_STATUS_TRANSITION")
}

func TestProcess_CostsFrozenAfterComplete(t *testing.T) {
	process := createTestProcess(t)
	addTestLine(t, process, 100, 2, false)
	startTestProcess(t, process)
	require.NoError(t, process.Complete(nil, nil))

	err := process.SetCosts(dec(999), dec(999))

	require.Error(t, err)
	assertDomainCode(t, err, "INVALID_STATE")
}

// ============================================
// Cancel and Restart Tests
// ============================================

func TestProcess_Cancel_FromDraft(t *testing.T) {
	process := createTestProcess(t)

	require.NoError(t, process.Cancel("materials unavailable"))

	assert.Equal(t, ProcessStatusCancelled, process.Status)
	assert.Equal(t, "materials unavailable", process.CancelReason)
	require.NotNil(t, process.CancelledAt)
}

func TestProcess_Cancel_RequiresReason(t *testing.T) {
	process := createTestProcess(t)

	err := process.Cancel("")

	require.Error(t, err)
	assertDomainCode(t, err, "INVALID_REASON")
}

func TestProcess_Cancel_FromInProgress_FreezesProgress(t *testing.T) {
	process := createTestProcess(t)
	addTestLine(t, process, 100, 1, false)
	startTestProcess(t, process)
	require.NoError(t, process.UpdateProgress(dec(40)))

	require.NoError(t, process.Cancel("machine failure"))

	assert.True(t, process.CompletionPercentage.Equal(dec(40)))
	assert.True(t, process.Progress(time.Now()).Equal(dec(40)))
}

func TestProcess_Cancel_CompletedIsTerminal(t *testing.T) {
	process := createTestProcess(t)
	addTestLine(t, process, 100, 1, false)
	startTestProcess(t, process)
	require.NoError(t, process.Complete(nil, nil))

	err := process.Cancel("too late")

	require.Error(t, err)
	assertDomainCode(t, err, "INVALID_STATUS_TRANSITION")
	assert.True(t, process.IsTerminal())
}

func TestProcess_Restart(t *testing.T) {
	process := createTestProcess(t)
	line := addTestLine(t, process, 100, 1, false)
	startTestProcess(t, process)
	require.NoError(t, process.UpdateProgress(dec(25)))
	require.NoError(t, process.Cancel("restocking"))

	require.NoError(t, process.Restart())

	assert.Equal(t, ProcessStatusDraft, process.Status)
	assert.Nil(t, process.StartedAt)
	assert.Nil(t, process.CancelledAt)
	assert.Empty(t, process.CancelReason)
	assert.True(t, process.CompletionPercentage.IsZero())

	got := process.GetLineByItem(line.ItemID)
	assert.Nil(t, got.ActualConsumedQuantity)
	assert.True(t, got.WasteQuantity.IsZero())
}

func TestProcess_Restart_OnlyFromCancelled(t *testing.T) {
	process := createTestProcess(t)

	err := process.Restart()

	require.Error(t, err)
	assertDomainCode(t, err, "INVALID_STATUS_TRANSITION")
}

// ============================================
// Progress Tests
// ============================================

func TestProcess_UpdateProgress(t *testing.T) {
	process := createTestProcess(t)
	addTestLine(t, process, 100, 1, false)

	err := process.UpdateProgress(dec(50))
	require.Error(t, err, "draft has no progress")

	startTestProcess(t, process)
	require.NoError(t, process.UpdateProgress(dec(50)))
	assert.True(t, process.CompletionPercentage.Equal(dec(50)))

	assert.Error(t, process.UpdateProgress(dec(101)))
	assert.Error(t, process.UpdateProgress(dec(-1)))
}

func TestProcess_Progress_Derived(t *testing.T) {
	process := createTestProcess(t)
	addTestLine(t, process, 100, 1, false)

	now := time.Now()
	assert.True(t, process.Progress(now).IsZero(), "draft is 0")

	start := now.Add(-1 * time.Hour)
	end := now.Add(1 * time.Hour)
	require.NoError(t, process.SetDates(start.Add(-time.Hour), start, &end))
	startTestProcess(t, process)

	derived := process.Progress(now)
	assert.True(t, derived.Equal(dec(50)), "halfway through the window, got %s", derived)

	assert.True(t, process.Progress(end.Add(time.Minute)).Equal(dec(100)))
	assert.True(t, process.Progress(start.Add(-time.Minute)).IsZero())

	require.NoError(t, process.Complete(nil, nil))
	assert.True(t, process.Progress(now).Equal(dec(100)))
}
