package manufacturing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/manufacturing/internal/domain/manufacturing"
	"github.com/erp/manufacturing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type formulaFixture struct {
	service  *FormulaService
	repo     *memFormulaRepo
	events   *MockEventPublisher
	tenantID uuid.UUID
	userID   uuid.UUID
}

func newFormulaFixture() *formulaFixture {
	repo := newMemFormulaRepo()
	events := NewMockEventPublisher()
	service := NewFormulaService(repo, nil, nil)
	service.SetEventPublisher(events)

	return &formulaFixture{
		service:  service,
		repo:     repo,
		events:   events,
		tenantID: uuid.New(),
		userID:   uuid.New(),
	}
}

func baseFormulaRequest() CreateFormulaRequest {
	return CreateFormulaRequest{
		FormulaNumber:    "FRM-2026-001",
		Name:             "Standard mix",
		ProductID:        uuid.New(),
		UnitID:           uuid.New(),
		ConsumedQuantity: decPtr(100),
		ProducedQuantity: decPtr(95),
		LaborCost:        decPtr(50),
		OperatingCost:    decPtr(25),
		WasteCost:        decPtr(5),
		PriceTier:        "SECOND",
	}
}

func TestFormulaService_CreateFormula(t *testing.T) {
	f := newFormulaFixture()

	resp, err := f.service.CreateFormula(context.Background(), f.tenantID, f.userID, baseFormulaRequest())

	require.NoError(t, err)
	assert.Equal(t, "FRM-2026-001", resp.FormulaNumber)
	assert.Equal(t, "DRAFT", resp.Status)
	assert.Equal(t, "SECOND", resp.PriceTier)
	require.NotNil(t, resp.Efficiency)
	assert.True(t, resp.Efficiency.Equal(dec(0.95)))
	assert.Len(t, f.events.GetEventsByType(manufacturing.EventTypeFormulaCreated), 1)
}

func TestFormulaService_CreateFormula_PublishFailureLoggedNotFatal(t *testing.T) {
	f := newFormulaFixture()
	core, recorded := observer.New(zapcore.WarnLevel)
	f.service.SetLogger(zap.New(core))
	f.events.FailWith(errors.New("bus unavailable"))

	resp, err := f.service.CreateFormula(context.Background(), f.tenantID, f.userID, baseFormulaRequest())

	require.NoError(t, err, "a publish failure must not fail the write")
	assert.NotEqual(t, uuid.Nil, resp.ID)

	entries := recorded.FilterMessage("Failed to publish formula events").All()
	require.Len(t, entries, 1)
	assert.Equal(t, resp.ID.String(), entries[0].ContextMap()["formula_id"])
}

func TestFormulaService_CreateFormula_DuplicateNumber(t *testing.T) {
	f := newFormulaFixture()
	_, err := f.service.CreateFormula(context.Background(), f.tenantID, f.userID, baseFormulaRequest())
	require.NoError(t, err)

	_, err = f.service.CreateFormula(context.Background(), f.tenantID, f.userID, baseFormulaRequest())

	require.Error(t, err)
	assertDomainCode(t, err, "DUPLICATE_FORMULA_NUMBER")
}

func TestFormulaService_CreateFormula_UnrealisticEfficiency(t *testing.T) {
	f := newFormulaFixture()
	req := baseFormulaRequest()
	req.ConsumedQuantity = decPtr(1)
	req.ProducedQuantity = decPtr(1000)

	_, err := f.service.CreateFormula(context.Background(), f.tenantID, f.userID, req)

	require.Error(t, err)
	assertDomainCode(t, err, "UNREALISTIC_EFFICIENCY")
}

func TestFormulaService_CreateFormula_CustomBounds(t *testing.T) {
	f := newFormulaFixture()
	f.service.SetEfficiencyBounds(manufacturing.EfficiencyBounds{Min: dec(0.001), Max: dec(10000)})
	req := baseFormulaRequest()
	req.ConsumedQuantity = decPtr(1)
	req.ProducedQuantity = decPtr(1000)

	_, err := f.service.CreateFormula(context.Background(), f.tenantID, f.userID, req)

	require.NoError(t, err)
}

func TestFormulaService_UpdateFormula(t *testing.T) {
	f := newFormulaFixture()
	created, err := f.service.CreateFormula(context.Background(), f.tenantID, f.userID, baseFormulaRequest())
	require.NoError(t, err)

	name := "Improved mix"
	tier := "THIRD"
	resp, err := f.service.UpdateFormula(context.Background(), f.tenantID, f.userID, created.ID, UpdateFormulaRequest{
		Name:             &name,
		PriceTier:        &tier,
		ProducedQuantity: decPtr(90),
	})

	require.NoError(t, err)
	assert.Equal(t, "Improved mix", resp.Name)
	assert.Equal(t, "THIRD", resp.PriceTier)
	require.NotNil(t, resp.ProducedQuantity)
	assert.True(t, resp.ProducedQuantity.Equal(dec(90)))
	assert.True(t, resp.ConsumedQuantity.Equal(dec(100)), "consumed untouched")
}

func TestFormulaService_ChangeFormulaStatus(t *testing.T) {
	f := newFormulaFixture()
	created, err := f.service.CreateFormula(context.Background(), f.tenantID, f.userID, baseFormulaRequest())
	require.NoError(t, err)

	resp, err := f.service.ChangeFormulaStatus(context.Background(), f.tenantID, f.userID, created.ID, ChangeFormulaStatusRequest{Status: "ACTIVE"})
	require.NoError(t, err)
	assert.Equal(t, "ACTIVE", resp.Status)
	assert.Len(t, f.events.GetEventsByType(manufacturing.EventTypeFormulaStatusChanged), 1)

	_, err = f.service.ChangeFormulaStatus(context.Background(), f.tenantID, f.userID, created.ID, ChangeFormulaStatusRequest{Status: "DRAFT"})
	require.Error(t, err)
	assertDomainCode(t, err, "INVALID_STATUS_TRANSITION")
}

func TestFormulaService_FindActiveFormula(t *testing.T) {
	f := newFormulaFixture()
	req := baseFormulaRequest()
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)
	req.EffectiveFrom = &from
	req.EffectiveTo = &to
	created, err := f.service.CreateFormula(context.Background(), f.tenantID, f.userID, req)
	require.NoError(t, err)
	_, err = f.service.ChangeFormulaStatus(context.Background(), f.tenantID, f.userID, created.ID, ChangeFormulaStatusRequest{Status: "ACTIVE"})
	require.NoError(t, err)

	inside, err := f.service.FindActiveFormula(context.Background(), f.tenantID, req.ProductID, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, inside, 1)

	outside, err := f.service.FindActiveFormula(context.Background(), f.tenantID, req.ProductID, time.Date(2027, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, outside)
}

func TestFormulaService_DeleteFormula(t *testing.T) {
	f := newFormulaFixture()
	created, err := f.service.CreateFormula(context.Background(), f.tenantID, f.userID, baseFormulaRequest())
	require.NoError(t, err)

	require.NoError(t, f.service.DeleteFormula(context.Background(), f.tenantID, f.userID, created.ID))

	_, err = f.service.GetFormula(context.Background(), f.tenantID, created.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	// The number is free for reuse once the old row is tombstoned
	_, err = f.service.CreateFormula(context.Background(), f.tenantID, f.userID, baseFormulaRequest())
	assert.NoError(t, err)
}

func TestFormulaService_DeleteFormula_ActiveRejected(t *testing.T) {
	f := newFormulaFixture()
	created, err := f.service.CreateFormula(context.Background(), f.tenantID, f.userID, baseFormulaRequest())
	require.NoError(t, err)
	_, err = f.service.ChangeFormulaStatus(context.Background(), f.tenantID, f.userID, created.ID, ChangeFormulaStatusRequest{Status: "ACTIVE"})
	require.NoError(t, err)

	err = f.service.DeleteFormula(context.Background(), f.tenantID, f.userID, created.ID)

	require.Error(t, err)
	assertDomainCode(t, err, "FORMULA_ACTIVE")
}
