package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/manufacturing/internal/domain/shared"
	"github.com/erp/manufacturing/internal/infrastructure/cache"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockEventHandler struct {
	mock.Mock
}

func (m *mockEventHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *mockEventHandler) EventTypes() []string {
	args := m.Called()
	return args.Get(0).([]string)
}

type mockIdempotencyStore struct {
	mock.Mock
}

func (m *mockIdempotencyStore) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, eventID, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *mockIdempotencyStore) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	args := m.Called(ctx, eventID)
	return args.Bool(0), args.Error(1)
}

func (m *mockIdempotencyStore) Close() error {
	return m.Called().Error(0)
}

type processStartedStub struct {
	shared.BaseDomainEvent
}

func newProcessStartedStub() *processStartedStub {
	return &processStartedStub{
		BaseDomainEvent: shared.NewBaseDomainEvent(
			"manufacturing.process.started",
			"ManufacturingProcess",
			uuid.New(),
			uuid.New(),
		),
	}
}

func newTestIdempotencyStore(t *testing.T) *cache.InMemoryIdempotencyStore {
	t.Helper()
	store := cache.NewInMemoryIdempotencyStore()
	t.Cleanup(func() { store.Close() })
	return store
}

func TestIdempotentHandler_FirstDelivery(t *testing.T) {
	inner := new(mockEventHandler)
	event := newProcessStartedStub()
	inner.On("Handle", mock.Anything, event).Return(nil)

	handler := NewIdempotentHandler(inner, newTestIdempotencyStore(t), zap.NewNop())

	require.NoError(t, handler.Handle(t.Context(), event))

	inner.AssertExpectations(t)
	stats := handler.GetMetrics().Stats()
	assert.Equal(t, int64(1), stats.EventsProcessed)
	assert.Equal(t, int64(0), stats.EventsDuplicate)
}

func TestIdempotentHandler_Redelivery(t *testing.T) {
	inner := new(mockEventHandler)
	event := newProcessStartedStub()
	inner.On("Handle", mock.Anything, event).Return(nil).Once()

	handler := NewIdempotentHandler(inner, newTestIdempotencyStore(t), zap.NewNop())

	require.NoError(t, handler.Handle(t.Context(), event))
	require.NoError(t, handler.Handle(t.Context(), event))
	require.NoError(t, handler.Handle(t.Context(), event))

	inner.AssertExpectations(t)
	stats := handler.GetMetrics().Stats()
	assert.Equal(t, int64(1), stats.EventsProcessed)
	assert.Equal(t, int64(2), stats.EventsDuplicate)
}

func TestIdempotentHandler_InnerHandlerError(t *testing.T) {
	inner := new(mockEventHandler)
	event := newProcessStartedStub()
	handlerErr := errors.New("stock ledger unavailable")
	inner.On("Handle", mock.Anything, event).Return(handlerErr)

	handler := NewIdempotentHandler(inner, newTestIdempotencyStore(t), zap.NewNop())

	err := handler.Handle(t.Context(), event)
	require.ErrorIs(t, err, handlerErr)

	stats := handler.GetMetrics().Stats()
	assert.Equal(t, int64(0), stats.EventsProcessed)
	assert.Equal(t, int64(1), stats.EventsFailed)
}

func TestIdempotentHandler_StoreFailureStillProcesses(t *testing.T) {
	store := new(mockIdempotencyStore)
	inner := new(mockEventHandler)
	event := newProcessStartedStub()

	store.On("MarkProcessed", mock.Anything, event.EventID().String(), mock.Anything).
		Return(false, errors.New("redis: connection refused"))
	inner.On("Handle", mock.Anything, event).Return(nil)

	handler := NewIdempotentHandler(inner, store, zap.NewNop())

	require.NoError(t, handler.Handle(t.Context(), event))
	store.AssertExpectations(t)
	inner.AssertExpectations(t)
}

func TestIdempotentHandler_Disabled(t *testing.T) {
	inner := new(mockEventHandler)
	event := newProcessStartedStub()
	inner.On("Handle", mock.Anything, event).Return(nil).Times(3)

	handler := NewIdempotentHandler(inner, newTestIdempotencyStore(t), zap.NewNop(),
		WithIdempotencyConfig(shared.IdempotencyConfig{Enabled: false}),
	)

	for i := 0; i < 3; i++ {
		require.NoError(t, handler.Handle(t.Context(), event))
	}

	inner.AssertExpectations(t)
	assert.Equal(t, int64(0), handler.GetMetrics().Stats().EventsProcessed)
}

func TestIdempotentHandler_EventTypesDelegate(t *testing.T) {
	inner := new(mockEventHandler)
	types := []string{"manufacturing.process.started", "manufacturing.process.completed"}
	inner.On("EventTypes").Return(types)

	handler := NewIdempotentHandler(inner, newTestIdempotencyStore(t), zap.NewNop())

	assert.Equal(t, types, handler.EventTypes())
	inner.AssertExpectations(t)
}

func TestIdempotentHandler_SharedMetrics(t *testing.T) {
	store := newTestIdempotencyStore(t)
	sharedMetrics := &IdempotencyMetrics{}

	first := new(mockEventHandler)
	second := new(mockEventHandler)
	firstEvent := newProcessStartedStub()
	secondEvent := newProcessStartedStub()
	first.On("Handle", mock.Anything, firstEvent).Return(nil)
	second.On("Handle", mock.Anything, secondEvent).Return(nil)

	handlerA := NewIdempotentHandler(first, store, zap.NewNop(), WithIdempotencyMetrics(sharedMetrics))
	handlerB := NewIdempotentHandler(second, store, zap.NewNop(), WithIdempotencyMetrics(sharedMetrics))

	require.NoError(t, handlerA.Handle(t.Context(), firstEvent))
	require.NoError(t, handlerB.Handle(t.Context(), secondEvent))

	assert.Equal(t, int64(2), sharedMetrics.Stats().EventsProcessed)
}

func TestIdempotentHandler_ConcurrentRedelivery(t *testing.T) {
	inner := new(mockEventHandler)
	event := newProcessStartedStub()
	inner.On("Handle", mock.Anything, event).Return(nil).Once()

	handler := NewIdempotentHandler(inner, newTestIdempotencyStore(t), zap.NewNop())

	const deliveries = 50
	errCh := make(chan error, deliveries)
	for i := 0; i < deliveries; i++ {
		go func() {
			errCh <- handler.Handle(context.Background(), event)
		}()
	}
	for i := 0; i < deliveries; i++ {
		assert.NoError(t, <-errCh)
	}

	inner.AssertExpectations(t)
	stats := handler.GetMetrics().Stats()
	assert.Equal(t, int64(1), stats.EventsProcessed)
	assert.Equal(t, int64(deliveries-1), stats.EventsDuplicate)
}
