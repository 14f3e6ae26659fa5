package event

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/erp/manufacturing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeOutboxRepository is an in-memory OutboxRepository for processor tests.
type fakeOutboxRepository struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*shared.OutboxEntry
}

func newFakeOutboxRepository() *fakeOutboxRepository {
	return &fakeOutboxRepository{entries: make(map[uuid.UUID]*shared.OutboxEntry)}
}

func (r *fakeOutboxRepository) Save(ctx context.Context, entries ...*shared.OutboxEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range entries {
		r.entries[e.ID] = e
	}
	return nil
}

func (r *fakeOutboxRepository) FindPending(ctx context.Context, limit int) ([]*shared.OutboxEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*shared.OutboxEntry
	for _, e := range r.entries {
		if e.Status == shared.OutboxStatusPending {
			result = append(result, e)
			if len(result) >= limit {
				break
			}
		}
	}
	return result, nil
}

func (r *fakeOutboxRepository) FindRetryable(ctx context.Context, before time.Time, limit int) ([]*shared.OutboxEntry, error) {
	return nil, nil
}

func (r *fakeOutboxRepository) MarkProcessing(ctx context.Context, ids []uuid.UUID) ([]*shared.OutboxEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*shared.OutboxEntry
	for _, id := range ids {
		if e, ok := r.entries[id]; ok {
			e.Status = shared.OutboxStatusProcessing
			result = append(result, e)
		}
	}
	return result, nil
}

func (r *fakeOutboxRepository) Update(ctx context.Context, entry *shared.OutboxEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[entry.ID] = entry
	return nil
}

func (r *fakeOutboxRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func (r *fakeOutboxRepository) FindDead(ctx context.Context, page, pageSize int) ([]*shared.OutboxEntry, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*shared.OutboxEntry
	for _, e := range r.entries {
		if e.Status == shared.OutboxStatusDead {
			result = append(result, e)
		}
	}
	return result, int64(len(result)), nil
}

func (r *fakeOutboxRepository) FindByID(ctx context.Context, id uuid.UUID) (*shared.OutboxEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[id], nil
}

func (r *fakeOutboxRepository) CountByStatus(ctx context.Context) (map[shared.OutboxStatus]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[shared.OutboxStatus]int64)
	for _, e := range r.entries {
		counts[e.Status]++
	}
	return counts, nil
}

func (r *fakeOutboxRepository) entryStatus(id uuid.UUID) shared.OutboxStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[id].Status
}

func (r *fakeOutboxRepository) entryLastError(id uuid.UUID) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[id].LastError
}

func startProcessor(t *testing.T, p *OutboxProcessor) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, p.Start(ctx))
	t.Cleanup(func() {
		cancel()
		stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
		defer stopCancel()
		_ = p.Stop(stopCtx)
	})
}

func TestOutboxProcessor_PublishesPendingEntries(t *testing.T) {
	serializer := NewEventSerializer()
	serializer.Register(testEventStarted, &testEvent{})

	repo := newFakeOutboxRepository()
	bus := NewInMemoryEventBus(zap.NewNop())
	handler := newTestHandler(testEventStarted)
	bus.Subscribe(handler, testEventStarted)

	tenantID := uuid.New()
	event := newTestEvent(testEventStarted, tenantID)
	payload, err := serializer.Serialize(event)
	require.NoError(t, err)
	entry := shared.NewOutboxEntry(tenantID, event, payload)
	require.NoError(t, repo.Save(context.Background(), entry))

	processor := NewOutboxProcessor(repo, bus, serializer, OutboxProcessorConfig{
		BatchSize:    100,
		PollInterval: 20 * time.Millisecond,
	}, zap.NewNop())
	startProcessor(t, processor)

	require.Eventually(t, func() bool {
		return len(handler.getHandled()) == 1
	}, time.Second, 10*time.Millisecond, "entry should be published to the bus")

	assert.Equal(t, shared.OutboxStatusSent, repo.entryStatus(entry.ID))
}

func TestOutboxProcessor_UnknownEventTypeMarksFailed(t *testing.T) {
	// Nothing registered with the serializer, so deserialization fails
	serializer := NewEventSerializer()
	repo := newFakeOutboxRepository()
	bus := NewInMemoryEventBus(zap.NewNop())

	tenantID := uuid.New()
	event := newTestEvent("manufacturing.process.scrapped", tenantID)
	entry := shared.NewOutboxEntry(tenantID, event, []byte(`{"type":"manufacturing.process.scrapped"}`))
	require.NoError(t, repo.Save(context.Background(), entry))

	processor := NewOutboxProcessor(repo, bus, serializer, OutboxProcessorConfig{
		BatchSize:    100,
		PollInterval: 20 * time.Millisecond,
	}, zap.NewNop())
	startProcessor(t, processor)

	require.Eventually(t, func() bool {
		return repo.entryStatus(entry.ID) == shared.OutboxStatusFailed
	}, time.Second, 10*time.Millisecond)

	assert.Contains(t, repo.entryLastError(entry.ID), "unknown event type")
}

func TestOutboxProcessor_StopWaitsForLoops(t *testing.T) {
	processor := NewOutboxProcessor(
		newFakeOutboxRepository(),
		NewInMemoryEventBus(zap.NewNop()),
		NewEventSerializer(),
		DefaultOutboxProcessorConfig(),
		zap.NewNop(),
	)

	require.NoError(t, processor.Start(context.Background()))

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, processor.Stop(stopCtx))
}

func TestDefaultOutboxProcessorConfig(t *testing.T) {
	config := DefaultOutboxProcessorConfig()

	assert.Equal(t, 100, config.BatchSize)
	assert.Equal(t, 5*time.Second, config.PollInterval)
	assert.True(t, config.CleanupEnabled)
	assert.Equal(t, 7*24*time.Hour, config.CleanupRetention)
	assert.Equal(t, time.Hour, config.CleanupInterval)
}
