package event

import (
	"context"
	"testing"
	"time"

	"github.com/erp/manufacturing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubOutboxRepo is an in-memory OutboxRepository for service tests.
type stubOutboxRepo struct {
	entries map[uuid.UUID]*shared.OutboxEntry
}

func newStubOutboxRepo() *stubOutboxRepo {
	return &stubOutboxRepo{entries: make(map[uuid.UUID]*shared.OutboxEntry)}
}

func (r *stubOutboxRepo) Save(ctx context.Context, entries ...*shared.OutboxEntry) error {
	for _, e := range entries {
		r.entries[e.ID] = e
	}
	return nil
}

func (r *stubOutboxRepo) FindPending(ctx context.Context, limit int) ([]*shared.OutboxEntry, error) {
	return nil, nil
}

func (r *stubOutboxRepo) FindRetryable(ctx context.Context, before time.Time, limit int) ([]*shared.OutboxEntry, error) {
	return nil, nil
}

func (r *stubOutboxRepo) FindDead(ctx context.Context, page, pageSize int) ([]*shared.OutboxEntry, int64, error) {
	var dead []*shared.OutboxEntry
	for _, e := range r.entries {
		if e.Status == shared.OutboxStatusDead {
			dead = append(dead, e)
		}
	}
	total := int64(len(dead))

	start := (page - 1) * pageSize
	if start >= len(dead) {
		return nil, total, nil
	}
	end := start + pageSize
	if end > len(dead) {
		end = len(dead)
	}
	return dead[start:end], total, nil
}

func (r *stubOutboxRepo) FindByID(ctx context.Context, id uuid.UUID) (*shared.OutboxEntry, error) {
	return r.entries[id], nil
}

func (r *stubOutboxRepo) MarkProcessing(ctx context.Context, ids []uuid.UUID) ([]*shared.OutboxEntry, error) {
	return nil, nil
}

func (r *stubOutboxRepo) Update(ctx context.Context, entry *shared.OutboxEntry) error {
	r.entries[entry.ID] = entry
	return nil
}

func (r *stubOutboxRepo) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func (r *stubOutboxRepo) CountByStatus(ctx context.Context) (map[shared.OutboxStatus]int64, error) {
	counts := make(map[shared.OutboxStatus]int64)
	for _, e := range r.entries {
		counts[e.Status]++
	}
	return counts, nil
}

func (r *stubOutboxRepo) add(entry *shared.OutboxEntry) *shared.OutboxEntry {
	r.entries[entry.ID] = entry
	return entry
}

func deadOutboxEntry() *shared.OutboxEntry {
	now := time.Now()
	return &shared.OutboxEntry{
		ID:            uuid.New(),
		TenantID:      uuid.New(),
		EventID:       uuid.New(),
		EventType:     "manufacturing.process.completed",
		AggregateID:   uuid.New(),
		AggregateType: "ManufacturingProcess",
		Status:        shared.OutboxStatusDead,
		RetryCount:    5,
		MaxRetries:    5,
		LastError:     "publish failed: bus unavailable",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func newTestOutboxService(t *testing.T) (*OutboxService, *stubOutboxRepo) {
	t.Helper()
	repo := newStubOutboxRepo()
	return NewOutboxService(repo, zap.NewNop()), repo
}

func TestOutboxService_GetDeadLetterEntries(t *testing.T) {
	service, repo := newTestOutboxService(t)

	for i := 0; i < 5; i++ {
		repo.add(deadOutboxEntry())
	}
	repo.add(&shared.OutboxEntry{ID: uuid.New(), Status: shared.OutboxStatusPending})

	result, err := service.GetDeadLetterEntries(t.Context(), OutboxFilter{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(5), result.Total)
	assert.Equal(t, 1, result.TotalPages)
	require.Len(t, result.Entries, 5)
	for _, entry := range result.Entries {
		assert.Equal(t, "DEAD", entry.Status)
	}
}

func TestOutboxService_GetDeadLetterEntries_NormalizesPagination(t *testing.T) {
	service, repo := newTestOutboxService(t)
	repo.add(deadOutboxEntry())

	// Zero values fall back to the defaults
	result, err := service.GetDeadLetterEntries(t.Context(), OutboxFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Page)
	assert.Equal(t, defaultOutboxPageSize, result.PageSize)

	// Oversized page size is clamped
	result, err = service.GetDeadLetterEntries(t.Context(), OutboxFilter{Page: 1, PageSize: 500})
	require.NoError(t, err)
	assert.Equal(t, maxOutboxPageSize, result.PageSize)
}

func TestOutboxService_GetEntry(t *testing.T) {
	service, repo := newTestOutboxService(t)
	entry := repo.add(deadOutboxEntry())

	got, err := service.GetEntry(t.Context(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entry.ID, got.ID)
	assert.Equal(t, "manufacturing.process.completed", got.EventType)

	_, err = service.GetEntry(t.Context(), uuid.New())
	assert.Error(t, err)
}

func TestOutboxService_GetEntry_MissingCarriesNotFoundCode(t *testing.T) {
	service, _ := newTestOutboxService(t)

	_, err := service.GetEntry(t.Context(), uuid.New())

	// The handler maps NOT_FOUND to 404; any other code would surface as 500.
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "NOT_FOUND", domainErr.Code)
}

func TestOutboxService_RetryDeadEntry(t *testing.T) {
	service, repo := newTestOutboxService(t)
	entry := repo.add(deadOutboxEntry())

	result, err := service.RetryDeadEntry(t.Context(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "PENDING", result.Status)
	assert.Equal(t, 0, result.RetryCount)
	assert.Empty(t, result.LastError)
}

func TestOutboxService_RetryDeadEntry_NotFound(t *testing.T) {
	service, _ := newTestOutboxService(t)

	_, err := service.RetryDeadEntry(t.Context(), uuid.New())
	assert.Error(t, err)
}

func TestOutboxService_RetryDeadEntry_NotDead(t *testing.T) {
	service, repo := newTestOutboxService(t)
	entry := repo.add(&shared.OutboxEntry{ID: uuid.New(), Status: shared.OutboxStatusPending})

	_, err := service.RetryDeadEntry(t.Context(), entry.ID)
	assert.Error(t, err)
}

func TestOutboxService_GetStats(t *testing.T) {
	service, repo := newTestOutboxService(t)

	for _, status := range []shared.OutboxStatus{
		shared.OutboxStatusPending, shared.OutboxStatusPending,
		shared.OutboxStatusProcessing,
		shared.OutboxStatusSent, shared.OutboxStatusSent, shared.OutboxStatusSent,
		shared.OutboxStatusFailed,
		shared.OutboxStatusDead,
	} {
		repo.add(&shared.OutboxEntry{ID: uuid.New(), Status: status})
	}

	stats, err := service.GetStats(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Pending)
	assert.Equal(t, int64(1), stats.Processing)
	assert.Equal(t, int64(3), stats.Sent)
	assert.Equal(t, int64(1), stats.Failed)
	assert.Equal(t, int64(1), stats.Dead)
	assert.Equal(t, int64(8), stats.Total)
}

func TestOutboxService_RetryAllDeadEntries(t *testing.T) {
	service, repo := newTestOutboxService(t)

	for i := 0; i < 3; i++ {
		repo.add(deadOutboxEntry())
	}
	pending := repo.add(&shared.OutboxEntry{ID: uuid.New(), Status: shared.OutboxStatusPending})

	count, err := service.RetryAllDeadEntries(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	for _, entry := range repo.entries {
		if entry.ID == pending.ID {
			continue
		}
		assert.Equal(t, shared.OutboxStatusPending, entry.Status)
		assert.Equal(t, 0, entry.RetryCount)
	}
}
