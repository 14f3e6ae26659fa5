package persistence

import (
	"context"

	appmfg "github.com/erp/manufacturing/internal/application/manufacturing"
	"github.com/erp/manufacturing/internal/domain/manufacturing"
	"github.com/erp/manufacturing/internal/domain/shared"
	"gorm.io/gorm"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
// It provides atomic execution of multiple repository operations.
type GormTransactionScope struct {
	db          *gorm.DB
	outboxSaver shared.OutboxEventSaver
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// SetOutboxEventSaver propagates the outbox saver to transaction-scoped
// process repositories so events ride the same transaction as the writes.
func (s *GormTransactionScope) SetOutboxEventSaver(saver shared.OutboxEventSaver) {
	s.outboxSaver = saver
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
// If the function succeeds, the transaction is committed.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appmfg.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := &gormTransactionalRepositories{tx: tx, outboxSaver: s.outboxSaver}
		return fn(repos)
	})
}

// gormTransactionalRepositories provides access to all repositories within a transaction.
type gormTransactionalRepositories struct {
	tx          *gorm.DB
	outboxSaver shared.OutboxEventSaver
}

// FormulaRepo returns the formula repository scoped to the current transaction.
func (r *gormTransactionalRepositories) FormulaRepo() manufacturing.FormulaRepository {
	return NewGormFormulaRepository(r.tx)
}

// ProcessRepo returns the process repository scoped to the current transaction.
func (r *gormTransactionalRepositories) ProcessRepo() manufacturing.ProcessRepository {
	repo := NewGormProcessRepository(r.tx)
	if r.outboxSaver != nil {
		repo.SetOutboxEventSaver(r.outboxSaver)
	}
	return repo
}

// StockLedger returns the stock ledger scoped to the current transaction.
func (r *gormTransactionalRepositories) StockLedger() manufacturing.StockLedger {
	return NewGormStockLedger(r.tx)
}

// Ensure GormTransactionScope implements TransactionScope
var _ appmfg.TransactionScope = (*GormTransactionScope)(nil)

// Ensure gormTransactionalRepositories implements TransactionalRepositories
var _ appmfg.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
