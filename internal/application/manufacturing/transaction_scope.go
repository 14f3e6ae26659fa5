package manufacturing

import (
	"context"

	"github.com/erp/manufacturing/internal/domain/manufacturing"
)

// TransactionScope provides transactional access to manufacturing repositories.
// When a function is executed within a transaction scope, all repository and
// ledger operations are part of the same database transaction and commit or
// roll back atomically. Stock debits for a process start and the status
// transition itself must share one scope: a partial debit must never survive
// a failed start.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	// If the function succeeds, the transaction is committed.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to the manufacturing repositories
// within a transaction. All returned repositories share the same underlying
// database transaction.
type TransactionalRepositories interface {
	// FormulaRepo returns the formula repository scoped to the current transaction
	FormulaRepo() manufacturing.FormulaRepository
	// ProcessRepo returns the process repository scoped to the current transaction
	ProcessRepo() manufacturing.ProcessRepository
	// StockLedger returns the stock ledger scoped to the current transaction
	StockLedger() manufacturing.StockLedger
}

// NoOpTransactionScope is a transaction scope that doesn't actually use
// transactions. Useful for testing.
type NoOpTransactionScope struct {
	formulaRepo manufacturing.FormulaRepository
	processRepo manufacturing.ProcessRepository
	stockLedger manufacturing.StockLedger
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given dependencies.
func NewNoOpTransactionScope(
	formulaRepo manufacturing.FormulaRepository,
	processRepo manufacturing.ProcessRepository,
	stockLedger manufacturing.StockLedger,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		formulaRepo: formulaRepo,
		processRepo: processRepo,
		stockLedger: stockLedger,
	}
}

// Execute runs the function without transaction semantics
func (s *NoOpTransactionScope) Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// FormulaRepo returns the formula repository
func (s *NoOpTransactionScope) FormulaRepo() manufacturing.FormulaRepository {
	return s.formulaRepo
}

// ProcessRepo returns the process repository
func (s *NoOpTransactionScope) ProcessRepo() manufacturing.ProcessRepository {
	return s.processRepo
}

// StockLedger returns the stock ledger
func (s *NoOpTransactionScope) StockLedger() manufacturing.StockLedger {
	return s.stockLedger
}
