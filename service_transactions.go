package governkit

import (
	"context"
	"fmt"
	"time"

	"github.com/fernandezvara/dbkit"
)

// Transaction executes a function within a database transaction with automatic
// commit/rollback. The callback receives a Service bound to the transaction;
// ledger and decision-log calls made through it are atomic with the scope. If
// the function returns an error, the transaction is rolled back. Otherwise,
// it's committed.
//
// Example:
//
//	err := service.Transaction(ctx, func(tx *governkit.Service) error {
//	    if err := tx.Configure(ctx, "run-2026-09", 30); err != nil {
//	        return err // This will cause a rollback
//	    }
//	    _, err := tx.Admit(ctx, "run-2026-09", "enrollment-1")
//	    return err // nil will cause a commit
//	})
func (s *Service) Transaction(ctx context.Context, fn func(txService *Service) error) error {
	start := time.Now()

	err := s.runInTx(ctx, func(tx *dbkit.Tx) error {
		return fn(s.withDB(tx))
	})

	s.monitor.recordTransaction(time.Since(start), err == nil)
	return err
}

// TransactionWithOptions executes a function within a database transaction
// with custom options. Supports read-only transactions, isolation levels, and
// other transaction parameters.
//
// Example:
//
//	err := service.TransactionWithOptions(ctx, dbkit.SerializableTxOptions(), func(tx *governkit.Service) error {
//	    _, err := tx.Admit(ctx, "run-2026-09", "enrollment-1")
//	    return err
//	})
func (s *Service) TransactionWithOptions(ctx context.Context, opts dbkit.TxOptions, fn func(txService *Service) error) error {
	// Already inside a transaction: fall back to a savepoint, options are not
	// applicable to nested scopes.
	if tx, ok := s.db.(*dbkit.Tx); ok {
		return tx.Transaction(ctx, func(tx *dbkit.Tx) error {
			return fn(s.withDB(tx))
		})
	}

	if db, ok := s.db.(*dbkit.DBKit); ok {
		return db.TransactionWithOptions(ctx, opts, func(tx *dbkit.Tx) error {
			return fn(s.withDB(tx))
		})
	}

	return fmt.Errorf("transaction support requires a dbkit.DBKit or dbkit.Tx instance")
}

// ReadOnlyTransaction executes a function within a read-only database
// transaction. Useful for reading a consistent ledger and decision-log view.
func (s *Service) ReadOnlyTransaction(ctx context.Context, fn func(txService *Service) error) error {
	return s.TransactionWithOptions(ctx, dbkit.ReadOnlyTxOptions(), fn)
}

// withDB returns a shallow copy of the service bound to the given handle. The
// copy shares the registry, monitor and logger.
func (s *Service) withDB(db dbkit.IDB) *Service {
	clone := *s
	clone.db = db
	return &clone
}

// runInTx hands fn a live transaction handle. Inside an existing transaction
// it opens a savepoint, so ledger operations keep their row locks either way.
func (s *Service) runInTx(ctx context.Context, fn func(tx *dbkit.Tx) error) error {
	if tx, ok := s.db.(*dbkit.Tx); ok {
		return tx.Transaction(ctx, fn)
	}
	if db, ok := s.db.(*dbkit.DBKit); ok {
		return db.Transaction(ctx, fn)
	}
	return fmt.Errorf("transaction support requires a dbkit.DBKit or dbkit.Tx instance")
}
