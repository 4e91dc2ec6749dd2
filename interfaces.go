package governkit

import (
	"context"

	"github.com/fernandezvara/dbkit"
)

// Database defines the database operations interface for dependency injection
type Database interface {
	dbkit.IDB
}

// TransactionManager defines the transaction management interface
type TransactionManager interface {
	Transaction(ctx context.Context, fn func(txService *Service) error) error
	TransactionWithOptions(ctx context.Context, opts dbkit.TxOptions, fn func(txService *Service) error) error
	ReadOnlyTransaction(ctx context.Context, fn func(txService *Service) error) error
}

// MigrationManager defines the migration management interface
type MigrationManager interface {
	Migrations() []dbkit.Migration
}

// HealthMonitor defines the health monitoring interface
type HealthMonitor interface {
	Health(ctx context.Context) dbkit.HealthStatus
	IsHealthy(ctx context.Context) bool
	Ping(ctx context.Context) error
	GetPoolStats() dbkit.PoolStats
}

// PoolManager defines the connection pool management interface
type PoolManager interface {
	ConfigureConnectionPool(config PoolConfig) error
	GetConnectionPoolConfig() (*PoolConfig, error)
	OptimizeConnectionPool() error
	ResetConnectionPool() error
}

// DecisionLogger defines the decision logging interface
type DecisionLogger interface {
	LogDecision(ctx context.Context, entry *DecisionEntry) error
	GetDecisionLog(ctx context.Context, filter DecisionLogFilter) ([]GovernanceAuditLog, error)
}

// AllocationMonitor defines the allocation monitoring interface
type AllocationMonitor interface {
	GetAllocationMetrics(ctx context.Context) AllocationMetrics
	ResetAllocationMetrics(ctx context.Context)
}
