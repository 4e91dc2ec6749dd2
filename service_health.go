package governkit

import (
	"context"

	"github.com/fernandezvara/dbkit"
)

// HealthService reports on the database connection behind the capacity ledger
// and the decision log. A degraded connection means admissions stall on their
// row locks and audit writes start failing, so this is the first thing an
// operator should check when waitlist positions stop moving.
type HealthService struct {
	*Service
}

// NewHealthService creates a health extension over an existing service.
func NewHealthService(service *Service) *HealthService {
	return &HealthService{Service: service}
}

// Health returns the full connectivity status, including pool statistics,
// for the connection the ledger and decision log share.
func (hs *HealthService) Health(ctx context.Context) dbkit.HealthStatus {
	if db, ok := hs.db.(*dbkit.DBKit); ok {
		return db.Health(ctx)
	}

	// Inside a transaction scope only a basic reachability probe is possible.
	return dbkit.HealthStatus{
		Healthy: hs.IsHealthy(ctx),
		Error:   "limited health check inside a transaction scope",
	}
}

// IsHealthy reports whether ledger and decision-log queries can currently
// reach the database.
func (hs *HealthService) IsHealthy(ctx context.Context) bool {
	if db, ok := hs.db.(*dbkit.DBKit); ok {
		return db.IsHealthy(ctx)
	}

	var count int
	err := hs.db.NewSelect().Model((*struct{})(nil)).ColumnExpr("1").Limit(1).Scan(ctx, &count)
	return err == nil
}

// GetPoolStats returns connection pool statistics. Admissions hold row locks
// for their whole transaction, so a saturated pool (high WaitCount) shows up
// here before it shows up as slow AuthorizeAndApply calls.
func (hs *HealthService) GetPoolStats() dbkit.PoolStats {
	if db, ok := hs.db.(*dbkit.DBKit); ok {
		sqlStats := db.Stats()
		return dbkit.PoolStatsFromSQL(sqlStats)
	}

	return dbkit.PoolStats{}
}

// Ping runs a minimal round trip against the database.
func (hs *HealthService) Ping(ctx context.Context) error {
	var result int
	return hs.db.NewSelect().Model((*struct{})(nil)).ColumnExpr("1").Limit(1).Scan(ctx, &result)
}
