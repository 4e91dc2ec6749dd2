package governkit

import (
	"context"

	"github.com/fernandezvara/dbkit"
	"github.com/rs/zerolog"
)

// Service is the persistence companion of the Engine. It provides the
// database-backed capacity ledger, the governance decision log, migrations,
// and transaction management through dbkit.
//
// Error Handling:
// All database operations use dbkit's chainable error wrapping to provide
// detailed context about failed operations. Errors include operation names,
// database context, and preserve original error types for classification.
//
// Example error handling:
//
//	_, err := service.Admit(ctx, resourceID, claimID)
//	if err != nil {
//	    if dbkit.IsNotFound(err) {
//	        // Resource not configured
//	    }
//
//	    var dbErr *dbkit.Error
//	    if errors.As(err, &dbErr) {
//	        fmt.Printf("Operation: %s, Table: %s\n", dbErr.Operation, dbErr.Table)
//	    }
//	}
type Service struct {
	db       dbkit.IDB
	registry *Registry
	monitor  *allocationMonitor
	log      zerolog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithServiceLogger sets the logger used for promotion and overbook events.
func WithServiceLogger(log zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.log = log
	}
}

// NewService creates a new GovernKit service.
//
// Example:
//
//	registry := governkit.DefaultRegistry()
//	db, _ := dbkit.New(dbkit.Config{URL: "postgres://..."})
//	service := governkit.NewService(registry, db)
//	engine := governkit.NewEngine(registry, governkit.WithLedger(service))
func NewService(registry *Registry, db dbkit.IDB, opts ...ServiceOption) *Service {
	s := &Service{
		db:       db,
		registry: registry,
		monitor:  newAllocationMonitor(),
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry returns the governance registry.
func (s *Service) Registry() *Registry {
	return s.registry
}

// ============================================================================
// DECISION LOG
// ============================================================================

// LogDecision persists a facade decision for compliance and debugging.
// Governed field values never land in the log — identifiers only.
func (s *Service) LogDecision(ctx context.Context, entry *DecisionEntry) error {
	_, err := s.db.NewInsert().Model(entry.ToModel()).Exec(ctx)
	return dbkit.WithErr1(err, "LogDecision").Err()
}

// GetDecisionLog retrieves decision log entries with optional filters.
func (s *Service) GetDecisionLog(ctx context.Context, filter DecisionLogFilter) ([]GovernanceAuditLog, error) {
	var logs []GovernanceAuditLog
	q := s.db.NewSelect().Model(&logs)
	if filter.ActorID != "" {
		q = q.Where("actor_id = ?", filter.ActorID)
	}
	if filter.Role != "" {
		q = q.Where("role = ?", filter.Role)
	}
	if filter.RecordType != "" {
		q = q.Where("record_type = ?", filter.RecordType)
	}
	if filter.RecordID != "" {
		q = q.Where("record_id = ?", filter.RecordID)
	}
	if filter.Operation != "" {
		q = q.Where("operation = ?", filter.Operation)
	}
	if filter.Outcome != "" {
		q = q.Where("outcome = ?", filter.Outcome)
	}
	if !filter.Since.IsZero() {
		q = q.Where("timestamp >= ?", filter.Since)
	}
	if !filter.Until.IsZero() {
		q = q.Where("timestamp <= ?", filter.Until)
	}

	limit := filter.Limit
	if limit == 0 {
		limit = 100 // Default limit
	}
	q = q.Limit(limit)

	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	q = q.Order("timestamp DESC")
	err := dbkit.WithErr1(q.Scan(ctx), "GetDecisionLog").Err()
	if err != nil {
		return nil, err
	}

	return logs, nil
}
