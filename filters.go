package governkit

import "time"

// DecisionLogFilter provides options for filtering decision log queries.
type DecisionLogFilter struct {
	// Filter by the actor who attempted the mutation
	ActorID string

	// Filter by actor role
	Role string

	// Filter by record type
	RecordType string

	// Filter by record ID
	RecordID string

	// Filter by operation ("create", "read", "update", "delete")
	Operation string

	// Filter by outcome ("allowed", "denied", "waitlisted")
	Outcome string

	// Filter by time range
	Since time.Time
	Until time.Time

	// Pagination
	Limit  int
	Offset int
}

// NewDecisionLogFilter creates a new DecisionLogFilter with default values.
func NewDecisionLogFilter() DecisionLogFilter {
	return DecisionLogFilter{
		Limit: 100,
	}
}

// WithActor sets the actor ID filter.
func (f DecisionLogFilter) WithActor(actorID string) DecisionLogFilter {
	f.ActorID = actorID
	return f
}

// WithRole sets the role filter.
func (f DecisionLogFilter) WithRole(role Role) DecisionLogFilter {
	f.Role = string(role)
	return f
}

// WithRecord sets the record type and ID filters.
func (f DecisionLogFilter) WithRecord(recordType, recordID string) DecisionLogFilter {
	f.RecordType = recordType
	f.RecordID = recordID
	return f
}

// WithRecordType sets only the record type filter.
func (f DecisionLogFilter) WithRecordType(recordType string) DecisionLogFilter {
	f.RecordType = recordType
	return f
}

// WithOperation sets the operation filter.
func (f DecisionLogFilter) WithOperation(op Operation) DecisionLogFilter {
	f.Operation = string(op)
	return f
}

// WithOutcome sets the outcome filter.
func (f DecisionLogFilter) WithOutcome(outcome DecisionOutcome) DecisionLogFilter {
	f.Outcome = string(outcome)
	return f
}

// WithTimeRange sets the time range filter.
func (f DecisionLogFilter) WithTimeRange(since, until time.Time) DecisionLogFilter {
	f.Since = since
	f.Until = until
	return f
}

// WithSince sets the start time filter.
func (f DecisionLogFilter) WithSince(since time.Time) DecisionLogFilter {
	f.Since = since
	return f
}

// WithUntil sets the end time filter.
func (f DecisionLogFilter) WithUntil(until time.Time) DecisionLogFilter {
	f.Until = until
	return f
}

// WithLimit sets the limit for results.
func (f DecisionLogFilter) WithLimit(limit int) DecisionLogFilter {
	f.Limit = limit
	return f
}

// WithOffset sets the offset for pagination.
func (f DecisionLogFilter) WithOffset(offset int) DecisionLogFilter {
	f.Offset = offset
	return f
}

// WithPagination sets both limit and offset.
func (f DecisionLogFilter) WithPagination(limit, offset int) DecisionLogFilter {
	f.Limit = limit
	f.Offset = offset
	return f
}
