package governkit

import (
	"time"

	"github.com/uptrace/bun"
)

// Role identifies an actor's privilege class. Roles are a fixed enumeration
// with no total order: some roles (marketing) hold ownership-scoped rights
// that nominally higher roles never need.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleManager   Role = "manager"
	RoleMarketing Role = "marketing"
	RoleAdvisor   Role = "advisor"
	RoleReadOnly  Role = "readonly"
	// RolePublic is the anonymous role. It is permitted Create on record types
	// designed for public intake and Read on explicitly published subsets only.
	RolePublic Role = "public"
)

// Operation is a record-level action subject to policy evaluation.
type Operation string

const (
	OpCreate Operation = "create"
	OpRead   Operation = "read"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Actor is the authenticated identity performing an operation. The caller's
// auth layer is responsible for producing it; governkit never authenticates.
type Actor struct {
	ID   string
	Role Role
}

// Anonymous returns the unauthenticated public actor.
func Anonymous() Actor {
	return Actor{Role: RolePublic}
}

// FieldSet is the incoming or resolved field map of a record mutation.
type FieldSet map[string]any

// Clone returns a shallow copy of the field set.
func (fs FieldSet) Clone() FieldSet {
	out := make(FieldSet, len(fs))
	for k, v := range fs {
		out[k] = v
	}
	return out
}

// RecordSnapshot is the engine's view of an existing record. The persistence
// layer builds one per governed mutation; governkit never reads the database
// to obtain it.
type RecordSnapshot struct {
	Type    string
	ID      string
	OwnerID string
	Status  string
	Fields  FieldSet
}

// Get returns a field value from the snapshot. OwnerID and Status are
// addressable both as struct fields and by name.
func (r *RecordSnapshot) Get(field string) (any, bool) {
	switch field {
	case "owner_id":
		if r.OwnerID != "" {
			return r.OwnerID, true
		}
	case "status":
		if r.Status != "" {
			return r.Status, true
		}
	}
	v, ok := r.Fields[field]
	return v, ok
}

// Has reports whether a field carries a non-empty value.
func (r *RecordSnapshot) Has(field string) bool {
	v, ok := r.Get(field)
	if !ok || v == nil {
		return false
	}
	if s, isStr := v.(string); isStr {
		return s != ""
	}
	return true
}

// Effect is the outcome class of a record-level policy decision.
type Effect int

const (
	// EffectDeny rejects the operation outright.
	EffectDeny Effect = iota
	// EffectAllow permits the operation unconditionally for the role.
	EffectAllow
	// EffectAllowFiltered permits the operation only on records matching the
	// decision's Filter. The persistence layer must apply the filter at query
	// time for list reads; a boolean per-record gate would leak existence.
	EffectAllowFiltered
)

// Decision is the result of record-level policy evaluation.
type Decision struct {
	Effect Effect
	Filter *Filter
}

// Allowed reports whether the decision permits the operation at all.
func (d Decision) Allowed() bool {
	return d.Effect != EffectDeny
}

// FieldDenyMode selects what happens when a role touches a field it may not
// write: some collections reject the whole write, others silently drop the
// field. Configured per field rule, never assumed.
type FieldDenyMode int

const (
	// FieldDenyStrip silently removes the field from the mutation.
	FieldDenyStrip FieldDenyMode = iota
	// FieldDenyReject fails the whole mutation.
	FieldDenyReject
)

// FieldDecision is the result of field-level policy evaluation.
type FieldDecision struct {
	Allowed bool
	OnDeny  FieldDenyMode
}

// CapacityLedgerRow is the persisted committed/maximum counter for a resource
// with finite seats.
type CapacityLedgerRow struct {
	bun.BaseModel `bun:"table:capacity_ledgers,alias:cl"`

	ResourceID  string    `bun:"resource_id,pk"`
	Committed   int       `bun:"committed,notnull,default:0"`
	MaxCapacity int       `bun:"max_capacity,notnull"`
	UpdatedAt   time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// LedgerClaimRow is a persisted admission claim against a resource. State is
// either "committed" or "waitlisted"; waitlisted claims carry a contiguous
// 1..N position.
type LedgerClaimRow struct {
	bun.BaseModel `bun:"table:ledger_claims,alias:lc"`

	ID         string    `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	ResourceID string    `bun:"resource_id,notnull"`
	ClaimID    string    `bun:"claim_id,notnull"`
	State      string    `bun:"state,notnull"`
	Position   int       `bun:"position,notnull,default:0"`
	Overbooked bool      `bun:"overbooked,notnull,default:false"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// GovernanceAuditLog records every facade decision for compliance and
// debugging. Values of governed fields are never stored — identifiers only.
type GovernanceAuditLog struct {
	bun.BaseModel `bun:"table:governance_audit_log,alias:gal"`

	ID        string    `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	Timestamp time.Time `bun:"timestamp,notnull,default:current_timestamp"`

	// Who attempted the mutation
	ActorID string `bun:"actor_id"`
	Role    string `bun:"role,notnull"`

	// What was attempted
	Operation  string `bun:"operation,notnull"`
	RecordType string `bun:"record_type,notnull"`
	RecordID   string `bun:"record_id"`

	// How it resolved
	Outcome        string   `bun:"outcome,notnull"` // "allowed", "denied", "waitlisted", ...
	Reason         string   `bun:"reason"`          // sentinel name on denial, empty otherwise
	FromStatus     string   `bun:"from_status"`
	ToStatus       string   `bun:"to_status"`
	RevertedFields []string `bun:"reverted_fields,type:text[]"`

	// Request metadata for forensics
	IPAddress string `bun:"ip_address"`
	UserAgent string `bun:"user_agent"`
	RequestID string `bun:"request_id"`

	// Additional context (JSON)
	Metadata map[string]any `bun:"metadata,type:jsonb"`
}

// DecisionOutcome classifies an audit log entry.
type DecisionOutcome string

const (
	OutcomeAllowed       DecisionOutcome = "allowed"
	OutcomeDenied        DecisionOutcome = "denied"
	OutcomeWaitlistedLog DecisionOutcome = "waitlisted"
)

// DecisionEntry is used to create new audit log entries.
type DecisionEntry struct {
	Actor          Actor
	Operation      Operation
	RecordType     string
	RecordID       string
	Outcome        DecisionOutcome
	Reason         string
	FromStatus     string
	ToStatus       string
	RevertedFields []string
	IPAddress      string
	UserAgent      string
	RequestID      string
	Metadata       map[string]any
}

// ToModel converts a DecisionEntry to a GovernanceAuditLog model.
func (e *DecisionEntry) ToModel() *GovernanceAuditLog {
	return &GovernanceAuditLog{
		ActorID:        e.Actor.ID,
		Role:           string(e.Actor.Role),
		Operation:      string(e.Operation),
		RecordType:     e.RecordType,
		RecordID:       e.RecordID,
		Outcome:        string(e.Outcome),
		Reason:         e.Reason,
		FromStatus:     e.FromStatus,
		ToStatus:       e.ToStatus,
		RevertedFields: e.RevertedFields,
		IPAddress:      e.IPAddress,
		UserAgent:      e.UserAgent,
		RequestID:      e.RequestID,
		Metadata:       e.Metadata,
		Timestamp:      time.Now(),
	}
}
