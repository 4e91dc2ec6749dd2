package governkit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Engine is the single entry point a record-mutation pipeline calls before
// persistence. It composes the policy evaluator, immutability enforcer,
// workflow validator, and capacity allocator in a fixed order and returns
// either a fully resolved mutation or a structured denial.
type Engine struct {
	registry  *Registry
	evaluator *Evaluator
	ledger    LedgerStore
	log       zerolog.Logger
	now       func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLedger injects the capacity ledger store. Defaults to an in-process
// MemoryLedger.
func WithLedger(store LedgerStore) EngineOption {
	return func(e *Engine) {
		e.ledger = store
	}
}

// WithLogger sets the engine's structured logger.
func WithLogger(log zerolog.Logger) EngineOption {
	return func(e *Engine) {
		e.log = log
	}
}

// WithClock overrides the time source used for transition stamps. Intended
// for tests.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates a governance engine over a registry.
//
// Example:
//
//	engine := governkit.NewEngine(governkit.DefaultRegistry(),
//	    governkit.WithLogger(logger),
//	    governkit.WithLedger(databaseLedger))
func NewEngine(registry *Registry, opts ...EngineOption) *Engine {
	e := &Engine{
		registry:  registry,
		evaluator: NewEvaluator(registry),
		log:       zerolog.Nop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.ledger == nil {
		e.ledger = NewMemoryLedger(WithLedgerLogger(e.log))
	}
	return e
}

// Registry returns the governance registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Ledger returns the capacity ledger store.
func (e *Engine) Ledger() LedgerStore {
	return e.ledger
}

// Evaluate exposes the record-level policy decision without applying a
// mutation. List endpoints use this to obtain the query-time Filter.
func (e *Engine) Evaluate(actor Actor, op Operation, recordType string, rec *RecordSnapshot) Decision {
	return e.evaluator.Evaluate(actor.Role, op, recordType, rec, actor.ID)
}

// EvaluateField exposes the field-level policy decision.
func (e *Engine) EvaluateField(actor Actor, op Operation, recordType, field string) FieldDecision {
	return e.evaluator.EvaluateField(actor.Role, op, recordType, field)
}

// RequestAdmission forwards to the ledger store. API layers that admit
// outside a status transition (direct seat claims) call this.
func (e *Engine) RequestAdmission(ctx context.Context, resourceID, claimID string) (Admission, error) {
	return e.ledger.Admit(ctx, resourceID, claimID)
}

// Release forwards to the ledger store.
func (e *Engine) Release(ctx context.Context, resourceID, claimID string) (*Promotion, error) {
	return e.ledger.Release(ctx, resourceID, claimID)
}

// ConfigureCapacity creates or resizes a resource's capacity ledger.
func (e *Engine) ConfigureCapacity(ctx context.Context, resourceID string, maxCapacity int) error {
	return e.ledger.Configure(ctx, resourceID, maxCapacity)
}

// Mutation is a fully resolved record mutation, approved and ready for
// persistence.
type Mutation struct {
	RecordType string
	Operation  Operation
	RecordID   string

	// Fields holds the values to persist, with denied fields stripped,
	// immutable fields resolved, and transition stamps applied.
	Fields FieldSet

	// Status is the resolved status after workflow validation; empty for
	// record types without a workflow.
	Status         string
	PreviousStatus string
	Stamps         map[string]time.Time

	// Admission and Promotion report ledger effects tied to the mutation.
	Admission *Admission
	Promotion *Promotion

	// Filter scopes list reads; only set for Read decisions.
	Filter *Filter

	// RevertedFields lists immutable fields whose incoming changes were
	// discarded. The write proceeds; the reverts are logged.
	RevertedFields []string

	// StrippedFields lists fields silently dropped by field-level policy.
	StrippedFields []string

	// DuplicateUpdate is true when a create was converted into an update by
	// the record type's duplicate policy.
	DuplicateUpdate bool
}

// AuthorizeAndApply evaluates an incoming mutation against every governance
// rule for the record type, in order: record-level policy, field-level
// policy, immutability, workflow, capacity. The whole call is all-or-nothing:
// a caller-supplied deadline aborts it with no partial effect, and the ledger
// is only touched as the final step of an otherwise approved mutation.
func (e *Engine) AuthorizeAndApply(ctx context.Context, actor Actor, op Operation, recordType string, incoming FieldSet, existing *RecordSnapshot) (*Mutation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	def := e.registry.GetRecordType(recordType)
	if def == nil {
		return nil, NewError(ErrInvalidRecordType, "record type "+recordType+" not defined")
	}

	mutation := &Mutation{
		RecordType: recordType,
		Operation:  op,
		RecordID:   recordID(existing),
	}

	// Duplicate-create policy: the caller passes the duplicate it found as
	// the existing snapshot. A converted create is still authorized as the
	// create the actor requested; the update is the engine's own substitution,
	// so roles with create-only rights (public lead intake) keep working.
	policyOp := op
	if op == OpCreate && existing != nil {
		if e.duplicateExpired(def, existing) {
			existing = nil
			mutation.RecordID = ""
		} else {
			switch def.dupMode {
			case DuplicateReject:
				return nil, NewError(ErrDuplicateRecord, "").
					WithRecord(recordType, existing.ID).
					WithActor(actor.ID)
			case DuplicateUpdate:
				op = OpUpdate
				mutation.Operation = OpUpdate
				mutation.RecordID = existing.ID
				mutation.DuplicateUpdate = true
			}
		}
	}

	// (1) Record-level policy. The denial message never names the rule that
	// triggered it.
	decision := e.evaluator.Evaluate(actor.Role, policyOp, recordType, existing, actor.ID)
	if !decision.Allowed() {
		e.log.Debug().
			Str("record_type", recordType).
			Str("record_id", recordID(existing)).
			Str("operation", string(op)).
			Str("actor_id", actor.ID).
			Msg("mutation denied by policy")
		return nil, NewError(ErrPermissionDenied, "").
			WithRecord(recordType, recordID(existing)).
			WithActor(actor.ID)
	}

	if op == OpRead {
		mutation.Filter = decision.Filter
		return mutation, nil
	}

	if op == OpDelete {
		return e.applyDelete(ctx, def, actor, mutation, existing)
	}

	// Updates need the existing snapshot: immutability, workflow and guard
	// checks have nothing to resolve against without one.
	if op == OpUpdate && existing == nil {
		return nil, NewError(ErrDataIntegrity, "update without existing record snapshot").
			WithRecord(recordType, "").
			WithActor(actor.ID)
	}

	if op == OpUpdate && def.updateGuard != nil {
		if err := def.updateGuard(ctx, actor, existing, incoming); err != nil {
			return nil, err
		}
	}

	// (2) Field-level policy, per touched field. A duplicate-converted create
	// is judged by its requested operation here too.
	fields, stripped, err := e.evaluator.AllowedFields(actor.Role, policyOp, recordType, incoming)
	if err != nil {
		return nil, err
	}
	mutation.StrippedFields = stripped

	currentStatus, requestedStatus := e.resolveStatuses(def, op, fields, existing)

	// (3) Immutability. Runs before workflow validation so trigger-conditioned
	// rules see the status the record is about to hold.
	for _, rule := range def.immutable {
		res, err := resolveImmutable(rule, op, fields, existing, actor, requestedStatus)
		if err != nil {
			return nil, err
		}
		if res.set {
			fields[rule.Field] = res.value
		}
		if res.clear {
			delete(fields, rule.Field)
		}
		if res.reverted {
			mutation.RevertedFields = append(mutation.RevertedFields, rule.Field)
		}
	}
	if len(mutation.RevertedFields) > 0 {
		e.log.Warn().
			Str("record_type", recordType).
			Str("record_id", recordID(existing)).
			Strs("fields", mutation.RevertedFields).
			Msg("immutable field writes reverted")
	}

	// (4) Workflow validation and side effects.
	var transition *TransitionResult
	if def.workflow != nil {
		if op == OpCreate {
			transition = &TransitionResult{From: "", To: requestedStatus, NoOp: true}
		} else {
			transition, err = def.workflow.Transition(currentStatus, requestedStatus, existing, fields)
			if err != nil {
				return nil, err
			}
		}
		mutation.PreviousStatus = currentStatus
	}

	// (5) Capacity, as the final step of the approved mutation.
	if def.CapacityManaged() && transition != nil && transition.Ledger != LedgerNone {
		transition, err = e.applyLedger(ctx, def, mutation, transition, fields, existing)
		if err != nil {
			return nil, err
		}
	}

	if def.workflow != nil {
		finalStatus := requestedStatus
		if transition != nil {
			finalStatus = transition.To
		}
		fields["status"] = finalStatus
		mutation.Status = finalStatus

		if transition != nil && !transition.NoOp {
			mutation.Stamps = make(map[string]time.Time, len(transition.Stamps))
			now := e.now()
			for _, stampField := range transition.Stamps {
				// A stamp never overwrites a field locked by an immutability
				// rule (e.g. published_at on re-publish).
				if existing != nil && existing.Has(stampField) && def.hasImmutableRule(stampField) {
					continue
				}
				fields[stampField] = now
				mutation.Stamps[stampField] = now
			}
		}
	}

	mutation.Fields = fields
	return mutation, nil
}

// duplicateExpired reports whether the supplied duplicate falls outside the
// configured window. Without a window or a creation timestamp the duplicate
// is taken at face value.
func (e *Engine) duplicateExpired(def *RecordTypeDefinition, existing *RecordSnapshot) bool {
	if def.dupWindow <= 0 {
		return false
	}
	v, ok := existing.Get("created_at")
	if !ok {
		return false
	}
	createdAt, ok := v.(time.Time)
	if !ok {
		return false
	}
	return e.now().Sub(createdAt) > def.dupWindow
}

func (e *Engine) applyDelete(ctx context.Context, def *RecordTypeDefinition, actor Actor, mutation *Mutation, existing *RecordSnapshot) (*Mutation, error) {
	if def.deleteGuard != nil {
		if err := def.deleteGuard(ctx, actor, existing, nil); err != nil {
			return nil, err
		}
	}

	// Deleting a capacity-managed record drops its claim so the seat or
	// waitlist slot is not leaked.
	if def.CapacityManaged() && existing != nil {
		if resourceID, ok := lookupField(def.capacityField, nil, existing); ok {
			if rid, isStr := resourceID.(string); isStr {
				promotion, err := e.ledger.Release(ctx, rid, existing.ID)
				if err != nil && !isIgnorableLedgerMiss(err) {
					return nil, err
				}
				mutation.Promotion = promotion
			}
		}
	}

	return mutation, nil
}

// resolveStatuses computes the record's current status and the status the
// mutation requests. Creates always land on the default status regardless of
// client input.
func (e *Engine) resolveStatuses(def *RecordTypeDefinition, op Operation, fields FieldSet, existing *RecordSnapshot) (current, requested string) {
	if def.workflow == nil {
		return "", ""
	}

	if op == OpCreate {
		return "", def.workflow.DefaultStatus()
	}

	current = existing.Status
	requested = current
	if v, ok := fields["status"]; ok {
		if s, isStr := v.(string); isStr && s != "" {
			requested = s
		}
	}
	return current, requested
}

func (e *Engine) applyLedger(ctx context.Context, def *RecordTypeDefinition, mutation *Mutation, transition *TransitionResult, fields FieldSet, existing *RecordSnapshot) (*TransitionResult, error) {
	resourceValue, ok := lookupField(def.capacityField, fields, existing)
	if !ok {
		return nil, NewError(ErrPreconditionFailed, "missing capacity resource field "+def.capacityField).
			WithRecord(def.name, recordID(existing)).
			WithField(def.capacityField)
	}
	resourceID, isStr := resourceValue.(string)
	if !isStr || resourceID == "" {
		return nil, NewError(ErrPreconditionFailed, "capacity resource field must be a non-empty string").
			WithRecord(def.name, recordID(existing)).
			WithField(def.capacityField)
	}

	claimID := e.claimID(ctx, existing)

	// Nothing before this point has mutated shared state; abort cleanly if
	// the caller's deadline expired while validating.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch transition.Ledger {
	case LedgerCommit:
		admission, err := e.ledger.Admit(ctx, resourceID, claimID)
		if err != nil {
			return nil, err
		}
		mutation.Admission = &admission

		if admission.Outcome == AdmissionWaitlisted && def.waitlistStatus != "" && transition.To != def.waitlistStatus {
			// No seat: the record lands on the waitlist status instead, with
			// that edge's own side effects.
			wl, err := def.workflow.Transition(transition.From, def.waitlistStatus, existing, fields)
			if err == nil {
				return wl, nil
			}
			// No waitlist edge from here; keep the record where it is.
			return &TransitionResult{From: transition.From, To: transition.From, NoOp: true}, nil
		}
		return transition, nil

	case LedgerRelease:
		promotion, err := e.ledger.Release(ctx, resourceID, claimID)
		if err != nil && !isIgnorableLedgerMiss(err) {
			return nil, err
		}
		mutation.Promotion = promotion
		return transition, nil
	}

	return transition, nil
}

// claimID picks the idempotency key for ledger operations: the record's own
// identity when it exists, else the request correlation ID, else a fresh
// UUID (non-replayable, but unique).
func (e *Engine) claimID(ctx context.Context, existing *RecordSnapshot) string {
	if existing != nil && existing.ID != "" {
		return existing.ID
	}
	if rid := GetRequestID(ctx); rid != "" {
		return rid
	}
	return uuid.NewString()
}

// isIgnorableLedgerMiss reports whether a release failure is benign: the
// record was never admitted, or the resource was never configured.
func isIgnorableLedgerMiss(err error) bool {
	return errors.Is(err, ErrClaimNotFound) || errors.Is(err, ErrResourceNotFound)
}
