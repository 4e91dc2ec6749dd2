package governkit

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
)

// Registry holds the governance configuration for every record type: the
// policy table, field rules, immutable fields, workflow graph, and capacity
// parameters. It is created at startup and should be treated as immutable
// after initialization.
type Registry struct {
	mu    sync.RWMutex
	types map[string]*RecordTypeDefinition
}

// GuardFunc is an invariant check gating sensitive operations. It runs after
// the policy decision, so it can veto an otherwise permitted operation (e.g.,
// deleting or demoting the last admin account). incoming is nil for deletes.
type GuardFunc func(ctx context.Context, actor Actor, rec *RecordSnapshot, incoming FieldSet) error

// DuplicateMode selects what happens when Create finds an existing duplicate
// within the configured window.
type DuplicateMode int

const (
	// DuplicateReject fails the create with ErrDuplicateRecord.
	DuplicateReject DuplicateMode = iota
	// DuplicateUpdate silently converts the create into an update of the
	// existing record.
	DuplicateUpdate
)

// policyRule is one cell of the (Role x Operation) policy table.
type policyRule struct {
	effect          Effect
	ownerField      string // field compared against the actor ID
	allowUnassigned bool   // empty ownerField value also matches
	equals          any    // fixed value filter (published subsets)
}

// fieldRule denies a family of fields to a role, with a per-rule deny mode.
// An empty ops list applies the rule to every operation.
type fieldRule struct {
	patterns []string
	onDeny   FieldDenyMode
	ops      []Operation
}

func (r fieldRule) appliesTo(op Operation) bool {
	return len(r.ops) == 0 || lo.Contains(r.ops, op)
}

// RecordTypeDefinition holds all governance rules for one record type.
// Built fluently; read-only once the registry is in use.
type RecordTypeDefinition struct {
	name           string
	registry       *Registry
	policies       map[Role]map[Operation]policyRule
	fieldDenies    map[Role][]fieldRule
	immutable      []ImmutableRule
	workflow       *WorkflowDefinition
	capacityField  string
	waitlistStatus string
	deleteGuard    GuardFunc
	updateGuard    GuardFunc
	dupMode        DuplicateMode
	dupWindow      time.Duration
}

// NewRegistry creates a new governance registry.
func NewRegistry() *Registry {
	return &Registry{
		types: make(map[string]*RecordTypeDefinition),
	}
}

// DefineRecordType starts defining a new record type.
// Returns a RecordTypeDefinition builder for fluent configuration.
//
// Example:
//
//	registry.DefineRecordType("ad_template").
//	    Allow(RoleAdmin, OpCreate, OpRead, OpUpdate, OpDelete).
//	    AllowOwned(RoleMarketing, "owner_id", OpRead, OpUpdate).
//	    ImmutableField("owner_id", FromActor(), Required())
func (r *Registry) DefineRecordType(name string) *RecordTypeDefinition {
	r.mu.Lock()
	defer r.mu.Unlock()

	def := &RecordTypeDefinition{
		name:        name,
		registry:    r,
		policies:    make(map[Role]map[Operation]policyRule),
		fieldDenies: make(map[Role][]fieldRule),
		dupMode:     DuplicateReject,
	}
	r.types[name] = def
	return def
}

// GetRecordType returns the definition for a record type.
// Returns nil if the record type is not defined.
func (r *Registry) GetRecordType(name string) *RecordTypeDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.types[name]
}

// RecordTypes returns all defined record type names, sorted.
func (r *Registry) RecordTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := lo.Keys(r.types)
	sort.Strings(names)
	return names
}

// ValidateRecordType checks if a record type is defined.
func (r *Registry) ValidateRecordType(name string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, exists := r.types[name]; !exists {
		return fmt.Errorf("%w: record type %q not defined", ErrInvalidRecordType, name)
	}
	return nil
}

// ValidateStatus checks if a status belongs to a record type's workflow.
func (r *Registry) ValidateStatus(recordType, status string) error {
	def := r.GetRecordType(recordType)
	if def == nil {
		return fmt.Errorf("%w: record type %q not defined", ErrInvalidRecordType, recordType)
	}
	if def.workflow == nil {
		return fmt.Errorf("%w: record type %q has no workflow", ErrInvalidStatus, recordType)
	}
	if !def.workflow.HasStatus(status) {
		return fmt.Errorf("%w: status %q not defined for record type %q", ErrInvalidStatus, status, recordType)
	}
	return nil
}

// ============================================================================
// POLICY BUILDERS
// ============================================================================

// Allow grants a role unconditional access to the given operations.
func (d *RecordTypeDefinition) Allow(role Role, ops ...Operation) *RecordTypeDefinition {
	for _, op := range ops {
		d.setRule(role, op, policyRule{effect: EffectAllow})
	}
	return d
}

// AllowOwned grants a role access to the given operations only on records it
// owns: the named field must equal the actor ID. List reads receive the
// predicate as a Filter to apply at query time.
func (d *RecordTypeDefinition) AllowOwned(role Role, ownerField string, ops ...Operation) *RecordTypeDefinition {
	for _, op := range ops {
		d.setRule(role, op, policyRule{effect: EffectAllowFiltered, ownerField: ownerField})
	}
	return d
}

// AllowAssigned grants a role access to records assigned to the actor via the
// named field. When orUnassigned is true, records with an empty assignment
// also match (unclaimed pool).
func (d *RecordTypeDefinition) AllowAssigned(role Role, assignField string, orUnassigned bool, ops ...Operation) *RecordTypeDefinition {
	for _, op := range ops {
		d.setRule(role, op, policyRule{effect: EffectAllowFiltered, ownerField: assignField, allowUnassigned: orUnassigned})
	}
	return d
}

// AllowWhere grants a role access only to records where a field holds a fixed
// value. Used for published subsets, e.g. public read of published FAQs.
func (d *RecordTypeDefinition) AllowWhere(role Role, field string, equals any, ops ...Operation) *RecordTypeDefinition {
	for _, op := range ops {
		d.setRule(role, op, policyRule{effect: EffectAllowFiltered, ownerField: field, equals: equals})
	}
	return d
}

func (d *RecordTypeDefinition) setRule(role Role, op Operation, rule policyRule) {
	if d.policies[role] == nil {
		d.policies[role] = make(map[Operation]policyRule)
	}
	d.policies[role][op] = rule
}

// DenyFields denies a role write access to the fields matching the given
// patterns. The mode decides whether a touched denied field strips silently
// or rejects the whole mutation.
//
// Example:
//
//	def.DenyFields(RoleAdvisor, FieldDenyReject, "payment_*", "tuition_*")
func (d *RecordTypeDefinition) DenyFields(role Role, mode FieldDenyMode, patterns ...string) *RecordTypeDefinition {
	d.fieldDenies[role] = append(d.fieldDenies[role], fieldRule{patterns: patterns, onDeny: mode})
	return d
}

// DenyFieldsOn restricts a field deny to specific operations; a role may for
// example update a field it cannot set at creation.
//
// Example:
//
//	def.DenyFieldsOn(RoleMarketing, FieldDenyStrip, []Operation{OpCreate}, "priority")
func (d *RecordTypeDefinition) DenyFieldsOn(role Role, mode FieldDenyMode, ops []Operation, patterns ...string) *RecordTypeDefinition {
	d.fieldDenies[role] = append(d.fieldDenies[role], fieldRule{patterns: patterns, onDeny: mode, ops: ops})
	return d
}

// ============================================================================
// IMMUTABILITY / WORKFLOW / CAPACITY BUILDERS
// ============================================================================

// ImmutableField attaches an immutability rule to a field. Once set
// (unconditionally, or upon the configured trigger), the field's value cannot
// be altered by any subsequent write, regardless of role.
func (d *RecordTypeDefinition) ImmutableField(field string, opts ...ImmutableOption) *RecordTypeDefinition {
	rule := ImmutableRule{Field: field}
	for _, opt := range opts {
		opt(&rule)
	}
	d.immutable = append(d.immutable, rule)
	return d
}

// DefaultStatus sets the status assigned to newly created records and
// initializes the workflow if needed.
func (d *RecordTypeDefinition) DefaultStatus(status string) *RecordTypeDefinition {
	d.ensureWorkflow().defaultStatus = status
	return d
}

// Transition declares a legal workflow edge with optional per-edge side
// effects and preconditions. Statuses with no declared outgoing edges are
// terminal.
//
// Example:
//
//	def.Transition("confirmed", "completed",
//	    Stamp("completed_at"),
//	    RequireRange("attendance_percentage", 0, 100),
//	    RequireRange("final_grade", 0, 100))
func (d *RecordTypeDefinition) Transition(from, to string, opts ...TransitionOption) *RecordTypeDefinition {
	d.ensureWorkflow().addEdge(from, to, opts...)
	return d
}

func (d *RecordTypeDefinition) ensureWorkflow() *WorkflowDefinition {
	if d.workflow == nil {
		d.workflow = newWorkflowDefinition(d.name)
	}
	return d.workflow
}

// Capacity marks the record type as capacity-managed. resourceField names the
// field holding the resource ID the Capacity Ledger tracks (e.g.
// "course_run_id" on enrollments); waitlistStatus is the status a claim lands
// in when capacity is exhausted.
func (d *RecordTypeDefinition) Capacity(resourceField, waitlistStatus string) *RecordTypeDefinition {
	d.capacityField = resourceField
	d.waitlistStatus = waitlistStatus
	return d
}

// DeleteGuard installs an invariant check that runs before any Delete the
// policy table would otherwise permit.
func (d *RecordTypeDefinition) DeleteGuard(fn GuardFunc) *RecordTypeDefinition {
	d.deleteGuard = fn
	return d
}

// UpdateGuard installs an invariant check that runs before any Update the
// policy table would otherwise permit.
func (d *RecordTypeDefinition) UpdateGuard(fn GuardFunc) *RecordTypeDefinition {
	d.updateGuard = fn
	return d
}

// OnDuplicateCreate configures what Create does when the caller reports an
// existing duplicate created within the window. The source systems disagree
// on whether silent-update is intended behavior, so it stays configurable.
func (d *RecordTypeDefinition) OnDuplicateCreate(mode DuplicateMode, window time.Duration) *RecordTypeDefinition {
	d.dupMode = mode
	d.dupWindow = window
	return d
}

// DefineRecordType continues defining record types on the registry (fluent API).
func (d *RecordTypeDefinition) DefineRecordType(name string) *RecordTypeDefinition {
	return d.registry.DefineRecordType(name)
}

// ============================================================================
// ACCESSORS
// ============================================================================

// Name returns the record type name.
func (d *RecordTypeDefinition) Name() string {
	return d.name
}

// Workflow returns the workflow definition, or nil if the record type is not
// workflow-governed.
func (d *RecordTypeDefinition) Workflow() *WorkflowDefinition {
	return d.workflow
}

// CapacityManaged reports whether the record type participates in capacity
// management.
func (d *RecordTypeDefinition) CapacityManaged() bool {
	return d.capacityField != ""
}

// CapacityField returns the field naming the capacity resource.
func (d *RecordTypeDefinition) CapacityField() string {
	return d.capacityField
}

// WaitlistStatus returns the status assigned to waitlisted claims.
func (d *RecordTypeDefinition) WaitlistStatus() string {
	return d.waitlistStatus
}

// ImmutableRules returns the immutability rules for this record type.
func (d *RecordTypeDefinition) ImmutableRules() []ImmutableRule {
	return d.immutable
}

// DuplicatePolicy returns the duplicate-create mode and window.
func (d *RecordTypeDefinition) DuplicatePolicy() (DuplicateMode, time.Duration) {
	return d.dupMode, d.dupWindow
}

// hasImmutableRule reports whether the field is covered by an immutability
// rule. Stamps never overwrite a locked field.
func (d *RecordTypeDefinition) hasImmutableRule(field string) bool {
	for _, rule := range d.immutable {
		if rule.Field == field {
			return true
		}
	}
	return false
}

// Roles returns every role with at least one policy rule, sorted.
func (d *RecordTypeDefinition) Roles() []Role {
	roles := lo.Keys(d.policies)
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	return roles
}
