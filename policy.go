package governkit

import (
	"github.com/uptrace/bun"
)

// Filter is the declarative predicate attached to an ownership-scoped or
// subset-scoped decision. The persistence layer must apply it at query time
// for list reads; checking records one by one after the fact would leak
// existence information and scale poorly.
type Filter struct {
	// Field is the record field the predicate constrains.
	Field string
	// MatchActor compares Field against the acting user's ID.
	MatchActor bool
	// AllowUnassigned also matches records where Field is empty.
	AllowUnassigned bool
	// Equals compares Field against a fixed value (published subsets).
	Equals any
}

// Matches evaluates the predicate against a single record snapshot.
func (f *Filter) Matches(rec *RecordSnapshot, actorID string) bool {
	if rec == nil {
		return false
	}
	value, present := rec.Get(f.Field)
	if !present {
		return f.MatchActor && f.AllowUnassigned
	}
	if f.MatchActor {
		if valuesEqual(value, actorID) {
			return true
		}
		return f.AllowUnassigned && (value == nil || value == "")
	}
	return valuesEqual(value, f.Equals)
}

// Apply scopes a bun query with the predicate. This is how list reads honor
// an AllowWithFilter decision.
//
// Example:
//
//	q := db.NewSelect().Model(&templates)
//	if decision.Filter != nil {
//	    q = decision.Filter.Apply(q, actor.ID)
//	}
func (f *Filter) Apply(q *bun.SelectQuery, actorID string) *bun.SelectQuery {
	if f.MatchActor {
		if f.AllowUnassigned {
			return q.Where("? = ? OR ? IS NULL OR ? = ''",
				bun.Ident(f.Field), actorID, bun.Ident(f.Field), bun.Ident(f.Field))
		}
		return q.Where("? = ?", bun.Ident(f.Field), actorID)
	}
	return q.Where("? = ?", bun.Ident(f.Field), f.Equals)
}

// Evaluator computes policy decisions from the registry's per-record-type
// policy tables. It is a pure function of its inputs: identical
// (role, operation, record, actor) tuples always yield identical decisions.
type Evaluator struct {
	registry *Registry
}

// NewEvaluator creates an Evaluator over a registry.
func NewEvaluator(registry *Registry) *Evaluator {
	return &Evaluator{registry: registry}
}

// Evaluate computes the record-level decision for an operation.
//
// With no record at hand (list reads, creates), an ownership-scoped rule
// yields EffectAllowFiltered and the caller applies the Filter at query time.
// With a record snapshot supplied, the filter is resolved on the spot: a
// non-matching record yields Deny.
func (e *Evaluator) Evaluate(role Role, op Operation, recordType string, rec *RecordSnapshot, actorID string) Decision {
	def := e.registry.GetRecordType(recordType)
	if def == nil {
		return Decision{Effect: EffectDeny}
	}

	rule, ok := def.policies[role][op]
	if !ok {
		// Default deny: absence of a rule is never an implicit grant.
		return Decision{Effect: EffectDeny}
	}

	switch rule.effect {
	case EffectAllow:
		return Decision{Effect: EffectAllow}
	case EffectAllowFiltered:
		filter := &Filter{
			Field:           rule.ownerField,
			MatchActor:      rule.equals == nil,
			AllowUnassigned: rule.allowUnassigned,
			Equals:          rule.equals,
		}
		if rec == nil {
			return Decision{Effect: EffectAllowFiltered, Filter: filter}
		}
		if filter.Matches(rec, actorID) {
			return Decision{Effect: EffectAllow, Filter: filter}
		}
		return Decision{Effect: EffectDeny}
	}
	return Decision{Effect: EffectDeny}
}

// EvaluateField computes the field-level decision for a touched field. This
// is a second evaluation pass, independent of the record-level decision: a
// role may pass record-level Update yet be denied specific fields. Rules
// declared with DenyFieldsOn only fire for their configured operations.
func (e *Evaluator) EvaluateField(role Role, op Operation, recordType, field string) FieldDecision {
	def := e.registry.GetRecordType(recordType)
	if def == nil {
		return FieldDecision{Allowed: false, OnDeny: FieldDenyReject}
	}

	for _, rule := range def.fieldDenies[role] {
		if rule.appliesTo(op) && MatchAnyField(rule.patterns, field) {
			return FieldDecision{Allowed: false, OnDeny: rule.onDeny}
		}
	}
	return FieldDecision{Allowed: true}
}

// AllowedFields filters a field set down to the fields the role may write,
// honoring each denied field's configured mode. Fields under a
// FieldDenyReject rule cause an immediate error; FieldDenyStrip fields are
// dropped silently. The returned slice lists stripped field names.
func (e *Evaluator) AllowedFields(role Role, op Operation, recordType string, incoming FieldSet) (FieldSet, []string, error) {
	out := incoming.Clone()
	var stripped []string

	for field := range incoming {
		fd := e.EvaluateField(role, op, recordType, field)
		if fd.Allowed {
			continue
		}
		if fd.OnDeny == FieldDenyReject {
			// Generic denial: which rule fired is not disclosed.
			return nil, nil, NewError(ErrPermissionDenied, "").
				WithRecord(recordType, "").
				WithField(field)
		}
		delete(out, field)
		stripped = append(stripped, field)
	}

	return out, stripped, nil
}
