package governkit

import (
	"reflect"
)

// ImmutableRule states that a field, once set, keeps its value for the
// lifetime of the record. The rule is a business invariant, not an
// access-control statement: it holds even for admins and even when the
// record-level Update policy allows the write.
type ImmutableRule struct {
	Field string

	fromActor    bool
	required     bool
	triggerField string
	triggerValue string
}

// ImmutableOption configures an ImmutableRule.
type ImmutableOption func(*ImmutableRule)

// FromActor takes the field's create-time value from the authenticated actor,
// ignoring any client-supplied value entirely. Used for owner references.
func FromActor() ImmutableOption {
	return func(r *ImmutableRule) {
		r.fromActor = true
	}
}

// Required marks the field as mandatory from creation onward. A create
// missing the field fails with ErrPreconditionFailed (an incomplete request,
// not corruption). An update arriving for a record missing the field fails
// with ErrDataIntegrity rather than silently back-filling, since silent
// repair would mask an integrity bug.
func Required() ImmutableOption {
	return func(r *ImmutableRule) {
		r.required = true
	}
}

// WhenStatus makes the rule conditional: the field is settable exactly once,
// at the moment the record's status crosses into the given value, and behaves
// as unconditionally immutable thereafter.
func WhenStatus(status string) ImmutableOption {
	return func(r *ImmutableRule) {
		r.triggerField = "status"
		r.triggerValue = status
	}
}

// WhenField generalizes WhenStatus to an arbitrary companion field.
func WhenField(field, value string) ImmutableOption {
	return func(r *ImmutableRule) {
		r.triggerField = field
		r.triggerValue = value
	}
}

// Triggered reports whether the rule is condition-triggered rather than
// unconditional.
func (r ImmutableRule) Triggered() bool {
	return r.triggerField != ""
}

// immutableResolution is the outcome of resolving one rule against one
// mutation.
type immutableResolution struct {
	value    any  // value to persist when set is true
	set      bool // write value into the mutation
	clear    bool // strip the field from the mutation
	reverted bool // an incoming change was discarded
}

// resolveImmutable applies a single rule. newStatus is the status the record
// will hold after the mutation (used to evaluate trigger conditions); pass
// the current status when no status change is in flight.
func resolveImmutable(rule ImmutableRule, op Operation, incoming FieldSet, existing *RecordSnapshot, actor Actor, newStatus string) (immutableResolution, error) {
	incomingValue, hasIncoming := incoming[rule.Field]

	if op == OpCreate {
		if rule.fromActor {
			if actor.ID == "" {
				return immutableResolution{}, NewError(ErrNoActor, "owner field requires an authenticated actor").
					WithField(rule.Field)
			}
			return immutableResolution{value: actor.ID, set: true, reverted: hasIncoming && !valuesEqual(incomingValue, actor.ID)}, nil
		}
		if rule.required && !hasIncoming {
			return immutableResolution{}, NewError(ErrPreconditionFailed, "required field missing at creation").
				WithField(rule.Field)
		}
		if rule.Triggered() && hasIncoming && !triggerMet(rule, incoming, newStatus) {
			// Cannot pre-set a trigger-conditioned field before its trigger.
			return immutableResolution{clear: true, reverted: true}, nil
		}
		return immutableResolution{}, nil
	}

	if existing == nil {
		return immutableResolution{}, NewError(ErrDataIntegrity, "update without existing record snapshot").
			WithField(rule.Field)
	}

	if existing.Has(rule.Field) {
		current, _ := existing.Get(rule.Field)
		reverted := hasIncoming && !valuesEqual(incomingValue, current)
		return immutableResolution{value: current, set: true, reverted: reverted}, nil
	}

	// Field absent on the existing record.
	if rule.fromActor || (rule.required && !rule.Triggered()) {
		return immutableResolution{}, NewError(ErrDataIntegrity, "required immutable field missing from record").
			WithRecord(existing.Type, existing.ID).
			WithField(rule.Field)
	}

	if rule.Triggered() {
		if triggerMet(rule, incoming, newStatus) {
			if hasIncoming {
				return immutableResolution{value: incomingValue, set: true}, nil
			}
			// The trigger fired but no value arrived; edge side effects (stamps)
			// may still fill it.
			return immutableResolution{}, nil
		}
		if hasIncoming {
			return immutableResolution{clear: true, reverted: true}, nil
		}
		return immutableResolution{}, nil
	}

	// Unconditional rule, first write: the value is being set now.
	if hasIncoming {
		return immutableResolution{value: incomingValue, set: true}, nil
	}
	return immutableResolution{}, nil
}

func triggerMet(rule ImmutableRule, incoming FieldSet, newStatus string) bool {
	if rule.triggerField == "status" {
		return newStatus == rule.triggerValue
	}
	if v, ok := incoming[rule.triggerField]; ok {
		return valuesEqual(v, rule.triggerValue)
	}
	return false
}

func valuesEqual(a, b any) bool {
	return reflect.DeepEqual(a, b)
}
