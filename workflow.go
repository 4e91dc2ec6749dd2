package governkit

import (
	"sort"

	"github.com/samber/lo"
)

// LedgerAction is the capacity side effect attached to a workflow edge.
type LedgerAction int

const (
	// LedgerNone leaves the Capacity Ledger untouched.
	LedgerNone LedgerAction = iota
	// LedgerCommit requests admission for the record's claim when the edge is
	// taken (e.g., pending -> confirmed).
	LedgerCommit
	// LedgerRelease releases the record's claim when the edge is taken (e.g.,
	// confirmed -> cancelled).
	LedgerRelease
)

// Precondition gates an edge on companion data: the field must be present,
// and when a range is declared, numeric and within [Min, Max].
type Precondition struct {
	Field  string
	Min    float64
	Max    float64
	ranged bool
}

// Edge is one legal transition in a record type's workflow graph, with its
// declared side effects. Side effects are per edge, not per target state: the
// same state reached via different edges may need different stamps.
type Edge struct {
	stamps        []string
	ledger        LedgerAction
	preconditions []Precondition
}

// TransitionOption configures an Edge.
type TransitionOption func(*Edge)

// Stamp records the named timestamp field when the edge is taken.
func Stamp(field string) TransitionOption {
	return func(e *Edge) {
		e.stamps = append(e.stamps, field)
	}
}

// CommitSeat requests ledger admission when the edge is taken.
func CommitSeat() TransitionOption {
	return func(e *Edge) {
		e.ledger = LedgerCommit
	}
}

// ReleaseSeat releases the ledger claim when the edge is taken.
func ReleaseSeat() TransitionOption {
	return func(e *Edge) {
		e.ledger = LedgerRelease
	}
}

// RequireField gates the edge on the field being present and non-empty.
func RequireField(field string) TransitionOption {
	return func(e *Edge) {
		e.preconditions = append(e.preconditions, Precondition{Field: field})
	}
}

// RequireRange gates the edge on the field being present, numeric, and within
// [min, max].
func RequireRange(field string, min, max float64) TransitionOption {
	return func(e *Edge) {
		e.preconditions = append(e.preconditions, Precondition{Field: field, Min: min, Max: max, ranged: true})
	}
}

// WorkflowDefinition is a directed graph over a record type's status values.
// Statuses with no outgoing edges are terminal.
type WorkflowDefinition struct {
	recordType    string
	defaultStatus string
	edges         map[string]map[string]*Edge
	statuses      map[string]bool
}

func newWorkflowDefinition(recordType string) *WorkflowDefinition {
	return &WorkflowDefinition{
		recordType: recordType,
		edges:      make(map[string]map[string]*Edge),
		statuses:   make(map[string]bool),
	}
}

func (w *WorkflowDefinition) addEdge(from, to string, opts ...TransitionOption) {
	edge := &Edge{}
	for _, opt := range opts {
		opt(edge)
	}
	if w.edges[from] == nil {
		w.edges[from] = make(map[string]*Edge)
	}
	w.edges[from][to] = edge
	w.statuses[from] = true
	w.statuses[to] = true
}

// DefaultStatus returns the status assigned to new records.
func (w *WorkflowDefinition) DefaultStatus() string {
	return w.defaultStatus
}

// HasStatus reports whether a status participates in the workflow.
func (w *WorkflowDefinition) HasStatus(status string) bool {
	return w.statuses[status] || status == w.defaultStatus
}

// Terminal reports whether a status has zero outgoing edges.
func (w *WorkflowDefinition) Terminal(status string) bool {
	return len(w.edges[status]) == 0
}

// LegalTargets returns the statuses reachable from the given status, sorted.
func (w *WorkflowDefinition) LegalTargets(status string) []string {
	targets := lo.Keys(w.edges[status])
	sort.Strings(targets)
	return targets
}

// Statuses returns every status in the workflow, sorted.
func (w *WorkflowDefinition) Statuses() []string {
	all := lo.Keys(w.statuses)
	if w.defaultStatus != "" && !w.statuses[w.defaultStatus] {
		all = append(all, w.defaultStatus)
	}
	sort.Strings(all)
	return lo.Uniq(all)
}

// TransitionResult describes the side effects of a validated transition.
type TransitionResult struct {
	From   string
	To     string
	NoOp   bool
	Stamps []string
	Ledger LedgerAction
}

// Transition validates a requested status change against the graph.
// A same-status request is a no-op, not an error, and carries no side
// effects: one-time stamps must not re-trigger. Preconditions read from the
// incoming field set first, falling back to the existing snapshot.
func (w *WorkflowDefinition) Transition(current, requested string, rec *RecordSnapshot, incoming FieldSet) (*TransitionResult, error) {
	if current == requested {
		return &TransitionResult{From: current, To: requested, NoOp: true}, nil
	}

	if !w.HasStatus(current) {
		return nil, NewError(ErrInvalidStatus, "unknown current status").
			WithRecord(w.recordType, recordID(rec)).
			WithStatus(current)
	}
	if !w.HasStatus(requested) {
		return nil, NewError(ErrInvalidStatus, "unknown requested status").
			WithRecord(w.recordType, recordID(rec)).
			WithStatus(requested)
	}

	edge, ok := w.edges[current][requested]
	if !ok {
		return nil, NewError(ErrInvalidTransition, "no edge from "+current+" to "+requested).
			WithRecord(w.recordType, recordID(rec)).
			WithStatus(requested)
	}

	for _, pre := range edge.preconditions {
		value, found := lookupField(pre.Field, incoming, rec)
		if !found {
			return nil, NewError(ErrPreconditionFailed, "missing required field "+pre.Field).
				WithRecord(w.recordType, recordID(rec)).
				WithField(pre.Field).
				WithStatus(requested)
		}
		if pre.ranged {
			n, numeric := numericValue(value)
			if !numeric || n < pre.Min || n > pre.Max {
				return nil, NewError(ErrPreconditionFailed, "field "+pre.Field+" out of range").
					WithRecord(w.recordType, recordID(rec)).
					WithField(pre.Field).
					WithStatus(requested)
			}
		}
	}

	return &TransitionResult{
		From:   current,
		To:     requested,
		Stamps: edge.stamps,
		Ledger: edge.ledger,
	}, nil
}

func lookupField(field string, incoming FieldSet, rec *RecordSnapshot) (any, bool) {
	if v, ok := incoming[field]; ok && v != nil {
		if s, isStr := v.(string); isStr && s == "" {
			return nil, false
		}
		return v, true
	}
	if rec != nil && rec.Has(field) {
		v, _ := rec.Get(field)
		return v, true
	}
	return nil, false
}

func recordID(rec *RecordSnapshot) string {
	if rec == nil {
		return ""
	}
	return rec.ID
}

func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	}
	return 0, false
}
