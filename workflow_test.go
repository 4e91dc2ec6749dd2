package governkit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func enrollmentWorkflow() *WorkflowDefinition {
	w := newWorkflowDefinition("enrollment")
	w.defaultStatus = "pending"
	w.addEdge("pending", "confirmed", Stamp("confirmed_at"), CommitSeat())
	w.addEdge("pending", "cancelled", Stamp("cancelled_at"))
	w.addEdge("confirmed", "completed", Stamp("completed_at"),
		RequireRange("attendance_percentage", 0, 100),
		RequireRange("final_grade", 0, 100))
	w.addEdge("confirmed", "cancelled", Stamp("cancelled_at"), ReleaseSeat())
	return w
}

// TestWorkflowLegalEdge validates a declared transition with its side effects.
func TestWorkflowLegalEdge(t *testing.T) {
	w := enrollmentWorkflow()

	res, err := w.Transition("pending", "confirmed", nil, FieldSet{})
	require.NoError(t, err)
	assert.Equal(t, "pending", res.From)
	assert.Equal(t, "confirmed", res.To)
	assert.False(t, res.NoOp)
	assert.Equal(t, []string{"confirmed_at"}, res.Stamps)
	assert.Equal(t, LedgerCommit, res.Ledger)
}

// TestWorkflowSameStatusNoOp validates that a same-status request succeeds
// without re-triggering side effects.
func TestWorkflowSameStatusNoOp(t *testing.T) {
	w := enrollmentWorkflow()

	res, err := w.Transition("confirmed", "confirmed", nil, FieldSet{})
	require.NoError(t, err)
	assert.True(t, res.NoOp)
	assert.Empty(t, res.Stamps)
	assert.Equal(t, LedgerNone, res.Ledger)
}

// TestWorkflowMissingEdge validates that undeclared transitions fail.
func TestWorkflowMissingEdge(t *testing.T) {
	w := enrollmentWorkflow()

	// pending -> completed skips confirmation
	_, err := w.Transition("pending", "completed", nil, FieldSet{})
	assert.Error(t, err)
	assert.True(t, IsInvalidTransition(err))

	// completed is terminal
	_, err = w.Transition("completed", "pending", nil, FieldSet{})
	assert.Error(t, err)
	assert.True(t, IsInvalidTransition(err))
}

// TestWorkflowUnknownStatus validates unknown statuses are rejected before
// edge lookup.
func TestWorkflowUnknownStatus(t *testing.T) {
	w := enrollmentWorkflow()

	_, err := w.Transition("pending", "archived", nil, FieldSet{})
	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = w.Transition("limbo", "confirmed", nil, FieldSet{})
	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

// TestWorkflowRangePreconditions validates numeric range gates on completion.
func TestWorkflowRangePreconditions(t *testing.T) {
	w := enrollmentWorkflow()
	rec := &RecordSnapshot{Type: "enrollment", ID: "e-1", Status: "confirmed", Fields: FieldSet{}}

	// Both fields present and in range
	res, err := w.Transition("confirmed", "completed", rec, FieldSet{
		"attendance_percentage": 85,
		"final_grade":           7.5,
	})
	require.NoError(t, err)
	assert.Equal(t, "completed", res.To)

	// Missing field
	_, err = w.Transition("confirmed", "completed", rec, FieldSet{
		"attendance_percentage": 85,
	})
	assert.Error(t, err)
	assert.True(t, IsPreconditionFailed(err))

	// Out of range
	_, err = w.Transition("confirmed", "completed", rec, FieldSet{
		"attendance_percentage": 101,
		"final_grade":           7.5,
	})
	assert.Error(t, err)
	assert.True(t, IsPreconditionFailed(err))

	// Non-numeric
	_, err = w.Transition("confirmed", "completed", rec, FieldSet{
		"attendance_percentage": "eighty",
		"final_grade":           7.5,
	})
	assert.Error(t, err)
	assert.True(t, IsPreconditionFailed(err))
}

// TestWorkflowPreconditionFromSnapshot validates that preconditions fall back
// to the stored record when the payload omits the field.
func TestWorkflowPreconditionFromSnapshot(t *testing.T) {
	w := enrollmentWorkflow()
	rec := &RecordSnapshot{Type: "enrollment", ID: "e-1", Status: "confirmed",
		Fields: FieldSet{"attendance_percentage": 90, "final_grade": 8}}

	res, err := w.Transition("confirmed", "completed", rec, FieldSet{})
	require.NoError(t, err)
	assert.Equal(t, "completed", res.To)
}

// TestWorkflowRequireField validates presence-only preconditions.
func TestWorkflowRequireField(t *testing.T) {
	w := newWorkflowDefinition("course_run")
	w.defaultStatus = "draft"
	w.addEdge("draft", "scheduled", RequireField("start_date"))

	_, err := w.Transition("draft", "scheduled", nil, FieldSet{})
	assert.Error(t, err)
	assert.True(t, IsPreconditionFailed(err))

	// Empty string counts as absent
	_, err = w.Transition("draft", "scheduled", nil, FieldSet{"start_date": ""})
	assert.Error(t, err)
	assert.True(t, IsPreconditionFailed(err))

	res, err := w.Transition("draft", "scheduled", nil, FieldSet{"start_date": "2026-09-01"})
	require.NoError(t, err)
	assert.Equal(t, "scheduled", res.To)
}

// TestWorkflowReleaseEdge validates seat-release side effects.
func TestWorkflowReleaseEdge(t *testing.T) {
	w := enrollmentWorkflow()

	res, err := w.Transition("confirmed", "cancelled", nil, FieldSet{})
	require.NoError(t, err)
	assert.Equal(t, LedgerRelease, res.Ledger)
	assert.Equal(t, []string{"cancelled_at"}, res.Stamps)
}
