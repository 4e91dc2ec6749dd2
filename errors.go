package governkit

import (
	"errors"
	"fmt"
)

// Sentinel errors for GovernKit operations.
var (
	// ErrPermissionDenied is returned when a policy (record-level or field-level)
	// denies an operation. The message is intentionally generic: it never reveals
	// which rule triggered the denial.
	ErrPermissionDenied = errors.New("governkit: forbidden")

	// ErrImmutableField is returned when a write attempts to change a locked field
	// and the record type is configured to reject (rather than revert) such writes.
	ErrImmutableField = errors.New("governkit: immutable field")

	// ErrDataIntegrity is returned when an update reaches a record missing a
	// required immutable field that should have been set at creation, or
	// arrives without the existing snapshot at all. It indicates corruption,
	// not user error, and is surfaced distinctly.
	ErrDataIntegrity = errors.New("governkit: data integrity violation")

	// ErrInvalidTransition is returned when a workflow edge does not exist.
	ErrInvalidTransition = errors.New("governkit: invalid status transition")

	// ErrPreconditionFailed is returned when a workflow edge exists but its
	// companion data is missing or out of range, and by creates missing a
	// required field.
	ErrPreconditionFailed = errors.New("governkit: transition precondition failed")

	// ErrCapacityExceeded is returned by the explicit overbook path when the
	// overbook limit is reached, and by Admit for resources configured without
	// a waitlist.
	ErrCapacityExceeded = errors.New("governkit: capacity exceeded")

	// ErrClaimNotFound is returned when releasing a claim that is not held.
	ErrClaimNotFound = errors.New("governkit: claim not found")

	// ErrResourceNotFound is returned when a ledger operation references a
	// resource that has not been configured.
	ErrResourceNotFound = errors.New("governkit: resource not configured")

	// ErrInvalidRecordType is returned when a record type is not defined in the registry.
	ErrInvalidRecordType = errors.New("governkit: invalid record type")

	// ErrInvalidStatus is returned when a status value is not part of a record
	// type's workflow.
	ErrInvalidStatus = errors.New("governkit: invalid status")

	// ErrInvalidFieldPattern is returned when a field pattern is malformed.
	ErrInvalidFieldPattern = errors.New("governkit: invalid field pattern")

	// ErrDuplicateRecord is returned on Create when a duplicate exists within the
	// configured window and the record type's duplicate policy is DuplicateReject.
	ErrDuplicateRecord = errors.New("governkit: duplicate record")

	// ErrNoActor is returned when an operation requires an authenticated actor
	// and none was supplied.
	ErrNoActor = errors.New("governkit: no actor")

	// ErrDatabaseError is returned when a database operation fails.
	ErrDatabaseError = errors.New("governkit: database error")
)

// Error wraps a sentinel error with additional context. Only identifiers are
// carried — never field values, amounts, or consent content.
type Error struct {
	Err        error  // Underlying sentinel error
	Message    string // Additional context
	RecordType string // Record type involved
	RecordID   string // Record involved (if applicable)
	Field      string // Field involved (if applicable)
	Status     string // Status involved (if applicable)
	ClaimID    string // Claim involved (if applicable)
	ActorID    string // Actor who triggered the error (if applicable)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is checks if the error matches a target error.
func (e *Error) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewError creates a new Error with context.
func NewError(err error, message string) *Error {
	return &Error{
		Err:     err,
		Message: message,
	}
}

// WithRecord adds record information to the error.
func (e *Error) WithRecord(recordType, recordID string) *Error {
	e.RecordType = recordType
	e.RecordID = recordID
	return e
}

// WithField adds field information to the error.
func (e *Error) WithField(field string) *Error {
	e.Field = field
	return e
}

// WithStatus adds status information to the error.
func (e *Error) WithStatus(status string) *Error {
	e.Status = status
	return e
}

// WithClaim adds claim information to the error.
func (e *Error) WithClaim(claimID string) *Error {
	e.ClaimID = claimID
	return e
}

// WithActor adds actor information to the error.
func (e *Error) WithActor(actorID string) *Error {
	e.ActorID = actorID
	return e
}

// IsPermissionDenied checks if an error is a policy denial.
func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

// IsDataIntegrity checks if an error indicates record corruption. These are
// fatal and should be alerted on, not reported as user errors.
func IsDataIntegrity(err error) bool {
	return errors.Is(err, ErrDataIntegrity)
}

// IsInvalidTransition checks if an error is due to a missing workflow edge.
func IsInvalidTransition(err error) bool {
	return errors.Is(err, ErrInvalidTransition)
}

// IsPreconditionFailed checks if an error is due to missing or out-of-range
// companion data on an otherwise legal transition.
func IsPreconditionFailed(err error) bool {
	return errors.Is(err, ErrPreconditionFailed)
}

// IsCapacityExceeded checks if an error is due to exhausted capacity.
func IsCapacityExceeded(err error) bool {
	return errors.Is(err, ErrCapacityExceeded)
}

// IsInvalidRecordType checks if an error is due to an unknown record type.
func IsInvalidRecordType(err error) bool {
	return errors.Is(err, ErrInvalidRecordType)
}

// IsInvalidStatus checks if an error is due to a status outside the workflow.
func IsInvalidStatus(err error) bool {
	return errors.Is(err, ErrInvalidStatus)
}

// IsDuplicateRecord checks if an error is a duplicate-create rejection.
func IsDuplicateRecord(err error) bool {
	return errors.Is(err, ErrDuplicateRecord)
}
