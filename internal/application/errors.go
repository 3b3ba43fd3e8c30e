package application

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrPersonNotFound is returned when a token or person id resolves to nobody.
	ErrPersonNotFound = errors.New("application: person not found")
	// ErrSessionNotFound is returned when a session id does not exist.
	ErrSessionNotFound = errors.New("application: session not found")
	// ErrNotEnrolled is returned when a manual record targets a session the person is not enrolled in.
	ErrNotEnrolled = errors.New("application: person not enrolled in session")
	// ErrNoMatchingSession is returned when no enrolled session is in progress at the scan time.
	ErrNoMatchingSession = errors.New("application: no matching session")
	// ErrInvalidTimestamp is returned when a timestamp or date is not in the accepted format.
	ErrInvalidTimestamp = errors.New("application: invalid timestamp")
	// ErrInvalidRecurrenceRule is returned when a session rule cannot be evaluated.
	ErrInvalidRecurrenceRule = errors.New("application: invalid recurrence rule")
	// ErrDuplicateBiometricToken is returned when a token is already held by another person.
	ErrDuplicateBiometricToken = errors.New("application: biometric token already assigned")
	// ErrRepositoryUnavailable is returned when a collaborator fails for a reason other than not-found.
	ErrRepositoryUnavailable = errors.New("application: repository unavailable")
	// ErrAlreadyExists is returned when a record with the same id already exists.
	ErrAlreadyExists = errors.New("application: already exists")
)

// RepositoryError wraps a collaborator failure. It matches ErrRepositoryUnavailable
// and unwraps to the underlying cause.
type RepositoryError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *RepositoryError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", ErrRepositoryUnavailable.Error(), e.Op)
	}
	return fmt.Sprintf("%s: %s: %v", ErrRepositoryUnavailable.Error(), e.Op, e.Err)
}

// Is reports whether target is ErrRepositoryUnavailable.
func (e *RepositoryError) Is(target error) bool {
	return target == ErrRepositoryUnavailable
}

// Unwrap returns the collaborator cause.
func (e *RepositoryError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func repositoryError(op string, err error) error {
	return &RepositoryError{Op: op, Err: err}
}

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}
