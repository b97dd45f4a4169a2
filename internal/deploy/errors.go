package deploy

import (
	"errors"
	"fmt"
	"strings"
)

// CycleError reports that the descriptor set contains a dependency cycle.
// IDs holds the members of one detected cycle in reference order, ending
// with the id that closes it.
type CycleError struct {
	IDs []string
}

func (e *CycleError) Error() string {
	return "dependency cycle detected: " + strings.Join(e.IDs, " -> ")
}

// UnknownDependencyError reports a dependency reference to an undeclared
// descriptor id.
type UnknownDependencyError struct {
	From string
	To   string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("descriptor %q depends on undeclared descriptor %q", e.From, e.To)
}

// DuplicateIDError reports two descriptors declared with the same id.
type DuplicateIDError struct {
	ID string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("duplicate descriptor id %q", e.ID)
}

// TransientError marks a provider failure that is worth retrying, such as
// rate limiting or a temporarily locked resource.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as retryable. Returns nil for a nil err.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient checks whether err is marked retryable.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// PermanentError marks a provider failure that retrying cannot fix, such as
// invalid input or a missing referenced resource.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err as non-retryable. Returns nil for a nil err.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent checks whether err is marked non-retryable.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// AlreadyExistsError reports a creation attempt that collided with an
// existing resource where overwriting is disallowed.
type AlreadyExistsError struct {
	Resource string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("resource already exists: %s", e.Resource)
}

// IsAlreadyExists checks whether err reports an existing-resource conflict.
func IsAlreadyExists(err error) bool {
	var ae *AlreadyExistsError
	return errors.As(err, &ae)
}
