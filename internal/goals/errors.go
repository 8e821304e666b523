package goals

import (
	"errors"
	"fmt"
)

// ErrContractViolation matches every ContractViolationError via errors.Is.
var ErrContractViolation = errors.New("contract violation")

// ContractViolationError reports that the reorganizer was asked to do something its
// preconditions rule out. It signals a routing bug and is never recovered locally.
type ContractViolationError struct {
	Op     string
	Reason string
}

func (e ContractViolationError) Error() string {
	return fmt.Sprintf("contract violation in %s: %s", e.Op, e.Reason)
}

func (e ContractViolationError) Is(target error) bool {
	return target == ErrContractViolation
}

func contractViolation(op string, format string, args ...any) error {
	return ContractViolationError{Op: op, Reason: fmt.Sprintf(format, args...)}
}

type NotFoundError struct {
	Priority int
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("goal not found: priority %d", e.Priority)
}

type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func IsNotFound(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}

func IsValidation(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}
