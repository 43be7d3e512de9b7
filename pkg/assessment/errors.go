package assessment

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when an assessment or one of its sections does not exist
var ErrNotFound = errors.New("assessment not found")

// InvalidTransitionError is returned for a status change outside the graph
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %s to %s", e.From, e.To)
}

// IsInvalidTransition checks if an error is an InvalidTransitionError
func IsInvalidTransition(err error) bool {
	var target *InvalidTransitionError
	return errors.As(err, &target)
}

// ValidationFailedError carries every violation of a rejected request
type ValidationFailedError struct {
	Violations []Violation
}

func (e *ValidationFailedError) Error() string {
	if len(e.Violations) == 1 {
		v := e.Violations[0]
		return fmt.Sprintf("validation failed: %s: %s", v.Field, v.Message)
	}
	fields := make([]string, 0, len(e.Violations))
	seen := make(map[string]bool)
	for _, v := range e.Violations {
		if !seen[v.Field] {
			seen[v.Field] = true
			fields = append(fields, v.Field)
		}
	}
	return fmt.Sprintf("validation failed: %d violations on %s", len(e.Violations), strings.Join(fields, ", "))
}

// Fields groups the violation messages by field
func (e *ValidationFailedError) Fields() map[string][]string {
	return groupByField(e.Violations)
}

// IsValidationFailed checks if an error is a ValidationFailedError
func IsValidationFailed(err error) bool {
	var target *ValidationFailedError
	return errors.As(err, &target)
}

// AsValidationFailed extracts a ValidationFailedError from err
func AsValidationFailed(err error) (*ValidationFailedError, bool) {
	var target *ValidationFailedError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

func groupByField(violations []Violation) map[string][]string {
	out := make(map[string][]string)
	for _, v := range violations {
		out[v.Field] = append(out[v.Field], v.Message)
	}
	return out
}
