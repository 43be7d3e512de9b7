package authz

import (
	"errors"
	"fmt"
)

// ForbiddenError is returned by callers that turn a denied Decision into an error
type ForbiddenError struct {
	Decision *Decision
}

func (e *ForbiddenError) Error() string {
	if e.Decision == nil {
		return "forbidden"
	}
	return fmt.Sprintf("forbidden: %s denied at %s gate: %s",
		e.Decision.Permission, e.Decision.Gate, e.Decision.Reason)
}

// IsForbidden reports whether err wraps a *ForbiddenError
func IsForbidden(err error) bool {
	var fe *ForbiddenError
	return errors.As(err, &fe)
}

// AsForbidden extracts the denied Decision from err, if any
func AsForbidden(err error) (*Decision, bool) {
	var fe *ForbiddenError
	if errors.As(err, &fe) && fe.Decision != nil {
		return fe.Decision, true
	}
	return nil, false
}

// ErrActorNotFound is returned when no active user matches the requested id
var ErrActorNotFound = errors.New("actor not found")
