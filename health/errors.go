package health

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCheckTimeout indicates a health check evaluation timed out.
	ErrCheckTimeout = errors.New("health: check timeout")

	// ErrCheckPanic indicates a health check body panicked.
	ErrCheckPanic = errors.New("health: check panicked")

	// ErrCheckerNotFound indicates a checker was not found.
	ErrCheckerNotFound = errors.New("health: checker not found")

	// ErrAlreadyRegistered indicates a checker name is already in use.
	ErrAlreadyRegistered = errors.New("health: checker already registered")

	// ErrInvalidOptions indicates invalid check options.
	ErrInvalidOptions = errors.New("health: invalid options")

	// ErrRegistryStarted indicates registration after Start.
	ErrRegistryStarted = errors.New("health: registry already started")
)

// NotReadyError is returned by Gate.Before when the service readiness
// computation is false. Callers are expected to requeue the unit of
// work after RequeueDelay rather than discard it.
type NotReadyError struct {
	// Service is the name of the gated service.
	Service string

	// Checks are the names of the checks currently blocking readiness.
	Checks []string
}

func (e *NotReadyError) Error() string {
	if len(e.Checks) == 0 {
		return fmt.Sprintf("health: service %q is not ready", e.Service)
	}
	return fmt.Sprintf("health: service %q is not ready (blocked by: %s)",
		e.Service, strings.Join(e.Checks, ", "))
}

// IsNotReady reports whether err is a readiness-gate rejection.
func IsNotReady(err error) bool {
	var nr *NotReadyError
	return errors.As(err, &nr)
}
