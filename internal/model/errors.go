package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by lookups when CloudVision has no object with
// the requested name.
var ErrNotFound = errors.New("not found")

// RemoteError is any failure talking to CloudVision: transport, HTTP
// status, authentication or an unreadable response.
type RemoteError struct {
	// Op names the remote operation, e.g. "get container" or "login".
	Op string

	// Target is the object the operation was about (container name, host).
	Target string

	Err error
}

// Error satisfies the error interface.
func (e *RemoteError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("cvp %s %q: %v", e.Op, e.Target, e.Err)
	}
	return fmt.Sprintf("cvp %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *RemoteError) Unwrap() error {
	return e.Err
}

// NewRemoteError wraps err as a RemoteError.
func NewRemoteError(op, target string, err error) *RemoteError {
	return &RemoteError{Op: op, Target: target, Err: err}
}

// ConfigurationError reports topology input that cannot be reconciled:
// unresolvable parents, cycles or schema violations. It is always fatal
// and is raised before any change is sent to CloudVision.
type ConfigurationError struct {
	Reason string

	// Details lists one line per offending container or schema field.
	Details []string
}

// Error satisfies the error interface.
func (e *ConfigurationError) Error() string {
	if len(e.Details) == 0 {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Reason, strings.Join(e.Details, "; "))
}

// NewConfigurationError creates a ConfigurationError.
func NewConfigurationError(reason string, details ...string) *ConfigurationError {
	return &ConfigurationError{Reason: reason, Details: details}
}

// IsRemoteError reports whether err is, or wraps, a RemoteError.
func IsRemoteError(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}

// IsConfigurationError reports whether err is, or wraps, a
// ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
