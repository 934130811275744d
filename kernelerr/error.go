// Package kernelerr provides the structured error type used across every
// Zern kernel subsystem: resolver, lifecycle, buses, recovery, and the
// kernel facade all report failures through the same {code, message,
// cause, meta} shape so callers can branch on Code without parsing strings.
package kernelerr

import (
	"errors"
	"fmt"
)

// Code is a stable identifier for a class of kernel failure.
type Code string

const (
	// Resolver codes.
	CodeDependencyMissing Code = "DependencyMissing"
	CodeDependencyCycle   Code = "DependencyCycle"
	CodeVersionUnsatisfied Code = "VersionUnsatisfied"
	CodeInvalidVersionSpec Code = "InvalidVersionSpec"
	CodeDuplicatePlugin    Code = "DuplicatePlugin"
	CodeInvalidPluginName  Code = "InvalidPluginName"
	CodeSelfDependency     Code = "SelfDependency"

	// Semver codes.
	CodeInvalidVersion    Code = "InvalidVersion"
	CodeInvalidConstraint Code = "InvalidConstraint"

	// Lifecycle codes.
	CodeLifecyclePhaseFailed  Code = "LifecyclePhaseFailed"
	CodeLifecyclePhaseTimeout Code = "LifecyclePhaseTimeout"

	// Event bus codes.
	CodeEventHandlerError Code = "EventHandlerError"
	CodeUnknownEvent      Code = "UnknownEvent"

	// Hook bus codes.
	CodeHookHandlerError Code = "HookHandlerError"

	// Alert bus codes.
	CodeAlertChannelError Code = "AlertChannelError"

	// Augmentation codes.
	CodeMultipleAugments Code = "MultipleAugments"

	// Recovery / circuit breaker codes.
	CodeRecoveryExhausted Code = "RecoveryExhausted"
	CodeCircuitOpen       Code = "CircuitOpen"
	CodeStrategyTimeout   Code = "StrategyTimeout"

	// Kernel facade codes.
	CodeKernelNotInitialized      Code = "KernelNotInitialized"
	CodeKernelAlreadyInitialized  Code = "KernelAlreadyInitialized"
	CodeKernelError               Code = "KernelError"
)

// Error is the single structured error type used by the kernel. It always
// carries a stable Code, a human Message, an optional Cause it wraps, and
// a Meta bag of structured fields (plugin name, phase, dependency, etc).
type Error struct {
	Code    Code
	Message string
	Cause   error
	Meta    map[string]any
}

func (e *Error) Error() string {
	if e.Message == "" {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %v", e.Code, e.Cause)
		}
		return string(e.Code)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the cause chain to errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.Cause }

// Is compares by Code, so errors.Is(err, kernelerr.New(CodeDependencyCycle, ...))
// matches any DependencyCycle error regardless of message/meta.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithMeta returns a copy of e with key set in Meta.
func (e *Error) WithMeta(key string, value any) *Error {
	clone := *e
	clone.Meta = make(map[string]any, len(e.Meta)+1)
	for k, v := range e.Meta {
		clone.Meta[k] = v
	}
	clone.Meta[key] = value
	return &clone
}

// New builds a bare Error for the given code.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap builds an Error that chains cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf extracts the Code of err if it is (or wraps) a *Error, and false
// otherwise.
func CodeOf(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}
