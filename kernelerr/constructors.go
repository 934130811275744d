package kernelerr

import "fmt"

// DependencyMissing reports a non-optional dependency that was never
// registered with the kernel (spec.md §8 scenario 2).
func DependencyMissing(plugin, dependency string) *Error {
	return &Error{
		Code:    CodeDependencyMissing,
		Message: fmt.Sprintf("plugin %q depends on %q which is not registered", plugin, dependency),
		Meta: map[string]any{
			"plugin":     plugin,
			"dependency": dependency,
		},
	}
}

// DependencyCycle reports a cycle discovered in the constraint graph,
// including one concrete offending path.
func DependencyCycle(path []string) *Error {
	return &Error{
		Code:    CodeDependencyCycle,
		Message: fmt.Sprintf("circular dependency detected: %v", path),
		Meta: map[string]any{
			"cycle": path,
		},
	}
}

// VersionUnsatisfied reports a dependency whose declared version range
// does not match the resolved dependency's actual version (spec.md §8
// scenario 3).
func VersionUnsatisfied(plugin, dependency, required, actual string) *Error {
	return &Error{
		Code:    CodeVersionUnsatisfied,
		Message: fmt.Sprintf("plugin %q requires %q@%s, found %s", plugin, dependency, required, actual),
		Meta: map[string]any{
			"plugin":     plugin,
			"dependency": dependency,
			"required":   required,
			"actual":     actual,
		},
	}
}

// InvalidVersionSpec reports a malformed version or constraint string.
func InvalidVersionSpec(subject, raw string, cause error) *Error {
	return &Error{
		Code:    CodeInvalidVersionSpec,
		Message: fmt.Sprintf("invalid version spec for %q: %q", subject, raw),
		Cause:   cause,
		Meta: map[string]any{
			"subject": subject,
			"raw":     raw,
		},
	}
}

// DuplicatePlugin reports a second registration under an already-used name.
func DuplicatePlugin(name string) *Error {
	return &Error{
		Code:    CodeDuplicatePlugin,
		Message: fmt.Sprintf("plugin %q already registered", name),
		Meta:    map[string]any{"plugin": name},
	}
}

// InvalidPluginName reports a plugin registered with an empty Name().
func InvalidPluginName(name string) *Error {
	return &Error{
		Code:    CodeInvalidPluginName,
		Message: "plugin name must not be empty",
		Meta:    map[string]any{"plugin": name},
	}
}

// SelfDependency reports a plugin that declares itself as a dependency.
func SelfDependency(name string) *Error {
	return &Error{
		Code:    CodeSelfDependency,
		Message: fmt.Sprintf("plugin %q cannot depend on itself", name),
		Meta:    map[string]any{"plugin": name},
	}
}

// InvalidVersion reports a version string that failed to parse.
func InvalidVersion(raw string, cause error) *Error {
	return &Error{
		Code:    CodeInvalidVersion,
		Message: fmt.Sprintf("invalid version %q", raw),
		Cause:   cause,
		Meta:    map[string]any{"raw": raw},
	}
}

// InvalidConstraint reports a constraint string that failed to parse.
func InvalidConstraint(raw string, cause error) *Error {
	return &Error{
		Code:    CodeInvalidConstraint,
		Message: fmt.Sprintf("invalid constraint %q", raw),
		Cause:   cause,
		Meta:    map[string]any{"raw": raw},
	}
}

// LifecyclePhaseFailed wraps a plugin phase function's error after retries
// are exhausted, aborting the boot.
func LifecyclePhaseFailed(plugin, phase string, cause error) *Error {
	return &Error{
		Code:    CodeLifecyclePhaseFailed,
		Message: fmt.Sprintf("plugin %q failed phase %q", plugin, phase),
		Cause:   cause,
		Meta: map[string]any{
			"plugin": plugin,
			"phase":  phase,
		},
	}
}

// LifecyclePhaseTimeout reports a single attempt exceeding its per-phase
// deadline.
func LifecyclePhaseTimeout(plugin, phase string, attempt int) *Error {
	return &Error{
		Code:    CodeLifecyclePhaseTimeout,
		Message: fmt.Sprintf("plugin %q timed out in phase %q (attempt %d)", plugin, phase, attempt),
		Meta: map[string]any{
			"plugin":  plugin,
			"phase":   phase,
			"attempt": attempt,
		},
	}
}

// EventHandlerError wraps a handler panic/error caught during event dispatch.
func EventHandlerError(namespace, key string, cause error) *Error {
	return &Error{
		Code:    CodeEventHandlerError,
		Message: fmt.Sprintf("event handler failed for %s.%s", namespace, key),
		Cause:   cause,
		Meta: map[string]any{
			"namespace": namespace,
			"key":       key,
		},
	}
}

// UnknownEvent reports an emit() against an undeclared (namespace, key) pair
// in strict mode.
func UnknownEvent(namespace, key string) *Error {
	return &Error{
		Code:    CodeUnknownEvent,
		Message: fmt.Sprintf("unknown event %s.%s", namespace, key),
		Meta: map[string]any{
			"namespace": namespace,
			"key":       key,
		},
	}
}

// HookHandlerError wraps a hook handler panic/error.
func HookHandlerError(namespace, key string, cause error) *Error {
	return &Error{
		Code:    CodeHookHandlerError,
		Message: fmt.Sprintf("hook handler failed for %s.%s", namespace, key),
		Cause:   cause,
		Meta: map[string]any{
			"namespace": namespace,
			"key":       key,
		},
	}
}

// AlertChannelError wraps a channel delivery failure. These are swallowed
// by the alert bus and only ever reported on the error bus for logging.
func AlertChannelError(channel, namespace, kind string, cause error) *Error {
	return &Error{
		Code:    CodeAlertChannelError,
		Message: fmt.Sprintf("alert channel %q failed for %s.%s", channel, namespace, kind),
		Cause:   cause,
		Meta: map[string]any{
			"channel":   channel,
			"namespace": namespace,
			"kind":      kind,
		},
	}
}

// MultipleAugments reports more than one plugin augmenting the same target
// method; the last writer in resolved order wins, this is only a warning.
func MultipleAugments(target, method string, contributors []string) *Error {
	return &Error{
		Code:    CodeMultipleAugments,
		Message: fmt.Sprintf("multiple plugins augment %s.%s", target, method),
		Meta: map[string]any{
			"target":       target,
			"method":       method,
			"contributors": contributors,
		},
	}
}

// RecoveryExhausted reports that every priority-ordered strategy (and
// fallback, if enabled) failed to recover the original error.
func RecoveryExhausted(original error, strategiesTried []string) *Error {
	return &Error{
		Code:    CodeRecoveryExhausted,
		Message: fmt.Sprintf("recovery exhausted after trying %v", strategiesTried),
		Cause:   original,
		Meta:    map[string]any{"strategies": strategiesTried},
	}
}

// CircuitOpen reports a recovery attempt blocked by an open breaker.
func CircuitOpen(strategy string, nextAttemptUnixNano int64) *Error {
	return &Error{
		Code:    CodeCircuitOpen,
		Message: fmt.Sprintf("circuit open for strategy %q", strategy),
		Meta: map[string]any{
			"strategy":        strategy,
			"nextAttemptTime": nextAttemptUnixNano,
		},
	}
}

// StrategyTimeout reports a strategy execution exceeding its bound.
func StrategyTimeout(strategy string) *Error {
	return &Error{
		Code:    CodeStrategyTimeout,
		Message: fmt.Sprintf("strategy %q timed out", strategy),
		Meta:    map[string]any{"strategy": strategy},
	}
}

// KernelNotInitialized reports an operation requiring an initialized
// kernel being invoked before Init() completed.
func KernelNotInitialized() *Error {
	return &Error{Code: CodeKernelNotInitialized, Message: "kernel is not initialized"}
}

// KernelAlreadyInitialized reports a redundant, conflicting Init() call.
func KernelAlreadyInitialized() *Error {
	return &Error{Code: CodeKernelAlreadyInitialized, Message: "kernel is already initialized"}
}

// KernelErrorf wraps an arbitrary cause (typically a resolver or lifecycle
// *Error) as the single top-level error Init() rejects with.
func KernelErrorf(cause error) *Error {
	return &Error{
		Code:    CodeKernelError,
		Message: "kernel initialization failed",
		Cause:   cause,
	}
}
