package config

import "time"

// KernelOptions is the full set of recognized kernel options
// (spec.md §6's configuration table), bindable from a "kernel.yaml"
// section via Config.BindWithDefaults or constructed directly by
// callers using kernel.Builder.WithOptions.
type KernelOptions struct {
	Resolver  ResolverOptions  `mapstructure:"resolver"`
	Lifecycle LifecycleOptions `mapstructure:"lifecycle"`
	Events    EventsOptions    `mapstructure:"events"`
	Recovery  RecoveryOptions  `mapstructure:"recovery"`
}

// ResolverOptions configures conflict handling strategy.
type ResolverOptions struct {
	// Strategy is one of "strict", "permissive", "auto".
	Strategy string `mapstructure:"strategy" default:"strict"`
}

// LifecyclePolicyOptions is the per-phase {timeoutMs, retry} policy.
type LifecyclePolicyOptions struct {
	TimeoutMs int `mapstructure:"timeoutMs"`
	Retry     int `mapstructure:"retry"`
}

// LifecycleOptions configures the lifecycle engine's concurrency and
// per-phase policies.
type LifecycleOptions struct {
	Concurrency int                               `mapstructure:"concurrency" default:"1"`
	Policies    map[string]LifecyclePolicyOptions `mapstructure:"policies"`
}

// EventsOptions configures which observer adapters the event bus wires
// in at boot.
type EventsOptions struct {
	Adapters []string `mapstructure:"adapters"`
}

// RecoveryOptions configures the recovery coordinator's retry shape and
// circuit-breaker tuning.
type RecoveryOptions struct {
	MaxRetries                int           `mapstructure:"maxRetries" default:"3"`
	RetryDelayMs              int           `mapstructure:"retryDelay" default:"100"`
	ExponentialBackoff        bool          `mapstructure:"exponentialBackoff" default:"true"`
	MaxBackoffDelayMs         int           `mapstructure:"maxBackoffDelay" default:"10000"`
	CircuitBreakerThreshold   uint32        `mapstructure:"circuitBreakerThreshold" default:"5"`
	CircuitBreakerTimeoutMs   int           `mapstructure:"circuitBreakerTimeout" default:"30000"`
	EnableFallbacks           bool          `mapstructure:"enableFallbacks"`
	EnableGracefulDegradation bool          `mapstructure:"enableGracefulDegradation"`
}

// RetryDelay renders RetryDelayMs as a time.Duration.
func (o RecoveryOptions) RetryDelay() time.Duration {
	return time.Duration(o.RetryDelayMs) * time.Millisecond
}

// MaxBackoffDelay renders MaxBackoffDelayMs as a time.Duration.
func (o RecoveryOptions) MaxBackoffDelay() time.Duration {
	return time.Duration(o.MaxBackoffDelayMs) * time.Millisecond
}

// CircuitBreakerTimeout renders CircuitBreakerTimeoutMs as a
// time.Duration.
func (o RecoveryOptions) CircuitBreakerTimeout() time.Duration {
	return time.Duration(o.CircuitBreakerTimeoutMs) * time.Millisecond
}

// DefaultKernelOptions returns the recognized options at their documented
// defaults (strict resolver strategy, sequential lifecycle, no adapters,
// moderate recovery retry/breaker tuning).
func DefaultKernelOptions() KernelOptions {
	return KernelOptions{
		Resolver:  ResolverOptions{Strategy: "strict"},
		Lifecycle: LifecycleOptions{Concurrency: 1},
		Recovery: RecoveryOptions{
			MaxRetries:              3,
			RetryDelayMs:            100,
			ExponentialBackoff:      true,
			MaxBackoffDelayMs:       10000,
			CircuitBreakerThreshold: 5,
			CircuitBreakerTimeoutMs: 30000,
		},
	}
}
