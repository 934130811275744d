package kernel

import (
	"time"

	"github.com/zern/kernel/config"
	"github.com/zern/kernel/lifecycle"
	"github.com/zern/kernel/recovery"
	"github.com/zern/kernel/resolver"
)

func resolverStrategy(raw string) resolver.Strategy {
	switch raw {
	case "permissive":
		return resolver.StrategyPermissive
	case "auto":
		return resolver.StrategyAuto
	default:
		return resolver.StrategyStrict
	}
}

func lifecycleOptions(opts config.LifecycleOptions) lifecycle.Options {
	policies := make(map[lifecycle.Phase]lifecycle.Policy, len(opts.Policies))
	for phase, p := range opts.Policies {
		policies[lifecycle.Phase(phase)] = lifecycle.Policy{TimeoutMs: p.TimeoutMs, Retry: p.Retry}
	}
	return lifecycle.Options{Concurrency: opts.Concurrency, Policies: policies}
}

func recoveryConfig(opts config.RecoveryOptions) recovery.Config {
	return recovery.Config{
		MaxRetries:                opts.MaxRetries,
		RetryDelay:                durationOrDefault(opts.RetryDelay(), 100*time.Millisecond),
		ExponentialBackoff:        opts.ExponentialBackoff,
		MaxBackoffDelay:           durationOrDefault(opts.MaxBackoffDelay(), 10*time.Second),
		CircuitBreakerThreshold:   opts.CircuitBreakerThreshold,
		CircuitBreakerTimeout:     durationOrDefault(opts.CircuitBreakerTimeout(), 30*time.Second),
		EnableFallbacks:           opts.EnableFallbacks,
		EnableGracefulDegradation: opts.EnableGracefulDegradation,
	}
}

func durationOrDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
