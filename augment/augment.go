// Package augment implements the cross-plugin API augmentation merger
// (C12): after a plugin's own Setup produces its API, the merger folds
// in every later-loaded plugin's declared contributions to that target,
// in resolved init order, last writer wins. Grounded on the teacher's
// component composition pass (leeforge-framework/component/registry.go)
// generalized from component registration to per-method API folding.
package augment

import (
	"context"

	"github.com/zern/kernel/kernelerr"
	"github.com/zern/kernel/logging"
	"github.com/zern/kernel/plugin"
)

// Contribution is one augmenting plugin's methodName -> fn map targeted
// at a specific plugin. OwnAPI is the augmenting plugin's own setup
// output, supplied as the lexical context an AugmentFunc closes over.
type Contribution struct {
	Source  string
	OwnAPI  plugin.API
	Methods map[string]plugin.AugmentFunc
}

// ErrorReporter is the narrow error-bus view Merger needs; bus.ErrorBus
// satisfies it.
type ErrorReporter interface {
	Report(ctx context.Context, namespace, kind string, cause error, meta map[string]any)
}

// Merger applies declared augments onto target plugin APIs.
type Merger struct {
	errorBus ErrorReporter
	logger   logging.Logger
}

// New creates a Merger. errorBus receives MultipleAugments warnings;
// pass nil to disable reporting (the merge still applies last-writer-wins
// silently).
func New(errorBus ErrorReporter, logger logging.Logger) *Merger {
	if logger == nil {
		logger = logging.Global()
	}
	return &Merger{errorBus: errorBus, logger: logger.Named("augment")}
}

// Merge folds contributions (already ordered by resolved init order) onto
// target's own API, returning the final merged API. A method contributed
// by more than one plugin is resolved last-writer-wins in the order
// contributions are given, and emits one MultipleAugments warning per
// collided method naming every contributor.
func (m *Merger) Merge(target string, ownAPI plugin.API, contributions []Contribution) plugin.API {
	merged := make(plugin.API, len(ownAPI))
	for k, v := range ownAPI {
		merged[k] = v
	}

	contributors := make(map[string][]string)
	for _, c := range contributions {
		for method, fn := range c.Methods {
			merged[method] = fn(c.OwnAPI)
			contributors[method] = append(contributors[method], c.Source)
		}
	}

	for method, names := range contributors {
		if len(names) <= 1 {
			continue
		}
		warning := kernelerr.MultipleAugments(target, method, names)
		m.logger.Warn(warning.Error())
		if m.errorBus != nil {
			m.errorBus.Report(context.Background(), "augment", "MultipleAugments", warning, map[string]any{
				"target": target, "method": method, "contributors": names,
			})
		}
	}

	return merged
}
