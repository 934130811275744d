// Package resolver implements the dependency resolver (C4): it builds
// the constraint graph from the registry's plugins, user ordering
// directives, and load hints, runs the stable topological sort, and
// validates every declared dependency's version constraint against the
// resolved dependency's actual version. Grounded on the teacher's
// migration dependency resolution pass (leeforge-framework/runtime/
// migration, since deleted — persistence-specific) generalized to
// plugin graphs using graph.Sort and semver.Satisfies.
package resolver

import (
	"fmt"

	"github.com/zern/kernel/graph"
	"github.com/zern/kernel/kernelerr"
	"github.com/zern/kernel/plugin"
	"github.com/zern/kernel/registry"
	"github.com/zern/kernel/semver"
)

// Strategy governs how the resolver handles conflicts.
type Strategy int

const (
	// StrategyStrict fails the resolve on any conflict.
	StrategyStrict Strategy = iota
	// StrategyPermissive downgrades VersionUnsatisfied conflicts to
	// warnings and still returns an order; the dependency edge is still
	// wired into the graph (it only affects whether failure is fatal).
	// Hint edges are wired like any other edge and are not downgraded: a
	// cycle they close fails the resolve under every strategy.
	StrategyPermissive
	// StrategyAuto behaves like permissive but additionally prefers the
	// highest compatible version when more than one is available. Since
	// the registry holds exactly one instance per plugin name, there is
	// never more than one candidate version to choose from; auto reports
	// AutoNoCandidate in Downgraded instead of silently no-op'ing, see
	// the resolver's Open Question decision.
	StrategyAuto
)

// Conflict is one resolver-detected problem. Kind matches the error
// taxonomy code that would be raised under StrategyStrict.
type Conflict struct {
	Kind    kernelerr.Code
	Plugin  string
	Detail  string
	Cause   error
}

// Report is the resolver's full output: either a valid order with zero
// Conflicts, or conflicts that (depending on Strategy) may still carry a
// best-effort order.
type Report struct {
	Order      []string
	Conflicts  []Conflict
	// Downgraded records conflicts that would have been fatal under
	// strict strategy but were instead logged as warnings; each such
	// entry is also present in Conflicts for introspection. Under
	// StrategyAuto it also holds AutoNoCandidate markers, which appear
	// only here.
	Downgraded []Conflict
}

// OK reports whether the resolve produced zero fatal conflicts (under
// StrategyStrict, any Conflict is fatal; under permissive/auto, only
// conflicts not also present in Downgraded are fatal).
func (r *Report) OK() bool {
	return len(fatalOnly(r.Conflicts, r.Downgraded)) == 0
}

// Resolver builds and validates the plugin load order.
type Resolver struct {
	strategy Strategy
}

// New creates a Resolver using strategy.
func New(strategy Strategy) *Resolver {
	return &Resolver{strategy: strategy}
}

// Resolve runs the full algorithm from spec.md §4.4 steps 1-7 against
// reg's registered plugins and user ordering directives.
func (r *Resolver) Resolve(reg *registry.Registry) (*Report, error) {
	plugins := reg.List()
	orders := reg.Orders()

	g := graph.New()
	for _, p := range plugins {
		g.AddNode(p.Name())
	}

	report := &Report{}

	byName := make(map[string]plugin.Plugin, len(plugins))
	for _, p := range plugins {
		byName[p.Name()] = p
	}

	// Step 2: dependency edges + MissingDependency conflicts.
	type depEdge struct {
		plugin string
		dep    plugin.Dependency
	}
	var deps []depEdge
	for _, p := range plugins {
		declarer, ok := p.(plugin.DependencyDeclarer)
		if !ok {
			continue
		}
		for _, d := range declarer.Dependencies() {
			deps = append(deps, depEdge{plugin: p.Name(), dep: d})
			if _, exists := byName[d.Name]; exists {
				g.AddEdge(d.Name, p.Name(), graph.EdgeDep)
				continue
			}
			if d.Optional {
				continue
			}
			report.Conflicts = append(report.Conflicts, Conflict{
				Kind:   kernelerr.CodeDependencyMissing,
				Plugin: p.Name(),
				Detail: d.Name,
				Cause:  kernelerr.DependencyMissing(p.Name(), d.Name),
			})
		}
	}

	// Step 3: user order edges.
	for name, order := range orders {
		for _, before := range order.Before {
			g.AddEdge(name, before, graph.EdgeUser)
		}
		for _, after := range order.After {
			g.AddEdge(after, name, graph.EdgeUser)
		}
	}

	// Step 4: hint edges.
	for _, p := range plugins {
		declarer, ok := p.(plugin.HintDeclarer)
		if !ok {
			continue
		}
		hints := declarer.Hints()
		for _, before := range hints.LoadBefore {
			g.AddEdge(p.Name(), before, graph.EdgeHint)
		}
		for _, after := range hints.LoadAfter {
			g.AddEdge(after, p.Name(), graph.EdgeHint)
		}
	}

	if hasFatal(report.Conflicts, r.strategy) {
		return report, kernelerr.Wrap(kernelerr.CodeDependencyMissing, "unresolved dependencies", combineConflicts(report.Conflicts))
	}

	// Step 5: stable topological sort.
	order, err := graph.Sort(g)
	if err != nil {
		cycErr, ok := err.(*graph.CycleError)
		path := []string{}
		if ok {
			path = cycErr.Path
		}
		cycle := kernelerr.DependencyCycle(path)
		report.Conflicts = append(report.Conflicts, Conflict{
			Kind:   kernelerr.CodeDependencyCycle,
			Detail: fmt.Sprintf("%v", path),
			Cause:  cycle,
		})
		// Cycles are never auto-resolved under any strategy; no partial
		// order is ever returned.
		return report, cycle
	}
	report.Order = order

	// Step 6: version constraint validation.
	for _, de := range deps {
		if de.dep.VersionRange == "" {
			continue
		}
		depPlugin, exists := byName[de.dep.Name]
		if !exists {
			continue // already reported as MissingDependency, or optional
		}

		constraint, err := semver.ParseConstraint(de.dep.VersionRange)
		if err != nil {
			report.Conflicts = append(report.Conflicts, Conflict{
				Kind:   kernelerr.CodeInvalidVersionSpec,
				Plugin: de.plugin,
				Detail: de.dep.VersionRange,
				Cause:  kernelerr.InvalidVersionSpec(de.plugin, de.dep.VersionRange, err),
			})
			continue
		}
		actual, err := semver.ParseVersion(depPlugin.Version())
		if err != nil {
			report.Conflicts = append(report.Conflicts, Conflict{
				Kind:   kernelerr.CodeInvalidVersionSpec,
				Plugin: de.plugin,
				Detail: depPlugin.Version(),
				Cause:  kernelerr.InvalidVersionSpec(de.plugin, depPlugin.Version(), err),
			})
			continue
		}
		if !semver.Satisfies(actual, constraint) {
			conflict := Conflict{
				Kind:   kernelerr.CodeVersionUnsatisfied,
				Plugin: de.plugin,
				Detail: de.dep.Name,
				Cause:  kernelerr.VersionUnsatisfied(de.plugin, de.dep.Name, de.dep.VersionRange, depPlugin.Version()),
			}
			report.Conflicts = append(report.Conflicts, conflict)
			if r.strategy == StrategyPermissive || r.strategy == StrategyAuto {
				report.Downgraded = append(report.Downgraded, conflict)
			}
			if r.strategy == StrategyAuto {
				// Only one version of any given plugin name can ever be
				// registered, so "pick the highest compatible version"
				// degrades to reporting that no alternate candidate
				// exists rather than silently doing nothing.
				report.Downgraded = append(report.Downgraded, Conflict{
					Kind:   "AutoNoCandidate",
					Plugin: de.plugin,
					Detail: de.dep.Name,
				})
			}
		}
	}

	if hasFatal(report.Conflicts, r.strategy) {
		return report, kernelerr.Wrap(kernelerr.CodeVersionUnsatisfied, "dependency version constraints unsatisfied", combineConflicts(fatalOnly(report.Conflicts, report.Downgraded)))
	}

	return report, nil
}

// hasFatal reports whether any conflict is fatal under strategy.
// DependencyMissing and DependencyCycle are never downgradeable; version
// conflicts are fatal only under strict.
func hasFatal(conflicts []Conflict, strategy Strategy) bool {
	for _, c := range conflicts {
		if c.Kind == kernelerr.CodeDependencyMissing || c.Kind == kernelerr.CodeDependencyCycle {
			return true
		}
		if c.Kind == kernelerr.CodeVersionUnsatisfied && strategy == StrategyStrict {
			return true
		}
		if c.Kind == kernelerr.CodeInvalidVersionSpec {
			return true
		}
	}
	return false
}

func fatalOnly(conflicts, downgraded []Conflict) []Conflict {
	var out []Conflict
	for _, c := range conflicts {
		isDowngraded := false
		for _, d := range downgraded {
			if d == c {
				isDowngraded = true
				break
			}
		}
		if !isDowngraded {
			out = append(out, c)
		}
	}
	return out
}

func combineConflicts(conflicts []Conflict) error {
	if len(conflicts) == 0 {
		return nil
	}
	if len(conflicts) == 1 {
		return conflicts[0].Cause
	}
	msgs := make([]string, 0, len(conflicts))
	for _, c := range conflicts {
		if c.Cause != nil {
			msgs = append(msgs, c.Cause.Error())
		}
	}
	return fmt.Errorf("%d conflicts: %v", len(conflicts), msgs)
}
