// Post-evaluation fixup of the target graph: resolving dependency edges,
// detecting cycles, propagating configs & libraries and validating
// cross-target invariants. Nothing here runs concurrently; the loader has
// finished by the time Resolve is called, so the graph is complete and quiet.

package core

import (
	"strings"

	"github.com/hashicorp/go-multierror"
)

// Resolve runs the full resolution pipeline over the graph. On success every
// target's computed fields are populated; on failure the first error is
// returned, with any further independent validation failures attached as
// sub-errors.
func (g *Graph) Resolve() *Err {
	r := &resolver{graph: g}
	if err := r.resolveRefs(); err != nil {
		return err
	}
	if err := r.detectCycles(); err != nil {
		return err
	}
	r.propagateConfigs()
	r.propagateLibs()
	var merr *multierror.Error
	for _, err := range r.checkVisibility() {
		merr = multierror.Append(merr, err)
	}
	for _, err := range r.checkAssertions() {
		merr = multierror.Append(merr, err)
	}
	if merr != nil {
		errs := merr.WrappedErrors()
		first := errs[0].(*Err)
		for _, e := range errs[1:] {
			first.Append(e.(*Err))
		}
		return first
	}
	for _, t := range g.order {
		t.resolved = true
	}
	log.Debug("resolved %d targets, %d configs", len(g.order), len(g.configs))
	return nil
}

type resolver struct {
	graph *Graph
	// Memoised propagation closures.
	allDependent map[*Target][]*Config
	publicChain  map[*Target][]*Config
}

// resolveRefs interns and resolves every label reference: dep edges to
// targets, config lists to configs. A reference to something that was never
// declared is fatal, reported at the referencing target.
func (r *resolver) resolveRefs() *Err {
	g := r.graph
	for _, t := range g.order {
		for i := range t.Deps {
			dep := &t.Deps[i]
			to := g.Target(dep.Label)
			if to == nil {
				err := MakeErr(t.Loc, "Target %s (referenced from %s via %s) does not exist", dep.Label, t.Label, dep.Kind)
				if names := g.TargetNamesInDir(dep.Label.Dir); len(names) > 0 && len(names) <= 10 {
					err.AppendMsg(Location{}, "Targets declared in //%s: :%s", dep.Label.Dir, strings.Join(names, ", :"))
				}
				return err
			}
			dep.To = to
		}
		var err *Err
		if t.resolvedConfigs, err = r.resolveConfigList(t, append(append(append([]*Label{}, t.Configs...), t.PublicConfigs...), t.AllDependentConfigs...)); err != nil {
			return err
		}
		// The initial resolved list is rebuilt during propagation; the call
		// above exists to surface missing configs before anything else runs.
		t.resolvedConfigs = nil
	}
	for _, c := range g.configs {
		for _, sub := range c.Configs {
			subConfig := g.Config(sub)
			if subConfig == nil {
				return MakeErr(c.Loc, "Config %s (referenced from %s) does not exist", sub, c.Label)
			}
			c.resolvedConfigs = append(c.resolvedConfigs, subConfig)
		}
	}
	return nil
}

func (r *resolver) resolveConfigList(t *Target, labels []*Label) ([]*Config, *Err) {
	configs := make([]*Config, 0, len(labels))
	for _, label := range labels {
		c := r.graph.Config(label)
		if c == nil {
			return nil, MakeErr(t.Loc, "Config %s (referenced from %s) does not exist", label, t.Label)
		}
		configs = append(configs, c)
	}
	return configs, nil
}

// Colours for the depth-first cycle search.
const (
	white = iota // not yet visited
	cycleGrey    // on the current path
	black        // fully explored
)

// detectCycles walks the hard-dep graph depth first with the usual
// three-colour marking. Re-entering a grey node means the current path
// contains a cycle; the witness is the path suffix from the first occurrence
// of that node, so its first and last labels are equal.
func (r *resolver) detectCycles() *Err {
	colours := make(map[*Target]int, len(r.graph.order))
	var path []*Target
	var visit func(t *Target) *Err
	visit = func(t *Target) *Err {
		colours[t] = cycleGrey
		path = append(path, t)
		for _, dep := range t.HardDeps() {
			switch colours[dep.To] {
			case cycleGrey:
				return cycleErr(path, dep.To)
			case white:
				if err := visit(dep.To); err != nil {
					return err
				}
			}
		}
		path = path[:len(path)-1]
		colours[t] = black
		return nil
	}
	for _, t := range r.graph.order {
		if colours[t] == white {
			if err := visit(t); err != nil {
				return err
			}
		}
	}
	return nil
}

// cycleErr formats the witness path for a detected cycle.
func cycleErr(path []*Target, repeated *Target) *Err {
	start := 0
	for i, t := range path {
		if t == repeated {
			start = i
			break
		}
	}
	labels := make([]string, 0, len(path)-start+1)
	for _, t := range path[start:] {
		labels = append(labels, t.Label.String())
	}
	labels = append(labels, repeated.Label.String())
	return MakeErr(repeated.Loc, "Dependency cycle:\n  %s", strings.Join(labels, " ->\n  "))
}

// propagateConfigs computes every target's ordered resolved config list.
//
// Each target's list starts with its own configs, public_configs and
// all_dependent_configs in declaration order, then gains contributions from
// dependencies: all_dependent_configs reach every transitive dependent via
// any dep kind, and public_configs flow across public edges (transitively,
// because a public dep's own public closure includes its public deps').
// Contribution order from dependencies is depth-first post-order over the
// declaring deps list, and duplicates keep their earliest occurrence, so when
// two paths supply the same config the path through the earlier direct dep
// wins.
func (r *resolver) propagateConfigs() {
	r.allDependent = make(map[*Target][]*Config, len(r.graph.order))
	r.publicChain = make(map[*Target][]*Config, len(r.graph.order))
	for _, t := range r.graph.order {
		configs := r.flatten(r.configList(t.Configs))
		configs = appendUnique(configs, r.flatten(r.configList(t.PublicConfigs))...)
		configs = appendUnique(configs, r.flatten(r.configList(t.AllDependentConfigs))...)
		for _, dep := range t.Deps {
			configs = appendUnique(configs, r.allDependentClosure(dep.To)...)
			if dep.Kind == PublicDep {
				configs = appendUnique(configs, r.publicClosure(dep.To)...)
			}
		}
		t.resolvedConfigs = configs
	}
}

// allDependentClosure returns the all_dependent_configs contributed by a
// target and everything reachable beneath it, in depth-first post-order.
func (r *resolver) allDependentClosure(t *Target) []*Config {
	if cached, present := r.allDependent[t]; present {
		return cached
	}
	// Mark before recursing; cycles were rejected already but self-references
	// through diamond shapes shouldn't recompute.
	r.allDependent[t] = nil
	var configs []*Config
	for _, dep := range t.Deps {
		configs = appendUnique(configs, r.allDependentClosure(dep.To)...)
	}
	configs = appendUnique(configs, r.flatten(r.configList(t.AllDependentConfigs))...)
	r.allDependent[t] = configs
	return configs
}

// publicClosure returns a target's public configs plus those of its public
// deps, recursively.
func (r *resolver) publicClosure(t *Target) []*Config {
	if cached, present := r.publicChain[t]; present {
		return cached
	}
	r.publicChain[t] = nil
	configs := r.flatten(r.configList(t.PublicConfigs))
	for _, dep := range t.Deps {
		if dep.Kind == PublicDep {
			configs = appendUnique(configs, r.publicClosure(dep.To)...)
		}
	}
	r.publicChain[t] = configs
	return configs
}

func (r *resolver) configList(labels []*Label) []*Config {
	configs := make([]*Config, len(labels))
	for i, label := range labels {
		configs[i] = r.graph.Config(label)
	}
	return configs
}

// flatten expands nested config references inline after their parent,
// preserving first-occurrence order.
func (r *resolver) flatten(configs []*Config) []*Config {
	var ret []*Config
	for _, c := range configs {
		ret = appendUnique(ret, c)
		ret = appendUnique(ret, r.flatten(c.resolvedConfigs)...)
	}
	return ret
}

// propagateLibs gathers transitive libs, lib_dirs and frameworks for each
// target. Contributions come from the target itself, its configs, and its
// dependencies; traversal descends through a dependency when the edge is
// public or the dependency is non-linkable (source sets and groups pass
// their libraries through to whatever finally links them).
func (r *resolver) propagateLibs() {
	hardDeps := map[*Target][]*Target{}
	var gatherHard func(t *Target) []*Target
	gatherHard = func(t *Target) []*Target {
		if cached, present := hardDeps[t]; present {
			return cached
		}
		hardDeps[t] = nil
		var closure []*Target
		for _, dep := range t.HardDeps() {
			closure = appendUnique(closure, dep.To)
			closure = appendUnique(closure, gatherHard(dep.To)...)
		}
		hardDeps[t] = closure
		return closure
	}

	for _, t := range r.graph.order {
		t.hardDeps = gatherHard(t)
		seen := map[*Target]bool{t: true}
		libs := append([]string{}, t.Own.Libs...)
		libDirs := append([]string{}, t.Own.LibDirs...)
		frameworks := append([]string{}, t.Own.Frameworks...)
		for _, c := range t.resolvedConfigs {
			libs = appendUnique(libs, c.Values.Libs...)
			libDirs = appendUnique(libDirs, c.Values.LibDirs...)
			frameworks = appendUnique(frameworks, c.Values.Frameworks...)
		}
		var walk func(from *Target)
		walk = func(from *Target) {
			for _, dep := range from.HardDeps() {
				d := dep.To
				if seen[d] {
					continue
				}
				seen[d] = true
				libs = appendUnique(libs, d.Own.Libs...)
				libDirs = appendUnique(libDirs, d.Own.LibDirs...)
				frameworks = appendUnique(frameworks, d.Own.Frameworks...)
				if dep.Kind == PublicDep || !d.Type.IsLinkable() {
					walk(d)
				}
			}
		}
		walk(t)
		t.allLibs, t.allLibDirs, t.allFrameworks = libs, libDirs, frameworks
	}
}

// checkVisibility validates every edge T -> D against D's visibility list.
func (r *resolver) checkVisibility() []*Err {
	var errs []*Err
	for _, t := range r.graph.order {
		for _, dep := range t.Deps {
			if !dep.To.CheckVisibility(t.Label) {
				errs = append(errs, MakeErr(t.Loc, "Target %s is not visible from %s", dep.To.Label, t.Label).
					AppendMsg(dep.To.Loc, "Its visibility list is: %s", dep.To.VisibilityString()))
			}
		}
	}
	return errs
}

// checkAssertions tests each target's assert_no_deps patterns against its
// full transitive dep set (all edge kinds), reporting a witness path.
func (r *resolver) checkAssertions() []*Err {
	var errs []*Err
	for _, t := range r.graph.order {
		if len(t.AssertNoDeps) == 0 {
			continue
		}
		seen := map[*Target]bool{}
		var walk func(from *Target, path []*Target) *Err
		walk = func(from *Target, path []*Target) *Err {
			for _, dep := range from.Deps {
				d := dep.To
				if seen[d] {
					continue
				}
				seen[d] = true
				for _, pattern := range t.AssertNoDeps {
					if pattern.Matches(d.Label) {
						labels := make([]string, 0, len(path)+2)
						for _, p := range append(path, from, d) {
							labels = append(labels, p.Label.String())
						}
						return MakeErr(t.Loc, "Target %s has assert_no_deps entry %s which matches its dependency %s", t.Label, pattern, d.Label).
							AppendMsg(d.Loc, "Dependency path:\n  %s", strings.Join(labels, " ->\n  "))
					}
				}
				if err := walk(d, append(path, from)); err != nil {
					return err
				}
			}
			return nil
		}
		if err := walk(t, nil); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// RuntimeDepsOutputs returns the set of runtime-deps files emitted by targets,
// mapped to the targets that write them. Used by the unknown-generated-input
// filter after emission planning.
func (g *Graph) RuntimeDepsOutputs() map[string]*Target {
	g.mu.Lock()
	defer g.mu.Unlock()
	ret := map[string]*Target{}
	for _, t := range g.order {
		if t.WriteRuntimeDeps != "" {
			ret[t.WriteRuntimeDeps] = t
		}
	}
	return ret
}
