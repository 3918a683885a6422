// Representation of the target graph.
// Targets are committed from the main evaluation thread as build files finish,
// then resolved as a whole once the loader's work frontier empties.

package core

import (
	"sync"
)

// A Graph holds every committed target and config, keyed by interned label.
type Graph struct {
	// Targets in commit order; resolution iterates this so results are deterministic.
	order []*Target
	// Map of all currently known targets by their label.
	targets map[*Label]*Target
	// Map of all currently known configs by their label.
	configs map[*Label]*Config
	// Used to arbitrate access to the maps. Commits happen on the main thread
	// but queries can come from anywhere (e.g. log output).
	mu sync.Mutex
}

// NewGraph constructs an empty graph.
func NewGraph() *Graph {
	return &Graph{
		targets: map[*Label]*Target{},
		configs: map[*Label]*Config{},
	}
}

// AddTarget commits a new target to the graph. The target becomes immutable
// from the caller's point of view; only the resolver writes to it afterwards.
// Duplicate labels are an error citing both declaration sites.
func (g *Graph) AddTarget(target *Target) *Err {
	g.mu.Lock()
	defer g.mu.Unlock()
	if existing, present := g.targets[target.Label]; present {
		return MakeErr(target.Loc, "Duplicate target %s", target.Label).
			AppendMsg(existing.Loc, "Previously defined here")
	}
	g.targets[target.Label] = target
	g.order = append(g.order, target)
	return nil
}

// AddConfig commits a new config to the graph.
func (g *Graph) AddConfig(config *Config) *Err {
	g.mu.Lock()
	defer g.mu.Unlock()
	if existing, present := g.configs[config.Label]; present {
		return MakeErr(config.Loc, "Duplicate config %s", config.Label).
			AppendMsg(existing.Loc, "Previously defined here")
	}
	g.configs[config.Label] = config
	return nil
}

// Target retrieves a target from the graph by label, or nil if it doesn't exist.
func (g *Graph) Target(label *Label) *Target {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.targets[label]
}

// Config retrieves a config from the graph by label, or nil if it doesn't exist.
func (g *Graph) Config(label *Label) *Config {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.configs[label]
}

// Len returns the number of targets in the graph.
func (g *Graph) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.targets)
}

// AllTargets returns all targets in commit order.
func (g *Graph) AllTargets() []*Target {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.order[:]
}

// TargetNamesInDir returns the names of all targets declared in the given
// directory; used for misspelling suggestions on missing deps.
func (g *Graph) TargetNamesInDir(dir string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	names := []string{}
	for _, t := range g.order {
		if t.Label.Dir == dir {
			names = append(names, t.Label.Name)
		}
	}
	return names
}
