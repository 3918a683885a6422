package lang

import (
	"io"
	"os"

	"github.com/please-build/gen/src/core"

	"github.com/please-build/gen/src/cli/logging"
)

var log = logging.Log

// A Collector receives the items committed while evaluating build files.
// It's implemented by the loader, which owns the graph and the bookkeeping
// around generator dependencies.
type Collector interface {
	// CommitTarget adds a fully-built target to the graph.
	CommitTarget(t *core.Target) *core.Err
	// CommitConfig adds a config to the graph.
	CommitConfig(c *core.Config) *core.Err
	// LookupTarget returns an already-committed target, or nil.
	LookupTarget(label *core.Label) *core.Target
	// AddGenDep records a file whose content influenced the output.
	AddGenDep(path string)
}

// An Importer resolves import() calls. It's implemented by the loader, which
// caches each file's evaluated scope so re-imports are free.
type Importer interface {
	// Import loads (or reuses) the given source file and returns the scope
	// its top level produced.
	Import(path string, loc core.Location) (*Scope, *core.Err)
}

// A Context carries the package-independent state for one toolchain's
// evaluation: the settings, build arguments, and the hooks back into the
// loader. It is threaded through evaluation via the root scope.
type Context struct {
	Settings  *core.Settings
	Args      *Args
	Collector Collector
	Importer  Importer
	// Where print() writes; stdout unless a test redirects it.
	Stdout io.Writer

	// Per-target-type default scopes registered by set_defaults.
	defaults map[core.TargetType]*Scope
	// The toolchain target currently being declared, while inside a
	// toolchain() block; tool() writes into it.
	currentToolchain *core.Target
}

// NewContext creates a context over the given collaborators.
func NewContext(settings *core.Settings, args *Args, collector Collector, importer Importer) *Context {
	return &Context{
		Settings:  settings,
		Args:      args,
		Collector: collector,
		Importer:  importer,
		Stdout:    os.Stdout,
		defaults:  map[core.TargetType]*Scope{},
	}
}

// SetDefaults registers the default scope copied into each invocation of the
// given target type. Later registrations replace earlier ones.
func (c *Context) SetDefaults(typ core.TargetType, defaults *Scope) {
	c.defaults[typ] = defaults
}

// Defaults returns the registered default scope for a target type, or nil.
func (c *Context) Defaults(typ core.TargetType) *Scope {
	return c.defaults[typ]
}
