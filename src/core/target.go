package core

import (
	"fmt"
	"strings"

	"golang.org/x/exp/slices"
)

// A TargetType identifies which kind of buildable unit a target is.
// The set is closed; target-declaring functions map one-to-one onto it.
type TargetType int

const (
	UnknownTarget TargetType = iota
	Group
	Executable
	StaticLibrary
	SharedLibrary
	LoadableModule
	SourceSet
	Action
	ActionForeach
	BundleData
	Copy
	Toolchain
)

var targetTypeNames = map[TargetType]string{
	Group:          "group",
	Executable:     "executable",
	StaticLibrary:  "static_library",
	SharedLibrary:  "shared_library",
	LoadableModule: "loadable_module",
	SourceSet:      "source_set",
	Action:         "action",
	ActionForeach:  "action_foreach",
	BundleData:     "bundle_data",
	Copy:           "copy",
	Toolchain:      "toolchain",
}

// String implements the fmt.Stringer interface.
func (t TargetType) String() string {
	if s, present := targetTypeNames[t]; present {
		return s
	}
	return fmt.Sprintf("unknown(%d)", int(t))
}

// TargetTypeFromString returns the type named by a target-declaring function.
func TargetTypeFromString(s string) TargetType {
	for t, name := range targetTypeNames {
		if name == s {
			return t
		}
	}
	return UnknownTarget
}

// IsLinkable returns true for types that produce a linked binary.
func (t TargetType) IsLinkable() bool {
	switch t {
	case Executable, SharedLibrary, StaticLibrary, LoadableModule:
		return true
	}
	return false
}

// CanHaveSources returns true for types where a sources list is meaningful.
func (t TargetType) CanHaveSources() bool {
	switch t {
	case Group, Toolchain:
		return false
	}
	return true
}

// A DepKind classifies an edge in the target graph.
type DepKind int

const (
	// PrivateDep is a dependency listed in deps.
	PrivateDep DepKind = iota
	// PublicDep is a dependency listed in public_deps; configs flow through it.
	PublicDep
	// DataDep is a runtime dependency listed in data_deps.
	DataDep
)

// String implements the fmt.Stringer interface.
func (k DepKind) String() string {
	switch k {
	case PublicDep:
		return "public_deps"
	case DataDep:
		return "data_deps"
	default:
		return "deps"
	}
}

// A Dep is one dependency edge of a target. The resolver fills in To once the
// depended-on target is known to exist.
type Dep struct {
	Label *Label
	Kind  DepKind
	To    *Target
}

// A Target is one buildable unit: the output of a single target-declaring
// function call, after its scope's bindings have been extracted into fields.
// Targets are immutable once committed to the graph except for the
// resolver-computed fields at the bottom, which are filled in between commit
// and emission.
type Target struct {
	Label *Label
	Type  TargetType
	// Where the declaring function call was, for error reporting.
	Loc Location

	Sources []string
	Inputs  []string
	Outputs []string
	Public  []string

	// Config references in declaration order.
	Configs             []*Label
	PublicConfigs       []*Label
	AllDependentConfigs []*Label

	// Dependency edges in declaration order: public_deps first, then deps,
	// then data_deps. This ordering is what propagation tie-breaks refer to.
	Deps []Dep

	// Action properties.
	Script               string
	Args                 []string
	Depfile              string
	Pool                 string
	ResponseFileContents []string

	// The target's own flag contributions, same shape as a config's.
	Own ConfigValues

	// Visibility patterns; nil means visible to everyone.
	Visibility []LabelPattern
	// Patterns which must not appear anywhere in the transitive dep set.
	AssertNoDeps []LabelPattern

	// Path the target writes its runtime deps file to, or empty.
	WriteRuntimeDeps string

	Metadata map[string][]string

	// Computed during resolution:

	// All configs that apply to this target, ordered, duplicates removed
	// keeping the earliest occurrence.
	resolvedConfigs []*Config
	// Transitive libs / lib_dirs / frameworks gathered over the public-dep closure.
	allLibs, allLibDirs, allFrameworks []string
	// Recursive closure of hard deps (public + private, not data).
	hardDeps []*Target
	resolved bool
}

// NewTarget constructs an uncommitted target of the given type.
func NewTarget(label *Label, typ TargetType, loc Location) *Target {
	return &Target{Label: label, Type: typ, Loc: loc}
}

// AddDep appends a dependency edge in declaration order.
func (t *Target) AddDep(label *Label, kind DepKind) {
	t.Deps = append(t.Deps, Dep{Label: label, Kind: kind})
}

// HardDeps returns the edges that affect the build graph proper (not data deps).
func (t *Target) HardDeps() []Dep {
	deps := make([]Dep, 0, len(t.Deps))
	for _, d := range t.Deps {
		if d.Kind != DataDep {
			deps = append(deps, d)
		}
	}
	return deps
}

// ResolvedConfigs returns the ordered set of configs applying to this target.
// Only valid after resolution.
func (t *Target) ResolvedConfigs() []*Config {
	return t.resolvedConfigs
}

// AllLibs returns the transitive libs for linkable targets. Only valid after resolution.
func (t *Target) AllLibs() []string { return t.allLibs }

// AllLibDirs returns the transitive lib_dirs. Only valid after resolution.
func (t *Target) AllLibDirs() []string { return t.allLibDirs }

// AllFrameworks returns the transitive frameworks. Only valid after resolution.
func (t *Target) AllFrameworks() []string { return t.allFrameworks }

// HardDepClosure returns the recursive closure of non-data deps.
// Only valid after resolution.
func (t *Target) HardDepClosure() []*Target { return t.hardDeps }

// CheckVisibility returns true if this target's visibility list admits the
// given label. An absent list admits everything.
func (t *Target) CheckVisibility(from *Label) bool {
	if t.Visibility == nil {
		return true
	}
	for _, pattern := range t.Visibility {
		if pattern.Matches(from) {
			return true
		}
	}
	return false
}

// VisibilityString describes the visibility list for error messages.
func (t *Target) VisibilityString() string {
	if t.Visibility == nil {
		return "*"
	}
	if len(t.Visibility) == 0 {
		return "[] (no one)"
	}
	strs := make([]string, len(t.Visibility))
	for i, p := range t.Visibility {
		strs[i] = p.String()
	}
	return "[" + strings.Join(strs, ", ") + "]"
}

// appendUnique appends items not already present, preserving first-occurrence order.
func appendUnique[T comparable](existing []T, items ...T) []T {
	for _, item := range items {
		if !slices.Contains(existing, item) {
			existing = append(existing, item)
		}
	}
	return existing
}
