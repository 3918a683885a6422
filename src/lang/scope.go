package lang

import (
	"sort"
	"strings"

	"github.com/please-build/gen/src/core"
)

// A Scope is a lexical environment: a mapping of names to values with a
// pointer to the enclosing scope. Scopes also track which declared variables
// have been read, enforcing the rule that every variable a user writes must
// be consumed before its scope ends.
type Scope struct {
	parent *Scope
	// The evaluation context; set on root scopes, everything else inherits.
	ctx *Context
	// The source directory build-file-relative names resolve against;
	// empty means inherit from the parent.
	dir string
	values map[string]*scopeEntry
	// Declaration order of values, for deterministic error reporting.
	order     []string
	templates map[string]*Template

	// True for the root scope of a toolchain (the build config file's scope).
	isRootScope bool
	// True while evaluating a template definition body; unused-variable
	// checking is deferred to the instantiation site.
	templateScope bool
	// True for the transient scopes of if/else branches and foreach bodies.
	// Writes made in them land in the nearest enclosing real scope so their
	// effects survive the branch.
	branchScope bool
	// Files this scope has imported, to make re-imports a no-op.
	importedFiles map[string]bool
}

type scopeEntry struct {
	value Value
	used  bool
	// The node that declared this variable. Programmatic bindings have no
	// declaration and are exempt from usage checking.
	decl Node
	// True if the binding arrived via import(); imported names are whitelisted
	// from usage checking in the importing scope.
	imported bool
}

// NewRootScope creates the root scope for one toolchain's evaluation.
func NewRootScope(ctx *Context, dir string) *Scope {
	return &Scope{
		ctx:         ctx,
		dir:         dir,
		values:      map[string]*scopeEntry{},
		templates:   map[string]*Template{},
		isRootScope: true,
	}
}

// NewScope creates a child scope of this one.
func (s *Scope) NewScope() *Scope {
	return &Scope{
		parent:    s,
		values:    map[string]*scopeEntry{},
		templates: map[string]*Template{},
	}
}

// NewFileScope creates a child scope rooted at the given source directory,
// used for evaluating one build file.
func (s *Scope) NewFileScope(dir string) *Scope {
	s2 := s.NewScope()
	s2.dir = dir
	return s2
}

// NewBranchScope creates the transient scope an if/else branch or foreach
// body runs in.
func (s *Scope) NewBranchScope() *Scope {
	s2 := s.NewScope()
	s2.branchScope = true
	return s2
}

// assignTarget returns the scope new declarations should land in: the
// nearest enclosing non-branch scope.
func (s *Scope) assignTarget() *Scope {
	for s.branchScope {
		s = s.parent
	}
	return s
}

// Context returns the evaluation context, walking up to the root scope.
func (s *Scope) Context() *Context {
	for ; s != nil; s = s.parent {
		if s.ctx != nil {
			return s.ctx
		}
	}
	return nil
}

// Dir returns the source directory of the build file this scope evaluates.
func (s *Scope) Dir() string {
	for ; s != nil; s = s.parent {
		if s.dir != "" {
			return s.dir
		}
	}
	return ""
}

// Settings returns the settings controlling this scope.
func (s *Scope) Settings() *core.Settings {
	return s.Context().Settings
}

// entry finds the entry for a name, walking the parent chain.
func (s *Scope) entry(name string) (*scopeEntry, *Scope) {
	for ; s != nil; s = s.parent {
		if e, present := s.values[name]; present {
			return e, s
		}
	}
	return nil, nil
}

// Get looks up a name, walking up the enclosing chain. When markUsed is true
// (any read a user can observe) the variable counts as consumed.
func (s *Scope) Get(name string, markUsed bool) (Value, bool) {
	e, _ := s.entry(name)
	if e == nil {
		return Value{}, false
	}
	if markUsed {
		e.used = true
	}
	return e.value, true
}

// GetMutable returns a pointer to the stored value for a name for in-place
// modification by indexed assignment. Writing is not a use, so the usage
// flag is left alone.
func (s *Scope) GetMutable(name string) *Value {
	e, _ := s.entry(name)
	if e == nil {
		return nil
	}
	return &e.value
}

// IsDefined tests presence of a name without triggering use.
func (s *Scope) IsDefined(name string) bool {
	e, _ := s.entry(name)
	return e != nil
}

// DeclLoc returns the location a name was declared at, if it has one.
func (s *Scope) DeclLoc(name string) (core.Location, bool) {
	if e, _ := s.entry(name); e != nil && e.decl != nil {
		return e.decl.Range().Begin, true
	}
	return core.Location{}, false
}

// Set binds a name in this scope from a user assignment. Re-declaring a name
// that an enclosing scope already binds is an error unless the existing value
// is none; this stops build files silently shadowing what they meant to read.
// The incoming value is deep-copied to preserve value semantics.
func (s *Scope) Set(name string, v Value, decl Node) *core.Err {
	if e, owner := s.entry(name); e != nil && owner != s && !e.value.IsNone() {
		err := core.MakeErr(decl.Range().Begin, "Assignment to %s shadows a variable from an enclosing scope", name).
			WithRange(decl.Range())
		if e.decl != nil {
			err.AppendMsg(e.decl.Range().Begin, "Previously declared here")
		}
		return err
	}
	s.set(name, v.Copy(), decl, false)
	return nil
}

// SetOverwrite binds a name unconditionally, bypassing the shadowing check.
func (s *Scope) SetOverwrite(name string, v Value, decl Node) {
	s.set(name, v.Copy(), decl, false)
}

// SetProgrammatic binds a name that the generator itself provides
// (target_name, invoker, build args and so on). Such bindings carry no
// declaration and are never reported as unused.
func (s *Scope) SetProgrammatic(name string, v Value) {
	s.set(name, v, nil, false)
}

// SetImported binds a name spliced in by import(); it's exempt from the
// importing scope's usage check but keeps its original declaration site.
func (s *Scope) SetImported(name string, v Value, decl Node) {
	s.set(name, v, decl, true)
}

func (s *Scope) set(name string, v Value, decl Node, imported bool) {
	if e, present := s.values[name]; present {
		e.value = v
		if decl != nil {
			e.decl = decl
		}
		return
	}
	s.values[name] = &scopeEntry{value: v, decl: decl, imported: imported, used: decl == nil}
	s.order = append(s.order, name)
}

// SetToEnclosing writes through to the nearest scope that already defines the
// name; this is the discipline += / -= and if-branch writes follow so their
// effects escape the block that made them.
func (s *Scope) SetToEnclosing(name string, v Value) bool {
	e, _ := s.entry(name)
	if e == nil {
		return false
	}
	e.value = v
	return true
}

// MarkUsed marks a single variable as consumed. Returns false if undefined.
func (s *Scope) MarkUsed(name string) bool {
	e, _ := s.entry(name)
	if e == nil {
		return false
	}
	e.used = true
	return true
}

// MarkAllUsed exempts everything declared directly in this scope.
func (s *Scope) MarkAllUsed() {
	for _, e := range s.values {
		e.used = true
	}
}

// MarkTemplateScope defers unused-variable checking for this scope to the
// template's instantiation site.
func (s *Scope) MarkTemplateScope() {
	s.templateScope = true
}

// CheckForUnusedVars reports the first user-declared variable in this scope
// that was never read. Declaration order makes the report deterministic.
func (s *Scope) CheckForUnusedVars() *core.Err {
	if s.templateScope {
		return nil
	}
	for _, name := range s.order {
		e := s.values[name]
		if !e.used && !e.imported && e.decl != nil {
			return core.MakeErr(e.decl.Range().Begin, "Assignment had no effect: variable %q is never used", name).
				WithRange(e.decl.Range()).
				AppendMsg(core.Location{}, "Consume it, or remove the assignment")
		}
	}
	return nil
}

// MakeClosure flattens this scope's visible chain into a single scope for a
// template to capture. Entries are shared with the originals rather than
// copied, so a template body reading a captured variable consumes the
// original declaration.
func (s *Scope) MakeClosure() *Scope {
	closure := &Scope{
		ctx:       s.Context(),
		dir:       s.Dir(),
		values:    map[string]*scopeEntry{},
		templates: map[string]*Template{},
	}
	// Walk from the outermost scope inwards so inner bindings win.
	var scopes []*Scope
	for sc := s; sc != nil; sc = sc.parent {
		scopes = append(scopes, sc)
	}
	for i := len(scopes) - 1; i >= 0; i-- {
		for name, e := range scopes[i].values {
			if _, present := closure.values[name]; !present {
				closure.order = append(closure.order, name)
			}
			closure.values[name] = e
		}
		for name, t := range scopes[i].templates {
			closure.templates[name] = t
		}
	}
	sort.Strings(closure.order)
	return closure
}

// Copy deep-copies the values of this scope; used when a scope-typed value is
// assigned somewhere else, preserving value semantics.
func (s *Scope) Copy() *Scope {
	s2 := &Scope{
		parent:    s.parent,
		ctx:       s.ctx,
		dir:       s.dir,
		values:    make(map[string]*scopeEntry, len(s.values)),
		templates: make(map[string]*Template, len(s.templates)),
		order:     append([]string{}, s.order...),
	}
	for name, e := range s.values {
		s2.values[name] = &scopeEntry{value: e.value.Copy(), used: e.used, decl: e.decl, imported: e.imported}
	}
	for name, t := range s.templates {
		s2.templates[name] = t
	}
	return s2
}

// AddTemplate registers a template defined in this scope.
func (s *Scope) AddTemplate(t *Template) *core.Err {
	if existing := s.GetTemplate(t.Name); existing != nil {
		return core.MakeErr(t.Loc, "Duplicate template definition %q", t.Name).
			AppendMsg(existing.Loc, "Previously defined here")
	}
	s.templates[t.Name] = t
	return nil
}

// GetTemplate looks up a template, walking the enclosing chain.
func (s *Scope) GetTemplate(name string) *Template {
	for ; s != nil; s = s.parent {
		if t, present := s.templates[name]; present {
			return t
		}
	}
	return nil
}

// Names returns the names declared directly in this scope, in declaration order.
func (s *Scope) Names() []string {
	return s.order[:]
}

// LocalValue returns the value bound directly in this scope (not parents),
// optionally consuming it.
func (s *Scope) LocalValue(name string, markUsed bool) (Value, bool) {
	e, present := s.values[name]
	if !present {
		return Value{}, false
	}
	if markUsed {
		e.used = true
	}
	return e.value, true
}

// visibleNames collects every name reachable from this scope, for suggestions.
func (s *Scope) visibleNames() []string {
	seen := map[string]bool{}
	var names []string
	for sc := s; sc != nil; sc = sc.parent {
		for name := range sc.values {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
		for name := range sc.templates {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	return names
}

// hasImported returns true if this scope (or an enclosing one) already
// imported the given file.
func (s *Scope) hasImported(path string) bool {
	for sc := s; sc != nil; sc = sc.parent {
		if sc.importedFiles[path] {
			return true
		}
	}
	return false
}

func (s *Scope) markImported(path string) {
	if s.importedFiles == nil {
		s.importedFiles = map[string]bool{}
	}
	s.importedFiles[path] = true
}

// ParseLabel parses a label string in the context of this scope: relative
// labels resolve against the current directory and the current toolchain.
// Explicitly naming the default toolchain is normalised away so such labels
// intern identically to their unqualified form.
func (s *Scope) ParseLabel(str string, origin Node) (*core.Label, *core.Err) {
	settings := s.Settings()
	label, err := core.ParseLabel(str, s.Dir(), settings.Toolchain)
	if err != nil {
		return nil, core.MakeErr(origin.Range().Begin, "%s", err).WithRange(origin.Range())
	}
	if label.Toolchain != "" && label.Toolchain == settings.DefaultToolchain {
		label = label.NoToolchain()
	}
	return label, nil
}

// visibleTemplateNames collects every template name reachable from this scope.
func (s *Scope) visibleTemplateNames() []string {
	seen := map[string]bool{}
	var names []string
	for sc := s; sc != nil; sc = sc.parent {
		for name := range sc.templates {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	return names
}

// describe renders the scope's bindings for debug output.
func (s *Scope) describe() string {
	names := append([]string{}, s.order...)
	sort.Strings(names)
	var b strings.Builder
	b.WriteString("{\n")
	for _, name := range names {
		b.WriteString("  ")
		b.WriteString(name)
		b.WriteString(" = ")
		b.WriteString(s.values[name].value.ToString(true))
		b.WriteString("\n")
	}
	b.WriteString("}")
	return b.String()
}
