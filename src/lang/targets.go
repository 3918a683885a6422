// Target-declaring functions: executable, static_library, action and
// friends. Each runs its block in a target-declaration scope, extracts the
// recognised bindings into a core.Target and commits it to the graph.

package lang

import (
	"github.com/please-build/gen/src/core"
)

func init() {
	for _, name := range []string{
		"group", "executable", "static_library", "shared_library",
		"loadable_module", "source_set", "action", "action_foreach",
		"bundle_data", "copy",
	} {
		typ := core.TargetTypeFromString(name)
		registerBuiltin(name, func(s *Scope, call *FunctionCallNode) (Value, *core.Err) {
			return declareTarget(s, call, typ)
		})
	}
	registerBuiltin("toolchain", builtinToolchain)
	registerBuiltin("tool", builtinTool)
	registerBuiltin("config", builtinConfig)
	registerBuiltin("set_default_toolchain", builtinSetDefaultToolchain)
}

// set_default_toolchain(label) names the toolchain the build runs under by
// default. Only meaningful while evaluating the default toolchain's build
// config; secondary toolchains inherit the original declaration.
func builtinSetDefaultToolchain(s *Scope, call *FunctionCallNode) (Value, *core.Err) {
	if err := noBlockErr(call); err != nil {
		return Value{}, err
	}
	labelStr, err := singleStringArg(s, call)
	if err != nil {
		return Value{}, err
	}
	label, err2 := core.ParseLabel(labelStr, s.Dir(), "")
	if err2 != nil {
		return Value{}, core.MakeErr(call.Args.Contents[0].Range().Begin, "%s", err2).
			WithRange(call.Args.Contents[0].Range())
	}
	settings := s.Settings()
	if settings.Toolchain == "" {
		settings.DefaultToolchain = label.NoToolchain().String()
	}
	return NoneValue(call), nil
}

// currentToolchainName returns the label string bound to current_toolchain.
func currentToolchainName(settings *core.Settings) string {
	if settings.Toolchain != "" {
		return settings.Toolchain
	}
	return settings.DefaultToolchain
}

// toolchainForLabels returns the toolchain component for labels declared
// under these settings; the default toolchain is the empty string so labels
// intern identically however they're written.
func toolchainForLabels(settings *core.Settings) string {
	if settings.Toolchain == settings.DefaultToolchain {
		return ""
	}
	return settings.Toolchain
}

// declareTarget implements one target-declaring function call.
func declareTarget(s *Scope, call *FunctionCallNode, typ core.TargetType) (Value, *core.Err) {
	name, err := singleStringArg(s, call)
	if err != nil {
		return Value{}, err
	}
	if err := requireBlock(call); err != nil {
		return Value{}, err
	}
	ctx := s.Context()
	settings := ctx.Settings
	label := core.InternLabel(s.Dir(), name, toolchainForLabels(settings))

	blockScope := s.NewScope()
	blockScope.SetProgrammatic("target_name", StringValue(name, call))
	blockScope.SetProgrammatic("current_toolchain", StringValue(currentToolchainName(settings), call))
	blockScope.SetProgrammatic("target_gen_dir", StringValue(settings.TargetGenDir(s.Dir()), call))
	blockScope.SetProgrammatic("target_out_dir", StringValue(settings.TargetOutDir(s.Dir()), call))
	if defaults := ctx.Defaults(typ); defaults != nil {
		for _, defName := range defaults.Names() {
			v, _ := defaults.LocalValue(defName, false)
			blockScope.SetProgrammatic(defName, v.Copy())
		}
	}
	if err := call.Block.ExecuteIn(blockScope); err != nil {
		return Value{}, err
	}

	target := core.NewTarget(label, typ, call.Function.Loc)
	e := &targetExtractor{s: blockScope, call: call, dir: s.Dir()}
	e.extractInto(target, typ)
	if e.err != nil {
		return Value{}, e.err
	}
	// Anything left unconsumed in the declaration scope is a typo'd field
	// or a stray variable; either way the author should hear about it.
	if err := blockScope.CheckForUnusedVars(); err != nil {
		return Value{}, err
	}
	if err := validateTarget(target, call); err != nil {
		return Value{}, err
	}
	if err := ctx.Collector.CommitTarget(target); err != nil {
		return Value{}, err
	}
	return NoneValue(call), nil
}

// A targetExtractor pulls recognised bindings out of a target-declaration
// scope. Reads mark the variables used; the first type mismatch sticks.
type targetExtractor struct {
	s    *Scope
	call *FunctionCallNode
	dir  string
	err  *core.Err
}

func (e *targetExtractor) fail(format string, args ...interface{}) {
	if e.err == nil {
		e.err = core.MakeErr(e.call.Function.Loc, format, args...).WithRange(e.call.Function.Range())
	}
}

// value reads one local binding, or returns false if absent.
func (e *targetExtractor) value(name string, want ValueType) (Value, bool) {
	if e.err != nil {
		return Value{}, false
	}
	v, present := e.s.LocalValue(name, true)
	if !present {
		return Value{}, false
	}
	if v.Type != want {
		e.fail("Field %q must be a %s, got a %s", name, want, v.Type)
		return Value{}, false
	}
	return v, true
}

func (e *targetExtractor) str(name string) string {
	if v, present := e.value(name, StringType); present {
		return v.Str
	}
	return ""
}

func (e *targetExtractor) strList(name string) []string {
	v, present := e.value(name, ListType)
	if !present {
		return nil
	}
	strs := make([]string, len(v.List))
	for i, item := range v.List {
		if item.Type != StringType {
			e.fail("Field %q must be a list of strings; element %d is a %s", name, i, item.Type)
			return nil
		}
		strs[i] = item.Str
	}
	return strs
}

// files resolves a list of path strings against the declaring directory.
func (e *targetExtractor) files(name string) []string {
	strs := e.strList(name)
	for i, str := range strs {
		strs[i] = core.SourcePath(str, e.dir)
	}
	return strs
}

func (e *targetExtractor) labels(name string) []*core.Label {
	strs := e.strList(name)
	if strs == nil {
		return nil
	}
	labels := make([]*core.Label, len(strs))
	for i, str := range strs {
		label, err := e.s.ParseLabel(str, e.call)
		if err != nil {
			if e.err == nil {
				e.err = err
			}
			return nil
		}
		labels[i] = label
	}
	return labels
}

func (e *targetExtractor) patterns(name string) []core.LabelPattern {
	v, present := e.value(name, ListType)
	if !present {
		return nil
	}
	patterns := make([]core.LabelPattern, len(v.List))
	for i, item := range v.List {
		if item.Type != StringType {
			e.fail("Field %q must be a list of label patterns; element %d is a %s", name, i, item.Type)
			return nil
		}
		pattern, err := core.ParseLabelPattern(item.Str, e.dir)
		if err != nil {
			e.fail("Invalid label pattern in %q: %s", name, err)
			return nil
		}
		patterns[i] = pattern
	}
	return patterns
}

func (e *targetExtractor) metadata() map[string][]string {
	v, present := e.value("metadata", ScopeType)
	if !present {
		return nil
	}
	md := map[string][]string{}
	for _, name := range v.Scope.Names() {
		item, _ := v.Scope.LocalValue(name, true)
		if item.Type != ListType {
			e.fail("Metadata key %q must be a list, got a %s", name, item.Type)
			return nil
		}
		var strs []string
		for _, elem := range item.List {
			strs = append(strs, elem.ToString(false))
		}
		md[name] = strs
	}
	return md
}

// extractInto maps the declaration scope's recognised bindings onto target fields.
func (e *targetExtractor) extractInto(t *core.Target, typ core.TargetType) {
	t.Sources = e.files("sources")
	t.Inputs = e.files("inputs")
	t.Public = e.files("public")
	t.Configs = e.labels("configs")
	t.PublicConfigs = e.labels("public_configs")
	t.AllDependentConfigs = e.labels("all_dependent_configs")
	for _, label := range e.labels("public_deps") {
		t.AddDep(label, core.PublicDep)
	}
	for _, label := range e.labels("deps") {
		t.AddDep(label, core.PrivateDep)
	}
	for _, label := range e.labels("data_deps") {
		t.AddDep(label, core.DataDep)
	}
	if _, present := e.s.LocalValue("visibility", false); present {
		t.Visibility = e.patterns("visibility")
		if t.Visibility == nil {
			t.Visibility = []core.LabelPattern{}
		}
	}
	t.AssertNoDeps = e.patterns("assert_no_deps")
	t.WriteRuntimeDeps = e.str("write_runtime_deps")
	t.Metadata = e.metadata()

	t.Own.Cflags = e.strList("cflags")
	t.Own.CflagsC = e.strList("cflags_c")
	t.Own.CflagsCC = e.strList("cflags_cc")
	t.Own.Defines = e.strList("defines")
	t.Own.IncludeDirs = e.files("include_dirs")
	t.Own.Ldflags = e.strList("ldflags")
	t.Own.Libs = e.strList("libs")
	t.Own.LibDirs = e.files("lib_dirs")
	t.Own.Frameworks = e.strList("frameworks")

	switch typ {
	case core.Action, core.ActionForeach:
		if script := e.str("script"); script != "" {
			t.Script = core.SourcePath(script, e.dir)
		}
		t.Args = e.strList("args")
		t.Outputs = e.files("outputs")
		t.Depfile = e.str("depfile")
		t.Pool = e.str("pool")
		t.ResponseFileContents = e.strList("response_file_contents")
	case core.Copy, core.BundleData:
		t.Outputs = e.files("outputs")
	}
}

// validateTarget enforces per-type required fields.
func validateTarget(t *core.Target, call *FunctionCallNode) *core.Err {
	requiredErr := func(field string) *core.Err {
		return core.MakeErr(call.Function.Loc, "%s target %s requires a %q field", t.Type, t.Label, field).
			WithRange(call.Function.Range())
	}
	switch t.Type {
	case core.Action, core.ActionForeach:
		if t.Script == "" {
			return requiredErr("script")
		}
		if len(t.Outputs) == 0 {
			return requiredErr("outputs")
		}
		if t.Type == core.ActionForeach && len(t.Sources) == 0 {
			return requiredErr("sources")
		}
	case core.Copy, core.BundleData:
		if len(t.Sources) == 0 {
			return requiredErr("sources")
		}
		if len(t.Outputs) == 0 {
			return requiredErr("outputs")
		}
	case core.Group:
		if len(t.Sources) != 0 {
			return core.MakeErr(call.Function.Loc, "group target %s cannot have sources; use a source_set", t.Label).
				WithRange(call.Function.Range())
		}
	}
	return nil
}

// config("name") { ... } declares a named bundle of flags.
func builtinConfig(s *Scope, call *FunctionCallNode) (Value, *core.Err) {
	name, err := singleStringArg(s, call)
	if err != nil {
		return Value{}, err
	}
	if err := requireBlock(call); err != nil {
		return Value{}, err
	}
	blockScope := s.NewScope()
	if err := call.Block.ExecuteIn(blockScope); err != nil {
		return Value{}, err
	}
	settings := s.Settings()
	config := &core.Config{
		Label: core.InternLabel(s.Dir(), name, toolchainForLabels(settings)),
		Loc:   call.Function.Loc,
	}
	e := &targetExtractor{s: blockScope, call: call, dir: s.Dir()}
	config.Values.Cflags = e.strList("cflags")
	config.Values.CflagsC = e.strList("cflags_c")
	config.Values.CflagsCC = e.strList("cflags_cc")
	config.Values.Defines = e.strList("defines")
	config.Values.IncludeDirs = e.files("include_dirs")
	config.Values.Ldflags = e.strList("ldflags")
	config.Values.Libs = e.strList("libs")
	config.Values.LibDirs = e.files("lib_dirs")
	config.Values.Frameworks = e.strList("frameworks")
	config.Configs = e.labels("configs")
	if e.err != nil {
		return Value{}, e.err
	}
	if err := blockScope.CheckForUnusedVars(); err != nil {
		return Value{}, err
	}
	return NoneValue(call), s.Context().Collector.CommitConfig(config)
}

// toolchain("name") { ... } declares a toolchain target. tool() calls inside
// the block record their command lines in the target's metadata; the ninja
// writer emits no rules from them.
func builtinToolchain(s *Scope, call *FunctionCallNode) (Value, *core.Err) {
	name, err := singleStringArg(s, call)
	if err != nil {
		return Value{}, err
	}
	if err := requireBlock(call); err != nil {
		return Value{}, err
	}
	ctx := s.Context()
	settings := ctx.Settings
	target := core.NewTarget(core.InternLabel(s.Dir(), name, toolchainForLabels(settings)), core.Toolchain, call.Function.Loc)
	target.Metadata = map[string][]string{}

	prev := ctx.currentToolchain
	ctx.currentToolchain = target
	defer func() { ctx.currentToolchain = prev }()

	blockScope := s.NewScope()
	blockScope.SetProgrammatic("target_name", StringValue(name, call))
	if err := call.Block.ExecuteIn(blockScope); err != nil {
		return Value{}, err
	}
	e := &targetExtractor{s: blockScope, call: call, dir: s.Dir()}
	for _, label := range e.labels("deps") {
		target.AddDep(label, core.PrivateDep)
	}
	if v, present := blockScope.LocalValue("toolchain_args", false); present && v.Type == ScopeType {
		blockScope.MarkUsed("toolchain_args")
		for _, argName := range v.Scope.Names() {
			item, _ := v.Scope.LocalValue(argName, true)
			target.Metadata["toolchain_arg_"+argName] = []string{item.ToString(true)}
		}
	}
	if e.err != nil {
		return Value{}, e.err
	}
	if err := blockScope.CheckForUnusedVars(); err != nil {
		return Value{}, err
	}
	return NoneValue(call), ctx.Collector.CommitTarget(target)
}

// tool("name") { command = "..." } declares one tool of the enclosing toolchain.
func builtinTool(s *Scope, call *FunctionCallNode) (Value, *core.Err) {
	ctx := s.Context()
	if ctx.currentToolchain == nil {
		return Value{}, core.MakeErr(call.Function.Loc, "tool() may only appear inside a toolchain() block").
			WithRange(call.Function.Range())
	}
	name, err := singleStringArg(s, call)
	if err != nil {
		return Value{}, err
	}
	if err := requireBlock(call); err != nil {
		return Value{}, err
	}
	blockScope := s.NewScope()
	if err := call.Block.ExecuteIn(blockScope); err != nil {
		return Value{}, err
	}
	e := &targetExtractor{s: blockScope, call: call, dir: s.Dir()}
	command := e.str("command")
	description := e.str("description")
	outputs := e.strList("outputs")
	if e.err != nil {
		return Value{}, e.err
	}
	if command == "" {
		return Value{}, core.MakeErr(call.Function.Loc, "tool(%q) requires a %q field", name, "command").
			WithRange(call.Function.Range())
	}
	if err := blockScope.CheckForUnusedVars(); err != nil {
		return Value{}, err
	}
	md := ctx.currentToolchain.Metadata
	md["tool_"+name+"_command"] = []string{command}
	if description != "" {
		md["tool_"+name+"_description"] = []string{description}
	}
	if len(outputs) > 0 {
		md["tool_"+name+"_outputs"] = outputs
	}
	return NoneValue(call), nil
}
