// Builtin functions of the build language. Target-declaring functions live
// in targets.go; everything else is here.

package lang

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/shlex"

	"github.com/please-build/gen/src/core"
)

// A builtinFunc implements one builtin. It receives the unevaluated call so
// builtins like foreach and defined can treat arguments as syntax.
type builtinFunc func(s *Scope, call *FunctionCallNode) (Value, *core.Err)

var builtins = map[string]builtinFunc{}

func registerBuiltin(name string, fn builtinFunc) {
	builtins[name] = fn
}

func init() {
	registerBuiltin("assert", builtinAssert)
	registerBuiltin("declare_args", builtinDeclareArgs)
	registerBuiltin("defined", builtinDefined)
	registerBuiltin("exec_script", builtinExecScript)
	registerBuiltin("filter_exclude", builtinFilterExclude)
	registerBuiltin("foreach", builtinForeach)
	registerBuiltin("getenv", builtinGetenv)
	registerBuiltin("get_path_info", builtinGetPathInfo)
	registerBuiltin("get_target_outputs", builtinGetTargetOutputs)
	registerBuiltin("import", builtinImport)
	registerBuiltin("not_needed", builtinNotNeeded)
	registerBuiltin("print", builtinPrint)
	registerBuiltin("read_file", builtinReadFile)
	registerBuiltin("rebase_path", builtinRebasePath)
	registerBuiltin("set_defaults", builtinSetDefaults)
	registerBuiltin("string_join", builtinStringJoin)
	registerBuiltin("string_replace", builtinStringReplace)
	registerBuiltin("string_split", builtinStringSplit)
	registerBuiltin("template", builtinTemplate)
	registerBuiltin("write_file", builtinWriteFile)
}

// evalArgs evaluates every argument of a call.
func evalArgs(s *Scope, call *FunctionCallNode) ([]Value, *core.Err) {
	args := make([]Value, len(call.Args.Contents))
	for i, arg := range call.Args.Contents {
		v, err := arg.Evaluate(s)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}

func argCountErr(call *FunctionCallNode, expected string, got int) *core.Err {
	return core.MakeErr(call.Function.Loc, "%s() takes %s arguments, got %d", call.Function.Value, expected, got).
		WithRange(call.Args.Range())
}

func argTypeErr(call *FunctionCallNode, arg Node, expected ValueType, actual ValueType) *core.Err {
	return core.MakeErr(arg.Range().Begin, "Argument to %s() must be a %s, got a %s", call.Function.Value, expected, actual).
		WithRange(arg.Range())
}

func noBlockErr(call *FunctionCallNode) *core.Err {
	if call.Block == nil {
		return nil
	}
	return core.MakeErr(call.Block.Begin.Loc, "%s() does not take a { } block", call.Function.Value)
}

func requireBlock(call *FunctionCallNode) *core.Err {
	if call.Block != nil {
		return nil
	}
	return core.MakeErr(call.Function.Loc, "%s() requires a { } block", call.Function.Value).
		WithRange(call.Function.Range())
}

func stringArg(call *FunctionCallNode, args []Value, i int) (string, *core.Err) {
	if args[i].Type != StringType {
		return "", argTypeErr(call, call.Args.Contents[i], StringType, args[i].Type)
	}
	return args[i].Str, nil
}

func listArg(call *FunctionCallNode, args []Value, i int) ([]Value, *core.Err) {
	if args[i].Type != ListType {
		return nil, argTypeErr(call, call.Args.Contents[i], ListType, args[i].Type)
	}
	return args[i].List, nil
}

// stringList converts a list value into its strings, failing on anything else.
func stringList(call *FunctionCallNode, args []Value, i int) ([]string, *core.Err) {
	list, err := listArg(call, args, i)
	if err != nil {
		return nil, err
	}
	strs := make([]string, len(list))
	for j, item := range list {
		if item.Type != StringType {
			return nil, core.MakeErr(call.Args.Contents[i].Range().Begin, "Argument to %s() must be a list of strings; element %d is a %s", call.Function.Value, j, item.Type)
		}
		strs[j] = item.Str
	}
	return strs, nil
}

// assert(condition, message?) stops evaluation when the condition is false.
func builtinAssert(s *Scope, call *FunctionCallNode) (Value, *core.Err) {
	if err := noBlockErr(call); err != nil {
		return Value{}, err
	}
	if len(call.Args.Contents) < 1 || len(call.Args.Contents) > 2 {
		return Value{}, argCountErr(call, "one or two", len(call.Args.Contents))
	}
	cond, err := call.Args.Contents[0].Evaluate(s)
	if err != nil {
		return Value{}, err
	}
	if cond.Type != BoolType {
		return Value{}, argTypeErr(call, call.Args.Contents[0], BoolType, cond.Type)
	}
	if cond.Bool {
		return NoneValue(call), nil
	}
	msg := "Assertion failed"
	if len(call.Args.Contents) == 2 {
		v, err := call.Args.Contents[1].Evaluate(s)
		if err != nil {
			return Value{}, err
		}
		msg = "Assertion failed: " + v.ToString(false)
	}
	return Value{}, core.MakeErr(call.Function.Loc, "%s", msg).WithRange(call.Range())
}

// template(name) { ... } registers a closure over the current scope.
func builtinTemplate(s *Scope, call *FunctionCallNode) (Value, *core.Err) {
	if err := requireBlock(call); err != nil {
		return Value{}, err
	}
	name, err := singleStringArg(s, call)
	if err != nil {
		return Value{}, err
	}
	if _, present := builtins[name]; present {
		return Value{}, core.MakeErr(call.Function.Loc, "Template name %q collides with a builtin function", name).
			WithRange(call.Args.Range())
	}
	return NoneValue(call), s.AddTemplate(&Template{
		Name:    name,
		Def:     call,
		Closure: s.MakeClosure(),
		Loc:     call.Function.Loc,
	})
}

// import(path) splices the top-level bindings and templates of another file
// into the calling scope. Each file is loaded once per toolchain; re-import
// is a no-op.
func builtinImport(s *Scope, call *FunctionCallNode) (Value, *core.Err) {
	if err := noBlockErr(call); err != nil {
		return Value{}, err
	}
	p, err := singleStringArg(s, call)
	if err != nil {
		return Value{}, err
	}
	sourcePath := core.SourcePath(p, s.Dir())
	if s.hasImported(sourcePath) {
		return NoneValue(call), nil
	}
	imported, err := s.Context().Importer.Import(sourcePath, call.Function.Loc)
	if err != nil {
		return Value{}, err
	}
	s.markImported(sourcePath)
	for _, name := range imported.Names() {
		v, _ := imported.LocalValue(name, false)
		if s.IsDefined(name) {
			existing, _ := s.Get(name, false)
			if existing.Equals(v) {
				continue
			}
			err := core.MakeErr(call.Function.Loc, "Import of %q redefines %q with a different value", p, name).
				WithRange(call.Args.Range())
			if loc, present := s.DeclLoc(name); present {
				err.AppendMsg(loc, "Previously declared here")
			}
			return Value{}, err
		}
		s.SetImported(name, v, imported.values[name].decl)
	}
	for name, tmpl := range imported.templates {
		if existing := s.GetTemplate(name); existing != nil {
			if existing == tmpl {
				continue
			}
			return Value{}, core.MakeErr(call.Function.Loc, "Import of %q redefines template %q", p, name).
				AppendMsg(existing.Loc, "Previously defined here")
		}
		s.templates[name] = tmpl
	}
	return NoneValue(call), nil
}

// declare_args() { ... } declares build arguments with defaults. Values
// supplied externally via --args override the defaults; an override that
// never matches any declaration is reported at the end of the run.
func builtinDeclareArgs(s *Scope, call *FunctionCallNode) (Value, *core.Err) {
	if err := requireBlock(call); err != nil {
		return Value{}, err
	}
	if len(call.Args.Contents) != 0 {
		return Value{}, argCountErr(call, "no", len(call.Args.Contents))
	}
	argsScope := s.NewScope()
	if err := call.Block.ExecuteIn(argsScope); err != nil {
		return Value{}, err
	}
	argsScope.MarkAllUsed()
	ctx := s.Context()
	for _, name := range argsScope.Names() {
		def, _ := argsScope.LocalValue(name, true)
		doc := ""
		if decl := argsScope.values[name].decl; decl != nil {
			if assign, ok := decl.(*BinaryOpNode); ok {
				doc = strings.Join(assign.Comments, "\n")
			}
		}
		effective := ctx.Args.declare(name, def, doc, call.Function.Loc)
		s.SetProgrammatic(name, effective)
	}
	return NoneValue(call), nil
}

// set_defaults(target_type) { ... } registers a scope of default values
// copied into every subsequent invocation of that target type.
func builtinSetDefaults(s *Scope, call *FunctionCallNode) (Value, *core.Err) {
	if err := requireBlock(call); err != nil {
		return Value{}, err
	}
	name, err := singleStringArg(s, call)
	if err != nil {
		return Value{}, err
	}
	typ := core.TargetTypeFromString(name)
	if typ == core.UnknownTarget {
		return Value{}, core.MakeErr(call.Args.Contents[0].Range().Begin, "Unknown target type %q in set_defaults", name).
			WithRange(call.Args.Contents[0].Range())
	}
	defaults := s.NewScope()
	if err := call.Block.ExecuteIn(defaults); err != nil {
		return Value{}, err
	}
	defaults.MarkAllUsed()
	s.Context().SetDefaults(typ, defaults)
	return NoneValue(call), nil
}

// defined(ident) and defined(scope.ident) test presence without counting as a use.
func builtinDefined(s *Scope, call *FunctionCallNode) (Value, *core.Err) {
	if err := noBlockErr(call); err != nil {
		return Value{}, err
	}
	if len(call.Args.Contents) != 1 {
		return Value{}, argCountErr(call, "exactly one", len(call.Args.Contents))
	}
	switch arg := call.Args.Contents[0].(type) {
	case *IdentifierNode:
		return BoolValue(s.IsDefined(arg.Name()), call), nil
	case *AccessorNode:
		if arg.Member == nil {
			break
		}
		base, present := s.Get(arg.Base.Value, false)
		if !present {
			return Value{}, undefinedIdentErr(s, arg.Base)
		}
		if base.Type != ScopeType {
			return Value{}, core.MakeErr(arg.Base.Loc, "defined() requires a scope before '.', got a %s", base.Type).
				WithRange(arg.Base.Range())
		}
		_, present = base.Scope.LocalValue(arg.Member.Name(), false)
		return BoolValue(present, call), nil
	}
	return Value{}, core.MakeErr(call.Args.Contents[0].Range().Begin, "defined() requires an identifier or scope.identifier argument").
		WithRange(call.Args.Contents[0].Range())
}

// foreach(loop_var, list) { ... } runs the block once per list element.
// The loop variable binds in a fresh scope each pass; writing to it inside
// the block never modifies the list.
func builtinForeach(s *Scope, call *FunctionCallNode) (Value, *core.Err) {
	if err := requireBlock(call); err != nil {
		return Value{}, err
	}
	if len(call.Args.Contents) != 2 {
		return Value{}, argCountErr(call, "exactly two", len(call.Args.Contents))
	}
	loopVar, ok := call.Args.Contents[0].(*IdentifierNode)
	if !ok {
		return Value{}, core.MakeErr(call.Args.Contents[0].Range().Begin, "First argument to foreach() must be an identifier").
			WithRange(call.Args.Contents[0].Range())
	}
	list, err := call.Args.Contents[1].Evaluate(s)
	if err != nil {
		return Value{}, err
	}
	if list.Type != ListType {
		return Value{}, argTypeErr(call, call.Args.Contents[1], ListType, list.Type)
	}
	for _, item := range list.List {
		iterScope := s.NewBranchScope()
		iterScope.SetProgrammatic(loopVar.Name(), item.Copy())
		if err := call.Block.ExecuteIn(iterScope); err != nil {
			return Value{}, err
		}
	}
	return NoneValue(call), nil
}

// print(...) writes its arguments to stdout separated by spaces.
func builtinPrint(s *Scope, call *FunctionCallNode) (Value, *core.Err) {
	if err := noBlockErr(call); err != nil {
		return Value{}, err
	}
	args, err := evalArgs(s, call)
	if err != nil {
		return Value{}, err
	}
	strs := make([]string, len(args))
	for i, arg := range args {
		strs[i] = arg.ToString(false)
	}
	fmt.Fprintln(s.Context().Stdout, strings.Join(strs, " "))
	return NoneValue(call), nil
}

// not_needed exempts variables from the unused-variable check:
// not_needed("*"), not_needed(["a", "b"]), not_needed(invoker, "*"),
// not_needed(invoker, ["a"]).
func builtinNotNeeded(s *Scope, call *FunctionCallNode) (Value, *core.Err) {
	if err := noBlockErr(call); err != nil {
		return Value{}, err
	}
	args, err := evalArgs(s, call)
	if err != nil {
		return Value{}, err
	}
	target := s
	if len(args) == 2 {
		if args[0].Type != ScopeType {
			return Value{}, argTypeErr(call, call.Args.Contents[0], ScopeType, args[0].Type)
		}
		target = args[0].Scope
		args = args[1:]
	}
	if len(args) != 1 {
		return Value{}, argCountErr(call, "one or two", len(call.Args.Contents))
	}
	if args[0].Type == StringType && args[0].Str == "*" {
		target.MarkAllUsed()
		return NoneValue(call), nil
	}
	if args[0].Type != ListType {
		return Value{}, core.MakeErr(call.Args.Contents[0].Range().Begin, `not_needed() requires "*" or a list of variable names`).
			WithRange(call.Args.Contents[0].Range())
	}
	for _, item := range args[0].List {
		if item.Type != StringType {
			return Value{}, core.MakeErr(call.Args.Contents[0].Range().Begin, "not_needed() list elements must be strings, got a %s", item.Type)
		}
		target.MarkUsed(item.Str)
	}
	return NoneValue(call), nil
}

// getenv(name) returns the named environment variable, or the empty string.
func builtinGetenv(s *Scope, call *FunctionCallNode) (Value, *core.Err) {
	if err := noBlockErr(call); err != nil {
		return Value{}, err
	}
	name, err := singleStringArg(s, call)
	if err != nil {
		return Value{}, err
	}
	return StringValue(os.Getenv(name), call), nil
}

// string_join(separator, list) concatenates a list of strings.
func builtinStringJoin(s *Scope, call *FunctionCallNode) (Value, *core.Err) {
	args, err := evalArgs(s, call)
	if err != nil {
		return Value{}, err
	}
	if len(args) != 2 {
		return Value{}, argCountErr(call, "exactly two", len(args))
	}
	sep, err := stringArg(call, args, 0)
	if err != nil {
		return Value{}, err
	}
	strs, err := stringList(call, args, 1)
	if err != nil {
		return Value{}, err
	}
	return StringValue(strings.Join(strs, sep), call), nil
}

// string_split(str, separator?) splits a string; with no separator it splits
// on runs of spaces like a shell would.
func builtinStringSplit(s *Scope, call *FunctionCallNode) (Value, *core.Err) {
	args, err := evalArgs(s, call)
	if err != nil {
		return Value{}, err
	}
	if len(args) < 1 || len(args) > 2 {
		return Value{}, argCountErr(call, "one or two", len(args))
	}
	str, err := stringArg(call, args, 0)
	if err != nil {
		return Value{}, err
	}
	var parts []string
	if len(args) == 2 {
		sep, err := stringArg(call, args, 1)
		if err != nil {
			return Value{}, err
		}
		if sep == "" {
			return Value{}, core.MakeErr(call.Args.Contents[1].Range().Begin, "string_split() separator must be non-empty")
		}
		parts = strings.Split(str, sep)
	} else {
		parts = strings.Fields(str)
	}
	list := make([]Value, len(parts))
	for i, part := range parts {
		list[i] = StringValue(part, call)
	}
	return ListValue(list, call), nil
}

// string_replace(str, old, new, max?) substitutes occurrences of old with new.
func builtinStringReplace(s *Scope, call *FunctionCallNode) (Value, *core.Err) {
	args, err := evalArgs(s, call)
	if err != nil {
		return Value{}, err
	}
	if len(args) < 3 || len(args) > 4 {
		return Value{}, argCountErr(call, "three or four", len(args))
	}
	str, err := stringArg(call, args, 0)
	if err != nil {
		return Value{}, err
	}
	old, err := stringArg(call, args, 1)
	if err != nil {
		return Value{}, err
	}
	new, err := stringArg(call, args, 2)
	if err != nil {
		return Value{}, err
	}
	max := -1
	if len(args) == 4 {
		if args[3].Type != IntType {
			return Value{}, argTypeErr(call, call.Args.Contents[3], IntType, args[3].Type)
		}
		max = int(args[3].Int)
	}
	return StringValue(strings.Replace(str, old, new, max), call), nil
}

// filter_exclude(list, patterns) removes every element matching any of the
// given wildcard patterns.
func builtinFilterExclude(s *Scope, call *FunctionCallNode) (Value, *core.Err) {
	args, err := evalArgs(s, call)
	if err != nil {
		return Value{}, err
	}
	if len(args) != 2 {
		return Value{}, argCountErr(call, "exactly two", len(args))
	}
	list, err := listArg(call, args, 0)
	if err != nil {
		return Value{}, err
	}
	patterns, err := stringList(call, args, 1)
	if err != nil {
		return Value{}, err
	}
	var kept []Value
	for _, item := range list {
		if item.Type != StringType {
			return Value{}, core.MakeErr(call.Args.Contents[0].Range().Begin, "filter_exclude() operates on lists of strings, got a %s element", item.Type)
		}
		excluded := false
		for _, pattern := range patterns {
			if ok, _ := path.Match(pattern, item.Str); ok {
				excluded = true
				break
			}
		}
		if !excluded {
			kept = append(kept, item)
		}
	}
	return ListValue(kept, call), nil
}

// get_path_info(input, what) extracts a component of a path (or of each path
// in a list).
func builtinGetPathInfo(s *Scope, call *FunctionCallNode) (Value, *core.Err) {
	args, err := evalArgs(s, call)
	if err != nil {
		return Value{}, err
	}
	if len(args) != 2 {
		return Value{}, argCountErr(call, "exactly two", len(args))
	}
	what, err := stringArg(call, args, 1)
	if err != nil {
		return Value{}, err
	}
	info := func(p string) (string, *core.Err) {
		return pathInfo(s, p, what, call)
	}
	if args[0].Type == StringType {
		result, err := info(args[0].Str)
		if err != nil {
			return Value{}, err
		}
		return StringValue(result, call), nil
	}
	strs, err := stringList(call, args, 0)
	if err != nil {
		return Value{}, err
	}
	list := make([]Value, len(strs))
	for i, p := range strs {
		result, err := info(p)
		if err != nil {
			return Value{}, err
		}
		list[i] = StringValue(result, call)
	}
	return ListValue(list, call), nil
}

func pathInfo(s *Scope, p, what string, call *FunctionCallNode) (string, *core.Err) {
	settings := s.Settings()
	full := core.SourcePath(p, s.Dir())
	switch what {
	case "file":
		return path.Base(full), nil
	case "name":
		base := path.Base(full)
		return strings.TrimSuffix(base, path.Ext(base)), nil
	case "extension":
		return strings.TrimPrefix(path.Ext(full), "."), nil
	case "dir":
		return sourceDir(full), nil
	case "out_dir":
		return settings.TargetOutDir(strings.TrimPrefix(sourceDir(full), "//")), nil
	case "gen_dir":
		return settings.TargetGenDir(strings.TrimPrefix(sourceDir(full), "//")), nil
	case "abspath":
		if strings.HasPrefix(full, "//") {
			return settings.AbsSourcePath(strings.TrimPrefix(full, "//")), nil
		}
		return full, nil
	}
	return "", core.MakeErr(call.Args.Contents[1].Range().Begin, "Unknown get_path_info() selector %q", what).
		WithRange(call.Args.Contents[1].Range())
}

// sourceDir is path.Dir that preserves the // source-root prefix, which
// path.Clean would otherwise collapse.
func sourceDir(p string) string {
	if strings.HasPrefix(p, "//") {
		return "//" + path.Dir(strings.TrimPrefix(p, "//"))
	}
	return path.Dir(p)
}

// rebase_path(input, new_base?, current_base?) converts paths between bases.
// With no new_base, paths become relative to the root build directory, which
// is what command lines passed to actions want.
func builtinRebasePath(s *Scope, call *FunctionCallNode) (Value, *core.Err) {
	args, err := evalArgs(s, call)
	if err != nil {
		return Value{}, err
	}
	if len(args) < 1 || len(args) > 3 {
		return Value{}, argCountErr(call, "one to three", len(args))
	}
	settings := s.Settings()
	newBase := settings.RootBuildDir()
	if len(args) >= 2 {
		if newBase, err = stringArg(call, args, 1); err != nil {
			return Value{}, err
		}
		newBase = core.SourcePath(newBase, s.Dir())
	}
	currentBase := s.Dir()
	if len(args) == 3 {
		base, err := stringArg(call, args, 2)
		if err != nil {
			return Value{}, err
		}
		currentBase = strings.TrimPrefix(core.SourcePath(base, s.Dir()), "//")
	}
	rebase := func(p string) string {
		return settings.RebasePath(core.SourcePath(p, currentBase), newBase)
	}
	if args[0].Type == StringType {
		return StringValue(rebase(args[0].Str), call), nil
	}
	strs, err := stringList(call, args, 0)
	if err != nil {
		return Value{}, err
	}
	list := make([]Value, len(strs))
	for i, p := range strs {
		list[i] = StringValue(rebase(p), call)
	}
	return ListValue(list, call), nil
}

// get_target_outputs(label) returns the output files of a target declared
// earlier in the current file.
func builtinGetTargetOutputs(s *Scope, call *FunctionCallNode) (Value, *core.Err) {
	labelStr, err := singleStringArg(s, call)
	if err != nil {
		return Value{}, err
	}
	label, err2 := s.ParseLabel(labelStr, call.Args.Contents[0])
	if err2 != nil {
		return Value{}, err2
	}
	target := s.Context().Collector.LookupTarget(label)
	if target == nil {
		return Value{}, core.MakeErr(call.Function.Loc, "get_target_outputs() requires %s to be declared earlier in the same file", label).
			WithRange(call.Args.Range())
	}
	list := make([]Value, len(target.Outputs))
	for i, out := range target.Outputs {
		list[i] = StringValue(out, call)
	}
	return ListValue(list, call), nil
}

// read_file(path, format) reads a file at generation time and converts its
// content. The file becomes a generator dependency.
func builtinReadFile(s *Scope, call *FunctionCallNode) (Value, *core.Err) {
	args, err := evalArgs(s, call)
	if err != nil {
		return Value{}, err
	}
	if len(args) != 2 {
		return Value{}, argCountErr(call, "exactly two", len(args))
	}
	p, err := stringArg(call, args, 0)
	if err != nil {
		return Value{}, err
	}
	format, err := stringArg(call, args, 1)
	if err != nil {
		return Value{}, err
	}
	settings := s.Settings()
	sourcePath := core.SourcePath(p, s.Dir())
	abs := settings.AbsSourcePath(strings.TrimPrefix(sourcePath, "//"))
	b, oserr := os.ReadFile(abs)
	if oserr != nil {
		return Value{}, core.MakeErr(call.Function.Loc, "Cannot read %s: %s", sourcePath, oserr).WithRange(call.Args.Range())
	}
	s.Context().Collector.AddGenDep(sourcePath)
	return convertInput(s, string(b), format, call)
}

// write_file(path, data, format?) writes a file at generation time.
// Lists write one element per line; "json" serialises the value.
func builtinWriteFile(s *Scope, call *FunctionCallNode) (Value, *core.Err) {
	args, err := evalArgs(s, call)
	if err != nil {
		return Value{}, err
	}
	if len(args) < 2 || len(args) > 3 {
		return Value{}, argCountErr(call, "two or three", len(args))
	}
	p, err := stringArg(call, args, 0)
	if err != nil {
		return Value{}, err
	}
	format := ""
	if len(args) == 3 {
		if format, err = stringArg(call, args, 2); err != nil {
			return Value{}, err
		}
	}
	content, err := serialiseOutput(args[1], format, call)
	if err != nil {
		return Value{}, err
	}
	settings := s.Settings()
	sourcePath := core.SourcePath(p, s.Dir())
	abs := settings.AbsSourcePath(strings.TrimPrefix(sourcePath, "//"))
	if oserr := os.MkdirAll(filepath.Dir(abs), 0775); oserr != nil {
		return Value{}, core.MakeErr(call.Function.Loc, "Cannot create directory for %s: %s", sourcePath, oserr)
	}
	// Skip the write when contents are unchanged so downstream timestamps hold still.
	if existing, oserr := os.ReadFile(abs); oserr == nil && string(existing) == content {
		return NoneValue(call), nil
	}
	if oserr := os.WriteFile(abs, []byte(content), 0664); oserr != nil {
		return Value{}, core.MakeErr(call.Function.Loc, "Cannot write %s: %s", sourcePath, oserr)
	}
	return NoneValue(call), nil
}

func serialiseOutput(v Value, format string, call *FunctionCallNode) (string, *core.Err) {
	switch format {
	case "json":
		b, err := json.MarshalIndent(jsonify(v), "", "  ")
		if err != nil {
			return "", core.MakeErr(call.Function.Loc, "Cannot serialise value to JSON: %s", err)
		}
		return string(b) + "\n", nil
	case "", "list lines":
		if v.Type == ListType {
			var b strings.Builder
			for _, item := range v.List {
				b.WriteString(item.ToString(false))
				b.WriteByte('\n')
			}
			return b.String(), nil
		}
		return v.ToString(false), nil
	case "string":
		return v.ToString(false), nil
	case "value":
		return v.ToString(true) + "\n", nil
	}
	return "", core.MakeErr(call.Function.Loc, "Unknown write_file() conversion %q", format)
}

func jsonify(v Value) interface{} {
	switch v.Type {
	case NoneType:
		return nil
	case BoolType:
		return v.Bool
	case IntType:
		return v.Int
	case StringType:
		return v.Str
	case ListType:
		list := make([]interface{}, len(v.List))
		for i, item := range v.List {
			list[i] = jsonify(item)
		}
		return list
	default:
		m := map[string]interface{}{}
		for _, name := range v.Scope.Names() {
			item, _ := v.Scope.LocalValue(name, false)
			m[name] = jsonify(item)
		}
		return m
	}
}

// exec_script(script, args?, format?, inputs?) is the only escape hatch to
// external processes. Its stdout is captured and converted like read_file
// content; a nonzero exit or a missing script executable is a hard error at
// the call site. The script and every listed input become generator deps.
func builtinExecScript(s *Scope, call *FunctionCallNode) (Value, *core.Err) {
	args, err := evalArgs(s, call)
	if err != nil {
		return Value{}, err
	}
	if len(args) < 1 || len(args) > 4 {
		return Value{}, argCountErr(call, "one to four", len(args))
	}
	script, err := stringArg(call, args, 0)
	if err != nil {
		return Value{}, err
	}
	var scriptArgs []string
	if len(args) >= 2 {
		if scriptArgs, err = stringList(call, args, 1); err != nil {
			return Value{}, err
		}
	}
	format := ""
	if len(args) >= 3 {
		if format, err = stringArg(call, args, 2); err != nil {
			return Value{}, err
		}
	}
	var inputs []string
	if len(args) == 4 {
		if inputs, err = stringList(call, args, 3); err != nil {
			return Value{}, err
		}
	}
	ctx := s.Context()
	settings := ctx.Settings
	scriptPath := core.SourcePath(script, s.Dir())
	absScript := settings.AbsSourcePath(strings.TrimPrefix(scriptPath, "//"))

	argv, lexErr := shlex.Split(settings.ScriptExecutable)
	if lexErr != nil || len(argv) == 0 {
		return Value{}, core.MakeErr(call.Function.Loc, "No usable script executable configured; pass --script-executable").
			WithRange(call.Function.Range())
	}
	if _, lookErr := exec.LookPath(argv[0]); lookErr != nil {
		return Value{}, core.MakeErr(call.Function.Loc, "Script executable %q does not exist: %s", argv[0], lookErr).
			WithRange(call.Function.Range())
	}
	argv = append(argv, absScript)
	argv = append(argv, scriptArgs...)

	ctx.Collector.AddGenDep(scriptPath)
	for _, input := range inputs {
		ctx.Collector.AddGenDep(core.SourcePath(input, s.Dir()))
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = settings.AbsBuildPath("")
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	log.Debug("exec_script: %v", argv)
	if runErr := cmd.Run(); runErr != nil {
		return Value{}, core.MakeErr(call.Function.Loc, "Script %s failed: %s\n%s", scriptPath, runErr, stderr.String()).
			WithRange(call.Args.Range())
	}
	return convertInput(s, stdout.String(), format, call)
}

// convertInput converts captured text (file content or script stdout) into a
// value according to the requested format.
func convertInput(s *Scope, content, format string, call *FunctionCallNode) (Value, *core.Err) {
	switch format {
	case "":
		return NoneValue(call), nil
	case "string":
		return StringValue(content, call), nil
	case "trim string":
		return StringValue(strings.TrimSpace(content), call), nil
	case "list lines", "trim list lines":
		if format == "trim list lines" {
			content = strings.TrimSpace(content)
		}
		var list []Value
		if content != "" {
			for _, line := range strings.Split(strings.TrimSuffix(content, "\n"), "\n") {
				list = append(list, StringValue(line, call))
			}
		}
		return ListValue(list, call), nil
	case "value":
		return parseValueInput(s, content, call)
	case "scope":
		block, perr := Parse([]byte(content), "<"+call.Function.Value+" result>")
		if perr != nil {
			return Value{}, perr
		}
		scope := s.NewScope()
		if err := block.ExecuteIn(scope); err != nil {
			return Value{}, err
		}
		scope.MarkAllUsed()
		return ScopeValue(scope, call), nil
	case "json":
		var decoded interface{}
		if err := json.Unmarshal([]byte(content), &decoded); err != nil {
			return Value{}, core.MakeErr(call.Function.Loc, "Result is not valid JSON: %s", err)
		}
		return valueFromJSON(decoded, call)
	}
	return Value{}, core.MakeErr(call.Function.Loc, "Unknown input conversion %q", format)
}

func parseValueInput(s *Scope, content string, call *FunctionCallNode) (Value, *core.Err) {
	tokens, _, err := Tokenize([]byte(content), "<"+call.Function.Value+" result>")
	if err != nil {
		return Value{}, err
	}
	p := &parser{tokens: tokens, eofLoc: call.Function.Loc, docs: map[int]string{}}
	expr, perr := p.parseExpression(0)
	if perr != nil {
		return Value{}, perr
	}
	if !p.atEnd() {
		return Value{}, core.MakeErr(call.Function.Loc, "Result is not a single value")
	}
	return expr.Evaluate(s.NewScope())
}

func valueFromJSON(decoded interface{}, origin Node) (Value, *core.Err) {
	switch val := decoded.(type) {
	case nil:
		return NoneValue(origin), nil
	case bool:
		return BoolValue(val, origin), nil
	case float64:
		if val != float64(int64(val)) {
			return Value{}, core.MakeErr(origin.Range().Begin, "JSON number %v is not an integer; the language has no floating point", val)
		}
		return IntValue(int64(val), origin), nil
	case string:
		return StringValue(val, origin), nil
	case []interface{}:
		list := make([]Value, len(val))
		for i, item := range val {
			v, err := valueFromJSON(item, origin)
			if err != nil {
				return Value{}, err
			}
			list[i] = v
		}
		return ListValue(list, origin), nil
	case map[string]interface{}:
		scope := &Scope{values: map[string]*scopeEntry{}, templates: map[string]*Template{}}
		names := make([]string, 0, len(val))
		for name := range val {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			v, err := valueFromJSON(val[name], origin)
			if err != nil {
				return Value{}, err
			}
			scope.SetProgrammatic(name, v)
		}
		return ScopeValue(scope, origin), nil
	}
	return Value{}, core.MakeErr(origin.Range().Begin, "Unsupported JSON value")
}
