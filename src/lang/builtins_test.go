package lang

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/please-build/gen/src/core"
)

func TestTemplateWithHiddenVariable(t *testing.T) {
	result := mustEval(t, `a = 1
template("t") {
  print(a)
  not_needed(invoker, "*")
}
t("x") {
}
`)
	assert.Equal(t, "1\n", result.stdout.String())
	// Reading a inside the template body consumed the outer declaration.
	assert.Nil(t, result.scope.CheckForUnusedVars())
}

func TestTemplateHygiene(t *testing.T) {
	result := evalSource(t, `template("t") {
  hidden = target_name
  print(hidden)
  not_needed(invoker, "*")
}
t("x") {
}
print(hidden)
`)
	require.NotNil(t, result.err)
	assert.Contains(t, result.err.Msg, "hidden")
}

func TestTemplateInvokerExposesCallerBindings(t *testing.T) {
	result := mustEval(t, `template("t") {
  print(target_name, invoker.greeting)
}
t("inst") {
  greeting = "hello"
}
`)
	assert.Equal(t, "inst hello\n", result.stdout.String())
}

func TestTemplateUnusedInvokerBindingFails(t *testing.T) {
	result := evalSource(t, `template("t") {
  print(target_name)
}
t("inst") {
  ignored = 1
}
`)
	require.NotNil(t, result.err)
	assert.Contains(t, result.err.Msg, "ignored")
}

func TestTemplateDeclaresTargetInInvokerDir(t *testing.T) {
	result := mustEval(t, `template("my_exe") {
  executable(target_name) {
    sources = invoker.sources
  }
}
my_exe("prog") {
  sources = [ "main.cc" ]
}
`)
	require.Equal(t, 1, len(result.collector.targets))
	target := result.collector.targets[0]
	assert.Equal(t, "pkg", target.Label.Dir)
	assert.Equal(t, "prog", target.Label.Name)
	assert.Equal(t, []string{"//pkg/main.cc"}, target.Sources)
}

func TestImportSplicesBindings(t *testing.T) {
	result := evalSourceIn(t, `import("//build/vars.gni")
print(imported_var)
`, map[string]string{
		"//build/vars.gni": "imported_var = \"from import\"\n",
	})
	require.Nil(t, result.err)
	assert.Equal(t, "from import\n", result.stdout.String())
	// Imported names are whitelisted from the unused check even if unread.
	assert.Nil(t, result.scope.CheckForUnusedVars())
}

func TestImportIdempotence(t *testing.T) {
	result := evalSourceIn(t, `import("//build/vars.gni")
import("//build/vars.gni")
print(imported_var)
`, map[string]string{
		"//build/vars.gni": "imported_var = 7\n",
	})
	require.Nil(t, result.err)
	assert.Equal(t, "7\n", result.stdout.String())
	assert.Equal(t, 1, result.importer.loads["//build/vars.gni"])
}

func TestImportedTemplateCallable(t *testing.T) {
	result := evalSourceIn(t, `import("//build/rules.gni")
wrapped("x") {
}
`, map[string]string{
		"//build/rules.gni": `template("wrapped") {
  print("ran " + target_name)
  not_needed(invoker, "*")
}
`,
	})
	require.Nil(t, result.err)
	assert.Equal(t, "ran x\n", result.stdout.String())
}

func TestDeclareArgsDefaults(t *testing.T) {
	result := mustEval(t, `declare_args() {
  enable_opt = true
}
print(enable_opt)
`)
	assert.Equal(t, "true\n", result.stdout.String())
}

func TestDeclareArgsOverride(t *testing.T) {
	settings := &core.Settings{SourceRoot: "/src", BuildDir: "out"}
	args := NewArgs(map[string]Value{"enable_opt": BoolValue(false, nil)})
	ctx := NewContext(settings, args, &fakeCollector{}, nil)
	root := NewRootScope(ctx, "")
	block, err := Parse([]byte(`declare_args() {
  enable_opt = true
}
print(enable_opt)
`), "BUILD.gn")
	require.Nil(t, err)
	out := &testWriter{}
	ctx.Stdout = out
	require.Nil(t, block.ExecuteIn(root.NewFileScope("pkg")))
	assert.Equal(t, "false\n", out.String())
	assert.Nil(t, args.VerifyAllOverridesUsed())
}

func TestUndeclaredOverrideFails(t *testing.T) {
	args := NewArgs(map[string]Value{"no_such_arg": BoolValue(true, nil)})
	err := args.VerifyAllOverridesUsed()
	require.NotNil(t, err)
	assert.Contains(t, err.Msg, "no_such_arg")
}

func TestDefined(t *testing.T) {
	result := mustEval(t, `x = 1
print(defined(x), defined(missing))
print(x)
`)
	assert.Equal(t, "true false\n1\n", result.stdout.String())
}

func TestDefinedDoesNotCountAsUse(t *testing.T) {
	result := mustEval(t, `x = 1
print(defined(x))
`)
	assert.NotNil(t, result.scope.CheckForUnusedVars())
}

func TestDefinedOnScopeMember(t *testing.T) {
	result := mustEval(t, `s = {
  present = 1
}
print(defined(s.present), defined(s.absent))
`)
	assert.Equal(t, "true false\n", result.stdout.String())
}

func TestAssert(t *testing.T) {
	result := evalSource(t, `assert(1 == 2, "math is broken")`+"\n")
	require.NotNil(t, result.err)
	assert.Contains(t, result.err.Msg, "math is broken")
}

func TestAssertPasses(t *testing.T) {
	result := mustEval(t, `assert(true)`+"\n")
	assert.Nil(t, result.err)
}

func TestStringFunctions(t *testing.T) {
	result := mustEval(t, `print(string_join("-", ["a", "b", "c"]))
print(string_split("a b  c"))
print(string_split("a,b", ","))
print(string_replace("aaa", "a", "b", 2))
`)
	assert.Equal(t, `a-b-c
["a", "b", "c"]
["a", "b"]
bba
`, result.stdout.String())
}

func TestFilterExclude(t *testing.T) {
	result := mustEval(t, `l = ["foo.cc", "foo_test.cc", "bar.cc"]
print(filter_exclude(l, ["*_test.cc"]))
`)
	assert.Equal(t, `["foo.cc", "bar.cc"]`+"\n", result.stdout.String())
}

func TestGetPathInfo(t *testing.T) {
	result := mustEval(t, `p = "sub/file.cc"
print(get_path_info(p, "file"))
print(get_path_info(p, "name"))
print(get_path_info(p, "extension"))
print(get_path_info(p, "dir"))
`)
	assert.Equal(t, "file.cc\nfile\ncc\n//pkg/sub\n", result.stdout.String())
}

func TestRebasePath(t *testing.T) {
	result := mustEval(t, `print(rebase_path("main.cc"))`)
	assert.Equal(t, "../pkg/main.cc\n", result.stdout.String())
}

func TestNotNeededStar(t *testing.T) {
	result := mustEval(t, `a = 1
not_needed("*")
`)
	assert.Nil(t, result.scope.CheckForUnusedVars())
}

func TestNotNeededList(t *testing.T) {
	result := mustEval(t, `a = 1
b = 2
not_needed(["a"])
print(b)
`)
	assert.Nil(t, result.scope.CheckForUnusedVars())
}

func TestSetDefaultsAppliesToTargets(t *testing.T) {
	result := mustEval(t, `set_defaults("executable") {
  cflags = ["-O2"]
}
executable("prog") {
  sources = [ "main.cc" ]
}
`)
	require.Equal(t, 1, len(result.collector.targets))
	assert.Equal(t, []string{"-O2"}, result.collector.targets[0].Own.Cflags)
}

func TestForeachRequiresIdentifier(t *testing.T) {
	result := evalSource(t, `foreach(1, [1]) {
}
`)
	require.NotNil(t, result.err)
	assert.Contains(t, result.err.Msg, "identifier")
}

func TestExecScriptMissingExecutableIsHardError(t *testing.T) {
	settings := &core.Settings{SourceRoot: "/src", BuildDir: "out", ScriptExecutable: "/no/such/interpreter"}
	collector := &fakeCollector{}
	ctx := NewContext(settings, NewArgs(nil), collector, nil)
	ctx.Stdout = &testWriter{}
	root := NewRootScope(ctx, "")
	block, perr := Parse([]byte(`x = exec_script("tool.py", [], "trim string")
print(x)
`), "BUILD.gn")
	require.Nil(t, perr)
	err := block.ExecuteIn(root.NewFileScope("pkg"))
	require.NotNil(t, err)
	assert.Contains(t, err.Msg, "does not exist")
}

// testWriter is a minimal strings.Builder-alike usable as an io.Writer.
type testWriter struct {
	b []byte
}

func (w *testWriter) Write(p []byte) (int, error) {
	w.b = append(w.b, p...)
	return len(p), nil
}

func (w *testWriter) String() string {
	return string(w.b)
}
