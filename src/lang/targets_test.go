package lang

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/please-build/gen/src/core"
)

func TestDeclareExecutable(t *testing.T) {
	result := mustEval(t, `executable("prog") {
  sources = [ "main.cc", "util.cc" ]
  deps = [ ":lib" ]
  public_deps = [ "//base" ]
  libs = [ "z" ]
}
`)
	require.Equal(t, 1, len(result.collector.targets))
	target := result.collector.targets[0]
	assert.Equal(t, core.Executable, target.Type)
	assert.Equal(t, "//pkg:prog", target.Label.String())
	assert.Equal(t, []string{"//pkg/main.cc", "//pkg/util.cc"}, target.Sources)
	require.Equal(t, 2, len(target.Deps))
	// public_deps precede deps in declaration order.
	assert.Equal(t, core.PublicDep, target.Deps[0].Kind)
	assert.Equal(t, "//base:base", target.Deps[0].Label.String())
	assert.Equal(t, core.PrivateDep, target.Deps[1].Kind)
	assert.Equal(t, "//pkg:lib", target.Deps[1].Label.String())
	assert.Equal(t, []string{"z"}, target.Own.Libs)
}

func TestUnknownFieldIsError(t *testing.T) {
	result := evalSource(t, `executable("prog") {
  sources = [ "main.cc" ]
  srcs = [ "oops.cc" ]
}
`)
	require.NotNil(t, result.err)
	assert.Contains(t, result.err.Msg, "srcs")
}

func TestFieldTypeMismatch(t *testing.T) {
	result := evalSource(t, `executable("prog") {
  sources = "main.cc"
}
`)
	require.NotNil(t, result.err)
	assert.Contains(t, result.err.Msg, "sources")
}

func TestActionRequiresScriptAndOutputs(t *testing.T) {
	result := evalSource(t, `action("gen") {
  outputs = [ "$target_gen_dir/out.h" ]
}
`)
	require.NotNil(t, result.err)
	assert.Contains(t, result.err.Msg, "script")
}

func TestActionFields(t *testing.T) {
	result := mustEval(t, `action("gen") {
  script = "gen.py"
  args = [ "--fast" ]
  outputs = [ "$target_gen_dir/out.h" ]
  depfile = "$target_gen_dir/out.d"
  pool = "serial"
}
`)
	target := result.collector.targets[0]
	assert.Equal(t, "//pkg/gen.py", target.Script)
	assert.Equal(t, []string{"--fast"}, target.Args)
	assert.Equal(t, []string{"//out/gen/pkg/out.h"}, target.Outputs)
	assert.Equal(t, "//out/gen/pkg/out.d", target.Depfile)
	assert.Equal(t, "serial", target.Pool)
}

func TestGroupCannotHaveSources(t *testing.T) {
	result := evalSource(t, `group("g") {
  sources = [ "a.cc" ]
}
`)
	require.NotNil(t, result.err)
	assert.Contains(t, result.err.Msg, "source_set")
}

func TestVisibilityPatterns(t *testing.T) {
	result := mustEval(t, `source_set("lib") {
  sources = [ "lib.cc" ]
  visibility = [ ":*", "//other/dir:thing" ]
}
`)
	target := result.collector.targets[0]
	require.Equal(t, 2, len(target.Visibility))
	assert.Equal(t, core.DirectoryMatch, target.Visibility[0].Kind)
	assert.Equal(t, "pkg", target.Visibility[0].Dir)
	assert.Equal(t, core.ExactMatch, target.Visibility[1].Kind)
}

func TestEmptyVisibilityMeansHidden(t *testing.T) {
	result := mustEval(t, `source_set("lib") {
  sources = [ "lib.cc" ]
  visibility = []
}
`)
	target := result.collector.targets[0]
	require.NotNil(t, target.Visibility)
	assert.Equal(t, 0, len(target.Visibility))
	assert.False(t, target.CheckVisibility(core.InternLabel("elsewhere", "x", "")))
}

func TestConfigDeclaration(t *testing.T) {
	result := mustEval(t, `config("warnings") {
  cflags = [ "-Wall" ]
  defines = [ "STRICT" ]
}
`)
	require.Equal(t, 1, len(result.collector.configs))
	config := result.collector.configs[0]
	assert.Equal(t, "//pkg:warnings", config.Label.String())
	assert.Equal(t, []string{"-Wall"}, config.Values.Cflags)
	assert.Equal(t, []string{"STRICT"}, config.Values.Defines)
}

func TestTargetPredefinedVariables(t *testing.T) {
	result := mustEval(t, `executable("prog") {
  sources = [ "main.cc" ]
  print(target_name)
  print(target_gen_dir)
  print(target_out_dir)
}
`)
	assert.Equal(t, "prog\n//out/gen/pkg\n//out/obj/pkg\n", result.stdout.String())
}

func TestGetTargetOutputs(t *testing.T) {
	result := mustEval(t, `action("gen") {
  script = "gen.py"
  outputs = [ "$target_gen_dir/out.h" ]
}
group("g") {
  deps = [ ":gen" ]
}
print(get_target_outputs(":gen"))
`)
	assert.Equal(t, `["//out/gen/pkg/out.h"]`+"\n", result.stdout.String())
}

func TestToolchainDeclaration(t *testing.T) {
	result := mustEval(t, `toolchain("clang") {
  tool("cc") {
    command = "clang -c \$in -o \$out"
    description = "CC \$out"
  }
}
`)
	require.Equal(t, 1, len(result.collector.targets))
	target := result.collector.targets[0]
	assert.Equal(t, core.Toolchain, target.Type)
	assert.Equal(t, []string{"clang -c $in -o $out"}, target.Metadata["tool_cc_command"])
}

func TestToolOutsideToolchainFails(t *testing.T) {
	result := evalSource(t, `tool("cc") {
  command = "cc"
}
`)
	require.NotNil(t, result.err)
	assert.Contains(t, result.err.Msg, "toolchain")
}

func TestMetadataExtraction(t *testing.T) {
	result := mustEval(t, `group("g") {
  metadata = {
    artifacts = [ "a", "b" ]
  }
}
`)
	target := result.collector.targets[0]
	assert.Equal(t, []string{"a", "b"}, target.Metadata["artifacts"])
}
