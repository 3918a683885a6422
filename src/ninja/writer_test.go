package ninja

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/please-build/gen/src/core"
)

func testSettings(t *testing.T) *core.Settings {
	return &core.Settings{
		SourceRoot:       t.TempDir(),
		BuildDir:         "out",
		ScriptExecutable: "python3",
	}
}

func readOutput(t *testing.T, settings *core.Settings, name string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(settings.AbsBuildPath(""), name))
	require.NoError(t, err)
	return string(b)
}

func TestWriteAllProducesOutputs(t *testing.T) {
	settings := testSettings(t)
	g := core.NewGraph()
	lib := core.NewTarget(core.InternLabel("lib", "lib", ""), core.SourceSet, core.Location{})
	require.Nil(t, g.AddTarget(lib))
	root := core.NewTarget(core.InternLabel("", "root", ""), core.Group, core.Location{})
	root.AddDep(lib.Label, core.PrivateDep)
	require.Nil(t, g.AddTarget(root))
	require.Nil(t, g.Resolve())

	require.Nil(t, WriteAll(g, settings, []string{"/src/BUILD.gn"}, "# args\n"))

	build := readOutput(t, settings, "build.ninja")
	assert.Contains(t, build, "rule gen")
	assert.Contains(t, build, "subninja toolchain.ninja")
	assert.Contains(t, build, "default all")
	assert.Contains(t, readOutput(t, settings, "args.gn"), "# args")
	assert.Equal(t, "build.ninja: /src/BUILD.gn\n", readOutput(t, settings, "build.ninja.d"))

	toolchain := readOutput(t, settings, "toolchain.ninja")
	assert.Contains(t, toolchain, "build phony/lib/lib: phony")
	assert.Contains(t, toolchain, "build phony/root: phony phony/lib/lib")
}

func TestWriteAction(t *testing.T) {
	settings := testSettings(t)
	g := core.NewGraph()
	action := core.NewTarget(core.InternLabel("gen", "makeit", ""), core.Action, core.Location{})
	action.Script = "//gen/make.py"
	action.Args = []string{"--out", "x"}
	action.Sources = []string{"//gen/in.txt"}
	action.Outputs = []string{"//out/gen/x.h"}
	action.Depfile = "//out/gen/x.d"
	require.Nil(t, g.AddTarget(action))
	require.Nil(t, g.Resolve())

	require.Nil(t, WriteAll(g, settings, nil, ""))
	toolchain := readOutput(t, settings, "toolchain.ninja")
	assert.Contains(t, toolchain, "rule __gen_makeit")
	assert.Contains(t, toolchain, "command = python3 ../gen/make.py --out x")
	assert.Contains(t, toolchain, "build gen/x.h: __gen_makeit ../gen/in.txt")
	assert.Contains(t, toolchain, "depfile = gen/x.d")
}

func TestWriteSecondaryToolchainFile(t *testing.T) {
	settings := testSettings(t)
	g := core.NewGraph()
	alt := core.NewTarget(core.InternLabel("lib", "lib", "//toolchains:alt"), core.SourceSet, core.Location{})
	require.Nil(t, g.AddTarget(alt))
	require.Nil(t, g.Resolve())

	require.Nil(t, WriteAll(g, settings, nil, ""))
	build := readOutput(t, settings, "build.ninja")
	assert.Contains(t, build, "subninja toolchains_alt.ninja")
	assert.NotEmpty(t, readOutput(t, settings, "toolchains_alt.ninja"))
}

func TestEscapePath(t *testing.T) {
	assert.Equal(t, "a$ b$:c$$d", escapePath("a b:c$d"))
}
