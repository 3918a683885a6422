package lang

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/please-build/gen/src/core"
)

// A fakeCollector records commits without a real graph behind it.
type fakeCollector struct {
	targets []*core.Target
	configs []*core.Config
	genDeps []string
}

func (f *fakeCollector) CommitTarget(t *core.Target) *core.Err {
	f.targets = append(f.targets, t)
	return nil
}

func (f *fakeCollector) CommitConfig(c *core.Config) *core.Err {
	f.configs = append(f.configs, c)
	return nil
}

func (f *fakeCollector) LookupTarget(label *core.Label) *core.Target {
	for _, t := range f.targets {
		if t.Label == label {
			return t
		}
	}
	return nil
}

func (f *fakeCollector) AddGenDep(path string) {
	f.genDeps = append(f.genDeps, path)
}

// A fakeImporter serves canned file contents, counting how often each is
// actually evaluated.
type fakeImporter struct {
	files  map[string]string
	root   *Scope
	loads  map[string]int
	scopes map[string]*Scope
}

func (f *fakeImporter) Import(path string, loc core.Location) (*Scope, *core.Err) {
	if scope, present := f.scopes[path]; present {
		return scope, nil
	}
	content, present := f.files[path]
	if !present {
		return nil, core.MakeErr(loc, "Unknown import %s", path)
	}
	f.loads[path]++
	block, err := Parse([]byte(content), path)
	if err != nil {
		return nil, err
	}
	scope := f.root.NewFileScope("imported")
	if err := block.ExecuteIn(scope); err != nil {
		return nil, err
	}
	if f.scopes == nil {
		f.scopes = map[string]*Scope{}
	}
	f.scopes[path] = scope
	return scope, nil
}

// An evalResult bundles everything a language test wants to poke at.
type evalResult struct {
	scope     *Scope
	err       *core.Err
	stdout    *bytes.Buffer
	collector *fakeCollector
	importer  *fakeImporter
	settings  *core.Settings
}

// evalSource parses and evaluates source text as a build file in directory
// "pkg", without running the unused-variable check.
func evalSource(t *testing.T, src string) *evalResult {
	t.Helper()
	return evalSourceIn(t, src, map[string]string{})
}

// evalSourceIn is evalSource with importable files available.
func evalSourceIn(t *testing.T, src string, imports map[string]string) *evalResult {
	t.Helper()
	settings := &core.Settings{
		SourceRoot:       "/src",
		BuildDir:         "out",
		ScriptExecutable: "/bin/sh",
	}
	collector := &fakeCollector{}
	importer := &fakeImporter{files: imports, loads: map[string]int{}}
	ctx := NewContext(settings, NewArgs(nil), collector, importer)
	stdout := &bytes.Buffer{}
	ctx.Stdout = stdout
	root := NewRootScope(ctx, "")
	importer.root = root
	fileScope := root.NewFileScope("pkg")

	result := &evalResult{
		scope:     fileScope,
		stdout:    stdout,
		collector: collector,
		importer:  importer,
		settings:  settings,
	}
	block, err := Parse([]byte(src), "pkg/BUILD.gn")
	if err != nil {
		result.err = err
		return result
	}
	result.err = block.ExecuteIn(fileScope)
	return result
}

// mustEval evaluates and requires success.
func mustEval(t *testing.T, src string) *evalResult {
	t.Helper()
	result := evalSource(t, src)
	require.Nil(t, result.err, "unexpected error: %v", result.err)
	return result
}
