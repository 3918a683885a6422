package main

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/please-build/gen/src/cli"
	"github.com/please-build/gen/src/cli/logging"
	"github.com/please-build/gen/src/core"
	"github.com/please-build/gen/src/lang"
	"github.com/please-build/gen/src/loader"
	"github.com/please-build/gen/src/ninja"
)

var log = logging.Log

// dotfileName identifies the source root and points at the build config file.
const dotfileName = ".gn"

var opts = struct {
	Usage string `usage:"gen is a meta-build system generator.\n\nIt reads BUILD.gn files describing build targets, resolves them into a graph, and writes Ninja files that an executor consumes."`

	Args             string        `long:"args" description:"Build arguments, as build-language assignments (e.g. --args='is_debug=false target_cpu=\"arm64\"')"`
	Root             string        `long:"root" description:"Source root directory; defaults to searching upwards for the dotfile"`
	Dotfile          string        `long:"dotfile" description:"File to use in place of the source root's .gn"`
	ScriptExecutable string        `long:"script-executable" description:"Interpreter used to run scripts" default:"python3"`
	NumThreads       int           `short:"j" long:"threads" description:"Number of parser threads; defaults to the number of CPUs"`
	Verbosity        cli.Verbosity `short:"v" long:"verbosity" description:"Verbosity of output (error, warning, notice, info, debug)" default:"warning"`

	Positional struct {
		OutDir string `positional-arg-name:"out-dir" required:"true" description:"Build output directory, relative to the source root"`
	} `positional-args:"true" required:"true"`
}{}

func main() {
	cli.ParseFlagsOrDie("gen", &opts)
	cli.InitLogging(opts.Verbosity)
	os.Exit(run())
}

func run() int {
	start := time.Now()
	settings, dotfilePath, err := findSettings()
	if err != nil {
		err.RenderToStderr(cli.ShowColouredOutput)
		return 1
	}
	overrides, err := parseArgOverrides(settings)
	if err != nil {
		err.RenderToStderr(cli.ShowColouredOutput)
		return 1
	}
	numThreads := opts.NumThreads
	if numThreads == 0 {
		numThreads = runtime.NumCPU()
	}

	args := lang.NewArgs(overrides)
	graph := core.NewGraph()
	sched := loader.NewScheduler(numThreads)
	sched.AddGenDep(dotfilePath)
	l := loader.New(*settings, args, graph, sched)

	if err := l.Run(); err != nil {
		err.RenderToStderr(cli.ShowColouredOutput)
		return 1
	}
	if err := args.VerifyAllOverridesUsed(); err != nil {
		err.RenderToStderr(cli.ShowColouredOutput)
		return 1
	}
	if err := graph.Resolve(); err != nil {
		err.RenderToStderr(cli.ShowColouredOutput)
		return 1
	}
	if err := l.CheckGeneratedInputs(); err != nil {
		err.RenderToStderr(cli.ShowColouredOutput)
		return 1
	}
	var argsContent bytes.Buffer
	args.WriteEffective(&argsContent)
	if err := ninja.WriteAll(graph, settings, sched.GenDeps(), argsContent.String()); err != nil {
		err.RenderToStderr(cli.ShowColouredOutput)
		return 1
	}
	log.Notice("Generated %d targets in %s", graph.Len(), time.Since(start).Round(time.Millisecond))
	return 0
}

// findSettings locates the source root & dotfile and evaluates the dotfile
// into the run's base settings.
func findSettings() (*core.Settings, string, *core.Err) {
	root := opts.Root
	dotfilePath := opts.Dotfile
	if root == "" {
		dir, err := os.Getwd()
		if err != nil {
			return nil, "", core.MakeErr(core.Location{}, "Cannot determine working directory: %s", err)
		}
		for {
			if _, err := os.Stat(filepath.Join(dir, dotfileName)); err == nil {
				root = dir
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				return nil, "", core.MakeErr(core.Location{}, "No %s file found in any parent of the working directory; pass --root", dotfileName)
			}
			dir = parent
		}
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, "", core.MakeErr(core.Location{}, "Cannot resolve source root %s: %s", root, err)
	}
	if dotfilePath == "" {
		dotfilePath = filepath.Join(absRoot, dotfileName)
	}
	settings := &core.Settings{
		SourceRoot:       absRoot,
		BuildDir:         filepath.ToSlash(opts.Positional.OutDir),
		ScriptExecutable: opts.ScriptExecutable,
	}
	if err := evaluateDotfile(settings, dotfilePath); err != nil {
		return nil, "", err
	}
	return settings, dotfilePath, nil
}

// evaluateDotfile runs the dotfile (which is written in the build language)
// and extracts the settings it declares.
func evaluateDotfile(settings *core.Settings, path string) *core.Err {
	data, oserr := os.ReadFile(path)
	if oserr != nil {
		return core.MakeErr(core.Location{}, "Cannot read dotfile %s: %s", path, oserr)
	}
	scope, err := evaluateIsolated(settings, data, path)
	if err != nil {
		return err
	}
	buildconfig, present := scope.Get("buildconfig", true)
	if !present || buildconfig.Type != lang.StringType {
		return core.MakeErr(core.Location{}, "Dotfile %s must assign buildconfig to the path of the build config file", path)
	}
	settings.BuildConfigFile = trimSourcePath(buildconfig.Str)
	if v, present := scope.Get("script_executable", true); present && v.Type == lang.StringType && opts.ScriptExecutable == "python3" {
		settings.ScriptExecutable = v.Str
	}
	scope.MarkAllUsed()
	return nil
}

// parseArgOverrides evaluates the --args text into a map of override values.
func parseArgOverrides(settings *core.Settings) (map[string]lang.Value, *core.Err) {
	if opts.Args == "" {
		return nil, nil
	}
	scope, err := evaluateIsolated(settings, []byte(opts.Args), "<command line --args>")
	if err != nil {
		return nil, err
	}
	overrides := map[string]lang.Value{}
	for _, name := range scope.Names() {
		v, _ := scope.LocalValue(name, true)
		overrides[name] = v
	}
	return overrides, nil
}

// evaluateIsolated runs source text in a scope with no loader attached;
// suitable only for pure declarations like the dotfile and --args.
func evaluateIsolated(settings *core.Settings, data []byte, filename string) (*lang.Scope, *core.Err) {
	block, err := lang.Parse(data, filename)
	if err != nil {
		return nil, err
	}
	ctx := lang.NewContext(settings, lang.NewArgs(nil), nil, nil)
	scope := lang.NewRootScope(ctx, "")
	if err := block.ExecuteIn(scope); err != nil {
		return nil, err
	}
	return scope, nil
}

func trimSourcePath(p string) string {
	if len(p) > 2 && p[0] == '/' && p[1] == '/' {
		return p[2:]
	}
	return p
}
