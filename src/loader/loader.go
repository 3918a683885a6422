package loader

import (
	"os"
	"path"
	"sort"
	"strings"

	"github.com/please-build/gen/src/core"
	"github.com/please-build/gen/src/lang"
)

// A LoadState describes where a build file is in its lifecycle.
type LoadState int

const (
	// Requested means a load has been queued but parsing hasn't finished.
	Requested LoadState = iota
	// Loading means the file parsed and its evaluation is underway.
	Loading
	// Loaded means the file's top level has completed.
	Loaded
	// Failed means the file produced an error.
	Failed
)

type loadEntry struct {
	state LoadState
	// Continuations dispatched on the main thread once the file is loaded.
	waiting []func()
}

type importEntry struct {
	state LoadState
	scope *lang.Scope
	err   *core.Err
}

// A Loader discovers and loads build files on demand. Files are keyed by
// directory and toolchain; each parses at most once per run. All map access
// happens on the scheduler's main thread.
type Loader struct {
	sched *Scheduler
	graph *core.Graph
	args  *lang.Args
	// Prototype settings; per-toolchain states copy this with Toolchain set.
	base core.Settings
	// Per-toolchain evaluation states, created on demand.
	toolchains map[string]*toolchainState
}

// A toolchainState is everything needed to evaluate files under one
// toolchain: its settings, root scope (the evaluated build config), and the
// per-file caches. It implements lang.Collector and lang.Importer.
type toolchainState struct {
	l         *Loader
	settings  *core.Settings
	ctx       *lang.Context
	rootScope *lang.Scope
	files     map[string]*loadEntry
	imports   map[string]*importEntry
}

// New creates a loader over the given collaborators.
func New(base core.Settings, args *lang.Args, graph *core.Graph, sched *Scheduler) *Loader {
	return &Loader{
		sched:      sched,
		graph:      graph,
		args:       args,
		base:       base,
		toolchains: map[string]*toolchainState{},
	}
}

// Run loads the root build file and drives the scheduler until the work
// frontier empties. On success the graph holds every reachable target,
// still unresolved.
func (l *Loader) Run() *core.Err {
	l.sched.IncWorkCount()
	l.sched.PostTask(func() {
		defer l.sched.DecWorkCount()
		l.Load("", "")
	})
	return l.sched.Run()
}

// Load requests that the build file for a directory (in a toolchain) be
// loaded. Repeated requests for the same file are free. Must be called on
// the main thread; onDone continuations from other call sites attach via
// LoadThen.
func (l *Loader) Load(dir, toolchain string) {
	l.load(dir, toolchain, nil)
}

// LoadThen is Load with a continuation dispatched (on the main thread) once
// the file's top level has completed.
func (l *Loader) LoadThen(dir, toolchain string, onDone func()) {
	l.load(dir, toolchain, onDone)
}

func (l *Loader) load(dir, toolchain string, onDone func()) {
	st, err := l.state(toolchain)
	if err != nil {
		l.sched.FailWithError(err)
		return
	}
	if entry, present := st.files[dir]; present {
		if onDone != nil {
			if entry.state == Loaded {
				l.sched.PostTask(onDone)
			} else {
				entry.waiting = append(entry.waiting, onDone)
			}
		}
		return
	}
	entry := &loadEntry{}
	if onDone != nil {
		entry.waiting = append(entry.waiting, onDone)
	}
	st.files[dir] = entry
	absPath := st.settings.AbsSourcePath(path.Join(dir, core.BuildFileName))
	log.Debug("loading %s", absPath)
	l.sched.IncWorkCount()
	l.sched.PostWorkerTask(func() {
		// Parsing is pure CPU over bytes the worker owns; the AST is handed
		// back to the main thread for evaluation.
		var block *lang.BlockNode
		var perr *core.Err
		if data, oserr := os.ReadFile(absPath); oserr != nil {
			perr = core.MakeErr(core.Location{}, "Cannot read build file for //%s: %s", dir, oserr)
		} else {
			block, perr = lang.Parse(data, absPath)
		}
		l.sched.PostTask(func() {
			defer l.sched.DecWorkCount()
			l.evaluate(st, dir, absPath, entry, block, perr)
		})
	})
}

// evaluate runs a parsed build file's top level. Main thread only; this is
// where all scope and graph mutation happens.
func (l *Loader) evaluate(st *toolchainState, dir, absPath string, entry *loadEntry, block *lang.BlockNode, perr *core.Err) {
	if l.sched.Failed() {
		entry.state = Failed
		return
	}
	if perr != nil {
		entry.state = Failed
		l.sched.FailWithError(perr)
		return
	}
	entry.state = Loading
	l.sched.AddGenDep(absPath)
	fileScope := st.rootScope.NewFileScope(dir)
	err := block.ExecuteIn(fileScope)
	if err == nil {
		err = fileScope.CheckForUnusedVars()
	}
	if err != nil {
		entry.state = Failed
		l.sched.FailWithError(err)
		return
	}
	entry.state = Loaded
	for _, f := range entry.waiting {
		l.sched.PostTask(f)
	}
	entry.waiting = nil
}

// state returns (creating if needed) the evaluation state for a toolchain.
// Creation evaluates the build config file under that toolchain's settings,
// synchronously on the main thread.
func (l *Loader) state(toolchain string) (*toolchainState, *core.Err) {
	if st, present := l.toolchains[toolchain]; present {
		return st, nil
	}
	settings := l.base
	settings.Toolchain = toolchain
	st := &toolchainState{
		l:        l,
		settings: &settings,
		files:    map[string]*loadEntry{},
		imports:  map[string]*importEntry{},
	}
	st.ctx = lang.NewContext(&settings, l.args, st, st)
	st.rootScope = lang.NewRootScope(st.ctx, "")
	// Register before evaluating: the build config can legitimately trigger
	// loads within its own toolchain.
	l.toolchains[toolchain] = st

	absPath := settings.AbsSourcePath(settings.BuildConfigFile)
	data, oserr := os.ReadFile(absPath)
	if oserr != nil {
		return nil, core.MakeErr(core.Location{}, "Cannot read build config file %s: %s", settings.BuildConfigFile, oserr)
	}
	block, err := lang.Parse(data, absPath)
	if err != nil {
		return nil, err
	}
	if err := block.ExecuteIn(st.rootScope); err != nil {
		return nil, err
	}
	// The build config's bindings are the ambient environment of every file;
	// nothing there is "unused".
	st.rootScope.MarkAllUsed()
	l.sched.AddGenDep(absPath)
	if toolchain == "" {
		// set_default_toolchain takes effect here, for every later state.
		l.base.DefaultToolchain = settings.DefaultToolchain
	}
	current := settings.Toolchain
	if current == "" {
		current = settings.DefaultToolchain
	}
	st.rootScope.SetProgrammatic("current_toolchain", lang.StringValue(current, nil))
	st.rootScope.SetProgrammatic("default_toolchain", lang.StringValue(settings.DefaultToolchain, nil))
	st.rootScope.SetProgrammatic("root_build_dir", lang.StringValue(settings.RootBuildDir(), nil))
	st.rootScope.SetProgrammatic("root_gen_dir", lang.StringValue(settings.RootGenDir(), nil))
	st.rootScope.SetProgrammatic("root_out_dir", lang.StringValue(settings.RootOutDir(), nil))
	return st, nil
}

// CommitTarget implements the lang.Collector interface. Committing a target
// schedules loads for every file its references live in.
func (st *toolchainState) CommitTarget(t *core.Target) *core.Err {
	if err := st.l.graph.AddTarget(t); err != nil {
		return err
	}
	for _, dep := range t.Deps {
		st.l.Load(dep.Label.Dir, dep.Label.Toolchain)
	}
	for _, labels := range [][]*core.Label{t.Configs, t.PublicConfigs, t.AllDependentConfigs} {
		for _, label := range labels {
			st.l.Load(label.Dir, label.Toolchain)
		}
	}
	// References to files under the build directory must eventually be
	// produced by some target; remember them for the post-resolution check.
	buildPrefix := st.settings.RootBuildDir() + "/"
	for _, inputs := range [][]string{t.Inputs, t.Sources} {
		for _, input := range inputs {
			if strings.HasPrefix(input, buildPrefix) {
				st.l.sched.AddUnknownGeneratedInput(input, t)
			}
		}
	}
	return nil
}

// CommitConfig implements the lang.Collector interface.
func (st *toolchainState) CommitConfig(c *core.Config) *core.Err {
	if err := st.l.graph.AddConfig(c); err != nil {
		return err
	}
	for _, label := range c.Configs {
		st.l.Load(label.Dir, label.Toolchain)
	}
	return nil
}

// LookupTarget implements the lang.Collector interface.
func (st *toolchainState) LookupTarget(label *core.Label) *core.Target {
	return st.l.graph.Target(label)
}

// AddGenDep implements the lang.Collector interface. Paths arrive in the
// //-prefixed source form and are stored absolute.
func (st *toolchainState) AddGenDep(p string) {
	if strings.HasPrefix(p, "//") {
		p = st.settings.AbsSourcePath(strings.TrimPrefix(p, "//"))
	}
	st.l.sched.AddGenDep(p)
}

// Import implements the lang.Importer interface: load the given file once in
// this toolchain and return the scope its top level produced. Runs
// synchronously on the main thread, so an importer resumes only after the
// imported file has completed.
func (st *toolchainState) Import(p string, loc core.Location) (*lang.Scope, *core.Err) {
	if entry, present := st.imports[p]; present {
		switch entry.state {
		case Loading:
			return nil, core.MakeErr(loc, "Circular import of %s", p)
		case Failed:
			return nil, entry.err
		}
		return entry.scope, nil
	}
	entry := &importEntry{state: Loading}
	st.imports[p] = entry
	scope, err := st.runImport(p)
	if err != nil {
		entry.state = Failed
		entry.err = err
		return nil, err
	}
	entry.state = Loaded
	entry.scope = scope
	return scope, nil
}

func (st *toolchainState) runImport(p string) (*lang.Scope, *core.Err) {
	rel := strings.TrimPrefix(p, "//")
	absPath := st.settings.AbsSourcePath(rel)
	data, oserr := os.ReadFile(absPath)
	if oserr != nil {
		return nil, core.MakeErr(core.Location{}, "Cannot read imported file %s: %s", p, oserr)
	}
	block, err := lang.Parse(data, absPath)
	if err != nil {
		return nil, err
	}
	scope := st.rootScope.NewFileScope(path.Dir(rel))
	if err := block.ExecuteIn(scope); err != nil {
		return nil, err
	}
	// An imported file's top level exists to declare things for importers;
	// its own bindings are exports, not unused variables.
	st.l.sched.AddGenDep(absPath)
	return scope, nil
}

// CheckGeneratedInputs validates, post-resolution, every reference to a file
// under the build directory: something must generate it.
func (l *Loader) CheckGeneratedInputs() *core.Err {
	unknown := l.sched.UnknownGeneratedInputs()
	if len(unknown) == 0 {
		return nil
	}
	outputs := map[string]bool{}
	for _, t := range l.graph.AllTargets() {
		for _, out := range t.Outputs {
			outputs[out] = true
		}
	}
	runtime := l.graph.RuntimeDepsOutputs()
	files := make([]string, 0, len(unknown))
	for file := range unknown {
		files = append(files, file)
	}
	sort.Strings(files)
	for _, file := range files {
		if !outputs[file] && runtime[file] == nil {
			t := unknown[file]
			return core.MakeErr(t.Loc, "Target %s lists input %s under the build directory, but no target generates it", t.Label, file)
		}
	}
	return nil
}

// Graph returns the loader's target graph.
func (l *Loader) Graph() *core.Graph {
	return l.graph
}

// Scheduler returns the loader's scheduler.
func (l *Loader) Scheduler() *Scheduler {
	return l.sched
}
