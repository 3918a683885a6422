// Package ninja serialises the resolved target graph into Ninja build files.
// This is deliberately the dumb end of the pipeline: everything interesting
// was decided during resolution, and what's left is formatting lines.
package ninja

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/shlex"

	"github.com/please-build/gen/src/cli/logging"
	"github.com/please-build/gen/src/core"
)

var log = logging.Log

const requiredVersion = "1.7.2"

// WriteAll emits the full set of output files under the build directory:
// one ninja file per toolchain, the top-level build.ninja that includes
// them, the effective argument file, and build.ninja.d.
func WriteAll(graph *core.Graph, settings *core.Settings, genDeps []string, argsContent string) *core.Err {
	w := &writer{graph: graph, settings: settings}
	outDir := settings.AbsBuildPath("")
	if err := os.MkdirAll(outDir, 0775); err != nil {
		return core.MakeErr(core.Location{}, "Cannot create build directory %s: %s", outDir, err)
	}
	files := map[string]string{
		"args.gn":       argsContent,
		"build.ninja.d": w.depsFile(genDeps),
	}
	toolchainFiles := w.toolchainFiles()
	for name, content := range toolchainFiles {
		files[name] = content
	}
	files["build.ninja"] = w.topLevel(toolchainFiles)

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	total := 0
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(outDir, name), []byte(files[name]), 0664); err != nil {
			return core.MakeErr(core.Location{}, "Cannot write %s: %s", name, err)
		}
		total += len(files[name])
	}
	log.Info("Wrote %d files (%s) to %s", len(files), humanize.Bytes(uint64(total)), outDir)
	return nil
}

type writer struct {
	graph    *core.Graph
	settings *core.Settings
}

// toolchainFiles renders one ninja file per toolchain present in the graph.
// The default toolchain writes toolchain.ninja.
func (w *writer) toolchainFiles() map[string]string {
	byToolchain := map[string][]*core.Target{}
	for _, t := range w.graph.AllTargets() {
		byToolchain[t.Label.Toolchain] = append(byToolchain[t.Label.Toolchain], t)
	}
	files := map[string]string{}
	for toolchain, targets := range byToolchain {
		files[toolchainFileName(toolchain)] = w.toolchainFile(toolchain, targets)
	}
	return files
}

func toolchainFileName(toolchain string) string {
	if toolchain == "" {
		return "toolchain.ninja"
	}
	name := strings.TrimPrefix(toolchain, "//")
	return strings.NewReplacer("/", "_", ":", "_").Replace(name) + ".ninja"
}

func (w *writer) toolchainFile(toolchain string, targets []*core.Target) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Generated build statements; do not edit by hand.\n\n")
	sort.Slice(targets, func(i, j int) bool { return targets[i].Label.String() < targets[j].Label.String() })
	rules := map[string]bool{}
	for _, t := range targets {
		switch t.Type {
		case core.Action, core.ActionForeach:
			w.writeAction(&b, t, rules)
		case core.Copy, core.BundleData:
			w.writeCopy(&b, t, rules)
		case core.Toolchain:
			// Toolchain definitions produce no ninja output.
		default:
			w.writePhony(&b, t)
		}
	}
	return b.String()
}

// writeAction renders an action's rule and build statement. action_foreach
// expands per source file.
func (w *writer) writeAction(b *strings.Builder, t *core.Target, rules map[string]bool) {
	rule := ruleName(t)
	if !rules[rule] {
		rules[rule] = true
		argv, err := shlex.Split(w.settings.ScriptExecutable)
		if err != nil || len(argv) == 0 {
			argv = []string{w.settings.ScriptExecutable}
		}
		parts := append(argv, w.rebase(t.Script))
		for _, arg := range t.Args {
			parts = append(parts, arg)
		}
		fmt.Fprintf(b, "rule %s\n", rule)
		fmt.Fprintf(b, "  command = %s\n", strings.Join(parts, " "))
		fmt.Fprintf(b, "  description = ACTION %s\n", t.Label)
		if t.Depfile != "" {
			fmt.Fprintf(b, "  depfile = %s\n", w.rebase(t.Depfile))
			fmt.Fprintf(b, "  deps = gcc\n")
		}
		if t.Pool != "" {
			fmt.Fprintf(b, "  pool = %s\n", t.Pool)
		}
		fmt.Fprintf(b, "\n")
	}
	if t.Type == core.ActionForeach {
		for _, source := range t.Sources {
			fmt.Fprintf(b, "build %s: %s %s%s\n",
				w.pathList(t.Outputs), rule, escapePath(w.rebase(source)), w.implicitDeps(t, t.Inputs))
		}
	} else {
		inputs := append(append([]string{}, t.Sources...), t.Inputs...)
		fmt.Fprintf(b, "build %s: %s%s%s\n", w.pathList(t.Outputs), rule, w.explicit(inputs), w.implicitDeps(t, nil))
	}
	fmt.Fprintf(b, "build %s: phony %s\n\n", w.alias(t), w.pathList(t.Outputs))
}

func (w *writer) writeCopy(b *strings.Builder, t *core.Target, rules map[string]bool) {
	if !rules["copy"] {
		rules["copy"] = true
		fmt.Fprintf(b, "rule copy\n  command = cp -af $in $out\n  description = COPY $out\n\n")
	}
	var aliases []string
	for i, source := range t.Sources {
		if i >= len(t.Outputs) {
			break
		}
		out := escapePath(w.rebase(t.Outputs[i]))
		fmt.Fprintf(b, "build %s: copy %s%s\n", out, escapePath(w.rebase(source)), w.implicitDeps(t, nil))
		aliases = append(aliases, out)
	}
	fmt.Fprintf(b, "build %s: phony %s\n\n", w.alias(t), strings.Join(aliases, " "))
}

// writePhony renders groups, source sets and linkables as phony aliases over
// everything they depend on; the executor sees a correct ordering even
// though no compiler is invoked here.
func (w *writer) writePhony(b *strings.Builder, t *core.Target) {
	var inputs []string
	for _, dep := range t.Deps {
		inputs = append(inputs, w.alias(dep.To))
	}
	if len(inputs) == 0 {
		fmt.Fprintf(b, "build %s: phony\n\n", w.alias(t))
		return
	}
	fmt.Fprintf(b, "build %s: phony %s\n\n", w.alias(t), strings.Join(inputs, " "))
}

// topLevel renders build.ninja: the regeneration rule plus includes of the
// per-toolchain files.
func (w *writer) topLevel(toolchainFiles map[string]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ninja_required_version = %s\n\n", requiredVersion)
	fmt.Fprintf(&b, "rule gen\n")
	fmt.Fprintf(&b, "  command = gen %s\n", w.settings.BuildDir)
	fmt.Fprintf(&b, "  description = Regenerating ninja files\n")
	fmt.Fprintf(&b, "  generator = 1\n")
	fmt.Fprintf(&b, "  depfile = build.ninja.d\n\n")
	fmt.Fprintf(&b, "build build.ninja: gen\n\n")
	names := make([]string, 0, len(toolchainFiles))
	for name := range toolchainFiles {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "subninja %s\n", name)
	}
	var aliases []string
	for _, t := range w.graph.AllTargets() {
		if t.Type != core.Toolchain {
			aliases = append(aliases, w.alias(t))
		}
	}
	sort.Strings(aliases)
	if len(aliases) > 0 {
		fmt.Fprintf(&b, "\nbuild all: phony %s\n", strings.Join(aliases, " "))
		fmt.Fprintf(&b, "default all\n")
	}
	return b.String()
}

// depsFile renders build.ninja.d: every generator dependency, so the
// executor re-runs the generator when any of them changes.
func (w *writer) depsFile(genDeps []string) string {
	escaped := make([]string, len(genDeps))
	for i, dep := range genDeps {
		escaped[i] = strings.ReplaceAll(dep, " ", "\\ ")
	}
	return "build.ninja: " + strings.Join(escaped, " ") + "\n"
}

// alias returns the phony path other targets use to depend on this one.
func (w *writer) alias(t *core.Target) string {
	return escapePath(path.Join("phony", t.Label.Dir, t.Label.Name))
}

func ruleName(t *core.Target) string {
	return "__" + strings.NewReplacer("/", "_", ":", "_", ".", "_").Replace(t.Label.Dir+"_"+t.Label.Name)
}

// rebase converts a //-prefixed source path to one relative to the build dir.
func (w *writer) rebase(p string) string {
	return w.settings.RebasePath(p, w.settings.RootBuildDir())
}

func (w *writer) pathList(paths []string) string {
	escaped := make([]string, len(paths))
	for i, p := range paths {
		escaped[i] = escapePath(w.rebase(p))
	}
	return strings.Join(escaped, " ")
}

func (w *writer) explicit(inputs []string) string {
	if len(inputs) == 0 {
		return ""
	}
	return " " + w.pathList(inputs)
}

// implicitDeps renders the implicit (order-only would lose the restat
// semantics we want) dependency section: extra inputs plus the aliases of
// every hard dep.
func (w *writer) implicitDeps(t *core.Target, extraInputs []string) string {
	var deps []string
	for _, input := range extraInputs {
		deps = append(deps, escapePath(w.rebase(input)))
	}
	for _, dep := range t.Deps {
		if dep.Kind != core.DataDep {
			deps = append(deps, w.alias(dep.To))
		}
	}
	if len(deps) == 0 {
		return ""
	}
	return " | " + strings.Join(deps, " ")
}

// escapePath applies ninja's path escaping.
func escapePath(p string) string {
	return strings.NewReplacer("$", "$$", " ", "$ ", ":", "$:").Replace(p)
}
