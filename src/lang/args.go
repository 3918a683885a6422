package lang

import (
	"fmt"
	"io"
	"sync"

	"github.com/please-build/gen/src/core"
)

// Args tracks build arguments: the overrides supplied on the command line and
// every declaration seen in declare_args blocks. At the end of the run any
// override that never matched a declaration is an error; silently ignoring a
// misspelt argument would be far worse.
type Args struct {
	mu        sync.Mutex
	overrides map[string]Value
	declared  map[string]*declaredArg
	order     []string
}

type declaredArg struct {
	name string
	// The declared default and the effective value after overrides.
	def, value Value
	// Documentation comment attached to the declaration, if any.
	doc  string
	decl core.Location
}

// NewArgs creates the argument tracker with the given command-line overrides.
func NewArgs(overrides map[string]Value) *Args {
	if overrides == nil {
		overrides = map[string]Value{}
	}
	return &Args{
		overrides: overrides,
		declared:  map[string]*declaredArg{},
	}
}

// declare records one argument declaration and returns its effective value.
// Re-declaring the same argument keeps the first declaration's entry; the
// build config's declarations are visible everywhere so this happens whenever
// two files import the same declarations.
func (a *Args) declare(name string, def Value, doc string, decl core.Location) Value {
	a.mu.Lock()
	defer a.mu.Unlock()
	if existing, present := a.declared[name]; present {
		return existing.value
	}
	arg := &declaredArg{name: name, def: def, value: def, doc: doc, decl: decl}
	if override, present := a.overrides[name]; present {
		arg.value = override
	}
	a.declared[name] = arg
	a.order = append(a.order, name)
	return arg.value
}

// VerifyAllOverridesUsed returns an error if any command-line override never
// matched a declare_args declaration.
func (a *Args) VerifyAllOverridesUsed() *core.Err {
	a.mu.Lock()
	defer a.mu.Unlock()
	for name := range a.overrides {
		if _, present := a.declared[name]; present {
			continue
		}
		err := core.MakeErr(core.Location{}, "Build argument --args=%s=... was specified but never declared", name)
		for _, declaredName := range a.order {
			err.AppendMsg(a.declared[declaredName].decl, "Declared argument: %s", declaredName)
		}
		return err
	}
	return nil
}

// WriteEffective writes the effective argument file (args.gn) content:
// every declared argument with its documentation and final value, in
// declaration order. The output parses as build language itself.
func (a *Args) WriteEffective(w io.Writer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fmt.Fprintf(w, "# Build arguments as resolved for this build directory.\n")
	fmt.Fprintf(w, "# Re-run the generator after editing this file.\n")
	for _, name := range a.order {
		arg := a.declared[name]
		fmt.Fprintf(w, "\n")
		if arg.doc != "" {
			for _, line := range splitLines(arg.doc) {
				fmt.Fprintf(w, "# %s\n", line)
			}
		}
		fmt.Fprintf(w, "%s = %s\n", name, arg.value.ToString(true))
	}
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	return append(lines, s[start:])
}
