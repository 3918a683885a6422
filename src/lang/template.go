package lang

import (
	"github.com/please-build/gen/src/core"
)

// A Template is a user-defined closure declared with template("name") {...}.
// It captures the scope it was defined in for lexical lookup; invoking it
// later runs the body in a fresh scope parented on that capture, so names
// declared inside the body never leak to the caller.
type Template struct {
	Name string
	// The definition call, whose block is the template body.
	Def *FunctionCallNode
	// The flattened capture of the defining scope.
	Closure *Scope
	// Where the template was defined.
	Loc core.Location
}

// Invoke instantiates the template for one call site.
func (t *Template) Invoke(s *Scope, call *FunctionCallNode) (Value, *core.Err) {
	name, err := singleStringArg(s, call)
	if err != nil {
		return Value{}, err
	}
	if call.Block == nil {
		return Value{}, core.MakeErr(call.Function.Loc, "Call to template %q requires a { } block", t.Name).
			WithRange(call.Function.Range())
	}
	// The caller's block runs first, in a scope of its own; its bindings
	// become the invoker pseudo-scope the body reads from.
	invokerScope := s.NewScope()
	if err := call.Block.ExecuteIn(invokerScope); err != nil {
		return Value{}, err
	}
	// The body runs parented on the capture, not the caller, so lookup is
	// lexical with respect to the definition site. Paths and labels still
	// resolve against the invoking file's directory; that's where any target
	// the body declares belongs.
	bodyScope := t.Closure.NewScope()
	bodyScope.dir = s.Dir()
	bodyScope.SetProgrammatic("target_name", StringValue(name, call))
	bodyScope.SetProgrammatic("invoker", ScopeValue(invokerScope, call))
	if err := t.Def.Block.ExecuteIn(bodyScope); err != nil {
		return Value{}, err
	}
	if err := bodyScope.CheckForUnusedVars(); err != nil {
		return Value{}, err
	}
	// Everything the caller passed must have been consumed via invoker;
	// an ignored argument is almost certainly a typo.
	if err := invokerScope.CheckForUnusedVars(); err != nil {
		return Value{}, err.AppendMsg(t.Loc, "In the invocation of template %q defined here", t.Name)
	}
	return NoneValue(call), nil
}

// singleStringArg evaluates a call's arguments and requires exactly one string,
// the declared instance or template name.
func singleStringArg(s *Scope, call *FunctionCallNode) (string, *core.Err) {
	if len(call.Args.Contents) != 1 {
		return "", core.MakeErr(call.Function.Loc, "%s() takes exactly one argument, got %d", call.Function.Value, len(call.Args.Contents)).
			WithRange(call.Args.Range())
	}
	v, err := call.Args.Contents[0].Evaluate(s)
	if err != nil {
		return "", err
	}
	if v.Type != StringType {
		return "", core.MakeErr(call.Args.Contents[0].Range().Begin, "%s() requires a string argument, got a %s", call.Function.Value, v.Type).
			WithRange(call.Args.Contents[0].Range())
	}
	return v.Str, nil
}
