// The evaluator: a tree walk over the AST. Each node kind evaluates to a
// Value; statement forms return none and act by side effect on a scope.
// Errors are values returned alongside the result, and the first one
// abandons the rest of the enclosing block.

package lang

import (
	"strconv"

	"github.com/please-build/gen/src/core"
)

// ExecuteIn runs a block's statements directly in the given scope, without
// creating a new one. Used for file top levels and anywhere else the caller
// has already built the right scope.
func (n *BlockNode) ExecuteIn(s *Scope) *core.Err {
	for _, stmt := range n.Statements {
		if _, err := stmt.Evaluate(s); err != nil {
			return err
		}
	}
	return nil
}

// Evaluate implements the Node interface. A block used as an expression
// produces a fresh scope value.
func (n *BlockNode) Evaluate(s *Scope) (Value, *core.Err) {
	s2 := s.NewScope()
	if err := n.ExecuteIn(s2); err != nil {
		return Value{}, err
	}
	// The new scope's bindings are all deliberate; they're data, not code.
	s2.MarkAllUsed()
	return ScopeValue(s2, n), nil
}

// Evaluate implements the Node interface.
func (n *LiteralNode) Evaluate(s *Scope) (Value, *core.Err) {
	switch n.Tok.Type {
	case True:
		return BoolValue(true, n), nil
	case False:
		return BoolValue(false, n), nil
	}
	i, err := strconv.ParseInt(n.Tok.Value, 10, 64)
	if err != nil {
		return Value{}, core.MakeErr(n.Tok.Loc, "Integer literal out of range").WithRange(n.Tok.Range())
	}
	return IntValue(i, n), nil
}

// Evaluate implements the Node interface.
func (n *IdentifierNode) Evaluate(s *Scope) (Value, *core.Err) {
	if v, present := s.Get(n.Name(), true); present {
		return v, nil
	}
	return Value{}, undefinedIdentErr(s, n.Tok)
}

func undefinedIdentErr(s *Scope, tok Token) *core.Err {
	err := core.MakeErr(tok.Loc, "Undefined identifier %q", tok.Value).WithRange(tok.Range())
	if suggestion := suggestName(tok.Value, s.visibleNames()); suggestion != "" {
		err.AppendMsg(core.Location{}, "Did you mean %q?", suggestion)
	}
	return err
}

// Evaluate implements the Node interface.
func (n *StringNode) Evaluate(s *Scope) (Value, *core.Err) {
	// The common case is a single literal chunk (or none for the empty string).
	if len(n.Segments) == 0 {
		return StringValue("", n), nil
	}
	if len(n.Segments) == 1 && n.Segments[0].Expr == nil && n.Segments[0].Ident == "" {
		return StringValue(n.Segments[0].Literal, n), nil
	}
	var b []byte
	for _, seg := range n.Segments {
		if seg.Expr == nil && seg.Ident == "" {
			b = append(b, seg.Literal...)
			continue
		}
		var v Value
		if seg.Ident != "" {
			var present bool
			if v, present = s.Get(seg.Ident, true); !present {
				return Value{}, undefinedIdentErr(s, Token{Type: Ident, Value: seg.Ident, Loc: seg.Loc})
			}
		} else {
			var err *core.Err
			if v, err = seg.Expr.Evaluate(s); err != nil {
				return Value{}, err
			}
		}
		str, err := interpolate(v, seg.Loc)
		if err != nil {
			return Value{}, err
		}
		b = append(b, str...)
	}
	return StringValue(string(b), n), nil
}

// interpolate coerces a value embedded in a string literal.
// Only scalars may be interpolated; lists render only in debug output and
// scopes have no string form at all.
func interpolate(v Value, loc core.Location) (string, *core.Err) {
	switch v.Type {
	case StringType:
		return v.Str, nil
	case IntType, BoolType:
		return v.ToString(false), nil
	}
	return "", core.MakeErr(loc, "Cannot interpolate a value of type %s into a string", v.Type)
}

// Evaluate implements the Node interface.
func (n *ListNode) Evaluate(s *Scope) (Value, *core.Err) {
	items := make([]Value, len(n.Contents))
	for i, item := range n.Contents {
		v, err := item.Evaluate(s)
		if err != nil {
			return Value{}, err
		}
		items[i] = v
	}
	return ListValue(items, n), nil
}

// Evaluate implements the Node interface.
func (n *UnaryOpNode) Evaluate(s *Scope) (Value, *core.Err) {
	v, err := n.Operand.Evaluate(s)
	if err != nil {
		return Value{}, err
	}
	if v.Type != BoolType {
		return Value{}, typeErr(n.Operand, "!", BoolType, v.Type)
	}
	return BoolValue(!v.Bool, n), nil
}

func typeErr(origin Node, op string, expected, actual ValueType) *core.Err {
	return core.MakeErr(origin.Range().Begin, "Operator %s expects a %s, got a %s", op, expected, actual).
		WithRange(origin.Range())
}

// Evaluate implements the Node interface.
func (n *AccessorNode) Evaluate(s *Scope) (Value, *core.Err) {
	base, present := s.Get(n.Base.Value, true)
	if !present {
		return Value{}, undefinedIdentErr(s, n.Base)
	}
	if n.Index != nil {
		if base.Type != ListType {
			return Value{}, core.MakeErr(n.Base.Loc, "Cannot index a %s", base.Type).WithRange(n.Base.Range())
		}
		idx, err := n.Index.Evaluate(s)
		if err != nil {
			return Value{}, err
		}
		if idx.Type != IntType {
			return Value{}, core.MakeErr(n.Index.Range().Begin, "List index must be an integer, got a %s", idx.Type).WithRange(n.Index.Range())
		}
		if idx.Int < 0 || idx.Int >= int64(len(base.List)) {
			return Value{}, core.MakeErr(n.Index.Range().Begin, "List index %d out of range; list has %d elements", idx.Int, len(base.List)).WithRange(n.Index.Range())
		}
		return base.List[idx.Int], nil
	}
	if base.Type != ScopeType {
		return Value{}, core.MakeErr(n.Base.Loc, "Cannot access a member of a %s", base.Type).WithRange(n.Base.Range())
	}
	v, present := base.Scope.LocalValue(n.Member.Name(), true)
	if !present {
		return Value{}, core.MakeErr(n.Member.Tok.Loc, "Scope %s has no member %q", n.Base.Value, n.Member.Name()).
			WithRange(n.Member.Tok.Range())
	}
	return v, nil
}

// Evaluate implements the Node interface.
func (n *ConditionNode) Evaluate(s *Scope) (Value, *core.Err) {
	cond, err := n.Cond.Evaluate(s)
	if err != nil {
		return Value{}, err
	}
	if cond.Type != BoolType {
		return Value{}, core.MakeErr(n.Cond.Range().Begin, "Condition of if must be a boolean, got a %s", cond.Type).
			WithRange(n.Cond.Range())
	}
	if cond.Bool {
		return NoneValue(n), n.Then.ExecuteIn(s.NewBranchScope())
	}
	switch els := n.Else.(type) {
	case *BlockNode:
		return NoneValue(n), els.ExecuteIn(s.NewBranchScope())
	case *ConditionNode:
		return els.Evaluate(s)
	}
	return NoneValue(n), nil
}

// Evaluate implements the Node interface; binary nodes cover both expressions
// and assignment statements.
func (n *BinaryOpNode) Evaluate(s *Scope) (Value, *core.Err) {
	if n.Op.Type.IsAssignment() {
		return NoneValue(n), n.executeAssignment(s)
	}
	left, err := n.Left.Evaluate(s)
	if err != nil {
		return Value{}, err
	}
	// && and || short-circuit; everything else is strict.
	if n.Op.Type == BooleanAnd || n.Op.Type == BooleanOr {
		if left.Type != BoolType {
			return Value{}, typeErr(n.Left, n.Op.Value, BoolType, left.Type)
		}
		if (n.Op.Type == BooleanAnd) != left.Bool {
			return BoolValue(left.Bool, n), nil
		}
		right, err := n.Right.Evaluate(s)
		if err != nil {
			return Value{}, err
		}
		if right.Type != BoolType {
			return Value{}, typeErr(n.Right, n.Op.Value, BoolType, right.Type)
		}
		return BoolValue(right.Bool, n), nil
	}
	right, err := n.Right.Evaluate(s)
	if err != nil {
		return Value{}, err
	}
	v, opErr := applyBinaryOp(n.Op, left, right, n)
	if opErr != nil {
		return Value{}, opErr
	}
	return v, nil
}

func applyBinaryOp(op Token, left, right Value, origin Node) (Value, *core.Err) {
	switch op.Type {
	case EqualEqual:
		return BoolValue(left.Equals(right), origin), nil
	case NotEqual:
		return BoolValue(!left.Equals(right), origin), nil
	case Less, LessEqual, Greater, GreaterEqual:
		if left.Type != IntType || right.Type != IntType {
			return Value{}, core.MakeErr(op.Loc, "Operator %s expects integers, got %s and %s", op.Value, left.Type, right.Type).
				WithRange(origin.Range())
		}
		switch op.Type {
		case Less:
			return BoolValue(left.Int < right.Int, origin), nil
		case LessEqual:
			return BoolValue(left.Int <= right.Int, origin), nil
		case Greater:
			return BoolValue(left.Int > right.Int, origin), nil
		default:
			return BoolValue(left.Int >= right.Int, origin), nil
		}
	case Plus:
		return addValues(op, left, right, origin)
	case Minus:
		return subtractValues(op, left, right, origin)
	}
	return Value{}, core.MakeErr(op.Loc, "Unhandled operator %s", op.Value)
}

// addValues implements +: integer addition, string concatenation, list
// append. Appending a scalar to a list appends the single element.
func addValues(op Token, left, right Value, origin Node) (Value, *core.Err) {
	switch {
	case left.Type == IntType && right.Type == IntType:
		return IntValue(left.Int+right.Int, origin), nil
	case left.Type == StringType && right.Type == StringType:
		return StringValue(left.Str+right.Str, origin), nil
	case left.Type == ListType && right.Type == ListType:
		list := make([]Value, 0, len(left.List)+len(right.List))
		list = append(list, left.List...)
		list = append(list, right.List...)
		return ListValue(list, origin), nil
	case left.Type == ListType:
		list := make([]Value, 0, len(left.List)+1)
		list = append(list, left.List...)
		list = append(list, right)
		return ListValue(list, origin), nil
	}
	return Value{}, core.MakeErr(op.Loc, "Operator + cannot combine a %s and a %s", left.Type, right.Type).
		WithRange(origin.Range())
}

// subtractValues implements -: integer subtraction and list removal. Every
// element of the right-hand side must match something, so a subtraction that
// does nothing can't pass silently.
func subtractValues(op Token, left, right Value, origin Node) (Value, *core.Err) {
	if left.Type == IntType && right.Type == IntType {
		return IntValue(left.Int-right.Int, origin), nil
	}
	if left.Type != ListType {
		return Value{}, core.MakeErr(op.Loc, "Operator - cannot combine a %s and a %s", left.Type, right.Type).
			WithRange(origin.Range())
	}
	removals := right.List
	if right.Type != ListType {
		removals = []Value{right}
	}
	list := append([]Value{}, left.List...)
	for _, removal := range removals {
		matched := false
		for i := 0; i < len(list); {
			if list[i].Equals(removal) {
				list = append(list[:i], list[i+1:]...)
				matched = true
			} else {
				i++
			}
		}
		if !matched {
			return Value{}, core.MakeErr(op.Loc, "Value not in list: %s", removal.ToString(true)).
				WithRange(origin.Range())
		}
	}
	return ListValue(list, origin), nil
}

// executeAssignment handles =, += and -=.
func (n *BinaryOpNode) executeAssignment(s *Scope) *core.Err {
	value, err := n.Right.Evaluate(s)
	if err != nil {
		return err
	}
	switch lhs := n.Left.(type) {
	case *IdentifierNode:
		return n.assignIdent(s, lhs, value)
	case *AccessorNode:
		return n.assignAccessor(s, lhs, value)
	}
	return core.MakeErr(n.Left.Range().Begin, "The left-hand side of an assignment must be an identifier or accessor").
		WithRange(n.Left.Range())
}

func (n *BinaryOpNode) assignIdent(s *Scope, lhs *IdentifierNode, value Value) *core.Err {
	name := lhs.Name()
	if n.Op.Type == Assign {
		// Names local to a branch scope (foreach loop variables) update in place.
		if e, owner := s.entry(name); e != nil && owner.branchScope {
			e.value = value.Copy()
			return nil
		}
		target := s.assignTarget()
		if e, owner := target.entry(name); e != nil && owner != target {
			// The name belongs to an enclosing scope. Writing through is fine
			// when it holds none (a deliberate placeholder); replacing a real
			// value from an inner scope is a shadowing error.
			if e.value.IsNone() {
				target.SetToEnclosing(name, value.Copy())
				return nil
			}
			err := core.MakeErr(n.Op.Loc, "Assignment to %q shadows a variable from an enclosing scope", name).
				WithRange(lhs.Range())
			if e.decl != nil {
				err.AppendMsg(e.decl.Range().Begin, "Previously declared here")
			}
			return err
		}
		target.SetOverwrite(name, value, n)
		return nil
	}
	// += and -= modify in place, writing through to the defining scope.
	current, present := s.Get(name, false)
	if !present {
		return undefinedIdentErr(s, lhs.Tok)
	}
	opTok := Token{Type: Plus, Value: "+", Loc: n.Op.Loc}
	if n.Op.Type == MinusAssign {
		opTok = Token{Type: Minus, Value: "-", Loc: n.Op.Loc}
	}
	result, err := applyBinaryOp(opTok, current, value, n)
	if err != nil {
		return err
	}
	s.SetToEnclosing(name, result.Copy())
	return nil
}

func (n *BinaryOpNode) assignAccessor(s *Scope, lhs *AccessorNode, value Value) *core.Err {
	if n.Op.Type != Assign {
		return core.MakeErr(n.Op.Loc, "Operator %s requires a plain identifier on the left", n.Op.Value).
			WithRange(lhs.Range())
	}
	base := s.GetMutable(lhs.Base.Value)
	if base == nil {
		return undefinedIdentErr(s, lhs.Base)
	}
	if lhs.Index != nil {
		if base.Type != ListType {
			return core.MakeErr(lhs.Base.Loc, "Cannot index a %s", base.Type).WithRange(lhs.Base.Range())
		}
		idx, err := lhs.Index.Evaluate(s)
		if err != nil {
			return err
		}
		if idx.Type != IntType {
			return core.MakeErr(lhs.Index.Range().Begin, "List index must be an integer, got a %s", idx.Type).WithRange(lhs.Index.Range())
		}
		if idx.Int < 0 || idx.Int >= int64(len(base.List)) {
			return core.MakeErr(lhs.Index.Range().Begin, "List index %d out of range; list has %d elements", idx.Int, len(base.List)).WithRange(lhs.Index.Range())
		}
		base.List[idx.Int] = value.Copy()
		return nil
	}
	if base.Type != ScopeType {
		return core.MakeErr(lhs.Base.Loc, "Cannot assign to a member of a %s", base.Type).WithRange(lhs.Base.Range())
	}
	base.Scope.SetOverwrite(lhs.Member.Name(), value, lhs)
	return nil
}

// Evaluate implements the Node interface; calls dispatch to builtin
// functions first, then templates in scope, then fail with a suggestion.
func (n *FunctionCallNode) Evaluate(s *Scope) (Value, *core.Err) {
	name := n.Function.Value
	if fn, present := builtins[name]; present {
		return fn(s, n)
	}
	if tmpl := s.GetTemplate(name); tmpl != nil {
		return tmpl.Invoke(s, n)
	}
	err := core.MakeErr(n.Function.Loc, "Undefined function %q", name).WithRange(n.Function.Range())
	candidates := make([]string, 0, len(builtins))
	for builtin := range builtins {
		candidates = append(candidates, builtin)
	}
	candidates = append(candidates, s.visibleTemplateNames()...)
	if suggestion := suggestName(name, candidates); suggestion != "" {
		err.AppendMsg(core.Location{}, "Did you mean %q?", suggestion)
	}
	return Value{}, err
}
