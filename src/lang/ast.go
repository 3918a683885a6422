package lang

import (
	"github.com/please-build/gen/src/core"
)

// A Node is one element of the AST. Every node knows the source range it
// covers and how to evaluate itself within a scope.
type Node interface {
	// Range returns the source extent of this node.
	Range() core.Range
	// Evaluate executes the node within the given scope, returning its value.
	// Statement forms return the none value and act through side effects.
	Evaluate(s *Scope) (Value, *core.Err)
}

// A LiteralNode is an integer or boolean literal.
type LiteralNode struct {
	Tok Token
}

// Range implements the Node interface.
func (n *LiteralNode) Range() core.Range { return n.Tok.Range() }

// A StringSegment is one piece of a (possibly interpolated) string literal:
// either a literal chunk, a plain $identifier reference, or a ${...} expression.
type StringSegment struct {
	Literal string
	Ident   string
	Expr    Node
	// Location of the segment within the literal, for interpolation errors.
	Loc core.Location
}

// A StringNode is a string literal, pre-split into literal chunks and
// embedded interpolation expressions.
type StringNode struct {
	Tok      Token
	Segments []StringSegment
}

// Range implements the Node interface.
func (n *StringNode) Range() core.Range { return n.Tok.Range() }

// An IdentifierNode references a variable by name.
type IdentifierNode struct {
	Tok Token
}

// Range implements the Node interface.
func (n *IdentifierNode) Range() core.Range { return n.Tok.Range() }

// Name returns the referenced identifier.
func (n *IdentifierNode) Name() string { return n.Tok.Value }

// A ListNode is a [a, b, c] literal. It doubles as the argument list of a
// function call, where Begin/End are the parentheses instead.
type ListNode struct {
	Begin    Token
	End      Token
	Contents []Node
}

// Range implements the Node interface.
func (n *ListNode) Range() core.Range {
	return core.Range{Begin: n.Begin.Loc, End: n.End.Range().End}
}

// A BlockNode is a brace-delimited sequence of statements. A whole file is a
// BlockNode without brace tokens. Used as an expression it evaluates to a
// fresh scope value.
type BlockNode struct {
	Begin      Token
	End        Token
	Statements []Node
}

// Range implements the Node interface.
func (n *BlockNode) Range() core.Range {
	if n.Begin.Type == LeftBrace {
		return core.Range{Begin: n.Begin.Loc, End: n.End.Range().End}
	}
	if len(n.Statements) > 0 {
		return core.Range{Begin: n.Statements[0].Range().Begin, End: n.Statements[len(n.Statements)-1].Range().End}
	}
	return core.Range{}
}

// A UnaryOpNode is !expr or a unary minus that couldn't be folded into a literal.
type UnaryOpNode struct {
	Op      Token
	Operand Node
}

// Range implements the Node interface.
func (n *UnaryOpNode) Range() core.Range {
	return core.Range{Begin: n.Op.Loc, End: n.Operand.Range().End}
}

// A BinaryOpNode covers both binary expressions (a + b, a == b) and, when Op
// is an assignment operator, assignment statements (a = b, a += b, a -= b).
type BinaryOpNode struct {
	Op    Token
	Left  Node
	Right Node
	// Comment lines immediately preceding an assignment, attached as its
	// documentation (used for declare_args output).
	Comments []string
}

// Range implements the Node interface.
func (n *BinaryOpNode) Range() core.Range {
	return core.Range{Begin: n.Left.Range().Begin, End: n.Right.Range().End}
}

// An AccessorNode is a[index] or a.member.
type AccessorNode struct {
	Base   Token
	Index  Node            // a[index] if non-nil
	Member *IdentifierNode // a.member if non-nil
}

// Range implements the Node interface.
func (n *AccessorNode) Range() core.Range {
	end := n.Base.Range().End
	if n.Index != nil {
		end = n.Index.Range().End
	} else if n.Member != nil {
		end = n.Member.Range().End
	}
	return core.Range{Begin: n.Base.Loc, End: end}
}

// A ConditionNode is an if statement with optional else-if / else chaining.
type ConditionNode struct {
	IfTok Token
	Cond  Node
	Then  *BlockNode
	// Else is either another *ConditionNode (else if) or a *BlockNode (else), or nil.
	Else Node
}

// Range implements the Node interface.
func (n *ConditionNode) Range() core.Range {
	end := n.Then.Range().End
	if n.Else != nil {
		end = n.Else.Range().End
	}
	return core.Range{Begin: n.IfTok.Loc, End: end}
}

// A FunctionCallNode invokes a builtin function, a template, or a
// target-declaring function, with an optional trailing block.
type FunctionCallNode struct {
	Function Token
	Args     *ListNode
	Block    *BlockNode
}

// Range implements the Node interface.
func (n *FunctionCallNode) Range() core.Range {
	end := n.Args.Range().End
	if n.Block != nil {
		end = n.Block.Range().End
	}
	return core.Range{Begin: n.Function.Loc, End: end}
}
