package lang

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAssignment(t *testing.T) {
	block, err := Parse([]byte("a = 1\n"), "test.gn")
	require.Nil(t, err)
	require.Equal(t, 1, len(block.Statements))
	assign, ok := block.Statements[0].(*BinaryOpNode)
	require.True(t, ok)
	assert.Equal(t, Assign, assign.Op.Type)
	assert.Equal(t, "a", assign.Left.(*IdentifierNode).Name())
}

func TestParseDeterminism(t *testing.T) {
	const src = `
a = 1
b = a + 2 - 3
if (a == 1 && b != 2) {
  c = [ 1, 2, "three" ]
} else if (!false) {
  c = []
} else {
  c = [ "${a}x$b" ]
}
foreach(x, c) {
  print(x)
}
executable("bin") {
  sources = [ "main.cc" ]
}
`
	first, err := Parse([]byte(src), "test.gn")
	require.Nil(t, err)
	second, err := Parse([]byte(src), "test.gn")
	require.Nil(t, err)
	assert.True(t, reflect.DeepEqual(first, second), "two parses of the same input differ")
}

func TestParsePrecedence(t *testing.T) {
	block, err := Parse([]byte("x = a || b && c == d + e\n"), "test.gn")
	require.Nil(t, err)
	assign := block.Statements[0].(*BinaryOpNode)
	// Top of the expression tree must be ||, the loosest operator.
	or := assign.Right.(*BinaryOpNode)
	require.Equal(t, BooleanOr, or.Op.Type)
	and := or.Right.(*BinaryOpNode)
	require.Equal(t, BooleanAnd, and.Op.Type)
	eq := and.Right.(*BinaryOpNode)
	require.Equal(t, EqualEqual, eq.Op.Type)
	add := eq.Right.(*BinaryOpNode)
	assert.Equal(t, Plus, add.Op.Type)
}

func TestParseCallWithBlock(t *testing.T) {
	block, err := Parse([]byte("group(\"g\") {\n  deps = []\n}\n"), "test.gn")
	require.Nil(t, err)
	call := block.Statements[0].(*FunctionCallNode)
	assert.Equal(t, "group", call.Function.Value)
	require.NotNil(t, call.Block)
	assert.Equal(t, 1, len(call.Block.Statements))
}

func TestParseConditionChain(t *testing.T) {
	block, err := Parse([]byte("if (a) {\n} else if (b) {\n} else {\n}\n"), "test.gn")
	require.Nil(t, err)
	cond := block.Statements[0].(*ConditionNode)
	elif, ok := cond.Else.(*ConditionNode)
	require.True(t, ok)
	_, ok = elif.Else.(*BlockNode)
	assert.True(t, ok)
}

func TestParseStringInterpolation(t *testing.T) {
	block, err := Parse([]byte(`x = "pre $name mid ${a + 1} post"`+"\n"), "test.gn")
	require.Nil(t, err)
	assign := block.Statements[0].(*BinaryOpNode)
	str := assign.Right.(*StringNode)
	require.Equal(t, 5, len(str.Segments))
	assert.Equal(t, "pre ", str.Segments[0].Literal)
	assert.Equal(t, "name", str.Segments[1].Ident)
	assert.Equal(t, " mid ", str.Segments[2].Literal)
	require.NotNil(t, str.Segments[3].Expr)
	assert.Equal(t, " post", str.Segments[4].Literal)
}

func TestParseEscapedDollar(t *testing.T) {
	block, err := Parse([]byte(`x = "a\$b"`+"\n"), "test.gn")
	require.Nil(t, err)
	str := block.Statements[0].(*BinaryOpNode).Right.(*StringNode)
	require.Equal(t, 1, len(str.Segments))
	assert.Equal(t, "a$b", str.Segments[0].Literal)
}

func TestParseAccessors(t *testing.T) {
	block, err := Parse([]byte("x = a[0]\ny = s.member\n"), "test.gn")
	require.Nil(t, err)
	idx := block.Statements[0].(*BinaryOpNode).Right.(*AccessorNode)
	assert.Equal(t, "a", idx.Base.Value)
	require.NotNil(t, idx.Index)
	member := block.Statements[1].(*BinaryOpNode).Right.(*AccessorNode)
	require.NotNil(t, member.Member)
	assert.Equal(t, "member", member.Member.Name())
}

func TestParseErrorHasLocation(t *testing.T) {
	_, err := Parse([]byte("a = 1\nb = = 2\n"), "test.gn")
	require.NotNil(t, err)
	assert.Equal(t, 2, err.Loc.Line)
	assert.Equal(t, "test.gn", err.Loc.Filename)
}

func TestParseStopsAtFirstError(t *testing.T) {
	_, err := Parse([]byte("a = ]\nb = ]\n"), "test.gn")
	require.NotNil(t, err)
	assert.Equal(t, 1, err.Loc.Line)
}

func TestParseAttachesComments(t *testing.T) {
	src := `
# Enables debug mode.
# Costs performance.
is_debug = true
`
	block, err := Parse([]byte(src), "test.gn")
	require.Nil(t, err)
	assign := block.Statements[0].(*BinaryOpNode)
	require.Equal(t, 2, len(assign.Comments))
	assert.Equal(t, "Enables debug mode.", assign.Comments[0])
	assert.Equal(t, "Costs performance.", assign.Comments[1])
}

func TestParseTrailingCommaInList(t *testing.T) {
	block, err := Parse([]byte("x = [\n  1,\n  2,\n]\n"), "test.gn")
	require.Nil(t, err)
	list := block.Statements[0].(*BinaryOpNode).Right.(*ListNode)
	assert.Equal(t, 2, len(list.Contents))
}

func TestParseUnterminatedBlock(t *testing.T) {
	_, err := Parse([]byte("if (true) {\n  a = 1\n"), "test.gn")
	require.NotNil(t, err)
	assert.Contains(t, err.Msg, "end of file")
}
