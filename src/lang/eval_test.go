package lang

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssignAndRead(t *testing.T) {
	result := mustEval(t, "a = 1\nb = a + 2\nprint(b)\n")
	assert.Equal(t, "3\n", result.stdout.String())
	require.Nil(t, result.scope.CheckForUnusedVars())
}

func TestUnusedDeclaration(t *testing.T) {
	result := mustEval(t, "a = 1\nb = 2\nprint(b)\n")
	err := result.scope.CheckForUnusedVars()
	require.NotNil(t, err)
	assert.Contains(t, err.Msg, `"a"`)
	assert.Equal(t, 1, err.Loc.Line)
}

func TestListSubtractionHygiene(t *testing.T) {
	result := evalSource(t, "l = [1, 2, 3]\nprint(l - [4])\n")
	require.NotNil(t, result.err)
	assert.Contains(t, result.err.Msg, "not in list")
}

func TestListSubtractionRemovesAllMatches(t *testing.T) {
	result := mustEval(t, `l = [1, 2, 1, 3]
print(l - [1])
`)
	assert.Equal(t, "[2, 3]\n", result.stdout.String())
}

func TestListAppend(t *testing.T) {
	result := mustEval(t, `l = [1]
l += [2, 3]
l += 4
print(l)
`)
	assert.Equal(t, "[1, 2, 3, 4]\n", result.stdout.String())
}

func TestStringConcat(t *testing.T) {
	result := mustEval(t, `s = "foo" + "bar"
print(s)
`)
	assert.Equal(t, "foobar\n", result.stdout.String())
}

func TestMixedAdditionFails(t *testing.T) {
	result := evalSource(t, `x = 1 + "two"`+"\n")
	require.NotNil(t, result.err)
	assert.Contains(t, result.err.Msg, "cannot combine")
}

func TestConditionRequiresBoolean(t *testing.T) {
	result := evalSource(t, "if (1) {\n}\n")
	require.NotNil(t, result.err)
	assert.Contains(t, result.err.Msg, "must be a boolean")
}

func TestConditionChain(t *testing.T) {
	result := mustEval(t, `a = 2
if (a == 1) {
  print("one")
} else if (a == 2) {
  print("two")
} else {
  print("many")
}
`)
	assert.Equal(t, "two\n", result.stdout.String())
}

func TestConditionWritesEscapeBranch(t *testing.T) {
	result := mustEval(t, `x = 0
cond = true
if (cond) {
  x = 1
}
print(x)
`)
	assert.Equal(t, "1\n", result.stdout.String())
}

func TestConditionDeclarationEscapesBranch(t *testing.T) {
	result := mustEval(t, `cond = true
if (cond) {
  y = "set"
} else {
  y = "unset"
}
print(y)
`)
	assert.Equal(t, "set\n", result.stdout.String())
}

func TestShortCircuit(t *testing.T) {
	// The right operand would fail to evaluate; && must not reach it.
	result := mustEval(t, `ok = false
if (ok && undefined_thing) {
  print("no")
}
print("yes")
`)
	assert.Equal(t, "yes\n", result.stdout.String())
}

func TestStringInterpolation(t *testing.T) {
	result := mustEval(t, `name = "world"
n = 42
b = true
print("hello $name ${n + 1} $b")
`)
	assert.Equal(t, "hello world 43 true\n", result.stdout.String())
}

func TestInterpolatingListFails(t *testing.T) {
	result := evalSource(t, `l = [1]
x = "value: $l"
print(x)
`)
	require.NotNil(t, result.err)
	assert.Contains(t, result.err.Msg, "interpolate")
}

func TestForeachBindsFreshScope(t *testing.T) {
	result := mustEval(t, `l = [1, 2, 3]
total = 0
foreach(x, l) {
  total += x
  x = 0
}
print(total)
print(l)
`)
	assert.Equal(t, "6\n[1, 2, 3]\n", result.stdout.String())
}

func TestListIndexing(t *testing.T) {
	result := mustEval(t, `l = ["a", "b"]
print(l[1])
`)
	assert.Equal(t, "b\n", result.stdout.String())
}

func TestListIndexOutOfRange(t *testing.T) {
	result := evalSource(t, `l = [1]
print(l[3])
`)
	require.NotNil(t, result.err)
	assert.Contains(t, result.err.Msg, "out of range")
}

func TestIndexedAssignment(t *testing.T) {
	result := mustEval(t, `l = [1, 2]
l[0] = 10
print(l)
`)
	assert.Equal(t, "[10, 2]\n", result.stdout.String())
}

func TestScopeLiteralAndMemberAccess(t *testing.T) {
	result := mustEval(t, `s = {
  inner = "value"
}
print(s.inner)
`)
	assert.Equal(t, "value\n", result.stdout.String())
}

func TestScopeValueSemantics(t *testing.T) {
	result := mustEval(t, `a = {
  x = 1
}
b = a
b.x = 2
print(a.x)
print(b.x)
`)
	assert.Equal(t, "1\n2\n", result.stdout.String())
}

func TestUndefinedIdentifierSuggests(t *testing.T) {
	result := evalSource(t, `enable_foo = true
print(enable_fo)
`)
	require.NotNil(t, result.err)
	assert.Contains(t, result.err.Msg, "Undefined identifier")
	require.Equal(t, 1, len(result.err.Sub))
	assert.Contains(t, result.err.Sub[0].Msg, "enable_foo")
}

func TestUndefinedFunctionSuggests(t *testing.T) {
	result := evalSource(t, "exectuable(\"x\") {\n}\n")
	require.NotNil(t, result.err)
	require.NotEmpty(t, result.err.Sub)
	assert.Contains(t, result.err.Sub[0].Msg, "executable")
}

func TestShadowingEnclosingScopeFails(t *testing.T) {
	result := evalSource(t, `x = 1
s = {
  x = 2
}
print(s.x)
print(x)
`)
	require.NotNil(t, result.err)
	assert.Contains(t, result.err.Msg, "shadows")
}

func TestComparisons(t *testing.T) {
	result := mustEval(t, `print(1 < 2, 2 <= 2, 3 > 4, 4 >= 4, 1 == 1, 1 != 1)`)
	assert.Equal(t, "true true false true true false\n", result.stdout.String())
}

func TestComparisonTypeError(t *testing.T) {
	result := evalSource(t, `x = "a" < 1`+"\n")
	require.NotNil(t, result.err)
	assert.Contains(t, result.err.Msg, "expects integers")
}

func TestEvaluationIsDeterministic(t *testing.T) {
	const src = `
a = [3, 1, 2]
b = a - [1] + [4]
foreach(x, b) {
  print(x)
}
`
	first := mustEval(t, src)
	second := mustEval(t, src)
	assert.Equal(t, first.stdout.String(), second.stdout.String())
}
