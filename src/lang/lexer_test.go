package lang

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenTypes(tokens []Token) []TokenType {
	types := make([]TokenType, len(tokens))
	for i, tok := range tokens {
		types[i] = tok.Type
	}
	return types
}

func TestTokenizeBasic(t *testing.T) {
	tokens, _, err := Tokenize([]byte(`a = 1 + 2`), "test.gn")
	require.Nil(t, err)
	assert.Equal(t, []TokenType{Ident, Assign, Int, Plus, Int}, tokenTypes(tokens))
	assert.Equal(t, "a", tokens[0].Value)
	assert.Equal(t, 1, tokens[0].Loc.Line)
	assert.Equal(t, 1, tokens[0].Loc.Column)
	assert.Equal(t, 5, tokens[2].Loc.Column)
}

func TestTokenizeOperators(t *testing.T) {
	tokens, _, err := Tokenize([]byte(`a += b -= c == d != e <= f >= g < h > i && j || !k`), "test.gn")
	require.Nil(t, err)
	assert.Equal(t, []TokenType{
		Ident, PlusAssign, Ident, MinusAssign, Ident, EqualEqual, Ident, NotEqual,
		Ident, LessEqual, Ident, GreaterEqual, Ident, Less, Ident, Greater, Ident,
		BooleanAnd, Ident, BooleanOr, Not, Ident,
	}, tokenTypes(tokens))
}

func TestTokenizeKeywords(t *testing.T) {
	tokens, _, err := Tokenize([]byte(`if else true false iffy`), "test.gn")
	require.Nil(t, err)
	assert.Equal(t, []TokenType{If, Else, True, False, Ident}, tokenTypes(tokens))
	assert.Equal(t, "iffy", tokens[4].Value)
}

func TestTokenizeString(t *testing.T) {
	tokens, _, err := Tokenize([]byte(`x = "hello $world"`), "test.gn")
	require.Nil(t, err)
	require.Equal(t, 3, len(tokens))
	assert.Equal(t, String, tokens[2].Type)
	assert.Equal(t, "hello $world", tokens[2].Value)
}

func TestTokenizeStringEscapes(t *testing.T) {
	tokens, _, err := Tokenize([]byte(`x = "a\"b\$c"`), "test.gn")
	require.Nil(t, err)
	// Escapes stay raw in the token; the parser resolves them.
	assert.Equal(t, `a\"b\$c`, tokens[2].Value)
}

func TestTokenizeUnterminatedString(t *testing.T) {
	_, _, err := Tokenize([]byte(`x = "oops`), "test.gn")
	require.NotNil(t, err)
	assert.Contains(t, err.Msg, "Unterminated string")
}

func TestTokenizeComments(t *testing.T) {
	tokens, comments, err := Tokenize([]byte("# a comment\na = 1 # trailing\n"), "test.gn")
	require.Nil(t, err)
	assert.Equal(t, []TokenType{Ident, Assign, Int}, tokenTypes(tokens))
	require.Equal(t, 2, len(comments))
	assert.Equal(t, "a comment", comments[0].Value[1:])
	assert.Equal(t, 1, comments[0].Loc.Line)
}

func TestTokenizeNegativeInteger(t *testing.T) {
	tokens, _, err := Tokenize([]byte(`x = -42`), "test.gn")
	require.Nil(t, err)
	assert.Equal(t, Int, tokens[2].Type)
	assert.Equal(t, "-42", tokens[2].Value)
}

func TestTokenizeRejectsTabs(t *testing.T) {
	_, _, err := Tokenize([]byte("a\t= 1"), "test.gn")
	require.NotNil(t, err)
	assert.Contains(t, err.Msg, "Tabs")
}

func TestTokenizeRejectsUnknownSymbol(t *testing.T) {
	_, _, err := Tokenize([]byte("a = 1 ; b = 2"), "test.gn")
	require.NotNil(t, err)
}

func TestTokenizeTracksLines(t *testing.T) {
	tokens, _, err := Tokenize([]byte("a = 1\nbb = 2\n"), "test.gn")
	require.Nil(t, err)
	assert.Equal(t, 2, tokens[3].Loc.Line)
	assert.Equal(t, 1, tokens[3].Loc.Column)
	assert.Equal(t, "bb", tokens[3].Value)
}
