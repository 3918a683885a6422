package lang

import (
	"github.com/please-build/gen/src/core"
)

// A TokenType classifies each individual lexical element emitted by the lexer.
type TokenType int

const (
	Invalid TokenType = iota
	// Literals & identifiers
	Int
	String
	Ident
	True
	False
	// Keywords
	If
	Else
	// Punctuation
	LeftParen
	RightParen
	LeftBracket
	RightBracket
	LeftBrace
	RightBrace
	Dot
	Comma
	// Operators
	Assign
	Plus
	Minus
	PlusAssign
	MinusAssign
	EqualEqual
	NotEqual
	LessEqual
	GreaterEqual
	Less
	Greater
	BooleanAnd
	BooleanOr
	Not
	// Comments are lexed but kept out of the main token stream.
	Comment
)

// tokenNames provides human-readable descriptions for error messages.
var tokenNames = map[TokenType]string{
	Invalid:      "invalid token",
	Int:          "integer",
	String:       "string",
	Ident:        "identifier",
	True:         "true",
	False:        "false",
	If:           "if",
	Else:         "else",
	LeftParen:    "(",
	RightParen:   ")",
	LeftBracket:  "[",
	RightBracket: "]",
	LeftBrace:    "{",
	RightBrace:   "}",
	Dot:          ".",
	Comma:        ",",
	Assign:       "=",
	Plus:         "+",
	Minus:        "-",
	PlusAssign:   "+=",
	MinusAssign:  "-=",
	EqualEqual:   "==",
	NotEqual:     "!=",
	LessEqual:    "<=",
	GreaterEqual: ">=",
	Less:         "<",
	Greater:      ">",
	BooleanAnd:   "&&",
	BooleanOr:    "||",
	Not:          "!",
	Comment:      "comment",
}

// String implements the fmt.Stringer interface.
func (t TokenType) String() string {
	if s, present := tokenNames[t]; present {
		return s
	}
	return "unknown token"
}

// A Token describes one lexical element of a build file.
type Token struct {
	// Type of the token.
	Type TokenType
	// The literal text. String tokens hold the raw contents between the
	// quotes, escapes and interpolations unprocessed.
	Value string
	// The position in the input that the token occurred at.
	Loc core.Location
}

// Range returns the source range this token covers.
// String tokens account for their surrounding quotes.
func (tok Token) Range() core.Range {
	length := len(tok.Value)
	if tok.Type == String {
		length += 2
	}
	return core.MakeRange(tok.Loc, length)
}

// IsAssignment returns true for the three assignment operators.
func (t TokenType) IsAssignment() bool {
	return t == Assign || t == PlusAssign || t == MinusAssign
}

// IsBinaryOp returns true for tokens usable as binary operators in expressions.
func (t TokenType) IsBinaryOp() bool {
	switch t {
	case Plus, Minus, EqualEqual, NotEqual, LessEqual, GreaterEqual, Less, Greater, BooleanAnd, BooleanOr:
		return true
	}
	return false
}

// Precedence returns the binding strength of a binary operator
// (higher number == more tightly binding).
func (t TokenType) Precedence() int {
	switch t {
	case BooleanOr:
		return 1
	case BooleanAnd:
		return 2
	case EqualEqual, NotEqual:
		return 3
	case LessEqual, GreaterEqual, Less, Greater:
		return 4
	case Plus, Minus:
		return 5
	}
	return 0
}
