package lang

import (
	"strconv"
	"strings"
)

// A ValueType tags which kind a Value currently holds.
type ValueType int

const (
	NoneType ValueType = iota
	BoolType
	IntType
	StringType
	ListType
	ScopeType
)

// String implements the fmt.Stringer interface.
func (t ValueType) String() string {
	switch t {
	case BoolType:
		return "boolean"
	case IntType:
		return "integer"
	case StringType:
		return "string"
	case ListType:
		return "list"
	case ScopeType:
		return "scope"
	}
	return "none"
}

// A Value is the result of evaluating an expression: a tagged variant over
// the language's types. The zero Value is none.
//
// Values have copy-on-assign semantics; storing one into a scope deep-copies
// lists and scopes so later mutations of the source can't be observed.
type Value struct {
	Type ValueType
	Bool bool
	Int  int64
	Str  string
	List []Value
	// Scope-typed values reference the scope they were built from.
	Scope *Scope
	// The expression that produced this value, for error reporting.
	Origin Node
}

// NoneValue returns the none value originating at the given node.
func NoneValue(origin Node) Value {
	return Value{Type: NoneType, Origin: origin}
}

// BoolValue constructs a boolean value.
func BoolValue(b bool, origin Node) Value {
	return Value{Type: BoolType, Bool: b, Origin: origin}
}

// IntValue constructs an integer value.
func IntValue(i int64, origin Node) Value {
	return Value{Type: IntType, Int: i, Origin: origin}
}

// StringValue constructs a string value.
func StringValue(s string, origin Node) Value {
	return Value{Type: StringType, Str: s, Origin: origin}
}

// ListValue constructs a list value. The slice is taken over, not copied.
func ListValue(items []Value, origin Node) Value {
	return Value{Type: ListType, List: items, Origin: origin}
}

// ScopeValue constructs a scope-typed value.
func ScopeValue(s *Scope, origin Node) Value {
	return Value{Type: ScopeType, Scope: s, Origin: origin}
}

// IsNone returns true for the none value.
func (v Value) IsNone() bool {
	return v.Type == NoneType
}

// Copy returns a value independent of the receiver: lists and scopes are
// deep-copied, everything else is already immutable.
func (v Value) Copy() Value {
	switch v.Type {
	case ListType:
		list := make([]Value, len(v.List))
		for i, item := range v.List {
			list[i] = item.Copy()
		}
		v.List = list
	case ScopeType:
		v.Scope = v.Scope.Copy()
	}
	return v
}

// Equals implements the language's == operator.
// Scopes compare by identity; the language forbids comparing them anyway.
func (v Value) Equals(other Value) bool {
	if v.Type != other.Type {
		return false
	}
	switch v.Type {
	case NoneType:
		return true
	case BoolType:
		return v.Bool == other.Bool
	case IntType:
		return v.Int == other.Int
	case StringType:
		return v.Str == other.Str
	case ListType:
		if len(v.List) != len(other.List) {
			return false
		}
		for i := range v.List {
			if !v.List[i].Equals(other.List[i]) {
				return false
			}
		}
		return true
	default:
		return v.Scope == other.Scope
	}
}

// ToString renders the value. When quoted is true, strings gain surrounding
// quotes and escaping; this form round-trips through the parser and is used
// for serialisation (args.gn) and debug output. Lists always render in the
// bracketed comma form, with their elements quoted.
func (v Value) ToString(quoted bool) string {
	switch v.Type {
	case NoneType:
		return "<void>"
	case BoolType:
		if v.Bool {
			return "true"
		}
		return "false"
	case IntType:
		return strconv.FormatInt(v.Int, 10)
	case StringType:
		if quoted {
			return quoteString(v.Str)
		}
		return v.Str
	case ListType:
		items := make([]string, len(v.List))
		for i, item := range v.List {
			items[i] = item.ToString(true)
		}
		return "[" + strings.Join(items, ", ") + "]"
	default:
		return v.Scope.describe()
	}
}

func quoteString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '"', '\\', '$':
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}
