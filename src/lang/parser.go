// The parser is a hand-written recursive-descent parser with precedence
// climbing for binary operators. It stops at the first error, which carries
// the offending range.

package lang

import (
	"strings"

	"github.com/please-build/gen/src/core"
)

// Parse converts source text into the AST of a whole file.
func Parse(input []byte, filename string) (*BlockNode, *core.Err) {
	tokens, comments, err := Tokenize(input, filename)
	if err != nil {
		return nil, err
	}
	eofLoc := core.Location{Filename: filename, Line: 1, Column: 1}
	if len(tokens) > 0 {
		eofLoc = tokens[len(tokens)-1].Range().End
	}
	p := &parser{tokens: tokens, eofLoc: eofLoc, docs: map[int]string{}}
	p.attachableComments(comments)
	statements, err := p.parseStatements(Invalid)
	if err != nil {
		return nil, err
	}
	if !p.atEnd() {
		return nil, p.unexpected("statement")
	}
	return &BlockNode{Statements: statements}, nil
}

type parser struct {
	tokens []Token
	pos    int
	eofLoc core.Location
	// Comment text by the line a documented statement would start on.
	docs map[int]string
}

// attachableComments indexes comment runs by the line following them, so a
// statement can pick up the comment block immediately above itself.
func (p *parser) attachableComments(comments []Token) {
	for i := 0; i < len(comments); {
		j := i
		for j+1 < len(comments) && comments[j+1].Loc.Line == comments[j].Loc.Line+1 {
			j++
		}
		lines := make([]string, 0, j-i+1)
		for _, c := range comments[i : j+1] {
			lines = append(lines, strings.TrimPrefix(c.Value, " "))
		}
		p.docs[comments[j].Loc.Line+1] = strings.Join(lines, "\n")
		i = j + 1
	}
}

func (p *parser) atEnd() bool {
	return p.pos >= len(p.tokens)
}

func (p *parser) cur() Token {
	if p.atEnd() {
		return Token{Type: Invalid, Loc: p.eofLoc}
	}
	return p.tokens[p.pos]
}

func (p *parser) next() Token {
	tok := p.cur()
	p.pos++
	return tok
}

// accept consumes and returns true if the current token has the given type.
func (p *parser) accept(typ TokenType) (Token, bool) {
	if tok := p.cur(); tok.Type == typ {
		p.pos++
		return tok, true
	}
	return Token{}, false
}

// expect consumes a token of the given type or fails.
func (p *parser) expect(typ TokenType) (Token, *core.Err) {
	tok := p.cur()
	if tok.Type != typ {
		return Token{}, p.unexpected(typ.String())
	}
	p.pos++
	return tok, nil
}

func (p *parser) unexpected(expected string) *core.Err {
	tok := p.cur()
	if tok.Type == Invalid && p.atEnd() {
		return core.MakeErr(tok.Loc, "Unexpected end of file; expected %s", expected)
	}
	return core.MakeErr(tok.Loc, "Expected %s, got %s", expected, tok.Type).WithRange(tok.Range())
}

// parseStatements parses statements until the given closing token type
// (or end of input when the type is Invalid). The terminator is not consumed.
func (p *parser) parseStatements(until TokenType) ([]Node, *core.Err) {
	var statements []Node
	for !p.atEnd() && p.cur().Type != until {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		statements = append(statements, stmt)
	}
	return statements, nil
}

// parseStatement parses one statement: an assignment, a function call, or a condition.
func (p *parser) parseStatement() (Node, *core.Err) {
	switch tok := p.cur(); tok.Type {
	case If:
		return p.parseCondition()
	case Ident:
		p.pos++
		switch p.cur().Type {
		case LeftParen:
			return p.parseCall(tok)
		case Assign, PlusAssign, MinusAssign:
			return p.parseAssignment(&IdentifierNode{Tok: tok})
		case LeftBracket, Dot:
			lhs, err := p.parseAccessor(tok)
			if err != nil {
				return nil, err
			}
			if !p.cur().Type.IsAssignment() {
				return nil, p.unexpected("assignment operator")
			}
			return p.parseAssignment(lhs)
		}
		return nil, p.unexpected("assignment or function call")
	}
	return nil, p.unexpected("statement")
}

func (p *parser) parseAssignment(lhs Node) (Node, *core.Err) {
	op := p.next()
	rhs, err := p.parseExpression(0)
	if err != nil {
		return nil, err
	}
	n := &BinaryOpNode{Op: op, Left: lhs, Right: rhs}
	if doc, present := p.docs[lhs.Range().Begin.Line]; present {
		n.Comments = strings.Split(doc, "\n")
	}
	return n, nil
}

// parseCondition parses if (...) { ... } with optional else-if / else chaining.
func (p *parser) parseCondition() (Node, *core.Err) {
	ifTok := p.next()
	if _, err := p.expect(LeftParen); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression(0)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(RightParen); err != nil {
		return nil, err
	}
	then, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	n := &ConditionNode{IfTok: ifTok, Cond: cond, Then: then}
	if _, ok := p.accept(Else); ok {
		if p.cur().Type == If {
			n.Else, err = p.parseCondition()
		} else {
			n.Else, err = p.parseBlock()
		}
		if err != nil {
			return nil, err
		}
	}
	return n, nil
}

// parseBlock parses { statements... }.
func (p *parser) parseBlock() (*BlockNode, *core.Err) {
	begin, err := p.expect(LeftBrace)
	if err != nil {
		return nil, err
	}
	statements, err := p.parseStatements(RightBrace)
	if err != nil {
		return nil, err
	}
	end, err := p.expect(RightBrace)
	if err != nil {
		return nil, err
	}
	return &BlockNode{Begin: begin, End: end, Statements: statements}, nil
}

// parseCall parses the argument list and optional block of a function call;
// the function name token has already been consumed.
func (p *parser) parseCall(function Token) (Node, *core.Err) {
	begin := p.next() // (
	args := &ListNode{Begin: begin}
	for p.cur().Type != RightParen {
		arg, err := p.parseExpression(0)
		if err != nil {
			return nil, err
		}
		args.Contents = append(args.Contents, arg)
		if _, ok := p.accept(Comma); !ok {
			break
		}
	}
	end, err := p.expect(RightParen)
	if err != nil {
		return nil, err
	}
	args.End = end
	call := &FunctionCallNode{Function: function, Args: args}
	if p.cur().Type == LeftBrace {
		if call.Block, err = p.parseBlock(); err != nil {
			return nil, err
		}
	}
	return call, nil
}

// parseExpression implements precedence climbing over binary operators.
func (p *parser) parseExpression(minPrec int) (Node, *core.Err) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op := p.cur()
		prec := op.Type.Precedence()
		if !op.Type.IsBinaryOp() || prec < minPrec {
			return left, nil
		}
		p.pos++
		right, err := p.parseExpression(prec + 1)
		if err != nil {
			return nil, err
		}
		left = &BinaryOpNode{Op: op, Left: left, Right: right}
	}
}

func (p *parser) parseUnary() (Node, *core.Err) {
	if op, ok := p.accept(Not); ok {
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryOpNode{Op: op, Operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Node, *core.Err) {
	switch tok := p.cur(); tok.Type {
	case Int, True, False:
		p.pos++
		return &LiteralNode{Tok: tok}, nil
	case String:
		p.pos++
		return p.parseStringLiteral(tok)
	case Ident:
		p.pos++
		switch p.cur().Type {
		case LeftParen:
			return p.parseCall(tok)
		case LeftBracket, Dot:
			return p.parseAccessor(tok)
		}
		return &IdentifierNode{Tok: tok}, nil
	case LeftParen:
		p.pos++
		inner, err := p.parseExpression(0)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RightParen); err != nil {
			return nil, err
		}
		return inner, nil
	case LeftBracket:
		return p.parseListLiteral()
	case LeftBrace:
		return p.parseBlock()
	}
	return nil, p.unexpected("expression")
}

// parseAccessor parses a[index] or a.member; the base token has been consumed.
func (p *parser) parseAccessor(base Token) (Node, *core.Err) {
	if _, ok := p.accept(LeftBracket); ok {
		index, err := p.parseExpression(0)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RightBracket); err != nil {
			return nil, err
		}
		return &AccessorNode{Base: base, Index: index}, nil
	}
	if _, ok := p.accept(Dot); ok {
		member, err := p.expect(Ident)
		if err != nil {
			return nil, err
		}
		return &AccessorNode{Base: base, Member: &IdentifierNode{Tok: member}}, nil
	}
	return nil, p.unexpected("[ or .")
}

// parseListLiteral parses [a, b, c] with optional trailing comma.
func (p *parser) parseListLiteral() (Node, *core.Err) {
	begin := p.next() // [
	list := &ListNode{Begin: begin}
	for p.cur().Type != RightBracket {
		item, err := p.parseExpression(0)
		if err != nil {
			return nil, err
		}
		list.Contents = append(list.Contents, item)
		if _, ok := p.accept(Comma); !ok {
			break
		}
	}
	end, err := p.expect(RightBracket)
	if err != nil {
		return nil, err
	}
	list.End = end
	return list, nil
}

// parseStringLiteral splits a raw string token into literal chunks and
// embedded $identifier / ${expression} interpolations.
func (p *parser) parseStringLiteral(tok Token) (Node, *core.Err) {
	n := &StringNode{Tok: tok}
	raw := tok.Value
	var literal strings.Builder
	// Column of raw[i] in the original source; +1 steps over the opening quote.
	colOf := func(i int) core.Location {
		loc := tok.Loc
		loc.Column += i + 1
		return loc
	}
	flush := func() {
		if literal.Len() > 0 {
			n.Segments = append(n.Segments, StringSegment{Literal: literal.String()})
			literal.Reset()
		}
	}
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c == '\\' && i+1 < len(raw) {
			// Only \" \$ \\ are escapes; any other backslash is literal.
			if next := raw[i+1]; next == '"' || next == '$' || next == '\\' {
				literal.WriteByte(next)
			} else {
				literal.WriteByte(c)
				literal.WriteByte(next)
			}
			i++
			continue
		}
		if c != '$' {
			literal.WriteByte(c)
			continue
		}
		if i+1 >= len(raw) {
			return nil, core.MakeErr(colOf(i), "'$' must be followed by an identifier or {").WithRange(tok.Range())
		}
		if raw[i+1] == '{' {
			depth := 1
			j := i + 2
			for ; j < len(raw) && depth > 0; j++ {
				switch raw[j] {
				case '{':
					depth++
				case '}':
					depth--
				}
			}
			if depth != 0 {
				return nil, core.MakeErr(colOf(i), "Unterminated ${ in string").WithRange(tok.Range())
			}
			exprLoc := colOf(i + 2)
			expr, err := parseEmbeddedExpression(raw[i+2:j-1], exprLoc)
			if err != nil {
				return nil, err
			}
			flush()
			n.Segments = append(n.Segments, StringSegment{Expr: expr, Loc: exprLoc})
			i = j - 1
			continue
		}
		j := i + 1
		for j < len(raw) && isIdentCont(raw[j]) {
			j++
		}
		if j == i+1 {
			return nil, core.MakeErr(colOf(i), "'$' must be followed by an identifier or {").WithRange(tok.Range())
		}
		flush()
		n.Segments = append(n.Segments, StringSegment{Ident: raw[i+1 : j], Loc: colOf(i)})
		i = j - 1
	}
	flush()
	return n, nil
}

// parseEmbeddedExpression parses a ${...} body, relocating its tokens so
// errors point into the enclosing string literal.
func parseEmbeddedExpression(src string, base core.Location) (Node, *core.Err) {
	tokens, _, err := Tokenize([]byte(src), base.Filename)
	if err != nil {
		return nil, err
	}
	for i := range tokens {
		tokens[i].Loc.Line = base.Line
		tokens[i].Loc.Column += base.Column - 1
	}
	p := &parser{tokens: tokens, eofLoc: base, docs: map[int]string{}}
	expr, perr := p.parseExpression(0)
	if perr != nil {
		return nil, perr
	}
	if !p.atEnd() {
		return nil, core.MakeErr(p.cur().Loc, "Unexpected %s in ${ } expression", p.cur().Type)
	}
	return expr, nil
}
