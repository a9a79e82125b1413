package nix

import (
	"errors"
	"fmt"
)

// ErrSyntax is matched by every *ParseError.
var ErrSyntax = errors.New("syntax error")

// ParseError reports malformed input at a source position.
type ParseError struct {
	Line   int
	Column int
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d, column %d: %s", e.Line, e.Column, e.Msg)
}

func (e *ParseError) Unwrap() error { return ErrSyntax }

func newParseError(pos Position, format string, args ...any) *ParseError {
	return &ParseError{Line: pos.Line, Column: pos.Column, Msg: fmt.Sprintf(format, args...)}
}

// bailout carries a *ParseError out of the recursive descent.
type bailout struct{ err *ParseError }

// Parse parses a complete Nix expression.
func Parse(src []byte) (expr Expression, err error) {
	tokens, err := lex(src)
	if err != nil {
		return nil, err
	}

	p := &parser{tokens: tokens}
	defer func() {
		if r := recover(); r != nil {
			b, ok := r.(bailout)
			if !ok {
				panic(r)
			}
			expr, err = nil, b.err
		}
	}()

	expr = p.parseExpr()
	p.expect(tEOF)
	return expr, nil
}

type parser struct {
	tokens  []token
	i       int
	prevEnd Position
}

func (p *parser) peek() token { return p.peekAt(0) }

func (p *parser) peekAt(n int) token {
	if p.i+n >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.i+n]
}

func (p *parser) next() token {
	t := p.peek()
	if p.i < len(p.tokens)-1 {
		p.i++
	}
	p.prevEnd = t.span.End
	return t
}

func (p *parser) expect(typ tokenType) token {
	t := p.peek()
	if t.typ != typ {
		p.fail(t, "expected %s, found %s", typ, t.typ)
	}
	return p.next()
}

func (p *parser) fail(t token, format string, args ...any) {
	panic(bailout{newParseError(t.span.Start, format, args...)})
}

func (p *parser) from(start Position) Span {
	return Span{Start: start, End: p.prevEnd}
}

func (p *parser) parseExpr() Expression {
	switch t := p.peek(); t.typ {
	case tIdent:
		if next := p.peekAt(1).typ; next == tColon || next == tAt {
			return p.parseFunction()
		}
	case tLBrace:
		if p.isFormals() {
			return p.parseFunction()
		}
	case tLet:
		if p.peekAt(1).typ != tLBrace {
			return p.parseLet()
		}
	case tWith:
		p.next()
		scope := p.parseExpr()
		p.expect(tSemicolon)
		body := p.parseExpr()
		return &With{Scope: scope, Body: body, Span: p.from(t.span.Start)}
	case tAssert:
		p.next()
		cond := p.parseExpr()
		p.expect(tSemicolon)
		body := p.parseExpr()
		return &Assert{Condition: cond, Body: body, Span: p.from(t.span.Start)}
	case tIf:
		p.next()
		cond := p.parseExpr()
		p.expect(tThen)
		then := p.parseExpr()
		p.expect(tElse)
		els := p.parseExpr()
		return &IfThenElse{Condition: cond, Then: then, Else: els, Span: p.from(t.span.Start)}
	}
	return p.parseOp(0)
}

// isFormals decides whether the '{' under the cursor opens a function head.
func (p *parser) isFormals() bool {
	switch p.peekAt(1).typ {
	case tRBrace:
		next := p.peekAt(2).typ
		return next == tColon || next == tAt
	case tEllipsis:
		return true
	case tIdent:
		switch p.peekAt(2).typ {
		case tComma, tQuestion:
			return true
		case tRBrace:
			next := p.peekAt(3).typ
			return next == tColon || next == tAt
		}
	}
	return false
}

func (p *parser) parseFunction() Expression {
	start := p.peek().span.Start
	var head FunctionHead

	if p.peek().typ == tIdent {
		head.Identifier = p.next().text
		if p.peek().typ == tAt {
			p.next()
			p.parseFormals(&head)
		}
	} else {
		p.parseFormals(&head)
		if p.peek().typ == tAt {
			p.next()
			head.Identifier = p.expect(tIdent).text
		}
	}

	p.expect(tColon)
	body := p.parseExpr()
	return &Function{Head: head, Body: body, Span: p.from(start)}
}

func (p *parser) parseFormals(head *FunctionHead) {
	p.expect(tLBrace)
	head.Destructured = true
	for p.peek().typ != tRBrace {
		if p.peek().typ == tEllipsis {
			p.next()
			head.Ellipsis = true
		} else {
			id := p.expect(tIdent)
			f := Formal{Name: id.text}
			if p.peek().typ == tQuestion {
				p.next()
				f.Default = p.parseExpr()
			}
			f.Span = p.from(id.span.Start)
			head.Formals = append(head.Formals, f)
		}
		if p.peek().typ != tComma {
			break
		}
		p.next()
	}
	p.expect(tRBrace)
}

func (p *parser) parseLet() Expression {
	start := p.expect(tLet).span.Start
	bindings := p.parseBindings(tIn)
	p.expect(tIn)
	body := p.parseExpr()
	return &LetIn{Bindings: bindings, Body: body, Span: p.from(start)}
}

type binaryOp struct {
	power int
	right bool
}

const (
	notPower = 7
	hasPower = 11
)

var binaryOps = map[tokenType]binaryOp{
	tImpl:     {1, true},
	tOr:       {2, false},
	tAnd:      {3, false},
	tEq:       {4, false},
	tNeq:      {4, false},
	tLt:       {5, false},
	tLte:      {5, false},
	tGt:       {5, false},
	tGte:      {5, false},
	tUpdate:   {6, true},
	tPlus:     {8, false},
	tMinus:    {8, false},
	tStar:     {9, false},
	tSlash:    {9, false},
	tConcat:   {10, true},
	tQuestion: {hasPower, false},
}

func (p *parser) parseOp(minPower int) Expression {
	left := p.parseUnary()
	for {
		t := p.peek()
		op, ok := binaryOps[t.typ]
		if !ok || op.power <= minPower {
			return left
		}
		p.next()
		start := left.Range().Start

		if t.typ == tQuestion {
			path := p.parseAttrPath()
			left = &HasAttribute{Target: left, Path: path, Span: p.from(start)}
			continue
		}

		next := op.power
		if op.right {
			next--
		}
		right := p.parseOp(next)
		left = &Binary{Operator: t.text, Left: left, Right: right, Span: p.from(start)}
	}
}

func (p *parser) parseUnary() Expression {
	switch t := p.peek(); t.typ {
	case tNot:
		p.next()
		operand := p.parseOp(notPower)
		return &Unary{Operator: "!", Operand: operand, Span: p.from(t.span.Start)}
	case tMinus:
		p.next()
		var operand Expression
		if p.peek().typ == tMinus {
			operand = p.parseUnary()
		} else {
			operand = p.parseApply()
		}
		return &Unary{Operator: "-", Operand: operand, Span: p.from(t.span.Start)}
	}
	return p.parseApply()
}

func (p *parser) parseApply() Expression {
	fn := p.parseSelect()
	for p.startsOperand() {
		arg := p.parseSelect()
		fn = &Apply{Function: fn, Argument: arg, Span: p.from(fn.Range().Start)}
	}
	return fn
}

func (p *parser) startsOperand() bool {
	switch p.peek().typ {
	case tIdent, tInt, tFloat, tPath, tSearchPath, tURI,
		tStringOpen, tIndOpen, tLParen, tLBracket, tLBrace, tRec:
		return true
	case tLet:
		return p.peekAt(1).typ == tLBrace
	}
	return false
}

func (p *parser) parseSelect() Expression {
	target := p.parseSimple()
	if p.peek().typ != tDot {
		return target
	}
	p.next()
	path := p.parseAttrPath()

	var def Expression
	if p.peek().typ == tOrKeyword {
		p.next()
		def = p.parseSelect()
	}
	return &Select{Target: target, Path: path, Default: def, Span: p.from(target.Range().Start)}
}

func (p *parser) parseAttrPath() []Part {
	parts := []Part{p.parseAttr()}
	for p.peek().typ == tDot {
		p.next()
		parts = append(parts, p.parseAttr())
	}
	return parts
}

func (p *parser) parseAttr() Part {
	t := p.peek()
	switch t.typ {
	case tIdent, tOrKeyword:
		p.next()
		return &Raw{Content: t.text, Span: t.span}
	case tStringOpen:
		s := p.parseString()
		if len(s.Parts) == 1 {
			if raw, ok := s.Parts[0].(*Raw); ok {
				return &Raw{Content: raw.Content, Span: s.Span}
			}
		}
		return &Interpolation{Expression: s, Span: s.Span}
	case tInterpOpen:
		p.next()
		e := p.parseExpr()
		p.expect(tInterpClose)
		return &Interpolation{Expression: e, Span: p.from(t.span.Start)}
	}
	p.fail(t, "expected attribute name, found %s", t.typ)
	return nil
}

func (p *parser) parseSimple() Expression {
	t := p.peek()
	switch t.typ {
	case tIdent:
		p.next()
		return &Identifier{Name: t.text, Span: t.span}
	case tInt:
		p.next()
		return &Integer{Value: t.text, Span: t.span}
	case tFloat:
		p.next()
		return &Float{Value: t.text, Span: t.span}
	case tPath:
		p.next()
		return &Path{Value: t.text, Span: t.span}
	case tSearchPath:
		p.next()
		return &SearchPath{Value: t.text[1 : len(t.text)-1], Span: t.span}
	case tURI:
		p.next()
		return &URI{Value: t.text, Span: t.span}
	case tStringOpen, tIndOpen:
		return p.parseString()
	case tLParen:
		p.next()
		e := p.parseExpr()
		p.expect(tRParen)
		return e
	case tLBracket:
		p.next()
		list := &List{}
		for p.peek().typ != tRBracket {
			if p.peek().typ == tEOF {
				p.fail(p.peek(), "unterminated list")
			}
			list.Elements = append(list.Elements, p.parseSelect())
		}
		p.next()
		list.Span = p.from(t.span.Start)
		return list
	case tRec, tLet:
		p.next()
		return p.parseMap(t.span.Start, true)
	case tLBrace:
		return p.parseMap(t.span.Start, false)
	}
	p.fail(t, "unexpected %s", t.typ)
	return nil
}

func (p *parser) parseMap(start Position, recursive bool) Expression {
	p.expect(tLBrace)
	bindings := p.parseBindings(tRBrace)
	p.expect(tRBrace)
	return &Map{Recursive: recursive, Bindings: bindings, Span: p.from(start)}
}

func (p *parser) parseString() *String {
	open := p.next()
	closer := tStringClose
	if open.typ == tIndOpen {
		closer = tIndClose
	}

	s := &String{Indented: open.typ == tIndOpen}
	for {
		t := p.peek()
		switch t.typ {
		case tStringText:
			p.next()
			s.Parts = append(s.Parts, &Raw{Content: t.value, Span: t.span})
		case tInterpOpen:
			p.next()
			e := p.parseExpr()
			p.expect(tInterpClose)
			s.Parts = append(s.Parts, &Interpolation{Expression: e, Span: p.from(t.span.Start)})
		case closer:
			p.next()
			if len(s.Parts) == 0 {
				s.Parts = []Part{&Raw{Span: Span{Start: t.span.Start, End: t.span.Start}}}
			}
			s.Span = p.from(open.span.Start)
			return s
		default:
			p.fail(t, "unexpected %s in string", t.typ)
		}
	}
}

func (p *parser) parseBindings(until tokenType) []Binding {
	var bindings []Binding
	for {
		t := p.peek()
		if t.typ == until || t.typ == tEOF {
			return bindings
		}

		if t.typ == tInherit {
			p.next()
			in := &Inherit{}
			if p.peek().typ == tLParen {
				p.next()
				in.From = p.parseExpr()
				p.expect(tRParen)
			}
			for p.peek().typ != tSemicolon {
				in.Attributes = append(in.Attributes, p.parseAttr())
			}
			p.expect(tSemicolon)
			in.Span = p.from(t.span.Start)
			bindings = append(bindings, in)
			continue
		}

		from := p.parseAttrPath()
		p.expect(tAssign)
		to := p.parseExpr()
		p.expect(tSemicolon)
		bindings = append(bindings, &KeyValue{From: from, To: to, Span: p.from(t.span.Start)})
	}
}
