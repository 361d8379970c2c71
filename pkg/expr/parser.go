package expr

import "fmt"

// parser is a straightforward precedence-climbing (Pratt) descent over the token
// stream. Precedence, loosest to tightest: or, and, not, comparison, additive,
// multiplicative, unary, primary.
type parser struct {
	toks []token
	pos  int
}

// Parse compiles source into a Node ready for Eval. A syntax error is a plain error
// here; callers wrap it as an ExpressionError via pkg/errors so the error-kind
// taxonomy stays in one place.
func Parse(source string) (Node, error) {
	toks, err := newLexer(source).tokenize()
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.cur().kind != tokEOF {
		return nil, fmt.Errorf("unexpected trailing token at position %d", p.pos)
	}
	return node, nil
}

func (p *parser) cur() token { return p.toks[p.pos] }

func (p *parser) advance() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) expect(k tokenKind) error {
	if p.cur().kind != k {
		return fmt.Errorf("unexpected token at position %d", p.pos)
	}
	p.advance()
	return nil
}

func (p *parser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.cur().kind == tokOr {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: tokOr, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.cur().kind == tokAnd {
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: tokAnd, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseNot() (Node, error) {
	if p.cur().kind == tokNot {
		p.advance()
		arg, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return unaryNode{op: tokNot, arg: arg}, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (Node, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	switch p.cur().kind {
	case tokEq, tokNeq, tokLt, tokLte, tokGt, tokGte:
		op := p.advance().kind
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return binaryNode{op: op, left: left, right: right}, nil
	}
	return left, nil
}

func (p *parser) parseAdditive() (Node, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.cur().kind == tokPlus || p.cur().kind == tokMinus {
		op := p.advance().kind
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseMultiplicative() (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.cur().kind == tokStar || p.cur().kind == tokSlash {
		op := p.advance().kind
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (Node, error) {
	if p.cur().kind == tokMinus {
		p.advance()
		arg, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return unaryNode{op: tokMinus, arg: arg}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Node, error) {
	t := p.cur()
	switch t.kind {
	case tokInt:
		p.advance()
		return litNode{value: Int(t.ival)}, nil
	case tokFloat:
		p.advance()
		return litNode{value: Float(t.fval)}, nil
	case tokString:
		p.advance()
		return litNode{value: Str(t.text)}, nil
	case tokTrue:
		p.advance()
		return litNode{value: Bool(true)}, nil
	case tokFalse:
		p.advance()
		return litNode{value: Bool(false)}, nil
	case tokIdent:
		p.advance()
		return identNode{name: t.text}, nil
	case tokLParen:
		p.advance()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return inner, nil
	default:
		return nil, fmt.Errorf("unexpected token at position %d", p.pos)
	}
}
