package formula

import (
	"fmt"
	"strconv"
)

// ParseError describes a syntax problem in a formula string. Pos is a byte
// offset into the original text. A formula that fails to parse is unusable;
// callers skip the calculation group that declared it and move on.
type ParseError struct {
	Pos int
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("formula: parse error at offset %d: %s", e.Pos, e.Msg)
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokIdent
	tokOp
	tokLParen
	tokRParen
	tokAssign
)

type token struct {
	kind tokenKind
	pos  int
	text string
}

// Parse parses a formula of the form "target = expr". It has no side
// effects and never panics; malformed input yields a *ParseError.
func Parse(text string) (*Formula, error) {
	toks, err := lex(text)
	if err != nil {
		return nil, err
	}

	p := &parser{toks: toks}

	target := p.peek()
	if target.kind != tokIdent {
		return nil, &ParseError{Pos: target.pos, Msg: "formula must start with a target field name"}
	}
	p.advance()

	if eq := p.peek(); eq.kind != tokAssign {
		return nil, &ParseError{Pos: eq.pos, Msg: "expected '=' after target field"}
	}
	p.advance()

	if p.peek().kind == tokEOF {
		return nil, &ParseError{Pos: p.peek().pos, Msg: "empty expression"}
	}

	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}

	if tok := p.peek(); tok.kind != tokEOF {
		return nil, &ParseError{Pos: tok.pos, Msg: fmt.Sprintf("unexpected %q after expression", tok.text)}
	}

	return &Formula{Target: target.text, Expr: expr, text: text}, nil
}

func lex(input string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(input) {
		c := input[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			i++
		case c == '+' || c == '-' || c == '*' || c == '/':
			toks = append(toks, token{kind: tokOp, pos: i, text: string(c)})
			i++
		case c == '(':
			toks = append(toks, token{kind: tokLParen, pos: i, text: "("})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokRParen, pos: i, text: ")"})
			i++
		case c == '=':
			toks = append(toks, token{kind: tokAssign, pos: i, text: "="})
			i++
		case c >= '0' && c <= '9':
			start := i
			for i < len(input) && input[i] >= '0' && input[i] <= '9' {
				i++
			}
			if i < len(input) && input[i] == '.' {
				i++
				if i >= len(input) || input[i] < '0' || input[i] > '9' {
					return nil, &ParseError{Pos: start, Msg: "malformed number"}
				}
				for i < len(input) && input[i] >= '0' && input[i] <= '9' {
					i++
				}
			}
			toks = append(toks, token{kind: tokNumber, pos: start, text: input[start:i]})
		case isIdentStart(c):
			start := i
			for i < len(input) && isIdentPart(input[i]) {
				i++
			}
			toks = append(toks, token{kind: tokIdent, pos: start, text: input[start:i]})
		default:
			return nil, &ParseError{Pos: i, Msg: fmt.Sprintf("unexpected character %q", c)}
		}
	}
	toks = append(toks, token{kind: tokEOF, pos: len(input)})
	return toks, nil
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

// parser is a recursive-descent parser over the token stream.
// Grammar, lowest precedence first:
//
//	expr   = term   { ("+" | "-") term }
//	term   = factor { ("*" | "/") factor }
//	factor = NUMBER | IDENT | "(" expr ")"
type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) advance() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) parseExpr() (Expr, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.kind != tokOp || (tok.text != "+" && tok.text != "-") {
			return left, nil
		}
		p.advance()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: Op(tok.text[0]), Left: left, Right: right}
	}
}

func (p *parser) parseTerm() (Expr, error) {
	left, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.kind != tokOp || (tok.text != "*" && tok.text != "/") {
			return left, nil
		}
		p.advance()
		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: Op(tok.text[0]), Left: left, Right: right}
	}
}

func (p *parser) parseFactor() (Expr, error) {
	tok := p.peek()
	switch tok.kind {
	case tokNumber:
		p.advance()
		v, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return nil, &ParseError{Pos: tok.pos, Msg: "malformed number"}
		}
		return &NumberLit{Value: v}, nil
	case tokIdent:
		p.advance()
		return &FieldRef{Name: tok.text}, nil
	case tokLParen:
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if closing := p.peek(); closing.kind != tokRParen {
			return nil, &ParseError{Pos: closing.pos, Msg: "missing closing parenthesis"}
		}
		p.advance()
		return e, nil
	case tokOp:
		return nil, &ParseError{Pos: tok.pos, Msg: fmt.Sprintf("unexpected operator %q", tok.text)}
	case tokEOF:
		return nil, &ParseError{Pos: tok.pos, Msg: "expression ends with an operator or is incomplete"}
	default:
		return nil, &ParseError{Pos: tok.pos, Msg: fmt.Sprintf("unexpected %q", tok.text)}
	}
}
