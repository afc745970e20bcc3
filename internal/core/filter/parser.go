package filter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Parser is a recursive-descent parser over a token stream. It is exported
// so query languages embedding filter expressions can share one stream.
type Parser struct {
	toks []Token
	pos  int
}

func NewParser(toks []Token) *Parser {
	return &Parser{toks: toks}
}

func (p *Parser) Peek() Token { return p.PeekAt(0) }

// PeekAt looks n tokens ahead without consuming. It returns the EOF token
// past the end.
func (p *Parser) PeekAt(n int) Token {
	if i := p.pos + n; i < len(p.toks) {
		return p.toks[i]
	}
	return p.toks[len(p.toks)-1]
}

func (p *Parser) Next() Token {
	tok := p.Peek()
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return tok
}

// Expect consumes a token of the given kind or fails naming what was wanted.
func (p *Parser) Expect(kind TokenKind, want string) (Token, error) {
	tok := p.Peek()
	if tok.Kind != kind {
		return tok, p.Errorf(tok, "expected %s, found %s", want, tok.Describe())
	}
	return p.Next(), nil
}

// ExpectWord consumes an identifier matching word case-insensitively.
func (p *Parser) ExpectWord(word string) (Token, error) {
	tok := p.Peek()
	if !tok.Is(word) {
		return tok, p.Errorf(tok, "expected '%s', found %s", word, tok.Describe())
	}
	return p.Next(), nil
}

func (p *Parser) Errorf(tok Token, format string, args ...interface{}) error {
	return &SyntaxError{Offset: tok.Offset, Msg: fmt.Sprintf(format, args...)}
}

// ParseExpr parses a boolean expression and stops at the first token that
// cannot continue it. AND and OR share one precedence level and associate
// left.
func (p *Parser) ParseExpr() (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.isConnective("and", TokenAnd):
			p.Next()
			right, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			left = &And{Left: left, Right: right}
		case p.isConnective("or", TokenOr):
			p.Next()
			right, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			left = &Or{Left: left, Right: right}
		default:
			return left, nil
		}
	}
}

// isConnective treats a keyword as a field name when an operator follows it.
func (p *Parser) isConnective(word string, symbol TokenKind) bool {
	tok := p.Peek()
	if tok.Kind == symbol {
		return true
	}
	if !tok.Is(word) {
		return false
	}
	_, isOp := LookupOp(p.PeekAt(1))
	return !isOp
}

func (p *Parser) parseUnary() (Node, error) {
	if p.isConnective("not", TokenNot) {
		p.Next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Not{Operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (Node, error) {
	tok := p.Peek()
	switch tok.Kind {
	case TokenLParen:
		p.Next()
		inner, err := p.ParseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.Expect(TokenRParen, "')'"); err != nil {
			return nil, err
		}
		return inner, nil
	case TokenIdent:
		return p.parseComparison()
	case TokenEOF:
		return nil, p.Errorf(tok, "unexpected end of input, expected a comparison")
	}
	return nil, p.Errorf(tok, "expected field name, found %s", tok.Describe())
}

func (p *Parser) parseComparison() (Node, error) {
	field := p.Next()
	opTok := p.Peek()
	op, ok := LookupOp(opTok)
	if !ok {
		return nil, p.Errorf(opTok, "expected operator after %q, found %s", field.Text, opTok.Describe())
	}
	p.Next()

	cmp := &Compare{Field: field.Text, Op: op}
	switch op {
	case OpMatch, OpNMatch:
		tok := p.Peek()
		if tok.Kind != TokenRegex && tok.Kind != TokenString {
			return nil, p.Errorf(tok, "expected pattern, found %s", tok.Describe())
		}
		p.Next()
		re, err := regexp.Compile(tok.Text)
		if err != nil {
			return nil, p.Errorf(tok, "invalid pattern %q: %v", tok.Text, err)
		}
		cmp.Pattern = re
	case OpIn:
		list, err := p.parseList()
		if err != nil {
			return nil, err
		}
		cmp.List = list
	default:
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		cmp.Value = v
	}
	return cmp, nil
}

func (p *Parser) parseList() ([]interface{}, error) {
	open := p.Peek()
	var closer TokenKind
	switch open.Kind {
	case TokenLBracket:
		closer = TokenRBracket
	case TokenLParen:
		closer = TokenRParen
	default:
		return nil, p.Errorf(open, "expected '[' after 'in', found %s", open.Describe())
	}
	p.Next()

	list := []interface{}{}
	if p.Peek().Kind == closer {
		p.Next()
		return list, nil
	}
	for {
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		list = append(list, v)
		tok := p.Next()
		switch tok.Kind {
		case TokenComma:
			continue
		case closer:
			return list, nil
		}
		return nil, p.Errorf(tok, "expected ',' or closing bracket in list, found %s", tok.Describe())
	}
}

// parseValue reads a literal. Bare words other than true/false are strings.
func (p *Parser) parseValue() (interface{}, error) {
	tok := p.Peek()
	switch tok.Kind {
	case TokenString:
		p.Next()
		return tok.Text, nil
	case TokenNumber:
		p.Next()
		return ParseNumber(tok)
	case TokenIdent:
		p.Next()
		switch strings.ToLower(tok.Text) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return tok.Text, nil
	case TokenEOF:
		return nil, p.Errorf(tok, "unexpected end of input, expected a value")
	}
	return nil, p.Errorf(tok, "expected value, found %s", tok.Describe())
}

// ParseNumber converts a number token to int64 or float64.
func ParseNumber(tok Token) (interface{}, error) {
	if i, err := strconv.ParseInt(tok.Text, 10, 64); err == nil {
		return i, nil
	}
	if strings.ContainsAny(tok.Text, "eE") {
		return nil, &SyntaxError{Offset: tok.Offset, Msg: fmt.Sprintf("invalid number %q", tok.Text)}
	}
	if f, err := strconv.ParseFloat(tok.Text, 64); err == nil {
		return f, nil
	}
	return nil, &SyntaxError{Offset: tok.Offset, Msg: fmt.Sprintf("invalid number %q", tok.Text)}
}
