package filter

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// TokenKind identifies a lexical token class.
type TokenKind int

const (
	TokenEOF TokenKind = iota
	TokenIdent
	TokenString
	TokenNumber
	TokenRegex
	TokenOperator
	TokenAnd
	TokenOr
	TokenNot
	TokenLParen
	TokenRParen
	TokenLBracket
	TokenRBracket
	TokenComma
	TokenPipe
	TokenStar
)

var tokenNames = map[TokenKind]string{
	TokenEOF:      "end of input",
	TokenIdent:    "identifier",
	TokenString:   "string",
	TokenNumber:   "number",
	TokenRegex:    "pattern",
	TokenOperator: "operator",
	TokenAnd:      "'&&'",
	TokenOr:       "'||'",
	TokenNot:      "'!'",
	TokenLParen:   "'('",
	TokenRParen:   "')'",
	TokenLBracket: "'['",
	TokenRBracket: "']'",
	TokenComma:    "','",
	TokenPipe:     "'|'",
	TokenStar:     "'*'",
}

func (k TokenKind) String() string {
	if name, ok := tokenNames[k]; ok {
		return name
	}
	return fmt.Sprintf("token(%d)", int(k))
}

// Token is one lexeme. Text holds the unescaped value for strings.
type Token struct {
	Kind   TokenKind
	Text   string
	Offset int
}

// Is reports whether the token is the identifier word, ignoring case.
func (t Token) Is(word string) bool {
	return t.Kind == TokenIdent && strings.EqualFold(t.Text, word)
}

// Describe renders the token for error messages.
func (t Token) Describe() string {
	switch t.Kind {
	case TokenEOF:
		return "end of input"
	case TokenString:
		return fmt.Sprintf("%q", t.Text)
	default:
		return fmt.Sprintf("'%s'", t.Text)
	}
}

// Tokenize splits src into tokens terminated by a TokenEOF. The value that
// follows a match/nmatch operator is lexed raw up to the next whitespace.
func Tokenize(src string) ([]Token, error) {
	lx := &lexer{src: src}
	for {
		tok, err := lx.next()
		if err != nil {
			return nil, err
		}
		lx.toks = append(lx.toks, tok)
		if tok.Kind == TokenEOF {
			return lx.toks, nil
		}
	}
}

type lexer struct {
	src  string
	pos  int
	toks []Token
}

func (lx *lexer) next() (Token, error) {
	lx.skipSpace()
	if lx.pos >= len(lx.src) {
		return Token{Kind: TokenEOF, Offset: lx.pos}, nil
	}
	if lx.expectsPattern() {
		return lx.pattern()
	}

	start := lx.pos
	c := lx.src[lx.pos]
	switch {
	case c == '"':
		return lx.quoted()
	case isDigit(c) || (c == '-' && lx.pos+1 < len(lx.src) && isDigit(lx.src[lx.pos+1])):
		return lx.number(), nil
	case isIdentStart(c):
		return lx.ident(), nil
	}

	two := ""
	if lx.pos+1 < len(lx.src) {
		two = lx.src[lx.pos : lx.pos+2]
	}
	switch two {
	case "==", "!=", "<=", ">=", "=~", "!~":
		lx.pos += 2
		return Token{Kind: TokenOperator, Text: two, Offset: start}, nil
	case "&&":
		lx.pos += 2
		return Token{Kind: TokenAnd, Text: two, Offset: start}, nil
	case "||":
		lx.pos += 2
		return Token{Kind: TokenOr, Text: two, Offset: start}, nil
	}

	lx.pos++
	switch c {
	case '=', '<', '>':
		return Token{Kind: TokenOperator, Text: string(c), Offset: start}, nil
	case '!':
		return Token{Kind: TokenNot, Text: "!", Offset: start}, nil
	case '(':
		return Token{Kind: TokenLParen, Text: "(", Offset: start}, nil
	case ')':
		return Token{Kind: TokenRParen, Text: ")", Offset: start}, nil
	case '[':
		return Token{Kind: TokenLBracket, Text: "[", Offset: start}, nil
	case ']':
		return Token{Kind: TokenRBracket, Text: "]", Offset: start}, nil
	case ',':
		return Token{Kind: TokenComma, Text: ",", Offset: start}, nil
	case '|':
		return Token{Kind: TokenPipe, Text: "|", Offset: start}, nil
	case '*':
		return Token{Kind: TokenStar, Text: "*", Offset: start}, nil
	}

	r, _ := utf8.DecodeRuneInString(lx.src[start:])
	return Token{}, &SyntaxError{Offset: start, Msg: fmt.Sprintf("unexpected character %q", r)}
}

// expectsPattern reports whether the previous token is a match operator
// applied to a field.
func (lx *lexer) expectsPattern() bool {
	n := len(lx.toks)
	if n == 0 {
		return false
	}
	last := lx.toks[n-1]
	if last.Kind == TokenOperator && (last.Text == "=~" || last.Text == "!~") {
		return true
	}
	if (last.Is("match") || last.Is("nmatch")) && n >= 2 {
		return lx.toks[n-2].Kind == TokenIdent
	}
	return false
}

// pattern lexes a regular expression value. Quoted patterns use string
// escaping; bare patterns run to the next whitespace, minus any trailing
// ')' that has no opening partner inside the pattern.
func (lx *lexer) pattern() (Token, error) {
	if lx.src[lx.pos] == '"' {
		tok, err := lx.quoted()
		if err != nil {
			return tok, err
		}
		tok.Kind = TokenRegex
		return tok, nil
	}

	start := lx.pos
	for lx.pos < len(lx.src) && !isSpace(lx.src[lx.pos]) {
		lx.pos++
	}
	raw := lx.src[start:lx.pos]
	for excess := unbalancedClosers(raw); excess > 0 && strings.HasSuffix(raw, ")"); excess-- {
		raw = raw[:len(raw)-1]
		lx.pos--
	}
	return Token{Kind: TokenRegex, Text: raw, Offset: start}, nil
}

func unbalancedClosers(s string) int {
	depth, excess := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '(':
			depth++
		case ')':
			if depth == 0 {
				excess++
			} else {
				depth--
			}
		}
	}
	return excess
}

func (lx *lexer) quoted() (Token, error) {
	start := lx.pos
	lx.pos++ // opening quote
	var sb strings.Builder
	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]
		switch c {
		case '"':
			lx.pos++
			return Token{Kind: TokenString, Text: sb.String(), Offset: start}, nil
		case '\\':
			if lx.pos+1 >= len(lx.src) {
				lx.pos++
				continue
			}
			esc := lx.src[lx.pos+1]
			switch esc {
			case '"', '\\':
				sb.WriteByte(esc)
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			default:
				sb.WriteByte('\\')
				sb.WriteByte(esc)
			}
			lx.pos += 2
		default:
			sb.WriteByte(c)
			lx.pos++
		}
	}
	return Token{}, &SyntaxError{Offset: start, Msg: "unterminated string literal"}
}

// number lexes digits with an optional sign, fraction and unit suffix
// ("100ms"). Interpretation is left to the parser.
func (lx *lexer) number() Token {
	start := lx.pos
	if lx.src[lx.pos] == '-' {
		lx.pos++
	}
	for lx.pos < len(lx.src) && (isDigit(lx.src[lx.pos]) || lx.src[lx.pos] == '.') {
		lx.pos++
	}
	for lx.pos < len(lx.src) && isIdentPart(lx.src[lx.pos]) {
		lx.pos++
	}
	return Token{Kind: TokenNumber, Text: lx.src[start:lx.pos], Offset: start}
}

func (lx *lexer) ident() Token {
	start := lx.pos
	for lx.pos < len(lx.src) && isIdentPart(lx.src[lx.pos]) {
		lx.pos++
	}
	return Token{Kind: TokenIdent, Text: lx.src[start:lx.pos], Offset: start}
}

func (lx *lexer) skipSpace() {
	for lx.pos < len(lx.src) {
		r, size := utf8.DecodeRuneInString(lx.src[lx.pos:])
		if !unicode.IsSpace(r) {
			return
		}
		lx.pos += size
	}
}

func isSpace(c byte) bool      { return c == ' ' || c == '\t' || c == '\n' || c == '\r' }
func isDigit(c byte) bool      { return c >= '0' && c <= '9' }
func isIdentStart(c byte) bool { return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c) || c == '.' || c == '-'
}
