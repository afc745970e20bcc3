// Package nql compiles nQL query text into a Query tree.
//
// Supported forms:
//
//	<filter>
//	correlate <filter> with <filter> [within <duration>]
//	aggregate [(]<funcs>[)] [by <fields>] [where <filter>] [window <spec>]
//	show <fields>|* [where <filter>]
//	<stage> | <stage> | ...
package nql

import (
	"errors"
	"strings"
	"time"

	"github.com/aevon-lab/nqlflow/internal/core/filter"
)

// DefaultCorrelationWindow applies when a correlate query omits "within".
const DefaultCorrelationWindow = 100 * time.Millisecond

type parser struct {
	*filter.Parser
}

// Compile parses text into a Query. Errors are *CompileError.
func Compile(text string) (Query, error) {
	q, err := compile(text)
	if err != nil {
		var se *filter.SyntaxError
		if errors.As(err, &se) {
			return nil, &CompileError{Query: text, Offset: se.Offset, Message: se.Msg}
		}
		return nil, &CompileError{Query: text, Message: err.Error()}
	}
	return q, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(text string) Query {
	q, err := Compile(text)
	if err != nil {
		panic(err)
	}
	return q
}

func compile(text string) (Query, error) {
	toks, err := filter.Tokenize(text)
	if err != nil {
		return nil, err
	}
	p := &parser{Parser: filter.NewParser(toks)}
	if tok := p.Peek(); tok.Kind == filter.TokenEOF {
		return nil, p.Errorf(tok, "empty query")
	}

	var stages []Query
	for {
		stage, err := p.parseStage()
		if err != nil {
			return nil, err
		}
		stages = append(stages, stage)

		tok := p.Peek()
		if tok.Kind == filter.TokenPipe {
			p.Next()
			continue
		}
		if tok.Kind != filter.TokenEOF {
			return nil, p.Errorf(tok, "unexpected %s after query", tok.Describe())
		}
		break
	}
	if len(stages) == 1 {
		return stages[0], nil
	}
	return &Pipeline{Stages: stages}, nil
}

// keyword reports whether the next token is word used as a keyword rather
// than as a field name in a comparison.
func (p *parser) keyword(word string) bool {
	if !p.Peek().Is(word) {
		return false
	}
	_, isOp := filter.LookupOp(p.PeekAt(1))
	return !isOp
}

func (p *parser) parseStage() (Query, error) {
	switch {
	case p.keyword("correlate"):
		p.Next()
		return p.parseCorrelate()
	case p.keyword("aggregate"):
		p.Next()
		return p.parseAggregate()
	case p.keyword("show"):
		p.Next()
		return p.parseShow()
	}
	f, err := p.parseFilter()
	if err != nil {
		return nil, err
	}
	return &FilterQuery{Filter: f}, nil
}

func (p *parser) parseFilter() (*filter.Filter, error) {
	root, err := p.ParseExpr()
	if err != nil {
		return nil, err
	}
	return &filter.Filter{Root: root}, nil
}

func (p *parser) parseCorrelate() (Query, error) {
	left, err := p.parseFilter()
	if err != nil {
		return nil, err
	}
	if _, err := p.ExpectWord("with"); err != nil {
		return nil, err
	}
	right, err := p.parseFilter()
	if err != nil {
		return nil, err
	}

	q := &Correlate{Left: left, Right: right, Window: DefaultCorrelationWindow}
	if p.Peek().Is("within") {
		p.Next()
		if q.Window, err = p.parseDuration(); err != nil {
			return nil, err
		}
	}
	return q, nil
}

func (p *parser) parseAggregate() (Query, error) {
	funcs, err := p.parseFuncList()
	if err != nil {
		return nil, err
	}
	q := &Aggregate{Funcs: funcs}

	seen := map[string]bool{}
	for {
		tok := p.Peek()
		clause := strings.ToLower(tok.Text)
		if tok.Kind != filter.TokenIdent || (clause != "by" && clause != "where" && clause != "window") {
			return q, nil
		}
		if seen[clause] {
			return nil, p.Errorf(tok, "duplicate '%s' clause", clause)
		}
		seen[clause] = true
		p.Next()

		switch clause {
		case "by":
			if q.GroupBy, err = p.parseFieldList(); err != nil {
				return nil, err
			}
		case "where":
			if q.Where, err = p.parseFilter(); err != nil {
				return nil, err
			}
		case "window":
			if q.Window, err = p.parseWindow(); err != nil {
				return nil, err
			}
		}
	}
}

// parseFuncList reads the aggregate function list, with or without outer
// parentheses. An empty or omitted list means count().
func (p *parser) parseFuncList() ([]AggFunc, error) {
	var funcs []AggFunc
	switch tok := p.Peek(); {
	case tok.Kind == filter.TokenLParen:
		p.Next()
		if p.Peek().Kind != filter.TokenRParen {
			list, err := p.parseFuncs()
			if err != nil {
				return nil, err
			}
			funcs = list
		}
		if _, err := p.Expect(filter.TokenRParen, "')'"); err != nil {
			return nil, err
		}
	case tok.Kind == filter.TokenIdent && p.PeekAt(1).Kind == filter.TokenLParen:
		list, err := p.parseFuncs()
		if err != nil {
			return nil, err
		}
		funcs = list
	}
	if len(funcs) == 0 {
		funcs = []AggFunc{{Name: FuncCount}}
	}
	return funcs, nil
}

func (p *parser) parseFuncs() ([]AggFunc, error) {
	var funcs []AggFunc
	metrics := map[string]bool{}
	for {
		start := p.Peek()
		fn, err := p.parseFunc()
		if err != nil {
			return nil, err
		}
		name := fn.MetricName()
		if metrics[name] {
			return nil, p.Errorf(start, "duplicate aggregate %s", fn)
		}
		metrics[name] = true
		funcs = append(funcs, fn)

		if p.Peek().Kind != filter.TokenComma {
			return funcs, nil
		}
		p.Next()
	}
}

func (p *parser) parseFunc() (AggFunc, error) {
	nameTok, err := p.Expect(filter.TokenIdent, "aggregate function")
	if err != nil {
		return AggFunc{}, err
	}
	fn := AggFunc{Name: strings.ToLower(nameTok.Text)}
	if _, err := p.Expect(filter.TokenLParen, "'(' after "+fn.Name); err != nil {
		return AggFunc{}, err
	}

	switch fn.Name {
	case FuncCount:
		if p.Peek().Kind == filter.TokenStar {
			p.Next()
		}
	case FuncSum, FuncAvg, FuncMin, FuncMax, FuncDistinct:
		field, err := p.Expect(filter.TokenIdent, "field name in "+fn.Name+"()")
		if err != nil {
			return AggFunc{}, err
		}
		fn.Field = field.Text
	case FuncPercentile:
		field, err := p.Expect(filter.TokenIdent, "field name in percentile()")
		if err != nil {
			return AggFunc{}, err
		}
		fn.Field = field.Text
		if _, err := p.Expect(filter.TokenComma, "',' in percentile()"); err != nil {
			return AggFunc{}, err
		}
		numTok, err := p.Expect(filter.TokenNumber, "percentile rank")
		if err != nil {
			return AggFunc{}, err
		}
		v, err := filter.ParseNumber(numTok)
		if err != nil {
			return AggFunc{}, err
		}
		switch n := v.(type) {
		case int64:
			fn.Percentile = float64(n)
		case float64:
			fn.Percentile = n
		}
		if fn.Percentile < 0 || fn.Percentile > 100 {
			return AggFunc{}, p.Errorf(numTok, "percentile rank %s out of range [0, 100]", numTok.Text)
		}
	default:
		return AggFunc{}, p.Errorf(nameTok, "unknown aggregate function %q", nameTok.Text)
	}

	if _, err := p.Expect(filter.TokenRParen, "')'"); err != nil {
		return AggFunc{}, err
	}
	return fn, nil
}

func (p *parser) parseFieldList() ([]string, error) {
	var fields []string
	for {
		tok, err := p.Expect(filter.TokenIdent, "field name")
		if err != nil {
			return nil, err
		}
		fields = append(fields, tok.Text)
		if p.Peek().Kind != filter.TokenComma {
			return fields, nil
		}
		p.Next()
	}
}

func (p *parser) parseWindow() (WindowSpec, error) {
	tok := p.Peek()
	if tok.Kind == filter.TokenNumber {
		size, err := p.parseDuration()
		if err != nil {
			return WindowSpec{}, err
		}
		return WindowSpec{Kind: WindowTumbling, Size: size}, nil
	}
	if tok.Kind != filter.TokenIdent {
		return WindowSpec{}, p.Errorf(tok, "expected window spec, found %s", tok.Describe())
	}

	var spec WindowSpec
	switch strings.ToLower(tok.Text) {
	case "tumbling":
		spec.Kind = WindowTumbling
	case "sliding":
		spec.Kind = WindowSliding
	case "session":
		spec.Kind = WindowSession
	default:
		return WindowSpec{}, p.Errorf(tok, "unknown window type %q", tok.Text)
	}
	p.Next()
	if _, err := p.Expect(filter.TokenLParen, "'(' after "+spec.Kind.String()); err != nil {
		return WindowSpec{}, err
	}

	first, err := p.parseDuration()
	if err != nil {
		return WindowSpec{}, err
	}
	switch spec.Kind {
	case WindowTumbling:
		spec.Size = first
	case WindowSession:
		spec.Timeout = first
	case WindowSliding:
		spec.Size = first
		if _, err := p.Expect(filter.TokenComma, "',' in sliding()"); err != nil {
			return WindowSpec{}, err
		}
		if spec.Slide, err = p.parseDuration(); err != nil {
			return WindowSpec{}, err
		}
	}

	if _, err := p.Expect(filter.TokenRParen, "')'"); err != nil {
		return WindowSpec{}, err
	}
	return spec, nil
}

func (p *parser) parseShow() (Query, error) {
	q := &Show{}
	if p.Peek().Kind == filter.TokenStar {
		p.Next()
		q.All = true
	} else {
		if p.Peek().Kind != filter.TokenIdent {
			tok := p.Peek()
			return nil, p.Errorf(tok, "expected field list or '*', found %s", tok.Describe())
		}
		fields, err := p.parseFieldList()
		if err != nil {
			return nil, err
		}
		q.Fields = fields
	}

	if p.Peek().Is("where") {
		p.Next()
		where, err := p.parseFilter()
		if err != nil {
			return nil, err
		}
		q.Where = where
	}
	return q, nil
}
