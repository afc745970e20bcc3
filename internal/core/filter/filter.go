// Package filter compiles and evaluates boolean predicates over event
// payloads.
package filter

import "strings"

// Filter is a compiled predicate. A nil Filter, or one with a nil Root,
// matches every payload.
type Filter struct {
	Root Node
}

// Compile parses expr into a Filter. Blank input yields a match-all filter.
func Compile(expr string) (*Filter, error) {
	if strings.TrimSpace(expr) == "" {
		return &Filter{}, nil
	}
	toks, err := Tokenize(expr)
	if err != nil {
		return nil, err
	}
	p := NewParser(toks)
	root, err := p.ParseExpr()
	if err != nil {
		return nil, err
	}
	if tok := p.Peek(); tok.Kind != TokenEOF {
		return nil, p.Errorf(tok, "unexpected %s after expression", tok.Describe())
	}
	return &Filter{Root: root}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(expr string) *Filter {
	f, err := Compile(expr)
	if err != nil {
		panic("filter: " + err.Error())
	}
	return f
}

// Match evaluates the filter against a payload.
func (f *Filter) Match(payload map[string]interface{}) bool {
	if f == nil || f.Root == nil {
		return true
	}
	return Eval(f.Root, payload)
}

// String renders the canonical form. The output compiles back to an
// equivalent filter.
func (f *Filter) String() string {
	if f == nil || f.Root == nil {
		return ""
	}
	return f.Root.String()
}
