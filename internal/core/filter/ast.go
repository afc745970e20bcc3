package filter

import (
	"regexp"
	"strconv"
	"strings"
)

// Node is a filter expression tree node.
type Node interface {
	filterNode()
	String() string
}

type And struct {
	Left, Right Node
}

type Or struct {
	Left, Right Node
}

type Not struct {
	Operand Node
}

// Op is a comparison operator.
type Op int

const (
	OpEq Op = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpMatch
	OpNMatch
	OpIn
	OpContains
)

var opSymbols = map[Op]string{
	OpEq:       "==",
	OpNe:       "!=",
	OpLt:       "<",
	OpLe:       "<=",
	OpGt:       ">",
	OpGe:       ">=",
	OpMatch:    "=~",
	OpNMatch:   "!~",
	OpIn:       "in",
	OpContains: "contains",
}

func (o Op) String() string { return opSymbols[o] }

// Operators maps every accepted spelling to its operator. Word forms are
// matched case-insensitively.
var Operators = map[string]Op{
	"==":       OpEq,
	"=":        OpEq,
	"eq":       OpEq,
	"!=":       OpNe,
	"ne":       OpNe,
	"<":        OpLt,
	"lt":       OpLt,
	"<=":       OpLe,
	"le":       OpLe,
	">":        OpGt,
	"gt":       OpGt,
	">=":       OpGe,
	"ge":       OpGe,
	"=~":       OpMatch,
	"match":    OpMatch,
	"!~":       OpNMatch,
	"nmatch":   OpNMatch,
	"in":       OpIn,
	"contains": OpContains,
}

// LookupOp resolves an operator token.
func LookupOp(tok Token) (Op, bool) {
	switch tok.Kind {
	case TokenOperator:
		op, ok := Operators[tok.Text]
		return op, ok
	case TokenIdent:
		op, ok := Operators[strings.ToLower(tok.Text)]
		return op, ok
	}
	return 0, false
}

// Compare tests one payload field against a literal. Value holds a string,
// int64, float64 or bool; List is set for OpIn and Pattern for match ops.
type Compare struct {
	Field   string
	Op      Op
	Value   interface{}
	List    []interface{}
	Pattern *regexp.Regexp
}

func (*And) filterNode()     {}
func (*Or) filterNode()      {}
func (*Not) filterNode()     {}
func (*Compare) filterNode() {}

func (n *And) String() string { return "(" + n.Left.String() + " AND " + n.Right.String() + ")" }
func (n *Or) String() string  { return "(" + n.Left.String() + " OR " + n.Right.String() + ")" }
func (n *Not) String() string { return "NOT " + n.Operand.String() }

func (n *Compare) String() string {
	var rhs string
	switch n.Op {
	case OpMatch, OpNMatch:
		rhs = quote(n.Pattern.String())
	case OpIn:
		items := make([]string, len(n.List))
		for i, item := range n.List {
			items[i] = literal(item)
		}
		rhs = "[" + strings.Join(items, ", ") + "]"
	default:
		rhs = literal(n.Value)
	}
	return "(" + n.Field + " " + n.Op.String() + " " + rhs + ")"
}

func literal(v interface{}) string {
	switch x := v.(type) {
	case string:
		return quote(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		s := strconv.FormatFloat(x, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	case bool:
		return strconv.FormatBool(x)
	}
	return "null"
}

func quote(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '"', '\\':
			sb.WriteByte('\\')
			sb.WriteByte(c)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		case '\r':
			sb.WriteString(`\r`)
		default:
			sb.WriteByte(c)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}
