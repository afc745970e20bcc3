package filter

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func payload() map[string]interface{} {
	return map[string]interface{}{
		"status":  int64(503),
		"level":   "ERROR",
		"latency": 12.5,
		"host":    "web-01",
		"msg":     "connection refused (code 111)",
		"secure":  true,
		"tags":    []interface{}{"edge", "eu", int64(7)},
		"http": map[string]interface{}{
			"method": "GET",
			"code":   json.Number("404"),
		},
	}
}

func TestFilter_Match(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want bool
	}{
		{"numeric ge", "status >= 400", true},
		{"numeric lt", "status < 400", false},
		{"and of two", `level == "ERROR" AND status >= 500`, true},
		{"and short circuits false", `level == "WARN" AND status >= 500`, false},
		{"or", `level == "WARN" OR status == 503`, true},
		{"not", `NOT level == "WARN"`, true},
		{"symbolic connectives", `!(level == "WARN") && (status == 1 || host == web-01)`, true},
		{"lowercase keywords", `level eq ERROR and not secure == false`, true},
		{"single equals", "host = web-01", true},
		{"word operators", "status gt 500 AND latency le 12.5", true},
		{"int literal against float", "latency > 12", true},
		{"float literal against int", "status == 503.0", true},
		{"nested path", "http.method == GET", true},
		{"json number path", "http.code >= 400", true},
		{"array index", "tags.1 == eu", true},
		{"match", `msg =~ refused`, true},
		{"match word operator", `msg match ^conn.*\(code\s111\)$`, true},
		{"nmatch", `msg !~ timeout`, true},
		{"match inside parens", `(msg =~ refused) AND status == 503`, true},
		{"quoted pattern", `msg =~ "code [0-9]+"`, true},
		{"in list", `host in [web-01, web-02]`, true},
		{"in paren list", `status in (500, 503)`, true},
		{"in list miss", `status in [500, 502]`, false},
		{"contains substring", `msg contains "refused"`, true},
		{"contains element", `tags contains 7`, true},
		{"contains element miss", `tags contains us`, false},
		{"bool eq", "secure == true", true},
		{"bool ne", "secure != false", true},
		{"bool ordering is false", "secure > false", false},
		{"missing field eq", "user == bob", false},
		{"missing field ne", "user != bob", false},
		{"missing field nmatch", "user !~ bob", false},
		{"missing field lt", "user < 5", false},
		{"missing field le", "user <= 5", false},
		{"missing field gt", "user > 5", false},
		{"missing field ge", "user >= 5", false},
		{"missing field match", "user =~ bob", false},
		{"missing field in", "user in [bob, alice]", false},
		{"missing field contains", "user contains bob", false},
		{"missing nested field", "http.status >= 400", false},
		{"type mismatch", `status == "503"`, false},
		{"type mismatch ne", `status != "503"`, false},
		{"regex on number", `status =~ 5`, false},
		{"left assoc equal precedence", `level == WARN AND status == 1 OR host == web-01`, true},
		{"keyword as field name", `not == 1`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Compile(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.Match(payload()))
		})
	}
}

func TestFilter_EqualPrecedence(t *testing.T) {
	// a OR b AND c groups as (a OR b) AND c.
	f, err := Compile(`host == web-01 OR status == 1 AND level == WARN`)
	require.NoError(t, err)
	assert.False(t, f.Match(payload()))
	assert.Equal(t, `(((host == "web-01") OR (status == 1)) AND (level == "WARN"))`, f.String())
}

func TestFilter_MatchAll(t *testing.T) {
	f, err := Compile("   ")
	require.NoError(t, err)
	assert.Nil(t, f.Root)
	assert.True(t, f.Match(nil))
	assert.True(t, f.Match(payload()))

	var nilFilter *Filter
	assert.True(t, nilFilter.Match(payload()))
	assert.Equal(t, "", nilFilter.String())
}

func TestFilter_SyntaxErrors(t *testing.T) {
	tests := []struct {
		name   string
		expr   string
		offset int
		msg    string
	}{
		{"missing operator", "status 400", 7, "expected operator"},
		{"missing value", "status >=", 9, "unexpected end of input"},
		{"dangling and", "status == 1 AND", 15, "unexpected end of input"},
		{"unclosed paren", "(status == 1", 12, "expected ')'"},
		{"trailing tokens", "status == 1 )", 12, "unexpected ')'"},
		{"unterminated string", `level == "ERR`, 9, "unterminated string"},
		{"bad pattern", "msg =~ a(b", 7, "invalid pattern"},
		{"unit suffix", "latency > 100ms", 10, "invalid number"},
		{"bad character", "status == 1 ; x", 12, "unexpected character"},
		{"list without brackets", "status in 500", 10, "expected '['"},
		{"field must be identifier", `"status" == 1`, 0, "expected field name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.expr)
			require.Error(t, err)

			var se *SyntaxError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.offset, se.Offset)
			assert.Contains(t, se.Msg, tt.msg)
		})
	}
}

func TestFilter_StringRoundTrip(t *testing.T) {
	exprs := []string{
		"status >= 400",
		`level == "ERROR" AND status >= 500`,
		`NOT (host == a OR host == b)`,
		`msg =~ "say \"hi\"\s+now"`,
		`msg match ^a\d+$`,
		`status in [500, 502.5, "x", true]`,
		`tags contains edge`,
		"latency > 2.0",
		"delta < -3",
	}

	for _, expr := range exprs {
		t.Run(expr, func(t *testing.T) {
			first := MustCompile(expr)
			second, err := Compile(first.String())
			require.NoError(t, err, "canonical form %q", first.String())
			assert.Equal(t, first.String(), second.String())

			p := payload()
			assert.Equal(t, first.Match(p), second.Match(p))
		})
	}
}

func TestTokenize_PatternBoundaries(t *testing.T) {
	toks, err := Tokenize(`(msg =~ a(b)c) AND x == 1`)
	require.NoError(t, err)

	var kinds []TokenKind
	var texts []string
	for _, tok := range toks {
		kinds = append(kinds, tok.Kind)
		texts = append(texts, tok.Text)
	}
	assert.Equal(t, []TokenKind{
		TokenLParen, TokenIdent, TokenOperator, TokenRegex, TokenRParen,
		TokenIdent, TokenIdent, TokenOperator, TokenNumber, TokenEOF,
	}, kinds)
	assert.Equal(t, "a(b)c", texts[3])
}

func TestTokenize_MatchWordNeedsField(t *testing.T) {
	// "match" as a value is an ordinary identifier.
	f, err := Compile(`kind == match`)
	require.NoError(t, err)
	assert.True(t, f.Match(map[string]interface{}{"kind": "match"}))
}
