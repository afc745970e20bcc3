package nql

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aevon-lab/nqlflow/internal/core/filter"
)

var durationUnits = map[string]time.Duration{
	"":   time.Millisecond,
	"ms": time.Millisecond,
	"s":  time.Second,
	"m":  time.Minute,
	"h":  time.Hour,
}

// ParseDuration reads an integer with an optional ms|s|m|h suffix. A bare
// integer is milliseconds.
func ParseDuration(s string) (time.Duration, error) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	unit, ok := durationUnits[strings.ToLower(s[i:])]
	if !ok {
		return 0, fmt.Errorf("invalid duration unit %q in %q", s[i:], s)
	}
	n, err := strconv.ParseInt(s[:i], 10, 64)
	if err != nil || n > int64(1<<63-1)/int64(unit) {
		return 0, fmt.Errorf("duration %q out of range", s)
	}
	return time.Duration(n) * unit, nil
}

// FormatDuration renders d in the largest unit that divides it exactly.
func FormatDuration(d time.Duration) string {
	switch {
	case d == 0:
		return "0ms"
	case d%time.Hour == 0:
		return strconv.FormatInt(int64(d/time.Hour), 10) + "h"
	case d%time.Minute == 0:
		return strconv.FormatInt(int64(d/time.Minute), 10) + "m"
	case d%time.Second == 0:
		return strconv.FormatInt(int64(d/time.Second), 10) + "s"
	}
	return strconv.FormatInt(int64(d/time.Millisecond), 10) + "ms"
}

func (p *parser) parseDuration() (time.Duration, error) {
	tok := p.Peek()
	if tok.Kind != filter.TokenNumber {
		return 0, p.Errorf(tok, "expected duration, found %s", tok.Describe())
	}
	d, err := ParseDuration(tok.Text)
	if err != nil {
		return 0, p.Errorf(tok, "%v", err)
	}
	p.Next()
	return d, nil
}
