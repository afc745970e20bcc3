package document

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Int returns v as an int64 when it holds an integer value. json.Number is an
// integer when its text has no fraction or exponent.
func Int(v interface{}) (int64, bool) {
	switch val := v.(type) {
	case int:
		return int64(val), true
	case int8:
		return int64(val), true
	case int16:
		return int64(val), true
	case int32:
		return int64(val), true
	case int64:
		return val, true
	case uint:
		return int64(val), true
	case uint8:
		return int64(val), true
	case uint16:
		return int64(val), true
	case uint32:
		return int64(val), true
	case uint64:
		return int64(val), true
	case json.Number:
		if strings.ContainsAny(string(val), ".eE") {
			return 0, false
		}
		i, err := val.Int64()
		if err != nil {
			return 0, false
		}
		return i, true
	}
	return 0, false
}

// Float returns v as a float64 when it is any numeric type. Strings are not
// numbers.
func Float(v interface{}) (float64, bool) {
	if i, ok := Int(v); ok {
		return float64(i), true
	}
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// Decimal converts a numeric payload value to an exact decimal.
// Returns false for missing, non-numeric, non-finite or unparsable values.
func Decimal(v interface{}) (decimal.Decimal, bool) {
	if i, ok := Int(v); ok {
		return decimal.NewFromInt(i), true
	}
	switch val := v.(type) {
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(val), true
	case float32:
		if math.IsNaN(float64(val)) || math.IsInf(float64(val), 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat32(val), true
	case json.Number:
		d, err := decimal.NewFromString(string(val))
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	}
	return decimal.Zero, false
}

// Canonical renders a scalar as a group-key string: strings verbatim,
// integers in decimal, floats with six fractional digits, booleans as
// true/false. Missing and non-scalar values render as "null".
func Canonical(v interface{}) string {
	if i, ok := Int(v); ok {
		return strconv.FormatInt(i, 10)
	}
	switch val := v.(type) {
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	}
	if f, ok := Float(v); ok {
		return strconv.FormatFloat(f, 'f', 6, 64)
	}
	return "null"
}
