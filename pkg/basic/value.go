package basic

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf16"
)

// Value is a BASIC value: either a double or a string.
type Value struct {
	num   float64
	str   string
	isStr bool
}

// Num wraps a number.
func Num(f float64) Value { return Value{num: f} }

// Str wraps a string.
func Str(s string) Value { return Value{str: s, isStr: true} }

// Bool converts a Go bool to the BASIC truth values -1 and 0.
func Bool(b bool) Value {
	if b {
		return Num(-1)
	}
	return Num(0)
}

// IsString reports whether v holds a string.
func (v Value) IsString() bool { return v.isStr }

// String renders v the way PRINT and STR$ do.
func (v Value) String() string {
	if v.isStr {
		return v.str
	}
	return FormatNumber(v.num)
}

// Number coerces v to a double. Strings follow the loose rules used by
// comparisons and arithmetic: blank is 0, anything that is not a complete
// numeric literal is NaN.
func (v Value) Number() float64 {
	if !v.isStr {
		return v.num
	}
	return looseNumber(v.str)
}

// Truthy reports whether v counts as true in IF, WHILE, AND, OR and NOT.
func (v Value) Truthy() bool {
	if v.isStr {
		return v.str != ""
	}
	return v.num != 0 && !math.IsNaN(v.num)
}

// StrictEqual is the "=" comparison: values of different kinds never match.
func StrictEqual(a, b Value) bool {
	if a.isStr != b.isStr {
		return false
	}
	if a.isStr {
		return a.str == b.str
	}
	return a.num == b.num
}

// compareLoose orders a and b for < > <= >=. Two strings compare by text,
// everything else numerically; ok is false when either side is NaN.
func compareLoose(a, b Value) (cmp int, ok bool) {
	if a.isStr && b.isStr {
		return strings.Compare(a.str, b.str), true
	}
	x, y := a.Number(), b.Number()
	if math.IsNaN(x) || math.IsNaN(y) {
		return 0, false
	}
	switch {
	case x < y:
		return -1, true
	case x > y:
		return 1, true
	}
	return 0, true
}

// Add implements "+": concatenation when either side is a string.
func Add(a, b Value) Value {
	if a.isStr || b.isStr {
		return Str(a.String() + b.String())
	}
	return Num(a.num + b.num)
}

// FormatNumber prints a double in the shortest form that round-trips,
// switching to exponent notation outside [1e-6, 1e21).
func FormatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}
	abs := math.Abs(f)
	if abs >= 1e21 || abs < 1e-6 {
		s := strconv.FormatFloat(f, 'e', -1, 64)
		mant, exp, _ := strings.Cut(s, "e")
		sign := exp[:1]
		digits := strings.TrimLeft(exp[1:], "0")
		if digits == "" {
			digits = "0"
		}
		return mant + "e" + sign + digits
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

var (
	reDecimal     = regexp.MustCompile(`^[+-]?(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?$`)
	reHex         = regexp.MustCompile(`^0[xX][0-9a-fA-F]+$`)
	reFloatPrefix = regexp.MustCompile(`^[+-]?(?:Infinity|(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?)`)
)

func looseNumber(s string) float64 {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return 0
	case s == "Infinity" || s == "+Infinity":
		return math.Inf(1)
	case s == "-Infinity":
		return math.Inf(-1)
	case reHex.MatchString(s):
		n, err := strconv.ParseUint(s[2:], 16, 64)
		if err != nil {
			return math.NaN()
		}
		return float64(n)
	case reDecimal.MatchString(s):
		f, err := strconv.ParseFloat(s, 64)
		if err != nil && !isRangeErr(err) {
			return math.NaN()
		}
		return f
	}
	return math.NaN()
}

// ParseFloatPrefix reads the longest leading decimal literal of s, ignoring
// leading whitespace. ok is false when s does not start with a number.
func ParseFloatPrefix(s string) (float64, bool) {
	s = strings.TrimLeft(s, " \t\r\n\v\f")
	m := reFloatPrefix.FindString(s)
	if m == "" {
		return math.NaN(), false
	}
	switch strings.TrimLeft(m, "+-") {
	case "Infinity":
		if strings.HasPrefix(m, "-") {
			return math.Inf(-1), true
		}
		return math.Inf(1), true
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil && !isRangeErr(err) {
		return math.NaN(), false
	}
	return f, true
}

// numberOrZero is the VAL and numeric INPUT conversion.
func numberOrZero(s string) float64 {
	f, ok := ParseFloatPrefix(s)
	if !ok || math.IsNaN(f) {
		return 0
	}
	return f
}

func isRangeErr(err error) bool {
	ne, ok := err.(*strconv.NumError)
	return ok && ne.Err == strconv.ErrRange
}

// utf16Len counts UTF-16 code units, which is what LEN reports.
func utf16Len(s string) int {
	return len(utf16.Encode([]rune(s)))
}

// toInteger truncates toward zero, mapping NaN to 0.
func toInteger(f float64) float64 {
	if math.IsNaN(f) {
		return 0
	}
	return math.Trunc(f)
}

// sliceString takes runes [start, end) with negative indices counted from
// the end. A nil end means "to the end of the string".
func sliceString(s string, start float64, end *float64) string {
	r := []rune(s)
	n := float64(len(r))
	clamp := func(i float64) int {
		i = toInteger(i)
		if i < 0 {
			i += n
			if i < 0 {
				i = 0
			}
		}
		if i > n {
			i = n
		}
		return int(i)
	}
	from := clamp(start)
	to := len(r)
	if end != nil {
		to = clamp(*end)
	}
	if from >= to {
		return ""
	}
	return string(r[from:to])
}
