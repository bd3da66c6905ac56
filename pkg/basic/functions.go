package basic

import (
	"math"
	"strings"
	"unicode/utf16"
)

// maxTab bounds TAB so a stray TAB(1E9) cannot exhaust memory.
const maxTab = 1 << 16

type builtin func(in *Interpreter, args []Value) (Value, error)

var builtins map[string]builtin

func init() {
	math1 := func(f func(float64) float64) builtin {
		return func(_ *Interpreter, a []Value) (Value, error) { return Num(f(argNum(a, 0))), nil }
	}
	builtins = map[string]builtin{
		"INT": math1(math.Floor),
		"ABS": math1(math.Abs),
		"SQR": math1(math.Sqrt),
		"SIN": math1(math.Sin),
		"COS": math1(math.Cos),
		"TAN": math1(math.Tan),
		"ATN": math1(math.Atan),
		"LOG": math1(math.Log),
		"EXP": math1(math.Exp),
		"SGN": math1(sign),
		"RND": func(in *Interpreter, a []Value) (Value, error) {
			scale := argNum(a, 0)
			if scale == 0 || math.IsNaN(scale) {
				scale = 1
			}
			return Num(in.rng.Float64() * scale), nil
		},
		"PEEK": func(in *Interpreter, _ []Value) (Value, error) {
			return Num(math.Floor(in.rng.Float64() * 256)), nil
		},
		"LEN": func(_ *Interpreter, a []Value) (Value, error) {
			return Num(float64(utf16Len(argStr(a, 0)))), nil
		},
		"LEFT$": func(_ *Interpreter, a []Value) (Value, error) {
			s := argStr(a, 0)
			if len(a) < 2 {
				return Str(s), nil
			}
			n := a[1].Number()
			return Str(sliceString(s, 0, &n)), nil
		},
		"RIGHT$": func(_ *Interpreter, a []Value) (Value, error) {
			// RIGHT$(s, 0) returns all of s.
			return Str(sliceString(argStr(a, 0), -toInteger(argNum(a, 1)), nil)), nil
		},
		"MID$": func(_ *Interpreter, a []Value) (Value, error) {
			start := argNum(a, 1)
			if start == 0 || math.IsNaN(start) || len(a) < 2 {
				start = 1
			}
			from := start - 1
			if length := argNum(a, 2); length != 0 && !math.IsNaN(length) {
				to := from + length
				return Str(sliceString(argStr(a, 0), from, &to)), nil
			}
			return Str(sliceString(argStr(a, 0), from, nil)), nil
		},
		"CHR$": func(_ *Interpreter, a []Value) (Value, error) {
			code := uint16(int64(toInteger(argNum(a, 0))))
			return Str(string(utf16.Decode([]uint16{code}))), nil
		},
		"ASC": func(_ *Interpreter, a []Value) (Value, error) {
			units := utf16.Encode([]rune(argStr(a, 0)))
			if len(units) == 0 {
				return Num(0), nil
			}
			return Num(float64(units[0])), nil
		},
		"STR$": func(_ *Interpreter, a []Value) (Value, error) {
			return Str(argStr(a, 0)), nil
		},
		"VAL": func(_ *Interpreter, a []Value) (Value, error) {
			return Num(numberOrZero(argStr(a, 0))), nil
		},
		"TAB": func(_ *Interpreter, a []Value) (Value, error) {
			n := math.Floor(argNum(a, 0))
			if math.IsInf(n, 1) {
				return Value{}, errorf(ErrInvalidCount, "%s", FormatNumber(n))
			}
			if math.IsNaN(n) || n < 0 {
				n = 0
			}
			if n > maxTab {
				n = maxTab
			}
			return Str(strings.Repeat(" ", int(n))), nil
		},
		"UCASE$": func(_ *Interpreter, a []Value) (Value, error) {
			return Str(strings.ToUpper(argStr(a, 0))), nil
		},
		"LCASE$": func(_ *Interpreter, a []Value) (Value, error) {
			return Str(strings.ToLower(argStr(a, 0))), nil
		},
	}
}

func (in *Interpreter) callFunction(name string, args []Value) (Value, error) {
	fn, ok := builtins[name]
	if !ok {
		return Value{}, unknownFunction(name)
	}
	return fn(in, args)
}

// argNum returns argument i as a number; missing arguments read as NaN,
// so INT() prints NaN.
func argNum(a []Value, i int) float64 {
	if i < len(a) {
		return a[i].Number()
	}
	return math.NaN()
}

// argStr returns argument i as text; missing arguments read as "".
func argStr(a []Value, i int) string {
	if i < len(a) {
		return a[i].String()
	}
	return ""
}

func sign(f float64) float64 {
	switch {
	case math.IsNaN(f):
		return f
	case f > 0:
		return 1
	case f < 0:
		return -1
	}
	return f
}
