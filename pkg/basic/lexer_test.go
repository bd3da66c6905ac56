package basic

import (
	"math"
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []Token
	}{
		{
			name: "print statement",
			src:  `print "Hi", a$`,
			want: []Token{
				{Kind: TokIdent, Text: "PRINT"},
				{Kind: TokString, Text: "Hi"},
				{Kind: TokOp, Text: ","},
				{Kind: TokIdent, Text: "A$"},
			},
		},
		{
			name: "two character operators",
			src:  "A<>B<=C>=D<E",
			want: []Token{
				{Kind: TokIdent, Text: "A"},
				{Kind: TokOp, Text: "<>"},
				{Kind: TokIdent, Text: "B"},
				{Kind: TokOp, Text: "<="},
				{Kind: TokIdent, Text: "C"},
				{Kind: TokOp, Text: ">="},
				{Kind: TokIdent, Text: "D"},
				{Kind: TokOp, Text: "<"},
				{Kind: TokIdent, Text: "E"},
			},
		},
		{
			name: "numbers",
			src:  "12 .5 1.2.3",
			want: []Token{
				{Kind: TokNumber, Text: "12", Num: 12},
				{Kind: TokNumber, Text: ".5", Num: 0.5},
				{Kind: TokNumber, Text: "1.2.3", Num: 1.2},
			},
		},
		{
			name: "unterminated string runs to end",
			src:  `PRINT "open`,
			want: []Token{
				{Kind: TokIdent, Text: "PRINT"},
				{Kind: TokString, Text: "open"},
			},
		},
		{
			name: "apostrophe comment",
			src:  "X=1 ' set x",
			want: []Token{
				{Kind: TokIdent, Text: "X"},
				{Kind: TokOp, Text: "="},
				{Kind: TokNumber, Text: "1", Num: 1},
			},
		},
		{
			name: "smart quotes",
			src:  "PRINT “A” ‘ note",
			want: []Token{
				{Kind: TokIdent, Text: "PRINT"},
				{Kind: TokString, Text: "A"},
			},
		},
		{
			name: "stray characters skipped",
			src:  "A# @ B%_x",
			want: []Token{
				{Kind: TokIdent, Text: "A"},
				{Kind: TokIdent, Text: "B%"},
				{Kind: TokIdent, Text: "X"},
			},
		},
		{
			name: "identifier with digits and underscore",
			src:  "total_2$=1",
			want: []Token{
				{Kind: TokIdent, Text: "TOTAL_2$"},
				{Kind: TokOp, Text: "="},
				{Kind: TokNumber, Text: "1", Num: 1},
			},
		},
		{
			name: "lone dot dropped",
			src:  "A . B",
			want: []Token{
				{Kind: TokIdent, Text: "A"},
				{Kind: TokIdent, Text: "B"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.src)
			if len(got) != len(tt.want) {
				t.Fatalf("Tokenize(%q) = %v, want %v", tt.src, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("token %d = %#v, want %#v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{math.Copysign(0, -1), "0"},
		{42, "42"},
		{-3, "-3"},
		{2.5, "2.5"},
		{0.30000000000000004, "0.30000000000000004"},
		{1e21, "1e+21"},
		{1.5e-7, "1.5e-7"},
		{123456789012, "123456789012"},
		{0.000001, "0.000001"},
		{math.Inf(1), "Infinity"},
		{math.Inf(-1), "-Infinity"},
		{math.NaN(), "NaN"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatNumber(tt.in); got != tt.want {
				t.Errorf("FormatNumber(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseFloatPrefix(t *testing.T) {
	tests := []struct {
		in     string
		want   float64
		wantOK bool
	}{
		{"12abc", 12, true},
		{"  -3.5 apples", -3.5, true},
		{"1e3x", 1000, true},
		{".25", 0.25, true},
		{"abc", 0, false},
		{"", 0, false},
		{"Infinity", math.Inf(1), true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseFloatPrefix(tt.in)
			if ok != tt.wantOK {
				t.Fatalf("ParseFloatPrefix(%q) ok = %v, want %v", tt.in, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("ParseFloatPrefix(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestValueCoercion(t *testing.T) {
	if !StrictEqual(Str("a"), Str("a")) || StrictEqual(Str("1"), Num(1)) {
		t.Error("StrictEqual must compare kind and value")
	}
	if Str("").Truthy() || !Str("0").Truthy() || Num(0).Truthy() || Num(math.NaN()).Truthy() {
		t.Error("unexpected truthiness")
	}
	if got := Str(" 12 ").Number(); got != 12 {
		t.Errorf("Number of padded numeric string = %v", got)
	}
	if got := Str("").Number(); got != 0 {
		t.Errorf("Number of empty string = %v", got)
	}
	if got := Str("0x1F").Number(); got != 31 {
		t.Errorf("Number of hex string = %v", got)
	}
	if !math.IsNaN(Str("12abc").Number()) {
		t.Error("partial numeric string must be NaN")
	}
	if got := Add(Str("A"), Num(1)).String(); got != "A1" {
		t.Errorf("Add concatenation = %q", got)
	}
}
