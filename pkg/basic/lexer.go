package basic

import (
	"strconv"
	"strings"
)

// TokenKind classifies a lexical token.
type TokenKind int

const (
	TokNumber TokenKind = iota
	TokString
	TokIdent
	TokOp
)

func (k TokenKind) String() string {
	switch k {
	case TokNumber:
		return "Number"
	case TokString:
		return "String"
	case TokIdent:
		return "Ident"
	case TokOp:
		return "Op"
	}
	return "Unknown"
}

// Token is one lexical unit of a BASIC line. Text holds the string
// contents, the uppercased identifier, the operator or the numeric lexeme.
type Token struct {
	Kind TokenKind
	Text string
	Num  float64
}

func (t Token) is(kind TokenKind, text string) bool {
	return t.Kind == kind && t.Text == text
}

// smartQuotes maps typographic quotes pasted from documents onto ASCII.
var smartQuotes = strings.NewReplacer(
	"“", `"`, "”", `"`, "„", `"`, "‟", `"`, "″", `"`, "‶", `"`,
	"‘", "'", "’", "'", "‚", "'", "‛", "'", "′", "'", "‵", "'",
)

const singleOps = "+-*/^=<>(),;:"

func isDigit(ch rune) bool  { return ch >= '0' && ch <= '9' }
func isLetter(ch rune) bool { return ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' }

// Tokenize splits one source line into tokens. It never fails: unknown
// characters are dropped, an unterminated string runs to the end of the
// line and an apostrophe ends the line.
func Tokenize(src string) []Token {
	in := []rune(smartQuotes.Replace(src))
	var toks []Token
	i := 0
	for i < len(in) {
		ch := in[i]
		switch {
		case ch == ' ' || ch == '\t':
			i++
		case ch == '"':
			i++
			start := i
			for i < len(in) && in[i] != '"' {
				i++
			}
			toks = append(toks, Token{Kind: TokString, Text: string(in[start:i])})
			if i < len(in) {
				i++
			}
		case isDigit(ch) || ch == '.' && i+1 < len(in) && isDigit(in[i+1]):
			start := i
			for i < len(in) && (isDigit(in[i]) || in[i] == '.') {
				i++
			}
			lexeme := string(in[start:i])
			n, _ := ParseFloatPrefix(lexeme)
			toks = append(toks, Token{Kind: TokNumber, Text: lexeme, Num: n})
		case ch == '\'':
			return toks
		case i+1 < len(in) && isTwoCharOp(in[i], in[i+1]):
			toks = append(toks, Token{Kind: TokOp, Text: string(in[i : i+2])})
			i += 2
		case strings.ContainsRune(singleOps, ch):
			toks = append(toks, Token{Kind: TokOp, Text: string(ch)})
			i++
		case isLetter(ch):
			start := i
			for i < len(in) && (isLetter(in[i]) || isDigit(in[i]) || in[i] == '_') {
				i++
			}
			if i < len(in) && (in[i] == '$' || in[i] == '%') {
				i++
			}
			toks = append(toks, Token{Kind: TokIdent, Text: strings.ToUpper(string(in[start:i]))})
		default:
			i++
		}
	}
	return toks
}

func isTwoCharOp(a, b rune) bool {
	switch string([]rune{a, b}) {
	case "<>", "<=", ">=":
		return true
	}
	return false
}

// String renders a token the way it would appear in source.
func (t Token) String() string {
	switch t.Kind {
	case TokString:
		return strconv.Quote(t.Text)
	case TokNumber:
		return FormatNumber(t.Num)
	}
	return t.Text
}
