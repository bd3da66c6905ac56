package basic

import (
	"errors"
	"fmt"
)

// Sentinel errors for runtime conditions. Parameterised messages
// ("Expected =", "Undefined line 40") wrap ErrExpected, ErrUndefinedLine
// and ErrUnknownFunction.
var (
	ErrSyntax             = errors.New("Syntax error")
	ErrUnexpectedEnd      = errors.New("Unexpected end")
	ErrExpected           = errors.New("Expected")
	ErrIfWithoutThen      = errors.New("IF without THEN")
	ErrDivisionByZero     = errors.New("Division by zero")
	ErrUnknownFunction    = errors.New("Unknown function")
	ErrUndefinedLine      = errors.New("Undefined line")
	ErrNextWithoutFor     = errors.New("NEXT without FOR")
	ErrReturnWithoutGosub = errors.New("RETURN without GOSUB")
	ErrWendWithoutWhile   = errors.New("WEND without WHILE")
	ErrOutOfData          = errors.New("Out of DATA")
	ErrOutOfMemory        = errors.New("Out of memory")
	ErrInvalidCount       = errors.New("Invalid count value")
	ErrProgramRunning     = errors.New("Program running")
	ErrLineNumber         = errors.New("Line number out of range")

	// errBreak unwinds a suspended statement after Break; it is never printed.
	errBreak = errors.New("break")
)

// Fehlerkategorien
const (
	CategorySyntax   = "SYNTAX"
	CategoryRuntime  = "RUNTIME"
	CategoryResource = "RESOURCE"
	CategoryExternal = "EXTERNAL"
)

var categoryOf = map[error]string{
	ErrSyntax:             CategorySyntax,
	ErrUnexpectedEnd:      CategorySyntax,
	ErrExpected:           CategorySyntax,
	ErrIfWithoutThen:      CategorySyntax,
	ErrUnknownFunction:    CategorySyntax,
	ErrLineNumber:         CategorySyntax,
	ErrDivisionByZero:     CategoryRuntime,
	ErrUndefinedLine:      CategoryRuntime,
	ErrNextWithoutFor:     CategoryRuntime,
	ErrReturnWithoutGosub: CategoryRuntime,
	ErrWendWithoutWhile:   CategoryRuntime,
	ErrOutOfData:          CategoryRuntime,
	ErrInvalidCount:       CategoryRuntime,
	ErrOutOfMemory:        CategoryResource,
	ErrProgramRunning:     CategoryResource,
}

// BASICError is an error raised while executing BASIC code.
type BASICError struct {
	Category   string // SYNTAX, RUNTIME, RESOURCE or EXTERNAL
	Message    string // text shown after the question mark
	LineNumber int    // program line, 0 in direct mode
	DirectMode bool
	cause      error
}

// Error returns the bare message.
func (e *BASICError) Error() string { return e.Message }

func (e *BASICError) Unwrap() error { return e.cause }

// Report renders the error as the console shows it.
func (e *BASICError) Report() string {
	if !e.DirectMode {
		return fmt.Sprintf("?%s in %d", e.Message, e.LineNumber)
	}
	return "?" + e.Message
}

func newError(cause error, message string) *BASICError {
	cat, ok := categoryOf[cause]
	if !ok {
		cat = CategoryExternal
	}
	return &BASICError{Category: cat, Message: message, cause: cause}
}

func errorf(cause error, format string, args ...interface{}) *BASICError {
	return newError(cause, cause.Error()+" "+fmt.Sprintf(format, args...))
}

func expected(what string) error { return errorf(ErrExpected, "%s", what) }

func unknownFunction(name string) error {
	return newError(ErrUnknownFunction, "Unknown function: "+name)
}

func undefinedLine(target Value) error { return errorf(ErrUndefinedLine, "%s", target.String()) }

// asBASICError attaches location information to err, wrapping foreign
// errors as EXTERNAL.
func asBASICError(err error, line int, direct bool) *BASICError {
	var be *BASICError
	if errors.As(err, &be) {
		cp := *be
		cp.LineNumber, cp.DirectMode = line, direct
		return &cp
	}
	out := newError(err, err.Error())
	out.LineNumber, out.DirectMode = line, direct
	return out
}
