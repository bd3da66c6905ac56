package basic

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"
)

// stmtKind is chosen once from the leading token of a statement.
type stmtKind int

const (
	stmtInvalid stmtKind = iota
	stmtRem
	stmtPrint
	stmtInput
	stmtLet
	stmtIf
	stmtFor
	stmtNext
	stmtGoto
	stmtGosub
	stmtReturn
	stmtEnd
	stmtCls
	stmtBeep
	stmtSleep
	stmtIgnore // DIM, DATA, POKE
	stmtRead
	stmtRestore
	stmtAssign
)

var keywords = map[string]stmtKind{
	"REM":     stmtRem,
	"PRINT":   stmtPrint,
	"INPUT":   stmtInput,
	"LET":     stmtLet,
	"IF":      stmtIf,
	"FOR":     stmtFor,
	"NEXT":    stmtNext,
	"GOTO":    stmtGoto,
	"GOSUB":   stmtGosub,
	"RETURN":  stmtReturn,
	"END":     stmtEnd,
	"STOP":    stmtEnd,
	"CLS":     stmtCls,
	"BEEP":    stmtBeep,
	"SLEEP":   stmtSleep,
	"DIM":     stmtIgnore,
	"DATA":    stmtIgnore,
	"POKE":    stmtIgnore,
	"READ":    stmtRead,
	"RESTORE": stmtRestore,
}

func classify(toks []Token, pos int) stmtKind {
	t := toks[pos]
	if t.Kind != TokIdent {
		return stmtInvalid
	}
	if k, ok := keywords[t.Text]; ok {
		return k
	}
	if pos+1 < len(toks) && toks[pos+1].is(TokOp, "=") {
		return stmtAssign
	}
	return stmtInvalid
}

type forFrame struct {
	name string
	end  Value
	step Value
	pc   int // index of the line after FOR
}

// execLine runs every ':'-separated statement of one source line.
func (in *Interpreter) execLine(ctx context.Context, src string) error {
	return in.execBody(ctx, Tokenize(src), 0)
}

func (in *Interpreter) execBody(ctx context.Context, toks []Token, pos int) error {
	for pos < len(toks) {
		if toks[pos].is(TokOp, ":") {
			pos++
			continue
		}
		next, err := in.execStatement(ctx, toks, pos)
		if err != nil {
			return err
		}
		pos = next
	}
	return nil
}

// execStatement executes the statement at toks[pos] and returns the index
// just past it.
func (in *Interpreter) execStatement(ctx context.Context, toks []Token, pos int) (int, error) {
	if pos >= len(toks) {
		return pos, nil
	}
	switch classify(toks, pos) {
	case stmtRem, stmtIgnore:
		return len(toks), nil
	case stmtPrint:
		return in.execPrint(toks, pos+1)
	case stmtInput:
		return in.execInput(ctx, toks, pos+1)
	case stmtLet:
		return in.execLet(toks, pos+1)
	case stmtIf:
		return in.execIf(ctx, toks, pos+1)
	case stmtFor:
		return in.execFor(toks, pos+1)
	case stmtNext:
		return in.execNext(toks, pos+1)
	case stmtGoto, stmtGosub:
		return in.execJump(toks, pos)
	case stmtReturn:
		if len(in.callStack) == 0 {
			return pos, ErrReturnWithoutGosub
		}
		in.pc = in.callStack[len(in.callStack)-1]
		in.callStack = in.callStack[:len(in.callStack)-1]
		return len(toks), nil
	case stmtEnd:
		in.running = false
		return len(toks), nil
	case stmtCls:
		in.out.Clear()
		return pos + 1, nil
	case stmtBeep:
		if s, ok := in.out.(Signals); ok {
			s.Beep()
		}
		return pos + 1, nil
	case stmtSleep:
		return in.execSleep(ctx, toks, pos+1)
	case stmtRead:
		return in.execRead(toks, pos+1)
	case stmtRestore:
		in.dataPtr = 0
		return pos + 1, nil
	case stmtAssign:
		name := toks[pos].Text
		v, next, err := in.evalAt(toks, pos+2)
		if err != nil {
			return next, err
		}
		in.vars[name] = v
		return next, nil
	}
	return pos, ErrSyntax
}

func (in *Interpreter) execPrint(toks []Token, pos int) (int, error) {
	var b strings.Builder
	newline := true
	for pos < len(toks) && !toks[pos].is(TokOp, ":") {
		switch {
		case toks[pos].is(TokOp, ";"):
			newline = false
			pos++
			continue
		case toks[pos].is(TokOp, ","):
			b.WriteByte('\t')
			newline = false
			pos++
			continue
		}
		v, next, err := in.evalAt(toks, pos)
		if err != nil {
			return next, err
		}
		pos = next
		b.WriteString(v.String())
		newline = true
	}
	if newline {
		in.out.WriteLine(b.String())
	} else {
		in.out.WriteRaw(b.String())
	}
	return pos, nil
}

func (in *Interpreter) execInput(ctx context.Context, toks []Token, pos int) (int, error) {
	prompt := ""
	if pos < len(toks) && toks[pos].Kind == TokString {
		prompt = toks[pos].Text
		pos++
		if pos < len(toks) && (toks[pos].is(TokOp, ";") || toks[pos].is(TokOp, ",")) {
			pos++
		}
	}
	if pos >= len(toks) || toks[pos].Kind != TokIdent {
		return pos, expected("variable")
	}
	name := toks[pos].Text
	pos++

	in.out.WriteRaw(prompt + "? ")
	text, err := in.awaitInput(ctx)
	if err != nil {
		return pos, err
	}
	if strings.HasSuffix(name, "$") {
		in.vars[name] = Str(text)
	} else {
		in.vars[name] = Num(numberOrZero(text))
	}
	return pos, nil
}

func (in *Interpreter) execLet(toks []Token, pos int) (int, error) {
	if pos >= len(toks) || toks[pos].Kind != TokIdent {
		return pos, expected("variable")
	}
	name := toks[pos].Text
	pos++
	if pos >= len(toks) || !toks[pos].is(TokOp, "=") {
		return pos, expected("=")
	}
	v, next, err := in.evalAt(toks, pos+1)
	if err != nil {
		return next, err
	}
	in.vars[name] = v
	return next, nil
}

// execIf handles the single-line form. A bare "IF cond THEN" is a block
// header that only the runner understands; here it is a no-op.
func (in *Interpreter) execIf(ctx context.Context, toks []Token, pos int) (int, error) {
	thenPos := indexOfIdent(toks, pos, "THEN")
	if thenPos < 0 {
		return pos, ErrIfWithoutThen
	}
	cond, err := in.evalAll(toks[pos:thenPos])
	if err != nil {
		return pos, err
	}
	pos = thenPos + 1
	if pos >= len(toks) {
		return pos, nil
	}

	// THEN <number> is a GOTO taken only when the condition holds.
	if toks[pos].Kind == TokNumber {
		if cond.Truthy() {
			target := Num(toks[pos].Num)
			idx := in.lineIndex(target)
			if idx < 0 {
				return pos, undefinedLine(target)
			}
			in.pc = idx
		}
		return len(toks), nil
	}

	elsePos := indexOfIdent(toks, pos, "ELSE")
	switch {
	case cond.Truthy():
		end := len(toks)
		if elsePos >= 0 {
			end = elsePos
		}
		if err := in.execBody(ctx, toks[:end], pos); err != nil {
			return pos, err
		}
	case elsePos >= 0:
		if err := in.execBody(ctx, toks, elsePos+1); err != nil {
			return pos, err
		}
	}
	return len(toks), nil
}

func indexOfIdent(toks []Token, from int, name string) int {
	for i := from; i < len(toks); i++ {
		if toks[i].is(TokIdent, name) {
			return i
		}
	}
	return -1
}

func (in *Interpreter) execFor(toks []Token, pos int) (int, error) {
	if pos >= len(toks) || toks[pos].Kind != TokIdent {
		return pos, expected("variable")
	}
	name := toks[pos].Text
	pos++
	if pos >= len(toks) || !toks[pos].is(TokOp, "=") {
		return pos, expected("=")
	}
	start, pos, err := in.evalAt(toks, pos+1)
	if err != nil {
		return pos, err
	}
	if pos >= len(toks) || !toks[pos].is(TokIdent, "TO") {
		return pos, expected("TO")
	}
	end, pos, err := in.evalAt(toks, pos+1)
	if err != nil {
		return pos, err
	}
	step := Num(1)
	if pos < len(toks) && toks[pos].is(TokIdent, "STEP") {
		step, pos, err = in.evalAt(toks, pos+1)
		if err != nil {
			return pos, err
		}
	}
	in.vars[name] = start
	in.forStack = append(in.forStack, forFrame{name: name, end: end, step: step, pc: in.pc})
	return pos, nil
}

// execNext always steps the innermost loop; a variable after NEXT is
// accepted and ignored.
func (in *Interpreter) execNext(toks []Token, pos int) (int, error) {
	if pos < len(toks) && toks[pos].Kind == TokIdent {
		pos++
	}
	if len(in.forStack) == 0 {
		return pos, ErrNextWithoutFor
	}
	f := in.forStack[len(in.forStack)-1]
	v := Add(in.variable(f.name), f.step)
	in.vars[f.name] = v

	var done bool
	if c, ok := compareLoose(f.step, Num(0)); ok && c > 0 {
		c, ok := compareLoose(v, f.end)
		done = ok && c > 0
	} else {
		c, ok := compareLoose(v, f.end)
		done = ok && c < 0
	}
	if done {
		in.forStack = in.forStack[:len(in.forStack)-1]
	} else {
		in.pc = f.pc
	}
	return pos, nil
}

func (in *Interpreter) execJump(toks []Token, pos int) (int, error) {
	gosub := toks[pos].Text == "GOSUB"
	target, _, err := in.evalAt(toks, pos+1)
	if err != nil {
		return pos, err
	}
	idx := in.lineIndex(target)
	if idx < 0 {
		return pos, undefinedLine(target)
	}
	if gosub {
		in.callStack = append(in.callStack, in.pc)
	}
	in.pc = idx
	return len(toks), nil
}

// lineIndex finds target in the sorted line list; only an exact numeric
// match counts.
func (in *Interpreter) lineIndex(target Value) int {
	if target.IsString() || target.num != math.Trunc(target.num) || math.IsInf(target.num, 0) {
		return -1
	}
	if target.num < math.MinInt32 || target.num > math.MaxInt32 {
		return -1
	}
	n := int(target.num)
	i := sort.SearchInts(in.lines, n)
	if i < len(in.lines) && in.lines[i] == n {
		return i
	}
	return -1
}

func (in *Interpreter) execSleep(ctx context.Context, toks []Token, pos int) (int, error) {
	secs, _, err := in.evalAt(toks, pos)
	if err != nil {
		return pos, err
	}
	ms := secs.Number() * 1000
	if math.IsNaN(ms) || ms < 0 {
		ms = 0
	}
	d := in.maxSleep
	if ms < float64(in.maxSleep/time.Millisecond) {
		d = time.Duration(ms * float64(time.Millisecond))
	}
	if err := in.pause(ctx, d); err != nil {
		return pos, err
	}
	return len(toks), nil
}

func (in *Interpreter) execRead(toks []Token, pos int) (int, error) {
	for pos < len(toks) && toks[pos].Kind == TokIdent {
		name := toks[pos].Text
		pos++
		if in.dataPtr >= len(in.data) {
			return pos, ErrOutOfData
		}
		in.vars[name] = in.data[in.dataPtr]
		in.dataPtr++
		if pos < len(toks) && toks[pos].is(TokOp, ",") {
			pos++
		} else {
			break
		}
	}
	return pos, nil
}
