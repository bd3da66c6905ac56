package basic

import (
	"context"
	"math"
	"regexp"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/antibyte/workbench/pkg/logger"
)

var (
	reBlockIf   = regexp.MustCompile(`(?i)^IF\b`)
	reBlockThen = regexp.MustCompile(`(?i)\bTHEN\s*$`)
	reElse      = regexp.MustCompile(`(?i)^ELSE\b`)
	reEndIf     = regexp.MustCompile(`(?i)^END\s*IF\b`)
	reWhile     = regexp.MustCompile(`(?i)^WHILE\b`)
	reWend      = regexp.MustCompile(`(?i)^WEND\b`)
	reData      = regexp.MustCompile(`(?i)^DATA\b`)
)

func isBlockIf(src string) bool { return reBlockIf.MatchString(src) && reBlockThen.MatchString(src) }

// resetForRun clears all per-run state and snapshots the line order.
func (in *Interpreter) resetForRun() {
	in.lines = in.lines[:0]
	for n := range in.program {
		in.lines = append(in.lines, n)
	}
	sort.Ints(in.lines)
	in.pc = 0
	in.running = true
	in.callStack = nil
	in.forStack = nil
	in.whileStack = nil
	in.vars = make(map[string]Value)
	in.collectData()
}

// collectData builds the DATA pool from every DATA line in program order.
// Quoted items are strings, numeric items numbers, anything else text.
func (in *Interpreter) collectData() {
	in.data = in.data[:0]
	in.dataPtr = 0
	for _, n := range in.lines {
		src := strings.TrimSpace(in.program[n])
		if !reData.MatchString(src) {
			continue
		}
		for _, item := range strings.Split(src[4:], ",") {
			item = strings.TrimSpace(item)
			switch {
			case len(item) >= 2 && strings.HasPrefix(item, `"`) && strings.HasSuffix(item, `"`):
				in.data = append(in.data, Str(item[1:len(item)-1]))
			case item == `"`:
				in.data = append(in.data, Str(""))
			case item == "":
				in.data = append(in.data, Str(""))
			default:
				if !math.IsNaN(looseNumber(item)) {
					in.data = append(in.data, Num(numberOrZero(item)))
				} else {
					in.data = append(in.data, Str(item))
				}
			}
		}
	}
}

// runProgram executes the stored program from the first line. The caller
// holds in.mu; it is released between lines so the host can deliver Break.
func (in *Interpreter) runProgram(ctx context.Context) {
	in.resetForRun()
	logger.BasicDebug("RUN: %d lines, %d DATA items", len(in.lines), len(in.data))

	cycles, steps := 0, 0
	for in.running && in.pc < len(in.lines) {
		if ctx.Err() != nil {
			in.running = false
			break
		}
		lineNum := in.lines[in.pc]
		src := strings.TrimSpace(in.program[lineNum])
		in.pc++

		block, err := in.execBlockLine(src)
		if !block {
			err = in.execLine(ctx, src)
		}
		if err != nil {
			if err == errBreak {
				in.running = false
				break
			}
			be := asBASICError(err, lineNum, false)
			logger.BasicDebug("halted at %d: %s (%s)", lineNum, be.Message, be.Category)
			in.out.WriteLine(be.Report())
			in.running = false
		}

		steps++
		if steps%in.yieldEvery == 0 {
			in.mu.Unlock()
			runtime.Gosched()
			in.mu.Lock()
		}
		cycles++
		if in.running && cycles > in.cycleLimit {
			be := asBASICError(ErrOutOfMemory, lineNum, false)
			in.out.WriteLine(be.Report())
			in.running = false
			logger.BasicWarn("cycle limit %d reached at line %d", in.cycleLimit, lineNum)
			if s, ok := in.out.(Signals); ok {
				s.GuruMeditation("Out of memory in " + strconv.Itoa(lineNum))
			}
		}
	}
	in.running = false
}

// execBlockLine handles the line-level forms IF ... THEN, ELSE, END IF,
// WHILE and WEND. It reports false for any other line.
func (in *Interpreter) execBlockLine(src string) (bool, error) {
	switch {
	case isBlockIf(src):
		thenIdx := reBlockThen.FindStringIndex(src)[0]
		cond, err := in.evalAll(Tokenize(src[2:thenIdx]))
		if err != nil {
			return true, err
		}
		if !cond.Truthy() {
			in.skipIf(true)
		}
		return true, nil
	case reElse.MatchString(src):
		// Reached from the true branch: jump past END IF.
		in.skipIf(false)
		return true, nil
	case reEndIf.MatchString(src):
		return true, nil
	case reWhile.MatchString(src):
		cond, err := in.evalAll(Tokenize(src[5:]))
		if err != nil {
			return true, err
		}
		header := in.pc - 1
		top := len(in.whileStack) - 1
		if cond.Truthy() {
			if top < 0 || in.whileStack[top] != header {
				in.whileStack = append(in.whileStack, header)
			}
		} else {
			if top >= 0 && in.whileStack[top] == header {
				in.whileStack = in.whileStack[:top]
			}
			in.skipWend()
		}
		return true, nil
	case reWend.MatchString(src):
		if len(in.whileStack) == 0 {
			return true, ErrWendWithoutWhile
		}
		in.pc = in.whileStack[len(in.whileStack)-1]
		return true, nil
	}
	return false, nil
}

// skipIf advances pc past the matching END IF, or just past a same-depth
// ELSE when findElse is set.
func (in *Interpreter) skipIf(findElse bool) {
	depth := 0
	for in.pc < len(in.lines) {
		src := strings.TrimSpace(in.program[in.lines[in.pc]])
		switch {
		case isBlockIf(src):
			depth++
		case reElse.MatchString(src) && depth == 0 && findElse:
			in.pc++
			return
		case reEndIf.MatchString(src):
			if depth == 0 {
				in.pc++
				return
			}
			depth--
		}
		in.pc++
	}
}

// skipWend advances pc past the WEND matching the current WHILE.
func (in *Interpreter) skipWend() {
	depth := 0
	for in.pc < len(in.lines) {
		src := strings.TrimSpace(in.program[in.lines[in.pc]])
		switch {
		case reWhile.MatchString(src):
			depth++
		case reWend.MatchString(src):
			if depth == 0 {
				in.pc++
				return
			}
			depth--
		}
		in.pc++
	}
}
