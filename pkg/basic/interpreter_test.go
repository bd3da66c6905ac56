package basic

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder collects output the way a terminal would show it.
type recorder struct {
	mu      sync.Mutex
	lines   []string
	partial string
	clears  int
	beeps   int
	gurus   []string
}

func (r *recorder) WriteLine(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, r.partial+s)
	r.partial = ""
}

func (r *recorder) WriteRaw(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.partial += s
}

func (r *recorder) WriteMarked(s string) { r.WriteLine(s) }

func (r *recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clears++
	r.lines = nil
}

func (r *recorder) Beep() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.beeps++
}

func (r *recorder) GuruMeditation(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gurus = append(r.gurus, reason)
}

func (r *recorder) output() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

func (r *recorder) pending() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.partial
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = nil
	r.partial = ""
}

func newTestInterpreter(t *testing.T, opts ...Option) (*Interpreter, *recorder) {
	t.Helper()
	rec := &recorder{}
	base := []Option{WithEcho(false), WithRand(rand.New(rand.NewSource(1)))}
	in := NewInterpreter(rec, append(base, opts...)...)
	t.Cleanup(in.Shutdown)
	return in, rec
}

func waitFor(t *testing.T, in *Interpreter) State {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s := in.Wait(ctx)
	require.NotEqual(t, StateRunning, s, "interpreter still running")
	return s
}

// enter feeds lines one at a time, waiting for each to settle.
func enter(t *testing.T, in *Interpreter, lines ...string) {
	t.Helper()
	for _, l := range lines {
		in.HandleLine(l)
		waitFor(t, in)
	}
}

func runProgram(t *testing.T, in *Interpreter, rec *recorder, program ...string) []string {
	t.Helper()
	enter(t, in, "NEW")
	enter(t, in, program...)
	rec.reset()
	enter(t, in, "RUN")
	return rec.output()
}

func TestImmediateExpressions(t *testing.T) {
	in, rec := newTestInterpreter(t)
	tests := []struct {
		stmt string
		want string
	}{
		{"PRINT 3>2", "-1"},
		{"PRINT 3>2 AND 1<0", "0"},
		{"PRINT 1 OR 0", "-1"},
		{"PRINT NOT 0", "-1"},
		{"PRINT NOT 5", "0"},
		{"PRINT 1+2*3", "7"},
		{"PRINT (1+2)*3", "9"},
		{"PRINT 2^3", "8"},
		{"PRINT -2^2", "4"},
		{"PRINT 10/4", "2.5"},
		{"PRINT 7 MOD 3", "1"},
		{"PRINT -7 MOD 3", "-1"},
		{`PRINT "A"+1`, "A1"},
		{`PRINT 1+"A"`, "1A"},
		{`PRINT "5"-2`, "3"},
		{`PRINT "1"=1`, "0"},
		{`PRINT "A"="A"`, "-1"},
		{`PRINT "A"<"B"`, "-1"},
		{`PRINT "10"<9`, "0"},
		{`PRINT "X"<1`, "0"},
		{"PRINT 1<>2", "-1"},
		{"PRINT 2<=2", "-1"},
		{"PRINT 0.1+0.2", "0.30000000000000004"},
		{"PRINT PI", "3.141592653589793"},
		{"PRINT Q", "0"},
		{"PRINT Q$", ""},
		{"PRINT 1;2", "12"},
		{"PRINT 1,2", "1\t2"},
		{"PRINT", ""},
		{"PRINT INT(-2.5)", "-3"},
		{"PRINT INT()", "NaN"},
		{"PRINT SGN()", "NaN"},
		{`PRINT "<"+TAB()+">"`, "<>"},
		{`PRINT RIGHT$("ABC")`, "ABC"},
		{"PRINT ABS(-3)", "3"},
		{"PRINT SQR(16)", "4"},
		{"PRINT SGN(-4)", "-1"},
		{"PRINT SGN(0)", "0"},
		{"PRINT EXP(0)", "1"},
		{"PRINT LOG(1)", "0"},
		{"PRINT COS(0)", "1"},
		{"PRINT ATN(0)", "0"},
		{`PRINT LEN("ABC")`, "3"},
		{`PRINT LEFT$("HELLO",2)`, "HE"},
		{`PRINT LEFT$("HELLO")`, "HELLO"},
		{`PRINT RIGHT$("HELLO",3)`, "LLO"},
		{`PRINT RIGHT$("HELLO",0)`, "HELLO"},
		{`PRINT MID$("HELLO",2,3)`, "ELL"},
		{`PRINT MID$("HELLO",3)`, "LLO"},
		{`PRINT MID$("HELLO",0,2)`, "HE"},
		{"PRINT CHR$(65)", "A"},
		{`PRINT ASC("A")`, "65"},
		{`PRINT ASC("")`, "0"},
		{"PRINT STR$(5)", "5"},
		{`PRINT VAL("12abc")`, "12"},
		{`PRINT VAL("x")`, "0"},
		{`PRINT TAB(3);"X"`, "   X"},
		{`PRINT TAB(-2);"X"`, "X"},
		{`PRINT UCASE$("abc")`, "ABC"},
		{`PRINT LCASE$("ABC")`, "abc"},
		{"PRINT RND(10)<10", "-1"},
		{"PRINT RND<1", "-1"},
		{"PRINT PEEK(0)<256", "-1"},
		{"PRINT 1 2", "12"},
	}
	for _, tt := range tests {
		t.Run(tt.stmt, func(t *testing.T) {
			rec.reset()
			enter(t, in, tt.stmt)
			out := rec.output()
			require.Len(t, out, 2, "output %q", out)
			assert.Equal(t, tt.want, out[0])
			assert.Equal(t, "Ok", out[1])
		})
	}
}

func TestPrintTrailingSeparatorKeepsLine(t *testing.T) {
	in, rec := newTestInterpreter(t)
	enter(t, in, `PRINT "A";`)
	assert.Equal(t, []string{"AOk"}, rec.output())

	rec.reset()
	runProgram(t, in, rec, `10 PRINT "A";`, `20 PRINT "B"`)
	assert.Equal(t, []string{"AB", "Ok"}, rec.output())
}

func TestImmediateErrors(t *testing.T) {
	in, rec := newTestInterpreter(t)
	tests := []struct {
		stmt string
		want string
	}{
		{"PRINT 1/0", "?Division by zero"},
		{"PRINT FOO(1)", "?Unknown function: FOO"},
		{"PRINT (1", "?Expected )"},
		{"PRINT 1+", "?Unexpected end"},
		{"PRINT )", "?Syntax error"},
		{"FOO", "?Syntax error"},
		{"LET 5", "?Expected variable"},
		{"LET A 5", "?Expected ="},
		{"INPUT 5", "?Expected variable"},
		{"IF 1 PRINT 2", "?IF without THEN"},
		{"FOR 1", "?Expected variable"},
		{"FOR I 1", "?Expected ="},
		{"FOR I=1 5", "?Expected TO"},
		{"NEXT", "?NEXT without FOR"},
		{"RETURN", "?RETURN without GOSUB"},
		{"GOTO 99", "?Undefined line 99"},
		{`GOSUB "X"`, "?Undefined line X"},
		{"READ A", "?Out of DATA"},
	}
	for _, tt := range tests {
		t.Run(tt.stmt, func(t *testing.T) {
			rec.reset()
			enter(t, in, tt.stmt)
			assert.Equal(t, []string{tt.want, "Ok"}, rec.output())
		})
	}
}

func TestAssignmentErrorLeavesTargetUnchanged(t *testing.T) {
	in, rec := newTestInterpreter(t)
	enter(t, in, "A=1", "A=1/0")
	assert.Equal(t, []string{"Ok", "?Division by zero", "Ok"}, rec.output())
	assert.Equal(t, "1", in.Var("a").String())
}

func TestVariablesPersistAcrossImmediateStatements(t *testing.T) {
	in, rec := newTestInterpreter(t)
	enter(t, in, "A=5", "LET B$=\"X\"", "PRINT A;B$")
	assert.Equal(t, []string{"Ok", "Ok", "5X", "Ok"}, rec.output())

	runProgram(t, in, rec, "10 PRINT A")
	assert.Equal(t, []string{"0", "Ok"}, rec.output(), "RUN resets variables")
}

func TestSingleLineIf(t *testing.T) {
	in, rec := newTestInterpreter(t)
	tests := []struct {
		stmt string
		want []string
	}{
		{`IF 1 THEN PRINT "A" ELSE PRINT "B"`, []string{"A", "Ok"}},
		{`IF 0 THEN PRINT "A" ELSE PRINT "B"`, []string{"B", "Ok"}},
		{`IF 0 THEN PRINT "A"`, []string{"Ok"}},
		{`IF 1 THEN PRINT "X" : PRINT "Y"`, []string{"X", "Y", "Ok"}},
		{`IF 0 THEN PRINT "X" ELSE PRINT "Y" : PRINT "Z"`, []string{"Y", "Z", "Ok"}},
		{`IF 1 THEN`, []string{"Ok"}},
		{`IF 0 THEN 500`, []string{"Ok"}},
		{`IF 1 THEN 500`, []string{"?Undefined line 500", "Ok"}},
	}
	for _, tt := range tests {
		t.Run(tt.stmt, func(t *testing.T) {
			rec.reset()
			enter(t, in, tt.stmt)
			assert.Equal(t, tt.want, rec.output())
		})
	}
}

func TestOversizedLineNumberRejected(t *testing.T) {
	in, rec := newTestInterpreter(t)
	enter(t, in, `99999999999999999999 PRINT "X"`)
	assert.Equal(t, []string{"?Line number out of range", "Ok"}, rec.output())
	assert.Empty(t, in.Program())
}

func TestProgramEntryAndList(t *testing.T) {
	in, rec := newTestInterpreter(t)
	enter(t, in, `20 PRINT "B"`, `10 PRINT "HI"`, "30 END", "30")
	rec.reset()
	enter(t, in, "LIST")
	assert.Equal(t, []string{`10 PRINT "HI"`, `20 PRINT "B"`, "Ok"}, rec.output())

	rec.reset()
	enter(t, in, "list 10")
	assert.Equal(t, []string{`10 PRINT "HI"`, `20 PRINT "B"`, "Ok"}, rec.output())

	enter(t, in, "NEW", "NEW")
	assert.Empty(t, in.Program())
	rec.reset()
	enter(t, in, "LIST")
	assert.Equal(t, []string{"Ok"}, rec.output())
}

func TestExecutionOrderIsAscending(t *testing.T) {
	in, rec := newTestInterpreter(t)
	out := runProgram(t, in, rec, `30 PRINT "C"`, `10 PRINT "A"`, `20 PRINT "B"`)
	assert.Equal(t, []string{"A", "B", "C", "Ok"}, out)
}

func TestForNext(t *testing.T) {
	in, rec := newTestInterpreter(t)

	out := runProgram(t, in, rec, "10 FOR I=1 TO 5", "20 NEXT", "30 PRINT I")
	assert.Equal(t, []string{"6", "Ok"}, out)

	out = runProgram(t, in, rec, "10 FOR I=5 TO 1 STEP -1", "20 PRINT I", "30 NEXT I")
	assert.Equal(t, []string{"5", "4", "3", "2", "1", "Ok"}, out)

	out = runProgram(t, in, rec,
		"10 FOR I=1 TO 2",
		"20 FOR J=1 TO 2",
		`30 PRINT "(";I;",";J;")"`,
		"40 NEXT J",
		"50 NEXT I",
	)
	assert.Equal(t, []string{"(1,1)", "(1,2)", "(2,1)", "(2,2)", "Ok"}, out)

	out = runProgram(t, in, rec, "10 FOR I=0 TO 1 STEP 0.5", "20 PRINT I", "30 NEXT")
	assert.Equal(t, []string{"0", "0.5", "1", "Ok"}, out)
}

func TestGosubReturn(t *testing.T) {
	in, rec := newTestInterpreter(t)
	out := runProgram(t, in, rec,
		"10 GOSUB 100",
		`20 PRINT "BACK"`,
		"30 END",
		`100 PRINT "SUB"`,
		"110 RETURN",
	)
	assert.Equal(t, []string{"SUB", "BACK", "Ok"}, out)
}

func TestGotoComputedTarget(t *testing.T) {
	in, rec := newTestInterpreter(t)
	out := runProgram(t, in, rec,
		"10 N=2",
		"20 GOTO N*20",
		`30 PRINT "NO"`,
		`40 PRINT "YES"`,
	)
	assert.Equal(t, []string{"YES", "Ok"}, out)
}

func TestIfThenLineNumber(t *testing.T) {
	in, rec := newTestInterpreter(t)
	out := runProgram(t, in, rec,
		"10 IF 1 THEN 30",
		`20 PRINT "SKIPPED"`,
		`30 PRINT "JUMPED"`,
	)
	assert.Equal(t, []string{"JUMPED", "Ok"}, out)
}

func TestProgramErrorsReportLine(t *testing.T) {
	in, rec := newTestInterpreter(t)
	tests := []struct {
		name    string
		program []string
		want    []string
	}{
		{"division", []string{"10 PRINT 1/0"}, []string{"?Division by zero in 10", "Ok"}},
		{"halts", []string{`10 PRINT "A"`, "20 X", `30 PRINT "B"`}, []string{"A", "?Syntax error in 20", "Ok"}},
		{"wend", []string{"10 WEND"}, []string{"?WEND without WHILE in 10", "Ok"}},
		{"return", []string{"10 RETURN"}, []string{"?RETURN without GOSUB in 10", "Ok"}},
		{"undefined", []string{"10 GOTO 15"}, []string{"?Undefined line 15 in 10", "Ok"}},
		{"block if", []string{"10 IF (1 THEN"}, []string{"?Expected ) in 10", "Ok"}},
		{"end stops", []string{`10 PRINT "A"`, "20 END", `30 PRINT "B"`}, []string{"A", "Ok"}},
		{"stop stops", []string{"10 STOP", `20 PRINT "B"`}, []string{"Ok"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := runProgram(t, in, rec, tt.program...)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestMultiLineIf(t *testing.T) {
	in, rec := newTestInterpreter(t)
	program := func(a string) []string {
		return []string{
			"10 A=" + a,
			"20 IF A=1 THEN",
			`30 PRINT "ONE"`,
			"40 ELSE",
			`50 PRINT "OTHER"`,
			"60 END IF",
			`70 PRINT "DONE"`,
		}
	}
	assert.Equal(t, []string{"ONE", "DONE", "Ok"}, runProgram(t, in, rec, program("1")...))
	assert.Equal(t, []string{"OTHER", "DONE", "Ok"}, runProgram(t, in, rec, program("2")...))

	nested := []string{
		"10 IF 0 THEN",
		"20 IF 1 THEN",
		`30 PRINT "INNER"`,
		"40 END IF",
		`50 PRINT "OUTER"`,
		"60 ENDIF",
		`70 PRINT "AFTER"`,
	}
	assert.Equal(t, []string{"AFTER", "Ok"}, runProgram(t, in, rec, nested...))
}

func TestWhileWend(t *testing.T) {
	in, rec := newTestInterpreter(t)
	out := runProgram(t, in, rec,
		"10 I=0",
		"20 WHILE I<3",
		"30 I=I+1",
		"40 PRINT I",
		"50 WEND",
		`60 PRINT "END"`,
	)
	assert.Equal(t, []string{"1", "2", "3", "END", "Ok"}, out)

	out = runProgram(t, in, rec,
		"10 WHILE 0",
		"20 WHILE 1",
		"30 WEND",
		"40 WEND",
		`50 PRINT "SKIPPED"`,
	)
	assert.Equal(t, []string{"SKIPPED", "Ok"}, out)
}

func TestDataReadRestore(t *testing.T) {
	in, rec := newTestInterpreter(t)
	out := runProgram(t, in, rec,
		`10 DATA 1, "two", three`,
		"20 READ A, B$, C$",
		"30 PRINT A;B$;C$",
		"40 RESTORE",
		"50 READ D",
		"60 PRINT D+1",
		"70 READ X,Y,Z",
	)
	assert.Equal(t, []string{"1twothree", "2", "?Out of DATA in 70", "Ok"}, out)
}

func TestCycleLimit(t *testing.T) {
	in, rec := newTestInterpreter(t)
	out := runProgram(t, in, rec, "10 GOTO 10")
	assert.Equal(t, []string{"?Out of memory in 10", "Ok"}, out)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Len(t, rec.gurus, 1)
}

func TestCycleLimitIsConfigurable(t *testing.T) {
	in, rec := newTestInterpreter(t, WithCycleLimit(5))
	out := runProgram(t, in, rec, "10 I=I+1", "20 PRINT I", "30 GOTO 10")
	assert.Equal(t, []string{"1", "2", "?Out of memory in 30", "Ok"}, out)
}

func TestCycleLimitCountsBlockLines(t *testing.T) {
	tests := []struct {
		name    string
		program []string
		want    []string
	}{
		{"while", []string{"10 WHILE 1", "20 WEND"}, []string{"?Out of memory in 20", "Ok"}},
		{"block if", []string{"10 IF 1 THEN", "20 END IF", "30 GOTO 10"}, []string{"?Out of memory in 30", "Ok"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, rec := newTestInterpreter(t, WithCycleLimit(5))
			out := runProgram(t, in, rec, tt.program...)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestInputSuspendsAndResumes(t *testing.T) {
	in, rec := newTestInterpreter(t, WithEcho(true))
	enter(t, in, `10 INPUT "NAME";N$`, `20 INPUT A`, `30 PRINT "HI ";N$;A+1`)
	rec.reset()

	in.HandleLine("RUN")
	require.Equal(t, StateAwaitingInput, waitFor(t, in))
	assert.Equal(t, "NAME? ", rec.pending())

	in.HandleLine("BOB")
	require.Equal(t, StateAwaitingInput, waitFor(t, in))
	in.HandleLine("41 apples")
	require.Equal(t, StateIdle, waitFor(t, in))

	assert.Equal(t, []string{"RUN", "NAME? BOB", "? 41 apples", "HI BOB42", "Ok"}, rec.output())
}

func TestInputNonNumericBecomesZero(t *testing.T) {
	in, rec := newTestInterpreter(t)
	in.HandleLine("INPUT X")
	require.Equal(t, StateAwaitingInput, waitFor(t, in))
	in.HandleLine("abc")
	waitFor(t, in)
	enter(t, in, "PRINT X")
	assert.Equal(t, []string{"? Ok", "0", "Ok"}, rec.output())
}

func TestBreakDuringInput(t *testing.T) {
	in, rec := newTestInterpreter(t)
	enter(t, in, "10 INPUT A", `20 PRINT "AFTER"`)
	rec.reset()
	in.HandleLine("RUN")
	require.Equal(t, StateAwaitingInput, waitFor(t, in))

	assert.True(t, in.Break())
	assert.Equal(t, StateIdle, waitFor(t, in))
	assert.Equal(t, []string{"? Break", "Ok"}, rec.output())

	// Idle break is a no-op.
	assert.False(t, in.Break())
	assert.Equal(t, []string{"? Break", "Ok"}, rec.output())
}

func TestLineAfterBreakDuringInputIsACommand(t *testing.T) {
	for i := 0; i < 20; i++ {
		in, rec := newTestInterpreter(t)
		enter(t, in, "10 INPUT A")
		rec.reset()
		in.HandleLine("RUN")
		require.Equal(t, StateAwaitingInput, waitFor(t, in))

		require.True(t, in.Break())
		assert.NotEqual(t, StateAwaitingInput, in.State())
		assert.False(t, in.Break(), "second break while stopping")
		in.HandleLine("PRINT 5")
		require.Equal(t, StateIdle, waitFor(t, in))
		assert.Equal(t, []string{"? Break", "Ok", "5", "Ok"}, rec.output())
	}
}

func TestBreakStopsRunawayProgram(t *testing.T) {
	in, rec := newTestInterpreter(t, WithCycleLimit(1<<30))
	enter(t, in, "10 GOTO 10")
	rec.reset()
	in.HandleLine("RUN")
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StateRunning, in.State())

	in.Break()
	waitFor(t, in)
	assert.Equal(t, []string{"Break", "Ok"}, rec.output())
}

func TestLinesRejectedWhileRunning(t *testing.T) {
	in, rec := newTestInterpreter(t, WithMaxSleep(time.Minute))
	enter(t, in, "10 SLEEP 30")
	rec.reset()
	in.HandleLine("RUN")
	in.HandleLine("20 PRINT 1")
	assert.Equal(t, []string{"?Program running"}, rec.output())
	assert.Error(t, in.LoadProgram(map[int]string{1: "END"}))

	in.Break()
	waitFor(t, in)
	assert.Equal(t, map[int]string{10: "SLEEP 30"}, in.Program())
}

func TestSleepIsCapped(t *testing.T) {
	in, rec := newTestInterpreter(t, WithMaxSleep(10*time.Millisecond))
	start := time.Now()
	out := runProgram(t, in, rec, "10 SLEEP 100", `20 PRINT "DONE"`)
	assert.Equal(t, []string{"DONE", "Ok"}, out)
	assert.True(t, time.Since(start) < 5*time.Second)
}

func TestEchoAndBlankLines(t *testing.T) {
	in, rec := newTestInterpreter(t, WithEcho(true))
	enter(t, in, "   ", "PRINT 1", "10 REM")
	assert.Equal(t, []string{"Ok", "PRINT 1", "1", "Ok", "10 REM", "Ok"}, rec.output())
}

func TestBannerHelpAndSkills(t *testing.T) {
	in, rec := newTestInterpreter(t)
	in.Banner()
	assert.Equal(t, []string{
		"AmigaBASIC v3.4",
		"(c) 2026 Workbench Edition",
		"32768 bytes free",
		"Use [[HELP]] for a list of commands",
		"Ok",
	}, rec.output())

	rec.reset()
	enter(t, in, "help")
	out := rec.output()
	require.Len(t, out, 10)
	assert.Equal(t, "RUN, LIST, NEW, REM, END, SKILLS, [[QUEST]]", out[3])
	assert.Equal(t, "", out[4])
	assert.Equal(t, "Ok", out[9])

	rec.reset()
	enter(t, in, "SKILLS")
	out = rec.output()
	assert.Equal(t, "=== Skills ===", out[0])
	assert.Equal(t, "Speaks:     Danish, English", out[len(out)-2])
	assert.Equal(t, "Ok", out[len(out)-1])
}

func TestClsBeepAndNoops(t *testing.T) {
	in, rec := newTestInterpreter(t)
	enter(t, in, "BEEP", "DIM A(10)", "POKE 1,2", "CLS")
	assert.Equal(t, []string{"Ok"}, rec.output())
	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, 1, rec.beeps)
	assert.Equal(t, 1, rec.clears)
}

func TestTimerUsesClock(t *testing.T) {
	clock := func() time.Time { return time.Unix(1700000000, 900000000) }
	in, rec := newTestInterpreter(t, WithClock(clock))
	enter(t, in, "PRINT TIMER")
	assert.Equal(t, []string{"1700000000", "Ok"}, rec.output())
}

func TestProgramListener(t *testing.T) {
	var (
		mu        sync.Mutex
		snapshots []map[int]string
	)
	in, _ := newTestInterpreter(t, WithProgramListener(func(p map[int]string) {
		mu.Lock()
		defer mu.Unlock()
		snapshots = append(snapshots, p)
	}))
	enter(t, in, "10 PRINT 1", "20 PRINT 2", "10", "NEW")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, snapshots, 4)
	assert.Equal(t, map[int]string{10: "PRINT 1"}, snapshots[0])
	assert.Equal(t, map[int]string{20: "PRINT 2"}, snapshots[2])
	assert.Empty(t, snapshots[3])
}

func TestLoadProgram(t *testing.T) {
	in, rec := newTestInterpreter(t)
	require.NoError(t, in.LoadProgram(map[int]string{10: `PRINT "LOADED"`}))
	enter(t, in, "RUN")
	assert.Equal(t, []string{"LOADED", "Ok"}, rec.output())
	assert.Equal(t, []string{`10 PRINT "LOADED"`}, in.Listing())
}

type fakeAdventure struct {
	active  bool
	started int
	lines   []string
}

func (f *fakeAdventure) Active() bool { return f.active }
func (f *fakeAdventure) Start()       { f.started++; f.active = true }
func (f *fakeAdventure) HandleLine(text string) {
	f.lines = append(f.lines, text)
	if strings.EqualFold(text, "quit") {
		f.active = false
	}
}

func TestQuestHandsInputToAdventure(t *testing.T) {
	adv := &fakeAdventure{}
	in, rec := newTestInterpreter(t, WithAdventure(adv))
	enter(t, in, "quest")
	assert.Equal(t, 1, adv.started)
	assert.Empty(t, rec.output(), "QUEST prints no Ok of its own")

	enter(t, in, "LOOK", "PRINT 1", "quit", "PRINT 2")
	assert.Equal(t, []string{"LOOK", "PRINT 1", "quit"}, adv.lines)
	assert.Equal(t, []string{"2", "Ok"}, rec.output())
}

func TestQuestWithoutAdventure(t *testing.T) {
	in, rec := newTestInterpreter(t)
	enter(t, in, "QUEST")
	assert.Equal(t, []string{"?Adventure not available", "Ok"}, rec.output())
}

func TestErrorReport(t *testing.T) {
	be := asBASICError(ErrDivisionByZero, 10, false)
	assert.Equal(t, "?Division by zero in 10", be.Report())
	assert.Equal(t, CategoryRuntime, be.Category)
	assert.True(t, errors.Is(be, ErrDivisionByZero))

	be = asBASICError(expected("TO"), 0, true)
	assert.Equal(t, "?Expected TO", be.Report())
	assert.Equal(t, CategorySyntax, be.Category)
	assert.True(t, errors.Is(be, ErrExpected))
}
