// Package basic implements a small line-numbered BASIC interpreter with a
// REPL front end.
package basic

import (
	"context"
	"math/rand"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/antibyte/workbench/pkg/configuration"
	"github.com/antibyte/workbench/pkg/logger"
)

// State is the externally visible run state.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateAwaitingInput
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateAwaitingInput:
		return "awaiting input"
	}
	return "unknown"
}

var reLineEntry = regexp.MustCompile(`^(\d+)\s*(.*)`)

// Interpreter owns one BASIC session: program, variables and run state.
// All methods are safe for concurrent use; programs execute on a
// background job started by HandleLine.
type Interpreter struct {
	mu  sync.Mutex
	out Output
	adv Adventure

	// Program and variables
	program map[int]string
	vars    map[string]Value

	// Per-run state, reset by RUN
	lines      []int
	pc         int
	callStack  []int
	forStack   []forFrame
	whileStack []int
	data       []Value
	dataPtr    int
	running    bool

	// Job control
	state      State
	stopping   bool // Break delivered, job not yet finished
	changed    chan struct{}
	inputCh    chan string
	cancel     context.CancelFunc
	baseCtx    context.Context
	baseCancel context.CancelFunc

	// Settings
	echo       bool
	cycleLimit int
	yieldEvery int
	maxSleep   time.Duration
	rng        *rand.Rand
	now        func() time.Time
	onProgram  func(map[int]string)
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithAdventure attaches the QUEST game.
func WithAdventure(a Adventure) Option { return func(in *Interpreter) { in.adv = a } }

// WithEcho controls whether entered lines are written back to the output.
func WithEcho(echo bool) Option { return func(in *Interpreter) { in.echo = echo } }

// WithCycleLimit sets how many lines a RUN may execute.
func WithCycleLimit(n int) Option { return func(in *Interpreter) { in.cycleLimit = n } }

// WithMaxSleep caps SLEEP.
func WithMaxSleep(d time.Duration) Option { return func(in *Interpreter) { in.maxSleep = d } }

// WithRand replaces the random source used by RND and PEEK.
func WithRand(r *rand.Rand) Option { return func(in *Interpreter) { in.rng = r } }

// WithClock replaces the clock used by TIMER.
func WithClock(now func() time.Time) Option { return func(in *Interpreter) { in.now = now } }

// WithProgramListener registers fn to receive a copy of the program after
// every edit. fn runs without the interpreter lock held.
func WithProgramListener(fn func(map[int]string)) Option {
	return func(in *Interpreter) { in.onProgram = fn }
}

// NewInterpreter creates an idle interpreter writing to out. Limits come
// from the [BASIC] configuration section unless overridden by opts.
func NewInterpreter(out Output, opts ...Option) *Interpreter {
	in := &Interpreter{
		out:        out,
		program:    make(map[int]string),
		vars:       make(map[string]Value),
		changed:    make(chan struct{}),
		inputCh:    make(chan string, 1),
		echo:       configuration.GetBool("BASIC", "echo_input", true),
		cycleLimit: configuration.GetInt("BASIC", "cycle_limit", 3000),
		yieldEvery: configuration.GetInt("BASIC", "yield_every", 100),
		maxSleep:   configuration.GetDuration("BASIC", "max_sleep", 10*time.Second),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(in)
	}
	if in.yieldEvery <= 0 {
		in.yieldEvery = 100
	}
	in.baseCtx, in.baseCancel = context.WithCancel(context.Background())
	return in
}

// Banner prints the start-up greeting.
func (in *Interpreter) Banner() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.out.WriteLine("AmigaBASIC v3.4")
	in.out.WriteLine("(c) 2026 Workbench Edition")
	in.out.WriteLine("32768 bytes free")
	in.out.WriteMarked("Use [[HELP]] for a list of commands")
	in.out.WriteLine("Ok")
}

// HandleLine dispatches one line of host input. Pending INPUT takes
// precedence, then an active adventure, then program entry, commands and
// immediate statements.
func (in *Interpreter) HandleLine(text string) {
	in.mu.Lock()
	// Nach Break erst das Ende des abgebrochenen Jobs abwarten
	for in.stopping {
		ch := in.changed
		in.mu.Unlock()
		<-ch
		in.mu.Lock()
	}
	switch in.state {
	case StateAwaitingInput:
		if in.echo {
			in.out.WriteLine(text)
		}
		in.setState(StateRunning)
		in.inputCh <- text
		in.mu.Unlock()
		return
	case StateRunning:
		in.out.WriteLine("?" + ErrProgramRunning.Error())
		in.mu.Unlock()
		return
	}
	in.mu.Unlock()

	if in.adv != nil && in.adv.Active() {
		in.adv.HandleLine(text)
		return
	}

	trimmed := strings.TrimSpace(text)
	in.mu.Lock()
	if trimmed == "" {
		in.out.WriteLine("Ok")
		in.mu.Unlock()
		return
	}
	if in.echo {
		in.out.WriteLine(text)
	}

	if m := reLineEntry.FindStringSubmatch(trimmed); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			in.out.WriteLine(asBASICError(ErrLineNumber, 0, true).Report())
			in.out.WriteLine("Ok")
			in.mu.Unlock()
			return
		}
		if m[2] == "" {
			delete(in.program, n)
		} else {
			in.program[n] = m[2]
		}
		in.out.WriteLine("Ok")
		in.unlockAndNotify()
		return
	}

	upper := strings.ToUpper(trimmed)
	switch {
	case upper == "RUN":
		in.startJob(in.runProgram)
	case strings.HasPrefix(upper, "LIST"):
		for _, l := range in.listing() {
			in.out.WriteLine(l)
		}
		in.out.WriteLine("Ok")
	case upper == "NEW":
		in.program = make(map[int]string)
		in.vars = make(map[string]Value)
		in.out.WriteLine("Ok")
		in.unlockAndNotify()
		return
	case upper == "HELP":
		in.writeHelp()
	case upper == "SKILLS":
		in.writeSkills()
	case upper == "QUEST":
		if in.adv == nil {
			in.out.WriteLine("?Adventure not available")
			in.out.WriteLine("Ok")
			break
		}
		in.mu.Unlock()
		logger.BasicInfo("QUEST: starting adventure")
		in.adv.Start()
		return
	default:
		in.startJob(func(ctx context.Context) {
			if err := in.execLine(ctx, trimmed); err != nil && err != errBreak {
				in.out.WriteLine(asBASICError(err, 0, true).Report())
			}
		})
	}
	in.mu.Unlock()
}

// unlockAndNotify releases in.mu and hands a program snapshot to the
// listener.
func (in *Interpreter) unlockAndNotify() {
	var snap map[int]string
	if in.onProgram != nil {
		snap = in.programCopy()
	}
	in.mu.Unlock()
	if snap != nil {
		in.onProgram(snap)
	}
}

// startJob runs fn on a new goroutine holding in.mu. The job prints the
// closing Ok and returns the interpreter to idle. Caller holds in.mu.
func (in *Interpreter) startJob(fn func(ctx context.Context)) {
	ctx, cancel := context.WithCancel(in.baseCtx)
	in.cancel = cancel
	in.setState(StateRunning)
	select {
	case <-in.inputCh:
	default:
	}
	go in.runJob(ctx, cancel, fn)
}

func (in *Interpreter) runJob(ctx context.Context, cancel context.CancelFunc, fn func(ctx context.Context)) {
	in.mu.Lock()
	defer func() {
		if r := recover(); r != nil {
			logger.BasicError("job panicked: %v", r)
			in.out.WriteLine("?Internal error")
		}
		cancel()
		in.cancel = nil
		in.stopping = false
		in.running = false
		in.out.WriteLine("Ok")
		in.setState(StateIdle)
		in.mu.Unlock()
	}()
	fn(ctx)
}

// setState records a transition and wakes Wait callers. Caller holds in.mu.
func (in *Interpreter) setState(s State) {
	in.state = s
	close(in.changed)
	in.changed = make(chan struct{})
}

// State reports the current run state.
func (in *Interpreter) State() State {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.state
}

// Wait blocks until the interpreter is idle or waiting for INPUT, or ctx
// is done, and returns the state it observed last.
func (in *Interpreter) Wait(ctx context.Context) State {
	for {
		in.mu.Lock()
		s, ch := in.state, in.changed
		in.mu.Unlock()
		if s != StateRunning {
			return s
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return s
		}
	}
}

// Break stops a running program or immediate statement between lines and
// interrupts a pending INPUT or SLEEP. It reports whether a job was
// stopped; when idle or already stopping it does nothing. A pending INPUT
// no longer accepts lines once Break returns; HandleLine holds them until
// the job has finished.
func (in *Interpreter) Break() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.state == StateIdle || in.cancel == nil || in.stopping {
		return false
	}
	in.cancel()
	in.stopping = true
	in.running = false
	if in.state == StateAwaitingInput {
		in.setState(StateRunning)
	}
	in.out.WriteLine("Break")
	logger.BasicDebug("break requested")
	return true
}

// Shutdown cancels any job silently; the interpreter accepts no more work.
func (in *Interpreter) Shutdown() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.running = false
	in.baseCancel()
}

// Program returns a copy of the stored program.
func (in *Interpreter) Program() map[int]string {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.programCopy()
}

func (in *Interpreter) programCopy() map[int]string {
	cp := make(map[int]string, len(in.program))
	for n, src := range in.program {
		cp[n] = src
	}
	return cp
}

// LoadProgram replaces the stored program. It fails while a job runs.
func (in *Interpreter) LoadProgram(program map[int]string) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.state != StateIdle {
		return ErrProgramRunning
	}
	in.program = make(map[int]string, len(program))
	for n, src := range program {
		in.program[n] = src
	}
	return nil
}

// Listing renders the program as "<n> <text>" lines in ascending order.
func (in *Interpreter) Listing() []string {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.listing()
}

func (in *Interpreter) listing() []string {
	nums := make([]int, 0, len(in.program))
	for n := range in.program {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	out := make([]string, len(nums))
	for i, n := range nums {
		out[i] = strconv.Itoa(n) + " " + in.program[n]
	}
	return out
}

// Var returns a variable as the program would read it.
func (in *Interpreter) Var(name string) Value {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.variable(strings.ToUpper(name))
}

// awaitInput parks the job until HandleLine delivers a line. Caller holds
// in.mu; it is released while waiting.
func (in *Interpreter) awaitInput(ctx context.Context) (string, error) {
	in.setState(StateAwaitingInput)
	in.mu.Unlock()
	var (
		text string
		err  error
	)
	select {
	case text = <-in.inputCh:
	case <-ctx.Done():
		err = errBreak
	}
	in.mu.Lock()
	if in.state == StateAwaitingInput {
		in.setState(StateRunning)
	}
	return text, err
}

// pause sleeps for d with in.mu released.
func (in *Interpreter) pause(ctx context.Context, d time.Duration) error {
	in.mu.Unlock()
	defer in.mu.Lock()
	if d <= 0 {
		if ctx.Err() != nil {
			return errBreak
		}
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return errBreak
	}
}
