// Command amigabasic runs the BASIC interpreter on the local terminal.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/danswartzendruber/liner"
	"github.com/goforj/godump"
	"golang.org/x/term"

	"github.com/antibyte/workbench/pkg/adventure"
	"github.com/antibyte/workbench/pkg/basic"
	"github.com/antibyte/workbench/pkg/configuration"
	"github.com/antibyte/workbench/pkg/console"
	"github.com/antibyte/workbench/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "settings file (defaults apply when empty)")
	gamePath := flag.String("game", "public/game", "adventure document (game.json) or directory of .room files")
	dumpTokens := flag.Bool("tokens", false, "dump the tokens of every entered line")
	flag.Parse()

	if *configPath != "" {
		if err := configuration.Initialize(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error initializing configuration: %v\n", err)
			os.Exit(1)
		}
		if err := logger.Initialize(); err != nil {
			fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
			os.Exit(1)
		}
		defer logger.Close()
	}

	tty := term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
	out := &promptWriter{Writer: console.NewWriter(os.Stdout, tty), hold: tty}

	engine := adventure.NewEngine(out, adventure.FileSource(*gamePath), adventure.WithEcho(false))
	interp := basic.NewInterpreter(out, basic.WithEcho(false), basic.WithAdventure(engine))
	defer interp.Shutdown()

	// Ctrl-C bricht nur laufende Programme ab
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	go func() {
		for range sigs {
			interp.Break()
		}
	}()

	var in lineReader
	if tty {
		l := liner.NewLiner()
		l.SetMultiLineMode(false)
		// Ctrl-C im Prompt liefert ErrPromptAborted; liner hält das Terminal
		// im Raw-Modus, SIGINT kommt dort nicht an.
		l.SetCtrlCAborts(true)
		defer l.Close()
		in = &linerReader{l: l}
	} else {
		in = &scanReader{s: bufio.NewScanner(os.Stdin)}
	}

	interp.Banner()
	if err := repl(context.Background(), in, out, interp, engine, *dumpTokens); err != nil {
		fmt.Fprintf(os.Stderr, "read error: %v\n", err)
	}
	out.WriteLine("")
}

// repl reads lines until EOF and waits for each to settle before
// prompting again. An aborted prompt breaks a waiting INPUT.
func repl(ctx context.Context, in lineReader, out *promptWriter, interp *basic.Interpreter, engine *adventure.Engine, dumpTokens bool) error {
	for {
		prompt := out.takePending()
		if prompt == "" && engine.Active() {
			prompt = "> "
		}
		line, err := in.ReadLine(prompt)
		if errors.Is(err, liner.ErrPromptAborted) {
			if interp.Break() {
				interp.Wait(ctx)
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		if dumpTokens {
			godump.Dump(basic.Tokenize(line))
		}
		interp.HandleLine(line)
		interp.Wait(ctx)
	}
}

// promptWriter hält auf einem Terminal unvollständige Zeilen (INPUT-Prompts,
// PRINT mit ;) zurück, damit liner sie als Prompt neu zeichnen kann.
type promptWriter struct {
	*console.Writer
	hold bool

	mu      sync.Mutex
	pending string
}

func (w *promptWriter) flush() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	p := w.pending
	w.pending = ""
	return p
}

func (w *promptWriter) takePending() string { return w.flush() }

func (w *promptWriter) WriteRaw(s string) {
	if !w.hold {
		w.Writer.WriteRaw(s)
		return
	}
	w.mu.Lock()
	w.pending += s
	w.mu.Unlock()
}

func (w *promptWriter) WriteLine(s string) { w.Writer.WriteLine(w.flush() + s) }

func (w *promptWriter) WriteMarked(s string) {
	if p := w.flush(); p != "" {
		w.Writer.WriteRaw(p)
	}
	w.Writer.WriteMarked(s)
}

func (w *promptWriter) WriteHTML(s string) {
	if p := w.flush(); p != "" {
		w.Writer.WriteRaw(p)
	}
	w.Writer.WriteHTML(s)
}

type lineReader interface {
	ReadLine(prompt string) (string, error)
}

type linerReader struct {
	l *liner.State
}

func (r *linerReader) ReadLine(prompt string) (string, error) {
	line, err := r.l.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(line) != "" {
		r.l.AppendHistory(line)
	}
	return line, nil
}

type scanReader struct {
	s *bufio.Scanner
}

func (r *scanReader) ReadLine(prompt string) (string, error) {
	if prompt != "" {
		fmt.Print(prompt)
	}
	if !r.s.Scan() {
		if err := r.s.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimRight(r.s.Text(), "\r"), nil
}
