package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/danswartzendruber/liner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antibyte/workbench/pkg/adventure"
	"github.com/antibyte/workbench/pkg/basic"
	"github.com/antibyte/workbench/pkg/console"
)

type step struct {
	line string
	err  error
}

// scriptReader plays back lines and errors, then reports EOF.
type scriptReader struct {
	steps   []step
	prompts []string
}

func (r *scriptReader) ReadLine(prompt string) (string, error) {
	r.prompts = append(r.prompts, prompt)
	if len(r.steps) == 0 {
		return "", io.EOF
	}
	s := r.steps[0]
	r.steps = r.steps[1:]
	return s.line, s.err
}

func newSession(t *testing.T) (*bytes.Buffer, *promptWriter, *basic.Interpreter, *adventure.Engine) {
	t.Helper()
	var buf bytes.Buffer
	out := &promptWriter{Writer: console.NewWriter(&buf, false), hold: true}
	engine := adventure.NewEngine(out, adventure.FileSource(t.TempDir()), adventure.WithEcho(false))
	interp := basic.NewInterpreter(out, basic.WithEcho(false), basic.WithAdventure(engine))
	t.Cleanup(interp.Shutdown)
	return &buf, out, interp, engine
}

func TestReplAbortedPromptBreaksInput(t *testing.T) {
	buf, out, interp, engine := newSession(t)
	r := &scriptReader{steps: []step{
		{line: "10 INPUT A"},
		{line: `20 PRINT "NEVER"`},
		{line: "RUN"},
		{err: liner.ErrPromptAborted},
		{line: "PRINT 7"},
	}}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, repl(ctx, r, out, interp, engine, false))

	assert.Equal(t, []string{"", "", "", "? ", "", ""}, r.prompts)
	assert.Equal(t, "Ok\nOk\nBreak\nOk\n7\nOk\n", buf.String())
	assert.Equal(t, basic.StateIdle, interp.State())
}

func TestReplAbortWhileIdleIsIgnored(t *testing.T) {
	buf, out, interp, engine := newSession(t)
	r := &scriptReader{steps: []step{
		{err: liner.ErrPromptAborted},
		{line: "PRINT 1"},
	}}

	require.NoError(t, repl(context.Background(), r, out, interp, engine, false))
	assert.Equal(t, "1\nOk\n", buf.String())
}

func TestReplReturnsReadErrors(t *testing.T) {
	_, out, interp, engine := newSession(t)
	boom := errors.New("boom")
	r := &scriptReader{steps: []step{{err: boom}}}

	err := repl(context.Background(), r, out, interp, engine, false)
	assert.Equal(t, boom, err)
}

func TestPromptWriterHoldsPartialLines(t *testing.T) {
	var buf bytes.Buffer
	w := &promptWriter{Writer: console.NewWriter(&buf, false), hold: true}

	w.WriteRaw("NAME? ")
	assert.Empty(t, buf.String())
	assert.Equal(t, "NAME? ", w.takePending())
	assert.Empty(t, w.takePending())

	w.WriteRaw("A")
	w.WriteLine("B")
	assert.Equal(t, "AB\n", buf.String())
}
