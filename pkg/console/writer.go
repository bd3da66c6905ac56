package console

import (
	"fmt"
	"io"
	"sync"
)

// Writer renders output as plain text for a local terminal. With ansi set
// marked spans use reverse video and CLS clears the screen.
type Writer struct {
	mu   sync.Mutex
	w    io.Writer
	ansi bool
}

// NewWriter wraps w.
func NewWriter(w io.Writer, ansi bool) *Writer {
	return &Writer{w: w, ansi: ansi}
}

func (w *Writer) write(s string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	io.WriteString(w.w, s)
}

func (w *Writer) WriteLine(s string) { w.write(s + "\n") }

func (w *Writer) WriteRaw(s string) { w.write(s) }

func (w *Writer) WriteMarked(s string) { w.write(markedToANSI(s, w.ansi) + "\n") }

// WriteHTML prints the text content of s.
func (w *Writer) WriteHTML(s string) { w.write(StripHTML(s) + "\n") }

func (w *Writer) Clear() {
	if w.ansi {
		w.write("\x1b[2J\x1b[H")
		return
	}
	w.write("\n")
}

func (w *Writer) Beep() { w.write("\a") }

func (w *Writer) GuruMeditation(reason string) {
	lines := fmt.Sprintf("Software Failure.  Press left mouse button to continue.\nGuru Meditation #%s\n", GuruCode)
	if w.ansi {
		lines = "\x1b[31m" + lines + "\x1b[0m"
	}
	w.write(lines)
}
