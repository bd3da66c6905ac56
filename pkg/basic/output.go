package basic

// Output is where the interpreter writes. Implementations must not call
// back into the Interpreter.
type Output interface {
	// WriteLine writes s followed by a line break.
	WriteLine(s string)
	// WriteRaw writes s without a line break.
	WriteRaw(s string)
	// WriteMarked writes one line in which [[text]] spans are highlighted.
	WriteMarked(s string)
	// Clear empties the screen.
	Clear()
}

// Signals is optionally implemented by an Output that can play the BEEP
// tone and show the failure screen after the cycle limit.
type Signals interface {
	Beep()
	GuruMeditation(reason string)
}

// Adventure is the text adventure that takes over input after QUEST.
type Adventure interface {
	Active() bool
	Start()
	HandleLine(text string)
}
