package basic

func (in *Interpreter) writeHelp() {
	for _, l := range []string{
		"Commands: PRINT, LET, INPUT, IF/THEN/ELSE/END IF",
		"FOR/NEXT, WHILE/WEND, GOTO, GOSUB/RETURN",
		"CLS, BEEP, SLEEP, READ, DATA, DIM",
		"RUN, LIST, NEW, REM, END, SKILLS, [[QUEST]]",
	} {
		in.out.WriteMarked(l)
	}
	in.out.WriteLine("")
	for _, l := range []string{
		"Type line numbers to store a program:",
		`  [[10 PRINT "Hello, World!"]]`,
		"  [[20 GOTO 10]]",
		"  [[RUN]]",
	} {
		in.out.WriteMarked(l)
	}
	in.out.WriteLine("Ok")
}

func (in *Interpreter) writeSkills() {
	in.out.WriteLine("=== Skills ===")
	for _, l := range []string{
		"Languages:  [[SQL]], [[Python]], [[Bash]], [[Lua]]",
		"Tools:      [[SSMS]], [[Access]], [[Navision]], [[Excel]], [[PowerBI]]",
		"Data:       [[Pandas]], [[Matplotlib]], [[visualization]]",
		"Systems:    [[Unix]] & [[Windows]] sysadmin",
		"Creative:   [[Photoshop]], [[Premiere]], [[Ableton]]",
		"Other:      [[Metadata standards]], [[digitization]]",
		"            [[Studio technician]] (music)",
	} {
		in.out.WriteMarked(l)
	}
	in.out.WriteLine("Speaks:     Danish, English")
	in.out.WriteLine("Ok")
}
