package msg

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

var (
	// Stdout and Stderr are where messages go, swapped out by tests
	Stdout io.Writer = os.Stdout
	Stderr io.Writer = os.Stderr
	// Verbose enables Debug output
	Verbose bool
)

func emit(w io.Writer, label, format string, a ...any) {
	fmt.Fprintf(w, "%s: %s\n", label, fmt.Sprintf(format, a...))
}

func Debug(format string, a ...any) {
	if Verbose {
		emit(Stdout, color.HiBlackString("debug"), format, a...)
	}
}

func Info(format string, a ...any) {
	emit(Stdout, color.HiGreenString("info"), format, a...)
}

func Warn(format string, a ...any) {
	emit(Stderr, color.YellowString("warn"), format, a...)
}

func Error(format string, a ...any) {
	emit(Stderr, color.HiRedString("error"), format, a...)
}

func Fatal(format string, a ...any) {
	emit(Stderr, color.RedString("fatal"), format, a...)
	os.Exit(1)
}

// IndentWriter prefixes every line written through it, used for subprocess
// and git progress output
type IndentWriter struct {
	Indent    string
	W         io.Writer
	didIndent bool
	buf       bytes.Buffer
}

func (w *IndentWriter) Write(p []byte) (n int, err error) {
	w.buf.Reset()
	for _, c := range p {
		if !w.didIndent {
			w.buf.WriteString(w.Indent)
			w.didIndent = true
		}
		w.buf.WriteByte(c)
		if c == '\n' || c == '\r' {
			w.didIndent = false
		}
	}
	if _, err := w.W.Write(w.buf.Bytes()); err != nil {
		return 0, err
	}
	return len(p), nil
}
