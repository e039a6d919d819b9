// Package color provides terminal colour helpers for user-facing output.
// All helpers return the plain string when colour is disabled, so callers
// need not guard their output. Call Init once at program start.
package color

import (
	"fmt"
	"io"
	"os"

	fcolor "github.com/fatih/color"
)

// Enabled reports whether colour output is active.
func Enabled() bool {
	return !fcolor.NoColor
}

// Init decides whether stdout gets colour. Colour is suppressed when:
//   - NO_COLOR is set (https://no-color.org)
//   - TERM=dumb
//   - stdout is not a terminal
func Init() {
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		fcolor.NoColor = true
	}
	// otherwise fatih/color has already probed stdout
}

// SetEnabled forces colour on or off.
func SetEnabled(on bool) {
	fcolor.NoColor = !on
}

var (
	bold       = fcolor.New(fcolor.Bold).SprintFunc()
	dim        = fcolor.New(fcolor.Faint).SprintFunc()
	red        = fcolor.New(fcolor.FgRed).SprintFunc()
	green      = fcolor.New(fcolor.FgGreen).SprintFunc()
	yellow     = fcolor.New(fcolor.FgYellow).SprintFunc()
	cyan       = fcolor.New(fcolor.FgCyan).SprintFunc()
	boldRed    = fcolor.New(fcolor.Bold, fcolor.FgRed).SprintFunc()
	boldGreen  = fcolor.New(fcolor.Bold, fcolor.FgGreen).SprintFunc()
	boldYellow = fcolor.New(fcolor.Bold, fcolor.FgYellow).SprintFunc()
	boldCyan   = fcolor.New(fcolor.Bold, fcolor.FgCyan).SprintFunc()
)

func Bold(s string) string       { return bold(s) }
func Dim(s string) string        { return dim(s) }
func Red(s string) string        { return red(s) }
func Green(s string) string      { return green(s) }
func Yellow(s string) string     { return yellow(s) }
func Cyan(s string) string       { return cyan(s) }
func BoldRed(s string) string    { return boldRed(s) }
func BoldGreen(s string) string  { return boldGreen(s) }
func BoldYellow(s string) string { return boldYellow(s) }
func BoldCyan(s string) string   { return boldCyan(s) }

// Warnf prints a yellow warning line to w.
func Warnf(w io.Writer, format string, a ...any) {
	fmt.Fprintln(w, Yellow("warning: ")+fmt.Sprintf(format, a...))
}

// Errorf prints a bold red error line to w.
func Errorf(w io.Writer, format string, a ...any) {
	fmt.Fprintln(w, BoldRed("error: ")+fmt.Sprintf(format, a...))
}
