package ui

import (
	"fmt"
	"io"
	"os"
)

// VerbWidth is the fixed width for right-aligned action verbs in status lines.
const VerbWidth = 12

// Verbosity levels.
const (
	VerbQuiet   = -1 // results + errors only
	VerbNormal  = 0  // status + results + errors
	VerbVerbose = 1  // above + detail (urls, permlinks)
)

var (
	Verbosity int
	QuietMode bool

	// Out receives status lines. Tests swap it for a buffer.
	Out io.Writer = os.Stderr
)

// SetVerbosity sets the package verbosity level.
func SetVerbosity(v int) {
	Verbosity = v
	QuietMode = v <= VerbQuiet
}

func statusLine(verb, detail string) string {
	styled := AccentStyle.Render(fmt.Sprintf("%*s", VerbWidth, verb))
	return fmt.Sprintf("%s  %s", styled, detail)
}

// Status prints a status line with a right-aligned verb, e.g.
// "    Uploaded  selfie.jpg (2.1 MB)". Suppressed in quiet mode.
func Status(verb, detail string) {
	if QuietMode {
		return
	}
	fmt.Fprintln(Out, statusLine(verb, detail))
}

// Detail prints a status line only in verbose mode.
func Detail(verb, detail string) {
	if QuietMode || Verbosity < VerbVerbose {
		return
	}
	fmt.Fprintln(Out, statusLine(verb, detail))
}

// Result writes scriptable output to stdout. Always prints.
func Result(s string) {
	fmt.Fprintln(os.Stdout, s)
}

// WarningStatus prints a warning-colored verb-prefix line. Shown even in quiet mode.
func WarningStatus(verb, detail string) {
	styled := WarningStyle.Render(fmt.Sprintf("%*s", VerbWidth, verb))
	fmt.Fprintf(Out, "%s  %s\n", styled, detail)
}

// ErrorStatus prints an error-colored verb-prefix line. Shown even in quiet mode.
func ErrorStatus(verb, detail string) {
	styled := ErrorStyle.Render(fmt.Sprintf("%*s", VerbWidth, verb))
	fmt.Fprintf(Out, "%s  %s\n", styled, detail)
}

// FormatError builds a multi-line error message in "Error -> why -> fix" form.
// Empty why/fix are omitted.
func FormatError(what, why, fix string) string {
	out := "Error: " + what
	if why != "" {
		out += "\n  " + string('→') + " " + why
	}
	if fix != "" {
		out += "\n  " + string('→') + " " + fix
	}
	return out
}
