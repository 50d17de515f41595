package ui

import (
	"fmt"
	"io"
	"strings"
)

// Logo is the ASCII art logo for checkin.
const Logo = `
      _               _    _
  ___| |__   ___  ___| | _(_)_ __
 / __| '_ \ / _ \/ __| |/ / | '_ \
| (__| | | |  __/ (__|   <| | | | |
 \___|_| |_|\___|\___|_|\_\_|_| |_|
`

// Version holds the application version, set at startup.
var Version = "dev"

// SetVersion sets the application version for logo rendering.
func SetVersion(v string) {
	Version = v
}

// RenderLogo returns the styled logo with the version underneath.
func RenderLogo() string {
	var result strings.Builder
	for _, line := range strings.Split(Logo, "\n") {
		if line != "" {
			result.WriteString(LogoStyle.Render(line) + "\n")
		}
	}
	result.WriteString("\n")
	v := Version
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	result.WriteString(Dim("Hive onboarding, "+v) + "\n\n")
	return result.String()
}

// StepTracker numbers the steps of the interactive post flow.
type StepTracker struct {
	current int
	total   int
	writer  io.Writer
}

// NewStepTracker creates a tracker for total steps.
func NewStepTracker(total int) *StepTracker {
	return &StepTracker{total: total, writer: Out}
}

// StartStep prints the header of the next step.
func (s *StepTracker) StartStep(name string) {
	s.current++
	if QuietMode {
		return
	}

	fmt.Fprintln(s.writer)
	if NoColor {
		fmt.Fprintf(s.writer, "=== STEP %d/%d: %s ===\n", s.current, s.total, strings.ToUpper(name))
		return
	}
	header := fmt.Sprintf(" %d/%d > %s", s.current, s.total, strings.ToUpper(name))
	fmt.Fprintln(s.writer, FlagStripe()+StepStyle.Render(header))
}

// Current returns the current step number.
func (s *StepTracker) Current() int {
	return s.current
}

// KeyValue is one line of an ordered summary.
type KeyValue struct {
	Key   string
	Value string
}

// PrintSummary prints key-value pairs in order.
func PrintSummary(items []KeyValue) {
	if QuietMode {
		return
	}
	for _, item := range items {
		fmt.Fprintf(Out, "  %s: %s\n", Bold(item.Key), item.Value)
	}
}
