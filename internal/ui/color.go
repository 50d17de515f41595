// Package ui provides terminal UI components.
package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Ecuador flag colors, muted for dark terminals, plus Hive red for the logo.
const (
	FlagYellow = "#d9b44a"
	FlagBlue   = "#6f8fc4"
	FlagRed    = "#c8605a"
	HiveRed    = "#e31337"
)

var (
	// NoColor disables colored output when true. NO_COLOR in the
	// environment sets it at startup.
	NoColor = false

	AccentStyle  lipgloss.Style // status verbs
	LogoStyle    lipgloss.Style
	StepStyle    lipgloss.Style // step headers of the post flow
	ErrorStyle   lipgloss.Style
	WarningStyle lipgloss.Style
	DimStyle     lipgloss.Style
	BoldStyle    lipgloss.Style
)

func init() {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		NoColor = true
	}
	initStyles()
}

func initStyles() {
	if NoColor {
		AccentStyle = lipgloss.NewStyle()
		LogoStyle = lipgloss.NewStyle()
		StepStyle = lipgloss.NewStyle().Bold(true)
		ErrorStyle = lipgloss.NewStyle()
		WarningStyle = lipgloss.NewStyle()
		DimStyle = lipgloss.NewStyle()
		BoldStyle = lipgloss.NewStyle().Bold(true)
		return
	}

	AccentStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(FlagBlue))
	LogoStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(HiveRed))
	StepStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(FlagYellow))
	ErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(FlagRed))
	WarningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(FlagYellow))
	DimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6a6a74"))
	BoldStyle = lipgloss.NewStyle().Bold(true)
}

// SetNoColor enables or disables colored output.
func SetNoColor(noColor bool) {
	NoColor = noColor
	initStyles()
}

// FlagStripe renders the yellow, blue and red bars of the flag, wide as
// the yellow band is on the real one. Empty without color.
func FlagStripe() string {
	if NoColor {
		return ""
	}
	bar := func(color, s string) string {
		return lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render(s)
	}
	return bar(FlagYellow, "██") + bar(FlagBlue, "█") + bar(FlagRed, "█")
}

// Error formats text in the error color.
func Error(s string) string {
	return ErrorStyle.Render(s)
}

// Dim formats text as dimmed.
func Dim(s string) string {
	return DimStyle.Render(s)
}

// Bold formats text as bold.
func Bold(s string) string {
	return BoldStyle.Render(s)
}
