package ui

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
)

// editorModel is a multi-line text box. ctrl+d accepts, esc quits.
type editorModel struct {
	title   string
	area    textarea.Model
	done    bool
	aborted bool
}

func newEditorModel(title, placeholder, initial string) editorModel {
	area := textarea.New()
	area.Placeholder = placeholder
	area.ShowLineNumbers = false
	area.CharLimit = 0
	area.SetWidth(72)
	area.SetHeight(8)
	area.SetValue(initial)
	area.Focus()

	return editorModel{title: title, area: area}
}

func (m editorModel) Init() tea.Cmd {
	return textarea.Blink
}

func (m editorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "ctrl+d":
			m.done = true
			return m, tea.Quit
		case "esc", "ctrl+c":
			m.aborted = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.area, cmd = m.area.Update(msg)
	return m, cmd
}

func (m editorModel) View() string {
	var b strings.Builder
	if m.title != "" {
		b.WriteString(BoldStyle.Render(m.title))
		b.WriteString("\n")
	}
	b.WriteString(m.area.View())
	b.WriteString("\n")
	b.WriteString(DimStyle.Render("ctrl+d done • esc quit"))
	b.WriteString("\n")
	return b.String()
}

// EditText opens a multi-line editor and returns what the user wrote.
// Without a terminal it reads a single line instead.
func EditText(title, placeholder, initial string) (string, error) {
	if !IsTerminal() {
		return PromptDefault(title, initial)
	}

	p := tea.NewProgram(newEditorModel(title, placeholder, initial),
		tea.WithContext(promptContext()),
		tea.WithOutput(os.Stderr))

	finalModel, err := p.Run()
	if err != nil {
		if err := interrupted(); err != nil {
			return "", err
		}
		return "", fmt.Errorf("editor failed: %w", err)
	}

	result := finalModel.(editorModel)
	if result.aborted {
		return "", ErrInterrupted
	}
	return strings.TrimSpace(result.area.Value()), nil
}

// RenderMarkdown renders a post body for the terminal. Images show as
// their link text.
func RenderMarkdown(md string, width int) (string, error) {
	if width <= 0 {
		width = 80
	}

	style := glamour.WithAutoStyle()
	if NoColor {
		style = glamour.WithStandardStyle("notty")
	}

	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		return "", fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return out, nil
}
