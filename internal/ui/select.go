package ui

import (
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type selectModel struct {
	title       string
	options     []string
	cursor      int
	recommended int
	selected    int
	aborted     bool
	styles      selectStyles
}

type selectStyles struct {
	title       lipgloss.Style
	cursor      lipgloss.Style
	selected    lipgloss.Style
	unselected  lipgloss.Style
	recommended lipgloss.Style
	dim         lipgloss.Style
}

func newSelectModel(title string, options []string, recommended int) selectModel {
	styles := selectStyles{
		title:       lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#e0e0e0")),
		cursor:      lipgloss.NewStyle().Foreground(lipgloss.Color(FlagYellow)),
		selected:    lipgloss.NewStyle().Foreground(lipgloss.Color("#e0e0e0")).Bold(true),
		unselected:  lipgloss.NewStyle().Foreground(lipgloss.Color("#808080")),
		recommended: lipgloss.NewStyle().Foreground(lipgloss.Color("#606060")).Italic(true),
		dim:         lipgloss.NewStyle().Foreground(lipgloss.Color("#505050")),
	}

	if NoColor {
		styles = selectStyles{
			title:       lipgloss.NewStyle(),
			cursor:      lipgloss.NewStyle(),
			selected:    lipgloss.NewStyle().Bold(true),
			unselected:  lipgloss.NewStyle(),
			recommended: lipgloss.NewStyle(),
			dim:         lipgloss.NewStyle(),
		}
	}

	startCursor := 0
	if recommended >= 0 && recommended < len(options) {
		startCursor = recommended
	}

	return selectModel{
		title:       title,
		options:     options,
		cursor:      startCursor,
		recommended: recommended,
		selected:    -1,
		styles:      styles,
	}
}

// Init implements tea.Model.
func (m selectModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m selectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.options)-1 {
				m.cursor++
			}
		case "enter", " ":
			m.selected = m.cursor
			return m, tea.Quit
		case "ctrl+c", "q", "esc":
			m.aborted = true
			return m, tea.Quit
		case "1", "2", "3", "4", "5", "6", "7", "8", "9":
			idx := int(msg.String()[0] - '1')
			if idx < len(m.options) {
				m.selected = idx
				return m, tea.Quit
			}
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m selectModel) View() string {
	var b strings.Builder

	if m.title != "" {
		b.WriteString(m.styles.title.Render(m.title))
		b.WriteString("\n")
	}

	hint := "↑/↓ navigate • enter select • q quit"
	if NoColor {
		hint = "up/down navigate, enter select, q quit"
	}
	b.WriteString(m.styles.dim.Render(hint))
	b.WriteString("\n\n")

	for i, opt := range m.options {
		cursor := "  "
		if i == m.cursor {
			if NoColor {
				cursor = "> "
			} else {
				cursor = m.styles.cursor.Render("› ")
			}
		}
		b.WriteString(cursor)

		if i == m.cursor {
			b.WriteString(m.styles.selected.Render(opt))
		} else {
			b.WriteString(m.styles.unselected.Render(opt))
		}

		if i == m.recommended {
			b.WriteString(m.styles.recommended.Render(" [recommended]"))
		}
		b.WriteString("\n")
	}

	return b.String()
}

// Select presents a list of options for arrow-key selection and returns the
// chosen index. Returns ErrInterrupted if the user quits.
func Select(title string, options []string, recommended int) (int, error) {
	if len(options) == 0 {
		return -1, fmt.Errorf("no options provided")
	}

	p := tea.NewProgram(newSelectModel(title, options, recommended),
		tea.WithContext(promptContext()),
		tea.WithOutput(os.Stderr))

	finalModel, err := p.Run()
	if err != nil {
		if err := interrupted(); err != nil {
			return -1, err
		}
		return -1, fmt.Errorf("selector failed: %w", err)
	}

	result := finalModel.(selectModel)
	if result.aborted {
		return -1, ErrInterrupted
	}
	return result.selected, nil
}
