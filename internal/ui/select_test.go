package ui

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestSelectModel(t *testing.T) {
	options := []string{"Keychain", "Export", "Cancel"}
	m := newSelectModel("Test", options, 0)

	if m.cursor != 0 {
		t.Errorf("expected cursor at 0, got %d", m.cursor)
	}
	if m.selected != -1 {
		t.Errorf("expected selected -1, got %d", m.selected)
	}

	model, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
	m = model.(selectModel)
	if m.cursor != 1 {
		t.Errorf("expected cursor at 1 after down, got %d", m.cursor)
	}

	model, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = model.(selectModel)
	model, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = model.(selectModel)
	if m.cursor != 2 {
		t.Errorf("expected cursor clamped at 2, got %d", m.cursor)
	}

	model, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	m = model.(selectModel)
	model, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = model.(selectModel)
	if m.selected != 1 {
		t.Errorf("expected selected 1, got %d", m.selected)
	}
	if cmd == nil {
		t.Error("expected quit command")
	}
}

func TestSelectModelStartsAtRecommended(t *testing.T) {
	m := newSelectModel("Pick one:", []string{"First", "Second", "Third"}, 1)
	if m.cursor != 1 {
		t.Errorf("cursor = %d, want 1", m.cursor)
	}

	view := m.View()
	if !strings.Contains(view, "First") || !strings.Contains(view, "recommended") {
		t.Errorf("view missing option or badge:\n%s", view)
	}
}

func TestSelectModelNumberKeys(t *testing.T) {
	m := newSelectModel("Pick:", []string{"One", "Two", "Three"}, -1)

	model, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("2")})
	m = model.(selectModel)
	if m.selected != 1 {
		t.Errorf("expected selected 1, got %d", m.selected)
	}
	if cmd == nil {
		t.Error("expected quit command after number selection")
	}

	// Out of range numbers are ignored.
	m = newSelectModel("Pick:", []string{"One"}, -1)
	model, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("5")})
	m = model.(selectModel)
	if m.selected != -1 || cmd != nil {
		t.Errorf("selected = %d, cmd = %v; want -1, nil", m.selected, cmd)
	}
}

func TestSelectModelAbort(t *testing.T) {
	m := newSelectModel("Test", []string{"A", "B"}, 0)

	model, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEscape})
	m = model.(selectModel)
	if !m.aborted {
		t.Error("expected aborted after escape")
	}
	if cmd == nil {
		t.Error("expected quit command after abort")
	}
}

func TestEditorModel(t *testing.T) {
	m := newEditorModel("Introduce yourself", "", "")

	model, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("Hola")})
	m = model.(editorModel)
	model, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = model.(editorModel)
	model, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("Quito")})
	m = model.(editorModel)

	if got := m.area.Value(); got != "Hola\nQuito" {
		t.Errorf("value = %q, want %q", got, "Hola\nQuito")
	}

	model, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlD})
	m = model.(editorModel)
	if !m.done || cmd == nil {
		t.Error("ctrl+d should finish the editor")
	}
}

func TestEditorModelAbort(t *testing.T) {
	m := newEditorModel("", "", "draft")
	model, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEscape})
	m = model.(editorModel)
	if !m.aborted || cmd == nil {
		t.Error("esc should abort the editor")
	}
	if m.area.Value() != "draft" {
		t.Errorf("initial value lost: %q", m.area.Value())
	}
}

func TestRenderMarkdownPlain(t *testing.T) {
	SetNoColor(true)
	defer SetNoColor(false)

	out, err := RenderMarkdown("# Hola\n\nI was onboarded by **@bob**.", 60)
	if err != nil {
		t.Fatalf("RenderMarkdown: %v", err)
	}
	if !strings.Contains(out, "Hola") || !strings.Contains(out, "@bob") {
		t.Errorf("rendered output missing text:\n%s", out)
	}
}

func TestStatusQuiet(t *testing.T) {
	var buf bytes.Buffer
	old := Out
	Out = &buf
	defer func() { Out = old; SetVerbosity(VerbNormal) }()

	Status("Uploaded", "selfie.jpg")
	SetVerbosity(VerbQuiet)
	Status("Hidden", "nothing")
	ErrorStatus("Failed", "still shown")

	got := buf.String()
	if !strings.Contains(got, "selfie.jpg") || strings.Contains(got, "nothing") || !strings.Contains(got, "still shown") {
		t.Errorf("unexpected status output:\n%s", got)
	}
}

func TestFormatError(t *testing.T) {
	got := FormatError("login failed", "account @x not found", "")
	want := "Error: login failed\n  → account @x not found"
	if got != want {
		t.Errorf("FormatError = %q, want %q", got, want)
	}
}

func TestFlagStripe(t *testing.T) {
	SetNoColor(true)
	if got := FlagStripe(); got != "" {
		t.Errorf("FlagStripe without color = %q", got)
	}
	SetNoColor(false)
	if got := FlagStripe(); strings.Count(got, "█") != 4 {
		t.Errorf("FlagStripe = %q, want four bars", got)
	}
}

func TestPromptsStopAfterInterrupt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	SetContext(ctx)
	defer SetContext(context.Background())

	if _, err := Prompt("Hive username: "); !errors.Is(err, ErrInterrupted) {
		t.Errorf("Prompt error = %v, want ErrInterrupted", err)
	}
	if _, err := PromptSecret("Posting key"); !errors.Is(err, ErrInterrupted) {
		t.Errorf("PromptSecret error = %v, want ErrInterrupted", err)
	}
}
