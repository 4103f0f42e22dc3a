// Package prompt provides the interactive questions flagport asks when it
// runs in a terminal, built on Bubble Tea.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/JoobyPM/flagport/internal/target"
)

const (
	colorPrimary = "#7D56F4"
	colorDim     = "#666666"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(colorPrimary)).
			MarginBottom(1)

	cursorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorPrimary)).
			Bold(true)

	itemDimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorDim))
)

// Errors.
var (
	ErrCancelled       = errors.New("prompt cancelled")
	ErrUnexpectedModel = errors.New("unexpected prompt model type")
)

type keyMap struct {
	Up     key.Binding
	Down   key.Binding
	Select key.Binding
	Cancel key.Binding
}

var keys = keyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "down"),
	),
	Select: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "select"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("esc", "ctrl+c"),
		key.WithHelp("esc", "cancel"),
	),
}

// EnvTypeModel asks for the Target type of one environment.
type EnvTypeModel struct {
	envKey    string
	choices   []string
	cursor    int
	chosen    string
	cancelled bool
	help      help.Model
}

// NewEnvTypeModel creates a picker for envKey with the cursor on preselect.
func NewEnvTypeModel(envKey, preselect string) EnvTypeModel {
	m := EnvTypeModel{
		envKey:  envKey,
		choices: slices.Clone(target.EnvironmentTypes),
		help:    help.New(),
	}
	if i := slices.Index(m.choices, preselect); i >= 0 {
		m.cursor = i
	}
	return m
}

// Init implements tea.Model.
func (m EnvTypeModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m EnvTypeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(km, keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(km, keys.Down):
		if m.cursor < len(m.choices)-1 {
			m.cursor++
		}
	case key.Matches(km, keys.Select):
		m.chosen = m.choices[m.cursor]
		return m, tea.Quit
	case key.Matches(km, keys.Cancel):
		m.cancelled = true
		return m, tea.Quit
	}
	return m, nil
}

// View implements tea.Model.
func (m EnvTypeModel) View() string {
	if m.chosen != "" || m.cancelled {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Environment %q does not exist in the target. Pick its type:", m.envKey)))
	b.WriteString("\n")
	for i, c := range m.choices {
		if i == m.cursor {
			b.WriteString(cursorStyle.Render("> " + c))
		} else {
			b.WriteString(itemDimStyle.Render("  " + c))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.help.ShortHelpView([]key.Binding{keys.Up, keys.Down, keys.Select, keys.Cancel}))
	return b.String()
}

// Choice returns the selected type, empty until one is selected.
func (m EnvTypeModel) Choice() string {
	return m.chosen
}

// Cancelled reports whether the user quit without choosing.
func (m EnvTypeModel) Cancelled() bool {
	return m.cancelled
}

// Picker asks the user for the type of every environment it is given.
// It satisfies importer.EnvironmentTyper.
type Picker struct {
	In  io.Reader
	Out io.Writer
	// Guess preselects a type. May be nil.
	Guess func(envKey string) string
}

// EnvironmentType runs the picker for envKey.
func (p *Picker) EnvironmentType(ctx context.Context, envKey string) (string, error) {
	preselect := ""
	if p.Guess != nil {
		preselect = p.Guess(envKey)
	}

	prog := tea.NewProgram(
		NewEnvTypeModel(envKey, preselect),
		tea.WithContext(ctx),
		tea.WithInput(p.In),
		tea.WithOutput(p.Out),
	)
	final, err := prog.Run()
	if err != nil {
		return "", fmt.Errorf("environment type prompt: %w", err)
	}
	return result(final)
}

func result(final tea.Model) (string, error) {
	m, ok := final.(EnvTypeModel)
	if !ok {
		return "", ErrUnexpectedModel
	}
	if m.Cancelled() || m.Choice() == "" {
		return "", ErrCancelled
	}
	return m.Choice(), nil
}
