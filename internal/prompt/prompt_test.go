package prompt

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoobyPM/flagport/internal/target"
)

// updateModel is a helper that handles the Update return type.
func updateModel(m EnvTypeModel, msg tea.Msg) (EnvTypeModel, tea.Cmd) {
	newModel, cmd := m.Update(msg)
	return newModel.(EnvTypeModel), cmd
}

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestEnvTypeModel_Preselect(t *testing.T) {
	m := NewEnvTypeModel("production", target.EnvironmentProduction)
	assert.Equal(t, 2, m.cursor)

	m = NewEnvTypeModel("qa", "unknown")
	assert.Equal(t, 0, m.cursor)
}

func TestEnvTypeModel_Navigate(t *testing.T) {
	m := NewEnvTypeModel("qa", target.EnvironmentDevelopment)

	// Up at the top stays put
	m, _ = updateModel(m, tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, 0, m.cursor)

	m, _ = updateModel(m, tea.KeyMsg{Type: tea.KeyDown})
	m, _ = updateModel(m, runeKey('j'))
	m, _ = updateModel(m, runeKey('j'))
	m, _ = updateModel(m, runeKey('j'))
	assert.Equal(t, len(target.EnvironmentTypes)-1, m.cursor, "cursor stops at the last choice")

	m, _ = updateModel(m, runeKey('k'))
	assert.Equal(t, len(target.EnvironmentTypes)-2, m.cursor)
}

func TestEnvTypeModel_Select(t *testing.T) {
	m := NewEnvTypeModel("qa", target.EnvironmentDevelopment)
	m, _ = updateModel(m, tea.KeyMsg{Type: tea.KeyDown})

	m, cmd := updateModel(m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
	assert.Equal(t, target.EnvironmentStaging, m.Choice())
	assert.False(t, m.Cancelled())
	assert.Empty(t, m.View())

	got, err := result(m)
	require.NoError(t, err)
	assert.Equal(t, target.EnvironmentStaging, got)
}

func TestEnvTypeModel_Cancel(t *testing.T) {
	m := NewEnvTypeModel("qa", "")
	m, cmd := updateModel(m, tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.True(t, m.Cancelled())
	assert.Empty(t, m.Choice())

	_, err := result(m)
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestEnvTypeModel_IgnoresOtherMessages(t *testing.T) {
	m := NewEnvTypeModel("qa", "")
	m2, cmd := updateModel(m, tea.WindowSizeMsg{Width: 10, Height: 10})
	assert.Nil(t, cmd)
	assert.Equal(t, m.cursor, m2.cursor)
}

func TestEnvTypeModel_View(t *testing.T) {
	m := NewEnvTypeModel("qa-eu", target.EnvironmentStaging)
	view := m.View()

	assert.Contains(t, view, `"qa-eu"`)
	for _, typ := range target.EnvironmentTypes {
		assert.Contains(t, view, typ)
	}
	assert.Contains(t, view, "> staging")
}

func TestResult_UnexpectedModel(t *testing.T) {
	_, err := result(nil)
	assert.ErrorIs(t, err, ErrUnexpectedModel)
}

func TestConfirmer_AssumeYes(t *testing.T) {
	c := &Confirmer{AssumeYes: true}
	ok, err := c.Confirm(context.Background(), "Import?", "")
	require.NoError(t, err)
	assert.True(t, ok)
}
