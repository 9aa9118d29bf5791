package command

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func typed(m Model, s string) Model {
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	return m
}

func TestPalette_EnterEmitsNormalisedCommand(t *testing.T) {
	m := New(80, 24)
	m.Focus()
	m = typed(m, "  Post Trip ")

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, CommandMsg("post trip"), cmd())
	assert.Empty(t, m.input.Value())
}

func TestPalette_EmptyEnterDoesNothing(t *testing.T) {
	m := New(80, 24)
	m.Focus()

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
}

func TestPalette_EscCancelsAndClearsError(t *testing.T) {
	m := New(80, 24)
	m.Focus()
	m.SetError("unknown command: foo")
	m = typed(m, "half")

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.Equal(t, CancelMsg{}, cmd())
	assert.Empty(t, m.err)
	assert.Empty(t, m.input.Value())
}

func TestPalette_ErrorIsRendered(t *testing.T) {
	m := New(80, 24)
	m.SetError("unknown command: foo")
	assert.Contains(t, m.View(), "unknown command: foo")
}
