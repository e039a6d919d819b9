package selection

import (
	"bytes"
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atomikpanda/autozsh/internal/errors"
)

var testOptions = []Option{
	{ID: "fzf", Label: "fzf", Description: "fuzzy finder"},
	{ID: "bat", Label: "bat"},
	{ID: "zoxide", Label: "zoxide"},
}

func TestChecklistCursorWraps(t *testing.T) {
	c := NewChecklist(testOptions)
	c.Handle(KeyUp)
	assert.Equal(t, 2, c.Cursor)
	c.Handle(KeyDown)
	assert.Equal(t, 0, c.Cursor)
	c.Handle(KeyDown)
	c.Handle(KeyDown)
	c.Handle(KeyDown)
	assert.Equal(t, 0, c.Cursor)
}

func TestChecklistToggle(t *testing.T) {
	c := NewChecklist(testOptions)
	c.Handle(KeyDown)
	c.Handle(KeyToggle)
	assert.Equal(t, []string{"bat"}, c.Selected())
	c.Handle(KeyToggle)
	assert.Empty(t, c.Selected())
}

func TestChecklistAllNone(t *testing.T) {
	c := NewChecklist(testOptions)
	c.Handle(KeySelectAll)
	assert.Equal(t, []string{"fzf", "bat", "zoxide"}, c.Selected())
	c.Handle(KeySelectNone)
	assert.Empty(t, c.Selected())
}

func TestChecklistPreselectedIgnoresUnknown(t *testing.T) {
	c := NewChecklist(testOptions, "zoxide", "nope")
	assert.Equal(t, []string{"zoxide"}, c.Selected())
}

func TestChecklistConfirmFreezesState(t *testing.T) {
	c := NewChecklist(testOptions)
	c.Handle(KeyToggle)
	c.Handle(KeyConfirm)
	require.True(t, c.Confirmed())
	c.Handle(KeySelectAll)
	assert.Equal(t, []string{"fzf"}, c.Selected())
}

func TestChecklistCancel(t *testing.T) {
	c := NewChecklist(testOptions)
	c.Handle(KeyCancel)
	assert.True(t, c.Cancelled())
	assert.True(t, c.Finished())
	assert.False(t, c.Confirmed())
}

func TestChecklistEmpty(t *testing.T) {
	c := NewChecklist(nil)
	c.Handle(KeyDown)
	c.Handle(KeyToggle)
	assert.Equal(t, 0, c.Cursor)
	assert.Empty(t, c.Selected())
}

func TestModelTranslatesKeys(t *testing.T) {
	list := NewChecklist(testOptions)
	var m tea.Model = newModel("pick", list)

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'x'}})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'x'}})
	assert.Equal(t, []string{"bat", "zoxide"}, list.Selected())
	assert.Contains(t, m.View(), "[x] bat")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.True(t, list.Confirmed())
}

func TestModelCtrlCCancels(t *testing.T) {
	list := NewChecklist(testOptions)
	m := newModel("pick", list)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.True(t, list.Cancelled())
}

func TestModelIgnoresUnboundKeys(t *testing.T) {
	list := NewChecklist(testOptions)
	m := newModel("pick", list)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'z'}})
	assert.Nil(t, cmd)
	assert.False(t, list.Finished())
}

func TestResolveUnattended(t *testing.T) {
	r := &Resolver{Options: testOptions}
	ids, err := r.Resolve(context.Background(), ModeUnattended, []string{"fzf"})
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestResolveExplicit(t *testing.T) {
	r := &Resolver{Options: testOptions}

	tests := []struct {
		name string
		raw  []string
		want []string
	}{
		{"single", []string{"bat"}, []string{"bat"}},
		{"comma separated", []string{"zoxide,fzf"}, []string{"fzf", "zoxide"}},
		{"dedup", []string{"bat", "bat,bat"}, []string{"bat"}},
		{"spaces", []string{" bat , fzf "}, []string{"fzf", "bat"}},
		{"all", []string{"all"}, []string{"fzf", "bat", "zoxide"}},
		{"none", []string{"none"}, nil},
		{"empty", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids, err := r.Resolve(context.Background(), ModeExplicit, tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestResolveExplicitUnknown(t *testing.T) {
	r := &Resolver{Options: testOptions}
	_, err := r.Resolve(context.Background(), ModeExplicit, []string{"fzf,emacs"})
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidInput))
	assert.Contains(t, err.Error(), "emacs")
}

func TestResolveInteractiveWithoutTerminal(t *testing.T) {
	var warn bytes.Buffer
	prompted := false
	r := &Resolver{
		Options:    testOptions,
		IsTerminal: func() bool { return false },
		Prompt: func(context.Context, *Checklist) ([]string, error) {
			prompted = true
			return nil, nil
		},
		Warnings: &warn,
	}
	ids, err := r.Resolve(context.Background(), ModeInteractive, nil)
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.False(t, prompted)
	assert.Contains(t, warn.String(), "no terminal")
}

func TestResolveInteractive(t *testing.T) {
	r := &Resolver{
		Options:     testOptions,
		Preselected: []string{"bat"},
		IsTerminal:  func() bool { return true },
		Prompt: func(_ context.Context, list *Checklist) ([]string, error) {
			assert.True(t, list.Checked("bat"))
			list.Handle(KeyToggle)
			list.Handle(KeyConfirm)
			return append(list.Selected(), "bat"), nil
		},
	}
	ids, err := r.Resolve(context.Background(), ModeInteractive, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"fzf", "bat"}, ids)
}

func TestResolveInteractiveCancelled(t *testing.T) {
	r := &Resolver{
		Options:    testOptions,
		IsTerminal: func() bool { return true },
		Prompt: func(context.Context, *Checklist) ([]string, error) {
			return nil, errors.New(errors.ErrInterrupted, "selection cancelled")
		},
	}
	_, err := r.Resolve(context.Background(), ModeInteractive, nil)
	assert.True(t, errors.IsErrorCode(err, errors.ErrInterrupted))
}
