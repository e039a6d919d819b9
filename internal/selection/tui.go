package selection

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/atomikpanda/autozsh/internal/errors"
)

type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Toggle  key.Binding
	All     key.Binding
	None    key.Binding
	Confirm key.Binding
	Cancel  key.Binding
}

var keys = keyMap{
	Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Toggle:  key.NewBinding(key.WithKeys(" ", "space", "x"), key.WithHelp("space", "toggle")),
	All:     key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "all")),
	None:    key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "none")),
	Confirm: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "confirm")),
	Cancel:  key.NewBinding(key.WithKeys("ctrl+c", "esc", "q"), key.WithHelp("q", "cancel")),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Toggle, k.All, k.None, k.Confirm, k.Cancel}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	cursorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57"))
	checkedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	normalStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	detailStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).PaddingLeft(2)
	footerPadding = lipgloss.NewStyle().MarginTop(1)
)

// model adapts a Checklist to bubbletea. bubbletea owns raw mode and
// restores the terminal when the program exits, including on ctrl+c.
type model struct {
	list  *Checklist
	title string
	help  help.Model
}

func newModel(title string, list *Checklist) model {
	return model{list: list, title: title, help: help.New()}
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		return m, nil
	case tea.KeyMsg:
		k, ok := translate(msg)
		if !ok {
			return m, nil
		}
		m.list.Handle(k)
		if m.list.Finished() {
			return m, tea.Quit
		}
	}
	return m, nil
}

// translate maps a terminal key event to a checklist key.
func translate(msg tea.KeyMsg) (Key, bool) {
	switch {
	case key.Matches(msg, keys.Up):
		return KeyUp, true
	case key.Matches(msg, keys.Down):
		return KeyDown, true
	case key.Matches(msg, keys.Toggle):
		return KeyToggle, true
	case key.Matches(msg, keys.All):
		return KeySelectAll, true
	case key.Matches(msg, keys.None):
		return KeySelectNone, true
	case key.Matches(msg, keys.Confirm):
		return KeyConfirm, true
	case key.Matches(msg, keys.Cancel):
		return KeyCancel, true
	}
	return 0, false
}

func (m model) View() string {
	if m.list.Finished() {
		return ""
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n\n")
	for i, o := range m.list.Options {
		box := "[ ]"
		style := normalStyle
		if m.list.Checked(o.ID) {
			box = "[x]"
			style = checkedStyle
		}
		line := fmt.Sprintf("%s %s", box, o.Label)
		if i == m.list.Cursor {
			b.WriteString("> " + cursorStyle.Render(line))
		} else {
			b.WriteString("  " + style.Render(line))
		}
		b.WriteString("\n")
	}
	if n := len(m.list.Options); n > 0 && m.list.Cursor < n {
		if d := m.list.Options[m.list.Cursor].Description; d != "" {
			b.WriteString("\n" + detailStyle.Render(d) + "\n")
		}
	}
	b.WriteString(footerPadding.Render(m.help.View(keys)))
	b.WriteString("\n")
	return b.String()
}

// RunChecklist shows list on the terminal until the user confirms or
// cancels. Cancelling returns an ErrInterrupted error after the terminal
// has been restored.
func RunChecklist(ctx context.Context, in io.Reader, out io.Writer, title string, list *Checklist) ([]string, error) {
	p := tea.NewProgram(newModel(title, list),
		tea.WithContext(ctx),
		tea.WithInput(in),
		tea.WithOutput(out),
	)
	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) || ctx.Err() != nil {
			return nil, errors.Wrap(err, errors.ErrInterrupted, "selection interrupted")
		}
		return nil, errors.Wrap(err, errors.ErrInterrupted, "selection failed")
	}
	if list.Cancelled() || !list.Confirmed() {
		return nil, errors.New(errors.ErrInterrupted, "selection cancelled")
	}
	return list.Selected(), nil
}
