package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/wippyai/jsongen"
	"github.com/wippyai/jsongen/types"
)

type modelState int

const (
	stateSelectType modelState = iota
	stateInputType
	stateShowArtifact
)

type interactiveModel struct {
	err      error
	eng      *jsongen.Engine
	cfgFile  string
	current  string
	path     string
	types    []string
	input    textinput.Model
	view     viewport.Model
	selected int
	state    modelState
	loaded   bool
}

func newInteractiveModel(cfgFile string) *interactiveModel {
	return &interactiveModel{
		cfgFile: cfgFile,
		state:   stateSelectType,
		view:    viewport.New(80, 20),
	}
}

type loadedMsg struct {
	err   error
	eng   *jsongen.Engine
	types []string
}

type renderedMsg struct {
	err       error
	signature string
	text      string
	path      string
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.loadEngine
}

func (m *interactiveModel) loadEngine() tea.Msg {
	eng, err := load(context.Background(), m.cfgFile, true)
	if err != nil {
		return loadedMsg{err: err}
	}

	var sigs []string
	if n, ok := eng.Provider().(names); ok {
		sigs = append(sigs, n.Names()...)
	}
	sigs = append(sigs, types.Mixed)
	return loadedMsg{eng: eng, types: sigs}
}

func (m *interactiveModel) renderCmd(signature string) tea.Cmd {
	return func() tea.Msg {
		text, path, err := render(m.eng, signature)
		return renderedMsg{signature: signature, text: text, path: path, err: err}
	}
}

func (m *interactiveModel) close() {
	if m.eng != nil {
		m.eng.Close(context.Background())
	}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.view.Width = msg.Width
		m.view.Height = max(msg.Height-6, 3)
		return m, nil

	case tea.KeyMsg:
		if m.state == stateInputType {
			return m.updateInput(msg)
		}

		switch msg.String() {
		case "ctrl+c", "q":
			m.close()
			return m, tea.Quit

		case "up", "k":
			if m.state == stateSelectType && m.selected > 0 {
				m.selected--
				return m, nil
			}

		case "down", "j":
			if m.state == stateSelectType && m.selected < len(m.types)-1 {
				m.selected++
				return m, nil
			}

		case "/":
			if m.state == stateSelectType && m.eng != nil {
				m.prepareInput()
				m.state = stateInputType
				return m, textinput.Blink
			}

		case "enter":
			switch m.state {
			case stateSelectType:
				if len(m.types) > 0 {
					return m, m.renderCmd(m.types[m.selected])
				}
			case stateShowArtifact:
				m.state = stateSelectType
				m.err = nil
				return m, nil
			}

		case "esc":
			if m.state == stateShowArtifact {
				m.state = stateSelectType
				m.err = nil
				return m, nil
			}
		}

	case loadedMsg:
		m.loaded = true
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.eng = msg.eng
		m.types = msg.types

	case renderedMsg:
		m.current = msg.signature
		m.path = msg.path
		m.err = msg.err
		m.view.SetContent(codeStyle.Render(msg.text))
		m.view.GotoTop()
		m.state = stateShowArtifact
		return m, nil
	}

	if m.state == stateShowArtifact {
		var cmd tea.Cmd
		m.view, cmd = m.view.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *interactiveModel) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.close()
		return m, tea.Quit
	case "esc":
		m.state = stateSelectType
		return m, nil
	case "enter":
		sig := strings.TrimSpace(m.input.Value())
		if sig == "" {
			return m, nil
		}
		return m, m.renderCmd(sig)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *interactiveModel) prepareInput() {
	ti := textinput.New()
	ti.Placeholder = "list<User>|null"
	ti.Prompt = "type: "
	ti.Width = 40
	ti.Focus()
	m.input = ti
}

func (m *interactiveModel) View() string {
	if !m.loaded {
		return "Loading configuration..."
	}
	if m.err != nil && m.state == stateSelectType {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("jsongen"))
	b.WriteString(" ")
	b.WriteString(m.cfgFile)
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectType:
		b.WriteString("Select a type to generate:\n\n")
		for i, name := range m.types {
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + name))
			} else {
				b.WriteString("  " + typeStyle.Render(name))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter generate • / custom signature • q quit"))

	case stateInputType:
		b.WriteString("Enter a type signature:\n\n")
		b.WriteString(m.input.View())
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter generate • esc back"))

	case stateShowArtifact:
		b.WriteString(typeStyle.Render(m.current))
		b.WriteString(" ")
		b.WriteString(helpStyle.Render(m.path))
		b.WriteString("\n\n")
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
			b.WriteString("\n")
		} else {
			b.WriteString(m.view.View())
			b.WriteString("\n")
		}
		b.WriteString(helpStyle.Render("↑/↓ scroll • enter back • q quit"))
	}

	return b.String()
}

func runInteractive(cfgFile string) error {
	p := tea.NewProgram(newInteractiveModel(cfgFile), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
