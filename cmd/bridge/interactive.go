package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/wasm-bridge/canon"
	"github.com/wippyai/wasm-bridge/registry"
	"github.com/wippyai/wasm-bridge/runtime"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type interactiveModel struct {
	err      error
	instance *runtime.Instance
	module   *runtime.Module
	filename string
	result   string
	funcs    []runtime.Export
	inputs   []textinput.Model
	selected int
	focusIdx int
	state    modelState
	calling  bool
}

type modelState int

const (
	stateSelectFunc modelState = iota
	stateInputArgs
	stateShowResult
)

func newInteractiveModel(filename string, mod *runtime.Module) *interactiveModel {
	funcs := mod.Exports()
	sort.Slice(funcs, func(i, j int) bool { return funcs[i].Name < funcs[j].Name })
	return &interactiveModel{
		filename: filename,
		module:   mod,
		funcs:    funcs,
		state:    stateSelectFunc,
	}
}

type callResultMsg struct {
	err    error
	result string
}

func (m *interactiveModel) Init() tea.Cmd {
	return nil
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			// q is ordinary text while typing arguments
			if msg.String() == "q" && m.state == stateInputArgs {
				break
			}
			if m.instance != nil {
				_ = m.instance.Close(context.Background())
			}
			return m, tea.Quit

		case "up", "k":
			if m.state == stateSelectFunc && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectFunc && m.selected < len(m.funcs)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateSelectFunc:
				m.prepareInputs()
				if len(m.inputs) == 0 {
					return m, m.startCall()
				}
				m.state = stateInputArgs

			case stateInputArgs:
				return m, m.startCall()

			case stateShowResult:
				m.state = stateSelectFunc
				m.result = ""
				m.err = nil
			}

		case "tab":
			if m.state == stateInputArgs && len(m.inputs) > 1 {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
			}

		case "esc":
			switch m.state {
			case stateInputArgs:
				m.state = stateSelectFunc
				m.inputs = nil
			case stateShowResult:
				m.state = stateSelectFunc
				m.result = ""
				m.err = nil
			}
		}

	case callResultMsg:
		m.calling = false
		m.result = msg.result
		m.err = msg.err
		m.state = stateShowResult
	}

	if m.state == stateInputArgs {
		var cmds []tea.Cmd
		for i := range m.inputs {
			var cmd tea.Cmd
			m.inputs[i], cmd = m.inputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

func (m *interactiveModel) prepareInputs() {
	f := m.funcs[m.selected].Signature
	m.inputs = make([]textinput.Model, len(f.Params))
	for i, p := range f.Params {
		ti := textinput.New()
		ti.Placeholder = placeholder(p.Type)
		ti.Prompt = p.Name + ": "
		ti.Width = 40
		if i == 0 {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
	m.focusIdx = 0
}

// startCall readies the instance and returns the command running the
// selected export. Model state is only touched here, on the update loop.
func (m *interactiveModel) startCall() tea.Cmd {
	if m.calling {
		return nil
	}
	ctx := context.Background()

	// a trap invalidates the instance; start over with a fresh one
	if m.instance != nil && !m.instance.Valid() {
		_ = m.instance.Close(ctx)
		m.instance = nil
	}
	if m.instance == nil {
		inst, err := m.module.Instantiate(ctx)
		if err != nil {
			return func() tea.Msg { return callResultMsg{err: err} }
		}
		m.instance = inst
	}

	values := make([]string, len(m.inputs))
	for i, input := range m.inputs {
		values[i] = input.Value()
	}
	inst, sig := m.instance, m.funcs[m.selected].Signature
	m.calling = true
	return func() tea.Msg { return callFunction(ctx, inst, sig, values) }
}

func callFunction(ctx context.Context, inst *runtime.Instance, f registry.Signature, values []string) callResultMsg {
	args := make([]any, len(values))
	for i, text := range values {
		v, err := parseArg(text, f.Params[i].Type)
		if err != nil {
			return callResultMsg{err: fmt.Errorf("%s: %w", f.Params[i].Name, err)}
		}
		args[i] = v
	}

	result, err := inst.Call(ctx, f.Name, args...)
	if err != nil {
		return callResultMsg{err: err}
	}

	text, err := formatResult(f.Result, result, true)
	if err != nil {
		return callResultMsg{err: err}
	}
	return callResultMsg{result: text}
}

// placeholder hints at the expected input syntax.
func placeholder(d *canon.Descriptor) string {
	switch d.Kind() {
	case canon.KindString:
		return "text"
	case canon.KindChar:
		return "one character"
	case canon.KindBool:
		return "true or false"
	case canon.KindList:
		if d.Elem().Kind() == canon.KindU8 {
			return `[1, 2, 3] or "bytes"`
		}
		return "JSON array"
	case canon.KindRecord:
		return "JSON object"
	default:
		return d.String()
	}
}

func (m *interactiveModel) View() string {
	if m.err != nil && m.state != stateShowResult {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	if len(m.funcs) == 0 {
		return "No exports declared.\n\nPress q to quit."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("WASM Bridge"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectFunc:
		b.WriteString("Select a function to call:\n\n")
		for i, f := range m.funcs {
			cursor := "  "
			if i == m.selected {
				cursor = "> "
				b.WriteString(selectedStyle.Render(cursor + m.formatFunc(f)))
			} else {
				b.WriteString(cursor + m.formatFunc(f))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter call • q quit"))

	case stateInputArgs:
		f := m.funcs[m.selected].Signature
		b.WriteString(fmt.Sprintf("Calling %s\n\n", funcStyle.Render(f.Name)))
		for i, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString(" ")
			b.WriteString(typeStyle.Render(f.Params[i].Type.String()))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter call • esc back"))

	case stateShowResult:
		f := m.funcs[m.selected]
		b.WriteString(fmt.Sprintf("Result of %s:\n\n", funcStyle.Render(f.Name)))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	return b.String()
}

func (m *interactiveModel) formatFunc(f runtime.Export) string {
	var params []string
	for _, p := range f.Signature.Params {
		params = append(params, p.Name+": "+typeStyle.Render(p.Type.String()))
	}
	result := ""
	if f.Signature.Result != nil {
		result = " -> " + typeStyle.Render(f.Signature.Result.String())
	}
	return funcStyle.Render(f.Name) + "(" + strings.Join(params, ", ") + ")" + result
}

func runInteractive(filename string, mod *runtime.Module) error {
	m := newInteractiveModel(filename, mod)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	if m.instance != nil {
		_ = m.instance.Close(context.Background())
	}
	return err
}
