package main

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/internal/guesttest"
	"github.com/wippyai/wasm-bridge/runtime"
)

var enter = tea.KeyMsg{Type: tea.KeyEnter}

func machineModel(t *testing.T) *interactiveModel {
	t.Helper()
	ctx := context.Background()
	rt, err := runtime.New(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close(ctx) })
	mod, err := rt.Load(ctx, guesttest.MachineWasm(t), guesttest.MachineWIT)
	require.NoError(t, err)

	m := newInteractiveModel("machine.wat", mod)
	t.Cleanup(func() {
		if m.instance != nil {
			_ = m.instance.Close(ctx)
		}
	})
	return m
}

func selectFunc(t *testing.T, m *interactiveModel, name string) {
	t.Helper()
	for i, f := range m.funcs {
		if f.Name == name {
			m.selected = i
			return
		}
	}
	t.Fatalf("no export %q", name)
}

// deliver runs cmd the way the program would and feeds its message back.
func deliver(t *testing.T, m *interactiveModel, cmd tea.Cmd) callResultMsg {
	t.Helper()
	require.NotNil(t, cmd)
	msg, ok := cmd().(callResultMsg)
	require.True(t, ok)
	m.Update(msg)
	return msg
}

func TestInteractive_Call(t *testing.T) {
	m := machineModel(t)
	selectFunc(t, m, "echo")

	m.Update(enter)
	require.Equal(t, stateInputArgs, m.state)
	m.inputs[0].SetValue("hi ✓")

	_, cmd := m.Update(enter)
	require.True(t, m.calling)
	inst := m.instance
	require.NotNil(t, inst)

	// enter while the call is pending starts nothing
	_, again := m.Update(enter)
	require.Nil(t, again)

	msg := deliver(t, m, cmd)
	require.NoError(t, msg.err)
	require.False(t, m.calling)
	require.Equal(t, stateShowResult, m.state)
	require.Equal(t, `"hi ✓"`, m.result)
	require.Same(t, inst, m.instance)
}

func TestInteractive_TrapReinstantiates(t *testing.T) {
	m := machineModel(t)
	selectFunc(t, m, "boom")

	_, cmd := m.Update(enter)
	first := m.instance
	msg := deliver(t, m, cmd)
	require.True(t, errors.IsKind(msg.err, errors.KindTrap))
	require.False(t, first.Valid())

	m.Update(enter) // back to the list
	selectFunc(t, m, "reset")
	_, cmd = m.Update(enter)
	require.NotSame(t, first, m.instance)

	msg = deliver(t, m, cmd)
	require.NoError(t, msg.err)
	require.Equal(t, "null", m.result)
}

func TestInteractive_QuitClosesInstance(t *testing.T) {
	m := machineModel(t)
	selectFunc(t, m, "reset")
	_, cmd := m.Update(enter)
	deliver(t, m, cmd)
	require.True(t, m.instance.Valid())

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	require.False(t, m.instance.Valid())
}
