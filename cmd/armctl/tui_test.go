package main

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/gwillem/armctl/pkg/input"
	"github.com/gwillem/armctl/pkg/robot"
	"github.com/gwillem/armctl/pkg/session"
	"github.com/gwillem/armctl/pkg/teleop"
)

func testModel(t *testing.T) (tuiModel, *input.ChanSource) {
	t.Helper()
	mapper, err := input.NewMapper(robot.DefaultKeys(), robot.AllJoints())
	if err != nil {
		t.Fatal(err)
	}
	src := input.NewChanSource(2)
	return newTUIModel(tuiConfig{
		src:      src,
		bindings: mapper.Bindings(),
		hz:       100,
		port:     "/dev/ttyACM0",
	}), src
}

func TestTUIForwardsKeys(t *testing.T) {
	m, src := testModel(t)

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyLeft})
	next, _ = next.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	next, _ = next.Update(tea.KeyMsg{Type: tea.KeyEsc})

	for _, want := range []input.KeyID{"left", "r"} {
		got, ok := src.Poll()
		if !ok || got != want {
			t.Errorf("Poll = %q, %v; want %q", got, ok, want)
		}
	}
	if dropped := next.(tuiModel).dropped; dropped != 1 {
		t.Errorf("dropped = %d, want 1", dropped)
	}
}

func TestTUIState(t *testing.T) {
	m, _ := testModel(t)

	state := teleop.State{
		Joints: []teleop.JointState{{ID: "base_1", Position: 90, Max: 180}, {ID: "shoulder", Position: 45, Max: 180}},
		Mode:   session.Recording,
		Frames: 12,
	}
	next, cmd := m.Update(stateMsg(state))
	if cmd == nil {
		t.Error("expected to keep waiting for states")
	}
	view := next.View()
	for _, want := range []string{"RECORDING", "12 frames", "base_1 90", "shoulder 45"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}

	state.Help = true
	next, _ = next.Update(stateMsg(state))
	if view := next.View(); !strings.Contains(view, "start_record") {
		t.Error("help view should list the key bindings")
	}
}

func TestTUILogs(t *testing.T) {
	m, _ := testModel(t)

	var next tea.Model = m
	for i := range maxLogs + 2 {
		next, _ = next.Update(logMsg(strings.Repeat("x", i+1)))
	}
	logs := next.(tuiModel).logs
	if len(logs) != maxLogs {
		t.Fatalf("kept %d logs, want %d", len(logs), maxLogs)
	}
	if logs[0] != "xxx" {
		t.Errorf("oldest kept log = %q", logs[0])
	}
}

func TestTUIQuitsWhenControllerStops(t *testing.T) {
	m, _ := testModel(t)
	runErr := errors.New("boom")

	next, cmd := m.Update(doneMsg{err: runErr})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
	final := next.(tuiModel)
	if !final.finished || !errors.Is(final.runErr, runErr) {
		t.Errorf("finished=%v runErr=%v", final.finished, final.runErr)
	}
}
