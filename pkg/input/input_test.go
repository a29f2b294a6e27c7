package input

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/gwillem/armctl/pkg/robot"
)

func TestMapperDefaultLayout(t *testing.T) {
	m, err := NewMapper(robot.DefaultKeys(), robot.AllJoints())
	require.NoError(t, err)

	tests := []struct {
		key  KeyID
		want Intent
	}{
		{"left", Intent{Kind: KindMove, Moves: []Move{{robot.Base1, +1}, {robot.Base2, -1}}}},
		{"up", Intent{Kind: KindMove, Moves: []Move{{robot.Shoulder, -1}}}},
		{"1", Intent{Kind: KindMove, Moves: []Move{{robot.GripperGrasp, +1}}}},
		{"r", Intent{Kind: KindStartRecord}},
		{"o", Intent{Kind: KindStopRecord}},
		{"p", Intent{Kind: KindPlay}},
		{"h", Intent{Kind: KindHome}},
		{"H", Intent{Kind: KindSetHome}},
		{"?", Intent{Kind: KindHelp}},
		{"esc", Intent{Kind: KindExit}},
		{KeyEOF, Intent{Kind: KindExit}},
	}
	for _, tt := range tests {
		got, ok := m.Map(tt.key)
		require.True(t, ok, "key %q", tt.key)
		assert.Equal(t, tt.want, got, "key %q", tt.key)
	}
}

func TestMapperUnmappedKey(t *testing.T) {
	m, err := NewMapper(robot.DefaultKeys(), robot.AllJoints())
	require.NoError(t, err)

	_, ok := m.Map("f12")
	assert.False(t, ok)
}

func TestMapperIsDeterministic(t *testing.T) {
	m, err := NewMapper(robot.DefaultKeys(), robot.AllJoints())
	require.NoError(t, err)

	first, _ := m.Map("right")
	for range 10 {
		again, _ := m.Map("right")
		assert.Equal(t, first, again)
	}
}

func TestNewMapperErrors(t *testing.T) {
	joints := []robot.JointID{"base"}
	tests := []struct {
		name     string
		bindings []robot.KeyBinding
		errMsg   string
	}{
		{"empty key", []robot.KeyBinding{{Command: "exit"}}, "without key"},
		{"duplicate", []robot.KeyBinding{{Key: "q", Command: "exit"}, {Key: "q", Command: "help"}}, "bound twice"},
		{"unknown command", []robot.KeyBinding{{Key: "q", Command: "selfdestruct"}}, "unknown command"},
		{"move is not a command", []robot.KeyBinding{{Key: "q", Command: "move"}}, "unknown command"},
		{"unknown joint", []robot.KeyBinding{{Key: "w", Moves: []robot.MoveBinding{{Joint: "tail", Dir: 1}}}}, "unknown joint"},
		{"bad direction", []robot.KeyBinding{{Key: "w", Moves: []robot.MoveBinding{{Joint: "base", Dir: 2}}}}, "+1 or -1"},
		{"both", []robot.KeyBinding{{Key: "w", Command: "exit", Moves: []robot.MoveBinding{{Joint: "base", Dir: 1}}}}, "both"},
		{"nothing", []robot.KeyBinding{{Key: "w"}}, "binds nothing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMapper(tt.bindings, joints)
			assert.ErrorContains(t, err, tt.errMsg)
		})
	}
}

func TestMapperBindingsOrder(t *testing.T) {
	m, err := NewMapper([]robot.KeyBinding{
		{Key: "z", Command: "exit"},
		{Key: "a", Moves: []robot.MoveBinding{{Joint: "base", Dir: -1}}},
	}, []robot.JointID{"base"})
	require.NoError(t, err)

	b := m.Bindings()
	require.Len(t, b, 2)
	assert.Equal(t, KeyID("z"), b[0].Key)
	assert.Equal(t, "move base-1", b[1].Intent.String())
}

func TestParseCommand(t *testing.T) {
	for _, name := range []string{"start_record", "stop_record", "toggle_record", "play", "home", "set_home", "help", "exit"} {
		k, err := ParseCommand(name)
		require.NoError(t, err)
		assert.Equal(t, name, k.String())
	}
}

func TestChanSource(t *testing.T) {
	s := NewChanSource(2)

	_, ok := s.Poll()
	assert.False(t, ok, "empty source must not block")

	assert.True(t, s.Push("w"))
	assert.True(t, s.Push("s"))
	assert.False(t, s.Push("a"), "full buffer drops")

	k, ok := s.Poll()
	require.True(t, ok)
	assert.Equal(t, KeyID("w"), k)
	k, _ = s.Poll()
	assert.Equal(t, KeyID("s"), k)
	_, ok = s.Poll()
	assert.False(t, ok)
}

func TestLineSource(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := NewLineSource(context.Background(), strings.NewReader("r\n\n# comment\n  left \no\n"))

	var got []KeyID
	deadline := time.After(time.Second)
	for len(got) < 4 {
		if k, ok := s.Poll(); ok {
			got = append(got, k)
			continue
		}
		select {
		case <-deadline:
			t.Fatalf("timed out, got %v", got)
		case <-time.After(time.Millisecond):
		}
	}

	assert.Equal(t, []KeyID{"r", "left", "o", KeyEOF}, got)
	assert.NoError(t, s.Err())
}

func TestLineSourceCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	many := strings.Repeat("w\n", 200) // more than the buffer holds
	s := NewLineSource(ctx, strings.NewReader(many))
	cancel()

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("reader did not stop after cancel")
	}
}
