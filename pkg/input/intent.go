// Package input turns operator key events into control intents.
package input

import (
	"fmt"

	"github.com/gwillem/armctl/pkg/robot"
)

// KeyID identifies a physical key, using terminal key names such as
// "left", "w" or "ctrl+c".
type KeyID string

// KeyEOF is emitted by sources that reach the end of their input.
const KeyEOF KeyID = "eof"

// Kind tags an Intent.
type Kind int

const (
	KindMove Kind = iota
	KindStartRecord
	KindStopRecord
	KindToggleRecord
	KindPlay
	KindHome
	KindSetHome
	KindHelp
	KindExit
)

var kindNames = map[Kind]string{
	KindMove:         "move",
	KindStartRecord:  "start_record",
	KindStopRecord:   "stop_record",
	KindToggleRecord: "toggle_record",
	KindPlay:         "play",
	KindHome:         "home",
	KindSetHome:      "set_home",
	KindHelp:         "help",
	KindExit:         "exit",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseCommand returns the system command kind for a configured name.
func ParseCommand(name string) (Kind, error) {
	for k, n := range kindNames {
		if k != KindMove && n == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown command %q", name)
}

// Move steps one joint in direction Dir, which is +1 or -1.
type Move struct {
	Joint robot.JointID
	Dir   int
}

// Intent is either a movement (Kind == KindMove, Moves set) or a system
// command. Intents are produced per key event and consumed immediately.
type Intent struct {
	Kind  Kind
	Moves []Move
}

// IsMove reports whether the intent moves joints.
func (i Intent) IsMove() bool { return i.Kind == KindMove }

func (i Intent) String() string {
	if i.Kind != KindMove {
		return i.Kind.String()
	}
	s := "move"
	for _, m := range i.Moves {
		s += fmt.Sprintf(" %s%+d", m.Joint, m.Dir)
	}
	return s
}
