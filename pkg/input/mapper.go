package input

import (
	"fmt"
	"slices"

	"github.com/gwillem/armctl/pkg/robot"
)

// Mapper is a fixed key table built once at startup.
type Mapper struct {
	table map[KeyID]Intent
	keys  []KeyID // binding order, for help output
}

// NewMapper validates bindings against the configured joints.
func NewMapper(bindings []robot.KeyBinding, joints []robot.JointID) (*Mapper, error) {
	m := &Mapper{table: make(map[KeyID]Intent, len(bindings))}

	for _, b := range bindings {
		key := KeyID(b.Key)
		if key == "" {
			return nil, fmt.Errorf("key binding without key")
		}
		if _, dup := m.table[key]; dup {
			return nil, fmt.Errorf("key %q bound twice", key)
		}

		var intent Intent
		switch {
		case b.Command != "" && len(b.Moves) > 0:
			return nil, fmt.Errorf("key %q binds both a command and moves", key)
		case b.Command != "":
			kind, err := ParseCommand(b.Command)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", key, err)
			}
			intent = Intent{Kind: kind}
		case len(b.Moves) > 0:
			intent = Intent{Kind: KindMove}
			for _, mv := range b.Moves {
				if !slices.Contains(joints, mv.Joint) {
					return nil, fmt.Errorf("key %q: unknown joint %q", key, mv.Joint)
				}
				if mv.Dir != 1 && mv.Dir != -1 {
					return nil, fmt.Errorf("key %q: direction %d must be +1 or -1", key, mv.Dir)
				}
				intent.Moves = append(intent.Moves, Move{Joint: mv.Joint, Dir: mv.Dir})
			}
		default:
			return nil, fmt.Errorf("key %q binds nothing", key)
		}

		m.table[key] = intent
		m.keys = append(m.keys, key)
	}
	return m, nil
}

// Map returns the intent bound to key. Unmapped keys return false.
func (m *Mapper) Map(key KeyID) (Intent, bool) {
	intent, ok := m.table[key]
	return intent, ok
}

// Binding is a key with its intent.
type Binding struct {
	Key    KeyID
	Intent Intent
}

// Bindings returns the table in configuration order.
func (m *Mapper) Bindings() []Binding {
	out := make([]Binding, 0, len(m.keys))
	for _, k := range m.keys {
		out = append(out, Binding{Key: k, Intent: m.table[k]})
	}
	return out
}
