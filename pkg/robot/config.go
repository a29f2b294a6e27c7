package robot

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"
)

const DefaultConfigFile = "armctl.toml"

// Transport driver names.
const (
	TransportFirmata = "firmata"
	TransportFeetech = "feetech"
	TransportSim     = "sim"
)

// Input source names.
const (
	InputTUI   = "tui"
	InputStdin = "stdin"
)

// Firmata analog values are 14-bit and pins fit one 7-bit byte.
const (
	firmataMaxValue = 1<<14 - 1
	firmataMaxPin   = 127
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the arm configuration
type Config struct {
	Port           string
	Transport      string
	BaudRate       int
	ConnectTimeout time.Duration
	MaxCommandRate float64 // commands per second, 0 disables limiting
	ReleaseTorque  bool

	TickRate          int
	Input             string
	PlaybackTolerance time.Duration // frame gaps up to this are not waited for
	StartupDelay      time.Duration
	HomeStep          int
	HomeInterval      time.Duration

	RecordingFile string
	LoadRecording bool

	LogLevel    string
	MetricsAddr string

	Joints []JointConfig
	Keys   []KeyBinding
}

// KeyBinding binds a key identifier to either a system command or one or
// more joint moves.
type KeyBinding struct {
	Key     string        `toml:"key" yaml:"key" json:"key"`
	Command string        `toml:"command,omitempty" yaml:"command,omitempty" json:"command,omitempty"`
	Moves   []MoveBinding `toml:"moves,omitempty" yaml:"moves,omitempty" json:"moves,omitempty"`
}

// MoveBinding moves one joint one step in direction Dir (+1 or -1).
type MoveBinding struct {
	Joint JointID `toml:"joint" yaml:"joint" json:"joint"`
	Dir   int     `toml:"dir" yaml:"dir" json:"dir"`
}

// DefaultConfig returns the configuration of the 7-servo desktop arm driven
// through a StandardFirmata board.
func DefaultConfig() Config {
	return Config{
		Transport:         TransportFirmata,
		ConnectTimeout:    5 * time.Second,
		TickRate:          100,
		Input:             InputTUI,
		PlaybackTolerance: 2 * time.Millisecond,
		StartupDelay:      150 * time.Millisecond,
		HomeInterval:      20 * time.Millisecond,
		LogLevel:          "info",
		Joints:            DefaultJoints(),
		Keys:              DefaultKeys(),
	}
}

// DefaultBaudRate returns the usual line speed of a transport driver.
func DefaultBaudRate(transport string) int {
	if transport == TransportFeetech {
		return 1_000_000
	}
	return 57600
}

// DefaultJoints returns the wiring of the desktop arm. All joints are hobby
// servos with a 0-180 degree range.
func DefaultJoints() []JointConfig {
	homes := map[JointID]int{
		Base1:         180,
		Base2:         0,
		Shoulder:      180,
		Elbow:         100,
		ArmBend:       75,
		GripperRotate: 90,
		GripperGrasp:  80, // open
	}
	pins := map[JointID]int{
		Base1:         10,
		Base2:         9,
		Shoulder:      11,
		Elbow:         6,
		ArmBend:       5,
		GripperRotate: 3,
		GripperGrasp:  4,
	}

	joints := make([]JointConfig, 0, MaxJoints)
	for _, id := range AllJoints() {
		joints = append(joints, JointConfig{
			ID:   id,
			Pin:  pins[id],
			Min:  0,
			Max:  180,
			Step: 5,
			Home: homes[id],
		})
	}
	return joints
}

// DefaultKeys returns the default keyboard layout. Key identifiers use the
// terminal key names ("left", "ctrl+c", "?").
func DefaultKeys() []KeyBinding {
	move := func(key string, moves ...MoveBinding) KeyBinding {
		return KeyBinding{Key: key, Moves: moves}
	}
	cmd := func(key, command string) KeyBinding {
		return KeyBinding{Key: key, Command: command}
	}
	return []KeyBinding{
		// Both base servos turn the base together, in opposite directions.
		move("left", MoveBinding{Base1, +1}, MoveBinding{Base2, -1}),
		move("right", MoveBinding{Base1, -1}, MoveBinding{Base2, +1}),
		move("down", MoveBinding{Shoulder, +1}),
		move("up", MoveBinding{Shoulder, -1}),
		move("w", MoveBinding{Elbow, +1}),
		move("s", MoveBinding{Elbow, -1}),
		move("t", MoveBinding{ArmBend, +1}),
		move("y", MoveBinding{ArmBend, -1}),
		move("a", MoveBinding{GripperRotate, +1}),
		move("d", MoveBinding{GripperRotate, -1}),
		move("1", MoveBinding{GripperGrasp, +1}), // close
		move("2", MoveBinding{GripperGrasp, -1}), // open
		cmd("r", "start_record"),
		cmd("o", "stop_record"),
		cmd("p", "play"),
		cmd("h", "home"),
		cmd("H", "set_home"),
		cmd("?", "help"),
		cmd("esc", "exit"),
		cmd("ctrl+c", "exit"),
		cmd("eof", "exit"),
	}
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	def := DefaultConfig()

	switch c.Transport {
	case "":
		c.Transport = def.Transport
	case TransportFirmata, TransportFeetech, TransportSim:
	default:
		return fmt.Errorf("%w: unknown transport %q", ErrInvalidConfig, c.Transport)
	}
	if c.Port == "" && c.Transport != TransportSim {
		return fmt.Errorf("%w: port is required for the %s transport", ErrInvalidConfig, c.Transport)
	}

	switch c.Input {
	case "":
		c.Input = def.Input
	case InputTUI, InputStdin:
	default:
		return fmt.Errorf("%w: unknown input %q", ErrInvalidConfig, c.Input)
	}

	if c.BaudRate <= 0 {
		c.BaudRate = DefaultBaudRate(c.Transport)
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.TickRate == 0 {
		c.TickRate = def.TickRate
	}
	if c.TickRate < 1 || c.TickRate > 1000 {
		return fmt.Errorf("%w: tick rate %d outside 1-1000 Hz", ErrInvalidConfig, c.TickRate)
	}
	if c.HomeInterval <= 0 {
		c.HomeInterval = def.HomeInterval
	}
	if c.PlaybackTolerance < 0 || c.StartupDelay < 0 || c.HomeStep < 0 || c.MaxCommandRate < 0 {
		return fmt.Errorf("%w: negative timing value", ErrInvalidConfig)
	}
	if c.LoadRecording && c.RecordingFile == "" {
		return fmt.Errorf("%w: load_recording requires recording_file", ErrInvalidConfig)
	}

	if len(c.Joints) == 0 {
		c.Joints = def.Joints
	}
	if len(c.Joints) > MaxJoints {
		return fmt.Errorf("%w: %d joints configured, at most %d supported", ErrInvalidConfig, len(c.Joints), MaxJoints)
	}
	var ids []JointID
	var pins []int
	for _, j := range c.Joints {
		if j.ID == "" {
			return fmt.Errorf("%w: joint on pin %d has no id", ErrInvalidConfig, j.Pin)
		}
		if slices.Contains(ids, j.ID) {
			return fmt.Errorf("%w: duplicate joint %q", ErrInvalidConfig, j.ID)
		}
		if slices.Contains(pins, j.Pin) {
			return fmt.Errorf("%w: pin %d used by more than one joint", ErrInvalidConfig, j.Pin)
		}
		if j.Min > j.Max {
			return fmt.Errorf("%w: joint %q has min %d above max %d", ErrInvalidConfig, j.ID, j.Min, j.Max)
		}
		if c.Transport == TransportFirmata {
			if j.Min < 0 || j.Max > firmataMaxValue {
				return fmt.Errorf("%w: joint %q range [%d, %d] outside Firmata values 0-%d", ErrInvalidConfig, j.ID, j.Min, j.Max, firmataMaxValue)
			}
			if j.Pin < 0 || j.Pin > firmataMaxPin {
				return fmt.Errorf("%w: joint %q pin %d outside Firmata pins 0-%d", ErrInvalidConfig, j.ID, j.Pin, firmataMaxPin)
			}
		}
		if j.Step <= 0 {
			return fmt.Errorf("%w: joint %q needs a positive step", ErrInvalidConfig, j.ID)
		}
		if j.Home < j.Min || j.Home > j.Max {
			return fmt.Errorf("%w: joint %q home %d outside [%d, %d]", ErrInvalidConfig, j.ID, j.Home, j.Min, j.Max)
		}
		ids = append(ids, j.ID)
		pins = append(pins, j.Pin)
	}

	if len(c.Keys) == 0 {
		c.Keys = def.Keys
	}
	return nil
}

// JointIDs returns the configured joint names in order.
func (c *Config) JointIDs() []JointID {
	ids := make([]JointID, 0, len(c.Joints))
	for _, j := range c.Joints {
		ids = append(ids, j.ID)
	}
	return ids
}

// LoadConfigFrom loads configuration from a specific file. The format is
// chosen by extension (.toml, .yaml, .yml or .json); unset fields keep
// their defaults.
func LoadConfigFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	fc, err := decodeFileConfig(path, data)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := applyFileConfig(&cfg, fc); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SaveTo saves configuration to a specific file, encoded by extension.
func (c *Config) SaveTo(path string) error {
	data, err := encodeFileConfig(path, toFileConfig(c))
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ConfigExists returns true if a config file exists at path
func ConfigExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
