package robot

import (
	"context"
	"errors"

	"github.com/gwillem/armctl/pkg/transport"
)

// Sender pushes an absolute position to the actuator wired to pin.
type Sender interface {
	Send(ctx context.Context, pin, position int) error
}

// JointConfig describes a single joint.
type JointConfig struct {
	ID   JointID `toml:"id" yaml:"id" json:"id"`
	Pin  int     `toml:"pin" yaml:"pin" json:"pin"`
	Min  int     `toml:"min" yaml:"min" json:"min"`
	Max  int     `toml:"max" yaml:"max" json:"max"`
	Step int     `toml:"step" yaml:"step" json:"step"`
	Home int     `toml:"home" yaml:"home" json:"home"`

	// Calibrated raw range of a bus servo, ignored by PWM drivers.
	RawMin int `toml:"raw_min,omitempty" yaml:"raw_min,omitempty" json:"raw_min,omitempty"`
	RawMax int `toml:"raw_max,omitempty" yaml:"raw_max,omitempty" json:"raw_max,omitempty"`
}

// Joint is one addressable actuator with a bounded position range.
// The current position never leaves [Min, Max] and only changes after
// the transport accepted the command.
type Joint struct {
	cfg     JointConfig
	current int
	tx      Sender
}

// NewJoint creates a joint that starts at its home position.
func NewJoint(cfg JointConfig, tx Sender) *Joint {
	j := &Joint{cfg: cfg, tx: tx}
	j.current = j.clamp(cfg.Home)
	return j
}

// ID returns the joint identifier.
func (j *Joint) ID() JointID { return j.cfg.ID }

// Pin returns the transport pin or servo ID.
func (j *Joint) Pin() int { return j.cfg.Pin }

// Config returns the joint configuration.
func (j *Joint) Config() JointConfig { return j.cfg }

// Position returns the last position confirmed by the transport.
func (j *Joint) Position() int { return j.current }

// Propose moves the joint by delta steps. Nothing is sent when the clamped
// target equals the current position.
func (j *Joint) Propose(ctx context.Context, delta int) (bool, error) {
	target := j.clamp(j.current + delta*j.cfg.Step)
	if target == j.current {
		return false, nil
	}
	return j.push(ctx, target)
}

// ProposeAbsolute sends the clamped position unconditionally.
func (j *Joint) ProposeAbsolute(ctx context.Context, pos int) (bool, error) {
	return j.push(ctx, j.clamp(pos))
}

func (j *Joint) push(ctx context.Context, target int) (bool, error) {
	if err := j.tx.Send(ctx, j.cfg.Pin, target); err != nil {
		var te *transport.Error
		if !errors.As(err, &te) {
			err = &transport.Error{Pin: j.cfg.Pin, Position: target, Err: err}
		}
		return false, err
	}
	changed := target != j.current
	j.current = target
	return changed, nil
}

func (j *Joint) clamp(pos int) int {
	return min(max(pos, j.cfg.Min), j.cfg.Max)
}
