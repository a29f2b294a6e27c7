// Package session holds the mutable state of one teleoperation session.
//
// A State is owned by a single control goroutine and is not safe for
// concurrent use.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/gwillem/armctl/pkg/recorder"
	"github.com/gwillem/armctl/pkg/robot"
)

var (
	// ErrNotRecording is returned by StopRecording outside Recording mode.
	ErrNotRecording = errors.New("not recording")
	// ErrRecordingActive is returned when playback is requested while recording.
	ErrRecordingActive = errors.New("recording in progress")
	// ErrBusy is returned when a command conflicts with an active playback.
	ErrBusy = errors.New("playback in progress")
)

// Mode is the exclusive operating mode of a session.
type Mode int

const (
	Idle Mode = iota
	Recording
	Playing
)

func (m Mode) String() string {
	switch m {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Playing:
		return "playing"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// State owns the joints, home pose, mode and recorder.
type State struct {
	joints []*robot.Joint
	byID   map[robot.JointID]*robot.Joint
	home   robot.Pose
	mode   Mode
	rec    *recorder.Recorder
}

// New creates an idle session. The home pose is taken from the joints'
// configured home positions.
func New(joints []*robot.Joint) *State {
	s := &State{
		joints: joints,
		byID:   make(map[robot.JointID]*robot.Joint, len(joints)),
		home:   make(robot.Pose, len(joints)),
		rec:    recorder.New(),
	}
	for _, j := range joints {
		s.byID[j.ID()] = j
		s.home[j.ID()] = j.Config().Home
	}
	return s
}

// Joints returns the joints in configured order.
func (s *State) Joints() []*robot.Joint { return s.joints }

// Joint looks up a joint by ID.
func (s *State) Joint(id robot.JointID) (*robot.Joint, bool) {
	j, ok := s.byID[id]
	return j, ok
}

// Pose returns a snapshot of all current positions.
func (s *State) Pose() robot.Pose {
	p := make(robot.Pose, len(s.joints))
	for _, j := range s.joints {
		p[j.ID()] = j.Position()
	}
	return p
}

// Home returns a copy of the home pose.
func (s *State) Home() robot.Pose { return s.home.Clone() }

// SetHome makes the current pose the home pose.
func (s *State) SetHome() robot.Pose {
	s.home = s.Pose()
	return s.Home()
}

// Mode returns the current mode.
func (s *State) Mode() Mode { return s.mode }

// Recorder returns the session recorder.
func (s *State) Recorder() *recorder.Recorder { return s.rec }

// StartRecording arms a new recording, discarding any previous one. Calling
// it while already recording restarts the recording.
func (s *State) StartRecording(now time.Time) error {
	switch s.mode {
	case Playing:
		return ErrBusy
	case Idle, Recording:
		s.rec.Start(now, s.Pose())
		s.mode = Recording
		return nil
	}
	return fmt.Errorf("start recording in mode %v", s.mode)
}

// StopRecording seals the current recording.
func (s *State) StopRecording() (*recorder.Recording, error) {
	switch s.mode {
	case Recording:
		rec, err := s.rec.Stop()
		if err != nil {
			return nil, err
		}
		s.mode = Idle
		return rec, nil
	case Idle, Playing:
		return nil, ErrNotRecording
	}
	return nil, fmt.Errorf("stop recording in mode %v", s.mode)
}

// Capture records the current pose if recording.
func (s *State) Capture(now time.Time) bool {
	switch s.mode {
	case Recording:
		return s.rec.Capture(now, s.Pose())
	case Idle, Playing:
		return false
	}
	return false
}

// BeginPlayback switches to Playing and returns the recording to replay.
func (s *State) BeginPlayback() (*recorder.Recording, error) {
	switch s.mode {
	case Recording:
		return nil, ErrRecordingActive
	case Playing:
		return nil, ErrBusy
	case Idle:
		rec, err := s.rec.Playable()
		if err != nil {
			return nil, err
		}
		s.mode = Playing
		return rec, nil
	}
	return nil, fmt.Errorf("begin playback in mode %v", s.mode)
}

// EndPlayback returns to Idle after playback.
func (s *State) EndPlayback() {
	if s.mode == Playing {
		s.mode = Idle
	}
}

// LoadRecording replaces the recording with a sealed one, e.g. from disk.
func (s *State) LoadRecording(rec *recorder.Recording) error {
	if s.mode != Idle {
		return fmt.Errorf("load recording: %w", ErrBusy)
	}
	return s.rec.Set(rec)
}
