// Package recorder captures timed snapshots of arm poses for later replay.
package recorder

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gwillem/armctl/pkg/robot"
)

var (
	// ErrNothingToPlay is returned when no sealed recording with frames exists.
	ErrNothingToPlay = errors.New("nothing to play")
	// ErrNotArmed is returned when stopping a recorder that is not capturing.
	ErrNotArmed = errors.New("recorder not armed")
	// ErrArmed is returned when replacing the recording while capturing.
	ErrArmed = errors.New("recorder armed")
)

// State of the recorder.
type State int

const (
	Idle State = iota
	Armed
	Sealed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Armed:
		return "armed"
	case Sealed:
		return "sealed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Frame is one full-arm snapshot, offset from the moment recording started.
type Frame struct {
	OffsetMS  uint64     `json:"offset_ms"`
	Positions robot.Pose `json:"positions"`
}

// Recording is an ordered sequence of frames.
type Recording struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Frames    []Frame   `json:"frames"`
}

// Duration returns the offset of the last frame.
func (r *Recording) Duration() time.Duration {
	if len(r.Frames) == 0 {
		return 0
	}
	return time.Duration(r.Frames[len(r.Frames)-1].OffsetMS) * time.Millisecond
}

// Recorder holds at most one recording.
type Recorder struct {
	state   State
	rec     *Recording
	armedAt time.Time
}

// New returns an idle recorder.
func New() *Recorder {
	return &Recorder{}
}

// State returns the current recorder state.
func (r *Recorder) State() State { return r.state }

// Armed reports whether frames are being captured.
func (r *Recorder) Armed() bool { return r.state == Armed }

// Len returns the number of frames in the current recording.
func (r *Recorder) Len() int {
	if r.rec == nil {
		return 0
	}
	return len(r.rec.Frames)
}

// Start discards any previous recording and arms a new one whose first
// frame is pose at offset 0.
func (r *Recorder) Start(now time.Time, pose robot.Pose) {
	r.rec = &Recording{
		ID:        uuid.New(),
		CreatedAt: now,
		Frames:    []Frame{{OffsetMS: 0, Positions: pose.Clone()}},
	}
	r.armedAt = now
	r.state = Armed
}

// Capture appends pose if armed and reports whether a frame was added.
func (r *Recorder) Capture(now time.Time, pose robot.Pose) bool {
	if r.state != Armed {
		return false
	}
	var offset uint64
	if d := now.Sub(r.armedAt); d > 0 {
		offset = uint64(d.Milliseconds())
	}
	// Offsets never go backwards even if the clock does.
	if last := r.rec.Frames[len(r.rec.Frames)-1].OffsetMS; offset < last {
		offset = last
	}
	r.rec.Frames = append(r.rec.Frames, Frame{OffsetMS: offset, Positions: pose.Clone()})
	return true
}

// Stop seals the armed recording and returns it.
func (r *Recorder) Stop() (*Recording, error) {
	if r.state != Armed {
		return nil, ErrNotArmed
	}
	r.state = Sealed
	return r.rec, nil
}

// Playable returns the sealed recording, or ErrNothingToPlay.
func (r *Recorder) Playable() (*Recording, error) {
	if r.state != Sealed || r.rec == nil || len(r.rec.Frames) == 0 {
		return nil, ErrNothingToPlay
	}
	return r.rec, nil
}

// Set replaces the current recording with rec, sealed.
func (r *Recorder) Set(rec *Recording) error {
	if r.state == Armed {
		return ErrArmed
	}
	if rec == nil {
		r.rec, r.state = nil, Idle
		return nil
	}
	r.rec, r.state = rec, Sealed
	return nil
}
