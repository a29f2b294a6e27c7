// Package teleop runs the keyboard teleoperation control loop.
package teleop

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/gwillem/armctl/pkg/input"
	"github.com/gwillem/armctl/pkg/metrics"
	"github.com/gwillem/armctl/pkg/recorder"
	"github.com/gwillem/armctl/pkg/robot"
	"github.com/gwillem/armctl/pkg/session"
	"github.com/gwillem/armctl/pkg/transport"
)

// JointState is the published view of one joint.
type JointState struct {
	ID       robot.JointID
	Position int
	Min      int
	Max      int
}

// State represents the current state of teleoperation.
type State struct {
	Joints    []JointState
	Mode      session.Mode
	Frames    int
	Help      bool
	Timestamp time.Time
	Error     error
}

// Config holds configuration for the controller.
type Config struct {
	TickRate          int
	// PlaybackTolerance skips playback waits no longer than it. Longer
	// waits are kept in full.
	PlaybackTolerance time.Duration
	StartupDelay      time.Duration
	HomeStep          int
	HomeInterval      time.Duration
	RecordingFile     string
	MaxEventsPerTick  int

	Logger zerolog.Logger

	// Clock hooks, replaced in tests.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

const defaultMaxEvents = 64

// Controller owns the session and the transport for the lifetime of Run.
// All of its methods must be called from one goroutine.
type Controller struct {
	tx     transport.Transport
	sess   *session.State
	mapper *input.Mapper
	src    input.Source
	cfg    Config
	log    zerolog.Logger

	interval time.Duration
	help     bool
	exit     bool
	closed   bool
	dirty    bool // positions changed this tick, not yet captured
	lastErr  error
	stateCh  chan State
}

// NewController creates a controller. It takes ownership of tx.
func NewController(tx transport.Transport, sess *session.State, mapper *input.Mapper, src input.Source, cfg Config) *Controller {
	if cfg.TickRate <= 0 {
		cfg.TickRate = 100
	}
	if cfg.MaxEventsPerTick <= 0 {
		cfg.MaxEventsPerTick = defaultMaxEvents
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleep
	}

	return &Controller{
		tx:       tx,
		sess:     sess,
		mapper:   mapper,
		src:      src,
		cfg:      cfg,
		log:      cfg.Logger,
		interval: time.Second / time.Duration(cfg.TickRate),
		stateCh:  make(chan State, 1),
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// States returns a channel that receives state updates.
func (c *Controller) States() <-chan State {
	return c.stateCh
}

// Session returns the controlled session.
func (c *Controller) Session() *session.State { return c.sess }

// Bindings returns the key table in configured order.
func (c *Controller) Bindings() []input.Binding { return c.mapper.Bindings() }

// TickRate returns the control frequency.
func (c *Controller) TickRate() int { return c.cfg.TickRate }

// Close releases the transport. It is safe to call more than once.
func (c *Controller) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if err := c.tx.Close(); err != nil {
		c.log.Warn().Err(err).Msg("release transport")
		return err
	}
	c.log.Info().Msg("transport released")
	return nil
}

// Run homes the arm and runs the control loop until an Exit command or
// ctx cancellation. The transport is released on return.
func (c *Controller) Run(ctx context.Context) error {
	defer c.Close()

	c.startup(ctx)
	c.log.Info().Int("hz", c.cfg.TickRate).Msg("teleoperation started")
	c.publish()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for !c.exit {
		select {
		case <-ctx.Done():
			c.log.Info().Msg("teleoperation cancelled")
			return ctx.Err()
		case <-ticker.C:
			c.tick(ctx)
		}
	}
	c.log.Info().Msg("teleoperation stopped")
	return nil
}

// startup moves the joints to their home positions one by one.
func (c *Controller) startup(ctx context.Context) {
	home := c.sess.Home()
	for i, j := range c.sess.Joints() {
		if i > 0 && c.cfg.StartupDelay > 0 {
			if err := c.cfg.Sleep(ctx, c.cfg.StartupDelay); err != nil {
				return
			}
		}
		_, err := c.send(ctx, j, home[j.ID()], true)
		if err != nil {
			c.log.Warn().Err(err).Str("joint", string(j.ID())).Msg("initial homing failed")
			continue
		}
		c.log.Debug().Str("joint", string(j.ID())).Int("position", j.Position()).Msg("joint homed")
	}
}

// tick handles pending input and captures a frame if anything moved.
func (c *Controller) tick(ctx context.Context) {
	start := c.cfg.Now()
	c.lastErr = nil
	c.dirty = false

	for range c.cfg.MaxEventsPerTick {
		key, ok := c.src.Poll()
		if !ok {
			break
		}
		intent, ok := c.mapper.Map(key)
		if !ok {
			continue
		}
		c.dispatch(ctx, intent)
		if c.exit {
			break
		}
	}

	c.flush()
	c.publish()
	metrics.ObserveTick(c.cfg.Now().Sub(start))
}

// dispatch applies one intent. Moves made earlier in the tick are captured
// before any recorder or mode transition.
func (c *Controller) dispatch(ctx context.Context, intent input.Intent) {
	switch intent.Kind {
	case input.KindMove:
		c.dirty = c.move(ctx, intent.Moves) || c.dirty
	case input.KindStartRecord:
		c.flush()
		c.startRecording()
	case input.KindStopRecord:
		c.flush()
		c.stopRecording()
	case input.KindToggleRecord:
		c.flush()
		if c.sess.Mode() == session.Recording {
			c.stopRecording()
		} else {
			c.startRecording()
		}
	case input.KindPlay:
		c.flush()
		if err := c.Play(ctx); err != nil {
			c.logPlayError(err)
		}
	case input.KindHome:
		c.flush()
		c.dirty = c.home(ctx)
	case input.KindSetHome:
		c.flush()
		pose := c.sess.SetHome()
		c.log.Info().Interface("pose", pose).Msg("home position set")
	case input.KindHelp:
		c.toggleHelp()
	case input.KindExit:
		c.exit = true
	default:
		c.log.Warn().Stringer("intent", intent).Msg("unhandled intent")
	}
}

func (c *Controller) move(ctx context.Context, moves []input.Move) bool {
	switch c.sess.Mode() {
	case session.Playing:
		return false
	case session.Idle, session.Recording:
	}

	changed := false
	for _, m := range moves {
		j, ok := c.sess.Joint(m.Joint)
		if !ok {
			continue
		}
		moved, err := c.send(ctx, j, m.Dir, false)
		if err != nil {
			c.log.Warn().Err(err).Str("joint", string(j.ID())).Msg("command dropped")
			continue
		}
		changed = changed || moved
	}
	return changed
}

// send issues a relative step or an absolute position and records metrics.
func (c *Controller) send(ctx context.Context, j *robot.Joint, v int, absolute bool) (bool, error) {
	var (
		changed bool
		err     error
	)
	if absolute {
		changed, err = j.ProposeAbsolute(ctx, v)
	} else {
		changed, err = j.Propose(ctx, v)
		if err == nil && !changed {
			return false, nil
		}
	}
	metrics.RecordCommand(string(j.ID()), j.Position(), err)
	if err != nil {
		c.lastErr = err
	}
	return changed, err
}

// flush captures pending moves, if any.
func (c *Controller) flush() {
	if c.dirty {
		c.capture()
		c.dirty = false
	}
}

func (c *Controller) capture() {
	if c.sess.Capture(c.cfg.Now()) {
		metrics.FramesCaptured.Inc()
	}
}

func (c *Controller) startRecording() {
	if err := c.sess.StartRecording(c.cfg.Now()); err != nil {
		c.log.Info().Err(err).Msg("cannot start recording")
		return
	}
	metrics.FramesCaptured.Inc()
	c.log.Info().Msg("recording started")
}

func (c *Controller) stopRecording() {
	rec, err := c.sess.StopRecording()
	if err != nil {
		c.log.Info().Err(err).Msg("cannot stop recording")
		return
	}
	c.log.Info().
		Int("frames", len(rec.Frames)).
		Dur("duration", rec.Duration()).
		Msg("recording stopped")

	if c.cfg.RecordingFile == "" {
		return
	}
	if err := recorder.Save(c.cfg.RecordingFile, rec); err != nil {
		c.log.Error().Err(err).Str("file", c.cfg.RecordingFile).Msg("save recording")
		return
	}
	c.log.Info().Str("file", c.cfg.RecordingFile).Str("id", rec.ID.String()).Msg("recording saved")
}

func (c *Controller) logPlayError(err error) {
	switch {
	case errors.Is(err, recorder.ErrNothingToPlay):
		c.log.Info().Msg("nothing to play")
	case errors.Is(err, session.ErrRecordingActive):
		c.log.Info().Msg("stop recording before playing")
	case errors.Is(err, session.ErrBusy):
		c.log.Info().Msg("playback already running")
	default:
		c.log.Error().Err(err).Msg("playback aborted")
	}
}

func (c *Controller) toggleHelp() {
	c.help = !c.help
	if !c.help {
		return
	}
	for _, b := range c.mapper.Bindings() {
		c.log.Info().Str("key", string(b.Key)).Stringer("intent", b.Intent).Msg("binding")
	}
}

// Exited reports whether an Exit command was received.
func (c *Controller) Exited() bool { return c.exit }

func (c *Controller) publish() {
	joints := c.sess.Joints()
	s := State{
		Joints:    make([]JointState, 0, len(joints)),
		Mode:      c.sess.Mode(),
		Frames:    c.sess.Recorder().Len(),
		Help:      c.help,
		Timestamp: c.cfg.Now(),
		Error:     c.lastErr,
	}
	for _, j := range joints {
		cfg := j.Config()
		s.Joints = append(s.Joints, JointState{ID: j.ID(), Position: j.Position(), Min: cfg.Min, Max: cfg.Max})
	}
	c.sendState(s)
}

func (c *Controller) sendState(s State) {
	select {
	case c.stateCh <- s:
	default:
		// Drop old state if channel full, replace with new
		select {
		case <-c.stateCh:
		default:
		}
		c.stateCh <- s
	}
}
