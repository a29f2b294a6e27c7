package teleop

import (
	"context"
	"fmt"
	"time"

	"github.com/gwillem/armctl/pkg/input"
	"github.com/gwillem/armctl/pkg/metrics"
	"github.com/gwillem/armctl/pkg/robot"
	"github.com/gwillem/armctl/pkg/session"
)

// Play replays the sealed recording. Each frame is sent as a full pose;
// the wait before a frame is measured from the start of the previous one,
// so slow dispatch shortens the next wait but never accumulates.
//
// Playback stops early on Exit, ctx cancellation or the first transport
// error. Returns recorder.ErrNothingToPlay when there is nothing to replay.
func (c *Controller) Play(ctx context.Context) error {
	rec, err := c.sess.BeginPlayback()
	if err != nil {
		return err
	}
	defer c.sess.EndPlayback()

	c.log.Info().Int("frames", len(rec.Frames)).Dur("duration", rec.Duration()).Msg("playback started")
	c.publish()

	var prev time.Time
	for i, f := range rec.Frames {
		if i > 0 {
			gap := time.Duration(f.OffsetMS-rec.Frames[i-1].OffsetMS) * time.Millisecond
			if !c.wait(ctx, prev.Add(gap).Sub(c.cfg.Now())) {
				metrics.RecordPlayback(metrics.PlaybackInterrupted)
				c.log.Info().Int("frame", i).Msg("playback interrupted")
				return nil
			}
		}

		prev = c.cfg.Now()
		if err := c.applyPose(ctx, f.Positions); err != nil {
			metrics.RecordPlayback(metrics.PlaybackAborted)
			return fmt.Errorf("frame %d: %w", i, err)
		}
		c.publish()
	}

	metrics.RecordPlayback(metrics.PlaybackCompleted)
	c.log.Info().Msg("playback finished")
	return nil
}

// applyPose sends every joint's position in configured order.
func (c *Controller) applyPose(ctx context.Context, pose robot.Pose) error {
	for _, j := range c.sess.Joints() {
		pos, ok := pose[j.ID()]
		if !ok {
			continue
		}
		if _, err := c.send(ctx, j, pos, true); err != nil {
			return err
		}
	}
	return nil
}

// wait sleeps for d in tick-sized slices and reports false if playback
// must stop. Input is checked at least once even when d is not positive.
// A wait no longer than the playback tolerance is skipped; longer waits run
// to the deadline.
func (c *Controller) wait(ctx context.Context, d time.Duration) bool {
	if d <= c.cfg.PlaybackTolerance {
		return !c.interrupted(ctx)
	}
	deadline := c.cfg.Now().Add(d)
	for {
		if c.interrupted(ctx) {
			return false
		}
		remaining := deadline.Sub(c.cfg.Now())
		if remaining <= 0 {
			return true
		}
		if err := c.cfg.Sleep(ctx, min(remaining, c.interval)); err != nil {
			return false
		}
	}
}

// interrupted drains pending input while the session is busy. Only Exit and
// Help are honoured, everything else is dropped.
func (c *Controller) interrupted(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	for range c.cfg.MaxEventsPerTick {
		key, ok := c.src.Poll()
		if !ok {
			break
		}
		intent, ok := c.mapper.Map(key)
		if !ok {
			continue
		}
		switch intent.Kind {
		case input.KindExit:
			c.exit = true
		case input.KindHelp:
			c.toggleHelp()
		case input.KindMove, input.KindStartRecord, input.KindStopRecord, input.KindToggleRecord,
			input.KindPlay, input.KindHome, input.KindSetHome:
			c.log.Debug().Stringer("intent", intent).Stringer("mode", c.sess.Mode()).Msg("ignored while busy")
		}
	}
	return c.exit
}

// home returns every joint to the home pose. With HomeStep set the move is
// ramped, each step captured while recording, and the method reports false
// since nothing is left to capture.
func (c *Controller) home(ctx context.Context) bool {
	switch c.sess.Mode() {
	case session.Playing:
		return false
	case session.Idle, session.Recording:
	}

	home := c.sess.Home()
	if c.cfg.HomeStep <= 0 {
		changed := false
		for _, j := range c.sess.Joints() {
			moved, err := c.send(ctx, j, home[j.ID()], true)
			if err != nil {
				c.log.Warn().Err(err).Str("joint", string(j.ID())).Msg("home command dropped")
				continue
			}
			changed = changed || moved
		}
		c.log.Info().Msg("homed")
		return changed
	}

	failed := make(map[robot.JointID]bool)
	for {
		pending := false
		moved := false
		for _, j := range c.sess.Joints() {
			target, cur := home[j.ID()], j.Position()
			if failed[j.ID()] || cur == target {
				continue
			}
			step := min(max(target-cur, -c.cfg.HomeStep), c.cfg.HomeStep)
			ok, err := c.send(ctx, j, cur+step, true)
			if err != nil {
				c.log.Warn().Err(err).Str("joint", string(j.ID())).Msg("home command dropped")
				failed[j.ID()] = true
				continue
			}
			moved = moved || ok
			// Clamping can keep a joint from reaching an out of range home.
			if ok && j.Position() != target {
				pending = true
			}
		}
		if moved {
			c.capture()
			c.publish()
		}
		if !pending {
			break
		}
		if !c.wait(ctx, c.cfg.HomeInterval) {
			c.log.Info().Msg("homing interrupted")
			return false
		}
	}
	c.log.Info().Msg("homed")
	return false
}
