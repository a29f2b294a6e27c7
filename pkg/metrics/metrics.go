// Package metrics exposes Prometheus metrics for the control loop.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Command results.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Playback outcomes.
const (
	PlaybackCompleted   = "completed"
	PlaybackAborted     = "aborted"
	PlaybackInterrupted = "interrupted"
)

var (
	// CommandsTotal counts position commands sent to the transport.
	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "armctl_commands_total",
		Help: "Position commands sent to the transport by joint and result",
	}, []string{"joint", "result"})

	// FramesCaptured counts recorded frames.
	FramesCaptured = promauto.NewCounter(prometheus.CounterOpts{
		Name: "armctl_frames_captured_total",
		Help: "Frames captured while recording",
	})

	// PlaybacksTotal counts playbacks by outcome.
	PlaybacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "armctl_playbacks_total",
		Help: "Recording playbacks by outcome",
	}, []string{"outcome"})

	// TickDuration tracks the time spent handling one control loop tick.
	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "armctl_tick_duration_seconds",
		Help:    "Time spent processing one control loop tick",
		Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
	})

	// JointPosition is the last confirmed position per joint.
	JointPosition = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "armctl_joint_position",
		Help: "Last position confirmed by the transport",
	}, []string{"joint"})
)

// RecordCommand counts one command and updates the joint gauge on success.
func RecordCommand(joint string, position int, err error) {
	if err != nil {
		CommandsTotal.WithLabelValues(joint, ResultError).Inc()
		return
	}
	CommandsTotal.WithLabelValues(joint, ResultOK).Inc()
	JointPosition.WithLabelValues(joint).Set(float64(position))
}

// RecordPlayback counts a finished playback.
func RecordPlayback(outcome string) {
	PlaybacksTotal.WithLabelValues(outcome).Inc()
}

// ObserveTick records the duration of one tick.
func ObserveTick(d time.Duration) {
	TickDuration.Observe(d.Seconds())
}
