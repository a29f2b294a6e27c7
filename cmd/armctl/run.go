package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/gwillem/armctl/pkg/input"
	"github.com/gwillem/armctl/pkg/logging"
	"github.com/gwillem/armctl/pkg/metrics"
	"github.com/gwillem/armctl/pkg/recorder"
	"github.com/gwillem/armctl/pkg/robot"
	"github.com/gwillem/armctl/pkg/session"
	"github.com/gwillem/armctl/pkg/teleop"
	"github.com/gwillem/armctl/pkg/transport"
)

type RunCommand struct {
	Port      string `short:"p" long:"port" description:"Serial port (overrides config)"`
	Transport string `short:"t" long:"transport" choice:"firmata" choice:"feetech" choice:"sim" description:"Transport driver"`
	Input     string `short:"i" long:"input" choice:"tui" choice:"stdin" description:"Key source"`
	Hz        int    `long:"hz" description:"Control loop frequency"`
	Record    string `short:"r" long:"record" description:"Save recordings to this file"`
	Load      bool   `short:"l" long:"load" description:"Load the recording file at startup"`
	Metrics   string `long:"metrics" description:"Serve Prometheus metrics on this address"`
	LogLevel  string `long:"log-level" description:"Log level (debug, info, warn, error)"`
}

func (c *RunCommand) override(cfg *robot.Config) {
	if c.Port != "" {
		cfg.Port = c.Port
	}
	if c.Transport != "" {
		cfg.Transport = c.Transport
		cfg.BaudRate = 0 // re-derived for the new transport
	}
	if c.Input != "" {
		cfg.Input = c.Input
	}
	if c.Hz > 0 {
		cfg.TickRate = c.Hz
	}
	if c.Record != "" {
		cfg.RecordingFile = c.Record
	}
	if c.Load {
		cfg.LoadRecording = true
	}
	if c.Metrics != "" {
		cfg.MetricsAddr = c.Metrics
	}
	if c.LogLevel != "" {
		cfg.LogLevel = c.LogLevel
	}
}

func (c *RunCommand) Execute(args []string) error {
	cfg, err := loadConfig(c.override)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Input == robot.InputStdin {
		log := logging.New(logging.Config{Level: cfg.LogLevel, Console: true})
		startMetrics(ctx, cfg, log)

		src := input.NewLineSource(ctx, os.Stdin)
		ctrl, err := newController(ctx, cfg, src, log)
		if err != nil {
			return err
		}
		return ignoreCanceled(ctrl.Run(ctx))
	}

	lines := logging.NewLineWriter(100)
	log := logging.New(logging.Config{Level: cfg.LogLevel, Output: lines, Console: true, NoColor: true})
	startMetrics(ctx, cfg, log)

	src := input.NewChanSource(64)
	ctrl, err := newController(ctx, cfg, src, log)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- ctrl.Run(ctx)
	}()

	model := newTUIModel(tuiConfig{
		src:      src,
		states:   ctrl.States(),
		logs:     lines.Lines(),
		done:     done,
		bindings: ctrl.Bindings(),
		hz:       ctrl.TickRate(),
		port:     cfg.Port,
	})
	final, err := tea.NewProgram(model, tea.WithAltScreen()).Run()
	if err != nil {
		cancel()
		<-done
		return fmt.Errorf("run TUI: %w", err)
	}

	// The TUI quits either after the controller finished or on its own.
	if m, ok := final.(tuiModel); ok && m.finished {
		return ignoreCanceled(m.runErr)
	}
	cancel()
	return ignoreCanceled(<-done)
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func startMetrics(ctx context.Context, cfg *robot.Config, log zerolog.Logger) {
	if cfg.MetricsAddr == "" {
		return
	}
	mlog := logging.WithComponent(log, "metrics")
	go func() {
		if err := metrics.Serve(ctx, cfg.MetricsAddr, mlog); err != nil {
			mlog.Error().Err(err).Msg("metrics server")
		}
	}()
}

func newMapper(cfg *robot.Config) (*input.Mapper, error) {
	return input.NewMapper(cfg.Keys, cfg.JointIDs())
}

func transportConfig(cfg *robot.Config, log zerolog.Logger) transport.Config {
	tc := transport.Config{
		Driver:         cfg.Transport,
		Port:           cfg.Port,
		BaudRate:       cfg.BaudRate,
		Timeout:        cfg.ConnectTimeout,
		MaxCommandRate: cfg.MaxCommandRate,
		ReleaseTorque:  cfg.ReleaseTorque,
		Logger:         logging.WithComponent(log, "transport"),
	}
	for _, j := range cfg.Joints {
		tc.Channels = append(tc.Channels, transport.Channel{
			Pin: j.Pin, Min: j.Min, Max: j.Max, RawMin: j.RawMin, RawMax: j.RawMax,
		})
	}
	return tc
}

// newController connects the transport and wires the session. The
// controller owns the transport from here on.
func newController(ctx context.Context, cfg *robot.Config, src input.Source, log zerolog.Logger) (*teleop.Controller, error) {
	mapper, err := newMapper(cfg)
	if err != nil {
		return nil, err
	}

	var rec *recorder.Recording
	if cfg.LoadRecording {
		rec, err = recorder.Load(cfg.RecordingFile)
		switch {
		case errors.Is(err, os.ErrNotExist):
			log.Info().Str("file", cfg.RecordingFile).Msg("no saved recording yet")
			rec = nil
		case err != nil:
			return nil, err
		}
	}

	tx, err := transport.Open(ctx, transportConfig(cfg, log))
	if err != nil {
		return nil, err
	}

	joints := make([]*robot.Joint, 0, len(cfg.Joints))
	for _, jc := range cfg.Joints {
		joints = append(joints, robot.NewJoint(jc, tx))
	}
	sess := session.New(joints)
	if rec != nil {
		if err := sess.LoadRecording(rec); err != nil {
			tx.Close()
			return nil, err
		}
		log.Info().Str("file", cfg.RecordingFile).Int("frames", len(rec.Frames)).Msg("recording loaded")
	}

	return teleop.NewController(tx, sess, mapper, src, teleop.Config{
		TickRate:          cfg.TickRate,
		PlaybackTolerance: cfg.PlaybackTolerance,
		StartupDelay:      cfg.StartupDelay,
		HomeStep:          cfg.HomeStep,
		HomeInterval:      cfg.HomeInterval,
		RecordingFile:     cfg.RecordingFile,
		Logger:            logging.WithComponent(log, "teleop"),
	}), nil
}
