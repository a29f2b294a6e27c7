package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/gwillem/armctl/pkg/input"
	"github.com/gwillem/armctl/pkg/logging"
	"github.com/gwillem/armctl/pkg/recorder"
	"github.com/gwillem/armctl/pkg/robot"
	"github.com/gwillem/armctl/pkg/teleop"
)

type PlayCommand struct {
	Port      string `short:"p" long:"port" description:"Serial port (overrides config)"`
	Transport string `short:"t" long:"transport" choice:"firmata" choice:"feetech" choice:"sim" description:"Transport driver"`
	Times     int    `short:"n" long:"times" default:"1" description:"Number of replays"`

	Args struct {
		File string `positional-arg-name:"file" required:"yes"`
	} `positional-args:"yes"`
}

func (c *PlayCommand) Execute(args []string) error {
	cfg, err := loadConfig(func(cfg *robot.Config) {
		if c.Port != "" {
			cfg.Port = c.Port
		}
		if c.Transport != "" {
			cfg.Transport = c.Transport
			cfg.BaudRate = 0
		}
		// Replays never write back.
		cfg.RecordingFile = ""
		cfg.LoadRecording = false
	})
	if err != nil {
		return err
	}

	rec, err := recorder.Load(c.Args.File)
	if err != nil {
		return err
	}

	log := logging.New(logging.Config{Level: cfg.LogLevel, Console: true})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// No keys: playback only stops on a signal.
	ctrl, err := newController(ctx, cfg, input.NewChanSource(1), log)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	if err := ctrl.Session().LoadRecording(rec); err != nil {
		return err
	}
	log.Info().Str("file", c.Args.File).Str("id", rec.ID.String()).Int("frames", len(rec.Frames)).Msg("recording loaded")

	return replay(ctx, ctrl, c.Times, log)
}

// replay plays the loaded recording times times. An empty recording is
// logged and is not an error.
func replay(ctx context.Context, ctrl *teleop.Controller, times int, log zerolog.Logger) error {
	for i := range max(times, 1) {
		err := ctrl.Play(ctx)
		if errors.Is(err, recorder.ErrNothingToPlay) {
			log.Info().Msg("nothing to play")
			return nil
		}
		if err != nil {
			return fmt.Errorf("replay %d: %w", i+1, err)
		}
		if ctx.Err() != nil || ctrl.Exited() {
			break
		}
	}
	return nil
}
