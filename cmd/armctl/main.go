package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/gwillem/armctl/pkg/robot"
	"github.com/gwillem/armctl/pkg/transport"
)

type Options struct {
	Config string `short:"c" long:"config" default:"armctl.toml" description:"Config file (.toml, .yaml or .json)"`

	Run   RunCommand   `command:"run" alias:"teleop" description:"Connect to the arm and start keyboard teleoperation"`
	Play  PlayCommand  `command:"play" description:"Replay a saved recording without keyboard control"`
	Setup SetupCommand `command:"setup" description:"Select port and transport, write the config file"`
	Ports PortsCommand `command:"ports" description:"List serial ports"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	parser.LongDescription = "armctl - keyboard teleoperation and motion recording for servo arms"

	_, err := parser.Parse()
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		var connErr *transport.ConnectionError
		if errors.As(err, &connErr) {
			fmt.Fprintf(os.Stderr, "Check the cable and port, or run 'armctl setup'.\n")
		}
		os.Exit(1)
	}
}

// loadConfig reads the config file (if present), applies ARMCTL_* env
// overrides, then the command line overrides, and validates the result.
func loadConfig(override func(*robot.Config)) (*robot.Config, error) {
	cfg := robot.DefaultConfig()
	if robot.ConfigExists(opts.Config) {
		loaded, err := robot.LoadConfigFrom(opts.Config)
		if err != nil {
			return nil, err
		}
		cfg = *loaded
	} else if opts.Config != robot.DefaultConfigFile {
		return nil, fmt.Errorf("config file %s not found", opts.Config)
	}

	if err := robot.ApplyEnvConfig(&cfg); err != nil {
		return nil, err
	}
	if override != nil {
		override(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
