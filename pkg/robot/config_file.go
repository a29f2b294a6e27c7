package robot

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// fileConfig mirrors Config but uses strings for durations to keep the
// file formats friendly.
type fileConfig struct {
	Port           string  `toml:"port,omitempty" yaml:"port,omitempty" json:"port,omitempty"`
	Transport      string  `toml:"transport,omitempty" yaml:"transport,omitempty" json:"transport,omitempty"`
	BaudRate       int     `toml:"baud_rate,omitempty" yaml:"baud_rate,omitempty" json:"baud_rate,omitempty"`
	ConnectTimeout string  `toml:"connect_timeout,omitempty" yaml:"connect_timeout,omitempty" json:"connect_timeout,omitempty"`
	MaxCommandRate float64 `toml:"max_command_rate,omitempty" yaml:"max_command_rate,omitempty" json:"max_command_rate,omitempty"`
	ReleaseTorque  *bool   `toml:"release_torque,omitempty" yaml:"release_torque,omitempty" json:"release_torque,omitempty"`

	TickRate          int    `toml:"tick_rate,omitempty" yaml:"tick_rate,omitempty" json:"tick_rate,omitempty"`
	Input             string `toml:"input,omitempty" yaml:"input,omitempty" json:"input,omitempty"`
	PlaybackTolerance string `toml:"playback_tolerance,omitempty" yaml:"playback_tolerance,omitempty" json:"playback_tolerance,omitempty"`
	StartupDelay      string `toml:"startup_delay,omitempty" yaml:"startup_delay,omitempty" json:"startup_delay,omitempty"`
	HomeStep          int    `toml:"home_step,omitempty" yaml:"home_step,omitempty" json:"home_step,omitempty"`
	HomeInterval      string `toml:"home_interval,omitempty" yaml:"home_interval,omitempty" json:"home_interval,omitempty"`

	RecordingFile string `toml:"recording_file,omitempty" yaml:"recording_file,omitempty" json:"recording_file,omitempty"`
	LoadRecording *bool  `toml:"load_recording,omitempty" yaml:"load_recording,omitempty" json:"load_recording,omitempty"`

	LogLevel    string `toml:"log_level,omitempty" yaml:"log_level,omitempty" json:"log_level,omitempty"`
	MetricsAddr string `toml:"metrics_addr,omitempty" yaml:"metrics_addr,omitempty" json:"metrics_addr,omitempty"`

	Joints []JointConfig `toml:"joints,omitempty" yaml:"joints,omitempty" json:"joints,omitempty"`
	Keys   []KeyBinding  `toml:"keys,omitempty" yaml:"keys,omitempty" json:"keys,omitempty"`
}

func decodeFileConfig(path string, data []byte) (fileConfig, error) {
	var fc fileConfig
	var err error
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		err = toml.Unmarshal(data, &fc)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	case ".json":
		err = json.Unmarshal(data, &fc)
	default:
		err = fmt.Errorf("unsupported config format %q", ext)
	}
	return fc, err
}

func encodeFileConfig(path string, fc fileConfig) ([]byte, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		return toml.Marshal(fc)
	case ".yaml", ".yml":
		return yaml.Marshal(fc)
	case ".json":
		return json.MarshalIndent(fc, "", "  ")
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}
}

// applyFileConfig copies every value set in the file over cfg.
func applyFileConfig(cfg *Config, fc fileConfig) error {
	var s configSetter

	s.setString(fc.Port, &cfg.Port)
	s.setString(fc.Transport, &cfg.Transport)
	s.setString(fc.Input, &cfg.Input)
	s.setString(fc.RecordingFile, &cfg.RecordingFile)
	s.setString(fc.LogLevel, &cfg.LogLevel)
	s.setString(fc.MetricsAddr, &cfg.MetricsAddr)

	s.setInt(fc.BaudRate, &cfg.BaudRate)
	s.setInt(fc.TickRate, &cfg.TickRate)
	s.setInt(fc.HomeStep, &cfg.HomeStep)
	s.setFloat(fc.MaxCommandRate, &cfg.MaxCommandRate)

	s.setBool(fc.ReleaseTorque, &cfg.ReleaseTorque)
	s.setBool(fc.LoadRecording, &cfg.LoadRecording)

	if err := s.setDuration("connect_timeout", fc.ConnectTimeout, &cfg.ConnectTimeout); err != nil {
		return err
	}
	if err := s.setDuration("playback_tolerance", fc.PlaybackTolerance, &cfg.PlaybackTolerance); err != nil {
		return err
	}
	if err := s.setDuration("startup_delay", fc.StartupDelay, &cfg.StartupDelay); err != nil {
		return err
	}
	if err := s.setDuration("home_interval", fc.HomeInterval, &cfg.HomeInterval); err != nil {
		return err
	}

	if len(fc.Joints) > 0 {
		cfg.Joints = fc.Joints
	}
	if len(fc.Keys) > 0 {
		cfg.Keys = fc.Keys
	}
	return nil
}

func toFileConfig(c *Config) fileConfig {
	dur := func(d time.Duration) string {
		if d == 0 {
			return ""
		}
		return d.String()
	}
	return fileConfig{
		Port:              c.Port,
		Transport:         c.Transport,
		BaudRate:          c.BaudRate,
		ConnectTimeout:    dur(c.ConnectTimeout),
		MaxCommandRate:    c.MaxCommandRate,
		ReleaseTorque:     &c.ReleaseTorque,
		TickRate:          c.TickRate,
		Input:             c.Input,
		PlaybackTolerance: dur(c.PlaybackTolerance),
		StartupDelay:      dur(c.StartupDelay),
		HomeStep:          c.HomeStep,
		HomeInterval:      dur(c.HomeInterval),
		RecordingFile:     c.RecordingFile,
		LoadRecording:     &c.LoadRecording,
		LogLevel:          c.LogLevel,
		MetricsAddr:       c.MetricsAddr,
		Joints:            c.Joints,
		Keys:              c.Keys,
	}
}

// configSetter applies non-zero values over existing configuration.
type configSetter struct{}

func (configSetter) setString(value string, dst *string) {
	if value == "" {
		return
	}
	*dst = value
}

func (configSetter) setInt(value int, dst *int) {
	if value <= 0 {
		return
	}
	*dst = value
}

func (configSetter) setFloat(value float64, dst *float64) {
	if value <= 0 {
		return
	}
	*dst = value
}

func (configSetter) setBool(value *bool, dst *bool) {
	if value == nil {
		return
	}
	*dst = *value
}

func (configSetter) setDuration(name, value string, dst *time.Duration) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, name, err)
	}
	*dst = d
	return nil
}

// setIntFromString parses environment values that arrive as strings.
func (s configSetter) setIntFromString(name, value string, dst *int) error {
	if value == "" {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, name, err)
	}
	s.setInt(i, dst)
	return nil
}

func (s configSetter) setFloatFromString(name, value string, dst *float64) error {
	if value == "" {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, name, err)
	}
	s.setFloat(f, dst)
	return nil
}

// setBoolFromString accepts "true" and "1" as true, anything else as false.
func (configSetter) setBoolFromString(value string, dst *bool) {
	if value == "" {
		return
	}
	*dst = value == "true" || value == "1"
}
