package robot

import "os"

// ApplyEnvConfig applies configuration from environment variables (ARMCTL_*).
// Returns an error if any variable has an invalid format.
func ApplyEnvConfig(cfg *Config) error {
	var s configSetter

	s.setString(os.Getenv("ARMCTL_PORT"), &cfg.Port)
	s.setString(os.Getenv("ARMCTL_TRANSPORT"), &cfg.Transport)
	s.setString(os.Getenv("ARMCTL_INPUT"), &cfg.Input)
	s.setString(os.Getenv("ARMCTL_RECORDING_FILE"), &cfg.RecordingFile)
	s.setString(os.Getenv("ARMCTL_LOG_LEVEL"), &cfg.LogLevel)
	s.setString(os.Getenv("ARMCTL_METRICS_ADDR"), &cfg.MetricsAddr)

	if err := s.setIntFromString("ARMCTL_BAUD_RATE", os.Getenv("ARMCTL_BAUD_RATE"), &cfg.BaudRate); err != nil {
		return err
	}
	if err := s.setIntFromString("ARMCTL_TICK_RATE", os.Getenv("ARMCTL_TICK_RATE"), &cfg.TickRate); err != nil {
		return err
	}
	if err := s.setFloatFromString("ARMCTL_MAX_COMMAND_RATE", os.Getenv("ARMCTL_MAX_COMMAND_RATE"), &cfg.MaxCommandRate); err != nil {
		return err
	}
	if err := s.setDuration("ARMCTL_CONNECT_TIMEOUT", os.Getenv("ARMCTL_CONNECT_TIMEOUT"), &cfg.ConnectTimeout); err != nil {
		return err
	}

	s.setBoolFromString(os.Getenv("ARMCTL_RELEASE_TORQUE"), &cfg.ReleaseTorque)
	s.setBoolFromString(os.Getenv("ARMCTL_LOAD_RECORDING"), &cfg.LoadRecording)

	return nil
}
