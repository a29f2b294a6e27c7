// Package armctl provides keyboard teleoperation for servo-driven robot arms
// with up to seven joints, plus recording and paced replay of arm motion.
//
// # Installation
//
//	go install github.com/gwillem/armctl/cmd/armctl@latest
//
// # Usage
//
// First, pick the serial port and transport and write armctl.toml:
//
//	armctl setup
//
// Then drive the arm from the keyboard:
//
//	armctl run
//
// Press r to start recording, o to stop, p to replay, h to return home,
// ? for the key table and esc to quit. Recordings can be saved and replayed
// headless:
//
//	armctl run --record path.json
//	armctl play path.json
//
// # Packages
//
// The module is organized into the following packages:
//
//   - cmd/armctl: CLI with run, play, setup and ports commands
//   - pkg/robot: Joints, clamping, and configuration
//   - pkg/transport: Firmata, Feetech and simulated command transports
//   - pkg/input: Key sources and the key map
//   - pkg/recorder: Frame capture and recording files
//   - pkg/session: Session mode, home pose and recorder ownership
//   - pkg/teleop: Control loop, playback and homing
//   - pkg/metrics, pkg/logging: Prometheus metrics and zerolog setup
package armctl
