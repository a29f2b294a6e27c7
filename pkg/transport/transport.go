// Package transport sends joint position commands to actuator hardware.
//
// A Transport serializes exactly one command per Send call and returns once
// the bridge acknowledged it or the call failed. Nothing is retried; the
// caller decides what a failed command means.
package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Driver names.
const (
	DriverFirmata = "firmata"
	DriverFeetech = "feetech"
	DriverSim     = "sim"
)

// DefaultTimeout bounds the connection handshake.
const DefaultTimeout = 5 * time.Second

var (
	// ErrHandshakeTimeout is returned when the bridge does not answer in time.
	ErrHandshakeTimeout = errors.New("handshake timed out")

	// ErrClosed is returned by Send after Close.
	ErrClosed = errors.New("transport closed")
)

// Transport issues absolute position commands to the actuator on a pin.
type Transport interface {
	Send(ctx context.Context, pin, position int) error
	Close() error
}

// Channel describes one actuator the transport must prepare.
type Channel struct {
	Pin int
	Min int // joint units
	Max int
	// Raw servo range, used by bus servos. Zero means the full 12-bit range.
	RawMin int
	RawMax int
}

// Config holds connection settings.
type Config struct {
	Driver         string
	Port           string
	BaudRate       int
	Timeout        time.Duration
	MaxCommandRate float64 // commands per second, 0 disables limiting
	ReleaseTorque  bool
	Channels       []Channel
	Logger         zerolog.Logger
}

// Open connects to the bridge selected by cfg.Driver. Any failure is
// returned as a *ConnectionError.
func Open(ctx context.Context, cfg Config) (Transport, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	var (
		t   Transport
		err error
	)
	switch cfg.Driver {
	case DriverFirmata:
		t, err = openFirmata(ctx, cfg)
	case DriverFeetech:
		t, err = openFeetech(ctx, cfg)
	case DriverSim:
		t = NewSim(cfg.Logger)
	default:
		err = fmt.Errorf("unknown driver %q", cfg.Driver)
	}
	if err != nil {
		var ce *ConnectionError
		if errors.As(err, &ce) {
			return nil, err
		}
		return nil, &ConnectionError{Port: cfg.Port, Err: err}
	}
	return t, nil
}

// ConnectionError reports that the bridge could not be reached.
type ConnectionError struct {
	Port string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Port, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Error reports a failed position command.
type Error struct {
	Pin      int
	Position int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("send pin %d position %d: %v", e.Pin, e.Position, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
