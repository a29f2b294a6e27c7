package transport

import (
	"context"

	"github.com/rs/zerolog"
)

// Sim accepts every command without hardware attached.
type Sim struct {
	log    zerolog.Logger
	sent   int
	closed bool
}

// NewSim creates a simulated transport that logs commands at debug level.
func NewSim(log zerolog.Logger) *Sim {
	return &Sim{log: log}
}

// Send records the command.
func (s *Sim) Send(ctx context.Context, pin, position int) error {
	if s.closed {
		return &Error{Pin: pin, Position: position, Err: ErrClosed}
	}
	if err := ctx.Err(); err != nil {
		return &Error{Pin: pin, Position: position, Err: err}
	}
	s.sent++
	s.log.Debug().Int("pin", pin).Int("position", position).Msg("sim send")
	return nil
}

// Sent returns the number of accepted commands.
func (s *Sim) Sent() int { return s.sent }

// Close marks the transport closed.
func (s *Sim) Close() error {
	s.closed = true
	return nil
}
