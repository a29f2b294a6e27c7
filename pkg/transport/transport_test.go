package transport

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "can", Port: "can0"})

	var ce *ConnectionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "can0", ce.Port)
	assert.Contains(t, err.Error(), "unknown driver")
}

func TestOpenSim(t *testing.T) {
	tr, err := Open(context.Background(), Config{Driver: DriverSim, Logger: zerolog.Nop()})
	require.NoError(t, err)

	require.NoError(t, tr.Send(context.Background(), 3, 90))
	assert.Equal(t, 1, tr.(*Sim).Sent())

	require.NoError(t, tr.Close())
	assert.ErrorIs(t, tr.Send(context.Background(), 3, 90), ErrClosed)
}

func TestSimHonoursCancellation(t *testing.T) {
	s := NewSim(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Send(ctx, 1, 1)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, s.Sent())
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("broken pipe")
	err := error(&Error{Pin: 4, Position: 80, Err: cause})

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "send pin 4 position 80: broken pipe", err.Error())

	cerr := error(&ConnectionError{Port: "COM7", Err: ErrHandshakeTimeout})
	assert.ErrorIs(t, cerr, ErrHandshakeTimeout)
	assert.Equal(t, "connect COM7: handshake timed out", cerr.Error())
}
