package transport

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePort answers the version query after a configurable number of
// queries and records everything written after the handshake.
type fakePort struct {
	answerAfter int
	queries     int
	pending     []byte
	written     bytes.Buffer
	drains      int
	writeErr    error
	closed      bool
}

func (p *fakePort) Read(b []byte) (int, error) {
	if len(p.pending) == 0 {
		return 0, nil // read timeout
	}
	n := copy(b, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

func (p *fakePort) Write(b []byte) (int, error) {
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	if len(b) == 1 && b[0] == fmReportVersion {
		p.queries++
		if p.answerAfter >= 0 && p.queries > p.answerAfter {
			// Firmware name noise followed by the version reply.
			p.pending = append(p.pending, 0x00, 0x7F, fmReportVersion, 2, 5)
		}
		return 1, nil
	}
	return p.written.Write(b)
}

func (p *fakePort) Drain() error                       { p.drains++; return nil }
func (p *fakePort) SetReadTimeout(time.Duration) error { return nil }
func (p *fakePort) Close() error                       { p.closed = true; return nil }

func TestEncodeServoWrite(t *testing.T) {
	tests := []struct {
		name  string
		pin   int
		value int
		want  []byte
	}{
		{"low pin", 3, 90, []byte{0xE3, 90, 0}},
		{"pin 10 max angle", 10, 180, []byte{0xEA, 0x34, 0x01}},
		{"zero", 9, 0, []byte{0xE9, 0, 0}},
		{"extended pin", 20, 180, []byte{0xF0, 0x6F, 20, 0x34, 0x01, 0xF7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, encodeServoWrite(tt.pin, tt.value))
		})
	}
}

func TestEncodeServoSetup(t *testing.T) {
	want := []byte{
		0xF4, 11, 0x04, // SET_PIN_MODE servo
		0xF0, 0x70, 11, // SERVO_CONFIG
		0x20, 0x04, // 544
		0x60, 0x12, // 2400
		0xF7,
	}
	assert.Equal(t, want, encodeServoSetup(11))
}

func TestFindVersion(t *testing.T) {
	major, minor, ok := findVersion([]byte{0x01, fmReportVersion, 2, 5})
	require.True(t, ok)
	assert.Equal(t, 2, major)
	assert.Equal(t, 5, minor)

	_, _, ok = findVersion([]byte{fmReportVersion, 2})
	assert.False(t, ok, "truncated reply")

	_, _, ok = findVersion([]byte{fmReportVersion, 0x90, 0x01})
	assert.False(t, ok, "data bytes must be 7-bit")
}

func TestFirmataHandshake(t *testing.T) {
	p := &fakePort{answerAfter: 0}
	f := newFirmata(p, Config{Logger: zerolog.Nop()})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	major, minor, err := f.handshake(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, major)
	assert.Equal(t, 5, minor)
}

func TestFirmataHandshakeTimeout(t *testing.T) {
	p := &fakePort{answerAfter: -1}
	f := newFirmata(p, Config{Logger: zerolog.Nop()})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, _, err := f.handshake(ctx)
	assert.ErrorIs(t, err, ErrHandshakeTimeout)
}

func TestOpenFirmata(t *testing.T) {
	p := &fakePort{answerAfter: 0}
	restore := openSerial
	openSerial = func(string, int) (serialPort, error) { return p, nil }
	t.Cleanup(func() { openSerial = restore })

	tr, err := Open(context.Background(), Config{
		Driver:   DriverFirmata,
		Port:     "/dev/ttyACM0",
		BaudRate: 57600,
		Channels: []Channel{{Pin: 10}, {Pin: 9}},
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)

	want := append(encodeServoSetup(10), encodeServoSetup(9)...)
	assert.Equal(t, want, p.written.Bytes())

	require.NoError(t, tr.Close())
	assert.True(t, p.closed)
}

func TestOpenFirmataPortUnavailable(t *testing.T) {
	restore := openSerial
	openSerial = func(string, int) (serialPort, error) { return nil, errors.New("no such file") }
	t.Cleanup(func() { openSerial = restore })

	_, err := Open(context.Background(), Config{Driver: DriverFirmata, Port: "/dev/missing"})

	var ce *ConnectionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "/dev/missing", ce.Port)
}

func TestFirmataSend(t *testing.T) {
	p := &fakePort{}
	f := newFirmata(p, Config{Logger: zerolog.Nop()})

	require.NoError(t, f.Send(context.Background(), 6, 100))
	require.NoError(t, f.Send(context.Background(), 5, 75))

	want := append(encodeServoWrite(6, 100), encodeServoWrite(5, 75)...)
	assert.Equal(t, want, p.written.Bytes(), "commands are written in issue order")
	assert.Equal(t, 2, p.drains, "every command waits for the UART to drain")
}

func TestFirmataSendErrors(t *testing.T) {
	p := &fakePort{writeErr: errors.New("device unplugged")}
	f := newFirmata(p, Config{Logger: zerolog.Nop()})

	err := f.Send(context.Background(), 6, 100)
	var te *Error
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 6, te.Pin)
	assert.Equal(t, 100, te.Position)

	require.NoError(t, f.Close())
	err = f.Send(context.Background(), 6, 100)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestFirmataRateLimit(t *testing.T) {
	p := &fakePort{}
	f := newFirmata(p, Config{MaxCommandRate: 1, Logger: zerolog.Nop()})

	require.NoError(t, f.Send(context.Background(), 3, 10))

	// The burst is spent, the next command would wait a full second.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := f.Send(ctx, 3, 20)
	require.Error(t, err)
	assert.Equal(t, encodeServoWrite(3, 10), p.written.Bytes())
}
