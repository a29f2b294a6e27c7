package transport

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"go.bug.st/serial"
	"golang.org/x/time/rate"
)

// Firmata protocol bytes used to drive servos on a StandardFirmata board.
const (
	fmAnalogMessage  = 0xE0
	fmReportVersion  = 0xF9
	fmSetPinMode     = 0xF4
	fmStartSysex     = 0xF0
	fmEndSysex       = 0xF7
	fmServoConfig    = 0x70
	fmExtendedAnalog = 0x6F

	fmPinModeServo = 0x04

	// Pulse widths matching the Arduino Servo library defaults.
	servoMinPulse = 544
	servoMaxPulse = 2400
)

const (
	handshakeQueryEvery = 500 * time.Millisecond
	handshakeReadSlice  = 100 * time.Millisecond
)

// serialPort is the subset of serial.Port the Firmata driver uses.
type serialPort interface {
	io.ReadWriteCloser
	Drain() error
	SetReadTimeout(t time.Duration) error
}

var openSerial = func(port string, baud int) (serialPort, error) {
	return serial.Open(port, &serial.Mode{BaudRate: baud})
}

// Firmata drives hobby servos through a board running StandardFirmata.
type Firmata struct {
	port    serialPort
	limiter *rate.Limiter
	log     zerolog.Logger
	closed  bool
}

func openFirmata(ctx context.Context, cfg Config) (*Firmata, error) {
	p, err := openSerial(cfg.Port, cfg.BaudRate)
	if err != nil {
		return nil, fmt.Errorf("open serial: %w", err)
	}

	f := newFirmata(p, cfg)

	hctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	major, minor, err := f.handshake(hctx)
	if err != nil {
		p.Close()
		return nil, err
	}
	f.log.Info().Str("port", cfg.Port).Int("major", major).Int("minor", minor).Msg("firmata bridge connected")

	for _, ch := range cfg.Channels {
		if err := f.write(encodeServoSetup(ch.Pin)); err != nil {
			p.Close()
			return nil, fmt.Errorf("configure pin %d: %w", ch.Pin, err)
		}
	}
	return f, nil
}

func newFirmata(p serialPort, cfg Config) *Firmata {
	f := &Firmata{port: p, log: cfg.Logger}
	if cfg.MaxCommandRate > 0 {
		f.limiter = rate.NewLimiter(rate.Limit(cfg.MaxCommandRate), 1)
	}
	return f
}

// handshake queries the firmware version until the board answers. Boards
// that reset on open need a moment before they listen, so the query is
// repeated.
func (f *Firmata) handshake(ctx context.Context) (int, int, error) {
	if err := f.port.SetReadTimeout(handshakeReadSlice); err != nil {
		return 0, 0, fmt.Errorf("set read timeout: %w", err)
	}

	var seen []byte
	buf := make([]byte, 64)
	var lastQuery time.Time
	for {
		if ctx.Err() != nil {
			return 0, 0, ErrHandshakeTimeout
		}
		if time.Since(lastQuery) >= handshakeQueryEvery {
			if _, err := f.port.Write([]byte{fmReportVersion}); err != nil {
				return 0, 0, fmt.Errorf("query version: %w", err)
			}
			lastQuery = time.Now()
		}

		n, err := f.port.Read(buf)
		if err != nil {
			return 0, 0, fmt.Errorf("read version: %w", err)
		}
		seen = append(seen, buf[:n]...)
		if major, minor, ok := findVersion(seen); ok {
			return major, minor, nil
		}
		if len(seen) > 256 {
			seen = seen[len(seen)-2:]
		}
	}
}

// Send writes one servo position and waits until it left the UART.
func (f *Firmata) Send(ctx context.Context, pin, position int) error {
	if f.closed {
		return &Error{Pin: pin, Position: position, Err: ErrClosed}
	}
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return &Error{Pin: pin, Position: position, Err: err}
		}
	} else if err := ctx.Err(); err != nil {
		return &Error{Pin: pin, Position: position, Err: err}
	}

	if err := f.write(encodeServoWrite(pin, position)); err != nil {
		return &Error{Pin: pin, Position: position, Err: err}
	}
	return nil
}

func (f *Firmata) write(msg []byte) error {
	n, err := f.port.Write(msg)
	if err != nil {
		return err
	}
	if n != len(msg) {
		return io.ErrShortWrite
	}
	return f.port.Drain()
}

// Close releases the serial port.
func (f *Firmata) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	return f.port.Close()
}

// findVersion looks for a REPORT_VERSION reply in buf.
func findVersion(buf []byte) (int, int, bool) {
	for i := 0; i+2 < len(buf); i++ {
		if buf[i] == fmReportVersion && buf[i+1] < 0x80 && buf[i+2] < 0x80 {
			return int(buf[i+1]), int(buf[i+2]), true
		}
	}
	return 0, 0, false
}

// encodeServoSetup switches pin to servo mode and attaches it with the
// default pulse range.
func encodeServoSetup(pin int) []byte {
	msg := []byte{fmSetPinMode, byte(pin), fmPinModeServo}
	msg = append(msg, fmStartSysex, fmServoConfig, byte(pin))
	msg = append(msg, sevenBit(servoMinPulse)...)
	msg = append(msg, sevenBit(servoMaxPulse)...)
	return append(msg, fmEndSysex)
}

// encodeServoWrite encodes a servo angle. Pins above 15 do not fit in an
// analog message and use the extended analog sysex.
func encodeServoWrite(pin, value int) []byte {
	if pin < 16 {
		return append([]byte{fmAnalogMessage | byte(pin)}, sevenBit(value)...)
	}
	msg := []byte{fmStartSysex, fmExtendedAnalog, byte(pin)}
	msg = append(msg, sevenBit(value)...)
	return append(msg, fmEndSysex)
}

func sevenBit(v int) []byte {
	return []byte{byte(v & 0x7F), byte((v >> 7) & 0x7F)}
}
