package transport

import (
	"context"
	"fmt"
	"slices"

	"github.com/hipsterbrown/feetech-servo/feetech"
	"github.com/rs/zerolog"
)

// Feetech drives STS bus servos. Joint pins are servo IDs.
type Feetech struct {
	bus     *feetech.Bus
	group   *feetech.ServoGroup
	servos  map[int]*feetech.ServoGroup
	cal     map[int]ServoCalibration
	release bool
	log     zerolog.Logger
	closed  bool
}

func openFeetech(ctx context.Context, cfg Config) (*Feetech, error) {
	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     cfg.Port,
		BaudRate: cfg.BaudRate,
		Protocol: feetech.ProtocolSTS,
		Timeout:  handshakeReadSlice,
	})
	if err != nil {
		return nil, fmt.Errorf("open bus: %w", err)
	}

	ids := make([]int, 0, len(cfg.Channels))
	for _, ch := range cfg.Channels {
		ids = append(ids, ch.Pin)
	}
	if len(ids) == 0 {
		bus.Close()
		return nil, fmt.Errorf("no servos configured")
	}

	// Scanning doubles as the handshake: every configured servo must answer.
	sctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	found, err := bus.Scan(sctx, slices.Min(ids), slices.Max(ids))
	if err != nil {
		bus.Close()
		if sctx.Err() != nil {
			return nil, ErrHandshakeTimeout
		}
		return nil, fmt.Errorf("scan bus: %w", err)
	}
	if missing := missingServos(ids, found); len(missing) > 0 {
		bus.Close()
		return nil, fmt.Errorf("servos %v did not respond", missing)
	}

	f := &Feetech{
		bus:     bus,
		group:   feetech.NewServoGroupByIDs(bus, ids...),
		servos:  make(map[int]*feetech.ServoGroup, len(ids)),
		cal:     make(map[int]ServoCalibration, len(ids)),
		release: cfg.ReleaseTorque,
		log:     cfg.Logger,
	}
	for _, ch := range cfg.Channels {
		f.servos[ch.Pin] = feetech.NewServoGroupByIDs(bus, ch.Pin)
		f.cal[ch.Pin] = newServoCalibration(ch)
	}

	if err := f.group.EnableAll(ctx); err != nil {
		bus.Close()
		return nil, fmt.Errorf("enable torque: %w", err)
	}
	f.log.Info().Str("port", cfg.Port).Ints("ids", ids).Msg("feetech bus connected")
	return f, nil
}

// Send writes one goal position to the servo with ID pin.
func (f *Feetech) Send(ctx context.Context, pin, position int) error {
	if f.closed {
		return &Error{Pin: pin, Position: position, Err: ErrClosed}
	}
	servo, ok := f.servos[pin]
	if !ok {
		return &Error{Pin: pin, Position: position, Err: fmt.Errorf("servo %d not configured", pin)}
	}
	raw := f.cal[pin].ToRaw(position)
	if err := servo.SetPositions(ctx, feetech.PositionMap{pin: raw}); err != nil {
		return &Error{Pin: pin, Position: position, Err: err}
	}
	return nil
}

// Close optionally releases torque and closes the bus.
func (f *Feetech) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	if f.release {
		if err := f.group.DisableAll(context.Background()); err != nil {
			f.log.Warn().Err(err).Msg("failed to release torque")
		} else {
			f.log.Info().Msg("torque released")
		}
	}
	return f.bus.Close()
}

func missingServos(ids []int, found []feetech.FoundServo) []int {
	seen := make(map[int]bool, len(found))
	for _, s := range found {
		seen[s.ID] = true
	}
	var missing []int
	for _, id := range ids {
		if !seen[id] {
			missing = append(missing, id)
		}
	}
	return missing
}
