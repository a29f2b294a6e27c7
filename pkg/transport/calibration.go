package transport

// Full position range of an STS bus servo.
const (
	stsRawMin = 0
	stsRawMax = 4095
)

// ServoCalibration maps joint units onto the raw position range of a bus servo.
type ServoCalibration struct {
	ID     int
	Min    int
	Max    int
	RawMin int
	RawMax int
}

func newServoCalibration(ch Channel) ServoCalibration {
	c := ServoCalibration{
		ID:     ch.Pin,
		Min:    ch.Min,
		Max:    ch.Max,
		RawMin: ch.RawMin,
		RawMax: ch.RawMax,
	}
	if c.RawMin == 0 && c.RawMax == 0 {
		c.RawMin, c.RawMax = stsRawMin, stsRawMax
	}
	return c
}

// ToRaw converts a joint position to a raw servo position.
func (c ServoCalibration) ToRaw(pos int) int {
	span := c.Max - c.Min
	if span == 0 {
		return c.RawMin
	}
	rawSpan := c.RawMax - c.RawMin
	return c.RawMin + (pos-c.Min)*rawSpan/span
}

// FromRaw converts a raw servo position to joint units, rounding to nearest.
func (c ServoCalibration) FromRaw(raw int) int {
	rawSpan := c.RawMax - c.RawMin
	if rawSpan == 0 {
		return c.Min
	}
	span := c.Max - c.Min
	num := (raw - c.RawMin) * span
	if num >= 0 {
		num += rawSpan / 2
	} else {
		num -= rawSpan / 2
	}
	return c.Min + num/rawSpan
}
