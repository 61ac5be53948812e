package rover

import (
	"errors"
	"io"
)

// composite joins an Actuator and a separate RangeSensor into a Gateway.
type composite struct {
	Actuator
	RangeSensor
}

// Compose builds a Gateway from an actuator and a range sensor, for setups
// where the sensor has its own bus (e.g. FirmataGateway + SerialSonar).
// SetLED is forwarded when the actuator is an Indicator and is a no-op
// otherwise. Close closes both halves if they implement io.Closer.
func Compose(a Actuator, s RangeSensor) Gateway {
	return &composite{Actuator: a, RangeSensor: s}
}

func (c *composite) SetLED(r, g, b bool) error {
	if ind, ok := c.Actuator.(Indicator); ok {
		return ind.SetLED(r, g, b)
	}
	return nil
}

func (c *composite) Close() error {
	var errs []error
	if cl, ok := c.Actuator.(io.Closer); ok {
		errs = append(errs, cl.Close())
	}
	if cl, ok := c.RangeSensor.(io.Closer); ok {
		errs = append(errs, cl.Close())
	}
	return errors.Join(errs...)
}
