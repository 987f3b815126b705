package pid

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidInterval is returned by Validate when dt is not a positive number
	ErrInvalidInterval = errors.New("sampling interval must be positive")

	// ErrInvertedLimits is returned by Validate when out_min > out_max
	ErrInvertedLimits = errors.New("output limits are inverted")
)

// Validate checks the preconditions Step relies on but does not enforce.
// Step stays permissive; callers that want to reject bad input at the
// construction boundary call Validate once after configuring the controller.
func (c *Controller) Validate() error {
	if math.IsNaN(c.dt) || c.dt <= 0 {
		return fmt.Errorf("dt=%g: %w", c.dt, ErrInvalidInterval)
	}
	if c.outMin > c.outMax {
		return fmt.Errorf("min=%g max=%g: %w", c.outMin, c.outMax, ErrInvertedLimits)
	}
	return nil
}

// CheckGains returns advisory warnings about gain choices that are legal but
// usually unintended. An empty result means nothing looked suspicious.
func CheckGains(c *Controller) []string {
	var warnings []string

	if c.kp < 0 || c.ki < 0 || c.kd < 0 {
		warnings = append(warnings, "negative gains make the loop reverse-acting")
	}

	if c.dt <= 0 {
		// Nothing below is meaningful without a usable interval
		return warnings
	}

	span := c.outMax - c.outMin

	// A unit setpoint step on a fresh controller contributes kd/dt through
	// the derivative term alone
	if c.kd != 0 && span > 0 && math.Abs(c.kd/c.dt) >= span {
		warnings = append(warnings, fmt.Sprintf(
			"derivative kick kd/dt=%.3g saturates the output span %.3g on a unit step",
			math.Abs(c.kd/c.dt), span))
	}

	// With the default limits the integral clamp never engages
	if c.ki != 0 && c.outMax >= DefaultOutputLimit && c.outMin <= -DefaultOutputLimit {
		warnings = append(warnings, "output limits are unset, integral anti-windup is effectively disabled")
	}

	return warnings
}
