package pid

// DefaultOutputLimit is the magnitude of the output range a controller
// starts with before SetOutputLimits is called.
const DefaultOutputLimit = 1e9

// Controller implements a fixed-interval discrete PID controller with
// integral anti-windup. A Controller is not safe for concurrent use; callers
// sharing one across goroutines must serialize access.
type Controller struct {
	// PID gains
	kp float64 // Proportional gain
	ki float64 // Integral gain
	kd float64 // Derivative gain

	// Sampling interval in seconds
	dt float64

	// Internal state
	integral  float64 // Accumulated error over time, clamped to the output range
	prevError float64 // Error from the previous step for derivative calculation

	// Output limits
	outMin float64
	outMax float64

	// Terms from the most recent step, for monitoring
	last Terms
}

// Terms contains the individual PID components of a single step
type Terms struct {
	Error  float64 `json:"error"`  // setpoint - measurement
	P      float64 `json:"p"`      // Proportional term
	I      float64 `json:"i"`      // Integral term
	D      float64 `json:"d"`      // Derivative term
	Raw    float64 `json:"raw"`    // P + I + D before clamping
	Output float64 `json:"output"` // Clamped output
}

// Saturated reports whether the output was clipped by the limits
func (t Terms) Saturated() bool {
	return t.Raw != t.Output
}

// NewController creates a PID controller with the given gains and sampling
// interval. dt is used as a divisor on every step and must be nonzero; it is
// not checked here, see Validate.
func NewController(kp, ki, kd, dt float64) *Controller {
	c := &Controller{}
	c.Init(kp, ki, kd, dt)
	return c
}

// Init re-initializes the controller: gains and dt are replaced, the
// accumulated state is cleared and the output limits return to the default
// wide-open range.
func (c *Controller) Init(kp, ki, kd, dt float64) {
	c.kp = kp
	c.ki = ki
	c.kd = kd
	c.dt = dt

	c.integral = 0
	c.prevError = 0
	c.last = Terms{}

	c.outMin = -DefaultOutputLimit
	c.outMax = DefaultOutputLimit
}

// SetOutputLimits updates the output limits. The stored integral is not
// re-clamped until the next Step.
func (c *Controller) SetOutputLimits(min, max float64) {
	c.outMin = min
	c.outMax = max
}

// Reset clears the integral and derivative history. Gains, dt and limits
// are kept.
func (c *Controller) Reset() {
	c.integral = 0
	c.prevError = 0
	c.last = Terms{}
}

// Step advances the controller by one sampling interval and returns the
// control output, clamped to the output limits.
func (c *Controller) Step(setpoint, measurement float64) float64 {
	// Calculate error
	err := setpoint - measurement

	// Proportional term
	proportional := c.kp * err

	// Integral term with anti-windup: the accumulator shares the output range
	c.integral = clamp(c.integral+err*c.dt, c.outMin, c.outMax)
	integral := c.ki * c.integral

	// Derivative term, backward difference
	derivative := c.kd * (err - c.prevError) / c.dt

	c.prevError = err

	raw := proportional + integral + derivative
	output := clamp(raw, c.outMin, c.outMax)

	c.last = Terms{
		Error:  err,
		P:      proportional,
		I:      integral,
		D:      derivative,
		Raw:    raw,
		Output: output,
	}

	return output
}

// LastTerms returns the PID components computed by the most recent Step.
// It is the zero value on a fresh or reset controller.
func (c *Controller) LastTerms() Terms {
	return c.last
}

// Gains returns the proportional, integral and derivative gains
func (c *Controller) Gains() (kp, ki, kd float64) {
	return c.kp, c.ki, c.kd
}

// Dt returns the sampling interval in seconds
func (c *Controller) Dt() float64 {
	return c.dt
}

// OutputLimits returns the current output range
func (c *Controller) OutputLimits() (min, max float64) {
	return c.outMin, c.outMax
}

// Integral returns the accumulated error (before the Ki gain is applied)
func (c *Controller) Integral() float64 {
	return c.integral
}

// PrevError returns the error observed on the previous step
func (c *Controller) PrevError() float64 {
	return c.prevError
}

// GetState returns the current controller state for debugging
func (c *Controller) GetState() map[string]float64 {
	return map[string]float64{
		"kp":         c.kp,
		"ki":         c.ki,
		"kd":         c.kd,
		"dt":         c.dt,
		"integral":   c.integral,
		"prev_error": c.prevError,
		"out_min":    c.outMin,
		"out_max":    c.outMax,
	}
}

// clamp limits value to [min, max]. The upper bound is tested first, so an
// inverted range yields min. NaN is returned unchanged.
func clamp(value, min, max float64) float64 {
	if value > max {
		value = max
	}
	if value < min {
		value = min
	}
	return value
}
