package pid

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewController_Defaults tests the state of a freshly initialized controller
func TestNewController_Defaults(t *testing.T) {
	// Act
	pid := NewController(5.0, 1.0, 0.1, 0.01)

	// Assert
	kp, ki, kd := pid.Gains()
	assert.Equal(t, 5.0, kp)
	assert.Equal(t, 1.0, ki)
	assert.Equal(t, 0.1, kd)
	assert.Equal(t, 0.01, pid.Dt())
	assert.Equal(t, 0.0, pid.Integral())
	assert.Equal(t, 0.0, pid.PrevError())

	min, max := pid.OutputLimits()
	assert.Equal(t, -DefaultOutputLimit, min)
	assert.Equal(t, DefaultOutputLimit, max)
	assert.Equal(t, Terms{}, pid.LastTerms())
}

// TestController_Step_RLCircuitFirstStep walks through the first step of the RL circuit demo
func TestController_Step_RLCircuitFirstStep(t *testing.T) {
	// Arrange
	pid := NewController(5.0, 1.0, 0.1, 0.01)
	pid.SetOutputLimits(0.0, 12.0)

	// Act
	output := pid.Step(1.0, 0.0)

	// Assert
	terms := pid.LastTerms()
	assert.Equal(t, 12.0, output)
	assert.InDelta(t, 1.0, terms.Error, 1e-12)
	assert.InDelta(t, 5.0, terms.P, 1e-12)
	assert.InDelta(t, 0.01, terms.I, 1e-12)
	assert.InDelta(t, 10.0, terms.D, 1e-9)
	assert.InDelta(t, 15.01, terms.Raw, 1e-9)
	assert.True(t, terms.Saturated())
	assert.InDelta(t, 0.01, pid.Integral(), 1e-12)
	assert.Equal(t, 1.0, pid.PrevError())
}

// TestController_Step_Basic tests an unsaturated step with all three terms active
func TestController_Step_Basic(t *testing.T) {
	// Arrange
	pid := NewController(2.0, 0.5, 0.1, 0.1)
	pid.SetOutputLimits(-100, 100)

	// Act
	output := pid.Step(10.0, 5.0)

	// Assert - P=10, I=0.5*0.5, D=0.1*5/0.1
	assert.InDelta(t, 10.0+0.25+5.0, output, 1e-9)
	assert.False(t, pid.LastTerms().Saturated())
}

// TestController_Step_Saturation tests clamping of the final output
func TestController_Step_Saturation(t *testing.T) {
	tests := []struct {
		name     string
		setpoint float64
		expected float64
	}{
		{name: "saturates at max", setpoint: 10.0, expected: 10.0},
		{name: "saturates at min", setpoint: -10.0, expected: -10.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			pid := NewController(100, 20, 10, 0.1)
			pid.SetOutputLimits(-10, 10)

			// Act
			output := pid.Step(tt.setpoint, 5.0)

			// Assert
			assert.Equal(t, tt.expected, output)
		})
	}
}

// TestController_Step_IntegralAccumulation tests Euler integration of the error
func TestController_Step_IntegralAccumulation(t *testing.T) {
	// Arrange
	pid := NewController(0, 1.0, 0, 0.5)
	pid.SetOutputLimits(-100, 100)

	// Act - error of 2.0 held for two steps
	pid.Step(10.0, 8.0)
	output := pid.Step(10.0, 8.0)

	// Assert
	assert.InDelta(t, 2.0, output, 1e-9)
	assert.InDelta(t, 2.0, pid.Integral(), 1e-9)
}

// TestController_Step_ProportionalOnly tests that with ki=kd=0 the output is kp*error, clamped
func TestController_Step_ProportionalOnly(t *testing.T) {
	tests := []struct {
		name        string
		kp          float64
		setpoint    float64
		measurement float64
		expected    float64
	}{
		{name: "positive error", kp: 2.0, setpoint: 3.0, measurement: 1.0, expected: 4.0},
		{name: "negative error", kp: 2.0, setpoint: 1.0, measurement: 3.5, expected: -5.0},
		{name: "clamped high", kp: 10.0, setpoint: 5.0, measurement: 0.0, expected: 20.0},
		{name: "clamped low", kp: 10.0, setpoint: 0.0, measurement: 5.0, expected: -20.0},
		{name: "zero error", kp: 7.0, setpoint: 2.0, measurement: 2.0, expected: 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			pid := NewController(tt.kp, 0, 0, 0.01)
			pid.SetOutputLimits(-20, 20)

			// Act - repeated calls must not drift since nothing else contributes
			for i := 0; i < 10; i++ {
				output := pid.Step(tt.setpoint, tt.measurement)

				// Assert
				assert.InDelta(t, tt.expected, output, 1e-9)
			}
		})
	}
}

// TestController_Step_ZeroErrorStable tests that a controller held at its setpoint outputs zero
func TestController_Step_ZeroErrorStable(t *testing.T) {
	// Arrange
	pid := NewController(5.0, 0.0, 2.0, 0.01)

	// Act & Assert
	for _, v := range []float64{0, 1.5, -3, 100} {
		assert.Equal(t, 0.0, pid.Step(v, v))
	}
	assert.Equal(t, 0.0, pid.Integral())
}

// TestController_Step_AntiWindup tests that the integral never leaves the output range
func TestController_Step_AntiWindup(t *testing.T) {
	// Arrange
	pid := NewController(0.0, 1.0, 0.0, 0.01)
	pid.SetOutputLimits(0.0, 12.0)

	// Act - error of 100 adds 1.0 per step
	for i := 0; i < 50; i++ {
		output := pid.Step(100.0, 0.0)

		// Assert
		assert.LessOrEqual(t, pid.Integral(), 12.0)
		assert.GreaterOrEqual(t, pid.Integral(), 0.0)
		assert.LessOrEqual(t, output, 12.0)
	}
	assert.Equal(t, 12.0, pid.Integral())

	// Recovery starts immediately once the error changes sign
	pid.Step(0.0, 1.0)
	assert.InDelta(t, 11.99, pid.Integral(), 1e-9)
}

// TestController_SetOutputLimits_ClampsIntegralOnNextStep tests that new limits apply lazily
func TestController_SetOutputLimits_ClampsIntegralOnNextStep(t *testing.T) {
	// Arrange
	pid := NewController(0.0, 1.0, 0.0, 1.0)
	pid.SetOutputLimits(-100, 100)
	pid.Step(50.0, 0.0)
	require.Equal(t, 50.0, pid.Integral())

	// Act
	pid.SetOutputLimits(-10, 10)

	// Assert - unchanged until the next step
	assert.Equal(t, 50.0, pid.Integral())

	output := pid.Step(0.0, 0.0)
	assert.Equal(t, 10.0, pid.Integral())
	assert.Equal(t, 10.0, output)
}

// TestController_Step_OutputWithinLimits tests the output clamp over a spread of inputs
func TestController_Step_OutputWithinLimits(t *testing.T) {
	// Arrange
	pid := NewController(3.0, 2.0, 0.5, 0.05)
	pid.SetOutputLimits(-4.0, 6.0)

	// Act & Assert
	for i := 0; i < 500; i++ {
		setpoint := 10 * math.Sin(float64(i)*0.37)
		measurement := 8 * math.Cos(float64(i)*0.11)
		output := pid.Step(setpoint, measurement)
		assert.GreaterOrEqual(t, output, -4.0)
		assert.LessOrEqual(t, output, 6.0)
		assert.GreaterOrEqual(t, pid.Integral(), -4.0)
		assert.LessOrEqual(t, pid.Integral(), 6.0)
	}
}

// TestController_Reset tests that Reset clears history but keeps configuration
func TestController_Reset(t *testing.T) {
	// Arrange
	pid := NewController(5.0, 1.0, 0.1, 0.01)
	pid.SetOutputLimits(0, 12)
	pid.Step(1.0, 0.0)
	pid.Step(1.0, 0.3)

	// Act
	pid.Reset()

	// Assert
	state := pid.GetState()
	assert.Equal(t, 0.0, state["integral"])
	assert.Equal(t, 0.0, state["prev_error"])
	assert.Equal(t, 5.0, state["kp"])
	assert.Equal(t, 0.01, state["dt"])
	assert.Equal(t, 0.0, state["out_min"])
	assert.Equal(t, 12.0, state["out_max"])
	assert.Equal(t, Terms{}, pid.LastTerms())
}

// TestController_Reset_MatchesFreshController tests that a reset controller behaves like a new one
func TestController_Reset_MatchesFreshController(t *testing.T) {
	// Arrange
	used := NewController(2.0, 0.7, 0.05, 0.02)
	used.SetOutputLimits(-3, 3)
	for i := 0; i < 25; i++ {
		used.Step(1.0, float64(i)*0.1)
	}

	fresh := NewController(2.0, 0.7, 0.05, 0.02)
	fresh.SetOutputLimits(-3, 3)

	// Act - resetting twice is the same as once
	used.Reset()
	used.Reset()

	// Assert
	assert.Equal(t, fresh.GetState(), used.GetState())
	assert.Equal(t, fresh.Step(0.8, 0.2), used.Step(0.8, 0.2))
}

// TestController_Init_Reinitializes tests explicit re-initialization
func TestController_Init_Reinitializes(t *testing.T) {
	// Arrange
	pid := NewController(1.0, 1.0, 1.0, 0.1)
	pid.SetOutputLimits(-1, 1)
	pid.Step(5.0, 0.0)

	// Act
	pid.Init(2.0, 0.0, 0.0, 0.5)

	// Assert
	kp, ki, kd := pid.Gains()
	assert.Equal(t, []float64{2.0, 0.0, 0.0}, []float64{kp, ki, kd})
	assert.Equal(t, 0.5, pid.Dt())
	assert.Equal(t, 0.0, pid.Integral())
	min, max := pid.OutputLimits()
	assert.Equal(t, -DefaultOutputLimit, min)
	assert.Equal(t, DefaultOutputLimit, max)
}

// TestController_Step_ZeroInterval tests the unguarded dt=0 precondition
func TestController_Step_ZeroInterval(t *testing.T) {
	t.Run("zero error gives NaN", func(t *testing.T) {
		pid := NewController(1.0, 1.0, 1.0, 0)
		pid.SetOutputLimits(-10, 10)

		output := pid.Step(1.0, 1.0)

		assert.True(t, math.IsNaN(output), "0/0 derivative is not clamped away")
	})

	t.Run("nonzero error saturates", func(t *testing.T) {
		pid := NewController(1.0, 1.0, 1.0, 0)
		pid.SetOutputLimits(-10, 10)

		output := pid.Step(2.0, 1.0)

		assert.Equal(t, 10.0, output)
	})
}

// TestController_Step_InvertedLimits tests that an inverted range resolves to out_min
func TestController_Step_InvertedLimits(t *testing.T) {
	// Arrange
	pid := NewController(1.0, 0, 0, 0.1)
	pid.SetOutputLimits(5, -5)

	// Act
	output := pid.Step(1.0, 0.0)

	// Assert
	assert.Equal(t, 5.0, output)
}

// TestController_RLCircuitTracking closes the loop over a discretized RL circuit
func TestController_RLCircuitTracking(t *testing.T) {
	// Arrange
	const (
		r        = 1.0
		l        = 0.5
		dt       = 0.01
		setpoint = 1.0
		steps    = 2000
	)
	pid := NewController(5.0, 1.0, 0.1, dt)
	pid.SetOutputLimits(0.0, 12.0)
	current := 0.0

	// Act
	prev := current
	for i := 0; i < steps; i++ {
		voltage := pid.Step(setpoint, current)
		current += (voltage - r*current) * (dt / l)

		// Assert - approaches from below without ringing
		require.GreaterOrEqual(t, current, prev-1e-12, "step %d", i)
		require.LessOrEqual(t, current, setpoint)
		prev = current
	}

	assert.InDelta(t, setpoint, current, 0.01)
}

// TestClamp tests the clamp helper
func TestClamp(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		expected float64
	}{
		{name: "below min", value: -10.0, expected: 0.0},
		{name: "above max", value: 150.0, expected: 100.0},
		{name: "within range", value: 50.0, expected: 50.0},
		{name: "equal to min", value: 0.0, expected: 0.0},
		{name: "equal to max", value: 100.0, expected: 100.0},
		{name: "positive infinity", value: math.Inf(1), expected: 100.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, clamp(tt.value, 0.0, 100.0))
		})
	}

	assert.True(t, math.IsNaN(clamp(math.NaN(), 0.0, 100.0)))
}
