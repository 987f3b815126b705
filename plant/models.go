package plant

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// NewRLCircuit models a series RL circuit driven by a voltage source:
//
//	V = R*i + L*di/dt
//
// The single state is the current in amperes, which is also the output.
func NewRLCircuit(r, l float64, opts ...Option) (*StateSpace, error) {
	if r < 0 {
		return nil, fmt.Errorf("resistance must be non-negative, got %g: %w", r, ErrInvalidParameter)
	}
	if l <= 0 {
		return nil, fmt.Errorf("inductance must be positive, got %g: %w", l, ErrInvalidParameter)
	}

	a := mat.NewDense(1, 1, []float64{-r / l})
	return NewStateSpace(a, []float64{1 / l}, []float64{1}, opts...)
}

// DCMotorParams are the physical constants of a brushed DC motor
type DCMotorParams struct {
	J float64 // Rotor inertia (kg*m^2)
	B float64 // Viscous damping (N*m*s)
	K float64 // Torque and back-EMF constant (N*m/A, V*s/rad)
	R float64 // Armature resistance (Ohm)
	L float64 // Armature inductance (H)
}

// DefaultDCMotor is a typical small DC motor
var DefaultDCMotor = DCMotorParams{J: 0.01, B: 0.1, K: 0.01, R: 1.0, L: 0.5}

// NewDCMotor models a DC motor with state [omega, i]:
//
//	J*domega/dt = K*i - b*omega
//	L*di/dt     = V - R*i - K*omega
//
// The output is the shaft speed in RPM.
func NewDCMotor(p DCMotorParams, opts ...Option) (*StateSpace, error) {
	if p.J <= 0 {
		return nil, fmt.Errorf("inertia must be positive, got %g: %w", p.J, ErrInvalidParameter)
	}
	if p.L <= 0 {
		return nil, fmt.Errorf("inductance must be positive, got %g: %w", p.L, ErrInvalidParameter)
	}
	if p.B < 0 || p.R < 0 {
		return nil, fmt.Errorf("damping and resistance must be non-negative: %w", ErrInvalidParameter)
	}

	a := mat.NewDense(2, 2, []float64{
		-p.B / p.J, p.K / p.J,
		-p.K / p.L, -p.R / p.L,
	})
	return NewStateSpace(a, []float64{0, 1 / p.L}, []float64{30 / math.Pi, 0}, opts...)
}
