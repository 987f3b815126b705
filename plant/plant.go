// Package plant provides continuous-time process models that a controller
// can be closed around. Each model is a single-input single-output linear
// system
//
//	x' = A*x + B*u
//	y  = C*x
//
// advanced over a fixed control interval with a chosen integration method.
package plant

import (
	"errors"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrDimension is returned when system matrices do not agree in size
	ErrDimension = errors.New("inconsistent system dimensions")

	// ErrInvalidParameter is returned for physically meaningless model parameters
	ErrInvalidParameter = errors.New("invalid plant parameter")
)

// Method selects how the state is integrated between control steps
type Method int

const (
	// Euler is the explicit forward Euler method
	Euler Method = iota
	// RK4 is the classic fourth-order Runge-Kutta method
	RK4
)

func (m Method) String() string {
	switch m {
	case Euler:
		return "euler"
	case RK4:
		return "rk4"
	default:
		return fmt.Sprintf("Method(%d)", int(m))
	}
}

// ParseMethod converts a config string into a Method
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "euler":
		return Euler, nil
	case "rk4":
		return RK4, nil
	default:
		return 0, fmt.Errorf("unknown integration method %q (want euler or rk4)", s)
	}
}

// Option configures a StateSpace
type Option func(*StateSpace) error

// WithMethod sets the integration method. The default is Euler.
func WithMethod(m Method) Option {
	return func(s *StateSpace) error {
		if m != Euler && m != RK4 {
			return fmt.Errorf("%v: %w", m, ErrInvalidParameter)
		}
		s.method = m
		return nil
	}
}

// WithSubsteps splits every Advance into n equal integration steps
func WithSubsteps(n int) Option {
	return func(s *StateSpace) error {
		if n < 1 {
			return fmt.Errorf("substeps must be at least 1, got %d: %w", n, ErrInvalidParameter)
		}
		s.substeps = n
		return nil
	}
}

// WithInitialState sets the state restored by Reset. The default is zero.
func WithInitialState(x0 []float64) Option {
	return func(s *StateSpace) error {
		if len(x0) != s.Order() {
			return fmt.Errorf("initial state has %d elements, want %d: %w", len(x0), s.Order(), ErrDimension)
		}
		s.x0 = mat.NewVecDense(len(x0), append([]float64(nil), x0...))
		return nil
	}
}

// StateSpace is a SISO linear plant. It is not safe for concurrent use.
type StateSpace struct {
	a *mat.Dense
	b *mat.VecDense
	c *mat.VecDense

	x  *mat.VecDense
	x0 *mat.VecDense

	method   Method
	substeps int

	// scratch space reused across Advance calls
	k1, k2, k3, k4, tmp *mat.VecDense
}

// NewStateSpace creates a plant from its system matrices. A must be square
// and B, C must have as many elements as A has rows.
func NewStateSpace(a *mat.Dense, b, c []float64, opts ...Option) (*StateSpace, error) {
	if a == nil {
		return nil, fmt.Errorf("system matrix must be defined: %w", ErrDimension)
	}
	r, cols := a.Dims()
	if r != cols {
		return nil, fmt.Errorf("system matrix is %dx%d: %w", r, cols, ErrDimension)
	}
	if len(b) != r || len(c) != r {
		return nil, fmt.Errorf("input/output vectors have %d/%d elements, want %d: %w", len(b), len(c), r, ErrDimension)
	}

	s := &StateSpace{
		a:        mat.DenseCopyOf(a),
		b:        mat.NewVecDense(r, append([]float64(nil), b...)),
		c:        mat.NewVecDense(r, append([]float64(nil), c...)),
		x:        mat.NewVecDense(r, nil),
		x0:       mat.NewVecDense(r, nil),
		method:   Euler,
		substeps: 1,
		k1:       mat.NewVecDense(r, nil),
		k2:       mat.NewVecDense(r, nil),
		k3:       mat.NewVecDense(r, nil),
		k4:       mat.NewVecDense(r, nil),
		tmp:      mat.NewVecDense(r, nil),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.x.CopyVec(s.x0)
	return s, nil
}

// Order returns the number of state variables
func (s *StateSpace) Order() int {
	r, _ := s.a.Dims()
	return r
}

// Method returns the integration method in use
func (s *StateSpace) Method() Method {
	return s.method
}

// Output returns the measured value y = C*x
func (s *StateSpace) Output() float64 {
	return mat.Dot(s.c, s.x)
}

// State returns a copy of the state vector
func (s *StateSpace) State() []float64 {
	out := make([]float64, s.x.Len())
	for i := range out {
		out[i] = s.x.AtVec(i)
	}
	return out
}

// Reset restores the initial state
func (s *StateSpace) Reset() {
	s.x.CopyVec(s.x0)
}

// Advance integrates the plant over dt seconds with the input u held
// constant (zero-order hold).
func (s *StateSpace) Advance(u, dt float64) {
	h := dt / float64(s.substeps)
	for i := 0; i < s.substeps; i++ {
		switch s.method {
		case RK4:
			s.rk4(u, h)
		default:
			s.euler(u, h)
		}
	}
}

// derivative stores A*x + B*u in dst. dst must not alias x.
func (s *StateSpace) derivative(dst, x *mat.VecDense, u float64) {
	dst.MulVec(s.a, x)
	dst.AddScaledVec(dst, u, s.b)
}

func (s *StateSpace) euler(u, h float64) {
	s.derivative(s.k1, s.x, u)
	s.x.AddScaledVec(s.x, h, s.k1)
}

func (s *StateSpace) rk4(u, h float64) {
	s.derivative(s.k1, s.x, u)

	s.tmp.AddScaledVec(s.x, h/2, s.k1)
	s.derivative(s.k2, s.tmp, u)

	s.tmp.AddScaledVec(s.x, h/2, s.k2)
	s.derivative(s.k3, s.tmp, u)

	s.tmp.AddScaledVec(s.x, h, s.k3)
	s.derivative(s.k4, s.tmp, u)

	// x += h/6 * (k1 + 2*k2 + 2*k3 + k4)
	s.tmp.AddVec(s.k1, s.k4)
	s.tmp.AddScaledVec(s.tmp, 2, s.k2)
	s.tmp.AddScaledVec(s.tmp, 2, s.k3)
	s.x.AddScaledVec(s.x, h/6, s.tmp)
}
