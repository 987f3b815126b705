// Package simulation closes a controller around a plant model and records
// the resulting trace.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"pid-controller/pid"
)

// Controller is the feedback law under test. *pid.Controller satisfies it.
type Controller interface {
	Step(setpoint, measurement float64) float64
	Reset()
}

// termsReporter is implemented by controllers that expose their PID terms
type termsReporter interface {
	LastTerms() pid.Terms
}

// Plant is the simulated process. *plant.StateSpace satisfies it.
type Plant interface {
	Output() float64
	Advance(u, dt float64)
	Reset()
}

// Observer is notified after every simulated step
type Observer interface {
	OnStep(Sample)
}

// ObserverFunc adapts a function to the Observer interface
type ObserverFunc func(Sample)

// OnStep calls f(s)
func (f ObserverFunc) OnStep(s Sample) { f(s) }

// Setpoint returns the desired value at simulated time t (seconds)
type Setpoint func(t float64) float64

// Constant returns a setpoint fixed at v
func Constant(v float64) Setpoint {
	return func(float64) float64 { return v }
}

// StepAt returns a setpoint that switches from before to after at time at
func StepAt(at, before, after float64) Setpoint {
	return func(t float64) float64 {
		if t < at {
			return before
		}
		return after
	}
}

// Config holds the simulation loop parameters
type Config struct {
	Dt       float64  // Control interval in seconds
	Steps    int      // Number of control steps to run
	Setpoint Setpoint // Setpoint profile

	// ResetOnSetpointChange clears the controller history whenever the
	// setpoint jumps
	ResetOnSetpointChange bool

	// Realtime paces the loop so that one step takes Dt of wall time
	Realtime bool
}

// Sample is one row of the simulation trace
type Sample struct {
	Step        int       `json:"step"`
	Time        float64   `json:"time"`
	Setpoint    float64   `json:"setpoint"`
	Measurement float64   `json:"measurement"` // Plant output after the step
	Output      float64   `json:"output"`      // Control output applied during the step
	Terms       pid.Terms `json:"terms"`
}

// Result is the outcome of a simulation run
type Result struct {
	Dt      float64  `json:"dt"`
	Initial float64  `json:"initial"` // Plant output before the first step
	Samples []Sample `json:"samples"`
	Summary Summary  `json:"summary"`
}

// Simulator runs a controller against a plant
type Simulator struct {
	cfg       Config
	ctrl      Controller
	plant     Plant
	observers []Observer
}

// New creates a simulator. Observers are called in order after every step.
func New(cfg Config, ctrl Controller, p Plant, observers ...Observer) (*Simulator, error) {
	if math.IsNaN(cfg.Dt) || cfg.Dt <= 0 {
		return nil, fmt.Errorf("dt must be positive, got %g", cfg.Dt)
	}
	if cfg.Steps <= 0 {
		return nil, fmt.Errorf("steps must be positive, got %d", cfg.Steps)
	}
	if ctrl == nil || p == nil {
		return nil, errors.New("controller and plant are required")
	}
	if cfg.Setpoint == nil {
		cfg.Setpoint = Constant(0)
	}

	return &Simulator{
		cfg:       cfg,
		ctrl:      ctrl,
		plant:     p,
		observers: observers,
	}, nil
}

// Run executes the configured number of steps. If ctx is cancelled the run
// stops early and the partial result is returned together with ctx.Err().
func (s *Simulator) Run(ctx context.Context) (*Result, error) {
	res := &Result{
		Dt:      s.cfg.Dt,
		Initial: s.plant.Output(),
		Samples: make([]Sample, 0, s.cfg.Steps),
	}

	var tick <-chan time.Time
	if s.cfg.Realtime {
		ticker := time.NewTicker(time.Duration(s.cfg.Dt * float64(time.Second)))
		defer ticker.Stop()
		tick = ticker.C
	}

	reporter, hasTerms := s.ctrl.(termsReporter)
	prevSetpoint := math.NaN()

	for k := 0; k < s.cfg.Steps; k++ {
		if err := ctx.Err(); err != nil {
			res.Summary = Summarize(res, DefaultSettlingBand)
			return res, err
		}

		t := float64(k) * s.cfg.Dt
		measurement := s.plant.Output()
		setpoint := s.cfg.Setpoint(t)

		// Discard stale history across setpoint discontinuities
		if s.cfg.ResetOnSetpointChange && k > 0 && setpoint != prevSetpoint {
			s.ctrl.Reset()
		}
		prevSetpoint = setpoint

		output := s.ctrl.Step(setpoint, measurement)
		s.plant.Advance(output, s.cfg.Dt)

		sample := Sample{
			Step:        k,
			Time:        t,
			Setpoint:    setpoint,
			Measurement: s.plant.Output(),
			Output:      output,
		}
		if hasTerms {
			sample.Terms = reporter.LastTerms()
		}
		res.Samples = append(res.Samples, sample)

		for _, o := range s.observers {
			o.OnStep(sample)
		}

		if tick != nil {
			select {
			case <-tick:
			case <-ctx.Done():
			}
		}
	}

	res.Summary = Summarize(res, DefaultSettlingBand)
	return res, nil
}
