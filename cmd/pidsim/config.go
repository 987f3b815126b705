package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"pid-controller/pid"
	"pid-controller/plant"
	"pid-controller/simulation"
)

// Plant types
const (
	PlantRLCircuit = "rl_circuit"
	PlantDCMotor   = "dc_motor"
)

// Config represents the complete configuration structure
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Controller ControllerConfig `yaml:"controller"`
	Plant      PlantConfig      `yaml:"plant"`
	Simulation SimulationConfig `yaml:"simulation"`
	Output     OutputConfig     `yaml:"output"`
}

// ServerConfig contains metrics and logging settings
type ServerConfig struct {
	MetricsPort int    `yaml:"metrics_port"` // 0 disables the metrics server
	LogLevel    string `yaml:"log_level"`
	LogEvery    int    `yaml:"log_every"` // Emit a debug line every N steps
}

// ControllerConfig contains PID gains, sampling interval and limits
type ControllerConfig struct {
	Kp     float64       `yaml:"kp"`     // Proportional gain
	Ki     float64       `yaml:"ki"`     // Integral gain
	Kd     float64       `yaml:"kd"`     // Derivative gain
	Dt     time.Duration `yaml:"dt"`     // Sampling interval
	Limits *LimitsConfig `yaml:"limits"` // Output clamp, also bounds the integral
}

// LimitsConfig is an output range
type LimitsConfig struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// PlantConfig selects and parameterizes the simulated process
type PlantConfig struct {
	Type       string        `yaml:"type"`       // rl_circuit or dc_motor
	Integrator string        `yaml:"integrator"` // euler or rk4
	Substeps   int           `yaml:"substeps"`   // Integration steps per control interval
	RLCircuit  RLConfig      `yaml:"rl_circuit"`
	DCMotor    DCMotorConfig `yaml:"dc_motor"`
}

// RLConfig contains series RL circuit parameters
type RLConfig struct {
	Resistance float64 `yaml:"resistance"` // Ohm
	Inductance float64 `yaml:"inductance"` // Henry
}

// DCMotorConfig contains DC motor parameters
type DCMotorConfig struct {
	Inertia        float64 `yaml:"inertia"`         // kg*m^2
	Damping        float64 `yaml:"damping"`         // N*m*s
	TorqueConstant float64 `yaml:"torque_constant"` // N*m/A
	Resistance     float64 `yaml:"resistance"`      // Ohm
	Inductance     float64 `yaml:"inductance"`      // Henry
}

// SimulationConfig contains loop settings
type SimulationConfig struct {
	Steps                 int               `yaml:"steps"`
	Setpoint              float64           `yaml:"setpoint"`
	StepChange            *StepChangeConfig `yaml:"step_change"` // Optional setpoint jump
	ResetOnSetpointChange bool              `yaml:"reset_on_setpoint_change"`
	Realtime              bool              `yaml:"realtime"` // Pace steps at dt wall time
}

// StepChangeConfig moves the setpoint to Value at simulated time At
type StepChangeConfig struct {
	At    time.Duration `yaml:"at"`
	Value float64       `yaml:"value"`
}

// OutputConfig contains artifact paths; empty disables, "-" is stdout
type OutputConfig struct {
	CSV  string `yaml:"csv"`
	JSON string `yaml:"json"`
	Plot string `yaml:"plot"`
}

// LoadConfig loads and parses the configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	// Set defaults for any missing values
	setDefaults(&config)

	// Validate the configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// DefaultConfig returns the RL circuit demo configuration
func DefaultConfig() *Config {
	config := &Config{}
	setDefaults(config)
	return config
}

// setDefaults sets default values for any missing configuration fields.
// Controller and simulation defaults depend on the plant type.
func setDefaults(config *Config) {
	if config.Server.LogLevel == "" {
		config.Server.LogLevel = "info"
	}
	if config.Server.LogEvery == 0 {
		config.Server.LogEvery = 100
	}
	if config.Plant.Type == "" {
		config.Plant.Type = PlantRLCircuit
	}

	switch config.Plant.Type {
	case PlantDCMotor:
		setDCMotorDefaults(config)
	case PlantRLCircuit:
		setRLCircuitDefaults(config)
	}

	if config.Plant.Integrator == "" {
		config.Plant.Integrator = "euler"
	}
	if config.Plant.Substeps == 0 {
		config.Plant.Substeps = 1
	}
}

func setRLCircuitDefaults(config *Config) {
	c := &config.Controller
	if c.Kp == 0 && c.Ki == 0 && c.Kd == 0 {
		c.Kp, c.Ki, c.Kd = 5.0, 1.0, 0.1
	}
	if c.Dt == 0 {
		c.Dt = 10 * time.Millisecond
	}
	if c.Limits == nil {
		// 12V supply
		c.Limits = &LimitsConfig{Min: 0, Max: 12}
	}
	if config.Plant.RLCircuit.Resistance == 0 {
		config.Plant.RLCircuit.Resistance = 1.0
	}
	if config.Plant.RLCircuit.Inductance == 0 {
		config.Plant.RLCircuit.Inductance = 0.5
	}
	if config.Simulation.Steps == 0 {
		config.Simulation.Steps = 2000
	}
	if config.Simulation.Setpoint == 0 {
		config.Simulation.Setpoint = 1.0
	}
}

func setDCMotorDefaults(config *Config) {
	c := &config.Controller
	if c.Kp == 0 && c.Ki == 0 && c.Kd == 0 {
		c.Kp, c.Ki, c.Kd = 0.02, 0.1, 0.0002
	}
	if c.Dt == 0 {
		c.Dt = time.Millisecond
	}
	if c.Limits == nil {
		c.Limits = &LimitsConfig{Min: -5, Max: 5}
	}
	m := &config.Plant.DCMotor
	if m.Inertia == 0 {
		m.Inertia = 7.0865e-4
	}
	if m.Damping == 0 {
		m.Damping = 5.4177e-6
	}
	if m.TorqueConstant == 0 {
		m.TorqueConstant = 0.0061
	}
	if m.Resistance == 0 {
		m.Resistance = 0.0045
	}
	if m.Inductance == 0 {
		m.Inductance = 1.572e-4
	}
	if config.Plant.Integrator == "" {
		config.Plant.Integrator = "rk4"
	}
	if config.Plant.Substeps == 0 {
		config.Plant.Substeps = 10
	}
	if config.Simulation.Steps == 0 {
		config.Simulation.Steps = 1000
	}
	if config.Simulation.Setpoint == 0 {
		config.Simulation.Setpoint = 500
	}
}

// Validate checks all configuration values for logical consistency
func (c *Config) Validate() error {
	// Server validation
	if c.Server.MetricsPort < 0 || c.Server.MetricsPort > 65535 {
		return fmt.Errorf("metrics_port must be between 0-65535, got %d", c.Server.MetricsPort)
	}
	if c.Server.LogLevel != "debug" && c.Server.LogLevel != "info" &&
		c.Server.LogLevel != "warn" && c.Server.LogLevel != "error" {
		return fmt.Errorf("log_level must be one of: debug, info, warn, error, got %s", c.Server.LogLevel)
	}
	if c.Server.LogEvery < 0 {
		return fmt.Errorf("log_every must be non-negative, got %d", c.Server.LogEvery)
	}

	// Controller validation happens on the constructed controller
	if _, err := c.Controller.Build(); err != nil {
		return fmt.Errorf("controller: %w", err)
	}

	// Plant validation
	if _, err := c.Plant.Build(); err != nil {
		return fmt.Errorf("plant: %w", err)
	}

	// Simulation validation
	if c.Simulation.Steps <= 0 {
		return fmt.Errorf("steps must be positive, got %d", c.Simulation.Steps)
	}
	if sc := c.Simulation.StepChange; sc != nil && sc.At < 0 {
		return fmt.Errorf("step_change.at must be non-negative, got %v", sc.At)
	}

	return nil
}

// Build creates a controller from the configuration. This is the point where
// a non-positive dt or inverted limits are rejected.
func (c ControllerConfig) Build() (*pid.Controller, error) {
	ctrl := pid.NewController(c.Kp, c.Ki, c.Kd, c.Dt.Seconds())
	if c.Limits != nil {
		ctrl.SetOutputLimits(c.Limits.Min, c.Limits.Max)
	}
	if err := ctrl.Validate(); err != nil {
		return nil, err
	}
	return ctrl, nil
}

// Build creates the configured plant
func (p PlantConfig) Build() (*plant.StateSpace, error) {
	method, err := plant.ParseMethod(p.Integrator)
	if err != nil {
		return nil, err
	}
	opts := []plant.Option{plant.WithMethod(method), plant.WithSubsteps(p.Substeps)}

	switch p.Type {
	case PlantRLCircuit:
		return plant.NewRLCircuit(p.RLCircuit.Resistance, p.RLCircuit.Inductance, opts...)
	case PlantDCMotor:
		return plant.NewDCMotor(plant.DCMotorParams{
			J: p.DCMotor.Inertia,
			B: p.DCMotor.Damping,
			K: p.DCMotor.TorqueConstant,
			R: p.DCMotor.Resistance,
			L: p.DCMotor.Inductance,
		}, opts...)
	default:
		return nil, fmt.Errorf("type must be one of: %s, %s, got %q", PlantRLCircuit, PlantDCMotor, p.Type)
	}
}

// LoopConfig converts the simulation settings for a controller sampling at dt
func (c *Config) LoopConfig() simulation.Config {
	setpoint := simulation.Constant(c.Simulation.Setpoint)
	if sc := c.Simulation.StepChange; sc != nil {
		setpoint = simulation.StepAt(sc.At.Seconds(), c.Simulation.Setpoint, sc.Value)
	}
	return simulation.Config{
		Dt:                    c.Controller.Dt.Seconds(),
		Steps:                 c.Simulation.Steps,
		Setpoint:              setpoint,
		ResetOnSetpointChange: c.Simulation.ResetOnSetpointChange,
		Realtime:              c.Simulation.Realtime,
	}
}
